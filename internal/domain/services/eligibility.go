package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rezolved/salesforce-brain-commerce/internal/domain/models"
	"github.com/rezolved/salesforce-brain-commerce/pkg/interfaces"
)

// ChangeDetector решает, подлежит ли запись каталога выгрузке в рамках дельта-запуска.
//
// Правило сравнения зафиксировано следующим образом: явный порог (threshold)
// полностью замещает чекпоинт и сравнивается нестрого (lastModified >= threshold);
// чекпоинт сравнивается строго (lastModified > checkpoint).
// Чекпоинт читается один раз при старте запуска и передается параметром,
// в середине запуска он не перечитывается.
type ChangeDetector struct {
	siteID    string
	mapper    *AttributeMapper
	snapshots SnapshotReader
	logger    interfaces.LoggerPort
}

// NewChangeDetector создает новый детектор изменений
func NewChangeDetector(siteID string, mapper *AttributeMapper, snapshots SnapshotReader, logger interfaces.LoggerPort) *ChangeDetector {
	return &ChangeDetector{
		siteID:    siteID,
		mapper:    mapper,
		snapshots: snapshots,
		logger:    logger,
	}
}

// IsEligible сообщает, должна ли запись быть выгружена в этом запуске.
//
// Для продуктов, не прошедших проверку по времени, дополнительно сравнивается
// текущий кортеж (availability, listPrice, salePrice) со снапшотом последней
// выгрузки: так отлавливаются изменения цены и остатков, не затрагивающие
// время модификации самой записи.
func (d *ChangeDetector) IsEligible(ctx context.Context, record models.CatalogRecord, checkpoint *time.Time, threshold *time.Time) (bool, error) {
	product, isProduct := record.(*models.Product)

	// Оффлайн-продукты в дельта-выгрузку не попадают
	if isProduct && !product.Online {
		return false, nil
	}

	eligible := eligibleByTime(record.RecordLastModified(), checkpoint, threshold)

	if !eligible && isProduct {
		changed, err := d.stateChanged(ctx, product)
		if err != nil {
			return false, err
		}
		if changed {
			d.logger.DebugWithContext(ctx, "Продукт выбран по изменению снапшота состояния",
				interfaces.LogField{Key: "product_id", Value: product.ID})
			eligible = true
		}
	}

	return eligible, nil
}

// eligibleByTime применяет правило сравнения по времени модификации
func eligibleByTime(lastModified time.Time, checkpoint *time.Time, threshold *time.Time) bool {
	// Явный порог полностью замещает чекпоинт
	if threshold != nil {
		return !lastModified.Before(*threshold)
	}
	if checkpoint == nil {
		return true
	}
	return lastModified.After(*checkpoint)
}

// stateChanged сравнивает текущее состояние продукта со снапшотом последней выгрузки
func (d *ChangeDetector) stateChanged(ctx context.Context, product *models.Product) (bool, error) {
	stored, err := d.snapshots.Snapshot(ctx, d.siteID, product.ID)
	if err != nil {
		return false, fmt.Errorf("failed to read export snapshot for product %s: %w", product.ID, err)
	}

	current := d.mapper.StateTuple(product)
	return stored == "" || stored != current, nil
}
