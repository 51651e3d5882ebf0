package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rezolved/salesforce-brain-commerce/internal/domain/models"
	"github.com/rezolved/salesforce-brain-commerce/pkg/interfaces"
)

// BatchExporter прокачивает записи каталога через детектор изменений и маппер,
// накапливает их в батчи фиксированного размера и отправляет в Brain Commerce.
//
// Источник читается лениво, полный набор записей в память не материализуется.
// Батчи отправляются строго последовательно; первая же ошибка отправки
// останавливает весь запуск, возвращается число записей, успешно отправленных
// в предыдущих батчах. Текущий (неотправленный) батч в счетчик не входит
// и в рамках запуска не повторяется.
type BatchExporter struct {
	siteID    string
	chunkSize int
	mapper    *AttributeMapper
	detector  *ChangeDetector
	ingest    IngestPort
	state     ExportState
	catalog   CatalogStore
	logger    interfaces.LoggerPort
}

// NewBatchExporter создает новый экземпляр BatchExporter
func NewBatchExporter(
	siteID string,
	chunkSize int,
	mapper *AttributeMapper,
	detector *ChangeDetector,
	ingest IngestPort,
	state ExportState,
	catalog CatalogStore,
	logger interfaces.LoggerPort,
) *BatchExporter {
	if chunkSize <= 0 {
		chunkSize = 100
	}
	return &BatchExporter{
		siteID:    siteID,
		chunkSize: chunkSize,
		mapper:    mapper,
		detector:  detector,
		ingest:    ingest,
		state:     state,
		catalog:   catalog,
		logger:    logger,
	}
}

// Run выполняет один проход выгрузки по источнику записей.
// Возвращает число успешно отправленных записей и ошибку, остановившую запуск.
func (e *BatchExporter) Run(
	ctx context.Context,
	source RecordSource,
	recordType models.RecordType,
	mode models.ExportMode,
	checkpoint *time.Time,
	threshold *time.Time,
	mapping *models.AttributeMapping,
) (int, error) {
	processed := 0
	batch := make([]models.IngestRecord, 0, e.chunkSize)
	batchProducts := make([]*models.Product, 0, e.chunkSize)
	// Мастер-продукты, уже попавшие в выгрузку в этом запуске
	sentMasters := make(map[string]struct{})

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}

		start := time.Now()
		if err := e.ingest.Send(ctx, recordType, batch); err != nil {
			batchesSent.WithLabelValues(string(recordType), "error").Inc()
			return err
		}
		batchSendDuration.WithLabelValues(string(recordType)).Observe(time.Since(start).Seconds())
		batchesSent.WithLabelValues(string(recordType), "success").Inc()

		e.logger.DebugWithContext(ctx, "Батч выгрузки отправлен",
			interfaces.LogField{Key: "record_type", Value: string(recordType)},
			interfaces.LogField{Key: "size", Value: len(batch)},
		)

		// Снапшоты обновляются только после подтвержденной отправки батча,
		// одной транзакцией на батч
		if len(batchProducts) > 0 {
			entries := make(map[string]string, len(batchProducts))
			for _, product := range batchProducts {
				entries[product.ID] = e.mapper.StateTuple(product)
			}
			if err := e.state.SetSnapshots(ctx, e.siteID, entries); err != nil {
				return fmt.Errorf("failed to persist export snapshots: %w", err)
			}
		}

		processed += len(batch)
		recordsExported.WithLabelValues(string(recordType)).Add(float64(len(batch)))

		batch = batch[:0]
		batchProducts = batchProducts[:0]
		return nil
	}

	appendRecord := func(record models.CatalogRecord) error {
		switch r := record.(type) {
		case *models.Product:
			batch = append(batch, e.mapper.MapProduct(r, mapping))
			batchProducts = append(batchProducts, r)
		case *models.FAQ:
			batch = append(batch, e.mapper.MapFaq(r))
		default:
			return fmt.Errorf("unsupported catalog record type %T", record)
		}

		if len(batch) >= e.chunkSize {
			return flush()
		}
		return nil
	}

	for {
		record, err := source.Next(ctx)
		if err != nil {
			return processed, fmt.Errorf("failed to read catalog record: %w", err)
		}
		if record == nil {
			break
		}

		product, isProduct := record.(*models.Product)
		if isProduct {
			if !product.Exportable() {
				continue
			}
			// Мастер мог уже попасть в выгрузку по правилу варианта
			if product.Type == models.MasterProduct {
				if _, done := sentMasters[product.ID]; done {
					continue
				}
			}
		}

		if mode == models.DeltaExport {
			eligible, err := e.detector.IsEligible(ctx, record, checkpoint, threshold)
			if err != nil {
				return processed, err
			}
			if !eligible {
				continue
			}
		}

		if err := appendRecord(record); err != nil {
			return processed, err
		}

		if isProduct {
			if product.Type == models.MasterProduct {
				sentMasters[product.ID] = struct{}{}
			}

			// Выгружаемый вариант тянет за собой мастер-продукт, даже если тот
			// сам по себе не прошел проверку на изменения: группировка по
			// item_group_id на стороне Brain Commerce должна остаться согласованной
			if mode == models.DeltaExport && product.IsVariant() {
				if _, done := sentMasters[product.MasterID]; !done {
					master, err := e.catalog.MasterProduct(ctx, product.MasterID)
					if err != nil {
						return processed, fmt.Errorf("failed to load master product %s: %w", product.MasterID, err)
					}
					if master != nil {
						sentMasters[product.MasterID] = struct{}{}
						if err := appendRecord(master); err != nil {
							return processed, err
						}
					}
				}
			}
		}
	}

	// Отправляем оставшийся неполный батч по тем же правилам
	if err := flush(); err != nil {
		return processed, err
	}

	return processed, nil
}
