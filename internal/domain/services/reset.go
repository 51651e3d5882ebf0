package services

import (
	"context"
	"fmt"

	"github.com/rezolved/salesforce-brain-commerce/internal/domain/models"
	"github.com/rezolved/salesforce-brain-commerce/internal/utils"
	"github.com/rezolved/salesforce-brain-commerce/pkg/interfaces"
)

// CollectionResetCoordinator сбрасывает удаленную коллекцию перед полной выгрузкой.
//
// Полная выгрузка обязана стартовать с пустой коллекции: инвариант "после запуска
// удаленная коллекция зеркалирует весь локальный каталог" нарушается, если старые
// записи не были очищены. Поэтому неудачный сброс фатален для всего запуска.
type CollectionResetCoordinator struct {
	ingest IngestPort
	logger interfaces.LoggerPort
}

// NewCollectionResetCoordinator создает новый координатор сброса коллекции
func NewCollectionResetCoordinator(ingest IngestPort, logger interfaces.LoggerPort) *CollectionResetCoordinator {
	return &CollectionResetCoordinator{ingest: ingest, logger: logger}
}

// ResetBeforeFullExport сбрасывает коллекцию типа записей.
// Ошибка означает, что полную выгрузку начинать нельзя.
func (c *CollectionResetCoordinator) ResetBeforeFullExport(ctx context.Context, recordType models.RecordType) error {
	if err := c.ingest.ResetCollection(ctx, recordType); err != nil {
		return fmt.Errorf("%w: %s", utils.ErrIngestResetFailed, err.Error())
	}

	c.logger.InfoWithContext(ctx, "Коллекция Brain Commerce сброшена перед полной выгрузкой",
		interfaces.LogField{Key: "record_type", Value: string(recordType)})
	return nil
}
