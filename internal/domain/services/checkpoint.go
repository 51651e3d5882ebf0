package services

import (
	"context"
	"time"

	"github.com/rezolved/salesforce-brain-commerce/internal/domain/models"
	"github.com/rezolved/salesforce-brain-commerce/pkg/interfaces"
)

// CheckpointService инкапсулирует правило фиксации чекпоинта выгрузки.
//
// Чекпоинт хранит время СТАРТА последнего запуска, отправившего хотя бы одну
// запись. Запись временем старта, а не завершения, оставляет запас: записи,
// измененные во время долгой выгрузки, будут переоценены следующим
// дельта-запуском вместо того, чтобы потеряться.
type CheckpointService struct {
	siteID string
	state  ExportState
	logger interfaces.LoggerPort
}

// NewCheckpointService создает новый сервис чекпоинтов
func NewCheckpointService(siteID string, state ExportState, logger interfaces.LoggerPort) *CheckpointService {
	return &CheckpointService{siteID: siteID, state: state, logger: logger}
}

// Get возвращает чекпоинт последней выгрузки.
// nil означает, что выгрузка еще не выполнялась и выгружать нужно всё.
func (s *CheckpointService) Get(ctx context.Context, recordType models.RecordType) (*time.Time, error) {
	return s.state.Checkpoint(ctx, s.siteID, recordType)
}

// Commit фиксирует чекпоинт запуска. Запуск, не отправивший ни одной записи,
// чекпоинт не двигает.
func (s *CheckpointService) Commit(ctx context.Context, recordType models.RecordType, runStart time.Time, processed int) error {
	if processed <= 0 {
		return nil
	}

	if err := s.state.SetCheckpoint(ctx, s.siteID, recordType, runStart); err != nil {
		return err
	}

	s.logger.InfoWithContext(ctx, "Чекпоинт выгрузки обновлен",
		interfaces.LogField{Key: "record_type", Value: string(recordType)},
		interfaces.LogField{Key: "run_start", Value: runStart.Format(time.RFC3339)},
		interfaces.LogField{Key: "processed", Value: processed},
	)
	return nil
}
