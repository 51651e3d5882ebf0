package services

import (
	"context"
	"fmt"

	"github.com/rezolved/salesforce-brain-commerce/internal/domain/models"
	"github.com/rezolved/salesforce-brain-commerce/pkg/interfaces"
)

// DeletionReconciler разгребает очередь записей, ожидающих удаления в Brain Commerce.
//
// В отличие от батчевой выгрузки, ошибка здесь локальна для одного ID:
// неудавшиеся удаления остаются в очереди до следующего запуска и не блокируют
// обработку остальных.
type DeletionReconciler struct {
	state  ExportState
	ingest IngestPort
	logger interfaces.LoggerPort
}

// NewDeletionReconciler создает новый экземпляр DeletionReconciler
func NewDeletionReconciler(state ExportState, ingest IngestPort, logger interfaces.LoggerPort) *DeletionReconciler {
	return &DeletionReconciler{state: state, ingest: ingest, logger: logger}
}

// Reconcile обрабатывает очередь удалений для типа записей.
// Очередь снимается снимком на старте: ID, добавленные конкурентно во время
// обработки, попадут в следующий запуск. Из хранилища атомарно удаляются
// только подтвержденно удаленные ID.
func (r *DeletionReconciler) Reconcile(ctx context.Context, recordType models.RecordType) (deleted int, failed int, err error) {
	pending, err := r.state.PendingDeletions(ctx, recordType)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read pending deletions: %w", err)
	}
	if len(pending) == 0 {
		return 0, 0, nil
	}

	succeeded := make([]string, 0, len(pending))
	for _, recordID := range pending {
		if err := r.ingest.Delete(ctx, recordType, recordID); err != nil {
			failed++
			deletionsReconciled.WithLabelValues(string(recordType), "error").Inc()
			r.logger.WarnWithContext(ctx, "Не удалось удалить запись в Brain Commerce, ID останется в очереди",
				interfaces.LogField{Key: "record_type", Value: string(recordType)},
				interfaces.LogField{Key: "record_id", Value: recordID},
				interfaces.LogField{Key: "error", Value: err.Error()},
			)
			continue
		}
		succeeded = append(succeeded, recordID)
		deletionsReconciled.WithLabelValues(string(recordType), "success").Inc()
	}

	if len(succeeded) > 0 {
		if err := r.state.RemovePendingDeletions(ctx, recordType, succeeded); err != nil {
			return len(succeeded), failed, fmt.Errorf("failed to remove reconciled deletions: %w", err)
		}
	}

	return len(succeeded), failed, nil
}
