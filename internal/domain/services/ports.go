package services

import (
	"context"
	"time"

	"github.com/rezolved/salesforce-brain-commerce/internal/domain/models"
)

// RecordSource - ленивый однопроходный источник записей каталога.
// Next возвращает (nil, nil), когда записи закончились. Повторный проход не поддерживается.
type RecordSource interface {
	Next(ctx context.Context) (models.CatalogRecord, error)
	Close()
}

// CatalogStore определяет доступ ядра экспорта к каталогу. Каталог только читается.
type CatalogStore interface {
	// ProductRecords возвращает источник всех продуктов сайта
	ProductRecords(ctx context.Context) (RecordSource, error)

	// FaqRecords возвращает источник всех записей FAQ
	FaqRecords(ctx context.Context) (RecordSource, error)

	// MasterProduct возвращает мастер-продукт по ID.
	// Возвращает nil, nil если продукт не найден.
	MasterProduct(ctx context.Context, productID string) (*models.Product, error)

	// AttributeMapping возвращает конфигурацию маппинга атрибутов продукта
	AttributeMapping(ctx context.Context) (*models.AttributeMapping, error)
}

// ExportState определяет долговременное состояние экспорта: чекпоинты запусков,
// снапшоты выгруженного состояния продуктов и очередь отложенных удалений.
type ExportState interface {
	// Checkpoint возвращает время старта последнего успешного запуска выгрузки.
	// Возвращает nil, nil если выгрузка еще не выполнялась (выгружать всё).
	Checkpoint(ctx context.Context, siteID string, recordType models.RecordType) (*time.Time, error)

	// SetCheckpoint сохраняет время старта запуска. Значение монотонно не убывает.
	SetCheckpoint(ctx context.Context, siteID string, recordType models.RecordType, ts time.Time) error

	// Snapshot возвращает кортеж последнего выгруженного состояния продукта для сайта
	// в формате "<availability>|<listPrice>|<salePrice>". Пустая строка - снапшота нет.
	Snapshot(ctx context.Context, siteID string, productID string) (string, error)

	// SetSnapshots атомарно сохраняет снапшоты продуктов одного батча.
	// Вызывается только после подтвержденной отправки батча.
	SetSnapshots(ctx context.Context, siteID string, entries map[string]string) error

	// PendingDeletions возвращает ID записей, ожидающих удаления в Brain Commerce
	PendingDeletions(ctx context.Context, recordType models.RecordType) ([]string, error)

	// RemovePendingDeletions атомарно удаляет из очереди только подтвержденно удаленные ID
	RemovePendingDeletions(ctx context.Context, recordType models.RecordType, ids []string) error

	// AddPendingDeletion добавляет ID записи в очередь удалений
	AddPendingDeletion(ctx context.Context, recordType models.RecordType, recordID string) error
}

// IngestPort определяет транспорт к сервису Brain Commerce.
// Вызовы синхронные, политика таймаутов - на стороне реализации.
type IngestPort interface {
	// Send отправляет батч записей (не более размера чанка)
	Send(ctx context.Context, recordType models.RecordType, records []models.IngestRecord) error

	// Delete удаляет одну запись по ID
	Delete(ctx context.Context, recordType models.RecordType, recordID string) error

	// ResetCollection сбрасывает удаленную коллекцию перед полной выгрузкой
	ResetCollection(ctx context.Context, recordType models.RecordType) error
}

// SnapshotReader - читающая часть ExportState, достаточная для детектора изменений
type SnapshotReader interface {
	Snapshot(ctx context.Context, siteID string, productID string) (string, error)
}
