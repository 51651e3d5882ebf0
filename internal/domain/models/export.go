package models

import "time"

// IngestRecord представляет плоскую запись, отправляемую в сервис Brain Commerce
type IngestRecord map[string]interface{}

// ExportMode определяет режим выгрузки
type ExportMode int

const (
	// FullExport - полная выгрузка: удаленная коллекция сбрасывается и каталог отправляется целиком
	FullExport ExportMode = iota
	// DeltaExport - выгрузка только записей, изменившихся с момента последнего запуска
	DeltaExport
)

// String возвращает строковое представление режима
func (m ExportMode) String() string {
	if m == FullExport {
		return "full"
	}
	return "delta"
}

// PendingDeletion представляет запись, ожидающую удаления в Brain Commerce
type PendingDeletion struct {
	RecordType RecordType `json:"record_type"`
	RecordID   string     `json:"record_id"`
	EnqueuedAt time.Time  `json:"enqueued_at"`
}

// JobOutcome определяет итоговый статус джоба
type JobOutcome string

const (
	JobOK    JobOutcome = "OK"
	JobError JobOutcome = "ERROR"
)

// JobStatus представляет результат запуска экспортного джоба.
// Ошибки не покидают границу джоба: планировщик видит только этот статус.
type JobStatus struct {
	Outcome   JobOutcome `json:"outcome"`
	Message   string     `json:"message"`
	Processed int        `json:"processed"`
}

// ---------------------------- KAFKA MODELS ----------------------------

// ExportCommand представляет команду запуска экспортного джоба, полученную из Kafka
type ExportCommand struct {
	CommandType     string  `json:"command_type"`
	SiteID          string  `json:"site_id,omitempty"`
	DataPriorHours  float64 `json:"data_prior_to_hours,omitempty"`
	ListPriceBookID string  `json:"list_price_book_id,omitempty"`
}

// CatalogEvent представляет событие каталога (создание/изменение/удаление записи)
type CatalogEvent struct {
	EventType  string     `json:"event_type"`
	RecordType RecordType `json:"record_type"`
	RecordID   string     `json:"record_id"`
	SiteID     string     `json:"site_id,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}
