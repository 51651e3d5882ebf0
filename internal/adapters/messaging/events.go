package messaging

// Типы команд запуска экспортных джобов (топик export-commands)
const (
	FullProductExportCommand  = "full_product_export"
	DeltaProductExportCommand = "delta_product_export"
	FullFaqExportCommand      = "full_faq_export"
	DeltaFaqExportCommand     = "delta_faq_export"
)

// Типы событий каталога (топик catalog-events)
const (
	ProductDeletedEvent = "product_deleted"
	FaqDeletedEvent     = "faq_deleted"
)
