package models

import (
	"time"
)

// RecordType определяет тип записи каталога, выгружаемой в Brain Commerce
type RecordType string

const (
	ProductRecordType RecordType = "product"
	FaqRecordType     RecordType = "faq"
)

// ProductType определяет вид продукта в каталоге
type ProductType string

const (
	StandardProduct       ProductType = "standard"
	MasterProduct         ProductType = "master"
	VariantProduct        ProductType = "variant"
	BundleProduct         ProductType = "bundle"
	ProductSet            ProductType = "set"
	VariationGroupProduct ProductType = "variation_group"
)

// CatalogRecord - общий интерфейс записей каталога (продукт или FAQ).
// Ядро экспорта читает записи только через этот интерфейс.
type CatalogRecord interface {
	// RecordID возвращает идентификатор записи
	RecordID() string

	// RecordLastModified возвращает время последнего изменения записи
	RecordLastModified() time.Time

	// RecordType возвращает тип записи
	RecordType() RecordType
}

// PriceEntry представляет цены продукта в рамках одного прайсбука
type PriceEntry struct {
	ListPrice float64 `json:"list_price"`
	SalePrice float64 `json:"sale_price"`
	Currency  string  `json:"currency,omitempty"`
}

// CategoryPath представляет путь категории от корня до листа.
// Корневой узел каталога в путь не входит.
type CategoryPath struct {
	CategoryID string   `json:"category_id"`
	Names      []string `json:"names"`
}

// Product представляет продукт каталога, подлежащий выгрузке.
// Запись принадлежит внешней каталожной системе, ядро экспорта её только читает.
type Product struct {
	ID           string      `json:"id"`
	Type         ProductType `json:"type"`
	MasterID     string      `json:"master_id,omitempty"` // ID мастер-продукта (для вариантов)
	LastModified time.Time   `json:"last_modified"`
	Online       bool        `json:"online"`
	Searchable   bool        `json:"searchable"`

	// System хранит системные атрибуты продукта (доступ по dot-пути)
	System map[string]interface{} `json:"system,omitempty"`
	// Custom хранит пользовательские атрибуты продукта (доступ по dot-пути)
	Custom map[string]interface{} `json:"custom,omitempty"`

	// Availability хранит сырой статус доступности ("IN_STOCK", "OUT_OF_STOCK" и т.д.)
	Availability string `json:"availability,omitempty"`

	// Prices хранит цены по ID прайсбука
	Prices map[string]PriceEntry `json:"prices,omitempty"`
	// VariantPrices хранит цены вариантов мастер-продукта,
	// используется как fallback при отсутствии собственной цены мастера
	VariantPrices []PriceEntry `json:"variant_prices,omitempty"`

	Categories []CategoryPath `json:"categories,omitempty"`
	// Images хранит абсолютные URL изображений по типу представления ("large", "medium" и т.д.)
	Images map[string]string `json:"images,omitempty"`
}

// RecordID реализует CatalogRecord
func (p *Product) RecordID() string { return p.ID }

// RecordLastModified реализует CatalogRecord
func (p *Product) RecordLastModified() time.Time { return p.LastModified }

// RecordType реализует CatalogRecord
func (p *Product) RecordType() RecordType { return ProductRecordType }

// IsVariant сообщает, является ли продукт вариантом мастер-продукта
func (p *Product) IsVariant() bool {
	return p.Type == VariantProduct && p.MasterID != ""
}

// Exportable сообщает, подлежит ли продукт выгрузке как самостоятельная запись.
// Бандлы, наборы и группы вариаций в Brain Commerce не выгружаются.
func (p *Product) Exportable() bool {
	switch p.Type {
	case BundleProduct, ProductSet, VariationGroupProduct:
		return false
	default:
		return true
	}
}
