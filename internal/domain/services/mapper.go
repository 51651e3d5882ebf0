package services

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/rezolved/salesforce-brain-commerce/internal/domain/models"
)

// MapperConfig содержит параметры формирования выгружаемых записей
type MapperConfig struct {
	SiteID            string
	ListPriceBookID   string
	ImageViewTypes    []string // порядок предпочтения типов изображений
	StorefrontBaseURL string
	DefaultCurrency   string
}

// AttributeMapper преобразует запись каталога в плоскую запись для Brain Commerce
// согласно конфигурации маппинга атрибутов. Без состояния и побочных эффектов.
type AttributeMapper struct {
	cfg MapperConfig
}

// NewAttributeMapper создает новый маппер атрибутов
func NewAttributeMapper(cfg MapperConfig) *AttributeMapper {
	return &AttributeMapper{cfg: cfg}
}

// WithListPriceBook возвращает копию маппера с переопределенным прайсбуком
func (m *AttributeMapper) WithListPriceBook(priceBookID string) *AttributeMapper {
	if priceBookID == "" {
		return m
	}
	cfg := m.cfg
	cfg.ListPriceBookID = priceBookID
	return &AttributeMapper{cfg: cfg}
}

// MapProduct формирует выгружаемую запись продукта: применяет правила маппинга
// и добавляет вычисляемые поля (доступность, цены, категории, ссылки).
func (m *AttributeMapper) MapProduct(product *models.Product, mapping *models.AttributeMapping) models.IngestRecord {
	record := models.IngestRecord{}
	if mapping == nil {
		mapping = &models.AttributeMapping{}
	}

	// Системные атрибуты
	for _, rule := range mapping.SystemAttributes {
		if rule.BrainCommerceAttr == "" || rule.SfccAttr == "" {
			continue
		}
		record[rule.BrainCommerceAttr] = resolveAttribute(product.System, rule)
	}

	// Пользовательские атрибуты
	for _, rule := range mapping.CustomAttributes {
		if rule.BrainCommerceAttr == "" || rule.SfccAttr == "" {
			continue
		}
		record[rule.BrainCommerceAttr] = resolveAttribute(product.Custom, rule)
	}

	// Вычисляемые поля
	record["id"] = product.ID
	record["availability"] = normalizeAvailability(rawAvailability(record, product))
	record["product_status"] = normalizeStatus(record, product)
	record["category"] = joinCategoryPaths(product.Categories)

	price, currency := m.resolvePrice(product)
	record["list_price"] = price.ListPrice
	record["sale_price"] = price.SalePrice
	record["currency"] = currency

	record["link"] = m.productLink(product.ID)
	record["image_link"] = m.pickImage(product)

	// Группировка вариантов с мастер-продуктом на стороне Brain Commerce
	if product.IsVariant() {
		record["item_group_id"] = product.MasterID
	} else if product.Type == models.MasterProduct {
		record["item_group_id"] = product.ID
	}

	return record
}

// MapFaq формирует выгружаемую запись FAQ
func (m *AttributeMapper) MapFaq(faq *models.FAQ) models.IngestRecord {
	return models.IngestRecord{
		"question":    faq.Question,
		"answer":      faq.Answer,
		"text":        faq.Answer,
		"internal_id": 0,
	}
}

// StateTuple вычисляет кортеж текущего состояния продукта для снапшота
// в формате "<availability>|<listPrice>|<salePrice>".
func (m *AttributeMapper) StateTuple(product *models.Product) string {
	price, _ := m.resolvePrice(product)
	return fmt.Sprintf("%s|%s|%s",
		product.Availability,
		formatPrice(price.ListPrice),
		formatPrice(price.SalePrice),
	)
}

// resolvePrice возвращает цены продукта по настроенному прайсбуку.
// Для мастер-продукта без собственной цены берется минимальная цена варианта.
func (m *AttributeMapper) resolvePrice(product *models.Product) (models.PriceEntry, string) {
	entry, ok := product.Prices[m.cfg.ListPriceBookID]
	if !ok && product.Type == models.MasterProduct {
		entry = minVariantPrice(product.VariantPrices)
	}

	currency := entry.Currency
	if currency == "" {
		currency = m.cfg.DefaultCurrency
	}
	return entry, currency
}

// productLink возвращает каноническую ссылку на страницу продукта
func (m *AttributeMapper) productLink(productID string) string {
	if m.cfg.StorefrontBaseURL == "" {
		return ""
	}
	base := strings.TrimSuffix(m.cfg.StorefrontBaseURL, "/")
	return base + "/Product-Show?pid=" + url.QueryEscape(productID)
}

// pickImage выбирает первое доступное изображение по настроенному порядку типов
func (m *AttributeMapper) pickImage(product *models.Product) string {
	for _, viewType := range m.cfg.ImageViewTypes {
		if link := product.Images[viewType]; link != "" {
			return link
		}
	}
	return ""
}

// resolveAttribute вычисляет значение одного правила маппинга
func resolveAttribute(source map[string]interface{}, rule models.AttributeRule) interface{} {
	defaultValue := rule.DefaultValue
	if defaultValue == nil {
		defaultValue = ""
	}

	value := safeGetProp(source, rule.SfccAttr, defaultValue)
	if value == nil || value == "" {
		return defaultValue
	}
	return value
}

// safeGetProp извлекает вложенное значение по dot-пути.
// Если какой-либо сегмент пути отсутствует или равен nil, возвращается defaultValue.
func safeGetProp(object map[string]interface{}, chain string, defaultValue interface{}) interface{} {
	if object == nil {
		return defaultValue
	}
	if chain == "" {
		return defaultValue
	}

	var current interface{} = object
	for _, prop := range strings.Split(chain, ".") {
		node, ok := current.(map[string]interface{})
		if !ok {
			return defaultValue
		}
		value, ok := node[prop]
		if !ok || value == nil {
			return defaultValue
		}
		current = value
	}
	return current
}

// rawAvailability возвращает сырой статус доступности: замапленное значение
// имеет приоритет над типизированным полем записи
func rawAvailability(record models.IngestRecord, product *models.Product) string {
	if v, ok := record["availability"].(string); ok && v != "" {
		return v
	}
	return product.Availability
}

// normalizeAvailability нормализует статус доступности для Brain Commerce
func normalizeAvailability(raw string) string {
	if raw == "IN_STOCK" {
		return "in_stock"
	}
	return "out_of_stock"
}

// normalizeStatus нормализует булев статус продукта в строку
func normalizeStatus(record models.IngestRecord, product *models.Product) string {
	if v, ok := record["product_status"].(bool); ok {
		return strconv.FormatBool(v)
	}
	return strconv.FormatBool(product.Online)
}

// joinCategoryPaths форматирует пути категорий: сегменты пути соединяются "/",
// пути разных категорий - запятой. Корневой узел в путь не входит.
func joinCategoryPaths(categories []models.CategoryPath) string {
	if len(categories) == 0 {
		return ""
	}
	paths := make([]string, 0, len(categories))
	for _, category := range categories {
		if len(category.Names) == 0 {
			continue
		}
		paths = append(paths, strings.Join(category.Names, "/"))
	}
	return strings.Join(paths, ",")
}

// minVariantPrice возвращает цену варианта с минимальной list price
func minVariantPrice(prices []models.PriceEntry) models.PriceEntry {
	var min models.PriceEntry
	for i, price := range prices {
		if i == 0 || price.ListPrice < min.ListPrice {
			min = price
		}
	}
	return min
}

// formatPrice форматирует цену для кортежа снапшота
func formatPrice(price float64) string {
	return strconv.FormatFloat(price, 'f', -1, 64)
}
