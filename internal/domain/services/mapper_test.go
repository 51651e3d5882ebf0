package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezolved/salesforce-brain-commerce/internal/domain/models"
)

func TestMapProduct_AppliesMappingRulesAndDerivedFields(t *testing.T) {
	mapper := NewAttributeMapper(testMapperConfig())

	product := testProduct("prod-1", time.Now())
	product.Custom = map[string]interface{}{
		"marketing": map[string]interface{}{"tagline": "Best seller"},
	}
	product.Categories = []models.CategoryPath{
		{CategoryID: "mens-shoes", Names: []string{"Mens", "Shoes"}},
		{CategoryID: "sale", Names: []string{"Sale"}},
	}
	product.Images = map[string]string{
		"medium": "https://img.example.com/prod-1-medium.jpg",
		"large":  "https://img.example.com/prod-1-large.jpg",
	}

	mapping := &models.AttributeMapping{
		SystemAttributes: []models.AttributeRule{
			{BrainCommerceAttr: "title", SfccAttr: "name"},
			{BrainCommerceAttr: "brand", SfccAttr: "brand", DefaultValue: "NoName"},
		},
		CustomAttributes: []models.AttributeRule{
			{BrainCommerceAttr: "tagline", SfccAttr: "marketing.tagline"},
		},
	}

	record := mapper.MapProduct(product, mapping)

	assert.Equal(t, "Product prod-1", record["title"])
	assert.Equal(t, "NoName", record["brand"], "отсутствующий атрибут заменяется значением по умолчанию")
	assert.Equal(t, "Best seller", record["tagline"], "dot-путь достает вложенное значение")

	assert.Equal(t, "prod-1", record["id"])
	assert.Equal(t, "in_stock", record["availability"])
	assert.Equal(t, "true", record["product_status"])
	assert.Equal(t, "Mens/Shoes,Sale", record["category"])
	assert.Equal(t, 100.0, record["list_price"])
	assert.Equal(t, 90.0, record["sale_price"])
	assert.Equal(t, "USD", record["currency"])
	assert.Equal(t, "https://shop.example.com/Product-Show?pid=prod-1", record["link"])
	assert.Equal(t, "https://img.example.com/prod-1-large.jpg", record["image_link"], "выбирается первый тип из настроенного порядка")

	_, hasGroup := record["item_group_id"]
	assert.False(t, hasGroup, "одиночный продукт не группируется")
}

func TestMapProduct_ItemGroupID(t *testing.T) {
	mapper := NewAttributeMapper(testMapperConfig())

	variant := testProduct("var-1", time.Now())
	variant.Type = models.VariantProduct
	variant.MasterID = "master-1"

	master := testProduct("master-1", time.Now())
	master.Type = models.MasterProduct

	assert.Equal(t, "master-1", mapper.MapProduct(variant, nil)["item_group_id"])
	assert.Equal(t, "master-1", mapper.MapProduct(master, nil)["item_group_id"], "мастер указывает на самого себя")
}

func TestMapProduct_OfflineAndOutOfStock(t *testing.T) {
	mapper := NewAttributeMapper(testMapperConfig())

	product := testProduct("prod-2", time.Now())
	product.Online = false
	product.Availability = "OUT_OF_STOCK"

	record := mapper.MapProduct(product, nil)

	assert.Equal(t, "out_of_stock", record["availability"])
	assert.Equal(t, "false", record["product_status"])
}

func TestMapProduct_MasterFallsBackToMinVariantPrice(t *testing.T) {
	mapper := NewAttributeMapper(testMapperConfig())

	master := testProduct("master-1", time.Now())
	master.Type = models.MasterProduct
	master.Prices = nil
	master.VariantPrices = []models.PriceEntry{
		{ListPrice: 120, SalePrice: 110, Currency: "USD"},
		{ListPrice: 80, SalePrice: 75, Currency: "USD"},
		{ListPrice: 95, SalePrice: 90, Currency: "USD"},
	}

	record := mapper.MapProduct(master, nil)

	assert.Equal(t, 80.0, record["list_price"])
	assert.Equal(t, 75.0, record["sale_price"])
}

func TestWithListPriceBook_OverridesForSingleRun(t *testing.T) {
	base := NewAttributeMapper(testMapperConfig())

	product := testProduct("prod-3", time.Now())
	product.Prices["eur-list-prices"] = models.PriceEntry{ListPrice: 85, SalePrice: 70, Currency: "EUR"}

	overridden := base.WithListPriceBook("eur-list-prices")
	record := overridden.MapProduct(product, nil)
	require.Equal(t, 85.0, record["list_price"])
	require.Equal(t, "EUR", record["currency"])

	// Исходный маппер не затронут
	record = base.MapProduct(product, nil)
	assert.Equal(t, 100.0, record["list_price"])

	assert.Same(t, base, base.WithListPriceBook(""), "пустое переопределение возвращает исходный маппер")
}

func TestMapFaq(t *testing.T) {
	mapper := NewAttributeMapper(testMapperConfig())

	faq := &models.FAQ{
		ID:       "faq-1",
		Question: "How do I return an item?",
		Answer:   "Use the returns portal.",
	}

	record := mapper.MapFaq(faq)

	assert.Equal(t, "How do I return an item?", record["question"])
	assert.Equal(t, "Use the returns portal.", record["answer"])
	assert.Equal(t, "Use the returns portal.", record["text"])
	assert.Equal(t, 0, record["internal_id"])
}

func TestStateTuple(t *testing.T) {
	mapper := NewAttributeMapper(testMapperConfig())

	product := testProduct("prod-4", time.Now())
	assert.Equal(t, "IN_STOCK|100|90", mapper.StateTuple(product))

	product.Prices["usd-list-prices"] = models.PriceEntry{ListPrice: 100.5, SalePrice: 89.99}
	assert.Equal(t, "IN_STOCK|100.5|89.99", mapper.StateTuple(product))
}

func TestSafeGetProp(t *testing.T) {
	object := map[string]interface{}{
		"a": map[string]interface{}{
			"b": map[string]interface{}{"c": 42},
			"n": nil,
		},
	}

	assert.Equal(t, 42, safeGetProp(object, "a.b.c", "fallback"))
	assert.Equal(t, "fallback", safeGetProp(object, "a.b.missing", "fallback"))
	assert.Equal(t, "fallback", safeGetProp(object, "a.n.c", "fallback"), "nil в середине пути")
	assert.Equal(t, "fallback", safeGetProp(object, "a.b.c.d", "fallback"), "скаляр в середине пути")
	assert.Equal(t, "fallback", safeGetProp(nil, "a", "fallback"))
}
