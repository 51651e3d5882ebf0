package models

// AttributeRule описывает одно правило маппинга атрибута:
// значение sfccAttr (dot-путь в записи) копируется в поле brainCommerceAttr
// выходной записи; при отсутствии значения подставляется defaultValue.
// Формат повторяет JSON сайт-преференса fullProductAttributes.
type AttributeRule struct {
	BrainCommerceAttr string      `json:"brainCommerceAttr"`
	SfccAttr          string      `json:"sfccAttr"`
	DefaultValue      interface{} `json:"defaultValue,omitempty"`
}

// AttributeMapping описывает конфигурацию маппинга атрибутов записи.
// Правила применяются по порядку: сначала системные, затем пользовательские.
type AttributeMapping struct {
	SystemAttributes []AttributeRule `json:"systemAttributes"`
	CustomAttributes []AttributeRule `json:"customAttributes"`
}

// Empty сообщает, что конфигурация не содержит ни одного правила
func (m *AttributeMapping) Empty() bool {
	return m == nil || (len(m.SystemAttributes) == 0 && len(m.CustomAttributes) == 0)
}
