package category

import "strings"

// Fallback используется для записей без категории.
const Fallback = "other"

// Normalize приводит категорию к каноническому виду для сравнения бакетов.
// Две категории считаются одним бюджетом тогда и только тогда, когда их
// нормализованные формы совпадают.
func Normalize(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return Fallback
	}

	return normalized
}

// Same сравнивает две категории в нормализованной форме.
func Same(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// Display возвращает категорию для отображения, сохраняя исходный регистр.
func Display(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "Other"
	}

	return trimmed
}
