package schema

import (
	"fmt"
	"strings"
)

type Issue struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// id зарезервирован: сгенерированный идентификатор всегда побеждает при чтении,
// пользовательское поле с таким именем было бы недостижимо.
var reservedFieldNames = map[string]struct{}{
	"id": {},
}

// LintDefinition проверяет определение endpoint'а до записи в реестр.
// Все найденные проблемы — ошибки авторинга схемы (400), не данных.
func LintDefinition(e *Endpoint) []Issue {
	var issues []Issue

	if strings.TrimSpace(e.Name) == "" {
		issues = append(issues, Issue{
			Field:   "name",
			Code:    "name_empty",
			Message: "endpoint name must not be empty",
		})
	}

	seen := map[string]struct{}{}
	for _, f := range e.Fields {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			issues = append(issues, Issue{
				Field:   f.Name,
				Code:    "field_name_empty",
				Message: "field name must not be empty",
			})
			continue
		}
		if _, ok := reservedFieldNames[strings.ToLower(name)]; ok {
			issues = append(issues, Issue{
				Field:   name,
				Code:    "field_name_reserved",
				Message: fmt.Sprintf("field name %q is reserved", name),
			})
		}
		if _, dup := seen[name]; dup {
			issues = append(issues, Issue{
				Field:   name,
				Code:    "field_name_duplicate",
				Message: fmt.Sprintf("field %q is declared twice", name),
			})
		}
		seen[name] = struct{}{}

		if _, err := ParseFieldType(string(f.Type)); err != nil {
			issues = append(issues, Issue{
				Field:   name,
				Code:    "field_type_unknown",
				Message: err.Error(),
			})
		}
	}
	return issues
}
