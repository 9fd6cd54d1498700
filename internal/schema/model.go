package schema

import (
	"fmt"
	"strings"
)

// FieldType — закрытый набор типов полей. Любой другой тег — дефект схемы,
// а не данных: ParseFieldType его отбрасывает ещё на этапе определения.
type FieldType string

const (
	TypeInt      FieldType = "INT"
	TypeFloat    FieldType = "FLOAT"
	TypeVarchar  FieldType = "VARCHAR"
	TypeText     FieldType = "TEXT"
	TypeBoolean  FieldType = "BOOLEAN"
	TypeDate     FieldType = "DATE"
	TypeDatetime FieldType = "DATETIME"
)

// ParseFieldType нормализует тег типа (регистронезависимо).
func ParseFieldType(s string) (FieldType, error) {
	switch FieldType(strings.ToUpper(strings.TrimSpace(s))) {
	case TypeInt:
		return TypeInt, nil
	case TypeFloat:
		return TypeFloat, nil
	case TypeVarchar:
		return TypeVarchar, nil
	case TypeText:
		return TypeText, nil
	case TypeBoolean:
		return TypeBoolean, nil
	case TypeDate:
		return TypeDate, nil
	case TypeDatetime:
		return TypeDatetime, nil
	default:
		return "", fmt.Errorf("unknown field type %q", s)
	}
}

// Field описывает одно поле endpoint'а
type Field struct {
	ID         string    `json:"id"`
	EndpointID string    `json:"-"`
	Name       string    `json:"name"`
	Type       FieldType `json:"type"`
	Required   bool      `json:"required"`
	// Default — строковое значение по умолчанию; nil = дефолта нет.
	// Подставляется как есть, без повторной типизации.
	Default *string `json:"default,omitempty"`
}

// Endpoint описывает объявленный владельцем endpoint и его схему полей.
// Имя уникально в пределах владельца.
type Endpoint struct {
	ID      string  `json:"id"`
	OwnerID string  `json:"-"`
	Name    string  `json:"name"`
	Method  string  `json:"method"`
	Fields  []Field `json:"fields"`
}

// FieldByName возвращает поле по имени (идентичность поля — имя).
func (e *Endpoint) FieldByName(name string) (Field, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}
