package api

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"

	"fabrika/internal/schema"
)

type FieldError struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Коды ошибок валидации
const (
	ErrRequired     = "required"
	ErrTypeMismatch = "type_mismatch"
	ErrMissingID    = "missing_id"
	ErrNotFound     = "not_found"
	ErrUnknownType  = "unknown_type"
)

func ferr(code, field, msg string) *FieldError {
	return &FieldError{Code: code, Field: field, Message: msg}
}

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`) // YYYY-MM-DD

// NormalizeValue валидирует сырое значение против объявленного типа и
// возвращает каноническое представление. switch закрыт по FieldType;
// неизвестный тег — дефект схемы, всегда отказ.
func NormalizeValue(v any, t schema.FieldType) (any, error) {
	switch t {
	case schema.TypeInt:
		// число без дробной части: "3" и 3 проходят, "3.5" — нет
		switch x := v.(type) {
		case float64:
			if x != math.Trunc(x) {
				return nil, errors.New("must be an integer")
			}
			return int64(x), nil
		case string:
			f, err := strconv.ParseFloat(x, 64)
			if err != nil || f != math.Trunc(f) {
				return nil, errors.New("must be an integer")
			}
			return int64(f), nil
		default:
			return nil, errors.New("must be an integer")
		}

	case schema.TypeFloat:
		switch x := v.(type) {
		case float64:
			return x, nil
		case string:
			f, err := strconv.ParseFloat(x, 64)
			if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
				return nil, errors.New("must be a number")
			}
			return f, nil
		default:
			return nil, errors.New("must be a number")
		}

	case schema.TypeVarchar, schema.TypeText:
		s, ok := v.(string)
		if !ok {
			return nil, errors.New("must be a string")
		}
		return s, nil

	case schema.TypeBoolean:
		// литерал true/false либо строки "true"/"false" (регистр значим)
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			if x == "true" {
				return true, nil
			}
			if x == "false" {
				return false, nil
			}
			return nil, errors.New("must be a boolean")
		default:
			return nil, errors.New("must be a boolean")
		}

	case schema.TypeDate:
		s, ok := v.(string)
		if !ok || !dateRe.MatchString(s) {
			return nil, errors.New("must match YYYY-MM-DD")
		}
		if _, err := time.Parse("2006-01-02", s); err != nil {
			return nil, errors.New("invalid date")
		}
		return s, nil // строка хранится как есть — round-trip без изменений

	case schema.TypeDatetime:
		s, ok := v.(string)
		if !ok {
			return nil, errors.New("must be RFC3339 datetime")
		}
		if _, err := time.Parse(time.RFC3339, s); err != nil {
			return nil, errors.New("must be RFC3339 datetime")
		}
		return s, nil

	default:
		return nil, fmt.Errorf("unknown field type %q", t)
	}
}

// absent/null/"" считаются отсутствием значения (для required/default)
func isEmpty(v any, present bool) bool {
	if !present || v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// BuildCreatePayload собирает нормализованный payload по полному списку полей.
// Fail-fast: первая же ошибка прерывает операцию целиком. Необъявленные
// ключи body молча отбрасываются.
func BuildCreatePayload(fields []schema.Field, body map[string]any) (map[string]any, *FieldError) {
	payload := make(map[string]any, len(fields))
	for _, f := range fields {
		v, present := body[f.Name]
		if isEmpty(v, present) {
			if f.Default != nil {
				// дефолт подставляется как есть, без повторной типизации
				payload[f.Name] = *f.Default
				continue
			}
			if f.Required {
				return nil, ferr(ErrRequired, f.Name, "Field '"+f.Name+"' is required")
			}
			continue
		}
		norm, err := NormalizeValue(v, f.Type)
		if err != nil {
			return nil, typeError(f, err)
		}
		payload[f.Name] = norm
	}
	return payload, nil
}

// BuildUpdatePatch нормализует только присланные поля. Политика
// required/default на update не действует: пропущенные поля не трогаем.
func BuildUpdatePatch(fields []schema.Field, body map[string]any) (map[string]any, *FieldError) {
	patch := make(map[string]any, len(body))
	for _, f := range fields {
		v, present := body[f.Name]
		if !present {
			continue
		}
		norm, err := NormalizeValue(v, f.Type)
		if err != nil {
			return nil, typeError(f, err)
		}
		patch[f.Name] = norm
	}
	return patch, nil
}

func typeError(f schema.Field, err error) *FieldError {
	return ferr(ErrTypeMismatch, f.Name,
		fmt.Sprintf("Field '%s' expected %s: %s", f.Name, f.Type, err.Error()))
}
