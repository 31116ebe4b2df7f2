// Package validation validates request structs with go-playground/validator.
package validation

import (
	"errors"
	"fmt"
	"github.com/go-playground/validator/v10"
	"github.com/rookgm/tableorder/internal/models"
	"reflect"
	"strings"
	"sync"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError is one failed rule
type FieldError struct {
	Field string `json:"field"`
	Tag   string `json:"tag"`
	Param string `json:"param,omitempty"`
}

func (fe FieldError) String() string {
	switch fe.Tag {
	case "required":
		return fe.Field + " is required"
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field, fe.Param)
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field, fe.Param)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field, fe.Param)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field, fe.Param)
	case "email":
		return fe.Field + " must be a valid email"
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field, fe.Tag)
	}
}

// Error collects the failed rules of a struct. It matches models.ErrValidation.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.String())
	}
	return strings.Join(msgs, "; ")
}

func (e *Error) Is(target error) bool {
	return target == models.ErrValidation
}

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// report json names
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// Struct validates s
func Struct(s any) error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", models.ErrValidation, err)
	}

	out := &Error{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field: fe.Namespace()[strings.Index(fe.Namespace(), ".")+1:],
			Tag:   fe.Tag(),
			Param: fe.Param(),
		})
	}

	return out
}
