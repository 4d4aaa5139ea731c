// Package validation validates request payloads against their struct tags.
//
// It wraps go-playground/validator so that failures come back as a single
// apperror validation error whose Fields map is keyed by the JSON field
// names the client sent, with Turkish messages.
//
// # Usage Example
//
//	v := validation.New()
//	e.Validator = v
//	...
//	if err := c.Validate(&input); err != nil {
//	    return err // 400 with per-field messages
//	}
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"evalgo.org/mdm/internal/apperror"
)

// Validator validates request DTOs. It satisfies echo.Validator.
type Validator struct {
	// structValidator validates Go struct constraints and tags
	structValidator *validator.Validate
}

// New creates a Validator that reports fields by their JSON names.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return &Validator{structValidator: v}
}

// Validate checks i and returns an *apperror.Error describing every failed
// field, or nil.
func (v *Validator) Validate(i interface{}) error {
	err := v.structValidator.Struct(i)
	if err == nil {
		return nil
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return apperror.Internal(err)
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperror.Validation(err.Error())
	}

	fields := make(map[string]string, len(fieldErrs))
	names := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		name := fieldPath(fe)
		if _, seen := fields[name]; !seen {
			names = append(names, name)
		}
		fields[name] = message(fe)
	}
	sort.Strings(names)
	return apperror.Validationf("Geçersiz alanlar: %s", strings.Join(names, ", ")).WithFields(fields)
}

// fieldPath drops the top level struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "zorunlu"
	case "email":
		return "geçerli bir e-posta adresi olmalı"
	case "oneof":
		return fmt.Sprintf("şunlardan biri olmalı: %s", fe.Param())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("en az %s karakter olmalı", fe.Param())
		}
		return fmt.Sprintf("en az %s olmalı", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("en fazla %s karakter olmalı", fe.Param())
		}
		return fmt.Sprintf("en fazla %s olmalı", fe.Param())
	}
	return fmt.Sprintf("%s kuralına uymuyor", fe.Tag())
}
