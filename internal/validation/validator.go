// Sentinel - Retail Loss Prevention Event Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

// Package validation wraps go-playground/validator v10 with a shared
// instance and flattened error messages.
//
//	type AnomalyQuery struct {
//	    Limit int `validate:"min=1,max=1000"`
//	}
//	if err := validation.ValidateStruct(&q); err != nil { ... }
package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/tomtom215/sentinel/internal/models"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError describes one failed constraint.
type FieldError struct {
	Field string
	Tag   string
	Param string
}

func (e FieldError) String() string {
	if e.Param != "" {
		return fmt.Sprintf("%s failed %s=%s", e.Field, e.Tag, e.Param)
	}
	return fmt.Sprintf("%s failed %s", e.Field, e.Tag)
}

// Error collects every FieldError from one Struct call.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}
	return strings.Join(parts, "; ")
}

// Validator returns the process-wide validator instance.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Registration only fails for an empty tag or nil func.
		_ = validate.RegisterValidation("event_name", isEventName)
	})
	return validate
}

// ValidateStruct returns nil or an *Error listing each failing field by its
// namespaced path (e.g. "Config.Detection.MaxEntries").
func ValidateStruct(s any) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate: %w", err)
	}

	out := &Error{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field: fe.Namespace(),
			Tag:   fe.Tag(),
			Param: fe.Param(),
		})
	}
	return out
}

// isEventName accepts the wire names in models.EventNames. Use it with
// omitempty for optional filters.
func isEventName(fl validator.FieldLevel) bool {
	name := models.EventName(fl.Field().String())
	for _, n := range models.EventNames {
		if n == name {
			return true
		}
	}
	return false
}
