// KubePulse - Kubernetes Cluster Observability Dashboard
// Copyright 2026 KubePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dhanush6701/kubepulse

// Package validation provides struct validation using go-playground/validator
// v10 behind a thread-safe singleton. Request DTOs are validated here before
// any external call is made.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// instance returns the singleton validator, creating it on first use.
func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// FieldError describes a single failed field.
type FieldError struct {
	Field   string
	Tag     string
	Message string
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	return e.Message
}

// Errors aggregates all failed fields of one struct.
type Errors struct {
	fields []*FieldError
}

// Fields returns the individual field errors.
func (e *Errors) Fields() []*FieldError {
	return e.fields
}

// Error implements the error interface.
func (e *Errors) Error() string {
	msgs := make([]string, 0, len(e.fields))
	for _, f := range e.fields {
		msgs = append(msgs, f.Message)
	}
	return strings.Join(msgs, "; ")
}

// ValidateStruct validates a struct and returns nil or an *Errors.
func ValidateStruct(s any) error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		// InvalidValidationError: caller passed something unvalidatable
		return err
	}

	out := &Errors{fields: make([]*FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.fields = append(out.fields, &FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Message: describe(fe),
		})
	}
	return out
}

// describe builds a human-readable message for one field error.
func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("field %q is required", fe.Field())
	case "min":
		return fmt.Sprintf("field %q must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("field %q must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("field %q must be one of [%s]", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("field %q failed validation rule %q", fe.Field(), fe.Tag())
	}
}
