// Souq - Multilingual Storefront and Admin Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/souq

// Package validation wraps go-playground/validator with the storefront's
// custom tags and converts failures into the API error shape.
//
//	type createProduct struct {
//	    Slug  string `json:"slug" validate:"omitempty,slug,max=120"`
//	    Price int64  `json:"price" validate:"gte=0"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    ...
//	}
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/language"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once

	slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	skuPattern  = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)
)

// FieldError describes one failed field.
type FieldError struct {
	Field   string
	Tag     string
	Param   string
	Message string
}

// RequestValidationError collects every failed field of a request.
type RequestValidationError struct {
	fields []FieldError
}

// Fields returns the individual failures.
func (e *RequestValidationError) Fields() []FieldError {
	return e.fields
}

// Error implements error.
func (e *RequestValidationError) Error() string {
	if len(e.fields) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(e.fields))
	for i, f := range e.fields {
		msgs[i] = f.Message
	}
	return strings.Join(msgs, "; ")
}

// APIError mirrors api.APIError without importing it.
type APIError struct {
	Code    string
	Message string
	Details map[string]interface{}
}

// ToAPIError converts the failure into a VALIDATION_ERROR payload.
func (e *RequestValidationError) ToAPIError() *APIError {
	fields := make(map[string]string, len(e.fields))
	for _, f := range e.fields {
		fields[f.Field] = f.Message
	}
	return &APIError{
		Code:    "VALIDATION_ERROR",
		Message: e.Error(),
		Details: map[string]interface{}{"fields": fields},
	}
}

// NewFieldError builds a single-field validation error for checks that
// cannot be expressed as struct tags (for example missing translations).
func NewFieldError(field, tag, message string) *RequestValidationError {
	return &RequestValidationError{fields: []FieldError{{Field: field, Tag: tag, Message: message}}}
}

// Get returns the shared validator, registering custom tags on first use.
func Get() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// Report JSON names so messages match request bodies.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})

		mustRegister("slug", func(fl validator.FieldLevel) bool {
			return slugPattern.MatchString(fl.Field().String())
		})
		mustRegister("sku", func(fl validator.FieldLevel) bool {
			return skuPattern.MatchString(fl.Field().String())
		})
		mustRegister("langcode", func(fl validator.FieldLevel) bool {
			return IsLanguageCode(fl.Field().String())
		})
	})
	return validate
}

func mustRegister(tag string, fn validator.Func) {
	if err := validate.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validation: register %s: %v", tag, err))
	}
}

// IsLanguageCode reports whether s is a short BCP 47 tag such as "en", "ar" or "pt-BR".
func IsLanguageCode(s string) bool {
	if s == "" || len(s) > 12 {
		return false
	}
	_, err := language.Parse(s)
	return err == nil
}

// IsSlug reports whether s is a lowercase, hyphen-separated slug.
func IsSlug(s string) bool {
	return slugPattern.MatchString(s)
}

// ValidateStruct validates s and returns nil or the collected failures.
func ValidateStruct(s interface{}) *RequestValidationError {
	err := Get().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return NewFieldError("request", "invalid", err.Error())
	}

	fields := make([]FieldError, len(verrs))
	for i, fe := range verrs {
		fields[i] = FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: message(fe),
		}
	}
	return &RequestValidationError{fields: fields}
}

var simpleMessages = map[string]string{
	"required": "%s is required",
	"email":    "%s must be a valid email address",
	"url":      "%s must be a valid URL",
	"slug":     "%s must contain only lowercase letters, digits and hyphens",
	"sku":      "%s must be a valid SKU",
	"langcode": "%s must be a language code such as en or ar",
	"iso4217":  "%s must be an ISO 4217 currency code",
	"uuid":     "%s must be a UUID",
}

var paramMessages = map[string]string{
	"oneof": "%s must be one of: %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
	"gt":    "%s must be greater than %s",
	"lt":    "%s must be less than %s",
}

func message(fe validator.FieldError) string {
	if tmpl, ok := simpleMessages[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, fe.Field())
	}
	if tmpl, ok := paramMessages[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, fe.Field(), fe.Param())
	}
	unit := ""
	if fe.Kind() == reflect.String {
		unit = " characters"
	}
	switch fe.Tag() {
	case "min":
		return fmt.Sprintf("%s must be at least %s%s", fe.Field(), fe.Param(), unit)
	case "max":
		return fmt.Sprintf("%s must be at most %s%s", fe.Field(), fe.Param(), unit)
	}
	return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
}
