// Package service contains the business logic of the blog.
//
// Handler (HTTP)  → parses forms, renders pages, sets flash messages
// Service         → validates input, enforces ownership, orchestrates
// Repository      → loads and saves whole collections
//
// Services accept plain values (never *http.Request) and return apperror
// kinds (never status codes), so the same logic runs behind the HTML pages,
// the JSON API and the "user create" command.
//
// CONCURRENCY:
// Each mutating call is load → change → save with no lock around it. Two
// requests that mutate the same collection at the same moment can lose one
// of the updates. That is the documented behaviour of this storage model.
package service

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/flatblog/internal/apperror"
)

// validate is shared by every service; *validator.Validate caches struct
// metadata and is safe for concurrent use.
var validate = newValidator()

// newValidator reports fields by their `form` tag, so messages say "title"
// (what the user typed into) rather than "Title".
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("form"); name != "" {
			return name
		}
		return f.Name
	})
	return v
}

// checkInput validates a struct with `validate` tags and converts the first
// failure into an apperror.ValidationFailed naming the offending field.
func checkInput(input any) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("validating input: %w", err)
	}

	fe := fieldErrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return apperror.ValidationFailed(field, fmt.Sprintf("%s is required", field))
	default:
		return apperror.ValidationFailed(field, fmt.Sprintf("%s is invalid", field))
	}
}
