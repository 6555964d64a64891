// Package validator checks caller-supplied values before they reach storage.
package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/moviebrain/internal/apperror"
)

// MovieInput is a movie as typed by the user or returned by a lookup.
type MovieInput struct {
	Title  string  `json:"title"  validate:"required,notblank,max=200"`
	Year   int     `json:"year"   validate:"gte=1870,lte=2100"`
	Rating float64 `json:"rating" validate:"gte=0,lte=10"`
	Poster string  `json:"poster" validate:"max=2048"`
}

// UserInput is a new catalog owner.
type UserInput struct {
	Name string `json:"name" validate:"required,notblank,max=64,username"`
}

// RatingInput is a new rating for an existing title.
type RatingInput struct {
	Title  string  `json:"title"  validate:"required,notblank"`
	Rating float64 `json:"rating" validate:"gte=0,lte=10"`
}

// MaxNoteLength is the longest note, in characters, NoteInput accepts.
const MaxNoteLength = 1000

// NoteInput is a user's private note on a title. max counts runes, not bytes.
type NoteInput struct {
	Note string `json:"note" validate:"max=1000"`
}

// Validator wraps the go-playground validator
type Validator struct {
	validate *validator.Validate
}

// FieldError is a single validation failure
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Tag     string `json:"tag"`
}

// FieldErrors is a collection of validation failures
type FieldErrors []FieldError

func (v FieldErrors) Error() string {
	messages := make([]string, 0, len(v))
	for _, err := range v {
		messages = append(messages, err.Message)
	}
	return strings.Join(messages, "; ")
}

var userNamePattern = regexp.MustCompile(`^[\p{L}\p{N} _.\-]+$`)

// New creates a new validator instance
func New() *Validator {
	v := validator.New()

	// Report fields by their json names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	v.RegisterValidation("notblank", validateNotBlank)
	v.RegisterValidation("username", validateUserName)

	return &Validator{validate: v}
}

// Validate checks a struct. Failures come back as an apperror.ErrValidation
// whose Field is the first offending field and whose Cause is the full
// FieldErrors list.
func (v *Validator) Validate(i interface{}) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperror.ValidationFailed("", err.Error())
	}

	fieldErrs := make(FieldErrors, 0, len(verrs))
	for _, fe := range verrs {
		fieldErrs = append(fieldErrs, FieldError{
			Field:   fe.Field(),
			Message: msgForTag(fe),
			Tag:     fe.Tag(),
		})
	}

	return &apperror.AppError{
		Err:     apperror.ErrValidation,
		Message: "invalid input",
		Field:   fieldErrs[0].Field,
		Cause:   fieldErrs,
	}
}

// msgForTag returns a human-readable error message for a validation tag
func msgForTag(fe validator.FieldError) string {
	field := fe.Field()

	switch fe.Tag() {
	case "required", "notblank":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "username":
		return fmt.Sprintf("%s may only contain letters, numbers, spaces and -_.", field)
	default:
		return fmt.Sprintf("%s failed validation (%s)", field, fe.Tag())
	}
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func validateUserName(fl validator.FieldLevel) bool {
	return userNamePattern.MatchString(fl.Field().String())
}
