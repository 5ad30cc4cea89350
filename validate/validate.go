// Package validate checks configuration values against the validation
// tags declared on their struct fields.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// validate holds the settings and caches for validating structs.
var validate *validator.Validate

// translator is a cache of locale and translation information.
var translator ut.Translator

func init() {
	// Instantiate a validator.
	validate = validator.New()

	// Instantiate the english locale for the validator library.
	var ok bool
	translator, ok = ut.New(en.New(), en.New()).GetTranslator("en")
	if !ok {
		panic("validate: failed to get 'en' translator")
	}

	// Register the english error messages for use.
	if err := en_translations.RegisterDefaultTranslations(validate, translator); err != nil {
		panic(err)
	}

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}

		return name
	})
}

// Check the provided value against its declared tags.
func Check(val any) error {
	if err := validate.Struct(val); err != nil {
		verrors, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}

		var fields FieldErrors
		for _, verror := range verrors {
			field := FieldError{
				Field: verror.Field(),
				Err:   errForTag(verror),
			}
			fields = append(fields, field)
		}

		return fields
	}

	return nil
}

// errForTag returns a friendlier message for the bounds tags that
// configuration structs lean on, deferring to the library's
// translation for everything else.
func errForTag(verror validator.FieldError) string {
	switch verror.Tag() {
	case "required":
		return "This field is required"
	case "gte":
		return "Must be at least " + verror.Param()
	case "lte":
		return "Must be at most " + verror.Param()
	default:
		return verror.Translate(translator)
	}
}

// FieldError is used to indicate an error with a specific field.
type FieldError struct {
	Field string `json:"field"`
	Err   string `json:"error"`
}

// FieldErrors represents a collection of field errors.
type FieldErrors []FieldError

// Error implements the error interface.
func (fe FieldErrors) Error() string {
	var sb strings.Builder
	for i, fld := range fe {
		if i > 0 {
			sb.WriteString("; ")
		}
		fmt.Fprintf(&sb, "%s: %s", fld.Field, fld.Err)
	}

	return sb.String()
}

// Fields returns the errors keyed by field name.
func (fe FieldErrors) Fields() map[string]string {
	m := make(map[string]string, len(fe))
	for _, fld := range fe {
		m[fld.Field] = fld.Err
	}

	return m
}

// GetFieldErrors extracts the FieldErrors wrapped anywhere in err,
// reporting whether any were found.
func GetFieldErrors(err error) (FieldErrors, bool) {
	var fe FieldErrors
	if errors.As(err, &fe) {
		return fe, true
	}

	return nil, false
}
