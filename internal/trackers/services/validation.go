package services

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// trackerValidate checks the structural field rules declared on the tracker
// model. Cross-field rules and rules that need other modules live in
// Service.validate.
var trackerValidate = newValidator()

// newValidator builds the tracker configuration validator. Field names in
// validation errors use the json tag, which is also the Mongo field name,
// so ConfigError matches what the caller sent.
func newValidator() *validator.Validate {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	registerCustomValidators(validate)
	return validate
}

// registerCustomValidators registers custom validation rules for tracker
// configurations
func registerCustomValidators(validate *validator.Validate) {
	// hexcolor accepts the #FFF short form, embeds need the full #RRGGBB
	validate.RegisterValidation("hex_rgb", validateHexRGB)
}

func validateHexRGB(fl validator.FieldLevel) bool {
	return colorPattern.MatchString(fl.Field().String())
}

// configErrorFrom converts the first field error into a ConfigError so all
// rejection paths surface the same shape
func configErrorFrom(err error) error {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) || len(fieldErrors) == 0 {
		return err
	}
	fe := fieldErrors[0]
	return &ConfigError{Field: fe.Field(), Reason: validationReason(fe)}
}

// validationReason formats a field error into a human-readable reason
func validationReason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must not be empty"
	case "min":
		if fe.Kind() == reflect.String {
			return "must be at least " + fe.Param() + " characters"
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "hex_rgb":
		return "must be #RRGGBB"
	default:
		return "is invalid"
	}
}
