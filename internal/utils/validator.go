// internal/utils/validator.go
package utils

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterValidation("license_key", validateLicenseKey)
	validate.RegisterValidation("domain", validateDomain)
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

func validateLicenseKey(fl validator.FieldLevel) bool {
	return IsLicenseKeyFormat(fl.Field().String())
}

func validateDomain(fl validator.FieldLevel) bool {
	domain := NormalizeDomain(fl.Field().String())
	if domain == "" || len(domain) > 255 {
		return false
	}
	return !strings.ContainsAny(domain, " \t\r\n")
}

// Validation tags for common fields
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func GetValidationErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		for _, e := range validationErrs {
			validationErrors = append(validationErrors, ValidationError{
				Field:   strings.ToLower(e.Field()),
				Tag:     e.Tag(),
				Message: getValidationMessage(e),
			})
		}
	}

	return validationErrors
}

func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Field() + " is required"
	case "email":
		return "Invalid email format"
	case "min":
		return e.Field() + " must be at least " + e.Param()
	case "max":
		return e.Field() + " must be at most " + e.Param()
	case "license_key":
		return "License key must look like XXXXXXXX-XXXX-XXXX-XXXX-XXXXXXXXXXXX"
	case "domain":
		return "Domain must be a host name such as example.com"
	case "oneof":
		return e.Field() + " must be one of: " + e.Param()
	default:
		return e.Field() + " is invalid"
	}
}
