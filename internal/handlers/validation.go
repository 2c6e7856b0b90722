package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/BradenHooton/snipvault/internal/models"
	pkgauth "github.com/BradenHooton/snipvault/pkg/auth"
	"github.com/go-playground/validator/v10"
)

// maxBodyBytes bounds request bodies; note content is capped separately by the service
const maxBodyBytes = 2 << 20

// Global validator instance (reused across all handlers)
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Report json field names so errors match what the client sent
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return pkgauth.ValidateUsername(fl.Field().String()) == nil
	})
	return v
}

// ValidateRequest validates a request struct using go-playground/validator.
// The first failing field is returned as a *models.ValidationError.
func ValidateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		return &models.ValidationError{
			Field:   ve[0].Field(),
			Message: formatValidationError(ve[0]),
		}
	}
	return &models.ValidationError{Message: err.Error()}
}

// formatValidationError converts a validator FieldError to a user-friendly message
func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "username":
		return "must be 3-255 characters of letters, digits, '.', '_' or '-'"
	case "min":
		return fmt.Sprintf("must have a minimum of %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must have a maximum of %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}

// decodeJSON reads a single JSON object into dst, rejecting unknown fields
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return &models.ValidationError{Message: "invalid request body"}
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return &models.ValidationError{Message: "request body must contain a single JSON object"}
	}
	return nil
}
