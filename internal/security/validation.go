package security

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	Validate *validator.Validate

	projectRefRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
)

func init() {
	Validate = validator.New()
	Validate.RegisterValidation("projectref", validateProjectRef)
}

// validateProjectRef keeps project refs to a single safe path segment.
func validateProjectRef(fl validator.FieldLevel) bool {
	return projectRefRegex.MatchString(fl.Field().String())
}

// Describe turns validator errors into a short client-facing message.
func Describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", fe.Field()))
		case "projectref":
			parts = append(parts, fmt.Sprintf("%s must be a project reference", fe.Field()))
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
