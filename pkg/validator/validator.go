package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/medelle/practice-api/pkg/errors"
)

// MissingFieldsMessage is returned whenever a required field is absent
const MissingFieldsMessage = "Missing required fields"

// Validator validates request structs using `validate` tags and reports
// the first failure as a validation AppError.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return &Validator{validate: v}
}

func (v *Validator) Validate(obj interface{}) error {
	err := v.validate.Struct(obj)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.Internal(err)
	}

	// missing fields win over malformed ones
	for _, fe := range verrs {
		if strings.HasPrefix(fe.Tag(), "required") {
			return apperrors.Validation(MissingFieldsMessage)
		}
	}
	return apperrors.Validation(message(verrs[0]))
}

func message(fe validator.FieldError) string {
	if fe.Tag() == "email" {
		return "Invalid email"
	}
	return fmt.Sprintf("Invalid %s", fe.Field())
}
