package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/medelle/practice-api/pkg/errors"
)

type signUp struct {
	Name   string  `json:"name" validate:"required"`
	Email  string  `json:"email" validate:"required,email"`
	Gender *string `json:"gender" validate:"omitempty,oneof=male female other"`
}

func TestValidate(t *testing.T) {
	v := New()
	bad := "robot"

	tests := []struct {
		name    string
		in      signUp
		wantMsg string
	}{
		{"valid", signUp{Name: "Ana", Email: "ana@example.com"}, ""},
		{"missing name", signUp{Email: "ana@example.com"}, MissingFieldsMessage},
		{"missing wins over malformed", signUp{Email: "nope"}, MissingFieldsMessage},
		{"bad email", signUp{Name: "Ana", Email: "nope"}, "Invalid email"},
		{"bad enum", signUp{Name: "Ana", Email: "ana@example.com", Gender: &bad}, "Invalid gender"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.in)
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			appErr, ok := apperrors.As(err)
			if assert.True(t, ok) {
				assert.Equal(t, apperrors.KindValidation, appErr.Kind)
				assert.Equal(t, tt.wantMsg, appErr.Message)
			}
		})
	}
}
