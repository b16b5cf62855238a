package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCode(t *testing.T) {
	cases := map[*AppError]int{
		Validation("Missing required fields"):     http.StatusBadRequest,
		Forbidden("Invalid user id"):              http.StatusBadRequest,
		NotFound("Invalid patient id"):            http.StatusBadRequest,
		Conflict("Email not available"):           http.StatusBadRequest,
		Unauthorized("You are not authenticated"): http.StatusUnauthorized,
		InvalidToken("Invalid token", nil):        http.StatusForbidden,
		Upstream("paypal", fmt.Errorf("boom")):    http.StatusInternalServerError,
		Internal(fmt.Errorf("boom")):              http.StatusInternalServerError,
	}

	for err, want := range cases {
		assert.Equal(t, want, err.StatusCode(), err.Message)
	}
}

func TestAsUnwrapsChain(t *testing.T) {
	wrapped := fmt.Errorf("create patient: %w", NotFound("Invalid user id"))

	appErr, ok := As(wrapped)
	assert.True(t, ok)
	assert.Equal(t, "Invalid user id", appErr.Message)
	assert.True(t, IsKind(wrapped, KindNotFound))
	assert.False(t, IsKind(fmt.Errorf("plain"), KindNotFound))
}

func TestErrorIncludesCause(t *testing.T) {
	err := Internal(fmt.Errorf("connection refused"))
	assert.Equal(t, "Internal server error: connection refused", err.Error())
}
