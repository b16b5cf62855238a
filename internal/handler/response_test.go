package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/medelle/practice-api/pkg/errors"
)

func TestErrorBody(t *testing.T) {
	body := ErrorBody(apperrors.Unauthorized("You are not authenticated"))
	assert.Equal(t, gin.H{"status": http.StatusUnauthorized, "message": "You are not authenticated"}, body)

	body = ErrorBody(apperrors.Validation("Subscription inactive").
		WithData(map[string]interface{}{"subscription_data": "sub"}))
	assert.Equal(t, "sub", body["subscription_data"])
	assert.NotContains(t, body, "data")

	body = ErrorBody(apperrors.Conflict("taken").WithData([]string{"a"}))
	assert.Equal(t, []string{"a"}, body["data"])
}

func TestParamID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "id", Value: "nope"}}
	_, ok := ParamID(c, "Invalid patient id")
	assert.False(t, ok)
	require.Len(t, c.Errors, 1)
	assert.True(t, apperrors.IsKind(c.Errors.Last().Err, apperrors.KindNotFound))
	assert.True(t, c.IsAborted())

	id := uuid.New()
	c, _ = gin.CreateTestContext(httptest.NewRecorder())
	c.Params = gin.Params{{Key: "id", Value: id.String()}}
	got, ok := ParamID(c, "Invalid patient id")
	assert.True(t, ok)
	assert.Equal(t, id, got)
}

func TestUserID_Missing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, ok := UserID(c)
	assert.False(t, ok)
	assert.True(t, apperrors.IsKind(c.Errors.Last().Err, apperrors.KindAuth))
}
