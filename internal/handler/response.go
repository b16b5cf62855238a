package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/medelle/practice-api/pkg/errors"
)

const (
	// ContextUserID holds the authenticated user's id
	ContextUserID = "user_id"

	msgInvalidBody      = "Invalid request body"
	msgNotAuthenticated = "You are not authenticated"
)

// Response is the success body
type Response struct {
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse is the failure body. Status repeats the HTTP status code.
type ErrorResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func NewSuccessResponse(message string, data interface{}) *Response {
	return &Response{
		Message: message,
		Data:    data,
	}
}

func NewErrorResponse(status int, message string) *ErrorResponse {
	return &ErrorResponse{
		Status:  status,
		Message: message,
	}
}

// ErrorBody renders an AppError. Map payloads are merged into the top
// level of the body; any other payload goes under "data".
func ErrorBody(appErr *apperrors.AppError) gin.H {
	body := gin.H{"status": appErr.StatusCode(), "message": appErr.Message}
	switch data := appErr.Data.(type) {
	case nil:
	case map[string]interface{}:
		for k, v := range data {
			body[k] = v
		}
	case gin.H:
		for k, v := range data {
			body[k] = v
		}
	default:
		body["data"] = data
	}
	return body
}

func OK(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, NewSuccessResponse(message, data))
}

func Created(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, NewSuccessResponse(message, data))
}

// Fail hands err to the error middleware and stops the chain
func Fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// BindJSON decodes the request body into obj. Struct validation is left
// to the services.
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		Fail(c, apperrors.Validation(msgInvalidBody))
		return false
	}
	return true
}

// UserID returns the id the auth middleware stored for this request
func UserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		Fail(c, apperrors.Unauthorized(msgNotAuthenticated))
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	if !ok || id == uuid.Nil {
		Fail(c, apperrors.Unauthorized(msgNotAuthenticated))
		return uuid.Nil, false
	}
	return id, true
}

// ParamID parses the :id path parameter, failing with msg when it is not
// a valid id.
func ParamID(c *gin.Context, msg string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		Fail(c, apperrors.NotFound(msg))
		return uuid.Nil, false
	}
	return id, true
}
