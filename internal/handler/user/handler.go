package user

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/medelle/practice-api/internal/handler"
	"github.com/medelle/practice-api/internal/model"
	"github.com/medelle/practice-api/internal/service/user"
)

type Handler struct {
	service user.UserService
}

func NewHandler(service user.UserService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	users := r.Group("/user")
	{
		users.PUT("/update", h.UpdateUser)
		users.DELETE("/delete", h.DeleteUser)
		users.PUT("/delete-field", h.DeleteField)
	}
}

func (h *Handler) UpdateUser(c *gin.Context) {
	userID, ok := handler.UserID(c)
	if !ok {
		return
	}

	var req model.UpdateUserRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	updated, err := h.service.Update(c.Request.Context(), userID, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	handler.OK(c, "User updated successfully", updated)
}

func (h *Handler) DeleteUser(c *gin.Context) {
	userID, ok := handler.UserID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), userID); err != nil {
		handler.Fail(c, err)
		return
	}

	handler.OK(c, "User deleted successfully", nil)
}

func (h *Handler) DeleteField(c *gin.Context) {
	userID, ok := handler.UserID(c)
	if !ok {
		return
	}

	var req model.DeleteFieldRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	if err := h.service.DeleteField(c.Request.Context(), userID, req.Field); err != nil {
		handler.Fail(c, err)
		return
	}

	handler.OK(c, fmt.Sprintf("Field '%s' deleted successfully from user profile", req.Field), nil)
}
