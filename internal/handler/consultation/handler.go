package consultation

import (
	"github.com/gin-gonic/gin"

	"github.com/medelle/practice-api/internal/handler"
	"github.com/medelle/practice-api/internal/model"
	"github.com/medelle/practice-api/internal/service/consultation"
)

const (
	msgInvalidConsultationID = "Invalid consultation id"
	msgInvalidPatientID      = "Invalid patient id"
)

type Handler struct {
	service consultation.ConsultationService
}

func NewHandler(service consultation.ConsultationService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	group := r.Group("/consultation")
	{
		group.POST("/create", h.Create)
		group.PUT("/update/:id", h.Update)
		group.DELETE("/delete/:id", h.Delete)
		group.GET("/get-from-user", h.ListForUser)
		group.GET("/get-from-patient/:id", h.ListForPatient)
	}
}

func (h *Handler) Create(c *gin.Context) {
	userID, ok := handler.UserID(c)
	if !ok {
		return
	}

	var req model.CreateConsultationRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	created, err := h.service.Create(c.Request.Context(), userID, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	handler.Created(c, "Consultation created successfully", created)
}

func (h *Handler) Update(c *gin.Context) {
	userID, ok := handler.UserID(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, msgInvalidConsultationID)
	if !ok {
		return
	}

	var req model.UpdateConsultationRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	updated, err := h.service.Update(c.Request.Context(), userID, id, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	handler.OK(c, "Consultation updated successfully", updated)
}

func (h *Handler) Delete(c *gin.Context) {
	userID, ok := handler.UserID(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, msgInvalidConsultationID)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), userID, id); err != nil {
		handler.Fail(c, err)
		return
	}

	handler.OK(c, "Consultation deleted successfully", nil)
}

func (h *Handler) ListForUser(c *gin.Context) {
	userID, ok := handler.UserID(c)
	if !ok {
		return
	}

	items, err := h.service.ListForUser(c.Request.Context(), userID)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	handler.OK(c, "Consultations retrieved successfully", items)
}

func (h *Handler) ListForPatient(c *gin.Context) {
	userID, ok := handler.UserID(c)
	if !ok {
		return
	}
	patientID, ok := handler.ParamID(c, msgInvalidPatientID)
	if !ok {
		return
	}

	items, err := h.service.ListForPatient(c.Request.Context(), userID, patientID)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	handler.OK(c, "Consultations retrieved successfully", items)
}
