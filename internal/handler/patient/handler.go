package patient

import (
	"github.com/gin-gonic/gin"

	"github.com/medelle/practice-api/internal/handler"
	"github.com/medelle/practice-api/internal/model"
	"github.com/medelle/practice-api/internal/service/patient"
)

const msgInvalidPatientID = "Invalid patient id"

type Handler struct {
	service patient.PatientService
}

func NewHandler(service patient.PatientService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	patients := r.Group("/patient")
	{
		patients.POST("/create", h.CreatePatient)
		patients.PUT("/update/:id", h.UpdatePatient)
		patients.DELETE("/delete/:id", h.DeletePatient)
		patients.GET("/get-from-user", h.ListPatients)
	}
}

func (h *Handler) CreatePatient(c *gin.Context) {
	userID, ok := handler.UserID(c)
	if !ok {
		return
	}

	var req model.CreatePatientRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	created, err := h.service.Create(c.Request.Context(), userID, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	handler.Created(c, "Patient created successfully", created)
}

func (h *Handler) UpdatePatient(c *gin.Context) {
	userID, ok := handler.UserID(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, msgInvalidPatientID)
	if !ok {
		return
	}

	var req model.UpdatePatientRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	updated, err := h.service.Update(c.Request.Context(), userID, id, &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	handler.OK(c, "Patient updated successfully", updated)
}

func (h *Handler) DeletePatient(c *gin.Context) {
	userID, ok := handler.UserID(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, msgInvalidPatientID)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), userID, id); err != nil {
		handler.Fail(c, err)
		return
	}

	handler.OK(c, "Patient deleted successfully", nil)
}

func (h *Handler) ListPatients(c *gin.Context) {
	userID, ok := handler.UserID(c)
	if !ok {
		return
	}

	patients, err := h.service.ListForUser(c.Request.Context(), userID)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	handler.OK(c, "Patients retrieved successfully", patients)
}
