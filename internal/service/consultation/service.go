package consultation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/medelle/practice-api/internal/model"
	"github.com/medelle/practice-api/internal/repository"
	"github.com/medelle/practice-api/internal/service/integrity"
	"github.com/medelle/practice-api/internal/service/patient"
	apperrors "github.com/medelle/practice-api/pkg/errors"
	"github.com/medelle/practice-api/pkg/validator"
)

const (
	msgInvalidConsultationID = "Invalid consultation id"
	msgInvalidAppointmentID  = "Invalid appointment id"
	msgInvalidUserID         = "Invalid user id"
)

type ConsultationService interface {
	Create(ctx context.Context, userID uuid.UUID, req *model.CreateConsultationRequest) (*model.Consultation, error)
	Update(ctx context.Context, userID, id uuid.UUID, req *model.UpdateConsultationRequest) (*model.Consultation, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*model.ConsultationView, error)
	ListForPatient(ctx context.Context, userID, patientID uuid.UUID) ([]*model.Consultation, error)
}

type Service struct {
	store     repository.Store
	coord     *integrity.Coordinator
	validator *validator.Validator
}

func NewService(store repository.Store, coord *integrity.Coordinator, v *validator.Validator) *Service {
	return &Service{store: store, coord: coord, validator: v}
}

// Create records a consultation. When it names an appointment, that
// appointment is marked completed once the consultation is stored.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, req *model.CreateConsultationRequest) (*model.Consultation, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if _, err := patient.Owned(ctx, s.store, userID, *req.PatientID); err != nil {
		return nil, err
	}

	consultation := &model.Consultation{
		Reason:                   req.Reason,
		Symptoms:                 req.Symptoms,
		Diagnosis:                req.Diagnosis,
		Treatment:                req.Treatment,
		LaboratoryStudies:        req.LaboratoryStudies,
		ImagesStudies:            req.ImagesStudies,
		GynecologicalInformation: req.GynecologicalInformation,
		UserID:                   userID,
		PatientID:                *req.PatientID,
	}

	if req.AppointmentID != nil && *req.AppointmentID != uuid.Nil {
		if err := s.checkAppointment(ctx, userID, consultation.PatientID, *req.AppointmentID); err != nil {
			return nil, err
		}
		appointmentID := *req.AppointmentID
		consultation.AppointmentID = &appointmentID
	}

	if err := s.coord.CreateConsultation(ctx, consultation); err != nil {
		return nil, err
	}
	return consultation, nil
}

func (s *Service) Update(ctx context.Context, userID, id uuid.UUID, req *model.UpdateConsultationRequest) (*model.Consultation, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	consultation, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	oldPatientID := consultation.PatientID
	oldAppointmentID := consultation.AppointmentID

	if req.PatientID != nil && *req.PatientID != uuid.Nil && *req.PatientID != oldPatientID {
		if _, err := patient.Owned(ctx, s.store, userID, *req.PatientID); err != nil {
			return nil, err
		}
		consultation.PatientID = *req.PatientID
	}
	if req.AppointmentID != nil && *req.AppointmentID != uuid.Nil {
		appointmentID := *req.AppointmentID
		consultation.AppointmentID = &appointmentID
	}
	// a linked appointment must belong to the consultation's patient,
	// including one kept across a patient change
	if consultation.AppointmentID != nil && (consultation.PatientID != oldPatientID || !sameID(oldAppointmentID, consultation.AppointmentID)) {
		if err := s.checkAppointment(ctx, userID, consultation.PatientID, *consultation.AppointmentID); err != nil {
			return nil, err
		}
	}

	setString(&consultation.Reason, req.Reason)
	setString(&consultation.Symptoms, req.Symptoms)
	setString(&consultation.Diagnosis, req.Diagnosis)
	setString(&consultation.Treatment, req.Treatment)
	if req.LaboratoryStudies != nil {
		consultation.LaboratoryStudies = req.LaboratoryStudies
	}
	if req.ImagesStudies != nil {
		consultation.ImagesStudies = req.ImagesStudies
	}
	if req.GynecologicalInformation != nil {
		consultation.GynecologicalInformation = req.GynecologicalInformation
	}

	if err := s.coord.UpdateConsultation(ctx, consultation, oldPatientID, oldAppointmentID); err != nil {
		return nil, err
	}
	return consultation, nil
}

func (s *Service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	consultation, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}
	return s.coord.DeleteConsultation(ctx, consultation)
}

// ListForUser returns the user's consultations with their patient resolved
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]*model.ConsultationView, error) {
	user, err := s.store.Users().Get(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound(msgInvalidUserID)
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	consultations, err := s.store.Consultations().ListByIDs(ctx, user.Consultations)
	if err != nil {
		return nil, fmt.Errorf("failed to list consultations: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(consultations))
	for _, c := range consultations {
		ids = append(ids, c.PatientID)
	}
	summaries, err := patient.Summaries(ctx, s.store, ids)
	if err != nil {
		return nil, err
	}

	views := make([]*model.ConsultationView, 0, len(consultations))
	for _, c := range consultations {
		views = append(views, &model.ConsultationView{Consultation: c, Patient: summaries[c.PatientID]})
	}
	return views, nil
}

func (s *Service) ListForPatient(ctx context.Context, userID, patientID uuid.UUID) ([]*model.Consultation, error) {
	p, err := patient.Owned(ctx, s.store, userID, patientID)
	if err != nil {
		return nil, err
	}

	consultations, err := s.store.Consultations().ListByIDs(ctx, p.Consultations)
	if err != nil {
		return nil, fmt.Errorf("failed to list consultations: %w", err)
	}
	return consultations, nil
}

func (s *Service) checkAppointment(ctx context.Context, userID, patientID, appointmentID uuid.UUID) error {
	appointment, err := s.store.Appointments().Get(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound(msgInvalidAppointmentID)
		}
		return fmt.Errorf("failed to load appointment: %w", err)
	}
	if appointment.UserID != userID {
		return apperrors.Forbidden(msgInvalidAppointmentID)
	}
	if appointment.PatientID != patientID {
		return apperrors.Validation(msgInvalidAppointmentID)
	}
	return nil
}

func (s *Service) owned(ctx context.Context, userID, id uuid.UUID) (*model.Consultation, error) {
	consultation, err := s.store.Consultations().Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound(msgInvalidConsultationID)
		}
		return nil, fmt.Errorf("failed to load consultation: %w", err)
	}
	if consultation.UserID != userID {
		return nil, apperrors.Forbidden(msgInvalidUserID)
	}
	return consultation, nil
}

func setString(dst *string, src *string) {
	if src != nil && *src != "" {
		*dst = *src
	}
}

func sameID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
