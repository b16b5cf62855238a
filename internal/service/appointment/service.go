package appointment

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
	msgInvalidAppointmentID = "Invalid appointment id"
	msgInvalidUserID        = "Invalid user id"
)

type AppointmentService interface {
	Create(ctx context.Context, userID uuid.UUID, req *model.CreateAppointmentRequest) (*model.Appointment, error)
	Update(ctx context.Context, userID, id uuid.UUID, req *model.UpdateAppointmentRequest) (*model.Appointment, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*model.AppointmentView, error)
	ListForPatient(ctx context.Context, userID, patientID uuid.UUID) ([]*model.Appointment, error)
}

type Service struct {
	store     repository.Store
	coord     *integrity.Coordinator
	validator *validator.Validator
}

func NewService(store repository.Store, coord *integrity.Coordinator, v *validator.Validator) *Service {
	return &Service{store: store, coord: coord, validator: v}
}

func (s *Service) Create(ctx context.Context, userID uuid.UUID, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if _, err := patient.Owned(ctx, s.store, userID, *req.PatientID); err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = model.AppointmentStatusWaiting
	}
	appointment := &model.Appointment{
		DateTime:  *req.DateTime,
		Reason:    req.Reason,
		Status:    status,
		UserID:    userID,
		PatientID: *req.PatientID,
	}

	if err := s.coord.CreateAppointment(ctx, appointment); err != nil {
		return nil, err
	}
	return appointment, nil
}

// Update applies the non-empty fields of req. A new patient_id must name
// a patient of the same user; the appointment then moves to that
// patient's set.
func (s *Service) Update(ctx context.Context, userID, id uuid.UUID, req *model.UpdateAppointmentRequest) (*model.Appointment, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	appointment, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	oldPatientID := appointment.PatientID

	if req.PatientID != nil && *req.PatientID != uuid.Nil && *req.PatientID != oldPatientID {
		if _, err := patient.Owned(ctx, s.store, userID, *req.PatientID); err != nil {
			return nil, err
		}
		appointment.PatientID = *req.PatientID
	}
	if req.DateTime != nil && !req.DateTime.IsZero() {
		appointment.DateTime = *req.DateTime
	}
	if req.Reason != nil && *req.Reason != "" {
		appointment.Reason = *req.Reason
	}
	if req.Status != nil && *req.Status != "" {
		appointment.Status = *req.Status
	}

	if err := s.coord.UpdateAppointment(ctx, appointment, oldPatientID); err != nil {
		return nil, err
	}
	return appointment, nil
}

func (s *Service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	appointment, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}
	return s.coord.DeleteAppointment(ctx, appointment)
}

// ListForUser returns the user's appointments with their patient resolved
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]*model.AppointmentView, error) {
	user, err := s.store.Users().Get(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound(msgInvalidUserID)
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	appointments, err := s.store.Appointments().ListByIDs(ctx, user.Appointments)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}

	summaries, err := patient.Summaries(ctx, s.store, appointmentPatients(appointments))
	if err != nil {
		return nil, err
	}

	views := make([]*model.AppointmentView, 0, len(appointments))
	for _, a := range appointments {
		views = append(views, &model.AppointmentView{Appointment: a, Patient: summaries[a.PatientID]})
	}
	return views, nil
}

func (s *Service) ListForPatient(ctx context.Context, userID, patientID uuid.UUID) ([]*model.Appointment, error) {
	p, err := patient.Owned(ctx, s.store, userID, patientID)
	if err != nil {
		return nil, err
	}

	appointments, err := s.store.Appointments().ListByIDs(ctx, p.Appointments)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

func (s *Service) owned(ctx context.Context, userID, id uuid.UUID) (*model.Appointment, error) {
	appointment, err := s.store.Appointments().Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound(msgInvalidAppointmentID)
		}
		return nil, fmt.Errorf("failed to load appointment: %w", err)
	}
	if appointment.UserID != userID {
		return nil, apperrors.Forbidden(msgInvalidUserID)
	}
	return appointment, nil
}

func appointmentPatients(appointments []*model.Appointment) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(appointments))
	for _, a := range appointments {
		ids = append(ids, a.PatientID)
	}
	return ids
}
