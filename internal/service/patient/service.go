package patient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medelle/practice-api/internal/model"
	"github.com/medelle/practice-api/internal/repository"
	"github.com/medelle/practice-api/internal/service/integrity"
	apperrors "github.com/medelle/practice-api/pkg/errors"
	"github.com/medelle/practice-api/pkg/validator"
)

const (
	msgInvalidPatientID = "Invalid patient id"
	msgInvalidUserID    = "Invalid user id"
)

type PatientService interface {
	Create(ctx context.Context, userID uuid.UUID, req *model.CreatePatientRequest) (*model.Patient, error)
	Update(ctx context.Context, userID, id uuid.UUID, req *model.UpdatePatientRequest) (*model.Patient, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*model.PatientView, error)
}

type Service struct {
	store     repository.Store
	coord     *integrity.Coordinator
	validator *validator.Validator
	now       func() time.Time
}

func NewService(store repository.Store, coord *integrity.Coordinator, v *validator.Validator) *Service {
	return &Service{
		store:     store,
		coord:     coord,
		validator: v,
		now:       time.Now,
	}
}

func (s *Service) Create(ctx context.Context, userID uuid.UUID, req *model.CreatePatientRequest) (*model.Patient, error) {
	if !req.HasName() {
		return nil, apperrors.Validation(validator.MissingFieldsMessage)
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	if _, err := s.store.Users().Get(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound(msgInvalidUserID)
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	patient := &model.Patient{UserID: userID}
	req.Apply(patient)

	if err := s.coord.CreatePatient(ctx, patient); err != nil {
		return nil, err
	}
	return patient, nil
}

func (s *Service) Update(ctx context.Context, userID, id uuid.UUID, req *model.UpdatePatientRequest) (*model.Patient, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	patient, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	req.Apply(patient)
	if err := s.coord.UpdatePatient(ctx, patient); err != nil {
		return nil, err
	}
	return patient, nil
}

func (s *Service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	patient, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}
	return s.coord.DeletePatient(ctx, patient)
}

// ListForUser returns the user's patients in the order they were added,
// each with its appointments, consultations and next upcoming appointment.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]*model.PatientView, error) {
	user, err := s.store.Users().Get(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound(msgInvalidUserID)
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	patients, err := s.store.Patients().ListByIDs(ctx, user.Patients)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}

	now := s.now()
	views := make([]*model.PatientView, 0, len(patients))
	for _, p := range patients {
		appointments, err := s.store.Appointments().ListByIDs(ctx, p.Appointments)
		if err != nil {
			return nil, fmt.Errorf("failed to list appointments: %w", err)
		}
		consultations, err := s.store.Consultations().ListByIDs(ctx, p.Consultations)
		if err != nil {
			return nil, fmt.Errorf("failed to list consultations: %w", err)
		}

		views = append(views, &model.PatientView{
			Patient:         p,
			Appointments:    appointments,
			Consultations:   consultations,
			NextAppointment: NextAppointment(appointments, now),
		})
	}
	return views, nil
}

// NextAppointment returns the earliest appointment at or after now, or nil.
// Ties keep the first one in list order. Status is not considered.
func NextAppointment(appointments []*model.Appointment, now time.Time) *model.Appointment {
	var next *model.Appointment
	for _, a := range appointments {
		if a.DateTime.Before(now) {
			continue
		}
		if next == nil || a.DateTime.Before(next.DateTime) {
			next = a
		}
	}
	return next
}

func (s *Service) owned(ctx context.Context, userID, id uuid.UUID) (*model.Patient, error) {
	return Owned(ctx, s.store, userID, id)
}

// Owned loads patient id and checks that it belongs to userID
func Owned(ctx context.Context, store repository.Store, userID, id uuid.UUID) (*model.Patient, error) {
	patient, err := store.Patients().Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound(msgInvalidPatientID)
		}
		return nil, fmt.Errorf("failed to load patient: %w", err)
	}
	if patient.UserID != userID {
		return nil, apperrors.Forbidden(msgInvalidUserID)
	}
	return patient, nil
}

// Summaries resolves the distinct patients in ids to their summaries.
// Unknown ids are absent from the result.
func Summaries(ctx context.Context, store repository.Store, ids []uuid.UUID) (map[uuid.UUID]*model.PatientSummary, error) {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	unique := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	patients, err := store.Patients().ListByIDs(ctx, unique)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}

	summaries := make(map[uuid.UUID]*model.PatientSummary, len(patients))
	for _, p := range patients {
		summaries[p.ID] = p.Summary()
	}
	return summaries, nil
}
