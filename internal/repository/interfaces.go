package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/medelle/practice-api/internal/model"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// All repository interfaces in one file
type (
	// UserRepository persists users. Back-reference sets are only changed
	// through PushRef and PullRef; Update never writes them.
	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		GetBySubscriptionID(ctx context.Context, subscriptionID string) (*model.User, error)
		Update(ctx context.Context, user *model.User) error
		UpdateSubscription(ctx context.Context, id uuid.UUID, sub model.Subscription) error
		Delete(ctx context.Context, id uuid.UUID) error
		PushRef(ctx context.Context, id uuid.UUID, ref model.UserRef, childID uuid.UUID) error
		PullRef(ctx context.Context, id uuid.UUID, ref model.UserRef, childID uuid.UUID) error
	}

	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		Update(ctx context.Context, patient *model.Patient) error
		Delete(ctx context.Context, id uuid.UUID) error
		// ListByIDs returns the patients in the order of ids, skipping
		// unknown ids
		ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.Patient, error)
		DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error)
		PushRef(ctx context.Context, id uuid.UUID, ref model.PatientRef, childID uuid.UUID) error
		PullRef(ctx context.Context, id uuid.UUID, ref model.PatientRef, childID uuid.UUID) error
	}

	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		Update(ctx context.Context, appointment *model.Appointment) error
		Delete(ctx context.Context, id uuid.UUID) error
		ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.Appointment, error)
		ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Appointment, error)
		// Complete sets status completed and links the consultation
		Complete(ctx context.Context, id, consultationID uuid.UUID) error
		// LinkConsultation points the appointment at consultationID and
		// leaves its status alone
		LinkConsultation(ctx context.Context, id, consultationID uuid.UUID) error
		// ClearConsultation unlinks every appointment pointing at consultationID
		ClearConsultation(ctx context.Context, consultationID uuid.UUID) error
		DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	}

	ConsultationRepository interface {
		Create(ctx context.Context, consultation *model.Consultation) error
		Get(ctx context.Context, id uuid.UUID) (*model.Consultation, error)
		Update(ctx context.Context, consultation *model.Consultation) error
		Delete(ctx context.Context, id uuid.UUID) error
		ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.Consultation, error)
		ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Consultation, error)
		// ClearAppointment unlinks every consultation pointing at appointmentID
		ClearAppointment(ctx context.Context, appointmentID uuid.UUID) error
		DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		// MarkFailed records a failed delivery; the event stays pending
		// until retryCount reaches maxRetries
		MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, maxRetries int) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}

	// Store groups the repositories behind a single transaction boundary.
	// Repositories obtained from the Store passed to WithTx's callback all
	// run on the same transaction.
	Store interface {
		Users() UserRepository
		Patients() PatientRepository
		Appointments() AppointmentRepository
		Consultations() ConsultationRepository
		Outbox() OutboxRepository
		WithTx(ctx context.Context, fn func(Store) error) error
		Ping(ctx context.Context) error
	}
)
