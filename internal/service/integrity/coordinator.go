// Package integrity maintains the back-reference sets that users and
// patients keep for their children. Every mutation runs in one store
// transaction together with the primary write and its outbox event.
package integrity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medelle/practice-api/internal/model"
	"github.com/medelle/practice-api/internal/repository"
)

type Coordinator struct {
	store repository.Store
}

func NewCoordinator(store repository.Store) *Coordinator {
	return &Coordinator{store: store}
}

type deletedPayload struct {
	ID        uuid.UUID  `json:"id"`
	PatientID *uuid.UUID `json:"patient_id,omitempty"`
}

func record(ctx context.Context, tx repository.Store, eventType string, userID, aggregateID uuid.UUID, payload interface{}) error {
	event, err := model.NewOutboxEvent(eventType, userID, aggregateID, payload)
	if err != nil {
		return fmt.Errorf("failed to build %s event: %w", eventType, err)
	}
	if err := tx.Outbox().Create(ctx, event); err != nil {
		return fmt.Errorf("failed to record %s event: %w", eventType, err)
	}
	return nil
}

func (c *Coordinator) CreatePatient(ctx context.Context, p *model.Patient) error {
	return c.store.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.Patients().Create(ctx, p); err != nil {
			return fmt.Errorf("failed to create patient: %w", err)
		}
		if err := tx.Users().PushRef(ctx, p.UserID, model.UserRefPatients, p.ID); err != nil {
			return err
		}
		return record(ctx, tx, model.EventPatientCreated, p.UserID, p.ID, p)
	})
}

func (c *Coordinator) UpdatePatient(ctx context.Context, p *model.Patient) error {
	return c.store.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.Patients().Update(ctx, p); err != nil {
			return fmt.Errorf("failed to update patient: %w", err)
		}
		return record(ctx, tx, model.EventPatientUpdated, p.UserID, p.ID, p)
	})
}

// DeletePatient removes the patient's appointments and consultations,
// then the patient, and pulls every removed id from the owner's sets.
func (c *Coordinator) DeletePatient(ctx context.Context, p *model.Patient) error {
	return c.store.WithTx(ctx, func(tx repository.Store) error {
		appointments, err := tx.Appointments().ListByPatient(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("failed to list patient appointments: %w", err)
		}
		for _, a := range appointments {
			if err := tx.Appointments().Delete(ctx, a.ID); err != nil {
				return fmt.Errorf("failed to delete appointment %s: %w", a.ID, err)
			}
			if err := tx.Consultations().ClearAppointment(ctx, a.ID); err != nil {
				return fmt.Errorf("failed to unlink consultations: %w", err)
			}
			if err := tx.Users().PullRef(ctx, a.UserID, model.UserRefAppointments, a.ID); err != nil {
				return err
			}
		}

		consultations, err := tx.Consultations().ListByPatient(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("failed to list patient consultations: %w", err)
		}
		for _, cn := range consultations {
			if err := tx.Consultations().Delete(ctx, cn.ID); err != nil {
				return fmt.Errorf("failed to delete consultation %s: %w", cn.ID, err)
			}
			if err := tx.Appointments().ClearConsultation(ctx, cn.ID); err != nil {
				return fmt.Errorf("failed to unlink appointments: %w", err)
			}
			if err := tx.Users().PullRef(ctx, cn.UserID, model.UserRefConsultations, cn.ID); err != nil {
				return err
			}
		}

		if err := tx.Patients().Delete(ctx, p.ID); err != nil {
			return fmt.Errorf("failed to delete patient: %w", err)
		}
		if err := tx.Users().PullRef(ctx, p.UserID, model.UserRefPatients, p.ID); err != nil {
			return err
		}
		return record(ctx, tx, model.EventPatientDeleted, p.UserID, p.ID, deletedPayload{ID: p.ID})
	})
}

func (c *Coordinator) CreateAppointment(ctx context.Context, a *model.Appointment) error {
	return c.store.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.Appointments().Create(ctx, a); err != nil {
			return fmt.Errorf("failed to create appointment: %w", err)
		}
		if err := tx.Users().PushRef(ctx, a.UserID, model.UserRefAppointments, a.ID); err != nil {
			return err
		}
		if err := tx.Patients().PushRef(ctx, a.PatientID, model.PatientRefAppointments, a.ID); err != nil {
			return err
		}
		return record(ctx, tx, model.EventAppointmentCreated, a.UserID, a.ID, a)
	})
}

// UpdateAppointment writes a and moves it between patients' sets when
// oldPatientID differs from a.PatientID. A moved appointment loses its
// consultation link in both directions.
func (c *Coordinator) UpdateAppointment(ctx context.Context, a *model.Appointment, oldPatientID uuid.UUID) error {
	moved := oldPatientID != a.PatientID
	if moved {
		a.ConsultationID = nil
	}
	return c.store.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.Appointments().Update(ctx, a); err != nil {
			return fmt.Errorf("failed to update appointment: %w", err)
		}
		if moved {
			if err := tx.Consultations().ClearAppointment(ctx, a.ID); err != nil {
				return fmt.Errorf("failed to unlink consultations: %w", err)
			}
			if err := tx.Patients().PullRef(ctx, oldPatientID, model.PatientRefAppointments, a.ID); err != nil {
				return err
			}
			if err := tx.Patients().PushRef(ctx, a.PatientID, model.PatientRefAppointments, a.ID); err != nil {
				return err
			}
		}
		return record(ctx, tx, model.EventAppointmentUpdated, a.UserID, a.ID, a)
	})
}

func (c *Coordinator) DeleteAppointment(ctx context.Context, a *model.Appointment) error {
	return c.store.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.Users().PullRef(ctx, a.UserID, model.UserRefAppointments, a.ID); err != nil {
			return err
		}
		if err := tx.Patients().PullRef(ctx, a.PatientID, model.PatientRefAppointments, a.ID); err != nil {
			return err
		}
		if err := tx.Consultations().ClearAppointment(ctx, a.ID); err != nil {
			return fmt.Errorf("failed to unlink consultations: %w", err)
		}
		if err := tx.Appointments().Delete(ctx, a.ID); err != nil {
			return fmt.Errorf("failed to delete appointment: %w", err)
		}
		patientID := a.PatientID
		return record(ctx, tx, model.EventAppointmentDeleted, a.UserID, a.ID, deletedPayload{ID: a.ID, PatientID: &patientID})
	})
}

// CreateConsultation persists cn and indexes it. When cn names an
// appointment, that appointment is then marked completed; the completion
// is applied after commit and its failure is only logged.
func (c *Coordinator) CreateConsultation(ctx context.Context, cn *model.Consultation) error {
	err := c.store.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.Consultations().Create(ctx, cn); err != nil {
			return fmt.Errorf("failed to create consultation: %w", err)
		}
		if err := tx.Users().PushRef(ctx, cn.UserID, model.UserRefConsultations, cn.ID); err != nil {
			return err
		}
		if err := tx.Patients().PushRef(ctx, cn.PatientID, model.PatientRefConsultations, cn.ID); err != nil {
			return err
		}
		return record(ctx, tx, model.EventConsultationCreated, cn.UserID, cn.ID, cn)
	})
	if err != nil {
		return err
	}

	if cn.AppointmentID != nil {
		c.completeAppointment(ctx, *cn.AppointmentID, cn.ID)
	}
	return nil
}

func (c *Coordinator) completeAppointment(ctx context.Context, appointmentID, consultationID uuid.UUID) {
	err := c.store.Appointments().Complete(ctx, appointmentID, consultationID)
	if err == nil {
		return
	}
	ev := zerolog.Ctx(ctx).Warn()
	if !errors.Is(err, repository.ErrNotFound) {
		ev = zerolog.Ctx(ctx).Error()
	}
	ev.Err(err).
		Str("appointment_id", appointmentID.String()).
		Str("consultation_id", consultationID.String()).
		Msg("Failed to complete appointment")
}

// UpdateConsultation writes cn, moves it between patients' sets and,
// when its appointment changed, repoints the appointment side of the
// link. The new appointment keeps its status.
func (c *Coordinator) UpdateConsultation(ctx context.Context, cn *model.Consultation, oldPatientID uuid.UUID, oldAppointmentID *uuid.UUID) error {
	return c.store.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.Consultations().Update(ctx, cn); err != nil {
			return fmt.Errorf("failed to update consultation: %w", err)
		}
		if !sameID(oldAppointmentID, cn.AppointmentID) {
			if err := tx.Appointments().ClearConsultation(ctx, cn.ID); err != nil {
				return fmt.Errorf("failed to unlink appointments: %w", err)
			}
			if cn.AppointmentID != nil {
				if err := tx.Appointments().LinkConsultation(ctx, *cn.AppointmentID, cn.ID); err != nil {
					return fmt.Errorf("failed to link appointment: %w", err)
				}
			}
		}
		if oldPatientID != cn.PatientID {
			if err := tx.Patients().PullRef(ctx, oldPatientID, model.PatientRefConsultations, cn.ID); err != nil {
				return err
			}
			if err := tx.Patients().PushRef(ctx, cn.PatientID, model.PatientRefConsultations, cn.ID); err != nil {
				return err
			}
		}
		return record(ctx, tx, model.EventConsultationUpdated, cn.UserID, cn.ID, cn)
	})
}

func (c *Coordinator) DeleteConsultation(ctx context.Context, cn *model.Consultation) error {
	return c.store.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.Users().PullRef(ctx, cn.UserID, model.UserRefConsultations, cn.ID); err != nil {
			return err
		}
		if err := tx.Patients().PullRef(ctx, cn.PatientID, model.PatientRefConsultations, cn.ID); err != nil {
			return err
		}
		if err := tx.Appointments().ClearConsultation(ctx, cn.ID); err != nil {
			return fmt.Errorf("failed to unlink appointments: %w", err)
		}
		if err := tx.Consultations().Delete(ctx, cn.ID); err != nil {
			return fmt.Errorf("failed to delete consultation: %w", err)
		}
		patientID := cn.PatientID
		return record(ctx, tx, model.EventConsultationDeleted, cn.UserID, cn.ID, deletedPayload{ID: cn.ID, PatientID: &patientID})
	})
}

// PurgeUser deletes everything the user owns and then the user
func (c *Coordinator) PurgeUser(ctx context.Context, userID uuid.UUID) error {
	return c.store.WithTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Appointments().DeleteByUser(ctx, userID); err != nil {
			return fmt.Errorf("failed to delete appointments: %w", err)
		}
		if _, err := tx.Consultations().DeleteByUser(ctx, userID); err != nil {
			return fmt.Errorf("failed to delete consultations: %w", err)
		}
		if _, err := tx.Patients().DeleteByUser(ctx, userID); err != nil {
			return fmt.Errorf("failed to delete patients: %w", err)
		}
		if err := tx.Users().Delete(ctx, userID); err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		return record(ctx, tx, model.EventUserDeleted, userID, userID, deletedPayload{ID: userID})
	})
}

func sameID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
