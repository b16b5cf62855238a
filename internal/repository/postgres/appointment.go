package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/medelle/practice-api/internal/model"
)

const appointmentColumns = `id, date_time, reason, status, user_id, patient_id, consultation_id, created_at, updated_at`

type appointmentRepository struct {
	db sqlx.ExtContext
}

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, date_time, reason, status, user_id, patient_id, consultation_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	if appointment.ID == uuid.Nil {
		appointment.ID = uuid.New()
	}
	if appointment.Status == "" {
		appointment.Status = model.AppointmentStatusWaiting
	}
	now := time.Now().UTC()
	appointment.CreatedAt = now
	appointment.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		appointment.ID,
		appointment.DateTime,
		appointment.Reason,
		appointment.Status,
		appointment.UserID,
		appointment.PatientID,
		appointment.ConsultationID,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	)
	return wrapErr("create appointment", err)
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`

	var appointment model.Appointment
	if err := sqlx.GetContext(ctx, r.db, &appointment, query, id); err != nil {
		return nil, wrapErr("get appointment", err)
	}
	return &appointment, nil
}

func (r *appointmentRepository) Update(ctx context.Context, appointment *model.Appointment) error {
	query := `
		UPDATE appointments SET
			date_time = $1, reason = $2, status = $3, patient_id = $4,
			consultation_id = $5, updated_at = $6
		WHERE id = $7
	`

	appointment.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, query,
		appointment.DateTime,
		appointment.Reason,
		appointment.Status,
		appointment.PatientID,
		appointment.ConsultationID,
		appointment.UpdatedAt,
		appointment.ID,
	)
	if err != nil {
		return wrapErr("update appointment", err)
	}
	return expectRow("update appointment", res)
}

func (r *appointmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return wrapErr("delete appointment", err)
	}
	return expectRow("delete appointment", res)
}

func (r *appointmentRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.Appointment, error) {
	if len(ids) == 0 {
		return []*model.Appointment{}, nil
	}
	query := `SELECT ` + appointmentColumns + ` FROM appointments
		WHERE id = ANY($1) ORDER BY array_position($1, id)`

	appointments := []*model.Appointment{}
	if err := sqlx.SelectContext(ctx, r.db, &appointments, query, pq.Array(ids)); err != nil {
		return nil, wrapErr("list appointments", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments
		WHERE patient_id = $1 ORDER BY created_at, id`

	appointments := []*model.Appointment{}
	if err := sqlx.SelectContext(ctx, r.db, &appointments, query, patientID); err != nil {
		return nil, wrapErr("list patient appointments", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) Complete(ctx context.Context, id, consultationID uuid.UUID) error {
	query := `
		UPDATE appointments SET status = $1, consultation_id = $2, updated_at = NOW()
		WHERE id = $3
	`

	res, err := r.db.ExecContext(ctx, query, model.AppointmentStatusCompleted, consultationID, id)
	if err != nil {
		return wrapErr("complete appointment", err)
	}
	return expectRow("complete appointment", res)
}

func (r *appointmentRepository) LinkConsultation(ctx context.Context, id, consultationID uuid.UUID) error {
	query := `UPDATE appointments SET consultation_id = $1, updated_at = NOW() WHERE id = $2`

	res, err := r.db.ExecContext(ctx, query, consultationID, id)
	if err != nil {
		return wrapErr("link appointment consultation", err)
	}
	return expectRow("link appointment consultation", res)
}

func (r *appointmentRepository) ClearConsultation(ctx context.Context, consultationID uuid.UUID) error {
	query := `
		UPDATE appointments SET consultation_id = NULL, updated_at = NOW()
		WHERE consultation_id = $1
	`

	_, err := r.db.ExecContext(ctx, query, consultationID)
	return wrapErr("clear appointment consultation", err)
}

func (r *appointmentRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM appointments WHERE user_id = $1`, userID)
	if err != nil {
		return 0, wrapErr("delete user appointments", err)
	}
	return res.RowsAffected()
}
