package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/medelle/practice-api/internal/model"
)

const consultationColumns = `id, reason, symptoms, diagnosis, treatment, laboratory_studies,
	images_studies, gynecological_information, user_id, patient_id, appointment_id,
	created_at, updated_at`

type consultationRepository struct {
	db sqlx.ExtContext
}

func (r *consultationRepository) Create(ctx context.Context, c *model.Consultation) error {
	query := `
		INSERT INTO consultations (
			id, reason, symptoms, diagnosis, treatment, laboratory_studies, images_studies,
			gynecological_information, user_id, patient_id, appointment_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		c.ID,
		c.Reason,
		c.Symptoms,
		c.Diagnosis,
		c.Treatment,
		c.LaboratoryStudies,
		c.ImagesStudies,
		c.GynecologicalInformation,
		c.UserID,
		c.PatientID,
		c.AppointmentID,
		c.CreatedAt,
		c.UpdatedAt,
	)
	return wrapErr("create consultation", err)
}

func (r *consultationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Consultation, error) {
	query := `SELECT ` + consultationColumns + ` FROM consultations WHERE id = $1`

	var c model.Consultation
	if err := sqlx.GetContext(ctx, r.db, &c, query, id); err != nil {
		return nil, wrapErr("get consultation", err)
	}
	return &c, nil
}

func (r *consultationRepository) Update(ctx context.Context, c *model.Consultation) error {
	query := `
		UPDATE consultations SET
			reason = $1, symptoms = $2, diagnosis = $3, treatment = $4,
			laboratory_studies = $5, images_studies = $6, gynecological_information = $7,
			patient_id = $8, appointment_id = $9, updated_at = $10
		WHERE id = $11
	`

	c.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, query,
		c.Reason,
		c.Symptoms,
		c.Diagnosis,
		c.Treatment,
		c.LaboratoryStudies,
		c.ImagesStudies,
		c.GynecologicalInformation,
		c.PatientID,
		c.AppointmentID,
		c.UpdatedAt,
		c.ID,
	)
	if err != nil {
		return wrapErr("update consultation", err)
	}
	return expectRow("update consultation", res)
}

func (r *consultationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM consultations WHERE id = $1`, id)
	if err != nil {
		return wrapErr("delete consultation", err)
	}
	return expectRow("delete consultation", res)
}

func (r *consultationRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.Consultation, error) {
	if len(ids) == 0 {
		return []*model.Consultation{}, nil
	}
	query := `SELECT ` + consultationColumns + ` FROM consultations
		WHERE id = ANY($1) ORDER BY array_position($1, id)`

	consultations := []*model.Consultation{}
	if err := sqlx.SelectContext(ctx, r.db, &consultations, query, pq.Array(ids)); err != nil {
		return nil, wrapErr("list consultations", err)
	}
	return consultations, nil
}

func (r *consultationRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Consultation, error) {
	query := `SELECT ` + consultationColumns + ` FROM consultations
		WHERE patient_id = $1 ORDER BY created_at, id`

	consultations := []*model.Consultation{}
	if err := sqlx.SelectContext(ctx, r.db, &consultations, query, patientID); err != nil {
		return nil, wrapErr("list patient consultations", err)
	}
	return consultations, nil
}

func (r *consultationRepository) ClearAppointment(ctx context.Context, appointmentID uuid.UUID) error {
	query := `
		UPDATE consultations SET appointment_id = NULL, updated_at = NOW()
		WHERE appointment_id = $1
	`

	_, err := r.db.ExecContext(ctx, query, appointmentID)
	return wrapErr("clear consultation appointment", err)
}

func (r *consultationRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM consultations WHERE user_id = $1`, userID)
	if err != nil {
		return 0, wrapErr("delete user consultations", err)
	}
	return res.RowsAffected()
}
