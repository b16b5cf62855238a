package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/medelle/practice-api/internal/model"
)

const patientColumns = `id, user_id, name, photo_url, email, phone, address, date_of_birth, gender,
	age, insurance, marital_status, blood_group, height, weight, medical_history, doctor_notes,
	appointments, consultations, created_at, updated_at`

var patientRefColumns = map[model.PatientRef]string{
	model.PatientRefAppointments:  "appointments",
	model.PatientRefConsultations: "consultations",
}

type patientRepository struct {
	db sqlx.ExtContext
}

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	query := `
		INSERT INTO patients (
			id, user_id, name, photo_url, email, phone, address, date_of_birth, gender,
			age, insurance, marital_status, blood_group, height, weight, medical_history,
			doctor_notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`

	if patient.ID == uuid.Nil {
		patient.ID = uuid.New()
	}
	now := time.Now().UTC()
	patient.CreatedAt = now
	patient.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		patient.ID,
		patient.UserID,
		patient.Name,
		patient.PhotoURL,
		patient.Email,
		patient.Phone,
		patient.Address,
		patient.DateOfBirth,
		patient.Gender,
		patient.Age,
		patient.Insurance,
		patient.MaritalStatus,
		patient.BloodGroup,
		patient.Height,
		patient.Weight,
		patient.MedicalHistory,
		patient.DoctorNotes,
		patient.CreatedAt,
		patient.UpdatedAt,
	)
	return wrapErr("create patient", err)
}

func (r *patientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE id = $1`

	var patient model.Patient
	if err := sqlx.GetContext(ctx, r.db, &patient, query, id); err != nil {
		return nil, wrapErr("get patient", err)
	}
	return &patient, nil
}

// Update writes the demographic fields. user_id is immutable.
func (r *patientRepository) Update(ctx context.Context, patient *model.Patient) error {
	query := `
		UPDATE patients SET
			name = $1, photo_url = $2, email = $3, phone = $4, address = $5,
			date_of_birth = $6, gender = $7, age = $8, insurance = $9, marital_status = $10,
			blood_group = $11, height = $12, weight = $13, medical_history = $14,
			doctor_notes = $15, updated_at = $16
		WHERE id = $17
	`

	patient.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, query,
		patient.Name,
		patient.PhotoURL,
		patient.Email,
		patient.Phone,
		patient.Address,
		patient.DateOfBirth,
		patient.Gender,
		patient.Age,
		patient.Insurance,
		patient.MaritalStatus,
		patient.BloodGroup,
		patient.Height,
		patient.Weight,
		patient.MedicalHistory,
		patient.DoctorNotes,
		patient.UpdatedAt,
		patient.ID,
	)
	if err != nil {
		return wrapErr("update patient", err)
	}
	return expectRow("update patient", res)
}

func (r *patientRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return wrapErr("delete patient", err)
	}
	return expectRow("delete patient", res)
}

func (r *patientRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.Patient, error) {
	if len(ids) == 0 {
		return []*model.Patient{}, nil
	}
	query := `SELECT ` + patientColumns + ` FROM patients
		WHERE id = ANY($1) ORDER BY array_position($1, id)`

	patients := []*model.Patient{}
	if err := sqlx.SelectContext(ctx, r.db, &patients, query, pq.Array(ids)); err != nil {
		return nil, wrapErr("list patients", err)
	}
	return patients, nil
}

func (r *patientRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM patients WHERE user_id = $1`, userID)
	if err != nil {
		return 0, wrapErr("delete user patients", err)
	}
	return res.RowsAffected()
}

func (r *patientRepository) PushRef(ctx context.Context, id uuid.UUID, ref model.PatientRef, childID uuid.UUID) error {
	col, ok := patientRefColumns[ref]
	if !ok {
		return fmt.Errorf("unknown patient reference %q", ref)
	}
	query := fmt.Sprintf(`
		UPDATE patients SET %[1]s = array_append(%[1]s, $2), updated_at = NOW()
		WHERE id = $1 AND NOT ($2 = ANY(%[1]s))
	`, col)

	_, err := r.db.ExecContext(ctx, query, id, childID)
	return wrapErr("push patient reference", err)
}

func (r *patientRepository) PullRef(ctx context.Context, id uuid.UUID, ref model.PatientRef, childID uuid.UUID) error {
	col, ok := patientRefColumns[ref]
	if !ok {
		return fmt.Errorf("unknown patient reference %q", ref)
	}
	query := fmt.Sprintf(`
		UPDATE patients SET %[1]s = array_remove(%[1]s, $2), updated_at = NOW()
		WHERE id = $1
	`, col)

	_, err := r.db.ExecContext(ctx, query, id, childID)
	return wrapErr("pull patient reference", err)
}
