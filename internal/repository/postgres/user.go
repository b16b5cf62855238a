package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medelle/practice-api/internal/model"
)

const userColumns = `id, email, password_hash, name, role, email_verified,
	photo_url, work_logo_url, personal_phone, work_phone, speciality, work_address, gender,
	subscription_type AS "subscription.type",
	subscription_id AS "subscription.subscription_id",
	subscription_due_date AS "subscription.due_date",
	appointments, patients, consultations, created_at, updated_at`

var userRefColumns = map[model.UserRef]string{
	model.UserRefAppointments:  "appointments",
	model.UserRefPatients:      "patients",
	model.UserRefConsultations: "consultations",
}

type userRepository struct {
	db sqlx.ExtContext
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (
			id, email, password_hash, name, role, email_verified,
			subscription_type, subscription_id, subscription_due_date,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Role == "" {
		user.Role = model.RoleUser
	}
	if user.Subscription.Type == "" {
		user.Subscription.Type = model.SubscriptionInactive
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Name,
		user.Role,
		user.EmailVerified,
		user.Subscription.Type,
		user.Subscription.SubscriptionID,
		user.Subscription.DueDate,
		user.CreatedAt,
		user.UpdatedAt,
	)
	return wrapErr("create user", err)
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	var user model.User
	if err := sqlx.GetContext(ctx, r.db, &user, query, id); err != nil {
		return nil, wrapErr("get user", err)
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	var user model.User
	if err := sqlx.GetContext(ctx, r.db, &user, query, email); err != nil {
		return nil, wrapErr("get user by email", err)
	}
	return &user, nil
}

func (r *userRepository) GetBySubscriptionID(ctx context.Context, subscriptionID string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE subscription_id = $1 LIMIT 1`

	var user model.User
	if err := sqlx.GetContext(ctx, r.db, &user, query, subscriptionID); err != nil {
		return nil, wrapErr("get user by subscription", err)
	}
	return &user, nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	query := `
		UPDATE users SET
			email = $1,
			password_hash = $2,
			name = $3,
			role = $4,
			email_verified = $5,
			photo_url = $6,
			work_logo_url = $7,
			personal_phone = $8,
			work_phone = $9,
			speciality = $10,
			work_address = $11,
			gender = $12,
			updated_at = $13
		WHERE id = $14
	`

	user.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, query,
		user.Email,
		user.PasswordHash,
		user.Name,
		user.Role,
		user.EmailVerified,
		user.PhotoURL,
		user.WorkLogoURL,
		user.PersonalPhone,
		user.WorkPhone,
		user.Speciality,
		user.WorkAddress,
		user.Gender,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return wrapErr("update user", err)
	}
	return expectRow("update user", res)
}

func (r *userRepository) UpdateSubscription(ctx context.Context, id uuid.UUID, sub model.Subscription) error {
	query := `
		UPDATE users SET
			subscription_type = $1,
			subscription_id = $2,
			subscription_due_date = $3,
			updated_at = NOW()
		WHERE id = $4
	`

	res, err := r.db.ExecContext(ctx, query, sub.Type, sub.SubscriptionID, sub.DueDate, id)
	if err != nil {
		return wrapErr("update subscription", err)
	}
	return expectRow("update subscription", res)
}

func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return wrapErr("delete user", err)
	}
	return expectRow("delete user", res)
}

// PushRef appends childID to the named set unless it is already present
func (r *userRepository) PushRef(ctx context.Context, id uuid.UUID, ref model.UserRef, childID uuid.UUID) error {
	col, ok := userRefColumns[ref]
	if !ok {
		return fmt.Errorf("unknown user reference %q", ref)
	}
	query := fmt.Sprintf(`
		UPDATE users SET %[1]s = array_append(%[1]s, $2), updated_at = NOW()
		WHERE id = $1 AND NOT ($2 = ANY(%[1]s))
	`, col)

	_, err := r.db.ExecContext(ctx, query, id, childID)
	return wrapErr("push user reference", err)
}

func (r *userRepository) PullRef(ctx context.Context, id uuid.UUID, ref model.UserRef, childID uuid.UUID) error {
	col, ok := userRefColumns[ref]
	if !ok {
		return fmt.Errorf("unknown user reference %q", ref)
	}
	query := fmt.Sprintf(`
		UPDATE users SET %[1]s = array_remove(%[1]s, $2), updated_at = NOW()
		WHERE id = $1
	`, col)

	_, err := r.db.ExecContext(ctx, query, id, childID)
	return wrapErr("pull user reference", err)
}
