package user

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/medelle/practice-api/internal/model"
	"github.com/medelle/practice-api/internal/repository/memory"
	"github.com/medelle/practice-api/internal/service/integrity"
	"github.com/medelle/practice-api/pkg/security"
	"github.com/medelle/practice-api/pkg/validator"
)

func strPtr(s string) *string { return &s }

type fixture struct {
	ctx    context.Context
	svc    *Service
	store  *memory.Store
	hasher security.PasswordHasher
	user   *model.User
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	hasher := security.NewBcryptHasher(bcrypt.MinCost)

	hash, err := hasher.Hash("Secret123")
	require.NoError(t, err)
	user := &model.User{Email: "doc@example.com", Name: "Doc", PasswordHash: hash, Speciality: "cardio"}
	require.NoError(t, store.Users().Create(ctx, user))

	coord := integrity.NewCoordinator(store)
	return &fixture{
		ctx:    ctx,
		svc:    NewService(store, coord, hasher, validator.New()),
		store:  store,
		hasher: hasher,
		user:   user,
	}
}

func TestUpdate_Profile(t *testing.T) {
	f := setup(t)

	updated, err := f.svc.Update(f.ctx, f.user.ID, &model.UpdateUserRequest{
		Name:      strPtr("Dr. Doc"),
		Email:     strPtr("New@Example.com"),
		WorkPhone: strPtr(""),
	})
	require.NoError(t, err)
	assert.Equal(t, "Dr. Doc", updated.Name)
	assert.Equal(t, "new@example.com", updated.Email)
	assert.Equal(t, "cardio", updated.Speciality)

	stored, err := f.store.Users().Get(f.ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", stored.Email)
}

func TestUpdate_EmailTaken(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.store.Users().Create(f.ctx, &model.User{Email: "taken@example.com", Name: "Other"}))

	_, err := f.svc.Update(f.ctx, f.user.ID, &model.UpdateUserRequest{Email: strPtr("taken@example.com")})
	require.Error(t, err)
	assert.Equal(t, msgEmailNotAvailable, err.Error())
}

func TestUpdate_Password(t *testing.T) {
	tests := []struct {
		name    string
		req     model.UpdateUserRequest
		wantErr string
	}{
		{
			name:    "partial fields",
			req:     model.UpdateUserRequest{NewPassword: "Another123"},
			wantErr: validator.MissingFieldsMessage,
		},
		{
			name:    "wrong old password",
			req:     model.UpdateUserRequest{OldPassword: "Wrong1234", NewPassword: "Another123", ConfirmNewPassword: "Another123"},
			wantErr: msgOldPassword,
		},
		{
			name:    "mismatch",
			req:     model.UpdateUserRequest{OldPassword: "Secret123", NewPassword: "Another123", ConfirmNewPassword: "Another124"},
			wantErr: msgPasswordsMismatch,
		},
		{
			name:    "weak",
			req:     model.UpdateUserRequest{OldPassword: "Secret123", NewPassword: "weak", ConfirmNewPassword: "weak"},
			wantErr: security.ErrWeakPassword.Error(),
		},
		{
			name: "changed",
			req:  model.UpdateUserRequest{OldPassword: "Secret123", NewPassword: "Another123", ConfirmNewPassword: "Another123"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			_, err := f.svc.Update(f.ctx, f.user.ID, &tt.req)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr, err.Error())
				return
			}
			require.NoError(t, err)

			stored, err := f.store.Users().Get(f.ctx, f.user.ID)
			require.NoError(t, err)
			assert.NoError(t, f.hasher.Compare(stored.PasswordHash, "Another123"))
		})
	}
}

func TestDelete_Purges(t *testing.T) {
	f := setup(t)
	coord := integrity.NewCoordinator(f.store)
	p := &model.Patient{UserID: f.user.ID, Name: "Ana"}
	require.NoError(t, coord.CreatePatient(f.ctx, p))
	require.NoError(t, coord.CreateAppointment(f.ctx, &model.Appointment{UserID: f.user.ID, PatientID: p.ID, DateTime: time.Now()}))

	require.NoError(t, f.svc.Delete(f.ctx, f.user.ID))

	_, err := f.svc.Get(f.ctx, f.user.ID)
	require.Error(t, err)
	assert.Equal(t, msgUserNotFound, err.Error())

	_, err = f.store.Patients().Get(f.ctx, p.ID)
	assert.Error(t, err)

	err = f.svc.Delete(f.ctx, uuid.New())
	require.Error(t, err)
	assert.Equal(t, msgUserNotFound, err.Error())
}

func TestDeleteField(t *testing.T) {
	f := setup(t)

	require.NoError(t, f.svc.DeleteField(f.ctx, f.user.ID, model.FieldSpeciality))
	stored, err := f.store.Users().Get(f.ctx, f.user.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Speciality)

	err = f.svc.DeleteField(f.ctx, f.user.ID, model.ClearableUserField("email"))
	require.Error(t, err)
	assert.Equal(t, msgFieldNotFound, err.Error())

	err = f.svc.DeleteField(f.ctx, f.user.ID, "")
	require.Error(t, err)
	assert.Equal(t, validator.MissingFieldsMessage, err.Error())
}
