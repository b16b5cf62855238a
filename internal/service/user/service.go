package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medelle/practice-api/internal/model"
	"github.com/medelle/practice-api/internal/repository"
	"github.com/medelle/practice-api/internal/service/integrity"
	apperrors "github.com/medelle/practice-api/pkg/errors"
	"github.com/medelle/practice-api/pkg/security"
	"github.com/medelle/practice-api/pkg/validator"
)

const (
	msgUserNotFound      = "User not found"
	msgOldPassword       = "Old password does not match"
	msgPasswordsMismatch = "Passwords do not match"
	msgEmailNotAvailable = "Email not available"
	msgFieldNotFound     = "Field not found in user profile"
)

type UserService interface {
	Get(ctx context.Context, id uuid.UUID) (*model.User, error)
	Update(ctx context.Context, id uuid.UUID, req *model.UpdateUserRequest) (*model.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteField(ctx context.Context, id uuid.UUID, field model.ClearableUserField) error
}

type Service struct {
	store     repository.Store
	coord     *integrity.Coordinator
	hasher    security.PasswordHasher
	validator *validator.Validator
}

func NewService(store repository.Store, coord *integrity.Coordinator, hasher security.PasswordHasher, v *validator.Validator) *Service {
	return &Service{
		store:     store,
		coord:     coord,
		hasher:    hasher,
		validator: v,
	}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.store.Users().Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound(msgUserNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// Update applies the non-empty profile fields of req. A password change
// needs all three password fields; the old one must match.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req *model.UpdateUserRequest) (*model.User, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.WantsPasswordChange() {
		hash, err := s.changePassword(user, req)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}

	setString(&user.Name, req.Name)
	setString(&user.PhotoURL, req.PhotoURL)
	setString(&user.WorkLogoURL, req.WorkLogoURL)
	setString(&user.PersonalPhone, req.PersonalPhone)
	setString(&user.WorkPhone, req.WorkPhone)
	setString(&user.Speciality, req.Speciality)
	setString(&user.WorkAddress, req.WorkAddress)
	setString(&user.Gender, req.Gender)
	if req.Email != nil && *req.Email != "" {
		user.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}

	if err := s.store.Users().Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Validation(msgEmailNotAvailable)
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	zerolog.Ctx(ctx).Info().Str("user_id", id.String()).Msg("User profile updated")
	return user, nil
}

func (s *Service) changePassword(user *model.User, req *model.UpdateUserRequest) (string, error) {
	if req.OldPassword == "" || req.NewPassword == "" || req.ConfirmNewPassword == "" {
		return "", apperrors.Validation(validator.MissingFieldsMessage)
	}
	if err := s.hasher.Compare(user.PasswordHash, req.OldPassword); err != nil {
		return "", apperrors.Validation(msgOldPassword)
	}
	if req.NewPassword != req.ConfirmNewPassword {
		return "", apperrors.Validation(msgPasswordsMismatch)
	}
	if err := security.ValidatePassword(req.NewPassword); err != nil {
		return "", apperrors.Validation(err.Error())
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return hash, nil
}

// Delete removes the user together with every patient, appointment and
// consultation they own.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.coord.PurgeUser(ctx, id); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	zerolog.Ctx(ctx).Info().Str("user_id", id.String()).Msg("User deleted")
	return nil
}

func (s *Service) DeleteField(ctx context.Context, id uuid.UUID, field model.ClearableUserField) error {
	if field == "" {
		return apperrors.Validation(validator.MissingFieldsMessage)
	}
	if !field.Valid() {
		return apperrors.Validation(msgFieldNotFound)
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	user.Clear(field)
	if err := s.store.Users().Update(ctx, user); err != nil {
		return fmt.Errorf("failed to clear %s: %w", field, err)
	}
	return nil
}

func setString(dst *string, src *string) {
	if src != nil && *src != "" {
		*dst = *src
	}
}
