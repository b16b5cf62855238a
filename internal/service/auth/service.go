package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medelle/practice-api/internal/email"
	"github.com/medelle/practice-api/internal/model"
	"github.com/medelle/practice-api/internal/paypal"
	"github.com/medelle/practice-api/internal/repository"
	"github.com/medelle/practice-api/internal/tokenstore"
	"github.com/medelle/practice-api/pkg/auth"
	apperrors "github.com/medelle/practice-api/pkg/errors"
	"github.com/medelle/practice-api/pkg/security"
	"github.com/medelle/practice-api/pkg/validator"
)

const (
	msgEmailNotAvailable    = "Email not available"
	msgPasswordsMismatch    = "Passwords do not match"
	msgInvalidCredentials   = "Invalid email or password"
	msgSubscriptionInactive = "Subscription inactive"
	msgEmailNotVerified     = "Email not verified"
	msgEmailAlreadyVerified = "Email already verified"
	msgUserNotFound         = "User not found"
	msgEmailDelivery        = "Failed to send email"

	msgVerificationExpired = "Verification token expired"
	msgVerificationInvalid = "Invalid verification token"
	msgResetExpired        = "Reset token expired"
	msgResetInvalid        = "Invalid reset token"
	msgTokenUsed           = "Token already used"
)

// SubscriptionDataKey is the error payload key carrying the subscription a
// gated user can approve.
const SubscriptionDataKey = "subscription_data"

// SubscriptionGenerator provisions a subscription for a user who tries to
// sign in without one.
type SubscriptionGenerator interface {
	Generate(ctx context.Context, user *model.User) (*paypal.Subscription, error)
}

type AuthService interface {
	SignUp(ctx context.Context, req *model.SignUpRequest) (*model.User, error)
	SignIn(ctx context.Context, req *model.SignInRequest) (*model.Session, error)
	VerifySession(ctx context.Context, userID uuid.UUID) (*model.Session, error)
	VerifyEmail(ctx context.Context, token string) error
	ResendVerification(ctx context.Context, email string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, req *model.ResetPasswordRequest) error
}

type Service struct {
	store         repository.Store
	jwtSvc        auth.JWTService
	hasher        security.PasswordHasher
	ledger        tokenstore.Ledger
	mailer        email.Service
	subscriptions SubscriptionGenerator
	validator     *validator.Validator
	now           func() time.Time
}

func NewService(store repository.Store, jwtSvc auth.JWTService, hasher security.PasswordHasher,
	ledger tokenstore.Ledger, mailer email.Service, subscriptions SubscriptionGenerator, v *validator.Validator) *Service {
	return &Service{
		store:         store,
		jwtSvc:        jwtSvc,
		hasher:        hasher,
		ledger:        ledger,
		mailer:        mailer,
		subscriptions: subscriptions,
		validator:     v,
		now:           time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUp creates an unverified account and mails the verification link.
// The account is removed again when the mail cannot be sent.
func (s *Service) SignUp(ctx context.Context, req *model.SignUpRequest) (*model.User, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	addr := normalizeEmail(req.Email)

	if _, err := s.store.Users().GetByEmail(ctx, addr); err == nil {
		return nil, apperrors.Validation(msgEmailNotAvailable)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	if req.Password != req.ConfirmPassword {
		return nil, apperrors.Validation(msgPasswordsMismatch)
	}
	if err := security.ValidatePassword(req.Password); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Email:        addr,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: hash,
		Role:         model.RoleUser,
		Subscription: model.Subscription{Type: model.SubscriptionInactive},
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Validation(msgEmailNotAvailable)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if err := s.sendVerification(ctx, user); err != nil {
		if delErr := s.store.Users().Delete(ctx, user.ID); delErr != nil {
			zerolog.Ctx(ctx).Error().Err(delErr).Str("user_id", user.ID.String()).Msg("Failed to remove user after sign-up failure")
		}
		return nil, err
	}

	zerolog.Ctx(ctx).Info().Str("user_id", user.ID.String()).Msg("User signed up")
	return user, nil
}

func (s *Service) sendVerification(ctx context.Context, user *model.User) error {
	token, err := s.jwtSvc.GeneratePurposeToken(user.ID, auth.PurposeEmailVerification)
	if err != nil {
		return fmt.Errorf("failed to generate verification token: %w", err)
	}
	if err := s.mailer.SendVerification(ctx, user.Email, user.Name, token); err != nil {
		return apperrors.Upstream(msgEmailDelivery, err)
	}
	return nil
}

// SignIn checks credentials, then the subscription gate, then email
// verification. Unknown emails and wrong passwords fail identically.
func (s *Service) SignIn(ctx context.Context, req *model.SignInRequest) (*model.Session, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.store.Users().GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.Validation(msgInvalidCredentials)
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		return nil, apperrors.Validation(msgInvalidCredentials)
	}

	if !user.Role.BypassesSubscription() && !user.HasActiveSubscription() {
		return nil, s.subscriptionGate(ctx, user)
	}
	if !user.EmailVerified {
		return nil, apperrors.Validation(msgEmailNotVerified)
	}

	return s.session(user)
}

func (s *Service) subscriptionGate(ctx context.Context, user *model.User) error {
	gateErr := apperrors.Validation(msgSubscriptionInactive)

	sub, err := s.subscriptions.Generate(ctx, user)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("user_id", user.ID.String()).Msg("Failed to generate subscription at sign-in")
		return gateErr
	}
	return gateErr.WithData(map[string]interface{}{SubscriptionDataKey: sub})
}

func (s *Service) session(user *model.User) (*model.Session, error) {
	token, err := s.jwtSvc.GenerateSessionToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}
	return &model.Session{Token: token, User: user}, nil
}

// VerifySession re-issues a session token for an authenticated user
func (s *Service) VerifySession(ctx context.Context, userID uuid.UUID) (*model.Session, error) {
	user, err := s.store.Users().Get(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.Unauthorized(msgUserNotFound)
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return s.session(user)
}

// redeem validates a purpose token and burns its jti. Each token redeems
// at most once.
func (s *Service) redeem(ctx context.Context, token string, purpose auth.Purpose, expiredMsg, invalidMsg string) (*model.User, error) {
	claims, err := s.jwtSvc.ValidatePurposeToken(token, purpose)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, apperrors.InvalidToken(expiredMsg, err)
		}
		return nil, apperrors.InvalidToken(invalidMsg, err)
	}

	user, err := s.store.Users().Get(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.InvalidToken(invalidMsg, err)
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	ttl := time.Second
	if claims.ExpiresAt != nil {
		if remaining := claims.ExpiresAt.Time.Sub(s.now()); remaining > ttl {
			ttl = remaining
		}
	}
	fresh, err := s.ledger.Consume(ctx, claims.RegisteredClaims.ID, ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to record token use: %w", err)
	}
	if !fresh {
		return nil, apperrors.InvalidToken(msgTokenUsed, nil)
	}
	return user, nil
}

func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return apperrors.Validation(validator.MissingFieldsMessage)
	}

	user, err := s.redeem(ctx, token, auth.PurposeEmailVerification, msgVerificationExpired, msgVerificationInvalid)
	if err != nil {
		return err
	}
	if user.EmailVerified {
		return nil
	}

	user.EmailVerified = true
	if err := s.store.Users().Update(ctx, user); err != nil {
		return fmt.Errorf("failed to mark email verified: %w", err)
	}
	zerolog.Ctx(ctx).Info().Str("user_id", user.ID.String()).Msg("Email verified")
	return nil
}

// ResendVerification mails a fresh verification link. Unknown addresses
// succeed silently.
func (s *Service) ResendVerification(ctx context.Context, addr string) error {
	if err := s.validator.Validate(&model.EmailRequest{Email: addr}); err != nil {
		return err
	}

	user, err := s.store.Users().GetByEmail(ctx, normalizeEmail(addr))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to load user: %w", err)
	}
	if user.EmailVerified {
		return apperrors.Validation(msgEmailAlreadyVerified)
	}
	return s.sendVerification(ctx, user)
}

// ForgotPassword mails a reset link when the address belongs to a user.
// It reports success either way.
func (s *Service) ForgotPassword(ctx context.Context, addr string) error {
	if err := s.validator.Validate(&model.EmailRequest{Email: addr}); err != nil {
		return err
	}
	logger := zerolog.Ctx(ctx)

	user, err := s.store.Users().GetByEmail(ctx, normalizeEmail(addr))
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logger.Error().Err(err).Msg("Failed to look up user for password reset")
		}
		return nil
	}

	token, err := s.jwtSvc.GeneratePurposeToken(user.ID, auth.PurposePasswordReset)
	if err != nil {
		logger.Error().Err(err).Str("user_id", user.ID.String()).Msg("Failed to generate reset token")
		return nil
	}
	if err := s.mailer.SendPasswordReset(ctx, user.Email, user.Name, token); err != nil {
		logger.Error().Err(err).Str("user_id", user.ID.String()).Msg("Failed to send reset email")
	}
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, req *model.ResetPasswordRequest) error {
	if err := s.validator.Validate(req); err != nil {
		return err
	}
	if req.Password != req.ConfirmPassword {
		return apperrors.Validation(msgPasswordsMismatch)
	}
	if err := security.ValidatePassword(req.Password); err != nil {
		return apperrors.Validation(err.Error())
	}

	user, err := s.redeem(ctx, req.Token, auth.PurposePasswordReset, msgResetExpired, msgResetInvalid)
	if err != nil {
		return err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.PasswordHash = hash
	if err := s.store.Users().Update(ctx, user); err != nil {
		return fmt.Errorf("failed to reset password: %w", err)
	}
	zerolog.Ctx(ctx).Info().Str("user_id", user.ID.String()).Msg("Password reset")
	return nil
}
