package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Purpose scopes a single-use token to one flow
type Purpose string

const (
	PurposeSession           Purpose = ""
	PurposeEmailVerification Purpose = "email_verification"
	PurposePasswordReset     Purpose = "password_reset"

	PurposeTokenExpiry = 30 * time.Minute
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

// Claims is the payload carried by every token this service signs.
// Session tokens leave Purpose empty and carry no expiry.
type Claims struct {
	ID      uuid.UUID `json:"id"`
	Purpose Purpose   `json:"purpose,omitempty"`
	jwt.RegisteredClaims
}

type JWTService interface {
	GenerateSessionToken(userID uuid.UUID) (string, error)
	ValidateSessionToken(token string) (*Claims, error)
	GeneratePurposeToken(userID uuid.UUID, purpose Purpose) (string, error)
	ValidatePurposeToken(token string, purpose Purpose) (*Claims, error)
}

type jwtService struct {
	secret []byte
	now    func() time.Time
}

// NewJWTService creates an HS256 token service. now may be nil.
func NewJWTService(secret string, now func() time.Time) JWTService {
	if now == nil {
		now = time.Now
	}
	return &jwtService{secret: []byte(secret), now: now}
}

func (s *jwtService) GenerateSessionToken(userID uuid.UUID) (string, error) {
	claims := Claims{
		ID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(s.now()),
		},
	}
	return s.sign(claims)
}

func (s *jwtService) ValidateSessionToken(token string) (*Claims, error) {
	claims, err := s.parse(token)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != PurposeSession {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func (s *jwtService) GeneratePurposeToken(userID uuid.UUID, purpose Purpose) (string, error) {
	if purpose == PurposeSession {
		return "", fmt.Errorf("purpose token requires a purpose")
	}
	now := s.now()
	claims := Claims{
		ID:      userID,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(PurposeTokenExpiry)),
		},
	}
	return s.sign(claims)
}

func (s *jwtService) ValidatePurposeToken(token string, purpose Purpose) (*Claims, error) {
	claims, err := s.parse(token)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != purpose || claims.RegisteredClaims.ID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func (s *jwtService) sign(claims Claims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (s *jwtService) parse(token string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.ID == uuid.Nil {
		return nil, ErrTokenInvalid
	}
	return &claims, nil
}
