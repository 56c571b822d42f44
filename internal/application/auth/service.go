// Package auth composes the OTP engine with the user store to implement the
// registration, login, and password-reset flows.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/campus-market-api/internal/domain"
	"github.com/campus-market-api/internal/pkg/clock"
	"github.com/campus-market-api/internal/pkg/id"
	"golang.org/x/crypto/bcrypt"
)

// DynamoDB attribute names used in partial update maps.
const (
	fieldFullName     = "full_name"
	fieldPasswordHash = "password_hash"
	fieldVerified     = "verified"
)

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"full_name" validate:"required"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Code        string `json:"code" validate:"required,len=6"`
	NewPassword string `json:"new_password" validate:"required,min=6,max=72"`
}

type LoginResult struct {
	AccessToken string
	User        *domain.User
}

type Service interface {
	SendOTP(ctx context.Context, email string) error
	VerifyOTP(ctx context.Context, email, code string) error
	Register(ctx context.Context, req RegisterRequest) error
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, req ResetPasswordRequest) error
}

type userStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Put(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

type otpEngine interface {
	Issue(ctx context.Context, email string) error
	Verify(ctx context.Context, email, code string) error
}

type jwtSigner interface {
	Sign(userID, email string) (string, error)
}

type service struct {
	users  userStore
	engine otpEngine
	jwt    jwtSigner
	clock  clock.Clock
}

type ServiceDeps struct {
	UserRepo  userStore
	Engine    otpEngine
	JWTSigner jwtSigner
	Clock     clock.Clock
}

func NewService(deps ServiceDeps) Service {
	return &service{
		users:  deps.UserRepo,
		engine: deps.Engine,
		jwt:    deps.JWTSigner,
		clock:  deps.Clock,
	}
}

// SendOTP issues a code for email. It succeeds whether or not an account
// exists for the address, so the endpoint cannot be used to probe for
// registered emails.
func (s *service) SendOTP(ctx context.Context, email string) error {
	return s.engine.Issue(ctx, normalizeEmail(email))
}

// VerifyOTP validates a submitted code and marks the address verified,
// creating the account if this is its first successful verification. This is
// the only path that creates accounts.
func (s *service) VerifyOTP(ctx context.Context, email, code string) error {
	email = normalizeEmail(email)
	if err := s.engine.Verify(ctx, email, code); err != nil {
		return err
	}

	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		now := s.clock.Now()
		return s.users.Put(ctx, &domain.User{
			UserID:    id.New(),
			Email:     email,
			Verified:  true,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	if err != nil {
		return err
	}
	if !u.Verified {
		return s.users.Update(ctx, u.UserID, map[string]interface{}{fieldVerified: true})
	}
	return nil
}

// Register completes signup for an already-verified address by setting the
// display name and password.
func (s *service) Register(ctx context.Context, req RegisterRequest) error {
	email := normalizeEmail(req.Email)
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("email %s not verified: %w", email, domain.ErrNotVerified)
	}
	if err != nil {
		return err
	}
	if !u.Verified {
		return fmt.Errorf("email %s not verified: %w", email, domain.ErrNotVerified)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.users.Update(ctx, u.UserID, map[string]interface{}{
		fieldFullName:     req.FullName,
		fieldPasswordHash: string(hash),
	})
}

// Login checks the password and mints a signed credential. A missing account,
// an account without a password, and a wrong password all produce the same
// domain.ErrInvalidCredentials.
func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	email := normalizeEmail(req.Email)
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("login: %w", domain.ErrInvalidCredentials)
	}
	if u.PasswordHash == "" {
		return nil, fmt.Errorf("login: %w", domain.ErrInvalidCredentials)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		return nil, fmt.Errorf("login: %w", domain.ErrInvalidCredentials)
	}
	if !u.Verified {
		return nil, fmt.Errorf("email not verified: %w", domain.ErrNotVerified)
	}

	token, err := s.jwt.Sign(u.UserID, u.Email)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &LoginResult{AccessToken: token, User: u}, nil
}

// ForgotPassword issues a recovery code when an account exists. An unknown
// address gets the same generic success, so this endpoint discloses nothing —
// the same policy as SendOTP.
func (s *service) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if _, err := s.users.GetByEmail(ctx, email); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			slog.Warn("password reset requested for unknown email", "email", email)
			return nil
		}
		return err
	}
	return s.engine.Issue(ctx, email)
}

// ResetPassword verifies the recovery code and replaces the password. It does
// not require a completed registration; the OTP check alone proves control of
// the mailbox.
func (s *service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	email := normalizeEmail(req.Email)
	if err := s.engine.Verify(ctx, email, req.Code); err != nil {
		return err
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.users.Update(ctx, u.UserID, map[string]interface{}{fieldPasswordHash: string(hash)})
}

// normalizeEmail is the canonical identity key: trimmed, lowercased.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
