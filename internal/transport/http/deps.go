package http

import (
	"context"
	"time"

	"github.com/campus-market-api/internal/domain"
)

// UserRepository is the minimal interface the router requires from the user store.
type UserRepository interface {
	Put(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

// OtpRepository is the minimal interface the router requires from the OTP ledger.
type OtpRepository interface {
	Put(ctx context.Context, c *domain.OtpCode) error
	LatestActive(ctx context.Context, email string) (*domain.OtpCode, error)
	CountSince(ctx context.Context, email string, since time.Time) (int, error)
	IncrementAttempts(ctx context.Context, email, otpID string, expected int) error
	Consume(ctx context.Context, email, otpID string) error
}
