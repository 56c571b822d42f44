// Package otp implements the verification-code lifecycle: issuance with
// per-identity rate limiting, hashed storage, and single-use verification
// bounded by expiry and an attempt ceiling.
package otp

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/campus-market-api/internal/domain"
	"github.com/campus-market-api/internal/pkg/clock"
	"github.com/campus-market-api/internal/pkg/id"
	"golang.org/x/crypto/bcrypt"
)

// Codes are 6-digit numbers so they can be copied from an email by hand. The
// 900k code space is deliberately small and is compensated by the short TTL
// and the attempt ceiling, not by code length.
const (
	codeSpace = 900000
	codeFloor = 100000
)

// ledgerRetention is how long used/expired records stay in the table for
// rate-limit accounting before the storage TTL evicts them.
const ledgerRetention = 24 * time.Hour

type ledger interface {
	Put(ctx context.Context, c *domain.OtpCode) error
	LatestActive(ctx context.Context, email string) (*domain.OtpCode, error)
	IncrementAttempts(ctx context.Context, email, otpID string, expected int) error
	Consume(ctx context.Context, email, otpID string) error
}

type mailer interface {
	SendOTP(to, code string, ttl time.Duration) error
}

type admitter interface {
	Admit(ctx context.Context, email string) error
}

// Engine issues and verifies codes. All policy knobs arrive through EngineDeps
// at construction; nothing here reads ambient configuration.
type Engine struct {
	ledger        ledger
	mailer        mailer
	limiter       admitter
	clock         clock.Clock
	ttl           time.Duration
	maxAttempts   int
	allowedDomain string
}

type EngineDeps struct {
	Ledger        ledger
	Mailer        mailer
	Limiter       admitter
	Clock         clock.Clock
	TTL           time.Duration
	MaxAttempts   int
	AllowedDomain string
}

func NewEngine(deps EngineDeps) *Engine {
	return &Engine{
		ledger:        deps.Ledger,
		mailer:        deps.Mailer,
		limiter:       deps.Limiter,
		clock:         deps.Clock,
		ttl:           deps.TTL,
		maxAttempts:   deps.MaxAttempts,
		allowedDomain: deps.AllowedDomain,
	}
}

// Issue generates a fresh code for email, stores its hash in the ledger, and
// hands the raw code to the mailer. The ledger write commits before delivery
// is attempted: a failed send still counts against the rate ceiling and
// surfaces as domain.ErrDeliveryFailed.
func (e *Engine) Issue(ctx context.Context, email string) error {
	if !strings.HasSuffix(email, "@"+e.allowedDomain) {
		return fmt.Errorf("only @%s addresses allowed: %w", e.allowedDomain, domain.ErrValidation)
	}
	if err := e.limiter.Admit(ctx, email); err != nil {
		return err
	}

	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash code: %w", err)
	}

	now := e.clock.Now()
	rec := &domain.OtpCode{
		Email:     email,
		OtpID:     id.New(),
		CodeHash:  string(hash),
		Used:      false,
		Attempts:  0,
		CreatedAt: now,
		ExpiresAt: now.Add(e.ttl).Unix(),
		PurgeAt:   now.Add(ledgerRetention).Unix(),
	}
	if err := e.ledger.Put(ctx, rec); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}

	if err := e.mailer.SendOTP(email, code, e.ttl); err != nil {
		slog.Warn("otp delivery failed", "email", email, "err", err)
		return fmt.Errorf("send otp: %w", domain.ErrDeliveryFailed)
	}
	return nil
}

// Verify checks code against the most recent unconsumed record for email.
// Order matters: expiry is checked before the attempt ceiling and both before
// the hash comparison. An expired record is left untouched — it can never
// succeed, so a guess against it costs no attempt.
func (e *Engine) Verify(ctx context.Context, email, code string) error {
	rec, err := e.ledger.LatestActive(ctx, email)
	if err != nil {
		return err
	}
	if rec.ExpiresAt < e.clock.Now().Unix() {
		return fmt.Errorf("otp for %s: %w", email, domain.ErrExpired)
	}
	if rec.Attempts >= e.maxAttempts {
		return fmt.Errorf("otp for %s: %w", email, domain.ErrAttemptsExceeded)
	}

	if bcrypt.CompareHashAndPassword([]byte(rec.CodeHash), []byte(code)) != nil {
		if err := e.ledger.IncrementAttempts(ctx, email, rec.OtpID, rec.Attempts); err != nil {
			slog.Warn("could not record failed otp attempt", "email", email, "err", err)
		}
		return fmt.Errorf("invalid code: %w", domain.ErrInvalidCredentials)
	}

	if err := e.ledger.Consume(ctx, email, rec.OtpID); err != nil {
		// Lost the race against another successful submission; the record is
		// no longer active from this caller's point of view.
		return fmt.Errorf("otp already consumed: %w", domain.ErrNotFound)
	}
	return nil
}

// generateCode draws a uniform 6-digit code from [100000, 999999] using
// crypto/rand.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpace))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+codeFloor), nil
}
