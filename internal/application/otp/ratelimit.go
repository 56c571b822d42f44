package otp

import (
	"context"
	"fmt"
	"time"

	"github.com/campus-market-api/internal/domain"
	"github.com/campus-market-api/internal/pkg/clock"
)

type issuanceCounter interface {
	CountSince(ctx context.Context, email string, since time.Time) (int, error)
}

// Limiter bounds how many codes one address can be issued inside a sliding
// lookback window. It only reads the ledger; the record that consumes a slot
// is written by the engine afterwards.
type Limiter struct {
	ledger  issuanceCounter
	clock   clock.Clock
	window  time.Duration
	ceiling int
}

func NewLimiter(ledger issuanceCounter, clk clock.Clock, window time.Duration, ceiling int) *Limiter {
	return &Limiter{ledger: ledger, clock: clk, window: window, ceiling: ceiling}
}

// Admit returns nil when email may be issued another code, or
// domain.ErrRateLimited once the trailing-window count has reached the
// ceiling. The window slides with the clock; there are no bucket boundaries.
func (l *Limiter) Admit(ctx context.Context, email string) error {
	since := l.clock.Now().Add(-l.window)
	n, err := l.ledger.CountSince(ctx, email, since)
	if err != nil {
		return fmt.Errorf("count recent otps: %w", err)
	}
	if n >= l.ceiling {
		return fmt.Errorf("more than %d codes within %s: %w", l.ceiling, l.window, domain.ErrRateLimited)
	}
	return nil
}
