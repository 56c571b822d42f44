package otp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/campus-market-api/internal/domain"
	"github.com/campus-market-api/internal/pkg/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCounter struct{ mock.Mock }

func (m *mockCounter) CountSince(ctx context.Context, email string, since time.Time) (int, error) {
	args := m.Called(ctx, email, since)
	return args.Int(0), args.Error(1)
}

func newLimiter(c *mockCounter) *Limiter {
	return NewLimiter(c, clock.Fixed{T: testNow}, time.Hour, 5)
}

func TestAdmit_UnderCeiling(t *testing.T) {
	c := &mockCounter{}
	c.On("CountSince", mock.Anything, "a@inst.edu", mock.Anything).Return(4, nil)

	require.NoError(t, newLimiter(c).Admit(context.Background(), "a@inst.edu"))
}

func TestAdmit_AtCeiling_Denied(t *testing.T) {
	c := &mockCounter{}
	c.On("CountSince", mock.Anything, "a@inst.edu", mock.Anything).Return(5, nil)

	err := newLimiter(c).Admit(context.Background(), "a@inst.edu")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrRateLimited))
}

func TestAdmit_WindowIsTrailingLookback(t *testing.T) {
	c := &mockCounter{}
	c.On("CountSince", mock.Anything, "a@inst.edu", testNow.Add(-time.Hour)).Return(0, nil)

	require.NoError(t, newLimiter(c).Admit(context.Background(), "a@inst.edu"))
	c.AssertExpectations(t)
}

func TestAdmit_CounterError_Propagates(t *testing.T) {
	c := &mockCounter{}
	c.On("CountSince", mock.Anything, "a@inst.edu", mock.Anything).Return(0, errors.New("storage unavailable"))

	err := newLimiter(c).Admit(context.Background(), "a@inst.edu")
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrRateLimited))
}
