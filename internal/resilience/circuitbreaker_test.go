package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	cb := NewWithConfig(CircuitBreakerConfig{Name: "test", MaxFailures: 2})
	boom := errors.New("boom")
	fail := func() (interface{}, error) { return nil, boom }

	ctx := context.Background()
	_, err := cb.Execute(ctx, fail)
	require.ErrorIs(t, err, boom)
	_, err = cb.Execute(ctx, fail)
	require.ErrorIs(t, err, boom)
	require.Equal(t, "open", cb.State())

	_, err = cb.Execute(ctx, fail)
	require.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreakerClosedPassesThrough(t *testing.T) {
	cb := New("test")
	ctx := context.Background()
	v, err := cb.Execute(ctx, func() (interface{}, error) { return "ok", nil })
	require.NoError(t, err)
	require.Equal(t, "ok", v)
	require.Equal(t, "closed", cb.State())
}
