package libemit

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Outcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	em := quietEmitter(WithMetrics(m))

	ok := NewListener(func(context.Context, EventEmitter, ...any) error { return nil })
	em.On("x", ok)
	em.On("cancel", NewListener(func(_ context.Context, _ EventEmitter, args ...any) error {
		args[0].(*Signal).Cancel()
		return nil
	}))
	em.On("fail", NewListener(func(context.Context, EventEmitter, ...any) error {
		return errors.New("boom")
	}))

	_, _ = em.Emit(context.Background(), "x")
	_, _ = em.Emit(context.Background(), "x")
	_, _ = em.Emit(context.Background(), "nobody")
	_, _ = em.Emit(context.Background(), "cancel", NewCancellableSignal("cancel"))
	_, err := em.Emit(context.Background(), "fail")
	require.Error(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.emissions.WithLabelValues("x", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.emissions.WithLabelValues("nobody", "empty")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.emissions.WithLabelValues("cancel", "cancelled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.emissions.WithLabelValues("fail", "failed")))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.listeners.WithLabelValues("x")))
	em.Off("x", ok)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.listeners.WithLabelValues("x")))

	em.RemoveAllListeners()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.listeners.WithLabelValues("fail")))
}

func TestMetrics_Funneled(t *testing.T) {
	m := NewMetrics(nil)
	em := quietEmitter(WithMetrics(m))

	em.On(EventError, NewListener(func(context.Context, EventEmitter, ...any) error { return nil }))
	em.On("x", NewListener(func(context.Context, EventEmitter, ...any) error {
		return errors.New("boom")
	}))

	_, err := em.Emit(context.Background(), "x")
	require.NoError(t, err)
	em.Wait()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.funneled.WithLabelValues("x")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.emissions.WithLabelValues(EventError, "ok")))
}

func TestMetrics_Registered(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.observeEmission("x", outcomeOK)
	m.addListeners("x", 1)

	n, err := testutil.GatherAndCount(reg, "libemit_emissions_total", "libemit_listeners")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.observeEmission("x", outcomeOK)
		m.observeFunneled("x")
		m.addListeners("x", 1)
	})
}
