package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bonjohen/second-brain/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func emitTestSignal(t *testing.T, signals *memSignalStore, signalType string) *domain.Signal {
	t.Helper()
	sig := &domain.Signal{Type: signalType, Payload: map[string]any{}}
	require.NoError(t, signals.Emit(context.Background(), sig))
	return sig
}

func TestDispatcher_RoutesToHandler(t *testing.T) {
	signals := newMemSignalStore()
	d := NewDispatcher(signals, zap.NewNop())

	var handled []string
	d.Register(domain.SignalNewNote, "recorder", func(ctx context.Context, sig *domain.Signal) error {
		handled = append(handled, sig.ID.String())
		return nil
	})

	sig := emitTestSignal(t, signals, domain.SignalNewNote)

	processed, err := d.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	assert.Equal(t, []string{sig.ID.String()}, handled)

	n, err := signals.CountUnprocessed(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDispatcher_UnroutedSignalIsDropped(t *testing.T) {
	signals := newMemSignalStore()
	d := NewDispatcher(signals, zap.NewNop())

	emitTestSignal(t, signals, "unknown_type")

	processed, err := d.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	n, err := signals.CountUnprocessed(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDispatcher_FailingHandlerLeavesSignalQueued(t *testing.T) {
	signals := newMemSignalStore()
	d := NewDispatcher(signals, zap.NewNop())
	d.Register(domain.SignalNewNote, "flaky", func(ctx context.Context, sig *domain.Signal) error {
		return errors.New("boom")
	})

	emitTestSignal(t, signals, domain.SignalNewNote)

	processed, err := d.Poll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, processed)

	n, err := signals.CountUnprocessed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDispatcher_RetriesExhaustThenDrop(t *testing.T) {
	signals := newMemSignalStore()
	d := NewDispatcher(signals, zap.NewNop())
	d.MaxRetries = 3

	attempts := 0
	d.Register(domain.SignalNewNote, "flaky", func(ctx context.Context, sig *domain.Signal) error {
		attempts++
		return errors.New("boom")
	})

	emitTestSignal(t, signals, domain.SignalNewNote)

	ctx := context.Background()
	for i := 0; i < 6; i++ {
		_, err := d.Poll(ctx)
		require.NoError(t, err)
	}

	// Three failures stay within the retry bound; the fourth pushes the
	// counter past it and drops the signal, so later polls see nothing.
	assert.Equal(t, 4, attempts)
	n, err := signals.CountUnprocessed(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDispatcher_SuccessAfterRetry(t *testing.T) {
	signals := newMemSignalStore()
	d := NewDispatcher(signals, zap.NewNop())

	attempts := 0
	d.Register(domain.SignalNewNote, "flaky", func(ctx context.Context, sig *domain.Signal) error {
		attempts++
		if attempts < 2 {
			return errors.New("transient")
		}
		return nil
	})

	emitTestSignal(t, signals, domain.SignalNewNote)

	ctx := context.Background()
	_, err := d.Poll(ctx)
	require.NoError(t, err)
	processed, err := d.Poll(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, processed)
	n, err := signals.CountUnprocessed(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDispatcher_HandlersRunInRegistrationOrder(t *testing.T) {
	signals := newMemSignalStore()
	d := NewDispatcher(signals, zap.NewNop())

	var order []string
	d.Register(domain.SignalNewNote, "first", func(ctx context.Context, sig *domain.Signal) error {
		order = append(order, "first")
		return nil
	})
	d.Register(domain.SignalNewNote, "second", func(ctx context.Context, sig *domain.Signal) error {
		order = append(order, "second")
		return nil
	})

	emitTestSignal(t, signals, domain.SignalNewNote)

	_, err := d.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestDispatcher_OldestFirst(t *testing.T) {
	signals := newMemSignalStore()
	d := NewDispatcher(signals, zap.NewNop())

	var seen []string
	d.Register(domain.SignalNewNote, "recorder", func(ctx context.Context, sig *domain.Signal) error {
		seen = append(seen, sig.ID.String())
		return nil
	})

	a := emitTestSignal(t, signals, domain.SignalNewNote)
	b := emitTestSignal(t, signals, domain.SignalNewNote)

	_, err := d.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID.String(), b.ID.String()}, seen)
}
