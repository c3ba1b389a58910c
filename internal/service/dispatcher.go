package service

import (
	"context"
	"fmt"

	"github.com/bonjohen/second-brain/internal/domain"
	"go.uber.org/zap"
)

const (
	// DefaultMaxSignalRetries bounds how often a failing signal is retried
	// before it is dropped.
	DefaultMaxSignalRetries = 5
	// dispatchBatchSize is how many signals one Poll drains at most.
	dispatchBatchSize = 100
)

// SignalHandler processes one signal. A nil return marks the signal
// processed; an error leaves it queued for retry.
type SignalHandler func(ctx context.Context, sig *domain.Signal) error

type registration struct {
	name    string
	handler SignalHandler
}

// Dispatcher routes queued signals to registered handlers. Signals with no
// registered handler are marked processed and dropped; signals whose
// handler keeps failing are dropped once they exhaust MaxRetries. Handlers
// for the same signal type run in registration order.
type Dispatcher struct {
	signals  domain.SignalStore
	logger   *zap.Logger
	handlers map[string][]registration

	MaxRetries int
}

func NewDispatcher(signals domain.SignalStore, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		signals:    signals,
		logger:     logger,
		handlers:   make(map[string][]registration),
		MaxRetries: DefaultMaxSignalRetries,
	}
}

// Register binds a named handler to a signal type. Not safe to call
// concurrently with Poll; wire everything up before the scheduler starts.
func (d *Dispatcher) Register(signalType, name string, handler SignalHandler) {
	d.handlers[signalType] = append(d.handlers[signalType], registration{name: name, handler: handler})
}

// Poll drains one batch of unprocessed signals. Returns how many signals
// were marked processed.
func (d *Dispatcher) Poll(ctx context.Context) (int, error) {
	batch, err := d.signals.Unprocessed(ctx, "", dispatchBatchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch unprocessed signals: %w", err)
	}

	processed := 0
	for i := range batch {
		sig := &batch[i]
		done, err := d.dispatchOne(ctx, sig)
		if err != nil {
			return processed, err
		}
		if done {
			processed++
		}
	}
	return processed, nil
}

// dispatchOne runs a signal through its handlers. Returns true when the
// signal was marked processed, false when it stays queued for retry. The
// error return is for store failures only; handler errors are absorbed
// into the retry path.
func (d *Dispatcher) dispatchOne(ctx context.Context, sig *domain.Signal) (bool, error) {
	regs, ok := d.handlers[sig.Type]
	if !ok || len(regs) == 0 {
		if err := d.signals.MarkProcessed(ctx, sig.ID); err != nil {
			return false, fmt.Errorf("mark unrouted signal %s: %w", sig.ID, err)
		}
		d.logger.Debug("dropped signal with no handler",
			zap.String("signal_id", sig.ID.String()), zap.String("type", sig.Type))
		return true, nil
	}

	for _, reg := range regs {
		if err := reg.handler(ctx, sig); err != nil {
			retries, rerr := d.signals.IncrementRetry(ctx, sig.ID)
			if rerr != nil {
				return false, fmt.Errorf("increment retry for signal %s: %w", sig.ID, rerr)
			}
			if retries > d.MaxRetries {
				if merr := d.signals.MarkProcessed(ctx, sig.ID); merr != nil {
					return false, fmt.Errorf("drop exhausted signal %s: %w", sig.ID, merr)
				}
				d.logger.Warn("signal dropped after exhausting retries",
					zap.String("signal_id", sig.ID.String()),
					zap.String("type", sig.Type),
					zap.String("handler", reg.name),
					zap.Int("retries", retries),
					zap.Error(err))
				return true, nil
			}
			d.logger.Warn("signal handler failed, will retry",
				zap.String("signal_id", sig.ID.String()),
				zap.String("type", sig.Type),
				zap.String("handler", reg.name),
				zap.Int("retries", retries),
				zap.Error(err))
			return false, nil
		}
	}

	if err := d.signals.MarkProcessed(ctx, sig.ID); err != nil {
		return false, fmt.Errorf("mark signal %s processed: %w", sig.ID, err)
	}
	return true, nil
}
