package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const deliverTimeout = 30 * time.Second

// Async runs each delivery on its own goroutine, detached from the
// caller's cancellation. Used when no job queue is available.
type Async struct {
	fanout *Fanout
	logger *slog.Logger
	wg     sync.WaitGroup
}

func NewAsync(fanout *Fanout, logger *slog.Logger) *Async {
	if logger == nil {
		logger = slog.Default()
	}
	return &Async{fanout: fanout, logger: logger}
}

var _ Dispatcher = (*Async)(nil)

func (a *Async) Notify(ctx context.Context, ev Event) error {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deliverTimeout)
		defer cancel()
		if _, err := a.fanout.Deliver(ctx, ev); err != nil {
			a.logger.Error("notification fan-out failed", "event", ev.Kind, "request_id", ev.RequestID, "error", err)
		}
	}()
	return nil
}

// Wait blocks until in-flight deliveries finish.
func (a *Async) Wait() { a.wg.Wait() }
