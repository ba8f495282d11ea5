package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/riverqueue/river"
)

// NotifyJobArgs is the queued form of an Event.
type NotifyJobArgs struct {
	Event Event `json:"event"`
}

func (NotifyJobArgs) Kind() string { return "notify_roster" }

// InsertOpts keeps a failing roster read from retrying forever.
func (NotifyJobArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{MaxAttempts: 5}
}

// NotifyWorker performs the fan-out for queued events.
type NotifyWorker struct {
	river.WorkerDefaults[NotifyJobArgs]
	fanout *Fanout
}

func NewNotifyWorker(fanout *Fanout) *NotifyWorker {
	return &NotifyWorker{fanout: fanout}
}

func (w *NotifyWorker) Work(ctx context.Context, job *river.Job[NotifyJobArgs]) error {
	if _, err := w.fanout.Deliver(ctx, job.Args.Event); err != nil {
		return fmt.Errorf("deliver %s: %w", job.Args.Event.RequestID, err)
	}
	return nil
}

const enqueueTimeout = 5 * time.Second

// InsertFunc enqueues a notify job. It is set after the River client exists.
type InsertFunc func(ctx context.Context, args NotifyJobArgs) error

// Queued hands events to the job queue.
type Queued struct {
	insert InsertFunc
}

func NewQueued(insert InsertFunc) *Queued {
	return &Queued{insert: insert}
}

var _ Dispatcher = (*Queued)(nil)

// Notify enqueues after the request committed, so a client disconnect must
// not cancel the insert.
func (q *Queued) Notify(ctx context.Context, ev Event) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), enqueueTimeout)
	defer cancel()
	if err := q.insert(ctx, NotifyJobArgs{Event: ev}); err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}
