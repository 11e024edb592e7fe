package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kubev2v/document-extractor/pkg/metrics"
	"go.uber.org/zap"
)

const maxBatchSize = 10

// Dispatcher owns a single receive loop for the whole process and routes
// notifications to the jobs awaited locally. Only notifications of registered
// jobs are acknowledged; the others stay in the queue for their owner.
type Dispatcher struct {
	queue  Queue
	waiter Waiter
	opts   Options

	mu      sync.Mutex
	pending map[string]chan *Notification
	wake    chan struct{}
}

func NewDispatcher(queue Queue, opts Options, waiter Waiter) *Dispatcher {
	if waiter == nil {
		waiter = NewJitterWaiter()
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &Dispatcher{
		queue:   queue,
		waiter:  waiter,
		opts:    opts,
		pending: make(map[string]chan *Notification),
		wake:    make(chan struct{}, 1),
	}
}

// Budget is the longest time AwaitCompletion waits, equivalent to the attempt
// budget of a Poller.
func (d *Dispatcher) Budget() time.Duration {
	return time.Duration(d.opts.MaxAttempts) * (d.opts.WaitTime + d.opts.PollDelay)
}

// AwaitCompletion registers jobID and blocks until its notification is routed,
// the budget elapses or ctx is done.
func (d *Dispatcher) AwaitCompletion(ctx context.Context, jobID string) error {
	ch := d.register(jobID)
	defer d.unregister(jobID)

	timer := time.NewTimer(d.Budget())
	defer timer.Stop()

	select {
	case n := <-ch:
		if !n.Succeeded() {
			return fmt.Errorf("%w: job %s reported status %s", ErrJobFailed, jobID, n.Status)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("%w: job %s not completed after %s", ErrExhausted, jobID, d.Budget())
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run receives notifications until ctx is done. The loop sleeps while no job is awaited.
func (d *Dispatcher) Run(ctx context.Context) error {
	logger := zap.S().Named("notification_dispatcher")
	logger.Info("notification dispatcher started")
	defer logger.Info("notification dispatcher stopped")

	for {
		if d.Waiting() == 0 {
			select {
			case <-d.wake:
			case <-ctx.Done():
				return nil
			}
			continue
		}

		messages, err := d.queue.Receive(ctx, maxBatchSize, d.opts.WaitTime)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			metrics.IncreasePollAttemptsMetric(pollResultError)
			logger.Errorw("error checking queue", "error", err)
			if err := d.waiter.Wait(ctx, d.opts.PollDelay); err != nil {
				return nil
			}
			continue
		}
		if len(messages) == 0 {
			metrics.IncreasePollAttemptsMetric(pollResultEmpty)
			continue
		}

		for _, msg := range messages {
			d.route(ctx, msg)
		}
	}
}

func (d *Dispatcher) route(ctx context.Context, msg RawMessage) {
	logger := zap.S().Named("notification_dispatcher")

	n, err := ParseNotification(msg.Body)
	if err != nil {
		metrics.IncreasePollAttemptsMetric(pollResultError)
		logger.Errorw("failed to parse message", "message_id", msg.ID, "error", err)
		return
	}

	d.mu.Lock()
	ch, ok := d.pending[n.JobID]
	d.mu.Unlock()
	if !ok {
		metrics.IncreasePollAttemptsMetric(pollResultMismatch)
		logger.Debugw("notification of a job not awaited by this process", "job_id", n.JobID)
		return
	}

	if err := d.queue.Delete(ctx, msg.ReceiptHandle); err != nil {
		metrics.IncreasePollAttemptsMetric(pollResultError)
		logger.Errorw("failed to delete message", "message_id", msg.ID, "job_id", n.JobID, "error", err)
		return
	}

	metrics.IncreasePollAttemptsMetric(pollResultMatch)
	logger.Infow("job completion message received and deleted from queue", "job_id", n.JobID, "status", n.Status)
	select {
	case ch <- n:
	default:
	}
}

func (d *Dispatcher) register(jobID string) chan *Notification {
	ch := make(chan *Notification, 1)

	d.mu.Lock()
	d.pending[jobID] = ch
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
	return ch
}

func (d *Dispatcher) unregister(jobID string) {
	d.mu.Lock()
	delete(d.pending, jobID)
	d.mu.Unlock()
}

// Waiting returns the number of jobs currently awaited.
func (d *Dispatcher) Waiting() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
