package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kubev2v/document-extractor/pkg/metrics"
	"go.uber.org/zap"
)

var (
	// ErrExhausted is returned when the attempt budget is spent without
	// observing the completion notification.
	ErrExhausted = errors.New("attempt budget exhausted")
	// ErrJobFailed is returned when the completion notification reports a failed job.
	ErrJobFailed = errors.New("job failed")
)

type State int

const (
	StateWaiting State = iota
	StateMatched
	StateFailed
	StateExhausted
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateMatched:
		return "matched"
	case StateFailed:
		return "failed"
	case StateExhausted:
		return "exhausted"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Poll results recorded in metrics.
const (
	pollResultEmpty    = "empty"
	pollResultMismatch = "mismatch"
	pollResultMatch    = "match"
	pollResultError    = "error"
)

type Options struct {
	MaxAttempts int
	// WaitTime is the long-poll duration of a single receive.
	WaitTime time.Duration
	// PollDelay is the pause between two attempts.
	PollDelay time.Duration
}

// Poller waits for the completion notification of a single job by polling a
// queue shared with other pollers. Notifications of other jobs are left in the
// queue.
type Poller struct {
	queue  Queue
	waiter Waiter
	opts   Options
}

func NewPoller(queue Queue, opts Options, waiter Waiter) *Poller {
	if waiter == nil {
		waiter = NewJitterWaiter()
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &Poller{queue: queue, waiter: waiter, opts: opts}
}

// Completion is the pending result of a Poller run.
type Completion struct {
	done     chan struct{}
	state    State
	attempts int
	err      error
}

// Done is closed once the poller reached a terminal state.
func (c *Completion) Done() <-chan struct{} {
	return c.done
}

// Err returns nil when the job completed successfully. Only valid after Done is closed.
func (c *Completion) Err() error {
	return c.err
}

// State returns the terminal state. Only valid after Done is closed.
func (c *Completion) State() State {
	return c.state
}

// Attempts returns the number of receive attempts made. Only valid after Done is closed.
func (c *Completion) Attempts() int {
	return c.attempts
}

// Start polls for the job notification in the background. Cancelling ctx stops
// the polling at the next receive or wait.
func (p *Poller) Start(ctx context.Context, jobID string) *Completion {
	c := &Completion{done: make(chan struct{}), state: StateWaiting}
	go func() {
		defer close(c.done)
		c.state, c.attempts, c.err = p.run(ctx, jobID)
	}()
	return c
}

// AwaitCompletion blocks until the job notification is received, the job is
// reported as failed, the attempt budget is exhausted or ctx is done.
func (p *Poller) AwaitCompletion(ctx context.Context, jobID string) error {
	c := p.Start(ctx, jobID)
	<-c.Done()
	return c.Err()
}

func (p *Poller) run(ctx context.Context, jobID string) (State, int, error) {
	logger := zap.S().Named("notification_poller").With("job_id", jobID)

	for attempt := 1; attempt <= p.opts.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return StateCancelled, attempt - 1, err
		}

		logger.Infof("Checking queue. Attempt %d/%d", attempt, p.opts.MaxAttempts)
		n, err := p.poll(ctx, jobID)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return StateCancelled, attempt, ctx.Err()
			}
			metrics.IncreasePollAttemptsMetric(pollResultError)
			logger.Errorw("error checking queue", "attempt", attempt, "error", err)
		case n != nil:
			metrics.IncreasePollAttemptsMetric(pollResultMatch)
			if !n.Succeeded() {
				logger.Errorw("job completed with failure", "status", n.Status)
				return StateFailed, attempt, fmt.Errorf("%w: job %s reported status %s", ErrJobFailed, jobID, n.Status)
			}
			logger.Infow("job completion message received and deleted from queue", "attempt", attempt, "status", n.Status)
			return StateMatched, attempt, nil
		}

		if attempt == p.opts.MaxAttempts {
			break
		}
		if err := p.waiter.Wait(ctx, p.opts.PollDelay); err != nil {
			return StateCancelled, attempt, err
		}
	}

	logger.Errorw("max attempts reached, job may not have completed", "max_attempts", p.opts.MaxAttempts)
	return StateExhausted, p.opts.MaxAttempts, fmt.Errorf("%w: job %s not completed after %d attempts", ErrExhausted, jobID, p.opts.MaxAttempts)
}

// poll performs one receive. It returns the notification only when it belongs
// to jobID and has been acknowledged.
func (p *Poller) poll(ctx context.Context, jobID string) (*Notification, error) {
	logger := zap.S().Named("notification_poller")

	messages, err := p.queue.Receive(ctx, 1, p.opts.WaitTime)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		metrics.IncreasePollAttemptsMetric(pollResultEmpty)
		logger.Debugw("no messages in queue", "job_id", jobID)
		return nil, nil
	}

	msg := messages[0]
	n, err := ParseNotification(msg.Body)
	if err != nil {
		return nil, fmt.Errorf("message %s: %w", msg.ID, err)
	}
	logger.Debugw("received message", "message_id", msg.ID, "body", msg.Body)

	if n.JobID != jobID {
		metrics.IncreasePollAttemptsMetric(pollResultMismatch)
		logger.Infow("ignoring notification of another job", "job_id", jobID, "other_job_id", n.JobID)
		return nil, nil
	}

	if err := p.queue.Delete(ctx, msg.ReceiptHandle); err != nil {
		return nil, fmt.Errorf("failed to delete message %s: %w", msg.ID, err)
	}
	return n, nil
}
