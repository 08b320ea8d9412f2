// Package sender executes outbound Telegram calls through per-chat
// serial queues, so messages for one chat are always delivered in the
// order they were enqueued while different chats proceed concurrently.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/m3rciful/convoflow/core/logger"
	"github.com/m3rciful/convoflow/core/telegram/netutil"
)

var (
	// ErrQueueClosed is returned when enqueue is attempted after dispatcher stop.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull indicates the chat queue is saturated and the job was not accepted.
	ErrQueueFull = errors.New("telegram sender: queue full")

	tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)
)

// Options controls the behaviour of the outbound dispatcher.
type Options struct {
	// QueueSize bounds each chat's pending jobs.
	QueueSize  int
	MaxRetries int
	// RetryBackoff multiplies with the attempt number between retries.
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent retrying a single job.
	MaxDuration time.Duration
}

type job struct {
	ctx  context.Context
	run  func() error
	done chan error
}

type chatQueue struct {
	jobs chan job
}

// Dispatcher owns the per-chat queues and their worker goroutines.
type Dispatcher struct {
	opts Options

	mu      sync.Mutex
	queues  map[int64]*chatQueue
	stopped bool
	wg      sync.WaitGroup
}

// NewDispatcher starts a dispatcher with sane defaults if options are zeroed.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 12 * time.Second
	}
	return &Dispatcher{
		opts:   opts,
		queues: make(map[int64]*chatQueue),
	}
}

// Do enqueues the job on the chat's serial queue and waits for its
// completion, returning the final error after retries. The run closure
// must be idempotent if retries are desired.
func (d *Dispatcher) Do(ctx context.Context, chatID int64, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	q, err := d.queue(chatID)
	if err != nil {
		return err
	}

	j := job{ctx: ctx, run: run, done: make(chan error, 1)}
	select {
	case q.jobs <- j:
	default:
		return ErrQueueFull
	}

	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Enqueue schedules the job without waiting for completion. Failures
// are logged by the worker.
func (d *Dispatcher) Enqueue(ctx context.Context, chatID int64, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	q, err := d.queue(chatID)
	if err != nil {
		return err
	}
	select {
	case q.jobs <- job{ctx: ctx, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting jobs and waits for the queues to drain.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	for _, q := range d.queues {
		close(q.jobs)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) queue(chatID int64) (*chatQueue, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return nil, ErrQueueClosed
	}
	q, ok := d.queues[chatID]
	if !ok {
		q = &chatQueue{jobs: make(chan job, d.opts.QueueSize)}
		d.queues[chatID] = q
		d.wg.Add(1)
		go d.worker(chatID, q)
	}
	return q, nil
}

func (d *Dispatcher) worker(chatID int64, q *chatQueue) {
	defer d.wg.Done()
	for j := range q.jobs {
		err := d.handleJob(chatID, j)
		if j.done != nil {
			j.done <- err
		}
	}
}

func (d *Dispatcher) handleJob(chatID int64, j job) error {
	ctx := j.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	deadlineCtx, cancel := context.WithTimeout(ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts := d.opts.MaxRetries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := deadlineCtx.Err(); err != nil {
			lastErr = err
			break
		}

		err := j.run()
		if err == nil {
			if attempt > 1 {
				logger.Info(ctx, "tg.sender", "send.retry.success",
					slog.Int64("chat_id", chatID),
					slog.Int("attempt", attempt),
					slog.Duration("duration", logger.Took(start)),
				)
			}
			return nil
		}
		lastErr = err
		if !netutil.ShouldRetry(err) || attempt == attempts {
			break
		}

		delay := d.opts.RetryBackoff * time.Duration(attempt)
		timer := time.NewTimer(delay)
		select {
		case <-deadlineCtx.Done():
			timer.Stop()
			lastErr = deadlineCtx.Err()
			attempt = attempts
		case <-timer.C:
			logger.Debug(ctx, "tg.sender", "send.retry.backoff",
				slog.Int64("chat_id", chatID),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
			)
		}
	}

	logger.Error(ctx, "tg.sender", "send.fail",
		slog.Int64("chat_id", chatID),
		slog.String("err", sanitizeErrorMessage(lastErr)),
		slog.Int("attempts", attempts),
		slog.Duration("duration", logger.Took(start)),
	)
	return lastErr
}

// sanitizeErrorMessage prevents accidental leakage of Telegram bot tokens in logs.
func sanitizeErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	return tokenRe.ReplaceAllString(err.Error(), "bot<redacted>")
}
