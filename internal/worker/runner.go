// Package worker delivers receipt emails for completed purchases and
// lifetime grants. It is decoupled from the webhook path: the paywall
// package holds a worker.Enqueuer and calls Enqueue, it never waits on
// delivery.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nyashahama/gallery-paywall-backend/internal/db"
)

// ─── ENQUEUER INTERFACE ───────────────────────────────────────────────────────

// Enqueuer is the narrow interface the webhook processor uses to hand off a
// receipt after recording a payment.
//
// The concrete implementation is *Runner. In tests, any struct with an Enqueue
// method satisfies the interface.
type Enqueuer interface {
	Enqueue(ctx context.Context, r Receipt) error
}

// ─── RUNNER ───────────────────────────────────────────────────────────────────

// RunnerConfig holds tuning parameters for the Runner. Zero-valued fields take
// the values from DefaultRunnerConfig.
type RunnerConfig struct {
	// Workers is the number of concurrent job goroutines. Default: 2.
	Workers int

	// PollInterval is how often the fallback poller checks ListPendingReceipts
	// for receipts missed by the in-process channel. Default: 30s.
	PollInterval time.Duration

	// JobTimeout is the per-attempt context deadline. Default: 30s.
	JobTimeout time.Duration

	// MaxRetries is the number of attempts per run before the receipt's
	// attempt counter is bumped. Default: 3.
	MaxRetries int

	// MaxRuns caps how many failed runs a receipt may accumulate before the
	// poller stops picking it up. Default: 5.
	MaxRuns int

	// Backoff is the base of the exponential back-off between attempts.
	// Default: 1s, giving 2s, 4s, 8s …
	Backoff time.Duration
}

// DefaultRunnerConfig returns safe production defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Workers:      2,
		PollInterval: 30 * time.Second,
		JobTimeout:   30 * time.Second,
		MaxRetries:   3,
		MaxRuns:      5,
		Backoff:      time.Second,
	}
}

// pollBatch bounds how many pending receipts one poll cycle loads.
const pollBatch = 100

// runner is what the Runner executes per receipt. *Job satisfies it.
type runner interface {
	Run(ctx context.Context, r Receipt) error
}

// Runner manages a pool of worker goroutines. It accepts receipts via an
// in-process channel (fast path, fed by the webhook processor) and also polls
// the database periodically for receipts that were never sent (recovery path).
type Runner struct {
	job    runner
	q      db.Querier
	cfg    RunnerConfig
	logger *slog.Logger

	queue chan Receipt
	wg    sync.WaitGroup

	mu       sync.Mutex
	inFlight map[Receipt]struct{}
}

// NewRunner constructs a Runner. Call Start() to begin processing.
func NewRunner(job *Job, q db.Querier, cfg RunnerConfig, logger *slog.Logger) *Runner {
	return newRunner(job, q, cfg, logger)
}

func newRunner(job runner, q db.Querier, cfg RunnerConfig, logger *slog.Logger) *Runner {
	def := DefaultRunnerConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = def.JobTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.MaxRuns <= 0 {
		cfg.MaxRuns = def.MaxRuns
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = def.Backoff
	}

	return &Runner{
		job:    job,
		q:      q,
		cfg:    cfg,
		logger: logger,
		// Buffer = Workers*2 so Enqueue never blocks under normal load.
		queue:    make(chan Receipt, cfg.Workers*2),
		inFlight: make(map[Receipt]struct{}),
	}
}

// Enqueue pushes a receipt onto the in-process channel. If the channel is
// full it returns an error rather than blocking the webhook response; the
// poller will pick the receipt up later.
func (r *Runner) Enqueue(_ context.Context, rc Receipt) error {
	if !r.claim(rc) {
		return nil
	}
	select {
	case r.queue <- rc:
		r.logger.Info("worker: enqueued receipt", "receipt", rc.String())
		return nil
	default:
		r.release(rc)
		return errors.New("worker: queue is full, receipt will be picked up by poller")
	}
}

// Start launches the worker pool and the fallback poller. It blocks until ctx
// is cancelled.
func (r *Runner) Start(ctx context.Context) {
	r.logger.Info("worker: starting", "workers", r.cfg.Workers, "poll_interval", r.cfg.PollInterval)

	for i := range r.cfg.Workers {
		r.wg.Add(1)
		go r.work(ctx, i)
	}

	r.wg.Add(1)
	go r.poll(ctx)

	r.wg.Wait()
	r.logger.Info("worker: stopped")
}

// work is the inner loop for each worker goroutine.
func (r *Runner) work(ctx context.Context, id int) {
	defer r.wg.Done()
	log := r.logger.With("worker_id", id)

	for {
		select {
		case <-ctx.Done():
			return
		case rc := <-r.queue:
			r.runWithRetry(ctx, rc, log)
			r.release(rc)
		}
	}
}

// poll queries the database on PollInterval for receipts that were not
// delivered via the channel (e.g. rows from before a restart).
func (r *Runner) poll(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	// Run once immediately on startup to pick up anything from before restart.
	r.pollOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.pollOnce(ctx)
		}
	}
}

func (r *Runner) pollOnce(ctx context.Context) {
	rows, err := r.q.ListPendingReceipts(ctx, db.ListPendingReceiptsParams{
		MaxAttempts: int32(r.cfg.MaxRuns),
		RowLimit:    pollBatch,
	})
	if err != nil {
		r.logger.Error("worker: poll failed", "error", err)
		return
	}
	for _, row := range rows {
		rc := Receipt{Kind: ReceiptKind(row.Kind), ID: row.ID}
		if !r.claim(rc) {
			continue
		}
		select {
		case r.queue <- rc:
			r.logger.Debug("worker: poller enqueued receipt", "receipt", rc.String())
		default:
			// Queue full; next poll cycle.
			r.release(rc)
			return
		}
	}
}

// claim marks rc in flight. It returns false when rc is already queued or
// running, so the fast path and the poller never send the same receipt twice.
func (r *Runner) claim(rc Receipt) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.inFlight[rc]; ok {
		return false
	}
	r.inFlight[rc] = struct{}{}
	return true
}

func (r *Runner) release(rc Receipt) {
	r.mu.Lock()
	delete(r.inFlight, rc)
	r.mu.Unlock()
}

// runWithRetry executes the job up to MaxRetries times. After exhausting
// retries it bumps the receipt's attempt counter so the poller eventually
// gives up on it.
func (r *Runner) runWithRetry(ctx context.Context, rc Receipt, log *slog.Logger) {
	var lastErr error

	for attempt := 1; attempt <= r.cfg.MaxRetries; attempt++ {
		jobCtx, cancel := context.WithTimeout(ctx, r.cfg.JobTimeout)
		lastErr = r.job.Run(jobCtx, rc)
		cancel()

		if lastErr == nil {
			return
		}

		log.Warn("worker: receipt attempt failed",
			"receipt", rc.String(),
			"attempt", attempt,
			"max", r.cfg.MaxRetries,
			"error", lastErr,
		)

		if attempt < r.cfg.MaxRetries {
			backoff := r.cfg.Backoff << attempt
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
		}
	}

	log.Error("worker: receipt run failed", "receipt", rc.String(), "error", lastErr)
	failCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	var err error
	switch rc.Kind {
	case ReceiptPurchase:
		err = r.q.MarkPurchaseReceiptFailed(failCtx, rc.ID)
	case ReceiptLifetime:
		err = r.q.MarkLifetimeReceiptFailed(failCtx, rc.ID)
	}
	if err != nil {
		log.Error("worker: failed to record receipt failure", "receipt", rc.String(), "error", err)
	}
}
