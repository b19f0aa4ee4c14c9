// Package dispatcher runs queued compile jobs with retry and a renderer
// circuit breaker.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/reportcompiler/internal/metrics"
	"github.com/local/reportcompiler/internal/queue"
	"github.com/local/reportcompiler/internal/reporterr"
	"github.com/local/reportcompiler/internal/store"
)

type Queue interface {
	Dequeue(ctx context.Context, consumer string, timeout time.Duration) (string, queue.CompileJob, error)
	Ack(ctx context.Context, msgID string) error
	EnqueueDelayed(ctx context.Context, job queue.CompileJob, at time.Time) error
	IsCancelled(ctx context.Context, jobID string) (bool, error)
	AddDLQ(ctx context.Context, job queue.CompileJob, reason string) error
	IsIdemDone(ctx context.Context, key string) (bool, error)
	MarkIdemDone(ctx context.Context, key string, ttl time.Duration) error
}

// Processor compiles one job and returns where the PDF was published.
type Processor interface {
	Process(ctx context.Context, job queue.CompileJob) (string, error)
}

type StatusStore interface {
	Set(ctx context.Context, jobID string, st store.Status) error
}

type Breaker interface {
	IsOpen(ctx context.Context) bool
	Failure(ctx context.Context)
	Success(ctx context.Context)
}

type Config struct {
	Concurrency int
	JobTimeout  time.Duration
	MaxAttempts int
	RetryBase   time.Duration
	Jitter      time.Duration
	Factor      float64
	// BreakerDelay is how long a job waits when the renderer breaker is open.
	BreakerDelay time.Duration
	CancelPoll   time.Duration
}

const idemTTL = 24 * time.Hour

type Worker struct {
	cfg     Config
	q       Queue
	proc    Processor
	status  StatusStore
	breaker Breaker

	stop chan struct{}
	wg   sync.WaitGroup
}

func New(cfg Config, q Queue, proc Processor, status StatusStore, breaker Breaker) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Factor < 1 {
		cfg.Factor = 2
	}
	if cfg.BreakerDelay <= 0 {
		cfg.BreakerDelay = 30 * time.Second
	}
	if cfg.CancelPoll <= 0 {
		cfg.CancelPoll = time.Second
	}
	return &Worker{cfg: cfg, q: q, proc: proc, status: status, breaker: breaker, stop: make(chan struct{})}
}

func (w *Worker) Start() {
	for i := 0; i < w.cfg.Concurrency; i++ {
		w.wg.Add(1)
		go w.loop(i)
	}
}

// Stop signals the loops and waits for running jobs, or for ctx.
func (w *Worker) Stop(ctx context.Context) error {
	close(w.stop)
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop(id int) {
	defer w.wg.Done()
	consumer := fmt.Sprintf("worker-%d", id)
	log.Info().Int("worker", id).Msg("dispatcher worker started")
	for {
		select {
		case <-w.stop:
			log.Info().Int("worker", id).Msg("dispatcher worker stopped")
			return
		default:
		}

		msgID, job, err := w.q.Dequeue(context.Background(), consumer, 2*time.Second)
		if err != nil {
			log.Error().Err(err).Msg("queue dequeue error")
			time.Sleep(500 * time.Millisecond)
			continue
		}
		if msgID == "" {
			continue
		}

		w.handle(context.Background(), id, job)
		if err := w.q.Ack(context.Background(), msgID); err != nil {
			log.Error().Err(err).Str("msg_id", msgID).Msg("ack failed")
		}
	}
}

// handle runs one dequeued job through cancel, idempotency and breaker checks,
// then processes it and schedules a retry or a dead letter on failure.
func (w *Worker) handle(ctx context.Context, workerID int, job queue.CompileJob) {
	logger := log.With().Int("worker", workerID).Str("job_id", job.ID).Int("attempt", job.Attempt).Logger()

	if cancelled, _ := w.q.IsCancelled(ctx, job.ID); cancelled {
		logger.Warn().Msg("job cancelled before processing; skipping")
		w.setStatus(ctx, job.ID, store.Status{Status: store.StateCanceled, Message: "canceled before start"})
		return
	}
	if job.IdempotencyKey != "" {
		if done, _ := w.q.IsIdemDone(ctx, job.IdempotencyKey); done {
			logger.Info().Str("idempotency_key", job.IdempotencyKey).Msg("job already completed; skipping")
			return
		}
	}
	if w.breaker != nil && w.breaker.IsOpen(ctx) {
		at := time.Now().Add(w.cfg.BreakerDelay)
		logger.Warn().Time("retry_at", at).Msg("renderer breaker open; delaying job")
		if err := w.q.EnqueueDelayed(ctx, job, at); err != nil {
			logger.Error().Err(err).Msg("delay enqueue failed")
		}
		return
	}

	start := time.Now()
	w.setStatus(ctx, job.ID, store.Status{Status: store.StateRunning, Progress: 10, Message: "compiling", Start: &start})
	metrics.JobStarted()

	output, err := w.run(ctx, job)
	end := time.Now()
	if err == nil {
		metrics.JobFinished("ok")
		if w.breaker != nil {
			w.breaker.Success(ctx)
		}
		if job.IdempotencyKey != "" {
			_ = w.q.MarkIdemDone(ctx, job.IdempotencyKey, idemTTL)
		}
		w.setStatus(ctx, job.ID, store.Status{Status: store.StateDone, Progress: 100, Message: "completed", Output: output, Start: &start, End: &end})
		logger.Info().Str("output", output).Dur("duration", end.Sub(start)).Msg("job completed")
		return
	}

	if errors.Is(err, ErrCanceled) {
		metrics.JobFinished("canceled")
		w.setStatus(ctx, job.ID, store.Status{Status: store.StateCanceled, Message: "canceled", Start: &start, End: &end})
		logger.Warn().Msg("job canceled while running")
		return
	}

	if w.breaker != nil && reporterr.KindOf(err) == reporterr.KindRenderFailure {
		w.breaker.Failure(ctx)
	}

	kind := reporterr.KindOf(err).String()
	if isTransientError(err) && job.Attempt+1 < w.cfg.MaxAttempts {
		metrics.JobFinished("retry")
		delay := w.retryDelay(job.Attempt)
		job.Attempt++
		logger.Warn().Err(err).Dur("delay", delay).Msg("transient failure; retrying")
		if qerr := w.q.EnqueueDelayed(ctx, job, time.Now().Add(delay)); qerr != nil {
			logger.Error().Err(qerr).Msg("retry enqueue failed")
		}
		w.setStatus(ctx, job.ID, store.Status{Status: store.StateRetrying, Message: err.Error(), Kind: kind, Start: &start})
		return
	}

	metrics.JobFinished("failed")
	logger.Error().Err(err).Str("kind", kind).Msg("job failed")
	if qerr := w.q.AddDLQ(ctx, job, err.Error()); qerr != nil {
		logger.Error().Err(qerr).Msg("dlq add failed")
	}
	w.setStatus(ctx, job.ID, store.Status{Status: store.StateFailed, Message: err.Error(), Kind: kind, Start: &start, End: &end})
}

// run processes the job under JobTimeout while a watcher cancels it when the
// job is flagged through the cancel endpoint.
func (w *Worker) run(parent context.Context, job queue.CompileJob) (string, error) {
	ctx, cancel := context.WithCancelCause(parent)
	defer cancel(nil)
	if w.cfg.JobTimeout > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, w.cfg.JobTimeout)
		defer stop()
	}

	go func() {
		t := time.NewTicker(w.cfg.CancelPoll)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if c, _ := w.q.IsCancelled(parent, job.ID); c {
					cancel(ErrCanceled)
					return
				}
			}
		}
	}()

	out, err := w.proc.Process(ctx, job)
	if err != nil && errors.Is(context.Cause(ctx), ErrCanceled) {
		return "", ErrCanceled
	}
	return out, err
}

// retryDelay is RetryBase * Factor^attempt plus up to Jitter.
func (w *Worker) retryDelay(attempt int) time.Duration {
	d := time.Duration(float64(w.cfg.RetryBase) * math.Pow(w.cfg.Factor, float64(attempt)))
	if w.cfg.Jitter > 0 {
		d += time.Duration(rand.Int63n(int64(w.cfg.Jitter)))
	}
	return d
}

func (w *Worker) setStatus(ctx context.Context, jobID string, st store.Status) {
	if w.status == nil {
		return
	}
	if err := w.status.Set(ctx, jobID, st); err != nil {
		log.Error().Err(err).Str("job_id", jobID).Msg("status update failed")
	}
}
