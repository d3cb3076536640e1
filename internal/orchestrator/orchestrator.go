// Package orchestrator runs batch crawl jobs: it fans targets out to
// workers, records progress and outcomes, and enforces the
// one-job-at-a-time rule.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pricewatch/pricewatch/internal/crawler"
	"github.com/pricewatch/pricewatch/internal/store"
)

// ErrJobRunning is returned when RunJob is called while another job is
// still in flight.
var ErrJobRunning = errors.New("a crawl job is already running")

// TargetCrawler is the single-target collaborator. Crawl owns its own
// retries and always yields an Outcome.
type TargetCrawler interface {
	Crawl(ctx context.Context, target crawler.Target) crawler.Outcome
}

// Pacer throttles navigation per storefront host.
type Pacer interface {
	Wait(ctx context.Context, rawURL string) error
}

// AlertChecker inspects successful outcomes for target-price hits.
type AlertChecker interface {
	Check(ctx context.Context, target crawler.Target, product crawler.Product)
}

// Config controls batch execution.
type Config struct {
	// Workers is the number of concurrent targets; defaults to 1,
	// which preserves strict submission order.
	Workers int
	// MinTargetDelay/MaxTargetDelay bound the randomized pause a
	// worker takes between consecutive targets. No pause is taken
	// before a worker's first target or after its last.
	MinTargetDelay time.Duration
	MaxTargetDelay time.Duration
}

func (c *Config) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 1
	}
}

// JobSummary is the caller-facing result of a finished batch.
type JobSummary struct {
	JobID     uuid.UUID         `json:"job_id"`
	Status    store.JobStatus   `json:"status"`
	Total     int               `json:"total"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Duration  time.Duration     `json:"duration"`
	Outcomes  []crawler.Outcome `json:"outcomes"`
}

// Orchestrator coordinates one batch at a time over a shared crawler.
type Orchestrator struct {
	crawler TargetCrawler
	results store.ResultStore
	pacer   Pacer
	alerter AlertChecker
	clock   crawler.Clock
	cfg     Config
	logger  *zap.Logger

	running atomic.Bool

	// injectable for tests
	sleep func(context.Context, time.Duration) error
	rnd   func() float64
}

// New constructs an Orchestrator. Pacer and alerter are optional.
func New(tc TargetCrawler, results store.ResultStore, pacer Pacer, alerter AlertChecker, clock crawler.Clock, cfg Config, logger *zap.Logger) *Orchestrator {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		crawler: tc,
		results: results,
		pacer:   pacer,
		alerter: alerter,
		clock:   clock,
		cfg:     cfg,
		logger:  logger,
		sleep:   sleepCtx,
		rnd:     rand.Float64,
	}
}

// Running reports whether a batch is currently in flight.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// RunJob crawls every target and returns a summary once all targets
// are processed; an empty list completes immediately with zero
// outcomes. The job finishes as completed even when every target
// fails; only cancellation or a persistence failure marks it failed.
// A second concurrent call returns ErrJobRunning without side effects.
func (o *Orchestrator) RunJob(ctx context.Context, targets []crawler.Target) (JobSummary, error) {
	if !o.running.CompareAndSwap(false, true) {
		return JobSummary{}, ErrJobRunning
	}
	defer o.running.Store(false)

	jobID := uuid.New()
	start := o.clock.Now()
	total := len(targets)
	logger := o.logger.With(zap.String("job_id", jobID.String()))
	logger.Info("batch job started", zap.Int("targets", total), zap.Int("workers", o.cfg.Workers))

	if err := o.results.StartJob(ctx, jobID, total); err != nil {
		return JobSummary{}, fmt.Errorf("start job: %w", err)
	}

	outcomes, runErr := o.crawlAll(ctx, jobID, targets)

	summary := JobSummary{
		JobID:    jobID,
		Total:    total,
		Duration: o.clock.Now().Sub(start),
		Outcomes: outcomes,
	}
	for _, out := range outcomes {
		if out.Success {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}

	status := store.JobStatusCompleted
	errText := ""
	if runErr != nil {
		status = store.JobStatusFailed
		errText = runErr.Error()
	}
	summary.Status = status

	// CompleteJob uses a background context so a cancelled run still
	// gets its terminal status persisted.
	completeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.results.CompleteJob(completeCtx, jobID, status, errText); err != nil {
		logger.Error("failed to persist job completion", zap.Error(err))
		if runErr == nil {
			runErr = fmt.Errorf("complete job: %w", err)
			summary.Status = store.JobStatusFailed
		}
	}

	logger.Info("batch job finished",
		zap.String("status", string(summary.Status)),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Duration("duration", summary.Duration),
	)
	return summary, runErr
}

// CheckTarget crawls a single target outside of any job record and
// runs the alert check on success.
func (o *Orchestrator) CheckTarget(ctx context.Context, target crawler.Target) (crawler.Outcome, error) {
	if o.pacer != nil {
		if err := o.pacer.Wait(ctx, target.URL); err != nil {
			return crawler.Outcome{}, err
		}
	}
	outcome := o.crawler.Crawl(ctx, target)
	if outcome.Success && outcome.Product != nil && o.alerter != nil {
		o.alerter.Check(ctx, target, *outcome.Product)
	}
	return outcome, nil
}

// crawlAll runs the worker pool over the target list. It returns every
// outcome produced plus the first fatal error, which is either a
// context cancellation or a store write failure.
func (o *Orchestrator) crawlAll(ctx context.Context, jobID uuid.UUID, targets []crawler.Target) ([]crawler.Outcome, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	feed := make(chan crawler.Target)
	var (
		mu        sync.Mutex
		outcomes  []crawler.Outcome
		processed int
		fatalErr  error
	)
	total := len(targets)

	fail := func(err error) {
		mu.Lock()
		if fatalErr == nil {
			fatalErr = err
		}
		mu.Unlock()
		cancel()
	}

	var wg sync.WaitGroup
	for i := 0; i < o.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			first := true
			for target := range feed {
				if !first {
					if err := o.targetDelay(runCtx); err != nil {
						fail(fmt.Errorf("job cancelled: %w", err))
						return
					}
				}
				first = false

				if o.pacer != nil {
					if err := o.pacer.Wait(runCtx, target.URL); err != nil {
						fail(fmt.Errorf("job cancelled: %w", err))
						return
					}
				}

				outcome := o.crawler.Crawl(runCtx, target)
				if runCtx.Err() != nil {
					fail(fmt.Errorf("job cancelled: %w", runCtx.Err()))
					return
				}

				if outcome.Success && outcome.Product != nil && o.alerter != nil {
					o.alerter.Check(runCtx, target, *outcome.Product)
				}

				if err := o.results.RecordOutcome(runCtx, jobID, outcome); err != nil {
					fail(fmt.Errorf("record outcome: %w", err))
					return
				}

				mu.Lock()
				outcomes = append(outcomes, outcome)
				processed++
				done := processed
				mu.Unlock()

				if err := o.results.UpdateProgress(runCtx, jobID, done, total); err != nil {
					fail(fmt.Errorf("update progress: %w", err))
					return
				}
			}
		}()
	}

	for _, target := range targets {
		select {
		case feed <- target:
		case <-runCtx.Done():
		}
		if runCtx.Err() != nil {
			break
		}
	}
	close(feed)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if fatalErr == nil && ctx.Err() != nil {
		fatalErr = fmt.Errorf("job cancelled: %w", ctx.Err())
	}
	return outcomes, fatalErr
}

// targetDelay pauses a worker for a random duration between the
// configured bounds.
func (o *Orchestrator) targetDelay(ctx context.Context) error {
	if o.cfg.MaxTargetDelay <= 0 {
		return nil
	}
	minD := o.cfg.MinTargetDelay
	span := o.cfg.MaxTargetDelay - minD
	delay := minD
	if span > 0 {
		delay += time.Duration(o.rnd() * float64(span))
	}
	return o.sleep(ctx, delay)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
