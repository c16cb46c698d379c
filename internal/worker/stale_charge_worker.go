package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/ayo6706/clubledger/internal/observability"
	"go.uber.org/zap"
)

// StaleReporter counts pending charges older than maxAge.
type StaleReporter interface {
	ReportStale(ctx context.Context, maxAge time.Duration) (int64, error)
}

const staleChargeWorkerName = "stale_charges"

// StaleChargeWorker periodically reports pending gateway charges that never
// got a confirmation. It only observes; issued intents are never cancelled.
type StaleChargeWorker struct {
	*periodic
	reporter StaleReporter
	maxAge   time.Duration
}

func NewStaleChargeWorker(reporter StaleReporter) *StaleChargeWorker {
	return &StaleChargeWorker{
		periodic: newPeriodic(staleChargeWorkerName, 5*time.Minute),
		reporter: reporter,
		maxAge:   time.Hour,
	}
}

// WithPollInterval sets how often the report runs.
func (w *StaleChargeWorker) WithPollInterval(interval time.Duration) *StaleChargeWorker {
	w.setInterval(interval)
	return w
}

// WithMaxAge sets the age after which an unconfirmed charge counts as stale.
func (w *StaleChargeWorker) WithMaxAge(age time.Duration) *StaleChargeWorker {
	if age > 0 {
		w.maxAge = age
	}
	return w
}

// Start blocks until Stop or ctx cancellation.
func (w *StaleChargeWorker) Start(ctx context.Context) {
	w.start(ctx, false, w.job)
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *StaleChargeWorker) Run(ctx context.Context) func() {
	return w.spawn(ctx, false, w.job)
}

func (w *StaleChargeWorker) job(ctx context.Context) {
	if _, err := w.ProcessOnce(ctx); err != nil {
		zap.L().Error("stale charge report failed", zap.Error(err))
	}
}

// ProcessOnce runs a single report immediately.
func (w *StaleChargeWorker) ProcessOnce(ctx context.Context) (int64, error) {
	n, err := w.reporter.ReportStale(ctx, w.maxAge)
	if err != nil {
		observability.IncrementWorkerRun(staleChargeWorkerName, "failed")
		return 0, err
	}
	if n > 0 {
		zap.L().Warn("pending charges awaiting confirmation",
			zap.Int64("count", n),
			zap.Duration("older_than", w.maxAge))
	}
	observability.IncrementWorkerRun(staleChargeWorkerName, "success")
	return n, nil
}

func (w *StaleChargeWorker) String() string {
	return fmt.Sprintf("StaleChargeWorker(interval=%v, max_age=%v)", w.interval, w.maxAge)
}
