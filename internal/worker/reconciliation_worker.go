package worker

import (
	"context"
	"time"

	"github.com/ayo6706/clubledger/internal/observability"
	"github.com/ayo6706/clubledger/internal/service"
	"go.uber.org/zap"
)

const reconciliationWorkerName = "reconciliation"

// Reconciler is the ledger chain check run by ReconciliationWorker.
type Reconciler interface {
	Run(ctx context.Context) (service.ReconciliationReport, error)
}

// ReconciliationWorker re-walks the member and organisation ledger chains on
// a schedule, once at startup and then every interval.
type ReconciliationWorker struct {
	*periodic
	svc Reconciler
}

// NewReconciliationWorker defaults to an hourly run.
func NewReconciliationWorker(svc Reconciler) *ReconciliationWorker {
	return &ReconciliationWorker{
		periodic: newPeriodic(reconciliationWorkerName, time.Hour),
		svc:      svc,
	}
}

func (w *ReconciliationWorker) WithInterval(interval time.Duration) *ReconciliationWorker {
	w.setInterval(interval)
	return w
}

// Start blocks until Stop or ctx cancellation.
func (w *ReconciliationWorker) Start(ctx context.Context) {
	w.start(ctx, true, w.job)
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *ReconciliationWorker) Run(ctx context.Context) func() {
	return w.spawn(ctx, true, w.job)
}

func (w *ReconciliationWorker) job(ctx context.Context) {
	w.RunOnce(ctx)
}

// RunOnce performs a single check and reports whether the chains are intact.
func (w *ReconciliationWorker) RunOnce(ctx context.Context) bool {
	report, err := w.svc.Run(ctx)
	switch {
	case err != nil:
		observability.IncrementWorkerRun(reconciliationWorkerName, "failed")
		zap.L().Error("reconciliation run failed", zap.Error(err))
		return false
	case !report.Balanced():
		observability.IncrementWorkerRun(reconciliationWorkerName, "breaks")
		return false
	default:
		observability.IncrementWorkerRun(reconciliationWorkerName, "success")
		return true
	}
}
