package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ayo6706/clubledger/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReconciler struct {
	report service.ReconciliationReport
	err    error
	runs   atomic.Int32
}

func (f *fakeReconciler) Run(context.Context) (service.ReconciliationReport, error) {
	f.runs.Add(1)
	return f.report, f.err
}

type fakeReporter struct {
	count  int64
	err    error
	maxAge time.Duration
}

func (f *fakeReporter) ReportStale(_ context.Context, maxAge time.Duration) (int64, error) {
	f.maxAge = maxAge
	return f.count, f.err
}

func TestReconciliationWorkerRunOnce(t *testing.T) {
	tests := []struct {
		name string
		rec  *fakeReconciler
		want bool
	}{
		{name: "intact", rec: &fakeReconciler{}, want: true},
		{name: "breaks", rec: &fakeReconciler{report: service.ReconciliationReport{MemberBreaks: 2}}, want: false},
		{name: "error", rec: &fakeReconciler{err: errors.New("db down")}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewReconciliationWorker(tt.rec)
			assert.Equal(t, tt.want, w.RunOnce(context.Background()))
			assert.Equal(t, int32(1), tt.rec.runs.Load())
		})
	}
}

func TestReconciliationWorkerRunsAtStartupAndStops(t *testing.T) {
	rec := &fakeReconciler{}
	w := NewReconciliationWorker(rec).WithInterval(time.Hour)

	done := make(chan struct{})
	go func() {
		w.Start(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool { return rec.runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	w.Stop()
	w.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestStaleChargeWorkerProcessOnce(t *testing.T) {
	rep := &fakeReporter{count: 3}
	w := NewStaleChargeWorker(rep).WithMaxAge(30 * time.Minute)

	n, err := w.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, 30*time.Minute, rep.maxAge)

	rep.err = errors.New("db down")
	_, err = w.ProcessOnce(context.Background())
	require.Error(t, err)
}

func TestStaleChargeWorkerStopsOnContextCancel(t *testing.T) {
	w := NewStaleChargeWorker(&fakeReporter{}).WithPollInterval(10 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	stop := w.Run(ctx)

	time.Sleep(30 * time.Millisecond)
	cancel()

	stopped := make(chan struct{})
	go func() {
		stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("stop did not return after context cancel")
	}
}

type blockingReconciler struct {
	entered chan struct{}
	release chan struct{}
	done    atomic.Bool
}

func (b *blockingReconciler) Run(context.Context) (service.ReconciliationReport, error) {
	close(b.entered)
	<-b.release
	b.done.Store(true)
	return service.ReconciliationReport{}, nil
}

func TestStopWaitsForInFlightRun(t *testing.T) {
	rec := &blockingReconciler{entered: make(chan struct{}), release: make(chan struct{})}
	w := NewReconciliationWorker(rec)
	stop := w.Run(context.Background())
	<-rec.entered

	stopped := make(chan struct{})
	go func() {
		stop()
		close(stopped)
	}()
	select {
	case <-stopped:
		t.Fatal("stop returned while a run was in flight")
	case <-time.After(20 * time.Millisecond):
	}

	close(rec.release)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
	assert.True(t, rec.done.Load())
}

func TestStopBeforeStartDoesNotBlock(t *testing.T) {
	w := NewStaleChargeWorker(&fakeReporter{})
	w.Stop()
	w.Start(context.Background())
}
