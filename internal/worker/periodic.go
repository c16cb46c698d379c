package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// periodic runs a job on a ticker until Stop is called or the context ends.
// Stop waits for an in-flight run to finish.
type periodic struct {
	name     string
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	running  atomic.Bool
}

func newPeriodic(name string, interval time.Duration) *periodic {
	return &periodic{
		name:     name,
		interval: interval,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (p *periodic) setInterval(interval time.Duration) {
	if interval > 0 {
		p.interval = interval
	}
}

// start blocks running job. A second call while running returns at once.
func (p *periodic) start(ctx context.Context, runAtStart bool, job func(context.Context)) {
	if !p.running.CompareAndSwap(false, true) {
		return
	}
	p.loop(ctx, runAtStart, job)
}

// spawn runs the loop in a goroutine and returns Stop.
func (p *periodic) spawn(ctx context.Context, runAtStart bool, job func(context.Context)) func() {
	if p.running.CompareAndSwap(false, true) {
		go p.loop(ctx, runAtStart, job)
	}
	return p.Stop
}

func (p *periodic) loop(ctx context.Context, runAtStart bool, job func(context.Context)) {
	defer close(p.done)
	log := zap.L().With(zap.String("worker", p.name))
	log.Info("worker starting", zap.Duration("interval", p.interval))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	if runAtStart {
		job(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			log.Info("worker context canceled")
			return
		case <-p.stopCh:
			log.Info("worker stop signal received")
			return
		case <-ticker.C:
			job(ctx)
		}
	}
}

// Stop ends the loop and waits for it to return. It is safe to call more than once.
func (p *periodic) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
	})
	if p.running.Load() {
		<-p.done
	}
}
