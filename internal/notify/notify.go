// Package notify delivers member notifications off the request path.
package notify

import (
	"context"
	"errors"
	"sync"

	"github.com/ayo6706/clubledger/internal/observability"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Kind string

const (
	KindTopUpSucceeded      Kind = "TOP_UP_SUCCEEDED"
	KindTopUpDeclined       Kind = "TOP_UP_DECLINED"
	KindAutoTopUpEnabled    Kind = "AUTO_TOP_UP_ENABLED"
	KindCardPaymentReceived Kind = "CARD_PAYMENT_RECEIVED"
)

type Notification struct {
	MemberID uuid.UUID
	Kind     Kind
	Amount   int64
	Message  string
}

// Notifier is what services depend on.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Sender performs the actual delivery (e-mail, push, ...).
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

var (
	ErrQueueFull = errors.New("notification queue full")
	ErrStopped   = errors.New("notification dispatcher stopped")
)

// Dispatcher fans notifications out to a fixed number of workers reading a
// bounded queue. Notify never blocks; a full queue drops the notification.
type Dispatcher struct {
	sender  Sender
	workers int
	queue   chan Notification

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

func NewDispatcher(sender Sender, workers, queueDepth int) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueDepth <= 0 {
		queueDepth = 64
	}
	return &Dispatcher{
		sender:  sender,
		workers: workers,
		queue:   make(chan Notification, queueDepth),
	}
}

// Start launches the workers. They exit once Stop drains the queue.
func (d *Dispatcher) Start(ctx context.Context) {
	zap.L().Info("notification dispatcher starting", zap.Int("workers", d.workers), zap.Int("queue_depth", cap(d.queue)))
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for n := range d.queue {
				d.deliver(ctx, n)
			}
		}()
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n Notification) {
	defer func() {
		if rec := recover(); rec != nil {
			observability.IncrementNotification("panic")
			zap.L().Error("notification sender panicked", zap.Any("panic", rec), zap.String("kind", string(n.Kind)))
		}
	}()
	if err := d.sender.Send(context.WithoutCancel(ctx), n); err != nil {
		observability.IncrementNotification("failed")
		zap.L().Warn("notification delivery failed",
			zap.String("member_id", n.MemberID.String()),
			zap.String("kind", string(n.Kind)),
			zap.Error(err))
		return
	}
	observability.IncrementNotification("sent")
}

func (d *Dispatcher) Notify(_ context.Context, n Notification) {
	if err := d.enqueue(n); err != nil {
		observability.IncrementNotification("dropped")
		zap.L().Warn("notification dropped",
			zap.String("member_id", n.MemberID.String()),
			zap.String("kind", string(n.Kind)),
			zap.Error(err))
	}
}

func (d *Dispatcher) enqueue(n Notification) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrStopped
	}
	select {
	case d.queue <- n:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop closes the queue and waits for in-flight deliveries.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		close(d.queue)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

// LogSender writes notifications to the application log.
type LogSender struct{}

func (LogSender) Send(_ context.Context, n Notification) error {
	zap.L().Info("member notification",
		zap.String("member_id", n.MemberID.String()),
		zap.String("kind", string(n.Kind)),
		zap.Int64("amount", n.Amount),
		zap.String("message", n.Message))
	return nil
}

// Discard drops every notification.
type Discard struct{}

func (Discard) Notify(context.Context, Notification) {}
