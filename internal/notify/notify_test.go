package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu    sync.Mutex
	sent  []Notification
	block chan struct{}
	fail  bool
}

func (s *recordingSender) Send(_ context.Context, n Notification) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
	if s.fail {
		return errors.New("smtp down")
	}
	return nil
}

func TestDispatcherDeliversAll(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(sender, 3, 10)
	d.Start(context.Background())

	member := uuid.New()
	for i := 0; i < 5; i++ {
		d.Notify(context.Background(), Notification{MemberID: member, Kind: KindTopUpSucceeded, Amount: int64(i)})
	}
	d.Stop()

	require.Len(t, sender.sent, 5)
}

func TestDispatcherDropsWhenQueueFull(t *testing.T) {
	sender := &recordingSender{block: make(chan struct{})}
	d := NewDispatcher(sender, 1, 1)

	require.NoError(t, d.enqueue(Notification{Kind: KindTopUpDeclined}))
	require.ErrorIs(t, d.enqueue(Notification{Kind: KindTopUpDeclined}), ErrQueueFull)

	d.Start(context.Background())
	close(sender.block)
	d.Stop()
	require.Len(t, sender.sent, 1)
}

func TestDispatcherSurvivesSenderErrors(t *testing.T) {
	sender := &recordingSender{fail: true}
	d := NewDispatcher(sender, 1, 4)
	d.Start(context.Background())
	d.Notify(context.Background(), Notification{Kind: KindAutoTopUpEnabled})
	d.Notify(context.Background(), Notification{Kind: KindAutoTopUpEnabled})
	d.Stop()
	require.Len(t, sender.sent, 2)
}

func TestDispatcherNotifyAfterStop(t *testing.T) {
	d := NewDispatcher(&recordingSender{}, 1, 1)
	d.Start(context.Background())
	d.Stop()
	require.ErrorIs(t, d.enqueue(Notification{}), ErrStopped)
	require.NotPanics(t, func() { d.Notify(context.Background(), Notification{}) })
}
