// ABOUTME: Tests for the update Broadcaster fan-out
// ABOUTME: Covers subscribe, publish, unsubscribe, context cancellation, concurrency

package conversation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeUpdate(delta string) Update {
	return Update{Kind: UpdateDelta, RunID: "run-1", Delta: delta}
}

func TestBroadcaster_SingleSubscriberReceivesUpdate(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch, _ := b.Subscribe(t.Context(), "agent:a1")
	b.Publish("agent:a1", makeUpdate("Hi"))

	select {
	case got := <-ch:
		assert.Equal(t, "Hi", got.Delta)
		assert.Equal(t, UpdateDelta, got.Kind)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for update")
	}
}

func TestBroadcaster_MultipleSubscribersReceiveSameUpdate(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ctx := t.Context()
	ch1, _ := b.Subscribe(ctx, "agent:a1")
	ch2, _ := b.Subscribe(ctx, "agent:a1")

	b.Publish("agent:a1", makeUpdate("there"))

	for i, ch := range []<-chan Update{ch1, ch2} {
		select {
		case got := <-ch:
			assert.Equal(t, "there", got.Delta, "subscriber %d got wrong update", i)
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d timed out", i)
		}
	}
}

func TestBroadcaster_KeysAreIsolated(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ctx := t.Context()
	ch1, _ := b.Subscribe(ctx, "agent:a1")
	ch2, _ := b.Subscribe(ctx, "team:t1")

	b.Publish("agent:a1", makeUpdate("x"))

	select {
	case <-ch1:
	case <-time.After(time.Second):
		t.Fatal("subscriber for agent:a1 timed out")
	}
	select {
	case <-ch2:
		t.Fatal("subscriber for team:t1 should not receive agent:a1 updates")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcaster_SlowConsumerDoesNotBlockPublisher(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ctx := t.Context()
	_, _ = b.Subscribe(ctx, "agent:a1")
	fast, _ := b.Subscribe(ctx, "agent:a1")

	done := make(chan struct{})
	go func() {
		for range subscriberBufferSize * 2 {
			b.Publish("agent:a1", makeUpdate("."))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked on a full subscriber")
	}
	assert.Len(t, fast, subscriberBufferSize)
}

func TestBroadcaster_ContextCancellationCleansUp(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := b.Subscribe(ctx, "agent:a1")
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should be closed after context cancel")
	case <-time.After(time.Second):
		t.Fatal("channel not closed after context cancel")
	}

	b.mu.RLock()
	_, exists := b.subscribers["agent:a1"]
	b.mu.RUnlock()
	assert.False(t, exists)
}

func TestBroadcaster_UnsubscribeThenPublish(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch, subID := b.Subscribe(t.Context(), "agent:a1")
	b.Unsubscribe("agent:a1", subID)

	_, ok := <-ch
	assert.False(t, ok)

	b.Publish("agent:a1", makeUpdate("late"))
	b.Unsubscribe("agent:a1", subID)
}

func TestBroadcaster_CloseClosesAllSubscriptions(t *testing.T) {
	b := NewBroadcaster(nil)

	ch1, _ := b.Subscribe(t.Context(), "agent:a1")
	ch2, _ := b.Subscribe(t.Context(), "workflow:w1")
	b.Close()

	for i, ch := range []<-chan Update{ch1, ch2} {
		_, ok := <-ch
		assert.False(t, ok, "channel %d should be closed after Close()", i)
	}
}

func TestBroadcaster_ConcurrentPublishSubscribe(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	var wg sync.WaitGroup
	ctx := t.Context()

	for range 10 {
		wg.Go(func() {
			ch, _ := b.Subscribe(ctx, "agent:busy")
			for range 5 {
				select {
				case <-ch:
				case <-time.After(200 * time.Millisecond):
					return
				}
			}
		})
	}
	for range 10 {
		wg.Go(func() {
			for range 10 {
				b.Publish("agent:busy", makeUpdate("x"))
			}
		})
	}
	wg.Wait()
}

func TestBroadcaster_SubscribeReturnsUniqueIDs(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	_, id1 := b.Subscribe(t.Context(), "agent:a1")
	_, id2 := b.Subscribe(t.Context(), "agent:a1")
	require.NotEqual(t, id1, id2)
}
