// ABOUTME: In-memory fan-out of conversation updates to renderers
// ABOUTME: Publishes per-event updates to all subscribers of a target key

package conversation

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/2389/coven-playground/internal/model"
)

const (
	// subscriberBufferSize is the channel buffer for each subscriber.
	subscriberBufferSize = 64
)

// UpdateKind identifies what changed in the conversation.
type UpdateKind string

const (
	UpdateStarted   UpdateKind = "started"
	UpdateDelta     UpdateKind = "delta"
	UpdateToolCalls UpdateKind = "tool_calls"
	UpdateSession   UpdateKind = "session"
	UpdateCompleted UpdateKind = "completed"
	UpdateFailed    UpdateKind = "failed"
)

// Update describes one applied change. Message is a snapshot of the open
// agent message after the change.
type Update struct {
	Kind      UpdateKind
	RunID     string
	SessionID string
	// Delta is the content appended by this change, if any.
	Delta   string
	Message model.Message
	Err     string
}

// Broadcaster provides in-memory pub/sub for conversation updates.
// Subscribers register for a key (the target string) and receive updates as
// the run is folded.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan Update // key -> subID -> ch
	logger      *slog.Logger
}

// NewBroadcaster creates a broadcaster. Pass nil logger for default.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[string]map[string]chan Update),
		logger:      logger.With("component", "broadcaster"),
	}
}

// Subscribe registers a subscriber for updates on key. It returns the update
// channel and a subscription ID. The subscription is cleaned up when ctx is
// cancelled.
func (b *Broadcaster) Subscribe(ctx context.Context, key string) (<-chan Update, string) {
	subID := uuid.New().String()
	ch := make(chan Update, subscriberBufferSize)

	b.mu.Lock()
	if _, ok := b.subscribers[key]; !ok {
		b.subscribers[key] = make(map[string]chan Update)
	}
	b.subscribers[key][subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "key", key, "sub_id", subID)

	go func() {
		<-ctx.Done()
		b.Unsubscribe(key, subID)
	}()

	return ch, subID
}

// Publish sends u to all subscribers of key.
// Non-blocking: updates are dropped for subscribers whose channels are full.
func (b *Broadcaster) Publish(key string, u Update) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	subs, ok := b.subscribers[key]
	if !ok {
		return
	}
	for subID, ch := range subs {
		select {
		case ch <- u:
		default:
			b.logger.Debug("dropped update for slow subscriber",
				"key", key,
				"sub_id", subID,
				"kind", u.Kind)
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(key, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[key]
	if !ok {
		return
	}
	ch, exists := subs[subID]
	if !exists {
		return
	}

	delete(subs, subID)
	close(ch)
	if len(subs) == 0 {
		delete(b.subscribers, key)
	}

	b.logger.Debug("subscriber removed", "key", key, "sub_id", subID)
}

// Close closes all subscriber channels.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for key, subs := range b.subscribers {
		for subID, ch := range subs {
			close(ch)
			delete(subs, subID)
		}
		delete(b.subscribers, key)
	}

	b.logger.Debug("broadcaster closed")
}
