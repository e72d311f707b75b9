// Package notifications distributes mesa events between terminals. Events
// are kept in a ring buffer for polling clients, fanned out to local
// subscribers and, when Redis is configured, shared with other instances.
package notifications

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/happy-hops/choperia/internal/app/domain/mesa"
	"github.com/happy-hops/choperia/internal/app/metrics"
	"github.com/happy-hops/choperia/internal/app/storage"
	"github.com/happy-hops/choperia/pkg/logger"
)

const (
	// DefaultSize is the number of events retained for polling.
	DefaultSize = 500
	// DefaultChannel is the Redis channel shared by every instance.
	DefaultChannel = "choperia:mesa-events"
)

// Handler receives events as they are published.
type Handler func(mesa.Event)

// Config configures a Hub.
type Config struct {
	Size    int
	Redis   *redis.Client
	Channel string
}

// Hub is a thread-safe circular buffer of mesa events with subscribers.
type Hub struct {
	mu       sync.RWMutex
	events   []mesa.Event
	size     int
	head     int
	count    int
	seen     map[string]struct{}
	handlers []handlerEntry
	nextID   int64

	users    storage.UserStore
	log      *logger.Logger
	instance string

	rdb     *redis.Client
	channel string
	pubsub  *redis.PubSub
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	runMu   sync.Mutex
}

type handlerEntry struct {
	id      int64
	handler Handler
}

// envelope is the Redis wire form; Origin lets an instance skip its own
// events.
type envelope struct {
	Origin string     `json:"origin"`
	Event  mesa.Event `json:"event"`
}

// New creates a hub. users resolves actor names and may be nil.
func New(cfg Config, users storage.UserStore, log *logger.Logger) *Hub {
	if log == nil {
		log = logger.NewDefault("notifications")
	}
	size := cfg.Size
	if size <= 0 {
		size = DefaultSize
	}
	channel := cfg.Channel
	if channel == "" {
		channel = DefaultChannel
	}
	return &Hub{
		events:   make([]mesa.Event, size),
		size:     size,
		seen:     make(map[string]struct{}, size),
		users:    users,
		log:      log,
		instance: uuid.NewString(),
		rdb:      cfg.Redis,
		channel:  channel,
	}
}

// Publish records evt, notifies subscribers and forwards it to other
// instances. The id and millisecond timestamp are assigned when missing.
func (h *Hub) Publish(ctx context.Context, evt mesa.Event) mesa.Event {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.Timestamp == 0 {
		evt.Timestamp = time.Now().UnixMilli()
	}
	if evt.User.Nome == "" && evt.User.ID > 0 && h.users != nil {
		if u, err := h.users.GetUser(ctx, evt.User.ID); err == nil {
			evt.User.Nome = u.Nome
			if evt.User.Nome == "" {
				evt.User.Nome = u.Username
			}
		}
	}

	h.store(evt)
	metrics.RecordMesaEvent(string(evt.Type))
	h.log.WithField("event_id", evt.ID).
		WithField("type", evt.Type).
		WithField("mesa_id", evt.Mesa.ID).
		Debug("mesa event published")

	if h.rdb != nil {
		payload, err := json.Marshal(envelope{Origin: h.instance, Event: evt})
		if err == nil {
			err = h.rdb.Publish(ctx, h.channel, payload).Err()
		}
		if err != nil {
			h.log.WithError(err).Warn("failed to forward mesa event to redis")
		}
	}
	return evt
}

// store adds evt to the buffer unless it was seen already and notifies
// handlers outside the lock.
func (h *Hub) store(evt mesa.Event) bool {
	h.mu.Lock()
	if _, dup := h.seen[evt.ID]; dup {
		h.mu.Unlock()
		return false
	}
	if h.count == h.size {
		delete(h.seen, h.events[h.head].ID)
	}
	h.events[h.head] = evt
	h.seen[evt.ID] = struct{}{}
	h.head = (h.head + 1) % h.size
	if h.count < h.size {
		h.count++
	}
	handlers := make([]handlerEntry, len(h.handlers))
	copy(handlers, h.handlers)
	h.mu.Unlock()

	for _, entry := range handlers {
		entry.handler(evt)
	}
	return true
}

// Subscribe registers a handler and returns its unsubscribe function.
// Handlers run on the publishing goroutine and must not block.
func (h *Hub) Subscribe(handler Handler) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.handlers = append(h.handlers, handlerEntry{id: id, handler: handler})
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, entry := range h.handlers {
			if entry.id == id {
				h.handlers = append(h.handlers[:i], h.handlers[i+1:]...)
				return
			}
		}
	}
}

// Since returns events newer than timestamp (Unix ms) in chronological
// order, leaving out events produced by excludeUserID when it is set.
func (h *Hub) Since(timestamp, excludeUserID int64) []mesa.Event {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make([]mesa.Event, 0)
	for i := 0; i < h.count; i++ {
		idx := (h.head - h.count + i + h.size) % h.size
		evt := h.events[idx]
		if evt.Timestamp <= timestamp {
			continue
		}
		if excludeUserID > 0 && evt.User.ID == excludeUserID {
			continue
		}
		result = append(result, evt)
	}
	return result
}

// Recent returns the most recent n events, newest first.
func (h *Hub) Recent(n int) []mesa.Event {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n <= 0 || h.count == 0 {
		return nil
	}
	if n > h.count {
		n = h.count
	}
	result := make([]mesa.Event, n)
	for i := 0; i < n; i++ {
		idx := (h.head - 1 - i + h.size) % h.size
		result[i] = h.events[idx]
	}
	return result
}

// Count returns the number of buffered events.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}
