package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/happy-hops/choperia/internal/app/system"
)

var _ system.Service = (*Hub)(nil)

func (h *Hub) Name() string { return "mesa-events" }

// Start subscribes to the shared Redis channel. Without Redis it is a no-op.
func (h *Hub) Start(ctx context.Context) error {
	h.runMu.Lock()
	defer h.runMu.Unlock()
	if h.running || h.rdb == nil {
		return nil
	}

	pubsub := h.rdb.Subscribe(ctx, h.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe %s: %w", h.channel, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	h.pubsub = pubsub
	h.cancel = cancel
	h.running = true
	h.wg.Add(1)
	go h.consume(runCtx, pubsub.Channel())

	h.log.WithField("channel", h.channel).Info("mesa event relay started")
	return nil
}

func (h *Hub) consume(ctx context.Context, messages <-chan *redis.Message) {
	defer h.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				h.log.WithError(err).Warn("discarding malformed mesa event")
				continue
			}
			if env.Origin == h.instance || env.Event.ID == "" {
				continue
			}
			h.store(env.Event)
		}
	}
}

// Stop closes the Redis subscription and waits for the relay to exit.
func (h *Hub) Stop(ctx context.Context) error {
	h.runMu.Lock()
	if !h.running {
		h.runMu.Unlock()
		return nil
	}
	h.running = false
	cancel, pubsub := h.cancel, h.pubsub
	h.runMu.Unlock()

	cancel()
	err := pubsub.Close()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	h.log.Info("mesa event relay stopped")
	return err
}
