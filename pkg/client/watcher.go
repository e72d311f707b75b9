package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/happy-hops/choperia/internal/app/domain/mesa"
)

// EventHandler receives mesa events from other terminals.
type EventHandler func(mesa.Event)

// WatcherConfig configures a Watcher.
type WatcherConfig struct {
	// Interval is the polling period. Defaults to two seconds.
	Interval time.Duration
	// WebSocket follows /ws/mesas instead of polling. Polling takes over
	// whenever the socket cannot be opened.
	WebSocket bool
	// Since is the Unix ms timestamp to start from. Zero means now.
	Since int64
}

// Watcher delivers mesa changes made by other users.
type Watcher struct {
	client   *Client
	interval time.Duration
	useWS    bool
	since    int64
	dialer   websocket.Dialer
}

// NewWatcher builds a watcher over c.
func NewWatcher(c *Client, cfg WatcherConfig) *Watcher {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	since := cfg.Since
	if since == 0 {
		since = c.now().UnixMilli()
	}
	return &Watcher{
		client:   c,
		interval: interval,
		useWS:    cfg.WebSocket,
		since:    since,
		dialer:   websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

// Since returns the timestamp of the last delivered event.
func (w *Watcher) Since() int64 { return w.since }

// Run delivers events to fn until ctx is done.
func (w *Watcher) Run(ctx context.Context, fn EventHandler) error {
	for {
		if w.useWS {
			err := w.follow(ctx, fn)
			if ctx.Err() != nil {
				return nil
			}
			w.client.log.WithError(err).Debug("mesa stream closed, polling")
		}
		if err := w.pollUntil(ctx, fn, w.useWS); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// Poll fetches and delivers the pending events once.
func (w *Watcher) Poll(ctx context.Context, fn EventHandler) error {
	events, _, err := w.client.MesaEvents(ctx, w.since)
	if err != nil {
		return err
	}
	w.deliver(events, fn)
	return nil
}

func (w *Watcher) deliver(events []mesa.Event, fn EventHandler) {
	for _, ev := range events {
		if ev.Timestamp <= w.since || ev.User.ID == w.client.userID {
			continue
		}
		w.since = ev.Timestamp
		fn(ev)
	}
}

// pollUntil polls until ctx is done, or for a single interval when once is
// set so the socket can be retried.
func (w *Watcher) pollUntil(ctx context.Context, fn EventHandler, once bool) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if err := w.Poll(ctx, fn); err != nil && ctx.Err() == nil {
			w.client.log.WithError(err).Warn("poll mesa events")
		}
		if once {
			return nil
		}
	}
}

func (w *Watcher) streamURL() (string, error) {
	u, err := url.Parse(w.client.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/mesas"
	q := url.Values{}
	q.Set("since", strconv.FormatInt(w.since, 10))
	q.Set("exclude_user", strconv.FormatInt(w.client.userID, 10))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// follow reads the event stream until it fails or ctx is done.
func (w *Watcher) follow(ctx context.Context, fn EventHandler) error {
	target, err := w.streamURL()
	if err != nil {
		return err
	}
	conn, _, err := w.dialer.DialContext(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		case <-done:
		}
	}()

	for {
		var ev mesa.Event
		if err := conn.ReadJSON(&ev); err != nil {
			return err
		}
		if err := w.client.mirror.AppendMesaEvents(ev); err != nil {
			w.client.log.WithError(err).Warn("record mesa event")
		}
		w.deliver([]mesa.Event{ev}, fn)
	}
}
