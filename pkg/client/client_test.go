package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/happy-hops/choperia/internal/app/domain/catalog"
	"github.com/happy-hops/choperia/internal/app/domain/mesa"
	"github.com/happy-hops/choperia/internal/httputil"
	"github.com/happy-hops/choperia/pkg/client/localstore"
	"github.com/happy-hops/choperia/pkg/logger"
)

const operatorID = 7

func newTestClient(t *testing.T, baseURL string, mirror *localstore.Store) *Client {
	t.Helper()
	if mirror == nil {
		var err error
		mirror, err = localstore.Open(filepath.Join(t.TempDir(), "mirror.json"))
		require.NoError(t, err)
	}
	c, err := New(Config{
		BaseURL: baseURL,
		Mirror:  mirror,
		UserID:  operatorID,
		Logger:  logger.New(logger.Config{Output: io.Discard}),
		Timeout: 2 * time.Second,
	})
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func catalogServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /produtos", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []catalog.Produto{
			{ID: 4, Nome: "Pilsen", Venda: 7.5, Estoque: 10, Disponivel: true},
		})
	})
	mux.HandleFunc("GET /mesas", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, localstore.DefaultMesas(2))
	})
	return httptest.NewServer(mux)
}

func TestClient_FallsBackToMirror(t *testing.T) {
	srv := catalogServer(t)
	c := newTestClient(t, srv.URL, nil)
	ctx := context.Background()

	produtos, cached, err := c.Produtos(ctx)
	require.NoError(t, err)
	assert.False(t, cached)
	require.Len(t, produtos, 1)

	views, cached, err := c.Mesas(ctx)
	require.NoError(t, err)
	assert.False(t, cached)
	require.Len(t, views, 2)

	srv.Close()

	views, cached, err = c.Mesas(ctx)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Len(t, views, 2)

	view, cached, err := c.AddItem(ctx, AddItemRequest{MesaID: 1, ProdutoID: 4, Quantidade: 2})
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, mesa.StatusOcupada, view.Status)
	assert.Equal(t, int64(1), view.Pedido)
	require.Len(t, view.Itens, 1)
	assert.Equal(t, 15.0, view.Itens[0].Subtotal)

	mirrored, err := c.Mirror().Produtos()
	require.NoError(t, err)
	assert.Equal(t, 8, mirrored[0].Estoque)

	recebido := 20.0
	result, cached, err := c.PayMesa(ctx, PaymentRequest{MesaID: 1, Metodo: "dinheiro", ValorRecebido: &recebido})
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, 5.0, result.Troco)
	assert.Equal(t, mesa.StatusLivre, result.Mesa.Status)
	assert.Empty(t, result.Mesa.Itens)

	metrics, err := c.LocalDashboard(time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, metrics.PedidosHoje)
	assert.Equal(t, 15.0, metrics.FaturamentoHoje)
	assert.Equal(t, 1, metrics.ProdutosCount)
	assert.Equal(t, 0, metrics.MesasAtivas)

	ops, err := c.Mirror().Pending()
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, "/mesas/1/itens", ops[0].Path)
	assert.Equal(t, "/mesas/1/pagamento", ops[1].Path)

	events, err := c.Mirror().MesaEvents(0, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, mesa.EventOccupied, events[0].Type)
	assert.Equal(t, mesa.EventFreed, events[1].Type)

	assert.Equal(t, BreakerOpen, c.BreakerState())
}

func TestClient_RejectedWriteIsNotQueued(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Estoque insuficiente"})
	}))
	defer srv.Close()
	c := newTestClient(t, srv.URL, nil)

	_, cached, err := c.AddItem(context.Background(), AddItemRequest{MesaID: 1, ProdutoID: 4, Quantidade: 50})
	require.Error(t, err)
	assert.False(t, cached)
	var se *httputil.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)

	ops, err := c.Mirror().Pending()
	require.NoError(t, err)
	assert.Empty(t, ops)
}

func TestClient_SyncReplaysOutbox(t *testing.T) {
	mirror, err := localstore.Open(filepath.Join(t.TempDir(), "mirror.json"))
	require.NoError(t, err)
	_, err = mirror.Enqueue(http.MethodPost, "/mesas/1/itens", map[string]int64{"produto_id": 4, "quantidade": 2, "user_id": operatorID})
	require.NoError(t, err)
	_, err = mirror.Enqueue(http.MethodPost, "/mesas/1/pagamento", map[string]string{"metodo": "pix"})
	require.NoError(t, err)

	var (
		mu     sync.Mutex
		bodies = map[string]map[string]interface{}{}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		bodies[r.URL.Path] = body
		mu.Unlock()
		if r.URL.Path == "/mesas/1/pagamento" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Nenhum pedido pendente"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, mirror)
	result, err := c.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Replayed: 1, Rejected: 1}, result)

	mu.Lock()
	assert.Equal(t, float64(2), bodies["/mesas/1/itens"]["quantidade"])
	assert.Equal(t, "pix", bodies["/mesas/1/pagamento"]["metodo"])
	mu.Unlock()

	ops, err := mirror.Pending()
	require.NoError(t, err)
	assert.Empty(t, ops)
}

func TestClient_SyncStopsWhenOffline(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := newTestClient(t, url, nil)
	_, err := c.Mirror().Enqueue(http.MethodPost, "/pedidos", map[string]string{"tipo": "fisica"})
	require.NoError(t, err)

	result, err := c.Sync(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, result.Pending)

	ops, err := c.Mirror().Pending()
	require.NoError(t, err)
	assert.Len(t, ops, 1)
}

func TestClient_Available(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}))
	c := newTestClient(t, srv.URL, nil)
	assert.True(t, c.Available(context.Background()))
	srv.Close()
	assert.False(t, c.Available(context.Background()))
}

func TestWatcher_PollSkipsOwnEvents(t *testing.T) {
	queries := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries <- r.URL.RawQuery
		writeJSON(w, http.StatusOK, []mesa.Event{
			{ID: "a", Type: mesa.EventOccupied, User: mesa.Actor{ID: operatorID}, Timestamp: 10},
			{ID: "b", Type: mesa.EventFreed, User: mesa.Actor{ID: 8}, Timestamp: 20},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	w := NewWatcher(c, WatcherConfig{Since: 1})

	var got []mesa.Event
	require.NoError(t, w.Poll(context.Background(), func(ev mesa.Event) { got = append(got, ev) }))
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, int64(20), w.Since())
	query := <-queries
	assert.Contains(t, query, "exclude_user=7")
	assert.Contains(t, query, "since=1")
}

func TestWatcher_FollowsWebSocket(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws/mesas" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteJSON(mesa.Event{ID: "ws-1", Type: mesa.EventOccupied, User: mesa.Actor{ID: 9, Nome: "Ana"}, Timestamp: 50})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	w := NewWatcher(c, WatcherConfig{Since: 1, WebSocket: true, Interval: 50 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	received := make(chan mesa.Event, 1)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(ev mesa.Event) {
			select {
			case received <- ev:
			default:
			}
		})
	}()

	select {
	case ev := <-received:
		assert.Equal(t, "ws-1", ev.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for websocket event")
	}
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestBreakerOpensAndRecovers(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	b := newBreaker(BreakerConfig{FailureThreshold: 2, Cooldown: time.Minute})
	b.now = func() time.Time { return now }

	b.failure()
	require.NoError(t, b.allow())
	b.failure()
	assert.ErrorIs(t, b.allow(), errBreakerOpen)

	now = now.Add(2 * time.Minute)
	require.NoError(t, b.allow())
	assert.Equal(t, BreakerHalfOpen, b.current())
	b.failure()
	assert.Equal(t, BreakerOpen, b.current())

	now = now.Add(2 * time.Minute)
	require.NoError(t, b.allow())
	b.success()
	assert.Equal(t, BreakerClosed, b.current())
}
