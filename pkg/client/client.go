// Package client wraps the choperia HTTP API for terminals that must keep
// working when the server is unreachable. Reads fall back to a file-backed
// mirror; writes made while offline are applied to the mirror and queued for
// replay by Sync.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/happy-hops/choperia/internal/app/domain"
	"github.com/happy-hops/choperia/internal/app/domain/catalog"
	"github.com/happy-hops/choperia/internal/app/domain/dashboard"
	"github.com/happy-hops/choperia/internal/app/domain/estoque"
	"github.com/happy-hops/choperia/internal/app/domain/mesa"
	"github.com/happy-hops/choperia/internal/app/domain/pedido"
	"github.com/happy-hops/choperia/internal/httputil"
	"github.com/happy-hops/choperia/pkg/client/localstore"
	"github.com/happy-hops/choperia/pkg/logger"
)

// ErrNotFound is returned when a resource exists neither on the API nor in
// the mirror.
var ErrNotFound = errors.New("not found")

const availabilityTimeout = 3 * time.Second

// Config configures a Client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MirrorPath string
	// Mirror overrides MirrorPath with an already opened store.
	Mirror *localstore.Store
	Logger *logger.Logger
	// UserID identifies the operator of this terminal. Events produced by
	// this user are not delivered back by the Watcher.
	UserID   int64
	UserName string
	Token    string
	Location *time.Location
	Breaker  BreakerConfig
}

// Client talks to the API and keeps the mirror current.
type Client struct {
	http     *httputil.ServiceClient
	mirror   *localstore.Store
	log      *logger.Logger
	breaker  *breaker
	userID   int64
	userName string
	loc      *time.Location
	now      func() time.Time
	baseURL  string
}

// New builds a client. The mirror is opened from MirrorPath unless Mirror is
// set.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	mirror := cfg.Mirror
	if mirror == nil {
		if cfg.MirrorPath == "" {
			return nil, fmt.Errorf("mirror path is required")
		}
		var err error
		if mirror, err = localstore.Open(cfg.MirrorPath); err != nil {
			return nil, err
		}
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewDefault("choperia-client")
	}
	userID := cfg.UserID
	if userID <= 0 {
		userID = domain.FallbackUserID
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http: httputil.NewServiceClient(httputil.ServiceClientConfig{
			BaseURL:     cfg.BaseURL,
			BearerToken: cfg.Token,
			Timeout:     timeout,
			MaxRetries:  1,
		}),
		mirror:   mirror,
		log:      log,
		breaker:  newBreaker(cfg.Breaker),
		userID:   userID,
		userName: cfg.UserName,
		loc:      loc,
		now:      time.Now,
		baseURL:  cfg.BaseURL,
	}, nil
}

// Mirror exposes the local store.
func (c *Client) Mirror() *localstore.Store { return c.mirror }

// UserID returns the operator id sent with writes.
func (c *Client) UserID() int64 { return c.userID }

// BreakerState reports whether the client is currently skipping the API.
func (c *Client) BreakerState() BreakerState { return c.breaker.current() }

// Available reports whether the API answers /health within three seconds.
func (c *Client) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, availabilityTimeout)
	defer cancel()
	resp, err := c.http.Get(ctx, "/health")
	if err != nil {
		return false
	}
	if err := httputil.DecodeResponse(resp, nil); err != nil {
		return false
	}
	c.breaker.success()
	return true
}

// unavailable reports whether err means the API could not serve the call, as
// opposed to rejecting it.
func unavailable(err error) bool {
	if err == nil {
		return false
	}
	var se *httputil.StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= http.StatusInternalServerError
	}
	return !errors.Is(err, context.Canceled)
}

func (c *Client) call(ctx context.Context, method, path string, body, out interface{}) error {
	if err := c.breaker.allow(); err != nil {
		return err
	}
	resp, err := c.http.Do(ctx, method, path, body)
	if err != nil {
		c.breaker.failure()
		return err
	}
	err = httputil.DecodeResponse(resp, out)
	if unavailable(err) {
		c.breaker.failure()
	} else {
		c.breaker.success()
	}
	return err
}

func (c *Client) fallback(op string, err error) {
	c.log.WithError(err).WithField("op", op).Warn("api unavailable, using local mirror")
}

// --- reads ---------------------------------------------------------------------

// Mesas lists mesas with their pending orders.
func (c *Client) Mesas(ctx context.Context) ([]mesa.View, bool, error) {
	var views []mesa.View
	err := c.call(ctx, http.MethodGet, "/mesas", nil, &views)
	if err == nil {
		if err := c.mirror.SetMesas(views); err != nil {
			c.log.WithError(err).Warn("refresh mesa mirror")
		}
		return views, false, nil
	}
	if !unavailable(err) {
		return nil, false, err
	}
	c.fallback("mesas", err)
	views, err = c.mirror.Mesas()
	return views, true, err
}

// Mesa returns one mesa.
func (c *Client) Mesa(ctx context.Context, id int64) (mesa.View, bool, error) {
	var view mesa.View
	err := c.call(ctx, http.MethodGet, fmt.Sprintf("/mesas/%d", id), nil, &view)
	if err == nil {
		if err := c.mirror.PutMesa(view); err != nil {
			c.log.WithError(err).Warn("refresh mesa mirror")
		}
		return view, false, nil
	}
	if !unavailable(err) {
		return mesa.View{}, false, err
	}
	c.fallback("mesa", err)
	view, ok, err := c.mirror.Mesa(id)
	if err != nil {
		return mesa.View{}, true, err
	}
	if !ok {
		return mesa.View{}, true, fmt.Errorf("mesa %d: %w", id, ErrNotFound)
	}
	return view, true, nil
}

// Produtos lists the catalog.
func (c *Client) Produtos(ctx context.Context) ([]catalog.Produto, bool, error) {
	var produtos []catalog.Produto
	err := c.call(ctx, http.MethodGet, "/produtos", nil, &produtos)
	if err == nil {
		if err := c.mirror.SetProdutos(produtos); err != nil {
			c.log.WithError(err).Warn("refresh produto mirror")
		}
		return produtos, false, nil
	}
	if !unavailable(err) {
		return nil, false, err
	}
	c.fallback("produtos", err)
	produtos, err = c.mirror.Produtos()
	return produtos, true, err
}

// Empresas lists suppliers.
func (c *Client) Empresas(ctx context.Context) ([]catalog.Empresa, bool, error) {
	var empresas []catalog.Empresa
	err := c.call(ctx, http.MethodGet, "/empresas", nil, &empresas)
	if err == nil {
		if err := c.mirror.SetEmpresas(empresas); err != nil {
			c.log.WithError(err).Warn("refresh empresa mirror")
		}
		return empresas, false, nil
	}
	if !unavailable(err) {
		return nil, false, err
	}
	c.fallback("empresas", err)
	empresas, err = c.mirror.Empresas()
	return empresas, true, err
}

// Movimentacoes lists stock movements, of produtoID when it is positive.
func (c *Client) Movimentacoes(ctx context.Context, produtoID int64) ([]estoque.Movimentacao, bool, error) {
	path := "/estoque/movimentacoes"
	if produtoID > 0 {
		path += "?produto_id=" + strconv.FormatInt(produtoID, 10)
	}
	var movs []estoque.Movimentacao
	err := c.call(ctx, http.MethodGet, path, nil, &movs)
	if err == nil {
		if err := c.mirror.SetMovimentacoes(produtoID, movs); err != nil {
			c.log.WithError(err).Warn("refresh movimentacao mirror")
		}
		return movs, false, nil
	}
	if !unavailable(err) {
		return nil, false, err
	}
	c.fallback("movimentacoes", err)
	movs, err = c.mirror.Movimentacoes(produtoID)
	return movs, true, err
}

// Pedidos lists orders matching filter. Only an unfiltered listing replaces
// the mirrored orders.
func (c *Client) Pedidos(ctx context.Context, filter pedido.Filter) ([]pedido.Pedido, bool, error) {
	q := url.Values{}
	if filter.Tipo != "" {
		q.Set("tipo", string(filter.Tipo))
	}
	if filter.Status != "" {
		q.Set("status", string(filter.Status))
	}
	if filter.MesaID > 0 {
		q.Set("mesa_id", strconv.FormatInt(filter.MesaID, 10))
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}
	path := "/pedidos"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var pedidos []pedido.Pedido
	err := c.call(ctx, http.MethodGet, path, nil, &pedidos)
	if err == nil {
		if len(q) == 0 {
			if err := c.mirror.SetPedidosLocais(pedidos); err != nil {
				c.log.WithError(err).Warn("refresh pedido mirror")
			}
		}
		return pedidos, false, nil
	}
	if !unavailable(err) {
		return nil, false, err
	}
	c.fallback("pedidos", err)
	all, err := c.mirror.PedidosLocais()
	if err != nil {
		return nil, true, err
	}
	return filterPedidos(all, filter), true, nil
}

func filterPedidos(all []pedido.Pedido, f pedido.Filter) []pedido.Pedido {
	out := make([]pedido.Pedido, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		p := all[i]
		if f.Tipo != "" && p.Tipo != f.Tipo {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.MesaID > 0 && (p.MesaID == nil || *p.MesaID != f.MesaID) {
			continue
		}
		if !f.Since.IsZero() && p.CreatedAt.Before(f.Since) {
			continue
		}
		out = append(out, p)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out
}

// Dashboard returns the operator figures, computed from the mirror when the
// API is down.
func (c *Client) Dashboard(ctx context.Context) (dashboard.Metrics, bool, error) {
	var m dashboard.Metrics
	err := c.call(ctx, http.MethodGet, "/dashboard/metrics", nil, &m)
	if err == nil {
		return m, false, nil
	}
	if !unavailable(err) {
		return dashboard.Metrics{}, false, err
	}
	c.fallback("dashboard", err)
	m, err = c.LocalDashboard(c.now())
	return m, true, err
}

// LocalDashboard aggregates the mirrored mesas, produtos and pedidos as of now.
func (c *Client) LocalDashboard(now time.Time) (dashboard.Metrics, error) {
	mesas, err := c.mirror.Mesas()
	if err != nil {
		return dashboard.Metrics{}, err
	}
	produtos, err := c.mirror.Produtos()
	if err != nil {
		return dashboard.Metrics{}, err
	}
	pedidos, err := c.mirror.PedidosLocais()
	if err != nil {
		return dashboard.Metrics{}, err
	}
	return dashboard.Compute(now, c.loc, mesas, len(produtos), pedidos), nil
}

// MesaEvents returns events newer than since (Unix ms) produced by other
// users.
func (c *Client) MesaEvents(ctx context.Context, since int64) ([]mesa.Event, bool, error) {
	path := fmt.Sprintf("/mesas/events?since=%d&exclude_user=%d", since, c.userID)
	var events []mesa.Event
	err := c.call(ctx, http.MethodGet, path, nil, &events)
	if err == nil {
		if err := c.mirror.AppendMesaEvents(events...); err != nil {
			c.log.WithError(err).Warn("record mesa events")
		}
		return events, false, nil
	}
	if !unavailable(err) {
		return nil, false, err
	}
	events, err = c.mirror.MesaEvents(since, c.userID)
	return events, true, err
}
