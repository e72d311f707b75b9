package dashboard

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/happy-hops/choperia/internal/app/domain/dashboard"
	"github.com/happy-hops/choperia/internal/app/domain/mesa"
	"github.com/happy-hops/choperia/internal/app/domain/pedido"
	"github.com/happy-hops/choperia/internal/app/metrics"
	"github.com/happy-hops/choperia/internal/app/storage"
	"github.com/happy-hops/choperia/pkg/logger"
)

// DefaultTTL is how long computed metrics are served from cache.
const DefaultTTL = 15 * time.Second

// MesaLister lists mesas together with their pending pedidos.
type MesaLister interface {
	List(ctx context.Context) ([]mesa.View, error)
}

// ProdutoCounter counts catalogue products.
type ProdutoCounter interface {
	CountProdutos(ctx context.Context) (int, error)
}

// Service computes and caches dashboard metrics.
type Service struct {
	mesas    MesaLister
	produtos ProdutoCounter
	pedidos  storage.PedidoStore
	cache    Cache
	loc      *time.Location
	ttl      time.Duration
	now      func() time.Time
	log      *logger.Logger
}

// New constructs a dashboard service. A nil cache keeps results in process.
func New(mesas MesaLister, produtos ProdutoCounter, pedidos storage.PedidoStore, cache Cache, loc *time.Location, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("dashboard")
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		mesas:    mesas,
		produtos: produtos,
		pedidos:  pedidos,
		cache:    cache,
		loc:      loc,
		ttl:      DefaultTTL,
		now:      time.Now,
		log:      log,
	}
}

// WithTTL overrides the cache lifetime.
func (s *Service) WithTTL(ttl time.Duration) *Service {
	if ttl > 0 {
		s.ttl = ttl
	}
	return s
}

// WithTimeFunc overrides the clock.
func (s *Service) WithTimeFunc(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Metrics returns cached metrics, computing them when the cache is cold.
func (s *Service) Metrics(ctx context.Context) (dashboard.Metrics, error) {
	if m, ok, err := s.cache.Get(ctx); err != nil {
		s.log.WithError(err).Warn("dashboard cache read failed")
	} else if ok {
		return m, nil
	}
	return s.Refresh(ctx)
}

// Refresh recomputes the metrics and stores them in the cache.
func (s *Service) Refresh(ctx context.Context) (dashboard.Metrics, error) {
	start := time.Now()
	m, err := s.compute(ctx)
	metrics.RecordDashboardRefresh(time.Since(start), err == nil)
	if err != nil {
		return dashboard.Metrics{}, err
	}
	if err := s.cache.Set(ctx, m, s.ttl); err != nil {
		s.log.WithError(err).Warn("dashboard cache write failed")
	}
	return m, nil
}

func (s *Service) compute(ctx context.Context) (dashboard.Metrics, error) {
	now := s.now()
	var (
		views    []mesa.View
		produtos int
		pedidos  []pedido.Pedido
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		views, err = s.mesas.List(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		produtos, err = s.produtos.CountProdutos(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		pedidos, err = s.pedidosSince(gctx, now.AddDate(0, 0, -1))
		return err
	})
	if err := g.Wait(); err != nil {
		return dashboard.Metrics{}, err
	}
	return dashboard.Compute(now, s.loc, views, produtos, pedidos), nil
}

func (s *Service) pedidosSince(ctx context.Context, day time.Time) ([]pedido.Pedido, error) {
	return s.pedidos.ListPedidos(ctx, pedido.Filter{Since: dashboard.StartOfDay(day, s.loc)})
}

// DayTotals returns the pedido count and revenue of day's calendar date.
func (s *Service) DayTotals(ctx context.Context, day time.Time) (dashboard.Day, error) {
	pedidos, err := s.pedidosSince(ctx, day)
	if err != nil {
		return dashboard.Day{}, err
	}
	return dashboard.Totals(day, s.loc, pedidos), nil
}
