package app

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/happy-hops/choperia/internal/app/services/auth"
	carrinhosvc "github.com/happy-hops/choperia/internal/app/services/carrinho"
	catalogsvc "github.com/happy-hops/choperia/internal/app/services/catalog"
	dashboardsvc "github.com/happy-hops/choperia/internal/app/services/dashboard"
	estoquesvc "github.com/happy-hops/choperia/internal/app/services/estoque"
	lojasvc "github.com/happy-hops/choperia/internal/app/services/loja"
	mesassvc "github.com/happy-hops/choperia/internal/app/services/mesas"
	"github.com/happy-hops/choperia/internal/app/services/notifications"
	pagamentossvc "github.com/happy-hops/choperia/internal/app/services/pagamentos"
	pedidossvc "github.com/happy-hops/choperia/internal/app/services/pedidos"
	"github.com/happy-hops/choperia/internal/app/storage"
	"github.com/happy-hops/choperia/internal/app/storage/memory"
	"github.com/happy-hops/choperia/internal/app/system"
	"github.com/happy-hops/choperia/internal/config"
	"github.com/happy-hops/choperia/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Users      storage.UserStore
	Catalog    storage.CatalogStore
	Mesas      storage.MesaStore
	Pedidos    storage.PedidoStore
	Estoque    storage.EstoqueStore
	Loja       storage.LojaStore
	Carrinho   storage.CarrinhoStore
	Pagamentos storage.PagamentoStore
	Tx         storage.Transactor
}

// Pinger is implemented by stores that can report their connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger
	cfg     config.Config
	redis   *redis.Client
	probes  map[string]Pinger

	Auth       *auth.Service
	Catalog    *catalogsvc.Service
	Mesas      *mesassvc.Service
	Pedidos    *pedidossvc.Service
	Estoque    *estoquesvc.Service
	Loja       *lojasvc.Service
	Carrinho   *carrinhosvc.Service
	Pagamentos *pagamentossvc.Service
	Events     *notifications.Hub
	Dashboard  *dashboardsvc.Service
}

// New builds a fully initialised application. rdb is optional; when set the
// mesa event bus and the dashboard cache are shared through Redis.
func New(stores Stores, cfg config.Config, rdb *redis.Client, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Users == nil {
		stores.Users = mem
	}
	if stores.Catalog == nil {
		stores.Catalog = mem
	}
	if stores.Mesas == nil {
		stores.Mesas = mem
	}
	if stores.Pedidos == nil {
		stores.Pedidos = mem
	}
	if stores.Estoque == nil {
		stores.Estoque = mem
	}
	if stores.Loja == nil {
		stores.Loja = mem
	}
	if stores.Carrinho == nil {
		stores.Carrinho = mem
	}
	if stores.Pagamentos == nil {
		stores.Pagamentos = mem
	}
	if stores.Tx == nil {
		stores.Tx = mem
	}

	loc := cfg.Location()
	manager := system.NewManager()

	hub := notifications.New(notifications.Config{Redis: rdb}, stores.Users, log)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.TokenLifetime())
	authService := auth.New(stores.Users, tokens, log)
	catalogService := catalogsvc.New(stores.Catalog, log)
	estoqueService := estoquesvc.New(stores.Estoque, stores.Catalog, stores.Tx, log, cfg.Estoque.ReservaTimeout)
	pedidosService := pedidossvc.New(pedidossvc.Stores{
		Pedidos: stores.Pedidos,
		Mesas:   stores.Mesas,
		Catalog: stores.Catalog,
		Tx:      stores.Tx,
	}, estoqueService, hub, log)
	mesasService := mesassvc.New(mesassvc.Stores{
		Mesas:      stores.Mesas,
		Pedidos:    stores.Pedidos,
		Catalog:    stores.Catalog,
		Users:      stores.Users,
		Pagamentos: stores.Pagamentos,
		Tx:         stores.Tx,
	}, estoqueService, hub, log)
	lojaService := lojasvc.New(stores.Loja, catalogService, log)
	carrinhoService := carrinhosvc.New(stores.Carrinho, stores.Catalog, stores.Tx, estoqueService, pedidosService, lojaService, log)
	pagamentosService := pagamentossvc.New(pagamentossvc.Config{
		AccessToken:  cfg.MercadoPago.AccessToken,
		BaseURL:      cfg.MercadoPago.BaseURL,
		ForceSandbox: cfg.MercadoPago.ForceSandbox,
		Timeout:      15 * time.Second,
	}, stores.Pedidos, stores.Pagamentos, log)

	var cache dashboardsvc.Cache
	if rdb != nil {
		cache = dashboardsvc.NewRedisCache(rdb, "")
	}
	dashboardService := dashboardsvc.New(mesasService, catalogService, stores.Pedidos, cache, loc, log).
		WithTTL(cfg.Dashboard.RefreshInterval)

	scheduler := system.NewCronService("scheduler", loc, log)
	if err := estoqueService.ScheduleExpiry(scheduler, cfg.Estoque.ExpirySchedule); err != nil {
		return nil, fmt.Errorf("schedule reservation expiry: %w", err)
	}
	if err := dashboardService.ScheduleDailyReport(scheduler, cfg.Dashboard.ReportSchedule); err != nil {
		return nil, fmt.Errorf("schedule daily report: %w", err)
	}

	services := []system.Service{
		hub,
		scheduler,
		dashboardsvc.NewRefresher(dashboardService, cfg.Dashboard.RefreshInterval, log),
	}
	for _, svc := range services {
		if err := manager.Register(svc); err != nil {
			return nil, fmt.Errorf("register %s: %w", svc.Name(), err)
		}
	}

	if !pagamentosService.Configured() {
		log.Warn("MERCADO_PAGO_ACCESS_TOKEN not set; checkout preferences disabled")
	}

	probes := make(map[string]Pinger)
	if p, ok := stores.Pedidos.(Pinger); ok {
		probes["database"] = p
	}

	return &Application{
		manager:    manager,
		log:        log,
		cfg:        cfg,
		redis:      rdb,
		probes:     probes,
		Auth:       authService,
		Catalog:    catalogService,
		Mesas:      mesasService,
		Pedidos:    pedidosService,
		Estoque:    estoqueService,
		Loja:       lojaService,
		Carrinho:   carrinhoService,
		Pagamentos: pagamentosService,
		Events:     hub,
		Dashboard:  dashboardService,
	}, nil
}

// Config returns the configuration the application was built with.
func (a *Application) Config() config.Config { return a.cfg }

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Services lists the registered lifecycle services in start order.
func (a *Application) Services() []string {
	return a.manager.Names()
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}

// Health reports the status of the backing store and cache. Components that
// are not configured are omitted.
func (a *Application) Health(ctx context.Context) map[string]string {
	out := make(map[string]string, len(a.probes)+1)
	for name, p := range a.probes {
		out[name] = probeStatus(p.Ping(ctx))
	}
	if a.redis != nil {
		out["redis"] = probeStatus(a.redis.Ping(ctx).Err())
	}
	return out
}

func probeStatus(err error) string {
	if err != nil {
		return "error: " + err.Error()
	}
	return "ok"
}
