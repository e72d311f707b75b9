package httpapi

import (
	"context"
	stderrors "errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	app "github.com/happy-hops/choperia/internal/app"
	"github.com/happy-hops/choperia/internal/app/domain"
	"github.com/happy-hops/choperia/internal/app/metrics"
	"github.com/happy-hops/choperia/internal/app/services/notifications"
	"github.com/happy-hops/choperia/internal/app/storage"
	"github.com/happy-hops/choperia/internal/errors"
	internalhttputil "github.com/happy-hops/choperia/internal/httputil"
	"github.com/happy-hops/choperia/internal/logging"
	"github.com/happy-hops/choperia/internal/middleware"
	"github.com/happy-hops/choperia/pkg/logger"
)

var errLog = logger.NewDefault("http")

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app     *app.Application
	log     *logger.Logger
	started time.Time
	audit   *auditLog
}

// Router is the complete HTTP surface with its middleware chain.
type Router struct {
	http.Handler
	limiter *middleware.RateLimiter
}

// StartCleanup drops idle rate limiters every interval until ctx is done.
func (r *Router) StartCleanup(ctx context.Context, interval time.Duration) {
	r.limiter.StartCleanup(ctx, interval)
}

// Options tunes the HTTP surface.
type Options struct {
	// AuditPath appends mutating requests as JSON lines when set.
	AuditPath string
}

// NewHandler returns the REST API. Paths accept an optional trailing slash.
func NewHandler(application *app.Application, opts Options, log *logger.Logger) (*Router, error) {
	if log == nil {
		log = logger.NewDefault("http")
	}
	var sink auditSink
	if opts.AuditPath != "" {
		fileSink, err := newFileAuditSink(opts.AuditPath)
		if err != nil {
			return nil, err
		}
		sink = fileSink
	}
	h := &handler{
		app:     application,
		log:     log,
		started: time.Now(),
		audit:   newAuditLog(500, sink),
	}
	cfg := application.Config()

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, req, errors.NotFound("Recurso"))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		internalhttputil.WriteErrorResponse(w, req, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Método não permitido", nil)
	})

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst, log)
	r.Use(
		middleware.MetricsMiddleware(metrics.HTTP{}),
		middleware.NewAuthMiddleware(application.Auth, log).Handler,
		limiter.Handler,
		h.audit.middleware,
	)

	h.routes(r, cfg.Origins(), cfg.MercadoPago.WebhookSecret)

	var root http.Handler = stripTrailingSlash(r)
	root = middleware.LoggingMiddleware(log)(root)
	root = middleware.NewCORSMiddleware(cfg.Origins()).Handler(root)
	return &Router{Handler: root, limiter: limiter}, nil
}

func (h *handler) routes(r *mux.Router, origins []string, webhookSecret string) {
	get, post, patch, del := http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete

	r.Handle("/metrics", metrics.Handler()).Methods(get)
	r.HandleFunc("/ping", h.ping).Methods(get)
	r.HandleFunc("/health", h.ping).Methods(get)
	r.HandleFunc("/health/details", h.healthDetails).Methods(get)

	r.HandleFunc("/users", h.createUser).Methods(post)
	r.HandleFunc("/users/{username}", h.getUser).Methods(get)
	r.HandleFunc("/users/{username}", h.deleteUser).Methods(del)

	r.HandleFunc("/auth/login", h.login).Methods(post)
	r.HandleFunc("/auth/register", h.register).Methods(post)
	r.HandleFunc("/auth/logout", h.logout).Methods(post)
	r.HandleFunc("/auth", h.authRoot).Methods(get)
	r.Handle("/auth/me", middleware.RequireUser(http.HandlerFunc(h.me))).Methods(get)

	r.HandleFunc("/categorias", h.listCategorias).Methods(get)
	r.HandleFunc("/categorias", h.createCategoria).Methods(post)
	r.HandleFunc("/empresas", h.listEmpresas).Methods(get)
	r.HandleFunc("/empresas", h.createEmpresa).Methods(post)
	r.HandleFunc("/empresas/{id:[0-9]+}", h.getEmpresa).Methods(get)
	r.HandleFunc("/empresas/{id:[0-9]+}/status", h.setEmpresaStatus).Methods(patch)
	r.HandleFunc("/empresas/{id:[0-9]+}/notas", h.listNotas).Methods(get)
	r.HandleFunc("/empresas/{id:[0-9]+}/notas", h.createNota).Methods(post)
	r.HandleFunc("/produtos", h.listProdutos).Methods(get)
	r.HandleFunc("/produtos", h.createProduto).Methods(post)
	r.HandleFunc("/produtos/codigo/{codigo}", h.getProdutoByCodigo).Methods(get)
	r.HandleFunc("/produtos/{id:[0-9]+}", h.getProduto).Methods(get)
	r.HandleFunc("/produtos/{id:[0-9]+}", h.updateProduto).Methods(patch)

	r.HandleFunc("/mesas/events", h.mesaEvents).Methods(get)
	r.Handle("/ws/mesas", notifications.NewStreamHandler(h.app.Events, originChecker(origins))).Methods(get)
	r.HandleFunc("/mesas", h.listMesas).Methods(get)
	r.HandleFunc("/mesas", h.createMesa).Methods(post)
	r.HandleFunc("/mesas/slug/{slug}", h.getMesaBySlug).Methods(get)
	r.HandleFunc("/mesas/{id:[0-9]+}", h.getMesa).Methods(get)
	r.HandleFunc("/mesas/{id:[0-9]+}", h.deleteMesa).Methods(del)
	r.HandleFunc("/mesas/{id:[0-9]+}/status", h.updateMesaStatus).Methods(patch)
	r.Handle("/mesas/{id:[0-9]+}/transferir", middleware.RequireUser(http.HandlerFunc(h.transferMesa))).Methods(post)
	r.HandleFunc("/mesas/{id:[0-9]+}/itens", h.addMesaItem).Methods(post)
	r.HandleFunc("/mesas/{id:[0-9]+}/itens/{item_id:[0-9]+}", h.removeMesaItem).Methods(del)
	r.HandleFunc("/mesas/{id:[0-9]+}/pagamento", h.payMesa).Methods(post)

	r.HandleFunc("/pedidos", h.listPedidos).Methods(get)
	r.HandleFunc("/pedidos", h.createPedido).Methods(post)
	r.HandleFunc("/pedidos/{id:[0-9]+}", h.getPedido).Methods(get)
	r.HandleFunc("/pedidos/{id:[0-9]+}/status", h.updatePedidoStatus).Methods(patch)
	r.HandleFunc("/pedidos/{id:[0-9]+}/cancelar", h.cancelMesaPedido).Methods(post)

	r.HandleFunc("/estoque/movimentacoes", h.listMovimentacoes).Methods(get)
	r.HandleFunc("/estoque/movimentacoes", h.createMovimentacao).Methods(post)
	r.HandleFunc("/estoque/reservas", h.listReservas).Methods(get)
	r.HandleFunc("/estoque/reservas", h.createReserva).Methods(post)
	r.HandleFunc("/estoque/reservas/{id:[0-9]+}", h.releaseReserva).Methods(del)
	r.HandleFunc("/estoque/{id:[0-9]+}/disponivel", h.disponivel).Methods(get)

	r.HandleFunc("/favoritos", h.listFavoritos).Methods(get)
	r.HandleFunc("/favoritos", h.addFavorito).Methods(post)
	r.HandleFunc("/favoritos/{id:[0-9]+}", h.removeFavorito).Methods(del)
	r.HandleFunc("/avaliacoes", h.avaliar).Methods(post)
	r.HandleFunc("/avaliacoes/{id:[0-9]+}", h.listAvaliacoes).Methods(get)
	r.HandleFunc("/avaliacoes/{id:[0-9]+}", h.removeAvaliacao).Methods(del)
	r.HandleFunc("/cupons", h.createCupom).Methods(post)
	r.HandleFunc("/cupons/{codigo}/aplicar", h.applyCupom).Methods(post)

	r.HandleFunc("/carrinho", h.getCarrinho).Methods(get)
	r.HandleFunc("/carrinho/items", h.addCarrinhoItem).Methods(post)
	r.HandleFunc("/carrinho/items/{id:[0-9]+}", h.updateCarrinhoItem).Methods(patch)
	r.HandleFunc("/carrinho/items/{id:[0-9]+}", h.removeCarrinhoItem).Methods(del)
	r.HandleFunc("/carrinho/clear", h.clearCarrinho).Methods(post)
	r.HandleFunc("/carrinho/checkout", h.checkout).Methods(post)

	r.HandleFunc("/api/mercadopago/create", h.createPreference).Methods(post)
	webhook := middleware.NewWebhookSignature(webhookSecret, 5*time.Minute, h.log)
	r.Handle("/webhooks/mercadopago", webhook.Handler(http.HandlerFunc(h.mercadoPagoWebhook))).Methods(post)

	r.HandleFunc("/dashboard/metrics", h.dashboardMetrics).Methods(get)
	r.Handle("/admin/audit", middleware.RequireUser(http.HandlerFunc(h.listAudit))).Methods(get)
}

// stripTrailingSlash routes "/mesas/" like "/mesas".
func stripTrailingSlash(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(r.URL.Path) > 1 && strings.HasSuffix(r.URL.Path, "/") {
			r.URL.Path = strings.TrimRight(r.URL.Path, "/")
			if r.URL.Path == "" {
				r.URL.Path = "/"
			}
			r.URL.RawPath = ""
		}
		next.ServeHTTP(w, r)
	})
}

func originChecker(origins []string) func(*http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed["*"] || allowed[origin]
	}
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.BadRequest("id inválido").WithDetails("param", name)
	}
	return id, nil
}

func queryInt(r *http.Request, name string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(r.URL.Query().Get(name)), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// actingUserID resolves who performs an operation: the authenticated
// caller, then user_id in the payload or query, then the fallback user.
func actingUserID(r *http.Request, p payload) int64 {
	if u, ok := middleware.CurrentUser(r.Context()); ok {
		return u.ID
	}
	if id, ok := p.Int("user_id", "userId", "usuario_id"); ok && id > 0 {
		return id
	}
	if id := queryInt(r, "user_id"); id > 0 {
		return id
	}
	return domain.FallbackUserID
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	internalhttputil.WriteJSON(w, status, data)
}

// writeError maps service and storage errors to their HTTP status. Anything
// unclassified is logged and reported as a 500 without internals.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if svcErr := errors.GetServiceError(err); svcErr != nil {
		internalhttputil.WriteErrorResponse(w, r, svcErr.HTTPStatus, string(svcErr.Code), svcErr.Message, svcErr.Details)
		return
	}
	switch {
	case stderrors.Is(err, storage.ErrNotFound):
		internalhttputil.WriteErrorResponse(w, r, http.StatusNotFound, string(errors.CodeNotFound), "Não encontrado", nil)
	case stderrors.Is(err, storage.ErrConflict):
		internalhttputil.WriteErrorResponse(w, r, http.StatusConflict, string(errors.CodeConflict), "Registro duplicado", nil)
	case stderrors.Is(err, context.DeadlineExceeded):
		internalhttputil.WriteErrorResponse(w, r, http.StatusGatewayTimeout, string(errors.CodeUnavailable), "Tempo esgotado", nil)
	default:
		logging.FromContext(r.Context(), errLog).WithError(err).Error("unhandled error")
		internalhttputil.WriteErrorResponse(w, r, http.StatusInternalServerError, string(errors.CodeInternalError), "Erro interno do servidor", nil)
	}
}
