package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "choperia",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "choperia",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "choperia",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	pedidosCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "choperia",
			Subsystem: "pedidos",
			Name:      "created_total",
			Help:      "Total number of pedidos created.",
		},
		[]string{"tipo"},
	)

	pagamentosConfirmed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "choperia",
			Subsystem: "pagamentos",
			Name:      "confirmed_total",
			Help:      "Total number of confirmed pagamentos.",
		},
		[]string{"metodo"},
	)

	pagamentoValor = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "choperia",
			Subsystem: "pagamentos",
			Name:      "value_total",
			Help:      "Sum of confirmed pagamento values.",
		},
		[]string{"metodo"},
	)

	estoqueMovements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "choperia",
			Subsystem: "estoque",
			Name:      "movements_total",
			Help:      "Total number of stock movements.",
		},
		[]string{"tipo", "origem"},
	)

	reservasExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "choperia",
			Subsystem: "estoque",
			Name:      "reservas_expired_total",
			Help:      "Total number of stock reservations expired.",
		},
	)

	mesaEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "choperia",
			Subsystem: "mesas",
			Name:      "events_total",
			Help:      "Total number of mesa events published.",
		},
		[]string{"type"},
	)

	dashboardRefresh = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "choperia",
			Subsystem: "dashboard",
			Name:      "refresh_duration_seconds",
			Help:      "Duration of dashboard aggregations.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"success"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		pedidosCreated,
		pagamentosConfirmed,
		pagamentoValor,
		estoqueMovements,
		reservasExpired,
		mesaEvents,
		dashboardRefresh,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// HTTP adapts the HTTP collectors to the request metrics middleware.
type HTTP struct{}

func (HTTP) InFlight(delta float64) { httpInFlight.Add(delta) }

func (HTTP) ObserveHTTP(method, path, status string, duration time.Duration) {
	method = strings.ToUpper(method)
	path = canonicalPath(path)
	httpRequests.WithLabelValues(method, path, status).Inc()
	httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordPedidoCreated counts a new pedido.
func RecordPedidoCreated(tipo string) {
	pedidosCreated.WithLabelValues(labelOr(tipo)).Inc()
}

// RecordPagamento counts a confirmed pagamento and its value.
func RecordPagamento(metodo string, valor float64) {
	metodo = labelOr(strings.ToLower(metodo))
	pagamentosConfirmed.WithLabelValues(metodo).Inc()
	if valor > 0 {
		pagamentoValor.WithLabelValues(metodo).Add(valor)
	}
}

// RecordMovimentacao counts a stock movement.
func RecordMovimentacao(tipo, origem string) {
	estoqueMovements.WithLabelValues(labelOr(tipo), labelOr(origem)).Inc()
}

// RecordReservasExpired adds n expired reservations.
func RecordReservasExpired(n int) {
	if n > 0 {
		reservasExpired.Add(float64(n))
	}
}

// RecordMesaEvent counts a published mesa event.
func RecordMesaEvent(eventType string) {
	mesaEvents.WithLabelValues(labelOr(eventType)).Inc()
}

// RecordDashboardRefresh observes one dashboard aggregation.
func RecordDashboardRefresh(duration time.Duration, success bool) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	result := "false"
	if success {
		result = "true"
	}
	dashboardRefresh.WithLabelValues(result).Observe(duration.Seconds())
}

func labelOr(v string) string {
	if strings.TrimSpace(v) == "" {
		return "unknown"
	}
	return v
}

// canonicalPath collapses raw paths that did not match a route so ids do not
// explode label cardinality. Route templates pass through unchanged.
func canonicalPath(raw string) string {
	if strings.Contains(raw, "{") {
		return raw
	}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	return "/" + parts[0]
}
