package pagamentos

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/happy-hops/choperia/internal/app/domain"
	"github.com/happy-hops/choperia/internal/app/domain/pagamento"
	"github.com/happy-hops/choperia/internal/app/metrics"
	"github.com/happy-hops/choperia/internal/app/storage"
	"github.com/happy-hops/choperia/internal/errors"
	"github.com/happy-hops/choperia/internal/httputil"
	"github.com/happy-hops/choperia/pkg/logger"
)

const (
	preferencesPath = "/checkout/preferences"
	paymentsPath    = "/v1/payments/"
	maxResponseSize = 1 << 20
)

// Config configures the Mercado Pago integration.
type Config struct {
	AccessToken  string
	BaseURL      string
	ForceSandbox bool
	Timeout      time.Duration
}

// Service creates Mercado Pago checkout preferences and reconciles payment
// notifications with pedidos.
type Service struct {
	client     *httputil.ServiceClient
	sandbox    bool
	pedidos    storage.PedidoStore
	pagamentos storage.PagamentoStore
	log        *logger.Logger
}

// New constructs the service. Without an access token preference creation
// fails and webhooks are only logged.
func New(cfg Config, pedidos storage.PedidoStore, pagamentos storage.PagamentoStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("pagamentos")
	}
	s := &Service{sandbox: cfg.ForceSandbox, pedidos: pedidos, pagamentos: pagamentos, log: log}
	if token := strings.TrimSpace(cfg.AccessToken); token != "" {
		base := cfg.BaseURL
		if base == "" {
			base = "https://api.mercadopago.com"
		}
		s.client = httputil.NewServiceClient(httputil.ServiceClientConfig{
			BaseURL:     base,
			BearerToken: token,
			Timeout:     cfg.Timeout,
		})
	}
	return s
}

// Configured reports whether an access token is set.
func (s *Service) Configured() bool { return s.client != nil }

// PreferenceItem is a line of a checkout preference.
type PreferenceItem struct {
	ID         string  `json:"id,omitempty"`
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	CurrencyID string  `json:"currency_id"`
	UnitPrice  float64 `json:"unit_price"`
}

// BackURLs are where the buyer returns after checkout.
type BackURLs struct {
	Success string `json:"success,omitempty"`
	Failure string `json:"failure,omitempty"`
	Pending string `json:"pending,omitempty"`
}

// PreferenceRequest is the body sent to the preferences API.
type PreferenceRequest struct {
	Items             []PreferenceItem `json:"items"`
	BackURLs          BackURLs         `json:"back_urls"`
	AutoReturn        string           `json:"auto_return,omitempty"`
	ExternalReference string           `json:"external_reference,omitempty"`
}

// Preference holds the checkout links of a created preference.
type Preference struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

// CreatePreference registers a checkout preference and returns its links.
func (s *Service) CreatePreference(ctx context.Context, req PreferenceRequest) (Preference, error) {
	if s.client == nil {
		s.log.Error("mercado pago access token not configured")
		return Preference{}, errors.Internal("Mercado Pago não configurado no servidor", nil)
	}
	if len(req.Items) == 0 {
		return Preference{}, errors.BadRequest("items é obrigatório")
	}
	for i := range req.Items {
		if req.Items[i].Quantity <= 0 {
			req.Items[i].Quantity = 1
		}
		if req.Items[i].CurrencyID == "" {
			req.Items[i].CurrencyID = "BRL"
		}
		req.Items[i].UnitPrice = domain.RoundMoney(req.Items[i].UnitPrice)
	}
	if req.AutoReturn == "" && req.BackURLs.Success != "" {
		req.AutoReturn = "approved"
	}

	s.log.WithField("items", len(req.Items)).WithField("sandbox", s.sandbox).Info("creating mercado pago preference")
	resp, err := s.client.Post(ctx, preferencesPath, req)
	if err != nil {
		return Preference{}, errors.Unavailable("Mercado Pago indisponível", err)
	}
	var pref Preference
	if err := httputil.DecodeResponse(resp, &pref); err != nil {
		var statusErr *httputil.StatusError
		if stderrors.As(err, &statusErr) {
			return Preference{}, errors.BadRequest("Erro ao criar preferência no Mercado Pago").
				WithDetails("status", statusErr.StatusCode).
				WithDetails("response", statusErr.Body)
		}
		return Preference{}, err
	}
	s.log.WithField("preference_id", pref.ID).Info("mercado pago preference created")
	return pref, nil
}

// Notification is the part of a webhook payload the service acts on.
type Notification struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Action string `json:"action"`
	DataID string `json:"data_id"`
	// PagamentoID is set when the notification settled a pedido.
	PagamentoID int64 `json:"pagamento_id,omitempty"`
}

// HandleWebhook parses a Mercado Pago notification. Approved payments whose
// external reference names a pedido are recorded as confirmed pagamentos.
func (s *Service) HandleWebhook(ctx context.Context, body []byte) (Notification, error) {
	if !gjson.ValidBytes(body) {
		return Notification{}, errors.BadRequest("payload inválido")
	}
	doc := gjson.ParseBytes(body)
	n := Notification{
		ID:     doc.Get("id").String(),
		Type:   firstString(doc, "type", "topic"),
		Action: doc.Get("action").String(),
		DataID: doc.Get("data.id").String(),
	}
	if n.DataID == "" && n.Type == "payment" {
		n.DataID = lastSegment(doc.Get("resource").String())
	}
	s.log.WithField("type", n.Type).
		WithField("action", n.Action).
		WithField("data_id", n.DataID).
		Info("mercado pago webhook received")

	if n.Type != "payment" || n.DataID == "" || s.client == nil {
		return n, nil
	}
	pagID, err := s.reconcile(ctx, n.DataID)
	if err != nil {
		s.log.WithError(err).WithField("payment_id", n.DataID).Warn("payment reconciliation failed")
		return n, nil
	}
	n.PagamentoID = pagID
	return n, nil
}

// reconcile looks the payment up and records it against its pedido when
// approved. It returns the pagamento id, or zero when nothing was recorded.
func (s *Service) reconcile(ctx context.Context, paymentID string) (int64, error) {
	resp, err := s.client.Get(ctx, paymentsPath+paymentID)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	raw, _, err := httputil.ReadAllWithLimit(resp.Body, maxResponseSize)
	if err != nil {
		return 0, err
	}
	if resp.StatusCode != http.StatusOK {
		return 0, &httputil.StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	payment := gjson.ParseBytes(raw)
	if payment.Get("status").String() != "approved" {
		return 0, nil
	}
	pedidoID, err := strconv.ParseInt(strings.TrimSpace(payment.Get("external_reference").String()), 10, 64)
	if err != nil || pedidoID <= 0 {
		return 0, nil
	}
	if _, err := s.pedidos.GetPedido(ctx, pedidoID); err != nil {
		return 0, fmt.Errorf("pedido %d: %w", pedidoID, err)
	}
	if existing, err := s.pagamentos.GetPagamentoByPedido(ctx, pedidoID); err == nil {
		return existing.ID, nil
	} else if !stderrors.Is(err, storage.ErrNotFound) {
		return 0, err
	}

	valor := domain.RoundMoney(payment.Get("transaction_amount").Float())
	metodo := firstString(payment, "payment_method_id", "payment_type_id")
	if metodo == "" {
		metodo = "mercadopago"
	}
	pag, err := s.pagamentos.CreatePagamento(ctx, pagamento.Pagamento{
		PedidoID:      pedidoID,
		Metodo:        metodo,
		ValorTotal:    valor,
		ValorRecebido: valor,
		Status:        pagamento.StatusConfirmado,
		Observacoes:   "Mercado Pago " + paymentID,
	})
	if err != nil {
		return 0, err
	}
	metrics.RecordPagamento(pag.Metodo, pag.ValorTotal)
	s.log.WithField("pedido_id", pedidoID).WithField("pagamento_id", pag.ID).Info("mercado pago payment recorded")
	return pag.ID, nil
}

func firstString(doc gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := doc.Get(p); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

func lastSegment(resource string) string {
	resource = strings.TrimRight(resource, "/")
	if i := strings.LastIndex(resource, "/"); i >= 0 {
		return resource[i+1:]
	}
	return resource
}
