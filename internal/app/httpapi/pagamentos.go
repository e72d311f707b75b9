package httpapi

import (
	"net/http"

	pagamentossvc "github.com/happy-hops/choperia/internal/app/services/pagamentos"
	internalhttputil "github.com/happy-hops/choperia/internal/httputil"
)

func (h *handler) createPreference(w http.ResponseWriter, r *http.Request) {
	p, err := readPayload(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req := pagamentossvc.PreferenceRequest{
		BackURLs: pagamentossvc.BackURLs{
			Success: p.String("back_urls.success"),
			Failure: p.String("back_urls.failure"),
			Pending: p.String("back_urls.pending"),
		},
		AutoReturn:        p.String("auto_return"),
		ExternalReference: p.String("external_reference", "pedido_id"),
	}
	for _, it := range p.Array("items") {
		qty, _ := it.Int("quantity", "quantidade")
		price, _ := it.Float("unit_price", "preco", "venda")
		req.Items = append(req.Items, pagamentossvc.PreferenceItem{
			ID:         it.String("id", "produto_id"),
			Title:      it.String("title", "nome"),
			Quantity:   int(qty),
			CurrencyID: it.String("currency_id"),
			UnitPrice:  price,
		})
	}
	pref, err := h.app.Pagamentos.CreatePreference(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pref)
}

// mercadoPagoWebhook always answers 200 so Mercado Pago does not retry
// payloads that will never parse.
func (h *handler) mercadoPagoWebhook(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	body, err := internalhttputil.ReadAllStrict(r.Body, maxBodyBytes)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "error", "message": err.Error()})
		return
	}
	n, err := h.app.Pagamentos.HandleWebhook(r.Context(), body)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "error", "message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "notification": n})
}

func (h *handler) dashboardMetrics(w http.ResponseWriter, r *http.Request) {
	var (
		m   interface{}
		err error
	)
	if r.URL.Query().Get("refresh") == "true" {
		m, err = h.app.Dashboard.Refresh(r.Context())
	} else {
		m, err = h.app.Dashboard.Metrics(r.Context())
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}
