package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                   "/",
		"/":                  "/",
		"/mesas/12/itens":    "/mesas",
		"/mesas/{id}/itens":  "/mesas/{id}/itens",
		"/dashboard/metrics": "/dashboard",
	}
	for in, want := range cases {
		if got := canonicalPath(in); got != want {
			t.Errorf("canonicalPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHandlerExposesDomainCounters(t *testing.T) {
	RecordPedidoCreated("fisica")
	RecordPagamento("PIX", 42.5)
	RecordMovimentacao("saida", "venda_fisica")
	RecordReservasExpired(2)
	RecordMesaEvent("occupied")
	RecordDashboardRefresh(3*time.Millisecond, true)
	HTTP{}.ObserveHTTP("get", "/mesas/{id}", "200", time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()

	for _, name := range []string{
		"choperia_pedidos_created_total",
		"choperia_pagamentos_confirmed_total{metodo=\"pix\"}",
		"choperia_estoque_movements_total",
		"choperia_estoque_reservas_expired_total",
		"choperia_mesas_events_total",
		"choperia_http_requests_total",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}
