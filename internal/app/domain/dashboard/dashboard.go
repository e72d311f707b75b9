// Package dashboard computes the headline figures of the operator dashboard.
package dashboard

import (
	"time"

	"github.com/happy-hops/choperia/internal/app/domain"
	"github.com/happy-hops/choperia/internal/app/domain/mesa"
	"github.com/happy-hops/choperia/internal/app/domain/pedido"
)

// DateLayout is the calendar-day key pedidos are bucketed by.
const DateLayout = "2006-01-02"

// Metrics are the dashboard figures.
type Metrics struct {
	MesasAtivas      int       `json:"mesasAtivas"`
	ProdutosCount    int       `json:"produtosCount"`
	PedidosHoje      int       `json:"pedidosHoje"`
	FaturamentoHoje  float64   `json:"faturamentoHoje"`
	PedidosOntem     int       `json:"pedidosOntem"`
	FaturamentoOntem float64   `json:"faturamentoOntem"`
	GeneratedAt      time.Time `json:"generatedAt"`
}

// Day is the pedido count and revenue of one calendar day.
type Day struct {
	Date        string  `json:"date"`
	Pedidos     int     `json:"pedidos"`
	Faturamento float64 `json:"faturamento"`
}

// Compute aggregates the figures as of now in loc. Cancelled pedidos are
// left out.
func Compute(now time.Time, loc *time.Location, mesas []mesa.View, produtos int, pedidos []pedido.Pedido) Metrics {
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)
	m := Metrics{ProdutosCount: produtos, GeneratedAt: now}
	for _, v := range mesas {
		if v.Active() {
			m.MesasAtivas++
		}
	}
	today := Totals(now, loc, pedidos)
	yesterday := Totals(now.AddDate(0, 0, -1), loc, pedidos)
	m.PedidosHoje, m.FaturamentoHoje = today.Pedidos, today.Faturamento
	m.PedidosOntem, m.FaturamentoOntem = yesterday.Pedidos, yesterday.Faturamento
	return m
}

// Totals sums the pedidos created on day's calendar date in loc.
func Totals(day time.Time, loc *time.Location, pedidos []pedido.Pedido) Day {
	if loc == nil {
		loc = time.UTC
	}
	key := day.In(loc).Format(DateLayout)
	d := Day{Date: key}
	for _, p := range pedidos {
		if p.Status == pedido.StatusCancelado {
			continue
		}
		if p.CreatedAt.In(loc).Format(DateLayout) != key {
			continue
		}
		d.Pedidos++
		d.Faturamento += p.Total
	}
	d.Faturamento = domain.RoundMoney(d.Faturamento)
	return d
}

// StartOfDay returns midnight of t's date in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
