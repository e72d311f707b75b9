package dashboard

import (
	"testing"
	"time"

	"github.com/happy-hops/choperia/internal/app/domain/mesa"
	"github.com/happy-hops/choperia/internal/app/domain/pedido"
)

func TestCompute(t *testing.T) {
	loc := time.FixedZone("BRT", -3*3600)
	now := time.Date(2024, 3, 10, 1, 0, 0, 0, loc)
	// 02:30 UTC on the 10th is still the 9th in BRT.
	lateYesterday := time.Date(2024, 3, 10, 2, 30, 0, 0, time.UTC)

	mesas := []mesa.View{
		{Mesa: mesa.Mesa{Status: mesa.StatusLivre}},
		{Mesa: mesa.Mesa{Status: mesa.StatusOcupada}},
		{Mesa: mesa.Mesa{Status: mesa.StatusLivre}, Pedido: 4},
	}
	pedidos := []pedido.Pedido{
		{Total: 10.5, CreatedAt: now},
		{Total: 20, CreatedAt: now.Add(-30 * time.Minute), Status: pedido.StatusCancelado},
		{Total: 7.25, CreatedAt: lateYesterday},
		{Total: 3, CreatedAt: now.AddDate(0, 0, -1)},
		{Total: 99, CreatedAt: now.AddDate(0, 0, -2)},
	}

	m := Compute(now, loc, mesas, 12, pedidos)
	if m.MesasAtivas != 2 || m.ProdutosCount != 12 {
		t.Fatalf("unexpected counts %#v", m)
	}
	if m.PedidosHoje != 1 || m.FaturamentoHoje != 10.5 {
		t.Fatalf("unexpected today figures %#v", m)
	}
	if m.PedidosOntem != 2 || m.FaturamentoOntem != 10.25 {
		t.Fatalf("unexpected yesterday figures %#v", m)
	}
}

func TestStartOfDay(t *testing.T) {
	loc := time.FixedZone("BRT", -3*3600)
	got := StartOfDay(time.Date(2024, 3, 10, 2, 0, 0, 0, time.UTC), loc)
	if got.Day() != 9 || got.Hour() != 0 {
		t.Fatalf("unexpected start of day %v", got)
	}
}
