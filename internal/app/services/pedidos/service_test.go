package pedidos

import (
	"context"
	"sync"
	"testing"

	"github.com/happy-hops/choperia/internal/app/domain/catalog"
	"github.com/happy-hops/choperia/internal/app/domain/estoque"
	"github.com/happy-hops/choperia/internal/app/domain/mesa"
	"github.com/happy-hops/choperia/internal/app/domain/pedido"
	estoquesvc "github.com/happy-hops/choperia/internal/app/services/estoque"
	"github.com/happy-hops/choperia/internal/app/storage/memory"
	"github.com/happy-hops/choperia/internal/errors"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []mesa.Event
}

func (p *recordingPublisher) Publish(_ context.Context, evt mesa.Event) mesa.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return evt
}

func newService(t *testing.T) (*Service, *memory.Store, *recordingPublisher) {
	t.Helper()
	store := memory.New()
	pub := &recordingPublisher{}
	est := estoquesvc.New(store, store, store, nil, 0)
	svc := New(Stores{Pedidos: store, Mesas: store, Catalog: store, Tx: store}, est, pub, nil)
	return svc, store, pub
}

func TestService_CreateOnlinePedido(t *testing.T) {
	svc, store, _ := newService(t)
	ctx := context.Background()
	prod, _ := store.CreateProduto(ctx, catalog.Produto{Nome: "IPA", Codigo: "IPA", Slug: "Ipa", Venda: 20, Estoque: 10, Disponivel: true})

	custom := 18.0
	p, err := svc.Create(ctx, CreateInput{
		Desconto: 5,
		Itens: []ItemInput{
			{ProdutoID: prod.ID, Quantidade: 2},
			{ProdutoID: prod.ID, Quantidade: 1, PrecoUnitario: &custom},
			{ProdutoID: 404, Quantidade: 1},
		},
	}, 0)
	if err != nil {
		t.Fatalf("create pedido: %v", err)
	}
	if p.Tipo != pedido.TipoOnline || p.Numero != "01" || p.UserID != 1 {
		t.Fatalf("unexpected pedido header %#v", p)
	}
	if len(p.Itens) != 2 {
		t.Fatalf("unknown produto should be skipped, got %d items", len(p.Itens))
	}
	if p.Subtotal != 58 || p.Total != 53 {
		t.Fatalf("unexpected totals subtotal=%v total=%v", p.Subtotal, p.Total)
	}

	updated, _ := store.GetProduto(ctx, prod.ID)
	if updated.Estoque != 7 {
		t.Fatalf("online pedido should take stock, got %d", updated.Estoque)
	}

	next, _ := svc.NextNumero(ctx)
	if next != "02" {
		t.Fatalf("expected next numero 02, got %s", next)
	}

	if _, err := svc.Create(ctx, CreateInput{Numero: "01"}, 0); !errors.Is(err, errors.CodeConflict) {
		t.Fatalf("expected numero conflict, got %v", err)
	}
	if _, err := svc.Create(ctx, CreateInput{Tipo: "balcao"}, 0); !errors.Is(err, errors.CodeBadRequest) {
		t.Fatalf("expected invalid tipo, got %v", err)
	}
}

func TestService_CancelOnlineRestoresStock(t *testing.T) {
	svc, store, _ := newService(t)
	ctx := context.Background()
	prod, _ := store.CreateProduto(ctx, catalog.Produto{Nome: "Stout", Codigo: "STO", Slug: "Stout", Venda: 22, Estoque: 4})

	p, err := svc.Create(ctx, CreateInput{Tipo: pedido.TipoOnline, Itens: []ItemInput{{ProdutoID: prod.ID, Quantidade: 3}}}, 5)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, p.ID, pedido.StatusCancelado, 5); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	restored, _ := store.GetProduto(ctx, prod.ID)
	if restored.Estoque != 4 {
		t.Fatalf("expected stock restored to 4, got %d", restored.Estoque)
	}
	movs, _ := store.ListMovimentacoes(ctx, prod.ID)
	if len(movs) != 2 || movs[1].Origem != "cancelamento_pedido" {
		t.Fatalf("unexpected movements %#v", movs)
	}

	// Cancelling again does not restore twice.
	if _, err := svc.UpdateStatus(ctx, p.ID, pedido.StatusCancelado, 5); err != nil {
		t.Fatalf("cancel again: %v", err)
	}
	again, _ := store.GetProduto(ctx, prod.ID)
	if again.Estoque != 4 {
		t.Fatalf("expected stock to stay 4, got %d", again.Estoque)
	}
}

func TestService_UpdateStatusFollowsMesa(t *testing.T) {
	svc, store, pub := newService(t)
	ctx := context.Background()
	m, _ := store.CreateMesa(ctx, mesa.Mesa{Nome: "Mesa 3", Slug: "Mesa-03", Status: mesa.StatusOcupada})
	mesaID := m.ID

	p, err := svc.Create(ctx, CreateInput{MesaID: &mesaID}, 2)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.Tipo != pedido.TipoFisica {
		t.Fatalf("mesa pedido should default to fisica, got %s", p.Tipo)
	}

	if _, err := svc.UpdateStatus(ctx, p.ID, pedido.StatusPreparo, 2); err != nil {
		t.Fatalf("update status: %v", err)
	}
	got, _ := store.GetMesa(ctx, mesaID)
	if got.Status != mesa.StatusPreparando {
		t.Fatalf("expected mesa Preparando, got %s", got.Status)
	}

	if _, err := svc.UpdateStatus(ctx, p.ID, pedido.StatusCancelado, 2); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	got, _ = store.GetMesa(ctx, mesaID)
	if got.Status != mesa.StatusLivre || got.UsuarioResponsavelID != nil {
		t.Fatalf("expected mesa freed, got %#v", got)
	}

	if len(pub.events) != 2 || pub.events[0].Type != mesa.EventUpdated || pub.events[1].Type != mesa.EventFreed {
		t.Fatalf("unexpected events %#v", pub.events)
	}

	if _, err := svc.UpdateStatus(ctx, p.ID, "Perdido", 2); !errors.Is(err, errors.CodeBadRequest) {
		t.Fatalf("expected invalid status, got %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, 999, pedido.StatusPronto, 2); !errors.Is(err, errors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

// mesaPedido opens a fisica pedido on a new mesa holding qty units of a
// produto stocked with stock units.
func mesaPedido(t *testing.T, svc *Service, store *memory.Store, stock, qty int) (pedido.Pedido, catalog.Produto) {
	t.Helper()
	ctx := context.Background()
	m, _ := store.CreateMesa(ctx, mesa.Mesa{Nome: "Mesa 4", Slug: "Mesa-04", Status: mesa.StatusOcupada})
	mesaID := m.ID
	prod, _ := store.CreateProduto(ctx, catalog.Produto{Nome: "Pilsen", Codigo: "PIL", Slug: "Pilsen", Venda: 9.9, Estoque: stock})

	p, err := svc.Create(ctx, CreateInput{MesaID: &mesaID, Itens: []ItemInput{{ProdutoID: prod.ID, Quantidade: qty}}}, 2)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	pedidoID, itemID := p.ID, p.Itens[0].ID
	if _, err := svc.estoque.Reservar(ctx, estoquesvc.ReservaInput{
		ProdutoID: prod.ID, Quantidade: qty, MesaID: &mesaID, PedidoID: &pedidoID, ItemID: &itemID,
	}); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	return p, prod
}

func reservaStatus(t *testing.T, svc *Service, pedidoID int64) estoque.ReservaStatus {
	t.Helper()
	reservas, err := svc.estoque.ListReservas(context.Background(), estoque.ReservaFilter{PedidoID: pedidoID})
	if err != nil || len(reservas) != 1 {
		t.Fatalf("expected one reservation, got %v %#v", err, reservas)
	}
	return reservas[0].Status
}

func TestService_UpdateStatusSettlesReservations(t *testing.T) {
	svc, store, _ := newService(t)
	ctx := context.Background()
	p, prod := mesaPedido(t, svc, store, 5, 5)

	for _, status := range []pedido.Status{pedido.StatusPreparo, pedido.StatusPronto} {
		if _, err := svc.UpdateStatus(ctx, p.ID, status, 2); err != nil {
			t.Fatalf("move to %s: %v", status, err)
		}
		if got := reservaStatus(t, svc, p.ID); got != estoque.ReservaAtiva {
			t.Fatalf("%s should keep the reservation active, got %s", status, got)
		}
		if avail, _ := svc.estoque.Disponivel(ctx, prod.ID); avail != 0 {
			t.Fatalf("%s should keep stock held, got %d available", status, avail)
		}
	}

	if _, err := svc.UpdateStatus(ctx, p.ID, pedido.StatusEntregue, 2); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if got := reservaStatus(t, svc, p.ID); got != estoque.ReservaConfirmada {
		t.Fatalf("delivery should confirm the reservation, got %s", got)
	}
	sold, _ := store.GetProduto(ctx, prod.ID)
	if sold.Estoque != 0 {
		t.Fatalf("delivery should take stock out, got %d", sold.Estoque)
	}
	movs, _ := store.ListMovimentacoes(ctx, prod.ID)
	if len(movs) != 1 || movs[0].Tipo != estoque.TipoSaida || movs[0].Origem != estoque.OrigemVendaFisica {
		t.Fatalf("expected a venda_fisica saida, got %#v", movs)
	}

	if _, err := svc.UpdateStatus(ctx, p.ID, pedido.StatusPronto, 2); !errors.Is(err, errors.CodeConflict) {
		t.Fatalf("delivered pedido must not reopen, got %v", err)
	}

	if _, err := svc.UpdateStatus(ctx, p.ID, pedido.StatusCancelado, 2); err != nil {
		t.Fatalf("cancel delivered: %v", err)
	}
	restored, _ := store.GetProduto(ctx, prod.ID)
	if restored.Estoque != 5 {
		t.Fatalf("cancelling a delivered pedido should return stock, got %d", restored.Estoque)
	}
	if _, err := svc.UpdateStatus(ctx, p.ID, pedido.StatusPendente, 2); !errors.Is(err, errors.CodeConflict) {
		t.Fatalf("cancelled pedido is final, got %v", err)
	}
}

func TestService_CancelOpenMesaPedidoReleasesStock(t *testing.T) {
	svc, store, _ := newService(t)
	ctx := context.Background()
	p, prod := mesaPedido(t, svc, store, 5, 5)

	if _, err := svc.UpdateStatus(ctx, p.ID, pedido.StatusPreparo, 2); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, p.ID, pedido.StatusCancelado, 2); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := reservaStatus(t, svc, p.ID); got != estoque.ReservaLiberada {
		t.Fatalf("cancel should release the reservation, got %s", got)
	}
	if avail, _ := svc.estoque.Disponivel(ctx, prod.ID); avail != 5 {
		t.Fatalf("expected all 5 units available again, got %d", avail)
	}
	movs, _ := store.ListMovimentacoes(ctx, prod.ID)
	if len(movs) != 0 {
		t.Fatalf("an open pedido never left stock, got %#v", movs)
	}
}

func TestService_ListDefaultsLimit(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := svc.Create(ctx, CreateInput{Tipo: pedido.TipoFisica}, 1); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	list, err := svc.List(ctx, pedido.Filter{Tipo: pedido.TipoFisica})
	if err != nil || len(list) != 3 {
		t.Fatalf("expected 3 pedidos, got %d (%v)", len(list), err)
	}
	if list[0].Numero != "03" {
		t.Fatalf("expected newest first, got %s", list[0].Numero)
	}
}
