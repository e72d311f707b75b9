package mesas

import (
	"context"
	"sync"
	"testing"

	"github.com/happy-hops/choperia/internal/app/domain/catalog"
	"github.com/happy-hops/choperia/internal/app/domain/estoque"
	"github.com/happy-hops/choperia/internal/app/domain/mesa"
	"github.com/happy-hops/choperia/internal/app/domain/pagamento"
	"github.com/happy-hops/choperia/internal/app/domain/pedido"
	"github.com/happy-hops/choperia/internal/app/domain/user"
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

func (p *recordingPublisher) types() []mesa.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]mesa.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	svc     *Service
	store   *memory.Store
	pub     *recordingPublisher
	mesa    mesa.View
	produto catalog.Produto
}

func newFixture(t *testing.T, stock int) fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	pub := &recordingPublisher{}
	est := estoquesvc.New(store, store, store, nil, 0)
	svc := New(Stores{
		Mesas:      store,
		Pedidos:    store,
		Catalog:    store,
		Users:      store,
		Pagamentos: store,
		Tx:         store,
	}, est, pub, nil)

	m, err := svc.Create(ctx, CreateInput{Nome: "1"})
	if err != nil {
		t.Fatalf("create mesa: %v", err)
	}
	prod, err := store.CreateProduto(ctx, catalog.Produto{Nome: "Pilsen 300ml", Codigo: "P300", Slug: "Pilsen-300ml", Venda: 9.9, Estoque: stock, Disponivel: true})
	if err != nil {
		t.Fatalf("create produto: %v", err)
	}
	return fixture{svc: svc, store: store, pub: pub, mesa: m, produto: prod}
}

func TestService_Create(t *testing.T) {
	f := newFixture(t, 10)
	if f.mesa.Slug != "Mesa-01" || f.mesa.Capacidade != 4 || f.mesa.Status != mesa.StatusLivre {
		t.Fatalf("unexpected mesa %#v", f.mesa)
	}
	if _, err := f.svc.Create(context.Background(), CreateInput{Nome: "01"}); !errors.Is(err, errors.CodeConflict) {
		t.Fatalf("expected slug conflict, got %v", err)
	}
	if _, err := f.svc.Create(context.Background(), CreateInput{Nome: "  "}); !errors.Is(err, errors.CodeBadRequest) {
		t.Fatalf("expected nome required, got %v", err)
	}
}

func TestService_AddItemOpensPedido(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	p, view, err := f.svc.AddItem(ctx, AddItemInput{MesaID: f.mesa.ID, ProdutoID: f.produto.ID, Quantidade: 2, UsuarioID: 7})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	if p.Tipo != pedido.TipoFisica || p.Status != pedido.StatusPendente || p.Numero != "01" {
		t.Fatalf("unexpected pedido %#v", p)
	}
	if view.Status != mesa.StatusOcupada || view.UsuarioResponsavelID == nil || *view.UsuarioResponsavelID != 7 {
		t.Fatalf("expected mesa occupied by user 7, got %#v", view.Mesa)
	}
	if view.Pedido != p.ID || len(view.Itens) != 1 {
		t.Fatalf("view should carry the pending pedido: %#v", view)
	}

	preco := 5.0
	p, _, err = f.svc.AddItem(ctx, AddItemInput{MesaID: f.mesa.ID, ProdutoID: f.produto.ID, Quantidade: 1, UsuarioID: 7, PrecoUnitario: &preco})
	if err != nil {
		t.Fatalf("add second item: %v", err)
	}
	if len(p.Itens) != 2 || p.Total != 24.8 {
		t.Fatalf("expected 2 items totalling 24.8, got %d / %v", len(p.Itens), p.Total)
	}

	avail, _ := f.svc.estoque.Disponivel(ctx, f.produto.ID)
	if avail != 7 {
		t.Fatalf("expected 3 units reserved, got %d available", avail)
	}
	prod, _ := f.store.GetProduto(ctx, f.produto.ID)
	if prod.Estoque != 10 {
		t.Fatalf("reserving must not move stock, got %d", prod.Estoque)
	}

	if got := f.pub.types(); len(got) != 1 || got[0] != mesa.EventOccupied {
		t.Fatalf("expected a single occupied event, got %v", got)
	}
}

func TestService_AddItemValidation(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	if _, _, err := f.svc.AddItem(ctx, AddItemInput{MesaID: f.mesa.ID, ProdutoID: f.produto.ID, Quantidade: 2}); err == nil {
		t.Fatalf("expected insufficient stock")
	}
	if _, err := f.store.GetOpenPedidoByMesa(ctx, f.mesa.ID); err == nil {
		t.Fatalf("failed add must not leave a pending pedido")
	}
	if _, _, err := f.svc.AddItem(ctx, AddItemInput{MesaID: f.mesa.ID, ProdutoID: 999, Quantidade: 1}); !errors.Is(err, errors.CodeNotFound) {
		t.Fatalf("expected produto not found, got %v", err)
	}
	if _, _, err := f.svc.AddItem(ctx, AddItemInput{MesaID: 999, ProdutoID: f.produto.ID, Quantidade: 1}); !errors.Is(err, errors.CodeNotFound) {
		t.Fatalf("expected mesa not found, got %v", err)
	}
	if _, _, err := f.svc.AddItem(ctx, AddItemInput{MesaID: f.mesa.ID, ProdutoID: f.produto.ID}); !errors.Is(err, errors.CodeBadRequest) {
		t.Fatalf("expected quantity error, got %v", err)
	}
}

func TestService_RemoveItemReleasesReservation(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	p, _, err := f.svc.AddItem(ctx, AddItemInput{MesaID: f.mesa.ID, ProdutoID: f.produto.ID, Quantidade: 3})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	updated, err := f.svc.RemoveItem(ctx, p.Itens[0].ID)
	if err != nil {
		t.Fatalf("remove item: %v", err)
	}
	if len(updated.Itens) != 0 || updated.Total != 0 {
		t.Fatalf("expected empty pedido, got %#v", updated)
	}
	avail, _ := f.svc.estoque.Disponivel(ctx, f.produto.ID)
	if avail != 5 {
		t.Fatalf("expected reservation released, got %d available", avail)
	}
	if _, err := f.svc.RemoveItem(ctx, p.Itens[0].ID); !errors.Is(err, errors.CodeNotFound) {
		t.Fatalf("expected item not found, got %v", err)
	}
}

func TestService_CancelPedido(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	if err := f.svc.CancelPedido(ctx, f.mesa.ID, 1); !errors.Is(err, errors.CodeNotFound) {
		t.Fatalf("expected no open pedido, got %v", err)
	}
	p, _, err := f.svc.AddItem(ctx, AddItemInput{MesaID: f.mesa.ID, ProdutoID: f.produto.ID, Quantidade: 2, UsuarioID: 3})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	if err := f.svc.CancelPedido(ctx, f.mesa.ID, 3); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if _, err := f.store.GetPedido(ctx, p.ID); err == nil {
		t.Fatalf("cancelled pedido should be deleted")
	}
	view, _ := f.svc.Get(ctx, f.mesa.ID)
	if view.Status != mesa.StatusLivre || view.UsuarioResponsavelID != nil || view.Pedido != 0 {
		t.Fatalf("expected mesa freed, got %#v", view)
	}
	prod, _ := f.store.GetProduto(ctx, f.produto.ID)
	if prod.Estoque != 5 {
		t.Fatalf("reserved stock must stay untouched, got %d", prod.Estoque)
	}
	reservas, _ := f.svc.estoque.ListReservas(ctx, estoque.ReservaFilter{PedidoID: p.ID})
	if len(reservas) != 1 || reservas[0].Status != estoque.ReservaLiberada {
		t.Fatalf("expected reservation released, got %#v", reservas)
	}
	if movs, _ := f.store.ListMovimentacoes(ctx, f.produto.ID); len(movs) != 0 {
		t.Fatalf("cancelling an open pedido must not move stock, got %#v", movs)
	}
	if got := f.pub.types(); len(got) != 2 || got[1] != mesa.EventFreed {
		t.Fatalf("expected freed event, got %v", got)
	}
}

func TestService_ProcessPagamento(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	p, _, err := f.svc.AddItem(ctx, AddItemInput{MesaID: f.mesa.ID, ProdutoID: f.produto.ID, Quantidade: 2})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	recebido := 10.0
	if _, _, err := f.svc.ProcessPagamento(ctx, PagamentoInput{MesaID: f.mesa.ID, ValorRecebido: &recebido}); !errors.Is(err, errors.CodeBadRequest) {
		t.Fatalf("expected insufficient amount error, got %v", err)
	}

	recebido = 50
	pag, view, err := f.svc.ProcessPagamento(ctx, PagamentoInput{MesaID: f.mesa.ID, Metodo: "PIX", ValorRecebido: &recebido, Desconto: 0.8})
	if err != nil {
		t.Fatalf("process pagamento: %v", err)
	}
	if pag.Status != pagamento.StatusConfirmado || pag.ValorTotal != 19 || pag.Troco != 31 || pag.Metodo != "pix" {
		t.Fatalf("unexpected pagamento %#v", pag)
	}
	if view.Status != mesa.StatusLivre || view.Pedido != 0 {
		t.Fatalf("expected mesa freed, got %#v", view)
	}

	closed, _ := f.store.GetPedido(ctx, p.ID)
	if closed.Status != pedido.StatusEntregue || closed.MetodoPagamento != "pix" {
		t.Fatalf("unexpected pedido after payment %#v", closed)
	}
	if closed.Total != pag.ValorTotal || closed.Desconto != 0.8 || closed.Subtotal != 19.8 {
		t.Fatalf("pedido total should match the amount charged, got subtotal=%v desconto=%v total=%v",
			closed.Subtotal, closed.Desconto, closed.Total)
	}
	prod, _ := f.store.GetProduto(ctx, f.produto.ID)
	if prod.Estoque != 3 {
		t.Fatalf("expected stock 3 after sale, got %d", prod.Estoque)
	}
	avail, _ := f.svc.estoque.Disponivel(ctx, f.produto.ID)
	if avail != 3 {
		t.Fatalf("confirmed reservation must not hold stock, got %d available", avail)
	}

	if _, _, err := f.svc.ProcessPagamento(ctx, PagamentoInput{MesaID: f.mesa.ID}); !errors.Is(err, errors.CodeNotFound) {
		t.Fatalf("expected no open pedido, got %v", err)
	}
}

func TestService_ProcessPagamentoTotalOverride(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	p, _, err := f.svc.AddItem(ctx, AddItemInput{MesaID: f.mesa.ID, ProdutoID: f.produto.ID, Quantidade: 2})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	// The kitchen already picked the pedido up; it is still payable.
	p.Status = pedido.StatusPronto
	if _, err := f.store.UpdatePedido(ctx, p); err != nil {
		t.Fatalf("update pedido: %v", err)
	}

	total := 15.0
	pag, _, err := f.svc.ProcessPagamento(ctx, PagamentoInput{MesaID: f.mesa.ID, Total: &total})
	if err != nil {
		t.Fatalf("process pagamento: %v", err)
	}
	closed, _ := f.store.GetPedido(ctx, p.ID)
	if pag.ValorTotal != 15 || closed.Total != pag.ValorTotal {
		t.Fatalf("expected pedido total 15, got pagamento=%v pedido=%v", pag.ValorTotal, closed.Total)
	}
	reservas, _ := f.svc.estoque.ListReservas(ctx, estoque.ReservaFilter{PedidoID: p.ID})
	if len(reservas) != 1 || reservas[0].Status != estoque.ReservaConfirmada {
		t.Fatalf("expected reservation confirmed, got %#v", reservas)
	}
}

func TestService_TransferAndDelete(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	staff, _ := f.store.CreateUser(ctx, user.User{Username: "bia", Email: "bia@example.com", Tipo: user.TipoFisica})
	customer := user.User{ID: 99, Tipo: user.TipoOnline}

	if _, err := f.svc.Transfer(ctx, f.mesa.ID, staff.ID, customer); !errors.Is(err, errors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	view, err := f.svc.Transfer(ctx, f.mesa.ID, staff.ID, user.User{ID: 1, Tipo: user.TipoAdmin})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if view.UsuarioResponsavelID == nil || *view.UsuarioResponsavelID != staff.ID {
		t.Fatalf("expected responsável %d, got %#v", staff.ID, view.UsuarioResponsavelID)
	}
	if _, err := f.svc.Transfer(ctx, f.mesa.ID, 404, user.User{ID: 1, Tipo: user.TipoAdmin}); !errors.Is(err, errors.CodeNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}

	if _, _, err := f.svc.AddItem(ctx, AddItemInput{MesaID: f.mesa.ID, ProdutoID: f.produto.ID, Quantidade: 1}); err != nil {
		t.Fatalf("add item: %v", err)
	}
	if err := f.svc.Delete(ctx, f.mesa.ID); !errors.Is(err, errors.CodeConflict) {
		t.Fatalf("expected pending pedido conflict, got %v", err)
	}
	if err := f.svc.CancelPedido(ctx, f.mesa.ID, 1); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := f.svc.Delete(ctx, f.mesa.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.svc.Get(ctx, f.mesa.ID); !errors.Is(err, errors.CodeNotFound) {
		t.Fatalf("expected mesa gone, got %v", err)
	}
}

func TestService_UpdateStatus(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	view, err := f.svc.UpdateStatus(ctx, f.mesa.ID, mesa.StatusPronto, 2)
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if view.Status != mesa.StatusPronto {
		t.Fatalf("unexpected status %s", view.Status)
	}
	if _, err := f.svc.UpdateStatus(ctx, f.mesa.ID, "Quebrada", 2); !errors.Is(err, errors.CodeBadRequest) {
		t.Fatalf("expected invalid status, got %v", err)
	}
	if got := f.pub.types(); len(got) != 1 || got[0] != mesa.EventUpdated {
		t.Fatalf("expected updated event, got %v", got)
	}
	list, _ := f.svc.List(ctx)
	if len(list) != 1 {
		t.Fatalf("expected 1 mesa, got %d", len(list))
	}
	bySlug, err := f.svc.GetBySlug(ctx, "Mesa-01")
	if err != nil || bySlug.ID != f.mesa.ID {
		t.Fatalf("get by slug: %v", err)
	}
}
