package carrinho

import (
	"context"
	"testing"
	"time"

	"github.com/happy-hops/choperia/internal/app/domain/catalog"
	"github.com/happy-hops/choperia/internal/app/domain/pedido"
	catalogsvc "github.com/happy-hops/choperia/internal/app/services/catalog"
	estoquesvc "github.com/happy-hops/choperia/internal/app/services/estoque"
	lojasvc "github.com/happy-hops/choperia/internal/app/services/loja"
	pedidosvc "github.com/happy-hops/choperia/internal/app/services/pedidos"
	"github.com/happy-hops/choperia/internal/app/storage/memory"
	"github.com/happy-hops/choperia/internal/errors"
)

type fixture struct {
	svc     *Service
	store   *memory.Store
	estoque *estoquesvc.Service
	loja    *lojasvc.Service
	produto catalog.Produto
}

func newFixture(t *testing.T, stock int) fixture {
	t.Helper()
	store := memory.New()
	est := estoquesvc.New(store, store, store, nil, 0)
	pedidos := pedidosvc.New(pedidosvc.Stores{Pedidos: store, Mesas: store, Catalog: store, Tx: store}, est, nil, nil)
	loja := lojasvc.New(store, catalogsvc.New(store, nil), nil)
	prod, err := store.CreateProduto(context.Background(), catalog.Produto{Nome: "Growler IPA", Codigo: "GIPA", Slug: "Growler-Ipa", Venda: 40, Estoque: stock, Disponivel: true})
	if err != nil {
		t.Fatalf("create produto: %v", err)
	}
	return fixture{
		svc:     New(store, store, store, est, pedidos, loja, nil),
		store:   store,
		estoque: est,
		loja:    loja,
		produto: prod,
	}
}

func TestService_GetEmpty(t *testing.T) {
	f := newFixture(t, 5)
	c, err := f.svc.Get(context.Background(), Owner{UserID: 3})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if c.ID != 0 || len(c.Itens) != 0 || c.Itens == nil {
		t.Fatalf("expected empty cart view, got %#v", c)
	}
}

func TestService_AddItemMergesLines(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	owner := Owner{UserID: 3}

	c, err := f.svc.AddItem(ctx, AddItemInput{Owner: owner, ProdutoID: f.produto.ID, Quantidade: 2})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	preco := 35.0
	c, err = f.svc.AddItem(ctx, AddItemInput{Owner: owner, ProdutoID: f.produto.ID, Quantidade: 1, PrecoUnitario: &preco})
	if err != nil {
		t.Fatalf("add item again: %v", err)
	}
	if len(c.Itens) != 1 || c.Itens[0].Quantidade != 3 || c.Total != 105 {
		t.Fatalf("expected merged line of 3 at 35, got %#v", c)
	}

	avail, _ := f.estoque.Disponivel(ctx, f.produto.ID)
	if avail != 2 {
		t.Fatalf("expected 3 units held, got %d available", avail)
	}

	if _, err := f.svc.AddItem(ctx, AddItemInput{Owner: owner, ProdutoID: f.produto.ID, Quantidade: 3}); err == nil {
		t.Fatalf("expected insufficient stock")
	}
	if _, err := f.svc.AddItem(ctx, AddItemInput{Owner: owner, ProdutoID: 404}); !errors.Is(err, errors.CodeNotFound) {
		t.Fatalf("expected produto not found, got %v", err)
	}
}

func TestService_UpdateAndRemove(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	owner := Owner{SessionID: "sess-1"}

	c, err := f.svc.AddItem(ctx, AddItemInput{Owner: owner, ProdutoID: f.produto.ID, Quantidade: 1})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	if c.UserID != nil || c.SessionID != "sess-1" {
		t.Fatalf("expected session cart, got %#v", c)
	}
	itemID := c.Itens[0].ID

	c, err = f.svc.UpdateQuantity(ctx, itemID, 5)
	if err != nil {
		t.Fatalf("update quantity: %v", err)
	}
	if c.Itens[0].Quantidade != 5 || c.Total != 200 {
		t.Fatalf("unexpected cart %#v", c)
	}
	avail, _ := f.estoque.Disponivel(ctx, f.produto.ID)
	if avail != 0 {
		t.Fatalf("expected whole stock held, got %d", avail)
	}

	c, err = f.svc.UpdateQuantity(ctx, itemID, 0)
	if err != nil {
		t.Fatalf("remove via zero quantity: %v", err)
	}
	if len(c.Itens) != 0 || c.Total != 0 {
		t.Fatalf("expected empty cart, got %#v", c)
	}
	avail, _ = f.estoque.Disponivel(ctx, f.produto.ID)
	if avail != 5 {
		t.Fatalf("expected hold released, got %d", avail)
	}
	if _, err := f.svc.RemoveItem(ctx, itemID); !errors.Is(err, errors.CodeNotFound) {
		t.Fatalf("expected item not found, got %v", err)
	}
}

func TestService_CheckoutWithCupom(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	owner := Owner{UserID: 4}
	now := time.Now()
	if _, err := f.loja.CreateCupom(ctx, lojasvc.CupomInput{Codigo: "FIXO10", Tipo: "fixo", Valor: 10, DataInicio: now.Add(-time.Hour), DataFim: now.Add(time.Hour)}); err != nil {
		t.Fatalf("create cupom: %v", err)
	}

	if _, err := f.svc.Checkout(ctx, CheckoutInput{Owner: owner}); !errors.Is(err, errors.CodeBadRequest) {
		t.Fatalf("expected empty cart error, got %v", err)
	}
	if _, err := f.svc.AddItem(ctx, AddItemInput{Owner: owner, ProdutoID: f.produto.ID, Quantidade: 2}); err != nil {
		t.Fatalf("add item: %v", err)
	}

	p, err := f.svc.Checkout(ctx, CheckoutInput{Owner: owner, Metodo: "pix", Cupom: "fixo10"})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if p.Tipo != pedido.TipoOnline || p.UserID != 4 || p.Subtotal != 80 || p.Desconto != 10 || p.Total != 70 {
		t.Fatalf("unexpected pedido %#v", p)
	}

	prod, _ := f.store.GetProduto(ctx, f.produto.ID)
	if prod.Estoque != 3 {
		t.Fatalf("expected stock 3 after checkout, got %d", prod.Estoque)
	}
	avail, _ := f.estoque.Disponivel(ctx, f.produto.ID)
	if avail != 3 {
		t.Fatalf("cart holds must be released on checkout, got %d", avail)
	}
	c, _ := f.svc.Get(ctx, owner)
	if len(c.Itens) != 0 {
		t.Fatalf("expected cart cleared, got %#v", c.Itens)
	}
}

func TestService_ClearFor(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	owner := Owner{UserID: 9}

	if err := f.svc.ClearFor(ctx, owner); err != nil {
		t.Fatalf("clearing a missing cart is a no-op: %v", err)
	}
	c, _ := f.svc.AddItem(ctx, AddItemInput{Owner: owner, ProdutoID: f.produto.ID, Quantidade: 2})
	if err := f.svc.Clear(ctx, c.ID); err != nil {
		t.Fatalf("clear: %v", err)
	}
	avail, _ := f.estoque.Disponivel(ctx, f.produto.ID)
	if avail != 5 {
		t.Fatalf("expected holds released, got %d", avail)
	}
	if err := f.svc.Clear(ctx, 999); !errors.Is(err, errors.CodeNotFound) {
		t.Fatalf("expected cart not found, got %v", err)
	}
}
