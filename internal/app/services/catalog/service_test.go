package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/happy-hops/choperia/internal/app/domain/catalog"
	"github.com/happy-hops/choperia/internal/app/storage/memory"
	"github.com/happy-hops/choperia/internal/errors"
)

func TestService_ProdutoLifecycle(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)
	ctx := context.Background()

	cat, err := svc.CreateCategoria(ctx, "Chopp", "Chopes da casa")
	if err != nil {
		t.Fatalf("create categoria: %v", err)
	}
	if _, err := svc.CreateCategoria(ctx, "chopp", ""); !errors.Is(err, errors.CodeConflict) {
		t.Fatalf("expected duplicate categoria conflict, got %v", err)
	}

	p, err := svc.CreateProduto(ctx, ProdutoInput{Nome: "Chopp Pilsen", Codigo: "CP300", CategoriaID: cat.ID, Venda: 12.5, Estoque: 20})
	if err != nil {
		t.Fatalf("create produto: %v", err)
	}
	if p.Slug != "Chopp-Pilsen" || !p.Disponivel {
		t.Fatalf("unexpected produto %#v", p)
	}

	second, err := svc.CreateProduto(ctx, ProdutoInput{Nome: "Chopp Pilsen", Codigo: "CP500", Venda: 18})
	if err != nil {
		t.Fatalf("create second produto: %v", err)
	}
	if second.Slug != "Chopp-Pilsen-2" {
		t.Fatalf("expected suffixed slug, got %s", second.Slug)
	}

	if _, err := svc.CreateProduto(ctx, ProdutoInput{Nome: "X", Codigo: "CP300"}); !errors.Is(err, errors.CodeConflict) {
		t.Fatalf("expected codigo conflict, got %v", err)
	}
	if _, err := svc.CreateProduto(ctx, ProdutoInput{Nome: "X", Codigo: "X1", CategoriaID: 999}); !errors.Is(err, errors.CodeBadRequest) {
		t.Fatalf("expected unknown categoria rejection, got %v", err)
	}
	if _, err := svc.CreateProduto(ctx, ProdutoInput{Nome: "X", Codigo: "X2", Venda: -1}); err == nil {
		t.Fatalf("expected negative price rejection")
	}

	venda := 13.0
	off := false
	updated, err := svc.UpdateProduto(ctx, p.ID, ProdutoUpdate{Venda: &venda, Disponivel: &off})
	if err != nil {
		t.Fatalf("update produto: %v", err)
	}
	if updated.Venda != 13 || updated.Disponivel || updated.Estoque != 20 {
		t.Fatalf("unexpected update %#v", updated)
	}

	byCode, err := svc.GetProdutoByCodigo(ctx, "CP500")
	if err != nil || byCode.ID != second.ID {
		t.Fatalf("by codigo: %v", err)
	}
	if _, err := svc.GetProduto(ctx, 12345); !errors.Is(err, errors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	available := true
	list, err := svc.ListProdutos(ctx, catalog.ProdutoFilter{Disponivel: &available})
	if err != nil || len(list) != 1 || list[0].ID != second.ID {
		t.Fatalf("filtered list: %v %#v", err, list)
	}
	if n, _ := svc.CountProdutos(ctx); n != 2 {
		t.Fatalf("expected 2 produtos, got %d", n)
	}
}

func TestService_EmpresaAndNotas(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	e, err := svc.CreateEmpresa(ctx, EmpresaInput{Nome: "Cervejaria Água Boa", Email: "contato@aguaboa.com", CNPJ: "00.000.000/0001-00"})
	if err != nil {
		t.Fatalf("create empresa: %v", err)
	}
	if e.Slug != "Cervejaria-Agua-Boa" || e.Status != catalog.EmpresaAtiva {
		t.Fatalf("unexpected empresa %#v", e)
	}
	if _, err := svc.CreateEmpresa(ctx, EmpresaInput{Nome: "Outra", Email: "x@y", CNPJ: "00.000.000/0001-00"}); !errors.Is(err, errors.CodeConflict) {
		t.Fatalf("expected cnpj conflict, got %v", err)
	}

	if _, err := svc.SetEmpresaStatus(ctx, e.ID, "fechada"); err == nil {
		t.Fatalf("expected invalid status")
	}
	suspended, err := svc.SetEmpresaStatus(ctx, e.ID, "Suspensa")
	if err != nil || suspended.Status != catalog.EmpresaSuspensa {
		t.Fatalf("set status: %v %#v", err, suspended)
	}

	if _, err := svc.CreateNotaFiscal(ctx, e.ID, "1", "100", "Compra de malte", time.Time{}); err != nil {
		t.Fatalf("create nota: %v", err)
	}
	if _, err := svc.CreateNotaFiscal(ctx, e.ID, "1", "100", "dup", time.Time{}); !errors.Is(err, errors.CodeConflict) {
		t.Fatalf("expected nota conflict, got %v", err)
	}
	if _, err := svc.CreateNotaFiscal(ctx, 999, "1", "1", "", time.Time{}); !errors.Is(err, errors.CodeNotFound) {
		t.Fatalf("expected empresa not found, got %v", err)
	}
	notas, _ := svc.ListNotasFiscais(ctx, e.ID)
	if len(notas) != 1 {
		t.Fatalf("expected 1 nota, got %d", len(notas))
	}
}
