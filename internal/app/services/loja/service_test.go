package loja

import (
	"context"
	"testing"
	"time"

	catalogsvc "github.com/happy-hops/choperia/internal/app/services/catalog"
	"github.com/happy-hops/choperia/internal/app/storage/memory"
	"github.com/happy-hops/choperia/internal/errors"
)

func setup(t *testing.T) (*Service, *catalogsvc.Service, int64) {
	t.Helper()
	store := memory.New()
	catalog := catalogsvc.New(store, nil)
	p, err := catalog.CreateProduto(context.Background(), catalogsvc.ProdutoInput{Nome: "Weiss", Codigo: "WEI", Venda: 15})
	if err != nil {
		t.Fatalf("create produto: %v", err)
	}
	return New(store, catalog, nil), catalog, p.ID
}

func TestService_FavoritosIdempotent(t *testing.T) {
	svc, _, produtoID := setup(t)
	ctx := context.Background()

	first, err := svc.AddFavorito(ctx, 2, produtoID)
	if err != nil {
		t.Fatalf("add favorito: %v", err)
	}
	second, err := svc.AddFavorito(ctx, 2, produtoID)
	if err != nil || second.ID != first.ID {
		t.Fatalf("expected same favorito, got %#v (%v)", second, err)
	}
	if _, err := svc.AddFavorito(ctx, 2, 999); !errors.Is(err, errors.CodeNotFound) {
		t.Fatalf("expected produto not found, got %v", err)
	}

	favs, _ := svc.ListFavoritos(ctx, 2)
	if len(favs) != 1 {
		t.Fatalf("expected 1 favorito, got %d", len(favs))
	}
	if err := svc.RemoveFavorito(ctx, 2, produtoID); err != nil {
		t.Fatalf("remove favorito: %v", err)
	}
	if err := svc.RemoveFavorito(ctx, 2, produtoID); !errors.Is(err, errors.CodeNotFound) {
		t.Fatalf("expected not found on second remove, got %v", err)
	}
}

func TestService_AvaliarRecomputesRating(t *testing.T) {
	svc, catalog, produtoID := setup(t)
	ctx := context.Background()

	if _, err := svc.Avaliar(ctx, 1, produtoID, 6, ""); !errors.Is(err, errors.CodeBadRequest) {
		t.Fatalf("expected rating range error, got %v", err)
	}
	if _, err := svc.Avaliar(ctx, 1, produtoID, 5, "ótima"); err != nil {
		t.Fatalf("avaliar: %v", err)
	}
	if _, err := svc.Avaliar(ctx, 2, produtoID, 4, ""); err != nil {
		t.Fatalf("avaliar: %v", err)
	}
	p, _ := catalog.GetProduto(ctx, produtoID)
	if p.Rating != 4.5 {
		t.Fatalf("expected mean rating 4.5, got %v", p.Rating)
	}

	// Re-rating replaces the user's previous score.
	if _, err := svc.Avaliar(ctx, 2, produtoID, 2, ""); err != nil {
		t.Fatalf("avaliar: %v", err)
	}
	p, _ = catalog.GetProduto(ctx, produtoID)
	if p.Rating != 3.5 {
		t.Fatalf("expected mean rating 3.5, got %v", p.Rating)
	}

	if err := svc.RemoveAvaliacao(ctx, 1, produtoID); err != nil {
		t.Fatalf("remove avaliacao: %v", err)
	}
	p, _ = catalog.GetProduto(ctx, produtoID)
	if p.Rating != 2 {
		t.Fatalf("expected rating 2 after removal, got %v", p.Rating)
	}
}

func TestService_Cupons(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	svc.WithTimeFunc(func() time.Time { return now })
	maxUses := 1

	c, err := svc.CreateCupom(ctx, CupomInput{Codigo: " chopp10 ", Valor: 10, ValorMinimo: 50, DataFim: now.Add(24 * time.Hour), UsoMaximo: &maxUses})
	if err != nil {
		t.Fatalf("create cupom: %v", err)
	}
	if c.Codigo != "CHOPP10" || c.Tipo != "percentual" {
		t.Fatalf("unexpected cupom %#v", c)
	}
	if _, err := svc.CreateCupom(ctx, CupomInput{Codigo: "CHOPP10", Valor: 5, DataFim: now.Add(time.Hour)}); !errors.Is(err, errors.CodeConflict) {
		t.Fatalf("expected duplicate codigo conflict, got %v", err)
	}
	if _, err := svc.CreateCupom(ctx, CupomInput{Codigo: "OLD", Valor: 5, DataInicio: now, DataFim: now.Add(-time.Hour)}); !errors.Is(err, errors.CodeBadRequest) {
		t.Fatalf("expected date range error, got %v", err)
	}

	if _, _, err := svc.ApplyCupom(ctx, "chopp10", 40); !errors.Is(err, errors.CodeBadRequest) {
		t.Fatalf("expected minimum value error, got %v", err)
	}
	applied, desconto, err := svc.ApplyCupom(ctx, "chopp10", 80)
	if err != nil {
		t.Fatalf("apply cupom: %v", err)
	}
	if desconto != 8 || applied.UsoAtual != 1 {
		t.Fatalf("unexpected discount %v uso %d", desconto, applied.UsoAtual)
	}
	if _, _, err := svc.ApplyCupom(ctx, "chopp10", 80); !errors.Is(err, errors.CodeBadRequest) {
		t.Fatalf("expected exhausted cupom, got %v", err)
	}
	if _, _, err := svc.ApplyCupom(ctx, "nope", 80); !errors.Is(err, errors.CodeNotFound) {
		t.Fatalf("expected unknown cupom, got %v", err)
	}
}
