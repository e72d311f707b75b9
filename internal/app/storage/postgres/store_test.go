package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/happy-hops/choperia/internal/app/domain/estoque"
	"github.com/happy-hops/choperia/internal/app/domain/mesa"
	"github.com/happy-hops/choperia/internal/app/domain/pedido"
	"github.com/happy-hops/choperia/internal/app/storage"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "postgres")), mock
}

func TestStore_GetMesaNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("FROM mesas WHERE id = \\$1").
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	if _, err := store.GetMesa(context.Background(), 9); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStore_GetMesaScansRow(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "nome", "slug", "status", "usuario_responsavel_id", "capacidade", "observacoes", "created_at", "updated_at"}).
		AddRow(int64(3), "Mesa 3", "Mesa-03", "Ocupada", int64(1), 4, "", now, now)
	mock.ExpectQuery("FROM mesas WHERE slug = \\$1").WithArgs("Mesa-03").WillReturnRows(rows)

	m, err := store.GetMesaBySlug(context.Background(), "Mesa-03")
	if err != nil {
		t.Fatalf("get mesa: %v", err)
	}
	if m.ID != 3 || m.Status != mesa.StatusOcupada || m.UsuarioResponsavelID == nil || *m.UsuarioResponsavelID != 1 {
		t.Fatalf("unexpected mesa %#v", m)
	}
}

func TestStore_CreateMesaConflict(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO mesas").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "mesas_slug_key"})

	_, err := store.CreateMesa(context.Background(), mesa.Mesa{Nome: "1", Slug: "Mesa-01", Status: mesa.StatusLivre})
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestStore_WithinTxRollsBack(t *testing.T) {
	store, mock := newMockStore(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM mesas").WithArgs(int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	err := store.WithinTx(context.Background(), func(ctx context.Context) error {
		if err := store.DeleteMesa(ctx, 1); err != nil {
			return err
		}
		// Nested calls join the outer transaction.
		return store.WithinTx(ctx, func(context.Context) error { return boom })
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStore_ApplyMovimentacaoLocksRow(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT estoque FROM produtos WHERE id = \\$1 FOR UPDATE").
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"estoque"}).AddRow(3))
	mock.ExpectExec("UPDATE produtos SET estoque").
		WithArgs(int64(5), int64(0), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO estoque_movimentacoes").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))
	mock.ExpectCommit()

	mov, err := store.ApplyMovimentacao(context.Background(), estoque.Movimentacao{
		ProdutoID: 5, Tipo: estoque.TipoSaida, Quantidade: 7, Origem: estoque.OrigemAjuste,
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if mov.ID != 11 || mov.QuantidadeAnterior != 3 || mov.QuantidadeNova != 0 {
		t.Fatalf("unexpected movement %#v", mov)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestStore_ListPedidosLoadsItems(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()
	mesaID := int64(2)

	pedidoCols := []string{"id", "tipo", "user_id", "numero", "status", "metodo_pagamento", "subtotal", "desconto", "total",
		"mesa_id", "atendente_id", "nome_cliente", "observacoes", "created_at", "updated_at"}
	mock.ExpectQuery("FROM pedidos WHERE mesa_id = \\$1 AND created_at >= \\$2 ORDER BY id DESC").
		WithArgs(mesaID, now).
		WillReturnRows(sqlmock.NewRows(pedidoCols).
			AddRow(int64(8), "fisica", int64(1), "02", "Pendente", "", 15.0, 0.0, 15.0, mesaID, nil, "", "", now, now).
			AddRow(int64(7), "fisica", int64(1), "01", "Entregue", "pix", 9.9, 0.0, 9.9, mesaID, nil, "", "", now, now))
	mock.ExpectQuery("FROM pedido_itens").
		WillReturnRows(sqlmock.NewRows([]string{"id", "pedido_id", "produto_id", "nome", "quantidade", "preco_unitario", "subtotal"}).
			AddRow(int64(20), int64(8), int64(4), "Pilsen", 2, 7.5, 15.0))

	result, err := store.ListPedidos(context.Background(), pedido.Filter{MesaID: mesaID, Since: now})
	if err != nil {
		t.Fatalf("list pedidos: %v", err)
	}
	if len(result) != 2 || result[0].ID != 8 {
		t.Fatalf("unexpected pedidos %#v", result)
	}
	if len(result[0].Itens) != 1 || result[0].Itens[0].Subtotal != 15 {
		t.Fatalf("expected items attached, got %#v", result[0].Itens)
	}
	if result[1].Itens == nil || len(result[1].Itens) != 0 {
		t.Fatalf("expected empty item slice for pedido without items")
	}
}
