package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/happy-hops/choperia/internal/app/domain/carrinho"
	"github.com/happy-hops/choperia/internal/app/domain/estoque"
	"github.com/happy-hops/choperia/internal/app/domain/loja"
	"github.com/happy-hops/choperia/internal/app/domain/pagamento"
	"github.com/happy-hops/choperia/internal/app/domain/pedido"
)

// --- PedidoStore -------------------------------------------------------------

const pedidoColumns = `id, tipo, user_id, numero, status, metodo_pagamento, subtotal, desconto, total,
	mesa_id, atendente_id, nome_cliente, observacoes, created_at, updated_at`

const pedidoItemColumns = `id, pedido_id, produto_id, nome, quantidade, preco_unitario, subtotal`

func (s *Store) CreatePedido(ctx context.Context, p pedido.Pedido) (pedido.Pedido, error) {
	err := s.WithinTx(ctx, func(ctx context.Context) error {
		now := time.Now().UTC()
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		p.UpdatedAt = now
		err := s.q(ctx).QueryRowxContext(ctx, `
			INSERT INTO pedidos (tipo, user_id, numero, status, metodo_pagamento, subtotal, desconto, total,
			                     mesa_id, atendente_id, nome_cliente, observacoes, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			RETURNING id
		`, p.Tipo, p.UserID, p.Numero, p.Status, p.MetodoPagamento, p.Subtotal, p.Desconto, p.Total,
			p.MesaID, p.AtendenteID, p.NomeCliente, p.Observacoes, p.CreatedAt, p.UpdatedAt).Scan(&p.ID)
		if err != nil {
			return mapErr(err, "pedido", p.Numero)
		}
		items := make([]pedido.Item, 0, len(p.Itens))
		for _, it := range p.Itens {
			it.PedidoID = p.ID
			created, err := s.AddPedidoItem(ctx, it)
			if err != nil {
				return err
			}
			items = append(items, created)
		}
		p.Itens = items
		return nil
	})
	if err != nil {
		return pedido.Pedido{}, err
	}
	return p, nil
}

func (s *Store) UpdatePedido(ctx context.Context, p pedido.Pedido) (pedido.Pedido, error) {
	p.UpdatedAt = time.Now().UTC()
	err := s.q(ctx).QueryRowxContext(ctx, `
		UPDATE pedidos
		SET tipo = $2, user_id = $3, numero = $4, status = $5, metodo_pagamento = $6, subtotal = $7, desconto = $8,
		    total = $9, mesa_id = $10, atendente_id = $11, nome_cliente = $12, observacoes = $13, updated_at = $14
		WHERE id = $1
		RETURNING created_at
	`, p.ID, p.Tipo, p.UserID, p.Numero, p.Status, p.MetodoPagamento, p.Subtotal, p.Desconto,
		p.Total, p.MesaID, p.AtendenteID, p.NomeCliente, p.Observacoes, p.UpdatedAt).Scan(&p.CreatedAt)
	if err != nil {
		return pedido.Pedido{}, mapErr(err, "pedido", p.ID)
	}
	items, err := s.itemsFor(ctx, []int64{p.ID})
	if err != nil {
		return pedido.Pedido{}, err
	}
	p.Itens = orEmpty(items[p.ID])
	return p, nil
}

func (s *Store) GetPedido(ctx context.Context, id int64) (pedido.Pedido, error) {
	return s.getPedido(ctx, `SELECT `+pedidoColumns+` FROM pedidos WHERE id = $1`, id)
}

func (s *Store) GetOpenPedidoByMesa(ctx context.Context, mesaID int64) (pedido.Pedido, error) {
	return s.getPedido(ctx, `
		SELECT `+pedidoColumns+` FROM pedidos
		WHERE mesa_id = $1 AND status IN ($2, $3, $4)
		ORDER BY id LIMIT 1
	`, mesaID, pedido.StatusPendente, pedido.StatusPreparo, pedido.StatusPronto)
}

func (s *Store) getPedido(ctx context.Context, query string, args ...interface{}) (pedido.Pedido, error) {
	var p pedido.Pedido
	if err := sqlx.GetContext(ctx, s.q(ctx), &p, query, args...); err != nil {
		return pedido.Pedido{}, mapErr(err, "pedido", args[0])
	}
	items, err := s.itemsFor(ctx, []int64{p.ID})
	if err != nil {
		return pedido.Pedido{}, err
	}
	p.Itens = orEmpty(items[p.ID])
	return p, nil
}

// ListPedidos returns matching orders newest first.
func (s *Store) ListPedidos(ctx context.Context, filter pedido.Filter) ([]pedido.Pedido, error) {
	w := where{}
	if filter.Tipo != "" {
		w.add("tipo = ?", filter.Tipo)
	}
	if filter.Status != "" {
		w.add("status = ?", filter.Status)
	}
	if filter.MesaID != 0 {
		w.add("mesa_id = ?", filter.MesaID)
	}
	if !filter.Since.IsZero() {
		w.add("created_at >= ?", filter.Since)
	}
	query := `SELECT ` + pedidoColumns + ` FROM pedidos` + w.sql() + ` ORDER BY id DESC` + limit(filter.Limit)

	var result []pedido.Pedido
	if err := sqlx.SelectContext(ctx, s.q(ctx), &result, s.db.Rebind(query), w.args...); err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return result, nil
	}
	ids := make([]int64, len(result))
	for i, p := range result {
		ids[i] = p.ID
	}
	items, err := s.itemsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range result {
		result[i].Itens = orEmpty(items[result[i].ID])
	}
	return result, nil
}

func (s *Store) itemsFor(ctx context.Context, pedidoIDs []int64) (map[int64][]pedido.Item, error) {
	var items []pedido.Item
	err := sqlx.SelectContext(ctx, s.q(ctx), &items, `
		SELECT `+pedidoItemColumns+` FROM pedido_itens
		WHERE pedido_id = ANY($1) ORDER BY id
	`, pq.Array(pedidoIDs))
	if err != nil {
		return nil, err
	}
	byPedido := make(map[int64][]pedido.Item, len(pedidoIDs))
	for _, it := range items {
		byPedido[it.PedidoID] = append(byPedido[it.PedidoID], it)
	}
	return byPedido, nil
}

func orEmpty(items []pedido.Item) []pedido.Item {
	if items == nil {
		return []pedido.Item{}
	}
	return items
}

func (s *Store) ListPedidoNumeros(ctx context.Context) ([]string, error) {
	var numeros []string
	err := sqlx.SelectContext(ctx, s.q(ctx), &numeros, `SELECT numero FROM pedidos`)
	return numeros, err
}

func (s *Store) DeletePedido(ctx context.Context, id int64) error {
	res, err := s.q(ctx).ExecContext(ctx, `DELETE FROM pedidos WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectRows(res, "pedido", id)
}

func (s *Store) AddPedidoItem(ctx context.Context, item pedido.Item) (pedido.Item, error) {
	err := s.q(ctx).QueryRowxContext(ctx, `
		INSERT INTO pedido_itens (pedido_id, produto_id, nome, quantidade, preco_unitario, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, item.PedidoID, item.ProdutoID, item.Nome, item.Quantidade, item.PrecoUnitario, item.Subtotal).Scan(&item.ID)
	if err != nil {
		return pedido.Item{}, mapErr(err, "pedido item", item.PedidoID)
	}
	return item, nil
}

func (s *Store) GetPedidoItem(ctx context.Context, id int64) (pedido.Item, error) {
	var it pedido.Item
	err := sqlx.GetContext(ctx, s.q(ctx), &it, `SELECT `+pedidoItemColumns+` FROM pedido_itens WHERE id = $1`, id)
	return it, mapErr(err, "pedido item", id)
}

func (s *Store) DeletePedidoItem(ctx context.Context, id int64) error {
	res, err := s.q(ctx).ExecContext(ctx, `DELETE FROM pedido_itens WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectRows(res, "pedido item", id)
}

// --- EstoqueStore ------------------------------------------------------------

// ApplyMovimentacao locks the produto row, applies the movement and records
// it in one transaction.
func (s *Store) ApplyMovimentacao(ctx context.Context, mov estoque.Movimentacao) (estoque.Movimentacao, error) {
	err := s.WithinTx(ctx, func(ctx context.Context) error {
		var anterior int
		err := s.q(ctx).QueryRowxContext(ctx, `SELECT estoque FROM produtos WHERE id = $1 FOR UPDATE`, mov.ProdutoID).Scan(&anterior)
		if err != nil {
			return mapErr(err, "produto", mov.ProdutoID)
		}
		now := time.Now().UTC()
		mov.QuantidadeAnterior = anterior
		mov.QuantidadeNova = estoque.Apply(anterior, mov.Tipo, mov.Quantidade)
		if _, err := s.q(ctx).ExecContext(ctx, `UPDATE produtos SET estoque = $2, updated_at = $3 WHERE id = $1`,
			mov.ProdutoID, mov.QuantidadeNova, now); err != nil {
			return err
		}
		mov.CreatedAt = now
		return s.q(ctx).QueryRowxContext(ctx, `
			INSERT INTO estoque_movimentacoes (produto_id, tipo, origem, quantidade, quantidade_anterior, quantidade_nova,
			                                   usuario_id, observacoes, pedido_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id
		`, mov.ProdutoID, mov.Tipo, mov.Origem, mov.Quantidade, mov.QuantidadeAnterior, mov.QuantidadeNova,
			mov.UsuarioID, mov.Observacoes, mov.PedidoID, mov.CreatedAt).Scan(&mov.ID)
	})
	if err != nil {
		return estoque.Movimentacao{}, err
	}
	return mov, nil
}

func (s *Store) ListMovimentacoes(ctx context.Context, produtoID int64) ([]estoque.Movimentacao, error) {
	w := where{}
	if produtoID != 0 {
		w.add("produto_id = ?", produtoID)
	}
	query := `SELECT id, produto_id, tipo, origem, quantidade, quantidade_anterior, quantidade_nova,
		usuario_id, observacoes, pedido_id, created_at FROM estoque_movimentacoes` + w.sql() + ` ORDER BY id`

	var result []estoque.Movimentacao
	err := sqlx.SelectContext(ctx, s.q(ctx), &result, s.db.Rebind(query), w.args...)
	return result, err
}

const reservaColumns = `id, produto_id, quantidade, tipo, mesa_id, usuario_id, status, expira_em, pedido_id, item_id, created_at, updated_at`

func (s *Store) CreateReserva(ctx context.Context, r estoque.Reserva) (estoque.Reserva, error) {
	now := time.Now().UTC()
	r.CreatedAt, r.UpdatedAt = now, now
	err := s.q(ctx).QueryRowxContext(ctx, `
		INSERT INTO estoque_reservas (produto_id, quantidade, tipo, mesa_id, usuario_id, status, expira_em, pedido_id, item_id, created_at, updated_at)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		WHERE EXISTS (SELECT 1 FROM produtos WHERE id = $1)
		RETURNING id
	`, r.ProdutoID, r.Quantidade, r.Tipo, r.MesaID, r.UsuarioID, r.Status, r.ExpiraEm, r.PedidoID, r.ItemID, r.CreatedAt, r.UpdatedAt).Scan(&r.ID)
	if err != nil {
		return estoque.Reserva{}, mapErr(err, "produto", r.ProdutoID)
	}
	return r, nil
}

func (s *Store) UpdateReserva(ctx context.Context, r estoque.Reserva) (estoque.Reserva, error) {
	r.UpdatedAt = time.Now().UTC()
	err := s.q(ctx).QueryRowxContext(ctx, `
		UPDATE estoque_reservas
		SET produto_id = $2, quantidade = $3, tipo = $4, mesa_id = $5, usuario_id = $6, status = $7,
		    expira_em = $8, pedido_id = $9, item_id = $10, updated_at = $11
		WHERE id = $1
		RETURNING created_at
	`, r.ID, r.ProdutoID, r.Quantidade, r.Tipo, r.MesaID, r.UsuarioID, r.Status,
		r.ExpiraEm, r.PedidoID, r.ItemID, r.UpdatedAt).Scan(&r.CreatedAt)
	if err != nil {
		return estoque.Reserva{}, mapErr(err, "reserva", r.ID)
	}
	return r, nil
}

func (s *Store) GetReserva(ctx context.Context, id int64) (estoque.Reserva, error) {
	var r estoque.Reserva
	err := sqlx.GetContext(ctx, s.q(ctx), &r, `SELECT `+reservaColumns+` FROM estoque_reservas WHERE id = $1`, id)
	return r, mapErr(err, "reserva", id)
}

func (s *Store) ListReservas(ctx context.Context, filter estoque.ReservaFilter) ([]estoque.Reserva, error) {
	w := where{}
	if filter.ProdutoID != 0 {
		w.add("produto_id = ?", filter.ProdutoID)
	}
	if filter.MesaID != 0 {
		w.add("mesa_id = ?", filter.MesaID)
	}
	if filter.PedidoID != 0 {
		w.add("pedido_id = ?", filter.PedidoID)
	}
	if filter.ItemID != 0 {
		w.add("item_id = ?", filter.ItemID)
	}
	if filter.Status != "" {
		w.add("status = ?", filter.Status)
	}
	if filter.Tipo != "" {
		w.add("tipo = ?", filter.Tipo)
	}
	query := `SELECT ` + reservaColumns + ` FROM estoque_reservas` + w.sql() + ` ORDER BY id`

	var result []estoque.Reserva
	err := sqlx.SelectContext(ctx, s.q(ctx), &result, s.db.Rebind(query), w.args...)
	return result, err
}

// --- LojaStore ---------------------------------------------------------------

func (s *Store) CreateFavorito(ctx context.Context, f loja.Favorito) (loja.Favorito, error) {
	f.CreatedAt = time.Now().UTC()
	err := s.q(ctx).QueryRowxContext(ctx, `
		INSERT INTO favoritos (user_id, produto_id, created_at) VALUES ($1, $2, $3) RETURNING id
	`, f.UserID, f.ProdutoID, f.CreatedAt).Scan(&f.ID)
	if err != nil {
		return loja.Favorito{}, mapErr(err, "favorito", f.ProdutoID)
	}
	return f, nil
}

func (s *Store) GetFavorito(ctx context.Context, userID, produtoID int64) (loja.Favorito, error) {
	var f loja.Favorito
	err := sqlx.GetContext(ctx, s.q(ctx), &f, `
		SELECT id, user_id, produto_id, created_at FROM favoritos WHERE user_id = $1 AND produto_id = $2
	`, userID, produtoID)
	return f, mapErr(err, "favorito", produtoID)
}

func (s *Store) ListFavoritos(ctx context.Context, userID int64) ([]loja.Favorito, error) {
	var result []loja.Favorito
	err := sqlx.SelectContext(ctx, s.q(ctx), &result, `
		SELECT id, user_id, produto_id, created_at FROM favoritos WHERE user_id = $1 ORDER BY id
	`, userID)
	return result, err
}

func (s *Store) DeleteFavorito(ctx context.Context, userID, produtoID int64) error {
	res, err := s.q(ctx).ExecContext(ctx, `DELETE FROM favoritos WHERE user_id = $1 AND produto_id = $2`, userID, produtoID)
	if err != nil {
		return err
	}
	return expectRows(res, "favorito", produtoID)
}

// SaveAvaliacao creates the rating or replaces the user's existing one for
// the same product.
func (s *Store) SaveAvaliacao(ctx context.Context, a loja.Avaliacao) (loja.Avaliacao, error) {
	now := time.Now().UTC()
	a.UpdatedAt = now
	err := s.q(ctx).QueryRowxContext(ctx, `
		INSERT INTO avaliacoes (user_id, produto_id, rating, comentario, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (user_id, produto_id)
		DO UPDATE SET rating = EXCLUDED.rating, comentario = EXCLUDED.comentario, updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`, a.UserID, a.ProdutoID, a.Rating, a.Comentario, now).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return loja.Avaliacao{}, mapErr(err, "avaliacao", a.ProdutoID)
	}
	return a, nil
}

func (s *Store) ListAvaliacoes(ctx context.Context, produtoID int64) ([]loja.Avaliacao, error) {
	var result []loja.Avaliacao
	err := sqlx.SelectContext(ctx, s.q(ctx), &result, `
		SELECT id, user_id, produto_id, rating, comentario, created_at, updated_at
		FROM avaliacoes WHERE produto_id = $1 ORDER BY id
	`, produtoID)
	return result, err
}

func (s *Store) DeleteAvaliacao(ctx context.Context, userID, produtoID int64) error {
	res, err := s.q(ctx).ExecContext(ctx, `DELETE FROM avaliacoes WHERE user_id = $1 AND produto_id = $2`, userID, produtoID)
	if err != nil {
		return err
	}
	return expectRows(res, "avaliacao", produtoID)
}

const cupomColumns = `id, codigo, nome, tipo, valor, valor_minimo, ativo, data_inicio, data_fim, uso_maximo, uso_atual, created_at`

func (s *Store) CreateCupom(ctx context.Context, c loja.Cupom) (loja.Cupom, error) {
	c.CreatedAt = time.Now().UTC()
	err := s.q(ctx).QueryRowxContext(ctx, `
		INSERT INTO cupons (codigo, nome, tipo, valor, valor_minimo, ativo, data_inicio, data_fim, uso_maximo, uso_atual, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`, c.Codigo, c.Nome, c.Tipo, c.Valor, c.ValorMinimo, c.Ativo, c.DataInicio, c.DataFim, c.UsoMaximo, c.UsoAtual, c.CreatedAt).Scan(&c.ID)
	if err != nil {
		return loja.Cupom{}, mapErr(err, "cupom", c.Codigo)
	}
	return c, nil
}

func (s *Store) UpdateCupom(ctx context.Context, c loja.Cupom) (loja.Cupom, error) {
	err := s.q(ctx).QueryRowxContext(ctx, `
		UPDATE cupons
		SET codigo = $2, nome = $3, tipo = $4, valor = $5, valor_minimo = $6, ativo = $7,
		    data_inicio = $8, data_fim = $9, uso_maximo = $10, uso_atual = $11
		WHERE id = $1
		RETURNING created_at
	`, c.ID, c.Codigo, c.Nome, c.Tipo, c.Valor, c.ValorMinimo, c.Ativo,
		c.DataInicio, c.DataFim, c.UsoMaximo, c.UsoAtual).Scan(&c.CreatedAt)
	if err != nil {
		return loja.Cupom{}, mapErr(err, "cupom", c.ID)
	}
	return c, nil
}

func (s *Store) GetCupomByCodigo(ctx context.Context, codigo string) (loja.Cupom, error) {
	var c loja.Cupom
	err := sqlx.GetContext(ctx, s.q(ctx), &c, `SELECT `+cupomColumns+` FROM cupons WHERE LOWER(codigo) = LOWER($1)`, codigo)
	return c, mapErr(err, "cupom", codigo)
}

// --- CarrinhoStore -----------------------------------------------------------

const carrinhoColumns = `id, user_id, session_id, total, created_at, updated_at`

func (s *Store) CreateCarrinho(ctx context.Context, c carrinho.Carrinho) (carrinho.Carrinho, error) {
	var created carrinho.Carrinho
	err := s.WithinTx(ctx, func(ctx context.Context) error {
		now := time.Now().UTC()
		c.CreatedAt, c.UpdatedAt = now, now
		err := s.q(ctx).QueryRowxContext(ctx, `
			INSERT INTO carrinhos (user_id, session_id, total, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, c.UserID, c.SessionID, c.Total, c.CreatedAt, c.UpdatedAt).Scan(&c.ID)
		if err != nil {
			return mapErr(err, "carrinho", c.SessionID)
		}
		created, err = s.replaceCartItems(ctx, c)
		return err
	})
	return created, err
}

// SaveCarrinho replaces the cart header and its lines. Lines keep their ids
// when they have one.
func (s *Store) SaveCarrinho(ctx context.Context, c carrinho.Carrinho) (carrinho.Carrinho, error) {
	var saved carrinho.Carrinho
	err := s.WithinTx(ctx, func(ctx context.Context) error {
		c.UpdatedAt = time.Now().UTC()
		err := s.q(ctx).QueryRowxContext(ctx, `
			UPDATE carrinhos SET user_id = $2, session_id = $3, total = $4, updated_at = $5
			WHERE id = $1
			RETURNING created_at
		`, c.ID, c.UserID, c.SessionID, c.Total, c.UpdatedAt).Scan(&c.CreatedAt)
		if err != nil {
			return mapErr(err, "carrinho", c.ID)
		}
		saved, err = s.replaceCartItems(ctx, c)
		return err
	})
	return saved, err
}

func (s *Store) replaceCartItems(ctx context.Context, c carrinho.Carrinho) (carrinho.Carrinho, error) {
	if _, err := s.q(ctx).ExecContext(ctx, `DELETE FROM carrinho_itens WHERE carrinho_id = $1`, c.ID); err != nil {
		return carrinho.Carrinho{}, err
	}
	items := make([]carrinho.Item, 0, len(c.Itens))
	for _, it := range c.Itens {
		it.CarrinhoID = c.ID
		var err error
		if it.ID == 0 {
			err = s.q(ctx).QueryRowxContext(ctx, `
				INSERT INTO carrinho_itens (carrinho_id, produto_id, nome, quantidade, preco_unitario, subtotal)
				VALUES ($1, $2, $3, $4, $5, $6)
				RETURNING id
			`, it.CarrinhoID, it.ProdutoID, it.Nome, it.Quantidade, it.PrecoUnitario, it.Subtotal).Scan(&it.ID)
		} else {
			_, err = s.q(ctx).ExecContext(ctx, `
				INSERT INTO carrinho_itens (id, carrinho_id, produto_id, nome, quantidade, preco_unitario, subtotal)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, it.ID, it.CarrinhoID, it.ProdutoID, it.Nome, it.Quantidade, it.PrecoUnitario, it.Subtotal)
		}
		if err != nil {
			return carrinho.Carrinho{}, mapErr(err, "carrinho item", it.ProdutoID)
		}
		items = append(items, it)
	}
	c.Itens = items
	return c, nil
}

func (s *Store) GetCarrinho(ctx context.Context, id int64) (carrinho.Carrinho, error) {
	return s.getCarrinho(ctx, `SELECT `+carrinhoColumns+` FROM carrinhos WHERE id = $1`, id)
}

func (s *Store) GetCarrinhoByUser(ctx context.Context, userID int64) (carrinho.Carrinho, error) {
	return s.getCarrinho(ctx, `SELECT `+carrinhoColumns+` FROM carrinhos WHERE user_id = $1 ORDER BY id LIMIT 1`, userID)
}

func (s *Store) GetCarrinhoBySession(ctx context.Context, sessionID string) (carrinho.Carrinho, error) {
	return s.getCarrinho(ctx, `
		SELECT `+carrinhoColumns+` FROM carrinhos
		WHERE session_id = $1 AND session_id <> ''
		ORDER BY id LIMIT 1
	`, sessionID)
}

func (s *Store) GetCarrinhoByItem(ctx context.Context, itemID int64) (carrinho.Carrinho, error) {
	return s.getCarrinho(ctx, `
		SELECT c.id, c.user_id, c.session_id, c.total, c.created_at, c.updated_at
		FROM carrinhos c JOIN carrinho_itens i ON i.carrinho_id = c.id
		WHERE i.id = $1
	`, itemID)
}

func (s *Store) getCarrinho(ctx context.Context, query string, key interface{}) (carrinho.Carrinho, error) {
	var c carrinho.Carrinho
	if err := sqlx.GetContext(ctx, s.q(ctx), &c, query, key); err != nil {
		return carrinho.Carrinho{}, mapErr(err, "carrinho", key)
	}
	c.Itens = []carrinho.Item{}
	err := sqlx.SelectContext(ctx, s.q(ctx), &c.Itens, `
		SELECT id, carrinho_id, produto_id, nome, quantidade, preco_unitario, subtotal
		FROM carrinho_itens WHERE carrinho_id = $1 ORDER BY id
	`, c.ID)
	if err != nil {
		return carrinho.Carrinho{}, err
	}
	return c, nil
}

// --- PagamentoStore ----------------------------------------------------------

const pagamentoColumns = `id, pedido_id, metodo, valor_total, valor_recebido, troco, desconto, status, observacoes, created_at`

func (s *Store) CreatePagamento(ctx context.Context, p pagamento.Pagamento) (pagamento.Pagamento, error) {
	p.CreatedAt = time.Now().UTC()
	err := s.q(ctx).QueryRowxContext(ctx, `
		INSERT INTO pagamentos (pedido_id, metodo, valor_total, valor_recebido, troco, desconto, status, observacoes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, p.PedidoID, p.Metodo, p.ValorTotal, p.ValorRecebido, p.Troco, p.Desconto, p.Status, p.Observacoes, p.CreatedAt).Scan(&p.ID)
	if err != nil {
		return pagamento.Pagamento{}, mapErr(err, "pagamento for pedido", p.PedidoID)
	}
	return p, nil
}

func (s *Store) GetPagamentoByPedido(ctx context.Context, pedidoID int64) (pagamento.Pagamento, error) {
	var p pagamento.Pagamento
	err := sqlx.GetContext(ctx, s.q(ctx), &p, `SELECT `+pagamentoColumns+` FROM pagamentos WHERE pedido_id = $1`, pedidoID)
	return p, mapErr(err, "pagamento for pedido", pedidoID)
}
