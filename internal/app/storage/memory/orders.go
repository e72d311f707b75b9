package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/happy-hops/choperia/internal/app/domain/carrinho"
	"github.com/happy-hops/choperia/internal/app/domain/estoque"
	"github.com/happy-hops/choperia/internal/app/domain/loja"
	"github.com/happy-hops/choperia/internal/app/domain/pagamento"
	"github.com/happy-hops/choperia/internal/app/domain/pedido"
)

// PedidoStore implementation --------------------------------------------------

func (s *Store) CreatePedido(_ context.Context, p pedido.Pedido) (pedido.Pedido, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.pedidos {
		if existing.Numero == p.Numero {
			return pedido.Pedido{}, conflict("pedido numero %s already exists", p.Numero)
		}
	}

	p.ID = s.nextIDLocked("pedidos")
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	p.MesaID = cloneID(p.MesaID)
	p.AtendenteID = cloneID(p.AtendenteID)

	items := p.Itens
	p.Itens = nil
	s.pedidos[p.ID] = p
	for _, it := range items {
		it.ID = s.nextIDLocked("pedido_itens")
		it.PedidoID = p.ID
		s.pedidoItens[it.ID] = it
	}
	return s.pedidoWithItemsLocked(p), nil
}

func (s *Store) UpdatePedido(_ context.Context, p pedido.Pedido) (pedido.Pedido, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.pedidos[p.ID]
	if !ok {
		return pedido.Pedido{}, notFound("pedido", p.ID)
	}
	p.CreatedAt = original.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	p.MesaID = cloneID(p.MesaID)
	p.AtendenteID = cloneID(p.AtendenteID)
	p.Itens = nil
	s.pedidos[p.ID] = p
	return s.pedidoWithItemsLocked(p), nil
}

func (s *Store) GetPedido(_ context.Context, id int64) (pedido.Pedido, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.pedidos[id]
	if !ok {
		return pedido.Pedido{}, notFound("pedido", id)
	}
	return s.pedidoWithItemsLocked(p), nil
}

func (s *Store) GetOpenPedidoByMesa(_ context.Context, mesaID int64) (pedido.Pedido, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *pedido.Pedido
	for _, p := range s.pedidos {
		if p.MesaID == nil || *p.MesaID != mesaID || !p.Status.Open() {
			continue
		}
		if found == nil || p.ID < found.ID {
			p := p
			found = &p
		}
	}
	if found == nil {
		return pedido.Pedido{}, notFound("open pedido for mesa", mesaID)
	}
	return s.pedidoWithItemsLocked(*found), nil
}

func (s *Store) ListPedidos(_ context.Context, filter pedido.Filter) ([]pedido.Pedido, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]pedido.Pedido, 0, len(s.pedidos))
	for _, p := range s.pedidos {
		if filter.Tipo != "" && p.Tipo != filter.Tipo {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.MesaID != 0 && (p.MesaID == nil || *p.MesaID != filter.MesaID) {
			continue
		}
		if !filter.Since.IsZero() && p.CreatedAt.Before(filter.Since) {
			continue
		}
		result = append(result, s.pedidoWithItemsLocked(p))
	}
	// Newest first.
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (s *Store) ListPedidoNumeros(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	numeros := make([]string, 0, len(s.pedidos))
	for _, p := range s.pedidos {
		numeros = append(numeros, p.Numero)
	}
	return numeros, nil
}

func (s *Store) DeletePedido(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pedidos[id]; !ok {
		return notFound("pedido", id)
	}
	delete(s.pedidos, id)
	for itemID, it := range s.pedidoItens {
		if it.PedidoID == id {
			delete(s.pedidoItens, itemID)
		}
	}
	return nil
}

func (s *Store) AddPedidoItem(_ context.Context, item pedido.Item) (pedido.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pedidos[item.PedidoID]; !ok {
		return pedido.Item{}, notFound("pedido", item.PedidoID)
	}
	item.ID = s.nextIDLocked("pedido_itens")
	s.pedidoItens[item.ID] = item
	return item, nil
}

func (s *Store) GetPedidoItem(_ context.Context, id int64) (pedido.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it, ok := s.pedidoItens[id]
	if !ok {
		return pedido.Item{}, notFound("pedido item", id)
	}
	return it, nil
}

func (s *Store) DeletePedidoItem(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pedidoItens[id]; !ok {
		return notFound("pedido item", id)
	}
	delete(s.pedidoItens, id)
	return nil
}

func (s *Store) pedidoWithItemsLocked(p pedido.Pedido) pedido.Pedido {
	p.MesaID = cloneID(p.MesaID)
	p.AtendenteID = cloneID(p.AtendenteID)
	p.Itens = []pedido.Item{}
	for _, it := range s.pedidoItens {
		if it.PedidoID == p.ID {
			p.Itens = append(p.Itens, it)
		}
	}
	sort.Slice(p.Itens, func(i, j int) bool { return p.Itens[i].ID < p.Itens[j].ID })
	return p
}

// EstoqueStore implementation -------------------------------------------------

func (s *Store) ApplyMovimentacao(_ context.Context, mov estoque.Movimentacao) (estoque.Movimentacao, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	produto, ok := s.produtos[mov.ProdutoID]
	if !ok {
		return estoque.Movimentacao{}, notFound("produto", mov.ProdutoID)
	}

	mov.QuantidadeAnterior = produto.Estoque
	mov.QuantidadeNova = estoque.Apply(produto.Estoque, mov.Tipo, mov.Quantidade)
	produto.Estoque = mov.QuantidadeNova
	produto.UpdatedAt = time.Now().UTC()
	s.produtos[produto.ID] = produto

	mov.ID = s.nextIDLocked("movimentacoes")
	mov.CreatedAt = time.Now().UTC()
	mov.PedidoID = cloneID(mov.PedidoID)
	s.movs[mov.ID] = mov
	return mov, nil
}

func (s *Store) ListMovimentacoes(_ context.Context, produtoID int64) ([]estoque.Movimentacao, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []estoque.Movimentacao
	for _, mov := range s.movs {
		if produtoID != 0 && mov.ProdutoID != produtoID {
			continue
		}
		result = append(result, mov)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) CreateReserva(_ context.Context, r estoque.Reserva) (estoque.Reserva, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.produtos[r.ProdutoID]; !ok {
		return estoque.Reserva{}, notFound("produto", r.ProdutoID)
	}
	r.ID = s.nextIDLocked("reservas")
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
	s.reservas[r.ID] = cloneReserva(r)
	return cloneReserva(r), nil
}

func (s *Store) UpdateReserva(_ context.Context, r estoque.Reserva) (estoque.Reserva, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.reservas[r.ID]
	if !ok {
		return estoque.Reserva{}, notFound("reserva", r.ID)
	}
	r.CreatedAt = original.CreatedAt
	r.UpdatedAt = time.Now().UTC()
	s.reservas[r.ID] = cloneReserva(r)
	return cloneReserva(r), nil
}

func (s *Store) GetReserva(_ context.Context, id int64) (estoque.Reserva, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reservas[id]
	if !ok {
		return estoque.Reserva{}, notFound("reserva", id)
	}
	return cloneReserva(r), nil
}

func (s *Store) ListReservas(_ context.Context, filter estoque.ReservaFilter) ([]estoque.Reserva, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []estoque.Reserva
	for _, r := range s.reservas {
		if filter.ProdutoID != 0 && r.ProdutoID != filter.ProdutoID {
			continue
		}
		if filter.MesaID != 0 && (r.MesaID == nil || *r.MesaID != filter.MesaID) {
			continue
		}
		if filter.PedidoID != 0 && (r.PedidoID == nil || *r.PedidoID != filter.PedidoID) {
			continue
		}
		if filter.ItemID != 0 && (r.ItemID == nil || *r.ItemID != filter.ItemID) {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.Tipo != "" && r.Tipo != filter.Tipo {
			continue
		}
		result = append(result, cloneReserva(r))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func cloneReserva(r estoque.Reserva) estoque.Reserva {
	r.MesaID = cloneID(r.MesaID)
	r.PedidoID = cloneID(r.PedidoID)
	r.ItemID = cloneID(r.ItemID)
	if r.ExpiraEm != nil {
		t := *r.ExpiraEm
		r.ExpiraEm = &t
	}
	return r
}

// LojaStore implementation ----------------------------------------------------

func (s *Store) CreateFavorito(_ context.Context, f loja.Favorito) (loja.Favorito, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.favoritos {
		if existing.UserID == f.UserID && existing.ProdutoID == f.ProdutoID {
			return loja.Favorito{}, conflict("favorito %d/%d already exists", f.UserID, f.ProdutoID)
		}
	}
	f.ID = s.nextIDLocked("favoritos")
	f.CreatedAt = time.Now().UTC()
	s.favoritos[f.ID] = f
	return f, nil
}

func (s *Store) GetFavorito(_ context.Context, userID, produtoID int64) (loja.Favorito, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, f := range s.favoritos {
		if f.UserID == userID && f.ProdutoID == produtoID {
			return f, nil
		}
	}
	return loja.Favorito{}, notFound("favorito", produtoID)
}

func (s *Store) ListFavoritos(_ context.Context, userID int64) ([]loja.Favorito, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []loja.Favorito
	for _, f := range s.favoritos {
		if f.UserID == userID {
			result = append(result, f)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) DeleteFavorito(_ context.Context, userID, produtoID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, f := range s.favoritos {
		if f.UserID == userID && f.ProdutoID == produtoID {
			delete(s.favoritos, id)
			return nil
		}
	}
	return notFound("favorito", produtoID)
}

// SaveAvaliacao creates the rating or replaces the user's existing one for
// the same product.
func (s *Store) SaveAvaliacao(_ context.Context, a loja.Avaliacao) (loja.Avaliacao, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for id, existing := range s.avaliacoes {
		if existing.UserID == a.UserID && existing.ProdutoID == a.ProdutoID {
			a.ID = id
			a.CreatedAt = existing.CreatedAt
			a.UpdatedAt = now
			s.avaliacoes[id] = a
			return a, nil
		}
	}
	a.ID = s.nextIDLocked("avaliacoes")
	a.CreatedAt = now
	a.UpdatedAt = now
	s.avaliacoes[a.ID] = a
	return a, nil
}

func (s *Store) ListAvaliacoes(_ context.Context, produtoID int64) ([]loja.Avaliacao, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []loja.Avaliacao
	for _, a := range s.avaliacoes {
		if a.ProdutoID == produtoID {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) DeleteAvaliacao(_ context.Context, userID, produtoID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, a := range s.avaliacoes {
		if a.UserID == userID && a.ProdutoID == produtoID {
			delete(s.avaliacoes, id)
			return nil
		}
	}
	return notFound("avaliacao", produtoID)
}

func (s *Store) CreateCupom(_ context.Context, c loja.Cupom) (loja.Cupom, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.cupons {
		if strings.EqualFold(existing.Codigo, c.Codigo) {
			return loja.Cupom{}, conflict("cupom %s already exists", c.Codigo)
		}
	}
	c.ID = s.nextIDLocked("cupons")
	c.CreatedAt = time.Now().UTC()
	s.cupons[c.ID] = c
	return c, nil
}

func (s *Store) UpdateCupom(_ context.Context, c loja.Cupom) (loja.Cupom, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.cupons[c.ID]
	if !ok {
		return loja.Cupom{}, notFound("cupom", c.ID)
	}
	c.CreatedAt = original.CreatedAt
	s.cupons[c.ID] = c
	return c, nil
}

func (s *Store) GetCupomByCodigo(_ context.Context, codigo string) (loja.Cupom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.cupons {
		if strings.EqualFold(c.Codigo, codigo) {
			return c, nil
		}
	}
	return loja.Cupom{}, notFound("cupom", codigo)
}

// CarrinhoStore implementation ------------------------------------------------

func (s *Store) CreateCarrinho(_ context.Context, c carrinho.Carrinho) (carrinho.Carrinho, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.ID = s.nextIDLocked("carrinhos")
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	return s.saveCarrinhoLocked(c), nil
}

func (s *Store) SaveCarrinho(_ context.Context, c carrinho.Carrinho) (carrinho.Carrinho, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.carrinhos[c.ID]
	if !ok {
		return carrinho.Carrinho{}, notFound("carrinho", c.ID)
	}
	c.CreatedAt = original.CreatedAt
	c.UpdatedAt = time.Now().UTC()
	return s.saveCarrinhoLocked(c), nil
}

func (s *Store) saveCarrinhoLocked(c carrinho.Carrinho) carrinho.Carrinho {
	for id, it := range s.cartItens {
		if it.CarrinhoID == c.ID {
			delete(s.cartItens, id)
		}
	}
	for _, it := range c.Itens {
		if it.ID == 0 {
			it.ID = s.nextIDLocked("carrinho_itens")
		}
		it.CarrinhoID = c.ID
		s.cartItens[it.ID] = it
	}
	c.Itens = nil
	c.UserID = cloneID(c.UserID)
	s.carrinhos[c.ID] = c
	return s.carrinhoWithItemsLocked(c)
}

func (s *Store) GetCarrinho(_ context.Context, id int64) (carrinho.Carrinho, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.carrinhos[id]
	if !ok {
		return carrinho.Carrinho{}, notFound("carrinho", id)
	}
	return s.carrinhoWithItemsLocked(c), nil
}

func (s *Store) GetCarrinhoByUser(_ context.Context, userID int64) (carrinho.Carrinho, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.sortedCarrinhosLocked() {
		if c.UserID != nil && *c.UserID == userID {
			return s.carrinhoWithItemsLocked(c), nil
		}
	}
	return carrinho.Carrinho{}, notFound("carrinho for user", userID)
}

func (s *Store) GetCarrinhoBySession(_ context.Context, sessionID string) (carrinho.Carrinho, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.sortedCarrinhosLocked() {
		if sessionID != "" && c.SessionID == sessionID {
			return s.carrinhoWithItemsLocked(c), nil
		}
	}
	return carrinho.Carrinho{}, notFound("carrinho for session", sessionID)
}

func (s *Store) GetCarrinhoByItem(_ context.Context, itemID int64) (carrinho.Carrinho, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it, ok := s.cartItens[itemID]
	if !ok {
		return carrinho.Carrinho{}, notFound("carrinho item", itemID)
	}
	c, ok := s.carrinhos[it.CarrinhoID]
	if !ok {
		return carrinho.Carrinho{}, notFound("carrinho", it.CarrinhoID)
	}
	return s.carrinhoWithItemsLocked(c), nil
}

func (s *Store) sortedCarrinhosLocked() []carrinho.Carrinho {
	result := make([]carrinho.Carrinho, 0, len(s.carrinhos))
	for _, c := range s.carrinhos {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (s *Store) carrinhoWithItemsLocked(c carrinho.Carrinho) carrinho.Carrinho {
	c.UserID = cloneID(c.UserID)
	c.Itens = []carrinho.Item{}
	for _, it := range s.cartItens {
		if it.CarrinhoID == c.ID {
			c.Itens = append(c.Itens, it)
		}
	}
	sort.Slice(c.Itens, func(i, j int) bool { return c.Itens[i].ID < c.Itens[j].ID })
	return c
}

// PagamentoStore implementation -----------------------------------------------

func (s *Store) CreatePagamento(_ context.Context, p pagamento.Pagamento) (pagamento.Pagamento, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.pagamentos {
		if existing.PedidoID == p.PedidoID {
			return pagamento.Pagamento{}, conflict("pedido %d already paid", p.PedidoID)
		}
	}
	p.ID = s.nextIDLocked("pagamentos")
	p.CreatedAt = time.Now().UTC()
	s.pagamentos[p.ID] = p
	return p, nil
}

func (s *Store) GetPagamentoByPedido(_ context.Context, pedidoID int64) (pagamento.Pagamento, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.pagamentos {
		if p.PedidoID == pedidoID {
			return p, nil
		}
	}
	return pagamento.Pagamento{}, notFound("pagamento for pedido", pedidoID)
}
