package carrinho

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/happy-hops/choperia/internal/app/domain"
	"github.com/happy-hops/choperia/internal/app/domain/carrinho"
	"github.com/happy-hops/choperia/internal/app/domain/estoque"
	"github.com/happy-hops/choperia/internal/app/domain/pedido"
	estoquesvc "github.com/happy-hops/choperia/internal/app/services/estoque"
	lojasvc "github.com/happy-hops/choperia/internal/app/services/loja"
	pedidosvc "github.com/happy-hops/choperia/internal/app/services/pedidos"
	"github.com/happy-hops/choperia/internal/app/storage"
	"github.com/happy-hops/choperia/internal/errors"
	"github.com/happy-hops/choperia/pkg/logger"
)

// Service manages online shopping carts.
type Service struct {
	store   storage.CarrinhoStore
	catalog storage.CatalogStore
	tx      storage.Transactor
	estoque *estoquesvc.Service
	pedidos *pedidosvc.Service
	loja    *lojasvc.Service
	log     *logger.Logger
}

// New constructs a carrinho service.
func New(store storage.CarrinhoStore, catalog storage.CatalogStore, tx storage.Transactor, estoque *estoquesvc.Service, pedidos *pedidosvc.Service, loja *lojasvc.Service, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("carrinho")
	}
	return &Service{store: store, catalog: catalog, tx: tx, estoque: estoque, pedidos: pedidos, loja: loja, log: log}
}

// Owner identifies a cart by user or, for anonymous visitors, by session.
type Owner struct {
	UserID    int64
	SessionID string
}

func (o Owner) normalize() Owner {
	o.SessionID = strings.TrimSpace(o.SessionID)
	if o.UserID <= 0 && o.SessionID == "" {
		o.UserID = domain.FallbackUserID
	}
	return o
}

// Get returns the owner's cart, or an empty cart when there is none.
func (s *Service) Get(ctx context.Context, owner Owner) (carrinho.Carrinho, error) {
	c, err := s.find(ctx, owner.normalize())
	if stderrors.Is(err, storage.ErrNotFound) {
		return carrinho.Carrinho{Itens: []carrinho.Item{}}, nil
	}
	return c, err
}

func (s *Service) find(ctx context.Context, owner Owner) (carrinho.Carrinho, error) {
	if owner.UserID > 0 {
		c, err := s.store.GetCarrinhoByUser(ctx, owner.UserID)
		if err == nil || !stderrors.Is(err, storage.ErrNotFound) {
			return c, err
		}
	}
	if owner.SessionID != "" {
		return s.store.GetCarrinhoBySession(ctx, owner.SessionID)
	}
	return carrinho.Carrinho{}, storage.ErrNotFound
}

func (s *Service) findOrCreate(ctx context.Context, owner Owner) (carrinho.Carrinho, error) {
	c, err := s.find(ctx, owner)
	if err == nil {
		return c, nil
	}
	if !stderrors.Is(err, storage.ErrNotFound) {
		return carrinho.Carrinho{}, err
	}
	novo := carrinho.Carrinho{SessionID: owner.SessionID}
	if owner.UserID > 0 {
		id := owner.UserID
		novo.UserID = &id
	}
	return s.store.CreateCarrinho(ctx, novo)
}

// AddItemInput describes a product added to a cart. A nil PrecoUnitario
// keeps the line's price or uses the produto's sale price.
type AddItemInput struct {
	Owner
	ProdutoID     int64
	Quantidade    int
	PrecoUnitario *float64
}

// AddItem adds a produto to the owner's cart, creating the cart when needed.
// Adding a produto already in the cart increases its quantity. The line's
// quantity is held in stock until the reservation expires.
func (s *Service) AddItem(ctx context.Context, in AddItemInput) (carrinho.Carrinho, error) {
	if in.Quantidade == 0 {
		in.Quantidade = 1
	}
	if in.Quantidade < 0 {
		return carrinho.Carrinho{}, errors.BadRequest("quantidade deve ser maior que zero")
	}
	owner := in.Owner.normalize()

	var result carrinho.Carrinho
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		prod, err := s.catalog.GetProduto(ctx, in.ProdutoID)
		if err != nil {
			if stderrors.Is(err, storage.ErrNotFound) {
				return errors.NotFound("Produto")
			}
			return err
		}
		c, err := s.findOrCreate(ctx, owner)
		if err != nil {
			return err
		}

		idx := c.Find(prod.ID)
		if idx >= 0 {
			c.Itens[idx].Quantidade += in.Quantidade
			if in.PrecoUnitario != nil {
				c.Itens[idx].PrecoUnitario = *in.PrecoUnitario
			}
		} else {
			preco := prod.Venda
			if in.PrecoUnitario != nil {
				preco = *in.PrecoUnitario
			}
			c.Itens = append(c.Itens, carrinho.Item{ProdutoID: prod.ID, Nome: prod.Nome, Quantidade: in.Quantidade, PrecoUnitario: preco})
			idx = len(c.Itens) - 1
		}
		if err := s.checkStock(ctx, c.Itens[idx]); err != nil {
			return err
		}

		c.Recalculate()
		result, err = s.store.SaveCarrinho(ctx, c)
		if err != nil {
			return err
		}
		return s.reserveLine(ctx, result.Itens[result.Find(prod.ID)], owner.UserID)
	})
	if err != nil {
		return carrinho.Carrinho{}, err
	}
	s.log.WithField("carrinho_id", result.ID).WithField("produto_id", in.ProdutoID).Info("item added to carrinho")
	return result, nil
}

// UpdateQuantity sets a line's quantity. Zero or less removes the line.
func (s *Service) UpdateQuantity(ctx context.Context, itemID int64, quantidade int) (carrinho.Carrinho, error) {
	if quantidade <= 0 {
		return s.RemoveItem(ctx, itemID)
	}
	var result carrinho.Carrinho
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		c, idx, err := s.line(ctx, itemID)
		if err != nil {
			return err
		}
		c.Itens[idx].Quantidade = quantidade
		if err := s.checkStock(ctx, c.Itens[idx]); err != nil {
			return err
		}
		c.Recalculate()
		if result, err = s.store.SaveCarrinho(ctx, c); err != nil {
			return err
		}
		return s.reserveLine(ctx, c.Itens[idx], ownerID(c))
	})
	if err != nil {
		return carrinho.Carrinho{}, err
	}
	return result, nil
}

// RemoveItem drops a line and releases its reservation.
func (s *Service) RemoveItem(ctx context.Context, itemID int64) (carrinho.Carrinho, error) {
	var result carrinho.Carrinho
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		c, idx, err := s.line(ctx, itemID)
		if err != nil {
			return err
		}
		c.Itens = append(c.Itens[:idx], c.Itens[idx+1:]...)
		c.Recalculate()
		if result, err = s.store.SaveCarrinho(ctx, c); err != nil {
			return err
		}
		_, err = s.estoque.Liberar(ctx, lineFilter(itemID))
		return err
	})
	if err != nil {
		return carrinho.Carrinho{}, err
	}
	return result, nil
}

// Clear empties a cart and releases its reservations.
func (s *Service) Clear(ctx context.Context, cartID int64) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		c, err := s.store.GetCarrinho(ctx, cartID)
		if err != nil {
			if stderrors.Is(err, storage.ErrNotFound) {
				return errors.NotFound("Carrinho")
			}
			return err
		}
		return s.clear(ctx, c)
	})
}

// ClearFor empties the owner's cart, if any.
func (s *Service) ClearFor(ctx context.Context, owner Owner) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		c, err := s.find(ctx, owner.normalize())
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return s.clear(ctx, c)
	})
}

func (s *Service) clear(ctx context.Context, c carrinho.Carrinho) error {
	for _, it := range c.Itens {
		if _, err := s.estoque.Liberar(ctx, lineFilter(it.ID)); err != nil {
			return err
		}
	}
	c.Itens = nil
	c.Recalculate()
	if _, err := s.store.SaveCarrinho(ctx, c); err != nil {
		return err
	}
	s.log.WithField("carrinho_id", c.ID).Info("carrinho cleared")
	return nil
}

// CheckoutInput finalizes a cart.
type CheckoutInput struct {
	Owner
	Metodo      string
	Cupom       string
	NomeCliente string
	Observacoes string
}

// Checkout turns the owner's cart into an online pedido, applying the
// coupon when given, and empties the cart.
func (s *Service) Checkout(ctx context.Context, in CheckoutInput) (pedido.Pedido, error) {
	owner := in.Owner.normalize()
	var created pedido.Pedido
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		c, err := s.find(ctx, owner)
		if stderrors.Is(err, storage.ErrNotFound) || (err == nil && len(c.Itens) == 0) {
			return errors.BadRequest("Carrinho vazio")
		}
		if err != nil {
			return err
		}

		desconto := 0.0
		if codigo := strings.TrimSpace(in.Cupom); codigo != "" {
			if _, desconto, err = s.loja.ApplyCupom(ctx, codigo, c.Total); err != nil {
				return err
			}
		}
		// Cart holds are dropped before the pedido takes the stock out.
		for _, it := range c.Itens {
			if _, err := s.estoque.Liberar(ctx, lineFilter(it.ID)); err != nil {
				return err
			}
		}

		itens := make([]pedidosvc.ItemInput, 0, len(c.Itens))
		for _, it := range c.Itens {
			preco := it.PrecoUnitario
			itens = append(itens, pedidosvc.ItemInput{ProdutoID: it.ProdutoID, Quantidade: it.Quantidade, PrecoUnitario: &preco})
		}
		created, err = s.pedidos.Create(ctx, pedidosvc.CreateInput{
			Tipo:            pedido.TipoOnline,
			UserID:          ownerID(c),
			MetodoPagamento: in.Metodo,
			Desconto:        desconto,
			NomeCliente:     in.NomeCliente,
			Observacoes:     in.Observacoes,
			Itens:           itens,
		}, owner.UserID)
		if err != nil {
			return err
		}
		return s.clear(ctx, c)
	})
	if err != nil {
		return pedido.Pedido{}, err
	}
	s.log.WithField("pedido_id", created.ID).WithField("total", created.Total).Info("carrinho checked out")
	return created, nil
}

func (s *Service) line(ctx context.Context, itemID int64) (carrinho.Carrinho, int, error) {
	c, err := s.store.GetCarrinhoByItem(ctx, itemID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return carrinho.Carrinho{}, 0, errors.NotFound("Item")
		}
		return carrinho.Carrinho{}, 0, err
	}
	for i, it := range c.Itens {
		if it.ID == itemID {
			return c, i, nil
		}
	}
	return carrinho.Carrinho{}, 0, errors.NotFound("Item")
}

// checkStock verifies the line's new quantity fits in the stock not held by
// other reservations. The line's own hold counts as available.
func (s *Service) checkStock(ctx context.Context, it carrinho.Item) error {
	disponivel, err := s.estoque.Disponivel(ctx, it.ProdutoID)
	if err != nil {
		return err
	}
	if it.ID != 0 {
		held, err := s.estoque.ListReservas(ctx, estoque.ReservaFilter{ItemID: it.ID, Tipo: estoque.ReservaCarrinho, Status: estoque.ReservaAtiva})
		if err != nil {
			return err
		}
		for _, r := range held {
			disponivel += r.Quantidade
		}
	}
	if disponivel < it.Quantidade {
		return errors.BadRequest("estoque insuficiente").
			WithDetails("disponivel", disponivel).
			WithDetails("solicitado", it.Quantidade)
	}
	return nil
}

func (s *Service) reserveLine(ctx context.Context, it carrinho.Item, userID int64) error {
	if _, err := s.estoque.Liberar(ctx, lineFilter(it.ID)); err != nil {
		return err
	}
	itemID := it.ID
	_, err := s.estoque.Reservar(ctx, estoquesvc.ReservaInput{
		ProdutoID:  it.ProdutoID,
		Quantidade: it.Quantidade,
		Tipo:       estoque.ReservaCarrinho,
		UsuarioID:  userID,
		ItemID:     &itemID,
	})
	return err
}

func lineFilter(itemID int64) estoque.ReservaFilter {
	return estoque.ReservaFilter{ItemID: itemID, Tipo: estoque.ReservaCarrinho}
}

func ownerID(c carrinho.Carrinho) int64 {
	if c.UserID != nil {
		return *c.UserID
	}
	return domain.FallbackUserID
}
