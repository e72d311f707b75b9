package mesas

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/happy-hops/choperia/internal/app/domain"
	"github.com/happy-hops/choperia/internal/app/domain/catalog"
	"github.com/happy-hops/choperia/internal/app/domain/estoque"
	"github.com/happy-hops/choperia/internal/app/domain/mesa"
	"github.com/happy-hops/choperia/internal/app/domain/pagamento"
	"github.com/happy-hops/choperia/internal/app/domain/pedido"
	"github.com/happy-hops/choperia/internal/app/domain/user"
	"github.com/happy-hops/choperia/internal/app/metrics"
	"github.com/happy-hops/choperia/internal/app/services/auth"
	estoquesvc "github.com/happy-hops/choperia/internal/app/services/estoque"
	"github.com/happy-hops/choperia/internal/app/storage"
	"github.com/happy-hops/choperia/internal/errors"
	"github.com/happy-hops/choperia/pkg/logger"
)

// DefaultMetodo is used when a payment names no method.
const DefaultMetodo = "dinheiro"

// Publisher delivers mesa events to other terminals.
type Publisher interface {
	Publish(ctx context.Context, evt mesa.Event) mesa.Event
}

// Stores groups the persistence the mesas service works with.
type Stores struct {
	Mesas      storage.MesaStore
	Pedidos    storage.PedidoStore
	Catalog    storage.CatalogStore
	Users      storage.UserStore
	Pagamentos storage.PagamentoStore
	Tx         storage.Transactor
}

// Service runs the table workflow: opening a pedido on a mesa, adding and
// removing items, cancelling and settling the bill.
type Service struct {
	stores  Stores
	estoque *estoquesvc.Service
	events  Publisher
	log     *logger.Logger
}

// New constructs a mesas service. events may be nil.
func New(stores Stores, estoque *estoquesvc.Service, events Publisher, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("mesas")
	}
	return &Service{stores: stores, estoque: estoque, events: events, log: log}
}

// CreateInput carries the fields of a new mesa.
type CreateInput struct {
	Nome                 string
	Capacidade           int
	UsuarioResponsavelID *int64
	Observacoes          string
}

// Create registers a mesa. The slug is derived from the name and must be
// unique.
func (s *Service) Create(ctx context.Context, in CreateInput) (mesa.View, error) {
	nome := strings.TrimSpace(in.Nome)
	if nome == "" {
		return mesa.View{}, errors.BadRequest("nome é obrigatório")
	}
	capacidade := in.Capacidade
	if capacidade <= 0 {
		capacidade = mesa.DefaultCapacidade
	}
	m, err := s.stores.Mesas.CreateMesa(ctx, mesa.Mesa{
		Nome:                 nome,
		Slug:                 catalog.GenerateSlug(nome),
		Status:               mesa.StatusLivre,
		UsuarioResponsavelID: in.UsuarioResponsavelID,
		Capacidade:           capacidade,
		Observacoes:          strings.TrimSpace(in.Observacoes),
	})
	if err != nil {
		if stderrors.Is(err, storage.ErrConflict) {
			return mesa.View{}, errors.Conflict("Mesa já cadastrada")
		}
		return mesa.View{}, err
	}
	s.log.WithField("mesa_id", m.ID).WithField("slug", m.Slug).Info("mesa created")
	return mesa.NewView(m, nil), nil
}

// Get returns a mesa with its open pedido.
func (s *Service) Get(ctx context.Context, id int64) (mesa.View, error) {
	m, err := s.getMesa(ctx, id)
	if err != nil {
		return mesa.View{}, err
	}
	return s.view(ctx, m)
}

// GetBySlug returns a mesa by slug with its open pedido.
func (s *Service) GetBySlug(ctx context.Context, slug string) (mesa.View, error) {
	m, err := s.stores.Mesas.GetMesaBySlug(ctx, strings.TrimSpace(slug))
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return mesa.View{}, errors.NotFound("Mesa")
		}
		return mesa.View{}, err
	}
	return s.view(ctx, m)
}

// List returns every mesa with its open pedido.
func (s *Service) List(ctx context.Context) ([]mesa.View, error) {
	mesas, err := s.stores.Mesas.ListMesas(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]mesa.View, 0, len(mesas))
	for _, m := range mesas {
		v, err := s.view(ctx, m)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

// UpdateStatus sets the mesa status and notifies other terminals.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status mesa.Status, usuarioID int64) (mesa.View, error) {
	if !mesa.ValidStatus(status) {
		return mesa.View{}, errors.BadRequest("status inválido").WithDetails("status", status)
	}
	m, err := s.getMesa(ctx, id)
	if err != nil {
		return mesa.View{}, err
	}
	m.Status = status
	if status == mesa.StatusLivre {
		m.UsuarioResponsavelID = nil
	}
	m, err = s.stores.Mesas.UpdateMesa(ctx, m)
	if err != nil {
		return mesa.View{}, err
	}
	s.publish(ctx, mesa.EventUpdated, m, usuarioID)
	s.log.WithField("mesa_id", id).WithField("status", status).Info("mesa status updated")
	return s.view(ctx, m)
}

// AddItemInput describes an item added to a mesa's open pedido.
type AddItemInput struct {
	MesaID         int64
	ProdutoID      int64
	Quantidade     int
	UsuarioID      int64
	PrecoUnitario  *float64
	NumeroSugerido string
}

// AddItem adds a produto to the mesa's open pedido, opening one when the
// mesa has none. The quantity is reserved in stock.
func (s *Service) AddItem(ctx context.Context, in AddItemInput) (pedido.Pedido, mesa.View, error) {
	if in.Quantidade <= 0 {
		return pedido.Pedido{}, mesa.View{}, errors.BadRequest("quantidade deve ser maior que zero")
	}
	usuario := in.UsuarioID
	if usuario <= 0 {
		usuario = domain.FallbackUserID
	}

	var (
		result pedido.Pedido
		m      mesa.Mesa
		opened bool
	)
	err := s.stores.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		m, err = s.getMesa(ctx, in.MesaID)
		if err != nil {
			return err
		}
		prod, err := s.stores.Catalog.GetProduto(ctx, in.ProdutoID)
		if err != nil {
			if stderrors.Is(err, storage.ErrNotFound) {
				return errors.NotFound("Produto")
			}
			return err
		}
		disponivel, err := s.estoque.Disponivel(ctx, prod.ID)
		if err != nil {
			return err
		}
		if disponivel < in.Quantidade {
			return errors.BadRequest("estoque insuficiente").
				WithDetails("disponivel", disponivel).
				WithDetails("solicitado", in.Quantidade)
		}

		p, err := s.stores.Pedidos.GetOpenPedidoByMesa(ctx, m.ID)
		switch {
		case stderrors.Is(err, storage.ErrNotFound):
			p, err = s.openPedido(ctx, m.ID, usuario, strings.TrimSpace(in.NumeroSugerido))
			if err != nil {
				return err
			}
			m.Status = mesa.StatusOcupada
			responsavel := usuario
			m.UsuarioResponsavelID = &responsavel
			if m, err = s.stores.Mesas.UpdateMesa(ctx, m); err != nil {
				return err
			}
			opened = true
		case err != nil:
			return err
		}

		preco := prod.Venda
		if in.PrecoUnitario != nil {
			preco = *in.PrecoUnitario
		}
		item := pedido.NewItem(prod.ID, prod.Nome, in.Quantidade, preco)
		item.PedidoID = p.ID
		item, err = s.stores.Pedidos.AddPedidoItem(ctx, item)
		if err != nil {
			return err
		}

		mesaID, pedidoID, itemID := m.ID, p.ID, item.ID
		if _, err := s.estoque.Reservar(ctx, estoquesvc.ReservaInput{
			ProdutoID:  prod.ID,
			Quantidade: in.Quantidade,
			Tipo:       estoque.ReservaMesa,
			MesaID:     &mesaID,
			UsuarioID:  usuario,
			PedidoID:   &pedidoID,
			ItemID:     &itemID,
		}); err != nil {
			return err
		}

		result, err = s.recalculate(ctx, p.ID)
		return err
	})
	if err != nil {
		return pedido.Pedido{}, mesa.View{}, err
	}

	if opened {
		s.publish(ctx, mesa.EventOccupied, m, usuario)
	}
	s.log.WithField("mesa_id", m.ID).
		WithField("pedido_id", result.ID).
		WithField("produto_id", in.ProdutoID).
		WithField("quantidade", in.Quantidade).
		Info("item added to mesa")
	return result, mesa.NewView(m, &result), nil
}

func (s *Service) openPedido(ctx context.Context, mesaID, usuario int64, sugerido string) (pedido.Pedido, error) {
	p := pedido.Pedido{
		Tipo:   pedido.TipoFisica,
		Status: pedido.StatusPendente,
		MesaID: &mesaID,
		UserID: usuario,
	}
	if sugerido != "" {
		p.Numero = sugerido
		created, err := s.stores.Pedidos.CreatePedido(ctx, p)
		if err == nil {
			metrics.RecordPedidoCreated(string(created.Tipo))
			return created, nil
		}
		if !stderrors.Is(err, storage.ErrConflict) {
			return pedido.Pedido{}, err
		}
		s.log.WithField("numero", sugerido).Warn("suggested numero taken, using next sequential")
	}
	numeros, err := s.stores.Pedidos.ListPedidoNumeros(ctx)
	if err != nil {
		return pedido.Pedido{}, err
	}
	p.Numero = pedido.NextNumero(numeros)
	created, err := s.stores.Pedidos.CreatePedido(ctx, p)
	if err != nil {
		if stderrors.Is(err, storage.ErrConflict) {
			return pedido.Pedido{}, errors.Conflict("Número de pedido já utilizado")
		}
		return pedido.Pedido{}, err
	}
	metrics.RecordPedidoCreated(string(created.Tipo))
	return created, nil
}

// RemoveItem deletes an item from its pedido and releases its reservation.
func (s *Service) RemoveItem(ctx context.Context, itemID int64) (pedido.Pedido, error) {
	var result pedido.Pedido
	err := s.stores.Tx.WithinTx(ctx, func(ctx context.Context) error {
		item, err := s.stores.Pedidos.GetPedidoItem(ctx, itemID)
		if err != nil {
			if stderrors.Is(err, storage.ErrNotFound) {
				return errors.NotFound("Item")
			}
			return err
		}
		if err := s.stores.Pedidos.DeletePedidoItem(ctx, itemID); err != nil {
			return err
		}
		if _, err := s.estoque.Liberar(ctx, estoque.ReservaFilter{ItemID: itemID, Tipo: estoque.ReservaMesa}); err != nil {
			return err
		}
		result, err = s.recalculate(ctx, item.PedidoID)
		return err
	})
	if err != nil {
		return pedido.Pedido{}, err
	}
	s.log.WithField("item_id", itemID).WithField("pedido_id", result.ID).Info("item removed")
	return result, nil
}

// CancelPedido drops the mesa's open pedido, releases its reservations and
// frees the mesa. Open pedidos never took stock out, so nothing is returned.
func (s *Service) CancelPedido(ctx context.Context, mesaID, usuarioID int64) error {
	if usuarioID <= 0 {
		usuarioID = domain.FallbackUserID
	}
	var m mesa.Mesa
	err := s.stores.Tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.currentPedido(ctx, mesaID)
		if err != nil {
			return err
		}
		if _, err := s.estoque.Liberar(ctx, estoque.ReservaFilter{PedidoID: p.ID}); err != nil {
			return err
		}
		if err := s.stores.Pedidos.DeletePedido(ctx, p.ID); err != nil {
			return err
		}

		m, err = s.getMesa(ctx, mesaID)
		if err != nil {
			return err
		}
		m.Free()
		m, err = s.stores.Mesas.UpdateMesa(ctx, m)
		return err
	})
	if err != nil {
		return err
	}
	s.publish(ctx, mesa.EventFreed, m, usuarioID)
	s.log.WithField("mesa_id", mesaID).Info("mesa pedido cancelled")
	return nil
}

// PagamentoInput settles a mesa's bill. A nil Total charges the pedido
// total less Desconto. The charged amount becomes the pedido total.
type PagamentoInput struct {
	MesaID        int64
	Metodo        string
	Total         *float64
	UsuarioID     int64
	ValorRecebido *float64
	Desconto      float64
	Observacoes   string
}

// ProcessPagamento takes the open pedido's items out of stock, records a
// confirmed payment, closes the pedido and frees the mesa.
func (s *Service) ProcessPagamento(ctx context.Context, in PagamentoInput) (pagamento.Pagamento, mesa.View, error) {
	metodo := strings.ToLower(strings.TrimSpace(in.Metodo))
	if metodo == "" {
		metodo = DefaultMetodo
	}
	if in.Desconto < 0 {
		return pagamento.Pagamento{}, mesa.View{}, errors.BadRequest("desconto inválido")
	}
	usuario := in.UsuarioID
	if usuario <= 0 {
		usuario = domain.FallbackUserID
	}

	var (
		pag pagamento.Pagamento
		m   mesa.Mesa
	)
	err := s.stores.Tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.currentPedido(ctx, in.MesaID)
		if err != nil {
			return err
		}

		valor := p.Total - in.Desconto
		if in.Total != nil {
			valor = *in.Total
		}
		if valor < 0 {
			valor = 0
		}
		valor = domain.RoundMoney(valor)
		novo := pagamento.Pagamento{
			PedidoID:    p.ID,
			Metodo:      metodo,
			ValorTotal:  valor,
			Desconto:    domain.RoundMoney(in.Desconto),
			Status:      pagamento.StatusConfirmado,
			Observacoes: strings.TrimSpace(in.Observacoes),
		}
		if in.ValorRecebido != nil {
			if *in.ValorRecebido < valor {
				return errors.BadRequest("valor recebido menor que o total").WithDetails("total", valor)
			}
			novo.ValorRecebido = domain.RoundMoney(*in.ValorRecebido)
			novo.Troco = domain.RoundMoney(*in.ValorRecebido - valor)
		}

		pedidoID := p.ID
		for _, it := range p.Itens {
			if _, err := s.estoque.CreateMovimentacao(ctx, estoquesvc.MovimentacaoInput{
				ProdutoID:   it.ProdutoID,
				Quantidade:  it.Quantidade,
				Tipo:        estoque.TipoSaida,
				Origem:      estoque.OrigemVendaFisica,
				UsuarioID:   usuario,
				PedidoID:    &pedidoID,
				Observacoes: "Pedido " + p.Numero,
			}); err != nil && !errors.Is(err, errors.CodeNotFound) {
				return err
			}
		}
		if _, err := s.estoque.ConfirmarReservas(ctx, estoque.ReservaFilter{PedidoID: p.ID}); err != nil {
			return err
		}

		pag, err = s.stores.Pagamentos.CreatePagamento(ctx, novo)
		if err != nil {
			if stderrors.Is(err, storage.ErrConflict) {
				return errors.Conflict("Pedido já pago")
			}
			return err
		}

		p.Status = pedido.StatusEntregue
		p.MetodoPagamento = metodo
		p.Desconto = novo.Desconto
		p.Total = valor
		if _, err := s.stores.Pedidos.UpdatePedido(ctx, p); err != nil {
			return err
		}

		m, err = s.getMesa(ctx, in.MesaID)
		if err != nil {
			return err
		}
		m.Free()
		m, err = s.stores.Mesas.UpdateMesa(ctx, m)
		return err
	})
	if err != nil {
		return pagamento.Pagamento{}, mesa.View{}, err
	}

	metrics.RecordPagamento(pag.Metodo, pag.ValorTotal)
	s.publish(ctx, mesa.EventFreed, m, usuario)
	s.log.WithField("mesa_id", in.MesaID).
		WithField("pedido_id", pag.PedidoID).
		WithField("metodo", pag.Metodo).
		WithField("valor", pag.ValorTotal).
		Info("mesa pagamento processed")
	return pag, mesa.NewView(m, nil), nil
}

// Transfer hands the mesa to another user. Only admins and store staff may
// assign mesas.
func (s *Service) Transfer(ctx context.Context, mesaID, toUserID int64, acting user.User) (mesa.View, error) {
	if !auth.CanAssignUser(acting) {
		return mesa.View{}, errors.Forbidden("Sem permissão para transferir mesas")
	}
	target, err := s.stores.Users.GetUser(ctx, toUserID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return mesa.View{}, errors.NotFound("Usuário")
		}
		return mesa.View{}, err
	}
	m, err := s.getMesa(ctx, mesaID)
	if err != nil {
		return mesa.View{}, err
	}
	id := target.ID
	m.UsuarioResponsavelID = &id
	m, err = s.stores.Mesas.UpdateMesa(ctx, m)
	if err != nil {
		return mesa.View{}, err
	}
	s.publish(ctx, mesa.EventTransferred, m, acting.ID)
	s.log.WithField("mesa_id", mesaID).WithField("to_user", toUserID).Info("mesa transferred")
	return s.view(ctx, m)
}

// Delete removes a mesa that has no open pedido.
func (s *Service) Delete(ctx context.Context, mesaID int64) error {
	return s.stores.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.getMesa(ctx, mesaID); err != nil {
			return err
		}
		_, err := s.stores.Pedidos.GetOpenPedidoByMesa(ctx, mesaID)
		if err == nil {
			return errors.Conflict("Mesa possui pedido em aberto")
		}
		if !stderrors.Is(err, storage.ErrNotFound) {
			return err
		}
		if err := s.stores.Mesas.DeleteMesa(ctx, mesaID); err != nil {
			return err
		}
		s.log.WithField("mesa_id", mesaID).Info("mesa deleted")
		return nil
	})
}

func (s *Service) getMesa(ctx context.Context, id int64) (mesa.Mesa, error) {
	m, err := s.stores.Mesas.GetMesa(ctx, id)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return mesa.Mesa{}, errors.NotFound("Mesa")
		}
		return mesa.Mesa{}, err
	}
	return m, nil
}

func (s *Service) currentPedido(ctx context.Context, mesaID int64) (pedido.Pedido, error) {
	p, err := s.stores.Pedidos.GetOpenPedidoByMesa(ctx, mesaID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return pedido.Pedido{}, errors.NotFound("Pedido em aberto")
		}
		return pedido.Pedido{}, err
	}
	return p, nil
}

func (s *Service) view(ctx context.Context, m mesa.Mesa) (mesa.View, error) {
	p, err := s.stores.Pedidos.GetOpenPedidoByMesa(ctx, m.ID)
	if stderrors.Is(err, storage.ErrNotFound) {
		return mesa.NewView(m, nil), nil
	}
	if err != nil {
		return mesa.View{}, err
	}
	return mesa.NewView(m, &p), nil
}

func (s *Service) recalculate(ctx context.Context, pedidoID int64) (pedido.Pedido, error) {
	p, err := s.stores.Pedidos.GetPedido(ctx, pedidoID)
	if err != nil {
		return pedido.Pedido{}, err
	}
	p.Recalculate()
	return s.stores.Pedidos.UpdatePedido(ctx, p)
}

func (s *Service) publish(ctx context.Context, t mesa.EventType, m mesa.Mesa, usuarioID int64) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, mesa.Event{Type: t, Mesa: m, User: mesa.Actor{ID: usuarioID}})
}
