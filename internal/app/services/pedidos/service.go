package pedidos

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/happy-hops/choperia/internal/app/domain"
	"github.com/happy-hops/choperia/internal/app/domain/estoque"
	"github.com/happy-hops/choperia/internal/app/domain/mesa"
	"github.com/happy-hops/choperia/internal/app/domain/pedido"
	"github.com/happy-hops/choperia/internal/app/metrics"
	estoquesvc "github.com/happy-hops/choperia/internal/app/services/estoque"
	"github.com/happy-hops/choperia/internal/app/storage"
	"github.com/happy-hops/choperia/internal/errors"
	"github.com/happy-hops/choperia/pkg/logger"
)

// DefaultListLimit bounds pedido listings when no limit is given.
const DefaultListLimit = 100

// numeroAttempts bounds retries when a concurrent create takes the same
// sequential number.
const numeroAttempts = 3

// Publisher delivers mesa events to other terminals.
type Publisher interface {
	Publish(ctx context.Context, evt mesa.Event) mesa.Event
}

// Stores groups the persistence the pedidos service works with.
type Stores struct {
	Pedidos storage.PedidoStore
	Mesas   storage.MesaStore
	Catalog storage.CatalogStore
	Tx      storage.Transactor
}

// Service creates orders and drives their status.
type Service struct {
	stores  Stores
	estoque *estoquesvc.Service
	events  Publisher
	log     *logger.Logger
}

// New constructs a pedidos service. events may be nil.
func New(stores Stores, estoque *estoquesvc.Service, events Publisher, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("pedidos")
	}
	return &Service{stores: stores, estoque: estoque, events: events, log: log}
}

// ItemInput is a requested order line. A nil PrecoUnitario uses the
// produto's sale price.
type ItemInput struct {
	ProdutoID     int64
	Quantidade    int
	PrecoUnitario *float64
}

// CreateInput is a normalized order request.
type CreateInput struct {
	Tipo            pedido.Tipo
	UserID          int64
	Numero          string
	Status          pedido.Status
	MetodoPagamento string
	Desconto        float64
	MesaID          *int64
	AtendenteID     *int64
	NomeCliente     string
	Observacoes     string
	Itens           []ItemInput
}

// Create places an order. Unknown produtos are skipped. Online orders take
// their items out of stock immediately.
func (s *Service) Create(ctx context.Context, in CreateInput, usuarioID int64) (pedido.Pedido, error) {
	tipo := pedido.Tipo(strings.ToLower(strings.TrimSpace(string(in.Tipo))))
	if tipo == "" {
		tipo = pedido.TipoOnline
		if in.MesaID != nil && *in.MesaID > 0 {
			tipo = pedido.TipoFisica
		}
	}
	if tipo != pedido.TipoOnline && tipo != pedido.TipoFisica {
		return pedido.Pedido{}, errors.BadRequest("tipo de pedido inválido")
	}
	status := in.Status
	if status == "" {
		status = pedido.StatusPendente
	}
	if !pedido.ValidStatus(status) {
		return pedido.Pedido{}, errors.BadRequest("status inválido")
	}
	if in.Desconto < 0 {
		return pedido.Pedido{}, errors.BadRequest("desconto inválido")
	}
	userID := in.UserID
	if userID <= 0 {
		userID = usuarioID
	}
	if userID <= 0 {
		userID = domain.FallbackUserID
	}
	if in.MesaID != nil {
		if _, err := s.stores.Mesas.GetMesa(ctx, *in.MesaID); err != nil {
			if stderrors.Is(err, storage.ErrNotFound) {
				return pedido.Pedido{}, errors.NotFound("Mesa")
			}
			return pedido.Pedido{}, err
		}
	}

	p := pedido.Pedido{
		Tipo:            tipo,
		UserID:          userID,
		Status:          status,
		MetodoPagamento: strings.TrimSpace(in.MetodoPagamento),
		Desconto:        domain.RoundMoney(in.Desconto),
		MesaID:          in.MesaID,
		AtendenteID:     in.AtendenteID,
		NomeCliente:     strings.TrimSpace(in.NomeCliente),
		Observacoes:     strings.TrimSpace(in.Observacoes),
	}
	for _, it := range in.Itens {
		if it.Quantidade <= 0 {
			return pedido.Pedido{}, errors.BadRequest("quantidade deve ser maior que zero")
		}
		prod, err := s.stores.Catalog.GetProduto(ctx, it.ProdutoID)
		if stderrors.Is(err, storage.ErrNotFound) {
			s.log.WithField("produto_id", it.ProdutoID).Warn("skipping unknown produto")
			continue
		}
		if err != nil {
			return pedido.Pedido{}, err
		}
		preco := prod.Venda
		if it.PrecoUnitario != nil {
			preco = *it.PrecoUnitario
		}
		p.Itens = append(p.Itens, pedido.NewItem(prod.ID, prod.Nome, it.Quantidade, preco))
	}
	p.Recalculate()

	suggested := strings.TrimSpace(in.Numero)
	var created pedido.Pedido
	err := s.stores.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		created, err = s.insert(ctx, p, suggested)
		if err != nil {
			return err
		}
		if created.Tipo != pedido.TipoOnline {
			return nil
		}
		for _, it := range created.Itens {
			pedidoID := created.ID
			if _, err := s.estoque.CreateMovimentacao(ctx, estoquesvc.MovimentacaoInput{
				ProdutoID:   it.ProdutoID,
				Quantidade:  it.Quantidade,
				Tipo:        estoque.TipoSaida,
				Origem:      estoque.OrigemVendaOnline,
				UsuarioID:   created.UserID,
				PedidoID:    &pedidoID,
				Observacoes: "Pedido " + created.Numero,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return pedido.Pedido{}, err
	}

	metrics.RecordPedidoCreated(string(created.Tipo))
	s.log.WithField("pedido_id", created.ID).
		WithField("numero", created.Numero).
		WithField("tipo", created.Tipo).
		WithField("total", created.Total).
		Info("pedido created")
	return created, nil
}

// insert stores p under the suggested numero, or the next sequential one,
// retrying when a concurrent create claims the same number.
func (s *Service) insert(ctx context.Context, p pedido.Pedido, suggested string) (pedido.Pedido, error) {
	if suggested != "" {
		p.Numero = suggested
		created, err := s.stores.Pedidos.CreatePedido(ctx, p)
		if stderrors.Is(err, storage.ErrConflict) {
			return pedido.Pedido{}, errors.Conflict("Número de pedido já utilizado")
		}
		return created, err
	}

	var lastErr error
	for attempt := 0; attempt < numeroAttempts; attempt++ {
		numero, err := s.NextNumero(ctx)
		if err != nil {
			return pedido.Pedido{}, err
		}
		p.Numero = numero
		created, err := s.stores.Pedidos.CreatePedido(ctx, p)
		if err == nil {
			return created, nil
		}
		if !stderrors.Is(err, storage.ErrConflict) {
			return pedido.Pedido{}, err
		}
		lastErr = err
	}
	return pedido.Pedido{}, errors.Conflict("Não foi possível gerar o número do pedido").WithDetails("cause", lastErr.Error())
}

// NextNumero returns the next sequential pedido number.
func (s *Service) NextNumero(ctx context.Context) (string, error) {
	numeros, err := s.stores.Pedidos.ListPedidoNumeros(ctx)
	if err != nil {
		return "", err
	}
	return pedido.NextNumero(numeros), nil
}

// Get fetches a pedido with its items.
func (s *Service) Get(ctx context.Context, id int64) (pedido.Pedido, error) {
	p, err := s.stores.Pedidos.GetPedido(ctx, id)
	if stderrors.Is(err, storage.ErrNotFound) {
		return pedido.Pedido{}, errors.NotFound("Pedido")
	}
	return p, err
}

// List returns pedidos newest first, at most DefaultListLimit when no limit
// is set.
func (s *Service) List(ctx context.Context, filter pedido.Filter) ([]pedido.Pedido, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultListLimit
	}
	return s.stores.Pedidos.ListPedidos(ctx, filter)
}

// UpdateStatus moves a pedido to status. When the pedido belongs to a mesa
// the mesa follows and other terminals are notified.
//
// Reservations stay active while the pedido is open. Delivering a fisica
// pedido takes its items out of stock and confirms its reservations.
// Cancelling releases the reservations and returns items already out of
// stock. Cancelado is final and Entregue may only move to Cancelado.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status pedido.Status, usuarioID int64) (pedido.Pedido, error) {
	if !pedido.ValidStatus(status) {
		return pedido.Pedido{}, errors.BadRequest("status inválido").WithDetails("status", status)
	}
	if usuarioID <= 0 {
		usuarioID = domain.FallbackUserID
	}

	var (
		updated pedido.Pedido
		changed *mesa.Mesa
	)
	err := s.stores.Tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		previous := p.Status
		if previous == status {
			updated = p
			return nil
		}
		switch {
		case previous == pedido.StatusCancelado:
			return errors.Conflict("Pedido cancelado").WithDetails("status", status)
		case previous == pedido.StatusEntregue && status != pedido.StatusCancelado:
			return errors.Conflict("Pedido já entregue").WithDetails("status", status)
		}
		switch status {
		case pedido.StatusCancelado:
			if err := s.cancel(ctx, p, previous, usuarioID); err != nil {
				return err
			}
		case pedido.StatusEntregue:
			if err := s.deliver(ctx, p, usuarioID); err != nil {
				return err
			}
		}

		p.Status = status
		updated, err = s.stores.Pedidos.UpdatePedido(ctx, p)
		if err != nil {
			return err
		}
		if !updated.HasMesa() {
			return nil
		}
		m, err := s.stores.Mesas.GetMesa(ctx, *updated.MesaID)
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		next := mesa.StatusFromPedido(status)
		if next == mesa.StatusLivre {
			m.Free()
		} else {
			m.Status = next
		}
		m, err = s.stores.Mesas.UpdateMesa(ctx, m)
		if err != nil {
			return err
		}
		changed = &m
		return nil
	})
	if err != nil {
		return pedido.Pedido{}, err
	}

	if changed != nil && s.events != nil {
		evtType := mesa.EventUpdated
		if changed.Status == mesa.StatusLivre {
			evtType = mesa.EventFreed
		}
		s.events.Publish(ctx, mesa.Event{Type: evtType, Mesa: *changed, User: mesa.Actor{ID: usuarioID}})
	}
	s.log.WithField("pedido_id", id).WithField("status", updated.Status).Info("pedido status updated")
	return updated, nil
}

// deliver records the sale of a fisica pedido. Online pedidos left stock
// when they were placed.
func (s *Service) deliver(ctx context.Context, p pedido.Pedido, usuarioID int64) error {
	if p.Tipo == pedido.TipoOnline {
		return nil
	}
	pedidoID := p.ID
	for _, it := range p.Itens {
		if _, err := s.estoque.CreateMovimentacao(ctx, estoquesvc.MovimentacaoInput{
			ProdutoID:   it.ProdutoID,
			Quantidade:  it.Quantidade,
			Tipo:        estoque.TipoSaida,
			Origem:      estoque.OrigemVendaFisica,
			UsuarioID:   usuarioID,
			PedidoID:    &pedidoID,
			Observacoes: "Pedido " + p.Numero,
		}); err != nil && !errors.Is(err, errors.CodeNotFound) {
			return err
		}
	}
	_, err := s.estoque.ConfirmarReservas(ctx, estoque.ReservaFilter{PedidoID: p.ID})
	return err
}

func (s *Service) cancel(ctx context.Context, p pedido.Pedido, previous pedido.Status, usuarioID int64) error {
	if _, err := s.estoque.Liberar(ctx, estoque.ReservaFilter{PedidoID: p.ID}); err != nil {
		return err
	}
	if p.Tipo != pedido.TipoOnline && previous != pedido.StatusEntregue {
		return nil
	}
	pedidoID := p.ID
	for _, it := range p.Itens {
		if _, err := s.estoque.CreateMovimentacao(ctx, estoquesvc.MovimentacaoInput{
			ProdutoID:   it.ProdutoID,
			Quantidade:  it.Quantidade,
			Tipo:        estoque.TipoEntrada,
			Origem:      estoque.OrigemCancelamentoPedido,
			UsuarioID:   usuarioID,
			PedidoID:    &pedidoID,
			Observacoes: "Cancelamento do pedido " + p.Numero,
		}); err != nil {
			if errors.Is(err, errors.CodeNotFound) {
				continue
			}
			return err
		}
	}
	return nil
}
