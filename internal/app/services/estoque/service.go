package estoque

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/happy-hops/choperia/internal/app/domain"
	"github.com/happy-hops/choperia/internal/app/domain/estoque"
	"github.com/happy-hops/choperia/internal/app/metrics"
	"github.com/happy-hops/choperia/internal/app/storage"
	"github.com/happy-hops/choperia/internal/errors"
	"github.com/happy-hops/choperia/pkg/logger"
)

// DefaultReservaTimeout is how long a carrinho reservation holds stock.
const DefaultReservaTimeout = 30 * time.Minute

// ProdutoLocker is implemented by stores that can lock a produto row for the
// rest of the surrounding transaction.
type ProdutoLocker interface {
	LockProduto(ctx context.Context, id int64) error
}

// Service records stock movements and manages reservations.
type Service struct {
	store   storage.EstoqueStore
	catalog storage.CatalogStore
	tx      storage.Transactor
	log     *logger.Logger
	timeout time.Duration
	now     func() time.Time
}

// New constructs an estoque service. A zero reservaTimeout uses
// DefaultReservaTimeout.
func New(store storage.EstoqueStore, catalog storage.CatalogStore, tx storage.Transactor, log *logger.Logger, reservaTimeout time.Duration) *Service {
	if log == nil {
		log = logger.NewDefault("estoque")
	}
	if reservaTimeout <= 0 {
		reservaTimeout = DefaultReservaTimeout
	}
	return &Service{store: store, catalog: catalog, tx: tx, log: log, timeout: reservaTimeout, now: time.Now}
}

// WithTimeFunc overrides the clock used for reservation expiry.
func (s *Service) WithTimeFunc(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// MovimentacaoInput describes a manual or order-driven stock movement.
type MovimentacaoInput struct {
	ProdutoID   int64
	Quantidade  int
	Tipo        estoque.Tipo
	Origem      string
	Observacoes string
	UsuarioID   int64
	PedidoID    *int64
}

// CreateMovimentacao applies a movement to the produto's stock. Tipo defaults
// to saida, origem to venda_fisica and the user to the fallback user.
func (s *Service) CreateMovimentacao(ctx context.Context, in MovimentacaoInput) (estoque.Movimentacao, error) {
	if in.Quantidade <= 0 {
		return estoque.Movimentacao{}, errors.BadRequest("quantidade deve ser maior que zero")
	}
	tipo := estoque.Tipo(strings.ToLower(strings.TrimSpace(string(in.Tipo))))
	if tipo == "" {
		tipo = estoque.TipoSaida
	}
	origem := strings.TrimSpace(in.Origem)
	if origem == "" {
		origem = estoque.OrigemVendaFisica
	}
	usuario := in.UsuarioID
	if usuario <= 0 {
		usuario = domain.FallbackUserID
	}
	if _, err := s.catalog.GetProduto(ctx, in.ProdutoID); err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return estoque.Movimentacao{}, errors.NotFound("Produto")
		}
		return estoque.Movimentacao{}, err
	}

	mov, err := s.store.ApplyMovimentacao(ctx, estoque.Movimentacao{
		ProdutoID:   in.ProdutoID,
		Tipo:        tipo,
		Origem:      origem,
		Quantidade:  in.Quantidade,
		UsuarioID:   usuario,
		Observacoes: strings.TrimSpace(in.Observacoes),
		PedidoID:    in.PedidoID,
	})
	if err != nil {
		return estoque.Movimentacao{}, err
	}
	metrics.RecordMovimentacao(string(mov.Tipo), mov.Origem)
	s.log.WithField("produto_id", mov.ProdutoID).
		WithField("tipo", mov.Tipo).
		WithField("origem", mov.Origem).
		WithField("anterior", mov.QuantidadeAnterior).
		WithField("nova", mov.QuantidadeNova).
		Info("stock movement applied")
	return mov, nil
}

// ListMovimentacoes returns the movements of a produto, oldest first. A zero
// produtoID lists every movement.
func (s *Service) ListMovimentacoes(ctx context.Context, produtoID int64) ([]estoque.Movimentacao, error) {
	return s.store.ListMovimentacoes(ctx, produtoID)
}

// ReservaInput describes a stock hold.
type ReservaInput struct {
	ProdutoID  int64
	Quantidade int
	Tipo       estoque.ReservaTipo
	MesaID     *int64
	UsuarioID  int64
	PedidoID   *int64
	ItemID     *int64
}

// Reservar holds stock for a mesa item or a cart line. It fails when the
// stock not yet held by other active reservations is below the quantity.
func (s *Service) Reservar(ctx context.Context, in ReservaInput) (estoque.Reserva, error) {
	if in.Quantidade <= 0 {
		return estoque.Reserva{}, errors.BadRequest("quantidade deve ser maior que zero")
	}
	if in.Tipo == "" {
		in.Tipo = estoque.ReservaMesa
	}
	if in.Tipo != estoque.ReservaMesa && in.Tipo != estoque.ReservaCarrinho {
		return estoque.Reserva{}, errors.BadRequest("tipo de reserva inválido")
	}
	if in.UsuarioID <= 0 {
		in.UsuarioID = domain.FallbackUserID
	}

	var created estoque.Reserva
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if locker, ok := s.catalog.(ProdutoLocker); ok {
			if err := locker.LockProduto(ctx, in.ProdutoID); err != nil {
				return s.produtoErr(err)
			}
		}
		disponivel, err := s.disponivel(ctx, in.ProdutoID)
		if err != nil {
			return err
		}
		if disponivel < in.Quantidade {
			return errors.BadRequest("estoque insuficiente").
				WithDetails("disponivel", disponivel).
				WithDetails("solicitado", in.Quantidade)
		}

		r := estoque.Reserva{
			ProdutoID:  in.ProdutoID,
			Quantidade: in.Quantidade,
			Tipo:       in.Tipo,
			MesaID:     in.MesaID,
			UsuarioID:  in.UsuarioID,
			Status:     estoque.ReservaAtiva,
			PedidoID:   in.PedidoID,
			ItemID:     in.ItemID,
		}
		if in.Tipo == estoque.ReservaCarrinho {
			expira := s.now().Add(s.timeout)
			r.ExpiraEm = &expira
		}
		created, err = s.store.CreateReserva(ctx, r)
		return err
	})
	if err != nil {
		return estoque.Reserva{}, err
	}
	s.log.WithField("reserva_id", created.ID).
		WithField("produto_id", created.ProdutoID).
		WithField("quantidade", created.Quantidade).
		WithField("tipo", created.Tipo).
		Info("stock reserved")
	return created, nil
}

// Disponivel returns the produto's stock minus its active reservations.
func (s *Service) Disponivel(ctx context.Context, produtoID int64) (int, error) {
	return s.disponivel(ctx, produtoID)
}

func (s *Service) disponivel(ctx context.Context, produtoID int64) (int, error) {
	p, err := s.catalog.GetProduto(ctx, produtoID)
	if err != nil {
		return 0, s.produtoErr(err)
	}
	reservas, err := s.store.ListReservas(ctx, estoque.ReservaFilter{ProdutoID: produtoID, Status: estoque.ReservaAtiva})
	if err != nil {
		return 0, err
	}
	now := s.now()
	held := 0
	for _, r := range reservas {
		if r.Holds(now) {
			held += r.Quantidade
		}
	}
	avail := p.Estoque - held
	if avail < 0 {
		avail = 0
	}
	return avail, nil
}

// ListReservas returns reservations matching filter.
func (s *Service) ListReservas(ctx context.Context, filter estoque.ReservaFilter) ([]estoque.Reserva, error) {
	return s.store.ListReservas(ctx, filter)
}

// Liberar releases every active reservation matching filter and returns how
// many were released.
func (s *Service) Liberar(ctx context.Context, filter estoque.ReservaFilter) (int, error) {
	return s.transition(ctx, filter, estoque.ReservaLiberada)
}

// ConfirmarReservas confirms every active reservation matching filter.
func (s *Service) ConfirmarReservas(ctx context.Context, filter estoque.ReservaFilter) (int, error) {
	return s.transition(ctx, filter, estoque.ReservaConfirmada)
}

// LiberarReserva releases a single reservation. Releasing an already
// released reservation is a no-op.
func (s *Service) LiberarReserva(ctx context.Context, id int64) (estoque.Reserva, error) {
	return s.transitionOne(ctx, id, estoque.ReservaLiberada)
}

// Confirmar marks a reservation as consumed by a sale.
func (s *Service) Confirmar(ctx context.Context, id int64) (estoque.Reserva, error) {
	return s.transitionOne(ctx, id, estoque.ReservaConfirmada)
}

func (s *Service) transitionOne(ctx context.Context, id int64, to estoque.ReservaStatus) (estoque.Reserva, error) {
	r, err := s.store.GetReserva(ctx, id)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return estoque.Reserva{}, errors.NotFound("Reserva")
		}
		return estoque.Reserva{}, err
	}
	if r.Status == to {
		return r, nil
	}
	if r.Status != estoque.ReservaAtiva {
		return estoque.Reserva{}, errors.Conflict("Reserva não está ativa").WithDetails("status", r.Status)
	}
	r.Status = to
	updated, err := s.store.UpdateReserva(ctx, r)
	if err != nil {
		return estoque.Reserva{}, err
	}
	s.log.WithField("reserva_id", id).WithField("status", to).Info("reserva updated")
	return updated, nil
}

func (s *Service) transition(ctx context.Context, filter estoque.ReservaFilter, to estoque.ReservaStatus) (int, error) {
	filter.Status = estoque.ReservaAtiva
	reservas, err := s.store.ListReservas(ctx, filter)
	if err != nil {
		return 0, err
	}
	for _, r := range reservas {
		r.Status = to
		if _, err := s.store.UpdateReserva(ctx, r); err != nil {
			return 0, err
		}
	}
	if len(reservas) > 0 {
		s.log.WithField("count", len(reservas)).WithField("status", to).Info("reservas updated")
	}
	return len(reservas), nil
}

// ExpireReservas marks active reservations past their expiry as expirada.
func (s *Service) ExpireReservas(ctx context.Context) (int, error) {
	reservas, err := s.store.ListReservas(ctx, estoque.ReservaFilter{Status: estoque.ReservaAtiva})
	if err != nil {
		return 0, err
	}
	now := s.now()
	expired := 0
	for _, r := range reservas {
		if !r.Expired(now) {
			continue
		}
		r.Status = estoque.ReservaExpirada
		if _, err := s.store.UpdateReserva(ctx, r); err != nil {
			return expired, err
		}
		expired++
	}
	if expired > 0 {
		metrics.RecordReservasExpired(expired)
		s.log.WithField("count", expired).Info("reservas expired")
	}
	return expired, nil
}

func (s *Service) produtoErr(err error) error {
	if stderrors.Is(err, storage.ErrNotFound) {
		return errors.NotFound("Produto")
	}
	return err
}
