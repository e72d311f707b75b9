package loja

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/happy-hops/choperia/internal/app/domain"
	"github.com/happy-hops/choperia/internal/app/domain/catalog"
	"github.com/happy-hops/choperia/internal/app/domain/loja"
	"github.com/happy-hops/choperia/internal/app/storage"
	"github.com/happy-hops/choperia/internal/errors"
	"github.com/happy-hops/choperia/pkg/logger"
)

// Produtos is the slice of the catalog the storefront needs.
type Produtos interface {
	GetProduto(ctx context.Context, id int64) (catalog.Produto, error)
	SetRating(ctx context.Context, id int64, rating float64) error
}

// Service manages favoritos, avaliações and cupons.
type Service struct {
	store    storage.LojaStore
	produtos Produtos
	log      *logger.Logger
	now      func() time.Time
}

// New constructs a storefront service.
func New(store storage.LojaStore, produtos Produtos, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("loja")
	}
	return &Service{store: store, produtos: produtos, log: log, now: time.Now}
}

// WithTimeFunc overrides the clock used for coupon validity.
func (s *Service) WithTimeFunc(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// AddFavorito marks a produto as favourite. Adding twice returns the
// existing favourite.
func (s *Service) AddFavorito(ctx context.Context, userID, produtoID int64) (loja.Favorito, error) {
	if userID <= 0 {
		userID = domain.FallbackUserID
	}
	if _, err := s.produtos.GetProduto(ctx, produtoID); err != nil {
		return loja.Favorito{}, err
	}
	if existing, err := s.store.GetFavorito(ctx, userID, produtoID); err == nil {
		return existing, nil
	} else if !stderrors.Is(err, storage.ErrNotFound) {
		return loja.Favorito{}, err
	}

	f, err := s.store.CreateFavorito(ctx, loja.Favorito{UserID: userID, ProdutoID: produtoID})
	if stderrors.Is(err, storage.ErrConflict) {
		return s.store.GetFavorito(ctx, userID, produtoID)
	}
	if err != nil {
		return loja.Favorito{}, err
	}
	s.log.WithField("user_id", userID).WithField("produto_id", produtoID).Info("favorito added")
	return f, nil
}

// RemoveFavorito deletes a favourite.
func (s *Service) RemoveFavorito(ctx context.Context, userID, produtoID int64) error {
	if userID <= 0 {
		userID = domain.FallbackUserID
	}
	if err := s.store.DeleteFavorito(ctx, userID, produtoID); err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return errors.NotFound("Favorito")
		}
		return err
	}
	return nil
}

// ListFavoritos returns a user's favourites.
func (s *Service) ListFavoritos(ctx context.Context, userID int64) ([]loja.Favorito, error) {
	if userID <= 0 {
		userID = domain.FallbackUserID
	}
	return s.store.ListFavoritos(ctx, userID)
}

// Avaliar records or replaces the user's rating of a produto and refreshes
// the produto's mean rating.
func (s *Service) Avaliar(ctx context.Context, userID, produtoID int64, rating int, comentario string) (loja.Avaliacao, error) {
	if rating < 1 || rating > 5 {
		return loja.Avaliacao{}, errors.BadRequest("rating deve estar entre 1 e 5")
	}
	if userID <= 0 {
		userID = domain.FallbackUserID
	}
	if _, err := s.produtos.GetProduto(ctx, produtoID); err != nil {
		return loja.Avaliacao{}, err
	}

	a, err := s.store.SaveAvaliacao(ctx, loja.Avaliacao{
		UserID:     userID,
		ProdutoID:  produtoID,
		Rating:     rating,
		Comentario: strings.TrimSpace(comentario),
	})
	if err != nil {
		return loja.Avaliacao{}, err
	}
	if err := s.refreshRating(ctx, produtoID); err != nil {
		return loja.Avaliacao{}, err
	}
	s.log.WithField("produto_id", produtoID).WithField("rating", rating).Info("avaliacao saved")
	return a, nil
}

// RemoveAvaliacao deletes the user's rating of a produto.
func (s *Service) RemoveAvaliacao(ctx context.Context, userID, produtoID int64) error {
	if userID <= 0 {
		userID = domain.FallbackUserID
	}
	if err := s.store.DeleteAvaliacao(ctx, userID, produtoID); err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return errors.NotFound("Avaliação")
		}
		return err
	}
	return s.refreshRating(ctx, produtoID)
}

// ListAvaliacoes returns the ratings of a produto.
func (s *Service) ListAvaliacoes(ctx context.Context, produtoID int64) ([]loja.Avaliacao, error) {
	return s.store.ListAvaliacoes(ctx, produtoID)
}

func (s *Service) refreshRating(ctx context.Context, produtoID int64) error {
	avs, err := s.store.ListAvaliacoes(ctx, produtoID)
	if err != nil {
		return err
	}
	mean := 0.0
	if len(avs) > 0 {
		sum := 0
		for _, a := range avs {
			sum += a.Rating
		}
		mean = domain.RoundMoney(float64(sum) / float64(len(avs)))
	}
	return s.produtos.SetRating(ctx, produtoID, mean)
}

// CupomInput carries the fields of a new coupon.
type CupomInput struct {
	Codigo      string
	Nome        string
	Tipo        loja.CupomTipo
	Valor       float64
	ValorMinimo float64
	DataInicio  time.Time
	DataFim     time.Time
	UsoMaximo   *int
}

// CreateCupom registers a discount code. Codes are unique regardless of case.
func (s *Service) CreateCupom(ctx context.Context, in CupomInput) (loja.Cupom, error) {
	codigo := strings.ToUpper(strings.TrimSpace(in.Codigo))
	if codigo == "" {
		return loja.Cupom{}, errors.BadRequest("codigo é obrigatório")
	}
	tipo := loja.CupomTipo(strings.ToLower(strings.TrimSpace(string(in.Tipo))))
	if tipo == "" {
		tipo = loja.CupomPercentual
	}
	if tipo != loja.CupomPercentual && tipo != loja.CupomFixo {
		return loja.Cupom{}, errors.BadRequest("tipo de cupom inválido")
	}
	if in.Valor <= 0 || (tipo == loja.CupomPercentual && in.Valor > 100) {
		return loja.Cupom{}, errors.BadRequest("valor do cupom inválido")
	}
	if in.ValorMinimo < 0 {
		return loja.Cupom{}, errors.BadRequest("valor mínimo inválido")
	}
	if in.DataInicio.IsZero() {
		in.DataInicio = s.now()
	}
	if in.DataFim.IsZero() || !in.DataFim.After(in.DataInicio) {
		return loja.Cupom{}, errors.BadRequest("data fim deve ser posterior à data início")
	}

	nome := strings.TrimSpace(in.Nome)
	if nome == "" {
		nome = codigo
	}
	c, err := s.store.CreateCupom(ctx, loja.Cupom{
		Codigo:      codigo,
		Nome:        nome,
		Tipo:        tipo,
		Valor:       in.Valor,
		ValorMinimo: in.ValorMinimo,
		Ativo:       true,
		DataInicio:  in.DataInicio,
		DataFim:     in.DataFim,
		UsoMaximo:   in.UsoMaximo,
	})
	if err != nil {
		if stderrors.Is(err, storage.ErrConflict) {
			return loja.Cupom{}, errors.Conflict("Cupom já cadastrado")
		}
		return loja.Cupom{}, err
	}
	s.log.WithField("codigo", c.Codigo).Info("cupom created")
	return c, nil
}

// ApplyCupom validates a coupon against subtotal, consumes one use and
// returns the discount.
func (s *Service) ApplyCupom(ctx context.Context, codigo string, subtotal float64) (loja.Cupom, float64, error) {
	codigo = strings.TrimSpace(codigo)
	if codigo == "" {
		return loja.Cupom{}, 0, errors.BadRequest("codigo é obrigatório")
	}
	c, err := s.store.GetCupomByCodigo(ctx, codigo)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return loja.Cupom{}, 0, errors.NotFound("Cupom")
		}
		return loja.Cupom{}, 0, err
	}
	if !c.Valid(s.now()) {
		return loja.Cupom{}, 0, errors.BadRequest("Cupom inválido ou expirado")
	}
	if subtotal < c.ValorMinimo {
		return loja.Cupom{}, 0, errors.BadRequest("Valor mínimo não atingido").WithDetails("valor_minimo", c.ValorMinimo)
	}

	desconto := c.Desconto(subtotal)
	c.UsoAtual++
	c, err = s.store.UpdateCupom(ctx, c)
	if err != nil {
		return loja.Cupom{}, 0, err
	}
	s.log.WithField("codigo", c.Codigo).WithField("desconto", desconto).Info("cupom applied")
	return c, desconto, nil
}
