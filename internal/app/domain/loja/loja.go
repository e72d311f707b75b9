package loja

import (
	"time"

	"github.com/happy-hops/choperia/internal/app/domain"
)

// Favorito marks a product as a user's favourite. One per user and product.
type Favorito struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	ProdutoID int64     `json:"produto_id" db:"produto_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Avaliacao is a user's rating of a product. One per user and product.
type Avaliacao struct {
	ID         int64     `json:"id" db:"id"`
	UserID     int64     `json:"user_id" db:"user_id"`
	ProdutoID  int64     `json:"produto_id" db:"produto_id"`
	Rating     int       `json:"rating" db:"rating"`
	Comentario string    `json:"comentario" db:"comentario"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// CupomTipo says how a coupon value is applied.
type CupomTipo string

const (
	CupomPercentual CupomTipo = "percentual"
	CupomFixo       CupomTipo = "fixo"
)

// Cupom is a discount code.
type Cupom struct {
	ID          int64     `json:"id" db:"id"`
	Codigo      string    `json:"codigo" db:"codigo"`
	Nome        string    `json:"nome" db:"nome"`
	Tipo        CupomTipo `json:"tipo" db:"tipo"`
	Valor       float64   `json:"valor" db:"valor"`
	ValorMinimo float64   `json:"valor_minimo" db:"valor_minimo"`
	Ativo       bool      `json:"ativo" db:"ativo"`
	DataInicio  time.Time `json:"data_inicio" db:"data_inicio"`
	DataFim     time.Time `json:"data_fim" db:"data_fim"`
	UsoMaximo   *int      `json:"uso_maximo,omitempty" db:"uso_maximo"`
	UsoAtual    int       `json:"uso_atual" db:"uso_atual"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Valid reports whether the coupon can be used at now.
func (c Cupom) Valid(now time.Time) bool {
	if !c.Ativo {
		return false
	}
	if now.Before(c.DataInicio) || now.After(c.DataFim) {
		return false
	}
	if c.UsoMaximo != nil && c.UsoAtual >= *c.UsoMaximo {
		return false
	}
	return true
}

// Desconto returns the discount the coupon grants on subtotal, capped at the
// subtotal itself.
func (c Cupom) Desconto(subtotal float64) float64 {
	var d float64
	switch c.Tipo {
	case CupomPercentual:
		d = subtotal * c.Valor / 100
	default:
		d = c.Valor
	}
	if d > subtotal {
		d = subtotal
	}
	if d < 0 {
		d = 0
	}
	return domain.RoundMoney(d)
}
