package carrinho

import (
	"time"

	"github.com/happy-hops/choperia/internal/app/domain"
)

// Carrinho is an online shopping cart, owned by a user or an anonymous
// session.
type Carrinho struct {
	ID        int64     `json:"id" db:"id"`
	UserID    *int64    `json:"user_id,omitempty" db:"user_id"`
	SessionID string    `json:"session_id,omitempty" db:"session_id"`
	Itens     []Item    `json:"itens" db:"-"`
	Total     float64   `json:"total" db:"total"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Item is a cart line.
type Item struct {
	ID            int64   `json:"id" db:"id"`
	CarrinhoID    int64   `json:"carrinho_id" db:"carrinho_id"`
	ProdutoID     int64   `json:"produto_id" db:"produto_id"`
	Nome          string  `json:"nome" db:"nome"`
	Quantidade    int     `json:"quantidade" db:"quantidade"`
	PrecoUnitario float64 `json:"preco_unitario" db:"preco_unitario"`
	Subtotal      float64 `json:"subtotal" db:"subtotal"`
}

// Recalculate refreshes line subtotals and the cart total.
func (c *Carrinho) Recalculate() {
	total := 0.0
	for i := range c.Itens {
		c.Itens[i].Subtotal = domain.RoundMoney(float64(c.Itens[i].Quantidade) * c.Itens[i].PrecoUnitario)
		total += c.Itens[i].Subtotal
	}
	c.Total = domain.RoundMoney(total)
}

// Find returns the index of the line for produtoID, or -1.
func (c Carrinho) Find(produtoID int64) int {
	for i, it := range c.Itens {
		if it.ProdutoID == produtoID {
			return i
		}
	}
	return -1
}
