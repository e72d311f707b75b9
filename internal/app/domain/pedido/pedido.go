package pedido

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/happy-hops/choperia/internal/app/domain"
)

// Tipo separates online orders from physical-store (mesa) orders.
type Tipo string

const (
	TipoOnline Tipo = "online"
	TipoFisica Tipo = "fisica"
)

// Status is the order lifecycle state.
type Status string

const (
	StatusPendente  Status = "Pendente"
	StatusPreparo   Status = "Em Preparo"
	StatusPronto    Status = "Pronto"
	StatusEntregue  Status = "Entregue"
	StatusCancelado Status = "Cancelado"
)

// ValidStatus reports whether s is a known order status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPendente, StatusPreparo, StatusPronto, StatusEntregue, StatusCancelado:
		return true
	}
	return false
}

// Open reports whether the order is still running on its mesa: not yet
// delivered nor cancelled.
func (s Status) Open() bool {
	return s == StatusPendente || s == StatusPreparo || s == StatusPronto
}

// Pedido is an order, either placed online or opened on a mesa.
type Pedido struct {
	ID              int64     `json:"id" db:"id"`
	Tipo            Tipo      `json:"tipo" db:"tipo"`
	UserID          int64     `json:"user_id" db:"user_id"`
	Numero          string    `json:"numero" db:"numero"`
	Status          Status    `json:"status" db:"status"`
	MetodoPagamento string    `json:"metodo_pagamento,omitempty" db:"metodo_pagamento"`
	Subtotal        float64   `json:"subtotal" db:"subtotal"`
	Desconto        float64   `json:"desconto" db:"desconto"`
	Total           float64   `json:"total" db:"total"`
	MesaID          *int64    `json:"mesa_id,omitempty" db:"mesa_id"`
	AtendenteID     *int64    `json:"atendente_id,omitempty" db:"atendente_id"`
	NomeCliente     string    `json:"nome_cliente,omitempty" db:"nome_cliente"`
	Observacoes     string    `json:"observacoes" db:"observacoes"`
	Itens           []Item    `json:"itens" db:"-"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// Item is a line of a Pedido.
type Item struct {
	ID            int64   `json:"id" db:"id"`
	PedidoID      int64   `json:"pedido_id" db:"pedido_id"`
	ProdutoID     int64   `json:"produto_id" db:"produto_id"`
	Nome          string  `json:"nome" db:"nome"`
	Quantidade    int     `json:"quantidade" db:"quantidade"`
	PrecoUnitario float64 `json:"preco_unitario" db:"preco_unitario"`
	Subtotal      float64 `json:"subtotal" db:"subtotal"`
}

// NewItem builds an item with its subtotal computed.
func NewItem(produtoID int64, nome string, quantidade int, preco float64) Item {
	return Item{
		ProdutoID:     produtoID,
		Nome:          nome,
		Quantidade:    quantidade,
		PrecoUnitario: preco,
		Subtotal:      domain.RoundMoney(float64(quantidade) * preco),
	}
}

// Recalculate refreshes item subtotals, the order subtotal and the total.
// The total never goes below zero.
func (p *Pedido) Recalculate() {
	subtotal := 0.0
	for i := range p.Itens {
		p.Itens[i].Subtotal = domain.RoundMoney(float64(p.Itens[i].Quantidade) * p.Itens[i].PrecoUnitario)
		subtotal += p.Itens[i].Subtotal
	}
	p.Subtotal = domain.RoundMoney(subtotal)
	total := p.Subtotal - p.Desconto
	if total < 0 {
		total = 0
	}
	p.Total = domain.RoundMoney(total)
}

// HasMesa reports whether the order belongs to a mesa.
func (p Pedido) HasMesa() bool {
	return p.MesaID != nil && *p.MesaID > 0
}

var firstDigits = regexp.MustCompile(`\d+`)

// NextNumero returns the next sequential order number: the largest leading
// digit run found across existing numbers plus one, zero-padded to two digits.
func NextNumero(existing []string) string {
	max := 0
	for _, raw := range existing {
		match := firstDigits.FindString(raw)
		if match == "" {
			continue
		}
		v, err := strconv.Atoi(match)
		if err != nil {
			continue
		}
		if v > max {
			max = v
		}
	}
	return fmt.Sprintf("%02d", max+1)
}

// Filter narrows order listings.
type Filter struct {
	Tipo   Tipo
	Status Status
	MesaID int64
	Since  time.Time
	Limit  int
}
