package estoque

import "time"

// Tipo is the direction of a stock movement.
type Tipo string

const (
	TipoEntrada Tipo = "entrada"
	TipoSaida   Tipo = "saida"
)

// Common movement origins.
const (
	OrigemVendaFisica        = "venda_fisica"
	OrigemVendaOnline        = "venda_online"
	OrigemCancelamentoPedido = "cancelamento_pedido"
	OrigemAjuste             = "ajuste"
	OrigemCompra             = "compra"
)

// Movimentacao records a change of a product's on-hand quantity.
type Movimentacao struct {
	ID                 int64     `json:"id" db:"id"`
	ProdutoID          int64     `json:"produto_id" db:"produto_id"`
	Tipo               Tipo      `json:"tipo" db:"tipo"`
	Origem             string    `json:"origem" db:"origem"`
	Quantidade         int       `json:"quantidade" db:"quantidade"`
	QuantidadeAnterior int       `json:"quantidade_anterior" db:"quantidade_anterior"`
	QuantidadeNova     int       `json:"quantidade_nova" db:"quantidade_nova"`
	UsuarioID          int64     `json:"usuario_id" db:"usuario_id"`
	Observacoes        string    `json:"observacoes" db:"observacoes"`
	PedidoID           *int64    `json:"pedido_id,omitempty" db:"pedido_id"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
}

// Apply returns the quantity resulting from applying a movement of tipo and
// quantidade to anterior. Saidas never take stock below zero and unknown
// tipos are treated as increments.
func Apply(anterior int, tipo Tipo, quantidade int) int {
	if tipo == TipoSaida {
		nova := anterior - quantidade
		if nova < 0 {
			return 0
		}
		return nova
	}
	return anterior + quantidade
}

// ReservaTipo says what holds a reservation.
type ReservaTipo string

const (
	ReservaMesa     ReservaTipo = "mesa"
	ReservaCarrinho ReservaTipo = "carrinho"
)

// ReservaStatus is the lifecycle of a reservation.
type ReservaStatus string

const (
	ReservaAtiva      ReservaStatus = "ativa"
	ReservaConfirmada ReservaStatus = "confirmada"
	ReservaLiberada   ReservaStatus = "liberada"
	ReservaExpirada   ReservaStatus = "expirada"
)

// Reserva holds stock for a mesa order or a shopping cart until it is
// confirmed, released or, for carts, expires.
type Reserva struct {
	ID         int64         `json:"id" db:"id"`
	ProdutoID  int64         `json:"produto_id" db:"produto_id"`
	Quantidade int           `json:"quantidade" db:"quantidade"`
	Tipo       ReservaTipo   `json:"tipo" db:"tipo"`
	MesaID     *int64        `json:"mesa_id,omitempty" db:"mesa_id"`
	UsuarioID  int64         `json:"usuario_id" db:"usuario_id"`
	Status     ReservaStatus `json:"status" db:"status"`
	ExpiraEm   *time.Time    `json:"expira_em,omitempty" db:"expira_em"`
	PedidoID   *int64        `json:"pedido_id,omitempty" db:"pedido_id"`
	ItemID     *int64        `json:"item_id,omitempty" db:"item_id"`
	CreatedAt  time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at" db:"updated_at"`
}

// Expired reports whether r is an active reservation past its expiry.
func (r Reserva) Expired(now time.Time) bool {
	return r.Status == ReservaAtiva && r.ExpiraEm != nil && !now.Before(*r.ExpiraEm)
}

// Holds reports whether r still counts against available stock.
func (r Reserva) Holds(now time.Time) bool {
	return r.Status == ReservaAtiva && !r.Expired(now)
}

// ReservaFilter narrows reservation listings.
type ReservaFilter struct {
	ProdutoID int64
	MesaID    int64
	PedidoID  int64
	ItemID    int64
	Status    ReservaStatus
	Tipo      ReservaTipo
}
