package mesa

import (
	"time"

	"github.com/happy-hops/choperia/internal/app/domain/pedido"
)

// Status is the state of a table.
type Status string

const (
	StatusLivre      Status = "Livre"
	StatusOcupada    Status = "Ocupada"
	StatusPreparando Status = "Preparando"
	StatusPronto     Status = "Pronto"
	StatusFinalizado Status = "Finalizado"
)

// ValidStatus reports whether s is a known mesa status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusLivre, StatusOcupada, StatusPreparando, StatusPronto, StatusFinalizado:
		return true
	}
	return false
}

// DefaultCapacidade is the seat count used when none is given.
const DefaultCapacidade = 4

// Mesa is a physical-store table.
type Mesa struct {
	ID                   int64     `json:"id" db:"id"`
	Nome                 string    `json:"nome" db:"nome"`
	Slug                 string    `json:"slug" db:"slug"`
	Status               Status    `json:"status" db:"status"`
	UsuarioResponsavelID *int64    `json:"usuario_responsavel_id" db:"usuario_responsavel_id"`
	Capacidade           int       `json:"capacidade" db:"capacidade"`
	Observacoes          string    `json:"observacoes" db:"observacoes"`
	CreatedAt            time.Time `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time `json:"updated_at" db:"updated_at"`
}

// Free resets the mesa to Livre without a responsible user.
func (m *Mesa) Free() {
	m.Status = StatusLivre
	m.UsuarioResponsavelID = nil
}

// View is a mesa together with its pending order, as returned to clients.
type View struct {
	Mesa
	Pedido       int64          `json:"pedido"`
	Itens        []pedido.Item  `json:"itens"`
	StatusPedido *pedido.Status `json:"statusPedido"`
}

// NewView builds a View from m and its pending order, which may be nil.
func NewView(m Mesa, pending *pedido.Pedido) View {
	v := View{Mesa: m, Itens: []pedido.Item{}}
	if pending != nil {
		v.Pedido = pending.ID
		status := pending.Status
		v.StatusPedido = &status
		if pending.Itens != nil {
			v.Itens = pending.Itens
		}
	}
	return v
}

// Active reports whether the mesa counts as in use on the dashboard.
func (v View) Active() bool {
	return v.Status != StatusLivre || len(v.Itens) > 0 || v.Pedido > 0
}

// PedidoStatus maps a mesa status to the order status it implies. Livre has
// no order and reports false.
func PedidoStatus(s Status) (pedido.Status, bool) {
	switch s {
	case StatusOcupada:
		return pedido.StatusPendente, true
	case StatusPreparando:
		return pedido.StatusPreparo, true
	case StatusPronto:
		return pedido.StatusPronto, true
	case StatusFinalizado:
		return pedido.StatusEntregue, true
	}
	return "", false
}

// StatusFromPedido maps an order status back to the mesa status.
func StatusFromPedido(s pedido.Status) Status {
	switch s {
	case pedido.StatusPendente:
		return StatusOcupada
	case pedido.StatusPreparo:
		return StatusPreparando
	case pedido.StatusPronto:
		return StatusPronto
	case pedido.StatusEntregue:
		return StatusFinalizado
	}
	return StatusLivre
}
