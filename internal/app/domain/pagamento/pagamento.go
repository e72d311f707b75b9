package pagamento

import "time"

// Status of a payment.
type Status string

const (
	StatusPendente   Status = "Pendente"
	StatusConfirmado Status = "Confirmado"
	StatusRecusado   Status = "Recusado"
)

// Pagamento settles a Pedido. At most one per order.
type Pagamento struct {
	ID            int64     `json:"id" db:"id"`
	PedidoID      int64     `json:"pedido_id" db:"pedido_id"`
	Metodo        string    `json:"metodo" db:"metodo"`
	ValorTotal    float64   `json:"valor_total" db:"valor_total"`
	ValorRecebido float64   `json:"valor_recebido" db:"valor_recebido"`
	Troco         float64   `json:"troco" db:"troco"`
	Desconto      float64   `json:"desconto" db:"desconto"`
	Status        Status    `json:"status" db:"status"`
	Observacoes   string    `json:"observacoes" db:"observacoes"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
