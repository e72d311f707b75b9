package client

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/happy-hops/choperia/internal/app/domain"
	"github.com/happy-hops/choperia/internal/app/domain/catalog"
	"github.com/happy-hops/choperia/internal/app/domain/estoque"
	"github.com/happy-hops/choperia/internal/app/domain/mesa"
	"github.com/happy-hops/choperia/internal/app/domain/pedido"
)

// AddItemRequest adds quantidade of a produto to a mesa's open order.
type AddItemRequest struct {
	MesaID        int64    `json:"-"`
	ProdutoID     int64    `json:"produto_id"`
	Quantidade    int      `json:"quantidade"`
	PrecoUnitario *float64 `json:"preco_unitario,omitempty"`
	UserID        int64    `json:"user_id"`
}

type addItemResponse struct {
	Pedido int64     `json:"pedido"`
	Mesa   mesa.View `json:"mesa"`
}

// AddItem adds an item to a mesa, opening its order when needed.
func (c *Client) AddItem(ctx context.Context, req AddItemRequest) (mesa.View, bool, error) {
	if req.Quantidade <= 0 {
		return mesa.View{}, false, fmt.Errorf("quantidade must be positive")
	}
	req.UserID = c.userID
	path := fmt.Sprintf("/mesas/%d/itens", req.MesaID)
	var resp addItemResponse
	err := c.call(ctx, http.MethodPost, path, req, &resp)
	if err == nil {
		if err := c.mirror.PutMesa(resp.Mesa); err != nil {
			c.log.WithError(err).Warn("refresh mesa mirror")
		}
		return resp.Mesa, false, nil
	}
	if !unavailable(err) {
		return mesa.View{}, false, err
	}
	c.fallback("add item", err)

	produto, err := c.mirroredProduto(req.ProdutoID)
	if err != nil {
		return mesa.View{}, true, err
	}
	preco := produto.Venda
	if req.PrecoUnitario != nil {
		preco = *req.PrecoUnitario
	}
	var numero string
	if v, ok, err := c.mirror.Mesa(req.MesaID); err != nil {
		return mesa.View{}, true, err
	} else if !ok {
		return mesa.View{}, true, fmt.Errorf("mesa %d: %w", req.MesaID, ErrNotFound)
	} else if v.Pedido == 0 {
		if numero, err = c.mirror.NextPedidoNumero(); err != nil {
			return mesa.View{}, true, err
		}
	}

	wasFree := false
	view, _, err := c.mirror.UpdateMesa(req.MesaID, func(v *mesa.View) error {
		wasFree = v.Status == mesa.StatusLivre
		if v.Pedido == 0 {
			n, _ := strconv.ParseInt(numero, 10, 64)
			v.Pedido = n
			status := pedido.StatusPendente
			v.StatusPedido = &status
		}
		merged := false
		for i := range v.Itens {
			if v.Itens[i].ProdutoID == req.ProdutoID && v.Itens[i].PrecoUnitario == preco {
				v.Itens[i].Quantidade += req.Quantidade
				v.Itens[i].Subtotal = domain.RoundMoney(float64(v.Itens[i].Quantidade) * preco)
				merged = true
				break
			}
		}
		if !merged {
			v.Itens = append(v.Itens, pedido.NewItem(req.ProdutoID, produto.Nome, req.Quantidade, preco))
		}
		if wasFree {
			v.Status = mesa.StatusOcupada
			uid := c.userID
			v.UsuarioResponsavelID = &uid
		}
		return nil
	})
	if err != nil {
		return mesa.View{}, true, err
	}
	c.adjustLocalStock(req.ProdutoID, estoque.TipoSaida, req.Quantidade, estoque.OrigemVendaFisica)
	eventType := mesa.EventUpdated
	if wasFree {
		eventType = mesa.EventOccupied
	}
	c.recordEvent(eventType, view.Mesa)
	if _, err := c.mirror.Enqueue(http.MethodPost, path, req); err != nil {
		return view, true, err
	}
	return view, true, nil
}

// PaymentRequest closes a mesa's open order.
type PaymentRequest struct {
	MesaID        int64    `json:"-"`
	Metodo        string   `json:"metodo"`
	ValorRecebido *float64 `json:"valor_recebido,omitempty"`
	Desconto      float64  `json:"desconto,omitempty"`
	Observacoes   string   `json:"observacoes,omitempty"`
	UserID        int64    `json:"user_id"`
}

// PaymentResult is the outcome of PayMesa.
type PaymentResult struct {
	OK          bool      `json:"ok"`
	PagamentoID int64     `json:"pagamento_id"`
	Troco       float64   `json:"troco"`
	Mesa        mesa.View `json:"mesa"`
}

// PayMesa pays the open order of a mesa and frees it.
func (c *Client) PayMesa(ctx context.Context, req PaymentRequest) (PaymentResult, bool, error) {
	req.UserID = c.userID
	path := fmt.Sprintf("/mesas/%d/pagamento", req.MesaID)
	var result PaymentResult
	err := c.call(ctx, http.MethodPost, path, req, &result)
	if err == nil {
		if err := c.mirror.PutMesa(result.Mesa); err != nil {
			c.log.WithError(err).Warn("refresh mesa mirror")
		}
		return result, false, nil
	}
	if !unavailable(err) {
		return PaymentResult{}, false, err
	}
	c.fallback("pay mesa", err)

	current, ok, err := c.mirror.Mesa(req.MesaID)
	if err != nil {
		return PaymentResult{}, true, err
	}
	if !ok {
		return PaymentResult{}, true, fmt.Errorf("mesa %d: %w", req.MesaID, ErrNotFound)
	}
	if len(current.Itens) == 0 {
		return PaymentResult{}, true, fmt.Errorf("mesa %d has no open order", req.MesaID)
	}
	mesaID := req.MesaID
	atendente := c.userID
	p := pedido.Pedido{
		Tipo:            pedido.TipoFisica,
		UserID:          c.userID,
		Status:          pedido.StatusEntregue,
		MetodoPagamento: req.Metodo,
		Desconto:        req.Desconto,
		MesaID:          &mesaID,
		AtendenteID:     &atendente,
		Observacoes:     req.Observacoes,
		Itens:           append([]pedido.Item(nil), current.Itens...),
	}
	if current.Pedido > 0 {
		p.Numero = fmt.Sprintf("%02d", current.Pedido)
	}
	p.Recalculate()
	if _, err := c.mirror.AddPedidoLocal(p); err != nil {
		return PaymentResult{}, true, err
	}
	if req.ValorRecebido != nil && isCash(req.Metodo) && *req.ValorRecebido > p.Total {
		result.Troco = domain.RoundMoney(*req.ValorRecebido - p.Total)
	}
	view, _, err := c.mirror.UpdateMesa(req.MesaID, freeView)
	if err != nil {
		return PaymentResult{}, true, err
	}
	c.recordEvent(mesa.EventFreed, view.Mesa)
	if _, err := c.mirror.Enqueue(http.MethodPost, path, req); err != nil {
		return PaymentResult{}, true, err
	}
	result.OK = true
	result.Mesa = view
	return result, true, nil
}

func isCash(metodo string) bool {
	switch strings.ToLower(metodo) {
	case "dinheiro", "cash":
		return true
	}
	return false
}

func freeView(v *mesa.View) error {
	v.Free()
	v.Pedido = 0
	v.StatusPedido = nil
	v.Itens = []pedido.Item{}
	return nil
}

// CancelPedido cancels the open order of a mesa, returning its items to stock.
func (c *Client) CancelPedido(ctx context.Context, mesaID int64) (bool, error) {
	path := fmt.Sprintf("/pedidos/%d/cancelar", mesaID)
	body := map[string]int64{"user_id": c.userID}
	err := c.call(ctx, http.MethodPost, path, body, nil)
	if err == nil {
		if _, _, err := c.mirror.UpdateMesa(mesaID, freeView); err != nil {
			c.log.WithError(err).Warn("refresh mesa mirror")
		}
		return false, nil
	}
	if !unavailable(err) {
		return false, err
	}
	c.fallback("cancel pedido", err)

	current, ok, err := c.mirror.Mesa(mesaID)
	if err != nil {
		return true, err
	}
	if !ok || current.Pedido == 0 {
		return true, fmt.Errorf("pending pedido of mesa %d: %w", mesaID, ErrNotFound)
	}
	for _, it := range current.Itens {
		c.adjustLocalStock(it.ProdutoID, estoque.TipoEntrada, it.Quantidade, estoque.OrigemCancelamentoPedido)
	}
	view, _, err := c.mirror.UpdateMesa(mesaID, freeView)
	if err != nil {
		return true, err
	}
	c.recordEvent(mesa.EventFreed, view.Mesa)
	_, err = c.mirror.Enqueue(http.MethodPost, path, body)
	return true, err
}

// PedidoItemRequest is one line of CreatePedidoRequest.
type PedidoItemRequest struct {
	ProdutoID     int64    `json:"produto_id"`
	Quantidade    int      `json:"quantidade"`
	PrecoUnitario *float64 `json:"preco_unitario,omitempty"`
}

// CreatePedidoRequest registers a finished order.
type CreatePedidoRequest struct {
	Tipo            pedido.Tipo         `json:"tipo,omitempty"`
	MetodoPagamento string              `json:"metodoPagamento,omitempty"`
	Desconto        float64             `json:"desconto,omitempty"`
	MesaID          *int64              `json:"mesa_id,omitempty"`
	NomeCliente     string              `json:"nome_cliente,omitempty"`
	Observacoes     string              `json:"observacoes,omitempty"`
	Itens           []PedidoItemRequest `json:"itens"`
	UserID          int64               `json:"user_id"`
}

// CreatePedido records an order. Offline, the order gets a local daily number.
func (c *Client) CreatePedido(ctx context.Context, req CreatePedidoRequest) (pedido.Pedido, bool, error) {
	if len(req.Itens) == 0 {
		return pedido.Pedido{}, false, fmt.Errorf("pedido requires at least one item")
	}
	req.UserID = c.userID
	var created pedido.Pedido
	err := c.call(ctx, http.MethodPost, "/pedidos", req, &created)
	if err == nil {
		return created, false, nil
	}
	if !unavailable(err) {
		return pedido.Pedido{}, false, err
	}
	c.fallback("create pedido", err)

	p := pedido.Pedido{
		Tipo:            req.Tipo,
		UserID:          c.userID,
		Status:          pedido.StatusEntregue,
		MetodoPagamento: req.MetodoPagamento,
		Desconto:        req.Desconto,
		MesaID:          req.MesaID,
		NomeCliente:     req.NomeCliente,
		Observacoes:     req.Observacoes,
	}
	if p.Tipo == "" {
		p.Tipo = pedido.TipoFisica
	}
	for _, it := range req.Itens {
		produto, err := c.mirroredProduto(it.ProdutoID)
		if err != nil {
			return pedido.Pedido{}, true, err
		}
		preco := produto.Venda
		if it.PrecoUnitario != nil {
			preco = *it.PrecoUnitario
		}
		p.Itens = append(p.Itens, pedido.NewItem(it.ProdutoID, produto.Nome, it.Quantidade, preco))
	}
	p.Recalculate()
	created, err = c.mirror.AddPedidoLocal(p)
	if err != nil {
		return pedido.Pedido{}, true, err
	}
	for _, it := range req.Itens {
		c.adjustLocalStock(it.ProdutoID, estoque.TipoSaida, it.Quantidade, estoque.OrigemVendaFisica)
	}
	_, err = c.mirror.Enqueue(http.MethodPost, "/pedidos", req)
	return created, true, err
}

func (c *Client) mirroredProduto(id int64) (catalog.Produto, error) {
	produtos, err := c.mirror.Produtos()
	if err != nil {
		return catalog.Produto{}, err
	}
	for _, p := range produtos {
		if p.ID == id {
			return p, nil
		}
	}
	return catalog.Produto{}, fmt.Errorf("produto %d: %w", id, ErrNotFound)
}

// adjustLocalStock applies a movement to the mirrored produto and records it.
// Failures are logged; the mirror carries no transactional guarantees.
func (c *Client) adjustLocalStock(produtoID int64, tipo estoque.Tipo, quantidade int, origem string) {
	produtos, err := c.mirror.Produtos()
	if err != nil {
		c.log.WithError(err).Warn("read produto mirror")
		return
	}
	var mov estoque.Movimentacao
	found := false
	for i := range produtos {
		if produtos[i].ID != produtoID {
			continue
		}
		anterior := produtos[i].Estoque
		produtos[i].Estoque = estoque.Apply(anterior, tipo, quantidade)
		mov = estoque.Movimentacao{
			ProdutoID:          produtoID,
			Tipo:               tipo,
			Origem:             origem,
			Quantidade:         quantidade,
			QuantidadeAnterior: anterior,
			QuantidadeNova:     produtos[i].Estoque,
			UsuarioID:          c.userID,
			CreatedAt:          c.now().UTC(),
		}
		found = true
		break
	}
	if !found {
		return
	}
	if err := c.mirror.SetProdutos(produtos); err != nil {
		c.log.WithError(err).Warn("write produto mirror")
		return
	}
	movs, err := c.mirror.Movimentacoes(0)
	if err != nil {
		c.log.WithError(err).Warn("read movimentacao mirror")
		return
	}
	if err := c.mirror.SetMovimentacoes(0, append(movs, mov)); err != nil {
		c.log.WithError(err).Warn("write movimentacao mirror")
	}
}

func (c *Client) recordEvent(t mesa.EventType, m mesa.Mesa) {
	ev := mesa.Event{
		Type:      t,
		Mesa:      m,
		User:      mesa.Actor{ID: c.userID, Nome: c.userName},
		Timestamp: c.now().UnixMilli(),
	}
	if err := c.mirror.AppendMesaEvents(ev); err != nil {
		c.log.WithError(err).Warn("record mesa event")
	}
}

// SyncResult counts the outcome of replaying the outbox.
type SyncResult struct {
	Replayed int
	Rejected int
	Pending  int
}

// Sync replays queued writes in order. It stops at the first write the API
// cannot serve; writes the API rejects are dropped and counted.
func (c *Client) Sync(ctx context.Context) (SyncResult, error) {
	var result SyncResult
	ops, err := c.mirror.Pending()
	if err != nil {
		return result, err
	}
	for i, op := range ops {
		var body interface{}
		if len(op.Body) > 0 {
			body = op.Body
		}
		err := c.call(ctx, op.Method, op.Path, body, nil)
		if unavailable(err) {
			result.Pending = len(ops) - i
			return result, fmt.Errorf("replay %s %s: %w", op.Method, op.Path, err)
		}
		if err != nil {
			c.log.WithError(err).WithFields(map[string]interface{}{
				"op_id":  op.ID,
				"method": op.Method,
				"path":   op.Path,
			}).Warn("queued write rejected by api")
			result.Rejected++
		} else {
			result.Replayed++
		}
		if err := c.mirror.Ack(op.ID); err != nil {
			return result, err
		}
	}
	return result, nil
}
