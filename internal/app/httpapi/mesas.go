package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/happy-hops/choperia/internal/app/domain/mesa"
	"github.com/happy-hops/choperia/internal/app/domain/pedido"
	mesassvc "github.com/happy-hops/choperia/internal/app/services/mesas"
	pedidossvc "github.com/happy-hops/choperia/internal/app/services/pedidos"
	"github.com/happy-hops/choperia/internal/errors"
	"github.com/happy-hops/choperia/internal/middleware"
)

func (h *handler) listMesas(w http.ResponseWriter, r *http.Request) {
	views, err := h.app.Mesas.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *handler) createMesa(w http.ResponseWriter, r *http.Request) {
	p, err := readPayload(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	in := mesassvc.CreateInput{
		Nome:                 p.String("nome"),
		UsuarioResponsavelID: p.IntPtr("usuario_responsavel_id", "usuarioResponsavelId"),
		Observacoes:          p.String("observacoes"),
	}
	if n, ok := p.Int("capacidade"); ok {
		in.Capacidade = int(n)
	}
	view, err := h.app.Mesas.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *handler) getMesa(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	view, err := h.app.Mesas.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *handler) getMesaBySlug(w http.ResponseWriter, r *http.Request) {
	view, err := h.app.Mesas.GetBySlug(r.Context(), mux.Vars(r)["slug"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *handler) deleteMesa(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.app.Mesas.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *handler) updateMesaStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := readPayload(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := p.String("status")
	if status == "" {
		writeError(w, r, errors.BadRequest("status é obrigatório"))
		return
	}
	view, err := h.app.Mesas.UpdateStatus(r.Context(), id, mesa.Status(status), actingUserID(r, p))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *handler) transferMesa(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := readPayload(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	to, ok := p.Int("to_user_id", "usuario_responsavel_id", "novo_usuario_id", "usuario_id")
	if !ok || to <= 0 {
		writeError(w, r, errors.BadRequest("usuário de destino é obrigatório"))
		return
	}
	acting, _ := middleware.CurrentUser(r.Context())
	view, err := h.app.Mesas.Transfer(r.Context(), id, to, acting)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type mesaItemResponse struct {
	Pedido int64     `json:"pedido"`
	Mesa   mesa.View `json:"mesa"`
}

func (h *handler) addMesaItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := readPayload(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	produtoID, okProduto := p.Int("produto_id", "id")
	quantidade, okQtd := p.Int("quantidade")
	if !okProduto || !okQtd {
		writeError(w, r, errors.BadRequest("produto_id e quantidade são obrigatórios no body"))
		return
	}
	ped, view, err := h.app.Mesas.AddItem(r.Context(), mesassvc.AddItemInput{
		MesaID:         id,
		ProdutoID:      produtoID,
		Quantidade:     int(quantidade),
		UsuarioID:      actingUserID(r, p),
		PrecoUnitario:  p.FloatPtr("preco_unitario", "venda", "precoUnitario", "preco"),
		NumeroSugerido: p.String("numero", "numeroPedido"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mesaItemResponse{Pedido: ped.ID, Mesa: view})
}

func (h *handler) removeMesaItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathID(r, "item_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := h.app.Mesas.RemoveItem(r.Context(), itemID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *handler) cancelMesaPedido(w http.ResponseWriter, r *http.Request) {
	mesaID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := readPayload(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.app.Mesas.CancelPedido(r.Context(), mesaID, actingUserID(r, p)); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type pagamentoResponse struct {
	OK          bool      `json:"ok"`
	PagamentoID int64     `json:"pagamento_id"`
	Troco       float64   `json:"troco"`
	Mesa        mesa.View `json:"mesa"`
}

func (h *handler) payMesa(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := readPayload(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	desconto, _ := p.Float("desconto")
	pag, view, err := h.app.Mesas.ProcessPagamento(r.Context(), mesassvc.PagamentoInput{
		MesaID:        id,
		Metodo:        p.String("metodo", "metodoPagamento", "metodo_pagamento"),
		Total:         p.FloatPtr("total"),
		UsuarioID:     actingUserID(r, p),
		ValorRecebido: p.FloatPtr("valor_recebido", "valorRecebido"),
		Desconto:      desconto,
		Observacoes:   p.String("observacoes"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pagamentoResponse{OK: true, PagamentoID: pag.ID, Troco: pag.Troco, Mesa: view})
}

func (h *handler) mesaEvents(w http.ResponseWriter, r *http.Request) {
	since := queryInt(r, "since")
	exclude := queryInt(r, "exclude_user")
	writeJSON(w, http.StatusOK, h.app.Events.Since(since, exclude))
}

func (h *handler) listPedidos(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := pedido.Filter{
		Tipo:   pedido.Tipo(q.Get("tipo")),
		Status: pedido.Status(q.Get("status")),
		MesaID: queryInt(r, "mesa_id"),
		Limit:  int(queryInt(r, "limit")),
	}
	pedidos, err := h.app.Pedidos.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pedidos)
}

func (h *handler) createPedido(w http.ResponseWriter, r *http.Request) {
	p, err := readPayload(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	desconto, _ := p.Float("desconto")
	in := pedidossvc.CreateInput{
		Tipo:            pedido.Tipo(p.String("tipo")),
		Numero:          p.String("numero", "numeroPedido"),
		Status:          pedido.Status(p.String("status")),
		MetodoPagamento: p.String("metodoPagamento", "metodo_pagamento", "metodo"),
		Desconto:        desconto,
		MesaID:          p.IntPtr("mesa_id", "mesaId"),
		AtendenteID:     p.IntPtr("atendente_id", "atendenteId"),
		NomeCliente:     p.String("nome", "nome_cliente"),
		Observacoes:     p.String("observacoes"),
	}
	if in.MesaID != nil && *in.MesaID <= 0 {
		in.MesaID = nil
	}
	if uid, ok := p.Int("user_id", "userId"); ok {
		in.UserID = uid
	}
	for _, it := range p.Array("itens", "items") {
		produtoID, _ := it.Int("produto_id", "id")
		quantidade, _ := it.Int("quantidade")
		in.Itens = append(in.Itens, pedidossvc.ItemInput{
			ProdutoID:     produtoID,
			Quantidade:    int(quantidade),
			PrecoUnitario: it.FloatPtr("preco_unitario", "venda", "precoUnitario", "preco"),
		})
	}
	created, err := h.app.Pedidos.Create(r.Context(), in, actingUserID(r, p))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) getPedido(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	ped, err := h.app.Pedidos.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ped)
}

func (h *handler) updatePedidoStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := readPayload(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := p.String("status")
	if status == "" {
		writeError(w, r, errors.BadRequest("status é obrigatório"))
		return
	}
	ped, err := h.app.Pedidos.UpdateStatus(r.Context(), id, pedido.Status(status), actingUserID(r, p))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ped)
}
