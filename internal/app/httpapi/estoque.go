package httpapi

import (
	"net/http"

	"github.com/happy-hops/choperia/internal/app/domain/estoque"
	estoquesvc "github.com/happy-hops/choperia/internal/app/services/estoque"
	"github.com/happy-hops/choperia/internal/errors"
)

func (h *handler) listMovimentacoes(w http.ResponseWriter, r *http.Request) {
	movs, err := h.app.Estoque.ListMovimentacoes(r.Context(), queryInt(r, "produto_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, movs)
}

func (h *handler) createMovimentacao(w http.ResponseWriter, r *http.Request) {
	p, err := readPayload(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	produtoID, okProduto := p.Int("produto_id", "id")
	quantidade, okQtd := p.Int("quantidade")
	if !okProduto || !okQtd {
		writeError(w, r, errors.BadRequest("produto_id e quantidade são obrigatórios"))
		return
	}
	mov, err := h.app.Estoque.CreateMovimentacao(r.Context(), estoquesvc.MovimentacaoInput{
		ProdutoID:   produtoID,
		Quantidade:  int(quantidade),
		Tipo:        estoque.Tipo(p.String("tipo")),
		Origem:      p.String("origem"),
		Observacoes: p.String("observacoes"),
		UsuarioID:   actingUserID(r, p),
		PedidoID:    p.IntPtr("pedido_id"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mov)
}

func (h *handler) disponivel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	n, err := h.app.Estoque.Disponivel(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"produto_id": id, "disponivel": int64(n)})
}

func (h *handler) listReservas(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	reservas, err := h.app.Estoque.ListReservas(r.Context(), estoque.ReservaFilter{
		ProdutoID: queryInt(r, "produto_id"),
		MesaID:    queryInt(r, "mesa_id"),
		PedidoID:  queryInt(r, "pedido_id"),
		Status:    estoque.ReservaStatus(q.Get("status")),
		Tipo:      estoque.ReservaTipo(q.Get("tipo")),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reservas)
}

func (h *handler) createReserva(w http.ResponseWriter, r *http.Request) {
	p, err := readPayload(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	produtoID, okProduto := p.Int("produto_id", "id")
	quantidade, okQtd := p.Int("quantidade")
	if !okProduto || !okQtd {
		writeError(w, r, errors.BadRequest("produto_id e quantidade são obrigatórios"))
		return
	}
	tipo := estoque.ReservaTipo(p.String("tipo"))
	if tipo == "" {
		tipo = estoque.ReservaCarrinho
		if p.Has("mesa_id") {
			tipo = estoque.ReservaMesa
		}
	}
	res, err := h.app.Estoque.Reservar(r.Context(), estoquesvc.ReservaInput{
		ProdutoID:  produtoID,
		Quantidade: int(quantidade),
		Tipo:       tipo,
		MesaID:     p.IntPtr("mesa_id"),
		UsuarioID:  actingUserID(r, p),
		PedidoID:   p.IntPtr("pedido_id"),
		ItemID:     p.IntPtr("item_id"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *handler) releaseReserva(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.app.Estoque.LiberarReserva(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
