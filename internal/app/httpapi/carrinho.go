package httpapi

import (
	"net/http"
	"strings"

	carrinhosvc "github.com/happy-hops/choperia/internal/app/services/carrinho"
	"github.com/happy-hops/choperia/internal/errors"
	"github.com/happy-hops/choperia/internal/middleware"
)

// SessionHeader identifies an anonymous cart.
const SessionHeader = "X-Session-ID"

// cartOwner resolves the cart owner: the authenticated caller, then an
// anonymous session, then user_id in the payload or the fallback user.
func cartOwner(r *http.Request, p payload) carrinhosvc.Owner {
	if u, ok := middleware.CurrentUser(r.Context()); ok {
		return carrinhosvc.Owner{UserID: u.ID}
	}
	session := strings.TrimSpace(r.Header.Get(SessionHeader))
	if session == "" {
		session = p.String("session_id", "sessionId")
	}
	if session != "" {
		return carrinhosvc.Owner{SessionID: session}
	}
	return carrinhosvc.Owner{UserID: actingUserID(r, p)}
}

func (h *handler) getCarrinho(w http.ResponseWriter, r *http.Request) {
	cart, err := h.app.Carrinho.Get(r.Context(), cartOwner(r, payload{}))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

func (h *handler) addCarrinhoItem(w http.ResponseWriter, r *http.Request) {
	p, err := readPayload(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	produtoID, ok := p.Int("produto_id", "id")
	if !ok {
		writeError(w, r, errors.BadRequest("produto_id é obrigatório"))
		return
	}
	quantidade, _ := p.Int("quantidade")
	cart, err := h.app.Carrinho.AddItem(r.Context(), carrinhosvc.AddItemInput{
		Owner:         cartOwner(r, p),
		ProdutoID:     produtoID,
		Quantidade:    int(quantidade),
		PrecoUnitario: p.FloatPtr("venda", "precoUnitario", "preco_unitario", "preco"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

func (h *handler) updateCarrinhoItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := readPayload(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	quantidade, ok := p.Int("quantidade")
	if !ok {
		writeError(w, r, errors.BadRequest("quantidade é obrigatória"))
		return
	}
	cart, err := h.app.Carrinho.UpdateQuantity(r.Context(), itemID, int(quantidade))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

func (h *handler) removeCarrinhoItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	cart, err := h.app.Carrinho.RemoveItem(r.Context(), itemID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

func (h *handler) clearCarrinho(w http.ResponseWriter, r *http.Request) {
	p, err := readPayload(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if cartID, ok := p.Int("cart_id", "carrinho_id"); ok && cartID > 0 {
		err = h.app.Carrinho.Clear(r.Context(), cartID)
	} else {
		err = h.app.Carrinho.ClearFor(r.Context(), cartOwner(r, p))
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *handler) checkout(w http.ResponseWriter, r *http.Request) {
	p, err := readPayload(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ped, err := h.app.Carrinho.Checkout(r.Context(), carrinhosvc.CheckoutInput{
		Owner:       cartOwner(r, p),
		Metodo:      p.String("metodo", "metodoPagamento", "metodo_pagamento"),
		Cupom:       p.String("cupom", "codigo"),
		NomeCliente: p.String("nome", "nome_cliente"),
		Observacoes: p.String("observacoes"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ped)
}
