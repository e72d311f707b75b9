package httpapi

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/happy-hops/choperia/internal/app/domain"
	"github.com/happy-hops/choperia/internal/app/domain/loja"
	lojasvc "github.com/happy-hops/choperia/internal/app/services/loja"
	"github.com/happy-hops/choperia/internal/errors"
)

func (h *handler) listFavoritos(w http.ResponseWriter, r *http.Request) {
	favs, err := h.app.Loja.ListFavoritos(r.Context(), actingUserID(r, payload{}))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, favs)
}

func (h *handler) addFavorito(w http.ResponseWriter, r *http.Request) {
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
	fav, err := h.app.Loja.AddFavorito(r.Context(), actingUserID(r, p), produtoID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fav)
}

func (h *handler) removeFavorito(w http.ResponseWriter, r *http.Request) {
	produtoID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.app.Loja.RemoveFavorito(r.Context(), actingUserID(r, payload{}), produtoID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *handler) avaliar(w http.ResponseWriter, r *http.Request) {
	p, err := readPayload(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	produtoID, okProduto := p.Int("produto_id", "id")
	rating, okRating := p.Int("rating", "nota")
	if !okProduto || !okRating {
		writeError(w, r, errors.BadRequest("produto_id e rating são obrigatórios"))
		return
	}
	av, err := h.app.Loja.Avaliar(r.Context(), actingUserID(r, p), produtoID, int(rating), p.String("comentario"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, av)
}

func (h *handler) listAvaliacoes(w http.ResponseWriter, r *http.Request) {
	produtoID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	avs, err := h.app.Loja.ListAvaliacoes(r.Context(), produtoID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, avs)
}

func (h *handler) removeAvaliacao(w http.ResponseWriter, r *http.Request) {
	produtoID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.app.Loja.RemoveAvaliacao(r.Context(), actingUserID(r, payload{}), produtoID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *handler) createCupom(w http.ResponseWriter, r *http.Request) {
	p, err := readPayload(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	inicio, err := parseOptionalDate(p.String("data_inicio", "dataInicio"))
	if err != nil {
		writeError(w, r, errors.BadRequest("data_inicio inválida"))
		return
	}
	fim, err := parseOptionalDate(p.String("data_fim", "dataFim"))
	if err != nil {
		writeError(w, r, errors.BadRequest("data_fim inválida"))
		return
	}
	in := lojasvc.CupomInput{
		Codigo:     p.String("codigo"),
		Nome:       p.String("nome"),
		Tipo:       loja.CupomTipo(strings.ToLower(p.String("tipo"))),
		DataInicio: inicio,
		DataFim:    fim,
	}
	in.Valor, _ = p.Float("valor")
	in.ValorMinimo, _ = p.Float("valor_minimo", "valorMinimo")
	if n, ok := p.Int("uso_maximo", "usoMaximo"); ok {
		v := int(n)
		in.UsoMaximo = &v
	}
	c, err := h.app.Loja.CreateCupom(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *handler) applyCupom(w http.ResponseWriter, r *http.Request) {
	p, err := readPayload(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	subtotal, ok := p.Float("subtotal", "total", "valor")
	if !ok {
		writeError(w, r, errors.BadRequest("subtotal é obrigatório"))
		return
	}
	c, desconto, err := h.app.Loja.ApplyCupom(r.Context(), mux.Vars(r)["codigo"], subtotal)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cupom":    c,
		"desconto": desconto,
		"total":    domain.RoundMoney(subtotal - desconto),
	})
}
