package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/happy-hops/choperia/internal/app/domain/catalog"
	catalogsvc "github.com/happy-hops/choperia/internal/app/services/catalog"
	"github.com/happy-hops/choperia/internal/errors"
)

func (h *handler) listCategorias(w http.ResponseWriter, r *http.Request) {
	cats, err := h.app.Catalog.ListCategorias(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

func (h *handler) createCategoria(w http.ResponseWriter, r *http.Request) {
	p, err := readPayload(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.app.Catalog.CreateCategoria(r.Context(), p.String("nome"), p.String("descricao"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *handler) listEmpresas(w http.ResponseWriter, r *http.Request) {
	empresas, err := h.app.Catalog.ListEmpresas(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, empresas)
}

func (h *handler) createEmpresa(w http.ResponseWriter, r *http.Request) {
	p, err := readPayload(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	e, err := h.app.Catalog.CreateEmpresa(r.Context(), catalogsvc.EmpresaInput{
		Nome:     p.String("nome"),
		Endereco: p.String("endereco"),
		Telefone: p.String("telefone"),
		Email:    p.String("email"),
		CNPJ:     p.String("cnpj"),
		Slug:     p.String("slug"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (h *handler) getEmpresa(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	e, err := h.app.Catalog.GetEmpresa(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *handler) setEmpresaStatus(w http.ResponseWriter, r *http.Request) {
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
		status = r.URL.Query().Get("status")
	}
	e, err := h.app.Catalog.SetEmpresaStatus(r.Context(), id, catalog.EmpresaStatus(strings.ToLower(status)))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *handler) listNotas(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	notas, err := h.app.Catalog.ListNotasFiscais(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, notas)
}

func (h *handler) createNota(w http.ResponseWriter, r *http.Request) {
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
	data, err := parseDate(p.String("data", "data_emissao"))
	if err != nil {
		writeError(w, r, errors.BadRequest("data inválida"))
		return
	}
	nf, err := h.app.Catalog.CreateNotaFiscal(r.Context(), id, p.String("serie"), p.String("numero"), p.String("descricao"), data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, nf)
}

func (h *handler) listProdutos(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := catalog.ProdutoFilter{
		CategoriaID: queryInt(r, "categoria_id"),
		EmpresaID:   queryInt(r, "empresa_id"),
		Limit:       int(queryInt(r, "limit")),
	}
	if raw := q.Get("disponivel"); raw != "" {
		if b, err := strconv.ParseBool(raw); err == nil {
			filter.Disponivel = &b
		}
	}
	produtos, err := h.app.Catalog.ListProdutos(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, produtos)
}

func (h *handler) createProduto(w http.ResponseWriter, r *http.Request) {
	p, err := readPayload(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	in := catalogsvc.ProdutoInput{
		Nome:       p.String("nome"),
		Descricao:  p.String("descricao"),
		Codigo:     p.String("codigo"),
		Disponivel: p.Bool("disponivel"),
		Imagem:     p.String("imagem"),
		Slug:       p.String("slug"),
		Style:      p.String("style", "estilo"),
	}
	in.CategoriaID, _ = p.Int("categoria_id", "categoriaId")
	in.EmpresaID, _ = p.Int("empresa_id", "empresaId")
	in.Custo, _ = p.Float("custo")
	in.Venda, _ = p.Float("venda", "preco", "preco_unitario")
	in.ABV, _ = p.Float("abv")
	if n, ok := p.Int("estoque"); ok {
		in.Estoque = int(n)
	}
	if n, ok := p.Int("ibu"); ok {
		in.IBU = int(n)
	}
	produto, err := h.app.Catalog.CreateProduto(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, produto)
}

func (h *handler) getProduto(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	produto, err := h.app.Catalog.GetProduto(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, produto)
}

func (h *handler) getProdutoByCodigo(w http.ResponseWriter, r *http.Request) {
	produto, err := h.app.Catalog.GetProdutoByCodigo(r.Context(), mux.Vars(r)["codigo"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, produto)
}

func (h *handler) updateProduto(w http.ResponseWriter, r *http.Request) {
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
	upd := catalogsvc.ProdutoUpdate{
		Custo:      p.FloatPtr("custo"),
		Venda:      p.FloatPtr("venda", "preco"),
		Disponivel: p.Bool("disponivel"),
		ABV:        p.FloatPtr("abv"),
	}
	if p.Has("nome") {
		v := p.String("nome")
		upd.Nome = &v
	}
	if p.Has("descricao") {
		v := p.String("descricao")
		upd.Descricao = &v
	}
	if p.Has("imagem") {
		v := p.String("imagem")
		upd.Imagem = &v
	}
	if p.Has("style", "estilo") {
		v := p.String("style", "estilo")
		upd.Style = &v
	}
	if n, ok := p.Int("ibu"); ok {
		v := int(n)
		upd.IBU = &v
	}
	produto, err := h.app.Catalog.UpdateProduto(r.Context(), id, upd)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, produto)
}

// parseOptionalDate is parseDate keeping the zero time for empty input.
func parseOptionalDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return parseDate(raw)
}

// parseDate accepts RFC 3339 timestamps and plain dates; empty means now.
func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Now().UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}
