package catalog

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/happy-hops/choperia/internal/app/domain/catalog"
	"github.com/happy-hops/choperia/internal/app/storage"
	"github.com/happy-hops/choperia/internal/errors"
	"github.com/happy-hops/choperia/pkg/logger"
)

// DefaultListLimit bounds produto listings when no limit is given.
const DefaultListLimit = 100

// Service manages categorias, empresas, notas fiscais and produtos.
type Service struct {
	store storage.CatalogStore
	log   *logger.Logger
}

// New constructs a catalog service.
func New(store storage.CatalogStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("catalog")
	}
	return &Service{store: store, log: log}
}

// CreateCategoria registers a product category. Names are unique.
func (s *Service) CreateCategoria(ctx context.Context, nome, descricao string) (catalog.Categoria, error) {
	nome = strings.TrimSpace(nome)
	if nome == "" {
		return catalog.Categoria{}, errors.BadRequest("nome é obrigatório")
	}
	existing, err := s.store.ListCategorias(ctx)
	if err != nil {
		return catalog.Categoria{}, err
	}
	for _, c := range existing {
		if strings.EqualFold(c.Nome, nome) {
			return catalog.Categoria{}, errors.Conflict("Categoria já existe")
		}
	}

	c, err := s.store.CreateCategoria(ctx, catalog.Categoria{Nome: nome, Descricao: strings.TrimSpace(descricao), Ativa: true})
	if err != nil {
		return catalog.Categoria{}, err
	}
	s.log.WithField("categoria_id", c.ID).Info("categoria created")
	return c, nil
}

// ListCategorias returns every category.
func (s *Service) ListCategorias(ctx context.Context) ([]catalog.Categoria, error) {
	return s.store.ListCategorias(ctx)
}

// EmpresaInput carries the fields of a new company.
type EmpresaInput struct {
	Nome     string
	Endereco string
	Telefone string
	Email    string
	CNPJ     string
	Slug     string
}

// CreateEmpresa registers a company. The CNPJ is unique and the slug is
// derived from the name when absent.
func (s *Service) CreateEmpresa(ctx context.Context, in EmpresaInput) (catalog.Empresa, error) {
	in.Nome = strings.TrimSpace(in.Nome)
	in.Email = strings.TrimSpace(in.Email)
	in.CNPJ = strings.TrimSpace(in.CNPJ)
	if in.Nome == "" || in.Email == "" || in.CNPJ == "" {
		return catalog.Empresa{}, errors.BadRequest("nome, email e cnpj são obrigatórios")
	}

	existing, err := s.store.ListEmpresas(ctx)
	if err != nil {
		return catalog.Empresa{}, err
	}
	slugs := make(map[string]bool, len(existing))
	for _, e := range existing {
		if e.CNPJ == in.CNPJ {
			return catalog.Empresa{}, errors.Conflict("CNPJ já cadastrado")
		}
		slugs[e.Slug] = true
	}

	base := strings.TrimSpace(in.Slug)
	if base == "" {
		base = catalog.GenerateSlug(in.Nome)
	}
	e, err := s.store.CreateEmpresa(ctx, catalog.Empresa{
		Nome:     in.Nome,
		Endereco: strings.TrimSpace(in.Endereco),
		Telefone: strings.TrimSpace(in.Telefone),
		Email:    in.Email,
		CNPJ:     in.CNPJ,
		Slug:     catalog.UniqueSlug(base, func(s string) bool { return slugs[s] }),
		Status:   catalog.EmpresaAtiva,
	})
	if err != nil {
		return catalog.Empresa{}, err
	}
	s.log.WithField("empresa_id", e.ID).WithField("slug", e.Slug).Info("empresa created")
	return e, nil
}

// GetEmpresa fetches a company.
func (s *Service) GetEmpresa(ctx context.Context, id int64) (catalog.Empresa, error) {
	e, err := s.store.GetEmpresa(ctx, id)
	if stderrors.Is(err, storage.ErrNotFound) {
		return catalog.Empresa{}, errors.NotFound("Empresa")
	}
	return e, err
}

// ListEmpresas returns every company.
func (s *Service) ListEmpresas(ctx context.Context) ([]catalog.Empresa, error) {
	return s.store.ListEmpresas(ctx)
}

// SetEmpresaStatus changes a company's lifecycle state.
func (s *Service) SetEmpresaStatus(ctx context.Context, id int64, status catalog.EmpresaStatus) (catalog.Empresa, error) {
	status = catalog.EmpresaStatus(strings.ToLower(strings.TrimSpace(string(status))))
	if !catalog.ValidEmpresaStatus(status) {
		return catalog.Empresa{}, errors.BadRequest("status inválido")
	}
	e, err := s.GetEmpresa(ctx, id)
	if err != nil {
		return catalog.Empresa{}, err
	}
	if e.Status == status {
		return e, nil
	}
	e.Status = status
	e, err = s.store.UpdateEmpresa(ctx, e)
	if err != nil {
		return catalog.Empresa{}, err
	}
	s.log.WithField("empresa_id", e.ID).WithField("status", status).Info("empresa status changed")
	return e, nil
}

// CreateNotaFiscal records an invoice for a company. Serie and numero are
// unique per company.
func (s *Service) CreateNotaFiscal(ctx context.Context, empresaID int64, serie, numero, descricao string, data time.Time) (catalog.NotaFiscal, error) {
	serie = strings.TrimSpace(serie)
	numero = strings.TrimSpace(numero)
	if serie == "" || numero == "" {
		return catalog.NotaFiscal{}, errors.BadRequest("serie e numero são obrigatórios")
	}
	if _, err := s.GetEmpresa(ctx, empresaID); err != nil {
		return catalog.NotaFiscal{}, err
	}
	if data.IsZero() {
		data = time.Now().UTC()
	}
	nf, err := s.store.CreateNotaFiscal(ctx, catalog.NotaFiscal{
		EmpresaID: empresaID,
		Serie:     serie,
		Numero:    numero,
		Descricao: strings.TrimSpace(descricao),
		Data:      data.UTC(),
	})
	if stderrors.Is(err, storage.ErrConflict) {
		return catalog.NotaFiscal{}, errors.Conflict("Nota fiscal já cadastrada")
	}
	return nf, err
}

// ListNotasFiscais returns a company's invoices.
func (s *Service) ListNotasFiscais(ctx context.Context, empresaID int64) ([]catalog.NotaFiscal, error) {
	return s.store.ListNotasFiscais(ctx, empresaID)
}

// ProdutoInput carries the fields of a new product.
type ProdutoInput struct {
	Nome        string
	CategoriaID int64
	EmpresaID   int64
	Descricao   string
	Custo       float64
	Venda       float64
	Codigo      string
	Estoque     int
	Disponivel  *bool
	Imagem      string
	Slug        string
	Style       string
	ABV         float64
	IBU         int
}

// CreateProduto registers a product. Referenced categoria and empresa must
// exist when given; the slug is derived from the name and made unique.
func (s *Service) CreateProduto(ctx context.Context, in ProdutoInput) (catalog.Produto, error) {
	in.Nome = strings.TrimSpace(in.Nome)
	in.Codigo = strings.TrimSpace(in.Codigo)
	if in.Nome == "" || in.Codigo == "" {
		return catalog.Produto{}, errors.BadRequest("nome e codigo são obrigatórios")
	}
	if in.Custo < 0 || in.Venda < 0 {
		return catalog.Produto{}, errors.BadRequest("custo e venda não podem ser negativos")
	}
	if in.Estoque < 0 {
		return catalog.Produto{}, errors.BadRequest("estoque não pode ser negativo")
	}
	if in.CategoriaID != 0 {
		if _, err := s.store.GetCategoria(ctx, in.CategoriaID); err != nil {
			if stderrors.Is(err, storage.ErrNotFound) {
				return catalog.Produto{}, errors.BadRequest("Categoria não encontrada")
			}
			return catalog.Produto{}, err
		}
	}
	if in.EmpresaID != 0 {
		if _, err := s.store.GetEmpresa(ctx, in.EmpresaID); err != nil {
			if stderrors.Is(err, storage.ErrNotFound) {
				return catalog.Produto{}, errors.BadRequest("Empresa não encontrada")
			}
			return catalog.Produto{}, err
		}
	}
	if _, err := s.store.GetProdutoByCodigo(ctx, in.Codigo); err == nil {
		return catalog.Produto{}, errors.Conflict("Código já cadastrado")
	}

	base := strings.TrimSpace(in.Slug)
	if base == "" {
		base = catalog.GenerateSlug(in.Nome)
	}
	slug := catalog.UniqueSlug(base, func(candidate string) bool {
		_, err := s.store.GetProdutoBySlug(ctx, candidate)
		return err == nil
	})

	disponivel := true
	if in.Disponivel != nil {
		disponivel = *in.Disponivel
	}
	p, err := s.store.CreateProduto(ctx, catalog.Produto{
		Nome:        in.Nome,
		CategoriaID: in.CategoriaID,
		EmpresaID:   in.EmpresaID,
		Descricao:   strings.TrimSpace(in.Descricao),
		Custo:       in.Custo,
		Venda:       in.Venda,
		Codigo:      in.Codigo,
		Estoque:     in.Estoque,
		Disponivel:  disponivel,
		Imagem:      strings.TrimSpace(in.Imagem),
		Slug:        slug,
		Style:       strings.TrimSpace(in.Style),
		ABV:         in.ABV,
		IBU:         in.IBU,
	})
	if err != nil {
		return catalog.Produto{}, err
	}
	s.log.WithField("produto_id", p.ID).
		WithField("codigo", p.Codigo).
		Info("produto created")
	return p, nil
}

// ProdutoUpdate lists mutable product fields; nil leaves a field unchanged.
type ProdutoUpdate struct {
	Nome       *string
	Descricao  *string
	Custo      *float64
	Venda      *float64
	Disponivel *bool
	Imagem     *string
	Style      *string
	ABV        *float64
	IBU        *int
}

// UpdateProduto applies upd to the product. Stock is changed only through
// movimentações.
func (s *Service) UpdateProduto(ctx context.Context, id int64, upd ProdutoUpdate) (catalog.Produto, error) {
	p, err := s.GetProduto(ctx, id)
	if err != nil {
		return catalog.Produto{}, err
	}
	if upd.Nome != nil {
		nome := strings.TrimSpace(*upd.Nome)
		if nome == "" {
			return catalog.Produto{}, errors.BadRequest("nome não pode ser vazio")
		}
		p.Nome = nome
	}
	if upd.Descricao != nil {
		p.Descricao = strings.TrimSpace(*upd.Descricao)
	}
	if upd.Custo != nil {
		if *upd.Custo < 0 {
			return catalog.Produto{}, errors.BadRequest("custo não pode ser negativo")
		}
		p.Custo = *upd.Custo
	}
	if upd.Venda != nil {
		if *upd.Venda < 0 {
			return catalog.Produto{}, errors.BadRequest("venda não pode ser negativa")
		}
		p.Venda = *upd.Venda
	}
	if upd.Disponivel != nil {
		p.Disponivel = *upd.Disponivel
	}
	if upd.Imagem != nil {
		p.Imagem = strings.TrimSpace(*upd.Imagem)
	}
	if upd.Style != nil {
		p.Style = strings.TrimSpace(*upd.Style)
	}
	if upd.ABV != nil {
		p.ABV = *upd.ABV
	}
	if upd.IBU != nil {
		p.IBU = *upd.IBU
	}

	p, err = s.store.UpdateProduto(ctx, p)
	if err != nil {
		return catalog.Produto{}, err
	}
	s.log.WithField("produto_id", p.ID).Info("produto updated")
	return p, nil
}

// SetRating stores the product's average rating.
func (s *Service) SetRating(ctx context.Context, id int64, rating float64) error {
	p, err := s.store.GetProduto(ctx, id)
	if err != nil {
		return err
	}
	p.Rating = rating
	_, err = s.store.UpdateProduto(ctx, p)
	return err
}

// GetProduto fetches a product.
func (s *Service) GetProduto(ctx context.Context, id int64) (catalog.Produto, error) {
	p, err := s.store.GetProduto(ctx, id)
	if stderrors.Is(err, storage.ErrNotFound) {
		return catalog.Produto{}, errors.NotFound("Produto")
	}
	return p, err
}

// GetProdutoByCodigo fetches a product by its code.
func (s *Service) GetProdutoByCodigo(ctx context.Context, codigo string) (catalog.Produto, error) {
	p, err := s.store.GetProdutoByCodigo(ctx, strings.TrimSpace(codigo))
	if stderrors.Is(err, storage.ErrNotFound) {
		return catalog.Produto{}, errors.NotFound("Produto")
	}
	return p, err
}

// ListProdutos returns products matching filter, at most DefaultListLimit
// when no limit is set.
func (s *Service) ListProdutos(ctx context.Context, filter catalog.ProdutoFilter) ([]catalog.Produto, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultListLimit
	}
	return s.store.ListProdutos(ctx, filter)
}

// CountProdutos returns the number of products.
func (s *Service) CountProdutos(ctx context.Context) (int, error) {
	all, err := s.store.ListProdutos(ctx, catalog.ProdutoFilter{})
	if err != nil {
		return 0, err
	}
	return len(all), nil
}
