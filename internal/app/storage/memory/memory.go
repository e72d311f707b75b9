package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/happy-hops/choperia/internal/app/domain/carrinho"
	"github.com/happy-hops/choperia/internal/app/domain/catalog"
	"github.com/happy-hops/choperia/internal/app/domain/estoque"
	"github.com/happy-hops/choperia/internal/app/domain/loja"
	"github.com/happy-hops/choperia/internal/app/domain/mesa"
	"github.com/happy-hops/choperia/internal/app/domain/pagamento"
	"github.com/happy-hops/choperia/internal/app/domain/pedido"
	"github.com/happy-hops/choperia/internal/app/domain/user"
	"github.com/happy-hops/choperia/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	// txMu serialises WithinTx blocks; mu guards the maps.
	txMu sync.Mutex
	mu   sync.RWMutex

	// seq holds one id sequence per table, like a SERIAL column.
	seq map[string]int64

	users       map[int64]user.User
	categorias  map[int64]catalog.Categoria
	empresas    map[int64]catalog.Empresa
	notas       map[int64]catalog.NotaFiscal
	produtos    map[int64]catalog.Produto
	mesas       map[int64]mesa.Mesa
	pedidos     map[int64]pedido.Pedido
	pedidoItens map[int64]pedido.Item
	movs        map[int64]estoque.Movimentacao
	reservas    map[int64]estoque.Reserva
	favoritos   map[int64]loja.Favorito
	avaliacoes  map[int64]loja.Avaliacao
	cupons      map[int64]loja.Cupom
	carrinhos   map[int64]carrinho.Carrinho
	cartItens   map[int64]carrinho.Item
	pagamentos  map[int64]pagamento.Pagamento
}

var _ storage.Transactor = (*Store)(nil)
var _ storage.UserStore = (*Store)(nil)
var _ storage.CatalogStore = (*Store)(nil)
var _ storage.MesaStore = (*Store)(nil)
var _ storage.PedidoStore = (*Store)(nil)
var _ storage.EstoqueStore = (*Store)(nil)
var _ storage.LojaStore = (*Store)(nil)
var _ storage.CarrinhoStore = (*Store)(nil)
var _ storage.PagamentoStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		seq:         make(map[string]int64),
		users:       make(map[int64]user.User),
		categorias:  make(map[int64]catalog.Categoria),
		empresas:    make(map[int64]catalog.Empresa),
		notas:       make(map[int64]catalog.NotaFiscal),
		produtos:    make(map[int64]catalog.Produto),
		mesas:       make(map[int64]mesa.Mesa),
		pedidos:     make(map[int64]pedido.Pedido),
		pedidoItens: make(map[int64]pedido.Item),
		movs:        make(map[int64]estoque.Movimentacao),
		reservas:    make(map[int64]estoque.Reserva),
		favoritos:   make(map[int64]loja.Favorito),
		avaliacoes:  make(map[int64]loja.Avaliacao),
		cupons:      make(map[int64]loja.Cupom),
		carrinhos:   make(map[int64]carrinho.Carrinho),
		cartItens:   make(map[int64]carrinho.Item),
		pagamentos:  make(map[int64]pagamento.Pagamento),
	}
}

func (s *Store) nextIDLocked(table string) int64 {
	s.seq[table]++
	return s.seq[table]
}

func notFound(kind string, key interface{}) error {
	return fmt.Errorf("%s %v: %w", kind, key, storage.ErrNotFound)
}

func conflict(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), storage.ErrConflict)
}

type txKey struct{}

// WithinTx runs fn while holding the transaction lock so multi-step
// operations do not interleave. Nested calls reuse the outer lock. Changes
// are not rolled back on error.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(context.WithValue(ctx, txKey{}, true))
}

// UserStore implementation ----------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return user.User{}, conflict("email %s already registered", u.Email)
		}
		if existing.Username == u.Username {
			return user.User{}, conflict("username %s already registered", u.Username)
		}
	}

	u.ID = s.nextIDLocked("users")
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) UpdateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.users[u.ID]
	if !ok {
		return user.User{}, notFound("user", u.ID)
	}
	u.CreatedAt = original.CreatedAt
	u.UpdatedAt = time.Now().UTC()
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id int64) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, notFound("user", id)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return user.User{}, notFound("user", email)
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return user.User{}, notFound("user", username)
}

func (s *Store) ListUsers(_ context.Context) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]user.User, 0, len(s.users))
	for _, u := range s.users {
		result = append(result, u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) DeleteUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return notFound("user", id)
	}
	delete(s.users, id)
	return nil
}

// CatalogStore implementation -------------------------------------------------

func (s *Store) CreateCategoria(_ context.Context, c catalog.Categoria) (catalog.Categoria, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.categorias {
		if strings.EqualFold(existing.Nome, c.Nome) {
			return catalog.Categoria{}, conflict("categoria %s already exists", c.Nome)
		}
	}
	c.ID = s.nextIDLocked("categorias")
	c.CreatedAt = time.Now().UTC()
	s.categorias[c.ID] = c
	return c, nil
}

func (s *Store) GetCategoria(_ context.Context, id int64) (catalog.Categoria, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.categorias[id]
	if !ok {
		return catalog.Categoria{}, notFound("categoria", id)
	}
	return c, nil
}

func (s *Store) ListCategorias(_ context.Context) ([]catalog.Categoria, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]catalog.Categoria, 0, len(s.categorias))
	for _, c := range s.categorias {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) CreateEmpresa(_ context.Context, e catalog.Empresa) (catalog.Empresa, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.empresas {
		if existing.CNPJ == e.CNPJ {
			return catalog.Empresa{}, conflict("cnpj %s already registered", e.CNPJ)
		}
		if e.Slug != "" && existing.Slug == e.Slug {
			return catalog.Empresa{}, conflict("empresa slug %s already exists", e.Slug)
		}
	}
	e.ID = s.nextIDLocked("empresas")
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now
	s.empresas[e.ID] = e
	return e, nil
}

func (s *Store) UpdateEmpresa(_ context.Context, e catalog.Empresa) (catalog.Empresa, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.empresas[e.ID]
	if !ok {
		return catalog.Empresa{}, notFound("empresa", e.ID)
	}
	e.CreatedAt = original.CreatedAt
	e.UpdatedAt = time.Now().UTC()
	s.empresas[e.ID] = e
	return e, nil
}

func (s *Store) GetEmpresa(_ context.Context, id int64) (catalog.Empresa, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.empresas[id]
	if !ok {
		return catalog.Empresa{}, notFound("empresa", id)
	}
	return e, nil
}

func (s *Store) ListEmpresas(_ context.Context) ([]catalog.Empresa, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]catalog.Empresa, 0, len(s.empresas))
	for _, e := range s.empresas {
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) CreateNotaFiscal(_ context.Context, nf catalog.NotaFiscal) (catalog.NotaFiscal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.empresas[nf.EmpresaID]; !ok {
		return catalog.NotaFiscal{}, notFound("empresa", nf.EmpresaID)
	}
	for _, existing := range s.notas {
		if existing.EmpresaID == nf.EmpresaID && existing.Serie == nf.Serie && existing.Numero == nf.Numero {
			return catalog.NotaFiscal{}, conflict("nota fiscal %s/%s already exists", nf.Serie, nf.Numero)
		}
	}
	nf.ID = s.nextIDLocked("notas")
	nf.CreatedAt = time.Now().UTC()
	s.notas[nf.ID] = nf
	return nf, nil
}

func (s *Store) ListNotasFiscais(_ context.Context, empresaID int64) ([]catalog.NotaFiscal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []catalog.NotaFiscal
	for _, nf := range s.notas {
		if nf.EmpresaID == empresaID {
			result = append(result, nf)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) CreateProduto(_ context.Context, p catalog.Produto) (catalog.Produto, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkProdutoUniqueLocked(p); err != nil {
		return catalog.Produto{}, err
	}
	p.ID = s.nextIDLocked("produtos")
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	s.produtos[p.ID] = p
	return p, nil
}

func (s *Store) checkProdutoUniqueLocked(p catalog.Produto) error {
	for _, existing := range s.produtos {
		if existing.ID == p.ID {
			continue
		}
		if existing.Codigo == p.Codigo {
			return conflict("produto codigo %s already exists", p.Codigo)
		}
		if p.Slug != "" && existing.Slug == p.Slug {
			return conflict("produto slug %s already exists", p.Slug)
		}
	}
	return nil
}

func (s *Store) UpdateProduto(_ context.Context, p catalog.Produto) (catalog.Produto, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.produtos[p.ID]
	if !ok {
		return catalog.Produto{}, notFound("produto", p.ID)
	}
	if err := s.checkProdutoUniqueLocked(p); err != nil {
		return catalog.Produto{}, err
	}
	p.Estoque = original.Estoque
	p.CreatedAt = original.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	s.produtos[p.ID] = p
	return p, nil
}

func (s *Store) GetProduto(_ context.Context, id int64) (catalog.Produto, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.produtos[id]
	if !ok {
		return catalog.Produto{}, notFound("produto", id)
	}
	return p, nil
}

func (s *Store) GetProdutoByCodigo(_ context.Context, codigo string) (catalog.Produto, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.produtos {
		if p.Codigo == codigo {
			return p, nil
		}
	}
	return catalog.Produto{}, notFound("produto", codigo)
}

func (s *Store) GetProdutoBySlug(_ context.Context, slug string) (catalog.Produto, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.produtos {
		if p.Slug == slug {
			return p, nil
		}
	}
	return catalog.Produto{}, notFound("produto", slug)
}

func (s *Store) ListProdutos(_ context.Context, filter catalog.ProdutoFilter) ([]catalog.Produto, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]catalog.Produto, 0, len(s.produtos))
	for _, p := range s.produtos {
		if filter.CategoriaID != 0 && p.CategoriaID != filter.CategoriaID {
			continue
		}
		if filter.EmpresaID != 0 && p.EmpresaID != filter.EmpresaID {
			continue
		}
		if filter.Disponivel != nil && p.Disponivel != *filter.Disponivel {
			continue
		}
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// MesaStore implementation ----------------------------------------------------

func (s *Store) CreateMesa(_ context.Context, m mesa.Mesa) (mesa.Mesa, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.mesas {
		if existing.Slug == m.Slug {
			return mesa.Mesa{}, conflict("mesa slug %s already exists", m.Slug)
		}
	}
	m.ID = s.nextIDLocked("mesas")
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now
	m.UsuarioResponsavelID = cloneID(m.UsuarioResponsavelID)
	s.mesas[m.ID] = m
	return cloneMesa(m), nil
}

func (s *Store) UpdateMesa(_ context.Context, m mesa.Mesa) (mesa.Mesa, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.mesas[m.ID]
	if !ok {
		return mesa.Mesa{}, notFound("mesa", m.ID)
	}
	for _, existing := range s.mesas {
		if existing.ID != m.ID && existing.Slug == m.Slug {
			return mesa.Mesa{}, conflict("mesa slug %s already exists", m.Slug)
		}
	}
	m.CreatedAt = original.CreatedAt
	m.UpdatedAt = time.Now().UTC()
	m.UsuarioResponsavelID = cloneID(m.UsuarioResponsavelID)
	s.mesas[m.ID] = m
	return cloneMesa(m), nil
}

func (s *Store) GetMesa(_ context.Context, id int64) (mesa.Mesa, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.mesas[id]
	if !ok {
		return mesa.Mesa{}, notFound("mesa", id)
	}
	return cloneMesa(m), nil
}

func (s *Store) GetMesaBySlug(_ context.Context, slug string) (mesa.Mesa, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.mesas {
		if m.Slug == slug {
			return cloneMesa(m), nil
		}
	}
	return mesa.Mesa{}, notFound("mesa", slug)
}

func (s *Store) ListMesas(_ context.Context) ([]mesa.Mesa, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]mesa.Mesa, 0, len(s.mesas))
	for _, m := range s.mesas {
		result = append(result, cloneMesa(m))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) DeleteMesa(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.mesas[id]; !ok {
		return notFound("mesa", id)
	}
	delete(s.mesas, id)
	return nil
}

func cloneID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func cloneMesa(m mesa.Mesa) mesa.Mesa {
	m.UsuarioResponsavelID = cloneID(m.UsuarioResponsavelID)
	return m
}
