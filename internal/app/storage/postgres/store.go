package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/happy-hops/choperia/internal/app/domain/catalog"
	"github.com/happy-hops/choperia/internal/app/domain/mesa"
	"github.com/happy-hops/choperia/internal/app/domain/user"
	"github.com/happy-hops/choperia/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var (
	_ storage.Transactor     = (*Store)(nil)
	_ storage.UserStore      = (*Store)(nil)
	_ storage.CatalogStore   = (*Store)(nil)
	_ storage.MesaStore      = (*Store)(nil)
	_ storage.PedidoStore    = (*Store)(nil)
	_ storage.EstoqueStore   = (*Store)(nil)
	_ storage.LojaStore      = (*Store)(nil)
	_ storage.CarrinhoStore  = (*Store)(nil)
	_ storage.PagamentoStore = (*Store)(nil)
)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Open connects to dsn with the lib/pq driver.
func Open(ctx context.Context, dsn string, maxOpenConns int) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxOpenConns)
	}
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type txKey struct{}

// WithinTx runs fn inside a transaction carried by the context. Nested calls
// join the outer transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

// q returns the transaction bound to ctx, or the pool.
func (s *Store) q(ctx context.Context) sqlx.ExtContext {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return s.db
}

// mapErr translates driver errors into storage sentinels.
func mapErr(err error, kind string, key interface{}) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %v: %w", kind, key, storage.ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%s %v: %s: %w", kind, key, pqErr.Constraint, storage.ErrConflict)
	}
	return err
}

func expectRows(res sql.Result, kind string, key interface{}) error {
	if rows, _ := res.RowsAffected(); rows == 0 {
		return mapErr(sql.ErrNoRows, kind, key)
	}
	return nil
}

// --- UserStore ---------------------------------------------------------------

const userColumns = `id, username, email, nome, password, tipo, is_active, is_superuser, last_login, created_at, updated_at`

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	err := s.q(ctx).QueryRowxContext(ctx, `
		INSERT INTO users (username, email, nome, password, tipo, is_active, is_superuser, last_login, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, u.Username, u.Email, u.Nome, u.PasswordHash, u.Tipo, u.IsActive, u.IsSuperuser, u.LastLogin, u.CreatedAt, u.UpdatedAt).Scan(&u.ID)
	if err != nil {
		return user.User{}, mapErr(err, "user", u.Email)
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	u.UpdatedAt = time.Now().UTC()
	err := s.q(ctx).QueryRowxContext(ctx, `
		UPDATE users
		SET username = $2, email = $3, nome = $4, password = $5, tipo = $6,
		    is_active = $7, is_superuser = $8, last_login = $9, updated_at = $10
		WHERE id = $1
		RETURNING created_at
	`, u.ID, u.Username, u.Email, u.Nome, u.PasswordHash, u.Tipo, u.IsActive, u.IsSuperuser, u.LastLogin, u.UpdatedAt).Scan(&u.CreatedAt)
	if err != nil {
		return user.User{}, mapErr(err, "user", u.ID)
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (user.User, error) {
	var u user.User
	err := sqlx.GetContext(ctx, s.q(ctx), &u, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return u, mapErr(err, "user", id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User
	err := sqlx.GetContext(ctx, s.q(ctx), &u, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
	return u, mapErr(err, "user", email)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	var u user.User
	err := sqlx.GetContext(ctx, s.q(ctx), &u, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	return u, mapErr(err, "user", username)
}

func (s *Store) ListUsers(ctx context.Context) ([]user.User, error) {
	var result []user.User
	err := sqlx.SelectContext(ctx, s.q(ctx), &result, `SELECT `+userColumns+` FROM users ORDER BY id`)
	return result, err
}

func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	res, err := s.q(ctx).ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectRows(res, "user", id)
}

// --- CatalogStore ------------------------------------------------------------

func (s *Store) CreateCategoria(ctx context.Context, c catalog.Categoria) (catalog.Categoria, error) {
	c.CreatedAt = time.Now().UTC()
	err := s.q(ctx).QueryRowxContext(ctx, `
		INSERT INTO categorias (nome, descricao, ativa, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, c.Nome, c.Descricao, c.Ativa, c.CreatedAt).Scan(&c.ID)
	if err != nil {
		return catalog.Categoria{}, mapErr(err, "categoria", c.Nome)
	}
	return c, nil
}

func (s *Store) GetCategoria(ctx context.Context, id int64) (catalog.Categoria, error) {
	var c catalog.Categoria
	err := sqlx.GetContext(ctx, s.q(ctx), &c, `SELECT id, nome, descricao, ativa, created_at FROM categorias WHERE id = $1`, id)
	return c, mapErr(err, "categoria", id)
}

func (s *Store) ListCategorias(ctx context.Context) ([]catalog.Categoria, error) {
	var result []catalog.Categoria
	err := sqlx.SelectContext(ctx, s.q(ctx), &result, `SELECT id, nome, descricao, ativa, created_at FROM categorias ORDER BY id`)
	return result, err
}

const empresaColumns = `id, nome, endereco, telefone, email, cnpj, slug, status, created_at, updated_at`

func (s *Store) CreateEmpresa(ctx context.Context, e catalog.Empresa) (catalog.Empresa, error) {
	now := time.Now().UTC()
	e.CreatedAt, e.UpdatedAt = now, now
	err := s.q(ctx).QueryRowxContext(ctx, `
		INSERT INTO empresas (nome, endereco, telefone, email, cnpj, slug, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, e.Nome, e.Endereco, e.Telefone, e.Email, e.CNPJ, e.Slug, e.Status, e.CreatedAt, e.UpdatedAt).Scan(&e.ID)
	if err != nil {
		return catalog.Empresa{}, mapErr(err, "empresa", e.CNPJ)
	}
	return e, nil
}

func (s *Store) UpdateEmpresa(ctx context.Context, e catalog.Empresa) (catalog.Empresa, error) {
	e.UpdatedAt = time.Now().UTC()
	err := s.q(ctx).QueryRowxContext(ctx, `
		UPDATE empresas
		SET nome = $2, endereco = $3, telefone = $4, email = $5, cnpj = $6, slug = $7, status = $8, updated_at = $9
		WHERE id = $1
		RETURNING created_at
	`, e.ID, e.Nome, e.Endereco, e.Telefone, e.Email, e.CNPJ, e.Slug, e.Status, e.UpdatedAt).Scan(&e.CreatedAt)
	if err != nil {
		return catalog.Empresa{}, mapErr(err, "empresa", e.ID)
	}
	return e, nil
}

func (s *Store) GetEmpresa(ctx context.Context, id int64) (catalog.Empresa, error) {
	var e catalog.Empresa
	err := sqlx.GetContext(ctx, s.q(ctx), &e, `SELECT `+empresaColumns+` FROM empresas WHERE id = $1`, id)
	return e, mapErr(err, "empresa", id)
}

func (s *Store) ListEmpresas(ctx context.Context) ([]catalog.Empresa, error) {
	var result []catalog.Empresa
	err := sqlx.SelectContext(ctx, s.q(ctx), &result, `SELECT `+empresaColumns+` FROM empresas ORDER BY id`)
	return result, err
}

func (s *Store) CreateNotaFiscal(ctx context.Context, nf catalog.NotaFiscal) (catalog.NotaFiscal, error) {
	if _, err := s.GetEmpresa(ctx, nf.EmpresaID); err != nil {
		return catalog.NotaFiscal{}, err
	}
	nf.CreatedAt = time.Now().UTC()
	err := s.q(ctx).QueryRowxContext(ctx, `
		INSERT INTO notas_fiscais (empresa_id, serie, numero, descricao, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, nf.EmpresaID, nf.Serie, nf.Numero, nf.Descricao, nf.Data, nf.CreatedAt).Scan(&nf.ID)
	if err != nil {
		return catalog.NotaFiscal{}, mapErr(err, "nota fiscal", nf.Serie+"/"+nf.Numero)
	}
	return nf, nil
}

func (s *Store) ListNotasFiscais(ctx context.Context, empresaID int64) ([]catalog.NotaFiscal, error) {
	var result []catalog.NotaFiscal
	err := sqlx.SelectContext(ctx, s.q(ctx), &result, `
		SELECT id, empresa_id, serie, numero, descricao, data, created_at
		FROM notas_fiscais WHERE empresa_id = $1 ORDER BY id
	`, empresaID)
	return result, err
}

const produtoColumns = `id, nome, categoria_id, empresa_id, descricao, custo, venda, codigo, estoque, disponivel,
	imagem, slug, style, abv, ibu, rating, created_at, updated_at`

func (s *Store) CreateProduto(ctx context.Context, p catalog.Produto) (catalog.Produto, error) {
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	err := s.q(ctx).QueryRowxContext(ctx, `
		INSERT INTO produtos (nome, categoria_id, empresa_id, descricao, custo, venda, codigo, estoque, disponivel,
		                      imagem, slug, style, abv, ibu, rating, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id
	`, p.Nome, p.CategoriaID, p.EmpresaID, p.Descricao, p.Custo, p.Venda, p.Codigo, p.Estoque, p.Disponivel,
		p.Imagem, p.Slug, p.Style, p.ABV, p.IBU, p.Rating, p.CreatedAt, p.UpdatedAt).Scan(&p.ID)
	if err != nil {
		return catalog.Produto{}, mapErr(err, "produto", p.Codigo)
	}
	return p, nil
}

// UpdateProduto leaves estoque untouched and returns the stored value.
func (s *Store) UpdateProduto(ctx context.Context, p catalog.Produto) (catalog.Produto, error) {
	p.UpdatedAt = time.Now().UTC()
	err := s.q(ctx).QueryRowxContext(ctx, `
		UPDATE produtos
		SET nome = $2, categoria_id = $3, empresa_id = $4, descricao = $5, custo = $6, venda = $7, codigo = $8,
		    disponivel = $9, imagem = $10, slug = $11, style = $12, abv = $13, ibu = $14, rating = $15, updated_at = $16
		WHERE id = $1
		RETURNING estoque, created_at
	`, p.ID, p.Nome, p.CategoriaID, p.EmpresaID, p.Descricao, p.Custo, p.Venda, p.Codigo,
		p.Disponivel, p.Imagem, p.Slug, p.Style, p.ABV, p.IBU, p.Rating, p.UpdatedAt).Scan(&p.Estoque, &p.CreatedAt)
	if err != nil {
		return catalog.Produto{}, mapErr(err, "produto", p.ID)
	}
	return p, nil
}

// LockProduto takes a row lock on the produto for the surrounding
// transaction.
func (s *Store) LockProduto(ctx context.Context, id int64) error {
	var locked int64
	err := s.q(ctx).QueryRowxContext(ctx, `SELECT id FROM produtos WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	return mapErr(err, "produto", id)
}

func (s *Store) GetProduto(ctx context.Context, id int64) (catalog.Produto, error) {
	var p catalog.Produto
	err := sqlx.GetContext(ctx, s.q(ctx), &p, `SELECT `+produtoColumns+` FROM produtos WHERE id = $1`, id)
	return p, mapErr(err, "produto", id)
}

func (s *Store) GetProdutoByCodigo(ctx context.Context, codigo string) (catalog.Produto, error) {
	var p catalog.Produto
	err := sqlx.GetContext(ctx, s.q(ctx), &p, `SELECT `+produtoColumns+` FROM produtos WHERE codigo = $1`, codigo)
	return p, mapErr(err, "produto", codigo)
}

func (s *Store) GetProdutoBySlug(ctx context.Context, slug string) (catalog.Produto, error) {
	var p catalog.Produto
	err := sqlx.GetContext(ctx, s.q(ctx), &p, `SELECT `+produtoColumns+` FROM produtos WHERE slug = $1`, slug)
	return p, mapErr(err, "produto", slug)
}

func (s *Store) ListProdutos(ctx context.Context, filter catalog.ProdutoFilter) ([]catalog.Produto, error) {
	w := where{}
	if filter.CategoriaID != 0 {
		w.add("categoria_id = ?", filter.CategoriaID)
	}
	if filter.EmpresaID != 0 {
		w.add("empresa_id = ?", filter.EmpresaID)
	}
	if filter.Disponivel != nil {
		w.add("disponivel = ?", *filter.Disponivel)
	}
	query := `SELECT ` + produtoColumns + ` FROM produtos` + w.sql() + ` ORDER BY id` + limit(filter.Limit)

	var result []catalog.Produto
	err := sqlx.SelectContext(ctx, s.q(ctx), &result, s.db.Rebind(query), w.args...)
	return result, err
}

// --- MesaStore ---------------------------------------------------------------

const mesaColumns = `id, nome, slug, status, usuario_responsavel_id, capacidade, observacoes, created_at, updated_at`

func (s *Store) CreateMesa(ctx context.Context, m mesa.Mesa) (mesa.Mesa, error) {
	now := time.Now().UTC()
	m.CreatedAt, m.UpdatedAt = now, now
	err := s.q(ctx).QueryRowxContext(ctx, `
		INSERT INTO mesas (nome, slug, status, usuario_responsavel_id, capacidade, observacoes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, m.Nome, m.Slug, m.Status, m.UsuarioResponsavelID, m.Capacidade, m.Observacoes, m.CreatedAt, m.UpdatedAt).Scan(&m.ID)
	if err != nil {
		return mesa.Mesa{}, mapErr(err, "mesa", m.Slug)
	}
	return m, nil
}

func (s *Store) UpdateMesa(ctx context.Context, m mesa.Mesa) (mesa.Mesa, error) {
	m.UpdatedAt = time.Now().UTC()
	err := s.q(ctx).QueryRowxContext(ctx, `
		UPDATE mesas
		SET nome = $2, slug = $3, status = $4, usuario_responsavel_id = $5, capacidade = $6, observacoes = $7, updated_at = $8
		WHERE id = $1
		RETURNING created_at
	`, m.ID, m.Nome, m.Slug, m.Status, m.UsuarioResponsavelID, m.Capacidade, m.Observacoes, m.UpdatedAt).Scan(&m.CreatedAt)
	if err != nil {
		return mesa.Mesa{}, mapErr(err, "mesa", m.ID)
	}
	return m, nil
}

func (s *Store) GetMesa(ctx context.Context, id int64) (mesa.Mesa, error) {
	var m mesa.Mesa
	err := sqlx.GetContext(ctx, s.q(ctx), &m, `SELECT `+mesaColumns+` FROM mesas WHERE id = $1`, id)
	return m, mapErr(err, "mesa", id)
}

func (s *Store) GetMesaBySlug(ctx context.Context, slug string) (mesa.Mesa, error) {
	var m mesa.Mesa
	err := sqlx.GetContext(ctx, s.q(ctx), &m, `SELECT `+mesaColumns+` FROM mesas WHERE slug = $1`, slug)
	return m, mapErr(err, "mesa", slug)
}

func (s *Store) ListMesas(ctx context.Context) ([]mesa.Mesa, error) {
	var result []mesa.Mesa
	err := sqlx.SelectContext(ctx, s.q(ctx), &result, `SELECT `+mesaColumns+` FROM mesas ORDER BY id`)
	return result, err
}

func (s *Store) DeleteMesa(ctx context.Context, id int64) error {
	res, err := s.q(ctx).ExecContext(ctx, `DELETE FROM mesas WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectRows(res, "mesa", id)
}

// where accumulates AND-ed conditions written with ? placeholders; queries
// are rebound to the driver's bindvar style before execution.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, arg interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, arg)
}

func (w where) sql() string {
	if len(w.conds) == 0 {
		return ""
	}
	out := " WHERE " + w.conds[0]
	for _, c := range w.conds[1:] {
		out += " AND " + c
	}
	return out
}

func limit(n int) string {
	if n <= 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d", n)
}
