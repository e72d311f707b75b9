package storage

import (
	"context"
	"errors"

	"github.com/happy-hops/choperia/internal/app/domain/carrinho"
	"github.com/happy-hops/choperia/internal/app/domain/catalog"
	"github.com/happy-hops/choperia/internal/app/domain/estoque"
	"github.com/happy-hops/choperia/internal/app/domain/loja"
	"github.com/happy-hops/choperia/internal/app/domain/mesa"
	"github.com/happy-hops/choperia/internal/app/domain/pagamento"
	"github.com/happy-hops/choperia/internal/app/domain/pedido"
	"github.com/happy-hops/choperia/internal/app/domain/user"
)

var (
	// ErrNotFound is returned (wrapped) when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned (wrapped) when a uniqueness rule is violated.
	ErrConflict = errors.New("conflict")
)

// Transactor runs fn so that the store calls made with the context it
// receives commit or roll back together.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// UserStore persists user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id int64) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
	GetUserByUsername(ctx context.Context, username string) (user.User, error)
	ListUsers(ctx context.Context) ([]user.User, error)
	DeleteUser(ctx context.Context, id int64) error
}

// CatalogStore persists categorias, empresas, notas fiscais and produtos.
// UpdateProduto never changes Estoque; stock moves only through
// EstoqueStore.ApplyMovimentacao.
type CatalogStore interface {
	CreateCategoria(ctx context.Context, c catalog.Categoria) (catalog.Categoria, error)
	GetCategoria(ctx context.Context, id int64) (catalog.Categoria, error)
	ListCategorias(ctx context.Context) ([]catalog.Categoria, error)

	CreateEmpresa(ctx context.Context, e catalog.Empresa) (catalog.Empresa, error)
	UpdateEmpresa(ctx context.Context, e catalog.Empresa) (catalog.Empresa, error)
	GetEmpresa(ctx context.Context, id int64) (catalog.Empresa, error)
	ListEmpresas(ctx context.Context) ([]catalog.Empresa, error)

	CreateNotaFiscal(ctx context.Context, nf catalog.NotaFiscal) (catalog.NotaFiscal, error)
	ListNotasFiscais(ctx context.Context, empresaID int64) ([]catalog.NotaFiscal, error)

	CreateProduto(ctx context.Context, p catalog.Produto) (catalog.Produto, error)
	UpdateProduto(ctx context.Context, p catalog.Produto) (catalog.Produto, error)
	GetProduto(ctx context.Context, id int64) (catalog.Produto, error)
	GetProdutoByCodigo(ctx context.Context, codigo string) (catalog.Produto, error)
	GetProdutoBySlug(ctx context.Context, slug string) (catalog.Produto, error)
	ListProdutos(ctx context.Context, filter catalog.ProdutoFilter) ([]catalog.Produto, error)
}

// MesaStore persists tables.
type MesaStore interface {
	CreateMesa(ctx context.Context, m mesa.Mesa) (mesa.Mesa, error)
	UpdateMesa(ctx context.Context, m mesa.Mesa) (mesa.Mesa, error)
	GetMesa(ctx context.Context, id int64) (mesa.Mesa, error)
	GetMesaBySlug(ctx context.Context, slug string) (mesa.Mesa, error)
	ListMesas(ctx context.Context) ([]mesa.Mesa, error)
	DeleteMesa(ctx context.Context, id int64) error
}

// PedidoStore persists orders and their items. Returned orders always carry
// their items.
type PedidoStore interface {
	CreatePedido(ctx context.Context, p pedido.Pedido) (pedido.Pedido, error)
	UpdatePedido(ctx context.Context, p pedido.Pedido) (pedido.Pedido, error)
	GetPedido(ctx context.Context, id int64) (pedido.Pedido, error)
	GetOpenPedidoByMesa(ctx context.Context, mesaID int64) (pedido.Pedido, error)
	ListPedidos(ctx context.Context, filter pedido.Filter) ([]pedido.Pedido, error)
	ListPedidoNumeros(ctx context.Context) ([]string, error)
	DeletePedido(ctx context.Context, id int64) error

	AddPedidoItem(ctx context.Context, item pedido.Item) (pedido.Item, error)
	GetPedidoItem(ctx context.Context, id int64) (pedido.Item, error)
	DeletePedidoItem(ctx context.Context, id int64) error
}

// EstoqueStore persists stock movements and reservations.
type EstoqueStore interface {
	// ApplyMovimentacao updates the product's on-hand quantity according to
	// mov and records the movement with its before and after quantities.
	ApplyMovimentacao(ctx context.Context, mov estoque.Movimentacao) (estoque.Movimentacao, error)
	ListMovimentacoes(ctx context.Context, produtoID int64) ([]estoque.Movimentacao, error)

	CreateReserva(ctx context.Context, r estoque.Reserva) (estoque.Reserva, error)
	UpdateReserva(ctx context.Context, r estoque.Reserva) (estoque.Reserva, error)
	GetReserva(ctx context.Context, id int64) (estoque.Reserva, error)
	ListReservas(ctx context.Context, filter estoque.ReservaFilter) ([]estoque.Reserva, error)
}

// LojaStore persists favoritos, avaliações and cupons.
type LojaStore interface {
	CreateFavorito(ctx context.Context, f loja.Favorito) (loja.Favorito, error)
	GetFavorito(ctx context.Context, userID, produtoID int64) (loja.Favorito, error)
	ListFavoritos(ctx context.Context, userID int64) ([]loja.Favorito, error)
	DeleteFavorito(ctx context.Context, userID, produtoID int64) error

	SaveAvaliacao(ctx context.Context, a loja.Avaliacao) (loja.Avaliacao, error)
	ListAvaliacoes(ctx context.Context, produtoID int64) ([]loja.Avaliacao, error)
	DeleteAvaliacao(ctx context.Context, userID, produtoID int64) error

	CreateCupom(ctx context.Context, c loja.Cupom) (loja.Cupom, error)
	UpdateCupom(ctx context.Context, c loja.Cupom) (loja.Cupom, error)
	GetCupomByCodigo(ctx context.Context, codigo string) (loja.Cupom, error)
}

// CarrinhoStore persists shopping carts. SaveCarrinho replaces the stored
// items with the ones given, assigning ids to new lines.
type CarrinhoStore interface {
	CreateCarrinho(ctx context.Context, c carrinho.Carrinho) (carrinho.Carrinho, error)
	SaveCarrinho(ctx context.Context, c carrinho.Carrinho) (carrinho.Carrinho, error)
	GetCarrinho(ctx context.Context, id int64) (carrinho.Carrinho, error)
	GetCarrinhoByUser(ctx context.Context, userID int64) (carrinho.Carrinho, error)
	GetCarrinhoBySession(ctx context.Context, sessionID string) (carrinho.Carrinho, error)
	GetCarrinhoByItem(ctx context.Context, itemID int64) (carrinho.Carrinho, error)
}

// PagamentoStore persists payments.
type PagamentoStore interface {
	CreatePagamento(ctx context.Context, p pagamento.Pagamento) (pagamento.Pagamento, error)
	GetPagamentoByPedido(ctx context.Context, pedidoID int64) (pagamento.Pagamento, error)
}
