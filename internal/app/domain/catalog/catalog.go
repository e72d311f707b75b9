package catalog

import "time"

// EmpresaStatus is the lifecycle state of a company.
type EmpresaStatus string

const (
	EmpresaAtiva    EmpresaStatus = "ativa"
	EmpresaInativa  EmpresaStatus = "inativa"
	EmpresaSuspensa EmpresaStatus = "suspensa"
)

// ValidEmpresaStatus reports whether s is a known company status.
func ValidEmpresaStatus(s EmpresaStatus) bool {
	switch s {
	case EmpresaAtiva, EmpresaInativa, EmpresaSuspensa:
		return true
	}
	return false
}

// Empresa is a company selling through the store.
type Empresa struct {
	ID        int64         `json:"id" db:"id"`
	Nome      string        `json:"nome" db:"nome"`
	Endereco  string        `json:"endereco" db:"endereco"`
	Telefone  string        `json:"telefone" db:"telefone"`
	Email     string        `json:"email" db:"email"`
	CNPJ      string        `json:"cnpj" db:"cnpj"`
	Slug      string        `json:"slug" db:"slug"`
	Status    EmpresaStatus `json:"status" db:"status"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" db:"updated_at"`
}

// NotaFiscal is an invoice issued by a company. Serie and Numero are unique
// per company.
type NotaFiscal struct {
	ID        int64     `json:"id" db:"id"`
	EmpresaID int64     `json:"empresa_id" db:"empresa_id"`
	Serie     string    `json:"serie" db:"serie"`
	Numero    string    `json:"numero" db:"numero"`
	Descricao string    `json:"descricao" db:"descricao"`
	Data      time.Time `json:"data" db:"data"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Categoria groups products.
type Categoria struct {
	ID        int64     `json:"id" db:"id"`
	Nome      string    `json:"nome" db:"nome"`
	Descricao string    `json:"descricao" db:"descricao"`
	Ativa     bool      `json:"ativa" db:"ativa"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Produto is a sellable item. Estoque is the on-hand quantity.
type Produto struct {
	ID          int64     `json:"id" db:"id"`
	Nome        string    `json:"nome" db:"nome"`
	CategoriaID int64     `json:"categoria_id" db:"categoria_id"`
	EmpresaID   int64     `json:"empresa_id" db:"empresa_id"`
	Descricao   string    `json:"descricao" db:"descricao"`
	Custo       float64   `json:"custo" db:"custo"`
	Venda       float64   `json:"venda" db:"venda"`
	Codigo      string    `json:"codigo" db:"codigo"`
	Estoque     int       `json:"estoque" db:"estoque"`
	Disponivel  bool      `json:"disponivel" db:"disponivel"`
	Imagem      string    `json:"imagem,omitempty" db:"imagem"`
	Slug        string    `json:"slug" db:"slug"`
	Style       string    `json:"style,omitempty" db:"style"`
	ABV         float64   `json:"abv,omitempty" db:"abv"`
	IBU         int       `json:"ibu,omitempty" db:"ibu"`
	Rating      float64   `json:"rating" db:"rating"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// InStock reports whether the product can currently be sold.
func (p Produto) InStock() bool {
	return p.Disponivel && p.Estoque > 0
}

// ProdutoFilter narrows product listings. Zero values match everything.
type ProdutoFilter struct {
	CategoriaID int64
	EmpresaID   int64
	Disponivel  *bool
	Limit       int
}
