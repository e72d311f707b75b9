// Package seed loads the default catalog, admin account and mesas into an
// empty installation. Every step skips records that already exist.
package seed

import (
	"context"
	_ "embed"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/happy-hops/choperia/internal/app/services/auth"
	catalogsvc "github.com/happy-hops/choperia/internal/app/services/catalog"
	"github.com/happy-hops/choperia/internal/app/services/mesas"
	"github.com/happy-hops/choperia/internal/app/storage"
	"github.com/happy-hops/choperia/internal/errors"
	"github.com/happy-hops/choperia/pkg/logger"
)

// AdminEmail is the account created for the first administrator.
const AdminEmail = "admin@choperia.local"

//go:embed defaults.yaml
var defaultsYAML []byte

type notaFiscal struct {
	Serie     string `yaml:"serie"`
	Numero    string `yaml:"numero"`
	Descricao string `yaml:"descricao"`
	Data      string `yaml:"data"`
}

type empresa struct {
	Nome       string      `yaml:"nome"`
	Endereco   string      `yaml:"endereco"`
	Telefone   string      `yaml:"telefone"`
	Email      string      `yaml:"email"`
	CNPJ       string      `yaml:"cnpj"`
	NotaFiscal *notaFiscal `yaml:"nota_fiscal"`
}

type produto struct {
	Nome      string  `yaml:"nome"`
	Codigo    string  `yaml:"codigo"`
	Categoria string  `yaml:"categoria"`
	Empresa   string  `yaml:"empresa"`
	Descricao string  `yaml:"descricao"`
	Custo     float64 `yaml:"custo"`
	Venda     float64 `yaml:"venda"`
	Estoque   int     `yaml:"estoque"`
	Style     string  `yaml:"style"`
	ABV       float64 `yaml:"abv"`
	IBU       int     `yaml:"ibu"`
}

// Data is the default dataset.
type Data struct {
	Categorias []string  `yaml:"categorias"`
	Empresas   []empresa `yaml:"empresas"`
	Produtos   []produto `yaml:"produtos"`
	Mesas      int       `yaml:"mesas"`
}

// Defaults parses the embedded dataset.
func Defaults() (Data, error) {
	var d Data
	if err := yaml.Unmarshal(defaultsYAML, &d); err != nil {
		return Data{}, fmt.Errorf("parse seed data: %w", err)
	}
	return d, nil
}

// Services are the application services the seeder writes through.
type Services struct {
	Auth    *auth.Service
	Catalog *catalogsvc.Service
	Mesas   *mesas.Service
}

// Result counts what a run created.
type Result struct {
	Categorias int
	Empresas   int
	Produtos   int
	Users      int
	Mesas      int
}

// Run creates whatever part of data is missing.
func Run(ctx context.Context, svc Services, data Data, adminPassword string, log *logger.Logger) (Result, error) {
	if log == nil {
		log = logger.NewDefault("seed")
	}
	var res Result

	categorias, err := seedCategorias(ctx, svc.Catalog, data.Categorias, &res)
	if err != nil {
		return res, err
	}
	empresas, err := seedEmpresas(ctx, svc.Catalog, data.Empresas, &res)
	if err != nil {
		return res, err
	}
	if err := seedProdutos(ctx, svc.Catalog, data.Produtos, categorias, empresas, &res); err != nil {
		return res, err
	}
	if err := seedAdmin(ctx, svc.Auth, adminPassword, &res); err != nil {
		return res, err
	}
	if err := seedMesas(ctx, svc.Mesas, data.Mesas, &res); err != nil {
		return res, err
	}

	log.WithFields(map[string]interface{}{
		"categorias": res.Categorias,
		"empresas":   res.Empresas,
		"produtos":   res.Produtos,
		"users":      res.Users,
		"mesas":      res.Mesas,
	}).Info("seed complete")
	return res, nil
}

func notFound(err error) bool {
	return errors.Is(err, errors.CodeNotFound) || stderrors.Is(err, storage.ErrNotFound)
}

func seedCategorias(ctx context.Context, svc *catalogsvc.Service, nomes []string, res *Result) (map[string]int64, error) {
	existing, err := svc.ListCategorias(ctx)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]int64, len(existing))
	for _, c := range existing {
		ids[strings.ToUpper(c.Nome)] = c.ID
	}
	for _, nome := range nomes {
		if _, ok := ids[strings.ToUpper(nome)]; ok {
			continue
		}
		c, err := svc.CreateCategoria(ctx, nome, "Categoria "+nome)
		if err != nil {
			return nil, fmt.Errorf("categoria %s: %w", nome, err)
		}
		ids[strings.ToUpper(c.Nome)] = c.ID
		res.Categorias++
	}
	return ids, nil
}

func seedEmpresas(ctx context.Context, svc *catalogsvc.Service, empresas []empresa, res *Result) (map[string]int64, error) {
	existing, err := svc.ListEmpresas(ctx)
	if err != nil {
		return nil, err
	}
	byCNPJ := make(map[string]int64, len(existing))
	ids := make(map[string]int64, len(existing))
	for _, e := range existing {
		byCNPJ[e.CNPJ] = e.ID
		ids[e.Nome] = e.ID
	}
	for _, e := range empresas {
		if _, ok := byCNPJ[e.CNPJ]; ok {
			continue
		}
		created, err := svc.CreateEmpresa(ctx, catalogsvc.EmpresaInput{
			Nome:     e.Nome,
			Endereco: e.Endereco,
			Telefone: e.Telefone,
			Email:    e.Email,
			CNPJ:     e.CNPJ,
		})
		if err != nil {
			return nil, fmt.Errorf("empresa %s: %w", e.Nome, err)
		}
		ids[created.Nome] = created.ID
		res.Empresas++

		if nf := e.NotaFiscal; nf != nil {
			data, err := time.Parse("2006-01-02", nf.Data)
			if err != nil {
				data = time.Now().UTC()
			}
			if _, err := svc.CreateNotaFiscal(ctx, created.ID, nf.Serie, nf.Numero, nf.Descricao, data); err != nil {
				return nil, fmt.Errorf("nota fiscal %s/%s: %w", nf.Serie, nf.Numero, err)
			}
		}
	}
	return ids, nil
}

func seedProdutos(ctx context.Context, svc *catalogsvc.Service, produtos []produto, categorias, empresas map[string]int64, res *Result) error {
	for _, p := range produtos {
		_, err := svc.GetProdutoByCodigo(ctx, p.Codigo)
		if err == nil {
			continue
		}
		if !notFound(err) {
			return err
		}
		if _, err := svc.CreateProduto(ctx, catalogsvc.ProdutoInput{
			Nome:        p.Nome,
			CategoriaID: categorias[strings.ToUpper(p.Categoria)],
			EmpresaID:   empresas[p.Empresa],
			Descricao:   p.Descricao,
			Custo:       p.Custo,
			Venda:       p.Venda,
			Codigo:      p.Codigo,
			Estoque:     p.Estoque,
			Style:       p.Style,
			ABV:         p.ABV,
			IBU:         p.IBU,
		}); err != nil {
			return fmt.Errorf("produto %s: %w", p.Codigo, err)
		}
		res.Produtos++
	}
	return nil
}

func seedAdmin(ctx context.Context, svc *auth.Service, password string, res *Result) error {
	_, err := svc.GetByUsername(ctx, "admin")
	if err == nil {
		return nil
	}
	if !notFound(err) {
		return err
	}
	if password == "" {
		return errors.BadRequest("senha do administrador não configurada")
	}
	if _, err := svc.CreateUser(ctx, auth.CreateUserInput{
		Username: "admin",
		Email:    AdminEmail,
		Nome:     "Administrador",
		Password: password,
		Tipo:     "admin",
	}); err != nil {
		return fmt.Errorf("admin user: %w", err)
	}
	res.Users++
	return nil
}

func seedMesas(ctx context.Context, svc *mesas.Service, count int, res *Result) error {
	for i := 1; i <= count; i++ {
		nome := fmt.Sprintf("%02d", i)
		_, err := svc.GetBySlug(ctx, "Mesa-"+nome)
		if err == nil {
			continue
		}
		if !notFound(err) {
			return err
		}
		if _, err := svc.Create(ctx, mesas.CreateInput{Nome: nome}); err != nil {
			return fmt.Errorf("mesa %s: %w", nome, err)
		}
		res.Mesas++
	}
	return nil
}
