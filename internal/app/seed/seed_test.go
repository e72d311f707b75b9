package seed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app "github.com/happy-hops/choperia/internal/app"
	"github.com/happy-hops/choperia/internal/config"
)

func TestDefaults(t *testing.T) {
	data, err := Defaults()
	require.NoError(t, err)
	assert.Len(t, data.Categorias, 11)
	assert.Len(t, data.Empresas, 3)
	assert.Equal(t, 10, data.Mesas)
	assert.NotEmpty(t, data.Produtos)
}

func TestRun_Idempotent(t *testing.T) {
	ctx := context.Background()
	application, err := app.New(app.Stores{}, config.Default(), nil, nil)
	require.NoError(t, err)
	svc := Services{Auth: application.Auth, Catalog: application.Catalog, Mesas: application.Mesas}

	data, err := Defaults()
	require.NoError(t, err)

	first, err := Run(ctx, svc, data, "admin123", nil)
	require.NoError(t, err)
	assert.Equal(t, len(data.Categorias), first.Categorias)
	assert.Equal(t, len(data.Empresas), first.Empresas)
	assert.Equal(t, len(data.Produtos), first.Produtos)
	assert.Equal(t, 1, first.Users)
	assert.Equal(t, 10, first.Mesas)

	second, err := Run(ctx, svc, data, "admin123", nil)
	require.NoError(t, err)
	assert.Equal(t, Result{}, second)

	admin, _, err := application.Auth.Login(ctx, AdminEmail, "admin123")
	require.NoError(t, err)
	assert.True(t, admin.IsSuperuser)

	mesa, err := application.Mesas.GetBySlug(ctx, "Mesa-10")
	require.NoError(t, err)
	assert.Equal(t, "10", mesa.Nome)

	pilsen, err := application.Catalog.GetProdutoByCodigo(ctx, "CHOP-001")
	require.NoError(t, err)
	assert.Equal(t, 100, pilsen.Estoque)
	assert.NotZero(t, pilsen.CategoriaID)
	assert.NotZero(t, pilsen.EmpresaID)

	notas, err := application.Catalog.ListNotasFiscais(ctx, pilsen.EmpresaID)
	require.NoError(t, err)
	assert.Len(t, notas, 1)
}
