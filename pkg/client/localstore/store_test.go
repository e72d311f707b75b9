package localstore

import (
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/happy-hops/choperia/internal/app/domain/mesa"
	"github.com/happy-hops/choperia/internal/app/domain/pedido"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "mirror.json"))
	require.NoError(t, err)
	return s
}

func TestMesasDefaultToTen(t *testing.T) {
	s := openTemp(t)

	views, err := s.Mesas()
	require.NoError(t, err)
	require.Len(t, views, DefaultMesaCount)
	assert.Equal(t, "01", views[0].Nome)
	assert.Equal(t, "Mesa-01", views[0].Slug)
	assert.Equal(t, "Mesa-10", views[9].Slug)
	assert.Equal(t, mesa.StatusLivre, views[3].Status)
	assert.NotNil(t, views[0].Itens)
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "mirror.json")
	s, err := Open(path)
	require.NoError(t, err)

	_, _, err = s.UpdateMesa(3, func(v *mesa.View) error {
		v.Status = mesa.StatusOcupada
		v.Itens = append(v.Itens, pedido.NewItem(4, "Pilsen", 2, 7.5))
		return nil
	})
	require.NoError(t, err)

	reopened, err := Open(path)
	require.NoError(t, err)
	v, ok, err := reopened.Mesa(3)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, mesa.StatusOcupada, v.Status)
	require.Len(t, v.Itens, 1)
	assert.Equal(t, 15.0, v.Itens[0].Subtotal)
}

func TestNextPedidoNumeroRestartsDaily(t *testing.T) {
	day := time.Date(2026, 3, 1, 22, 0, 0, 0, time.UTC)
	s := openTemp(t).WithTimeFunc(func() time.Time { return day })

	first, err := s.NextPedidoNumero()
	require.NoError(t, err)
	second, err := s.NextPedidoNumero()
	require.NoError(t, err)
	assert.Equal(t, "01", first)
	assert.Equal(t, "02", second)

	day = day.Add(3 * time.Hour)
	next, err := s.NextPedidoNumero()
	require.NoError(t, err)
	assert.Equal(t, "01", next)
}

func TestAddPedidoLocalAssignsNumero(t *testing.T) {
	s := openTemp(t)
	p, err := s.AddPedidoLocal(pedido.Pedido{Tipo: pedido.TipoFisica, Total: 10})
	require.NoError(t, err)
	assert.Equal(t, "01", p.Numero)
	assert.False(t, p.CreatedAt.IsZero())

	all, err := s.PedidosLocais()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMesaEventsFilterAndDedupe(t *testing.T) {
	s := openTemp(t)
	require.NoError(t, s.AppendMesaEvents(
		mesa.Event{ID: "a", Type: mesa.EventOccupied, User: mesa.Actor{ID: 1}, Timestamp: 100},
		mesa.Event{ID: "b", Type: mesa.EventFreed, User: mesa.Actor{ID: 2}, Timestamp: 200},
	))
	require.NoError(t, s.AppendMesaEvents(mesa.Event{ID: "b", Timestamp: 200}))

	events, err := s.MesaEvents(0, 0)
	require.NoError(t, err)
	assert.Len(t, events, 2)

	events, err = s.MesaEvents(100, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "b", events[0].ID)

	events, err = s.MesaEvents(0, 2)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "a", events[0].ID)
}

func TestOutboxKeepsOrder(t *testing.T) {
	s := openTemp(t)
	first, err := s.Enqueue(http.MethodPost, "/mesas/1/itens", map[string]int{"quantidade": 2})
	require.NoError(t, err)
	_, err = s.Enqueue(http.MethodPost, "/mesas/1/pagamento", nil)
	require.NoError(t, err)

	ops, err := s.Pending()
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, "/mesas/1/itens", ops[0].Path)
	assert.JSONEq(t, `{"quantidade":2}`, string(ops[0].Body))
	assert.Empty(t, ops[1].Body)

	require.NoError(t, s.Ack(first.ID))
	ops, err = s.Pending()
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, "/mesas/1/pagamento", ops[0].Path)
}
