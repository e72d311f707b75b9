// Package localstore is the file-backed mirror the client falls back to when
// the API is unreachable. Each key holds one JSON document; every write
// rewrites the whole file through a temp file and rename.
package localstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/happy-hops/choperia/internal/app/domain/catalog"
	"github.com/happy-hops/choperia/internal/app/domain/estoque"
	"github.com/happy-hops/choperia/internal/app/domain/mesa"
	"github.com/happy-hops/choperia/internal/app/domain/pedido"
)

// Keys of the mirror document.
const (
	KeyMesas          = "mesas"
	KeyProdutos       = "produtos"
	KeyPedidosLocais  = "pedidos_locais"
	KeyEmpresas       = "empresas"
	KeyMovimentacoes  = "estoque_movimentacoes"
	KeyMesaEvents     = "mesa_events"
	KeyOutbox         = "outbox"
	KeyContador       = "contador_pedidos"
	KeyDataContador   = "data_contador_pedidos"
	DefaultMesaCount  = 10
	MaxMesaEvents     = 100
	contadorDayLayout = "2006-01-02"
)

// Op is a write made while offline, replayed against the API by Sync.
type Op struct {
	ID        string          `json:"id"`
	Method    string          `json:"method"`
	Path      string          `json:"path"`
	Body      json.RawMessage `json:"body,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Store is a JSON file guarded by a mutex.
type Store struct {
	mu   sync.Mutex
	path string
	data map[string]json.RawMessage
	now  func() time.Time
}

// Open loads path, starting empty when the file does not exist.
func Open(path string) (*Store, error) {
	s := &Store{path: path, data: make(map[string]json.RawMessage), now: time.Now}
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &s.data); err != nil {
				return nil, fmt.Errorf("parse mirror %s: %w", path, err)
			}
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read mirror %s: %w", path, err)
	}
	return s, nil
}

// WithTimeFunc overrides the clock used for counters and timestamps.
func (s *Store) WithTimeFunc(now func() time.Time) *Store {
	if now != nil {
		s.now = now
	}
	return s
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

func (s *Store) getLocked(key string, dst interface{}) (bool, error) {
	raw, ok := s.data[key]
	if !ok || len(raw) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) setLocked(key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	s.data[key] = raw
	return nil
}

func (s *Store) flushLocked() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// update runs fn under the lock and persists the result when fn succeeds.
func (s *Store) update(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(); err != nil {
		return err
	}
	return s.flushLocked()
}

// --- mesas ---------------------------------------------------------------------

// DefaultMesas builds the mesas 01..n, all Livre.
func DefaultMesas(n int) []mesa.View {
	views := make([]mesa.View, 0, n)
	for i := 1; i <= n; i++ {
		nome := fmt.Sprintf("%02d", i)
		m := mesa.Mesa{
			ID:         int64(i),
			Nome:       nome,
			Slug:       catalog.GenerateSlug(nome),
			Status:     mesa.StatusLivre,
			Capacidade: mesa.DefaultCapacidade,
		}
		views = append(views, mesa.NewView(m, nil))
	}
	return views
}

// Mesas returns the mirrored mesas, seeding the defaults when none exist.
func (s *Store) Mesas() ([]mesa.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mesasLocked()
}

func (s *Store) mesasLocked() ([]mesa.View, error) {
	var views []mesa.View
	if _, err := s.getLocked(KeyMesas, &views); err != nil {
		return nil, err
	}
	if len(views) > 0 {
		return views, nil
	}
	views = DefaultMesas(DefaultMesaCount)
	if err := s.setLocked(KeyMesas, views); err != nil {
		return nil, err
	}
	return views, s.flushLocked()
}

// SetMesas replaces the mirrored mesas.
func (s *Store) SetMesas(views []mesa.View) error {
	return s.update(func() error { return s.setLocked(KeyMesas, views) })
}

// Mesa returns the mirrored mesa with id.
func (s *Store) Mesa(id int64) (mesa.View, bool, error) {
	views, err := s.Mesas()
	if err != nil {
		return mesa.View{}, false, err
	}
	for _, v := range views {
		if v.ID == id {
			return v, true, nil
		}
	}
	return mesa.View{}, false, nil
}

// UpdateMesa applies fn to the mesa with id and persists it. It reports
// false when the mesa is not mirrored.
func (s *Store) UpdateMesa(id int64, fn func(*mesa.View) error) (mesa.View, bool, error) {
	var (
		updated mesa.View
		found   bool
	)
	err := s.update(func() error {
		views, err := s.mesasLocked()
		if err != nil {
			return err
		}
		for i := range views {
			if views[i].ID != id {
				continue
			}
			if err := fn(&views[i]); err != nil {
				return err
			}
			views[i].UpdatedAt = s.now().UTC()
			updated, found = views[i], true
			return s.setLocked(KeyMesas, views)
		}
		return nil
	})
	return updated, found, err
}

// PutMesa inserts or replaces one mirrored mesa.
func (s *Store) PutMesa(v mesa.View) error {
	return s.update(func() error {
		views, err := s.mesasLocked()
		if err != nil {
			return err
		}
		for i := range views {
			if views[i].ID == v.ID {
				views[i] = v
				return s.setLocked(KeyMesas, views)
			}
		}
		return s.setLocked(KeyMesas, append(views, v))
	})
}

// --- catalog -------------------------------------------------------------------

// Produtos returns the mirrored produtos.
func (s *Store) Produtos() ([]catalog.Produto, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []catalog.Produto
	_, err := s.getLocked(KeyProdutos, &out)
	return out, err
}

// SetProdutos replaces the mirrored produtos.
func (s *Store) SetProdutos(ps []catalog.Produto) error {
	return s.update(func() error { return s.setLocked(KeyProdutos, ps) })
}

// Empresas returns the mirrored empresas.
func (s *Store) Empresas() ([]catalog.Empresa, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []catalog.Empresa
	_, err := s.getLocked(KeyEmpresas, &out)
	return out, err
}

// SetEmpresas replaces the mirrored empresas.
func (s *Store) SetEmpresas(es []catalog.Empresa) error {
	return s.update(func() error { return s.setLocked(KeyEmpresas, es) })
}

// Movimentacoes returns mirrored stock movements, all of them when
// produtoID is zero.
func (s *Store) Movimentacoes(produtoID int64) ([]estoque.Movimentacao, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []estoque.Movimentacao
	if _, err := s.getLocked(KeyMovimentacoes, &all); err != nil {
		return nil, err
	}
	if produtoID == 0 {
		return all, nil
	}
	out := make([]estoque.Movimentacao, 0, len(all))
	for _, m := range all {
		if m.ProdutoID == produtoID {
			out = append(out, m)
		}
	}
	return out, nil
}

// SetMovimentacoes replaces the mirrored movements of produtoID, or all of
// them when produtoID is zero.
func (s *Store) SetMovimentacoes(produtoID int64, movs []estoque.Movimentacao) error {
	return s.update(func() error {
		if produtoID == 0 {
			return s.setLocked(KeyMovimentacoes, movs)
		}
		var all []estoque.Movimentacao
		if _, err := s.getLocked(KeyMovimentacoes, &all); err != nil {
			return err
		}
		kept := make([]estoque.Movimentacao, 0, len(all)+len(movs))
		for _, m := range all {
			if m.ProdutoID != produtoID {
				kept = append(kept, m)
			}
		}
		return s.setLocked(KeyMovimentacoes, append(kept, movs...))
	})
}

// --- pedidos -------------------------------------------------------------------

// PedidosLocais returns pedidos recorded by this terminal.
func (s *Store) PedidosLocais() ([]pedido.Pedido, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []pedido.Pedido
	_, err := s.getLocked(KeyPedidosLocais, &out)
	return out, err
}

// SetPedidosLocais replaces the mirrored pedidos.
func (s *Store) SetPedidosLocais(ps []pedido.Pedido) error {
	return s.update(func() error { return s.setLocked(KeyPedidosLocais, ps) })
}

// AddPedidoLocal appends p, assigning a daily number and creation time when
// missing.
func (s *Store) AddPedidoLocal(p pedido.Pedido) (pedido.Pedido, error) {
	err := s.update(func() error {
		if p.Numero == "" {
			p.Numero = s.nextNumeroLocked()
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = s.now().UTC()
		}
		p.UpdatedAt = p.CreatedAt
		var all []pedido.Pedido
		if _, err := s.getLocked(KeyPedidosLocais, &all); err != nil {
			return err
		}
		return s.setLocked(KeyPedidosLocais, append(all, p))
	})
	return p, err
}

// NextPedidoNumero claims the next local pedido number. The counter
// restarts every day.
func (s *Store) NextPedidoNumero() (string, error) {
	var numero string
	err := s.update(func() error {
		numero = s.nextNumeroLocked()
		return nil
	})
	return numero, err
}

func (s *Store) nextNumeroLocked() string {
	today := s.now().Format(contadorDayLayout)
	var (
		day     string
		counter int
	)
	_, _ = s.getLocked(KeyDataContador, &day)
	if day == today {
		_, _ = s.getLocked(KeyContador, &counter)
	}
	counter++
	_ = s.setLocked(KeyContador, counter)
	_ = s.setLocked(KeyDataContador, today)
	return fmt.Sprintf("%02d", counter)
}

// --- mesa events ---------------------------------------------------------------

// MesaEvents returns events newer than since (Unix ms), excluding those
// produced by excludeUserID when it is positive.
func (s *Store) MesaEvents(since, excludeUserID int64) ([]mesa.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []mesa.Event
	if _, err := s.getLocked(KeyMesaEvents, &all); err != nil {
		return nil, err
	}
	out := make([]mesa.Event, 0, len(all))
	for _, e := range all {
		if e.Timestamp <= since {
			continue
		}
		if excludeUserID > 0 && e.User.ID == excludeUserID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// AppendMesaEvents records events not already present, keeping the newest
// MaxMesaEvents.
func (s *Store) AppendMesaEvents(events ...mesa.Event) error {
	if len(events) == 0 {
		return nil
	}
	return s.update(func() error {
		var all []mesa.Event
		if _, err := s.getLocked(KeyMesaEvents, &all); err != nil {
			return err
		}
		seen := make(map[string]struct{}, len(all))
		for _, e := range all {
			seen[e.ID] = struct{}{}
		}
		for _, e := range events {
			if e.ID == "" {
				e.ID = uuid.NewString()
			}
			if e.Timestamp == 0 {
				e.Timestamp = s.now().UnixMilli()
			}
			if _, dup := seen[e.ID]; dup {
				continue
			}
			seen[e.ID] = struct{}{}
			all = append(all, e)
		}
		if len(all) > MaxMesaEvents {
			all = all[len(all)-MaxMesaEvents:]
		}
		return s.setLocked(KeyMesaEvents, all)
	})
}

// --- outbox --------------------------------------------------------------------

// Enqueue records a write for later replay.
func (s *Store) Enqueue(method, path string, body interface{}) (Op, error) {
	op := Op{ID: uuid.NewString(), Method: method, Path: path, CreatedAt: s.now().UTC()}
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return Op{}, fmt.Errorf("encode outbox body: %w", err)
		}
		op.Body = raw
	}
	err := s.update(func() error {
		var ops []Op
		if _, err := s.getLocked(KeyOutbox, &ops); err != nil {
			return err
		}
		return s.setLocked(KeyOutbox, append(ops, op))
	})
	return op, err
}

// Pending returns queued writes, oldest first.
func (s *Store) Pending() ([]Op, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ops []Op
	_, err := s.getLocked(KeyOutbox, &ops)
	return ops, err
}

// Ack removes the queued write with id.
func (s *Store) Ack(id string) error {
	return s.update(func() error {
		var ops []Op
		if _, err := s.getLocked(KeyOutbox, &ops); err != nil {
			return err
		}
		kept := ops[:0]
		for _, op := range ops {
			if op.ID != id {
				kept = append(kept, op)
			}
		}
		return s.setLocked(KeyOutbox, kept)
	})
}
