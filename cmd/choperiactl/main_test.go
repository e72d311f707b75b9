package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/happy-hops/choperia/internal/app/domain/dashboard"
	"github.com/happy-hops/choperia/pkg/client/localstore"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMesasListJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/mesas" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(localstore.DefaultMesas(3))
	}))
	defer srv.Close()

	mirror := filepath.Join(t.TempDir(), "mirror.json")
	out, err := execute(t, "--server", srv.URL, "--mirror", mirror, "--json", "mesas", "list")
	if err != nil {
		t.Fatalf("mesas list: %v", err)
	}
	var views []map[string]interface{}
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if len(views) != 3 || views[2]["slug"] != "Mesa-03" {
		t.Fatalf("unexpected mesas %v", views)
	}
}

func TestMesasListOfflineUsesMirror(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	mirror := filepath.Join(t.TempDir(), "mirror.json")
	out, err := execute(t, "--server", base, "--mirror", mirror, "mesas", "list")
	if err != nil {
		t.Fatalf("mesas list: %v", err)
	}
	if !strings.Contains(out, "Mesa-10") || !strings.Contains(out, "Livre") {
		t.Fatalf("expected default mirror mesas, got:\n%s", out)
	}
}

func TestDashboardText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(dashboard.Metrics{MesasAtivas: 2, ProdutosCount: 10, PedidosHoje: 3, FaturamentoHoje: 45.5})
	}))
	defer srv.Close()

	out, err := execute(t, "--server", srv.URL, "--mirror", filepath.Join(t.TempDir(), "m.json"), "dashboard")
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if !strings.Contains(out, "Mesas ativas:      2") || !strings.Contains(out, "45.50") {
		t.Fatalf("unexpected dashboard output:\n%s", out)
	}
}

func TestAddItemRejectsBadID(t *testing.T) {
	if _, err := execute(t, "--mirror", filepath.Join(t.TempDir(), "m.json"), "mesas", "add-item", "x", "4"); err == nil {
		t.Fatal("expected error for invalid mesa id")
	}
}

func TestHealthReportsPending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "m.json")
	store, err := localstore.Open(path)
	if err != nil {
		t.Fatalf("open mirror: %v", err)
	}
	if _, err := store.Enqueue(http.MethodPost, "/pedidos", nil); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	out, err := execute(t, "--server", srv.URL, "--mirror", path, "health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if !strings.Contains(out, "online (1 pending writes)") {
		t.Fatalf("unexpected health output: %s", out)
	}
}
