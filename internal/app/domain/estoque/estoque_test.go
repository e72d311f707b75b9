package estoque

import (
	"testing"
	"time"
)

func TestApply(t *testing.T) {
	if got := Apply(10, TipoEntrada, 5); got != 15 {
		t.Fatalf("entrada: expected 15, got %d", got)
	}
	if got := Apply(3, TipoSaida, 5); got != 0 {
		t.Fatalf("saida: expected floor at 0, got %d", got)
	}
	if got := Apply(3, Tipo("ajuste"), 2); got != 5 {
		t.Fatalf("unknown tipo: expected increment, got %d", got)
	}
}

func TestReservaExpiry(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	r := Reserva{Status: ReservaAtiva, ExpiraEm: &past}
	if !r.Expired(now) || r.Holds(now) {
		t.Fatalf("expected expired carrinho reservation")
	}
	mesaRes := Reserva{Status: ReservaAtiva}
	if mesaRes.Expired(now) || !mesaRes.Holds(now) {
		t.Fatalf("mesa reservation without expiry must hold")
	}
	done := Reserva{Status: ReservaConfirmada}
	if done.Holds(now) {
		t.Fatalf("confirmed reservation must not hold stock")
	}
}
