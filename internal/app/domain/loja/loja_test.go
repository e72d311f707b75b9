package loja

import (
	"testing"
	"time"
)

func TestCupomValid(t *testing.T) {
	now := time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC)
	max := 2
	c := Cupom{
		Ativo:      true,
		DataInicio: now.Add(-24 * time.Hour),
		DataFim:    now.Add(24 * time.Hour),
		UsoMaximo:  &max,
	}
	if !c.Valid(now) {
		t.Fatalf("expected coupon valid")
	}
	c.UsoAtual = 2
	if c.Valid(now) {
		t.Fatalf("expected coupon exhausted")
	}
	c.UsoAtual = 0
	if c.Valid(now.Add(48 * time.Hour)) {
		t.Fatalf("expected coupon expired")
	}
	c.Ativo = false
	if c.Valid(now) {
		t.Fatalf("expected inactive coupon invalid")
	}
}

func TestCupomDesconto(t *testing.T) {
	pct := Cupom{Tipo: CupomPercentual, Valor: 10}
	if got := pct.Desconto(59.9); got != 5.99 {
		t.Fatalf("expected 5.99, got %v", got)
	}
	fixo := Cupom{Tipo: CupomFixo, Valor: 20}
	if got := fixo.Desconto(15); got != 15 {
		t.Fatalf("expected discount capped at subtotal, got %v", got)
	}
}
