package httpapi

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/happy-hops/choperia/internal/errors"
	internalhttputil "github.com/happy-hops/choperia/internal/httputil"
)

const maxBodyBytes = 1 << 20

// maxInt is the largest integer a JSON number carries exactly.
const maxInt = 1 << 53

// intKeys are the fields read with Int, at any depth.
var intKeys = map[string]bool{
	"id": true, "user_id": true, "userId": true, "usuario_id": true,
	"produto_id": true, "categoria_id": true, "categoriaId": true, "empresa_id": true, "empresaId": true,
	"mesa_id": true, "mesaId": true, "pedido_id": true, "item_id": true, "cart_id": true, "carrinho_id": true,
	"atendente_id": true, "atendenteId": true, "to_user_id": true, "novo_usuario_id": true,
	"usuario_responsavel_id": true, "usuarioResponsavelId": true,
	"quantidade": true, "quantity": true, "capacidade": true, "estoque": true, "ibu": true,
	"rating": true, "nota": true, "uso_maximo": true, "usoMaximo": true,
}

// payload reads request fields under any of the names the front-end uses.
type payload struct {
	doc gjson.Result
}

func readPayload(r *http.Request) (payload, error) {
	if r.Body == nil {
		return payload{}, nil
	}
	defer r.Body.Close()
	body, err := internalhttputil.ReadAllStrict(r.Body, maxBodyBytes)
	if err != nil {
		return payload{}, errors.BadRequest("payload muito grande")
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return payload{}, nil
	}
	if !gjson.ValidBytes(body) {
		return payload{}, errors.BadRequest("payload inválido")
	}
	doc := gjson.ParseBytes(body)
	if err := checkInts(doc); err != nil {
		return payload{}, err
	}
	return payload{doc: doc}, nil
}

// checkInts rejects integer fields holding a fraction or a number too large
// to be exact. Non-numeric text is left for the handler to ignore.
func checkInts(doc gjson.Result) error {
	var bad error
	doc.ForEach(func(key, value gjson.Result) bool {
		switch {
		case value.IsObject() || value.IsArray():
			bad = checkInts(value)
		case intKeys[key.Str] && !integral(value):
			bad = errors.BadRequest("valor inteiro inválido").WithDetails("campo", key.Str)
		}
		return bad == nil
	})
	return bad
}

func integral(v gjson.Result) bool {
	f := v.Num
	switch v.Type {
	case gjson.Number:
	case gjson.String:
		parsed, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(v.Str), ",", "."), 64)
		if err != nil {
			return true
		}
		f = parsed
	default:
		return true
	}
	return f == math.Trunc(f) && math.Abs(f) <= maxInt
}

func (p payload) lookup(keys ...string) (gjson.Result, bool) {
	for _, k := range keys {
		v := p.doc.Get(k)
		if v.Exists() && v.Type != gjson.Null {
			if v.Type == gjson.String && strings.TrimSpace(v.Str) == "" {
				continue
			}
			return v, true
		}
	}
	return gjson.Result{}, false
}

// String returns the first present field as trimmed text.
func (p payload) String(keys ...string) string {
	v, ok := p.lookup(keys...)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v.String())
}

// Float returns the first present field that holds a number or numeric text.
func (p payload) Float(keys ...string) (float64, bool) {
	v, ok := p.lookup(keys...)
	if !ok {
		return 0, false
	}
	switch v.Type {
	case gjson.Number:
		return v.Num, true
	case gjson.String:
		f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(v.Str), ",", "."), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// FloatPtr is Float returning nil when absent.
func (p payload) FloatPtr(keys ...string) *float64 {
	f, ok := p.Float(keys...)
	if !ok {
		return nil
	}
	return &f
}

// Int returns the first present integral field. Fractions and values
// beyond what a JSON number holds exactly are rejected.
func (p payload) Int(keys ...string) (int64, bool) {
	f, ok := p.Float(keys...)
	if !ok {
		return 0, false
	}
	if f != math.Trunc(f) || math.Abs(f) > maxInt {
		return 0, false
	}
	return int64(f), true
}

// IntPtr is Int returning nil when absent.
func (p payload) IntPtr(keys ...string) *int64 {
	n, ok := p.Int(keys...)
	if !ok {
		return nil
	}
	return &n
}

// Bool accepts JSON booleans and "true"/"false" text.
func (p payload) Bool(keys ...string) *bool {
	v, ok := p.lookup(keys...)
	if !ok {
		return nil
	}
	var b bool
	switch v.Type {
	case gjson.True, gjson.False:
		b = v.Bool()
	case gjson.String:
		parsed, err := strconv.ParseBool(strings.TrimSpace(v.Str))
		if err != nil {
			return nil
		}
		b = parsed
	default:
		return nil
	}
	return &b
}

// Array returns the elements of the first present array field.
func (p payload) Array(keys ...string) []payload {
	v, ok := p.lookup(keys...)
	if !ok || !v.IsArray() {
		return nil
	}
	items := v.Array()
	out := make([]payload, len(items))
	for i, item := range items {
		out[i] = payload{doc: item}
	}
	return out
}

// Has reports whether any of keys is present.
func (p payload) Has(keys ...string) bool {
	_, ok := p.lookup(keys...)
	return ok
}
