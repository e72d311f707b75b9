package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/happy-hops/choperia/internal/errors"
	internalhttputil "github.com/happy-hops/choperia/internal/httputil"
	"github.com/happy-hops/choperia/internal/logging"
	"github.com/happy-hops/choperia/pkg/logger"
)

const (
	// SignatureHeader carries "ts=<unix>,v1=<hex hmac>" on Mercado Pago
	// notifications.
	SignatureHeader = "X-Signature"
	// RequestIDHeader is the notification id that is part of the signed
	// manifest.
	RequestIDHeader = "X-Request-Id"
)

// WebhookSignature verifies Mercado Pago notification signatures. With an
// empty secret every request is accepted.
type WebhookSignature struct {
	secret    []byte
	tolerance time.Duration
	logger    *logger.Logger
	now       func() time.Time
}

// NewWebhookSignature creates the verifier. tolerance bounds the accepted
// clock skew of the signed timestamp; zero disables the check.
func NewWebhookSignature(secret string, tolerance time.Duration, log *logger.Logger) *WebhookSignature {
	if log == nil {
		log = logger.NewDefault("webhook")
	}
	return &WebhookSignature{
		secret:    []byte(strings.TrimSpace(secret)),
		tolerance: tolerance,
		logger:    log,
		now:       time.Now,
	}
}

// Handler returns the verifying middleware.
func (m *WebhookSignature) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(m.secret) == 0 {
			next.ServeHTTP(w, r)
			return
		}
		if err := m.verify(r); err != nil {
			logging.LogSecurityEvent(r.Context(), m.logger, "webhook_signature_rejected", map[string]interface{}{
				"path":   r.URL.Path,
				"reason": err.Message,
			})
			internalhttputil.WriteErrorResponse(w, r, err.HTTPStatus, string(err.Code), err.Message, nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *WebhookSignature) verify(r *http.Request) *errors.ServiceError {
	ts, v1 := parseSignature(r.Header.Get(SignatureHeader))
	if ts == "" || v1 == "" {
		return errors.Unauthorized("Assinatura ausente")
	}
	if m.tolerance > 0 {
		sec, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return errors.Unauthorized("Assinatura inválida")
		}
		// Mercado Pago sends seconds; some integrations send milliseconds.
		if sec > 1e12 {
			sec /= 1000
		}
		skew := m.now().Sub(time.Unix(sec, 0))
		if skew < 0 {
			skew = -skew
		}
		if skew > m.tolerance {
			return errors.Unauthorized("Assinatura expirada")
		}
	}

	expected := SignManifest(m.secret, r.URL.Query().Get("data.id"), r.Header.Get(RequestIDHeader), ts)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(v1))) {
		return errors.Unauthorized("Assinatura inválida")
	}
	return nil
}

// SignManifest computes the hex HMAC-SHA256 Mercado Pago expects for a
// notification.
func SignManifest(secret []byte, dataID, requestID, ts string) string {
	var b strings.Builder
	if dataID != "" {
		b.WriteString("id:" + strings.ToLower(dataID) + ";")
	}
	if requestID != "" {
		b.WriteString("request-id:" + requestID + ";")
	}
	b.WriteString("ts:" + ts + ";")

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(b.String()))
	return hex.EncodeToString(mac.Sum(nil))
}

func parseSignature(header string) (ts, v1 string) {
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.TrimSpace(kv[0]) {
		case "ts":
			ts = strings.TrimSpace(kv[1])
		case "v1":
			v1 = strings.TrimSpace(kv[1])
		}
	}
	return ts, v1
}
