package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetServiceErrorUnwrapsChain(t *testing.T) {
	base := NotFound("Mesa")
	wrapped := fmt.Errorf("load mesa 3: %w", base)

	got := GetServiceError(wrapped)
	require.NotNil(t, got)
	assert.Equal(t, CodeNotFound, got.Code)
	assert.Equal(t, http.StatusNotFound, got.HTTPStatus)
	assert.Equal(t, "Mesa não encontrado", got.Message)
	assert.True(t, Is(wrapped, CodeNotFound))
	assert.Nil(t, GetServiceError(stderrors.New("plain")))
}

func TestTokenErrorsKeepCause(t *testing.T) {
	cause := stderrors.New("signature mismatch")
	err := InvalidToken(cause).WithDetails("reason", "signature")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusUnauthorized, err.HTTPStatus)
	assert.Equal(t, "signature", err.Details["reason"])
	assert.Contains(t, err.Error(), "signature mismatch")
}

func TestRateLimitDetails(t *testing.T) {
	err := RateLimitExceeded(20, "1s")
	assert.Equal(t, http.StatusTooManyRequests, err.HTTPStatus)
	assert.Equal(t, 20, err.Details["limit"])
	assert.Equal(t, "1s", err.Details["window"])
}
