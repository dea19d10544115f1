package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCodeUnwrapsChains(t *testing.T) {
	base := New(CodeNotFound, "report not found")
	wrapped := fmt.Errorf("verify: %w", base)

	assert.True(t, HasCode(wrapped, CodeNotFound))
	assert.False(t, HasCode(wrapped, CodeValidation))
	assert.False(t, HasCode(errors.New("plain"), CodeNotFound))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeInternal, "store unavailable")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, CodeInternal, CodeOf(err))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestMessageHidesInternalDetail(t *testing.T) {
	assert.Equal(t, "report not found", Message(New(CodeNotFound, "report not found")))
	assert.Equal(t, "internal error", Message(Wrap(errors.New("disk full"), CodeInternal, "stats write failed")))
	assert.Equal(t, "internal error", Message(errors.New("plain")))
}

func TestToHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, ToHTTPStatus(CodeValidation))
	assert.Equal(t, http.StatusTooManyRequests, ToHTTPStatus(CodeQuotaExceeded))
	assert.Equal(t, http.StatusNotFound, ToHTTPStatus(CodeNotFound))
	assert.Equal(t, http.StatusUnauthorized, ToHTTPStatus(CodeUnauthorized))
	assert.Equal(t, http.StatusForbidden, ToHTTPStatus(CodeForbidden))
	assert.Equal(t, http.StatusInternalServerError, ToHTTPStatus(CodeInternal))
}

func TestCodeOfDefaultsToInternal(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
}
