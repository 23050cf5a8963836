package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  *Error
		want int
	}{
		{Validation("bad"), http.StatusBadRequest},
		{Conflict("taken"), http.StatusConflict},
		{NotFound("missing"), http.StatusNotFound},
		{Gone("expired"), http.StatusGone},
		{Unauthorized("no token"), http.StatusUnauthorized},
		{Internal("boom", errors.New("db down")), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.StatusCode())
		})
	}
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("resolve: %w", Gone("URL has expired"))
	assert.Equal(t, KindGone, KindOf(err))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Internal("Failed to create short URL", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Failed to create short URL: connection refused", err.Error())
}

func TestFromHidesDetails(t *testing.T) {
	appErr := From(errors.New("pq: password authentication failed"))
	assert.Equal(t, KindInternal, appErr.Kind)
	assert.Equal(t, "Internal server error", appErr.Message)

	orig := NotFound("URL not found")
	assert.Same(t, orig, From(fmt.Errorf("wrap: %w", orig)))
}
