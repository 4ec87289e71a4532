package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code    Code
		want    Metadata
		message string
	}{
		{CodeValidation, Metadata{HTTPStatus: http.StatusBadRequest, PublicMessage: "validation failed", ExposeMessage: true, DetailsAllowed: true}, ""},
		{CodeUnauthorized, Metadata{HTTPStatus: http.StatusUnauthorized, PublicMessage: "authentication required", ExposeMessage: true}, ""},
		{CodeIdempotency, Metadata{HTTPStatus: http.StatusConflict, PublicMessage: "idempotency key reused", ExposeMessage: true, DetailsAllowed: true}, ""},
		{CodeRateLimit, Metadata{HTTPStatus: http.StatusTooManyRequests, PublicMessage: "rate limit exceeded", ExposeMessage: true}, ""},
		{CodeDependency, Metadata{HTTPStatus: http.StatusServiceUnavailable, PublicMessage: "dependency unavailable", Retryable: true, DetailsAllowed: true}, ""},
		{CodePartialMerge, Metadata{HTTPStatus: http.StatusServiceUnavailable, PublicMessage: "cart merge failed", Retryable: true, ExposeMessage: true, DetailsAllowed: true}, ""},
		{CodeInternal, Metadata{HTTPStatus: http.StatusInternalServerError, PublicMessage: "internal server error", Retryable: true}, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MetadataFor(tt.code), tt.code)
	}
	assert.Equal(t, MetadataFor(CodeInternal), MetadataFor("SOMETHING_UNKNOWN"))
}

func TestPublicMessageHidesInternalText(t *testing.T) {
	assert.Equal(t, "cart item not found", New(CodeNotFound, "cart item not found").PublicMessage())
	assert.Equal(t, "resource not found", New(CodeNotFound, "").PublicMessage())
	assert.Equal(t, "dependency unavailable", New(CodeDependency, "redis dial tcp 10.0.0.3").PublicMessage())

	var nilErr *Error
	assert.Equal(t, "internal server error", nilErr.PublicMessage())
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("connection refused")
	wrapped := Wrap(CodeDependency, cause, "load cart")

	assert.ErrorIs(t, wrapped, cause)
	assert.Contains(t, wrapped.Error(), "connection refused")
	assert.NoError(t, Wrap(CodeInternal, nil, "noop").Unwrap())
	assert.Equal(t, "INTERNAL_ERROR: noop", Wrap(CodeInternal, nil, "noop").Error())
}

func TestCodeHelpers(t *testing.T) {
	err := fmt.Errorf("handler: %w", New(CodeNotFound, "cart item not found"))
	assert.True(t, IsCode(err, CodeNotFound))
	assert.False(t, IsCode(err, CodeValidation))
	assert.False(t, IsCode(stdErrors.New("plain"), ""))
	assert.Equal(t, CodeInternal, CodeOf(stdErrors.New("plain")))
	assert.Nil(t, As(nil))

	typed := New(CodePartialMerge, "merge item").WithDetails(map[string]any{"item_index": 2})
	require.Equal(t, CodePartialMerge, CodeOf(typed))
	assert.Equal(t, map[string]any{"item_index": 2}, typed.Details())
}
