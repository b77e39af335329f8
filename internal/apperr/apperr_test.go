package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"direct", New(KindNotFound, "order %d", 7), KindNotFound},
		{"wrapped", fmt.Errorf("ship: %w", New(KindForbidden, "not yours")), KindForbidden},
		{"plain", errors.New("boom"), KindInternal},
		{"empty kind", &Error{Message: "x"}, KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(KindInternal, cause, "place order failed")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "place order failed", MessageOf(err))
	assert.Contains(t, err.Error(), "connection reset")
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(KindInternal))
	assert.False(t, Retryable(KindDuplicateReview))
	assert.False(t, Retryable(Kind("SomethingNew")))
}

func TestIsNil(t *testing.T) {
	assert.False(t, Is(nil, KindInternal))
	assert.True(t, Is(New(KindInvalidState, "order is Shipped"), KindInvalidState))
}
