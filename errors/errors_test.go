package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorWrapperMessage(t *testing.T) {
	err := NewError("store.install", "consumer lookup failed", ErrNotFound)
	assert.Equal(t, "store.install: consumer lookup failed: cannot find resource", err.Error())

	bare := NewError("config", "no config file", nil)
	assert.Equal(t, "config: no config file", bare.Error())
}

func TestErrorWrapperUnwrap(t *testing.T) {
	err := fmt.Errorf("handler: %w", NewError("store", "install", ErrConsumerExists))
	assert.True(t, Is(err, ErrConsumerExists))
	assert.False(t, Is(err, ErrNotFound))

	var wrapped ErrorWrapper
	assert.True(t, As(err, &wrapped))
	assert.Equal(t, "store", wrapped.Origin)
}
