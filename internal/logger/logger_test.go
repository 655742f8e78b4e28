package logger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldHelpers(t *testing.T) {
	assert.Equal(t, Field{Key: "error", Value: "boom"}, Error(errors.New("boom")))
	assert.Equal(t, Field{Key: "error", Value: nil}, Error(nil))
	assert.Equal(t, "1s", Duration("d", 1e9).Value)
}

func TestWithContextRequestID(t *testing.T) {
	log, err := NewZapLoggerForDev()
	require.NoError(t, err)

	ctx := ContextWithRequestID(context.Background(), "req-1")
	id, ok := RequestIDFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "req-1", id)

	assert.NotSame(t, log, log.WithContext(ctx))
	assert.Same(t, log, log.WithContext(context.Background()))
}
