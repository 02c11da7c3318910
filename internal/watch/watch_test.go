package watch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleSingleConsumer(t *testing.T) {
	h, err := New()
	require.NoError(t, err)
	defer h.Close()

	w1, ok1 := h.Take()
	require.True(t, ok1)
	assert.NotNil(t, w1)

	w2, ok2 := h.Take()
	assert.False(t, ok2)
	assert.Nil(t, w2)
}
