package dedup

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowSeen(t *testing.T) {
	w := NewWindow(4)
	require.NotNil(t, w)

	assert.False(t, w.Seen("a"))
	w.Mark("a")
	assert.True(t, w.Seen("a"))
	assert.False(t, w.Seen("b"))
}

func TestWindowEvictsOldest(t *testing.T) {
	w := NewWindow(3)
	for i := 0; i < 5; i++ {
		w.Mark(fmt.Sprintf("id-%d", i))
	}

	assert.Equal(t, 3, w.Len())
	assert.False(t, w.Seen("id-0"))
	assert.False(t, w.Seen("id-1"))
	assert.True(t, w.Seen("id-4"))
}

func TestDisabledWindow(t *testing.T) {
	w := NewWindow(0)
	assert.Nil(t, w)

	assert.NotPanics(t, func() {
		w.Mark("a")
	})
	assert.False(t, w.Seen("a"))
	assert.Equal(t, 0, w.Len())
}

func TestEmptyIDIgnored(t *testing.T) {
	w := NewWindow(2)
	w.Mark("")
	assert.Equal(t, 0, w.Len())
	assert.False(t, w.Seen(""))
}
