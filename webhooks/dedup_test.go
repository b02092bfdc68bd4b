package webhooks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDedupStoreSeen(t *testing.T) {
	store := NewDedupStore(time.Minute)

	assert.False(t, store.Seen("mid.1"))
	assert.True(t, store.Seen("mid.1"))
	assert.False(t, store.Seen("mid.2"))
	assert.Equal(t, 2, store.Len())
}

func TestDedupStoreEmptyID(t *testing.T) {
	store := NewDedupStore(time.Minute)

	assert.False(t, store.Seen(""))
	assert.False(t, store.Seen(""))
	assert.Equal(t, 0, store.Len())
}

func TestDedupStoreExpiry(t *testing.T) {
	store := NewDedupStore(5 * time.Millisecond)

	assert.False(t, store.Seen("mid.1"))
	time.Sleep(10 * time.Millisecond)

	assert.False(t, store.Seen("mid.1"))
	assert.Equal(t, 1, store.Len())
}
