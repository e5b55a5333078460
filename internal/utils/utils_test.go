package utils

import (
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestVersion(t *testing.T) {
	assert.Equal(t, Version([]byte("")), `"00000000"`)
	assert.Equal(t, Version([]byte("a")), Version([]byte("a")))
	assert.NotEqual(t, Version([]byte("a")), Version([]byte("b")))
}

func TestNewID(t *testing.T) {
	a, b := NewID(), NewID()
	assert.Equal(t, len(a), 26)
	assert.NotEqual(t, a, b)
}
