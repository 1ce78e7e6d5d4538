package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewULID(t *testing.T) {
	a, b := NewULID(), NewULID()
	assert.Len(t, a, 26)
	assert.NotEqual(t, a, b)

	assert.True(t, IsULID(a))
	assert.False(t, IsULID("not-a-ulid"))
	assert.False(t, IsULID(""))
}

func TestStringToNullString(t *testing.T) {
	assert.False(t, StringToNullString("").Valid)
	ns := StringToNullString("timeout")
	assert.True(t, ns.Valid)
	assert.Equal(t, "timeout", ns.String)
}
