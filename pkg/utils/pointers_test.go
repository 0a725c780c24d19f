package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPtrTo(t *testing.T) {
	v := PtrTo("value")
	assert.Equal(t, "value", *v)

	n := PtrTo(42)
	assert.Equal(t, 42, *n)
}

func TestStringPointerHelpers(t *testing.T) {
	empty := ""
	filled := "x"

	assert.False(t, IsNotNilOrEmptyString(nil))
	assert.False(t, IsNotNilOrEmptyString(&empty))
	assert.True(t, IsNotNilOrEmptyString(&filled))

	assert.True(t, IsNilOrEmptyString(nil))
	assert.True(t, IsNilOrEmptyString(&empty))
	assert.False(t, IsNilOrEmptyString(&filled))
}
