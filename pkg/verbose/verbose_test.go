package verbose

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHexString(t *testing.T) {
	assert.Equal(t, "", HexString(nil))
	assert.Equal(t, "fe fe 94 e2 03 fd", HexString([]byte{0xfe, 0xfe, 0x94, 0xe2, 0x03, 0xfd}))
}

func TestSetEnabled(t *testing.T) {
	defer SetEnabled(false)

	SetEnabled(true)
	assert.True(t, IsEnabled())
	SetEnabled(false)
	assert.False(t, IsEnabled())
}
