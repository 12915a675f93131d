package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestAttachHexPrefix ensures a hex prefix is added exactly once.
func TestAttachHexPrefix(t *testing.T) {
	assert.EqualValues(t, "0x6080aa", AttachHexPrefix("6080aa"))
	assert.EqualValues(t, "0x6080aa", AttachHexPrefix("0x6080aa"))
	assert.EqualValues(t, "0x", AttachHexPrefix(""))
}
