package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateNoopWhenWithinLimit(t *testing.T) {
	src := make([]byte, 10)
	out, truncated := truncate(src, 20)
	assert.False(t, truncated)
	assert.Len(t, out, 10)
}

func TestTruncateCapsAtLimit(t *testing.T) {
	src := make([]byte, 100)
	out, truncated := truncate(src, 64)
	assert.True(t, truncated)
	assert.Len(t, out, 64)
}

func TestStampArrivalPreservesWireLen(t *testing.T) {
	fr := stampArrival(make([]byte, 40), 1500)
	assert.Equal(t, 1500, fr.WireLen)
	assert.Equal(t, 40, fr.CapLen())
	assert.Greater(t, fr.ArrivalNS, uint64(0))
}
