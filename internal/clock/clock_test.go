package clock

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNowNSMonotonic(t *testing.T) {
	prev := NowNS()
	for i := 0; i < 1000; i++ {
		next := NowNS()
		assert.GreaterOrEqual(t, next, prev)
		prev = next
	}
}
