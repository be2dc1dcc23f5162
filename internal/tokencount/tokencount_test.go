package tokencount

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountEmpty(t *testing.T) {
	assert.Equal(t, 0, Count(""))
}

func TestCountMonotonic(t *testing.T) {
	short := Count("func foo() {}")
	long := Count("func foo() { return bar() + baz() + qux() }")
	assert.Greater(t, long, short)
}

func TestFallbackEstimateNeverZeroForNonEmpty(t *testing.T) {
	assert.Greater(t, fallbackEstimate("x"), 0)
}
