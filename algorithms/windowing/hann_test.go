package windowing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHannSymmetricTapersToZero(t *testing.T) {
	w := NewHann(9, true).GetCoefficients()
	require.Len(t, w, 9)

	assert.InDelta(t, 0.0, w[0], 1e-12)
	assert.InDelta(t, 0.0, w[8], 1e-12)
	assert.InDelta(t, 1.0, w[4], 1e-12)
	for i := 0; i < 4; i++ {
		assert.InDelta(t, w[i], w[8-i], 1e-12)
	}
}

func TestHannPeriodicKeepsLastCoefficientNonzero(t *testing.T) {
	w := NewHann(8, false).GetCoefficients()
	require.Len(t, w, 8)

	assert.InDelta(t, 0.0, w[0], 1e-12)
	assert.Greater(t, w[7], 0.0)
	assert.InDelta(t, 1.0, w[4], 1e-12)
}

func TestHannCoefficientsAreACopy(t *testing.T) {
	h := NewHann(4, true)
	w := h.GetCoefficients()
	w[0] = 9.0

	assert.InDelta(t, 0.0, h.GetCoefficients()[0], 1e-12)
}
