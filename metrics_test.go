package htm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSparsityTracksEMAAndBounds(t *testing.T) {
	s, err := NewSDR([]int{10})
	require.NoError(t, err)
	m, err := NewSparsity(s, 5)
	require.NoError(t, err)

	require.NoError(t, s.SetFlatSparse([]int{0, 1}))
	require.NoError(t, s.SetFlatSparse([]int{0, 1, 2, 3}))

	assert.InDelta(t, 0.2, m.Min(), 1e-9)
	assert.InDelta(t, 0.4, m.Max(), 1e-9)
	assert.True(t, m.Sparsity() > 0.2 && m.Sparsity() <= 0.4)
}

func TestActivationFrequencyEntropyExtremes(t *testing.T) {
	allZero, err := NewSDR([]int{8})
	require.NoError(t, err)
	m1, err := NewActivationFrequency(allZero, 4)
	require.NoError(t, err)
	require.NoError(t, allZero.Zero())
	assert.InDelta(t, 0, m1.Entropy(), 1e-9)

	allOne, err := NewSDR([]int{8})
	require.NoError(t, err)
	m2, err := NewActivationFrequency(allOne, 4)
	require.NoError(t, err)
	full := make([]int, 8)
	for i := range full {
		full[i] = i
	}
	require.NoError(t, allOne.SetFlatSparse(full))
	assert.InDelta(t, 0, m2.Entropy(), 1e-9)
}

func TestOverlapUndefinedUntilTwoObservations(t *testing.T) {
	s, err := NewSDR([]int{10})
	require.NoError(t, err)
	m, err := NewOverlap(s, 5)
	require.NoError(t, err)

	require.NoError(t, s.SetFlatSparse([]int{0, 1, 2}))
	_, ok := m.Value()
	assert.False(t, ok)

	require.NoError(t, s.SetFlatSparse([]int{1, 2, 3}))
	v, ok := m.Value()
	require.True(t, ok)
	assert.InDelta(t, 2.0/3.0, v, 1e-9)
}

func TestMetricsDetachOnDestroy(t *testing.T) {
	s, err := NewSDR([]int{10})
	require.NoError(t, err)
	m, err := NewMetrics(s, 5)
	require.NoError(t, err)

	require.NoError(t, s.SetFlatSparse([]int{0}))
	s.Destroy()

	assert.NotPanics(t, func() {
		m.Sparsity.onUpdate(s)
	})
}
