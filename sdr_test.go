package htm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSDRSetGetRoundTrip(t *testing.T) {
	s, err := NewSDR([]int{4, 4})
	require.NoError(t, err)

	require.NoError(t, s.SetSparse([][]int{{0, 2}, {1, 3}}))

	fs, err := s.GetFlatSparse()
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{1, 11}, fs)

	dense, err := s.GetDense()
	require.NoError(t, err)
	sum := 0
	for _, b := range dense {
		sum += int(b)
	}
	assert.Equal(t, 2, sum)

	sp, err := s.GetSparse()
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{0, 2}, sp[0])
	assert.ElementsMatch(t, []int{1, 3}, sp[1])
}

func TestSDRGetSumAndSparsity(t *testing.T) {
	s, err := NewSDR([]int{10})
	require.NoError(t, err)
	require.NoError(t, s.SetFlatSparse([]int{1, 2, 3}))

	sum, err := s.GetSum()
	require.NoError(t, err)
	assert.Equal(t, 3, sum)

	sparsity, err := s.GetSparsity()
	require.NoError(t, err)
	assert.InDelta(t, 0.3, sparsity, 1e-9)
}

func TestSDROverlapBounds(t *testing.T) {
	a, err := NewSDR([]int{10})
	require.NoError(t, err)
	require.NoError(t, a.SetFlatSparse([]int{0, 1, 2, 3}))

	b, err := NewSDR([]int{10})
	require.NoError(t, err)
	require.NoError(t, b.SetFlatSparse([]int{2, 3, 4, 5}))

	overlap, err := a.Overlap(b)
	require.NoError(t, err)
	assert.Equal(t, 2, overlap)
	assert.True(t, overlap >= 0 && overlap <= 4)
}

func TestSDUSetDenseRejectsWrongLength(t *testing.T) {
	s, err := NewSDR([]int{4})
	require.NoError(t, err)
	require.NoError(t, s.SetFlatSparse([]int{0, 1}))

	err = s.SetDense([]byte{1, 0, 1})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	fs, _ := s.GetFlatSparse()
	assert.Equal(t, []int{0, 1}, fs)
}

func TestSDRProxyReshapePreservesFlatIndices(t *testing.T) {
	a, err := NewSDR([]int{4, 4})
	require.NoError(t, err)
	require.NoError(t, a.SetSparse([][]int{{0, 2}, {1, 3}}))

	b, err := NewProxy(a, []int{8, 2})
	require.NoError(t, err)

	fsA, _ := a.GetFlatSparse()
	fsB, _ := b.GetFlatSparse()
	assert.Equal(t, fsA, fsB)

	spB, err := b.GetSparse()
	require.NoError(t, err)
	for i, flat := range fsB {
		assert.Equal(t, flat/2, spB[0][i])
		assert.Equal(t, flat%2, spB[1][i])
	}
}

func TestSDRProxyIsReadOnly(t *testing.T) {
	a, err := NewSDR([]int{4})
	require.NoError(t, err)
	b, err := NewProxy(a, nil)
	require.NoError(t, err)

	err = b.SetFlatSparse([]int{0})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestSDRProxyRejectsSizeMismatch(t *testing.T) {
	a, err := NewSDR([]int{4, 4})
	require.NoError(t, err)
	_, err = NewProxy(a, []int{5, 5})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSDRProxySeesParentMutation(t *testing.T) {
	a, err := NewSDR([]int{4})
	require.NoError(t, err)
	b, err := NewProxy(a, nil)
	require.NoError(t, err)

	require.NoError(t, a.SetFlatSparse([]int{2}))
	fs, err := b.GetFlatSparse()
	require.NoError(t, err)
	assert.Equal(t, []int{2}, fs)
}

func TestSDRDestroyDetachesProxy(t *testing.T) {
	a, err := NewSDR([]int{4})
	require.NoError(t, err)
	b, err := NewProxy(a, nil)
	require.NoError(t, err)

	a.Destroy()
	_, err = b.GetFlatSparse()
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestSDRRandomizeIsDeterministicForSeed(t *testing.T) {
	a, err := NewSDR([]int{1000})
	require.NoError(t, err)
	require.NoError(t, a.Randomize(0.1, NewRandom(99)))

	b, err := NewSDR([]int{1000})
	require.NoError(t, err)
	require.NoError(t, b.Randomize(0.1, NewRandom(99)))

	assert.True(t, a.Equals(b))
}

func TestSDRAddNoisePreservesSum(t *testing.T) {
	a, err := NewSDR([]int{1000})
	require.NoError(t, err)
	require.NoError(t, a.Randomize(0.2, NewRandom(1)))
	sumBefore, _ := a.GetSum()

	before, err := NewSDR([]int{1000})
	require.NoError(t, err)
	require.NoError(t, before.SetSDR(a))

	require.NoError(t, a.AddNoise(0.5, NewRandom(2)))
	sumAfter, _ := a.GetSum()
	assert.Equal(t, sumBefore, sumAfter)

	overlap, _ := before.Overlap(a)
	numFlip := int(0.5*float64(sumBefore) + 0.5)
	assert.Equal(t, sumBefore-numFlip, overlap)
}

func TestSDREqualsRequiresSameDimensions(t *testing.T) {
	a, err := NewSDR([]int{4, 4})
	require.NoError(t, err)
	b, err := NewSDR([]int{16})
	require.NoError(t, err)

	assert.False(t, a.Equals(b))
}
