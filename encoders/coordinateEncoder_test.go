package encoders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderForCoord(t *testing.T) {
	h1 := order([]int{2, 5, 10})
	h2 := order([]int{2, 5, 11})
	h3 := order([]int{2497477, -923478})

	assert.True(t, h1 >= 0 && h1 < 1)
	assert.NotEqual(t, h1, h2)
	assert.NotEqual(t, h2, h3)
}

func TestCoordinateEncoderIsDeterministic(t *testing.T) {
	e, err := NewCoordinateEncoder(5, 33)
	require.NoError(t, err)

	a, err := e.Encode([]int{100, 200}, 7)
	require.NoError(t, err)
	sum, _ := a.GetSum()
	assert.Equal(t, 5, sum)

	b, err := e.Encode([]int{100, 200}, 7)
	require.NoError(t, err)
	assert.True(t, a.Equals(b))
}

func TestCoordinateEncoderRejectsEvenActiveBits(t *testing.T) {
	_, err := NewCoordinateEncoder(4, 33)
	assert.Error(t, err)
}

func TestCoordinateEncoderRejectsNarrowWidth(t *testing.T) {
	_, err := NewCoordinateEncoder(5, 20)
	assert.Error(t, err)
}
