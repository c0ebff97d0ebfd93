package htm

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSDRWriteToReadSDRRoundTrip(t *testing.T) {
	s, err := NewSDR([]int{4, 4})
	require.NoError(t, err)
	require.NoError(t, s.SetSparse([][]int{{0, 2}, {1, 3}}))

	var buf bytes.Buffer
	_, err = s.WriteTo(&buf)
	require.NoError(t, err)

	loaded, err := ReadSDR(&buf)
	require.NoError(t, err)
	assert.True(t, s.Equals(loaded))
}

func TestReadSDRRejectsUnknownVersion(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString(sdrTag)
	require.NoError(t, writeU16(&buf, 99))

	_, err := ReadSDR(&buf)
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestSpatialPoolerWriteToReadSpatialPoolerRoundTrip(t *testing.T) {
	sp, err := NewSpatialPooler(newTestParams())
	require.NoError(t, err)

	input, err := NewSDR([]int{20})
	require.NoError(t, err)
	require.NoError(t, input.Randomize(0.4, NewRandom(11)))
	active, err := NewSDR([]int{10})
	require.NoError(t, err)
	_, err = sp.Compute(input, true, active)
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = sp.WriteTo(&buf)
	require.NoError(t, err)

	loaded, err := ReadSpatialPooler(&buf)
	require.NoError(t, err)

	assert.Equal(t, sp.IterationNum(), loaded.IterationNum())
	assert.Equal(t, sp.IterationLearnNum(), loaded.IterationLearnNum())
	assert.Equal(t, sp.NumColumns(), loaded.NumColumns())
	assert.InDeltaSlice(t, sp.BoostFactors(), loaded.BoostFactors(), 1e-9)

	for col := 0; col < sp.NumColumns(); col++ {
		n1, err := sp.Connections().NumConnected(col)
		require.NoError(t, err)
		n2, err := loaded.Connections().NumConnected(col)
		require.NoError(t, err)
		assert.Equal(t, n1, n2)
	}
}
