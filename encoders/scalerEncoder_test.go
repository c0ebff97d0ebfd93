package encoders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScalarEncoderPeriodic(t *testing.T) {
	e, err := NewScalarEncoder(ScalarEncoderParams{
		W: 3, MinVal: 1, MaxVal: 8, N: 14, Periodic: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 14, e.Width())

	sdr, err := e.Encode(1)
	require.NoError(t, err)
	fs, _ := sdr.GetFlatSparse()
	assert.Equal(t, []int{0, 1, 13}, fs)

	sdr, err = e.Encode(2)
	require.NoError(t, err)
	fs, _ = sdr.GetFlatSparse()
	assert.Equal(t, []int{1, 2, 3}, fs)

	sdr, err = e.Encode(3)
	require.NoError(t, err)
	fs, _ = sdr.GetFlatSparse()
	assert.Equal(t, []int{3, 4, 5}, fs)
}

func TestScalarEncoderNonPeriodicClamping(t *testing.T) {
	e, err := NewScalarEncoder(ScalarEncoderParams{
		W: 3, MinVal: 0, MaxVal: 10, N: 20, ClipInput: true,
	})
	require.NoError(t, err)

	_, err = e.Encode(-5)
	require.NoError(t, err)

	_, err = e.Encode(50)
	require.NoError(t, err)
}

func TestScalarEncoderRejectsOutOfRangeWithoutClip(t *testing.T) {
	e, err := NewScalarEncoder(ScalarEncoderParams{W: 3, MinVal: 0, MaxVal: 10, N: 20})
	require.NoError(t, err)

	_, err = e.Encode(-1)
	assert.Error(t, err)
}

func TestScalarEncoderRejectsEvenWidth(t *testing.T) {
	_, err := NewScalarEncoder(ScalarEncoderParams{W: 4, MinVal: 0, MaxVal: 10, N: 20})
	assert.Error(t, err)
}
