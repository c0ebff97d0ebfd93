package htm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConnections(t *testing.T, numSegments int) *Connections {
	t.Helper()
	c := NewConnections()
	require.NoError(t, c.Initialize(numSegments, 0.5))
	c.SetSynPermBelowStimulusInc(0.05)
	return c
}

func TestCreateSynapseUpdatesNumConnected(t *testing.T) {
	c := newTestConnections(t, 1)

	_, err := c.CreateSynapse(0, 10, 0.6)
	require.NoError(t, err)
	_, err = c.CreateSynapse(0, 11, 0.3)
	require.NoError(t, err)

	n, err := c.NumConnected(0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCreateSynapseRejectsDuplicatePresynapticCell(t *testing.T) {
	c := newTestConnections(t, 1)
	_, err := c.CreateSynapse(0, 10, 0.6)
	require.NoError(t, err)

	_, err = c.CreateSynapse(0, 10, 0.7)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestComputeActivityCountsConnectedOverlap(t *testing.T) {
	c := newTestConnections(t, 2)
	_, _ = c.CreateSynapse(0, 1, 0.6)
	_, _ = c.CreateSynapse(0, 2, 0.6)
	_, _ = c.CreateSynapse(0, 3, 0.3) // not connected
	_, _ = c.CreateSynapse(1, 1, 0.6)

	overlaps := c.ComputeActivity([]int{1, 2}, false)
	assert.Equal(t, []int{2, 1}, overlaps)
}

func TestAdaptSegmentAppliesHebbianUpdate(t *testing.T) {
	c := newTestConnections(t, 1)
	h1, _ := c.CreateSynapse(0, 0, 0.5)
	h2, _ := c.CreateSynapse(0, 1, 0.5)

	input, err := NewSDR([]int{4})
	require.NoError(t, err)
	require.NoError(t, input.SetFlatSparse([]int{0}))

	require.NoError(t, c.AdaptSegment(0, input, 0.1, 0.05))

	syn1, _ := c.DataForSynapse(h1)
	syn2, _ := c.DataForSynapse(h2)
	assert.InDelta(t, 0.6, syn1.Permanence, 1e-9)
	assert.InDelta(t, 0.45, syn2.Permanence, 1e-9)
}

func TestRaisePermanencesToThresholdTerminates(t *testing.T) {
	c := newTestConnections(t, 1)
	_, _ = c.CreateSynapse(0, 0, 0.1)
	_, _ = c.CreateSynapse(0, 1, 0.1)
	_, _ = c.CreateSynapse(0, 2, 0.1)

	err := c.RaisePermanencesToThreshold(0, 2)
	require.NoError(t, err)

	n, _ := c.NumConnected(0)
	assert.GreaterOrEqual(t, n, 2)
}

func TestRaisePermanencesToThresholdSaturatesWithoutMeetingThreshold(t *testing.T) {
	c := newTestConnections(t, 1)
	_, _ = c.CreateSynapse(0, 0, 0.1)

	// stimulusThreshold unreachable with a single synapse.
	err := c.RaisePermanencesToThreshold(0, 5)
	require.NoError(t, err)

	n, _ := c.NumConnected(0)
	assert.Equal(t, 1, n)
}

func TestConnectedSpanIgnoresDisconnectedSynapses(t *testing.T) {
	c := newTestConnections(t, 1)
	topo, err := NewTopology([]int{10})
	require.NoError(t, err)

	_, _ = c.CreateSynapse(0, 2, 0.6)
	_, _ = c.CreateSynapse(0, 8, 0.6)
	_, _ = c.CreateSynapse(0, 9, 0.1) // not connected

	span, err := c.ConnectedSpan(0, topo)
	require.NoError(t, err)
	assert.Equal(t, []int{7}, span)
}

func TestBumpSegmentRaisesAllPermanences(t *testing.T) {
	c := newTestConnections(t, 1)
	h, _ := c.CreateSynapse(0, 0, 0.2)

	require.NoError(t, c.BumpSegment(0, 0.1))
	syn, _ := c.DataForSynapse(h)
	assert.InDelta(t, 0.3, syn.Permanence, 1e-9)
}
