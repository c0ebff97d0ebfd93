package htm

import "sort"

// Synapse is a snapshot of one connection's presynaptic cell and
// permanence (spec.md §3, glossary).
type Synapse struct {
	PresynapticCell int
	Permanence      float64
}

// SynapseHandle addresses one synapse within one segment.
type SynapseHandle struct {
	Segment int
	index   int
}

type synapseRecord struct {
	presynapticCell int
	permanence      float64
}

type segmentRecord struct {
	cellID      int
	synapses    []synapseRecord
	byCell      map[int]int // presynapticCell -> index into synapses
	numConnected int
}

// Connections is the per-segment synapse store the Spatial Pooler needs:
// one segment per column, each holding a sparse set of (presynapticCell,
// permanence) pairs with a cached connected-synapse count (spec.md §4.5).
type Connections struct {
	segments  []segmentRecord
	connected float64 // synPermConnected

	belowStimulusInc float64
}

// NewConnections builds an empty store. Call Initialize to preallocate
// segments before use.
func NewConnections() *Connections {
	return &Connections{}
}

// Initialize preallocates numSegments empty segments (segment id ==
// index, matching the Spatial Pooler's one-segment-per-column layout) and
// fixes the connected-synapse threshold.
func (c *Connections) Initialize(numSegments int, connectedThreshold float64) error {
	if numSegments <= 0 {
		return invalidArgErr("Initialize", "numSegments must be > 0")
	}
	if connectedThreshold <= 0 || connectedThreshold > 1 {
		return invalidArgErr("Initialize", "connectedThreshold must be in (0,1]")
	}
	c.segments = make([]segmentRecord, numSegments)
	for i := range c.segments {
		c.segments[i] = segmentRecord{cellID: i, byCell: make(map[int]int)}
	}
	c.connected = connectedThreshold
	return nil
}

// SetSynPermBelowStimulusInc fixes the increment RaisePermanencesToThreshold
// applies (BumpSegment takes its increment as an argument instead). The
// Spatial Pooler derives this as
// synPermConnected/10 (spec.md §4.6) and configures it once at construction.
func (c *Connections) SetSynPermBelowStimulusInc(v float64) { c.belowStimulusInc = v }

// NumSegments is the number of preallocated segments.
func (c *Connections) NumSegments() int { return len(c.segments) }

// ConnectedThreshold is the permanence at or above which a synapse counts
// as connected.
func (c *Connections) ConnectedThreshold() float64 { return c.connected }

func (c *Connections) checkSegment(op string, segment int) error {
	if segment < 0 || segment >= len(c.segments) {
		return invalidArgErr(op, "segment out of range")
	}
	return nil
}

// CreateSegment appends a new segment owned by cellId, beyond the ones
// preallocated by Initialize, honoring a per-cell cap.
func (c *Connections) CreateSegment(cellID int, maxSegmentsPerCell int) (int, error) {
	if maxSegmentsPerCell > 0 {
		count := 0
		for _, seg := range c.segments {
			if seg.cellID == cellID {
				count++
			}
		}
		if count >= maxSegmentsPerCell {
			return 0, invalidArgErr("CreateSegment", "cell already has maxSegmentsPerCell segments")
		}
	}
	c.segments = append(c.segments, segmentRecord{cellID: cellID, byCell: make(map[int]int)})
	return len(c.segments) - 1, nil
}

// CreateSynapse adds a synapse to segment. Duplicate presynaptic cells on
// the same segment are rejected.
func (c *Connections) CreateSynapse(segment int, presynapticCell int, permanence float64) (SynapseHandle, error) {
	if err := c.checkSegment("CreateSynapse", segment); err != nil {
		return SynapseHandle{}, err
	}
	seg := &c.segments[segment]
	if _, exists := seg.byCell[presynapticCell]; exists {
		return SynapseHandle{}, invalidArgErr("CreateSynapse", "duplicate presynaptic cell on segment")
	}
	permanence = clamp01(permanence)
	seg.synapses = append(seg.synapses, synapseRecord{presynapticCell: presynapticCell, permanence: permanence})
	idx := len(seg.synapses) - 1
	seg.byCell[presynapticCell] = idx
	if permanence >= c.connected {
		seg.numConnected++
	}
	return SynapseHandle{Segment: segment, index: idx}, nil
}

// DestroySynapse removes a synapse from its segment.
func (c *Connections) DestroySynapse(syn SynapseHandle) error {
	if err := c.checkSegment("DestroySynapse", syn.Segment); err != nil {
		return err
	}
	seg := &c.segments[syn.Segment]
	if syn.index < 0 || syn.index >= len(seg.synapses) {
		return invalidArgErr("DestroySynapse", "synapse index out of range")
	}
	removed := seg.synapses[syn.index]
	if removed.permanence >= c.connected {
		seg.numConnected--
	}
	last := len(seg.synapses) - 1
	delete(seg.byCell, removed.presynapticCell)
	if syn.index != last {
		seg.synapses[syn.index] = seg.synapses[last]
		seg.byCell[seg.synapses[syn.index].presynapticCell] = syn.index
	}
	seg.synapses = seg.synapses[:last]
	return nil
}

// UpdateSynapsePermanence sets syn's permanence, clamped to [0,1], and
// keeps the segment's connected count consistent.
func (c *Connections) UpdateSynapsePermanence(syn SynapseHandle, p float64) error {
	if err := c.checkSegment("UpdateSynapsePermanence", syn.Segment); err != nil {
		return err
	}
	seg := &c.segments[syn.Segment]
	if syn.index < 0 || syn.index >= len(seg.synapses) {
		return invalidArgErr("UpdateSynapsePermanence", "synapse index out of range")
	}
	c.setPermanenceLocked(seg, syn.index, p)
	return nil
}

func (c *Connections) setPermanenceLocked(seg *segmentRecord, idx int, p float64) {
	p = clamp01(p)
	was := seg.synapses[idx].permanence >= c.connected
	seg.synapses[idx].permanence = p
	now := p >= c.connected
	if now && !was {
		seg.numConnected++
	} else if was && !now {
		seg.numConnected--
	}
}

// SynapsesForSegment returns handles for every synapse on segment.
func (c *Connections) SynapsesForSegment(segment int) ([]SynapseHandle, error) {
	if err := c.checkSegment("SynapsesForSegment", segment); err != nil {
		return nil, err
	}
	seg := &c.segments[segment]
	out := make([]SynapseHandle, len(seg.synapses))
	for i := range seg.synapses {
		out[i] = SynapseHandle{Segment: segment, index: i}
	}
	return out, nil
}

// DataForSynapse returns the presynaptic cell and permanence of syn.
func (c *Connections) DataForSynapse(syn SynapseHandle) (Synapse, error) {
	if err := c.checkSegment("DataForSynapse", syn.Segment); err != nil {
		return Synapse{}, err
	}
	seg := &c.segments[syn.Segment]
	if syn.index < 0 || syn.index >= len(seg.synapses) {
		return Synapse{}, invalidArgErr("DataForSynapse", "synapse index out of range")
	}
	r := seg.synapses[syn.index]
	return Synapse{PresynapticCell: r.presynapticCell, Permanence: r.permanence}, nil
}

// NumConnected returns the cached connected-synapse count for segment.
func (c *Connections) NumConnected(segment int) (int, error) {
	if err := c.checkSegment("NumConnected", segment); err != nil {
		return 0, err
	}
	return c.segments[segment].numConnected, nil
}

// ComputeActivity returns, for every segment, the count of its connected
// synapses whose presynaptic cell is in inputSparse. learn is accepted
// for API parity with the reference design but does not change the
// computation.
func (c *Connections) ComputeActivity(inputSparse []int, learn bool) []int {
	active := make(map[int]bool, len(inputSparse))
	for _, idx := range inputSparse {
		active[idx] = true
	}
	overlaps := make([]int, len(c.segments))
	for i := range c.segments {
		seg := &c.segments[i]
		count := 0
		for _, syn := range seg.synapses {
			if syn.permanence >= c.connected && active[syn.presynapticCell] {
				count++
			}
		}
		overlaps[i] = count
	}
	return overlaps
}

// AdaptSegment applies Hebbian learning: synapses whose presynaptic cell
// is active in inputSdr are incremented by inc, all others decremented by
// dec, both clamped to [0,1].
func (c *Connections) AdaptSegment(segment int, inputSdr *SDR, inc, dec float64) error {
	if err := c.checkSegment("AdaptSegment", segment); err != nil {
		return err
	}
	dense, err := inputSdr.GetDense()
	if err != nil {
		return err
	}
	seg := &c.segments[segment]
	for i := range seg.synapses {
		if dense[seg.synapses[i].presynapticCell] != 0 {
			c.setPermanenceLocked(seg, i, seg.synapses[i].permanence+inc)
		} else {
			c.setPermanenceLocked(seg, i, seg.synapses[i].permanence-dec)
		}
	}
	return nil
}

// RaisePermanencesToThreshold repeatedly adds SetSynPermBelowStimulusInc
// to every synapse on segment until numConnected reaches stimulusThreshold
// or no further increment can raise it (all synapses saturated at 1),
// which guarantees termination within ceil(1/inc)+1 iterations.
func (c *Connections) RaisePermanencesToThreshold(segment int, stimulusThreshold int) error {
	if err := c.checkSegment("RaisePermanencesToThreshold", segment); err != nil {
		return err
	}
	seg := &c.segments[segment]
	if c.belowStimulusInc <= 0 {
		return nil
	}
	maxIterations := int(1.0/c.belowStimulusInc) + 2
	for iter := 0; iter < maxIterations; iter++ {
		if seg.numConnected >= stimulusThreshold {
			return nil
		}
		anyChanged := false
		for i := range seg.synapses {
			old := seg.synapses[i].permanence
			c.setPermanenceLocked(seg, i, old+c.belowStimulusInc)
			if seg.synapses[i].permanence != old {
				anyChanged = true
			}
		}
		if !anyChanged {
			// All synapses saturated at 1.0: further increments are futile.
			return nil
		}
	}
	return nil
}

// BumpSegment adds inc to every synapse's permanence on segment, clamped
// to [0,1].
func (c *Connections) BumpSegment(segment int, inc float64) error {
	if err := c.checkSegment("BumpSegment", segment); err != nil {
		return err
	}
	seg := &c.segments[segment]
	for i := range seg.synapses {
		c.setPermanenceLocked(seg, i, seg.synapses[i].permanence+inc)
	}
	return nil
}

// ConnectedSpan returns, per axis of the given input topology, the span
// (max-min+1) of coordinates among segment's connected synapses, or 0 for
// an axis with no connected synapses. Used by the Spatial Pooler's
// inhibition-radius update (spec.md §4.6).
func (c *Connections) ConnectedSpan(segment int, inputTopology *Topology) ([]int, error) {
	if err := c.checkSegment("ConnectedSpan", segment); err != nil {
		return nil, err
	}
	seg := &c.segments[segment]
	rank := inputTopology.Rank()
	mins := make([]int, rank)
	maxs := make([]int, rank)
	for a := range mins {
		mins[a] = -1
		maxs[a] = -1
	}
	for _, syn := range seg.synapses {
		if syn.permanence < c.connected {
			continue
		}
		coord := inputTopology.CoordinatesFromIndex(syn.presynapticCell)
		for a, v := range coord {
			if mins[a] == -1 || v < mins[a] {
				mins[a] = v
			}
			if maxs[a] == -1 || v > maxs[a] {
				maxs[a] = v
			}
		}
	}
	span := make([]int, rank)
	for a := range span {
		if mins[a] == -1 {
			span[a] = 0
		} else {
			span[a] = maxs[a] - mins[a] + 1
		}
	}
	return span, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// sortedSynapseCells returns a segment's presynaptic cells sorted
// ascending, a deterministic view independent of synapse order. Nothing
// in the package calls it at present.
func (c *Connections) sortedSynapseCells(segment int) []int {
	seg := &c.segments[segment]
	cells := make([]int, len(seg.synapses))
	for i, s := range seg.synapses {
		cells[i] = s.presynapticCell
	}
	sort.Ints(cells)
	return cells
}
