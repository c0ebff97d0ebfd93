package htm

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"modernc.org/mathutil"
)

// maxLocalAreaDensity caps the density derived from
// NumActiveColumnsPerInhArea, matching the reference implementation's
// MAX_LOCALAREADENSITY (spec.md §4.6).
const maxLocalAreaDensity = 0.5

// boostEpsilon is the threshold below which boosting is treated as
// disabled (spec.md §4.6 compute step 3).
const boostEpsilon = 1e-6

// defaultUpdatePeriod is how often (in iterations) the inhibition radius
// and minimum duty cycles are refreshed when learning (spec.md §4.6).
const defaultUpdatePeriod = 50

// initConnectedPct is the probability that a potential-pool synapse
// starts out connected during initialization (spec.md §4.6).
const initConnectedPct = 0.5

// SpatialPoolerParams holds every hyperparameter enumerated in spec.md
// §4.6. Exactly one of LocalAreaDensity or NumActiveColumnsPerInhArea
// must be set (> 0).
type SpatialPoolerParams struct {
	InputDimensions  []int
	ColumnDimensions []int

	PotentialRadius int
	PotentialPct    float64

	GlobalInhibition           bool
	LocalAreaDensity           float64
	NumActiveColumnsPerInhArea int

	StimulusThreshold int

	SynPermInactiveDec float64
	SynPermActiveInc   float64
	SynPermConnected   float64

	MinPctOverlapDutyCycles float64
	DutyCyclePeriod         int
	BoostStrength           float64

	Seed uint32

	WrapAround bool

	// UpdatePeriod defaults to 50 when left at zero (spec.md §4.6).
	UpdatePeriod int
}

// SpatialPooler maps a binary input SDR to a binary output SDR of active
// columns, adapting a sparse synaptic connectivity to input statistics
// via competitive online learning (spec.md §4.6).
type SpatialPooler struct {
	params SpatialPoolerParams

	inputTopology  *Topology
	columnTopology *Topology
	numInputs      int
	numColumns     int

	synPermBelowStimulusInc float64

	connections *Connections
	rng         *Random

	boostFactors         []float64
	overlapDutyCycles    []float64
	activeDutyCycles     []float64
	minOverlapDutyCycles []float64

	inhibitionRadius int

	iterationNum      int
	iterationLearnNum int
}

// NewSpatialPooler validates params and builds an initialized Spatial
// Pooler, including the initial potential pools and permanences
// (spec.md §4.6 "Initialization").
func NewSpatialPooler(params SpatialPoolerParams) (*SpatialPooler, error) {
	inputTopo, err := NewTopology(params.InputDimensions)
	if err != nil {
		return nil, err
	}
	colTopo, err := NewTopology(params.ColumnDimensions)
	if err != nil {
		return nil, err
	}
	if len(params.InputDimensions) != len(params.ColumnDimensions) {
		return nil, invalidArgErr("NewSpatialPooler", "input and column dimensions must have equal rank")
	}
	if params.PotentialRadius >= inputTopo.Size() {
		return nil, invalidArgErr("NewSpatialPooler", "potentialRadius must be < numInputs")
	}
	if params.PotentialPct <= 0 || params.PotentialPct > 1 {
		return nil, invalidArgErr("NewSpatialPooler", "potentialPct must be in (0,1]")
	}
	haveDensity := params.LocalAreaDensity > 0
	haveCount := params.NumActiveColumnsPerInhArea > 0
	if haveDensity == haveCount {
		return nil, invalidArgErr("NewSpatialPooler", "exactly one of localAreaDensity or numActiveColumnsPerInhArea must be set")
	}
	if params.StimulusThreshold < 0 {
		return nil, invalidArgErr("NewSpatialPooler", "stimulusThreshold must be >= 0")
	}
	if params.SynPermConnected <= 0 || params.SynPermConnected > 1 {
		return nil, invalidArgErr("NewSpatialPooler", "synPermConnected must be in (0,1]")
	}
	if params.MinPctOverlapDutyCycles <= 0 || params.MinPctOverlapDutyCycles > 1 {
		return nil, invalidArgErr("NewSpatialPooler", "minPctOverlapDutyCycles must be in (0,1]")
	}
	if params.DutyCyclePeriod < 1 {
		return nil, invalidArgErr("NewSpatialPooler", "dutyCyclePeriod must be >= 1")
	}
	if params.BoostStrength < 0 {
		return nil, invalidArgErr("NewSpatialPooler", "boostStrength must be >= 0")
	}
	if params.UpdatePeriod == 0 {
		params.UpdatePeriod = defaultUpdatePeriod
	}

	sp := &SpatialPooler{
		params:                  params,
		inputTopology:           inputTopo,
		columnTopology:          colTopo,
		numInputs:               inputTopo.Size(),
		numColumns:              colTopo.Size(),
		synPermBelowStimulusInc: params.SynPermConnected / 10,
		rng:                     NewRandom(params.Seed),
		boostFactors:            make([]float64, colTopo.Size()),
		overlapDutyCycles:       make([]float64, colTopo.Size()),
		activeDutyCycles:        make([]float64, colTopo.Size()),
		minOverlapDutyCycles:    make([]float64, colTopo.Size()),
	}
	for i := range sp.boostFactors {
		sp.boostFactors[i] = 1.0
	}

	sp.connections = NewConnections()
	if err := sp.connections.Initialize(sp.numColumns, params.SynPermConnected); err != nil {
		return nil, err
	}
	sp.connections.SetSynPermBelowStimulusInc(sp.synPermBelowStimulusInc)

	if err := sp.initializePools(); err != nil {
		return nil, err
	}
	sp.inhibitionRadius = sp.initialInhibitionRadius()

	return sp, nil
}

// initializePools draws each column's potential pool from the wrapping or
// bounded neighborhood of its mapped input center, and assigns initial
// permanences (spec.md §4.6 "Initialization").
func (sp *SpatialPooler) initializePools() error {
	for col := 0; col < sp.numColumns; col++ {
		center := sp.mapColumnToInput(col)
		neighborhood := sp.inputTopology.Neighborhood(center, sp.params.PotentialRadius, sp.params.WrapAround)
		k := int(sp.params.PotentialPct*float64(len(neighborhood)) + 0.5)
		potential := sp.rng.Sample(neighborhood, k)

		for _, presynapticCell := range potential {
			var perm float64
			if sp.rng.NextReal64() <= initConnectedPct {
				perm = sp.rng.UniformFloat64(sp.params.SynPermConnected, 1.0)
			} else {
				perm = sp.rng.UniformFloat64(0.0, sp.params.SynPermConnected)
			}
			if _, err := sp.connections.CreateSynapse(col, presynapticCell, perm); err != nil {
				return err
			}
		}
		if err := sp.connections.RaisePermanencesToThreshold(col, sp.params.StimulusThreshold); err != nil {
			return err
		}
	}
	return nil
}

// mapColumnToInput returns the flat input index at the center of column
// c's receptive field, via proportional coordinate scaling (spec.md §4.6).
func (sp *SpatialPooler) mapColumnToInput(col int) int {
	colCoord := sp.columnTopology.CoordinatesFromIndex(col)
	inputCoord := make([]int, len(colCoord))
	for a := range colCoord {
		colDim := float64(sp.columnTopology.Dimensions()[a])
		inputDim := float64(sp.inputTopology.Dimensions()[a])
		v := int(math.Floor((float64(colCoord[a]) + 0.5) * inputDim / colDim))
		if v >= sp.inputTopology.Dimensions()[a] {
			v = sp.inputTopology.Dimensions()[a] - 1
		}
		inputCoord[a] = v
	}
	idx, _ := sp.inputTopology.IndexFromCoordinates(inputCoord)
	return idx
}

func (sp *SpatialPooler) initialInhibitionRadius() int {
	if sp.params.GlobalInhibition {
		return maxInts(sp.columnTopology.Dimensions())
	}
	return 1
}

// Getters mirroring the hyperparameter and internal-array surface
// spec.md §6 requires.
func (sp *SpatialPooler) NumInputs() int          { return sp.numInputs }
func (sp *SpatialPooler) NumColumns() int         { return sp.numColumns }
func (sp *SpatialPooler) IterationNum() int       { return sp.iterationNum }
func (sp *SpatialPooler) IterationLearnNum() int  { return sp.iterationLearnNum }
func (sp *SpatialPooler) InhibitionRadius() int   { return sp.inhibitionRadius }
func (sp *SpatialPooler) Connections() *Connections { return sp.connections }
func (sp *SpatialPooler) Params() SpatialPoolerParams { return sp.params }

func (sp *SpatialPooler) BoostFactors() []float64 {
	out := make([]float64, len(sp.boostFactors))
	copy(out, sp.boostFactors)
	return out
}

// SetBoostFactors overrides the boost factors, for testing (spec.md §6).
func (sp *SpatialPooler) SetBoostFactors(v []float64) error {
	if len(v) != sp.numColumns {
		return invalidArgErr("SetBoostFactors", "length must equal numColumns")
	}
	copy(sp.boostFactors, v)
	return nil
}

func (sp *SpatialPooler) OverlapDutyCycles() []float64 {
	out := make([]float64, len(sp.overlapDutyCycles))
	copy(out, sp.overlapDutyCycles)
	return out
}

func (sp *SpatialPooler) ActiveDutyCycles() []float64 {
	out := make([]float64, len(sp.activeDutyCycles))
	copy(out, sp.activeDutyCycles)
	return out
}

func (sp *SpatialPooler) MinOverlapDutyCycles() []float64 {
	out := make([]float64, len(sp.minOverlapDutyCycles))
	copy(out, sp.minOverlapDutyCycles)
	return out
}

// targetDensity returns the desired fraction of active columns,
// capped at maxLocalAreaDensity when derived from
// NumActiveColumnsPerInhArea over the current inhibition area.
func (sp *SpatialPooler) targetDensity() float64 {
	if sp.params.LocalAreaDensity > 0 {
		return sp.params.LocalAreaDensity
	}
	inhibitionArea := sp.inhibitionAreaSize()
	density := float64(sp.params.NumActiveColumnsPerInhArea) / float64(inhibitionArea)
	if density > maxLocalAreaDensity {
		density = maxLocalAreaDensity
	}
	return density
}

func (sp *SpatialPooler) inhibitionAreaSize() int {
	dims := sp.columnTopology.Dimensions()
	area := 1
	for _, d := range dims {
		side := 2*sp.inhibitionRadius + 1
		if side > d {
			side = d
		}
		area *= side
	}
	return area
}

// Compute maps input to active, returning the raw (pre-boost) overlap
// counts per column (spec.md §4.6 "Compute").
func (sp *SpatialPooler) Compute(input *SDR, learn bool, active *SDR) ([]int, error) {
	if input.Size() != sp.numInputs {
		return nil, invalidArgErr("Compute", "input size must equal numInputs")
	}
	if active.Size() != sp.numColumns {
		return nil, invalidArgErr("Compute", "active size must equal numColumns")
	}

	sp.iterationNum++
	if learn {
		sp.iterationLearnNum++
	}

	inputFS, err := input.GetFlatSparse()
	if err != nil {
		return nil, err
	}
	overlaps := sp.connections.ComputeActivity(inputFS, learn)

	boosted := make([]float64, len(overlaps))
	if sp.params.BoostStrength >= boostEpsilon {
		for i, o := range overlaps {
			boosted[i] = float64(o) * sp.boostFactors[i]
		}
	} else {
		for i, o := range overlaps {
			boosted[i] = float64(o)
		}
	}

	activeColumns := sp.inhibitColumns(boosted)
	if err := active.SetFlatSparse(activeColumns); err != nil {
		return nil, err
	}

	if learn {
		if err := sp.adaptSynapses(input, activeColumns); err != nil {
			return nil, err
		}
		sp.updateDutyCycles(overlaps, activeColumns)
		sp.bumpUpWeakColumns()
		sp.updateBoostFactors()
		if sp.iterationNum%sp.params.UpdatePeriod == 0 {
			sp.updateInhibitionRadius()
			sp.updateMinDutyCycles()
		}
	}

	return overlaps, nil
}

func (sp *SpatialPooler) useGlobalInhibition() bool {
	return sp.params.GlobalInhibition || sp.inhibitionRadius > maxInts(sp.columnTopology.Dimensions())
}

func (sp *SpatialPooler) inhibitColumns(overlaps []float64) []int {
	if sp.useGlobalInhibition() {
		return sp.inhibitColumnsGlobal(overlaps)
	}
	return sp.inhibitColumnsLocal(overlaps)
}

// inhibitColumnsGlobal picks the top-n columns by overlap, tie-broken by
// larger column index (spec.md §9's pinned resolution of the source's
// `a > b` tie-break), drops any below stimulusThreshold, and returns the
// survivors sorted ascending by index. Overlaps stay float64 through this
// path (spec.md:137 defines boosting as a real-valued product, and the
// source keeps boosted overlaps as `vector<Real>` through inhibition).
func (sp *SpatialPooler) inhibitColumnsGlobal(overlaps []float64) []int {
	n := int(sp.targetDensity()*float64(sp.numColumns) + 0.5)
	if n < 1 {
		n = 1
	}
	if n > sp.numColumns {
		n = sp.numColumns
	}

	order := make([]int, sp.numColumns)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if overlaps[a] != overlaps[b] {
			return overlaps[a] > overlaps[b]
		}
		return a > b
	})

	result := make([]int, 0, n)
	for i := 0; i < n && i < len(order); i++ {
		col := order[i]
		if overlaps[col] < float64(sp.params.StimulusThreshold) {
			continue
		}
		result = append(result, col)
	}
	sort.Ints(result)
	return result
}

// inhibitColumnsLocal runs the per-column local-density competition,
// processing columns in ascending index order so the tie-break rule is
// deterministic (spec.md §4.6).
func (sp *SpatialPooler) inhibitColumnsLocal(overlaps []float64) []int {
	density := sp.targetDensity()
	isActive := make([]bool, sp.numColumns)
	var result []int

	for c := 0; c < sp.numColumns; c++ {
		if overlaps[c] < float64(sp.params.StimulusThreshold) {
			continue
		}
		neighbors := sp.columnTopology.Neighborhood(c, sp.inhibitionRadius, sp.params.WrapAround)
		numNeighbors := 0
		numLarger := 0
		for _, n := range neighbors {
			if n == c {
				continue
			}
			numNeighbors++
			if overlaps[n] > overlaps[c] {
				numLarger++
			} else if overlaps[n] == overlaps[c] && isActive[n] {
				numLarger++
			}
		}
		k := int(density*float64(numNeighbors+1) + 0.5)
		if numLarger < k {
			isActive[c] = true
			result = append(result, c)
		}
	}
	return result
}

// adaptSynapses applies Hebbian learning to every active column's segment
// and re-raises its permanences to the stimulus threshold (spec.md §4.6).
func (sp *SpatialPooler) adaptSynapses(input *SDR, activeColumns []int) error {
	for _, col := range activeColumns {
		if err := sp.connections.AdaptSegment(col, input, sp.params.SynPermActiveInc, sp.params.SynPermInactiveDec); err != nil {
			return err
		}
		if err := sp.connections.RaisePermanencesToThreshold(col, sp.params.StimulusThreshold); err != nil {
			return err
		}
	}
	return nil
}

// updateDutyCycles advances both EMAs by one step, using window
// min(dutyCyclePeriod, iterationNum) (spec.md §4.6).
func (sp *SpatialPooler) updateDutyCycles(overlaps []int, activeColumns []int) {
	period := sp.params.DutyCyclePeriod
	if sp.iterationNum < period {
		period = sp.iterationNum
	}
	if period < 1 {
		period = 1
	}
	decay := float64(period-1) / float64(period)
	increment := 1.0 / float64(period)

	activeSet := make(map[int]bool, len(activeColumns))
	for _, c := range activeColumns {
		activeSet[c] = true
	}

	for i := range sp.overlapDutyCycles {
		hadOverlap := 0.0
		if overlaps[i] > 0 {
			hadOverlap = 1.0
		}
		sp.overlapDutyCycles[i] = decay*sp.overlapDutyCycles[i] + increment*hadOverlap

		wasActive := 0.0
		if activeSet[i] {
			wasActive = 1.0
		}
		sp.activeDutyCycles[i] = decay*sp.activeDutyCycles[i] + increment*wasActive
	}
}

// bumpUpWeakColumns raises the permanences of any column whose overlap
// duty cycle has fallen below its minimum (spec.md §4.6).
func (sp *SpatialPooler) bumpUpWeakColumns() {
	for i := range sp.overlapDutyCycles {
		if sp.overlapDutyCycles[i] < sp.minOverlapDutyCycles[i] {
			_ = sp.connections.BumpSegment(i, sp.synPermBelowStimulusInc)
		}
	}
}

// updateBoostFactors recomputes each column's homeostatic gain from its
// active duty cycle relative to a target density (global or local,
// spec.md §4.6). Skipped entirely when boosting is disabled.
func (sp *SpatialPooler) updateBoostFactors() {
	if sp.params.BoostStrength < boostEpsilon {
		return
	}
	if sp.useGlobalInhibition() {
		target := sp.targetDensity()
		for i := range sp.boostFactors {
			sp.boostFactors[i] = math.Exp((target - sp.activeDutyCycles[i]) * sp.params.BoostStrength)
		}
		return
	}
	for c := 0; c < sp.numColumns; c++ {
		neighbors := sp.columnTopology.Neighborhood(c, sp.inhibitionRadius, sp.params.WrapAround)
		sum := 0.0
		for _, n := range neighbors {
			sum += sp.activeDutyCycles[n]
		}
		target := sum / float64(len(neighbors))
		sp.boostFactors[c] = math.Exp((target - sp.activeDutyCycles[c]) * sp.params.BoostStrength)
	}
}

// updateInhibitionRadius recomputes the neighborhood size used for local
// competition from the average connected span of columns' potential
// pools (spec.md §4.6).
func (sp *SpatialPooler) updateInhibitionRadius() {
	if sp.params.GlobalInhibition {
		sp.inhibitionRadius = maxInts(sp.columnTopology.Dimensions())
		return
	}

	avgColumnsPerInput := sp.averageColumnsPerInput()
	total := 0.0
	for c := 0; c < sp.numColumns; c++ {
		total += sp.averageConnectedSpan(c)
	}
	avgConnectedSpan := total / float64(sp.numColumns)
	diameter := avgConnectedSpan * avgColumnsPerInput
	radius := int(math.Round((diameter - 1) / 2))
	if radius < 1 {
		radius = 1
	}
	sp.inhibitionRadius = radius
}

func (sp *SpatialPooler) averageColumnsPerInput() float64 {
	colDims := sp.columnTopology.Dimensions()
	inputDims := sp.inputTopology.Dimensions()
	sum := 0.0
	for a := range colDims {
		sum += float64(colDims[a]) / float64(inputDims[a])
	}
	return sum / float64(len(colDims))
}

func (sp *SpatialPooler) averageConnectedSpan(col int) float64 {
	span, err := sp.connections.ConnectedSpan(col, sp.inputTopology)
	if err != nil {
		return 0
	}
	if len(span) == 0 {
		return 0
	}
	sum := 0
	for _, s := range span {
		sum += s
	}
	return float64(sum) / float64(len(span))
}

// updateMinDutyCycles refreshes the homeostatic floor, globally or per
// local neighborhood depending on the inhibition mode (spec.md §4.6).
func (sp *SpatialPooler) updateMinDutyCycles() {
	if sp.useGlobalInhibition() {
		sp.updateMinDutyCyclesGlobal()
		return
	}
	sp.updateMinDutyCyclesLocal()
}

func (sp *SpatialPooler) updateMinDutyCyclesGlobal() {
	maxOverlapDuty := floats.Max(sp.overlapDutyCycles)
	for i := range sp.minOverlapDutyCycles {
		sp.minOverlapDutyCycles[i] = sp.params.MinPctOverlapDutyCycles * maxOverlapDuty
	}
}

func (sp *SpatialPooler) updateMinDutyCyclesLocal() {
	for c := 0; c < sp.numColumns; c++ {
		neighbors := sp.columnTopology.Neighborhood(c, sp.inhibitionRadius, sp.params.WrapAround)
		maxDuty := 0.0
		for _, n := range neighbors {
			if sp.overlapDutyCycles[n] > maxDuty {
				maxDuty = sp.overlapDutyCycles[n]
			}
		}
		sp.minOverlapDutyCycles[c] = sp.params.MinPctOverlapDutyCycles * maxDuty
	}
}

func maxInts(vals []int) int {
	m := vals[0]
	for _, v := range vals[1:] {
		m = mathutil.Max(m, v)
	}
	return m
}
