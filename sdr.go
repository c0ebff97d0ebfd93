package htm

import (
	"math/rand"
	"sort"
	"time"
)

// CallbackHandle identifies a registered mutation callback so it can later
// be removed with RemoveCallback. Handles are scoped to the SDR they were
// issued from; copying an SDR does not copy its callbacks.
type CallbackHandle int

type callbackRecord struct {
	handle CallbackHandle
	fn     func()
}

// SDR is a binary tensor held simultaneously as a dense byte buffer, a
// flat sparse index list, and a per-axis coordinate list, each lazily
// materialized and cached (spec.md §3). An SDR with a non-nil parent is a
// Proxy: a reshaped read-only view whose reads forward to the parent and
// whose writes always fail (spec.md §4.3).
type SDR struct {
	dimensions []int
	topology   *Topology
	size       int

	dense      []byte
	denseValid bool

	flatSparse      []int
	flatSparseValid bool

	sparse      [][]int
	sparseValid bool

	parent    *SDR
	destroyed bool // set on a root by Destroy
	detached  bool // set on a proxy when an ancestor is destroyed

	callbacks    []callbackRecord
	nextHandle   CallbackHandle
	destroyHooks []func()
}

// NewSDR constructs a zero-initialized SDR with the given dimensions.
// Fails if dimensions is empty or any axis is <= 0.
func NewSDR(dimensions []int) (*SDR, error) {
	topo, err := NewTopology(dimensions)
	if err != nil {
		return nil, err
	}
	s := &SDR{
		dimensions:      topo.Dimensions(),
		topology:        topo,
		size:            topo.Size(),
		flatSparse:      []int{},
		flatSparseValid: true,
	}
	return s, nil
}

// Dimensions returns a copy of the SDR's dimension list.
func (s *SDR) Dimensions() []int {
	out := make([]int, len(s.dimensions))
	copy(out, s.dimensions)
	return out
}

// Size is the total number of bits, Π dimensions.
func (s *SDR) Size() int { return s.size }

// IsProxy reports whether this SDR is a reshaped view of a parent.
func (s *SDR) IsProxy() bool { return s.parent != nil }

func (s *SDR) checkAlive(op string) error {
	if s.parent != nil {
		if s.detached {
			return invalidStateErr(op, "proxy is detached from a destroyed ancestor")
		}
		return s.parent.checkAlive(op)
	}
	if s.destroyed {
		return invalidStateErr(op, "SDR has been destroyed")
	}
	return nil
}

func (s *SDR) checkWritable(op string) error {
	if err := s.checkAlive(op); err != nil {
		return err
	}
	if s.parent != nil {
		return invalidStateErr(op, "cannot write to a read-only proxy")
	}
	return nil
}

// detachSelf marks this node and its subtree as detached, in registration
// order down the tree, and fires destroy hooks so Metrics attached
// anywhere in the subtree get one last chance to snapshot state.
func (s *SDR) detachSelf() {
	if s.parent != nil {
		if s.detached {
			return
		}
		s.detached = true
	} else {
		if s.destroyed {
			return
		}
		s.destroyed = true
	}
	hooks := s.destroyHooks
	s.destroyHooks = nil
	s.callbacks = nil
	for _, fn := range hooks {
		fn()
	}
}

// Destroy releases this SDR. If it is a Proxy, only this node and its own
// subtree are detached; the parent is unaffected. If it is a root SDR,
// all registered Proxies and Metrics transition to a terminal detached
// state (spec.md §5).
func (s *SDR) Destroy() {
	s.detachSelf()
}

// addDestroyHook registers an internal hook fired once, when this node
// (or an ancestor) is destroyed. Used by Proxy and the Metrics to
// propagate detachment down the observer tree.
func (s *SDR) addDestroyHook(fn func()) {
	s.destroyHooks = append(s.destroyHooks, fn)
}

// AddCallback registers fn to run after every successful mutation, in
// registration order. Returns a handle for later removal.
func (s *SDR) AddCallback(fn func()) CallbackHandle {
	s.nextHandle++
	h := s.nextHandle
	s.callbacks = append(s.callbacks, callbackRecord{handle: h, fn: fn})
	return h
}

// RemoveCallback unregisters a callback previously returned by
// AddCallback. Fails if the handle is unknown to this SDR.
func (s *SDR) RemoveCallback(h CallbackHandle) error {
	for i, cb := range s.callbacks {
		if cb.handle == h {
			s.callbacks = append(s.callbacks[:i], s.callbacks[i+1:]...)
			return nil
		}
	}
	return invalidStateErr("RemoveCallback", "unknown callback handle")
}

// notify fires callbacks in registration order over a snapshot of the
// list, so a callback that reentrantly mutates this SDR (and registers or
// removes callbacks in the process) starts a fresh round for its own
// mutation without disturbing the round already in flight.
func (s *SDR) notify() {
	cbs := make([]callbackRecord, len(s.callbacks))
	copy(cbs, s.callbacks)
	for _, cb := range cbs {
		cb.fn()
	}
}

func (s *SDR) invalidateExceptDense() {
	s.flatSparseValid = false
	s.sparseValid = false
}

func (s *SDR) invalidateExceptFlatSparse() {
	s.denseValid = false
	s.sparseValid = false
}

func (s *SDR) invalidateExceptSparse() {
	s.denseValid = false
	s.flatSparseValid = false
}

// Zero clears the SDR to all zeros.
func (s *SDR) Zero() error {
	if err := s.checkWritable("Zero"); err != nil {
		return err
	}
	s.flatSparse = []int{}
	s.flatSparseValid = true
	s.invalidateExceptFlatSparse()
	s.notify()
	return nil
}

// SetDense stores buf as the dense view. Non-zero bytes are treated as
// truthy and canonicalized to 1. If buf is the same backing array
// previously returned by GetDense, the copy is skipped (in-place commit,
// spec.md §9) but other views are still invalidated and callbacks fire.
func (s *SDR) SetDense(buf []byte) error {
	if err := s.checkWritable("SetDense"); err != nil {
		return err
	}
	if len(buf) != s.size {
		return invalidArgErr("SetDense", "buffer length must equal size")
	}
	aliased := len(s.dense) > 0 && len(buf) > 0 && &buf[0] == &s.dense[0]
	if aliased {
		for i, v := range buf {
			if v != 0 {
				buf[i] = 1
			}
		}
	} else {
		if len(s.dense) != len(buf) {
			s.dense = make([]byte, len(buf))
		}
		for i, v := range buf {
			if v != 0 {
				s.dense[i] = 1
			} else {
				s.dense[i] = 0
			}
		}
	}
	s.denseValid = true
	s.invalidateExceptDense()
	s.notify()
	return nil
}

// SetDenseFrom canonicalizes an arbitrary numeric slice to bytes at the
// boundary and commits it as the dense view (spec.md §9's "dynamic
// typing" design note; Go's generics give us the same single core-storage
// guarantee the enumerated ScalarKind was meant to provide, at compile
// time instead of runtime).
func SetDenseFrom[T Numeric](s *SDR, data []T) error {
	buf := make([]byte, len(data))
	for i, v := range data {
		if v != 0 {
			buf[i] = 1
		}
	}
	return s.SetDense(buf)
}

// Numeric is any scalar type a caller might hold raw activity in.
type Numeric interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// SetFlatSparse stores indices (in any order) as the set of active bits.
func (s *SDR) SetFlatSparse(indices []int) error {
	if err := s.checkWritable("SetFlatSparse"); err != nil {
		return err
	}
	for _, idx := range indices {
		if idx < 0 || idx >= s.size {
			return invalidArgErr("SetFlatSparse", "index out of range")
		}
	}
	cpy := make([]int, len(indices))
	copy(cpy, indices)
	s.flatSparse = cpy
	s.flatSparseValid = true
	s.invalidateExceptFlatSparse()
	s.notify()
	return nil
}

// SetSparse stores a per-axis coordinate list as the set of active bits.
// coords must have one inner slice per axis, all of equal length.
func (s *SDR) SetSparse(coords [][]int) error {
	if err := s.checkWritable("SetSparse"); err != nil {
		return err
	}
	if len(coords) != len(s.dimensions) {
		return invalidArgErr("SetSparse", "coordinate list rank must equal SDR rank")
	}
	n := 0
	if len(coords) > 0 {
		n = len(coords[0])
	}
	for axis, axisCoords := range coords {
		if len(axisCoords) != n {
			return invalidArgErr("SetSparse", "all coordinate axes must have equal length")
		}
		for _, c := range axisCoords {
			if c < 0 || c >= s.dimensions[axis] {
				return invalidArgErr("SetSparse", "coordinate out of range")
			}
		}
	}
	cpy := make([][]int, len(coords))
	for i, axisCoords := range coords {
		cpy[i] = make([]int, len(axisCoords))
		copy(cpy[i], axisCoords)
	}
	s.sparse = cpy
	s.sparseValid = true
	s.invalidateExceptSparse()
	s.notify()
	return nil
}

// SetSDR copies the first valid view of other into s, requiring equal
// size (not necessarily equal dimensions, since the target may be a
// Proxy on a compatible parent).
func (s *SDR) SetSDR(other *SDR) error {
	if err := s.checkWritable("SetSDR"); err != nil {
		return err
	}
	if err := other.checkAlive("SetSDR"); err != nil {
		return err
	}
	if other.size != s.size {
		return invalidArgErr("SetSDR", "size mismatch")
	}
	switch {
	case other.denseValid:
		buf, _ := other.GetDense()
		return s.SetDense(buf)
	case other.flatSparseValid:
		fs, _ := other.GetFlatSparse()
		return s.SetFlatSparse(fs)
	case other.sparseValid && sameDims(s.dimensions, other.dimensions):
		sp, _ := other.GetSparse()
		return s.SetSparse(sp)
	default:
		fs, _ := other.GetFlatSparse()
		return s.SetFlatSparse(fs)
	}
}

func sameDims(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (s *SDR) materializeDense() {
	if s.denseValid {
		return
	}
	if s.parent != nil {
		s.dense, _ = s.parent.GetDense()
		s.denseValid = true
		return
	}
	buf := make([]byte, s.size)
	if s.flatSparseValid {
		for _, idx := range s.flatSparse {
			buf[idx] = 1
		}
	} else if s.sparseValid {
		for _, idx := range s.flatSparseFromSparseLocked() {
			buf[idx] = 1
		}
	}
	s.dense = buf
	s.denseValid = true
}

func (s *SDR) flatSparseFromSparseLocked() []int {
	n := 0
	if len(s.sparse) > 0 {
		n = len(s.sparse[0])
	}
	result := make([]int, n)
	rank := len(s.dimensions)
	coord := make([]int, rank)
	for i := 0; i < n; i++ {
		for a := 0; a < rank; a++ {
			coord[a] = s.sparse[a][i]
		}
		idx, _ := s.topology.IndexFromCoordinates(coord)
		result[i] = idx
	}
	return result
}

func (s *SDR) materializeFlatSparse() {
	if s.flatSparseValid {
		return
	}
	if s.parent != nil {
		s.flatSparse, _ = s.parent.GetFlatSparse()
		s.flatSparseValid = true
		return
	}
	if s.denseValid {
		fs := make([]int, 0, s.size/8+1)
		for i, v := range s.dense {
			if v != 0 {
				fs = append(fs, i)
			}
		}
		s.flatSparse = fs
	} else if s.sparseValid {
		s.flatSparse = s.flatSparseFromSparseLocked()
	} else {
		s.flatSparse = []int{}
	}
	s.flatSparseValid = true
}

func (s *SDR) materializeSparse() {
	if s.sparseValid {
		return
	}
	if s.parent != nil && sameDims(s.dimensions, s.parent.dimensions) {
		s.parent.materializeSparse()
		if s.parent.sparseValid {
			s.sparse = s.parent.sparse
			s.sparseValid = true
			return
		}
	}
	s.materializeFlatSparse()
	rank := len(s.dimensions)
	coords := make([][]int, rank)
	for a := 0; a < rank; a++ {
		coords[a] = make([]int, len(s.flatSparse))
	}
	for i, idx := range s.flatSparse {
		c := s.topology.CoordinatesFromIndex(idx)
		for a := 0; a < rank; a++ {
			coords[a][i] = c[a]
		}
	}
	s.sparse = coords
	s.sparseValid = true
}

// GetDense returns a stable reference to the dense view, materializing it
// from any valid view if needed. The caller may mutate the returned slice
// in place and commit it back with SetDense.
func (s *SDR) GetDense() ([]byte, error) {
	if err := s.checkAlive("GetDense"); err != nil {
		return nil, err
	}
	s.materializeDense()
	return s.dense, nil
}

// GetFlatSparse returns a stable reference to the flat sparse view.
func (s *SDR) GetFlatSparse() ([]int, error) {
	if err := s.checkAlive("GetFlatSparse"); err != nil {
		return nil, err
	}
	s.materializeFlatSparse()
	return s.flatSparse, nil
}

// GetSparse returns a stable reference to the per-axis coordinate view.
func (s *SDR) GetSparse() ([][]int, error) {
	if err := s.checkAlive("GetSparse"); err != nil {
		return nil, err
	}
	s.materializeSparse()
	return s.sparse, nil
}

// At returns the bit at coord, which must have one entry per axis.
func (s *SDR) At(coord []int) (byte, error) {
	if err := s.checkAlive("At"); err != nil {
		return 0, err
	}
	idx, err := s.topology.IndexFromCoordinates(coord)
	if err != nil {
		return 0, err
	}
	s.materializeDense()
	return s.dense[idx], nil
}

// GetSum is the number of active bits.
func (s *SDR) GetSum() (int, error) {
	fs, err := s.GetFlatSparse()
	if err != nil {
		return 0, err
	}
	return len(fs), nil
}

// GetSparsity is GetSum / Size.
func (s *SDR) GetSparsity() (float64, error) {
	sum, err := s.GetSum()
	if err != nil {
		return 0, err
	}
	return float64(sum) / float64(s.size), nil
}

// Overlap returns the count of bits set in both SDRs. Requires equal size.
func (s *SDR) Overlap(other *SDR) (int, error) {
	if err := s.checkAlive("Overlap"); err != nil {
		return 0, err
	}
	if err := other.checkAlive("Overlap"); err != nil {
		return 0, err
	}
	if s.size != other.size {
		return 0, invalidArgErr("Overlap", "size mismatch")
	}
	a, _ := s.GetDense()
	b, _ := other.GetDense()
	count := 0
	for i := range a {
		if a[i] != 0 && b[i] != 0 {
			count++
		}
	}
	return count, nil
}

func resolveRandom(rng *Random) *Random {
	if rng != nil {
		return rng
	}
	return &Random{seed: 0, src: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Randomize sets exactly round(sparsity*size) bits, chosen uniformly via
// rng. Deterministic given rng's seed and prior consumption.
func (s *SDR) Randomize(sparsity float64, rng *Random) error {
	if sparsity < 0 || sparsity > 1 {
		return invalidArgErr("Randomize", "sparsity must be in [0,1]")
	}
	r := resolveRandom(rng)
	k := int(sparsity*float64(s.size) + 0.5)
	population := make([]int, s.size)
	for i := range population {
		population[i] = i
	}
	chosen := r.Sample(population, k)
	sort.Ints(chosen)
	return s.SetFlatSparse(chosen)
}

// AddNoise flips off round(fraction*sum) active bits and flips on the
// same count of inactive bits, chosen uniformly via rng. sum is
// preserved.
func (s *SDR) AddNoise(fraction float64, rng *Random) error {
	if fraction < 0 || fraction > 1 {
		return invalidArgErr("AddNoise", "fraction must be in [0,1]")
	}
	active, err := s.GetFlatSparse()
	if err != nil {
		return err
	}
	r := resolveRandom(rng)
	numFlip := int(fraction*float64(len(active)) + 0.5)
	if numFlip == 0 {
		return nil
	}

	activeSet := make(map[int]bool, len(active))
	for _, idx := range active {
		activeSet[idx] = true
	}
	inactive := make([]int, 0, s.size-len(active))
	for i := 0; i < s.size; i++ {
		if !activeSet[i] {
			inactive = append(inactive, i)
		}
	}

	turnOff := r.Sample(active, numFlip)
	turnOffSet := make(map[int]bool, len(turnOff))
	for _, idx := range turnOff {
		turnOffSet[idx] = true
	}
	turnOn := r.Sample(inactive, numFlip)

	next := make([]int, 0, len(active))
	for _, idx := range active {
		if !turnOffSet[idx] {
			next = append(next, idx)
		}
	}
	next = append(next, turnOn...)
	sort.Ints(next)
	return s.SetFlatSparse(next)
}

// Equals reports whether a and b have equal dimensions and equal bit
// sets. Errors (e.g. a detached proxy) are treated as inequality.
func (s *SDR) Equals(other *SDR) bool {
	if other == nil {
		return false
	}
	if !sameDims(s.dimensions, other.dimensions) {
		return false
	}
	a, err := s.GetDense()
	if err != nil {
		return false
	}
	b, err := other.GetDense()
	if err != nil {
		return false
	}
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
