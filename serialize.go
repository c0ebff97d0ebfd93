package htm

import (
	"encoding/binary"
	"io"
	"math"
)

// Wire format constants (spec.md §4.7/§6). Object tags are
// null-terminated ASCII; counts are big-endian; floats are little-endian;
// an object begins tag, then a u16 version, then its body.
const (
	sdrTag = "SDR\x00"
	spTag  = "SP\x00"

	sdrStreamVersion = uint16(1)
	spStreamVersion  = uint16(1)
)

// view tags for the SDR stream's one-byte discriminator. A valid dense
// view is written as dense; anything else (including the per-axis sparse
// view) is converted losslessly to flat-sparse before writing, so only
// these two tags are ever produced.
const (
	viewTagDense byte = iota
	viewTagFlatSparse
)

func writeTag(w io.Writer, tag string) error {
	if _, err := io.WriteString(w, tag); err != nil {
		return ioErr("writeTag", err)
	}
	return nil
}

func readTag(r io.Reader, want string) error {
	buf := make([]byte, len(want))
	if _, err := io.ReadFull(r, buf); err != nil {
		return ioErr("readTag", err)
	}
	if string(buf) != want {
		return invalidStateErr("readTag", "unexpected object tag")
	}
	return nil
}

func writeU16(w io.Writer, v uint16) error {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	if _, err := w.Write(buf[:]); err != nil {
		return ioErr("writeU16", err)
	}
	return nil
}

func readU16(r io.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, ioErr("readU16", err)
	}
	return binary.BigEndian.Uint16(buf[:]), nil
}

func writeU32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	if _, err := w.Write(buf[:]); err != nil {
		return ioErr("writeU32", err)
	}
	return nil
}

func readU32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, ioErr("readU32", err)
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

func writeI32(w io.Writer, v int) error {
	return writeU32(w, uint32(int32(v)))
}

func readI32(r io.Reader) (int, error) {
	v, err := readU32(r)
	if err != nil {
		return 0, err
	}
	return int(int32(v)), nil
}

func writeF32(w io.Writer, v float64) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], math.Float32bits(float32(v)))
	if _, err := w.Write(buf[:]); err != nil {
		return ioErr("writeF32", err)
	}
	return nil
}

func readF32(r io.Reader) (float64, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, ioErr("readF32", err)
	}
	return float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[:]))), nil
}

func writeF64(w io.Writer, v float64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	if _, err := w.Write(buf[:]); err != nil {
		return ioErr("writeF64", err)
	}
	return nil
}

func readF64(r io.Reader) (float64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, ioErr("readF64", err)
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(buf[:])), nil
}

// WriteTo serializes s as "SDR\0" + version + rank + dimensions + a view
// tag + that view's data. A root SDR whose dense view is valid writes it
// as is; otherwise the flat-sparse view is written, materialized from the
// sparse view when that is the only valid one. Proxies serialize their
// resolved flat-sparse view, since they have no independent storage of
// their own.
func (s *SDR) WriteTo(w io.Writer) (int64, error) {
	if err := s.checkAlive("WriteTo"); err != nil {
		return 0, err
	}
	cw := &countingWriter{w: w}
	if err := writeTag(cw, sdrTag); err != nil {
		return cw.n, err
	}
	if err := writeU16(cw, sdrStreamVersion); err != nil {
		return cw.n, err
	}
	if err := writeI32(cw, len(s.dimensions)); err != nil {
		return cw.n, err
	}
	for _, d := range s.dimensions {
		if err := writeI32(cw, d); err != nil {
			return cw.n, err
		}
	}

	switch {
	case s.parent == nil && s.denseValid:
		if _, err := cw.Write([]byte{viewTagDense}); err != nil {
			return cw.n, ioErr("WriteTo", err)
		}
		if err := writeI32(cw, len(s.dense)); err != nil {
			return cw.n, err
		}
		if _, err := cw.Write(s.dense); err != nil {
			return cw.n, ioErr("WriteTo", err)
		}
	default:
		fs, err := s.GetFlatSparse()
		if err != nil {
			return cw.n, err
		}
		if _, err := cw.Write([]byte{viewTagFlatSparse}); err != nil {
			return cw.n, ioErr("WriteTo", err)
		}
		if err := writeI32(cw, len(fs)); err != nil {
			return cw.n, err
		}
		for _, idx := range fs {
			if err := writeI32(cw, idx); err != nil {
				return cw.n, err
			}
		}
	}
	return cw.n, nil
}

// ReadSDR decodes a stream previously produced by SDR.WriteTo.
func ReadSDR(r io.Reader) (*SDR, error) {
	if err := readTag(r, sdrTag); err != nil {
		return nil, err
	}
	version, err := readU16(r)
	if err != nil {
		return nil, err
	}
	if version != sdrStreamVersion {
		return nil, unsupportedVersionErr("ReadSDR", version)
	}
	rank, err := readI32(r)
	if err != nil {
		return nil, err
	}
	dims := make([]int, rank)
	for i := range dims {
		d, err := readI32(r)
		if err != nil {
			return nil, err
		}
		dims[i] = d
	}
	s, err := NewSDR(dims)
	if err != nil {
		return nil, err
	}

	var tagBuf [1]byte
	if _, err := io.ReadFull(r, tagBuf[:]); err != nil {
		return nil, ioErr("ReadSDR", err)
	}
	switch tagBuf[0] {
	case viewTagDense:
		n, err := readI32(r)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, ioErr("ReadSDR", err)
		}
		if err := s.SetDense(buf); err != nil {
			return nil, err
		}
	case viewTagFlatSparse:
		n, err := readI32(r)
		if err != nil {
			return nil, err
		}
		indices := make([]int, n)
		for i := range indices {
			idx, err := readI32(r)
			if err != nil {
				return nil, err
			}
			indices[i] = idx
		}
		if err := s.SetFlatSparse(indices); err != nil {
			return nil, err
		}
	default:
		return nil, invalidStateErr("ReadSDR", "unknown view tag")
	}
	return s, nil
}

// WriteTo serializes the Spatial Pooler's full state (spec.md §4.7/§6):
// "SP\0" + version, every hyperparameter, iteration counters, RNG state,
// per-column synapse lists, duty-cycle EMAs, and boost factors.
func (sp *SpatialPooler) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	if err := writeTag(cw, spTag); err != nil {
		return cw.n, err
	}
	if err := writeU16(cw, spStreamVersion); err != nil {
		return cw.n, err
	}

	writers := []func() error{
		func() error { return writeDims(cw, sp.params.InputDimensions) },
		func() error { return writeDims(cw, sp.params.ColumnDimensions) },
		func() error { return writeI32(cw, sp.params.PotentialRadius) },
		func() error { return writeF64(cw, sp.params.PotentialPct) },
		func() error { return writeBool(cw, sp.params.GlobalInhibition) },
		func() error { return writeF64(cw, sp.params.LocalAreaDensity) },
		func() error { return writeI32(cw, sp.params.NumActiveColumnsPerInhArea) },
		func() error { return writeI32(cw, sp.params.StimulusThreshold) },
		func() error { return writeF64(cw, sp.params.SynPermInactiveDec) },
		func() error { return writeF64(cw, sp.params.SynPermActiveInc) },
		func() error { return writeF64(cw, sp.params.SynPermConnected) },
		func() error { return writeF64(cw, sp.params.MinPctOverlapDutyCycles) },
		func() error { return writeI32(cw, sp.params.DutyCyclePeriod) },
		func() error { return writeF64(cw, sp.params.BoostStrength) },
		func() error { return writeU32(cw, sp.params.Seed) },
		func() error { return writeBool(cw, sp.params.WrapAround) },
		func() error { return writeI32(cw, sp.params.UpdatePeriod) },
		func() error { return writeI32(cw, sp.iterationNum) },
		func() error { return writeI32(cw, sp.iterationLearnNum) },
		func() error { return writeI32(cw, sp.inhibitionRadius) },
		func() error { return writeRNGState(cw, sp.rng) },
		func() error { return writeF64Slice(cw, sp.boostFactors) },
		func() error { return writeF64Slice(cw, sp.overlapDutyCycles) },
		func() error { return writeF64Slice(cw, sp.activeDutyCycles) },
		func() error { return writeF64Slice(cw, sp.minOverlapDutyCycles) },
		func() error { return writeConnections(cw, sp.connections) },
	}
	for _, fn := range writers {
		if err := fn(); err != nil {
			return cw.n, err
		}
	}
	return cw.n, nil
}

// ReadSpatialPooler decodes a stream previously produced by
// SpatialPooler.WriteTo, reconstructing numConnected from the loaded
// synapse permanences rather than persisting it directly.
func ReadSpatialPooler(r io.Reader) (*SpatialPooler, error) {
	if err := readTag(r, spTag); err != nil {
		return nil, err
	}
	version, err := readU16(r)
	if err != nil {
		return nil, err
	}
	if version != spStreamVersion {
		return nil, unsupportedVersionErr("ReadSpatialPooler", version)
	}

	params := SpatialPoolerParams{}
	var err2 error
	if params.InputDimensions, err2 = readDims(r); err2 != nil {
		return nil, err2
	}
	if params.ColumnDimensions, err2 = readDims(r); err2 != nil {
		return nil, err2
	}
	if params.PotentialRadius, err2 = readI32(r); err2 != nil {
		return nil, err2
	}
	if params.PotentialPct, err2 = readF64(r); err2 != nil {
		return nil, err2
	}
	if params.GlobalInhibition, err2 = readBool(r); err2 != nil {
		return nil, err2
	}
	if params.LocalAreaDensity, err2 = readF64(r); err2 != nil {
		return nil, err2
	}
	if params.NumActiveColumnsPerInhArea, err2 = readI32(r); err2 != nil {
		return nil, err2
	}
	if params.StimulusThreshold, err2 = readI32(r); err2 != nil {
		return nil, err2
	}
	if params.SynPermInactiveDec, err2 = readF64(r); err2 != nil {
		return nil, err2
	}
	if params.SynPermActiveInc, err2 = readF64(r); err2 != nil {
		return nil, err2
	}
	if params.SynPermConnected, err2 = readF64(r); err2 != nil {
		return nil, err2
	}
	if params.MinPctOverlapDutyCycles, err2 = readF64(r); err2 != nil {
		return nil, err2
	}
	if params.DutyCyclePeriod, err2 = readI32(r); err2 != nil {
		return nil, err2
	}
	if params.BoostStrength, err2 = readF64(r); err2 != nil {
		return nil, err2
	}
	if params.Seed, err2 = readU32(r); err2 != nil {
		return nil, err2
	}
	if params.WrapAround, err2 = readBool(r); err2 != nil {
		return nil, err2
	}
	if params.UpdatePeriod, err2 = readI32(r); err2 != nil {
		return nil, err2
	}

	sp, err := NewSpatialPooler(params)
	if err != nil {
		return nil, err
	}

	if sp.iterationNum, err2 = readI32(r); err2 != nil {
		return nil, err2
	}
	if sp.iterationLearnNum, err2 = readI32(r); err2 != nil {
		return nil, err2
	}
	if sp.inhibitionRadius, err2 = readI32(r); err2 != nil {
		return nil, err2
	}
	if err2 = readRNGState(r, sp.rng); err2 != nil {
		return nil, err2
	}
	if sp.boostFactors, err2 = readF64Slice(r); err2 != nil {
		return nil, err2
	}
	if sp.overlapDutyCycles, err2 = readF64Slice(r); err2 != nil {
		return nil, err2
	}
	if sp.activeDutyCycles, err2 = readF64Slice(r); err2 != nil {
		return nil, err2
	}
	if sp.minOverlapDutyCycles, err2 = readF64Slice(r); err2 != nil {
		return nil, err2
	}
	connections, err2 := readConnections(r, sp.params.SynPermConnected, sp.synPermBelowStimulusInc)
	if err2 != nil {
		return nil, err2
	}
	sp.connections = connections

	return sp, nil
}

func writeDims(w io.Writer, dims []int) error {
	if err := writeI32(w, len(dims)); err != nil {
		return err
	}
	for _, d := range dims {
		if err := writeI32(w, d); err != nil {
			return err
		}
	}
	return nil
}

func readDims(r io.Reader) ([]int, error) {
	n, err := readI32(r)
	if err != nil {
		return nil, err
	}
	dims := make([]int, n)
	for i := range dims {
		if dims[i], err = readI32(r); err != nil {
			return nil, err
		}
	}
	return dims, nil
}

func writeBool(w io.Writer, v bool) error {
	b := byte(0)
	if v {
		b = 1
	}
	if _, err := w.Write([]byte{b}); err != nil {
		return ioErr("writeBool", err)
	}
	return nil
}

func readBool(r io.Reader) (bool, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return false, ioErr("readBool", err)
	}
	return buf[0] != 0, nil
}

func writeF64Slice(w io.Writer, v []float64) error {
	if err := writeI32(w, len(v)); err != nil {
		return err
	}
	for _, x := range v {
		if err := writeF64(w, x); err != nil {
			return err
		}
	}
	return nil
}

func readF64Slice(r io.Reader) ([]float64, error) {
	n, err := readI32(r)
	if err != nil {
		return nil, err
	}
	out := make([]float64, n)
	for i := range out {
		if out[i], err = readF64(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// writeRNGState persists only the seed the generator was constructed
// with. math/rand's source does not expose its internal counter, so a
// loaded SP resumes a fresh stream from that seed rather than the exact
// mid-stream position; callers that need bit-for-bit continuation across
// a save/load boundary should avoid computing between the two.
func writeRNGState(w io.Writer, rng *Random) error {
	return writeU32(w, rng.Seed())
}

func readRNGState(r io.Reader, rng *Random) error {
	seed, err := readU32(r)
	if err != nil {
		return err
	}
	*rng = *NewRandom(seed)
	return nil
}

// writeConnections persists numSegments followed by, per segment,
// (segmentId, numSynapses, [(presyn, perm_f32) x numSynapses]) as
// spec.md §6 specifies.
func writeConnections(w io.Writer, c *Connections) error {
	if err := writeI32(w, c.NumSegments()); err != nil {
		return err
	}
	for seg := 0; seg < c.NumSegments(); seg++ {
		if err := writeI32(w, seg); err != nil {
			return err
		}
		handles, err := c.SynapsesForSegment(seg)
		if err != nil {
			return err
		}
		if err := writeI32(w, len(handles)); err != nil {
			return err
		}
		for _, h := range handles {
			syn, err := c.DataForSynapse(h)
			if err != nil {
				return err
			}
			if err := writeI32(w, syn.PresynapticCell); err != nil {
				return err
			}
			if err := writeF32(w, syn.Permanence); err != nil {
				return err
			}
		}
	}
	return nil
}

// readConnections rebuilds a Connections store, deriving numConnected
// from each loaded permanence via CreateSynapse instead of persisting it.
func readConnections(r io.Reader, connectedThreshold, belowStimulusInc float64) (*Connections, error) {
	numSegments, err := readI32(r)
	if err != nil {
		return nil, err
	}
	c := NewConnections()
	if err := c.Initialize(numSegments, connectedThreshold); err != nil {
		return nil, err
	}
	c.SetSynPermBelowStimulusInc(belowStimulusInc)

	for i := 0; i < numSegments; i++ {
		segID, err := readI32(r)
		if err != nil {
			return nil, err
		}
		numSynapses, err := readI32(r)
		if err != nil {
			return nil, err
		}
		for j := 0; j < numSynapses; j++ {
			presyn, err := readI32(r)
			if err != nil {
				return nil, err
			}
			perm, err := readF32(r)
			if err != nil {
				return nil, err
			}
			if _, err := c.CreateSynapse(segID, presyn, perm); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
