package htm

import (
	"fmt"
	"io"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Sparsity tracks an exponentially smoothed sparsity plus running
// min/max/mean/stddev over the raw instantaneous sparsity observed at
// each notification from its parent SDR (spec.md §4.4).
type Sparsity struct {
	period int
	alpha  float64

	seeded bool
	ema    float64
	min    float64
	max    float64

	count int64
	mean  float64
	m2    float64 // Welford accumulator for variance

	parent   *SDR
	handle   CallbackHandle
	detached bool
}

// NewSparsity attaches a Sparsity metric to sdr with the given EMA
// window. period must be > 0.
func NewSparsity(sdr *SDR, period int) (*Sparsity, error) {
	if period <= 0 {
		return nil, invalidArgErr("NewSparsity", "period must be > 0")
	}
	if err := sdr.checkAlive("NewSparsity"); err != nil {
		return nil, err
	}
	m := &Sparsity{period: period, alpha: 1.0 / float64(period), parent: sdr}
	m.handle = sdr.AddCallback(func() { m.onUpdate(sdr) })
	sdr.addDestroyHook(func() { m.detach() })
	return m, nil
}

func (m *Sparsity) detach() {
	m.detached = true
}

func (m *Sparsity) onUpdate(sdr *SDR) {
	if m.detached {
		return
	}
	s, err := sdr.GetSparsity()
	if err != nil {
		return
	}
	if !m.seeded {
		m.ema, m.min, m.max = s, s, s
		m.seeded = true
	} else {
		m.ema = (1-m.alpha)*m.ema + m.alpha*s
		if s < m.min {
			m.min = s
		}
		if s > m.max {
			m.max = s
		}
	}
	m.count++
	delta := s - m.mean
	m.mean += delta / float64(m.count)
	delta2 := s - m.mean
	m.m2 += delta * delta2
}

// Sparsity returns the current EMA.
func (m *Sparsity) Sparsity() float64 { return m.ema }

// Min is the smallest instantaneous sparsity observed.
func (m *Sparsity) Min() float64 { return m.min }

// Max is the largest instantaneous sparsity observed.
func (m *Sparsity) Max() float64 { return m.max }

// Mean is the plain running mean of instantaneous sparsity (not the EMA).
func (m *Sparsity) Mean() float64 { return m.mean }

// StdDev is the running sample standard deviation of instantaneous sparsity.
func (m *Sparsity) StdDev() float64 {
	if m.count < 2 {
		return 0
	}
	return math.Sqrt(m.m2 / float64(m.count-1))
}

func (m *Sparsity) Print(w io.Writer) {
	fmt.Fprintf(w, "Sparsity{ema=%.4f min=%.4f max=%.4f mean=%.4f std=%.4f}\n",
		m.ema, m.min, m.max, m.mean, m.StdDev())
}

// ActivationFrequency tracks a per-bit EMA of activity plus summary
// statistics and the normalized binary entropy of the bit population
// (spec.md §4.4).
type ActivationFrequency struct {
	period int
	alpha  float64
	freq   []float64
	seeded bool

	parent   *SDR
	handle   CallbackHandle
	detached bool
}

// NewActivationFrequency attaches an ActivationFrequency metric to sdr.
func NewActivationFrequency(sdr *SDR, period int) (*ActivationFrequency, error) {
	if period <= 0 {
		return nil, invalidArgErr("NewActivationFrequency", "period must be > 0")
	}
	if err := sdr.checkAlive("NewActivationFrequency"); err != nil {
		return nil, err
	}
	m := &ActivationFrequency{
		period: period,
		alpha:  1.0 / float64(period),
		freq:   make([]float64, sdr.Size()),
		parent: sdr,
	}
	m.handle = sdr.AddCallback(func() { m.onUpdate(sdr) })
	sdr.addDestroyHook(func() { m.detach() })
	return m, nil
}

func (m *ActivationFrequency) detach() {
	m.detached = true
}

func (m *ActivationFrequency) onUpdate(sdr *SDR) {
	if m.detached {
		return
	}
	dense, err := sdr.GetDense()
	if err != nil {
		return
	}
	if !m.seeded {
		for i, v := range dense {
			if v != 0 {
				m.freq[i] = 1
			}
		}
		m.seeded = true
		return
	}
	for i, v := range dense {
		x := 0.0
		if v != 0 {
			x = 1
		}
		m.freq[i] = (1-m.alpha)*m.freq[i] + m.alpha*x
	}
}

// Frequencies returns a copy of the per-bit activation frequency.
func (m *ActivationFrequency) Frequencies() []float64 {
	out := make([]float64, len(m.freq))
	copy(out, m.freq)
	return out
}

func (m *ActivationFrequency) Min() float64 {
	if len(m.freq) == 0 {
		return 0
	}
	return floats.Min(m.freq)
}

func (m *ActivationFrequency) Max() float64 {
	if len(m.freq) == 0 {
		return 0
	}
	return floats.Max(m.freq)
}

func (m *ActivationFrequency) Mean() float64 {
	if len(m.freq) == 0 {
		return 0
	}
	return floats.Sum(m.freq) / float64(len(m.freq))
}

func (m *ActivationFrequency) StdDev() float64 {
	if len(m.freq) == 0 {
		return 0
	}
	mean := m.Mean()
	acc := 0.0
	for _, p := range m.freq {
		d := p - mean
		acc += d * d
	}
	return math.Sqrt(acc / float64(len(m.freq)))
}

// Entropy is the normalized binary entropy of the bit population, in
// [0,1]. All-zero and all-one SDRs both yield 0.
func (m *ActivationFrequency) Entropy() float64 {
	if len(m.freq) == 0 {
		return 0
	}
	total := 0.0
	for _, p := range m.freq {
		total += binaryEntropyTerm(p)
	}
	return total / (float64(len(m.freq)) * math.Log2(2))
}

func binaryEntropyTerm(p float64) float64 {
	term := 0.0
	if p > 0 {
		term -= p * math.Log2(p)
	}
	if p < 1 {
		term -= (1 - p) * math.Log2(1-p)
	}
	return term
}

func (m *ActivationFrequency) Print(w io.Writer) {
	fmt.Fprintf(w, "ActivationFrequency{min=%.4f mean=%.4f max=%.4f std=%.4f entropy=%.4f}\n",
		m.Min(), m.Mean(), m.Max(), m.StdDev(), m.Entropy())
}

// Overlap tracks the fraction of the smaller sum shared between
// consecutive observations of an SDR (spec.md §4.4). The first
// observation produces no sample; Overlap is undefined until two
// observations have occurred.
type Overlap struct {
	period int
	alpha  float64
	ema    float64
	seeded bool

	haveLast bool
	lastFS   []int
	lastSum  int

	parent   *SDR
	handle   CallbackHandle
	detached bool
}

// NewOverlap attaches an Overlap metric to sdr.
func NewOverlap(sdr *SDR, period int) (*Overlap, error) {
	if period <= 0 {
		return nil, invalidArgErr("NewOverlap", "period must be > 0")
	}
	if err := sdr.checkAlive("NewOverlap"); err != nil {
		return nil, err
	}
	m := &Overlap{period: period, alpha: 1.0 / float64(period), parent: sdr}
	m.handle = sdr.AddCallback(func() { m.onUpdate(sdr) })
	sdr.addDestroyHook(func() { m.detach() })
	return m, nil
}

func (m *Overlap) detach() {
	m.detached = true
}

func (m *Overlap) onUpdate(sdr *SDR) {
	if m.detached {
		return
	}
	fs, err := sdr.GetFlatSparse()
	if err != nil {
		return
	}
	if !m.haveLast {
		m.lastFS = append([]int(nil), fs...)
		m.lastSum = len(fs)
		m.haveLast = true
		return
	}
	set := make(map[int]bool, len(m.lastFS))
	for _, idx := range m.lastFS {
		set[idx] = true
	}
	shared := 0
	for _, idx := range fs {
		if set[idx] {
			shared++
		}
	}
	denom := len(fs)
	if m.lastSum < denom {
		denom = m.lastSum
	}
	sample := 0.0
	if denom > 0 {
		sample = float64(shared) / float64(denom)
	}
	if !m.seeded {
		m.ema = sample
		m.seeded = true
	} else {
		m.ema = (1-m.alpha)*m.ema + m.alpha*sample
	}
	m.lastFS = append([]int(nil), fs...)
	m.lastSum = len(fs)
}

// Value returns the current EMA and whether at least two observations
// have occurred.
func (m *Overlap) Value() (float64, bool) {
	return m.ema, m.seeded
}

func (m *Overlap) Print(w io.Writer) {
	v, ok := m.Value()
	if !ok {
		fmt.Fprintf(w, "Overlap{undefined}\n")
		return
	}
	fmt.Fprintf(w, "Overlap{%.4f}\n", v)
}

// Metrics is a composite of one Sparsity, one ActivationFrequency, and
// one Overlap metric attached to the same SDR (spec.md §4.4).
type Metrics struct {
	Sparsity            *Sparsity
	ActivationFrequency *ActivationFrequency
	Overlap             *Overlap
}

// NewMetrics attaches all three metrics to sdr with a shared period.
func NewMetrics(sdr *SDR, period int) (*Metrics, error) {
	sp, err := NewSparsity(sdr, period)
	if err != nil {
		return nil, err
	}
	af, err := NewActivationFrequency(sdr, period)
	if err != nil {
		return nil, err
	}
	ov, err := NewOverlap(sdr, period)
	if err != nil {
		return nil, err
	}
	return &Metrics{Sparsity: sp, ActivationFrequency: af, Overlap: ov}, nil
}

func (m *Metrics) Print(w io.Writer) {
	m.Sparsity.Print(w)
	m.ActivationFrequency.Print(w)
	m.Overlap.Print(w)
}
