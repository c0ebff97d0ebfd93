package encoders

import (
	"fmt"
	"sort"

	htm "github.com/htm-community/spatial-pooler"
)

// ScalarEncoderParams configures a ScalarEncoder. Exactly one of Radius,
// Resolution, or N should be set; the others are derived from it.
//
// W -- the number of active bits in the output. Must be odd.
//
// Radius -- two inputs separated by more than the radius have
// non-overlapping representations. Two inputs separated by less than the
// radius will in general overlap in at least some of their bits.
//
// Resolution -- two inputs separated by at least the resolution are
// guaranteed to have different representations.
type ScalarEncoderParams struct {
	W          int
	MinVal     float64
	MaxVal     float64
	Periodic   bool
	Radius     float64
	Resolution float64
	N          int
	ClipInput  bool
	Name       string
}

// ScalarEncoder encodes a scalar into a contiguous block of w active bits
// out of n, whose position varies continuously with the input value. The
// original description of this algorithm is in the numenta encoders
// package this teacher's docstring was lifted from; the block placement
// math is unchanged, only the output type differs.
type ScalarEncoder struct {
	ScalarEncoderParams

	padding       int
	halfWidth     int
	rangeInternal float64
	resolution    float64
	n             int
	nInternal     int
}

// NewScalarEncoder validates p and derives n, resolution, and padding from
// whichever of Radius/Resolution/N was supplied.
func NewScalarEncoder(p ScalarEncoderParams) (*ScalarEncoder, error) {
	if p.W <= 0 || p.W%2 == 0 {
		return nil, fmt.Errorf("%w: ScalarEncoder: w must be a positive odd integer", htm.ErrInvalidArgument)
	}
	if p.MaxVal <= p.MinVal {
		return nil, fmt.Errorf("%w: ScalarEncoder: maxVal must be > minVal", htm.ErrInvalidArgument)
	}

	se := &ScalarEncoder{ScalarEncoderParams: p}
	se.halfWidth = p.W / 2
	se.rangeInternal = p.MaxVal - p.MinVal

	switch {
	case p.N > 0:
		se.n = p.N
		if se.Periodic {
			se.nInternal = se.n
		} else {
			se.nInternal = se.n - p.W
		}
		se.resolution = se.rangeInternal / float64(se.nInternal)
	case p.Radius > 0:
		se.resolution = p.Radius / float64(p.W)
		se.fromResolution()
	case p.Resolution > 0:
		se.resolution = p.Resolution
		se.fromResolution()
	default:
		return nil, fmt.Errorf("%w: ScalarEncoder: one of n, radius, or resolution must be set", htm.ErrInvalidArgument)
	}

	if !se.Periodic {
		se.padding = se.halfWidth
	}
	return se, nil
}

func (se *ScalarEncoder) fromResolution() {
	se.nInternal = int(se.rangeInternal/se.resolution + 0.5)
	if se.Periodic {
		se.n = se.nInternal
	} else {
		se.n = se.nInternal + se.W
	}
}

// Width is the total number of bits in the encoder's output.
func (se *ScalarEncoder) Width() int { return se.n }

// Name identifies this encoder for composite descriptions.
func (se *ScalarEncoder) Name() string { return se.ScalarEncoderParams.Name }

func (se *ScalarEncoder) firstOnBit(input float64) (int, error) {
	if input < se.MinVal || input > se.MaxVal {
		if se.ClipInput && !se.Periodic {
			if input < se.MinVal {
				input = se.MinVal
			} else {
				input = se.MaxVal
			}
		} else {
			return 0, fmt.Errorf("%w: ScalarEncoder: input %v outside range [%v,%v]", htm.ErrInvalidArgument, input, se.MinVal, se.MaxVal)
		}
	}

	var centerBin int
	if se.Periodic {
		centerBin = int((input-se.MinVal)*float64(se.nInternal)/se.rangeInternal) + se.padding
	} else {
		centerBin = int((input-se.MinVal+se.resolution/2)/se.resolution) + se.padding
	}
	return centerBin - se.halfWidth, nil
}

// Encode maps input to an SDR of width se.Width(), with w contiguous bits
// active (wrapping around for periodic encoders).
func (se *ScalarEncoder) Encode(input float64) (*htm.SDR, error) {
	minBin, err := se.firstOnBit(input)
	if err != nil {
		return nil, err
	}
	maxBin := minBin + 2*se.halfWidth

	sdr, err := htm.NewSDR([]int{se.n})
	if err != nil {
		return nil, err
	}

	var indices []int
	if se.Periodic {
		for b := minBin; b <= maxBin; b++ {
			indices = append(indices, ((b%se.n)+se.n)%se.n)
		}
		sort.Ints(indices)
	} else {
		if minBin < 0 {
			minBin = 0
		}
		if maxBin >= se.n {
			maxBin = se.n - 1
		}
		for b := minBin; b <= maxBin; b++ {
			indices = append(indices, b)
		}
	}
	if err := sdr.SetFlatSparse(indices); err != nil {
		return nil, err
	}
	return sdr, nil
}
