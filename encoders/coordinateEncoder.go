package encoders

import (
	"fmt"
	"hash/fnv"
	"sort"

	"gonum.org/v1/gonum/floats"

	htm "github.com/htm-community/spatial-pooler"
	"github.com/htm-community/spatial-pooler/utils"
)

// CoordinateEncoder maps a coordinate in an N-dimensional integer space,
// plus a radius around it, to an SDR. It:
//
//  1. enumerates every coordinate within radius of the input,
//  2. deterministically hashes each one to an "order" in [0,1),
//  3. keeps the top ActiveBits candidates by order,
//  4. hashes each survivor to one of Width output bits.
//
// The hash is seeded per coordinate rather than reseeding a shared
// generator, so encoding is safe to call concurrently and reproducible
// regardless of call order.
type CoordinateEncoder struct {
	ActiveBits int
	Width      int
}

// NewCoordinateEncoder validates ActiveBits (odd, positive) and Width
// (strictly greater than 6x ActiveBits, ideally more than 11x) before
// returning the encoder.
func NewCoordinateEncoder(activeBits, width int) (*CoordinateEncoder, error) {
	if activeBits <= 0 || activeBits%2 == 0 {
		return nil, fmt.Errorf("%w: CoordinateEncoder: activeBits must be a positive odd integer", htm.ErrInvalidArgument)
	}
	if width <= 6*activeBits {
		return nil, fmt.Errorf("%w: CoordinateEncoder: width must be greater than 6x activeBits", htm.ErrInvalidArgument)
	}
	return &CoordinateEncoder{ActiveBits: activeBits, Width: width}, nil
}

// Name identifies this encoder.
func (e *CoordinateEncoder) Name() string { return fmt.Sprintf("[%d:%d]", e.Width, e.ActiveBits) }

// coordinateSeed hashes a coordinate to a uint32 seed via FNV-1a over its
// components, so the same coordinate always yields the same seed.
func coordinateSeed(coord []int) uint32 {
	h := fnv.New32a()
	for _, v := range coord {
		var b [8]byte
		for i := 0; i < 8; i++ {
			b[i] = byte(v >> (8 * i))
		}
		h.Write(b[:])
	}
	return h.Sum32()
}

// order returns coord's position in [0,1), a deterministic function of
// its own value only.
func order(coord []int) float64 {
	return htm.NewRandom(coordinateSeed(coord)).NextReal64()
}

// coordBit maps coord to one of width active-bit positions, independent
// of order's draw (a distinct seed avoids correlating the two hashes).
func coordBit(coord []int, width int) int {
	return htm.NewRandom(coordinateSeed(coord) ^ 0x9e3779b9).NextInt(width)
}

// Encode returns an SDR with ActiveBits bits set, chosen from the
// neighborhood of center within radius (barring hash collisions).
func (e *CoordinateEncoder) Encode(center []int, radius int) (*htm.SDR, error) {
	if radius < 0 {
		return nil, fmt.Errorf("%w: CoordinateEncoder: radius must be >= 0", htm.ErrInvalidArgument)
	}
	ranges := make([][]int, len(center))
	for i, v := range center {
		for d := -radius; d <= radius; d++ {
			ranges[i] = append(ranges[i], v+d)
		}
	}
	neighbors := utils.CartProductInt(ranges)
	if e.ActiveBits > len(neighbors) {
		return nil, fmt.Errorf("%w: CoordinateEncoder: activeBits exceeds neighborhood size", htm.ErrInvalidArgument)
	}

	orders := make([]float64, len(neighbors))
	inds := make([]int, len(neighbors))
	for i, n := range neighbors {
		orders[i] = order(n)
		inds[i] = i
	}
	floats.Argsort(orders, inds)

	sdr, err := htm.NewSDR([]int{e.Width})
	if err != nil {
		return nil, err
	}
	bits := make(map[int]bool, e.ActiveBits)
	for i := len(inds) - 1; i >= len(inds)-e.ActiveBits; i-- {
		bits[coordBit(neighbors[inds[i]], e.Width)] = true
	}
	indices := make([]int, 0, len(bits))
	for b := range bits {
		indices = append(indices, b)
	}
	sort.Ints(indices)
	if err := sdr.SetFlatSparse(indices); err != nil {
		return nil, err
	}
	return sdr, nil
}
