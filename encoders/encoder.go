// Package encoders turns raw scalar, date, and coordinate values into the
// binary SDRs a Spatial Pooler consumes.
package encoders

// ValueEncoder is anything that maps a value onto a fixed-width SDR.
// Encoder implementations vary in what they accept (a float64, a
// time.Time, a coordinate plus radius) so the encode step itself is
// not part of this interface.
type ValueEncoder interface {
	Width() int
	Name() string
}
