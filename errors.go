package htm

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Wrap one of these with fmt.Errorf("%w: ...") so
// callers can test with errors.Is against the kind rather than a message.
var (
	// ErrInvalidArgument covers non-positive dimensions, shape mismatches,
	// out-of-range coordinates, and hyperparameters outside their domain.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidState covers operations on a detached Proxy or an unknown
	// callback handle.
	ErrInvalidState = errors.New("invalid state")

	// ErrUnsupportedVersion is returned by the stream decoders when the
	// version field in a serialized object is not one this build knows.
	ErrUnsupportedVersion = errors.New("unsupported version")

	// ErrIoError wraps failures surfaced from the underlying stream during
	// save/load.
	ErrIoError = errors.New("io error")
)

func invalidArgErr(op, msg string) error {
	return fmt.Errorf("%s: %w: %s", op, ErrInvalidArgument, msg)
}

func invalidStateErr(op, msg string) error {
	return fmt.Errorf("%s: %w: %s", op, ErrInvalidState, msg)
}

func unsupportedVersionErr(op string, version uint16) error {
	return fmt.Errorf("%s: %w: %d", op, ErrUnsupportedVersion, version)
}

func ioErr(op string, cause error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrIoError, cause)
}
