package level2

import "fmt"

// Kind identifies a class of decoder-local error. Decode returns Truncated
// for a stream shorter than the volume header and EmptyFrame when no radial
// decoded; other failures inside the scan are recovered locally: the
// offending radial or block is skipped and scanning resumes. No package
// defines IOFailure or ConfigInvalid kinds; object-store, filesystem and
// config errors are passed on as plain Go errors.
type Kind int

const (
	Truncated Kind = iota
	InvalidHeader
	CorruptContainer
	SegmentOverflow
	PointerOutOfRange
	UnsupportedMoment
	EmptyFrame
)

func (k Kind) String() string {
	switch k {
	case Truncated:
		return "truncated"
	case InvalidHeader:
		return "invalid_header"
	case CorruptContainer:
		return "corrupt_container"
	case SegmentOverflow:
		return "segment_overflow"
	case PointerOutOfRange:
		return "pointer_out_of_range"
	case UnsupportedMoment:
		return "unsupported_moment"
	case EmptyFrame:
		return "empty_frame"
	default:
		return "unknown"
	}
}

// Error wraps a Kind with context. Decoder-local errors are values, never
// panics: every byte-slice walk in this package is bounds-checked before use.
type Error struct {
	Kind    Kind
	Context string
}

func (e *Error) Error() string {
	if e.Context == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind.String(), e.Context)
}

func newErr(k Kind, context string) *Error {
	return &Error{Kind: k, Context: context}
}
