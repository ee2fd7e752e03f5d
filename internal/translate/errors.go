package translate

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a per-descriptor failure.
type ErrorKind int

const (
	KindMalformedDescriptor ErrorKind = iota + 1
	KindUnknownVariantKind
	KindUnknownGene
	KindPositionOutOfRange
	// KindNoOpVariant means the reference already carries the requested
	// change. It is reported, but does not indicate bad input.
	KindNoOpVariant
	KindUnsupportedVariant
)

func (k ErrorKind) String() string {
	switch k {
	case KindMalformedDescriptor:
		return "MalformedDescriptor"
	case KindUnknownVariantKind:
		return "UnknownVariantKind"
	case KindUnknownGene:
		return "UnknownGene"
	case KindPositionOutOfRange:
		return "PositionOutOfRange"
	case KindNoOpVariant:
		return "NoOpVariant"
	case KindUnsupportedVariant:
		return "UnsupportedVariant"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is a failure to parse or convert one descriptor.
type Error struct {
	Kind       ErrorKind
	Descriptor string // descriptor text, if known
	Msg        string
}

func (e *Error) Error() string {
	if e.Descriptor == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("%s: %q: %s", e.Kind, e.Descriptor, e.Msg)
}

// Is matches any *Error of the same kind, so callers can test against the
// sentinel values below with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrMalformedDescriptor = &Error{Kind: KindMalformedDescriptor, Msg: "malformed descriptor"}
	ErrUnknownVariantKind  = &Error{Kind: KindUnknownVariantKind, Msg: "unknown variant kind"}
	ErrUnknownGene         = &Error{Kind: KindUnknownGene, Msg: "unknown gene"}
	ErrPositionOutOfRange  = &Error{Kind: KindPositionOutOfRange, Msg: "position out of range"}
	ErrNoOpVariant         = &Error{Kind: KindNoOpVariant, Msg: "reference already encodes the change"}
	ErrUnsupportedVariant  = &Error{Kind: KindUnsupportedVariant, Msg: "unsupported variant"}
)

func newError(kind ErrorKind, descriptor, format string, args ...any) *Error {
	return &Error{Kind: kind, Descriptor: descriptor, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the ErrorKind of err, or 0 if err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
