package marshal

import (
	"errors"
	"fmt"
)

// Kind classifies a decode failure.
type Kind int

const (
	// TypeMismatch means a value was present but of the wrong shape.
	TypeMismatch Kind = iota + 1
	// MissingField means a required value or record field was absent.
	MissingField
)

func (k Kind) String() string {
	switch k {
	case TypeMismatch:
		return "type mismatch"
	case MissingField:
		return "missing field"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is matching against a *DecodeError.
var (
	ErrTypeMismatch = errors.New("type mismatch")
	ErrMissingField = errors.New("missing field")
)

// DecodeError reports a script value that does not match the declared shape.
// Path locates the offending element, e.g. "#1[2].x".
type DecodeError struct {
	Kind Kind
	Path string
	Want string
	Got  string
}

func (e *DecodeError) Error() string {
	loc := e.Path
	if loc == "" {
		loc = "value"
	}
	if e.Kind == MissingField {
		return fmt.Sprintf("%s: %s (want %s)", e.Kind, loc, e.Want)
	}
	return fmt.Sprintf("%s at %s: want %s, got %s", e.Kind, loc, e.Want, e.Got)
}

// Is matches the package sentinels by kind.
func (e *DecodeError) Is(target error) bool {
	switch target {
	case ErrTypeMismatch:
		return e.Kind == TypeMismatch
	case ErrMissingField:
		return e.Kind == MissingField
	}
	return false
}

func mismatch(want, got string) error {
	return &DecodeError{Kind: TypeMismatch, Want: want, Got: got}
}

func missing(want string) error {
	return &DecodeError{Kind: MissingField, Want: want}
}

// Within prefixes the location of a *DecodeError with seg. Other errors are
// returned unchanged.
func Within(err error, seg string) error {
	var de *DecodeError
	if !errors.As(err, &de) {
		return err
	}
	cp := *de
	cp.Path = seg + de.Path
	return &cp
}
