package fsops

import "fmt"

// Kind classifies operation failures. Callers over MCP only ever see the
// rendered message string, but the kind keeps failures distinguishable
// internally and in tests.
type Kind int

const (
	KindAccessDenied Kind = iota
	KindNotFound
	KindNotADirectory
	KindPermissionDenied
	KindGeneric
)

func (k Kind) String() string {
	switch k {
	case KindAccessDenied:
		return "access_denied"
	case KindNotFound:
		return "not_found"
	case KindNotADirectory:
		return "not_a_directory"
	case KindPermissionDenied:
		return "permission_denied"
	default:
		return "generic"
	}
}

// Error is the value-level failure every operation returns instead of
// propagating a fault. The message strings are the stable caller-facing
// contract; do not reword them.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
