// Package errors defines sentinel and kind-tagged errors shared across
// kvsrv's request execution pipeline.
package errors

import "errors"

// Sentinel errors for storage-facade operations.
var (
	// ErrKeyNotFound indicates that the requested key does not exist.
	ErrKeyNotFound = errors.New("key not found")

	// ErrWrongType indicates a type mismatch for the value stored under a key.
	ErrWrongType = errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")

	// ErrNotInteger indicates the value is not a valid integer.
	ErrNotInteger = errors.New("value is not an integer or out of range")

	// ErrNotFloat indicates the value is not a valid float.
	ErrNotFloat = errors.New("value is not a valid float")
)

// Sentinel errors for connection/protocol handling.
var (
	// ErrClosed indicates the resource has been closed.
	ErrClosed = errors.New("resource is closed")

	// ErrTimeout indicates an operation timed out.
	ErrTimeout = errors.New("operation timed out")

	// ErrInvalidArgs indicates wrong number of arguments.
	ErrInvalidArgs = errors.New("wrong number of arguments")
)

// ErrOOM indicates the arena or memory pool could not satisfy an
// allocation and the system allocator fallback also failed.
var ErrOOM = errors.New("OOM command not allowed")

// Kind enumerates the error kinds exposed at the wire level.
type Kind int

const (
	// KindParse covers unknown command, bad arity, invalid integer,
	// unclosed quote, and token-too-large parse failures.
	KindParse Kind = iota
	// KindTypeMismatch covers opcode/stored-value-type clashes.
	KindTypeMismatch
	// KindOOM covers arena and memory-pool exhaustion.
	KindOOM
	// KindStorage covers errors surfaced by the storage facade.
	KindStorage
	// KindIO covers socket-level failures; the connection closes without a reply.
	KindIO
	// KindFatalInit covers unrecoverable startup conditions.
	KindFatalInit
)

// KindError pairs a Kind with a client-visible message, letting the
// executor and connection handler decide reply formatting and whether
// the connection survives without string-matching messages.
type KindError struct {
	Kind    Kind
	Message string
}

func (e *KindError) Error() string { return e.Message }

// New constructs a KindError with the given kind and message.
func New(kind Kind, message string) *KindError {
	return &KindError{Kind: kind, Message: message}
}
