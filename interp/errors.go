package interp

import (
	"errors"
)

// Kind classifies an Exception.
type Kind int

const (
	// KindArgument marks a path or argument that cannot be represented.
	KindArgument Kind = iota + 1
	// KindLoad marks source that could not be resolved or read.
	KindLoad
	// KindSyntax marks source the engine could not parse. The interpreter
	// stays usable afterwards.
	KindSyntax
	// KindRaised marks an exception raised by executing source.
	KindRaised
	// KindFatal marks a violated internal invariant. It signals a defect,
	// not a user error.
	KindFatal
	// KindIO marks a failed host I/O operation.
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindArgument:
		return "argument"
	case KindLoad:
		return "load"
	case KindSyntax:
		return "syntax"
	case KindRaised:
		return "raised"
	case KindFatal:
		return "fatal"
	case KindIO:
		return "io"
	default:
		return "unknown"
	}
}

var (
	// ErrNotInitialized is returned by every interpreter operation once
	// the interpreter state has been released.
	ErrNotInitialized = errors.New("interpreter state not initialized")

	// ErrContextUnderflow is returned when a context is popped from an
	// empty stack. It always indicates unbalanced push/pop calls.
	ErrContextUnderflow = errors.New("context stack underflow")
)

// Exception is a runtime exception surfaced to the embedder. Message holds
// raw bytes; paths embedded in it are never escaped.
type Exception struct {
	Kind    Kind
	Class   string
	Message []byte
	Err     error
}

func (e *Exception) Error() string {
	return e.Class + ": " + string(e.Message)
}

// Name returns the exception class name.
func (e *Exception) Name() string {
	return e.Class
}

func (e *Exception) Unwrap() error {
	return e.Err
}

func newException(kind Kind, class, message string) *Exception {
	return &Exception{Kind: kind, Class: class, Message: []byte(message)}
}

// NewArgumentError creates an ArgumentError.
func NewArgumentError(message string) *Exception {
	return newException(KindArgument, "ArgumentError", message)
}

// NewLoadError creates a LoadError.
func NewLoadError(message string) *Exception {
	return newException(KindLoad, "LoadError", message)
}

// NewSyntaxError creates a SyntaxError.
func NewSyntaxError(message string) *Exception {
	return newException(KindSyntax, "SyntaxError", message)
}

// NewRaised creates an exception raised by executing code.
func NewRaised(class, message string) *Exception {
	if class == "" {
		class = "RuntimeError"
	}
	return newException(KindRaised, class, message)
}

// NewFatal creates a fatal exception.
func NewFatal(message string) *Exception {
	return newException(KindFatal, "fatal", message)
}

// NewIOError wraps a host I/O failure.
func NewIOError(err error) *Exception {
	e := newException(KindIO, "IOError", err.Error())
	e.Err = err
	return e
}

// KindOf returns the kind of err if it is or wraps an Exception.
func KindOf(err error) (Kind, bool) {
	var exc *Exception
	if errors.As(err, &exc) {
		return exc.Kind, true
	}
	return 0, false
}
