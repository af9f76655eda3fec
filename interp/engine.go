package interp

// Value is a value produced by an Engine. Values are views owned by the
// engine; Inspect copies out a host-side representation.
type Value interface {
	Inspect() []byte
	// IsUnreachable reports an engine-internal value that must never be
	// handed to the embedder.
	IsUnreachable() bool
}

// Engine evaluates source. Implementations parse and execute code and
// report parse failures with NewSyntaxError and raised exceptions with
// NewRaised. filename is the current file for the evaluation.
type Engine interface {
	Eval(host Host, code []byte, filename []byte) (Value, error)
}

// Host is the interpreter surface available to executing code.
type Host interface {
	RequireSource(path string) (Required, error)
	LoadSource(path string) (Loaded, error)
	Print(message []byte) error
	Puts(message []byte) error
	CurrentFile() []byte
}

var _ Host = (*Interpreter)(nil)
