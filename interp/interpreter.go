// Package interp implements source loading and execution contexts for an
// embeddable interpreter.
//
// An Interpreter owns a virtual file system, a context stack and an
// Engine. Eval and EvalFile evaluate code; LoadSource re-executes a file on
// every call while RequireSource executes it once per resolved path.
//
// An Interpreter is single-threaded: callers must not use it from more
// than one goroutine at a time. Independent interpreters share nothing.
package interp

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/chazu/loadpath/vfs"
)

// DefaultSourceExtension is the canonical source file extension used for
// extension completion.
const DefaultSourceExtension = "rb"

var log = commonlog.GetLogger("loadpath.interp")

// FileSystem is the virtual file system type used by interpreters.
type FileSystem = vfs.FileSystem[ExtensionHook]

// Interpreter is a handle to one interpreter instance.
type Interpreter struct {
	id    uuid.UUID
	state *state
}

type state struct {
	vfs       *FileSystem
	contexts  ContextStack
	engine    Engine
	output    Output
	extension string

	// paths whose require is currently evaluating
	loading map[string]bool
}

// Option configures an Interpreter.
type Option func(*config)

type config struct {
	root      string
	extension string
	output    Output
}

// WithVirtualRoot sets the directory relative virtual paths resolve
// against.
func WithVirtualRoot(root string) Option {
	return func(c *config) { c.root = root }
}

// WithSourceExtension sets the canonical source extension, without the
// leading dot.
func WithSourceExtension(ext string) Option {
	return func(c *config) { c.extension = ext }
}

// WithOutput sets the output strategy used by Print and Puts.
func WithOutput(out Output) Option {
	return func(c *config) { c.output = out }
}

// New creates an interpreter that evaluates code with engine.
func New(engine Engine, opts ...Option) *Interpreter {
	cfg := &config{
		extension: DefaultSourceExtension,
		output:    ProcessOutput{},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	fs := vfs.New[ExtensionHook](cfg.root)

	it := &Interpreter{
		id: uuid.New(),
		state: &state{
			vfs:       fs,
			engine:    engine,
			output:    cfg.output,
			extension: cfg.extension,
			loading:   make(map[string]bool),
		},
	}
	log.Debugf("interpreter %s created (root %s)", it.id, fs.Cwd())
	return it
}

// ID returns the interpreter's instance ID.
func (it *Interpreter) ID() uuid.UUID {
	return it.id
}

// Close releases the interpreter state. Every later operation returns
// ErrNotInitialized.
func (it *Interpreter) Close() {
	if it.state == nil {
		return
	}
	it.state = nil
	log.Debugf("interpreter %s closed", it.id)
}

func (it *Interpreter) st() (*state, error) {
	if it == nil || it.state == nil {
		return nil, ErrNotInitialized
	}
	if it.state.engine == nil {
		return nil, fmt.Errorf("%w: no execution engine", ErrNotInitialized)
	}
	return it.state, nil
}

// FileSystem returns the interpreter's virtual file system.
func (it *Interpreter) FileSystem() (*FileSystem, error) {
	st, err := it.st()
	if err != nil {
		return nil, err
	}
	return st.vfs, nil
}

// SourceExtension returns the canonical source extension.
func (it *Interpreter) SourceExtension() string {
	if it == nil || it.state == nil {
		return DefaultSourceExtension
	}
	return it.state.extension
}
