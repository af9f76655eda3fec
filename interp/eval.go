package interp

import (
	"errors"
	"fmt"
)

// PushContext makes ctx the current context.
func (it *Interpreter) PushContext(ctx Context) error {
	st, err := it.st()
	if err != nil {
		return err
	}
	st.contexts.Push(ctx)
	return nil
}

// PopContext removes the current context.
func (it *Interpreter) PopContext() (Context, error) {
	st, err := it.st()
	if err != nil {
		return Context{}, err
	}
	return st.contexts.Pop()
}

// PeekContext returns the current context, if any.
func (it *Interpreter) PeekContext() (Context, bool, error) {
	st, err := it.st()
	if err != nil {
		return Context{}, false, err
	}
	ctx, ok := st.contexts.Peek()
	return ctx, ok, nil
}

// CurrentFile returns the value of the current-file magic for executing
// code.
func (it *Interpreter) CurrentFile() []byte {
	if it.state == nil {
		return []byte(EvalSentinel)
	}
	return it.state.contexts.CurrentFile()
}

// Eval evaluates code in the current context.
func (it *Interpreter) Eval(code []byte) (Value, error) {
	st, err := it.st()
	if err != nil {
		return nil, err
	}
	return it.eval(st, code)
}

// EvalString evaluates a host string.
func (it *Interpreter) EvalString(code string) (Value, error) {
	return it.Eval([]byte(code))
}

func (it *Interpreter) eval(st *state, code []byte) (v Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Criticalf("interpreter %s: engine panic: %v", it.id, r)
			v, err = nil, NewFatal(fmt.Sprintf("engine panic: %v", r))
		}
	}()

	v, err = st.engine.Eval(it, code, st.contexts.CurrentFile())
	if err != nil {
		return nil, engineError(err)
	}
	if v != nil && v.IsUnreachable() {
		log.Criticalf("interpreter %s: eval returned an unreachable value", it.id)
		return nil, NewFatal("eval returned an unreachable value")
	}
	return v, nil
}

// engineError normalizes an error returned by an Engine. Exceptions and
// interpreter sentinels pass through; anything else is reported as a
// RuntimeError carrying the original error.
func engineError(err error) error {
	var exc *Exception
	if errors.As(err, &exc) {
		return err
	}
	if errors.Is(err, ErrNotInitialized) || errors.Is(err, ErrContextUnderflow) {
		return err
	}
	e := NewRaised("RuntimeError", err.Error())
	e.Err = err
	return e
}

// EvalFile evaluates the file at path with path as the current file. The
// context is popped on every return path.
func (it *Interpreter) EvalFile(path string) (Value, error) {
	st, err := it.st()
	if err != nil {
		return nil, err
	}
	ctx, err := contextFor(path)
	if err != nil {
		return nil, err
	}
	return it.withContext(st, ctx, func() (Value, error) {
		code, err := st.vfs.ReadFile(path)
		if err != nil {
			return nil, NewLoadError("ruby: " + err.Error() + " -- " + path)
		}
		return it.eval(st, code)
	})
}

// evalIn evaluates code with filename as the current file.
func (it *Interpreter) evalIn(filename []byte, code []byte) (Value, error) {
	st, err := it.st()
	if err != nil {
		return nil, err
	}
	ctx, err := contextFor(string(filename))
	if err != nil {
		return nil, err
	}
	return it.withContext(st, ctx, func() (Value, error) {
		return it.eval(st, code)
	})
}

func contextFor(path string) (Context, error) {
	if path == "" {
		return Context{}, NewArgumentError("path name is empty")
	}
	ctx, ok := NewContext([]byte(path))
	if !ok {
		return Context{}, NewArgumentError("path name contains null byte")
	}
	return ctx, nil
}

// withContext runs fn with ctx pushed and pops it before returning,
// whatever fn does.
func (it *Interpreter) withContext(st *state, ctx Context, fn func() (Value, error)) (v Value, err error) {
	st.contexts.Push(ctx)
	log.Debugf("interpreter %s: push context %q (depth %d)", it.id, ctx.filename, st.contexts.Len())
	defer func() {
		if _, perr := st.contexts.Pop(); perr != nil && err == nil {
			v, err = nil, perr
		}
		log.Debugf("interpreter %s: pop context %q (depth %d)", it.id, ctx.filename, st.contexts.Len())
	}()
	return fn()
}
