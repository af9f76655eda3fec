package interp

import "bytes"

// EvalSentinel is the current file reported when no context is active.
const EvalSentinel = "(eval)"

// Context associates executing source with the file it came from.
type Context struct {
	filename []byte
}

// NewContext creates a context for filename. It fails for empty names and
// names containing NUL.
func NewContext(filename []byte) (Context, bool) {
	if len(filename) == 0 || bytes.IndexByte(filename, 0) >= 0 {
		return Context{}, false
	}
	return Context{filename: bytes.Clone(filename)}, true
}

// Filename returns the context's file name.
func (c Context) Filename() []byte {
	return c.filename
}

// ContextStack is the per-interpreter stack of active contexts. The top
// entry determines the current file.
type ContextStack struct {
	stack []Context
}

// Push makes ctx the current context.
func (s *ContextStack) Push(ctx Context) {
	s.stack = append(s.stack, ctx)
}

// Pop removes and returns the current context.
func (s *ContextStack) Pop() (Context, error) {
	n := len(s.stack)
	if n == 0 {
		return Context{}, ErrContextUnderflow
	}
	ctx := s.stack[n-1]
	s.stack[n-1] = Context{}
	s.stack = s.stack[:n-1]
	return ctx, nil
}

// Peek returns the current context without removing it.
func (s *ContextStack) Peek() (Context, bool) {
	n := len(s.stack)
	if n == 0 {
		return Context{}, false
	}
	return s.stack[n-1], true
}

// Len returns the stack depth.
func (s *ContextStack) Len() int {
	return len(s.stack)
}

// CurrentFile returns the top filename, or EvalSentinel when empty.
func (s *ContextStack) CurrentFile() []byte {
	if ctx, ok := s.Peek(); ok {
		return ctx.filename
	}
	return []byte(EvalSentinel)
}
