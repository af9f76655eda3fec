// Package script is a small line-oriented scripting engine implementing
// interp.Engine. It exists to drive the loader end to end: variables and
// one-line methods persist across evaluations, and require, load, puts,
// print, raise and __FILE__ go through the host interpreter.
//
//	# comment
//	count ||= 10
//	count += 1
//	def file = __FILE__
//	require "helper"
//	raise ArgumentError, "bad input"
//
// A buffer is parsed completely before anything runs, so a syntax error
// has no side effects.
package script

import (
	"bytes"
	"fmt"

	"github.com/chazu/loadpath/interp"
)

type method struct {
	body node
	file []byte
}

// Engine holds the global state of one interpreter's scripts.
type Engine struct {
	vars    map[string]Value
	methods map[string]method
}

var _ interp.Engine = (*Engine)(nil)

// New creates an engine with no variables or methods.
func New() *Engine {
	return &Engine{
		vars:    make(map[string]Value),
		methods: make(map[string]method),
	}
}

// Var returns a global variable.
func (e *Engine) Var(name string) (Value, bool) {
	v, ok := e.vars[name]
	return v, ok
}

// SetVar sets a global variable.
func (e *Engine) SetVar(name string, v Value) {
	e.vars[name] = v
}

// DefineMethod defines a method returning v. Hooks use this to install
// definitions without evaluating source.
func (e *Engine) DefineMethod(name string, v Value) {
	e.methods[name] = method{body: &literal{val: v}}
}

// HasMethod reports whether a method is defined.
func (e *Engine) HasMethod(name string) bool {
	_, ok := e.methods[name]
	return ok
}

// Eval parses and runs code. The value of the last statement is returned.
func (e *Engine) Eval(host interp.Host, code []byte, filename []byte) (interp.Value, error) {
	stmts, serr := parse(code)
	if serr != nil {
		return nil, interp.NewSyntaxError(fmt.Sprintf("%s:%d: %s", filename, serr.line, serr.msg))
	}
	f := &frame{engine: e, host: host, file: bytes.Clone(filename)}
	result := Nil
	for _, stmt := range stmts {
		v, err := f.exec(stmt)
		if err != nil {
			return nil, err
		}
		result = v
	}
	return result, nil
}

// frame is one activation: the file whose code is running.
type frame struct {
	engine *Engine
	host   interp.Host
	file   []byte
}

func (f *frame) exec(n node) (Value, error) {
	switch n := n.(type) {
	case *def:
		f.engine.methods[n.name] = method{body: n.body, file: f.file}
		return Nil, nil
	case *assign:
		return f.assign(n)
	case *raise:
		return Nil, f.raise(n)
	default:
		return f.eval(n)
	}
}

func (f *frame) assign(n *assign) (Value, error) {
	cur, defined := f.engine.vars[n.name]
	if n.op == tokOrAssign && defined && cur.Truthy() {
		return cur, nil
	}
	v, err := f.eval(n.value)
	if err != nil {
		return Nil, err
	}
	if n.op == tokPlusAssign {
		if !defined {
			return Nil, nameError(n.name)
		}
		if v, err = add(cur, v); err != nil {
			return Nil, err
		}
	}
	f.engine.vars[n.name] = v
	return v, nil
}

func (f *frame) raise(n *raise) error {
	class := n.class
	if class == "" {
		class = "RuntimeError"
	}
	msg := []byte(class)
	if n.class == "" {
		msg = []byte("unhandled exception")
	}
	if n.msg != nil {
		v, err := f.eval(n.msg)
		if err != nil {
			return err
		}
		msg = v.ToS()
	}
	return interp.NewRaised(class, string(msg))
}

func (f *frame) eval(n node) (Value, error) {
	switch n := n.(type) {
	case *literal:
		return n.val, nil
	case *fileRef:
		return String(f.file), nil
	case *varRef:
		return f.lookup(n)
	case *negate:
		v, err := f.eval(n.operand)
		if err != nil {
			return Nil, err
		}
		i, ok := v.AsInt()
		if !ok {
			return Nil, interp.NewRaised("NoMethodError", "undefined method `-@' for "+v.className())
		}
		return Int(-i), nil
	case *binary:
		left, err := f.eval(n.left)
		if err != nil {
			return Nil, err
		}
		right, err := f.eval(n.right)
		if err != nil {
			return Nil, err
		}
		switch n.op {
		case tokPlus:
			return add(left, right)
		case tokMinus:
			return sub(left, right)
		default:
			return mul(left, right)
		}
	case *call:
		return f.call(n)
	}
	return Nil, interp.NewFatal(fmt.Sprintf("script: unknown node %T", n))
}

func (f *frame) lookup(n *varRef) (Value, error) {
	if v, ok := f.engine.vars[n.name]; ok {
		return v, nil
	}
	m, ok := f.engine.methods[n.name]
	if !ok {
		return Nil, nameError(n.name)
	}
	if m.file == nil {
		return f.eval(m.body)
	}
	// Method bodies see the file they were defined in.
	inner := &frame{engine: f.engine, host: f.host, file: m.file}
	return inner.eval(m.body)
}

func (f *frame) call(n *call) (Value, error) {
	arg := Nil
	if n.arg != nil {
		v, err := f.eval(n.arg)
		if err != nil {
			return Nil, err
		}
		arg = v
	}
	switch n.fn {
	case "puts", "print":
		var out []byte
		if n.arg != nil {
			out = arg.ToS()
		}
		write := f.host.Print
		if n.fn == "puts" {
			write = f.host.Puts
		}
		if err := write(out); err != nil {
			return Nil, err
		}
		return Nil, nil
	}

	path, ok := arg.AsBytes()
	if !ok {
		return Nil, interp.NewRaised("TypeError", "no implicit conversion of "+arg.className()+" into String")
	}
	if n.fn == "load" {
		if _, err := f.host.LoadSource(string(path)); err != nil {
			return Nil, err
		}
		return Bool(true), nil
	}
	required, err := f.host.RequireSource(string(path))
	if err != nil {
		return Nil, err
	}
	return Bool(required == interp.RequireSuccess), nil
}

func nameError(name string) error {
	return interp.NewRaised("NameError", "undefined local variable or method `"+name+"' for main")
}

func typeError(a, b Value) error {
	return interp.NewRaised("TypeError", b.className()+" can't be coerced into "+a.className())
}

func add(a, b Value) (Value, error) {
	if x, ok := a.AsInt(); ok {
		if y, ok := b.AsInt(); ok {
			return Int(x + y), nil
		}
	}
	if x, ok := a.AsBytes(); ok {
		if y, ok := b.AsBytes(); ok {
			return String(append(bytes.Clone(x), y...)), nil
		}
		return Nil, interp.NewRaised("TypeError", "no implicit conversion of "+b.className()+" into String")
	}
	return Nil, typeError(a, b)
}

func sub(a, b Value) (Value, error) {
	x, ok1 := a.AsInt()
	y, ok2 := b.AsInt()
	if !ok1 || !ok2 {
		return Nil, typeError(a, b)
	}
	return Int(x - y), nil
}

func mul(a, b Value) (Value, error) {
	if s, ok := a.AsBytes(); ok {
		n, ok := b.AsInt()
		if !ok {
			return Nil, interp.NewRaised("TypeError", "no implicit conversion of "+b.className()+" into Integer")
		}
		if n < 0 {
			return Nil, interp.NewRaised("ArgumentError", "negative argument")
		}
		return String(bytes.Repeat(s, int(n))), nil
	}
	x, ok1 := a.AsInt()
	y, ok2 := b.AsInt()
	if !ok1 || !ok2 {
		return Nil, typeError(a, b)
	}
	return Int(x * y), nil
}
