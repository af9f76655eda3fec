package interp

import (
	"errors"
	"testing"
)

type fakeValue struct {
	text        string
	unreachable bool
}

func (v fakeValue) Inspect() []byte     { return []byte(v.text) }
func (v fakeValue) IsUnreachable() bool { return v.unreachable }

// fakeEngine records the current file of each evaluation and delegates to
// fn when set.
type fakeEngine struct {
	files [][]byte
	fn    func(host Host, code, filename []byte) (Value, error)
}

func (e *fakeEngine) Eval(host Host, code, filename []byte) (Value, error) {
	e.files = append(e.files, append([]byte(nil), filename...))
	if e.fn != nil {
		return e.fn(host, code, filename)
	}
	return fakeValue{text: string(code)}, nil
}

type failingOutput struct{ err error }

func (o failingOutput) WriteStdout([]byte) error { return o.err }
func (o failingOutput) WriteStderr([]byte) error { return o.err }

func newFake(t *testing.T, opts ...Option) (*Interpreter, *fakeEngine) {
	t.Helper()
	eng := &fakeEngine{}
	it := New(eng, append([]Option{WithOutput(NullOutput{})}, opts...)...)
	t.Cleanup(it.Close)
	return it, eng
}

func TestContextStack(t *testing.T) {
	var s ContextStack
	if got := string(s.CurrentFile()); got != EvalSentinel {
		t.Errorf("empty current file = %q, want %q", got, EvalSentinel)
	}
	if _, err := s.Pop(); !errors.Is(err, ErrContextUnderflow) {
		t.Errorf("pop on empty stack: err = %v, want ErrContextUnderflow", err)
	}

	a, _ := NewContext([]byte("/a.rb"))
	b, _ := NewContext([]byte("/b.rb"))
	s.Push(a)
	s.Push(b)
	if got := string(s.CurrentFile()); got != "/b.rb" {
		t.Errorf("current file = %q, want /b.rb", got)
	}
	ctx, err := s.Pop()
	if err != nil || string(ctx.Filename()) != "/b.rb" {
		t.Errorf("pop = %q, %v", ctx.Filename(), err)
	}
	if got := string(s.CurrentFile()); got != "/a.rb" {
		t.Errorf("current file after pop = %q, want /a.rb", got)
	}
	if s.Len() != 1 {
		t.Errorf("depth = %d, want 1", s.Len())
	}
}

func TestNewContextRejectsInvalidNames(t *testing.T) {
	if _, ok := NewContext(nil); ok {
		t.Error("empty filename accepted")
	}
	if _, ok := NewContext([]byte("a\x00b")); ok {
		t.Error("filename with NUL accepted")
	}
	name := []byte("/x.rb")
	ctx, ok := NewContext(name)
	if !ok {
		t.Fatal("valid filename rejected")
	}
	name[1] = 'y'
	if string(ctx.Filename()) != "/x.rb" {
		t.Error("context shares the caller's buffer")
	}
}

func TestPushPopContext(t *testing.T) {
	it, _ := newFake(t)
	ctx, _ := NewContext([]byte("/virtual_root/src/lib/a.rb"))
	if err := it.PushContext(ctx); err != nil {
		t.Fatal(err)
	}
	if got := string(it.CurrentFile()); got != "/virtual_root/src/lib/a.rb" {
		t.Errorf("current file = %q", got)
	}
	peek, ok, err := it.PeekContext()
	if err != nil || !ok || string(peek.Filename()) != "/virtual_root/src/lib/a.rb" {
		t.Errorf("peek = %q, %v, %v", peek.Filename(), ok, err)
	}
	if _, err := it.PopContext(); err != nil {
		t.Fatal(err)
	}
	if _, err := it.PopContext(); !errors.Is(err, ErrContextUnderflow) {
		t.Errorf("second pop err = %v, want ErrContextUnderflow", err)
	}
	if _, ok, _ := it.PeekContext(); ok {
		t.Error("peek on empty stack reported a context")
	}
}

func TestEvalUsesCurrentFile(t *testing.T) {
	it, eng := newFake(t)
	if _, err := it.EvalString("1"); err != nil {
		t.Fatal(err)
	}
	if err := it.WriteFile("main.rb", []byte("2")); err != nil {
		t.Fatal(err)
	}
	if _, err := it.EvalFile("main.rb"); err != nil {
		t.Fatal(err)
	}
	if len(eng.files) != 2 {
		t.Fatalf("evaluations = %d, want 2", len(eng.files))
	}
	if string(eng.files[0]) != EvalSentinel {
		t.Errorf("eval filename = %q, want %q", eng.files[0], EvalSentinel)
	}
	// EvalFile reports the path as given, not normalized.
	if string(eng.files[1]) != "main.rb" {
		t.Errorf("eval_file filename = %q, want main.rb", eng.files[1])
	}
	if got := string(it.CurrentFile()); got != EvalSentinel {
		t.Errorf("current file after EvalFile = %q", got)
	}
}

func TestEvalFileErrors(t *testing.T) {
	it, _ := newFake(t)
	tests := []struct {
		path    string
		kind    Kind
		message string
	}{
		{"missing.rb", KindLoad, "ruby: file not found in virtual file system -- missing.rb"},
		{"not/valid/utf8/\xff.rb", KindLoad, "ruby: file not found in virtual file system -- not/valid/utf8/\xff.rb"},
		{"", KindArgument, "path name is empty"},
		{"a\x00b.rb", KindArgument, "path name contains null byte"},
	}
	for _, tc := range tests {
		_, err := it.EvalFile(tc.path)
		var exc *Exception
		if !errors.As(err, &exc) {
			t.Errorf("EvalFile(%q) err = %v, want exception", tc.path, err)
			continue
		}
		if exc.Kind != tc.kind || string(exc.Message) != tc.message {
			t.Errorf("EvalFile(%q) = %v %q, want %v %q", tc.path, exc.Kind, exc.Message, tc.kind, tc.message)
		}
	}
	st, _ := it.st()
	if st.contexts.Len() != 0 {
		t.Errorf("context depth after failures = %d, want 0", st.contexts.Len())
	}
}

func TestEngineErrorsRestoreContext(t *testing.T) {
	it, eng := newFake(t)
	eng.fn = func(Host, []byte, []byte) (Value, error) {
		return nil, NewRaised("", "boom")
	}
	if err := it.WriteFile("/boom.rb", nil); err != nil {
		t.Fatal(err)
	}
	_, err := it.EvalFile("/boom.rb")
	var exc *Exception
	if !errors.As(err, &exc) || exc.Name() != "RuntimeError" || string(exc.Message) != "boom" {
		t.Fatalf("err = %v, want RuntimeError: boom", err)
	}
	if got := string(it.CurrentFile()); got != EvalSentinel {
		t.Errorf("current file after failure = %q", got)
	}
}

func TestForeignEngineErrorBecomesRuntimeError(t *testing.T) {
	it, eng := newFake(t)
	cause := errors.New("engine exploded")
	eng.fn = func(Host, []byte, []byte) (Value, error) { return nil, cause }
	_, err := it.EvalString("x")
	var exc *Exception
	if !errors.As(err, &exc) || exc.Kind != KindRaised || exc.Name() != "RuntimeError" {
		t.Fatalf("err = %v, want RuntimeError", err)
	}
	if !errors.Is(err, cause) {
		t.Error("RuntimeError does not wrap the engine error")
	}
}

func TestUnreachableValueIsFatal(t *testing.T) {
	it, eng := newFake(t)
	eng.fn = func(Host, []byte, []byte) (Value, error) {
		return fakeValue{unreachable: true}, nil
	}
	v, err := it.EvalString("x")
	if v != nil {
		t.Errorf("value = %v, want nil", v)
	}
	if kind, _ := KindOf(err); kind != KindFatal {
		t.Fatalf("err = %v, want fatal", err)
	}
	var exc *Exception
	errors.As(err, &exc)
	if exc.Name() != "fatal" {
		t.Errorf("class = %q, want fatal", exc.Name())
	}
}

func TestEnginePanicIsFatal(t *testing.T) {
	it, eng := newFake(t)
	eng.fn = func(Host, []byte, []byte) (Value, error) { panic("bad state") }
	if err := it.WriteFile("p.rb", nil); err != nil {
		t.Fatal(err)
	}
	_, err := it.EvalFile("p.rb")
	if kind, _ := KindOf(err); kind != KindFatal {
		t.Fatalf("err = %v, want fatal", err)
	}
	if got := string(it.CurrentFile()); got != EvalSentinel {
		t.Errorf("current file after panic = %q", got)
	}
}

func TestClosedInterpreter(t *testing.T) {
	it := New(&fakeEngine{}, WithOutput(NullOutput{}))
	it.Close()
	it.Close()

	if _, err := it.EvalString("1"); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Eval err = %v", err)
	}
	if _, err := it.EvalFile("a.rb"); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("EvalFile err = %v", err)
	}
	if _, err := it.RequireSource("a"); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("RequireSource err = %v", err)
	}
	if _, err := it.LoadSource("a"); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("LoadSource err = %v", err)
	}
	if err := it.DefSourceFile("a.rb", nil); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("DefSourceFile err = %v", err)
	}
	if err := it.Puts([]byte("x")); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Puts err = %v", err)
	}
	if _, err := it.PopContext(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("PopContext err = %v", err)
	}
	if got := string(it.CurrentFile()); got != EvalSentinel {
		t.Errorf("current file = %q", got)
	}

	var nilInterp *Interpreter
	if _, err := nilInterp.EvalString("1"); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("nil interpreter err = %v", err)
	}
}

func TestMissingEngine(t *testing.T) {
	it := New(nil)
	if _, err := it.EvalString("1"); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("err = %v, want ErrNotInitialized", err)
	}
}

func TestPutsAndPrint(t *testing.T) {
	out := &CapturedOutput{}
	it := New(&fakeEngine{}, WithOutput(out))
	defer it.Close()
	if err := it.Print([]byte("a")); err != nil {
		t.Fatal(err)
	}
	if err := it.Puts([]byte("b\xff")); err != nil {
		t.Fatal(err)
	}
	if got := out.Stdout.String(); got != "ab\xff\n" {
		t.Errorf("stdout = %q", got)
	}
	if out.Stderr.Len() != 0 {
		t.Errorf("stderr = %q", out.Stderr.String())
	}
}

func TestOutputFailureIsIOError(t *testing.T) {
	cause := errors.New("broken pipe")
	it := New(&fakeEngine{}, WithOutput(failingOutput{err: cause}))
	defer it.Close()
	err := it.Puts([]byte("x"))
	if kind, _ := KindOf(err); kind != KindIO {
		t.Fatalf("err = %v, want io", err)
	}
	if !errors.Is(err, cause) {
		t.Error("IOError does not wrap the output error")
	}
}

func TestDefSourceFileRejectsNUL(t *testing.T) {
	it, _ := newFake(t)
	err := it.DefSourceFile("a\x00.rb", []byte("1"))
	if kind, _ := KindOf(err); kind != KindArgument {
		t.Errorf("DefSourceFile err = %v, want argument", err)
	}
	err = it.DefFileForType("a\x00.rb", HookFunc(func(*Interpreter) error { return nil }))
	if kind, _ := KindOf(err); kind != KindArgument {
		t.Errorf("DefFileForType err = %v, want argument", err)
	}
}

func TestOptions(t *testing.T) {
	it, _ := newFake(t, WithVirtualRoot("/srv/app"), WithSourceExtension("mag"))
	if it.SourceExtension() != "mag" {
		t.Errorf("extension = %q", it.SourceExtension())
	}
	if err := it.DefSourceFile("main.mag", []byte("1")); err != nil {
		t.Fatal(err)
	}
	resolved, ok, err := it.ResolveSourcePath("main")
	if err != nil || !ok || resolved != "/srv/app/main.mag" {
		t.Errorf("resolve = %q, %v, %v", resolved, ok, err)
	}

	var closed *Interpreter
	if closed.SourceExtension() != DefaultSourceExtension {
		t.Errorf("nil interpreter extension = %q", closed.SourceExtension())
	}

	other, _ := newFake(t, WithVirtualRoot("/srv/app"))
	if it.ID() == other.ID() {
		t.Error("interpreters share an ID")
	}
}

func TestSeedFromSnapshotKeepsInterpretersApart(t *testing.T) {
	src, _ := newFake(t)
	if err := src.DefSourceFile("counter.rb", []byte("count")); err != nil {
		t.Fatal(err)
	}
	srcFS, err := src.FileSystem()
	if err != nil {
		t.Fatal(err)
	}

	dst, _ := newFake(t)
	dstFS, err := dst.FileSystem()
	if err != nil {
		t.Fatal(err)
	}
	if err := dstFS.Restore(srcFS.Snapshot()); err != nil {
		t.Fatal(err)
	}

	if r, err := src.RequireSource("counter"); err != nil || r != RequireSuccess {
		t.Fatalf("src require = %v, %v", r, err)
	}
	if r, err := dst.RequireSource("counter"); err != nil || r != RequireSuccess {
		t.Errorf("dst require = %v, %v, want success", r, err)
	}
	if err := dst.WriteFile("only_dst.rb", []byte("1")); err != nil {
		t.Fatal(err)
	}
	if ok, _ := src.SourceIsFile("only_dst"); ok {
		t.Error("write to one interpreter is visible in the other")
	}
}

func TestSourceHookEvaluatesUnderItsFilename(t *testing.T) {
	it, eng := newFake(t)
	installed := false
	hook := SourceHook{
		Native:   func(*Interpreter) error { installed = true; return nil },
		Filename: "/virtual_root/src/lib/ext/json.rb",
		Source:   []byte("bundled"),
	}
	if err := it.DefFileForType("json.rb", hook); err != nil {
		t.Fatal(err)
	}
	got, err := it.RequireSource("json")
	if err != nil {
		t.Fatal(err)
	}
	if got != RequireSuccess {
		t.Errorf("require = %v, want success", got)
	}
	if !installed {
		t.Error("native installer not run")
	}
	// bundled source, then the hook-only (empty) entry
	if len(eng.files) != 2 {
		t.Fatalf("evaluations = %d, want 2", len(eng.files))
	}
	if string(eng.files[0]) != "/virtual_root/src/lib/ext/json.rb" {
		t.Errorf("bundled source ran as %q", eng.files[0])
	}
	if string(eng.files[1]) != "/virtual_root/src/lib/json.rb" {
		t.Errorf("entry ran as %q", eng.files[1])
	}
}

func TestHookErrorAbortsRequire(t *testing.T) {
	it, eng := newFake(t)
	cause := errors.New("install failed")
	if err := it.DefFileForType("bad.rb", HookFunc(func(*Interpreter) error { return cause })); err != nil {
		t.Fatal(err)
	}
	if _, err := it.RequireSource("bad.rb"); !errors.Is(err, cause) {
		t.Fatalf("err = %v, want install error", err)
	}
	if len(eng.files) != 0 {
		t.Error("source evaluated after hook failure")
	}
	if required, _ := it.state.vfs.IsRequired("bad.rb"); required {
		t.Error("failed require marked the file required")
	}
}

func TestExceptionFormatting(t *testing.T) {
	exc := NewLoadError("cannot load such file -- x")
	if exc.Error() != "LoadError: cannot load such file -- x" {
		t.Errorf("Error() = %q", exc.Error())
	}
	if _, ok := KindOf(errors.New("plain")); ok {
		t.Error("KindOf reported a kind for a plain error")
	}
	for k := KindArgument; k <= KindIO; k++ {
		if k.String() == "unknown" {
			t.Errorf("kind %d has no name", k)
		}
	}
	if NewRaised("", "x").Name() != "RuntimeError" {
		t.Error("default raised class")
	}
}

func TestDefFileForTypeRejectsNilHook(t *testing.T) {
	it, _ := newFake(t)
	var fn HookFunc
	for name, hook := range map[string]ExtensionHook{"nil interface": nil, "nil func": fn} {
		t.Run(name, func(t *testing.T) {
			err := it.DefFileForType("ext.rb", hook)
			if kind, _ := KindOf(err); kind != KindArgument {
				t.Fatalf("err = %v, want argument", err)
			}
			if ok, _ := it.SourceIsFile("ext.rb"); ok {
				t.Error("nil hook was registered")
			}
			// requiring must not reach a nil Install
			if _, err := it.RequireSource("ext"); err == nil {
				t.Error("require of unregistered hook succeeded")
			}
		})
	}
}
