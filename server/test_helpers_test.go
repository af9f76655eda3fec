package server

import (
	"context"
	"errors"
	"testing"

	"connectrpc.com/connect"

	"github.com/chazu/loadpath/interp"
	"github.com/chazu/loadpath/script"
)

// ---------------------------------------------------------------------------
// Shared test infrastructure for server package tests.
// ---------------------------------------------------------------------------

// testEnv bundles an interpreter with its worker, store and services.
type testEnv struct {
	Interp   *interp.Interpreter
	Engine   *script.Engine
	Worker   *Worker
	Sessions *SessionStore
	Loader   *LoaderService
	Session  *SessionService
}

func newTestInterp() *interp.Interpreter {
	return interp.New(script.New(), interp.WithOutput(interp.NullOutput{}))
}

// newTestEnv creates a fresh interpreter, worker and services. Sessions
// are enabled. The environment is stopped when the test ends.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	eng := script.New()
	it := interp.New(eng, interp.WithOutput(interp.NullOutput{}))
	w := NewWorker()
	s := NewSessionStore(it, newTestInterp)
	env := &testEnv{
		Interp:   it,
		Engine:   eng,
		Worker:   w,
		Sessions: s,
		Loader:   NewLoaderService(w, s),
		Session:  NewSessionService(w, s),
	}
	t.Cleanup(func() {
		w.Stop()
		it.Close()
	})
	return env
}

func (e *testEnv) define(t *testing.T, path, src string) {
	t.Helper()
	if err := e.Interp.DefSourceFile(path, []byte(src)); err != nil {
		t.Fatal(err)
	}
}

// ---------------------------------------------------------------------------
// Request builder helpers.
// ---------------------------------------------------------------------------

func connectReq[T any](msg *T) *connect.Request[T] {
	return connect.NewRequest(msg)
}

func bg() context.Context {
	return context.Background()
}

// wantCode asserts err is a Connect error with code and, when class is
// non-empty, the given exception class.
func wantCode(t *testing.T, err error, code connect.Code, class string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", code)
	}
	if got := connect.CodeOf(err); got != code {
		t.Errorf("code = %v, want %v (err: %v)", got, code, err)
	}
	if class == "" {
		return
	}
	var cerr *connect.Error
	if !errors.As(err, &cerr) {
		t.Fatalf("err %v is not a connect error", err)
	}
	if got := cerr.Meta().Get(ExceptionClassHeader); got != class {
		t.Errorf("exception class = %q, want %q", got, class)
	}
}
