// Package server exposes interpreters over Connect, gRPC and gRPC-Web on
// a single HTTP handler.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/tliron/commonlog"

	"github.com/chazu/loadpath/interp"
)

var log = commonlog.GetLogger("loadpath.server")

// LoaderServer serves the loader and session services for an
// interpreter.
type LoaderServer struct {
	worker   *Worker
	sessions *SessionStore
	mux      *http.ServeMux
	http     *http.Server
}

// ServerOption configures a LoaderServer.
type ServerOption func(*serverConfig)

type serverConfig struct {
	sessionFactory func() *interp.Interpreter
}

// WithSessionFactory enables CreateSession; fn builds the interpreter for
// each new session.
func WithSessionFactory(fn func() *interp.Interpreter) ServerOption {
	return func(c *serverConfig) { c.sessionFactory = fn }
}

// New creates a LoaderServer whose default session is it.
func New(it *interp.Interpreter, opts ...ServerOption) *LoaderServer {
	cfg := &serverConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	worker := NewWorker()
	sessions := NewSessionStore(it, cfg.sessionFactory)

	s := &LoaderServer{
		worker:   worker,
		sessions: sessions,
		mux:      http.NewServeMux(),
	}
	s.http = &http.Server{
		Handler:           s.mux,
		Protocols:         Protocols(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	loader := NewLoaderService(worker, sessions)
	s.mux.Handle(EvalProcedure, connect.NewUnaryHandler(EvalProcedure, loader.Eval))
	s.mux.Handle(EvalFileProcedure, connect.NewUnaryHandler(EvalFileProcedure, loader.EvalFile))
	s.mux.Handle(LoadProcedure, connect.NewUnaryHandler(LoadProcedure, loader.Load))
	s.mux.Handle(RequireProcedure, connect.NewUnaryHandler(RequireProcedure, loader.Require))
	s.mux.Handle(ResolveSourcePathProcedure, connect.NewUnaryHandler(ResolveSourcePathProcedure, loader.ResolveSourcePath))
	s.mux.Handle(SnapshotProcedure, connect.NewUnaryHandler(SnapshotProcedure, loader.Snapshot))
	s.mux.Handle(RestoreProcedure, connect.NewUnaryHandler(RestoreProcedure, loader.Restore))

	session := NewSessionService(worker, sessions)
	s.mux.Handle(CreateSessionProcedure, connect.NewUnaryHandler(CreateSessionProcedure, session.CreateSession))
	s.mux.Handle(DestroySessionProcedure, connect.NewUnaryHandler(DestroySessionProcedure, session.DestroySession))

	return s
}

// Handler returns the HTTP handler serving every procedure.
func (s *LoaderServer) Handler() http.Handler {
	return s.mux
}

// Sessions returns the session store.
func (s *LoaderServer) Sessions() *SessionStore {
	return s.sessions
}

// Protocols returns the HTTP protocols the server speaks: HTTP/1.1 for
// Connect and unencrypted HTTP/2 so gRPC clients can connect directly.
func Protocols() *http.Protocols {
	var p http.Protocols
	p.SetHTTP1(true)
	p.SetUnencryptedHTTP2(true)
	return &p
}

// ListenAndServe starts the HTTP server on the given address.
// The address should be in the form "host:port" or ":port".
func (s *LoaderServer) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown is called.
func (s *LoaderServer) Serve(ln net.Listener) error {
	log.Noticef("loader service listening on %s", ln.Addr())
	log.Infof("  Connect (HTTP/JSON): http://%s%s", ln.Addr(), EvalProcedure)
	log.Infof("  gRPC (binary):       grpc://%s", ln.Addr())
	if err := s.http.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections, waits for in-flight calls and
// stops the worker.
func (s *LoaderServer) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	s.Stop()
	return err
}

// Stop shuts down the worker. Calls made afterwards fail with
// Unavailable.
func (s *LoaderServer) Stop() {
	s.worker.Stop()
}
