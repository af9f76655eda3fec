package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/chazu/loadpath/interp"
	"github.com/chazu/loadpath/vfs"
)

// LoaderServiceName is the fully-qualified name of the loader service.
const LoaderServiceName = "loadpath.v1.LoaderService"

// Loader service procedures.
const (
	EvalProcedure              = "/" + LoaderServiceName + "/Eval"
	EvalFileProcedure          = "/" + LoaderServiceName + "/EvalFile"
	LoadProcedure              = "/" + LoaderServiceName + "/Load"
	RequireProcedure           = "/" + LoaderServiceName + "/Require"
	ResolveSourcePathProcedure = "/" + LoaderServiceName + "/ResolveSourcePath"
	SnapshotProcedure          = "/" + LoaderServiceName + "/Snapshot"
	RestoreProcedure           = "/" + LoaderServiceName + "/Restore"
)

// LoaderService exposes evaluation and source loading over Connect, gRPC
// and gRPC-Web. Code and paths travel as bytes since neither need be
// valid UTF-8.
type LoaderService struct {
	worker   *Worker
	sessions *SessionStore
}

// NewLoaderService creates a LoaderService.
func NewLoaderService(worker *Worker, sessions *SessionStore) *LoaderService {
	return &LoaderService{
		worker:   worker,
		sessions: sessions,
	}
}

// run executes fn against the request's session on the worker.
func (s *LoaderService) run(header http.Header, fn func(it *interp.Interpreter) (interface{}, error)) (interface{}, error) {
	id := header.Get(SessionHeader)
	session, ok := s.sessions.Get(id)
	if !ok {
		return nil, requireSession(id)
	}
	result, err := s.worker.Do(func() (interface{}, error) {
		return fn(session.Interp)
	})
	if err != nil {
		var cerr *connect.Error
		if errors.As(err, &cerr) {
			return nil, cerr
		}
		return nil, toConnectError(err)
	}
	return result, nil
}

// Eval evaluates code in the session's current context and returns the
// inspected result.
func (s *LoaderService) Eval(
	ctx context.Context,
	req *connect.Request[wrapperspb.BytesValue],
) (*connect.Response[wrapperspb.BytesValue], error) {
	code := req.Msg.GetValue()
	result, err := s.run(req.Header(), func(it *interp.Interpreter) (interface{}, error) {
		v, err := it.Eval(code)
		if err != nil {
			return nil, err
		}
		return inspect(v), nil
	})
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(wrapperspb.Bytes(result.([]byte))), nil
}

// EvalFile evaluates a virtual file.
func (s *LoaderService) EvalFile(
	ctx context.Context,
	req *connect.Request[wrapperspb.BytesValue],
) (*connect.Response[wrapperspb.BytesValue], error) {
	path := string(req.Msg.GetValue())
	result, err := s.run(req.Header(), func(it *interp.Interpreter) (interface{}, error) {
		v, err := it.EvalFile(path)
		if err != nil {
			return nil, err
		}
		return inspect(v), nil
	})
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(wrapperspb.Bytes(result.([]byte))), nil
}

// Load evaluates a virtual file unconditionally.
func (s *LoaderService) Load(
	ctx context.Context,
	req *connect.Request[wrapperspb.BytesValue],
) (*connect.Response[wrapperspb.StringValue], error) {
	path := string(req.Msg.GetValue())
	result, err := s.run(req.Header(), func(it *interp.Interpreter) (interface{}, error) {
		return it.LoadSource(path)
	})
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(wrapperspb.String(result.(interp.Loaded).String())), nil
}

// Require evaluates a virtual file once per resolved path.
func (s *LoaderService) Require(
	ctx context.Context,
	req *connect.Request[wrapperspb.BytesValue],
) (*connect.Response[wrapperspb.StringValue], error) {
	path := string(req.Msg.GetValue())
	result, err := s.run(req.Header(), func(it *interp.Interpreter) (interface{}, error) {
		return it.RequireSource(path)
	})
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(wrapperspb.String(result.(interp.Required).String())), nil
}

// ResolveSourcePath returns the canonical path of a source file.
func (s *LoaderService) ResolveSourcePath(
	ctx context.Context,
	req *connect.Request[wrapperspb.BytesValue],
) (*connect.Response[wrapperspb.BytesValue], error) {
	path := string(req.Msg.GetValue())
	result, err := s.run(req.Header(), func(it *interp.Interpreter) (interface{}, error) {
		resolved, ok, err := it.ResolveSourcePath(path)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("no source file at %q", path))
		}
		return resolved, nil
	})
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(wrapperspb.Bytes([]byte(result.(string)))), nil
}

// Snapshot returns the session's virtual file system as CBOR.
func (s *LoaderService) Snapshot(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[wrapperspb.BytesValue], error) {
	result, err := s.run(req.Header(), func(it *interp.Interpreter) (interface{}, error) {
		fs, err := it.FileSystem()
		if err != nil {
			return nil, err
		}
		return vfs.MarshalSnapshot(fs.Snapshot())
	})
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(wrapperspb.Bytes(result.([]byte))), nil
}

// Restore merges a CBOR snapshot into the session's virtual file system.
func (s *LoaderService) Restore(
	ctx context.Context,
	req *connect.Request[wrapperspb.BytesValue],
) (*connect.Response[emptypb.Empty], error) {
	snap, err := vfs.UnmarshalSnapshot(req.Msg.GetValue())
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	_, err = s.run(req.Header(), func(it *interp.Interpreter) (interface{}, error) {
		fs, err := it.FileSystem()
		if err != nil {
			return nil, err
		}
		if err := fs.Restore(snap); err != nil {
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&emptypb.Empty{}), nil
}

func inspect(v interp.Value) []byte {
	if v == nil {
		return []byte("nil")
	}
	return v.Inspect()
}
