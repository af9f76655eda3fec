package server

import (
	"context"
	"errors"
	"fmt"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// SessionServiceName is the fully-qualified name of the session service.
const SessionServiceName = "loadpath.v1.SessionService"

// Session service procedures.
const (
	CreateSessionProcedure  = "/" + SessionServiceName + "/CreateSession"
	DestroySessionProcedure = "/" + SessionServiceName + "/DestroySession"
)

// SessionService creates and destroys interpreter sessions.
type SessionService struct {
	worker   *Worker
	sessions *SessionStore
}

// NewSessionService creates a SessionService.
func NewSessionService(worker *Worker, sessions *SessionStore) *SessionService {
	return &SessionService{
		worker:   worker,
		sessions: sessions,
	}
}

// CreateSession creates a session with a fresh interpreter and returns
// its ID.
func (s *SessionService) CreateSession(
	ctx context.Context,
	req *connect.Request[wrapperspb.StringValue],
) (*connect.Response[wrapperspb.StringValue], error) {
	session, err := s.sessions.Create(req.Msg.GetValue())
	if err != nil {
		if errors.Is(err, ErrNoSessionFactory) {
			return nil, connect.NewError(connect.CodeUnimplemented, err)
		}
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(wrapperspb.String(session.ID)), nil
}

// DestroySession closes a session's interpreter.
func (s *SessionService) DestroySession(
	ctx context.Context,
	req *connect.Request[wrapperspb.StringValue],
) (*connect.Response[emptypb.Empty], error) {
	id := req.Msg.GetValue()
	if id == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("session id is required"))
	}
	if id == s.sessions.Default().ID {
		return nil, connect.NewError(connect.CodeFailedPrecondition, fmt.Errorf("the default session cannot be destroyed"))
	}
	session, ok := s.sessions.Remove(id)
	if !ok {
		return nil, requireSession(id)
	}

	// Interpreters are only touched on the worker.
	if _, err := s.worker.Do(func() (interface{}, error) {
		session.Interp.Close()
		return nil, nil
	}); err != nil {
		return nil, toConnectError(err)
	}
	log.Debugf("destroyed session %s", id)
	return connect.NewResponse(&emptypb.Empty{}), nil
}
