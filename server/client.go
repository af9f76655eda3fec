package server

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/chazu/loadpath/interp"
)

// Client calls a loader server over gRPC. Failed calls that carry an
// exception class are returned as *interp.Exception.
type Client struct {
	conn    *grpc.ClientConn
	target  string
	session string

	mu     sync.Mutex
	closed bool
}

// Dial creates a client for the server at target ("host:port"). The
// connection is established lazily.
func Dial(target string) (*Client, error) {
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connection failed: %w", err)
	}
	return &Client{conn: conn, target: target}, nil
}

// WithSession returns a client sharing c's connection whose calls run in
// the given session.
func (c *Client) WithSession(id string) *Client {
	return &Client{conn: c.conn, target: c.target, session: id}
}

// Close closes the connection. Clients derived with WithSession share it.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

func (c *Client) invoke(ctx context.Context, method string, req, resp proto.Message) error {
	if c.session != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, strings.ToLower(SessionHeader), c.session)
	}
	var header, trailer metadata.MD
	err := c.conn.Invoke(ctx, method, req, resp, grpc.Header(&header), grpc.Trailer(&trailer))
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	class := firstValue(trailer, header, ExceptionClassHeader)
	if class == "" {
		return err
	}
	return exceptionFromRemote(class, st.Message(), st.Code() == codes.Aborted, err)
}

func firstValue(trailer, header metadata.MD, key string) string {
	if v := trailer.Get(key); len(v) > 0 {
		return v[0]
	}
	if v := header.Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}

// Eval evaluates code and returns the inspected result.
func (c *Client) Eval(ctx context.Context, code []byte) ([]byte, error) {
	resp := &wrapperspb.BytesValue{}
	if err := c.invoke(ctx, EvalProcedure, wrapperspb.Bytes(code), resp); err != nil {
		return nil, err
	}
	return resp.GetValue(), nil
}

// EvalFile evaluates a virtual file and returns the inspected result.
func (c *Client) EvalFile(ctx context.Context, path string) ([]byte, error) {
	resp := &wrapperspb.BytesValue{}
	if err := c.invoke(ctx, EvalFileProcedure, wrapperspb.Bytes([]byte(path)), resp); err != nil {
		return nil, err
	}
	return resp.GetValue(), nil
}

// Load evaluates a virtual file unconditionally.
func (c *Client) Load(ctx context.Context, path string) (interp.Loaded, error) {
	resp := &wrapperspb.StringValue{}
	if err := c.invoke(ctx, LoadProcedure, wrapperspb.Bytes([]byte(path)), resp); err != nil {
		return interp.LoadSuccess, err
	}
	return interp.LoadSuccess, nil
}

// Require evaluates a virtual file unless it is already required.
func (c *Client) Require(ctx context.Context, path string) (interp.Required, error) {
	resp := &wrapperspb.StringValue{}
	if err := c.invoke(ctx, RequireProcedure, wrapperspb.Bytes([]byte(path)), resp); err != nil {
		return interp.RequireSuccess, err
	}
	if resp.GetValue() == interp.AlreadyRequired.String() {
		return interp.AlreadyRequired, nil
	}
	return interp.RequireSuccess, nil
}

// ResolveSourcePath returns the canonical path of a source file. ok is
// false when there is none.
func (c *Client) ResolveSourcePath(ctx context.Context, path string) (string, bool, error) {
	resp := &wrapperspb.BytesValue{}
	err := c.invoke(ctx, ResolveSourcePathProcedure, wrapperspb.Bytes([]byte(path)), resp)
	if status.Code(err) == codes.NotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(resp.GetValue()), true, nil
}

// Snapshot returns the server's virtual file system as CBOR.
func (c *Client) Snapshot(ctx context.Context) ([]byte, error) {
	resp := &wrapperspb.BytesValue{}
	if err := c.invoke(ctx, SnapshotProcedure, &emptypb.Empty{}, resp); err != nil {
		return nil, err
	}
	return resp.GetValue(), nil
}

// Restore merges a CBOR snapshot into the server's virtual file system.
func (c *Client) Restore(ctx context.Context, snapshot []byte) error {
	return c.invoke(ctx, RestoreProcedure, wrapperspb.Bytes(snapshot), &emptypb.Empty{})
}

// CreateSession creates a session and returns its ID.
func (c *Client) CreateSession(ctx context.Context, name string) (string, error) {
	resp := &wrapperspb.StringValue{}
	if err := c.invoke(ctx, CreateSessionProcedure, wrapperspb.String(name), resp); err != nil {
		return "", err
	}
	return resp.GetValue(), nil
}

// DestroySession closes a session.
func (c *Client) DestroySession(ctx context.Context, id string) error {
	return c.invoke(ctx, DestroySessionProcedure, wrapperspb.String(id), &emptypb.Empty{})
}
