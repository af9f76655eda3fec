package server

import (
	"errors"
	"fmt"

	"connectrpc.com/connect"

	"github.com/chazu/loadpath/interp"
)

// ExceptionClassHeader carries the exception class of a failed call.
const ExceptionClassHeader = "Loadpath-Exception-Class"

// codeForKind maps exception kinds onto Connect codes.
var codeForKind = map[interp.Kind]connect.Code{
	interp.KindArgument: connect.CodeInvalidArgument,
	interp.KindSyntax:   connect.CodeInvalidArgument,
	interp.KindLoad:     connect.CodeNotFound,
	interp.KindRaised:   connect.CodeAborted,
	interp.KindFatal:    connect.CodeInternal,
	interp.KindIO:       connect.CodeUnavailable,
}

// toConnectError converts an interpreter error into a Connect error.
func toConnectError(err error) *connect.Error {
	var exc *interp.Exception
	switch {
	case errors.As(err, &exc):
		code, ok := codeForKind[exc.Kind]
		if !ok {
			code = connect.CodeUnknown
		}
		cerr := connect.NewError(code, exc)
		cerr.Meta().Set(ExceptionClassHeader, exc.Name())
		return cerr
	case errors.Is(err, interp.ErrNotInitialized):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, ErrStopped):
		return connect.NewError(connect.CodeUnavailable, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

// kindForClass recovers the exception kind from a class name. Aborted
// calls were raised by executing code whatever the class.
func kindForClass(class string, aborted bool) interp.Kind {
	if aborted {
		return interp.KindRaised
	}
	switch class {
	case "ArgumentError":
		return interp.KindArgument
	case "SyntaxError":
		return interp.KindSyntax
	case "LoadError":
		return interp.KindLoad
	case "fatal":
		return interp.KindFatal
	case "IOError":
		return interp.KindIO
	default:
		return interp.KindRaised
	}
}

// exceptionFromRemote rebuilds an Exception from a failed call's class
// and message. The message is "<Class>: <message>" as produced by
// Exception.Error.
func exceptionFromRemote(class, message string, aborted bool, cause error) *interp.Exception {
	prefix := class + ": "
	if len(message) >= len(prefix) && message[:len(prefix)] == prefix {
		message = message[len(prefix):]
	}
	return &interp.Exception{
		Kind:    kindForClass(class, aborted),
		Class:   class,
		Message: []byte(message),
		Err:     cause,
	}
}

func requireSession(id string) error {
	return connect.NewError(connect.CodeNotFound, fmt.Errorf("session %q not found", id))
}
