package errors

import (
	"context"
	"errors"
	"strings"

	"github.com/rpcwire/rpcwire/internal/client"
	"github.com/rpcwire/rpcwire/internal/domain/rpc"
)

type ErrorKind string

const (
	ErrorKindAuth     ErrorKind = "auth"
	ErrorKindOffline  ErrorKind = "offline"
	ErrorKindHTTP     ErrorKind = "http"
	ErrorKindRPC      ErrorKind = "rpc"
	ErrorKindProtocol ErrorKind = "protocol"
	ErrorKindNotFound ErrorKind = "not-found"
	ErrorKindOther    ErrorKind = "other"
)

type ClassifiedError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Hint    string    `json:"hint,omitempty"` // User-friendly suggestion
	Method  string    `json:"method,omitempty"`
	Code    int       `json:"code,omitempty"`
	Status  int       `json:"status,omitempty"`
	Data    any       `json:"data,omitempty"`
	Raw     error     `json:"-"`
}

func (e ClassifiedError) Error() string {
	return e.Message
}

func (e ClassifiedError) Unwrap() error {
	return e.Raw
}

func Classify(err error) ClassifiedError {
	if err == nil {
		return ClassifiedError{}
	}

	var ce *client.Error
	if !errors.As(err, &ce) {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return ClassifiedError{
				Kind:    ErrorKindOffline,
				Message: err.Error(),
				Hint:    "The request was cancelled or timed out. Raise --timeout if the server is slow.",
				Raw:     err,
			}
		}
		return ClassifiedError{
			Kind:    ErrorKindOther,
			Message: err.Error(),
			Hint:    "An unexpected error occurred.",
			Raw:     err,
		}
	}

	classified := ClassifiedError{
		Message: err.Error(),
		Method:  ce.Method,
		Raw:     err,
	}

	switch ce.Kind {
	case client.KindConnection:
		classified.Kind = ErrorKindOffline
		classified.Hint = "Is the server reachable? Check the profile url or pass --url."
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(strings.ToLower(err.Error()), "timeout") {
			classified.Hint = "The request timed out. Raise --timeout if the server is slow."
		}
	case client.KindServer:
		classified.Kind = ErrorKindHTTP
		classified.Status = ce.Status
		classified.Hint = "The server answered with an HTTP error. Check the server logs."
		if ce.Status == 404 {
			classified.Kind = ErrorKindNotFound
			classified.Hint = "The endpoint was not found. Check the profile url."
		}
	case client.KindRPC:
		classified.Code = ce.Code
		if len(ce.Data) > 0 {
			classified.Data = string(ce.Data)
		}
		switch ce.Code {
		case rpc.Unauthorized:
			classified.Kind = ErrorKindAuth
			classified.Hint = "Session rejected. Run 'rpcwire token set <token>' or configure oauth in the profile."
		case rpc.ParseError:
			classified.Kind = ErrorKindProtocol
			classified.Hint = "The server reply is not a valid JSON-RPC 2.0 response."
		case rpc.MethodNotFound:
			classified.Kind = ErrorKindNotFound
			classified.Hint = "The server does not know this method. Check its name."
		default:
			classified.Kind = ErrorKindRPC
			classified.Hint = "The server rejected the call; see the error code and data."
		}
	default:
		classified.Kind = ErrorKindOther
	}
	return classified
}
