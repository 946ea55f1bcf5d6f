package client

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rpcwire/rpcwire/internal/domain/rpc"
)

// Kind discriminates the three failure classes a caller can observe.
type Kind string

const (
	KindConnection Kind = "connection"
	KindServer     Kind = "server"
	KindRPC        Kind = "rpc"
)

// Error is the single error type returned by Client. Which fields are set
// depends on Kind: Status for KindServer, Code/Data for KindRPC, Err for
// KindConnection.
type Error struct {
	Kind    Kind
	Method  string
	Params  any
	Status  int
	Code    int
	Message string
	Data    json.RawMessage
	Headers map[string]string
	Err     error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindConnection:
		if e.Err != nil {
			return "api connection error: " + e.Err.Error()
		}
		return "api connection error"
	default:
		return e.Message
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsAuthFailure reports whether the server rejected the session token.
func (e *Error) IsAuthFailure() bool {
	return e.Kind == KindRPC && e.Code == rpc.Unauthorized
}

// KindOf returns the kind of err if it is, or wraps, an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

func connectionError(method string, params any, cause error) *Error {
	return &Error{
		Kind:   KindConnection,
		Method: method,
		Params: params,
		Err:    cause,
	}
}

func serverError(method string, params any, status int, headers map[string]string) *Error {
	return &Error{
		Kind:    KindServer,
		Method:  method,
		Params:  params,
		Status:  status,
		Message: fmt.Sprintf("Method %q returned status %d", method, status),
		Headers: headers,
	}
}

func rpcError(method string, params any, obj *rpc.ErrorObject, headers map[string]string) *Error {
	message := obj.Message
	if message == "" {
		message = fmt.Sprintf("Method %q returned code: %d", method, obj.Code)
	}
	return &Error{
		Kind:    KindRPC,
		Method:  method,
		Params:  params,
		Code:    obj.Code,
		Message: message,
		Data:    obj.Data,
		Headers: headers,
	}
}

func parseError(method string, params any, message string, body []byte, headers map[string]string) *Error {
	return rpcError(method, params, rpc.NewError(rpc.ParseError, message, string(body)), headers)
}
