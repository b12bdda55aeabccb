package rpc

import "fmt"

// NetworkError reports that the request never produced a usable HTTP
// response: a connection failure, a timeout or a non-2xx status.
type NetworkError struct {
	Method     string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("rpc %s: HTTP %d", e.Method, e.StatusCode)
	}
	return fmt.Sprintf("rpc %s: %v", e.Method, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ProtocolError reports a response body that is not a single JSON-RPC 2.0
// envelope carrying either a result or an error.
type ProtocolError struct {
	Method string
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rpc %s: %s: %v", e.Method, e.Reason, e.Err)
	}
	return fmt.Sprintf("rpc %s: %s", e.Method, e.Reason)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// RemoteError is a JSON-RPC error object returned by the node.
type RemoteError struct {
	Method  string
	Code    int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("rpc %s: error %d: %s", e.Method, e.Code, e.Message)
}
