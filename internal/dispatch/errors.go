package dispatch

import (
	"context"
	"errors"
	"strconv"

	"github.com/helixir/scholarly-retrieval-service/internal/domain"
)

// JSON-RPC 2.0 error codes. The -32000 to -32099 range is reserved for
// implementation-defined server errors.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	CodeServerError   = -32000
	CodeUpstreamError = -32001
	CodeNotFound      = -32002
	CodeRateLimited   = -32003
)

// ErrorObject is a JSON-RPC 2.0 error member.
type ErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func errorResponse(id any, code int, message string, data any) Response {
	return Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &ErrorObject{Code: code, Message: message, Data: data},
	}
}

// errorFromDomain maps the domain error taxonomy onto response codes.
// Ordering matters: the most specific sentinels are checked first, and
// a missing credential is reported as an internal configuration error
// rather than an upstream failure.
func errorFromDomain(id any, err error) Response {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return errorResponse(id, CodeInvalidParams, err.Error(), nil)
	case errors.Is(err, domain.ErrAllSourcesFailed):
		return errorResponse(id, CodeUpstreamError, err.Error(), nil)
	case errors.Is(err, domain.ErrMissingCredential):
		return errorResponse(id, CodeInternalError, err.Error(), nil)
	case errors.Is(err, domain.ErrNotFound):
		return errorResponse(id, CodeNotFound, err.Error(), nil)
	case errors.Is(err, domain.ErrRateLimited):
		return errorResponse(id, CodeRateLimited, err.Error(), nil)
	case errors.Is(err, domain.ErrNotSupported):
		return errorResponse(id, CodeInvalidParams, err.Error(), nil)
	case errors.Is(err, domain.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return errorResponse(id, CodeUpstreamError, "request timed out: "+err.Error(), nil)
	case errors.Is(err, domain.ErrUpstream):
		return errorResponse(id, CodeUpstreamError, err.Error(), nil)
	default:
		return errorResponse(id, CodeServerError, err.Error(), nil)
	}
}

func codeLabel(code int) string {
	return strconv.Itoa(code)
}
