// Package oracle defines the wire-level data model and error taxonomy shared
// by every core component: cache entries, the request/response envelope,
// and the error kinds that the HTTP ingress maps onto status codes.
package oracle

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a core error so the ingress layer can map it to an HTTP
// status without string sniffing.
type Kind string

const (
	// KindInput covers content-type, missing endpoint, missing required
	// parameter, and unknown transport name.
	KindInput Kind = "input"
	// KindNotFound covers an endpoint name/alias not registered on the adapter.
	KindNotFound Kind = "not_found"
	// KindTimeout covers cache-poll exhaustion.
	KindTimeout Kind = "timeout"
	// KindUpstream covers a failed or unparsable data-provider call.
	KindUpstream Kind = "upstream"
	// KindQueueOverflow covers the requester queue dropping the oldest entry.
	KindQueueOverflow Kind = "queue_overflow"
	// KindInvariant covers a domain invariant violation (e.g. LWBA bid<=mid<=ask).
	KindInvariant Kind = "invariant"
	// KindInternal covers anything unexpected.
	KindInternal Kind = "internal"
)

// HTTPStatus returns the status code mirrored by the wire response for this kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindInput:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindUpstream:
		return http.StatusBadGateway
	case KindQueueOverflow:
		return http.StatusTooManyRequests
	case KindInvariant, KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Fault is the error type every core component returns. It carries enough
// structure for the ingress middleware (internal/httpapi) to build the wire
// error envelope described in spec §6/§7 without re-deriving a status code.
type Fault struct {
	Kind    Kind
	Name    string // machine-readable error name, echoed on the wire
	Message string
	Cause   error
}

func (f *Fault) Error() string {
	if f.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.Cause)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Fault) Unwrap() error { return f.Cause }

// NewFault builds a Fault, defaulting Name to the kind string if unset.
func NewFault(kind Kind, name, message string, cause error) *Fault {
	if name == "" {
		name = string(kind)
	}
	return &Fault{Kind: kind, Name: name, Message: message, Cause: cause}
}

func Input(message string, cause error) *Fault {
	return NewFault(KindInput, "InputError", message, cause)
}

func NotFound(message string) *Fault {
	return NewFault(KindNotFound, "NotFoundError", message, nil)
}

func Timeout(message string) *Fault {
	return NewFault(KindTimeout, "TimeoutError", message, nil)
}

func Upstream(message string, cause error) *Fault {
	return NewFault(KindUpstream, "UpstreamError", message, cause)
}

func QueueOverflow(message string) *Fault {
	return NewFault(KindQueueOverflow, "QueueOverflowError", message, nil)
}

func Invariant(message string) *Fault {
	return NewFault(KindInvariant, "InvariantError", message, nil)
}

func Internal(message string, cause error) *Fault {
	return NewFault(KindInternal, "InternalError", message, cause)
}

// AsFault extracts a *Fault from err, falling back to an Internal fault that
// wraps the original error so no error returned by a core component ever
// reaches the ingress layer un-typed.
func AsFault(err error) *Fault {
	if err == nil {
		return nil
	}
	var f *Fault
	if errors.As(err, &f) {
		return f
	}
	return Internal("unexpected error", err)
}
