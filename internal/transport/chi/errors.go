package chi

import (
	"errors"
	"net/http"

	"github.com/kailas-cloud/billsearch/internal/domain"
)

// ErrorKind is the machine-readable error class returned to clients.
type ErrorKind string

// Error kinds.
const (
	KindNotReady      ErrorKind = "not_ready"
	KindValidation    ErrorKind = "validation"
	KindEmbedding     ErrorKind = "embedding_error"
	KindModelMismatch ErrorKind = "model_mismatch"
	KindNotFound      ErrorKind = "not_found"
	KindTimeout       ErrorKind = "timeout"
	KindGeneration    ErrorKind = "generation_error"
	KindInternal      ErrorKind = "internal_error"
	KindBadRequest    ErrorKind = "bad_request"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// errorReply is how a domain error is reported to the client.
type errorReply struct {
	status     int
	kind       ErrorKind
	message    string
	retryAfter string
}

func (r errorReply) write(w http.ResponseWriter) {
	if r.retryAfter != "" {
		w.Header().Set("Retry-After", r.retryAfter)
	}
	writeError(w, r.status, r.kind, r.message)
}

// errorHandler tries to map a domain error. Returns false if err is not its concern.
type errorHandler func(err error) (errorReply, bool)

// defaultErrorHandlers is ordered: readiness first, then timeouts, which may also wrap provider errors.
func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		notReadyHandler,
		sentinelHandler(domain.ErrTimeout, http.StatusGatewayTimeout, KindTimeout, false),
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, KindValidation, true),
		sentinelHandler(domain.ErrModelMismatch, http.StatusInternalServerError, KindModelMismatch, false),
		sentinelHandler(domain.ErrDimensionMismatch, http.StatusInternalServerError, KindModelMismatch, false),
		sentinelHandler(domain.ErrEmbedding, http.StatusUnprocessableEntity, KindEmbedding, false),
		sentinelHandler(domain.ErrGeneration, http.StatusBadGateway, KindGeneration, false),
		sentinelHandler(domain.ErrNotFound, http.StatusInternalServerError, KindNotFound, false),
	}
}

// replyFor maps err through handlers, falling back to an opaque internal error.
func replyFor(handlers []errorHandler, err error) (errorReply, bool) {
	for _, h := range handlers {
		if r, ok := h(err); ok {
			return r, true
		}
	}
	return errorReply{status: http.StatusInternalServerError, kind: KindInternal, message: "internal error"}, false
}

// sentinelHandler matches a single sentinel. verbose replies with the full error text,
// otherwise only the sentinel message is exposed.
func sentinelHandler(sentinel error, status int, kind ErrorKind, verbose bool) errorHandler {
	return func(err error) (errorReply, bool) {
		if !errors.Is(err, sentinel) {
			return errorReply{}, false
		}
		msg := sentinel.Error()
		if verbose {
			msg = err.Error()
		}
		return errorReply{status: status, kind: kind, message: msg}, true
	}
}

// notReadyHandler reports the observed gate state with Retry-After while loading.
func notReadyHandler(err error) (errorReply, bool) {
	if !errors.Is(err, domain.ErrNotReady) {
		return errorReply{}, false
	}
	r := errorReply{status: http.StatusServiceUnavailable, kind: KindNotReady, message: domain.ErrNotReady.Error()}
	var nre *domain.NotReadyError
	if errors.As(err, &nre) {
		r.message = "service is " + nre.State.String()
		if nre.State == domain.StateLoading || nre.State == domain.StateUninitialized {
			r.retryAfter = "5"
		}
	}
	return r, true
}
