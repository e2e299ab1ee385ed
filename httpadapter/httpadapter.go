// Package httpadapter exposes a dispatcher over HTTP with chi and provides
// the matching client resolver.
//
// Each operation's metadata names its route through HTTPRoute. GET and
// DELETE requests carry the JSON request in the "input" query parameter;
// other methods carry it as the body. A successful call answers 200 with
// the JSON response, or an empty 200 when the operation has no response
// shape.
package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/unruly-software/api"
	"github.com/unruly-software/api/schema"
	"github.com/unruly-software/api/server"
)

// DefaultMaxBodyBytes bounds request bodies unless overridden.
const DefaultMaxBodyBytes = 1 << 20

// InputParam is the query parameter carrying GET and DELETE requests.
const InputParam = "input"

// Route is implemented by operation metadata served over HTTP.
type Route interface {
	HTTPRoute() (method, path string)
}

// ContextFunc builds the initial route context for a request.
type ContextFunc[C any] func(r *http.Request) (C, error)

type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

type Option func(*options)

type options struct {
	errorHandler ErrorHandler
	maxBodyBytes int64
	logger       *slog.Logger
}

func WithErrorHandler(h ErrorHandler) Option {
	return func(o *options) { o.errorHandler = h }
}

// WithMaxBodyBytes limits request bodies; n <= 0 removes the limit.
func WithMaxBodyBytes(n int64) Option {
	return func(o *options) { o.maxBodyBytes = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := options{
		errorHandler: DefaultErrorHandler,
		maxBodyBytes: DefaultMaxBodyBytes,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Mount registers every catalog operation on r.
func Mount[M Route, C any](r chi.Router, d *server.Dispatcher[M, C], newContext ContextFunc[C], opts ...Option) {
	o := buildOptions(opts)
	d.Catalog().Each(func(name string, def api.Definition[M]) {
		method, path := def.Metadata.HTTPRoute()
		r.Method(method, path, operationHandler(d, name, def, newContext, o))
	})
}

func operationHandler[M Route, C any](d *server.Dispatcher[M, C], name string, def api.Definition[M], newContext ContextFunc[C], o options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		initial, err := newContext(r)
		if err != nil {
			o.errorHandler(w, r, err)
			return
		}

		input, err := readInput(w, r, o.maxBodyBytes)
		if err != nil {
			o.errorHandler(w, r, err)
			return
		}

		out, err := d.Dispatch(r.Context(), name, initial, input)
		if err != nil {
			o.errorHandler(w, r, err)
			return
		}

		if !def.HasResponse() {
			w.WriteHeader(http.StatusOK)
			return
		}
		body, err := json.Marshal(out)
		if err != nil {
			o.logger.Error("encode response", "operation", name, "error", err)
			o.errorHandler(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	}
}

// readInput returns nil for an absent request, otherwise the raw JSON.
func readInput(w http.ResponseWriter, r *http.Request, limit int64) (any, error) {
	if r.Method == http.MethodGet || r.Method == http.MethodDelete {
		q := r.URL.Query().Get(InputParam)
		if q == "" {
			return nil, nil
		}
		return json.RawMessage(q), nil
	}

	body := r.Body
	if limit > 0 {
		body = http.MaxBytesReader(w, r.Body, limit)
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	return json.RawMessage(raw), nil
}

type errorBody struct {
	Error  string         `json:"error"`
	Issues []schema.Issue `json:"issues,omitempty"`
}

// WriteError writes {"error": msg} with status. Validation errors also
// carry their issues.
func WriteError(w http.ResponseWriter, status int, err error) {
	body := errorBody{Error: err.Error()}
	var verr *schema.ValidationError
	if errors.As(err, &verr) {
		body.Issues = verr.Issues
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// DefaultErrorHandler answers every error with 500.
func DefaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	WriteError(w, http.StatusInternalServerError, err)
}

// StatusErrorHandler answers with StatusFromError.
func StatusErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	WriteError(w, StatusFromError(err), err)
}

// StatusFromError maps typed errors to HTTP status codes: oversized bodies
// 413, validation 400, unknown operations 404, remote errors their own
// status, everything else 500.
func StatusFromError(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return api.StatusCode(err)
}
