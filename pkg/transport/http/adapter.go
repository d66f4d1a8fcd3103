package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/rhuss/umleitung/pkg/api"
	"github.com/rhuss/umleitung/pkg/transport"
)

// Adapter serves the chat-completions API over HTTP. It routes requests
// to the appropriate handler, serializes responses, and passes unknown
// paths through to the upstream untranslated.
type Adapter struct {
	completer transport.ChatCompleter
	models    transport.ModelLister // nil disables GET /v1/models
	proxy     *httputil.ReverseProxy
	inflight  *transport.InFlightRegistry
	mux       *http.ServeMux
	config    Config
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	Addr            string
	MaxBodySize     int64
	ShutdownTimeout int // seconds

	// PassthroughURL is the upstream base URL for paths the gateway does
	// not translate. Empty disables the passthrough proxy; unknown paths
	// then get a standard 404 error envelope.
	PassthroughURL string

	// PassthroughHeaders are set on every proxied request (upstream API
	// key, version header).
	PassthroughHeaders map[string]string
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		MaxBodySize:     10 << 20, // 10 MB
		ShutdownTimeout: 30,
	}
}

// NewAdapter creates an HTTP adapter with the given ChatCompleter and
// options. The ModelLister is optional; when nil, GET /v1/models returns
// an error indicating the operation is not available. Middleware is
// applied to the ChatCompleter in the given order.
func NewAdapter(completer transport.ChatCompleter, models transport.ModelLister, cfg Config, middlewares ...transport.Middleware) (*Adapter, error) {
	if len(middlewares) > 0 {
		completer = transport.Chain(middlewares...)(completer)
	}

	a := &Adapter{
		completer: completer,
		models:    models,
		inflight:  transport.NewInFlightRegistry(),
		mux:       http.NewServeMux(),
		config:    cfg,
	}

	if cfg.PassthroughURL != "" {
		target, err := url.Parse(cfg.PassthroughURL)
		if err != nil {
			return nil, fmt.Errorf("invalid passthrough URL %q: %w", cfg.PassthroughURL, err)
		}
		a.proxy = newPassthroughProxy(target, cfg.PassthroughHeaders)
	}

	a.mux.HandleFunc("POST /v1/chat/completions", a.handleChatCompletion)
	a.mux.HandleFunc("GET /v1/models", a.handleListModels)
	a.mux.HandleFunc("/v1/embeddings", a.handleNotImplemented)
	a.mux.HandleFunc("/v1/completions", a.handleNotImplemented)
	a.mux.HandleFunc("GET /healthz", a.handleHealth)
	a.mux.HandleFunc("/", a.handlePassthrough)

	return a, nil
}

// InFlight exposes the registry of active streaming exchanges so the
// server can drain them on shutdown.
func (a *Adapter) InFlight() *transport.InFlightRegistry {
	return a.inflight
}

// Handler returns the http.Handler for this adapter. Use this to integrate
// with an http.Server or test with httptest. The returned handler includes
// HTTP-level middleware for request ID propagation.
func (a *Adapter) Handler() http.Handler {
	return httpRequestIDMiddleware(a.mux)
}

// httpRequestIDMiddleware is HTTP-level middleware that propagates the
// X-Request-ID header. If present in the request, it is forwarded to
// the response. After the handler runs, it checks the context for a
// request ID (set by the transport-level RequestID middleware) and adds
// it to the response headers if not already set.
func httpRequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get("X-Request-ID"); id != "" {
			ctx := transport.ContextWithRequestID(r.Context(), id)
			r = r.WithContext(ctx)
		}
		rw := &requestIDResponseWriter{ResponseWriter: w, r: r}
		next.ServeHTTP(rw, r)
	})
}

// requestIDResponseWriter wraps http.ResponseWriter to inject the
// X-Request-ID header before the first write.
type requestIDResponseWriter struct {
	http.ResponseWriter
	r           *http.Request
	headersSent bool
}

func (w *requestIDResponseWriter) WriteHeader(statusCode int) {
	w.ensureRequestIDHeader()
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *requestIDResponseWriter) Write(b []byte) (int, error) {
	w.ensureRequestIDHeader()
	return w.ResponseWriter.Write(b)
}

func (w *requestIDResponseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap returns the underlying ResponseWriter for http.NewResponseController.
func (w *requestIDResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *requestIDResponseWriter) ensureRequestIDHeader() {
	if w.headersSent {
		return
	}
	w.headersSent = true
	if id := transport.RequestIDFromContext(w.r.Context()); id != "" {
		w.ResponseWriter.Header().Set("X-Request-ID", id)
	}
}

// handleChatCompletion handles POST /v1/chat/completions.
func (a *Adapter) handleChatCompletion(w http.ResponseWriter, r *http.Request) {
	ct := r.Header.Get("Content-Type")
	if ct != "" && ct != "application/json" {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("Content-Type must be application/json"),
			http.StatusUnsupportedMediaType,
		)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	var req api.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError(fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)),
				http.StatusRequestEntityTooLarge,
			)
			return
		}
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("invalid JSON: "+err.Error()),
			http.StatusBadRequest,
		)
		return
	}

	if req.Stream {
		a.handleStreamingCompletion(w, r, &req)
		return
	}

	rw := newSSEResponseWriter(w, nil)
	if err := a.completer.CreateChatCompletion(r.Context(), &req, rw); err != nil {
		a.writeHandlerError(w, rw, err)
	}
}

// handleStreamingCompletion handles streaming POST requests (stream: true).
func (a *Adapter) handleStreamingCompletion(w http.ResponseWriter, r *http.Request, req *api.ChatRequest) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var registeredID string
	rw := newSSEResponseWriter(w, func(id string) {
		registeredID = id
		a.inflight.Register(id, cancel)
	})

	err := a.completer.CreateChatCompletion(ctx, req, rw)

	if registeredID != "" {
		a.inflight.Remove(registeredID)
	}

	if err != nil {
		a.writeHandlerError(w, rw, err)
	}
}

// handleListModels handles GET /v1/models.
func (a *Adapter) handleListModels(w http.ResponseWriter, r *http.Request) {
	if a.models == nil {
		transport.WriteErrorResponse(w,
			api.NewNotImplementedError("model listing is not available"),
			http.StatusNotImplemented,
		)
		return
	}

	models, err := a.models.ListModels(r.Context())
	if err != nil {
		transport.WriteAPIError(w, transport.AsAPIError(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(api.ModelList{Object: "list", Data: models})
}

// handleNotImplemented rejects API surfaces the gateway deliberately does
// not emulate with a fixed 501 envelope.
func (a *Adapter) handleNotImplemented(w http.ResponseWriter, r *http.Request) {
	transport.WriteErrorResponse(w,
		api.NewNotImplementedError(r.URL.Path+" is not supported by this gateway"),
		http.StatusNotImplemented,
	)
}

// handleHealth handles GET /healthz.
func (a *Adapter) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handlePassthrough forwards paths the gateway does not translate to the
// upstream unchanged.
func (a *Adapter) handlePassthrough(w http.ResponseWriter, r *http.Request) {
	if a.proxy == nil {
		transport.WriteAPIError(w, api.NewNotFoundError("unknown path: "+r.URL.Path))
		return
	}
	a.proxy.ServeHTTP(w, r)
}

// newPassthroughProxy builds a reverse proxy to target that strips client
// credentials and injects the upstream's own headers.
func newPassthroughProxy(target *url.URL, headers map[string]string) *httputil.ReverseProxy {
	proxy := httputil.NewSingleHostReverseProxy(target)
	director := proxy.Director
	proxy.Director = func(r *http.Request) {
		director(r)
		r.Host = target.Host
		r.Header.Del("Authorization")
		for k, v := range headers {
			r.Header.Set(k, v)
		}
	}
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		transport.WriteErrorResponse(w,
			api.NewError("upstream unreachable: "+err.Error(), api.ErrorTypeServerError, http.StatusBadGateway),
			http.StatusBadGateway,
		)
	}
	proxy.FlushInterval = 100 * time.Millisecond
	return proxy
}

// writeHandlerError writes an error response from the handler. If streaming
// has already started, the error is delivered as an in-band data frame
// followed by the [DONE] marker. Otherwise it writes a standard JSON error
// response with the mapped status code.
func (a *Adapter) writeHandlerError(w http.ResponseWriter, rw *sseResponseWriter, err error) {
	apiErr := transport.AsAPIError(err)

	if rw.hasStartedStreaming() {
		rw.WriteError(context.Background(), apiErr)
		rw.WriteDone(context.Background())
		return
	}

	transport.WriteAPIError(w, apiErr)
}
