package reqctx

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tensorlakeai/tensorlake-go/runtime/serializer"
	"github.com/tensorlakeai/tensorlake-go/runtime/telemetry"
)

// Wire headers carrying payload metadata alongside the encoded bytes.
const (
	headerSerializer = "X-Tensorlake-Serializer"
	headerTypeHint   = "X-Tensorlake-Type-Hint"
)

type (
	// Server is the loopback HTTP endpoint an execution host exposes so
	// functions running in worker processes reach their request context.
	// It serves the same State, Progress, and Metrics backends the local
	// path uses directly.
	Server struct {
		state    *MemoryState
		progress Progress
		metrics  Metrics
		logger   telemetry.Logger

		srv *http.Server
		ln  net.Listener
	}

	// ServerOption configures a loopback server.
	ServerOption func(*Server)

	progressBody struct {
		Current uint64 `json:"current"`
		Total   uint64 `json:"total"`
		Message string `json:"message,omitempty"`
	}

	metricBody struct {
		Name  string  `json:"name"`
		Kind  string  `json:"kind"`
		Value float64 `json:"value"`
	}
)

// WithServerProgress routes POST /progress to p.
func WithServerProgress(p Progress) ServerOption {
	return func(s *Server) { s.progress = p }
}

// WithServerMetrics routes POST /metrics to m.
func WithServerMetrics(m Metrics) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// WithServerLogger sets the server's logger.
func WithServerLogger(l telemetry.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// NewServer constructs a loopback server over the given state store.
func NewServer(state *MemoryState, opts ...ServerOption) *Server {
	s := &Server{state: state}
	for _, opt := range opts {
		opt(s)
	}
	if s.state == nil {
		s.state = NewMemoryState()
	}
	if s.progress == nil {
		s.progress = nopProgress{}
	}
	if s.metrics == nil {
		s.metrics = nopMetrics{}
	}
	if s.logger == nil {
		s.logger = telemetry.NewNoopLogger()
	}
	return s
}

// Router returns the chi router serving the request-context endpoints.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/state/{key}", s.handleGetState)
	r.Put("/state/{key}", s.handlePutState)
	r.Post("/progress", s.handleProgress)
	r.Post("/metrics", s.handleMetrics)
	return r
}

// Start binds the server to a loopback address and serves until Close.
// Passing an empty addr picks a free localhost port; Addr reports it.
func (s *Server) Start(addr string) error {
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.srv = &http.Server{Handler: s.Router(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error(context.Background(), "loopback server stopped", "err", err)
		}
	}()
	return nil
}

// Addr returns the bound address, empty before Start.
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Close shuts the server down.
func (s *Server) Close(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	p, ok := s.state.payload(key)
	if !ok {
		http.Error(w, "key not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", p.ContentType)
	w.Header().Set(headerSerializer, p.Serializer)
	w.Header().Set(headerTypeHint, p.TypeHint)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(p.Data)
}

func (s *Server) handlePutState(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ser := r.Header.Get(headerSerializer)
	if ser == "" {
		ser = serializer.NameBinary
	}
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		ct = serializer.ContentTypeBinary
	}
	s.state.setPayload(key, &serializer.Payload{
		Data:        data,
		Serializer:  ser,
		ContentType: ct,
		TypeHint:    r.Header.Get(headerTypeHint),
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	var body progressBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.progress.Report(r.Context(), body.Current, body.Total, body.Message); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var body metricBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var err error
	switch body.Kind {
	case "counter":
		err = s.metrics.Counter(r.Context(), body.Name, body.Value)
	case "timer":
		err = s.metrics.Timer(r.Context(), body.Name, time.Duration(body.Value*float64(time.Second)))
	case "gauge":
		err = s.metrics.Gauge(r.Context(), body.Name, body.Value)
	default:
		http.Error(w, "unknown metric kind "+body.Kind, http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
