package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/aretw0/dispenser"
	"github.com/aretw0/dispenser/internal/logging"
	"github.com/aretw0/dispenser/internal/presentation/graph"
	"github.com/aretw0/dispenser/internal/runtime"
	"github.com/aretw0/dispenser/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Fleet is the subset of fleet.Manager the HTTP API needs.
type Fleet interface {
	Create(ctx context.Context, machineID string, stock int) (*domain.Snapshot, error)
	Get(ctx context.Context, machineID string) (*domain.Snapshot, error)
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, machineID string) error
	Fire(ctx context.Context, machineID string, trigger domain.Trigger) (domain.Outcome, *domain.Snapshot, error)
	Refill(ctx context.Context, machineID string, n int) (*domain.Snapshot, error)
}

// Server serves the machine API.
type Server struct {
	Fleet   Fleet
	Streams *StreamManager

	metrics http.Handler
	logger  *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithMetrics mounts a Prometheus handler on /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithLogger sets the logger used for request errors.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// CreateRequest is the optional body of POST /machines/{id}.
type CreateRequest struct {
	Stock int `json:"stock"`
}

// RefillRequest is the body of POST /machines/{id}/refill.
type RefillRequest struct {
	Count *int `json:"count"`
}

// TriggerResponse is returned by POST /machines/{id}/triggers/{trigger}.
type TriggerResponse struct {
	Outcome domain.Outcome       `json:"outcome"`
	Machine *domain.Snapshot     `json:"machine"`
	Diff    *domain.SnapshotDiff `json:"diff,omitempty"`
}

// NewHandler creates a new HTTP handler for the fleet.
func NewHandler(fleet Fleet, opts ...Option) http.Handler {
	s := &Server{
		Fleet:  fleet,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams = NewStreamManager(s.logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/graph", s.GetGraph)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/machines", func(r chi.Router) {
		r.Get("/", s.ListMachines)
		r.Post("/", s.CreateMachine)
		r.Route("/{id}", func(r chi.Router) {
			r.Post("/", s.CreateMachine)
			r.Get("/", s.GetMachine)
			r.Delete("/", s.DeleteMachine)
			r.Post("/triggers/{trigger}", s.FireTrigger)
			r.Post("/refill", s.Refill)
			r.Get("/events", s.SubscribeEvents)
		})
	})
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "dispenser-http",
		"version": strings.TrimSpace(dispenser.Version),
	})
}

// GetGraph returns the Mermaid state diagram.
// With ?machine=<id> the machine's current state is highlighted.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	var overlay *graph.Overlay
	if id := r.URL.Query().Get("machine"); id != "" {
		snap, err := s.Fleet.Get(r.Context(), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		overlay = &graph.Overlay{Current: snap.State}
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, graph.GenerateMermaid(runtime.Table(), overlay))
}

// ListMachines handles GET /machines.
func (s *Server) ListMachines(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Fleet.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"machines": ids})
}

// CreateMachine handles POST /machines and POST /machines/{id}.
func (s *Server) CreateMachine(w http.ResponseWriter, r *http.Request) {
	var body CreateRequest
	if err := decodeOptional(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	snap, err := s.Fleet.Create(r.Context(), chi.URLParam(r, "id"), body.Stock)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.broadcast(snap.MachineID, domain.Diff(nil, snap))
	s.writeJSON(w, http.StatusCreated, snap)
}

// GetMachine handles GET /machines/{id}.
func (s *Server) GetMachine(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Fleet.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

// DeleteMachine handles DELETE /machines/{id}.
func (s *Server) DeleteMachine(w http.ResponseWriter, r *http.Request) {
	if err := s.Fleet.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// FireTrigger handles POST /machines/{id}/triggers/{trigger}.
// Rejections are successful responses; the result is inside the outcome.
func (s *Server) FireTrigger(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	trigger, err := domain.ParseTrigger(chi.URLParam(r, "trigger"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out, snap, err := s.Fleet.Fire(r.Context(), id, trigger)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	before := &domain.Snapshot{MachineID: id, State: out.From, Inventory: out.PreviousInventory}
	diff := domain.Diff(before, snap)
	if diff != nil {
		s.logger.DebugContext(r.Context(), "Trigger changed machine", "machine_id", id, "trigger", trigger)
		s.broadcast(id, diff)
	}

	s.writeJSON(w, http.StatusOK, TriggerResponse{Outcome: out, Machine: snap, Diff: diff})
}

// Refill handles POST /machines/{id}/refill.
func (s *Server) Refill(w http.ResponseWriter, r *http.Request) {
	var body RefillRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: invalid request body: %v", domain.ErrInvalidArgument, err))
		return
	}
	if body.Count == nil {
		s.writeError(w, r, fmt.Errorf("%w: count is required", domain.ErrInvalidArgument))
		return
	}

	id := chi.URLParam(r, "id")
	snap, err := s.Fleet.Refill(r.Context(), id, *body.Count)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.broadcast(id, domain.Diff(nil, snap))
	s.writeJSON(w, http.StatusOK, snap)
}

// decodeOptional decodes a JSON body when one was sent.
func decodeOptional(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("%w: invalid request body: %v", domain.ErrInvalidArgument, err)
}

func (s *Server) broadcast(machineID string, diff *domain.SnapshotDiff) {
	if diff == nil {
		return
	}
	if bytes, err := json.Marshal(diff); err == nil {
		s.Streams.Broadcast(machineID, string(bytes))
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrMachineNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrMachineExists):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "Request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"err", err,
		)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "err", err)
	}
}

// StreamManager handles active SSE connections.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // MachineID -> set of channels
	logger      *slog.Logger
}

// NewStreamManager reports dropped messages to logger; nil discards them.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
		logger:      logger,
	}
}

func (sm *StreamManager) Subscribe(machineID string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[machineID]; !ok {
		sm.subscribers[machineID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[machineID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[machineID]; ok {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, machineID)
			}
		}
	}
}

// Broadcast drops the message for subscribers whose buffer is full.
func (sm *StreamManager) Broadcast(machineID string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[machineID] {
		select {
		case ch <- msg:
		default:
			sm.logger.Warn("SSE: client buffer full, dropping message", "machine_id", machineID)
		}
	}
}

// SubscribeEvents streams snapshot diffs of one machine as server-sent events.
// ?watch=state,inventory keeps only diffs touching the listed fields.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	machineID := chi.URLParam(r, "id")
	var watch []string
	if v := r.URL.Query().Get("watch"); v != "" {
		watch = strings.Split(v, ",")
	}

	ch, cancel := s.Streams.Subscribe(machineID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if len(watch) > 0 && !watched(msg, watch) {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func watched(msg string, fields []string) bool {
	var diff domain.SnapshotDiff
	if err := json.Unmarshal([]byte(msg), &diff); err != nil {
		return true
	}
	for _, f := range fields {
		switch strings.TrimSpace(f) {
		case "state":
			if diff.State != nil {
				return true
			}
		case "inventory":
			if diff.Inventory != nil {
				return true
			}
		}
	}
	return false
}
