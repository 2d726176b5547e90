package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jensen-user/rew-bridge/internal/leq"
	"github.com/jensen-user/rew-bridge/internal/logging"
)

// Server exposes the bridge API: readings, control, the REW callback
// endpoint, and health.
type Server struct {
	state   *State
	control *Controller
	logger  logging.Logger
	srv     *http.Server
}

// NewServer builds the HTTP server on addr.
func NewServer(addr string, state *State, control *Controller, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.Default()
	}
	s := &Server{state: state, control: control, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/spl", s.handleSPL)
	mux.HandleFunc("/api/control", s.handleControl)
	mux.HandleFunc("/rew-callback", s.handleCallback)
	mux.HandleFunc("/health", s.handleHealth)

	s.srv = &http.Server{Addr: addr, Handler: s.logRequests(mux)}
	return s
}

// Start begins listening and shuts down gracefully when the context is
// canceled. Blocks until the listener closes. A listen failure (port
// already bound) is returned to the caller: a bridge without its API
// surface has no reason to keep running.
func (s *Server) Start(ctx context.Context) error {
	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-watchCtx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer shutdownCancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("bridge server shutdown", logging.Field{Key: "error", Value: err})
		}
	}()

	s.logger.Info("bridge api listening", logging.Field{Key: "addr", Value: s.srv.Addr})
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("bridge server", logging.Field{Key: "error", Value: err})
		return err
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// logRequests tags every request with an ID and logs method, path, status
// and duration at debug level.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		id := uuid.NewString()
		start := time.Now()
		next.ServeHTTP(rec, r)
		s.logger.Debug("request",
			logging.Field{Key: "request_id", Value: id},
			logging.Field{Key: "method", Value: r.Method},
			logging.Field{Key: "path", Value: r.URL.Path},
			logging.Field{Key: "status", Value: rec.status},
			logging.Field{Key: "duration", Value: time.Since(start)},
		)
	})
}

// splResponse is the reading snapshot consumed by the show-control system.
// Metrics that cannot currently be computed render as null rather than a
// sentinel number.
type splResponse struct {
	SPLASlow          *float64 `json:"spl_a_slow"`
	Leq2min           *float64 `json:"leq_2min"`
	Leq15min          *float64 `json:"leq_15min"`
	ElapsedTime       float64  `json:"elapsed_time"`
	Valid2min         bool     `json:"valid_2min"`
	RewRunning        bool     `json:"rew_running"`
	MeasurementActive bool     `json:"measurement_active"`
	BufferSamples     int      `json:"buffer_samples"`
	BufferSeconds     float64  `json:"buffer_seconds"`
}

func (s *Server) handleSPL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap := s.state.Snapshot()
	resp := splResponse{
		ElapsedTime:       snap.Elapsed,
		Valid2min:         snap.HasLeq2m,
		RewRunning:        snap.RewRunning,
		MeasurementActive: snap.MeasurementActive,
		BufferSamples:     snap.BufferSamples,
		BufferSeconds:     float64(snap.BufferSamples) / leq.DefaultSampleRateHz,
	}
	if snap.HasSPL {
		resp.SPLASlow = &snap.SPLASlow
	}
	if snap.HasLeq2m {
		rounded := math.Round(snap.Leq2m*10) / 10
		resp.Leq2min = &rounded
	}
	if snap.HasLeq15m {
		resp.Leq15min = &snap.Leq15m
	}
	writeJSON(w, http.StatusOK, resp)
}

type controlRequest struct {
	Action string `json:"action"`
}

type controlResponse struct {
	Status string `json:"status"`
	Action string `json:"action"`
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req controlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid control payload: %v", err), http.StatusBadRequest)
		return
	}

	err := s.control.Execute(r.Context(), req.Action)
	switch {
	case errors.Is(err, ErrUnknownCommand):
		http.Error(w, fmt.Sprintf("unknown action: %s", req.Action), http.StatusBadRequest)
	case errors.Is(err, ErrNotRunning):
		http.Error(w, ErrNotRunning.Error(), http.StatusServiceUnavailable)
	case err != nil:
		// Command was valid but REW refused or was unreachable; the
		// caller gets a structured error, not an HTTP failure.
		writeJSON(w, http.StatusOK, controlResponse{Status: "error", Action: req.Action})
	default:
		writeJSON(w, http.StatusOK, controlResponse{Status: "ok", Action: req.Action})
	}
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	update, err := decodeUpdate(r)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid callback payload: %v", err), http.StatusBadRequest)
		return
	}
	s.state.ApplyUpdate(update)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type healthResponse struct {
	Status             string   `json:"status"`
	RewRunning         bool     `json:"rew_running"`
	LastUpdate         float64  `json:"last_update"`
	SecondsSinceUpdate *float64 `json:"seconds_since_update"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap := s.state.Snapshot()
	resp := healthResponse{Status: "healthy", RewRunning: snap.RewRunning}
	if !snap.LastUpdate.IsZero() {
		resp.LastUpdate = float64(snap.LastUpdate.UnixNano()) / float64(time.Second)
		since := time.Since(snap.LastUpdate).Seconds()
		if since < 0 {
			since = 0
		}
		resp.SecondsSinceUpdate = &since
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
