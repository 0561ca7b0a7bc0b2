package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fintwit-analyzer/internal/logger"
	"fintwit-analyzer/internal/pipeline"
	"fintwit-analyzer/internal/store"
	itrace "fintwit-analyzer/internal/trace"
	"fintwit-analyzer/internal/types"
)

// Server exposes the analysis pipeline over HTTP. The analyze endpoint
// answers with the first batch of results and a session id; the rest
// of the history is processed in the background and picked up through
// the session endpoint.
type Server struct {
	cfg  *store.Config
	pipe *pipeline.Pipeline

	mu       sync.RWMutex
	sessions map[string]*session
}

type session struct {
	mu sync.RWMutex

	ID          string
	Handle      string
	Months      int
	Status      string // processing, complete, error
	TotalTweets int
	StockTweets int
	Trades      []types.TradeRecord
	Stats       types.Stats
	Err         string
}

func NewServer(cfg *store.Config, pipe *pipeline.Pipeline) *Server {
	return &Server{
		cfg:      cfg,
		pipe:     pipe,
		sessions: make(map[string]*session),
	}
}

// Router wires all endpoints.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/analyze", s.handleAnalyze).Methods(http.MethodGet)
	r.HandleFunc("/api/analyze/results/{sessionId}", s.handleResults).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return r
}

// ListenAndServe blocks until the context is canceled or the listener
// fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler: s.Router(),
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	logger.Info(ctx, "Analysis server listening", "port", s.cfg.Server.Port)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

type analyzeResponse struct {
	SessionID   string              `json:"sessionId"`
	Handle      string              `json:"handle"`
	Months      int                 `json:"months"`
	TotalTweets int                 `json:"totalTweets"`
	StockTweets int                 `json:"stockTweets"`
	Trades      []types.TradeRecord `json:"trades"`
	Stats       types.Stats         `json:"stats"`
	HasMore     bool                `json:"hasMore"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx, span := itrace.StartSpan(r.Context(), "api-analyze")
	defer span.End()

	handle := r.URL.Query().Get("handle")
	if handle == "" {
		writeError(w, http.StatusBadRequest, "missing handle parameter")
		return
	}

	months := s.cfg.Pipeline.TimelineMonths
	if m := r.URL.Query().Get("months"); m != "" {
		parsed, err := strconv.Atoi(m)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "invalid months parameter")
			return
		}
		months = parsed
	}

	sess := &session{
		ID:     uuid.NewString(),
		Handle: "@" + pipeline.NormalizeHandle(handle),
		Months: months,
		Status: "processing",
	}
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	logger.Info(ctx, "Analysis session started", "session_id", sess.ID, "handle", handle, "months", months)

	// The background pass must outlive this request.
	bgCtx := context.WithoutCancel(ctx)

	var firstOnce sync.Once
	firstCh := make(chan types.BatchResult, 1)
	doneCh := make(chan error, 1)

	go func() {
		res, err := s.pipe.AnalyzeIncremental(bgCtx, handle, months, func(b types.BatchResult) {
			sess.update(b)
			firstOnce.Do(func() { firstCh <- b })
		})
		if err != nil {
			sess.fail(err)
			doneCh <- err
			return
		}
		sess.complete(res)
		doneCh <- nil
	}()

	select {
	case first := <-firstCh:
		writeJSON(w, http.StatusOK, analyzeResponse{
			SessionID:   sess.ID,
			Handle:      sess.Handle,
			Months:      months,
			StockTweets: first.TotalTweets,
			Trades:      first.RecentTrades,
			Stats:       first.Stats,
			HasMore:     !first.IsComplete,
		})
	case err := <-doneCh:
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		// No stock mentions at all: the run finished without batches.
		snap := sess.snapshot()
		writeJSON(w, http.StatusOK, analyzeResponse{
			SessionID:   sess.ID,
			Handle:      sess.Handle,
			Months:      months,
			TotalTweets: snap.TotalTweets,
			StockTweets: snap.StockTweets,
			Trades:      snap.Trades,
			Stats:       snap.Stats,
			HasMore:     false,
		})
	}
}

type resultsResponse struct {
	SessionID   string              `json:"sessionId"`
	Handle      string              `json:"handle"`
	Months      int                 `json:"months"`
	Status      string              `json:"status"`
	TotalTweets int                 `json:"totalTweets"`
	StockTweets int                 `json:"stockTweets"`
	Trades      []types.TradeRecord `json:"trades"`
	Stats       types.Stats         `json:"stats"`
	Error       string              `json:"error,omitempty"`
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["sessionId"]

	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	snap := sess.snapshot()
	writeJSON(w, http.StatusOK, resultsResponse{
		SessionID:   snap.ID,
		Handle:      snap.Handle,
		Months:      snap.Months,
		Status:      snap.Status,
		TotalTweets: snap.TotalTweets,
		StockTweets: snap.StockTweets,
		Trades:      snap.Trades,
		Stats:       snap.Stats,
		Error:       snap.Err,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "fintwit-analyzer",
		"port":    s.cfg.Server.Port,
	})
}

func (sess *session) update(b types.BatchResult) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.StockTweets = b.TotalTweets
	sess.Trades = b.RecentTrades
	sess.Stats = b.Stats
}

func (sess *session) complete(res *types.AnalysisResult) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.Status = "complete"
	sess.TotalTweets = res.TweetsScanned
	sess.StockTweets = res.StockMentions
	sess.Trades = res.RecentTrades
	sess.Stats = res.Stats
}

func (sess *session) fail(err error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.Status = "error"
	sess.Err = err.Error()
}

// snapshot copies the session under its lock for serialization.
func (sess *session) snapshot() session {
	sess.mu.RLock()
	defer sess.mu.RUnlock()
	return session{
		ID:          sess.ID,
		Handle:      sess.Handle,
		Months:      sess.Months,
		Status:      sess.Status,
		TotalTweets: sess.TotalTweets,
		StockTweets: sess.StockTweets,
		Trades:      sess.Trades,
		Stats:       sess.Stats,
		Err:         sess.Err,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
