// Package httptransport exposes the worker protocol over HTTP: POST /parse
// submits a buffer for analysis, GET /events/{id} streams its result or
// error as Server-Sent Events (ParseBuffer reports no progress, so no
// progress events are sent), POST /cancel/{id} cancels it. Adapted from
// the register/unregister/broadcast channel loop used for streaming
// connection state elsewhere in this codebase's ancestry, repurposed here
// so each job gets its own event channel instead of broadcasting to every
// connected client.
package httptransport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	beatparser "github.com/jota2rz/beat-parser"
)

// Server wraps a Parser with an HTTP surface for submit/stream/cancel.
type Server struct {
	parser *beatparser.Parser

	mu   sync.Mutex
	jobs map[string]*job
}

type job struct {
	events chan []byte
	cancel context.CancelFunc
}

// NewServer returns a Server ready to have its Handler mounted.
func NewServer(parser *beatparser.Parser) *Server {
	return &Server{parser: parser, jobs: make(map[string]*job)}
}

// Handler returns the mux for this server's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /parse", s.handleParse)
	mux.HandleFunc("GET /events/{id}", s.handleEvents)
	mux.HandleFunc("POST /cancel/all", s.handleCancelAll)
	mux.HandleFunc("POST /cancel/{id}", s.handleCancel)
	return mux
}

type parseRequest struct {
	Samples         []float64 `json:"samples"`
	SourceRate      int       `json:"sourceRate"`
	Channels        int       `json:"channels"`
	TargetBeatCount int       `json:"targetBeatCount"`
	Policy          string    `json:"policy"`
}

type parseAccepted struct {
	ID string `json:"id"`
}

// handleParse validates the request, starts analysis in a background
// goroutine tied to a job ID, and returns that ID immediately; the caller
// follows up with GET /events/{id} to observe progress and the result.
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if len(req.Samples) == 0 {
		http.Error(w, "samples required", http.StatusBadRequest)
		return
	}
	if req.Channels <= 0 {
		req.Channels = 1
	}

	id := fmt.Sprintf("%d", time.Now().UnixNano())
	ctx, cancel := context.WithCancel(context.Background())
	j := &job{events: make(chan []byte, 64), cancel: cancel}

	s.mu.Lock()
	s.jobs[id] = j
	s.mu.Unlock()

	go s.run(ctx, id, j, req)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(parseAccepted{ID: id})
}

func (s *Server) run(ctx context.Context, id string, j *job, req parseRequest) {
	defer func() {
		s.mu.Lock()
		delete(s.jobs, id)
		s.mu.Unlock()
		close(j.events)
	}()

	opts := beatparser.ParseOptions{
		TargetBeatCount: req.TargetBeatCount,
		Policy:          beatparser.SelectionPolicy(req.Policy),
		Progress: func(current, total int, pct float64) {
			s.emit(j, "progress", map[string]any{"current": current, "total": total, "percent": pct})
		},
	}

	result, err := s.parser.ParseBuffer(ctx, req.Samples, req.SourceRate, req.Channels, opts)
	if err != nil {
		slog.Warn("httptransport: parse failed", "id", id, "err", err)
		s.emit(j, "error", map[string]any{"message": err.Error()})
		return
	}
	s.emit(j, "result", result)
}

func (s *Server) emit(j *job, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	msg := fmt.Appendf(nil, "event: %s\ndata: %s\n\n", event, data)
	select {
	case j.events <- msg:
	default:
		slog.Warn("httptransport: event buffer full, dropping message", "event", event)
	}
}

// handleEvents streams one job's progress/result/error frames as SSE until
// the job finishes or the client disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	s.mu.Lock()
	j, ok := s.jobs[id]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "unknown job", http.StatusNotFound)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for {
		select {
		case msg, open := <-j.events:
			if !open {
				return
			}
			w.Write(msg)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// handleCancel requests cooperative cancellation of an in-flight job. A
// no-op if the job is unknown or already finished.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	s.mu.Lock()
	j, ok := s.jobs[id]
	s.mu.Unlock()
	if ok {
		j.cancel()
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCancelAll cancels every job currently in flight through this
// server, matching the wire protocol's Cancel{"all"} message. It cancels
// both the server's own per-job contexts and the underlying worker's
// in-flight requests, so a job submitted directly against the Parser
// (bypassing this HTTP surface) is still reached.
func (s *Server) handleCancelAll(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	jobs := make([]*job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	s.mu.Unlock()
	for _, j := range jobs {
		j.cancel()
	}
	s.parser.CancelAll()
	w.WriteHeader(http.StatusNoContent)
}
