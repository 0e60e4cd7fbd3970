// Package worker implements a single-threaded cooperative worker that
// multiplexes parse/process requests over channels: a register/
// unregister/dispatch event loop where in-flight requests, tracked by
// ID, take the place of connected clients.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind names the request message type.
type Kind string

const (
	KindParseBuffer  Kind = "parseBuffer"
	KindParseStream  Kind = "parseStream"
	KindProcessBatch Kind = "processBatch"
	KindCancel       Kind = "cancel"
)

// Request is a unit of work submitted to the Worker.
type Request struct {
	ID      string
	Kind    Kind
	Payload any
	// Timeout is the caller's own budget for this request, not enforced by
	// the worker; the caller derives a deadline from it and calls Cancel
	// on expiry.
	Timeout  time.Duration
	Progress func(percent float64)

	// Exec performs the actual work, observing ctx cancellation. Set by the
	// caller (the root Parser) since the worker package has no knowledge of
	// the analysis pipeline itself.
	Exec func(ctx context.Context) (any, error)
}

// Response carries either a Result or an Error for a given request ID.
type Response struct {
	ID     string
	Result any
	Err    error
}

// job tracks one in-flight request's cancellation plumbing.
type job struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Worker runs a FIFO single-threaded execution loop over submitted
// requests, supporting cooperative cancellation by request ID. It never
// enforces a wall-clock deadline on its own; Request.Timeout is a value
// the caller is expected to enforce against its own context and respond
// to by calling Cancel, not a deadline the worker applies internally.
// Buffers passed in Request.Payload are owned by the worker for the
// duration of that request; the caller must not mutate them until the
// corresponding Response arrives.
type Worker struct {
	submit   chan Request
	mu       sync.Mutex
	inflight map[string]*job
	done     chan struct{}
	results  chan Response
}

// DefaultTimeout is the per-request budget a caller should enforce absent
// an explicit override.
const DefaultTimeout = 5 * time.Minute

// BatchTimeout scales the default budget by batch size using a
// ceil(batch/5) rule.
func BatchTimeout(batchSize int) time.Duration {
	if batchSize <= 1 {
		return DefaultTimeout
	}
	factor := math.Ceil(float64(batchSize) / 5)
	return time.Duration(factor) * DefaultTimeout
}

// New returns a Worker whose Run loop has not yet been started.
func New(queueDepth int) *Worker {
	if queueDepth <= 0 {
		queueDepth = 16
	}
	return &Worker{
		submit:   make(chan Request, queueDepth),
		inflight: make(map[string]*job),
		done:     make(chan struct{}),
		results:  make(chan Response, queueDepth),
	}
}

// Run starts the worker's single-threaded dispatch loop. Call in a
// goroutine; it returns when Close is called.
func (w *Worker) Run() {
	for {
		select {
		case req := <-w.submit:
			w.execute(req)
		case <-w.done:
			close(w.results)
			return
		}
	}
}

// Submit enqueues a request and returns immediately; the result arrives on
// Results(). Backpressure: if the queue is full, Submit blocks the caller
// (FIFO, no silent drop) until a slot frees or the worker closes.
func (w *Worker) Submit(req Request) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Timeout <= 0 {
		req.Timeout = DefaultTimeout
	}
	select {
	case w.submit <- req:
	case <-w.done:
	}
}

// Cancel requests cooperative cancellation of the named in-flight request.
// A no-op if the request is unknown or already finished.
func (w *Worker) Cancel(id string) {
	w.mu.Lock()
	j, ok := w.inflight[id]
	w.mu.Unlock()
	if !ok {
		return
	}
	j.cancel()
}

// CancelAll requests cooperative cancellation of every request currently
// in flight, matching the wire protocol's Cancel{"all"} message.
func (w *Worker) CancelAll() {
	w.mu.Lock()
	jobs := make([]*job, 0, len(w.inflight))
	for _, j := range w.inflight {
		jobs = append(jobs, j)
	}
	w.mu.Unlock()
	for _, j := range jobs {
		j.cancel()
	}
}

// Results returns the channel Responses are delivered on.
func (w *Worker) Results() <-chan Response { return w.results }

// Close stops the dispatch loop and cancels every in-flight request.
func (w *Worker) Close() {
	w.mu.Lock()
	for _, j := range w.inflight {
		j.cancel()
	}
	w.mu.Unlock()
	close(w.done)
}

// execute runs req.Exec to completion or cooperative cancellation. The
// worker itself never imposes a deadline: req.Timeout is the caller's
// budget, enforced by the caller deriving its own context and calling
// Cancel on expiry (see beatparser.Parser.run). Exec only ever observes
// cancellation, never a deadline the worker set on its own.
func (w *Worker) execute(req Request) {
	ctx, cancel := context.WithCancel(context.Background())
	j := &job{cancel: cancel, done: make(chan struct{})}

	w.mu.Lock()
	w.inflight[req.ID] = j
	w.mu.Unlock()

	defer func() {
		cancel()
		close(j.done)
		w.mu.Lock()
		delete(w.inflight, req.ID)
		w.mu.Unlock()
	}()

	if req.Exec == nil {
		w.deliver(Response{ID: req.ID, Err: fmt.Errorf("worker: request %s has no Exec", req.ID)})
		return
	}

	result, err := req.Exec(ctx)
	if err != nil {
		if ctx.Err() == context.Canceled {
			slog.Info("worker request cancelled", "id", req.ID, "kind", req.Kind)
		}
		w.deliver(Response{ID: req.ID, Err: err})
		return
	}
	w.deliver(Response{ID: req.ID, Result: result})
}

func (w *Worker) deliver(resp Response) {
	select {
	case w.results <- resp:
	case <-w.done:
	}
}
