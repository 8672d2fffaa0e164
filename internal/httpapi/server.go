package httpapi

import (
	"context"
	"net/http"
	"time"

	"localsub/internal/jobs"
	"localsub/internal/library"
)

// ScanFunc triggers a library scan and returns how many jobs it enqueued.
type ScanFunc func(ctx context.Context) (int, error)

// Server is the status surface over the job queue: enqueue, list, cancel
// and a live progress stream.
type Server struct {
	queue        *jobs.Queue
	scanner      *library.Scanner
	scan         ScanFunc
	scanSchedule string

	mux    *http.ServeMux
	server *http.Server
}

type Option func(*Server)

// WithScan enables the POST /api/scan trigger and reports the cron
// schedule on GET.
func WithScan(scan ScanFunc, schedule string) Option {
	return func(s *Server) {
		s.scan = scan
		s.scanSchedule = schedule
	}
}

func NewServer(scanner *library.Scanner, queue *jobs.Queue, opts ...Option) *Server {
	s := &Server{
		scanner: scanner,
		queue:   queue,
		mux:     http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/library/items", s.handleListItems)
	s.mux.HandleFunc("/api/jobs", s.handleJobs)
	s.mux.HandleFunc("/api/jobs/stream", s.handleJobStream)
	s.mux.HandleFunc("/api/jobs/", s.handleJobAction)
	s.mux.HandleFunc("/api/scan", s.handleScan)
}
