package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/semaphore"

	"github.com/23skdu/longbow-ane/internal/ane"
)

var (
	jobsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "anerun_jobs_processed_total",
		Help: "The total number of jobs run for HTTP clients",
	})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "anerun_request_duration_seconds",
		Help:    "Time spent processing exec requests",
		Buckets: prometheus.DefBuckets,
	})
)

// ExecRequest is the CBOR body of POST /exec: one dense fp16 tensor per
// input port.
type ExecRequest struct {
	Inputs [][]byte `cbor:"inputs"`
}

// ExecResponse is the CBOR reply. Status is the driver status of the job.
type ExecResponse struct {
	Status  int      `cbor:"status"`
	Outputs [][]byte `cbor:"outputs,omitempty"`
}

type Server struct {
	engine Engine
	// queue bounds waiting requests; device serializes access to engine,
	// which is single threaded.
	queue  *semaphore.Weighted
	device *semaphore.Weighted
}

func NewServer(engine Engine, maxQueue int) *Server {
	return &Server{
		engine: engine,
		queue:  semaphore.NewWeighted(int64(maxQueue)),
		device: semaphore.NewWeighted(1),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/exec", s.handleExec)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// startServer listens on addr and serves until ctx is done.
func startServer(ctx context.Context, addr string, engine Engine, maxQueue int) error {
	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("cannot listen on %q: %w", addr, err)
	}
	log.Info().Str("addr", ln.Addr().String()).Msg("Starting anerun server")
	return serve(ctx, ln, engine, maxQueue)
}

// serve handles requests on ln until ctx is done, then waits up to
// shutdownTimeout for requests in flight. The engine is idle once it returns
// nil.
func serve(ctx context.Context, ln net.Listener, engine Engine, maxQueue int) error {
	srv := &http.Server{
		Handler:           NewServer(engine, maxQueue).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan error, 1)
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		done <- srv.Shutdown(sctx)
	}()

	if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	log.Info().Msg("Server has stopped accepting requests")
	return <-done
}

const shutdownTimeout = 30 * time.Second

var tracer = otel.Tracer("anerun-server")

func (s *Server) handleExec(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "handleExec")
	defer span.End()

	start := time.Now()
	defer func() {
		requestDuration.Observe(time.Since(start).Seconds())
	}()

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ExecRequest
	if err := cbor.NewDecoder(r.Body).Decode(&req); err != nil {
		span.RecordError(err)
		http.Error(w, fmt.Sprintf("Bad Request (CBOR decode): %v", err), http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.Int("input_count", len(req.Inputs)))

	// Admission Control
	if !s.queue.TryAcquire(1) {
		http.Error(w, "Server busy", http.StatusServiceUnavailable)
		return
	}
	defer s.queue.Release(1)

	if err := s.device.Acquire(ctx, 1); err != nil {
		log.Error().Err(err).Msg("Gave up waiting for the engine")
		http.Error(w, "Server busy", http.StatusServiceUnavailable)
		return
	}
	outputs, err := runJob(s.engine, req.Inputs)
	s.device.Release(1)

	resp := ExecResponse{Outputs: outputs}
	code := http.StatusOK
	if err != nil {
		span.RecordError(err)
		resp.Status = ane.Status(err)
		var se *ane.SubmitError
		if errors.As(err, &se) {
			log.Error().Int("status", se.Code).Msg("Job failed on the engine")
			code = http.StatusBadGateway
		} else {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	jobsProcessed.Inc()
	span.SetAttributes(
		attribute.Int("output_count", len(outputs)),
		attribute.Int("status", resp.Status),
	)

	body, err := cbor.Marshal(resp)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/cbor")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
