// Package services exposes the local HTTP status endpoint of the transcriber.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	logger "github.com/EasterCompany/dex-transcribe-service/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const serviceName = "dex-transcribe-service"

// StatusServer provides HTTP status endpoint for this service
type StatusServer struct {
	startTime   time.Time
	port        int
	version     string
	transcriber string
	log         logger.Logger
	server      *http.Server

	// Metrics
	voiceMessages atomic.Uint64
	transcripts   atomic.Uint64
	failures      atomic.Uint64

	mu             sync.Mutex
	failuresByKind map[string]uint64
}

// NewStatusServer creates a new status server. transcriber names the active backend.
func NewStatusServer(port int, version, transcriber string, log logger.Logger) *StatusServer {
	return &StatusServer{
		startTime:      time.Now(),
		port:           port,
		version:        version,
		transcriber:    transcriber,
		log:            log,
		failuresByKind: make(map[string]uint64),
	}
}

// Router returns the HTTP routes of the status server.
func (ss *StatusServer) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", ss.handleHealth)
	r.Get("/status", ss.handleStatus)
	return r
}

// Start begins the HTTP status server on localhost. It does nothing when the port is 0.
func (ss *StatusServer) Start() error {
	if ss.port <= 0 {
		return nil
	}
	addr := fmt.Sprintf("127.0.0.1:%d", ss.port)
	ss.server = &http.Server{
		Addr:              addr,
		Handler:           ss.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	ss.log.Info("Starting status server", zap.String("addr", "http://"+addr))

	go func() {
		if err := ss.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			ss.log.Error("Status server stopped", err)
		}
	}()
	return nil
}

// Shutdown stops the server if it was started.
func (ss *StatusServer) Shutdown(ctx context.Context) error {
	if ss.server == nil {
		return nil
	}
	return ss.server.Shutdown(ctx)
}

// Snapshot is the JSON body of GET /status.
type Snapshot struct {
	Service     string  `json:"service"`
	Status      string  `json:"status"`
	Version     string  `json:"version"`
	Transcriber string  `json:"transcriber"`
	Uptime      string  `json:"uptime"`
	Timestamp   string  `json:"timestamp"`
	Metrics     Metrics `json:"metrics"`
}

// Metrics are the counters reported by GET /status.
type Metrics struct {
	VoiceMessages  uint64            `json:"voice_messages"`
	Transcripts    uint64            `json:"transcripts"`
	Failures       uint64            `json:"failures"`
	FailuresByKind map[string]uint64 `json:"failures_by_kind"`
	Goroutines     int               `json:"goroutines"`
	MemoryAllocMB  float64           `json:"memory_alloc_mb"`
	GCRuns         uint32            `json:"gc_runs"`
}

// Snapshot returns the current status.
func (ss *StatusServer) Snapshot() Snapshot {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	ss.mu.Lock()
	byKind := make(map[string]uint64, len(ss.failuresByKind))
	for k, v := range ss.failuresByKind {
		byKind[k] = v
	}
	ss.mu.Unlock()

	return Snapshot{
		Service:     serviceName,
		Status:      "operational",
		Version:     ss.version,
		Transcriber: ss.transcriber,
		Uptime:      time.Since(ss.startTime).Round(time.Second).String(),
		Timestamp:   time.Now().Format(time.RFC3339),
		Metrics: Metrics{
			VoiceMessages:  ss.voiceMessages.Load(),
			Transcripts:    ss.transcripts.Load(),
			Failures:       ss.failures.Load(),
			FailuresByKind: byKind,
			Goroutines:     runtime.NumGoroutine(),
			MemoryAllocMB:  float64(m.Alloc) / 1024 / 1024,
			GCRuns:         m.NumGC,
		},
	}
}

// handleStatus returns detailed service status
func (ss *StatusServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	ss.writeJSON(w, ss.Snapshot())
}

// handleHealth returns simple health check
func (ss *StatusServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	ss.writeJSON(w, map[string]string{"status": "ok"})
}

func (ss *StatusServer) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		ss.log.Error("Error encoding status response", err)
	}
}

// Metric incrementers (called from the listener)
func (ss *StatusServer) IncrementVoiceMessages() {
	ss.voiceMessages.Add(1)
}

func (ss *StatusServer) IncrementTranscripts() {
	ss.transcripts.Add(1)
}

func (ss *StatusServer) IncrementFailures(kind string) {
	ss.failures.Add(1)
	ss.mu.Lock()
	ss.failuresByKind[kind]++
	ss.mu.Unlock()
}
