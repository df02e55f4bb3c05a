// Package server serves FlatGeobuf layers over HTTP with byte range support.
//
// Layers come from two places: containers published in memory with
// Publish, and *.fgb files in a directory. Both are served with
// http.ServeContent, so single and multi-range requests work the way
// browser and range-reading clients expect.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const layerExt = ".fgb"

// Config configures a Server.
type Config struct {
	// Dir holds *.fgb files to serve. Empty serves published layers only.
	Dir string

	// CORSOrigins lists allowed origins. Empty allows any origin.
	CORSOrigins []string

	Logger *slog.Logger
}

// Layer describes one servable container.
type Layer struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

type memoryLayer struct {
	data    []byte
	modTime time.Time
}

// Server serves layers and Prometheus metrics.
type Server struct {
	dir      string
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *Metrics
	router   chi.Router

	mu     sync.RWMutex
	layers map[string]memoryLayer
}

// New creates a Server. Each Server has its own metrics registry.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	registry := prometheus.NewRegistry()

	s := &Server{
		dir:      cfg.Dir,
		logger:   logger,
		registry: registry,
		metrics:  NewMetrics(registry),
		layers:   make(map[string]memoryLayer),
	}

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "HEAD", "OPTIONS"},
		AllowedHeaders:   []string{"Range", "If-Range", "If-Modified-Since"},
		ExposedHeaders:   []string{"Accept-Ranges", "Content-Range", "Content-Length", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	r.Get("/layers", s.handleList)
	r.Get("/layers/{name}", s.instrument(s.handleLayer))
	r.Head("/layers/{name}", s.instrument(s.handleLayer))

	s.router = r
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Publish serves data as the layer name + ".fgb", replacing any earlier
// layer of that name. Published layers shadow files in the directory.
func (s *Server) Publish(name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layers[name+layerExt] = memoryLayer{data: data, modTime: time.Now()}
}

// Layers lists published layers and files in the directory, sorted by name.
func (s *Server) Layers() ([]Layer, error) {
	seen := make(map[string]bool)
	var out []Layer

	s.mu.RLock()
	for name, l := range s.layers {
		seen[name] = true
		out = append(out, Layer{Name: name, Size: int64(len(l.data)), ModTime: l.modTime})
	}
	s.mu.RUnlock()

	if s.dir != "" {
		entries, err := os.ReadDir(s.dir)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", s.dir, err)
		}
		for _, e := range entries {
			if e.IsDir() || filepath.Ext(e.Name()) != layerExt || seen[e.Name()] {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			out = append(out, Layer{Name: e.Name(), Size: info.Size(), ModTime: info.ModTime()})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("serving layers", "addr", addr, "dir", s.dir)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	layers, err := s.Layers()
	if err != nil {
		s.logger.Error("listing layers failed", "error", err)
		http.Error(w, "failed to list layers", http.StatusInternalServerError)
		return
	}
	if layers == nil {
		layers = []Layer{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(layers)
}

func (s *Server) handleLayer(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if filepath.Ext(name) != layerExt || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		http.NotFound(w, r)
		return
	}

	content, modTime, closeFn, err := s.open(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		s.logger.Error("opening layer failed", "layer", name, "error", err)
		http.Error(w, "failed to open layer", http.StatusInternalServerError)
		return
	}
	defer closeFn()

	w.Header().Set("Content-Type", "application/octet-stream")
	http.ServeContent(w, r, name, modTime, content)
}

// open returns the content of a layer, preferring published layers.
func (s *Server) open(name string) (io.ReadSeeker, time.Time, func(), error) {
	s.mu.RLock()
	l, ok := s.layers[name]
	s.mu.RUnlock()
	if ok {
		return bytes.NewReader(l.data), l.modTime, func() {}, nil
	}

	if s.dir == "" {
		return nil, time.Time{}, nil, os.ErrNotExist
	}
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		return nil, time.Time{}, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, time.Time{}, nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, time.Time{}, nil, os.ErrNotExist
	}
	return f, info.ModTime(), func() { f.Close() }, nil
}

// instrument records metrics and a debug log line for each layer request.
func (s *Server) instrument(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		layer := chi.URLParam(r, "name")
		if status == http.StatusNotFound {
			layer = ""
		}
		s.metrics.RecordLayerRequest(r, layer, status, ww.BytesWritten())
		s.logger.Debug("layer request",
			"method", r.Method,
			"layer", layer,
			"range", r.Header.Get("Range"),
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	}
}
