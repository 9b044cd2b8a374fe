package web

import (
	"embed"
	"errors"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"portrait-studio/internal/handle"
	"portrait-studio/internal/metrics"
	"portrait-studio/internal/portrait"
	"portrait-studio/internal/upload"
)

//go:embed static/*
var staticFS embed.FS

const surface = "web"

type Options struct {
	Registry  *handle.Registry
	Generator portrait.Generator
	Metrics   *metrics.Metrics
	Logger    *slog.Logger

	// MetricsHandler is mounted at /metrics when set.
	MetricsHandler http.Handler

	MaxUploadBytes  int64
	ReadTimeout     time.Duration
	GenerateTimeout time.Duration
	CheckOrigin     func(r *http.Request) bool
}

type Server struct {
	registry  *handle.Registry
	generator portrait.Generator
	metrics   *metrics.Metrics
	logger    *slog.Logger
	tmpl      *template.Template
	upgrader  websocket.Upgrader
	router    chi.Router

	maxUploadBytes  int64
	readTimeout     time.Duration
	generateTimeout time.Duration
}

func New(opts Options) (*Server, error) {
	if opts.Registry == nil {
		return nil, errors.New("handle registry is nil")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	generator := opts.Generator
	if generator == nil {
		generator = portrait.Unavailable{}
	}

	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 25 << 20
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 5 * time.Minute
	}
	generateTimeout := opts.GenerateTimeout
	if generateTimeout <= 0 {
		generateTimeout = 240 * time.Second
	}

	s := &Server{
		registry:  opts.Registry,
		generator: generator,
		metrics:   opts.Metrics,
		logger:    logger,
		tmpl:      tmpl,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  32 << 10,
			WriteBufferSize: 32 << 10,
			CheckOrigin:     opts.CheckOrigin,
		},
		maxUploadBytes:  maxUpload,
		readTimeout:     readTimeout,
		generateTimeout: generateTimeout,
	}

	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(withLogging(logger))

	r.Get("/", s.handleIndex)
	r.Get("/ws", s.handleSocket)
	r.Get(blobPath+"{id}", s.handleBlob)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))
	if opts.MetricsHandler != nil {
		r.Handle("/metrics", opts.MetricsHandler)
	}

	s.router = r
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	// The live widget belongs to the websocket.
	view := upload.EmptyView("")

	style := portrait.ParseArgs(r.URL.Query().Get("style"), portrait.Options{}).Style

	w.Header().Set("content-type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, "index", pageData{Widget: newWidgetData(view), Style: style}); err != nil {
		s.logger.Error("render index failed", "err", err)
	}
}

func (s *Server) handleBlob(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	b, err := s.registry.Open(handle.Handle(id))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	mediaType := b.MediaType
	if mediaType == "" {
		mediaType = http.DetectContentType(b.Payload)
	}
	w.Header().Set("content-type", mediaType)
	w.Header().Set("cache-control", "no-store")
	w.Header().Set("x-content-type-options", "nosniff")
	// Any image/* type is accepted, SVG included.
	w.Header().Set("content-security-policy", "default-src 'none'; style-src 'unsafe-inline'; sandbox")
	_, _ = w.Write(b.Payload)
}

func withLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Info("http", "method", r.Method, "path", r.URL.Path, "dur_ms", time.Since(start).Milliseconds())
		})
	}
}
