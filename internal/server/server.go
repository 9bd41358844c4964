// Package server exposes the HTTP surface: a liveness endpoint and the
// multipart submission endpoint. Form parsing and upload limits live here;
// the core pipeline only ever sees parsed fields and raw file buffers.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sutcoin/business/internal/config"
	"github.com/sutcoin/business/internal/model"
	"github.com/sutcoin/business/internal/service"
)

const photosField = "photos"

// SubmissionProcessor runs one submission through the pipeline.
type SubmissionProcessor interface {
	Process(ctx context.Context, fields model.SubmissionFields, files []model.UploadedFile) ([]model.UploadOutcome, error)
}

// Server hosts the HTTP handlers.
type Server struct {
	cfg       *config.Config
	processor SubmissionProcessor
	log       *zap.Logger
	server    *http.Server
	once      sync.Once
}

// New constructs a Server.
func New(cfg *config.Config, processor SubmissionProcessor, log *zap.Logger) *Server {
	return &Server{cfg: cfg, processor: processor, log: log}
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.once.Do(func() {
		s.server = &http.Server{
			Addr:    s.cfg.ListenAddr,
			Handler: s.Routes(),
		}
	})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	s.log.Info("listening", zap.String("addr", s.cfg.ListenAddr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Routes assembles the router. Exported so tests can drive it via httptest.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}))
	r.Use(s.requestLogger)
	r.Use(s.recoverer)
	r.Get("/", s.handleLiveness)
	r.Post("/submit", s.handleSubmit)
	return r
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "business intake service up")
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	maxBody := int64(s.cfg.Upload.MaxPhotos)*s.cfg.Upload.MaxPhotoSize + (1 << 20)
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.respond(w, http.StatusBadRequest, false, "expecting multipart form")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	fields := model.SubmissionFields{
		BusinessName: r.FormValue("business_name"),
		Address:      r.FormValue("address"),
		Phone:        r.FormValue("phone"),
		DiscountRate: r.FormValue("discount_rate"),
		MapLink:      r.FormValue("map_link"),
		Description:  r.FormValue("description"),
		PromoTag:     r.FormValue("promo_tag"),
	}

	files, err := s.collectPhotos(r)
	if err != nil {
		s.respond(w, http.StatusBadRequest, false, err.Error())
		return
	}

	outcomes, err := s.processor.Process(r.Context(), fields, files)
	if err != nil {
		var vErr *service.ValidationError
		if errors.As(err, &vErr) {
			s.respond(w, http.StatusBadRequest, false, vErr.Error())
			return
		}
		var mErr *service.MailError
		if errors.As(err, &mErr) {
			s.log.Error("submission failed at dispatch", zap.Error(err))
			s.respond(w, http.StatusInternalServerError, false, mErr.Error())
			return
		}
		s.log.Error("submission failed", zap.Error(err))
		s.respond(w, http.StatusInternalServerError, false, "submission processing failed")
		return
	}

	stored := 0
	for _, outcome := range outcomes {
		if !outcome.Skipped() {
			stored++
		}
	}
	s.log.Info("submission completed",
		zap.String("business", fields.BusinessName),
		zap.Int("photos_received", len(files)),
		zap.Int("photos_stored", stored))
	s.respond(w, http.StatusOK, true, "submission received")
}

// collectPhotos loads each uploaded photo into memory, enforcing the count
// and per-file size bounds before the core pipeline runs.
func (s *Server) collectPhotos(r *http.Request) ([]model.UploadedFile, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	headers := r.MultipartForm.File[photosField]
	if len(headers) == 0 {
		return nil, nil
	}
	if len(headers) > s.cfg.Upload.MaxPhotos {
		return nil, fmt.Errorf("too many photos: %d (limit %d)", len(headers), s.cfg.Upload.MaxPhotos)
	}
	files := make([]model.UploadedFile, 0, len(headers))
	for _, header := range headers {
		if header.Size > s.cfg.Upload.MaxPhotoSize {
			return nil, fmt.Errorf("photo %q exceeds the %d byte limit", header.Filename, s.cfg.Upload.MaxPhotoSize)
		}
		f, err := header.Open()
		if err != nil {
			return nil, fmt.Errorf("open photo %q: %w", header.Filename, err)
		}
		data, err := io.ReadAll(io.LimitReader(f, s.cfg.Upload.MaxPhotoSize+1))
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read photo %q: %w", header.Filename, err)
		}
		if int64(len(data)) > s.cfg.Upload.MaxPhotoSize {
			return nil, fmt.Errorf("photo %q exceeds the %d byte limit", header.Filename, s.cfg.Upload.MaxPhotoSize)
		}
		files = append(files, model.UploadedFile{OriginalName: header.Filename, Data: data})
	}
	return files, nil
}

type response struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

func (s *Server) respond(w http.ResponseWriter, status int, ok bool, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response{OK: ok, Message: message}); err != nil {
		s.log.Error("encode response", zap.Error(err))
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)))
	})
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error("panic in handler", zap.Any("panic", rec))
				s.respond(w, http.StatusInternalServerError, false, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
