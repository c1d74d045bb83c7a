package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"

	"reel/internal/api"
	"reel/internal/config"
	"reel/internal/logging"
	"reel/internal/services"
	"reel/internal/store"
	"reel/internal/textutil"
)

type apiServer struct {
	bind    string
	token   string
	logger  *slog.Logger
	daemon  *Daemon
	records *api.RecordingsService
	metrics *metricsSet

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:    bind,
		token:   cfg.Paths.APIToken,
		logger:  logger,
		daemon:  d,
		records: api.NewRecordingsService(d.store),
		metrics: newMetricsSet(d),
	}

	srv.server = &http.Server{
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(bearerAuth(s.token))
	r.Get("/api/status", s.handleStatus)
	r.Get("/api/recordings", s.handleRecordings)
	r.Get("/api/recordings/{id}", s.handleRecording)
	r.Post("/api/recordings/{id}/export", s.handleExport)
	r.Get("/api/meter", s.handleMeter)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.handler())
	}
	return r
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", slog.String("error", err.Error()))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", slog.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// addr reports the bound listen address, empty before start.
func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	payload := api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		Version:      status.Version,
		StartedAt:    api.FormatTime(status.StartedAt),
		DatabasePath: status.DatabasePath,
		LockFilePath: status.LockFilePath,
		Capture:      api.FromStateSnapshot(status.Capture),
		Store: api.StoreSummary{
			Recordings: status.Store.Recordings,
			TotalBytes: status.Store.TotalBytes,
		},
		Dependencies: api.FromDependencyStatuses(status.Dependencies),
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleRecordings(w http.ResponseWriter, r *http.Request) {
	items, err := s.records.List(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.RecordingListResponse{Items: items})
}

func (s *apiServer) handleRecording(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	item, err := s.records.Describe(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if item == nil {
		s.writeError(w, http.StatusNotFound, "recording not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.RecordingResponse{Item: *item})
}

func (s *apiServer) handleExport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req api.ExportRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "read request body")
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid export request body")
			return
		}
	}

	rec, result, err := s.daemon.TranscodeRecording(r.Context(), id, req.ToTranscodeRequest())
	if err != nil {
		switch {
		case errors.Is(err, store.ErrRecordingNotFound):
			s.writeError(w, http.StatusNotFound, "recording not found")
		case errors.Is(err, services.ErrValidation),
			errors.Is(err, services.ErrUnsupportedContainer),
			errors.Is(err, services.ErrUnsupportedBitDepth),
			errors.Is(err, services.ErrUnsupportedChannelLayout):
			s.writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	s.metrics.observeTranscode(result.Container)

	name := textutil.SanitizeFileName(rec.Name)
	if name == "" {
		name = rec.ID
	}
	w.Header().Set("Content-Type", containerMIME(result.Container))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+"."+result.Container))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result.Data); err != nil {
		s.log().Warn("export response write failed", logging.Error(err))
	}
}

func containerMIME(container string) string {
	switch container {
	case "mp3":
		return "audio/mpeg"
	case "ogg":
		return "audio/ogg"
	default:
		return "audio/wav"
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", slog.String("error", err.Error()))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
