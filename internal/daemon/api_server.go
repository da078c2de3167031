package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"scriber/internal/api"
	"scriber/internal/config"
	"scriber/internal/logging"
	"scriber/internal/media"
	"scriber/internal/queue"
	"scriber/internal/services"
)

// maxUploadBytes bounds multipart submissions. Large lecture recordings
// fit comfortably; anything bigger should arrive by path or URL.
const maxUploadBytes = 4 << 30

type apiServer struct {
	bind    string
	logger  *slog.Logger
	daemon  *Daemon
	jobs    *api.JobService
	uploads string

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}

	srv := &apiServer{
		bind:    bind,
		logger:  logging.NewComponentLogger(logger, "api"),
		daemon:  d,
		jobs:    api.NewJobService(cfg, d.store),
		uploads: cfg.Paths.UploadDir,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", srv.handleStatus)
	mux.HandleFunc("POST /api/jobs", srv.handleSubmit)
	mux.HandleFunc("POST /api/jobs/upload", srv.handleUpload)
	mux.HandleFunc("GET /api/jobs", srv.handleList)
	mux.HandleFunc("GET /api/jobs/{id}", srv.handleGet)
	mux.HandleFunc("GET /api/jobs/{id}/result", srv.handleResult)
	mux.HandleFunc("POST /api/jobs/{id}/cancel", srv.handleCancel)
	mux.HandleFunc("DELETE /api/jobs/{id}", srv.handleDelete)

	srv.server = &http.Server{
		Handler:           correlationMiddleware(srv.logger, authMiddleware(cfg.Paths.APIToken, mux)),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
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

func (s *apiServer) addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	dependencies := make([]api.DependencyStatus, 0, len(status.Dependencies))
	for _, dep := range status.Dependencies {
		dependencies = append(dependencies, api.DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	payload := api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		QueueDBPath:  status.QueueDBPath,
		LockFilePath: status.LockFilePath,
		Workflow: api.WorkflowStatus{
			Running:    status.Workers,
			QueueStats: api.MergeJobStats(status.QueueStats),
		},
		Dependencies: dependencies,
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req api.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	view, err := s.jobs.Submit(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.JobResponse{Job: view})
}

func (s *apiServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("media")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "multipart field 'media' is required")
		return
	}
	defer file.Close()

	if _, err := media.ValidateExtension("upload", header.Filename); err != nil {
		s.writeServiceError(w, err)
		return
	}

	dir := filepath.Join(s.uploads, uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	dest := filepath.Join(dir, filepath.Base(header.Filename))
	out, err := os.Create(dest)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		_ = os.RemoveAll(dir)
		s.writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	if err := out.Close(); err != nil {
		_ = os.RemoveAll(dir)
		s.writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	req := submitRequestFromForm(r)
	req.SourceKind = string(queue.SourceUpload)
	req.Source = dest
	view, err := s.jobs.Submit(r.Context(), req)
	if err != nil {
		_ = os.RemoveAll(dir)
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.JobResponse{Job: view})
}

func submitRequestFromForm(r *http.Request) api.SubmitRequest {
	req := api.SubmitRequest{
		Model:    r.FormValue("model"),
		Language: r.FormValue("language"),
		Format:   r.FormValue("format"),
		Device:   r.FormValue("device"),
	}
	if value := r.FormValue("maxLineLength"); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			req.MaxLineLength = parsed
		}
	}
	if value := r.FormValue("halfPrecision"); value == "true" || value == "1" {
		req.HalfPrecision = true
	}
	return req
}

func (s *apiServer) handleList(w http.ResponseWriter, r *http.Request) {
	var statuses []queue.Status
	for _, value := range r.URL.Query()["status"] {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		status, ok := queue.ParseStatus(trimmed)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", trimmed))
			return
		}
		statuses = append(statuses, status)
	}

	jobs, err := s.jobs.List(r.Context(), statuses...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobListResponse{Jobs: jobs})
}

func (s *apiServer) handleGet(w http.ResponseWriter, r *http.Request) {
	view, err := s.jobs.Describe(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if view == nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobResponse{Job: *view})
}

func (s *apiServer) handleResult(w http.ResponseWriter, r *http.Request) {
	view, err := s.jobs.Describe(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if view == nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if view.Status != string(queue.StatusDone) || view.ResultPath == "" {
		s.writeError(w, http.StatusConflict, "job has no result yet")
		return
	}
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", filepath.Base(view.ResultPath)))
	http.ServeFile(w, r, view.ResultPath)
}

func (s *apiServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	view, err := s.jobs.Describe(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if view == nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	cancelled, err := s.jobs.Cancel(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.CancelResponse{Cancelled: cancelled})
}

func (s *apiServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.jobs.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !deleted {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.DeleteResponse{Deleted: true})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("failed to encode api response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

// writeServiceError maps classified stage errors onto HTTP statuses so
// clients can distinguish bad input from daemon trouble.
func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch services.KindOf(err) {
	case services.KindUnsupportedFormat:
		status = http.StatusUnprocessableEntity
	case services.KindResourceUnavailable:
		status = http.StatusBadGateway
	case services.KindDeviceError:
		status = http.StatusUnprocessableEntity
	}
	s.writeError(w, status, services.UserMessage(err))
}
