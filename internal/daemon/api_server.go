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
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"rudder/internal/config"
	"rudder/internal/ingest"
	"rudder/internal/logbook"
	"rudder/internal/logging"
	"rudder/internal/services"
)

const (
	maxUploadBytes  = 256 << 20
	recentLimit     = 10
	monitorLookback = time.Hour
	requestIDHeader = "X-Request-ID"
)

type apiStore interface {
	ListJobs(ctx context.Context) ([]*logbook.Job, error)
	RecentJobs(ctx context.Context, limit int) ([]*logbook.Job, error)
	JobsSince(ctx context.Context, since time.Time) ([]*logbook.Job, error)
	DuplicateGroups(ctx context.Context) ([]logbook.DuplicateGroup, error)
	CreateMaintenance(ctx context.Context, description, todoTasks string) (int64, error)
	UpdateMaintenance(ctx context.Context, id int64, update logbook.MaintenanceUpdate) error
	ListMaintenance(ctx context.Context) ([]*logbook.MaintenanceEvent, error)
}

type printService interface {
	Upload(ctx context.Context, name string, body io.Reader) (ingest.Result, error)
	Complete(ctx context.Context, id int64, req ingest.CompletionRequest) error
}

type controllerProbe interface {
	Info(ctx context.Context) error
}

type apiServer struct {
	bind   string
	logger *slog.Logger
	store  apiStore
	prints printService
	probe  controllerProbe
	now    func() time.Time

	handler  http.Handler
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		logger: logging.NewComponentLogger(logger, "api-server"),
		store:  d.store,
		prints: d.pipeline,
		probe:  d.client,
		now:    time.Now,
	}
	srv.handler = srv.routes(cfg.Paths.APIToken)
	srv.server = &http.Server{
		Handler:           srv.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) routes(token string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/prints", s.handleListPrints)
	mux.HandleFunc("POST /api/prints", s.handleUpload)
	mux.HandleFunc("POST /api/prints/{id}/complete", s.handleComplete)
	mux.HandleFunc("GET /api/maintenance", s.handleListMaintenance)
	mux.HandleFunc("POST /api/maintenance", s.handleCreateMaintenance)
	mux.HandleFunc("PUT /api/maintenance/{id}", s.handleUpdateMaintenance)
	mux.HandleFunc("GET /api/printer_status", s.handlePrinterStatus)
	mux.HandleFunc("GET /api/debug/duplicates", s.handleDuplicates)
	mux.HandleFunc("GET /api/debug/recent_prints", s.handleRecentPrints)
	mux.HandleFunc("GET /api/debug/monitor_duplicates", s.handleMonitorDuplicates)
	return withRequestID(s.requireToken(token, mux.ServeHTTP))
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil || s.bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(s.logger, "api server error", "api_server_failed", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
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

func (s *apiServer) address() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func withRequestID(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next(w, r.WithContext(services.WithRequestID(r.Context(), id)))
	})
}

func (s *apiServer) handleListPrints(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.store.ListJobs(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err, "failed to list prints")
		return
	}
	s.writeJSON(w, http.StatusOK, nonNil(jobs))
}

func (s *apiServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("gcode_file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	result, err := s.prints.Upload(r.Context(), header.Filename, file)
	if err != nil {
		s.writeServiceError(w, r, err, "Failed to create print job")
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]int64{"id": result.JobID})
}

func (s *apiServer) handleComplete(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var req ingest.CompletionRequest
	if r.ContentLength != 0 {
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			s.writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}
	if err := s.prints.Complete(r.Context(), id, req); err != nil {
		s.writeServiceError(w, r, err, "failed to complete print")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (s *apiServer) handleListMaintenance(w http.ResponseWriter, r *http.Request) {
	events, err := s.store.ListMaintenance(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err, "failed to list maintenance")
		return
	}
	s.writeJSON(w, http.StatusOK, nonNil(events))
}

func (s *apiServer) handleCreateMaintenance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Description string `json:"description"`
		TodoTasks   string `json:"todo_tasks"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	id, err := s.store.CreateMaintenance(r.Context(), req.Description, req.TodoTasks)
	if err != nil {
		s.writeServiceError(w, r, err, "failed to create maintenance event")
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *apiServer) handleUpdateMaintenance(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		Description *string `json:"description"`
		TodoTasks   *string `json:"todo_tasks"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req := logbook.MaintenanceUpdate{Description: body.Description, TodoTasks: body.TodoTasks}
	if err := s.store.UpdateMaintenance(r.Context(), id, req); err != nil {
		s.writeServiceError(w, r, err, "failed to update maintenance event")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (s *apiServer) handlePrinterStatus(w http.ResponseWriter, r *http.Request) {
	err := s.probe.Info(r.Context())
	if err != nil {
		s.logger.Debug("printer info probe failed", logging.Error(err))
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"connected": err == nil})
}

type debugPrint struct {
	ID              int64          `json:"id"`
	Filename        string         `json:"filename,omitempty"`
	StartTime       time.Time      `json:"start_time"`
	Status          logbook.Status `json:"status"`
	SourcePath      *string        `json:"gcode_path,omitempty"`
	TimeDiffSeconds *float64       `json:"time_diff_seconds,omitempty"`
}

type debugGroup struct {
	Filename string       `json:"filename"`
	Count    int          `json:"count"`
	Prints   []debugPrint `json:"prints"`
}

func (s *apiServer) handleDuplicates(w http.ResponseWriter, r *http.Request) {
	groups, err := s.store.DuplicateGroups(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err, "failed to load duplicates")
		return
	}
	out := make([]debugGroup, 0, len(groups))
	for _, group := range groups {
		dg := debugGroup{Filename: group.Filename, Count: len(group.Jobs)}
		for _, job := range group.Jobs {
			path := job.SourcePath
			dg.Prints = append(dg.Prints, debugPrint{ID: job.ID, StartTime: job.StartTime, Status: job.Status, SourcePath: &path})
		}
		out = append(out, dg)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"duplicate_groups":       out,
		"total_duplicate_groups": len(out),
	})
}

func (s *apiServer) handleRecentPrints(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.store.RecentJobs(r.Context(), recentLimit)
	if err != nil {
		s.writeServiceError(w, r, err, "failed to load recent prints")
		return
	}
	out := make([]debugPrint, 0, len(jobs))
	for _, job := range jobs {
		path := truncate(job.SourcePath, 50)
		out = append(out, debugPrint{ID: job.ID, Filename: job.Filename, StartTime: job.StartTime, Status: job.Status, SourcePath: &path})
	}
	s.writeJSON(w, http.StatusOK, out)
}

// handleMonitorDuplicates groups the last hour of prints by filename and
// reports any filename seen more than once.
func (s *apiServer) handleMonitorDuplicates(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.store.JobsSince(r.Context(), s.now().Add(-monitorLookback))
	if err != nil {
		s.writeServiceError(w, r, err, "failed to load recent prints")
		return
	}

	// jobs arrive newest first; keep first-seen filename order.
	byName := map[string][]*logbook.Job{}
	var order []string
	for _, job := range jobs {
		if _, seen := byName[job.Filename]; !seen {
			order = append(order, job.Filename)
		}
		byName[job.Filename] = append(byName[job.Filename], job)
	}

	suspicious := make([]debugGroup, 0)
	for _, name := range order {
		group := byName[name]
		if len(group) < 2 {
			continue
		}
		newest := group[0].StartTime
		dg := debugGroup{Filename: name, Count: len(group)}
		for _, job := range group {
			diff := newest.Sub(job.StartTime).Seconds()
			dg.Prints = append(dg.Prints, debugPrint{ID: job.ID, StartTime: job.StartTime, Status: job.Status, TimeDiffSeconds: &diff})
		}
		suspicious = append(suspicious, dg)
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"recent_hour_count":       len(jobs),
		"suspicious_duplicates":   suspicious,
		"total_suspicious_groups": len(suspicious),
	})
}

func (s *apiServer) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

// writeServiceError maps error markers to HTTP statuses. Internal failures
// are logged and answered with fallback.
func (s *apiServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	logger := logging.WithContext(r.Context(), s.logger)
	switch {
	case services.Is(err, services.ErrValidation):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case services.Is(err, services.ErrDuplicate):
		logger.Info("request rejected as duplicate",
			logging.String(logging.FieldEventType, "api_duplicate_rejected"),
			logging.Error(err),
		)
		s.writeError(w, http.StatusConflict, err.Error())
	case services.Is(err, services.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	default:
		logging.ErrorWithContext(logger, fallback, "api_request_failed",
			logging.Error(err),
			logging.String("path", r.URL.Path),
		)
		s.writeError(w, http.StatusInternalServerError, fallback)
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit] + "..."
}
