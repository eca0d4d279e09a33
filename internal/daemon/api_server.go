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
	"sync"
	"time"

	"github.com/gorilla/mux"

	"trackline/internal/api"
	"trackline/internal/config"
	"trackline/internal/ingest"
	"trackline/internal/logging"
	"trackline/internal/monitor"
	"trackline/internal/services"
)

const maxRequestBody = 1 << 20

type apiServer struct {
	bind     string
	token    string
	logger   *slog.Logger
	daemon   *Daemon
	trackSvc *api.TrackService

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	bind := strings.TrimSpace(cfg.API.Bind)
	if bind == "" {
		return nil
	}
	srv := &apiServer{
		bind:     bind,
		token:    strings.TrimSpace(cfg.API.Token),
		logger:   logging.NewComponentLogger(logger, "api-server"),
		daemon:   d,
		trackSvc: api.NewTrackService(d.store),
	}
	srv.server = &http.Server{
		Handler:           srv.router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Sweeps run synchronously inside the request.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return srv
}

func (s *apiServer) router() *mux.Router {
	r := mux.NewRouter()
	r.Use(authMiddleware(s.token))
	r.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/tracks", s.handleListTracks).Methods(http.MethodGet)
	r.HandleFunc("/api/tracks", s.handleIngest).Methods(http.MethodPost)
	r.HandleFunc("/api/tracks/{id:[0-9]+}", s.handleGetTrack).Methods(http.MethodGet)
	r.HandleFunc("/api/tracks/{id:[0-9]+}/retry", s.handleRetry).Methods(http.MethodPost)
	r.HandleFunc("/api/sweep", s.handleSweep).Methods(http.MethodPost)
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusNotFound, "not found")
	})
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
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.stop()
	}()

	s.logger.Info("api server listening",
		logging.String("address", listener.Addr().String()),
		logging.Bool("auth", s.token != ""),
	)
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	s.mu.Lock()
	s.listener = nil
	s.mu.Unlock()
}

func (s *apiServer) address() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		TracksDBPath: status.TracksDBPath,
		LockFilePath: status.LockFilePath,
		QueueBackend: status.QueueBackend,
		Workflow:     api.FromStatusSummary(status.Workflow),
		LastSweep:    api.FromReport(status.LastSweep),
		Dependencies: api.FromDependencies(status.Dependencies),
	})
}

func (s *apiServer) handleListTracks(w http.ResponseWriter, r *http.Request) {
	statuses, invalid := api.ParseStatuses(r.URL.Query()["status"])
	if len(invalid) > 0 {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", invalid[0]))
		return
	}
	list, err := s.trackSvc.List(r.Context(), statuses...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.TrackListResponse{Tracks: list})
}

func (s *apiServer) handleGetTrack(w http.ResponseWriter, r *http.Request) {
	id, ok := s.trackID(w, r)
	if !ok {
		return
	}
	track, err := s.trackSvc.Describe(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if track == nil {
		s.writeError(w, http.StatusNotFound, "track not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.TrackResponse{Track: *track})
}

func (s *apiServer) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req api.IngestRequest
	if err := decodeBody(r, &req, false); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := s.daemon.Ingest(r.Context(), ingest.Item{
		Title:      req.Title,
		AudioURL:   req.AudioURL,
		ImageURL:   req.ImageURL,
		TagString:  req.TagString,
		UpstreamID: req.UpstreamID,
	})
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, services.ErrValidation) {
			code = http.StatusBadRequest
		}
		s.writeError(w, code, err.Error())
		return
	}
	code := http.StatusOK
	if result.Created {
		code = http.StatusCreated
	}
	s.writeJSON(w, code, api.IngestResponse{
		Track:    api.FromTrack(result.Track),
		Created:  result.Created,
		Skipped:  result.Skipped,
		Enqueued: result.Enqueued,
	})
}

func (s *apiServer) handleRetry(w http.ResponseWriter, r *http.Request) {
	id, ok := s.trackID(w, r)
	if !ok {
		return
	}
	result, err := api.RetryFailedTracksByID(r.Context(), trackActions{svc: s.trackSvc, daemon: s.daemon}, []int64{id})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	code := http.StatusOK
	switch result.Tracks[0].Outcome {
	case api.RetryNotFound:
		code = http.StatusNotFound
	case api.RetryNotFailed:
		code = http.StatusConflict
	}
	s.writeJSON(w, code, result)
}

func (s *apiServer) handleSweep(w http.ResponseWriter, r *http.Request) {
	var req api.SweepRequest
	if err := decodeBody(r, &req, true); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	report, err := s.daemon.Sweep(r.Context(), req.Options(monitor.OptionsFromConfig(s.daemon.cfg)))
	if report == nil {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		s.logger.Warn("sweep completed with errors", logging.Error(err))
	}
	s.writeJSON(w, http.StatusOK, api.FromReport(report))
}

func (s *apiServer) trackID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid track id")
		return 0, false
	}
	return id, true
}

func decodeBody(r *http.Request, dst any, allowEmpty bool) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

// trackActions adapts the daemon to api.TrackActionService.
type trackActions struct {
	svc    *api.TrackService
	daemon *Daemon
}

func (a trackActions) Describe(ctx context.Context, id int64) (*api.Track, error) {
	return a.svc.Describe(ctx, id)
}

func (a trackActions) Retry(ctx context.Context, ids []int64) ([]int64, error) {
	return a.daemon.RetryFailed(ctx, ids)
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
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}
