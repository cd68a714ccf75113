package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"courier/internal/config"
	"courier/internal/ledger"
	"courier/internal/logging"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

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
		bind:   bind,
		logger: logging.WithComponent(logger, "api-server"),
		daemon: d,
	}

	token := cfg.Paths.APIToken
	mux := http.NewServeMux()
	mux.HandleFunc("/api/artifacts", authMiddleware(token, srv.handleArtifacts))
	mux.HandleFunc("/api/artifacts/", authMiddleware(token, srv.handleArtifactConfirm))
	mux.HandleFunc("/api/status", authMiddleware(token, srv.handleStatus))
	mux.HandleFunc("/api/jobs/", authMiddleware(token, srv.handleJobTrigger))

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
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
			s.logger.Error("api server error", logging.Error(err))
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

func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleArtifacts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	artifacts, err := s.daemon.store.ReadyArtifacts(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, artifacts)
}

func (s *apiServer) handleArtifactConfirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/artifacts/")
	hash, action, found := strings.Cut(rest, "/")
	if !found || hash == "" || action != "confirm" {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}

	err := s.daemon.store.FinalizeArtifact(r.Context(), hash)
	switch {
	case err == nil:
		s.logger.Info("artifact confirmed", logging.String(logging.FieldHash, hash))
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "archived"})
	case errors.Is(err, ledger.ErrTaskNotFound):
		s.writeError(w, http.StatusNotFound, "artifact not found")
	case errors.Is(err, ledger.ErrAlreadyArchived):
		s.writeError(w, http.StatusConflict, "artifact already archived")
	default:
		s.logger.Error("artifact finalize failed",
			logging.String(logging.FieldHash, hash),
			logging.Error(err),
		)
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status, err := s.daemon.Status(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	tasks := make(map[string]int, len(status.Tasks))
	for st, count := range status.Tasks {
		tasks[st.String()] = count
	}
	s.writeJSON(w, http.StatusOK, statusResponse{
		Running:      status.Running,
		PID:          status.PID,
		LedgerDBPath: status.LedgerDBPath,
		LockFilePath: status.LockFilePath,
		Tasks:        tasks,
	})
}

func (s *apiServer) handleJobTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	cmd, ok := ParseCommand(name)
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown job")
		return
	}

	switch err := s.daemon.Enqueue(cmd); {
	case err == nil:
		s.writeJSON(w, http.StatusAccepted, map[string]string{"job": string(cmd), "status": "queued"})
	case errors.Is(err, ErrCommandBacklog):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

type statusResponse struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	LedgerDBPath string         `json:"ledger_db_path"`
	LockFilePath string         `json:"lock_file_path"`
	Tasks        map[string]int `json:"tasks"`
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
