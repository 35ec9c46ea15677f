package api

import (
	"net/http"
)

// HealthHandler handles GET /v1/sys/health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	code := http.StatusOK
	storage := "ok"
	if !s.vault.Ready() || s.vault.Ping(r.Context()) != nil {
		code = http.StatusServiceUnavailable
		storage = "unavailable"
	}
	writeJSON(w, code, map[string]any{
		"ready":   code == http.StatusOK,
		"storage": storage,
		"version": Version,
	})
}

// SyncHandler handles POST /v1/sys/sync
func (s *Server) SyncHandler(w http.ResponseWriter, r *http.Request) {
	path := s.vault.GetEnvvaultPath()
	if !s.vault.SyncToShell(r.Context()) {
		writeError(w, http.StatusInternalServerError, "failed to write "+path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{"synced": true, "path": path},
	})
}

// SyncPathHandler handles GET /v1/sys/sync-path
func (s *Server) SyncPathHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{"path": s.vault.GetEnvvaultPath()},
	})
}

// ShellHookHandler handles POST /v1/sys/shell-hook
func (s *Server) ShellHookHandler(w http.ResponseWriter, r *http.Request) {
	changed, ok := s.vault.InstallShellHook()
	if !ok {
		writeError(w, http.StatusInternalServerError, "failed to install shell hook")
		return
	}
	if changed == nil {
		changed = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{"changed": changed},
	})
}
