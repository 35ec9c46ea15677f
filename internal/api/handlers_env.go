package api

import (
	"errors"
	"io"
	"net/http"
)

// ImportEnvHandler handles POST /v1/env/import. The body is raw .env text.
func (s *Server) ImportEnvHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "import body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "reading import body: "+err.Error())
		return
	}
	res := s.vault.ImportEnvDetailed(r.Context(), string(body))
	writeJSON(w, http.StatusOK, map[string]any{"data": res})
}

// ExportEnvHandler handles GET /v1/env/export
func (s *Server) ExportEnvHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, s.vault.ExportEnv(r.Context())) //nolint:errcheck
}
