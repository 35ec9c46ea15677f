package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/org/envvault/internal/secret"
	"github.com/org/envvault/pkg/models"
)

// ListSecretsHandler handles GET /v1/secrets and GET /v1/secrets?q=...
func (s *Server) ListSecretsHandler(w http.ResponseWriter, r *http.Request) {
	var items []models.SecretItem
	if q := r.URL.Query().Get("q"); q != "" {
		items = s.vault.SearchVault(r.Context(), q)
	} else {
		items = s.vault.GetAllSecrets(r.Context())
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": items})
}

// AddSecretHandler handles POST /v1/secrets
func (s *Server) AddSecretHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := secret.ValidateKey(req.Key); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := secret.ValidateValue(req.Value); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.vault.AddSecret(r.Context(), req.Key, req.Value) {
		writeError(w, http.StatusInternalServerError, "failed to store secret")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{"key": req.Key, "stored": true},
	})
}

// GetSecretValueHandler handles GET /v1/secrets/{id}/value
func (s *Server) GetSecretValueHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	value, found := s.vault.GetFullSecret(r.Context(), id)
	if !found {
		writeError(w, http.StatusNotFound, "secret not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{"id": id, "value": value},
	})
}

// UpdateSecretHandler handles PUT /v1/secrets/{id}
func (s *Server) UpdateSecretHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req struct {
		Value string `json:"value"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := secret.ValidateValue(req.Value); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.vault.UpdateSecret(r.Context(), id, req.Value) {
		writeError(w, http.StatusNotFound, "secret not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{"id": id, "updated": true},
	})
}

// DeleteSecretHandler handles DELETE /v1/secrets/{id}
func (s *Server) DeleteSecretHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if !s.vault.DeleteSecret(r.Context(), id) {
		writeError(w, http.StatusNotFound, "secret not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid secret id")
		return 0, false
	}
	return id, true
}
