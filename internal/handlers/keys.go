package handlers

import (
	"net/http"

	"github.com/aigoflow/multichat-service/internal/models"
	"github.com/aigoflow/multichat-service/internal/services"
)

type KeysHandler struct {
	creds *services.CredentialService
}

func NewKeysHandler(creds *services.CredentialService) *KeysHandler {
	return &KeysHandler{creds: creds}
}

func (h *KeysHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/save-api-keys", h.handleSaveKeys)
	mux.HandleFunc("/api/api-keys", h.handleKeyStatus)
}

// keys belong to a signed-in user, never to the anonymous bucket
func sessionUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	sess := SessionFrom(r.Context())
	if sess == nil {
		writeError(w, r, models.ErrUnauthorized)
		return "", false
	}
	return sess.UserID, true
}

func (h *KeysHandler) handleSaveKeys(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}

	var req models.SaveKeysRequest
	if !decodeBody(w, r, &req) {
		return
	}

	saved, err := h.creds.SaveKeys(r.Context(), userID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"saved":  saved,
	})
}

func (h *KeysHandler) handleKeyStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}

	status, err := h.creds.Status(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
