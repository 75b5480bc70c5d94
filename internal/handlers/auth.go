package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/aigoflow/multichat-service/internal/models"
	"github.com/aigoflow/multichat-service/internal/services"
)

type AuthHandler struct {
	auth       *services.AuthService
	cookieName string
}

func NewAuthHandler(auth *services.AuthService, cookieName string) *AuthHandler {
	return &AuthHandler{
		auth:       auth,
		cookieName: cookieName,
	}
}

func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/login", h.handleLogin)
	mux.HandleFunc("/logout", h.handleLogout)
	mux.HandleFunc("/api/oauth/google/callback", h.handleCallback)
	mux.HandleFunc("/api/session", h.handleSession)
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}

	if sess := SessionFrom(r.Context()); sess != nil {
		writeJSON(w, http.StatusOK, models.LoginResult{Status: "ok", UserID: sess.UserID, Guest: sess.Guest})
		return
	}

	res, err := h.auth.Login(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if res.Session != nil {
		h.setCookie(w, r, res.Session)
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *AuthHandler) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}
	sess := SessionFrom(r.Context())
	if sess == nil {
		writeError(w, r, models.ErrUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *AuthHandler) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		writeError(w, r, fmt.Errorf("%w: %s", models.ErrUnauthorized, e))
		return
	}

	sess, err := h.auth.Callback(r.Context(), q.Get("state"), q.Get("code"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.setCookie(w, r, sess)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}

	if c, err := r.Cookie(h.cookieName); err == nil {
		if err := h.auth.Logout(r.Context(), c.Value); err != nil {
			writeError(w, r, err)
			return
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *AuthHandler) setCookie(w http.ResponseWriter, r *http.Request, sess *models.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		MaxAge:   int(time.Until(sess.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}
