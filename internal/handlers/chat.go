package handlers

import (
	"net/http"
	"strconv"

	"github.com/oklog/ulid/v2"

	"github.com/aigoflow/multichat-service/internal/models"
	"github.com/aigoflow/multichat-service/internal/services"
)

type ChatHandler struct {
	chat *services.ChatService
}

func NewChatHandler(chat *services.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/chat", h.handleChat)
	mux.HandleFunc("/api/select_response", h.handleSelect)
	mux.HandleFunc("/api/history", h.handleHistory)
	mux.HandleFunc("/api/calls", h.handleCalls)
}

func (h *ChatHandler) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}

	var req models.ChatRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.ReqID == "" {
		req.ReqID = "http-" + ulid.Make().String()
	}
	if traceID := r.Header.Get("X-Trace-ID"); traceID != "" {
		req.TraceID = traceID
	}
	req.UserID = requestUser(r)

	resp, err := h.chat.ProcessChat(r.Context(), req, "http.chat")
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ChatHandler) handleSelect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}

	var entry models.HistoryEntry
	if !decodeBody(w, r, &entry) {
		return
	}
	entry.UserID = requestUser(r)

	if err := h.chat.SelectResponse(r.Context(), entry); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (h *ChatHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}

	history, err := h.chat.History(r.Context(), requestUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *ChatHandler) handleCalls(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}

	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}

	logs, err := h.chat.GetRequestLogs(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if logs == nil {
		logs = []*models.CallLog{}
	}
	writeJSON(w, http.StatusOK, logs)
}
