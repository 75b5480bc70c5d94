package handlers

import (
	"net/http"

	"github.com/aigoflow/multichat-service/internal/models"
	"github.com/aigoflow/multichat-service/internal/services"
)

type FeedbackHandler struct {
	feedback *services.FeedbackService
}

func NewFeedbackHandler(feedback *services.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{feedback: feedback}
}

func (h *FeedbackHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/feedback", h.handleFeedback)
}

// handleFeedback accepts a JSON body or message_id, service and
// feedback query parameters
func (h *FeedbackHandler) handleFeedback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}

	var fb models.Feedback
	if q := r.URL.Query(); q.Get("message_id") != "" {
		fb = models.Feedback{
			MessageID: q.Get("message_id"),
			Service:   q.Get("service"),
			Feedback:  q.Get("feedback"),
		}
		if !validateRequest(w, &fb) {
			return
		}
	} else if !decodeBody(w, r, &fb) {
		return
	}
	fb.UserID = requestUser(r)

	if _, err := h.feedback.Record(r.Context(), fb); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}
