package ai

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"efficio-backend/internal/analytics"
	"efficio-backend/internal/auth"
	"efficio-backend/internal/tasks"
)

const wellPrioritized = "Your tasks are well prioritized"

type suggestionsResponse struct {
	Suggestions []Suggestion `json:"suggestions"`
	Message     string       `json:"message,omitempty"`
}

// SuggestionsHandler serves GET /suggestions for the caller's tasks.
func SuggestionsHandler(store *tasks.Store, rec *analytics.Recorder, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		list, err := store.List(r.Context(), uid)
		if err != nil {
			log.Printf("[ERROR] suggestions user_id=%s: %v", uid, err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		resp := suggestionsResponse{Suggestions: Generate(list, now())}
		if len(resp.Suggestions) == 0 {
			resp.Message = wellPrioritized
		}

		rec.Track(r, uid, "suggestions_generated", map[string]any{
			"task_count":       len(list),
			"suggestion_count": len(resp.Suggestions),
		})

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// ApplySuggestionHandler serves POST /suggestions/apply and sets the
// suggested priority on one of the caller's tasks.
func ApplySuggestionHandler(store *tasks.Store, rec *analytics.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var body struct {
			TaskID            string         `json:"task_id"`
			SuggestedPriority tasks.Priority `json:"suggested_priority"`
			Reason            string         `json:"reason"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if body.TaskID == "" {
			http.Error(w, "task_id required", http.StatusBadRequest)
			return
		}
		if !body.SuggestedPriority.Valid() {
			http.Error(w, "invalid suggested_priority", http.StatusBadRequest)
			return
		}

		t, err := store.Get(r.Context(), uid, body.TaskID)
		if errors.Is(err, tasks.ErrNotFound) {
			http.Error(w, "task not found", http.StatusNotFound)
			return
		}
		if err != nil {
			log.Printf("[ERROR] apply suggestion task_id=%s: %v", body.TaskID, err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		before := t.Priority
		t.Priority = body.SuggestedPriority
		updated, err := store.Update(r.Context(), t)
		if err != nil {
			log.Printf("[ERROR] apply suggestion task_id=%s: %v", body.TaskID, err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		rec.Track(r, uid, "suggestion_applied", map[string]any{
			"task_id":         updated.ID,
			"priority_before": string(before),
			"priority_after":  string(updated.Priority),
			"reason":          knownReason(body.Reason),
		})

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(updated)
	}
}

func knownReason(reason string) string {
	switch reason {
	case ReasonDueSoon, ReasonDueThisWeek, ReasonOverdue, ReasonDailyRoutine:
		return reason
	}
	return "unknown"
}
