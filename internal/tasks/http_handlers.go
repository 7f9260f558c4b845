package tasks

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"efficio-backend/internal/analytics"
	"efficio-backend/internal/auth"
)

// Objects resolves and removes uploaded attachment objects.
type Objects interface {
	OwnedKey(userID, url string) (string, error)
	Remove(key string) error
}

// RemoveObjects deletes attachment objects after their rows are gone.
// Failures only leave orphans behind, so they are logged.
func RemoveObjects(objs Objects, keys []string) {
	for _, k := range keys {
		if err := objs.Remove(k); err != nil {
			log.Printf("[WARN] removing object %s: %v", k, err)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		http.Error(w, "task not found", http.StatusNotFound)
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		log.Printf("[ERROR] %s: %v", op, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func ListTasksHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		list, err := store.List(r.Context(), uid)
		if err != nil {
			writeError(w, "list tasks", err)
			return
		}
		SortByPriority(list)

		writeJSON(w, http.StatusOK, list)
	}
}

func CreateTaskHandler(store *Store, objs Objects, rec *analytics.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var body CreateRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		body.Normalize()
		if err := body.Validate(); err != nil {
			writeError(w, "create task", err)
			return
		}

		t := Task{
			UserID:      uid,
			Title:       body.Title,
			Description: body.Description,
			Priority:    body.Priority,
			Frequency:   body.Frequency,
			DueDate:     body.DueDate,
		}
		for _, a := range body.Attachments {
			key, err := objs.OwnedKey(uid, a.URL)
			if err != nil {
				http.Error(w, "unknown attachment "+a.Name, http.StatusBadRequest)
				return
			}
			t.Attachments = append(t.Attachments, Attachment{Name: a.Name, URL: a.URL, ObjectKey: key})
		}

		created, err := store.Create(r.Context(), t)
		if err != nil {
			writeError(w, "create task", err)
			return
		}

		rec.Track(r, uid, "task_created", map[string]any{
			"task_id":          created.ID,
			"text_len":         len(created.Title) + len(created.Description),
			"has_deadline":     created.DueDate != nil,
			"initial_priority": string(created.Priority),
			"frequency":        string(created.Frequency),
			"attachments":      len(created.Attachments),
		})

		writeJSON(w, http.StatusCreated, created)
	}
}

func GetTaskHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		t, err := store.Get(r.Context(), uid, r.PathValue("id"))
		if err != nil {
			writeError(w, "get task", err)
			return
		}

		writeJSON(w, http.StatusOK, t)
	}
}

func UpdateTaskHandler(store *Store, rec *analytics.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var body UpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if err := body.Validate(); err != nil {
			writeError(w, "update task", err)
			return
		}

		t, err := store.Get(r.Context(), uid, r.PathValue("id"))
		if err != nil {
			writeError(w, "update task", err)
			return
		}
		before := t.Priority
		body.Apply(&t)

		updated, err := store.Update(r.Context(), t)
		if err != nil {
			writeError(w, "update task", err)
			return
		}

		rec.Track(r, uid, "task_updated", map[string]any{
			"task_id":  updated.ID,
			"text_len": len(updated.Title) + len(updated.Description),
		})
		if before != updated.Priority {
			rec.Track(r, uid, "task_priority_assigned", map[string]any{
				"task_id":         updated.ID,
				"priority_before": string(before),
				"priority_after":  string(updated.Priority),
				"priority_source": "user",
			})
		}

		writeJSON(w, http.StatusOK, updated)
	}
}

func ToggleTaskHandler(store *Store, rec *analytics.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		t, err := store.Get(r.Context(), uid, r.PathValue("id"))
		if err != nil {
			writeError(w, "toggle task", err)
			return
		}

		if err := store.SetCompleted(r.Context(), uid, t.ID, !t.Completed); err != nil {
			writeError(w, "toggle task", err)
			return
		}
		if t, err = store.Get(r.Context(), uid, t.ID); err != nil {
			writeError(w, "toggle task", err)
			return
		}

		if t.Completed {
			rec.Track(r, uid, "task_completed", map[string]any{
				"task_id":                t.ID,
				"priority_at_completion": string(t.Priority),
				"time_since_created_sec": int(time.Since(t.CreatedAt).Seconds()),
			})
		} else {
			rec.Track(r, uid, "task_uncompleted", map[string]any{
				"task_id":                t.ID,
				"priority_at_uncomplete": string(t.Priority),
			})
		}

		writeJSON(w, http.StatusOK, t)
	}
}

func DeleteTaskHandler(store *Store, objs Objects, rec *analytics.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		id := r.PathValue("id")
		keys, err := store.Delete(r.Context(), uid, id)
		if err != nil {
			writeError(w, "delete task", err)
			return
		}
		RemoveObjects(objs, keys)

		rec.Track(r, uid, "task_deleted", map[string]any{"task_id": id})

		w.WriteHeader(http.StatusNoContent)
	}
}

// CalendarHandler serves GET /tasks/calendar?date=YYYY-MM-DD&tz=Area/City.
func CalendarHandler(store *Store, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		q := r.URL.Query()
		day, err := ParseDay(q.Get("date"), q.Get("tz"), now())
		if err != nil {
			writeError(w, "calendar", err)
			return
		}

		list, err := store.List(r.Context(), uid)
		if err != nil {
			writeError(w, "calendar", err)
			return
		}

		view := Calendar(list, day)
		SortByPriority(view.Tasks)

		writeJSON(w, http.StatusOK, view)
	}
}
