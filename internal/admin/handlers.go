package admin

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"efficio-backend/internal/analytics"
	"efficio-backend/internal/auth"
	"efficio-backend/internal/tasks"
)

// Objects removes stored attachment objects.
type Objects interface {
	tasks.Objects
	auth.ObjectRemover
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func ListUsersHandler(users *auth.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := users.ListUsers(r.Context())
		if err != nil {
			log.Printf("[ERROR] admin list users: %v", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, list)
	}
}

// DeleteUserHandler removes a user and everything they own. Admins cannot
// delete their own account here.
func DeleteUserHandler(users *auth.Store, objs Objects, rec *analytics.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		adminID, _ := auth.UserIDFromContext(r.Context())
		id := r.PathValue("id")

		if id == adminID {
			http.Error(w, "cannot delete yourself", http.StatusBadRequest)
			return
		}

		err := users.DeleteUser(r.Context(), id)
		if errors.Is(err, auth.ErrUserNotFound) {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		if err != nil {
			log.Printf("[ERROR] admin delete user_id=%s: %v", id, err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		if err := objs.RemoveUser(id); err != nil {
			log.Printf("[WARN] removing objects of user_id=%s: %v", id, err)
		}

		rec.Track(r, adminID, "admin_user_deleted", map[string]any{"user_id": id})

		w.WriteHeader(http.StatusNoContent)
	}
}

func ListTasksHandler(store *tasks.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.ListAll(r.Context())
		if err != nil {
			log.Printf("[ERROR] admin list tasks: %v", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, list)
	}
}

func GetTaskHandler(store *tasks.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := store.GetAny(r.Context(), r.PathValue("id"))
		if errors.Is(err, tasks.ErrNotFound) {
			http.Error(w, "task not found", http.StatusNotFound)
			return
		}
		if err != nil {
			log.Printf("[ERROR] admin get task: %v", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, t)
	}
}

func DeleteTaskHandler(store *tasks.Store, objs Objects, rec *analytics.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		adminID, _ := auth.UserIDFromContext(r.Context())
		id := r.PathValue("id")

		keys, err := store.DeleteAny(r.Context(), id)
		if errors.Is(err, tasks.ErrNotFound) {
			http.Error(w, "task not found", http.StatusNotFound)
			return
		}
		if err != nil {
			log.Printf("[ERROR] admin delete task_id=%s: %v", id, err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		tasks.RemoveObjects(objs, keys)

		rec.Track(r, adminID, "admin_task_deleted", map[string]any{"task_id": id})

		w.WriteHeader(http.StatusNoContent)
	}
}
