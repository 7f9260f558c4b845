package auth

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"efficio-backend/internal/analytics"
)

// ObjectRemover deletes every stored object of a user.
type ObjectRemover interface {
	RemoveUser(userID string) error
}

type credentials struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

var validate = validator.New()

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func RegisterHandler(store *Store, rec *analytics.Recorder, secret []byte, ttl time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body credentials
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		body.Email = NormalizeEmail(body.Email)
		if body.Email == "" || body.Password == "" {
			http.Error(w, "email & password required", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(body); err != nil {
			http.Error(w, "invalid email or password too short", http.StatusBadRequest)
			return
		}

		hash, err := HashPassword(body.Password)
		if err != nil {
			log.Printf("[ERROR] hashing password: %v", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		u, err := store.CreateUser(r.Context(), body.Email, hash)
		if errors.Is(err, ErrEmailTaken) {
			http.Error(w, "user already exists", http.StatusConflict)
			return
		}
		if err != nil {
			log.Printf("[ERROR] register: %v", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		token, err := GenerateToken(secret, u.ID, ttl)
		if err != nil {
			log.Printf("[ERROR] signing token user_id=%s: %v", u.ID, err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		rec.Track(r, u.ID, "user_registered", nil)

		writeJSON(w, http.StatusCreated, map[string]any{
			"user_id": u.ID,
			"token":   token,
		})
	}
}

func LoginHandler(store *Store, rec *analytics.Recorder, secret []byte, ttl time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body credentials
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		u, err := store.GetByEmail(r.Context(), body.Email)
		if err != nil && !errors.Is(err, ErrUserNotFound) {
			log.Printf("[ERROR] login: %v", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if err != nil || !CheckPassword(u.Password, body.Password) {
			http.Error(w, "invalid login", http.StatusUnauthorized)
			return
		}

		token, err := GenerateToken(secret, u.ID, ttl)
		if err != nil {
			log.Printf("[ERROR] signing token user_id=%s: %v", u.ID, err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		rec.Track(r, u.ID, "user_logged_in", nil)

		writeJSON(w, http.StatusOK, map[string]any{
			"user_id": u.ID,
			"token":   token,
		})
	}
}

func MeHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		u, err := store.GetByID(r.Context(), uid)
		if errors.Is(err, ErrUserNotFound) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if err != nil {
			log.Printf("[ERROR] me user_id=%s: %v", uid, err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		isAdmin, err := store.HasRole(r.Context(), uid, RoleAdmin)
		if err != nil {
			log.Printf("[WARN] role lookup user_id=%s: %v", uid, err)
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"user_id":  u.ID,
			"email":    u.Email,
			"is_admin": isAdmin,
		})
	}
}

func LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// tokens are stateless; the client drops its copy
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

func DeleteAccountHandler(store *Store, objects ObjectRemover) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		err := store.DeleteUser(r.Context(), uid)
		if errors.Is(err, ErrUserNotFound) {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		if err != nil {
			log.Printf("[ERROR] delete account user_id=%s: %v", uid, err)
			http.Error(w, "delete account failed", http.StatusInternalServerError)
			return
		}

		if err := objects.RemoveUser(uid); err != nil {
			log.Printf("[WARN] removing objects of user_id=%s: %v", uid, err)
		}

		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}
