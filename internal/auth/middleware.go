package auth

import (
	"context"
	"log"
	"net/http"
	"strings"

	"efficio-backend/internal/analytics"
)

type ctxKey string

const userIDKey ctxKey = "user_id"

// UserChecker looks up token subjects. *Store implements it.
type UserChecker interface {
	UserExists(ctx context.Context, userID string) (bool, error)
	HasRole(ctx context.Context, userID, role string) (bool, error)
}

type Middleware struct {
	secret []byte
	users  UserChecker
}

func New(secret []byte, users UserChecker) Middleware {
	return Middleware{secret: secret, users: users}
}

func (m Middleware) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(h, "Bearer ")
		userID, err := ParseToken(m.secret, tokenString)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		// tokens outlive deleted accounts
		exists, err := m.users.UserExists(r.Context(), userID)
		if err != nil {
			log.Printf("[ERROR] user lookup user_id=%s: %v", userID, err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if !exists {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		ctx := WithUserID(r.Context(), userID)
		ctx = analytics.WithUserID(ctx, userID)

		next(w, r.WithContext(ctx))
	}
}

// Admin is Wrap plus a check for the admin role.
func (m Middleware) Admin(next http.HandlerFunc) http.HandlerFunc {
	return m.Wrap(func(w http.ResponseWriter, r *http.Request) {
		uid, _ := UserIDFromContext(r.Context())

		ok, err := m.users.HasRole(r.Context(), uid, RoleAdmin)
		if err != nil {
			log.Printf("[ERROR] role check user_id=%s: %v", uid, err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if !ok {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		next(w, r)
	})
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	uid, ok := ctx.Value(userIDKey).(string)
	return uid, ok && uid != ""
}
