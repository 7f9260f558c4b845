package analytics

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type CtxKey string

const (
	ctxUserIDKey CtxKey = "analytics_user_id"
)

// Envelope is what we store with every event.
type Envelope struct {
	UserID       string
	SessionID    string
	Platform     string
	AppVersion   string
	DeviceLocale string
}

// FromRequest extracts event envelope fields from request headers.
func FromRequest(r *http.Request) Envelope {
	platform := strings.ToLower(strings.TrimSpace(r.Header.Get("X-Platform")))
	switch platform {
	case "ios", "android", "web":
	default:
		platform = "unknown"
	}

	locale := strings.TrimSpace(r.Header.Get("Accept-Language"))
	if locale == "" {
		locale = strings.TrimSpace(r.Header.Get("X-Device-Locale"))
	}

	return Envelope{
		SessionID:    strings.TrimSpace(r.Header.Get("X-Session-Id")),
		Platform:     platform,
		AppVersion:   strings.TrimSpace(r.Header.Get("X-App-Version")),
		DeviceLocale: locale,
	}
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxUserIDKey, userID)
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	uid, ok := ctx.Value(ctxUserIDKey).(string)
	return uid, ok && uid != ""
}

// SourceEventKeyFromRequest returns the client idempotency key, if any.
// Events with a key that was already stored are dropped.
func SourceEventKeyFromRequest(r *http.Request) string {
	k := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if k != "" {
		return k
	}
	return strings.TrimSpace(r.Header.Get("X-Source-Event-Key"))
}

// Recorder stores analytics events and optionally forwards them.
type Recorder struct {
	db  *sqlx.DB
	fwd Forwarder
	now func() time.Time
}

// NewRecorder returns a Recorder writing to db. A nil fwd disables forwarding.
func NewRecorder(db *sqlx.DB, fwd Forwarder) *Recorder {
	if fwd == nil {
		fwd = NoopForwarder{}
	}
	return &Recorder{db: db, fwd: fwd, now: time.Now}
}

// Log inserts one analytics event. Callers pass sanitized props only; raw
// task text never goes here.
func (rec *Recorder) Log(ctx context.Context, env Envelope, eventName string, props map[string]any, sourceEventKey string) error {
	if rec == nil || eventName == "" {
		return nil
	}

	userID := env.UserID
	if userID == "" {
		uid, ok := UserIDFromContext(ctx)
		if !ok {
			return nil
		}
		userID = uid
		env.UserID = uid
	}

	if props == nil {
		props = map[string]any{}
	}
	b, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("encoding %s properties: %w", eventName, err)
	}

	res, err := rec.db.ExecContext(ctx, rec.db.Rebind(`
		INSERT INTO analytics_events (
			id, event_name, event_time,
			user_id, session_id,
			platform, app_version, device_locale,
			source_event_key,
			properties
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source_event_key) DO NOTHING`),
		uuid.NewString(), eventName, rec.now().UTC(),
		userID, nullIfEmpty(env.SessionID),
		env.Platform, env.AppVersion, nullIfEmpty(env.DeviceLocale),
		nullIfEmpty(sourceEventKey),
		string(b),
	)
	if err != nil {
		return fmt.Errorf("storing %s event: %w", eventName, err)
	}

	// duplicate idempotency key
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	rec.fwd.Forward(env, eventName, props)
	return nil
}

// Track logs an event from inside a handler. Failures are logged and
// otherwise ignored. The request's idempotency key is scoped to the event
// name, so one request may record several distinct events.
func (rec *Recorder) Track(r *http.Request, userID, eventName string, props map[string]any) {
	env := FromRequest(r)
	env.UserID = userID
	key := SourceEventKeyFromRequest(r)
	if key != "" {
		key += ":" + eventName
	}
	if err := rec.Log(r.Context(), env, eventName, props, key); err != nil {
		log.Printf("[WARN] analytics %s user_id=%s: %v", eventName, userID, err)
	}
}

func nullIfEmpty(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}
