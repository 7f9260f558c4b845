package analytics

import (
	"io"
	"time"

	"github.com/posthog/posthog-go"
)

// Forwarder ships stored events to an external analytics service.
type Forwarder interface {
	// Forward must not block the request.
	Forward(env Envelope, event string, props map[string]any)
	Close() error
}

type enqueuer interface {
	io.Closer
	Enqueue(msg posthog.Message) error
}

// PostHogForwarder sends events to PostHog in batches.
type PostHogForwarder struct {
	client enqueuer
}

// NewForwarder returns a PostHog forwarder, or a no-op one when apiKey is
// empty.
func NewForwarder(apiKey, endpoint string) (Forwarder, error) {
	if apiKey == "" {
		return NoopForwarder{}, nil
	}

	cfg := posthog.Config{
		BatchSize: 50,
		Interval:  5 * time.Second,
		Logger:    quietPostHogLogger{},
	}
	if endpoint != "" {
		cfg.Endpoint = endpoint
	}

	client, err := posthog.NewWithConfig(apiKey, cfg)
	if err != nil {
		return nil, err
	}
	return &PostHogForwarder{client: client}, nil
}

func newPostHogForwarderWithEnqueuer(enq enqueuer) *PostHogForwarder {
	return &PostHogForwarder{client: enq}
}

func (f *PostHogForwarder) Forward(env Envelope, event string, props map[string]any) {
	p := posthog.NewProperties()
	for k, v := range props {
		p.Set(k, v)
	}
	p.Set("platform", env.Platform)
	if env.AppVersion != "" {
		p.Set("app_version", env.AppVersion)
	}
	if env.SessionID != "" {
		p.Set("$session_id", env.SessionID)
	}
	if env.DeviceLocale != "" {
		p.Set("locale", env.DeviceLocale)
	}

	_ = f.client.Enqueue(posthog.Capture{
		DistinctId: env.UserID,
		Event:      event,
		Properties: p,
	})
}

// Close flushes pending events.
func (f *PostHogForwarder) Close() error {
	return f.client.Close()
}

type NoopForwarder struct{}

func (NoopForwarder) Forward(Envelope, string, map[string]any) {}
func (NoopForwarder) Close() error                             { return nil }

type quietPostHogLogger struct{}

func (quietPostHogLogger) Debugf(string, ...interface{}) {}
func (quietPostHogLogger) Logf(string, ...interface{})   {}
func (quietPostHogLogger) Warnf(string, ...interface{})  {}
func (quietPostHogLogger) Errorf(string, ...interface{}) {}
