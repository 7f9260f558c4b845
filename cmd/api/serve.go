package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/cors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"efficio-backend/internal/admin"
	"efficio-backend/internal/ai"
	"efficio-backend/internal/analytics"
	"efficio-backend/internal/auth"
	"efficio-backend/internal/config"
	"efficio-backend/internal/storage"
	"efficio-backend/internal/tasks"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, database, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer database.Close()
		log.Printf("[INFO] connected to %s", cfg.DB.Driver)

		if err := os.MkdirAll(cfg.Storage.Dir, 0o755); err != nil {
			return fmt.Errorf("creating storage dir: %w", err)
		}
		objects := storage.New(
			afero.NewBasePathFs(afero.NewOsFs(), cfg.Storage.Dir),
			cfg.Storage.PublicURL,
			cfg.Storage.MaxUploadBytes,
		)

		fwd, err := analytics.NewForwarder(cfg.PostHog.APIKey, cfg.PostHog.Endpoint)
		if err != nil {
			return fmt.Errorf("creating posthog client: %w", err)
		}
		defer func() {
			if err := fwd.Close(); err != nil {
				log.Printf("[WARN] flushing analytics: %v", err)
			}
		}()

		handler := newRouter(cfg, database, objects, analytics.NewRecorder(database, fwd), time.Now)

		server := &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Printf("[INFO] API server is running on %s", cfg.HTTP.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(stop)

		select {
		case err := <-errCh:
			return fmt.Errorf("server failed: %w", err)
		case <-stop:
		}
		log.Printf("[INFO] shut down signal received...")

		ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown failed: %w", err)
		}

		log.Printf("[INFO] shut down gracefully")
		return nil
	},
}

func newRouter(cfg *config.Config, database *sqlx.DB, objects *storage.Store, rec *analytics.Recorder, now func() time.Time) http.Handler {
	secret := []byte(cfg.JWT.Secret)
	users := auth.NewStore(database)
	taskStore := tasks.NewStore(database)
	mw := auth.New(secret, users)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OK"))
	})

	// auth
	mux.HandleFunc("POST /auth/register", auth.RegisterHandler(users, rec, secret, cfg.JWT.TTL))
	mux.HandleFunc("POST /auth/login", auth.LoginHandler(users, rec, secret, cfg.JWT.TTL))
	mux.HandleFunc("GET /auth/me", mw.Wrap(auth.MeHandler(users)))
	mux.HandleFunc("POST /auth/logout", mw.Wrap(auth.LogoutHandler()))
	mux.HandleFunc("DELETE /auth/account", mw.Wrap(auth.DeleteAccountHandler(users, objects)))

	// tasks
	mux.HandleFunc("GET /tasks", mw.Wrap(tasks.ListTasksHandler(taskStore)))
	mux.HandleFunc("POST /tasks", mw.Wrap(tasks.CreateTaskHandler(taskStore, objects, rec)))
	mux.HandleFunc("GET /tasks/calendar", mw.Wrap(tasks.CalendarHandler(taskStore, now)))
	mux.HandleFunc("GET /tasks/{id}", mw.Wrap(tasks.GetTaskHandler(taskStore)))
	mux.HandleFunc("PATCH /tasks/{id}", mw.Wrap(tasks.UpdateTaskHandler(taskStore, rec)))
	mux.HandleFunc("POST /tasks/{id}/toggle", mw.Wrap(tasks.ToggleTaskHandler(taskStore, rec)))
	mux.HandleFunc("DELETE /tasks/{id}", mw.Wrap(tasks.DeleteTaskHandler(taskStore, objects, rec)))

	// suggestions
	mux.HandleFunc("GET /suggestions", mw.Wrap(ai.SuggestionsHandler(taskStore, rec, now)))
	mux.HandleFunc("POST /suggestions/apply", mw.Wrap(ai.ApplySuggestionHandler(taskStore, rec)))

	// attachments
	mux.HandleFunc("POST /attachments", mw.Wrap(storage.UploadHandler(objects)))
	mux.HandleFunc("GET /files/{key...}", storage.ServeHandler(objects))

	// analytics
	mux.HandleFunc("POST /analytics/app-opened", mw.Wrap(analytics.AppOpenedHandler(rec)))

	// admin console
	mux.HandleFunc("GET /admin/users", mw.Admin(admin.ListUsersHandler(users)))
	mux.HandleFunc("DELETE /admin/users/{id}", mw.Admin(admin.DeleteUserHandler(users, objects, rec)))
	mux.HandleFunc("GET /admin/tasks", mw.Admin(admin.ListTasksHandler(taskStore)))
	mux.HandleFunc("GET /admin/tasks/{id}", mw.Admin(admin.GetTaskHandler(taskStore)))
	mux.HandleFunc("DELETE /admin/tasks/{id}", mw.Admin(admin.DeleteTaskHandler(taskStore, objects, rec)))

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Content-Type", "Authorization",
			"X-Platform", "X-App-Version", "X-Device-Locale", "X-Session-Id",
			"Idempotency-Key", "X-Source-Event-Key",
		},
	})

	return c.Handler(mux)
}
