package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Abrar11050/exam-conductor/internal/exam"
	"github.com/Abrar11050/exam-conductor/internal/handler"
	appI18n "github.com/Abrar11050/exam-conductor/internal/i18n"
	"github.com/Abrar11050/exam-conductor/internal/jobs"
	"github.com/Abrar11050/exam-conductor/internal/report"
)

const sessionCleanupInterval = time.Hour

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP exam server",
		RunE:  runServe,
	}
	addStoreFlags(cmd)
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.StringP("output-dir", "o", "gradesheets", "Directory for gradesheet files and job descriptors")
	f.String("status-store", "file", "Job status store (file, redis)")
	f.String("redis-addr", "localhost:6379", "Redis address for the redis status store")
	f.String("redis-password", "", "Redis password")
	f.Int("redis-db", 0, "Redis database number")
	f.Duration("job-ttl", 7*24*time.Hour, "How long redis keeps job descriptors (0 = forever)")
	f.String("amqp-url", "", "RabbitMQ URL for gradesheet events (empty disables them)")
	f.String("amqp-exchange", jobs.DefaultExchange, "Exchange for gradesheet events")
	f.StringP("lang", "l", "en", "Default language (en, ru)")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /exams)")
	f.Bool("secure-cookies", true, "Set Secure flag on session cookies")
	f.StringSlice("cors-origins", nil, "Allowed CORS origins (repeatable)")
	f.String("admin-password", "", "Initial admin password (or set EXCO_ADMIN_PASSWORD)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openBackend(ctx, v)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := seedAdmin(ctx, db, v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	statuses, closeStatuses, err := openStatusStore(ctx, v)
	if err != nil {
		return err
	}
	defer closeStatuses()

	notifier, err := jobs.NewAMQPNotifier(v.GetString("amqp-url"), v.GetString("amqp-exchange"))
	if err != nil {
		return fmt.Errorf("create notifier: %w", err)
	}
	defer notifier.Close()

	outDir := v.GetString("output-dir")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	worker := jobs.NewWorker(func(ctx context.Context) (jobs.Source, error) {
		src, err := openBackend(ctx, v)
		if err != nil {
			return nil, err
		}
		return src, nil
	}, outDir, report.Options{Labels: report.LocalizedLabels(appI18n.Translator(lang))})
	dispatcher := jobs.NewDispatcher(db, statuses, notifier, outDir)
	if n, err := dispatcher.RecoverInterrupted(ctx); err != nil {
		return fmt.Errorf("recover interrupted jobs: %w", err)
	} else if n > 0 {
		slog.Info("marked interrupted gradesheets as failed", "count", n)
	}
	dispatcher.Start(workerCtx, worker)

	if cleaner, ok := db.(interface {
		CleanupExpiredSessions(ctx context.Context) error
	}); ok {
		go cleanupSessions(ctx, cleaner.CleanupExpiredSessions)
	}

	basePath := strings.TrimRight(v.GetString("base-path"), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	h := handler.New(exam.NewService(db), db, dispatcher, handler.Config{
		BasePath:      basePath,
		SecureCookies: v.GetBool("secure-cookies"),
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if origins := v.GetStringSlice("cors-origins"); len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Accept-Language", "Content-Type", "X-CSRF-Token"},
			ExposedHeaders:   []string{"Content-Disposition", "Content-Length"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.Use(appI18n.Middleware(lang))

	if basePath != "" {
		r.Route(basePath, h.Routes)
	} else {
		h.Routes(r)
	}

	addr := v.GetString("addr")
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			"addr", addr,
			"store", v.GetString("store"),
			"status_store", v.GetString("status-store"),
			"lang", lang,
			"base_path", basePath,
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		slog.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("server shutdown", "error", err)
	}
	stopWorker()
	<-dispatcher.Done()
	return nil
}

func openStatusStore(ctx context.Context, v *viper.Viper) (jobs.StatusStore, func(), error) {
	switch kind := strings.ToLower(v.GetString("status-store")); kind {
	case "", "file":
		return jobs.NewFileStatusStore(v.GetString("output-dir")), func() {}, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     v.GetString("redis-addr"),
			Password: v.GetString("redis-password"),
			DB:       v.GetInt("redis-db"),
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		slog.Info("using redis status store", "addr", v.GetString("redis-addr"))
		closeFn := func() {
			if err := client.Close(); err != nil {
				slog.Warn("failed to close redis client", "error", err)
			}
		}
		return jobs.NewRedisStatusStore(client, v.GetDuration("job-ttl")), closeFn, nil
	default:
		return nil, nil, fmt.Errorf("unknown status store %q", kind)
	}
}

func cleanupSessions(ctx context.Context, cleanup func(context.Context) error) {
	ticker := time.NewTicker(sessionCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := cleanup(ctx); err != nil {
				slog.Warn("failed to clean up sessions", "error", err)
			}
		}
	}
}
