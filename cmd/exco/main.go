package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/Abrar11050/exam-conductor/internal/exam"
	"github.com/Abrar11050/exam-conductor/internal/grading"
	"github.com/Abrar11050/exam-conductor/internal/handler"
	"github.com/Abrar11050/exam-conductor/internal/model"
	"github.com/Abrar11050/exam-conductor/internal/store"
	"github.com/Abrar11050/exam-conductor/internal/store/mongostore"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "exco",
		Short: "Timed multiple-choice exam server with batch gradesheets",
	}

	serve := serveCmd()
	root.AddCommand(serve, gradeCmd(), useraddCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

// addStoreFlags registers the flags every command needs to reach the database.
func addStoreFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("store", "sqlite", "Storage backend (sqlite, mongo)")
	f.String("db", "exco.db", "SQLite database path")
	f.String("mongo-uri", "mongodb://localhost:27017", "MongoDB connection URI")
	f.String("mongo-db", "exco", "MongoDB database name")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func setupLogging(v *viper.Viper) {
	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("EXCO")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("exco")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/exco")
	v.AddConfigPath("/etc/exco")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// backend is what both storage implementations provide.
type backend interface {
	exam.Store
	handler.Accounts
	grading.Source
	UserCount(ctx context.Context) (int, error)
	Close() error
}

var (
	_ backend = (*store.Store)(nil)
	_ backend = (*mongostore.Store)(nil)
)

func openBackend(ctx context.Context, v *viper.Viper) (backend, error) {
	switch kind := strings.ToLower(v.GetString("store")); kind {
	case "", "sqlite":
		s, err := store.New(v.GetString("db"))
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
		return s, nil
	case "mongo":
		s, err := mongostore.New(ctx, v.GetString("mongo-uri"), v.GetString("mongo-db"))
		if err != nil {
			return nil, fmt.Errorf("open mongo database: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store %q", kind)
	}
}

func seedAdmin(ctx context.Context, db backend, password string) error {
	count, err := db.UserCount(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if password == "" {
		return fmt.Errorf("admin password is required: set --admin-password flag or EXCO_ADMIN_PASSWORD env var")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	err = db.CreateUser(ctx, &model.User{
		Username:     "admin",
		FirstName:    "Administrator",
		PasswordHash: string(hash),
		Role:         model.UserRoleAdmin,
		Active:       true,
	})
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	slog.Info("seeded default admin user", "username", "admin")
	return nil
}
