package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sakif/flatblog/internal/auth"
	"github.com/sakif/flatblog/internal/clock"
	"github.com/sakif/flatblog/internal/config"
	"github.com/sakif/flatblog/internal/server"
	"github.com/sakif/flatblog/internal/service"
)

// version is overridden at build time:
//
//	go build -ldflags "-X main.version=1.2.0" ./cmd/server
var version = "dev"

func newRootCommand() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:          "flatblog",
		Short:        "A small multi-user blog backed by flat JSON files",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to a config file (YAML, TOML or JSON)")

	root.AddCommand(
		newServeCommand(&configFile),
		newUserCommand(&configFile),
		newVersionCommand(),
	)
	return root
}

func newServeCommand(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the blog HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(*configFile, cmd.OutOrStdout())
			if err != nil {
				return err
			}

			if cfg.UsesDevSecret() {
				logger.Warn("session.secret not set, using the built-in development secret; set FLATBLOG_SESSION_SECRET in production")
			}

			srv, err := server.New(cfg, logger)
			if err != nil {
				return fmt.Errorf("creating server: %w", err)
			}
			return srv.Start()
		},
	}
}

func newUserCommand(configFile *string) *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}

	var username, password, email string
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(*configFile, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if err := createUser(cmd.Context(), cfg, logger, username, password, email); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %q\n", username)
			return nil
		},
	}
	createCmd.Flags().StringVar(&username, "username", "", "username (required)")
	createCmd.Flags().StringVar(&password, "password", "", "password (required)")
	createCmd.Flags().StringVar(&email, "email", "", "email address")
	createCmd.MarkFlagRequired("username")
	createCmd.MarkFlagRequired("password")

	userCmd.AddCommand(createCmd)
	return userCmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "flatblog %s\n", version)
		},
	}
}

// createUser registers an account straight into the configured store,
// through the same IdentityService the web form uses.
func createUser(ctx context.Context, cfg *config.Config, logger *slog.Logger, username, password, email string) error {
	store, err := server.OpenStore(cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	passwords, err := auth.NewPasswordServiceWithCost(cfg.Password.Cost)
	if err != nil {
		return err
	}
	if err := service.Bootstrap(ctx, store, passwords); err != nil {
		return err
	}

	// No one logs in from the command line; the session store is unused.
	sessions := auth.NewSessionStore(cfg.Session.TTL, clock.NewRealClock())
	identity := service.NewIdentityService(store, passwords, sessions, logger)
	return identity.Register(ctx, username, password, email)
}

// setup loads the configuration and builds the logger it describes.
func setup(configFile string, w io.Writer) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cfg.Log, w)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
