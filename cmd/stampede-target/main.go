// Command stampede-target serves a mock of the API the built-in scenarios
// browse, for trying stampede locally.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wesleyorama2/stampede/internal/target"
)

type serveOptions struct {
	addr        string
	username    string
	password    string
	token       string
	requireAuth bool
	latency     time.Duration
	verbose     bool
}

func newCommand() *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:           "stampede-target",
		Short:         "Serve a mock target API for stampede",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.addr, "addr", ":8000", "Listen address")
	flags.StringVar(&opts.username, "username", "user@example.com", "Username accepted by /auth/login")
	flags.StringVar(&opts.password, "password", "123", "Password accepted by /auth/login")
	flags.StringVar(&opts.token, "token", "", "Token returned on login (random when empty)")
	flags.BoolVar(&opts.requireAuth, "require-auth", false, "Reject API calls without the bearer token")
	flags.DurationVar(&opts.latency, "latency", 0, "Latency added to every API response")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Log every API request")
	return cmd
}

func serve(ctx context.Context, opts *serveOptions) error {
	newLogger := zap.NewProduction
	if opts.verbose {
		newLogger = zap.NewDevelopment
	}
	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	handler := target.NewServer(target.Options{
		Username:    opts.username,
		Password:    opts.password,
		Token:       opts.token,
		RequireAuth: opts.requireAuth,
		Latency:     opts.latency,
		Logger:      logger,
	})

	server := &http.Server{
		Addr:              opts.addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("target listening",
			zap.String("addr", opts.addr),
			zap.Bool("require_auth", opts.requireAuth))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down",
		zap.Int64("requests", handler.Requests()),
		zap.Int64("logins", handler.Logins()),
		zap.Int64("rejected", handler.Rejected()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func main() {
	if err := newCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
