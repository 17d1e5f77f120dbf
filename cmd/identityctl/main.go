// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command identityctl is the operator CLI for the identity service.
//
// It runs schema migrations, hashes passwords for seeding accounts, and
// issues or inspects access tokens with the service's signing secret.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/taibuivan/yomira-identity/internal/platform/constants"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "identityctl:", err)
		os.Exit(1)
	}
}

// rootOptions are the flags every subcommand shares.
type rootOptions struct {
	debug bool
}

// newRootCommand assembles the command tree.
func newRootCommand() *cobra.Command {
	options := &rootOptions{}

	root := &cobra.Command{
		Use:           "identityctl",
		Short:         "identityctl operates the Yomira identity service",
		Long:          `A command-line interface for schema migrations, password hashing and token inspection.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVar(&options.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newMigrateCommand(options),
		newPasswordCommand(),
		newTokenCommand(),
	)

	return root
}

// logger writes structured logs to the command's error stream.
func (options *rootOptions) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if options.debug {
		level = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})
	return slog.New(handler).With(slog.String("app", constants.AppName), slog.String("command", cmd.CommandPath()))
}

// envOr returns the environment value of key, or fallback when unset.
func envOr(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
