// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taibuivan/yomira-identity/internal/platform/migration"
)

type migrateOptions struct {
	*rootOptions
	databaseURL string
	path        string
}

func newMigrateCommand(root *rootOptions) *cobra.Command {
	options := &migrateOptions{rootOptions: root}

	command := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the users and identities schema",
	}

	command.PersistentFlags().StringVar(&options.databaseURL, "database-url", envOr("DATABASE_URL", ""), "PostgreSQL connection URL (env DATABASE_URL)")
	command.PersistentFlags().StringVar(&options.path, "path", envOr("MIGRATION_PATH", "./migrations"), "migrations directory (env MIGRATION_PATH)")

	command.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				runner, err := options.runner(cmd)
				if err != nil {
					return err
				}
				return runner.Up()
			},
		},
		newMigrateDownCommand(options),
		&cobra.Command{
			Use:   "status",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				runner, err := options.runner(cmd)
				if err != nil {
					return err
				}

				status, err := runner.Status()
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				switch {
				case status.Empty:
					fmt.Fprintln(out, "no migrations applied")
				case status.Dirty:
					fmt.Fprintf(out, "version %d (dirty)\n", status.Version)
				default:
					fmt.Fprintf(out, "version %d\n", status.Version)
				}
				return nil
			},
		},
	)

	return command
}

func newMigrateDownCommand(options *migrateOptions) *cobra.Command {
	var steps int

	command := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner, err := options.runner(cmd)
			if err != nil {
				return err
			}
			return runner.Down(steps)
		},
	}

	command.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	return command
}

func (options *migrateOptions) runner(cmd *cobra.Command) (*migration.Runner, error) {
	if options.databaseURL == "" {
		return nil, errors.New("--database-url or DATABASE_URL is required")
	}
	return migration.NewRunner(options.databaseURL, options.path, options.logger(cmd)), nil
}
