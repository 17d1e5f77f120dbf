// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/taibuivan/yomira-identity/internal/platform/apperr"
	"github.com/taibuivan/yomira-identity/internal/platform/sec"
	"github.com/taibuivan/yomira-identity/internal/platform/validate"
)

func newPasswordCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "password",
		Short: "Work with password digests",
	}

	command.AddCommand(newPasswordHashCommand())
	return command
}

func newPasswordHashCommand() *cobra.Command {
	var cost int

	command := &cobra.Command{
		Use:   "hash",
		Short: "Read a password from stdin and print its bcrypt digest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := readPassword(cmd)
			if err != nil {
				return err
			}

			v := &validate.Validator{}
			v.Password("password", password)
			if err := v.Err(); err != nil {
				return describe(err)
			}

			digest, err := sec.NewPasswordHasher(cost).Hash(password)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), digest)
			return nil
		},
	}

	command.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt work factor")
	return command
}

// readPassword prompts without echo on a terminal and reads one line otherwise.
func readPassword(cmd *cobra.Command) (string, error) {
	in := cmd.InOrStdin()

	if file, ok := in.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "Enter password: ")
		raw, err := term.ReadPassword(int(file.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(raw), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// describe flattens a validation error's field details into one line.
func describe(err error) error {
	appErr := apperr.As(err)
	if appErr == nil || len(appErr.Details) == 0 {
		return err
	}

	parts := make([]string, 0, len(appErr.Details))
	for _, detail := range appErr.Details {
		parts = append(parts, detail.Field+" "+detail.Message)
	}
	return fmt.Errorf("%s: %s", appErr.Message, strings.Join(parts, "; "))
}
