// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/taibuivan/yomira-identity/internal/platform/constants"
	"github.com/taibuivan/yomira-identity/internal/platform/sec"
	"github.com/taibuivan/yomira-identity/pkg/uuid"
)

type tokenOptions struct {
	secret string
	issuer string
}

func newTokenCommand() *cobra.Command {
	options := &tokenOptions{}

	command := &cobra.Command{
		Use:   "token",
		Short: "Issue and inspect access tokens",
	}

	command.PersistentFlags().StringVar(&options.secret, "secret", envOr("JWT_SECRET", ""), "HS256 signing secret (env JWT_SECRET)")
	command.PersistentFlags().StringVar(&options.issuer, "issuer", envOr("JWT_ISSUER", constants.AuthIssuer), "token issuer (env JWT_ISSUER)")

	command.AddCommand(newTokenIssueCommand(options), newTokenVerifyCommand(options))
	return command
}

func newTokenIssueCommand(options *tokenOptions) *cobra.Command {
	var (
		userID   string
		email    string
		role     string
		verified bool
		ttl      time.Duration
	)

	command := &cobra.Command{
		Use:   "issue",
		Short: "Sign a token for an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !uuid.IsValid(userID) {
				return fmt.Errorf("--user-id must be a UUID, got %q", userID)
			}
			if !sec.UserRole(role).Valid() {
				return fmt.Errorf("--role must be %q or %q", sec.RoleMember, sec.RoleAdmin)
			}

			service, err := options.service()
			if err != nil {
				return err
			}

			token, err := service.Issue(userID, sec.Grant{
				Email:         strings.ToLower(strings.TrimSpace(email)),
				Role:          role,
				EmailVerified: verified,
			}, ttl)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	command.Flags().StringVar(&userID, "user-id", "", "account id (required)")
	command.Flags().StringVar(&email, "email", "", "account email")
	command.Flags().StringVar(&role, "role", string(sec.RoleMember), "account role")
	command.Flags().BoolVar(&verified, "verified", false, "mark the email as verified")
	command.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = command.MarkFlagRequired("user-id")

	return command
}

func newTokenVerifyCommand(options *tokenOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <token>",
		Short: "Check a token and print its claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := options.service()
			if err != nil {
				return err
			}

			claims, err := service.VerifyToken(strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(map[string]any{
				"user_id":        claims.UserID,
				"email":          claims.Email,
				"role":           claims.Role,
				"email_verified": claims.EmailVerified,
				"issuer":         claims.Issuer,
				"expires_at":     claims.ExpiresAt.Time.UTC(),
			})
		},
	}
}

func (options *tokenOptions) service() (*sec.TokenService, error) {
	if options.secret == "" {
		return nil, errors.New("--secret or JWT_SECRET is required")
	}
	return sec.NewTokenService([]byte(options.secret), options.issuer)
}
