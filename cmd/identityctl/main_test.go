// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "identityctl-test-secret-0123456789abcdef"

// run executes the CLI with args and stdin, returning stdout.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	root := newRootCommand()
	root.SetArgs(args)
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&stdout)
	root.SetErr(&stderr)

	err := root.Execute()
	return stdout.String(), err
}

func TestPasswordHash(t *testing.T) {
	out, err := run(t, "correct horse battery\n", "password", "hash", "--cost", "4")
	require.NoError(t, err)

	digest := strings.TrimSpace(out)
	assert.True(t, strings.HasPrefix(digest, "$2a$04$"))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(digest), []byte("correct horse battery")))
}

func TestPasswordHash_RejectsShortPassword(t *testing.T) {
	_, err := run(t, "short\n", "password", "hash", "--cost", "4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password")
}

func TestToken_IssueThenVerify(t *testing.T) {
	const userID = "01920000-0000-7000-8000-000000000001"

	token, err := run(t, "", "token", "issue",
		"--secret", testSecret,
		"--user-id", userID,
		"--email", " Reader@Example.com ",
		"--role", "admin",
		"--verified",
	)
	require.NoError(t, err)

	out, err := run(t, "", "token", "verify", "--secret", testSecret, strings.TrimSpace(token))
	require.NoError(t, err)

	var claims map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &claims))
	assert.Equal(t, userID, claims["user_id"])
	assert.Equal(t, "reader@example.com", claims["email"])
	assert.Equal(t, "admin", claims["role"])
	assert.Equal(t, true, claims["email_verified"])
}

func TestToken_VerifyWithWrongSecret(t *testing.T) {
	token, err := run(t, "", "token", "issue", "--secret", testSecret, "--user-id", "01920000-0000-7000-8000-000000000001")
	require.NoError(t, err)

	_, err = run(t, "", "token", "verify", "--secret", strings.Repeat("x", 40), strings.TrimSpace(token))
	assert.Error(t, err)
}

func TestToken_IssueValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing secret", []string{"token", "issue", "--secret", "", "--user-id", "01920000-0000-7000-8000-000000000001"}},
		{"bad user id", []string{"token", "issue", "--secret", testSecret, "--user-id", "42"}},
		{"unknown role", []string{"token", "issue", "--secret", testSecret, "--user-id", "01920000-0000-7000-8000-000000000001", "--role", "owner"}},
		{"short secret", []string{"token", "issue", "--secret", "short", "--user-id", "01920000-0000-7000-8000-000000000001"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, "", tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestMigrate_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := run(t, "", "migrate", "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}
