package main

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timeoff/internal/domain/auth"
)

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-test-secret")
	var out bytes.Buffer
	root := newRootCmd(slog.Default())
	root.SetOut(&out)
	root.SetArgs([]string{"token", "--user", "u1", "--tenant", "t1", "--roles", "hr, employee"})
	require.NoError(t, root.Execute())

	claims, err := auth.ParseToken("cli-test-secret", strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "t1", claims.TenantID)
	assert.Equal(t, []string{"hr", "employee"}, claims.Roles)
}

func TestTokenCommandRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	root := newRootCmd(slog.Default())
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"token", "--user", "u1", "--tenant", "t1"})
	assert.Error(t, root.Execute())
}

func TestStaffAddAgainstSQLite(t *testing.T) {
	t.Setenv("DATABASE_URL", "sqlite:"+t.TempDir()+"/timeoff.db")
	t.Setenv("JWT_SECRET", "cli-test-secret")
	var out bytes.Buffer
	root := newRootCmd(slog.Default())
	root.SetOut(&out)
	root.SetArgs([]string{"staff", "add", "--tenant", "t1", "--user", "u9", "--first", "Sam", "--last", "Stone"})
	require.NoError(t, root.Execute())
	assert.Equal(t, "Added staff member 1 (Sam Stone)\n", out.String())
}
