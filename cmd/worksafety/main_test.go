package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := rootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLIMigrateUserAndBonus(t *testing.T) {
	t.Setenv("WORKSAFETY_DB_PATH", filepath.Join(t.TempDir(), "cli.db"))
	t.Setenv("WORKSAFETY_SCHEDULER_ENABLED", "false")
	t.Setenv("WORKSAFETY_LOG_LEVEL", "error")

	out, err := run(t, "migrate")
	require.NoError(t, err)
	require.Contains(t, out, "applied")

	out, err = run(t, "user", "create", "--email", "Boss@Example.com", "--password", "long-enough-1", "--role", "manager", "--internal")
	require.NoError(t, err)
	require.Contains(t, out, "email=boss@example.com role=manager")

	_, err = run(t, "user", "create", "--email", "boss@example.com", "--password", "long-enough-1")
	require.Error(t, err)

	out, err = run(t, "bonus", "run", "weekly")
	require.NoError(t, err)
	require.Contains(t, out, `"bonus_type": "weekly"`)

	_, err = run(t, "bonus", "run", "yearly")
	require.Error(t, err)
}
