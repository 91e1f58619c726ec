package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func executeMigrate(t *testing.T, args ...string) error {
	t.Helper()
	t.Setenv("DB_HOST", "")
	migrateConfirm = false
	t.Cleanup(func() { migrateConfirm = false })

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(append([]string{"migrate"}, args...))
	return rootCmd.Execute()
}

func TestMigrateDestructiveCommandsNeedConfirmation(t *testing.T) {
	for _, sub := range []string{"drop", "reset"} {
		t.Run(sub, func(t *testing.T) {
			err := executeMigrate(t, sub)
			assert.ErrorIs(t, err, errNotConfirmed)

			err = executeMigrate(t, sub, "--yes")
			assert.ErrorContains(t, err, "database is not configured")
		})
	}
}
