package logging

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Service packages resolve their loggers in package-level vars, so ForService
// must return a working logger before Init has ever run.
func TestForServiceUsableWithoutInit(t *testing.T) {
	logger := ForService("datastore")
	require.NotNil(t, logger)

	assert.NotPanics(t, func() {
		logger.Info("store opened", "path", "contactsync.db")
		logger.With("run_id", "ad-hoc").Debug("detail")
	})
}

func TestStructuredAndHumanReadableNeverNil(t *testing.T) {
	require.NotNil(t, Structured())
	require.NotNil(t, HumanReadable())
}

func TestSetLevelKeepsServiceLoggersWorking(t *testing.T) {
	SetLevel(slog.LevelWarn)
	defer SetLevel(slog.LevelInfo)

	logger := ForService("sync")
	require.NotNil(t, logger)
	assert.NotPanics(t, func() {
		logger.Warn("run aborted", "error", "timeout")
	})
}
