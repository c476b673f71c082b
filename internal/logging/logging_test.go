package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetup_CreatesLogFileAndWritesThroughIt(t *testing.T) {
	prevDefault := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prevDefault) })

	logPath := filepath.Join(t.TempDir(), "nested", "syftsync.log")
	closeFn, err := Setup(logPath)
	require.NoError(t, err)
	t.Cleanup(func() { closeFn() })

	slog.Info("test message")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	require.Contains(t, string(data), "test message")
}
