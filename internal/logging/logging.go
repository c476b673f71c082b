package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// Setup opens logPath (creating its parent directory if needed), builds a
// colorized stdout handler plus a line-numbered file handler, fans them out
// through a multiHandler, and installs the result as slog's default logger.
// The returned close func flushes and closes the log file; callers should
// defer it.
func Setup(logPath string) (closeFn func() error, err error) {
	logDir := filepath.Dir(logPath)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	stdoutHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})

	interceptor := newLineInterceptor(file)
	fileHandler := slog.NewTextHandler(interceptor, &slog.HandlerOptions{
		Level: slog.LevelDebug,
		// Time is dropped here since the line interceptor stamps its own.
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	})

	logger := slog.New(newMultiHandler(stdoutHandler, fileHandler))
	slog.SetDefault(logger)

	return func() error {
		if err := interceptor.Close(); err != nil {
			file.Close()
			return err
		}
		return file.Close()
	}, nil
}
