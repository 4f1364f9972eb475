package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"github.com/threadcast/threadcast/internal/config"
)

// New constructs a slog.Logger configured according to the provided settings.
// The returned logger writes to stdout and, when buf is non-nil, mirrors every
// record into the crash buffer.
func New(cfg config.LoggingConfig, buf *CrashBuffer) (*slog.Logger, error) {
	var out io.Writer = os.Stdout
	if buf != nil {
		out = io.MultiWriter(os.Stdout, buf)
	}

	handler, err := buildHandler(cfg, out)
	if err != nil {
		return nil, err
	}

	return slog.New(handler), nil
}

func buildHandler(cfg config.LoggingConfig, out io.Writer) (slog.Handler, error) {
	opts := &slog.HandlerOptions{Level: cfg.Level}

	switch cfg.Format {
	case "json":
		return slog.NewJSONHandler(out, opts), nil
	case "text":
		return slog.NewTextHandler(out, opts), nil
	case "pretty":
		return tint.NewHandler(out, &tint.Options{
			Level:      cfg.Level,
			TimeFormat: time.Kitchen,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported log format: %s", cfg.Format)
	}
}
