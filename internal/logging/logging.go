package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"algo-arena/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	sinkMu sync.RWMutex
	sink   io.Writer = os.Stdout
)

// Init configures the global zerolog logger. It returns a closer for the
// optional log file; closing it is safe when no file was configured.
func Init(cfg config.LogConfig) io.Closer {
	level := zerolog.InfoLevel
	if v := strings.TrimSpace(cfg.Level); v != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(v)); err == nil {
			level = parsed
		}
	}

	var out io.Writer = os.Stdout
	var fw *rotatingWriter
	if path := strings.TrimSpace(cfg.File); path != "" {
		w, err := newRotatingWriter(path, cfg.MaxMB)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("log file unavailable, logging to stdout only")
		} else {
			fw = w
			out = io.MultiWriter(os.Stdout, w)
		}
	}

	sinkMu.Lock()
	sink = out
	sinkMu.Unlock()

	var console io.Writer = out
	if cfg.Pretty {
		console = zerolog.ConsoleWriter{Out: out}
	}

	zerolog.SetGlobalLevel(level)
	logger := zerolog.New(console).With().Timestamp().Logger()
	if cfg.SampleEvery > 1 {
		logger = logger.Sample(&zerolog.BasicSampler{N: uint32(cfg.SampleEvery)})
	}
	log.Logger = logger
	return closerFunc(func() error {
		if fw == nil {
			return nil
		}
		return fw.Close()
	})
}

// Writer is the raw sink behind the global logger, for handlers that emit
// their own JSON lines (the slog handler used by httplog).
func Writer() io.Writer {
	sinkMu.RLock()
	defer sinkMu.RUnlock()
	return sink
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
