// Package logger configures the process-wide zerolog logger.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// Config represents logger configuration.
type Config struct {
	Output string // "stdout", "stderr", or file path
	Level  string // "debug", "info", "warn", "error"
}

var (
	mu   sync.Mutex
	file *os.File // Open log file, replaced on every Init
)

// Init configures the global logger. It may be called again once the
// configuration file is loaded; a previously opened log file is closed.
func Init(cfg Config) error {
	level := parseLevel(cfg.Level)

	writer, f, err := openOutput(cfg.Output)
	if err != nil {
		return err
	}

	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.TimeOnly
	zerolog.CallerMarshalFunc = shortCaller

	var ctx zerolog.Context
	if f == nil {
		ctx = zerolog.New(consoleWriter(writer, level)).With().Timestamp()
	} else {
		ctx = zerolog.New(writer).With().Timestamp()
	}
	if level == zerolog.DebugLevel {
		ctx = ctx.Caller()
	}
	logger := ctx.Logger()

	mu.Lock()
	prev := file
	file = f
	zerolog.DefaultContextLogger = &logger
	zlog.Logger = logger
	mu.Unlock()

	if prev != nil {
		_ = prev.Close()
	}
	return nil
}

// Close releases the log file, if any. Later log lines go to stderr.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if file == nil {
		return nil
	}
	zlog.Logger = zlog.Logger.Output(os.Stderr)
	err := file.Close()
	file = nil
	return err
}

// Component returns a child of the global logger tagged with the component name.
func Component(name string) zerolog.Logger {
	return zlog.Logger.With().Str("component", name).Logger()
}

func openOutput(output string) (io.Writer, *os.File, error) {
	switch strings.ToLower(output) {
	case "stdout", "":
		return os.Stdout, nil, nil
	case "stderr":
		return os.Stderr, nil, nil
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "open log file %s", output)
	}
	return f, f, nil
}

func consoleWriter(out io.Writer, level zerolog.Level) zerolog.ConsoleWriter {
	w := zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	if level == zerolog.DebugLevel {
		w.PartsOrder = []string{"time", "level", "message", "caller"}
		w.FormatCaller = func(i any) string {
			return "(" + i.(string) + ")"
		}
	}
	return w
}

// shortCaller keeps the parent directory and file name.
func shortCaller(_ uintptr, file string, line int) string {
	dir, name := filepath.Split(file)
	return filepath.Join(filepath.Base(dir), name) + ":" + strconv.Itoa(line)
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "warning":
		return zerolog.WarnLevel
	case "":
		return zerolog.InfoLevel
	}
	l, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || l == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return l
}
