// Package logging provides the shared logging system for the voxara CLI
// and agent, built on charmbracelet/log.
//
// Basic usage:
//
//	cfg := logging.Config{Level: "info", Path: logging.DefaultLogPath()}
//	if err := logging.Init(cfg); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Close()
//
//	logger := logging.Get("session")
//	logger.Info("scan started", "path", "/data")
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"
)

// ErrInvalidLevel is returned when an invalid log level string is
// provided.
var ErrInvalidLevel = errors.New("invalid log level")

// parseLevel parses a level string into a charm log level.
func parseLevel(s string) (log.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return log.DebugLevel, nil
	case "", "info":
		return log.InfoLevel, nil
	case "warn", "warning":
		return log.WarnLevel, nil
	case "error":
		return log.ErrorLevel, nil
	default:
		return log.InfoLevel, fmt.Errorf("%w: %s", ErrInvalidLevel, s)
	}
}

// Config configures the logging system.
type Config struct {
	// Level is the default log level (debug, info, warn, error).
	Level string

	// Path is the log file path. Empty uses DefaultLogPath().
	Path string

	// Components maps component names to per-component level overrides.
	Components map[string]string

	// Console also mirrors output to stderr when true.
	Console bool
}

// state holds the global logging state.
type state struct {
	mu          sync.Mutex
	initialized bool
	file        io.WriteCloser
	out         io.Writer
	level       log.Level
	components  map[string]log.Level
	loggers     map[string]*log.Logger
}

var globalState = &state{
	components: make(map[string]log.Level),
	loggers:    make(map[string]*log.Logger),
}

// DefaultLogPath returns the default log file path under the XDG state
// directory.
func DefaultLogPath() string {
	return filepath.Join(xdg.StateHome, "voxara", "voxara.log")
}

// Init initializes the logging system. Before Init is called, loggers
// write to io.Discard.
func Init(cfg Config) error {
	globalState.mu.Lock()
	defer globalState.mu.Unlock()

	level, err := parseLevel(cfg.Level)
	if err != nil {
		return err
	}

	path := cfg.Path
	if path == "" {
		path = DefaultLogPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	if globalState.file != nil {
		_ = globalState.file.Close()
	}

	globalState.file = file
	globalState.out = io.Writer(file)
	if cfg.Console {
		globalState.out = io.MultiWriter(file, os.Stderr)
	}
	globalState.level = level
	globalState.components = make(map[string]log.Level, len(cfg.Components))
	for comp, lvl := range cfg.Components {
		parsed, err := parseLevel(lvl)
		if err != nil {
			return fmt.Errorf("component %s: %w", comp, err)
		}
		globalState.components[comp] = parsed
	}
	globalState.loggers = make(map[string]*log.Logger)
	globalState.initialized = true

	return nil
}

// Get returns the logger for a component, creating it on first use.
func Get(component string) *log.Logger {
	globalState.mu.Lock()
	defer globalState.mu.Unlock()

	if logger, ok := globalState.loggers[component]; ok {
		return logger
	}

	out := globalState.out
	if !globalState.initialized {
		out = io.Discard
	}

	logger := log.NewWithOptions(out, log.Options{
		Prefix:          component,
		ReportTimestamp: true,
	})
	level := globalState.level
	if override, ok := globalState.components[component]; ok {
		level = override
	}
	logger.SetLevel(level)

	globalState.loggers[component] = logger
	return logger
}

// Close flushes and closes the log file. Loggers obtained earlier keep
// working but write to a closed file, so call this only at shutdown.
func Close() error {
	globalState.mu.Lock()
	defer globalState.mu.Unlock()

	globalState.initialized = false
	if globalState.file != nil {
		err := globalState.file.Close()
		globalState.file = nil
		return err
	}
	return nil
}
