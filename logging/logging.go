package logging

import (
	"io"
	"log"
	"os"

	wapc "github.com/wapc/wapc-guest-tinygo"
)

const (
	capabilityName = "logging"

	// DefaultNamespace is used when no explicit namespace is provided.
	DefaultNamespace = "tarmac"
)

// Level controls which entries a writer client emits.
type Level int

// Log levels, from most to least verbose.
const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelNone
)

// String returns the name used as the line prefix and host function name.
func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "Trace"
	case LevelDebug:
		return "Debug"
	case LevelInfo:
		return "Info"
	case LevelWarn:
		return "Warn"
	case LevelError:
		return "Error"
	default:
		return "None"
	}
}

// HostCall defines the waPC host function signature used by logging operations.
type HostCall func(string, string, string, []byte) ([]byte, error)

// Client exposes convenience helpers for emitting log entries.
type Client interface {
	Info(message string)
	Warn(message string)
	Error(message string)
	Debug(message string)
	Trace(message string)
}

// Config controls how a host Client instance interacts with the host runtime.
type Config struct {
	// Namespace is the runtime namespace used for host calls.
	Namespace string

	// HostCall overrides the waPC host function used for logging operations.
	HostCall HostCall
}

// client implements Client using the configured host call entrypoint.
type client struct {
	namespace string
	hostCall  HostCall
}

// New creates a Client that emits logs through the host logging capability.
func New(cfg Config) (Client, error) {
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = DefaultNamespace
	}

	hostCall := cfg.HostCall
	if hostCall == nil {
		hostCall = wapc.HostCall
	}

	return &client{
		namespace: namespace,
		hostCall:  hostCall,
	}, nil
}

func (c *client) Info(message string)  { c.log(LevelInfo, message) }
func (c *client) Warn(message string)  { c.log(LevelWarn, message) }
func (c *client) Error(message string) { c.log(LevelError, message) }
func (c *client) Debug(message string) { c.log(LevelDebug, message) }
func (c *client) Trace(message string) { c.log(LevelTrace, message) }

func (c *client) log(level Level, message string) {
	_, _ = c.hostCall(c.namespace, capabilityName, level.String(), []byte(message))
}

// writer implements Client on top of a standard library logger.
type writer struct {
	logger *log.Logger
	level  Level
}

// NewWriter returns a Client that writes entries at or above level to w.
// A nil w writes to os.Stderr.
func NewWriter(w io.Writer, level Level) Client {
	if w == nil {
		w = os.Stderr
	}
	return &writer{
		logger: log.New(w, "", log.Ldate|log.Ltime),
		level:  level,
	}
}

func (w *writer) Info(message string)  { w.log(LevelInfo, message) }
func (w *writer) Warn(message string)  { w.log(LevelWarn, message) }
func (w *writer) Error(message string) { w.log(LevelError, message) }
func (w *writer) Debug(message string) { w.log(LevelDebug, message) }
func (w *writer) Trace(message string) { w.log(LevelTrace, message) }

func (w *writer) log(level Level, message string) {
	if level < w.level {
		return
	}
	w.logger.Printf("%s: %s", level, message)
}

type discard struct{}

// Discard returns a Client that drops every entry.
func Discard() Client { return discard{} }

func (discard) Info(string)  {}
func (discard) Warn(string)  {}
func (discard) Error(string) {}
func (discard) Debug(string) {}
func (discard) Trace(string) {}
