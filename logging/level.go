package logging

import (
	"fmt"
	"strings"
)

// Level is the severity of a boundary log event. Levels order from least
// verbose (Off) to most verbose (Verbose); a router forwards an event only
// when its level is at or below the configured threshold.
type Level int

const (
	LevelOff Level = iota
	LevelError
	LevelWarn
	LevelInfo
	LevelDebug
	LevelVerbose
)

// String returns the lowercase name of the level.
func (l Level) String() string {
	switch l {
	case LevelOff:
		return "off"
	case LevelError:
		return "error"
	case LevelWarn:
		return "warn"
	case LevelInfo:
		return "info"
	case LevelDebug:
		return "debug"
	case LevelVerbose:
		return "verbose"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// ParseLevel converts a level name to a Level. Matching is case-insensitive.
func ParseLevel(name string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "off", "":
		return LevelOff, nil
	case "error":
		return LevelError, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "info":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	case "verbose", "trace":
		return LevelVerbose, nil
	default:
		return LevelOff, fmt.Errorf("unknown log level %q", name)
	}
}

// Event is a single diagnostic event from the storage boundary. Events are
// immutable once constructed.
type Event struct {
	// Level is the event severity.
	Level Level
	// Message is the diagnostic text.
	Message string
	// Timestamp is the event time in milliseconds since the Unix epoch.
	Timestamp int64
	// InstanceID names the engine instance the event concerns; empty for
	// the default instance or engine-wide events.
	InstanceID string
}
