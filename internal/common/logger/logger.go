package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelError
)

func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

type sink struct {
	mu  sync.Mutex
	out io.Writer
	min Level
}

type Logger struct {
	service   string
	requestID string
	sink      *sink
}

func New(service string) *Logger { return NewWithWriter(service, os.Stdout, LevelInfo) }

func NewWithWriter(service string, w io.Writer, min Level) *Logger {
	return &Logger{service: service, sink: &sink{out: w, min: min}}
}

// Named returns a logger for another service sharing the same output.
func (l *Logger) Named(service string) *Logger {
	return &Logger{service: service, requestID: l.requestID, sink: l.sink}
}

func (l *Logger) WithRequestID(id string) *Logger {
	return &Logger{service: l.service, requestID: id, sink: l.sink}
}

func (l *Logger) log(level Level, action, msg string, fields map[string]any, err error) {
	if level < l.sink.min {
		return
	}
	entry := map[string]any{
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		"level":      level.String(),
		"service":    l.service,
		"action":     action,
		"message":    msg,
		"hostname":   hostname(),
		"request_id": l.requestID,
	}
	for k, v := range fields {
		entry[k] = v
	}
	if err != nil {
		entry["error"] = map[string]any{"msg": err.Error(), "stack": fmt.Sprintf("%T", err)}
	}
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	_ = json.NewEncoder(l.sink.out).Encode(entry)
}

func (l *Logger) Info(action string, fields map[string]any)             { l.log(LevelInfo, action, action, fields, nil) }
func (l *Logger) Debug(action string, fields map[string]any)            { l.log(LevelDebug, action, action, fields, nil) }
func (l *Logger) Error(action string, err error, fields map[string]any) { l.log(LevelError, action, action, fields, err) }

var (
	hostOnce sync.Once
	hostName string
)

func hostname() string {
	hostOnce.Do(func() { hostName, _ = os.Hostname() })
	return hostName
}
