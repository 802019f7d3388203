package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Logger provides component-tagged debug logging for the persona engine.
// Hooks and tool calls are short-lived processes, so every invocation
// appends to one shared file (<log dir>/persona.log) and tags its lines
// with an invocation ID and, once known, the host session ID.
//
// All log methods (Debugf, Infof, Warnf, Errorf) write unconditionally.
// There is currently no log level filtering.
type Logger struct {
	invocationID string
	component    string
	file         *os.File
	logger       *log.Logger
	mu           sync.Mutex
	logPath      string
	closeOnce    sync.Once

	// sessionID is the host session this invocation is serving.
	sessionID string
}

var (
	// Global invocation ID for the current process
	invocationID     string
	invocationIDOnce sync.Once

	// logDir is the directory where log files are stored
	logDir string

	// initOnce ensures directory initialization happens once
	initOnce sync.Once

	// initErr stores any error from directory initialization
	initErr error

	// mirror, when set, receives a copy of every entry (e.g. stderr for --debug)
	mirror   io.Writer
	mirrorMu sync.Mutex
)

const logFileName = "persona.log"

// getInvocationID returns or creates the ID for this process
func getInvocationID() string {
	invocationIDOnce.Do(func() {
		invocationID = uuid.New().String()
	})
	return invocationID
}

// SetLogDirectory overrides the default log directory. It must be called
// before the first NewLogger call to take effect.
func SetLogDirectory(dir string) {
	logDir = dir
}

// SetMirror copies every subsequent entry to w. Pass nil to stop mirroring.
func SetMirror(w io.Writer) {
	mirrorMu.Lock()
	defer mirrorMu.Unlock()
	mirror = w
}

// initLogDirectory ensures the log directory exists
func initLogDirectory() error {
	initOnce.Do(func() {
		if logDir == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				initErr = fmt.Errorf("failed to get home directory: %w", err)
				return
			}
			logDir = filepath.Join(homeDir, ".claude", "plugin-data", "assume-persona", "logs")
		}

		if err := os.MkdirAll(logDir, 0750); err != nil {
			initErr = fmt.Errorf("failed to create log directory: %w", err)
			return
		}
	})
	return initErr
}

// NewLogger creates a new logger for a specific component.
// The logger appends to <log dir>/persona.log.
//
// If the log directory cannot be created or the log file cannot be opened,
// it returns a fallback logger that writes to stderr along with the error.
// Callers can check the error to detect fallback mode.
func NewLogger(component string) (*Logger, error) {
	if err := initLogDirectory(); err != nil {
		return newFallbackLogger(component, err), err
	}

	logPath := filepath.Join(logDir, logFileName)

	// Open in append mode: every hook invocation shares this file
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return newFallbackLogger(component, fmt.Errorf("failed to open log file: %w", err)), err
	}

	return &Logger{
		invocationID: getInvocationID(),
		component:    component,
		file:         file,
		logger:       log.New(file, "", 0), // We'll format timestamps ourselves
		logPath:      logPath,
	}, nil
}

// Discard returns a logger that drops every entry. Library packages use it
// when the caller did not supply a logger.
func Discard() *Logger {
	return &Logger{
		invocationID: getInvocationID(),
		component:    "discard",
		logger:       log.New(io.Discard, "", 0),
	}
}

// newFallbackLogger creates a logger that writes to stderr when file logging fails
func newFallbackLogger(component string, err error) *Logger {
	logger := log.New(os.Stderr, fmt.Sprintf("[%s] ", component), log.LstdFlags|log.Lshortfile)
	logger.Printf("WARNING: Failed to initialize file logging: %v", err)
	logger.Printf("Falling back to stderr logging")

	return &Logger{
		invocationID: getInvocationID(),
		component:    component,
		logger:       logger,
	}
}

// With returns a logger for another component sharing the same sink.
func (l *Logger) With(component string) *Logger {
	return &Logger{
		invocationID: l.invocationID,
		component:    component,
		file:         nil, // the parent owns the file
		logger:       l.logger,
		logPath:      l.logPath,
		sessionID:    l.sessionID,
	}
}

// SetSessionID tags subsequent entries with the host session ID.
func (l *Logger) SetSessionID(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sessionID = id
}

// formatLogEntry creates a structured log entry with timestamp, component, and level
func (l *Logger) formatLogEntry(level, message string) string {
	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	session := l.sessionID
	if session == "" {
		session = "-"
	}
	return fmt.Sprintf("[%s] [%s] [%s] [%s] [%s] %s",
		timestamp, l.invocationID[:8], session, l.component, level, message)
}

func (l *Logger) write(level, format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := l.formatLogEntry(level, fmt.Sprintf(format, v...))
	l.logger.Println(entry)

	mirrorMu.Lock()
	defer mirrorMu.Unlock()
	if mirror != nil {
		fmt.Fprintln(mirror, entry)
	}
}

// Debugf logs a debug-level message
func (l *Logger) Debugf(format string, v ...interface{}) {
	l.write("DEBUG", format, v...)
}

// Infof logs an info-level message
func (l *Logger) Infof(format string, v ...interface{}) {
	l.write("INFO", format, v...)
}

// Warnf logs a warning-level message
func (l *Logger) Warnf(format string, v ...interface{}) {
	l.write("WARN", format, v...)
}

// Errorf logs an error-level message
func (l *Logger) Errorf(format string, v ...interface{}) {
	l.write("ERROR", format, v...)
}

// InvocationID returns the ID of the current process
func (l *Logger) InvocationID() string {
	return l.invocationID
}

// LogPath returns the path to the log file
func (l *Logger) LogPath() string {
	return l.logPath
}

// Close closes the log file. Safe to call multiple times.
func (l *Logger) Close() error {
	var err error
	l.closeOnce.Do(func() {
		if l.file != nil {
			err = l.file.Close()
		}
	})
	return err
}

// GetLogDirectory returns the directory where logs are stored
func GetLogDirectory() (string, error) {
	if err := initLogDirectory(); err != nil {
		return "", err
	}
	return logDir, nil
}
