package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Level represents log severity
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a config value ("debug", "INFO", ...) to a Level.
// Unknown or empty values fall back to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// Logger writes levelled lines with caller info to a file and/or stdout.
type Logger struct {
	mu       sync.Mutex
	level    Level
	logger   *log.Logger
	file     *os.File
	filePath string
	echo     bool
}

var (
	defaultLogger *Logger
	defaultMu     sync.Mutex
	once          sync.Once
)

// Init initializes the default logger. When logDir is empty only stdout is
// used; otherwise lines go to <logDir>/bobine_<date>.log and are echoed to
// stdout.
func Init(logDir string, minLevel Level) error {
	var initErr error
	once.Do(func() {
		l := &Logger{
			level:  minLevel,
			logger: log.New(os.Stdout, "", 0),
		}

		if logDir != "" {
			if err := os.MkdirAll(logDir, 0755); err != nil {
				initErr = fmt.Errorf("failed to create log directory: %w", err)
				setDefault(l)
				return
			}

			logFileName := fmt.Sprintf("bobine_%s.log", time.Now().Format("2006-01-02"))
			logPath := filepath.Join(logDir, logFileName)

			f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if err != nil {
				initErr = fmt.Errorf("failed to open log file: %w", err)
				setDefault(l)
				return
			}

			l.file = f
			l.filePath = logPath
			l.logger = log.New(f, "", 0)
			l.echo = true
		}
		setDefault(l)
	})
	return initErr
}

// New returns a standalone logger writing to w. Used by tests and by the CLI,
// which logs to stderr so stdout stays machine readable.
func New(w io.Writer, minLevel Level) *Logger {
	return &Logger{level: minLevel, logger: log.New(w, "", 0)}
}

// Use replaces the default logger.
func Use(l *Logger) {
	setDefault(l)
}

func setDefault(l *Logger) {
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
}

// Path returns the current log file, or "" when logging to stdout only.
func Path() string {
	return getDefaultLogger().filePath
}

// Close closes the log file if one is open
func Close() {
	l := getDefaultLogger()
	if l.file != nil {
		l.file.Close()
	}
}

// SetLevel sets the minimum log level
func SetLevel(level Level) {
	l := getDefaultLogger()
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

func getDefaultLogger() *Logger {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = &Logger{
			level:  INFO,
			logger: log.New(os.Stdout, "", 0),
		}
	}
	return defaultLogger
}

func (l *Logger) log(level Level, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	message := fmt.Sprintf(format, args...)

	// Skip log and the exported wrapper.
	_, file, line, ok := runtime.Caller(2)
	caller := "unknown"
	if ok {
		caller = fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}

	logLine := fmt.Sprintf("[%s] [%s] [%s] %s", timestamp, level, caller, message)
	l.logger.Println(logLine)

	if l.echo {
		fmt.Println(logLine)
	}
}

// Debug logs a debug message
func Debug(format string, args ...interface{}) {
	getDefaultLogger().log(DEBUG, format, args...)
}

// Info logs an info message
func Info(format string, args ...interface{}) {
	getDefaultLogger().log(INFO, format, args...)
}

// Warn logs a warning message
func Warn(format string, args ...interface{}) {
	getDefaultLogger().log(WARN, format, args...)
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	getDefaultLogger().log(ERROR, format, args...)
}

// WithError logs an error with the error object
func WithError(err error, format string, args ...interface{}) {
	if err == nil {
		return
	}
	message := fmt.Sprintf(format, args...)
	getDefaultLogger().log(ERROR, "%s: %v", message, err)
}

// WarnWithError logs a warning with the error object
func WarnWithError(err error, format string, args ...interface{}) {
	if err == nil {
		return
	}
	message := fmt.Sprintf(format, args...)
	getDefaultLogger().log(WARN, "%s: %v", message, err)
}
