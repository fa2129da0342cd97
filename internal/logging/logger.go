package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity level
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

var levelNames = map[LogLevel]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
	FATAL: "FATAL",
}

// Logger is a component-scoped leveled logger writing to stdout and
// optionally a daily log file.
type Logger struct {
	level      LogLevel
	output     io.Writer
	fileOutput io.Writer
	component  string
	logFile    *os.File
	mu         sync.Mutex
}

// NewLogger creates a new logger instance. When logDir is non-empty a daily
// file under it receives a copy of every line.
func NewLogger(component string, level LogLevel, logDir string) (*Logger, error) {
	logger := &Logger{
		level:     level,
		output:    os.Stdout,
		component: component,
	}

	if logDir != "" {
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		timestamp := time.Now().Format("20060102")
		logFileName := filepath.Join(logDir, fmt.Sprintf("coinsangjang_%s_%s.log", component, timestamp))

		logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to create log file: %w", err)
		}

		logger.logFile = logFile
		logger.fileOutput = logFile
	}

	return logger, nil
}

// Close closes the logger and any open files
func (l *Logger) Close() error {
	if l.logFile != nil {
		return l.logFile.Close()
	}
	return nil
}

// Component returns a child logger for a sub-component sharing the same sinks.
func (l *Logger) Component(name string) *Logger {
	return &Logger{
		level:      l.level,
		output:     l.output,
		fileOutput: l.fileOutput,
		component:  fmt.Sprintf("%s.%s", l.component, name),
		logFile:    l.logFile, // shared file handle; owner closes it
	}
}

func (l *Logger) formatMessage(level LogLevel, msg string) string {
	timestamp := time.Now().Format("2006-01-02 15:04:05.000")

	_, file, line, ok := runtime.Caller(3)
	caller := "unknown"
	if ok {
		caller = fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}

	return fmt.Sprintf("%s [%s] [%s] [%s] %s",
		timestamp, levelNames[level], l.component, caller, msg)
}

func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	if level < l.level {
		return
	}

	msg := fmt.Sprintf(format, args...)
	formatted := l.formatMessage(level, msg)

	l.mu.Lock()
	if l.output != nil {
		fmt.Fprintln(l.output, formatted)
	}
	if l.fileOutput != nil {
		fmt.Fprintln(l.fileOutput, formatted)
	}
	l.mu.Unlock()

	if level == FATAL {
		os.Exit(1)
	}
}

// Debug logs debug messages
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(DEBUG, format, args...)
}

// Info logs info messages
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(INFO, format, args...)
}

// Warn logs warning messages
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(WARN, format, args...)
}

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(ERROR, format, args...)
}

// Fatal logs fatal messages and exits
func (l *Logger) Fatal(format string, args ...interface{}) {
	l.log(FATAL, format, args...)
}

// Global logger instance
var (
	globalMu     sync.RWMutex
	globalLogger *Logger
)

// InitGlobalLogger initializes the global logger
func InitGlobalLogger(component string, levelStr string, logDir string) error {
	logger, err := NewLogger(component, ParseLogLevel(levelStr), logDir)
	if err != nil {
		return err
	}

	globalMu.Lock()
	globalLogger = logger
	globalMu.Unlock()
	return nil
}

// GetGlobalLogger returns the global logger
func GetGlobalLogger() *Logger {
	globalMu.RLock()
	l := globalLogger
	globalMu.RUnlock()
	if l == nil {
		l, _ = NewLogger("app", INFO, "")
		globalMu.Lock()
		globalLogger = l
		globalMu.Unlock()
	}
	return l
}

// CloseGlobalLogger closes the global logger
func CloseGlobalLogger() error {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalLogger != nil {
		return globalLogger.Close()
	}
	return nil
}

// ParseLogLevel converts string to LogLevel
func ParseLogLevel(levelStr string) LogLevel {
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	case "FATAL":
		return FATAL
	default:
		return INFO
	}
}

// Convenience functions for global logger
func Debug(format string, args ...interface{}) {
	GetGlobalLogger().Debug(format, args...)
}

func Info(format string, args ...interface{}) {
	GetGlobalLogger().Info(format, args...)
}

func Warn(format string, args ...interface{}) {
	GetGlobalLogger().Warn(format, args...)
}

func Error(format string, args ...interface{}) {
	GetGlobalLogger().Error(format, args...)
}

func Fatal(format string, args ...interface{}) {
	GetGlobalLogger().Fatal(format, args...)
}

// RecoverPanic logs panics so a single goroutine crash never kills the process.
func RecoverPanic(component string) {
	if r := recover(); r != nil {
		buf := make([]byte, 4096)
		n := runtime.Stack(buf, false)
		Error("🚨 PANIC in %s: %v\nStack trace:\n%s", component, r, string(buf[:n]))
	}
}
