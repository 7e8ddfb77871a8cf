package logger

import (
	"cvscanner/internal/config"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// Levels lists the log levels that are written to their own files.
var Levels = []string{"info", "warning", "error"}

// Logger provides leveled logging (info/warning/error) to files and stdout/stderr.
type Logger struct {
	infoLog    *log.Logger
	warningLog *log.Logger
	errorLog   *log.Logger
	logDir     string
	mu         sync.Mutex
}

// NewLogger creates a Logger and ensures the log directory exists.
func NewLogger(config *config.Config) *Logger {
	if err := os.MkdirAll(config.LogDirectory, 0755); err != nil {
		log.Fatalf("Failed to create log directory: %v", err)
	}

	logger := &Logger{
		logDir: config.LogDirectory,
	}

	logger.setupLoggers()
	return logger
}

// NewConsole creates a Logger that writes every level to out and keeps no files.
func NewConsole(out io.Writer) *Logger {
	return &Logger{
		infoLog:    log.New(out, "ℹ️  INFO    ", log.Ldate|log.Ltime),
		warningLog: log.New(out, "⚠️  WARNING ", log.Ldate|log.Ltime),
		errorLog:   log.New(out, "❌ ERROR   ", log.Ldate|log.Ltime),
	}
}

// setupLoggers initializes writers and per-level loggers.
func (l *Logger) setupLoggers() {
	infoFileHandle := l.openLogFile(l.FilePath("info"))
	warningFileHandle := l.openLogFile(l.FilePath("warning"))
	errorFileHandle := l.openLogFile(l.FilePath("error"))

	infoWriter := io.MultiWriter(os.Stdout, infoFileHandle)
	warningWriter := io.MultiWriter(os.Stdout, warningFileHandle)
	errorWriter := io.MultiWriter(os.Stderr, errorFileHandle)

	l.infoLog = log.New(infoWriter, "ℹ️  INFO    ", log.Ldate|log.Ltime|log.Lshortfile)
	l.warningLog = log.New(warningWriter, "⚠️  WARNING ", log.Ldate|log.Ltime|log.Lshortfile)
	l.errorLog = log.New(errorWriter, "❌ ERROR   ", log.Ldate|log.Ltime|log.Lshortfile)
}

// openLogFile opens or creates a log file for appending.
func (l *Logger) openLogFile(filename string) *os.File {
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file %s: %v", filename, err)
	}
	return file
}

// FilePath returns the log file path for a level, or "" for console loggers.
func (l *Logger) FilePath(level string) string {
	if l.logDir == "" {
		return ""
	}
	return filepath.Join(l.logDir, level+".log")
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infoLog.Printf(format, v...)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warningLog.Printf(format, v...)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errorLog.Printf(format, v...)
}

// CleanLogs truncates the log file of the given level.
func (l *Logger) CleanLogs(level string) error {
	filePath := l.FilePath(level)
	if filePath == "" {
		return nil
	}

	if err := os.Truncate(filePath, 0); err != nil {
		l.Error("Error truncating %s: %v", filePath, err)
		return err
	}

	l.Info("Log %s has been cleared.", level)
	return nil
}
