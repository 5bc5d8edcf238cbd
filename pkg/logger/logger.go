// Package logger provides standardized logging utilities for the Jmm back end
package logger

import (
	"io"
	"log/slog"
	"os"
)

// Global logger instance
var defaultLogger *slog.Logger

// LogLevel represents the logging level
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Config holds logger configuration
type Config struct {
	Level     LogLevel
	Format    string // "text" or "json"
	Output    io.Writer
	AddSource bool
	LogFile   string
}

// DefaultConfig returns the default logger configuration
func DefaultConfig() Config {
	return Config{
		Level:     LevelInfo,
		Format:    "text",
		Output:    os.Stderr,
		AddSource: false,
	}
}

// Init initializes the global logger with the given configuration
func Init(cfg Config) error {
	var handler slog.Handler

	output := cfg.Output
	if cfg.LogFile != "" {
		file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return err
		}
		output = file
	}

	opts := &slog.HandlerOptions{
		Level:     toSlogLevel(cfg.Level),
		AddSource: cfg.AddSource,
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)

	return nil
}

// InitDev initializes logging for development (debug level, text format)
func InitDev() {
	_ = Init(Config{
		Level:     LevelDebug,
		Format:    "text",
		Output:    os.Stderr,
		AddSource: true,
	})
}

func toSlogLevel(level LogLevel) slog.Level {
	switch level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Debug logs a debug message
func Debug(msg string, args ...any) {
	if defaultLogger != nil {
		defaultLogger.Debug(msg, args...)
	}
}

// Info logs an info message
func Info(msg string, args ...any) {
	if defaultLogger != nil {
		defaultLogger.Info(msg, args...)
	}
}

// Warn logs a warning message
func Warn(msg string, args ...any) {
	if defaultLogger != nil {
		defaultLogger.Warn(msg, args...)
	}
}

// Error logs an error message
func Error(msg string, args ...any) {
	if defaultLogger != nil {
		defaultLogger.Error(msg, args...)
	}
}

// ParseLevel maps a level name (debug, info, warn, error) to a LogLevel
func ParseLevel(name string) (LogLevel, bool) {
	switch name {
	case "debug":
		return LevelDebug, true
	case "info", "":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	}
	return LevelInfo, false
}

// Compiler-specific logging helpers

// LogPhase logs the start of a compilation phase
func LogPhase(phase string) {
	Info("Starting compilation phase", "phase", phase)
}

// LogPhaseComplete logs the completion of a compilation phase
func LogPhaseComplete(phase string) {
	Info("Completed compilation phase", "phase", phase)
}

// LogIRBuild logs IR construction for one method
func LogIRBuild(method string, instructionCount, labelCount int) {
	Debug("IR build complete",
		"method", method,
		"instructions", instructionCount,
		"labels", labelCount)
}

// LogLiveness logs a finished liveness fixed point
func LogLiveness(method string, passes int) {
	Debug("Liveness analysis complete", "method", method, "passes", passes)
}

// LogAllocation logs a successful register allocation
func LogAllocation(method string, k, registers int) {
	Debug("Register allocation complete",
		"method", method,
		"k", k,
		"registers", registers)
}

// LogAllocationFailed logs an infeasible register budget
func LogAllocationFailed(method string, registers, k int) {
	Warn("Register allocation infeasible",
		"method", method,
		"registers", registers,
		"k", k)
}

// LogError logs a compilation error
func LogError(phase string, method string, msg string) {
	Error("Compilation error",
		"phase", phase,
		"method", method,
		"message", msg)
}

// LogCompilerStart logs compiler startup
func LogCompilerStart(args []string) {
	Info("jmmc starting", "args", args)
}

// LogCompilerComplete logs compiler completion
func LogCompilerComplete(success bool, duration string) {
	if success {
		Info("Compilation successful", "duration", duration)
	} else {
		Error("Compilation failed", "duration", duration)
	}
}
