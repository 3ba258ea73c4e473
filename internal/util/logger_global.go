package util

import (
	"sync"
)

var (
	globalLogger LoggerInterface
	loggerOnce   sync.Once
)

// InitLogger initializes the global logger instance with debug mode support
func InitLogger(logLevel, logFile string, debugToConsole bool) {
	loggerOnce.Do(func() {
		globalLogger = NewLogger(logLevel, logFile, debugToConsole)
	})
}

// SetRunID tags every subsequent global log entry with the run identifier.
func SetRunID(runID string) {
	if globalLogger != nil {
		globalLogger = globalLogger.With(Field{Key: string(RunIDKey), Value: runID})
	}
}

// CloseLogger closes the outputs of the global logger.
func CloseLogger() error {
	if globalLogger != nil {
		return globalLogger.Close()
	}
	return nil
}

// discardLogger stands in for the global logger before InitLogger
var discardLogger LoggerInterface = &Logger{level: LevelPanic, fields: make(map[string]interface{})}

// GetLogger returns the global logger. Before InitLogger it returns a
// logger without outputs.
func GetLogger() LoggerInterface {
	if globalLogger == nil {
		return discardLogger
	}
	return globalLogger
}

// LogInfo convenience functions for logging
func LogInfo(msg string, fields ...Field) {
	if globalLogger != nil {
		globalLogger.Info(msg, fields...)
	}
}

func LogDebug(msg string, fields ...Field) {
	if globalLogger != nil {
		globalLogger.Debug(msg, fields...)
	}
}

func LogDebugf(format string, args ...interface{}) {
	if globalLogger != nil {
		globalLogger.Debugf(format, args...)
	}
}

func LogWarn(msg string, fields ...Field) {
	if globalLogger != nil {
		globalLogger.Warn(msg, fields...)
	}
}

func LogError(msg string, fields ...Field) {
	if globalLogger != nil {
		globalLogger.Error(msg, fields...)
	}
}
