// Package utils provides utility functions for the model router
package utils

import (
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/model-router/router/pkg/types"
)

// Logger wraps logrus.Logger with additional functionality
type Logger struct {
	*logrus.Logger
}

// NewLogger creates a new logger instance with specified configuration
func NewLogger(config *types.LoggingConfig) *Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if config.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	}

	var output io.Writer = os.Stdout
	if config.Output == "stderr" {
		output = os.Stderr
	} else if config.Output != "" && config.Output != "stdout" {
		file, err := os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			logger.WithError(err).Error("Failed to open log file, falling back to stdout")
		} else {
			output = file
		}
	}
	logger.SetOutput(output)

	return &Logger{Logger: logger}
}

// NewTestLogger returns a quiet logger for use in tests.
func NewTestLogger() *Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	logger.SetOutput(io.Discard)
	return &Logger{Logger: logger}
}

// WithRequestID adds request ID to log context
func (l *Logger) WithRequestID(requestID string) *logrus.Entry {
	return l.WithField("request_id", requestID)
}

// WithProvider adds provider information to log context
func (l *Logger) WithProvider(provider string) *logrus.Entry {
	return l.WithField("provider", provider)
}

// WithCaller adds the rate-limit caller identity to log context
func (l *Logger) WithCaller(callerID string) *logrus.Entry {
	return l.WithField("caller_id", callerID)
}

// LogDispatchAttempt logs one attempt within a fallback chain
func (l *Logger) LogDispatchAttempt(requestID, provider string, attempt int) {
	l.WithFields(logrus.Fields{
		"type":       "dispatch_attempt",
		"request_id": requestID,
		"provider":   provider,
		"attempt":    attempt,
	}).Info("Dispatching request to provider")
}

// LogDispatchFailure logs a failed attempt that triggers fallback
func (l *Logger) LogDispatchFailure(requestID, provider string, attempt int, err error) {
	l.WithFields(logrus.Fields{
		"type":       "dispatch_failure",
		"request_id": requestID,
		"provider":   provider,
		"attempt":    attempt,
		"error":      err.Error(),
	}).Warn("Provider call failed, trying fallback")
}

// LogHealthTransition logs a provider health state change
func (l *Logger) LogHealthTransition(provider string, healthy bool, fails int) {
	entry := l.WithFields(logrus.Fields{
		"type":              "health_transition",
		"provider":          provider,
		"healthy":           healthy,
		"consecutive_fails": fails,
	})
	if healthy {
		entry.Info("Provider became healthy")
	} else {
		entry.Warn("Provider became unhealthy")
	}
}

// LogRateLimitExceeded logs an admission rejection
func (l *Logger) LogRateLimitExceeded(callerID, endpoint string) {
	l.WithFields(logrus.Fields{
		"type":      "rate_limit_exceeded",
		"caller_id": callerID,
		"endpoint":  endpoint,
	}).Warn("Rate limit exceeded")
}
