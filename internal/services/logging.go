package services

import (
	"context"
	"log/slog"
	"time"
)

// ServiceLogger provides structured logging for service layer operations
type ServiceLogger struct {
	logger *slog.Logger
}

func NewServiceLogger(logger *slog.Logger, service string) *ServiceLogger {
	return &ServiceLogger{
		logger: logger.With("service", service),
	}
}

// Logger returns the underlying slog logger scoped to the service
func (l *ServiceLogger) Logger() *slog.Logger {
	return l.logger
}

// LogOperation records the outcome of one service operation. Expected
// failures such as validation errors are logged below error level.
func (l *ServiceLogger) LogOperation(ctx context.Context, operation, userID string, resource string, duration time.Duration, err error) {
	level := slog.LevelInfo
	status := "success"

	if err != nil {
		level = slog.LevelError
		status = "error"

		switch {
		case IsValidation(err):
			level, status = slog.LevelWarn, "validation_error"
		case IsForbidden(err):
			level, status = slog.LevelWarn, "forbidden"
		case IsConflict(err):
			level, status = slog.LevelWarn, "conflict"
		case IsNotFound(err):
			level, status = slog.LevelInfo, "not_found"
		case IsPersistence(err):
			status = "persistence_error"
		}
	}

	attrs := []slog.Attr{
		slog.String("operation", operation),
		slog.String("user_id", userID),
		slog.String("resource", resource),
		slog.String("status", status),
		slog.Duration("duration", duration),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		if ve, ok := err.(ValidationErrors); ok {
			attrs = append(attrs, slog.Int("validation_error_count", len(ve)))
		}
	}

	l.logger.LogAttrs(ctx, level, "Service operation", attrs...)
}

// ContextualLogger times one operation and logs its result once
type ContextualLogger struct {
	parent    *ServiceLogger
	ctx       context.Context
	operation string
	userID    string
	start     time.Time
}

func (l *ServiceLogger) WithOperation(ctx context.Context, operation, userID string) *ContextualLogger {
	return &ContextualLogger{
		parent:    l,
		ctx:       ctx,
		operation: operation,
		userID:    userID,
		start:     time.Now(),
	}
}

func (cl *ContextualLogger) LogResult(resource string, err error) {
	cl.parent.LogOperation(cl.ctx, cl.operation, cl.userID, resource, time.Since(cl.start), err)
}
