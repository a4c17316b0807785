package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus.Logger with consent-ledger helpers
type Logger struct {
	*logrus.Logger
}

// New creates a new logger instance
func New(level string) *Logger {
	log := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	log.SetLevel(logLevel)

	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})

	log.SetOutput(os.Stdout)

	return &Logger{Logger: log}
}

// WithComponent creates a new logger entry with component name field
func (l *Logger) WithComponent(component string) *logrus.Entry {
	return l.Logger.WithField("component", component)
}

// WithRequestID creates a new logger entry with request ID field
func (l *Logger) WithRequestID(requestID string) *logrus.Entry {
	return l.Logger.WithField("request_id", requestID)
}

// ConsentTransition logs one consent state-machine transition attempt.
func (l *Logger) ConsentTransition(patientID, doctorID, operation string, success bool, reason string) {
	entry := l.Logger.WithFields(logrus.Fields{
		"consent":    true,
		"patient_id": patientID,
		"doctor_id":  doctorID,
		"operation":  operation,
		"success":    success,
	})
	if reason != "" {
		entry = entry.WithField("reason", reason)
	}

	if success {
		entry.Info("Consent transition")
	} else {
		entry.Warn("Consent transition rejected")
	}
}

// Audit logs audit events with structured format
func (l *Logger) Audit(userID, action, resource string, success bool, details map[string]interface{}) {
	entry := l.Logger.WithFields(logrus.Fields{
		"audit":    true,
		"user_id":  userID,
		"action":   action,
		"resource": resource,
		"success":  success,
		"details":  details,
	})

	if success {
		entry.Info("Audit event")
	} else {
		entry.Warn("Audit event failed")
	}
}

// LedgerOperation logs one durable-store operation outcome.
func (l *Logger) LedgerOperation(operation, key string, success bool, durationMs int64) {
	entry := l.Logger.WithFields(logrus.Fields{
		"ledger":      true,
		"operation":   operation,
		"key":         key,
		"success":     success,
		"duration_ms": durationMs,
	})

	if success {
		entry.Debug("Ledger operation completed")
	} else {
		entry.Error("Ledger operation failed")
	}
}
