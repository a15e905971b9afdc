package ftpserver

import (
	log "github.com/fclairamb/go-log"

	"github.com/fjordsec/fjordftpd/pkg/logging"
)

// FTPLogger adapts the application logger to the fclairamb/go-log interface
// that ftpserverlib expects.
type FTPLogger struct {
	app     *logging.AppLogger
	keyvals []interface{}
}

// NewFTPLogger creates a new FTP logger
func NewFTPLogger(app *logging.AppLogger) *FTPLogger {
	return &FTPLogger{app: app}
}

func (l *FTPLogger) merge(keyvals []interface{}) []interface{} {
	if len(l.keyvals) == 0 {
		return keyvals
	}
	merged := make([]interface{}, 0, len(l.keyvals)+len(keyvals))
	merged = append(merged, l.keyvals...)
	merged = append(merged, keyvals...)
	return merged
}

// Debug logs a debug message
func (l *FTPLogger) Debug(event string, keyvals ...interface{}) {
	l.app.Debug(event, l.merge(keyvals)...)
}

// Info logs an info message
func (l *FTPLogger) Info(event string, keyvals ...interface{}) {
	l.app.Info(event, l.merge(keyvals)...)
}

// Warn logs a warning message
func (l *FTPLogger) Warn(event string, keyvals ...interface{}) {
	l.app.Warn(event, l.merge(keyvals)...)
}

// Error logs an error message
func (l *FTPLogger) Error(event string, keyvals ...interface{}) {
	l.app.Error(event, l.merge(keyvals)...)
}

// Panic logs a panic-level message. The application logger has no panic
// level, so it is recorded as an error.
func (l *FTPLogger) Panic(event string, keyvals ...interface{}) {
	l.app.Error(event, l.merge(keyvals)...)
}

// With returns a logger that prepends keyvals to every message
func (l *FTPLogger) With(keyvals ...interface{}) log.Logger {
	return &FTPLogger{app: l.app, keyvals: l.merge(keyvals)}
}
