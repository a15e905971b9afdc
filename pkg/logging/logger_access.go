package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"
)

// AccessLogger defines the interface for operation logging
type AccessLogger interface {
	// LogAccess logs filesystem operations
	LogAccess(operation string, user string, path string, status string, details ...interface{})
	// LogAuth logs authentication operations
	LogAuth(operation string, user string, status string, details ...interface{})
	// LogDecision logs ACL permission decisions
	LogDecision(user string, ip string, path string, permission string, allowed bool, cached bool, details ...interface{})
}

type accessLogger struct {
	logger *log.Logger
}

// NewAccessLogger creates a new access logger. An empty path discards output.
func NewAccessLogger(logPath string) (AccessLogger, error) {
	var writer io.Writer

	if logPath == "" {
		writer = io.Discard
	} else {
		f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening access log file: %w", err)
		}
		writer = f
	}

	return &accessLogger{
		logger: log.New(writer, "", 0), // No flags, we handle formatting ourselves
	}, nil
}

func (l *accessLogger) write(parts []string, details ...interface{}) {
	for i := 0; i+1 < len(details); i += 2 {
		parts = append(parts, fmt.Sprintf("%v=%s", details[i], formatValue(details[i+1])))
	}

	timestamp := time.Now().UTC().Format("2006-01-02 15:04:05 -0700")
	l.logger.Printf("%s %s", timestamp, strings.Join(parts, " "))
}

func (l *accessLogger) LogAccess(operation string, user string, path string, status string, details ...interface{}) {
	var parts []string
	parts = append(parts, fmt.Sprintf("op=%s", formatValue(operation)))
	if user != "" {
		parts = append(parts, fmt.Sprintf("user=%s", formatValue(user)))
	}
	if path != "" {
		parts = append(parts, fmt.Sprintf("path=%s", formatValue(path)))
	}
	parts = append(parts, fmt.Sprintf("status=%s", formatValue(status)))

	l.write(parts, details...)
}

func (l *accessLogger) LogAuth(operation string, user string, status string, details ...interface{}) {
	var parts []string
	parts = append(parts, fmt.Sprintf("op=%s", formatValue(operation)))
	if user != "" {
		parts = append(parts, fmt.Sprintf("user=%s", formatValue(user)))
	}
	parts = append(parts, fmt.Sprintf("status=%s", formatValue(status)))

	l.write(parts, details...)
}

func (l *accessLogger) LogDecision(user string, ip string, path string, permission string, allowed bool, cached bool, details ...interface{}) {
	status := "denied"
	if allowed {
		status = "allowed"
	}

	var parts []string
	parts = append(parts, "op=ACL")
	if user != "" {
		parts = append(parts, fmt.Sprintf("user=%s", formatValue(user)))
	}
	if ip != "" {
		parts = append(parts, fmt.Sprintf("ip=%s", formatValue(ip)))
	}
	if path != "" {
		parts = append(parts, fmt.Sprintf("path=%s", formatValue(path)))
	}
	parts = append(parts, fmt.Sprintf("perm=%s", formatValue(permission)))
	parts = append(parts, fmt.Sprintf("status=%s", status))
	if cached {
		parts = append(parts, "cached=true")
	}

	l.write(parts, details...)
}
