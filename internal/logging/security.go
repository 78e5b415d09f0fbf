// Meridian - Scientific Image Data Management API
// Copyright 2026 Meridian Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/meridian-bio/meridian

package logging

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// SecurityEvent represents a security-relevant event for audit logging.
type SecurityEvent struct {
	// Event is the type of event (e.g., "auth_success", "key_issued").
	Event string
	// Email is the subject's email address (sanitized before output).
	Email string
	// UserID is the subject's internal id (if resolved).
	UserID string
	// Mode is the authentication mode (header, api-key, pipeline).
	Mode string
	// Group is the group id involved in an authorization decision.
	Group string
	// Success indicates if the operation was successful.
	Success bool
	// Error is the error message if the operation failed.
	Error string
	// Details contains additional sanitized details.
	Details map[string]string
}

// SecurityLogger provides structured logging for authentication and
// authorization events. Attacker-controlled values are sanitized before
// they reach the log stream.
type SecurityLogger struct {
	logger zerolog.Logger
}

// NewSecurityLogger creates a security logger on the global logger.
func NewSecurityLogger() *SecurityLogger {
	return &SecurityLogger{
		logger: With().Str("component", "auth").Logger(),
	}
}

// NewSecurityLoggerWithLogger creates a security logger with a custom backend.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewSecurityLoggerWithLogger(logger zerolog.Logger) *SecurityLogger {
	return &SecurityLogger{
		logger: logger.With().Str("component", "auth").Logger(),
	}
}

// LogEvent logs a security event with automatic sanitization.
func (l *SecurityLogger) LogEvent(event *SecurityEvent) {
	e := l.logger.Info().Str("event", event.Event)

	if event.Success {
		e = e.Str("status", "success")
	} else {
		e = e.Str("status", "failed")
	}
	if event.Email != "" {
		e = e.Str("email", SanitizeEmail(event.Email))
	}
	if event.UserID != "" {
		e = e.Str("user_id", event.UserID)
	}
	if event.Mode != "" {
		e = e.Str("mode", event.Mode)
	}
	if event.Group != "" {
		e = e.Str("group", SanitizeLogValue(event.Group))
	}
	if event.Error != "" && !event.Success {
		e = e.Str("error", SanitizeError(event.Error))
	}
	for k, v := range event.Details {
		e = e.Str(k, SanitizeLogValue(v))
	}

	e.Msg("")
}

// LogAuthSuccess logs a successful authentication.
func (l *SecurityLogger) LogAuthSuccess(email, userID, mode string) {
	l.LogEvent(&SecurityEvent{
		Event:   "auth_success",
		Email:   email,
		UserID:  userID,
		Mode:    mode,
		Success: true,
	})
}

// LogAuthFailure logs a failed authentication attempt.
func (l *SecurityLogger) LogAuthFailure(mode, reason string) {
	l.LogEvent(&SecurityEvent{
		Event:   "auth_failed",
		Mode:    mode,
		Success: false,
		Error:   reason,
	})
}

// LogSignatureFailure logs a failed HMAC signature verification.
func (l *SecurityLogger) LogSignatureFailure(email string, hasSignature, hasTimestamp bool) {
	l.LogEvent(&SecurityEvent{
		Event:   "signature_invalid",
		Email:   email,
		Mode:    "pipeline",
		Success: false,
		Details: map[string]string{
			"has_signature": fmt.Sprintf("%t", hasSignature),
			"has_timestamp": fmt.Sprintf("%t", hasTimestamp),
		},
	})
}

// LogMembershipDenied logs an authorization denial.
func (l *SecurityLogger) LogMembershipDenied(email, group string) {
	l.LogEvent(&SecurityEvent{
		Event:   "membership_denied",
		Email:   email,
		Group:   group,
		Success: false,
	})
}

// LogKeyIssued logs creation of an API key.
func (l *SecurityLogger) LogKeyIssued(email, keyID string) {
	l.LogEvent(&SecurityEvent{
		Event:   "key_issued",
		Email:   email,
		Success: true,
		Details: map[string]string{"key_id": keyID},
	})
}

// LogKeyRevoked logs deactivation of an API key.
func (l *SecurityLogger) LogKeyRevoked(email, keyID string) {
	l.LogEvent(&SecurityEvent{
		Event:   "key_revoked",
		Email:   email,
		Success: true,
		Details: map[string]string{"key_id": keyID},
	})
}

// ============================================================
// Sanitization Functions
// ============================================================

// SanitizeLogValue escapes control characters in a string to prevent log
// injection from attacker-controlled header or body values. Newlines,
// carriage returns, and other control characters are replaced with a hex
// escape so forged log lines cannot be injected.
func SanitizeLogValue(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			result.WriteString(fmt.Sprintf("\\x%02x", r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// SanitizeEmail masks an email address for log output while keeping it
// correlatable. Example: "john.doe@example.com" -> "jo***@example.com".
// Control characters are escaped first.
func SanitizeEmail(email string) string {
	if email == "" {
		return ""
	}
	email = SanitizeLogValue(email)

	atIndex := strings.Index(email, "@")
	if atIndex <= 0 {
		return "***"
	}

	localPart := email[:atIndex]
	domain := email[atIndex:]
	if len(localPart) <= 2 {
		return "***" + domain
	}
	return localPart[:2] + "***" + domain
}

// SanitizeToken masks a credential, showing only first and last 4 characters.
func SanitizeToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 12 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// SanitizeError removes potentially sensitive information from error messages.
func SanitizeError(err string) string {
	sensitivePatterns := []string{
		"password",
		"secret",
		"token",
		"key",
		"bearer",
		"authorization",
		"signature",
	}

	lowerErr := strings.ToLower(err)
	for _, pattern := range sensitivePatterns {
		if strings.Contains(lowerErr, pattern) {
			return "authentication error"
		}
	}

	return truncateString(SanitizeLogValue(err), 200)
}

// truncateString truncates a string to a maximum length.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
