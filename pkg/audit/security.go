// Package audit provides security audit logging for SIEM consumption.
// Events are emitted as structured JSON under a dedicated logger namespace
// so they can be filtered and alerted on independently of application logs.
package audit

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/askdb-io/askdb-engine/pkg/logging"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventSQLInjectionAttempt is logged when libinjection flags a parameter value.
	EventSQLInjectionAttempt SecurityEventType = "sql_injection_attempt"
	// EventGuardrailRejection is logged when a generated statement fails the
	// read-only guard (destructive verb, multiple statements, disallowed form).
	EventGuardrailRejection SecurityEventType = "guardrail_rejection"
)

// SecurityEvent is one auditable event, serialized whole into the log entry.
type SecurityEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType SecurityEventType `json:"event_type"`
	Details   any               `json:"details"`
	Severity  string            `json:"severity"` // warning, critical
}

// InjectionDetails describes a parameter that tripped injection screening.
// The value itself is never recorded, only its libinjection fingerprint.
type InjectionDetails struct {
	ParamName   string `json:"param_name"`
	Fingerprint string `json:"fingerprint"`
}

// RejectionDetails describes a statement the guard refused to execute.
type RejectionDetails struct {
	Verdict   string `json:"verdict"`
	Statement string `json:"statement"`
	Attempt   int    `json:"attempt"`
}

// SecurityAuditor logs security events for SIEM consumption.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates an auditor writing under the "security_audit"
// logger namespace.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

// LogInjectionAttempt records a parameter flagged by injection screening.
// Logged at ERROR with "critical" severity for immediate alerting.
func (a *SecurityAuditor) LogInjectionAttempt(details InjectionDetails) {
	event := SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventType: EventSQLInjectionAttempt,
		Details:   details,
		Severity:  "critical",
	}

	eventJSON, _ := json.Marshal(event)

	a.logger.Error("SQL injection attempt detected",
		zap.String("event_json", string(eventJSON)),
		zap.String("param_name", details.ParamName),
		zap.String("fingerprint", details.Fingerprint),
		zap.String("severity", "critical"),
	)
}

// LogGuardrailRejection records a generated statement the guard refused.
// These are usually model mistakes rather than attacks, so they log at WARN.
// The statement is sanitized before it reaches the event payload.
func (a *SecurityAuditor) LogGuardrailRejection(details RejectionDetails) {
	details.Statement = logging.SanitizeQuery(details.Statement)

	event := SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventType: EventGuardrailRejection,
		Details:   details,
		Severity:  "warning",
	}

	eventJSON, _ := json.Marshal(event)

	a.logger.Warn("Statement rejected by guard",
		zap.String("event_json", string(eventJSON)),
		zap.String("verdict", details.Verdict),
		zap.Int("attempt", details.Attempt),
		zap.String("query", details.Statement),
		zap.String("severity", "warning"),
	)
}
