package sql

import (
	"fmt"
)

// RejectionReason identifies why the guard refused a statement.
type RejectionReason string

const (
	ReasonEmpty              RejectionReason = "empty_statement"
	ReasonMultipleStatements RejectionReason = "multiple_statements"
	ReasonUnparseable        RejectionReason = "unparseable"
	ReasonForbiddenCategory  RejectionReason = "forbidden_category"
)

// RejectionError is returned when the guard refuses a statement. It carries
// the verdict and reason so the caller can decide whether a regeneration
// attempt is worth it.
type RejectionError struct {
	Reason  RejectionReason
	Verdict Verdict
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("statement rejected (%s, verdict=%s)", e.Reason, e.Verdict)
}

// Guard validates, normalizes, and classifies a generated statement against
// a policy. It is the single gate every statement passes before execution.
type Guard struct {
	policy *Policy
}

// NewGuard creates a guard with the given policy. A nil policy means
// read-only.
func NewGuard(policy *Policy) *Guard {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Guard{policy: policy}
}

// Evaluate returns the normalized statement and its verdict, or a
// RejectionError if the statement must not run.
func (g *Guard) Evaluate(stmt string) (string, Verdict, error) {
	result := ValidateAndNormalize(stmt)
	if result.Error != nil {
		reason := ReasonMultipleStatements
		if result.Error == ErrEmptyStatement {
			reason = ReasonEmpty
		}
		return "", VerdictUnparseable, &RejectionError{Reason: reason, Verdict: VerdictUnparseable}
	}

	verdict := Classify(result.NormalizedSQL)
	if verdict == VerdictUnparseable {
		return "", verdict, &RejectionError{Reason: ReasonUnparseable, Verdict: verdict}
	}

	if !g.policy.Allows(verdict) {
		return "", verdict, &RejectionError{Reason: ReasonForbiddenCategory, Verdict: verdict}
	}

	return result.NormalizedSQL, verdict, nil
}
