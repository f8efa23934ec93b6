package sql

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestGuardDefaultPolicyReadOnly(t *testing.T) {
	guard := NewGuard(nil)

	stmt, verdict, err := guard.Evaluate("SELECT * FROM orders;")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verdict != VerdictReadOnly {
		t.Errorf("verdict = %v, want READ_ONLY", verdict)
	}
	if stmt != "SELECT * FROM orders" {
		t.Errorf("normalized = %q", stmt)
	}
}

func TestGuardRejectsMutatingByDefault(t *testing.T) {
	guard := NewGuard(nil)

	_, verdict, err := guard.Evaluate("UPDATE orders SET total = 0")
	if verdict != VerdictMutating {
		t.Errorf("verdict = %v, want MUTATING", verdict)
	}

	var rej *RejectionError
	if !errors.As(err, &rej) {
		t.Fatalf("expected RejectionError, got %v", err)
	}
	if rej.Reason != ReasonForbiddenCategory {
		t.Errorf("reason = %v, want forbidden_category", rej.Reason)
	}
}

func TestGuardRejectsDestructiveEvenWhenMutatingAllowed(t *testing.T) {
	guard := NewGuard(&Policy{AllowMutating: true})

	if _, _, err := guard.Evaluate("INSERT INTO t (id) VALUES (1)"); err != nil {
		t.Errorf("expected mutating statement allowed, got %v", err)
	}

	_, verdict, err := guard.Evaluate("DROP TABLE t")
	if err == nil {
		t.Fatal("expected destructive statement rejected")
	}
	if verdict != VerdictDestructive {
		t.Errorf("verdict = %v, want DESTRUCTIVE", verdict)
	}
}

func TestGuardRejectsBatchedStatements(t *testing.T) {
	guard := NewGuard(nil)

	_, _, err := guard.Evaluate("SELECT 1; DELETE FROM orders")
	var rej *RejectionError
	if !errors.As(err, &rej) {
		t.Fatalf("expected RejectionError, got %v", err)
	}
	if rej.Reason != ReasonMultipleStatements {
		t.Errorf("reason = %v, want multiple_statements", rej.Reason)
	}
}

func TestGuardRejectsUnparseable(t *testing.T) {
	guard := NewGuard(nil)

	_, verdict, err := guard.Evaluate("HERE IS YOUR ANSWER")
	if verdict != VerdictUnparseable {
		t.Errorf("verdict = %v, want UNPARSEABLE", verdict)
	}

	var rej *RejectionError
	if !errors.As(err, &rej) {
		t.Fatalf("expected RejectionError, got %v", err)
	}
	if rej.Reason != ReasonUnparseable {
		t.Errorf("reason = %v, want unparseable", rej.Reason)
	}
}

func TestLoadPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte("allow_mutating: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	policy, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("LoadPolicy failed: %v", err)
	}
	if !policy.AllowMutating {
		t.Error("expected allow_mutating=true from file")
	}
	if policy.AllowDestructive {
		t.Error("allow_destructive should stay off unless set")
	}

	if _, err := LoadPolicy(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing policy file")
	}
}

func TestPolicyAllows(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		verdict Verdict
		want    bool
	}{
		{name: "read-only always allowed", policy: Policy{}, verdict: VerdictReadOnly, want: true},
		{name: "mutating denied by default", policy: Policy{}, verdict: VerdictMutating, want: false},
		{name: "mutating allowed when configured", policy: Policy{AllowMutating: true}, verdict: VerdictMutating, want: true},
		{name: "destructive denied by default", policy: Policy{}, verdict: VerdictDestructive, want: false},
		{name: "destructive allowed when configured", policy: Policy{AllowDestructive: true}, verdict: VerdictDestructive, want: true},
		{name: "unparseable never allowed", policy: Policy{AllowMutating: true, AllowDestructive: true}, verdict: VerdictUnparseable, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.Allows(tt.verdict); got != tt.want {
				t.Errorf("Allows(%v) = %v, want %v", tt.verdict, got, tt.want)
			}
		})
	}
}

func TestCheckParameterForInjection(t *testing.T) {
	t.Run("clean string param", func(t *testing.T) {
		if result := CheckParameterForInjection("customer_id", "12345"); result != nil {
			t.Errorf("expected nil for clean value, got %+v", result)
		}
	})

	t.Run("injection attempt detected", func(t *testing.T) {
		result := CheckParameterForInjection("search", "'; DROP TABLE users--")
		if result == nil {
			t.Fatal("expected injection detected")
		}
		if !result.IsSQLi {
			t.Error("expected IsSQLi=true")
		}
		if result.ParamName != "search" {
			t.Errorf("ParamName = %q, want search", result.ParamName)
		}
	})

	t.Run("non-string params skipped", func(t *testing.T) {
		if result := CheckParameterForInjection("limit", 100); result != nil {
			t.Errorf("expected nil for int value, got %+v", result)
		}
	})
}
