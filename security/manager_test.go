package security

import (
	"testing"
	"time"
)

func TestPolicyBuilderWhitelist(t *testing.T) {
	policy := NewBuilder("test", "test policy").
		SetLevel(LevelProduction).
		AllowFilters("upper", "lower").
		BlockFilters("eval").
		AllowFunctions("range", "dict").
		SetMaxExecutionTime(5 * time.Second).
		SetMaxRecursionDepth(10).
		Build()

	if policy.Name != "test" {
		t.Fatalf("expected policy name 'test', got %q", policy.Name)
	}
	if policy.Level != LevelProduction {
		t.Fatalf("expected LevelProduction, got %v", policy.Level)
	}

	if allowed, v := policy.IsFilterAllowed("upper"); !allowed || v != nil {
		t.Fatalf("expected 'upper' filter to be allowed")
	}
	if allowed, v := policy.IsFilterAllowed("eval"); allowed || v == nil {
		t.Fatalf("expected 'eval' filter to be blocked")
	}
}

func TestDefaultPolicies(t *testing.T) {
	for _, p := range []*Policy{DefaultPolicy(), DevelopmentPolicy(), RestrictedPolicy()} {
		if p.Name == "" {
			t.Fatalf("expected a named policy")
		}
	}

	restricted := RestrictedPolicy()
	if allowed, _ := restricted.IsFilterAllowed("upper"); !allowed {
		t.Fatalf("expected restricted policy to allow 'upper'")
	}
	if allowed, _ := restricted.IsFilterAllowed("random_unlisted_filter"); allowed {
		t.Fatalf("expected restricted policy to deny an unlisted filter")
	}
}

func TestManagerSessionFilterCheck(t *testing.T) {
	mgr := NewManager()
	sess, err := mgr.NewSession("restricted", "tpl.html")
	if err != nil {
		t.Fatalf("NewSession error: %v", err)
	}

	if !sess.CheckFilter("upper") {
		t.Fatalf("expected 'upper' to pass the restricted policy")
	}
	if sess.CheckFilter("exec") {
		t.Fatalf("expected 'exec' to be denied by the restricted policy")
	}
	if !sess.HasBlockedViolations() {
		t.Fatalf("expected a recorded blocked violation after the denial")
	}
	if len(sess.AuditLog()) < 2 {
		t.Fatalf("expected both checks to appear in the audit log, got %d entries", len(sess.AuditLog()))
	}
}

func TestSessionOutputLimit(t *testing.T) {
	policy := NewBuilder("tiny-output", "caps output size").
		SetMaxOutputBytes(8).
		BlockOnViolation(true).
		Build()
	mgr := NewManager()
	mgr.AddPolicy("tiny-output", policy)

	sess, err := mgr.NewSession("tiny-output", "tpl.html")
	if err != nil {
		t.Fatalf("NewSession error: %v", err)
	}
	if !sess.UpdateOutputSize(4) {
		t.Fatalf("expected the first 4 bytes to stay under the limit")
	}
	if sess.UpdateOutputSize(10) {
		t.Fatalf("expected exceeding the 8-byte limit to be reported")
	}
}

func TestSessionSanitizesScriptOutput(t *testing.T) {
	policy := NewBuilder("sanitize", "blocks script tags").
		BlockOnViolation(true).
		Build()
	mgr := NewManager()
	mgr.AddPolicy("sanitize", policy)

	sess, err := mgr.NewSession("sanitize", "tpl.html")
	if err != nil {
		t.Fatalf("NewSession error: %v", err)
	}
	if out := sess.SanitizeOutput("<script>alert(1)</script>"); out != "" {
		t.Fatalf("expected dangerous output to be stripped, got %q", out)
	}
	if out := sess.SanitizeOutput("hello"); out != "hello" {
		t.Fatalf("expected harmless output to pass through unchanged, got %q", out)
	}
}

func TestUnknownPolicyNameErrors(t *testing.T) {
	mgr := NewManager()
	if _, err := mgr.NewSession("does-not-exist", "tpl.html"); err == nil {
		t.Fatalf("expected an error for an unregistered policy name")
	}
}
