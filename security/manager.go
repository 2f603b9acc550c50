package security

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AuditEntry is one row of a Session's in-memory audit ledger. Its ID is
// a uuid rather than a sequence number so entries from concurrently
// rendered templates can be merged and correlated later without
// collision, matching jinjaerr.DebugInfo.RenderID's convention.
type AuditEntry struct {
	ID        uuid.UUID `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Operation string    `json:"operation"`
	Resource  string    `json:"resource"`
	Allowed   bool      `json:"allowed"`
	Template  string    `json:"template"`
}

// Manager owns the set of named policies an embedding application has
// registered and hands out a Session per render.
type Manager struct {
	mu       sync.RWMutex
	policies map[string]*Policy
}

// NewManager returns a Manager pre-seeded with the "default", "development"
// and "restricted" policies (DefaultPolicy, DevelopmentPolicy,
// RestrictedPolicy below).
func NewManager() *Manager {
	m := &Manager{policies: make(map[string]*Policy)}
	m.policies["default"] = DefaultPolicy()
	m.policies["development"] = DevelopmentPolicy()
	m.policies["restricted"] = RestrictedPolicy()
	return m
}

func (m *Manager) AddPolicy(name string, p *Policy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policies[name] = p
}

func (m *Manager) Policy(name string) (*Policy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.policies[name]
	if !ok {
		return nil, fmt.Errorf("security: no policy named %q", name)
	}
	return p, nil
}

// NewSession starts a fresh audit session against policyName for a render
// of templateName.
func (m *Manager) NewSession(policyName, templateName string) (*Session, error) {
	p, err := m.Policy(policyName)
	if err != nil {
		return nil, err
	}
	return &Session{
		id:       uuid.New(),
		policy:   p,
		template: templateName,
		start:    time.Now(),
	}, nil
}

// Session is the per-render audit/enforcement handle the vm package
// consults before resolving an attribute, calling a method, or invoking a
// filter/test/global against a policy-governed Environment, grounded on
// the teacher's SecurityContext.
type Session struct {
	mu         sync.Mutex
	id         uuid.UUID
	policy     *Policy
	template   string
	start      time.Time
	depth      int
	outputSize int64
	audit      []AuditEntry
	violations []*Violation
}

func (s *Session) ID() uuid.UUID  { return s.id }
func (s *Session) Policy() *Policy { return s.policy }

func (s *Session) record(op, resource string, allowed bool, v *Violation) {
	if v != nil {
		v.Template = s.template
		v.Blocked = s.policy.BlockOnViolation
		s.mu.Lock()
		s.violations = append(s.violations, v)
		s.mu.Unlock()
	}
	if !s.policy.EnableAuditLogging {
		return
	}
	if allowed && !s.policy.LogAllowedOperations {
		return
	}
	s.mu.Lock()
	s.audit = append(s.audit, AuditEntry{
		ID:        uuid.New(),
		Timestamp: time.Now(),
		Operation: op,
		Resource:  resource,
		Allowed:   allowed,
		Template:  s.template,
	})
	s.mu.Unlock()
}

// CheckFilter, CheckFunction, CheckTest, CheckAttribute and CheckMethod all
// report whether the operation may proceed: true either because the
// policy allows it, or because the policy is configured to audit rather
// than block (BlockOnViolation == false).
func (s *Session) CheckFilter(name string) bool {
	allowed, v := s.policy.IsFilterAllowed(name)
	s.record("filter_access", name, allowed, v)
	return allowed || !s.policy.BlockOnViolation
}

func (s *Session) CheckFunction(name string) bool {
	allowed, v := s.policy.IsFunctionAllowed(name)
	s.record("function_access", name, allowed, v)
	return allowed || !s.policy.BlockOnViolation
}

func (s *Session) CheckTest(name string) bool {
	allowed, v := s.policy.IsTestAllowed(name)
	s.record("test_access", name, allowed, v)
	return allowed || !s.policy.BlockOnViolation
}

func (s *Session) CheckAttribute(path string) bool {
	allowed, v := s.policy.IsAttributeAllowed(path)
	s.record("attribute_access", path, allowed, v)
	return allowed || !s.policy.BlockOnViolation
}

func (s *Session) CheckMethod(name string) bool {
	allowed, v := s.policy.IsMethodCallAllowed(name)
	s.record("method_call", name, allowed, v)
	return allowed || !s.policy.BlockOnViolation
}

func (s *Session) CheckTemplate(name string) bool {
	allowed, v := s.policy.IsTemplateAllowed(name)
	s.record("template_access", name, allowed, v)
	return allowed || !s.policy.BlockOnViolation
}

// CheckExecutionTime reports whether the session has exceeded its
// policy's wall-clock budget. Unlike the engine's own fuel budget (spec
// §9, charged per opcode and enforced unconditionally), this is wall-clock
// and advisory: BlockOnViolation decides whether it actually halts.
func (s *Session) CheckExecutionTime() bool {
	elapsed := time.Since(s.start)
	if elapsed <= s.policy.MaxExecutionTime {
		return true
	}
	v := &Violation{
		Type:        ViolationExecutionTimeout,
		Description: fmt.Sprintf("execution time %s exceeds limit %s", elapsed, s.policy.MaxExecutionTime),
		Resource:    "execution_time",
		Severity:    "high",
		Timestamp:   time.Now(),
	}
	s.record("execution_time_check", "execution_time", false, v)
	return !s.policy.BlockOnViolation
}

// UpdateOutputSize accumulates rendered-output bytes and reports whether
// the session is still within its policy's output-size budget.
func (s *Session) UpdateOutputSize(n int) bool {
	s.mu.Lock()
	s.outputSize += int64(n)
	over := s.outputSize > s.policy.MaxOutputBytes
	s.mu.Unlock()
	if !over {
		return true
	}
	v := &Violation{
		Type:        ViolationOutputLimit,
		Description: fmt.Sprintf("output size %d bytes exceeds limit %d bytes", s.outputSize, s.policy.MaxOutputBytes),
		Resource:    "output_size",
		Severity:    "high",
		Timestamp:   time.Now(),
	}
	s.record("output_size_check", "output_size", false, v)
	return !s.policy.BlockOnViolation
}

// SanitizeOutput applies the policy's restricted-content check to a
// rendered string, returning "" in place of output matching a dangerous
// pattern when BlockOnViolation is set.
func (s *Session) SanitizeOutput(out string) string {
	if !looksDangerous(out) {
		return out
	}
	v := &Violation{
		Type:        ViolationRestrictedContent,
		Description: "output contains a <script> tag",
		Resource:    "output",
		Severity:    "high",
		Timestamp:   time.Now(),
	}
	s.record("output_sanitization", "restricted_content", false, v)
	if s.policy.BlockOnViolation {
		return ""
	}
	return out
}

func (s *Session) Violations() []*Violation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Violation, len(s.violations))
	copy(out, s.violations)
	return out
}

func (s *Session) HasBlockedViolations() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.violations {
		if v.Blocked {
			return true
		}
	}
	return false
}

func (s *Session) AuditLog() []AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AuditEntry, len(s.audit))
	copy(out, s.audit)
	return out
}

// DefaultPolicy is a conservative whitelist suitable for rendering
// untrusted templates in production: a handful of safe filters/tests,
// no attribute access beyond simple top-level names, all method calls
// blocked, and a 10s/100-frame/1MB ceiling.
func DefaultPolicy() *Policy {
	return NewBuilder("default", "conservative whitelist for untrusted templates").
		SetLevel(LevelProduction).
		AllowFilters("upper", "lower", "title", "trim", "length", "first", "last", "join", "replace", "escape", "safe", "default", "d", "round", "abs", "list", "reverse", "tojson").
		AllowFunctions("range", "dict", "namespace").
		AllowTests("defined", "undefined", "none", "boolean", "number", "string", "sequence", "mapping", "even", "odd", "divisibleby", "in").
		AllowAttributePattern(`^[a-zA-Z_][a-zA-Z0-9_]*$`).
		BlockAllMethodCalls().
		SetMaxExecutionTime(10 * time.Second).
		SetMaxRecursionDepth(100).
		SetMaxOutputBytes(1024 * 1024).
		EnableAuditLogging(true).
		BlockOnViolation(true).
		Build()
}

// DevelopmentPolicy runs in blacklist mode (everything reachable except
// an explicit handful of dangerous names) for fast local iteration.
func DevelopmentPolicy() *Policy {
	return NewBuilder("development", "permissive blacklist for local development").
		SetLevel(LevelDevelopment).
		SetFilterWhitelistMode(false).
		SetFunctionWhitelistMode(false).
		SetTestWhitelistMode(false).
		SetAttributeWhitelistMode(false).
		SetMethodWhitelistMode(false).
		SetTemplateWhitelistMode(false).
		AllowAttributePattern(".*").
		SetMaxExecutionTime(60 * time.Second).
		SetMaxRecursionDepth(500).
		SetMaxOutputBytes(100 * 1024 * 1024).
		EnableAuditLogging(true).
		BlockOnViolation(false).
		Build()
}

// RestrictedPolicy is the tightest preset: a bare handful of filters, no
// attribute access beyond an explicit list, 2s/10-frame/10KB budget.
func RestrictedPolicy() *Policy {
	return NewBuilder("restricted", "minimal surface for fully untrusted input").
		SetLevel(LevelRestricted).
		AllowFilters("upper", "lower", "trim", "escape").
		AllowFunctions("range").
		AllowTests("defined", "undefined", "none", "boolean", "number", "string").
		AllowAttributes("value", "text", "content").
		BlockAllMethodCalls().
		SetMaxExecutionTime(2 * time.Second).
		SetMaxRecursionDepth(10).
		SetMaxOutputBytes(10 * 1024).
		EnableAuditLogging(true).
		BlockOnViolation(true).
		Build()
}
