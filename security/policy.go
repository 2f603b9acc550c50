// Package security is the sandbox policy layer consulted by the vm package
// before it resolves an attribute, calls a method, or invokes a filter/
// test/global against untrusted template source (spec §9's fuel/recursion
// budget is the engine's own defense; this package is the optional,
// caller-configured access-control layer on top of it), grounded on the
// teacher's (deicod-gojinja) runtime/policy.go and runtime/security.go.
package security

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Level names a policy's intended deployment tier. It has no behavior of
// its own; it is metadata surfaced in audit entries and policy listings.
type Level int

const (
	LevelDevelopment Level = iota
	LevelStaging
	LevelProduction
	LevelRestricted
)

func (l Level) String() string {
	switch l {
	case LevelDevelopment:
		return "development"
	case LevelStaging:
		return "staging"
	case LevelProduction:
		return "production"
	case LevelRestricted:
		return "restricted"
	default:
		return "unknown"
	}
}

// ViolationType classifies what kind of check a Violation came from.
type ViolationType int

const (
	ViolationFilterAccess ViolationType = iota
	ViolationFunctionAccess
	ViolationTestAccess
	ViolationAttributeAccess
	ViolationMethodCall
	ViolationTemplateAccess
	ViolationRecursionLimit
	ViolationExecutionTimeout
	ViolationOutputLimit
	ViolationRestrictedContent
)

func (vt ViolationType) String() string {
	switch vt {
	case ViolationFilterAccess:
		return "filter_access"
	case ViolationFunctionAccess:
		return "function_access"
	case ViolationTestAccess:
		return "test_access"
	case ViolationAttributeAccess:
		return "attribute_access"
	case ViolationMethodCall:
		return "method_call"
	case ViolationTemplateAccess:
		return "template_access"
	case ViolationRecursionLimit:
		return "recursion_limit"
	case ViolationExecutionTimeout:
		return "execution_timeout"
	case ViolationOutputLimit:
		return "output_limit"
	case ViolationRestrictedContent:
		return "restricted_content"
	default:
		return "unknown"
	}
}

// Violation is a single denied or flagged operation.
type Violation struct {
	Type        ViolationType
	Description string
	Resource    string
	Template    string
	Severity    string // "low", "medium", "high"
	Blocked     bool
	Timestamp   time.Time
}

// Policy decides which filters, tests, functions, attributes and methods a
// template may reach, plus the resource limits a render must stay within.
// A zero Policy has every whitelist mode off and empty block lists, so it
// allows everything; use Builder to construct one.
type Policy struct {
	Name        string
	Description string
	Level       Level

	allowedFilters, blockedFilters     map[string]bool
	allowedFunctions, blockedFunctions map[string]bool
	allowedTests, blockedTests         map[string]bool
	allowedAttrs, blockedAttrs         map[string]bool
	allowedMethods, blockedMethods     map[string]bool
	allowedTemplates, blockedTemplates map[string]bool

	filterWhitelist, functionWhitelist, testWhitelist bool
	attrWhitelist, methodWhitelist, templateWhitelist bool
	blockAllMethods                                   bool

	attrPatterns     []*regexp.Regexp
	templatePatterns []*regexp.Regexp

	MaxExecutionTime  time.Duration
	MaxRecursionDepth int
	MaxOutputBytes    int64

	EnableAuditLogging   bool
	LogAllowedOperations bool
	BlockOnViolation     bool

	mu sync.RWMutex
}

// Builder assembles a Policy with a fluent, chainable API matching the
// teacher's SecurityPolicyBuilder.
type Builder struct{ p *Policy }

// NewBuilder starts a policy in whitelist mode for every access kind
// (nothing is reachable until explicitly allowed), the conservative
// default for rendering untrusted templates.
func NewBuilder(name, description string) *Builder {
	return &Builder{p: &Policy{
		Name:        name,
		Description: description,
		Level:       LevelProduction,

		allowedFilters:   make(map[string]bool),
		blockedFilters:   make(map[string]bool),
		allowedFunctions: make(map[string]bool),
		blockedFunctions: make(map[string]bool),
		allowedTests:     make(map[string]bool),
		blockedTests:     make(map[string]bool),
		allowedAttrs:     make(map[string]bool),
		blockedAttrs:     make(map[string]bool),
		allowedMethods:   make(map[string]bool),
		blockedMethods:   make(map[string]bool),
		allowedTemplates: make(map[string]bool),
		blockedTemplates: make(map[string]bool),

		filterWhitelist:   true,
		functionWhitelist: true,
		testWhitelist:     true,
		attrWhitelist:     true,
		methodWhitelist:   true,
		templateWhitelist: true,

		MaxExecutionTime:  30 * time.Second,
		MaxRecursionDepth: 100,
		MaxOutputBytes:    10 * 1024 * 1024,

		EnableAuditLogging: true,
		BlockOnViolation:   true,
	}}
}

func (b *Builder) SetLevel(l Level) *Builder { b.p.Level = l; return b }

func (b *Builder) AllowFilters(names ...string) *Builder {
	for _, n := range names {
		b.p.allowedFilters[n] = true
		delete(b.p.blockedFilters, n)
	}
	return b
}
func (b *Builder) BlockFilters(names ...string) *Builder {
	for _, n := range names {
		b.p.blockedFilters[n] = true
		delete(b.p.allowedFilters, n)
	}
	return b
}
func (b *Builder) AllowFunctions(names ...string) *Builder {
	for _, n := range names {
		b.p.allowedFunctions[n] = true
		delete(b.p.blockedFunctions, n)
	}
	return b
}
func (b *Builder) BlockFunctions(names ...string) *Builder {
	for _, n := range names {
		b.p.blockedFunctions[n] = true
		delete(b.p.allowedFunctions, n)
	}
	return b
}
func (b *Builder) AllowTests(names ...string) *Builder {
	for _, n := range names {
		b.p.allowedTests[n] = true
		delete(b.p.blockedTests, n)
	}
	return b
}
func (b *Builder) BlockTests(names ...string) *Builder {
	for _, n := range names {
		b.p.blockedTests[n] = true
		delete(b.p.allowedTests, n)
	}
	return b
}
func (b *Builder) AllowAttributes(names ...string) *Builder {
	for _, n := range names {
		b.p.allowedAttrs[n] = true
		delete(b.p.blockedAttrs, n)
	}
	return b
}
func (b *Builder) BlockAttributes(names ...string) *Builder {
	for _, n := range names {
		b.p.blockedAttrs[n] = true
		delete(b.p.allowedAttrs, n)
	}
	return b
}

// AllowAttributePattern whitelists any attribute path matching pattern, in
// addition to the exact names from AllowAttributes. An unparseable pattern
// is silently dropped, matching the teacher's builder.
func (b *Builder) AllowAttributePattern(pattern string) *Builder {
	if re, err := regexp.Compile(pattern); err == nil {
		b.p.attrPatterns = append(b.p.attrPatterns, re)
	}
	return b
}
func (b *Builder) AllowMethods(names ...string) *Builder {
	for _, n := range names {
		b.p.allowedMethods[n] = true
		delete(b.p.blockedMethods, n)
	}
	return b
}
func (b *Builder) BlockMethods(names ...string) *Builder {
	for _, n := range names {
		b.p.blockedMethods[n] = true
		delete(b.p.allowedMethods, n)
	}
	return b
}
func (b *Builder) BlockAllMethodCalls() *Builder { b.p.blockAllMethods = true; return b }

func (b *Builder) AllowTemplates(names ...string) *Builder {
	for _, n := range names {
		b.p.allowedTemplates[n] = true
		delete(b.p.blockedTemplates, n)
	}
	return b
}
func (b *Builder) AllowTemplatePattern(pattern string) *Builder {
	if re, err := regexp.Compile(pattern); err == nil {
		b.p.templatePatterns = append(b.p.templatePatterns, re)
	}
	return b
}

func (b *Builder) SetFilterWhitelistMode(on bool) *Builder   { b.p.filterWhitelist = on; return b }
func (b *Builder) SetFunctionWhitelistMode(on bool) *Builder { b.p.functionWhitelist = on; return b }
func (b *Builder) SetTestWhitelistMode(on bool) *Builder     { b.p.testWhitelist = on; return b }
func (b *Builder) SetAttributeWhitelistMode(on bool) *Builder {
	b.p.attrWhitelist = on
	return b
}
func (b *Builder) SetMethodWhitelistMode(on bool) *Builder   { b.p.methodWhitelist = on; return b }
func (b *Builder) SetTemplateWhitelistMode(on bool) *Builder { b.p.templateWhitelist = on; return b }

func (b *Builder) SetMaxExecutionTime(d time.Duration) *Builder { b.p.MaxExecutionTime = d; return b }
func (b *Builder) SetMaxRecursionDepth(n int) *Builder          { b.p.MaxRecursionDepth = n; return b }
func (b *Builder) SetMaxOutputBytes(n int64) *Builder           { b.p.MaxOutputBytes = n; return b }
func (b *Builder) EnableAuditLogging(on bool) *Builder          { b.p.EnableAuditLogging = on; return b }
func (b *Builder) LogAllowedOperations(on bool) *Builder        { b.p.LogAllowedOperations = on; return b }
func (b *Builder) BlockOnViolation(on bool) *Builder            { b.p.BlockOnViolation = on; return b }

func (b *Builder) Build() *Policy { return b.p }

// checkList is the shared whitelist/blacklist decision shared by every
// Is*Allowed method below: blocked always wins, then whitelist mode
// requires an explicit (or pattern) match.
func checkList(whitelist bool, allowed, blocked map[string]bool, patterns []*regexp.Regexp, name string, vt ViolationType, resourceNoun string) (bool, *Violation) {
	if blocked[name] {
		return false, &Violation{
			Type:        vt,
			Description: fmt.Sprintf("%s %q is blocked by policy", resourceNoun, name),
			Resource:    name,
			Severity:    "high",
			Timestamp:   time.Now(),
		}
	}
	if !whitelist {
		return true, nil
	}
	if allowed[name] {
		return true, nil
	}
	for _, re := range patterns {
		if re.MatchString(name) {
			return true, nil
		}
	}
	return false, &Violation{
		Type:        vt,
		Description: fmt.Sprintf("%s %q is not in the allowed list", resourceNoun, name),
		Resource:    name,
		Severity:    "medium",
		Timestamp:   time.Now(),
	}
}

func (p *Policy) IsFilterAllowed(name string) (bool, *Violation) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return checkList(p.filterWhitelist, p.allowedFilters, p.blockedFilters, nil, name, ViolationFilterAccess, "filter")
}

func (p *Policy) IsFunctionAllowed(name string) (bool, *Violation) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return checkList(p.functionWhitelist, p.allowedFunctions, p.blockedFunctions, nil, name, ViolationFunctionAccess, "function")
}

func (p *Policy) IsTestAllowed(name string) (bool, *Violation) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return checkList(p.testWhitelist, p.allowedTests, p.blockedTests, nil, name, ViolationTestAccess, "test")
}

func (p *Policy) IsAttributeAllowed(path string) (bool, *Violation) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return checkList(p.attrWhitelist, p.allowedAttrs, p.blockedAttrs, p.attrPatterns, path, ViolationAttributeAccess, "attribute")
}

func (p *Policy) IsMethodCallAllowed(name string) (bool, *Violation) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.blockAllMethods {
		return false, &Violation{
			Type:        ViolationMethodCall,
			Description: fmt.Sprintf("method calls are blocked by policy: %q", name),
			Resource:    name,
			Severity:    "high",
			Timestamp:   time.Now(),
		}
	}
	return checkList(p.methodWhitelist, p.allowedMethods, p.blockedMethods, nil, name, ViolationMethodCall, "method")
}

func (p *Policy) IsTemplateAllowed(name string) (bool, *Violation) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return checkList(p.templateWhitelist, p.allowedTemplates, p.blockedTemplates, p.templatePatterns, name, ViolationTemplateAccess, "template")
}

// looksDangerous is a cheap, last-resort content check used by
// Session.SanitizeOutput for output that was never meant to carry markup
// (spec's Non-goals exclude a real sanitizer; this only catches the
// textbook `<script>` case).
func looksDangerous(s string) bool {
	return strings.Contains(strings.ToLower(s), "<script")
}
