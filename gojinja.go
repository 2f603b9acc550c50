// Package gojinja2 is the top-level convenience API over the
// lexer/parser/compiler/vm pipeline: construct an Environment, register a
// Loader, and Render named templates. It mirrors the teacher's
// (deicod-gojinja) gojinja.go surface, re-pointed at the bytecode engine.
package gojinja2

import (
	"fmt"
	"strings"

	"github.com/tmpleaf/gojinja2/builtins"
	"github.com/tmpleaf/gojinja2/environment"
	"github.com/tmpleaf/gojinja2/security"
	"github.com/tmpleaf/gojinja2/value"
	"github.com/tmpleaf/gojinja2/vm"
)

// Version of the gojinja2 library.
const Version = "0.2.0"

// Environment is the template registry: loader, syntax config, fuel
// budget, filter/test/global tables and the compiled-template cache.
type Environment = environment.Environment

// Loader resolves a template name to its source text.
type Loader = environment.Loader

// MapLoader is a Loader backed by an in-memory name->source map.
type MapLoader = environment.MapLoader

// SyntaxConfig is the data-driven description of an Environment's
// delimiters and whitespace-control flags (spec §6), loadable from YAML
// via LoadSyntaxConfigYAML and applied via ApplySyntaxConfig.
type SyntaxConfig = environment.SyntaxConfig

// DefaultSyntaxConfig mirrors NewEnvironment's built-in Jinja2 delimiters.
func DefaultSyntaxConfig() SyntaxConfig { return environment.DefaultSyntaxConfig() }

// LoadSyntaxConfigYAML parses and validates a SyntaxConfig from YAML bytes.
func LoadSyntaxConfigYAML(data []byte) (*SyntaxConfig, error) {
	return environment.LoadSyntaxConfigYAML(data)
}

// LoadSyntaxConfigYAMLFile reads path and parses it as a SyntaxConfig.
func LoadSyntaxConfigYAMLFile(path string) (*SyntaxConfig, error) {
	return environment.LoadSyntaxConfigYAMLFile(path)
}

// ApplySyntaxConfig validates cfg and rebinds env's delimiters and
// whitespace-control flags to it.
func ApplySyntaxConfig(env *Environment, cfg SyntaxConfig) error {
	return env.ApplySyntaxConfig(cfg)
}

// Value is the dynamic value every filter/test/global/template operates on.
type Value = value.Value

// SecurityManager is a named-policy registry handing out per-render
// SecuritySessions (spec §9's optional sandbox layer).
type SecurityManager = security.Manager

// SecurityPolicy is a whitelist/blacklist access policy plus resource
// limits, built via SecurityBuilder.
type SecurityPolicy = security.Policy

// SecurityBuilder is the fluent constructor for a SecurityPolicy.
type SecurityBuilder = security.Builder

// SecuritySession is one render's audit ledger and access-check state.
type SecuritySession = security.Session

// SecurityLevel names a policy's intended deployment tier.
type SecurityLevel = security.Level

const (
	SecurityLevelDevelopment SecurityLevel = security.LevelDevelopment
	SecurityLevelStaging     SecurityLevel = security.LevelStaging
	SecurityLevelProduction  SecurityLevel = security.LevelProduction
	SecurityLevelRestricted  SecurityLevel = security.LevelRestricted
)

// SecurityViolation records one denied (or logged) access check.
type SecurityViolation = security.Violation

// SecurityViolationType classifies a SecurityViolation.
type SecurityViolationType = security.ViolationType

const (
	ViolationFilterAccess      SecurityViolationType = security.ViolationFilterAccess
	ViolationFunctionAccess    SecurityViolationType = security.ViolationFunctionAccess
	ViolationTestAccess        SecurityViolationType = security.ViolationTestAccess
	ViolationAttributeAccess   SecurityViolationType = security.ViolationAttributeAccess
	ViolationMethodCall        SecurityViolationType = security.ViolationMethodCall
	ViolationTemplateAccess    SecurityViolationType = security.ViolationTemplateAccess
	ViolationRecursionLimit    SecurityViolationType = security.ViolationRecursionLimit
	ViolationExecutionTimeout  SecurityViolationType = security.ViolationExecutionTimeout
	ViolationOutputLimit       SecurityViolationType = security.ViolationOutputLimit
	ViolationRestrictedContent SecurityViolationType = security.ViolationRestrictedContent
)

// SecurityAuditEntry is one recorded access check in a SecuritySession's log.
type SecurityAuditEntry = security.AuditEntry

// NewEnvironment builds an Environment over loader (nil is valid: use
// AddTemplate to register sources directly) with every built-in
// filter/test/global already registered.
func NewEnvironment(loader Loader) *Environment {
	env := environment.New(loader)
	builtins.Register(env)
	return env
}

// NewMapLoader builds a MapLoader from name->source pairs.
func NewMapLoader(templates map[string]string) MapLoader {
	return MapLoader(templates)
}

// NewSecurityManager returns a Manager pre-seeded with the "default",
// "development" and "restricted" policies.
func NewSecurityManager() *SecurityManager { return security.NewManager() }

// NewSecurityBuilder starts a fluent SecurityPolicy under construction.
func NewSecurityBuilder(name, description string) *SecurityBuilder {
	return security.NewBuilder(name, description)
}

// DefaultSecurityPolicy is a conservative whitelist suitable for untrusted
// templates.
func DefaultSecurityPolicy() *SecurityPolicy { return security.DefaultPolicy() }

// DevelopmentSecurityPolicy is a permissive blacklist-mode policy for
// trusted authoring environments.
func DevelopmentSecurityPolicy() *SecurityPolicy { return security.DevelopmentPolicy() }

// RestrictedSecurityPolicy is the tightest built-in preset.
func RestrictedSecurityPolicy() *SecurityPolicy { return security.RestrictedPolicy() }

// UseSandbox turns on sandboxing for every subsequent render of env.
func UseSandbox(env *Environment, manager *SecurityManager, policyName string) {
	env.UseSandbox(manager, policyName)
}

// Template is a named template bound to an Environment: a thin handle over
// the Environment's own compiled-template cache, not an independent parse
// tree owner (the Environment already memoizes compilation).
type Template struct {
	env  *Environment
	name string
}

// Name returns the template's registered name.
func (t *Template) Name() string { return t.name }

// Render renders the template against vars (plus any Environment globals).
func (t *Template) Render(vars map[string]Value) (string, error) {
	return vm.RenderTemplate(t.env, t.name, vars)
}

// RenderWithSecurity is Render plus the render's SecuritySession (nil
// unless the Environment has UseSandbox configured).
func (t *Template) RenderWithSecurity(vars map[string]Value) (string, *SecuritySession, error) {
	return vm.RenderTemplateWithSecurity(t.env, t.name, vars)
}

// ParseString compiles source as an unnamed template against a fresh
// default Environment.
func ParseString(source string) (*Template, error) {
	return ParseStringWithName(source, "<string>")
}

// ParseStringWithName compiles source under name against a fresh default
// Environment.
func ParseStringWithName(source, name string) (*Template, error) {
	return AddTemplate(NewEnvironment(nil), name, source)
}

// AddTemplate compiles source under name on env, bypassing its Loader.
func AddTemplate(env *Environment, name, source string) (*Template, error) {
	if _, err := env.AddTemplate(name, source); err != nil {
		return nil, err
	}
	return &Template{env: env, name: name}, nil
}

// GetTemplate resolves name against env's Loader (or its compiled-template
// cache, if already registered).
func GetTemplate(env *Environment, name string) (*Template, error) {
	if _, err := env.GetTemplate(name); err != nil {
		return nil, err
	}
	return &Template{env: env, name: name}, nil
}

// SelectTemplate returns the first of names that resolves successfully.
func SelectTemplate(env *Environment, names []string) (*Template, error) {
	var lastErr error
	for _, name := range names {
		if tpl, err := GetTemplate(env, name); err == nil {
			return tpl, nil
		} else {
			lastErr = err
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no template names given")
	}
	return nil, lastErr
}

// RenderTemplate parses and renders a one-off template string against a
// fresh default Environment.
func RenderTemplate(source string, vars map[string]Value) (string, error) {
	return RenderTemplateWithEnvironment(NewEnvironment(nil), source, vars)
}

// RenderTemplateWithEnvironment parses and renders a one-off template
// string against env, reusing its registered filters/tests/globals.
func RenderTemplateWithEnvironment(env *Environment, source string, vars map[string]Value) (string, error) {
	tpl, err := AddTemplate(env, "<string>", source)
	if err != nil {
		return "", err
	}
	return tpl.Render(vars)
}

// TemplateChain renders a named sequence of templates sharing one
// Environment and variable set, concatenating their output in order.
type TemplateChain struct {
	env   *Environment
	names []string
}

// NewTemplateChain starts an empty chain bound to env.
func NewTemplateChain(env *Environment) *TemplateChain {
	return &TemplateChain{env: env}
}

// Add appends name to the chain and returns the chain for call-chaining.
func (c *TemplateChain) Add(name string) *TemplateChain {
	c.names = append(c.names, name)
	return c
}

// Render renders every chained template in order against the same vars.
func (c *TemplateChain) Render(vars map[string]Value) (string, error) {
	var b strings.Builder
	for _, name := range c.names {
		out, err := vm.RenderTemplate(c.env, name, vars)
		if err != nil {
			return "", err
		}
		b.WriteString(out)
	}
	return b.String(), nil
}

// BatchRenderer renders a single template name against many variable sets,
// useful for report/mailer-style bulk rendering.
type BatchRenderer struct {
	env *Environment
}

// NewBatchRenderer binds a BatchRenderer to env.
func NewBatchRenderer(env *Environment) *BatchRenderer {
	return &BatchRenderer{env: env}
}

// RenderAll renders name once per entry in varsets, in order.
func (b *BatchRenderer) RenderAll(name string, varsets []map[string]Value) ([]string, error) {
	out := make([]string, len(varsets))
	for i, vars := range varsets {
		s, err := vm.RenderTemplate(b.env, name, vars)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}
