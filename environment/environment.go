// Package environment is the template registry: parsed/compiled template
// cache, filter/test/global function tables, syntax and auto-escape
// configuration, and the fuel/recursion budget shared by every render
// (spec §4.6/§6), adapted from the teacher's (deicod-gojinja)
// runtime/environment.go onto the value/compiler pipeline.
package environment

import (
	"fmt"
	"sync"

	"github.com/tmpleaf/gojinja2/compiler"
	"github.com/tmpleaf/gojinja2/nodes"
	"github.com/tmpleaf/gojinja2/security"
	"github.com/tmpleaf/gojinja2/value"
)

// State is the minimal view of an in-progress render that filters, tests
// and global functions are given; satisfied structurally by *vm.Exec
// without environment importing vm (which would cycle back).
type State interface {
	AutoEscapeHTML() bool
	Fuel() (remaining uint64, limited bool)
	Lookup(name string) (value.Value, bool)
	Env() *Environment
}

// FilterFunc implements a `|name` filter.
type FilterFunc func(st State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error)

// TestFunc implements an `is name` test.
type TestFunc func(st State, val value.Value, args []value.Value, kwargs map[string]value.Value) (bool, error)

// GlobalFunc implements a bare callable global such as `range(...)`.
type GlobalFunc func(st State, args []value.Value, kwargs map[string]value.Value) (value.Value, error)

// AutoEscapeMode selects the default escaping policy for a template,
// resolved once per template name (spec §6).
type AutoEscapeMode uint8

const (
	AutoEscapeNone AutoEscapeMode = iota
	AutoEscapeHTML
	AutoEscapeJSON
)

// DefaultAutoEscape sniffs a template's auto-escape mode from its file
// extension, the same heuristic minijinja's Go port uses (grounded on
// other_examples/f339f40c_mitsuhiko-minijinja__minijinja-go-environment.go.go):
// `.html`/`.htm`/`.xml` escape as HTML, `.json`/`.json5` escape as JSON,
// anything else is unescaped.
func DefaultAutoEscape(name string) AutoEscapeMode {
	for _, suffix := range []string{".j2", ".jinja2", ".jinja"} {
		if len(name) > len(suffix) && name[len(name)-len(suffix):] == suffix {
			name = name[:len(name)-len(suffix)]
			break
		}
	}
	switch ext(name) {
	case ".html", ".htm", ".xml":
		return AutoEscapeHTML
	case ".json", ".json5":
		return AutoEscapeJSON
	default:
		return AutoEscapeNone
	}
}

func ext(name string) string {
	for i := len(name) - 1; i >= 0 && name[i] != '/'; i-- {
		if name[i] == '.' {
			return name[i:]
		}
	}
	return ""
}

// Loader resolves a template name to its source text (spec §4.6
// "template loading"). On-disk path resolution/sandboxing is an explicit
// engine non-goal (spec's Non-goals); loaders here are in-memory or
// caller-supplied.
type Loader interface {
	Load(name string) (string, error)
}

// MapLoader is a Loader backed by an in-memory name->source map.
type MapLoader map[string]string

func (m MapLoader) Load(name string) (string, error) {
	src, ok := m[name]
	if !ok {
		return "", fmt.Errorf("template not found: %s", name)
	}
	return src, nil
}

// CompiledTemplate is a template's parsed+compiled form, cached by name.
type CompiledTemplate struct {
	Name         string
	Source       string
	Instructions *compiler.Instructions
	AutoEscape   AutoEscapeMode
	Extends      string // resolved at compile time from a leading Extends node with a constant name, if any
}

// Environment is the top-level registry a render is driven through.
type Environment struct {
	Loader Loader

	Delimiters          lexerDelimiters
	TrimBlocks          bool
	LstripBlocks        bool
	KeepTrailingNewline bool

	AutoEscapePolicy func(name string) AutoEscapeMode
	Fuel             uint64 // 0 = unlimited
	RecursionLimit   int

	// Security, when non-nil, gates every attribute/method/filter/test/
	// function/template access a render makes through SecurityPolicyName
	// (spec §9's sandbox layer, on top of the unconditional fuel budget
	// above). Nil means no sandboxing: every registered name is reachable.
	Security           *security.Manager
	SecurityPolicyName string

	mu        sync.RWMutex
	filters   map[string]FilterFunc
	tests     map[string]TestFunc
	functions map[string]GlobalFunc
	globals   map[string]value.Value
	compiled  map[string]*CompiledTemplate
}

// lexerDelimiters is kept as a local alias so this file doesn't need to
// import the lexer package just for the struct shape used by New(); the
// parser bridge (compile_bridge.go) does the real import.
type lexerDelimiters = struct {
	BlockStart, BlockEnd, VariableStart, VariableEnd, CommentStart, CommentEnd, LineStatement, LineComment string
}

// New builds an Environment with Jinja2's default delimiters, HTML/JSON
// extension-sniffing auto-escape, no fuel limit, and a recursion limit of
// 100 (spec §9 "unbounded recursion must be rejected, not merely slow").
func New(loader Loader) *Environment {
	return &Environment{
		Loader:           loader,
		Delimiters:       lexerDelimiters{BlockStart: "{%", BlockEnd: "%}", VariableStart: "{{", VariableEnd: "}}", CommentStart: "{#", CommentEnd: "#}"},
		AutoEscapePolicy: DefaultAutoEscape,
		RecursionLimit:   100,
		filters:          make(map[string]FilterFunc),
		tests:            make(map[string]TestFunc),
		functions:        make(map[string]GlobalFunc),
		globals:          make(map[string]value.Value),
		compiled:         make(map[string]*CompiledTemplate),
	}
}

// UseSandbox turns on the security package's access checks for every
// subsequent render of this Environment, gated by the named policy
// ("default", "development" or "restricted" out of the box, or any name
// previously registered with manager.AddPolicy).
func (e *Environment) UseSandbox(manager *security.Manager, policyName string) {
	e.Security = manager
	e.SecurityPolicyName = policyName
}

func (e *Environment) AddFilter(name string, fn FilterFunc)     { e.mu.Lock(); defer e.mu.Unlock(); e.filters[name] = fn }
func (e *Environment) AddTest(name string, fn TestFunc)         { e.mu.Lock(); defer e.mu.Unlock(); e.tests[name] = fn }
func (e *Environment) AddFunction(name string, fn GlobalFunc)   { e.mu.Lock(); defer e.mu.Unlock(); e.functions[name] = fn }
func (e *Environment) AddGlobal(name string, v value.Value)     { e.mu.Lock(); defer e.mu.Unlock(); e.globals[name] = v }

func (e *Environment) Filter(name string) (FilterFunc, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn, ok := e.filters[name]
	return fn, ok
}

func (e *Environment) Test(name string) (TestFunc, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn, ok := e.tests[name]
	return fn, ok
}

func (e *Environment) Function(name string) (GlobalFunc, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn, ok := e.functions[name]
	return fn, ok
}

func (e *Environment) Global(name string) (value.Value, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.globals[name]
	return v, ok
}

// AddTemplate compiles and caches source under name, bypassing the
// Loader; useful for programmatically-constructed templates (spec §4.6).
func (e *Environment) AddTemplate(name, source string) (*CompiledTemplate, error) {
	ct, err := e.compile(name, source)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.compiled[name] = ct
	e.mu.Unlock()
	return ct, nil
}

// GetTemplate returns the compiled template for name, loading and
// compiling it on first use via Loader (spec §4.6 memoizing loader).
func (e *Environment) GetTemplate(name string) (*CompiledTemplate, error) {
	e.mu.RLock()
	ct, ok := e.compiled[name]
	e.mu.RUnlock()
	if ok {
		return ct, nil
	}
	if e.Loader == nil {
		return nil, fmt.Errorf("template not found: %s (no loader configured)", name)
	}
	src, err := e.Loader.Load(name)
	if err != nil {
		return nil, err
	}
	return e.AddTemplate(name, src)
}

func (e *Environment) compile(name, source string) (*CompiledTemplate, error) {
	tmpl, err := parseWithDelimiters(source, name, e.Delimiters, e.TrimBlocks, e.LstripBlocks, e.KeepTrailingNewline)
	if err != nil {
		return nil, err
	}
	ins, err := compiler.Compile(tmpl, name, source)
	if err != nil {
		return nil, err
	}
	mode := AutoEscapeNone
	if e.AutoEscapePolicy != nil {
		mode = e.AutoEscapePolicy(name)
	}
	extends := ""
	if len(tmpl.Body) > 0 {
		if ex, ok := tmpl.Body[0].(*nodes.Extends); ok {
			if c, ok := ex.Template.(*nodes.Const); ok {
				if s, ok := c.Value.(string); ok {
					extends = s
				}
			}
		}
	}
	return &CompiledTemplate{Name: name, Source: source, Instructions: ins, AutoEscape: mode, Extends: extends}, nil
}

// parseWithDelimiters is implemented in compile_bridge.go, which is the
// only file in this package that imports the parser package (syntax_config.go
// imports lexer only for delimiter validation), keeping the dependency
// direction obvious.
var parseWithDelimiters = defaultParseWithDelimiters
