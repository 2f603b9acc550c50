// Package vm is the bytecode interpreter: it drives a compiler.Instructions
// stream over an operand stack, resolves names through a chain of Frames,
// layers `{% block %}` overrides across an `extends` chain, and enforces
// the fuel/recursion budget (spec §4.4/§4.5/§9), grounded on minijinja's
// vm/mod.rs (original_source) generalized onto the teacher's
// (deicod-gojinja) environment/runtime split.
package vm

import (
	"strings"

	"github.com/tmpleaf/gojinja2/compiler"
	"github.com/tmpleaf/gojinja2/environment"
	"github.com/tmpleaf/gojinja2/jinjaerr"
	"github.com/tmpleaf/gojinja2/output"
	"github.com/tmpleaf/gojinja2/security"
	"github.com/tmpleaf/gojinja2/value"
)

// Exec is one render's execution state. It is not safe for concurrent use;
// callers render once per Exec the way the teacher's runtime.Context is
// scoped to a single render call.
type Exec struct {
	env  *environment.Environment
	name string // template name currently executing, for error location

	out *output.Sink

	frame *Frame

	blockChains      map[string][]*compiler.Instructions
	blockIdx         map[string][]int
	activeBlockNames []string
	autoescape       []bool
	curIns        *compiler.Instructions
	curPC         int

	fuelRemaining uint64
	fuelLimited   bool

	depth      int
	depthLimit int

	pendingImport     value.Value
	pendingImportLeft int

	// sec is non-nil only when env.Security is configured (spec §9's
	// optional sandbox layer); every vm check consulting it must also
	// handle the nil case as "allow".
	sec *security.Session
}

// NewExec builds the execution state for rendering ct inside env. globals
// seeds the root frame (the values passed to Render plus env-registered
// globals).
func NewExec(env *environment.Environment, name string, autoescapeHTML bool, globals map[string]value.Value) *Exec {
	e := &Exec{
		env:         env,
		name:        name,
		frame:       NewFrame(globals),
		blockChains: make(map[string][]*compiler.Instructions),
		blockIdx:    make(map[string][]int),
		autoescape:  []bool{autoescapeHTML},
		depthLimit:  env.RecursionLimit,
	}
	if env.Fuel > 0 {
		e.fuelRemaining = env.Fuel
		e.fuelLimited = true
	}
	if env.Security != nil {
		if sess, err := env.Security.NewSession(env.SecurityPolicyName, name); err == nil {
			e.sec = sess
		}
	}
	return e
}

// checkAttr, checkMethod, checkFilter, checkTest, checkFunction and
// checkTemplate all report whether the named access may proceed. With no
// sandbox configured (e.sec == nil) every access is allowed; otherwise the
// decision and its audit entry come from the active security.Session.
func (e *Exec) checkAttr(path string) bool {
	if e.sec == nil {
		return true
	}
	return e.sec.CheckAttribute(path)
}

func (e *Exec) checkMethod(name string) bool {
	if e.sec == nil {
		return true
	}
	return e.sec.CheckMethod(name)
}

func (e *Exec) checkFilter(name string) bool {
	if e.sec == nil {
		return true
	}
	return e.sec.CheckFilter(name)
}

func (e *Exec) checkTest(name string) bool {
	if e.sec == nil {
		return true
	}
	return e.sec.CheckTest(name)
}

func (e *Exec) checkFunction(name string) bool {
	if e.sec == nil {
		return true
	}
	return e.sec.CheckFunction(name)
}

func (e *Exec) checkTemplate(name string) bool {
	if e.sec == nil {
		return true
	}
	return e.sec.CheckTemplate(name)
}

// Security returns the active audit session, or nil if this render has no
// sandbox policy configured. Callers use it to inspect violations/audit
// entries after RenderTemplate returns.
func (e *Exec) Security() *security.Session { return e.sec }

// environment.State -----------------------------------------------------

func (e *Exec) AutoEscapeHTML() bool {
	return e.autoescape[len(e.autoescape)-1]
}

func (e *Exec) Fuel() (uint64, bool) { return e.fuelRemaining, e.fuelLimited }

func (e *Exec) Lookup(name string) (value.Value, bool) {
	if v, ok := e.frame.Lookup(name); ok {
		return v, true
	}
	if v, ok := e.env.Global(name); ok {
		return v, true
	}
	return value.Undefined, false
}

func (e *Exec) Env() *environment.Environment { return e.env }

// consumeFuel decrements the budget by n, erroring once exhausted (spec
// §9: "a fuel-limited environment must reject runaway templates, not just
// slow ones").
func (e *Exec) consumeFuel(n uint64) error {
	if !e.fuelLimited {
		return nil
	}
	if e.fuelRemaining < n {
		e.fuelRemaining = 0
		return jinjaerr.New(jinjaerr.KindFuelExhausted, "render exceeded its fuel budget").At(e.name, e.curIns.LineAt(e.curPC))
	}
	e.fuelRemaining -= n
	if e.sec != nil && !e.sec.CheckExecutionTime() {
		return jinjaerr.New(jinjaerr.KindFuelExhausted, "render exceeded its security policy's execution time budget").At(e.name, e.curIns.LineAt(e.curPC))
	}
	return nil
}

func (e *Exec) enterRecursion() error {
	e.depth++
	if e.depthLimit > 0 && e.depth > e.depthLimit {
		return jinjaerr.New(jinjaerr.KindRecursionLimit, "recursion limit reached").At(e.name, e.curIns.LineAt(e.curPC))
	}
	return nil
}

func (e *Exec) leaveRecursion() { e.depth-- }

func (e *Exec) pushBlockIndex(name string, idx int) {
	e.blockIdx[name] = append(e.blockIdx[name], idx)
}

func (e *Exec) popBlockIndex(name string) {
	s := e.blockIdx[name]
	e.blockIdx[name] = s[:len(s)-1]
}

func (e *Exec) currentBlockIndex(name string) int {
	s := e.blockIdx[name]
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1]
}

// runCapture executes ins against frame with a fresh capture buffer
// (`{% set %}`/`{% filter %}` blocks and macro bodies, spec §4.6).
func (e *Exec) runCapture(ins *compiler.Instructions, frame *Frame) (string, error) {
	e.out.PushCapture()
	err := e.run(ins, frame)
	captured := e.out.PopCapture()
	if err != nil {
		return "", err
	}
	return captured, nil
}

// evalExpr executes an expression-only instruction fragment (macro default
// values, filter/test dynamic args are inlined directly, this is used only
// for MacroDef.Defaults) and returns the single value it leaves on the
// stack.
func (e *Exec) evalExpr(ins *compiler.Instructions, frame *Frame) (value.Value, error) {
	stack, err := e.exec(ins, frame)
	if err != nil {
		return value.Undefined, err
	}
	if len(stack) == 0 {
		return value.Undefined, nil
	}
	return stack[len(stack)-1], nil
}

// run executes ins for its side effects (emitted output), discarding
// anything left on the operand stack.
func (e *Exec) run(ins *compiler.Instructions, frame *Frame) error {
	_, err := e.exec(ins, frame)
	return err
}

// RenderTemplate is the top-level entry point: resolves name's `extends`
// chain (if any), layers block overrides, and renders to a string.
func RenderTemplate(env *environment.Environment, name string, globals map[string]value.Value) (string, error) {
	out, _, err := RenderTemplateWithSecurity(env, name, globals)
	return out, err
}

// RenderTemplateWithSecurity is RenderTemplate plus the render's
// security.Session (nil unless env.Security is configured), so a caller
// can inspect Violations()/AuditLog() after the render completes.
func RenderTemplateWithSecurity(env *environment.Environment, name string, globals map[string]value.Value) (string, *security.Session, error) {
	ct, err := env.GetTemplate(name)
	if err != nil {
		return "", nil, err
	}
	chain := []*environment.CompiledTemplate{ct}
	seen := map[string]bool{name: true}
	cur := ct
	for cur.Extends != "" {
		if seen[cur.Extends] {
			return "", nil, jinjaerr.Newf(jinjaerr.KindBadInclude, "circular `extends` involving %q", cur.Extends).At(name, 0)
		}
		parent, err := env.GetTemplate(cur.Extends)
		if err != nil {
			return "", nil, err
		}
		chain = append(chain, parent)
		seen[cur.Extends] = true
		cur = parent
	}
	base := chain[len(chain)-1]

	e := NewExec(env, base.Name, ct.AutoEscape == environment.AutoEscapeHTML, globals)
	if !e.checkTemplate(name) {
		return "", e.sec, jinjaerr.New(jinjaerr.KindTemplateNotFound, "template access denied by security policy").At(name, 0)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		for bname, bins := range chain[i].Instructions.Blocks {
			e.blockChains[bname] = append([]*compiler.Instructions{bins}, e.blockChains[bname]...)
		}
	}
	var b strings.Builder
	e.out = output.NewSink(&b)
	if err := e.run(base.Instructions, e.frame); err != nil {
		return "", e.sec, err
	}
	out := b.String()
	if e.sec != nil {
		e.sec.UpdateOutputSize(len(out))
		out = e.sec.SanitizeOutput(out)
	}
	return out, e.sec, nil
}
