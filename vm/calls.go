package vm

import (
	"strings"

	"github.com/tmpleaf/gojinja2/compiler"
	"github.com/tmpleaf/gojinja2/environment"
	"github.com/tmpleaf/gojinja2/jinjaerr"
	"github.com/tmpleaf/gojinja2/output"
	"github.com/tmpleaf/gojinja2/value"
)

func escapeHTML(v value.Value, b *strings.Builder) { output.HTML(v, b) }

// callGlobal resolves name against the local/global scope before falling
// back to a registered GlobalFunc (spec §4.2 "a name in scope shadows a
// builtin global of the same name"). `super` is special-cased here rather
// than compiled to its own opcode, since it appears as an ordinary call
// expression (`{{ super() }}`) in the source grammar.
func (e *Exec) callGlobal(name string, args []value.Value, kwargs *value.OrderedMap, cur *Frame) (value.Value, error) {
	if v, ok := cur.Lookup(name); ok {
		return e.callValue(v, args, kwargs, cur)
	}
	if v, ok := e.env.Global(name); ok {
		return e.callValue(v, args, kwargs, cur)
	}
	if name == "super" && len(e.activeBlockNames) > 0 {
		return e.renderSuperValue()
	}
	if fn, ok := e.env.Function(name); ok {
		if !e.checkFunction(name) {
			return value.Undefined, e.errf(jinjaerr.KindSecurityPolicy, "function %q denied by security policy", name)
		}
		return fn(e, args, kwargsToMap(kwargs))
	}
	return value.Undefined, e.errf(jinjaerr.KindUnknownFunction, "no function named %q", name)
}

func (e *Exec) callValue(callee value.Value, args []value.Value, kwargs *value.OrderedMap, cur *Frame) (value.Value, error) {
	if callee.Kind() != value.KindObject || callee.Object() == nil {
		return value.Undefined, e.errf(jinjaerr.KindInvalidOperation, "value of type %s is not callable", callee.Kind())
	}
	if mo, ok := callee.Object().(*MacroObject); ok {
		return mo.Invoke(args, kwargs, cur)
	}
	v, err := callee.Object().Call(e, args)
	if err != nil {
		return value.Undefined, e.wrap(err)
	}
	return v, nil
}

// callBlock streams the current-most-derived override of name directly to
// the active output sink (spec §4.6 `{% block %}` statement rendering).
func (e *Exec) callBlock(name string, ins *compiler.Instructions) error {
	chain := e.blockChains[name]
	if chain == nil {
		if b, ok := ins.Blocks[name]; ok {
			chain = []*compiler.Instructions{b}
		} else {
			return e.errf(jinjaerr.KindEvalBlock, "no block named %q", name)
		}
	}
	e.pushBlockIndex(name, 0)
	e.activeBlockNames = append(e.activeBlockNames, name)
	defer func() {
		e.activeBlockNames = e.activeBlockNames[:len(e.activeBlockNames)-1]
		e.popBlockIndex(name)
	}()
	return e.run(chain[0], e.frame.Push())
}

// callSuper is the OpCallSuper opcode's handler: a statement-position
// super render that streams directly, kept for symmetry with OpCallBlock
// even though the compiler currently only reaches a super block through
// the `{{ super() }}` expression path handled by renderSuperValue.
func (e *Exec) callSuper(name string) error {
	idx := e.currentBlockIndex(name)
	chain := e.blockChains[name]
	next := idx + 1
	if chain == nil || next >= len(chain) {
		return e.errf(jinjaerr.KindEvalBlock, "no parent block to call super() on for %q", name)
	}
	e.pushBlockIndex(name, next)
	e.activeBlockNames = append(e.activeBlockNames, name)
	defer func() {
		e.activeBlockNames = e.activeBlockNames[:len(e.activeBlockNames)-1]
		e.popBlockIndex(name)
	}()
	return e.run(chain[next], e.frame.Push())
}

// renderSuperValue implements `{{ super() }}`: the parent override's
// output is captured (not streamed) so it can be used as an expression
// value, then marked safe since it already passed through escaping once.
func (e *Exec) renderSuperValue() (value.Value, error) {
	name := e.activeBlockNames[len(e.activeBlockNames)-1]
	idx := e.currentBlockIndex(name)
	chain := e.blockChains[name]
	next := idx + 1
	if chain == nil || next >= len(chain) {
		return value.Undefined, e.errf(jinjaerr.KindEvalBlock, "no parent block to call super() on for %q", name)
	}
	e.pushBlockIndex(name, next)
	e.activeBlockNames = append(e.activeBlockNames, name)
	out, err := e.runCapture(chain[next], e.frame.Push())
	e.activeBlockNames = e.activeBlockNames[:len(e.activeBlockNames)-1]
	e.popBlockIndex(name)
	if err != nil {
		return value.Undefined, err
	}
	return value.SafeString(out), nil
}

// doInclude renders another template directly into the current sink (spec
// §4.6 `{% include %}`), optionally inheriting the caller's frame. It
// reuses this Exec (sharing the fuel/recursion budget and output sink)
// rather than spawning an independent one, swapping in the included
// template's own name and auto-escape mode for the duration of the call.
func (e *Exec) doInclude(nameVal value.Value, ignoreMissing, withContext bool, cur *Frame) error {
	if err := e.enterRecursion(); err != nil {
		return err
	}
	defer e.leaveRecursion()

	names := candidateNames(nameVal)
	var lastErr error
	for _, name := range names {
		if !e.checkTemplate(name) {
			lastErr = e.errf(jinjaerr.KindTemplateNotFound, "template %q denied by security policy", name)
			continue
		}
		ct, err := e.env.GetTemplate(name)
		if err != nil {
			lastErr = err
			continue
		}
		base := NewFrame(map[string]value.Value{})
		if withContext {
			base = cur.Push()
		}
		prevName := e.name
		e.name = ct.Name
		e.autoescape = append(e.autoescape, ct.AutoEscape == environment.AutoEscapeHTML)
		err = e.run(ct.Instructions, base)
		e.autoescape = e.autoescape[:len(e.autoescape)-1]
		e.name = prevName
		return err
	}
	if ignoreMissing {
		return nil
	}
	if lastErr == nil {
		lastErr = e.errf(jinjaerr.KindTemplateNotFound, "template not found: %v", nameVal)
	}
	return lastErr
}

func candidateNames(v value.Value) []string {
	if s, ok := v.AsStr(); ok {
		return []string{s}
	}
	if seq, ok := v.AsSeq(); ok {
		out := make([]string, 0, len(seq))
		for _, item := range seq {
			if s, ok := item.AsStr(); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// doImport renders name's module-level code in isolation (discarding any
// output it produces) and returns a map Value of its exported top-level
// bindings (spec §4.6 `{% import %}`/`{% from import %}`).
func (e *Exec) doImport(nameVal value.Value, withContext bool, cur *Frame) (value.Value, error) {
	name, ok := nameVal.AsStr()
	if !ok {
		return value.Undefined, e.errf(jinjaerr.KindBadInclude, "import target is not a string")
	}
	if err := e.enterRecursion(); err != nil {
		return value.Undefined, err
	}
	defer e.leaveRecursion()

	if !e.checkTemplate(name) {
		return value.Undefined, e.errf(jinjaerr.KindTemplateNotFound, "template %q denied by security policy", name)
	}
	ct, err := e.env.GetTemplate(name)
	if err != nil {
		return value.Undefined, err
	}
	var base *Frame
	if withContext {
		base = cur.Push()
	} else {
		base = NewFrame(map[string]value.Value{})
	}
	prevName := e.name
	e.name = ct.Name
	e.autoescape = append(e.autoescape, ct.AutoEscape == environment.AutoEscapeHTML)
	_, err = e.runCapture(ct.Instructions, base)
	e.autoescape = e.autoescape[:len(e.autoescape)-1]
	e.name = prevName
	if err != nil {
		return value.Undefined, err
	}
	m := value.NewOrderedMap()
	exports := ct.Instructions.Exports
	for k, v := range base.vars {
		if strings.HasPrefix(k, "@") {
			continue
		}
		if len(exports) > 0 && !contains(exports, k) {
			continue
		}
		m.Set(value.KeyString(k), v)
	}
	return value.Map(m), nil
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

// recurseLoop re-enters the `{% for ... recursive %}` byte range headed by
// the OpPushLoop at pushPC with a fresh iterable, reusing the exact same
// compiled body (target-unpacking, loop-filter, break/continue) instead of
// re-implementing loop semantics in Go (spec §4.5).
func (e *Exec) recurseLoop(ins *compiler.Instructions, pushPC int, parent *Frame, newIter value.Value) (value.Value, error) {
	if err := e.enterRecursion(); err != nil {
		return value.Undefined, err
	}
	defer e.leaveRecursion()

	popPC := matchPopLoop(ins, pushPC)
	e.out.PushCapture()
	_, err := e.execRange(ins, pushPC, popPC, parent, []value.Value{newIter})
	out := e.out.PopCapture()
	if err != nil {
		return value.Undefined, err
	}
	return value.SafeString(out), nil
}

// matchPopLoop finds the OpPopLoop matching the OpPushLoop at pushPC,
// accounting for loops nested inside the body.
func matchPopLoop(ins *compiler.Instructions, pushPC int) int {
	depth := 0
	for pc := pushPC; pc < ins.Len(); pc++ {
		switch ins.Get(pc).Op {
		case compiler.OpPushLoop:
			depth++
		case compiler.OpPopLoop:
			depth--
			if depth == 0 {
				return pc
			}
		}
	}
	return ins.Len() - 1
}
