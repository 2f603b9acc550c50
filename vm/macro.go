package vm

import (
	"github.com/tmpleaf/gojinja2/compiler"
	"github.com/tmpleaf/gojinja2/jinjaerr"
	"github.com/tmpleaf/gojinja2/value"
)

// MacroObject is the callable value a `{% macro %}` or `{% call %}` block
// compiles to: invoking it pushes a frame, binds arguments against the
// signature (with lazily-evaluated defaults), runs the captured body, and
// returns the rendered text as a safe string, grounded on minijinja's
// vm/macro_support.rs (original_source) and the teacher's (deicod-gojinja)
// runtime representation of a callable macro value.
type MacroObject struct {
	value.BaseObject
	Def     *compiler.MacroDef
	Closure *Frame
	Exec    *Exec
}

func (m *MacroObject) Repr() value.Repr { return value.ReprPlain }

func (m *MacroObject) Render(value.RenderFormat) string { return "<macro " + m.Def.Name + ">" }

// Call implements the plain Object.Call path (positional args only, no
// kwargs) for contexts that invoke a macro Value generically.
func (m *MacroObject) Call(_ value.CallState, args []value.Value) (value.Value, error) {
	return m.Invoke(args, nil, nil)
}

func (m *MacroObject) CallMethod(st value.CallState, name string, args []value.Value) (value.Value, error) {
	return m.BaseObject.CallMethod(st, name, args)
}

// Invoke is the full calling convention used by the VM's call opcodes,
// which track kwargs separately from positional args (spec §4.2's
// `f(*args, **kwargs)` grammar). callerFrame, if non-nil, is the frame
// active at the call site; if it binds a local named "caller" and this
// macro's own signature does not shadow that name, it is threaded into the
// macro body so `{% call %}` blocks can invoke `caller()` from inside the
// callee (a pragmatic approximation of Jinja's implicit caller binding,
// rather than full dynamic scoping).
func (m *MacroObject) Invoke(args []value.Value, kwargs *value.OrderedMap, callerFrame *Frame) (value.Value, error) {
	child := m.Closure.Push()

	if callerFrame != nil {
		if caller, ok := callerFrame.Lookup("caller"); ok {
			shadowed := false
			for _, a := range m.Def.ArgNames {
				if a == "caller" {
					shadowed = true
					break
				}
			}
			if !shadowed {
				child.Store("caller", caller)
			}
		}
	}

	n := len(m.Def.ArgNames)
	if len(args) > n && m.Def.VarArg == "" {
		return value.Undefined, jinjaerr.Newf(jinjaerr.KindTooManyArguments, "macro %q takes at most %d arguments, got %d", m.Def.Name, n, len(args))
	}
	for i, argName := range m.Def.ArgNames {
		switch {
		case i < len(args):
			child.Store(argName, args[i])
		case kwargs != nil:
			if v, ok := kwargs.Get(value.KeyString(argName)); ok {
				child.Store(argName, v)
				continue
			}
			fallthrough
		default:
			if def, ok := m.Def.Defaults[argName]; ok {
				v, err := m.Exec.evalExpr(def, child)
				if err != nil {
					return value.Undefined, err
				}
				child.Store(argName, v)
			} else {
				child.Store(argName, value.Undefined)
			}
		}
	}
	if m.Def.VarArg != "" {
		var extra []value.Value
		if len(args) > n {
			extra = append(extra, args[n:]...)
		}
		child.Store(m.Def.VarArg, value.Seq(extra))
	}

	consumed := map[string]bool{}
	for _, a := range m.Def.ArgNames {
		consumed[a] = true
	}
	leftover := value.NewOrderedMap()
	if kwargs != nil {
		for _, k := range kwargs.Keys() {
			if s, ok := k.AsStr(); ok && consumed[s] {
				continue
			}
			v, _ := kwargs.Get(k)
			leftover.Set(k, v)
		}
	}
	if m.Def.KwArg != "" {
		child.Store(m.Def.KwArg, value.Map(leftover))
	} else if leftover.Len() > 0 {
		return value.Undefined, jinjaerr.Newf(jinjaerr.KindTooManyArguments, "macro %q got unexpected keyword arguments", m.Def.Name)
	}

	if err := m.Exec.enterRecursion(); err != nil {
		return value.Undefined, err
	}
	defer m.Exec.leaveRecursion()

	out, err := m.Exec.runCapture(m.Def.Body, child)
	if err != nil {
		return value.Undefined, err
	}
	return value.SafeString(out), nil
}
