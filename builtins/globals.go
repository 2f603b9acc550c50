package builtins

import (
	"fmt"

	"github.com/tmpleaf/gojinja2/environment"
	"github.com/tmpleaf/gojinja2/value"
)

func registerGlobals(env *environment.Environment) {
	env.AddFunction("range", globalRange)
	env.AddFunction("dict", globalDict)
	env.AddFunction("namespace", globalNamespace)
	env.AddFunction("debug", globalDebug)
}

// globalRange mirrors Python's range(): one arg is stop, two are
// start/stop, three are start/stop/step.
func globalRange(st environment.State, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	var start, stop, step int64 = 0, 0, 1
	switch len(args) {
	case 1:
		n, ok := args[0].Int()
		if !ok {
			return value.Undefined, fmt.Errorf("range() argument must be an integer")
		}
		stop = n
	case 2, 3:
		a, ok := args[0].Int()
		if !ok {
			return value.Undefined, fmt.Errorf("range() argument must be an integer")
		}
		b, ok := args[1].Int()
		if !ok {
			return value.Undefined, fmt.Errorf("range() argument must be an integer")
		}
		start, stop = a, b
		if len(args) == 3 {
			s, ok := args[2].Int()
			if !ok || s == 0 {
				return value.Undefined, fmt.Errorf("range() step argument must be a non-zero integer")
			}
			step = s
		}
	default:
		return value.Undefined, fmt.Errorf("range() requires 1 to 3 arguments")
	}
	var out []value.Value
	if step > 0 {
		for i := start; i < stop; i += step {
			out = append(out, value.I64(i))
		}
	} else {
		for i := start; i > stop; i += step {
			out = append(out, value.I64(i))
		}
	}
	return value.Seq(out), nil
}

// globalDict builds a mapping from keyword arguments, e.g. `dict(a=1, b=2)`.
func globalDict(st environment.State, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	m := value.NewOrderedMap()
	for k, v := range kwargs {
		m.Set(value.KeyString(k), v)
	}
	return value.Map(m), nil
}

// globalDebug surfaces the current fuel budget as a diagnostic string; the
// full interactive inspector the teacher's debug command implies is out of
// scope (the CLI/REPL is an explicit engine non-goal).
func globalDebug(st environment.State, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	remaining, limited := st.Fuel()
	if !limited {
		return value.String("fuel: unlimited"), nil
	}
	return value.String(fmt.Sprintf("fuel: %d remaining", remaining)), nil
}

// globalNamespace returns a mutable attribute container seeded from
// keyword arguments (spec §6: "a namespace's attributes may be reassigned
// inside a loop body to escape the loop's scoping rules"), grounded on
// runtime/namespace.go adapted onto value.Value/value.Object.
func globalNamespace(st environment.State, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	ns := newNamespaceObject()
	for k, v := range kwargs {
		ns.m.Set(value.KeyString(k), v)
	}
	return value.FromObject(ns), nil
}

// namespaceObject implements value.Object and value.Setter over an
// OrderedMap, so `{% set ns.attr = x %}` (compiled to OpSetAttr) can
// mutate it in place instead of rebinding a new local.
type namespaceObject struct {
	value.BaseObject
	m *value.OrderedMap
}

func newNamespaceObject() *namespaceObject {
	return &namespaceObject{m: value.NewOrderedMap()}
}

func (n *namespaceObject) GetValue(key value.Value) (value.Value, bool) {
	k, ok := value.ToKey(key)
	if !ok {
		return value.Undefined, false
	}
	return n.m.Get(k)
}

func (n *namespaceObject) SetValue(key value.Value, val value.Value) bool {
	k, ok := value.ToKey(key)
	if !ok {
		return false
	}
	n.m.Set(k, val)
	return true
}

func (n *namespaceObject) Enumerate() value.Enumeration {
	keys := n.m.Keys()
	strs := make([]string, 0, len(keys))
	for _, k := range keys {
		if s, ok := k.AsStr(); ok {
			strs = append(strs, s)
		}
	}
	return value.Enumeration{Kind: value.EnumStaticStrings, Strings: strs}
}

func (n *namespaceObject) Len() (int, bool) { return n.m.Len(), true }

func (n *namespaceObject) Repr() value.Repr { return value.ReprMap }

func (n *namespaceObject) Render(format value.RenderFormat) string {
	return value.Map(n.m).Repr()
}
