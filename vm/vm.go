package vm

import (
	"strings"

	"github.com/tmpleaf/gojinja2/compiler"
	"github.com/tmpleaf/gojinja2/jinjaerr"
	"github.com/tmpleaf/gojinja2/value"
)

// fuelPerInstruction is charged for every executed opcode when the
// environment has a fuel budget configured (spec §9). minijinja charges
// fuel per-instruction rather than per-template-byte so the cost model
// tracks actual interpreter work, including loop bodies executed many
// times over a short source.
const fuelPerInstruction = 1

// exec is the fetch-decode-execute loop. It runs the full instruction
// stream of ins starting at pc 0, returning whatever operand stack is left
// at the end (non-empty only for expression fragments such as macro
// defaults).
func (e *Exec) exec(ins *compiler.Instructions, frame *Frame) ([]value.Value, error) {
	return e.execRange(ins, 0, ins.Len()-1, frame, nil)
}

// execRange runs ins from startPC through endPC inclusive, seeded with
// initialStack. Used both by exec (full stream) and by the recursive
// `{% for %}` loop variable, which re-enters exactly the PushLoop..PopLoop
// byte range of its own enclosing loop with a fresh iterable.
func (e *Exec) execRange(ins *compiler.Instructions, startPC, endPC int, frame *Frame, initialStack []value.Value) ([]value.Value, error) {
	stack := initialStack
	cur := frame

	push := func(v value.Value) { stack = append(stack, v) }
	pop := func() value.Value {
		n := len(stack)
		v := stack[n-1]
		stack = stack[:n-1]
		return v
	}
	peek := func() value.Value { return stack[len(stack)-1] }

	prevIns, prevPC := e.curIns, e.curPC
	defer func() { e.curIns, e.curPC = prevIns, prevPC }()

	for pc := startPC; pc <= endPC; pc++ {
		e.curIns, e.curPC = ins, pc
		e.frame = cur
		instr := ins.Get(pc)
		if err := e.consumeFuel(fuelPerInstruction); err != nil {
			return nil, err
		}

		switch instr.Op {
		case compiler.OpNop:

		case compiler.OpEmitRaw:
			e.out.WriteString(instr.Str)

		case compiler.OpEmit:
			v := pop()
			e.emitEscaped(v)

		case compiler.OpEmitSafe:
			v := pop()
			e.out.WriteString(v.String())

		case compiler.OpLoadConst:
			push(instr.Const)

		case compiler.OpLookup:
			if v, ok := cur.Lookup(instr.Str); ok {
				push(v)
			} else if v, ok := e.env.Global(instr.Str); ok {
				push(v)
			} else {
				push(value.Undefined)
			}

		case compiler.OpStoreLocal:
			cur.Store(instr.Str, pop())

		case compiler.OpGetAttr:
			obj := pop()
			if !e.checkAttr(instr.Str) {
				return nil, e.errf(jinjaerr.KindSecurityPolicy, "access to attribute %q denied by security policy", instr.Str)
			}
			push(resolveAttr(obj, instr.Str))

		case compiler.OpGetItem:
			key := pop()
			obj := pop()
			v, ok := value.GetItem(obj, key)
			if !ok {
				push(value.Undefined)
			} else {
				push(v)
			}

		case compiler.OpSlice:
			step := optI64(pop())
			stop := optI64(pop())
			start := optI64(pop())
			obj := pop()
			v, err := value.Slice(obj, start, stop, step)
			if err != nil {
				return nil, e.wrap(err)
			}
			push(v)

		case compiler.OpSetAttr:
			v := pop()
			obj := pop()
			if setter, ok := obj.Object().(value.Setter); ok {
				setter.SetValue(value.String(instr.Str), v)
			} else {
				return nil, e.errf(jinjaerr.KindInvalidOperation, "cannot set attribute %q on a non-namespace value", instr.Str)
			}

		case compiler.OpDupTop:
			push(peek())

		case compiler.OpDiscardTop:
			pop()

		case compiler.OpSwap:
			n := len(stack)
			stack[n-1], stack[n-2] = stack[n-2], stack[n-1]

		case compiler.OpAdd, compiler.OpSub, compiler.OpMul, compiler.OpDiv, compiler.OpIntDiv, compiler.OpRem, compiler.OpPow:
			b := pop()
			a := pop()
			v, err := arith(instr.Op, a, b)
			if err != nil {
				return nil, e.wrap(err)
			}
			push(v)

		case compiler.OpNeg:
			v, err := value.Neg(pop())
			if err != nil {
				return nil, e.wrap(err)
			}
			push(v)

		case compiler.OpPos:
			v := pop()
			if !v.IsNumber() {
				return nil, e.errf(jinjaerr.KindInvalidOperation, "unary + requires a number, got %s", v.Kind())
			}
			push(v)

		case compiler.OpNot:
			push(value.Bool(!pop().Truthy()))

		case compiler.OpMarkSafe:
			push(value.SafeString(pop().String()))

		case compiler.OpMarkSafeIfAutoescape:
			v := pop()
			if e.AutoEscapeHTML() {
				push(value.SafeString(v.String()))
			} else {
				push(v)
			}

		case compiler.OpStringConcat:
			b := pop()
			a := pop()
			push(value.StringConcat(a, b))

		case compiler.OpIn:
			haystack := pop()
			needle := pop()
			ok, err := value.In(needle, haystack)
			if err != nil {
				return nil, e.wrap(err)
			}
			push(value.Bool(ok))

		case compiler.OpEq, compiler.OpNe, compiler.OpGt, compiler.OpGte, compiler.OpLt, compiler.OpLte:
			b := pop()
			a := pop()
			v, err := compare(instr.Op, a, b)
			if err != nil {
				return nil, e.wrap(err)
			}
			push(v)

		case compiler.OpJump:
			pc = int(instr.A) - 1

		case compiler.OpJumpIfFalse:
			if !pop().Truthy() {
				pc = int(instr.A) - 1
			}

		case compiler.OpJumpIfFalseOrPop:
			if !peek().Truthy() {
				pc = int(instr.A) - 1
			} else {
				pop()
			}

		case compiler.OpJumpIfTrueOrPop:
			if peek().Truthy() {
				pc = int(instr.A) - 1
			} else {
				pop()
			}

		case compiler.OpCallFunction:
			args, kwargs, err := assembleArgs(&stack, int(instr.A), instr.B)
			if err != nil {
				return nil, err
			}
			v, err := e.callGlobal(instr.Str, args, kwargs, cur)
			if err != nil {
				return nil, err
			}
			e.frame = cur
			push(v)

		case compiler.OpCallFilter:
			args, kwargs, err := assembleArgs(&stack, int(instr.A), instr.B)
			if err != nil {
				return nil, err
			}
			input := pop()
			if !e.checkFilter(instr.Str) {
				return nil, e.errf(jinjaerr.KindSecurityPolicy, "filter %q denied by security policy", instr.Str)
			}
			fn, ok := e.env.Filter(instr.Str)
			if !ok {
				return nil, e.errf(jinjaerr.KindUnknownFilter, "no filter named %q", instr.Str)
			}
			v, err := fn(e, input, args, kwargsToMap(kwargs))
			if err != nil {
				return nil, e.wrap(err)
			}
			push(v)

		case compiler.OpCallTest:
			args, kwargs, err := assembleArgs(&stack, int(instr.A), instr.B)
			if err != nil {
				return nil, err
			}
			input := pop()
			if !e.checkTest(instr.Str) {
				return nil, e.errf(jinjaerr.KindSecurityPolicy, "test %q denied by security policy", instr.Str)
			}
			fn, ok := e.env.Test(instr.Str)
			if !ok {
				return nil, e.errf(jinjaerr.KindUnknownTest, "no test named %q", instr.Str)
			}
			ok2, err := fn(e, input, args, kwargsToMap(kwargs))
			if err != nil {
				return nil, e.wrap(err)
			}
			push(value.Bool(ok2))

		case compiler.OpCallMethod:
			args, kwargs, err := assembleArgs(&stack, int(instr.A), instr.B)
			if err != nil {
				return nil, err
			}
			if kwargs != nil {
				args = append(args, value.Map(kwargs))
			}
			recv := pop()
			if recv.Kind() != value.KindObject || recv.Object() == nil {
				return nil, e.errf(jinjaerr.KindUnknownMethod, "value has no method %q", instr.Str)
			}
			if !e.checkMethod(instr.Str) {
				return nil, e.errf(jinjaerr.KindSecurityPolicy, "method %q denied by security policy", instr.Str)
			}
			v, err := recv.Object().CallMethod(e, instr.Str, args)
			if err != nil {
				return nil, e.wrap(err)
			}
			push(v)

		case compiler.OpCallObject:
			args, kwargs, err := assembleArgs(&stack, int(instr.A), instr.B)
			if err != nil {
				return nil, err
			}
			callee := pop()
			v, err := e.callValue(callee, args, kwargs, cur)
			if err != nil {
				return nil, err
			}
			e.frame = cur
			push(v)

		case compiler.OpBuildList, compiler.OpBuildTuple:
			n := int(instr.A)
			items := make([]value.Value, n)
			for i := n - 1; i >= 0; i-- {
				items[i] = pop()
			}
			push(value.Seq(items))

		case compiler.OpBuildMap:
			n := int(instr.A)
			m := value.NewOrderedMap()
			pairs := make([][2]value.Value, n)
			for i := n - 1; i >= 0; i-- {
				v := pop()
				k := pop()
				pairs[i] = [2]value.Value{k, v}
			}
			for _, p := range pairs {
				k, ok := value.ToKey(p[0])
				if !ok {
					return nil, e.errf(jinjaerr.KindInvalidOperation, "unhashable map key %s", p[0].Kind())
				}
				m.Set(k, p[1])
			}
			push(value.Map(m))

		case compiler.OpBuildKwargs:
			n := int(instr.A)
			m := value.NewOrderedMap()
			pairs := make([][2]value.Value, n)
			for i := n - 1; i >= 0; i-- {
				v := pop()
				k := pop()
				pairs[i] = [2]value.Value{k, v}
			}
			for _, p := range pairs {
				k, _ := value.ToKey(p[0])
				m.Set(k, p[1])
			}
			push(value.Kwargs(m))

		case compiler.OpBuildKwargsMerge:
			extra := pop()
			base := pop()
			m, ok := base.AsMap()
			if !ok {
				return nil, e.errf(jinjaerr.KindInvalidOperation, "kwargs base is not a mapping")
			}
			merged := m.Clone()
			if em, ok := extra.AsMap(); ok {
				merged.Merge(em)
			}
			push(value.Kwargs(merged))

		case compiler.OpPushLoop:
			iterVal := pop()
			it, err := value.Iterate(iterVal)
			if err != nil {
				return nil, e.wrap(err)
			}
			length, known := it.Len()
			ls := &LoopState{iter: it, length: length, known: known, index: -1}
			if instr.B == 1 {
				pushPC := pc
				parentFrame := cur
				ls.recurse = func(newIter value.Value) (value.Value, error) {
					return e.recurseLoop(ins, pushPC, parentFrame, newIter)
				}
			}
			cur = cur.Push()
			cur.Store("loop", value.FromObject(ls))
			e.frame = cur

		case compiler.OpIterate:
			lv, _ := cur.Lookup("loop")
			ls := lv.Object().(*LoopState)
			item, ok := ls.iter.Next()
			if !ok {
				push(value.Bool(false))
			} else {
				push(item)
				push(value.Bool(true))
				ls.index++
			}

		case compiler.OpPopLoop:
			cur = cur.parent
			e.frame = cur

		case compiler.OpPushLoopElse:
			// marker only; no-op at runtime

		case compiler.OpPushFrame:
			cur = cur.Push()
			e.frame = cur

		case compiler.OpPopFrame:
			cur = cur.parent
			e.frame = cur

		case compiler.OpPushWith:
			// Binding count is informative only; With targets are bound via
			// ordinary StoreLocal instructions emitted right after this one.

		case compiler.OpExtends:
			pop() // template name; resolved ahead of time by RenderTemplate
			return stack, nil

		case compiler.OpCallBlock:
			if err := e.callBlock(instr.Str, ins); err != nil {
				return nil, err
			}
			e.frame = cur

		case compiler.OpCallSuper:
			if err := e.callSuper(instr.Str); err != nil {
				return nil, err
			}
			e.frame = cur

		case compiler.OpInclude:
			if err := e.doInclude(pop(), instr.A == 1, instr.B == 1, cur); err != nil {
				return nil, err
			}
			e.frame = cur

		case compiler.OpImport:
			mod, err := e.doImport(pop(), instr.A == 1, cur)
			if err != nil {
				return nil, err
			}
			cur.Store(instr.Str, mod)
			e.frame = cur

		case compiler.OpFromImport:
			mod, err := e.doImport(pop(), instr.B == 1, cur)
			if err != nil {
				return nil, err
			}
			e.pendingImport = mod
			e.pendingImportLeft = int(instr.A)

		case compiler.OpFromImportName:
			name, alias := splitImportName(instr.Str)
			v := value.Undefined
			if m, ok := e.pendingImport.AsMap(); ok {
				if got, ok := m.Get(value.KeyString(name)); ok {
					v = got
				}
			}
			cur.Store(alias, v)
			e.pendingImportLeft--
			if e.pendingImportLeft <= 0 {
				e.pendingImport = value.Value{}
			}

		case compiler.OpBuildMacro:
			def := ins.Macros[instr.A]
			push(value.FromObject(&MacroObject{Def: def, Closure: cur, Exec: e}))

		case compiler.OpPushAutoEscape:
			e.autoescape = append(e.autoescape, pop().Truthy())

		case compiler.OpPopAutoEscape:
			if len(e.autoescape) > 1 {
				e.autoescape = e.autoescape[:len(e.autoescape)-1]
			}

		case compiler.OpBeginCapture:
			e.out.PushCapture()

		case compiler.OpEndCapture:
			push(value.SafeString(e.out.PopCapture()))

		case compiler.OpBreak, compiler.OpContinue:
			// Unreachable: Break/Continue lower to OpJump at compile time.

		case compiler.OpReturn:
			return stack, nil

		default:
			return nil, e.errf(jinjaerr.KindInvalidOperation, "unimplemented opcode %d", instr.Op)
		}
	}
	return stack, nil
}

func (e *Exec) emitEscaped(v value.Value) {
	var b strings.Builder
	if e.AutoEscapeHTML() {
		escapeHTML(v, &b)
	} else {
		b.WriteString(v.String())
	}
	e.out.WriteString(b.String())
}

func optI64(v value.Value) *int64 {
	if v.IsUndefined() {
		return nil
	}
	n, ok := v.Int()
	if !ok {
		return nil
	}
	return &n
}

func resolveAttr(obj value.Value, name string) value.Value {
	if obj.Kind() == value.KindObject && obj.Object() != nil {
		if v, ok := obj.Object().GetValue(value.String(name)); ok {
			return v
		}
		return value.Undefined
	}
	if v, ok := value.GetItem(obj, value.String(name)); ok {
		return v
	}
	return value.Undefined
}

func arith(op compiler.Opcode, a, b value.Value) (value.Value, error) {
	switch op {
	case compiler.OpAdd:
		return value.Add(a, b)
	case compiler.OpSub:
		return value.Sub(a, b)
	case compiler.OpMul:
		return value.Mul(a, b)
	case compiler.OpDiv:
		return value.Div(a, b)
	case compiler.OpIntDiv:
		return value.IntDiv(a, b)
	case compiler.OpRem:
		return value.Rem(a, b)
	case compiler.OpPow:
		return value.Pow(a, b)
	default:
		return value.Undefined, nil
	}
}

func compare(op compiler.Opcode, a, b value.Value) (value.Value, error) {
	switch op {
	case compiler.OpEq:
		return value.Bool(value.Equal(a, b)), nil
	case compiler.OpNe:
		return value.Bool(!value.Equal(a, b)), nil
	case compiler.OpLt:
		lt, err := value.Less(a, b)
		return value.Bool(lt), err
	case compiler.OpLte:
		gt, err := value.Less(b, a)
		return value.Bool(!gt), err
	case compiler.OpGt:
		gt, err := value.Less(b, a)
		return value.Bool(gt), err
	case compiler.OpGte:
		lt, err := value.Less(a, b)
		return value.Bool(!lt), err
	default:
		return value.Undefined, nil
	}
}

// assembleArgs pops a call's arguments off *stack in the order the
// compiler pushed them: kwargs map (if CallFlagKwargs), then a dynArgs
// spread sequence (if CallFlagDynArgs), then argc static positional args
// (spec §4.2's `f(*args, **kwargs)` call grammar; see codegen.go's
// compileArgsAndCall doc comment for the push order this mirrors).
func assembleArgs(stack *[]value.Value, argc int, flags int64) ([]value.Value, *value.OrderedMap, error) {
	pop := func() value.Value {
		n := len(*stack)
		v := (*stack)[n-1]
		*stack = (*stack)[:n-1]
		return v
	}
	var kwargs *value.OrderedMap
	if flags&compiler.CallFlagKwargs != 0 {
		kv := pop()
		m, ok := kv.AsMap()
		if !ok {
			return nil, nil, &jinjaerr.Error{Kind: jinjaerr.KindInvalidOperation, Message: "call kwargs operand is not a mapping"}
		}
		kwargs = m
	}
	var dyn []value.Value
	if flags&compiler.CallFlagDynArgs != 0 {
		dv := pop()
		if seq, ok := dv.AsSeq(); ok {
			dyn = seq
		}
	}
	static := make([]value.Value, argc)
	for i := argc - 1; i >= 0; i-- {
		static[i] = pop()
	}
	return append(static, dyn...), kwargs, nil
}

func kwargsToMap(m *value.OrderedMap) map[string]value.Value {
	if m == nil {
		return nil
	}
	out := make(map[string]value.Value, m.Len())
	for _, k := range m.Keys() {
		if s, ok := k.AsStr(); ok {
			v, _ := m.Get(k)
			out[s] = v
		}
	}
	return out
}

func splitImportName(s string) (name, alias string) {
	if i := strings.IndexByte(s, 0); i >= 0 {
		return s[:i], s[i+1:]
	}
	return s, s
}

func (e *Exec) errf(kind jinjaerr.Kind, format string, args ...interface{}) error {
	line := 0
	if e.curIns != nil {
		line = e.curIns.LineAt(e.curPC)
	}
	return jinjaerr.Newf(kind, format, args...).At(e.name, line)
}

func (e *Exec) wrap(err error) error {
	line := 0
	if e.curIns != nil {
		line = e.curIns.LineAt(e.curPC)
	}
	return jinjaerr.New(jinjaerr.KindInvalidOperation, err.Error()).At(e.name, line).WithCause(err)
}
