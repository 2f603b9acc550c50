// Package compiler turns a parsed template (nodes.Template) into a flat
// sequence of VM instructions, grounded on minijinja/src/compiler/{ast,
// codegen,instructions}.rs (original_source) and following the teacher's
// (deicod-gojinja) nodes package as the AST source of truth (spec §4.3/4.4).
package compiler

import (
	"sort"

	"github.com/tmpleaf/gojinja2/value"
)

// Opcode enumerates every VM instruction (spec §4.4). Operand meaning is
// documented per constant; unused operand fields on an Instr are zero.
type Opcode uint8

const (
	OpNop Opcode = iota

	// Output
	OpEmitRaw  // Str: raw template text to emit verbatim
	OpEmit     // pop top of stack, auto-escape per env policy, emit
	OpEmitSafe // pop top of stack, emit without escaping (MarkSafe)

	// Constants and locals
	OpLoadConst  // Const: push a constant value
	OpLookup     // Str: push the value of a name, Undefined if absent
	OpStoreLocal // Str: pop top, bind to a local in the current frame

	// Attribute / item access
	OpGetAttr // Str: pop obj, push obj.Str (attribute access)
	OpGetItem // pop key, pop obj, push obj[key]
	OpSlice   // pop step,stop,start (any may be Undefined meaning nil), pop obj, push obj[start:stop:step]
	OpSetAttr // Str: pop value, pop obj, obj.(value.Setter).SetValue(Str, value) — namespace attribute assignment

	// Stack shuffling
	OpDupTop
	OpDiscardTop
	OpSwap

	// Arithmetic / comparison / logic
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpIntDiv
	OpRem
	OpPow
	OpNeg
	OpPos
	OpNot
	OpMarkSafe             // pop value, push it re-tagged as a safe string
	OpMarkSafeIfAutoescape // pop value, mark safe only if autoescape is currently on
	OpStringConcat
	OpIn
	OpEq
	OpNe
	OpGt
	OpGte
	OpLt
	OpLte

	// Control flow. A is an absolute instruction index.
	OpJump
	OpJumpIfFalse
	OpJumpIfFalseOrPop // short-circuit `and`: jump if falsy, else pop and continue
	OpJumpIfTrueOrPop  // short-circuit `or`

	// Calls. A = positional arg count. B is a flags bitmask: bit 0 set
	// means a kwargs map sits on top of the stack, bit 1 set means a
	// dynArgs spread sequence sits below that (and above the A static
	// positional args) — see compiler.CallFlag* and the VM's call-site
	// argument assembly.
	OpCallFunction // Str: global/function name
	OpCallFilter   // Str: filter name
	OpCallTest     // Str: test name
	OpCallMethod   // Str: method name; pops receiver below the args
	OpCallObject   // pops callee below the args

	// Aggregate construction. A = element count.
	OpBuildList
	OpBuildTuple
	OpBuildMap
	OpBuildKwargs
	OpBuildKwargsMerge // pop an extra map, merge its entries into the kwargs map now below it on the stack (`**dynKwargs`)

	// Loops (spec §4.4/§4.5). PushLoop pops the iterable and pushes a loop
	// frame; Iterate advances it, pushing the next item and true, or just
	// false at exhaustion (A = jump target on exhaustion is not used here,
	// the VM branches on the pushed bool via a following JumpIfFalse).
	OpPushLoop    // B: 1 if `recursive`
	OpIterate     // pushes next item then true, or pushes false
	OpPopLoop
	OpPushLoopElse // marker consumed by the VM to know the else branch ran

	// Scoping
	OpPushFrame // new lexical frame (for/block/macro/with/namespace/scope)
	OpPopFrame
	OpPushWith // A = binding count: pops A values then A targets are bound via following StoreLocal ops in body

	// Blocks / inheritance / includes (spec §4.6)
	OpExtends     // Str: unused, template name is on stack
	OpCallBlock   // Str: block name; renders the current-most-derived override
	OpCallSuper   // Str: block name; renders the next-least-derived override
	OpInclude     // A: 1 if ignore-missing; B: 1 if with-context; name on stack
	OpImport       // Str: target local name; A: 1 if with-context; template name on stack
	OpFromImport   // header: A = following-name count, B: 1 if with-context; template name on stack
	OpFromImportName // Str: "name\x00alias" pair; one per name, immediately following the OpFromImport header

	// Macros. A indexes Instructions.Macros.
	OpBuildMacro

	// Autoescape / filter-block / capture (spec §4.6/§6)
	OpPushAutoEscape
	OpPopAutoEscape
	OpBeginCapture // push a new capturing output buffer
	OpEndCapture   // pop the buffer, push its contents as a safe-or-plain string Value

	OpBreak
	OpContinue
	OpReturn // macro/block early return; unused pc field not required at call sites
)

// Instr is a single bytecode instruction. Only the fields relevant to Op
// are meaningful; this mirrors minijinja's enum-of-variants instruction
// using a flat struct instead, since Go has no compact sum type for this
// without considerably more boilerplate for marginal benefit here.
type Instr struct {
	Op    Opcode
	A     int64
	B     int64
	Str   string
	Const value.Value
}

type lineEntry struct {
	pc   int
	line int
}

type spanEntry struct {
	pc   int
	span Span
}

// Instructions is the compiled form of a template: a flat instruction
// stream plus sorted side tables mapping pc -> source line/span, looked up
// via binary search only when an error needs to report a location (spec
// §4.4: "line/span tables are side tables, not inlined per-instruction").
type Instructions struct {
	Name    string
	ops     []Instr
	lines   []lineEntry
	spans   []spanEntry
	Macros  []*MacroDef
	Blocks  map[string]*Instructions
	Extends bool
	Exports []string // explicit `{% export %}` list; empty means "export everything"
}

// MacroDef holds the signature and compiled body of a `{% macro %}` or
// `{% call %}`-block closure (spec §4.6). Defaults are compiled as their
// own instruction fragments rather than constants, since a default
// expression may reference names live in the defining scope (e.g.
// `macro f(x=g())`), matching minijinja's macro_support lazy-default
// evaluation (original_source vm/macro_support.rs).
type MacroDef struct {
	Name     string
	ArgNames []string
	Defaults map[string]*Instructions
	VarArg   string
	KwArg    string
	Body     *Instructions
	Caller   bool
}

// New creates an empty instruction stream for the named template.
func New(name string) *Instructions {
	return &Instructions{Name: name, Blocks: make(map[string]*Instructions)}
}

// AddMacro registers a macro definition and returns its index.
func (ins *Instructions) AddMacro(m *MacroDef) int {
	ins.Macros = append(ins.Macros, m)
	return len(ins.Macros) - 1
}

// Add appends an instruction, recording its source line/span if it differs
// from the last recorded entry, and returns its pc.
func (ins *Instructions) Add(i Instr, sp Span) int {
	pc := len(ins.ops)
	ins.ops = append(ins.ops, i)
	if len(ins.lines) == 0 || ins.lines[len(ins.lines)-1].line != sp.StartLine {
		ins.lines = append(ins.lines, lineEntry{pc: pc, line: sp.StartLine})
	}
	if len(ins.spans) == 0 || ins.spans[len(ins.spans)-1].span != sp {
		ins.spans = append(ins.spans, spanEntry{pc: pc, span: sp})
	}
	return pc
}

// Len reports the number of instructions.
func (ins *Instructions) Len() int { return len(ins.ops) }

// Get returns the instruction at pc.
func (ins *Instructions) Get(pc int) Instr { return ins.ops[pc] }

// Patch overwrites the instruction at pc, used by the codegen patch-stack
// machine to back-patch forward jump targets (spec §4.4).
func (ins *Instructions) Patch(pc int, i Instr) { ins.ops[pc] = i }

// LineAt resolves the source line that produced the instruction at pc via
// binary search over the sorted side table (spec §4.4 "pc -> line lookup
// must be monotone non-decreasing and resolvable for every pc").
func (ins *Instructions) LineAt(pc int) int {
	idx := sort.Search(len(ins.lines), func(i int) bool { return ins.lines[i].pc > pc }) - 1
	if idx < 0 {
		return 0
	}
	return ins.lines[idx].line
}

// SpanAt resolves the source span for pc, degenerate (start==end) because
// the teacher's lexer never threads byte offsets through token capture;
// see Span's doc comment for the documented simplification.
func (ins *Instructions) SpanAt(pc int) Span {
	idx := sort.Search(len(ins.spans), func(i int) bool { return ins.spans[i].pc > pc }) - 1
	if idx < 0 {
		return Span{}
	}
	return ins.spans[idx].span
}
