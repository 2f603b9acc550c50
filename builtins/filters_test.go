package builtins

import (
	"testing"

	"github.com/tmpleaf/gojinja2/environment"
	"github.com/tmpleaf/gojinja2/value"
)

// fakeState is a minimal environment.State for exercising filters/tests/
// globals directly, without going through the lexer/parser/vm pipeline.
type fakeState struct {
	env  *environment.Environment
	vars map[string]value.Value
}

func newFakeState() *fakeState {
	return &fakeState{env: environment.New(nil), vars: map[string]value.Value{}}
}

func (s *fakeState) AutoEscapeHTML() bool { return true }
func (s *fakeState) Fuel() (uint64, bool) { return 0, false }
func (s *fakeState) Lookup(name string) (value.Value, bool) {
	v, ok := s.vars[name]
	return v, ok
}
func (s *fakeState) Env() *environment.Environment { return s.env }

func mustStr(t *testing.T, v value.Value, err error) string {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return v.String()
}

func TestFilterEscapePassesThroughSafe(t *testing.T) {
	st := newFakeState()
	out := mustStr(t, filterEscape(st, value.String("<b>"), nil, nil))
	if out != "&lt;b&gt;" {
		t.Fatalf("expected escaped output, got %q", out)
	}
	out = mustStr(t, filterEscape(st, value.SafeString("<b>"), nil, nil))
	if out != "<b>" {
		t.Fatalf("expected safe string to pass through unescaped, got %q", out)
	}
}

func TestFilterUpperLowerTitle(t *testing.T) {
	st := newFakeState()
	if out := mustStr(t, filterUpper(st, value.String("abc"), nil, nil)); out != "ABC" {
		t.Fatalf("expected 'ABC', got %q", out)
	}
	if out := mustStr(t, filterLower(st, value.String("ABC"), nil, nil)); out != "abc" {
		t.Fatalf("expected 'abc', got %q", out)
	}
	if out := mustStr(t, filterTitle(st, value.String("hello world"), nil, nil)); out != "Hello World" {
		t.Fatalf("expected 'Hello World', got %q", out)
	}
}

func TestFilterJoin(t *testing.T) {
	st := newFakeState()
	seq := value.Seq([]value.Value{value.String("a"), value.String("b"), value.String("c")})
	out := mustStr(t, filterJoin(st, seq, []value.Value{value.String(", ")}, nil))
	if out != "a, b, c" {
		t.Fatalf("expected 'a, b, c', got %q", out)
	}
}

func TestFilterDefault(t *testing.T) {
	st := newFakeState()
	out := mustStr(t, filterDefault(st, value.Undefined, []value.Value{value.String("fallback")}, nil))
	if out != "fallback" {
		t.Fatalf("expected 'fallback', got %q", out)
	}
	out = mustStr(t, filterDefault(st, value.String("present"), []value.Value{value.String("fallback")}, nil))
	if out != "present" {
		t.Fatalf("expected 'present', got %q", out)
	}
}

func TestFilterRound(t *testing.T) {
	st := newFakeState()
	v, err := filterRound(st, value.F64(3.14159), []value.Value{value.I64(2)}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f, _ := v.Float()
	if f != 3.14 {
		t.Fatalf("expected 3.14, got %v", f)
	}
}

func TestFilterBatch(t *testing.T) {
	st := newFakeState()
	seq := value.Seq([]value.Value{value.I64(1), value.I64(2), value.I64(3)})
	out, err := filterBatch(st, seq, []value.Value{value.I64(2)}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	batches, err := seqOf(out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(batches))
	}
	second, err := seqOf(batches[1])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(second) != 1 {
		t.Fatalf("expected the final batch to hold the 1 leftover item, got %d", len(second))
	}
}

func TestFilterTruncate(t *testing.T) {
	st := newFakeState()
	out := mustStr(t, filterTruncate(st, value.String("foo bar baz qux"), []value.Value{value.I64(10)}, nil))
	if out != "foo bar..." && out != "foo..." {
		t.Fatalf("expected a truncated string ending in '...', got %q", out)
	}
}

func TestFilterFilesizeformatDecimal(t *testing.T) {
	st := newFakeState()
	out := mustStr(t, filterFilesizeformat(st, value.I64(1000), nil, nil))
	if out != "1.0 kB" {
		t.Fatalf("expected '1.0 kB', got %q", out)
	}
}

func TestFilterFilesizeformatBinary(t *testing.T) {
	st := newFakeState()
	out := mustStr(t, filterFilesizeformat(st, value.I64(1024), []value.Value{value.Bool(true)}, nil))
	if out != "1.0 KiB" {
		t.Fatalf("expected '1.0 KiB', got %q", out)
	}
}

func TestFilterPluralize(t *testing.T) {
	st := newFakeState()
	if out := mustStr(t, filterPluralize(st, value.I64(1), nil, nil)); out != "" {
		t.Fatalf("expected no suffix for count 1, got %q", out)
	}
	if out := mustStr(t, filterPluralize(st, value.I64(2), nil, nil)); out != "s" {
		t.Fatalf("expected 's' suffix for count 2, got %q", out)
	}
}

func TestFilterDictsortByKey(t *testing.T) {
	st := newFakeState()
	m := value.NewOrderedMap()
	m.Set(value.KeyString("b"), value.I64(2))
	m.Set(value.KeyString("a"), value.I64(1))
	out, err := filterDictsort(st, value.Map(m), nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pairs, err := seqOf(out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first, err := seqOf(pairs[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first[0].String() != "a" {
		t.Fatalf("expected sorted-by-key output to start with 'a', got %q", first[0].String())
	}
}

func TestFilterUnique(t *testing.T) {
	st := newFakeState()
	seq := value.Seq([]value.Value{value.I64(1), value.I64(2), value.I64(1), value.I64(3)})
	out, err := filterUnique(st, seq, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	items, err := seqOf(out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 unique items, got %d", len(items))
	}
}

func TestFilterAttrDotted(t *testing.T) {
	st := newFakeState()
	inner := value.NewOrderedMap()
	inner.Set(value.KeyString("name"), value.String("go"))
	outer := value.NewOrderedMap()
	outer.Set(value.KeyString("user"), value.Map(inner))
	out := mustStr(t, filterAttr(st, value.Map(outer), []value.Value{value.String("user.name")}, nil))
	if out != "go" {
		t.Fatalf("expected 'go', got %q", out)
	}
}

func TestFilterSpaceless(t *testing.T) {
	st := newFakeState()
	out := mustStr(t, filterSpaceless(st, value.SafeString("  <div>  <span>hi</span>  </div>  "), nil, nil))
	if out != "<div><span>hi</span></div>" {
		t.Fatalf("expected collapsed whitespace, got %q", out)
	}
}

func TestFilterTojson(t *testing.T) {
	st := newFakeState()
	m := value.NewOrderedMap()
	m.Set(value.KeyString("a"), value.I64(1))
	out := mustStr(t, filterTojson(st, value.Map(m), nil, nil))
	if out != `{"a":1}` {
		t.Fatalf("unexpected JSON output: %q", out)
	}
}
