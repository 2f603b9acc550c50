package builtins

import (
	"testing"

	"github.com/tmpleaf/gojinja2/value"
)

func TestGlobalRangeOneArg(t *testing.T) {
	st := newFakeState()
	v, err := globalRange(st, []value.Value{value.I64(3)}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	items, err := seqOf(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if n, _ := items[2].Int(); n != 2 {
		t.Fatalf("expected range(3) to end at 2, got %d", n)
	}
}

func TestGlobalRangeStep(t *testing.T) {
	st := newFakeState()
	v, err := globalRange(st, []value.Value{value.I64(10), value.I64(0), value.I64(-3)}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	items, err := seqOf(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []int64{10, 7, 4, 1}
	if len(items) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(items))
	}
	for i, w := range want {
		if n, _ := items[i].Int(); n != w {
			t.Fatalf("item %d: expected %d, got %d", i, w, n)
		}
	}
}

func TestGlobalRangeZeroStepErrors(t *testing.T) {
	st := newFakeState()
	if _, err := globalRange(st, []value.Value{value.I64(0), value.I64(10), value.I64(0)}, nil); err == nil {
		t.Fatalf("expected a zero step to error")
	}
}

func TestGlobalDict(t *testing.T) {
	st := newFakeState()
	v, err := globalDict(st, nil, map[string]value.Value{"a": value.I64(1), "b": value.I64(2)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m, ok := v.AsMap()
	if !ok {
		t.Fatalf("expected dict() to return a Map")
	}
	if got, _ := m.Get(value.KeyString("a")); got.String() != "1" {
		t.Fatalf("expected key 'a' to hold 1, got %v", got)
	}
}

func TestGlobalNamespaceSetAndGet(t *testing.T) {
	st := newFakeState()
	v, err := globalNamespace(st, nil, map[string]value.Value{"count": value.I64(0)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ns, ok := v.Object().(*namespaceObject)
	if !ok {
		t.Fatalf("expected namespace() to return a *namespaceObject")
	}
	got, ok := ns.GetValue(value.String("count"))
	if !ok || got.String() != "0" {
		t.Fatalf("expected count to start at 0, got %v (ok=%v)", got, ok)
	}
	if !ns.SetValue(value.String("count"), value.I64(1)) {
		t.Fatalf("expected SetValue to succeed")
	}
	got, _ = ns.GetValue(value.String("count"))
	if got.String() != "1" {
		t.Fatalf("expected count to be updated to 1, got %v", got)
	}
}

func TestGlobalDebugReportsFuel(t *testing.T) {
	st := newFakeState()
	v, err := globalDebug(st, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.String() != "fuel: unlimited" {
		t.Fatalf("expected 'fuel: unlimited', got %q", v.String())
	}
}
