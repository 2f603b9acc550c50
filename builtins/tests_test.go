package builtins

import (
	"testing"

	"github.com/tmpleaf/gojinja2/value"
)

func mustBool(t *testing.T, ok bool, err error) bool {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return ok
}

func TestTestOddEven(t *testing.T) {
	st := newFakeState()
	if !mustBool(t, testOdd(st, value.I64(3), nil, nil)) {
		t.Fatalf("expected 3 to be odd")
	}
	if !mustBool(t, testEven(st, value.I64(4), nil, nil)) {
		t.Fatalf("expected 4 to be even")
	}
}

func TestTestDefinedUndefined(t *testing.T) {
	st := newFakeState()
	if mustBool(t, testDefined(st, value.Undefined, nil, nil)) {
		t.Fatalf("expected Undefined to fail 'defined'")
	}
	if !mustBool(t, testDefined(st, value.I64(1), nil, nil)) {
		t.Fatalf("expected a concrete value to pass 'defined'")
	}
	if !mustBool(t, testUndefined(st, value.Undefined, nil, nil)) {
		t.Fatalf("expected Undefined to pass 'undefined'")
	}
}

func TestTestSequenceAndMapping(t *testing.T) {
	st := newFakeState()
	if !mustBool(t, testSequence(st, value.Seq([]value.Value{value.I64(1)}), nil, nil)) {
		t.Fatalf("expected a Seq to pass 'sequence'")
	}
	m := value.NewOrderedMap()
	m.Set(value.KeyString("a"), value.I64(1))
	if !mustBool(t, testMapping(st, value.Map(m), nil, nil)) {
		t.Fatalf("expected a Map to pass 'mapping'")
	}
	if mustBool(t, testMapping(st, value.Seq(nil), nil, nil)) {
		t.Fatalf("expected a Seq to fail 'mapping'")
	}
}

func TestTestDivisibleBy(t *testing.T) {
	st := newFakeState()
	if !mustBool(t, testDivisibleBy(st, value.I64(9), []value.Value{value.I64(3)}, nil)) {
		t.Fatalf("expected 9 to be divisible by 3")
	}
	if mustBool(t, testDivisibleBy(st, value.I64(9), []value.Value{value.I64(4)}, nil)) {
		t.Fatalf("expected 9 to not be divisible by 4")
	}
}

func TestTestIn(t *testing.T) {
	st := newFakeState()
	container := value.Seq([]value.Value{value.String("a"), value.String("b")})
	if !mustBool(t, testIn(st, value.String("a"), []value.Value{container}, nil)) {
		t.Fatalf("expected 'a' to be found in the sequence")
	}
	if mustBool(t, testIn(st, value.String("z"), []value.Value{container}, nil)) {
		t.Fatalf("expected 'z' to not be found in the sequence")
	}
}

func TestTestCallableDoesNotInvoke(t *testing.T) {
	st := newFakeState()
	ns := newNamespaceObject()
	if !mustBool(t, testCallable(st, value.FromObject(ns), nil, nil)) {
		t.Fatalf("expected an Object value to pass 'callable'")
	}
	if mustBool(t, testCallable(st, value.I64(1), nil, nil)) {
		t.Fatalf("expected a plain integer to fail 'callable'")
	}
}

func TestTestEscaped(t *testing.T) {
	st := newFakeState()
	if !mustBool(t, testEscaped(st, value.SafeString("hi"), nil, nil)) {
		t.Fatalf("expected a SafeString to pass 'escaped'")
	}
	if mustBool(t, testEscaped(st, value.String("hi"), nil, nil)) {
		t.Fatalf("expected a plain String to fail 'escaped'")
	}
}
