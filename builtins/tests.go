package builtins

import (
	"strings"

	"github.com/tmpleaf/gojinja2/environment"
	"github.com/tmpleaf/gojinja2/value"
)

func registerTests(env *environment.Environment) {
	env.AddTest("odd", testOdd)
	env.AddTest("even", testEven)
	env.AddTest("defined", testDefined)
	env.AddTest("undefined", testUndefined)
	env.AddTest("none", testNone)
	env.AddTest("boolean", testBoolean)
	env.AddTest("true", testTrue)
	env.AddTest("false", testFalse)
	env.AddTest("number", testNumber)
	env.AddTest("string", testString)
	env.AddTest("sequence", testSequence)
	env.AddTest("mapping", testMapping)
	env.AddTest("iterable", testIterable)
	env.AddTest("startingwith", testStartingWith)
	env.AddTest("endingwith", testEndingWith)
	env.AddTest("divisibleby", testDivisibleBy)
	env.AddTest("in", testIn)
	env.AddTest("callable", testCallable)
	env.AddTest("sameas", testSameAs)
	env.AddTest("escaped", testEscaped)
}

func testOdd(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (bool, error) {
	n, ok := val.Int()
	if !ok {
		return false, nil
	}
	return n%2 != 0, nil
}

func testEven(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (bool, error) {
	n, ok := val.Int()
	if !ok {
		return false, nil
	}
	return n%2 == 0, nil
}

func testDefined(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (bool, error) {
	return !val.IsUndefined(), nil
}

func testUndefined(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (bool, error) {
	return val.IsUndefined(), nil
}

func testNone(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (bool, error) {
	return val.IsNone(), nil
}

func testBoolean(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (bool, error) {
	return val.Kind() == value.KindBool, nil
}

func testTrue(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (bool, error) {
	b, ok := val.AsBool()
	return ok && b, nil
}

func testFalse(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (bool, error) {
	b, ok := val.AsBool()
	return ok && !b, nil
}

func testNumber(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (bool, error) {
	return val.IsNumber(), nil
}

func testString(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (bool, error) {
	return val.Kind() == value.KindString, nil
}

func testSequence(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (bool, error) {
	switch val.Kind() {
	case value.KindSeq, value.KindString:
		return true, nil
	case value.KindObject:
		return val.Object() != nil && val.Object().Repr() == value.ReprSeq, nil
	default:
		return false, nil
	}
}

func testMapping(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (bool, error) {
	switch val.Kind() {
	case value.KindMap:
		return true, nil
	case value.KindObject:
		return val.Object() != nil && val.Object().Repr() == value.ReprMap, nil
	default:
		return false, nil
	}
}

func testIterable(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (bool, error) {
	_, err := value.Iterate(val)
	return err == nil, nil
}

func testStartingWith(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (bool, error) {
	prefix, _ := arg(args, 0)
	return strings.HasPrefix(val.String(), prefix.String()), nil
}

func testEndingWith(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (bool, error) {
	suffix, _ := arg(args, 0)
	return strings.HasSuffix(val.String(), suffix.String()), nil
}

func testDivisibleBy(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (bool, error) {
	n, ok := val.Int()
	d, hasD := arg(args, 0)
	if !ok || !hasD {
		return false, nil
	}
	dv, ok := d.Int()
	if !ok || dv == 0 {
		return false, nil
	}
	return n%dv == 0, nil
}

func testIn(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (bool, error) {
	container, hasC := arg(args, 0)
	if !hasC {
		return false, nil
	}
	items, err := seqOf(container)
	if err != nil {
		return false, nil
	}
	for _, it := range items {
		if value.Equal(it, val) {
			return true, nil
		}
	}
	return false, nil
}

// testCallable approximates "is callable" by object kind rather than by
// invoking Call (which would actually run a macro's body as a side
// effect) — every callable value in this engine (macros, registered
// globals surfaced as values) is represented as a KindObject.
func testCallable(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (bool, error) {
	return val.Kind() == value.KindObject && val.Object() != nil, nil
}

func testSameAs(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (bool, error) {
	other, hasOther := arg(args, 0)
	if !hasOther {
		return false, nil
	}
	if val.Kind() == value.KindObject && other.Kind() == value.KindObject {
		return val.Object() == other.Object(), nil
	}
	return value.Equal(val, other), nil
}

func testEscaped(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (bool, error) {
	return val.IsSafe(), nil
}
