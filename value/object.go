package value

// Repr classifies how an Object should be treated by generic code that
// needs a structural hint (e.g. `repr`, containment, truthiness) without
// downcasting, per spec §3.
type Repr uint8

const (
	ReprPlain Repr = iota
	ReprMap
	ReprSeq
	ReprIterable
)

// RenderFormat selects which textual serialization Object.Render should
// produce. RenderDefault is what `{{ obj }}` uses.
type RenderFormat uint8

const (
	RenderDefault RenderFormat = iota
	RenderDebug
)

func (f RenderFormat) String(o Object) string {
	if f == RenderDebug {
		return o.Render(RenderDebug)
	}
	return o.Render(RenderDefault)
}

// EnumerationKind tags what shape Object.Enumerate returned, per spec §3.
type EnumerationKind uint8

const (
	EnumNonEnumerable EnumerationKind = iota
	EnumEmpty
	EnumStaticStrings
	EnumIndexed
	EnumValues
	EnumLazy
	EnumReversible
)

// Iterator is the minimal cursor protocol for lazy/reversible enumeration.
// A one-shot iterator must not be restarted (spec §5).
type Iterator interface {
	Next() (Value, bool)
}

// ReverseIterator is implemented by enumerations that can also be driven
// from the end, used by the `reverse` filter on dynamic objects.
type ReverseIterator interface {
	Iterator
	Prev() (Value, bool)
}

// Enumeration is the result of Object.Enumerate.
type Enumeration struct {
	Kind     EnumerationKind
	Strings  []string
	Indexed  int // valid when Kind == EnumIndexed: length of the 0..n index range
	Values   []Value
	Iterator Iterator
}

// CallState is the minimal VM-facing context passed into Object.Call /
// Object.CallMethod, enough for an object to format its own output without
// importing the vm package (avoiding an import cycle).
type CallState interface {
	AutoEscapeHTML() bool
	Fuel() (remaining uint64, limited bool)
}

// Object is the dynamic-object extension point (spec §3). Concrete engine
// objects (loop helper, macro, compiled module, user-registered objects)
// implement a subset; the zero-value behavior of each default method is
// "not supported".
type Object interface {
	// GetValue looks up an attribute/item by key; ok is false if absent.
	GetValue(key Value) (Value, bool)
	// Enumerate describes how to iterate the object's contents.
	Enumerate() Enumeration
	// Len reports the object's length, if it has one.
	Len() (int, bool)
	// Repr classifies the object's structural shape.
	Repr() Repr
	// Call invokes the object as a callable (e.g. a macro Value).
	Call(state CallState, args []Value) (Value, error)
	// CallMethod invokes a named method on the object.
	CallMethod(state CallState, name string, args []Value) (Value, error)
	// Render produces a textual form for emission.
	Render(format RenderFormat) string
}

// BaseObject implements Object with "unsupported" defaults; concrete
// objects embed it and override only the methods they need, mirroring how
// minijinja's Object trait provides default method bodies.
type BaseObject struct{}

func (BaseObject) GetValue(Value) (Value, bool) { return Undefined, false }
func (BaseObject) Enumerate() Enumeration        { return Enumeration{Kind: EnumNonEnumerable} }
func (BaseObject) Len() (int, bool)               { return 0, false }
func (BaseObject) Repr() Repr                     { return ReprPlain }
func (BaseObject) Call(CallState, []Value) (Value, error) {
	return Undefined, errNotCallable
}
func (BaseObject) CallMethod(_ CallState, name string, _ []Value) (Value, error) {
	return Undefined, &UnknownMethodError{Method: name}
}
func (BaseObject) Render(RenderFormat) string { return "" }

// UnknownMethodError is returned by CallMethod when the named method does
// not exist on the object, letting the VM distinguish it from a generic
// call failure (spec §7: ErrorKind UnknownMethod).
type UnknownMethodError struct{ Method string }

func (e *UnknownMethodError) Error() string { return "unknown method: " + e.Method }

var errNotCallable = &notCallableError{}

type notCallableError struct{}

func (e *notCallableError) Error() string { return "value is not callable" }

// IsNotCallable reports whether err indicates the target Object.Call is
// unimplemented.
func IsNotCallable(err error) bool {
	_, ok := err.(*notCallableError)
	return ok
}
