package value

// Setter is implemented by Objects whose attributes can be mutated after
// construction, currently only the `{% namespace %}` object (spec §4.6:
// "a namespace's attributes may be reassigned inside a loop body to escape
// the loop's scoping rules"). Most Objects (loop helper, macro, module) do
// not implement it.
type Setter interface {
	SetValue(key Value, val Value) bool
}
