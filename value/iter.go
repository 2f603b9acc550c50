package value

// ValueIterator is the uniform cursor the VM's PushLoop/Iterate opcodes
// drive, regardless of the underlying container (spec §4.5/§9: "not every
// iterable has a known length").
type ValueIterator struct {
	items []Value // eager backing for Seq/Map/String
	pos   int
	obj   Iterator // lazy backing for an Object's Enumerate
	length int
	known  bool
}

// Len reports the total length known when the iterator was built, if
// advertised; it does not shrink as Next advances.
func (it *ValueIterator) Len() (int, bool) {
	if !it.known {
		return 0, false
	}
	return it.length, true
}

// Next advances the iterator, returning ok=false at exhaustion. A
// once-exhausted iterator is never restartable (spec §5).
func (it *ValueIterator) Next() (Value, bool) {
	if it.obj != nil {
		return it.obj.Next()
	}
	if it.pos >= len(it.items) {
		return Undefined, false
	}
	v := it.items[it.pos]
	it.pos++
	return v, true
}

// Iterate constructs a ValueIterator over v per spec §3/§4.5: sequences
// yield elements, maps yield keys, strings yield characters, objects
// dispatch through Enumerate.
func Iterate(v Value) (*ValueIterator, error) {
	switch v.kind {
	case KindSeq:
		return &ValueIterator{items: v.seq, length: len(v.seq), known: true}, nil
	case KindString:
		runes := []rune(v.str)
		items := make([]Value, len(runes))
		for i, r := range runes {
			items[i] = Char(r)
		}
		return &ValueIterator{items: items, length: len(items), known: true}, nil
	case KindMap:
		if v.m == nil {
			return &ValueIterator{known: true}, nil
		}
		keys := v.m.Keys()
		items := make([]Value, len(keys))
		for i, k := range keys {
			items[i] = k.ToValue()
		}
		return &ValueIterator{items: items, length: len(items), known: true}, nil
	case KindUndefined, KindNone:
		return &ValueIterator{known: true}, nil
	case KindObject:
		if v.obj == nil {
			return &ValueIterator{known: true}, nil
		}
		return iterateObject(v.obj), nil
	default:
		return nil, &OpError{Msg: "value is not iterable"}
	}
}

func iterateObject(o Object) *ValueIterator {
	enum := o.Enumerate()
	switch enum.Kind {
	case EnumEmpty, EnumNonEnumerable:
		return &ValueIterator{known: true}
	case EnumStaticStrings:
		items := make([]Value, len(enum.Strings))
		for i, s := range enum.Strings {
			items[i] = String(s)
		}
		return &ValueIterator{items: items, length: len(items), known: true}
	case EnumIndexed:
		items := make([]Value, enum.Indexed)
		for i := range items {
			items[i] = I64(int64(i))
		}
		return &ValueIterator{items: items, length: len(items), known: true}
	case EnumValues:
		return &ValueIterator{items: enum.Values, length: len(enum.Values), known: true}
	case EnumLazy, EnumReversible:
		return &ValueIterator{obj: enum.Iterator}
	default:
		return &ValueIterator{known: true}
	}
}
