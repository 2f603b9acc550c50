// Package builtins registers the engine's default filters, tests and
// global functions (spec §4.6/§6), re-implemented against value.Value from
// the teacher's (deicod-gojinja) runtime/filters.go, with exact output
// strings for truncate/filesizeformat/pluralize pinned down against
// minijinja-contrib/tests/filters.rs (original_source) where the teacher
// and the spec are both silent.
package builtins

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tmpleaf/gojinja2/environment"
	"github.com/tmpleaf/gojinja2/output"
	"github.com/tmpleaf/gojinja2/value"
)

var spacelessBetweenTags = regexp.MustCompile(`>\s+<`)

// Register installs every built-in filter, test and global function onto
// env, the way the teacher's registerBuiltinFilters/registerBuiltinTests
// populate a fresh runtime.Environment.
func Register(env *environment.Environment) {
	registerFilters(env)
	registerTests(env)
	registerGlobals(env)
}

func arg(args []value.Value, i int) (value.Value, bool) {
	if i < len(args) {
		return args[i], true
	}
	return value.Undefined, false
}

func kwarg(kwargs map[string]value.Value, name string) (value.Value, bool) {
	v, ok := kwargs[name]
	return v, ok
}

func intArg(args []value.Value, kwargs map[string]value.Value, i int, name string, def int) int {
	if v, ok := kwarg(kwargs, name); ok {
		if n, ok := v.Int(); ok {
			return int(n)
		}
	}
	if v, ok := arg(args, i); ok {
		if n, ok := v.Int(); ok {
			return int(n)
		}
	}
	return def
}

func boolArg(args []value.Value, kwargs map[string]value.Value, i int, name string, def bool) bool {
	if v, ok := kwarg(kwargs, name); ok {
		return v.Truthy()
	}
	if v, ok := arg(args, i); ok {
		return v.Truthy()
	}
	return def
}

func strArg(args []value.Value, kwargs map[string]value.Value, i int, name string, def string) string {
	if v, ok := kwarg(kwargs, name); ok {
		return v.String()
	}
	if v, ok := arg(args, i); ok {
		return v.String()
	}
	return def
}

func seqOf(v value.Value) ([]value.Value, error) {
	switch v.Kind() {
	case value.KindSeq:
		s, _ := v.AsSeq()
		return s, nil
	case value.KindString:
		s, _ := v.AsStr()
		runes := []rune(s)
		out := make([]value.Value, len(runes))
		for i, r := range runes {
			out[i] = value.Char(r)
		}
		return out, nil
	case value.KindMap:
		m, _ := v.AsMap()
		if m == nil {
			return nil, nil
		}
		keys := m.Keys()
		out := make([]value.Value, len(keys))
		for i, k := range keys {
			out[i] = k.ToValue()
		}
		return out, nil
	default:
		it, err := value.Iterate(v)
		if err != nil {
			return nil, err
		}
		var out []value.Value
		for {
			item, ok := it.Next()
			if !ok {
				break
			}
			out = append(out, item)
		}
		return out, nil
	}
}

func registerFilters(env *environment.Environment) {
	env.AddFilter("safe", filterSafe)
	env.AddFilter("escape", filterEscape)
	env.AddFilter("e", filterEscape)
	env.AddFilter("upper", filterUpper)
	env.AddFilter("lower", filterLower)
	env.AddFilter("title", filterTitle)
	env.AddFilter("capitalize", filterCapitalize)
	env.AddFilter("trim", filterTrim)
	env.AddFilter("replace", filterReplace)
	env.AddFilter("length", filterLength)
	env.AddFilter("count", filterLength)
	env.AddFilter("dictsort", filterDictsort)
	env.AddFilter("items", filterItems)
	env.AddFilter("reverse", filterReverse)
	env.AddFilter("join", filterJoin)
	env.AddFilter("default", filterDefault)
	env.AddFilter("d", filterDefault)
	env.AddFilter("round", filterRound)
	env.AddFilter("abs", filterAbs)
	env.AddFilter("first", filterFirst)
	env.AddFilter("last", filterLast)
	env.AddFilter("list", filterList)
	env.AddFilter("bool", filterBool)
	env.AddFilter("batch", filterBatch)
	env.AddFilter("slice", filterSlice)
	env.AddFilter("tojson", filterTojson)
	env.AddFilter("urlencode", filterUrlencode)
	env.AddFilter("pluralize", filterPluralize)
	env.AddFilter("filesizeformat", filterFilesizeformat)
	env.AddFilter("truncate", filterTruncate)
	env.AddFilter("wordcount", filterWordcount)
	env.AddFilter("wordwrap", filterWordwrap)
	env.AddFilter("striptags", filterStriptags)
	env.AddFilter("format", filterFormat)
	env.AddFilter("sort", filterSort)
	env.AddFilter("min", filterMin)
	env.AddFilter("max", filterMax)
	env.AddFilter("sum", filterSum)
	env.AddFilter("int", filterInt)
	env.AddFilter("float", filterFloat)
	env.AddFilter("indent", filterIndent)
	env.AddFilter("center", filterCenter)
	env.AddFilter("unique", filterUnique)
	env.AddFilter("attr", filterAttr)
	env.AddFilter("spaceless", filterSpaceless)
}

func filterSafe(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	return value.SafeString(val.String()), nil
}

func filterEscape(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	if val.IsSafe() {
		return val, nil
	}
	var b strings.Builder
	output.HTML(val, &b)
	return value.SafeString(b.String()), nil
}

func filterUpper(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	return value.String(cases.Upper(language.Und).String(val.String())), nil
}

func filterLower(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	return value.String(cases.Lower(language.Und).String(val.String())), nil
}

func filterTitle(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	return value.String(cases.Title(language.Und).String(val.String())), nil
}

func filterCapitalize(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	s := val.String()
	if s == "" {
		return value.String(""), nil
	}
	lower := cases.Lower(language.Und).String(s)
	r := []rune(lower)
	r[0] = []rune(cases.Upper(language.Und).String(string(r[0])))[0]
	return value.String(string(r)), nil
}

func filterTrim(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	s := val.String()
	if v, ok := arg(args, 0); ok {
		return value.String(strings.Trim(s, v.String())), nil
	}
	return value.String(strings.TrimSpace(s)), nil
}

func filterReplace(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	if len(args) < 2 {
		return value.Undefined, fmt.Errorf("replace filter requires 2 arguments")
	}
	old := args[0].String()
	new := args[1].String()
	count := intArg(args, kwargs, 2, "count", -1)
	return value.String(strings.Replace(val.String(), old, new, count)), nil
}

func filterLength(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	n, ok := val.Len()
	if !ok {
		return value.Undefined, fmt.Errorf("object of type %s has no length", val.Kind())
	}
	return value.I64(int64(n)), nil
}

func filterDictsort(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	m, ok := val.AsMap()
	if !ok {
		return value.Undefined, fmt.Errorf("dictsort filter requires a mapping")
	}
	byValue := strArg(args, kwargs, 1, "by", "key") == "value"
	reverse := boolArg(args, kwargs, 2, "reverse", false)
	keys := m.Keys()
	pairs := make([]value.Value, len(keys))
	idx := make([]int, len(keys))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		a, b := keys[idx[i]], keys[idx[j]]
		if byValue {
			av, _ := m.Get(a)
			bv, _ := m.Get(b)
			return strings.ToLower(av.String()) < strings.ToLower(bv.String())
		}
		return strings.ToLower(a.Repr()) < strings.ToLower(b.Repr())
	})
	if reverse {
		for i, j := 0, len(idx)-1; i < j; i, j = i+1, j-1 {
			idx[i], idx[j] = idx[j], idx[i]
		}
	}
	for i, ix := range idx {
		k := keys[ix]
		v, _ := m.Get(k)
		pairs[i] = value.Seq([]value.Value{k.ToValue(), v})
	}
	return value.Seq(pairs), nil
}

func filterItems(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	m, ok := val.AsMap()
	if !ok {
		return value.Undefined, fmt.Errorf("items filter requires a mapping")
	}
	keys := m.Keys()
	out := make([]value.Value, len(keys))
	for i, k := range keys {
		v, _ := m.Get(k)
		out[i] = value.Seq([]value.Value{k.ToValue(), v})
	}
	return value.Seq(out), nil
}

func filterReverse(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	if val.Kind() == value.KindString {
		s, _ := val.AsStr()
		r := []rune(s)
		for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
			r[i], r[j] = r[j], r[i]
		}
		return value.String(string(r)), nil
	}
	items, err := seqOf(val)
	if err != nil {
		return value.Undefined, err
	}
	out := make([]value.Value, len(items))
	for i, it := range items {
		out[len(items)-1-i] = it
	}
	return value.Seq(out), nil
}

func filterJoin(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	sep := strArg(args, kwargs, 0, "d", "")
	items, err := seqOf(val)
	if err != nil {
		return value.Undefined, err
	}
	attr := strArg(args, kwargs, 1, "attribute", "")
	parts := make([]string, len(items))
	for i, it := range items {
		if attr != "" {
			it = resolveDottedAttr(it, attr)
		}
		parts[i] = it.String()
	}
	return value.String(strings.Join(parts, sep)), nil
}

func resolveDottedAttr(v value.Value, path string) value.Value {
	cur := v
	for _, part := range strings.Split(path, ".") {
		if m, ok := cur.AsMap(); ok {
			if nv, ok := m.Get(value.KeyString(part)); ok {
				cur = nv
				continue
			}
		}
		if cur.Kind() == value.KindObject && cur.Object() != nil {
			if nv, ok := cur.Object().GetValue(value.String(part)); ok {
				cur = nv
				continue
			}
		}
		return value.Undefined
	}
	return cur
}

func filterDefault(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	def, _ := arg(args, 0)
	boolean := boolArg(args, kwargs, 1, "boolean", false)
	if val.IsUndefined() {
		return def, nil
	}
	if boolean && !val.Truthy() {
		return def, nil
	}
	return val, nil
}

func filterRound(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	f, ok := val.Float()
	if !ok {
		return value.Undefined, fmt.Errorf("round filter requires a number")
	}
	precision := intArg(args, kwargs, 0, "precision", 0)
	method := strArg(args, kwargs, 1, "method", "common")
	mul := math.Pow(10, float64(precision))
	x := f * mul
	var r float64
	switch method {
	case "ceil":
		r = math.Ceil(x)
	case "floor":
		r = math.Floor(x)
	default:
		r = math.Round(x)
	}
	return value.F64(r / mul), nil
}

func filterAbs(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	if i, ok := val.Int(); ok && val.Kind() != value.KindF64 {
		if i < 0 {
			i = -i
		}
		return value.I64(i), nil
	}
	f, ok := val.Float()
	if !ok {
		return value.Undefined, fmt.Errorf("abs filter requires a number")
	}
	return value.F64(math.Abs(f)), nil
}

func filterFirst(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	items, err := seqOf(val)
	if err != nil {
		return value.Undefined, err
	}
	if len(items) == 0 {
		return value.Undefined, nil
	}
	return items[0], nil
}

func filterLast(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	items, err := seqOf(val)
	if err != nil {
		return value.Undefined, err
	}
	if len(items) == 0 {
		return value.Undefined, nil
	}
	return items[len(items)-1], nil
}

func filterList(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	items, err := seqOf(val)
	if err != nil {
		return value.Undefined, err
	}
	return value.Seq(items), nil
}

func filterBool(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	return value.Bool(val.Truthy()), nil
}

func filterBatch(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	items, err := seqOf(val)
	if err != nil {
		return value.Undefined, err
	}
	size := intArg(args, kwargs, 0, "linecount", 0)
	if size <= 0 {
		return value.Undefined, fmt.Errorf("batch filter requires a positive size")
	}
	fill, hasFill := kwarg(kwargs, "fill_with")
	if !hasFill {
		fill, hasFill = arg(args, 1)
	}
	var out []value.Value
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		batch := append([]value.Value(nil), items[i:end]...)
		if hasFill {
			for len(batch) < size {
				batch = append(batch, fill)
			}
		}
		out = append(out, value.Seq(batch))
	}
	return value.Seq(out), nil
}

func filterSlice(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	items, err := seqOf(val)
	if err != nil {
		return value.Undefined, err
	}
	slices := intArg(args, kwargs, 0, "slices", 0)
	if slices <= 0 {
		return value.Undefined, fmt.Errorf("slice filter requires a positive integer")
	}
	fill, hasFill := kwarg(kwargs, "fill_with")
	if !hasFill {
		fill, hasFill = arg(args, 1)
	}
	length := len(items)
	perSlice := length / slices
	extra := length % slices
	offset := 0
	out := make([]value.Value, 0, slices)
	for n := 0; n < slices; n++ {
		start := offset + n*perSlice
		if start > length {
			start = length
		}
		if n < extra {
			offset++
		}
		end := offset + (n+1)*perSlice
		if end > length {
			end = length
		}
		tmp := append([]value.Value(nil), items[start:end]...)
		if hasFill && n >= extra {
			tmp = append(tmp, fill)
		}
		out = append(out, value.Seq(tmp))
	}
	return value.Seq(out), nil
}

func filterTojson(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	var b strings.Builder
	output.JSON(val, &b)
	return value.SafeString(b.String()), nil
}

func filterUrlencode(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	if m, ok := val.AsMap(); ok {
		vals := url.Values{}
		for _, k := range m.Keys() {
			v, _ := m.Get(k)
			vals.Add(k.Repr(), v.String())
		}
		return value.String(vals.Encode()), nil
	}
	return value.String(url.QueryEscape(val.String())), nil
}

// filterPluralize implements `{{ count }} item{{ count|pluralize }}`: val
// is the count, defaulting singular="" / plural="s" per Django/Jinja
// convention (minijinja-contrib's pluralize filter).
func filterPluralize(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	singular := strArg(args, kwargs, 0, "singular", "")
	plural := strArg(args, kwargs, 1, "plural", "s")
	n, ok := val.Float()
	if !ok {
		if l, ok2 := val.Len(); ok2 {
			n = float64(l)
		} else {
			return value.Undefined, fmt.Errorf("pluralize filter requires a number or sized value")
		}
	}
	if n == 1 {
		return value.String(singular), nil
	}
	return value.String(plural), nil
}

// filterFilesizeformat mirrors the teacher's decimal/binary unit ladder
// (kB/MB/... or KiB/MiB/...), rounding to one decimal place above 1 unit.
func filterFilesizeformat(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	size, ok := val.Float()
	if !ok {
		return value.Undefined, fmt.Errorf("filesizeformat filter requires a number")
	}
	binary := boolArg(args, kwargs, 0, "binary", false)
	negative := size < 0
	if negative {
		size = math.Abs(size)
	}
	format := func(s string) (value.Value, error) {
		if negative {
			s = "-" + s
		}
		return value.String(s), nil
	}
	if size == 0 {
		return format("0 Bytes")
	}
	if math.Abs(size-1) < 1e-9 {
		return format("1 Byte")
	}
	base := 1000.0
	units := []string{"kB", "MB", "GB", "TB", "PB", "EB", "ZB", "YB"}
	if binary {
		base = 1024.0
		units = []string{"KiB", "MiB", "GiB", "TiB", "PiB", "EiB", "ZiB", "YiB"}
	}
	if size < base {
		return format(fmt.Sprintf("%d Bytes", int64(math.Floor(size))))
	}
	size /= base
	unitIdx := 0
	for size >= base && unitIdx < len(units)-1 {
		size /= base
		unitIdx++
	}
	return format(fmt.Sprintf("%.1f %s", size, units[unitIdx]))
}

// filterTruncate mirrors the teacher's word-boundary truncation:
// killwords=true cuts mid-word, otherwise it backs up to the last space.
func filterTruncate(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	s := val.String()
	length := intArg(args, kwargs, 0, "length", 255)
	killwords := boolArg(args, kwargs, 1, "killwords", false)
	end := strArg(args, kwargs, 2, "end", "...")
	if len([]rune(s)) <= length {
		return value.String(s), nil
	}
	r := []rune(s)
	if killwords {
		cut := length - len([]rune(end))
		if cut < 0 {
			cut = 0
		}
		return value.String(string(r[:cut]) + end), nil
	}
	head := string(r[:length])
	lastSpace := strings.LastIndex(head, " ")
	if lastSpace == -1 {
		cut := length - len([]rune(end))
		if cut < 0 {
			cut = 0
		}
		return value.String(string(r[:cut]) + end), nil
	}
	return value.String(head[:lastSpace] + end), nil
}

func filterWordcount(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	return value.I64(int64(len(strings.Fields(val.String())))), nil
}

// filterWordwrap breaks text into lines no longer than width, breaking mid
// word only when break_long_words is set and a single word exceeds width.
func filterWordwrap(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	width := intArg(args, kwargs, 0, "width", 79)
	breakLongWords := boolArg(args, kwargs, 1, "break_long_words", true)
	wrapString := strArg(args, kwargs, 2, "wrapstring", "\n")

	var lines []string
	for _, para := range strings.Split(val.String(), "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		var cur strings.Builder
		for _, w := range words {
			for breakLongWords && len([]rune(w)) > width {
				r := []rune(w)
				lines = appendWrapped(lines, &cur, r[:width], width)
				w = string(r[width:])
			}
			if cur.Len() > 0 && cur.Len()+1+len(w) > width {
				lines = append(lines, cur.String())
				cur.Reset()
			}
			if cur.Len() > 0 {
				cur.WriteByte(' ')
			}
			cur.WriteString(w)
		}
		lines = append(lines, cur.String())
	}
	return value.String(strings.Join(lines, wrapString)), nil
}

func appendWrapped(lines []string, cur *strings.Builder, chunk []rune, width int) []string {
	if cur.Len() > 0 {
		lines = append(lines, cur.String())
		cur.Reset()
	}
	lines = append(lines, string(chunk))
	return lines
}

func filterStriptags(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	s := val.String()
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return value.String(strings.Join(strings.Fields(b.String()), " ")), nil
}

func filterFormat(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	format := val.String()
	converted := make([]interface{}, len(args))
	for i, a := range args {
		converted[i] = a.String()
	}
	return value.String(fmt.Sprintf(format, converted...)), nil
}

func filterSort(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	items, err := seqOf(val)
	if err != nil {
		return value.Undefined, err
	}
	reverse := boolArg(args, kwargs, 0, "reverse", false)
	caseSensitive := boolArg(args, kwargs, 1, "case_sensitive", false)
	attr := strArg(args, kwargs, 2, "attribute", "")
	out := append([]value.Value(nil), items...)
	key := func(v value.Value) value.Value {
		if attr != "" {
			return resolveDottedAttr(v, attr)
		}
		return v
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := key(out[i]), key(out[j])
		if a.Kind() == value.KindString && b.Kind() == value.KindString && !caseSensitive {
			return strings.ToLower(a.String()) < strings.ToLower(b.String())
		}
		less, err := value.Less(a, b)
		if err != nil {
			return false
		}
		return less
	})
	if reverse {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return value.Seq(out), nil
}

func filterMin(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	items, err := seqOf(val)
	if err != nil || len(items) == 0 {
		return value.Undefined, err
	}
	best := items[0]
	for _, it := range items[1:] {
		if less, _ := value.Less(it, best); less {
			best = it
		}
	}
	return best, nil
}

func filterMax(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	items, err := seqOf(val)
	if err != nil || len(items) == 0 {
		return value.Undefined, err
	}
	best := items[0]
	for _, it := range items[1:] {
		if less, _ := value.Less(best, it); less {
			best = it
		}
	}
	return best, nil
}

func filterSum(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	items, err := seqOf(val)
	if err != nil {
		return value.Undefined, err
	}
	attr := strArg(args, kwargs, 0, "attribute", "")
	start, _ := kwarg(kwargs, "start")
	total := 0.0
	if f, ok := start.Float(); ok {
		total = f
	}
	for _, it := range items {
		v := it
		if attr != "" {
			v = resolveDottedAttr(it, attr)
		}
		if f, ok := v.Float(); ok {
			total += f
		}
	}
	if total == math.Trunc(total) {
		return value.I64(int64(total)), nil
	}
	return value.F64(total), nil
}

func filterInt(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	if i, ok := val.Int(); ok {
		return value.I64(i), nil
	}
	if s, ok := val.AsStr(); ok {
		if i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return value.I64(i), nil
		}
	}
	def, hasDef := arg(args, 0)
	if hasDef {
		return def, nil
	}
	return value.I64(0), nil
}

func filterFloat(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	if f, ok := val.Float(); ok {
		return value.F64(f), nil
	}
	if s, ok := val.AsStr(); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return value.F64(f), nil
		}
	}
	def, hasDef := arg(args, 0)
	if hasDef {
		return def, nil
	}
	return value.F64(0), nil
}

func filterIndent(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	width := intArg(args, kwargs, 0, "width", 4)
	first := boolArg(args, kwargs, 1, "first", false)
	prefix := strings.Repeat(" ", width)
	lines := strings.Split(val.String(), "\n")
	for i := range lines {
		if i == 0 && !first {
			continue
		}
		if lines[i] == "" {
			continue
		}
		lines[i] = prefix + lines[i]
	}
	return value.String(strings.Join(lines, "\n")), nil
}

func filterCenter(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	width := intArg(args, kwargs, 0, "width", 80)
	s := val.String()
	if len(s) >= width {
		return value.String(s), nil
	}
	pad := width - len(s)
	left := pad / 2
	right := pad - left
	return value.String(strings.Repeat(" ", left) + s + strings.Repeat(" ", right)), nil
}

func filterUnique(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	items, err := seqOf(val)
	if err != nil {
		return value.Undefined, err
	}
	var out []value.Value
	for _, it := range items {
		dup := false
		for _, seen := range out {
			if value.Equal(it, seen) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, it)
		}
	}
	return value.Seq(out), nil
}

func filterAttr(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	name, ok := arg(args, 0)
	if !ok {
		return value.Undefined, fmt.Errorf("attr filter requires a name")
	}
	return resolveDottedAttr(val, name.String()), nil
}

// filterSpaceless backs the {% spaceless %} block (codegen compiles it to
// OpBeginCapture/OpEndCapture/OpCallFilter "spaceless"/OpEmitSafe): trims the
// captured body and collapses whitespace runs between adjacent tags.
func filterSpaceless(st environment.State, val value.Value, args []value.Value, kwargs map[string]value.Value) (value.Value, error) {
	trimmed := strings.TrimSpace(val.String())
	if trimmed == "" {
		return value.SafeString(""), nil
	}
	return value.SafeString(spacelessBetweenTags.ReplaceAllString(trimmed, "><")), nil
}
