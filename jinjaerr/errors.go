// Package jinjaerr defines the engine's error taxonomy and the debug-info
// snapshot attached to render-time failures (spec §7), adapted from the
// teacher's (deicod-gojinja) runtime/errors.go onto the value/compiler/vm
// packages instead of the tree-walking interpreter's interface{} model.
package jinjaerr

import (
	"fmt"

	"github.com/google/uuid"
)

// Kind classifies why an Error occurred, mirroring minijinja's ErrorKind
// (original_source error.rs) closely enough that a caller can
// programmatically branch on it (spec §7).
type Kind uint8

const (
	KindSyntax Kind = iota
	KindTemplateNotFound
	KindNonPrimitive
	KindInvalidOperation
	KindUnknownFilter
	KindUnknownTest
	KindUnknownFunction
	KindUnknownMethod
	KindBadSerialization
	KindBadInclude
	KindEvalBlock
	KindCannotDeserialize
	KindUndefinedError
	KindBadEscape
	KindMissingArgument
	KindTooManyArguments
	KindSecurityPolicy
	KindFuelExhausted
	KindRecursionLimit
)

func (k Kind) String() string {
	switch k {
	case KindSyntax:
		return "SyntaxError"
	case KindTemplateNotFound:
		return "TemplateNotFound"
	case KindNonPrimitive:
		return "NonPrimitive"
	case KindInvalidOperation:
		return "InvalidOperation"
	case KindUnknownFilter:
		return "UnknownFilter"
	case KindUnknownTest:
		return "UnknownTest"
	case KindUnknownFunction:
		return "UnknownFunction"
	case KindUnknownMethod:
		return "UnknownMethod"
	case KindBadSerialization:
		return "BadSerialization"
	case KindBadInclude:
		return "BadInclude"
	case KindEvalBlock:
		return "EvalBlock"
	case KindCannotDeserialize:
		return "CannotDeserialize"
	case KindUndefinedError:
		return "UndefinedError"
	case KindBadEscape:
		return "BadEscape"
	case KindMissingArgument:
		return "MissingArgument"
	case KindTooManyArguments:
		return "TooManyArguments"
	case KindSecurityPolicy:
		return "SecurityPolicy"
	case KindFuelExhausted:
		return "FuelExhausted"
	case KindRecursionLimit:
		return "RecursionLimit"
	default:
		return "Unknown"
	}
}

// DebugInfo snapshots enough render-time context to produce a useful
// traceback without keeping the whole VM alive (spec §7 "debug output").
// RenderID is stamped with a uuid so multiple concurrent renders of the
// same template can be told apart in aggregated logs, grounded on
// getevo-evo's use of github.com/google/uuid (the pack's id-generation
// library) for exactly this kind of correlation id.
type DebugInfo struct {
	RenderID     string
	TemplateName string
	Line         int
	Referenced   map[string]string // variable name -> repr, best-effort
}

// NewDebugInfo stamps a fresh render-correlation id.
func NewDebugInfo(templateName string, line int) *DebugInfo {
	return &DebugInfo{RenderID: uuid.NewString(), TemplateName: templateName, Line: line}
}

// Error is the engine's single error type; every failure mode in the
// pipeline (lex/parse/compile/render) is reported through it.
type Error struct {
	Kind    Kind
	Message string
	Name    string // template name, if applicable
	Line    int
	Debug   *DebugInfo
	cause   error
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s: %s (in %s:%d)", e.Kind, e.Message, e.Name, e.Line)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause so errors.Is/errors.As compose through
// an Error the way they would through any stdlib-wrapped error.
func (e *Error) Unwrap() error { return e.cause }

// WithCause attaches an underlying error (e.g. a value.OpError) for
// errors.As unwrapping, and returns e for chaining.
func (e *Error) WithCause(cause error) *Error {
	e.cause = cause
	return e
}

// At annotates e with a source location, returning e for chaining.
func (e *Error) At(name string, line int) *Error {
	e.Name = name
	e.Line = line
	return e
}
