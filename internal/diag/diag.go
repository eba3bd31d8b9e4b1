// Package diag implements Orus's structured diagnostics: the error
// taxonomy from spec §7, source locations, and call-stack traces.
//
// Grounded on internal/errors/errors.go's SentraError (ErrorType +
// SourceLocation + CallStack, rendered by Error()).
package diag

import (
	"fmt"
	"strings"
)

// Kind is the error taxonomy from spec §7.
type Kind string

const (
	Type         Kind = "TypeError"
	ValueErr     Kind = "ValueError"
	Name         Kind = "NameError"
	Import       Kind = "ImportError"
	Runtime      Kind = "RuntimeError"
	Syntax       Kind = "SyntaxError"
	Feature      Kind = "FeatureError"
	Redefinition Kind = "RedefinitionError"
)

// Location is a source position.
type Location struct {
	File   string
	Line   int
	Column int
}

// Frame is one call-stack entry for a diagnostic's trace.
type Frame struct {
	Function string
	File     string
	Line     int
	Column   int
}

// Diagnostic is a compile- or run-time error with source location and an
// optional stable code (E1011, E1401, E1402, E3003, E3004 — spec §4.6/§7).
type Diagnostic struct {
	Kind      Kind
	Code      string
	Message   string
	Location  Location
	CallStack []Frame
}

func (d *Diagnostic) Error() string {
	var sb strings.Builder
	if d.Code != "" {
		fmt.Fprintf(&sb, "%s %s: %s", d.Code, d.Kind, d.Message)
	} else {
		fmt.Fprintf(&sb, "%s: %s", d.Kind, d.Message)
	}
	if d.Location.File != "" {
		fmt.Fprintf(&sb, "\n  at %s:%d:%d", d.Location.File, d.Location.Line, d.Location.Column)
	}
	for _, f := range d.CallStack {
		if f.Function != "" {
			fmt.Fprintf(&sb, "\n  at %s (%s:%d:%d)", f.Function, f.File, f.Line, f.Column)
		} else {
			fmt.Fprintf(&sb, "\n  at %s:%d:%d", f.File, f.Line, f.Column)
		}
	}
	return sb.String()
}

func New(kind Kind, code, message string, loc Location) *Diagnostic {
	return &Diagnostic{Kind: kind, Code: code, Message: message, Location: loc}
}

// Compile-time diagnostic constructors named after the spec's stable codes.

func Redeclaration(name string, priorLine int, loc Location) *Diagnostic {
	return New(Redefinition, "E1011", fmt.Sprintf("redeclaration of %q, previously declared on line %d", name, priorLine), loc)
}

func BreakOutsideLoop(note string, loc Location) *Diagnostic {
	msg := "break used outside of a loop"
	if note != "" {
		msg += ": " + note
	}
	return New(Feature, "E1401", msg, loc)
}

func ContinueOutsideLoop(note string, loc Location) *Diagnostic {
	msg := "continue used outside of a loop"
	if note != "" {
		msg += ": " + note
	}
	return New(Feature, "E1402", msg, loc)
}

func ModuleNotFound(name string, loc Location) *Diagnostic {
	return New(Import, "E3003", fmt.Sprintf("module '%s' could not be resolved", name), loc)
}

func ExportNotFound(module, symbol string, loc Location) *Diagnostic {
	return New(Name, "E3004", fmt.Sprintf("module '%s' does not export '%s'", module, symbol), loc)
}
