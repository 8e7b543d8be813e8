package ot

import (
	"errors"
	"fmt"
)

// The two disjoint error classes of this module. Every error returned by
// a parse or shaping call wraps exactly one of them, so clients can
// distinguish "this font is broken" from "this font uses a feature we do
// not implement":
//
//	if errors.Is(err, ot.ErrInvalid) { … }
//	if errors.Is(err, ot.ErrUnsupported) { … }
var (
	ErrInvalid     = errors.New("invalid font data")
	ErrUnsupported = errors.New("unsupported font feature")
)

// ErrorSeverity represents the severity level of a font parsing error.
type ErrorSeverity int

const (
	// SeverityCritical indicates a severe error that makes the font unusable or unreliable.
	SeverityCritical ErrorSeverity = iota
	// SeverityMajor indicates a significant error that may affect functionality but doesn't prevent usage.
	SeverityMajor
	// SeverityMinor indicates a minor issue that can be safely ignored in most cases.
	SeverityMinor
)

// String returns a human-readable representation of the error severity.
func (s ErrorSeverity) String() string {
	switch s {
	case SeverityCritical:
		return "CRITICAL"
	case SeverityMajor:
		return "MAJOR"
	case SeverityMinor:
		return "MINOR"
	default:
		return "UNKNOWN"
	}
}

// FontError represents an error encountered during font parsing or
// lookup application. Errors are accumulated during initial parsing and
// can be inspected after parsing completes.
type FontError struct {
	class    error         // ErrInvalid or ErrUnsupported
	Table    Tag           // the OpenType table where the error occurred (e.g., "GSUB", "GPOS")
	Section  string        // specific section within the table (e.g., "LookupType6", "ScriptList")
	Issue    string        // human-readable description of the issue
	Severity ErrorSeverity // severity level of the error
	Offset   uint32        // byte offset in the font file where the error occurred (0 if unknown)
}

// Error implements the error interface.
func (e FontError) Error() string {
	if e.Offset > 0 {
		return fmt.Sprintf("[%s] %s/%s at offset %d: %s", e.Severity, e.Table, e.Section, e.Offset, e.Issue)
	}
	return fmt.Sprintf("[%s] %s/%s: %s", e.Severity, e.Table, e.Section, e.Issue)
}

// Unwrap exposes the error class, either ErrInvalid or ErrUnsupported.
func (e FontError) Unwrap() error {
	return e.class
}

// errInvalid creates a malformed-data error for a table section.
func errInvalid(table Tag, section, issue string) error {
	return FontError{
		class:    ErrInvalid,
		Table:    table,
		Section:  section,
		Issue:    issue,
		Severity: SeverityCritical,
	}
}

// errInvalidAt is errInvalid with a known byte offset.
func errInvalidAt(table Tag, section, issue string, offset uint32) error {
	return FontError{
		class:    ErrInvalid,
		Table:    table,
		Section:  section,
		Issue:    issue,
		Severity: SeverityCritical,
		Offset:   offset,
	}
}

// errUnsupported creates an error for valid but unimplemented font features.
func errUnsupported(table Tag, section, issue string) error {
	return FontError{
		class:    ErrUnsupported,
		Table:    table,
		Section:  section,
		Issue:    issue,
		Severity: SeverityMajor,
	}
}

// FontWarning represents a non-critical issue encountered during font parsing.
// Warnings indicate potential problems but do not prevent font usage.
type FontWarning struct {
	Table  Tag    // the OpenType table where the warning occurred
	Issue  string // human-readable description of the warning
	Offset uint32 // byte offset in the font file where the warning occurred (0 if unknown)
}

// String returns a human-readable representation of the warning.
func (w FontWarning) String() string {
	if w.Offset > 0 {
		return fmt.Sprintf("[WARNING] %s at offset %d: %s", w.Table, w.Offset, w.Issue)
	}
	return fmt.Sprintf("[WARNING] %s: %s", w.Table, w.Issue)
}

// errorCollector accumulates errors and warnings during font parsing.
// This is an internal helper used by the parser to collect issues as they
// are discovered.
type errorCollector struct {
	errors   []FontError
	warnings []FontWarning
}

// addError records a parsing error.
func (ec *errorCollector) addError(table Tag, section string, issue string, severity ErrorSeverity, offset uint32) {
	ec.errors = append(ec.errors, FontError{
		class:    ErrInvalid,
		Table:    table,
		Section:  section,
		Issue:    issue,
		Severity: severity,
		Offset:   offset,
	})
}

// addWarning records a parsing warning.
func (ec *errorCollector) addWarning(table Tag, issue string, offset uint32) {
	ec.warnings = append(ec.warnings, FontWarning{
		Table:  table,
		Issue:  issue,
		Offset: offset,
	})
}

// hasErrors returns true if any errors have been recorded.
func (ec *errorCollector) hasErrors() bool {
	return len(ec.errors) > 0
}

// hasCriticalErrors returns true if any critical errors have been recorded.
func (ec *errorCollector) hasCriticalErrors() bool {
	for _, err := range ec.errors {
		if err.Severity == SeverityCritical {
			return true
		}
	}
	return false
}
