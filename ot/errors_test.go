package ot

import (
	"errors"
	"testing"
)

func TestErrorSeverityString(t *testing.T) {
	cases := []struct {
		severity ErrorSeverity
		want     string
	}{
		{SeverityCritical, "CRITICAL"},
		{SeverityMajor, "MAJOR"},
		{SeverityMinor, "MINOR"},
		{ErrorSeverity(99), "UNKNOWN"},
	}
	for _, c := range cases {
		if s := c.severity.String(); s != c.want {
			t.Errorf("expected severity string %q, got %q", c.want, s)
		}
	}
}

func TestFontErrorMessage(t *testing.T) {
	err := FontError{
		class:    ErrInvalid,
		Table:    T("GSUB"),
		Section:  "LookupType6",
		Issue:    "Buffer too small",
		Severity: SeverityCritical,
		Offset:   1234,
	}
	want := "[CRITICAL] GSUB/LookupType6 at offset 1234: Buffer too small"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
	err.Offset = 0
	want = "[CRITICAL] GSUB/LookupType6: Buffer too small"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}

func TestErrorClassification(t *testing.T) {
	inv := errInvalid(T("cmap"), "Header", "header truncated")
	if !errors.Is(inv, ErrInvalid) {
		t.Errorf("expected errInvalid to wrap ErrInvalid")
	}
	if errors.Is(inv, ErrUnsupported) {
		t.Errorf("expected errInvalid not to wrap ErrUnsupported")
	}
	uns := errUnsupported(T("GDEF"), "Header", "GDEF version 2.0")
	if !errors.Is(uns, ErrUnsupported) {
		t.Errorf("expected errUnsupported to wrap ErrUnsupported")
	}
	var ferr FontError
	if !errors.As(uns, &ferr) {
		t.Fatalf("expected error to be a FontError")
	}
	if ferr.Severity != SeverityMajor {
		t.Errorf("expected unsupported errors to be MAJOR, got %s", ferr.Severity)
	}
}

func TestFontWarningString(t *testing.T) {
	w := FontWarning{Table: T("kern"), Issue: "kern table version 1 not interpreted", Offset: 0}
	want := "[WARNING] kern: kern table version 1 not interpreted"
	if w.String() != want {
		t.Errorf("expected %q, got %q", want, w.String())
	}
}

func TestErrorCollector(t *testing.T) {
	ec := &errorCollector{}
	if ec.hasErrors() || ec.hasCriticalErrors() {
		t.Errorf("expected a fresh collector to be empty")
	}
	ec.addWarning(T("name"), "record not decodable", 0)
	if ec.hasErrors() {
		t.Errorf("expected warnings not to count as errors")
	}
	ec.addError(T("hmtx"), "Size", "table too small", SeverityMinor, 0)
	if !ec.hasErrors() || ec.hasCriticalErrors() {
		t.Errorf("expected a minor error, no critical errors")
	}
	ec.addError(T("hmtx"), "Size", "table too small", SeverityCritical, 0)
	if !ec.hasCriticalErrors() {
		t.Errorf("expected a critical error to be recorded")
	}
}
