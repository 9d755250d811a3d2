package toon

import (
	"errors"
	"testing"
)

func TestResolveFormatExplicitParam(t *testing.T) {
	d, err := ResolveFormat("toon", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Resolved != FormatTOON || d.Source != SourceParam {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestResolveFormatCaseInsensitive(t *testing.T) {
	d, err := ResolveFormat("JSON", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Resolved != FormatJSON {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestResolveFormatMimeAlias(t *testing.T) {
	cases := map[string]Format{
		"application/json": FormatJSON,
		"text/json":        FormatJSON,
		"application/toon": FormatTOON,
		"text/toon":        FormatTOON,
	}
	for raw, want := range cases {
		d, err := ResolveFormat(raw, "")
		if err != nil {
			t.Fatalf("ResolveFormat(%q): unexpected error: %v", raw, err)
		}
		if d.Resolved != want {
			t.Fatalf("ResolveFormat(%q) = %v, want %v", raw, d.Resolved, want)
		}
	}
}

func TestResolveFormatAutoAliasesFallThroughToDefault(t *testing.T) {
	for _, raw := range []string{"", "auto", "default", "none", "null", "  Auto  "} {
		d, err := ResolveFormat(raw, "toon")
		if err != nil {
			t.Fatalf("ResolveFormat(%q): unexpected error: %v", raw, err)
		}
		if d.Resolved != FormatTOON || d.Source != SourceDefault {
			t.Fatalf("ResolveFormat(%q) = %+v, want resolved=toon source=default", raw, d)
		}
	}
}

func TestResolveFormatNoDefaultIsImplicitJSON(t *testing.T) {
	d, err := ResolveFormat("", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Resolved != FormatJSON || d.Source != SourceImplicit || d.Requested != nil {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestResolveFormatInvalidSelectorIsStructuredError(t *testing.T) {
	_, err := ResolveFormat("yaml", "")
	if err == nil {
		t.Fatal("expected an error for an unrecognized format")
	}
	var invalid *InvalidFormatError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected *InvalidFormatError, got %T: %v", err, err)
	}
}

func TestResolveFormatInvalidDefaultIsStructuredError(t *testing.T) {
	_, err := ResolveFormat("", "yaml")
	if err == nil {
		t.Fatal("expected an error for an unrecognized default format")
	}
}
