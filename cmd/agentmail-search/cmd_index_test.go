package main

import (
	"testing"

	"agentmail-search/internal/index"
)

func TestParseDocKindValid(t *testing.T) {
	for _, s := range []string{"message", "agent", "project"} {
		if _, err := parseDocKind(s); err != nil {
			t.Fatalf("parseDocKind(%q): unexpected error: %v", s, err)
		}
	}
}

func TestParseDocKindInvalid(t *testing.T) {
	if _, err := parseDocKind("bogus"); err == nil {
		t.Fatal("expected an error for an unknown kind")
	}
}

func TestParseScopeGlobal(t *testing.T) {
	s, err := parseScope("global")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Kind != index.ScopeGlobal {
		t.Fatalf("expected global scope, got %+v", s)
	}

	s, err = parseScope("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Kind != index.ScopeGlobal {
		t.Fatalf("expected global scope for empty string, got %+v", s)
	}
}

func TestParseScopeProjectAndProduct(t *testing.T) {
	s, err := parseScope("project:7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Kind != index.ScopeProject || s.ID != 7 {
		t.Fatalf("unexpected scope: %+v", s)
	}

	s, err = parseScope("product:42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Kind != index.ScopeProduct || s.ID != 42 {
		t.Fatalf("unexpected scope: %+v", s)
	}
}

func TestParseScopeInvalid(t *testing.T) {
	cases := []string{"bogus", "project", "project:abc", "widget:1"}
	for _, c := range cases {
		if _, err := parseScope(c); err == nil {
			t.Fatalf("parseScope(%q): expected an error", c)
		}
	}
}
