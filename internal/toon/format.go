// Package toon resolves the output format a caller requested against a
// configured default, per the TOON (Token-Oriented Object Notation)
// downstream formatter's request contract. It does not encode TOON itself
// — that's an external encoder's job — only decides whether a request
// should be served as "json" or "toon".
package toon

import "strings"

// Format names a resolved output format.
type Format string

const (
	FormatJSON Format = "json"
	FormatTOON Format = "toon"
)

// Source names where a FormatDecision came from.
type Source string

const (
	SourceParam    Source = "param"
	SourceDefault  Source = "default"
	SourceImplicit Source = "implicit"
)

// autoValues are treated as "no format specified" — fall through to the
// configured default (or implicit json if there is none).
var autoValues = map[string]bool{"": true, "auto": true, "default": true, "none": true, "null": true}

// mimeAliases maps MIME-style selectors to their canonical format name.
var mimeAliases = map[string]Format{
	"application/json": FormatJSON,
	"text/json":        FormatJSON,
	"application/toon": FormatTOON,
	"text/toon":        FormatTOON,
}

// FormatDecision is the outcome of resolving a requested format.
type FormatDecision struct {
	Resolved  Format
	Source    Source
	Requested *Format
}

// InvalidFormatError reports a format selector that matched neither a
// known format name nor an auto-alias.
type InvalidFormatError struct {
	Raw string
}

func (e *InvalidFormatError) Error() string {
	return "invalid format '" + e.Raw + "'. Expected 'json' or 'toon'."
}

func canonicalize(raw string) (Format, bool) {
	lower := strings.ToLower(strings.TrimSpace(raw))
	if alias, ok := mimeAliases[lower]; ok {
		return alias, true
	}
	switch Format(lower) {
	case FormatJSON, FormatTOON:
		return Format(lower), true
	default:
		return "", false
	}
}

func implicitJSON() FormatDecision {
	return FormatDecision{Resolved: FormatJSON, Source: SourceImplicit}
}

// ResolveFormat resolves a request's format selector against a configured
// default. requested is the raw value from the caller (may be empty);
// defaultFormat is the configured fallback selector (may be empty, meaning
// no default was configured). Selector matching is case-insensitive and
// accepts MIME aliases and auto-aliases; anything else is an
// InvalidFormatError, never a panic.
func ResolveFormat(requested, defaultFormat string) (FormatDecision, error) {
	lowerRequested := strings.ToLower(strings.TrimSpace(requested))
	if !autoValues[lowerRequested] {
		canonical, ok := canonicalize(requested)
		if !ok {
			return FormatDecision{}, &InvalidFormatError{Raw: requested}
		}
		return FormatDecision{Resolved: canonical, Source: SourceParam, Requested: &canonical}, nil
	}
	return resolveFromDefault(defaultFormat)
}

func resolveFromDefault(defaultFormat string) (FormatDecision, error) {
	lowerDefault := strings.ToLower(strings.TrimSpace(defaultFormat))
	if defaultFormat == "" || autoValues[lowerDefault] {
		return implicitJSON(), nil
	}
	canonical, ok := canonicalize(defaultFormat)
	if !ok {
		return FormatDecision{}, &InvalidFormatError{Raw: defaultFormat}
	}
	return FormatDecision{Resolved: canonical, Source: SourceDefault, Requested: &canonical}, nil
}
