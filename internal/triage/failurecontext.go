package triage

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// FailureCategory is the auto-classification of a failure's root cause.
type FailureCategory string

const (
	CategoryAssertion        FailureCategory = "assertion"
	CategoryTiming           FailureCategory = "timing"
	CategoryContention       FailureCategory = "contention"
	CategoryNondeterministic FailureCategory = "nondeterministic"
	CategoryCiEnvironment    FailureCategory = "ci_environment"
	CategoryUnknown          FailureCategory = "unknown"
)

// FailureContext captures everything needed to diagnose and reproduce a
// test failure. It is the unit persisted as a failure_context.json
// artifact.
type FailureContext struct {
	TestName       string            `json:"test_name"`
	HarnessSeed    *uint64           `json:"harness_seed,omitempty"`
	FailureMessage string            `json:"failure_message"`
	FailureTs      string            `json:"failure_ts"`
	ReproCommand   string            `json:"repro_command"`
	EnvSnapshot    map[string]string `json:"env_snapshot,omitempty"`
	RssKB          uint64            `json:"rss_kb"`
	UptimeSecs     float64           `json:"uptime_secs"`
	Category       FailureCategory   `json:"category"`
	Notes          []string          `json:"notes,omitempty"`
}

// relevantEnvPrefixes names the environment variable prefixes worth
// capturing in a failure snapshot; everything else is noise.
var relevantEnvPrefixes = []string{
	"HARNESS_", "SUITE_", "CI", "GITHUB_", "AM_", "SEARCH_", "INDEX_",
}

// secretPatterns flags env var names whose values are redacted rather
// than captured verbatim.
var secretPatterns = []string{"KEY", "SECRET", "TOKEN", "PASSWORD", "CREDENTIAL", "AUTH"}

// CaptureFailureContext builds a FailureContext from the current process
// state. harnessSeed is nil when no deterministic harness was in use.
func CaptureFailureContext(testName string, harnessSeed *uint64, failureMessage string) FailureContext {
	env := captureEnvSnapshot()
	category := ClassifyFailure(failureMessage, env)

	var repro strings.Builder
	if harnessSeed != nil {
		repro.WriteString("HARNESS_SEED=")
		repro.WriteString(strconv.FormatUint(*harnessSeed, 10))
		repro.WriteString(" ")
	}
	repro.WriteString("go test -run ^")
	repro.WriteString(testName)
	repro.WriteString("$ -v")

	return FailureContext{
		TestName:       testName,
		HarnessSeed:    harnessSeed,
		FailureMessage: failureMessage,
		FailureTs:      time.Now().UTC().Format(time.RFC3339),
		ReproCommand:   repro.String(),
		EnvSnapshot:    env,
		RssKB:          readRSSKB(),
		UptimeSecs:     readUptimeSecs(),
		Category:       category,
		Notes:          nil,
	}
}

// AddNote appends a diagnostic note to the context.
func (fc *FailureContext) AddNote(note string) {
	fc.Notes = append(fc.Notes, note)
}

// ClassifyFailure maps a failure message (plus env hints) onto a
// FailureCategory via keyword heuristics. Order matters: timing and
// contention patterns are checked before the broader assertion bucket so
// a message like "assertion failed: timed out waiting" classifies as
// Timing, the more actionable bucket.
func ClassifyFailure(message string, env map[string]string) FailureCategory {
	lower := strings.ToLower(message)

	timingMarkers := []string{"timeout", "timed out", "took too long", "deadline exceeded", "budget", "p95", "latency"}
	for _, m := range timingMarkers {
		if strings.Contains(lower, m) {
			return CategoryTiming
		}
	}

	contentionMarkers := []string{"lock", "busy", "pool exhausted", "circuit breaker", "database is locked", "disk i/o error", "too many open files"}
	for _, m := range contentionMarkers {
		if strings.Contains(lower, m) {
			return CategoryContention
		}
	}

	ciMarkers := []string{"address already in use", "connection refused", "no such file", "permission denied", "out of memory"}
	for _, m := range ciMarkers {
		if strings.Contains(lower, m) {
			return CategoryCiEnvironment
		}
	}

	if _, isCI := env["CI"]; isCI || envHas(env, "GITHUB_ACTIONS") {
		if strings.Contains(lower, "killed") || strings.Contains(lower, "signal") {
			return CategoryCiEnvironment
		}
	}

	assertionMarkers := []string{"assertion", "assert_eq", "assert_ne", "panic", "expected"}
	for _, m := range assertionMarkers {
		if strings.Contains(lower, m) {
			return CategoryAssertion
		}
	}

	return CategoryUnknown
}

func envHas(env map[string]string, key string) bool {
	_, ok := env[key]
	return ok
}

// captureEnvSnapshot reads process environment variables whose names
// match relevantEnvPrefixes, redacting values whose key looks secret.
func captureEnvSnapshot() map[string]string {
	snapshot := make(map[string]string)
	for _, kv := range os.Environ() {
		key, value, found := strings.Cut(kv, "=")
		if !found {
			continue
		}
		relevant := false
		for _, prefix := range relevantEnvPrefixes {
			if strings.HasPrefix(key, prefix) {
				relevant = true
				break
			}
		}
		if !relevant {
			continue
		}
		upper := strings.ToUpper(key)
		isSecret := false
		for _, p := range secretPatterns {
			if strings.Contains(upper, p) {
				isSecret = true
				break
			}
		}
		if isSecret {
			snapshot[key] = "[REDACTED]"
		} else {
			snapshot[key] = value
		}
	}
	return snapshot
}
