package triage

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// RunOutcome is a single test run's result, the unit flake reports are
// built from.
type RunOutcome struct {
	Run            uint32  `json:"run"`
	Passed         bool    `json:"passed"`
	DurationMs     uint64  `json:"duration_ms"`
	FailureMessage *string `json:"failure_message,omitempty"`
	Seed           *uint64 `json:"seed,omitempty"`
}

// FlakeVerdict classifies a test's behavior across a set of runs.
type FlakeVerdict string

const (
	VerdictStable               FlakeVerdict = "stable"
	VerdictDeterministicFailure FlakeVerdict = "deterministic_failure"
	VerdictFlaky                FlakeVerdict = "flaky"
	VerdictInconclusive         FlakeVerdict = "inconclusive"
)

// FlakeReport aggregates RunOutcomes for one test into a verdict and
// remediation text.
type FlakeReport struct {
	GeneratedAt      string            `json:"generated_at"`
	TestName         string            `json:"test_name"`
	TotalRuns        uint32            `json:"total_runs"`
	Passes           uint32            `json:"passes"`
	Failures         uint32            `json:"failures"`
	FlakeRate        float64           `json:"flake_rate"`
	Runs             []RunOutcome      `json:"runs"`
	FailureHistogram map[string]uint32 `json:"failure_histogram,omitempty"`
	FailingSeeds     []uint64          `json:"failing_seeds,omitempty"`
	Verdict          FlakeVerdict      `json:"verdict"`
	Remediation      string            `json:"remediation"`
}

// FlakeReportFromRuns builds a report from a set of run outcomes.
// Verdicts: Stable (all pass, total>=2), DeterministicFailure (all fail,
// total>=2), Flaky (mixed), Inconclusive (total<=1).
func FlakeReportFromRuns(testName string, runs []RunOutcome) FlakeReport {
	total := uint32(len(runs))
	var passes uint32
	for _, r := range runs {
		if r.Passed {
			passes++
		}
	}
	failures := total - passes

	var flakeRate float64
	if total > 0 {
		flakeRate = float64(failures) / float64(total)
	}

	histogram := make(map[string]uint32)
	for _, r := range runs {
		if r.FailureMessage == nil {
			continue
		}
		key := *r.FailureMessage
		if idx := strings.IndexByte(key, '\n'); idx >= 0 {
			key = key[:idx]
		}
		histogram[key]++
	}

	var failingSeeds []uint64
	for _, r := range runs {
		if !r.Passed && r.Seed != nil {
			failingSeeds = append(failingSeeds, *r.Seed)
		}
	}

	var verdict FlakeVerdict
	switch {
	case total <= 1:
		verdict = VerdictInconclusive
	case failures == 0:
		verdict = VerdictStable
	case passes == 0:
		verdict = VerdictDeterministicFailure
	default:
		verdict = VerdictFlaky
	}

	remediation := buildRemediation(verdict, flakeRate, histogram, failingSeeds)

	report := FlakeReport{
		GeneratedAt:  time.Now().UTC().Format(time.RFC3339),
		TestName:     testName,
		TotalRuns:    total,
		Passes:       passes,
		Failures:     failures,
		FlakeRate:    flakeRate,
		Runs:         runs,
		FailingSeeds: failingSeeds,
		Verdict:      verdict,
		Remediation:  remediation,
	}
	if len(histogram) > 0 {
		report.FailureHistogram = histogram
	}
	return report
}

func buildRemediation(verdict FlakeVerdict, flakeRate float64, histogram map[string]uint32, failingSeeds []uint64) string {
	switch verdict {
	case VerdictStable:
		return "No action needed."
	case VerdictDeterministicFailure:
		hint := ""
		if len(failingSeeds) > 0 {
			hint = fmt.Sprintf(" (try: HARNESS_SEED=%d)", failingSeeds[0])
		}
		return "Fix the test — fails on every run." + hint
	case VerdictFlaky:
		top := topHistogramMessage(histogram)
		n := len(failingSeeds)
		if n > 5 {
			n = 5
		}
		return fmt.Sprintf("Flake rate: %.1f%%. Most common failure: %s. Replay failing seeds: %v",
			flakeRate*100, top, failingSeeds[:n])
	default:
		return "Run more iterations to determine stability."
	}
}

func topHistogramMessage(histogram map[string]uint32) string {
	if len(histogram) == 0 {
		return "(unknown)"
	}
	keys := make([]string, 0, len(histogram))
	for k := range histogram {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	best := keys[0]
	for _, k := range keys[1:] {
		if histogram[k] > histogram[best] {
			best = k
		}
	}
	return best
}

// DefaultFlakeSeeds is a fixed corpus of well-known seeds so repeated
// triage runs are themselves reproducible. Includes edge-case seeds (0,
// 1, max) plus a spread of values to catch nondeterminism across the
// PRNG state space.
var DefaultFlakeSeeds = []uint64{
	0,
	1,
	2,
	42,
	100,
	255,
	1000,
	12345,
	65535,
	999_999,
	0xDEAD_BEEF,
	0xCAFE_BABE,
	0x1234_5678,
	0xFFFF_FFFF,
	math.MaxUint64,
	math.MaxUint64 / 2,
	math.MaxUint64 / 3,
}

// RunWithSeeds runs testFn once per seed, collecting each outcome, and
// aggregates the results into a FlakeReport. testFn returns an empty
// string on pass or a failure message on fail.
func RunWithSeeds(testName string, seeds []uint64, testFn func(seed uint64) string) FlakeReport {
	runs := make([]RunOutcome, 0, len(seeds))
	for i, seed := range seeds {
		start := time.Now()
		failMsg := testFn(seed)
		duration := uint64(time.Since(start).Milliseconds())

		outcome := RunOutcome{
			Run:        uint32(i + 1),
			Passed:     failMsg == "",
			DurationMs: duration,
			Seed:       &seed,
		}
		if failMsg != "" {
			msg := failMsg
			outcome.FailureMessage = &msg
		}
		runs = append(runs, outcome)
	}
	return FlakeReportFromRuns(testName, runs)
}
