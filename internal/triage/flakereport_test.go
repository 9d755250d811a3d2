package triage

import (
	"strings"
	"testing"
)

func strPtr(s string) *string { return &s }
func u64Ptr(v uint64) *uint64 { return &v }

func TestFlakeReportStable(t *testing.T) {
	runs := []RunOutcome{
		{Run: 1, Passed: true, DurationMs: 10, Seed: u64Ptr(1)},
		{Run: 2, Passed: true, DurationMs: 12, Seed: u64Ptr(2)},
		{Run: 3, Passed: true, DurationMs: 11, Seed: u64Ptr(3)},
	}
	report := FlakeReportFromRuns("stable_test", runs)
	if report.Verdict != VerdictStable {
		t.Errorf("expected Stable, got %v", report.Verdict)
	}
	if report.Passes != 3 || report.Failures != 0 {
		t.Errorf("expected 3 passes, 0 failures, got %d/%d", report.Passes, report.Failures)
	}
}

func TestFlakeReportDeterministicFailure(t *testing.T) {
	runs := []RunOutcome{
		{Run: 1, Passed: false, DurationMs: 5, FailureMessage: strPtr("bug"), Seed: u64Ptr(1)},
		{Run: 2, Passed: false, DurationMs: 6, FailureMessage: strPtr("bug"), Seed: u64Ptr(2)},
	}
	report := FlakeReportFromRuns("always_fails", runs)
	if report.Verdict != VerdictDeterministicFailure {
		t.Errorf("expected DeterministicFailure, got %v", report.Verdict)
	}
	if len(report.FailingSeeds) == 0 {
		t.Error("expected failing seeds recorded")
	}
}

func TestFlakeReportFlaky(t *testing.T) {
	runs := []RunOutcome{
		{Run: 1, Passed: true, DurationMs: 10},
		{Run: 2, Passed: false, DurationMs: 15, FailureMessage: strPtr("timeout"), Seed: u64Ptr(2)},
		{Run: 3, Passed: true, DurationMs: 11},
		{Run: 4, Passed: false, DurationMs: 20, FailureMessage: strPtr("timeout"), Seed: u64Ptr(4)},
	}
	report := FlakeReportFromRuns("flaky_test", runs)
	if report.Verdict != VerdictFlaky {
		t.Errorf("expected Flaky, got %v", report.Verdict)
	}
	if report.FlakeRate != 0.5 {
		t.Errorf("expected flake rate 0.5, got %f", report.FlakeRate)
	}
	if report.FailureHistogram["timeout"] != 2 {
		t.Errorf("expected histogram count 2, got %d", report.FailureHistogram["timeout"])
	}
	if len(report.FailingSeeds) != 2 || report.FailingSeeds[0] != 2 || report.FailingSeeds[1] != 4 {
		t.Errorf("expected failing seeds [2 4], got %v", report.FailingSeeds)
	}
}

func TestFlakeReportInconclusive(t *testing.T) {
	runs := []RunOutcome{{Run: 1, Passed: true, DurationMs: 10}}
	report := FlakeReportFromRuns("single_run", runs)
	if report.Verdict != VerdictInconclusive {
		t.Errorf("expected Inconclusive, got %v", report.Verdict)
	}
}

func TestFlakeReportEmpty(t *testing.T) {
	report := FlakeReportFromRuns("empty", nil)
	if report.Verdict != VerdictInconclusive {
		t.Errorf("expected Inconclusive, got %v", report.Verdict)
	}
	if report.TotalRuns != 0 {
		t.Errorf("expected 0 total runs, got %d", report.TotalRuns)
	}
}

func TestRemediationVariesByVerdict(t *testing.T) {
	stable := FlakeReportFromRuns("s", []RunOutcome{
		{Run: 1, Passed: true}, {Run: 2, Passed: true},
	})
	if stable.Remediation != "No action needed." {
		t.Errorf("unexpected remediation: %s", stable.Remediation)
	}

	detFail := FlakeReportFromRuns("f", []RunOutcome{
		{Run: 1, Passed: false, FailureMessage: strPtr("x"), Seed: u64Ptr(42)},
		{Run: 2, Passed: false, FailureMessage: strPtr("x"), Seed: u64Ptr(43)},
	})
	if !strings.Contains(detFail.Remediation, "Fix the test") {
		t.Errorf("expected deterministic-failure remediation, got %s", detFail.Remediation)
	}
}

func TestRunWithSeedsAllPass(t *testing.T) {
	report := RunWithSeeds("seed_test_pass", []uint64{1, 2, 3, 4, 5}, func(seed uint64) string { return "" })
	if report.Verdict != VerdictStable {
		t.Errorf("expected Stable, got %v", report.Verdict)
	}
	if report.TotalRuns != 5 {
		t.Errorf("expected 5 total runs, got %d", report.TotalRuns)
	}
}

func TestRunWithSeedsSomeFail(t *testing.T) {
	report := RunWithSeeds("seed_test_flaky", []uint64{1, 2, 3, 4, 5}, func(seed uint64) string {
		if seed%2 == 0 {
			return "even seed fails"
		}
		return ""
	})
	if report.Verdict != VerdictFlaky {
		t.Errorf("expected Flaky, got %v", report.Verdict)
	}
	if report.Failures != 2 || report.Passes != 3 {
		t.Errorf("expected 2 failures / 3 passes, got %d/%d", report.Failures, report.Passes)
	}
}

func TestDefaultFlakeSeedsNotEmpty(t *testing.T) {
	if len(DefaultFlakeSeeds) < 10 {
		t.Fatalf("expected at least 10 default seeds, got %d", len(DefaultFlakeSeeds))
	}
}
