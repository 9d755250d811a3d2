package logging

import "testing"

func TestGetReturnsSameLoggerForCategory(t *testing.T) {
	if err := Initialize(defaultConfig()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	a := Get(CategorySearch)
	b := Get(CategorySearch)
	if a != b {
		t.Fatalf("expected Get to return a cached logger for the same category")
	}
}

func TestIsCategoryEnabledDefaultsToTrue(t *testing.T) {
	if err := Initialize(Config{}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if !IsCategoryEnabled(CategoryIndex) {
		t.Fatalf("expected default config to enable all categories")
	}
}

func TestIsCategoryEnabledRespectsOverride(t *testing.T) {
	c := defaultConfig()
	c.Categories[string(CategoryTriage)] = false
	if err := Initialize(c); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if IsCategoryEnabled(CategoryTriage) {
		t.Fatalf("expected triage category to be disabled")
	}
	if !IsCategoryEnabled(CategorySearch) {
		t.Fatalf("expected search category to remain enabled")
	}
}

func TestTimerStopReturnsNonNegativeDuration(t *testing.T) {
	_ = Initialize(defaultConfig())
	timer := StartTimer(CategoryIndex, "unit-test-op")
	if d := timer.Stop(); d < 0 {
		t.Fatalf("expected non-negative duration, got %v", d)
	}
}
