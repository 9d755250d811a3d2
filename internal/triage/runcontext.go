package triage

// ClockMode selects how RunContext derives its logical clock.
type ClockMode string

const (
	// ClockDeterministic derives the epoch and step from the seed so
	// repeated runs with the same seed produce byte-identical artifacts.
	ClockDeterministic ClockMode = "deterministic"
	// ClockWall uses the real wall clock; artifacts are not reproducible.
	ClockWall ClockMode = "wall"
)

// secondsPerDay bounds the seed-derived epoch offset so it always lands
// within one day of epochBase, per the deterministic clock derivation.
const secondsPerDay = 86400

// RunContext is the small, closed set of options that determines whether
// a triage run is reproducible, and what identifiers it produces.
type RunContext struct {
	ClockMode  ClockMode
	Seed       uint64
	EpochBase  int64
	SuiteLabel string

	// resolved at construction
	epoch int64
	rng   *lcg
}

// NewRunContext resolves epochBase/seed into a concrete logical epoch. In
// deterministic mode, epoch = epochBase + (seed mod 86400) when epochBase
// is nonzero; a zero epochBase is left as zero (the caller didn't supply
// one, so there's nothing to offset).
func NewRunContext(mode ClockMode, seed uint64, epochBase int64, suiteLabel string) *RunContext {
	rc := &RunContext{
		ClockMode:  mode,
		Seed:       seed,
		EpochBase:  epochBase,
		SuiteLabel: suiteLabel,
		rng:        newLCG(seed),
	}
	if mode == ClockDeterministic && epochBase != 0 {
		rc.epoch = epochBase + int64(seed%secondsPerDay)
	} else {
		rc.epoch = epochBase
	}
	return rc
}

// Epoch returns the resolved logical epoch (unix seconds).
func (rc *RunContext) Epoch() int64 { return rc.epoch }

// NextU32 returns the next value from the run's seeded generator.
func (rc *RunContext) NextU32() uint32 { return rc.rng.nextU32() }

// NextHex returns n bytes of generator output as hex.
func (rc *RunContext) NextHex(n int) string { return rc.rng.nextHex(n) }

// NextID returns a stable prefixed identifier from the generator.
func (rc *RunContext) NextID(prefix string) string { return rc.rng.nextID(prefix) }
