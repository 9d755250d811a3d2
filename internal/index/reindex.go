package index

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"agentmail-search/internal/logging"
	"agentmail-search/internal/searcherr"
)

// Reindexer drives the full reindex algorithm and consistency checks for
// one (source, lifecycle, layout, scope, schema) tuple.
type Reindexer struct {
	Source     DocumentSource
	Lifecycle  IndexLifecycle
	Layout     Layout
	SchemaHash string
	BatchSize  int
	// FanOut bounds how many fetched batches are applied through
	// UpdateIncremental concurrently during FullReindex; batches are
	// fetched one at a time. 1 disables concurrency.
	FanOut int
}

func (r *Reindexer) batchSize() int {
	if r.BatchSize <= 0 {
		return 500
	}
	return r.BatchSize
}

func (r *Reindexer) fanOut() int {
	if r.FanOut <= 0 {
		return 4
	}
	return r.FanOut
}

// withRetry wraps a retryable storage/embedder call with bounded exponential
// backoff, per the Kind.Retryable() classification (IO, Timeout,
// IndexNotReady). Non-retryable errors are returned immediately.
func withRetry(ctx context.Context, op func() error) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4), ctx)
	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if !searcherr.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}

// FullReindex implements the full reindex algorithm: ensure layout dirs,
// read the source's total count, reset lifecycle state, then stream
// batches through update_incremental until a batch comes back empty. A
// checkpoint is written only on success; partial progress on failure is
// not persisted.
func (r *Reindexer) FullReindex(ctx context.Context) (Checkpoint, error) {
	timer := logging.StartTimer(logging.CategoryIndex, "FullReindex")
	defer timer.Stop()

	started := time.Now()

	if err := r.Layout.EnsureDirs(r.SchemaHash); err != nil {
		return Checkpoint{}, err
	}

	total, err := r.Source.TotalCount(ctx)
	if err != nil {
		return Checkpoint{}, searcherr.New(searcherr.IO, "FullReindex.TotalCount", err)
	}
	logging.Index("Full reindex starting: schema=%s target_docs=%s", r.SchemaHash, humanize.Comma(total))

	if err := withRetry(ctx, func() error { return r.Lifecycle.Rebuild(ctx) }); err != nil {
		return Checkpoint{}, classifyLifecycleError("FullReindex.Rebuild", err)
	}

	docsIndexed, err := r.streamBatches(ctx)
	if err != nil {
		return Checkpoint{}, err
	}

	cp := Checkpoint{
		SchemaHash:  r.SchemaHash,
		DocsIndexed: docsIndexed,
		StartedTs:   started.UnixMicro(),
		CompletedTs: time.Now().UnixMicro(),
		MaxVersion:  docsIndexed,
		Success:     true,
	}
	if err := r.Layout.WriteCheckpoint(r.SchemaHash, cp); err != nil {
		return Checkpoint{}, err
	}

	logging.Index("Full reindex complete: schema=%s docs_indexed=%s", r.SchemaHash, humanize.Comma(docsIndexed))
	return cp, nil
}

// streamBatches fetches batches one at a time in the caller goroutine and
// indexes them with up to fanOut() UpdateIncremental calls in flight,
// preserving the stop-on-empty-batch termination rule. Offsets are
// assigned sequentially by the caller goroutine so termination detection
// stays deterministic regardless of apply completion order.
func (r *Reindexer) streamBatches(ctx context.Context) (int64, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.fanOut())

	indexedMu := indexedCounter{mu: make(chan struct{}, 1)}
	offset := 0
	for {
		batchOffset := offset
		batch, err := r.Source.FetchAllBatched(gctx, r.batchSize(), batchOffset)
		if err != nil {
			return indexedMu.get(), searcherr.New(searcherr.IO, "FullReindex.FetchAllBatched", err)
		}
		if len(batch) == 0 {
			break
		}

		changes := make([]DocChange, len(batch))
		for i, doc := range batch {
			changes[i] = DocChange{Op: ChangeUpsert, Document: doc}
		}

		g.Go(func() error {
			if err := withRetry(gctx, func() error { return r.Lifecycle.UpdateIncremental(gctx, changes) }); err != nil {
				return classifyLifecycleError("FullReindex.UpdateIncremental", err)
			}
			indexedMu.add(int64(len(changes)))
			return nil
		})

		offset += len(batch)
		if len(batch) < r.batchSize() {
			break
		}
	}

	if err := g.Wait(); err != nil {
		return indexedMu.get(), err
	}
	return indexedMu.get(), nil
}

func classifyLifecycleError(op string, err error) error {
	if se := searcherr.KindOf(err); se != searcherr.Internal {
		return err
	}
	return searcherr.New(searcherr.Internal, op, err)
}

// Severity ranks a consistency-check finding.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Finding is one consistency-check observation.
type Finding struct {
	Category string
	Severity Severity
	Detail   string
}

// ConsistencyReport summarizes a consistency check for one (scope, schema).
type ConsistencyReport struct {
	Findings           []Finding
	RebuildRecommended bool
	Healthy            bool
}

func (r *ConsistencyReport) addError(category, detail string) {
	r.Findings = append(r.Findings, Finding{Category: category, Severity: SeverityError, Detail: detail})
	r.RebuildRecommended = true
}

func (r *ConsistencyReport) addWarning(category, detail string) {
	r.Findings = append(r.Findings, Finding{Category: category, Severity: SeverityWarning, Detail: detail})
}

// CountDriftThreshold is the default severe-drift fraction (10%) from
// |src - idx| / max(src, 1); count_mismatch findings at or above this
// fraction classify as Error, below it as Warning. Configurable per
// ConsistencyCheck's threshold parameter.
const CountDriftThreshold = 0.10

// ConsistencyCheck inspects one (scope, schema) artifact set without
// mutating it. threshold overrides CountDriftThreshold when > 0.
func (r *Reindexer) ConsistencyCheck(ctx context.Context, threshold float64) (ConsistencyReport, error) {
	timer := logging.StartTimer(logging.CategoryIndex, "ConsistencyCheck")
	defer timer.Stop()

	if threshold <= 0 {
		threshold = CountDriftThreshold
	}

	report := ConsistencyReport{}

	health, err := r.Lifecycle.Health(ctx)
	if err != nil {
		return ConsistencyReport{}, searcherr.New(searcherr.IO, "ConsistencyCheck.Health", err)
	}
	if !health.Ready {
		report.addError("index_not_ready", "lifecycle reports not ready")
	}

	cp, ok, err := r.Layout.ReadCheckpoint(r.SchemaHash)
	if err != nil {
		return ConsistencyReport{}, err
	}
	if !ok {
		report.addWarning("missing_checkpoint", fmt.Sprintf("no checkpoint found for schema %s", r.SchemaHash))
	} else {
		if !cp.Success {
			report.addError("incomplete_build", "last recorded build did not complete successfully")
		} else if cp.CompletedTs == 0 {
			report.addWarning("incomplete_build", "build marked successful but completed_ts is missing")
		}
	}

	total, err := r.Source.TotalCount(ctx)
	if err != nil {
		return ConsistencyReport{}, searcherr.New(searcherr.IO, "ConsistencyCheck.TotalCount", err)
	}
	denom := total
	if denom == 0 {
		denom = 1
	}
	diff := total - health.DocCount
	if diff < 0 {
		diff = -diff
	}
	drift := float64(diff) / float64(denom)
	if diff != 0 {
		detail := fmt.Sprintf("source has %s docs, index has %s (drift=%.2f%%)",
			humanize.Comma(total), humanize.Comma(health.DocCount), drift*100)
		if drift >= threshold {
			report.addError("count_mismatch", detail)
		} else {
			report.addWarning("count_mismatch", detail)
		}
	}

	report.Healthy = !report.RebuildRecommended
	return report, nil
}

// RepairResult pairs a consistency report with the reindex outcome, if a
// rebuild was triggered.
type RepairResult struct {
	Report     ConsistencyReport
	Rebuilt    bool
	Checkpoint Checkpoint
}

// RepairIfNeeded runs ConsistencyCheck and, if it recommends a rebuild,
// runs FullReindex and returns both results.
func (r *Reindexer) RepairIfNeeded(ctx context.Context, threshold float64) (RepairResult, error) {
	report, err := r.ConsistencyCheck(ctx, threshold)
	if err != nil {
		return RepairResult{}, err
	}
	if !report.RebuildRecommended {
		return RepairResult{Report: report}, nil
	}

	cp, err := r.FullReindex(ctx)
	if err != nil {
		return RepairResult{Report: report}, err
	}
	return RepairResult{Report: report, Rebuilt: true, Checkpoint: cp}, nil
}

// indexedCounter is a tiny concurrency-safe accumulator for batch fan-out.
type indexedCounter struct {
	mu    chan struct{}
	total int64
}

func (c *indexedCounter) add(n int64) {
	if c.mu == nil {
		c.mu = make(chan struct{}, 1)
	}
	c.mu <- struct{}{}
	c.total += n
	<-c.mu
}

func (c *indexedCounter) get() int64 {
	if c.mu == nil {
		return c.total
	}
	c.mu <- struct{}{}
	v := c.total
	<-c.mu
	return v
}
