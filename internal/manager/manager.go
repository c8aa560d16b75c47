// Package manager orchestrates a document analysis run: chunk once,
// share the chunk set read-only across every plugin, drive each plugin
// through its pipeline concurrently, then merge, dedupe, and cap the
// pooled findings into the final comment list.
//
// One plugin's failure is recorded in its status and never aborts
// siblings or the run. A run always completes with a result, possibly
// empty, possibly partial.
package manager

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/steveyegge/docaudit/internal/chunker"
	"github.com/steveyegge/docaudit/internal/dedup"
	"github.com/steveyegge/docaudit/internal/llm"
	"github.com/steveyegge/docaudit/internal/plugin"
	"github.com/steveyegge/docaudit/internal/session"
	"github.com/steveyegge/docaudit/internal/types"
)

// DefaultPluginConcurrency bounds how many plugins run at once.
const DefaultPluginConcurrency = 4

// Config tunes a run.
type Config struct {
	// Chunker configures document splitting
	Chunker chunker.Config

	// Pipeline configures every plugin's pipeline
	Pipeline plugin.Config

	// TargetHighlights caps the merged comment count (0 = dedup default)
	TargetHighlights int

	// MaxModelCalls caps total model calls for the run (0 = unlimited)
	MaxModelCalls int64

	// MaxRunTime caps the run's wall-clock time (0 = unlimited). When it
	// expires, in-flight plugins fail at their next stage and the run
	// still completes with partial results.
	MaxRunTime time.Duration

	// PluginConcurrency bounds concurrent plugins (0 = default 4)
	PluginConcurrency int
}

// Manager runs analysis over a registry of detectors.
type Manager struct {
	registry *Registry
	invoker  llm.Invoker
	cfg      Config
}

// New creates a manager. invoker is the base model backend; each run
// wraps it with budget and accounting meters.
func New(registry *Registry, invoker llm.Invoker, cfg Config) *Manager {
	return &Manager{registry: registry, invoker: invoker, cfg: cfg}
}

// pluginRun couples one pipeline with its accounting for the join step.
type pluginRun struct {
	name     string
	pipeline *plugin.Pipeline
	meter    *llm.Meter
	err      error
}

// Run analyzes one document with the named plugins. Unknown plugin names
// and malformed chunker configuration fail the run up front; everything
// after chunking is recovered at plugin scope.
func (m *Manager) Run(ctx context.Context, doc types.Document, pluginNames []string, sess session.Context) (*types.AnalysisResult, error) {
	started := time.Now()

	factories := make([]DetectorFactory, len(pluginNames))
	for i, name := range pluginNames {
		factory, err := m.registry.Lookup(name)
		if err != nil {
			return nil, err
		}
		factories[i] = factory
	}

	ck, err := chunker.New(m.cfg.Chunker)
	if err != nil {
		return nil, fmt.Errorf("invalid chunker configuration: %w", err)
	}
	chunks, err := ck.Chunk(doc)
	if err != nil {
		return nil, fmt.Errorf("chunking document %s: %w", doc.ID, err)
	}
	fmt.Printf("analyzing document %s: %d chunks, %d plugins\n", doc.ID, len(chunks), len(pluginNames))

	// The wall-clock budget is measured from run start, chunking included.
	if m.cfg.MaxRunTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, started.Add(m.cfg.MaxRunTime))
		defer cancel()
	}

	// Run-level meter enforces the budget; per-plugin meters sit on top
	// for attribution.
	runMeter := llm.NewMeter(m.invoker, m.cfg.MaxModelCalls)

	runs := make([]*pluginRun, len(pluginNames))
	var g errgroup.Group
	concurrency := m.cfg.PluginConcurrency
	if concurrency <= 0 {
		concurrency = DefaultPluginConcurrency
	}
	g.SetLimit(concurrency)

	for i, name := range pluginNames {
		meter := llm.NewMeter(runMeter, 0)
		pr := &pluginRun{
			name:     name,
			pipeline: plugin.NewPipeline(factories[i](meter), chunks, m.cfg.Pipeline),
			meter:    meter,
		}
		runs[i] = pr

		g.Go(func() error {
			pr.err = m.runOne(ctx, pr, doc.Text, sess)
			// Plugin failures are status, not errors: siblings keep going.
			return nil
		})
	}
	g.Wait()

	result := m.aggregate(doc, runs, sess, started)
	result.Stats.Chunks = len(chunks)
	return result, nil
}

// runOne drives a single pipeline end to end, recovering panics so a
// buggy detector cannot take down the run.
func (m *Manager) runOne(ctx context.Context, pr *pluginRun, documentText string, sess session.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("plugin panicked: %v", r)
		}
	}()

	if err := pr.pipeline.Run(ctx, documentText, sess.Child(pr.name)); err != nil {
		return err
	}

	// A pipeline that lost every chunk has no working capability behind
	// it and should surface as failed, not as a silent empty result.
	stats := pr.pipeline.Stats()
	if stats.ChunksProcessed > 0 && stats.ChunksFailed == stats.ChunksProcessed {
		return fmt.Errorf("all %d chunks failed extraction", stats.ChunksProcessed)
	}
	return nil
}

// aggregate joins plugin outcomes into the final result: pool located
// findings across plugins, dedupe across plugin boundaries, cap toward
// the target, and project into comments.
func (m *Manager) aggregate(doc types.Document, runs []*pluginRun, sess session.Context, started time.Time) *types.AnalysisResult {
	result := &types.AnalysisResult{
		DocumentID: doc.ID,
		RunID:      sess.RunID,
		StartedAt:  started,
	}

	var pooled []types.LocatedFinding
	pluginByFinding := map[string]string{}

	for _, pr := range runs {
		stats := pr.pipeline.Stats()
		stats.ModelCalls = pr.meter.Calls()
		stats.InputTokens, stats.OutputTokens = pr.meter.Tokens()

		status := types.PluginStatus{
			Name:      pr.name,
			Succeeded: pr.err == nil,
			Summary:   pr.pipeline.Summary(),
			Stats:     stats,
		}
		if pr.err != nil {
			status.Error = pr.err.Error()
			fmt.Fprintf(os.Stderr, "✗ plugin %s failed: %v\n", pr.name, pr.err)
		} else {
			for _, f := range pr.pipeline.Located() {
				pooled = append(pooled, f)
				pluginByFinding[f.ID] = pr.name
			}
		}

		result.Plugins = append(result.Plugins, status)
		result.Stats.PluginsRun++
		if pr.err != nil {
			result.Stats.PluginsFailed++
		}
		result.Stats.ModelCalls += stats.ModelCalls
		result.Stats.InputTokens += stats.InputTokens
		result.Stats.OutputTokens += stats.OutputTokens
	}
	result.Stats.TotalFindings = len(pooled)

	// Cross-plugin pass: different detectors flagging the same span
	// collapse to the highest-quality finding.
	kept, _ := dedup.DedupeAndPrioritize(pooled, m.cfg.TargetHighlights)

	for _, f := range kept {
		loc := f.Location
		if loc.StartOffset < 0 || loc.EndOffset > len(doc.Text) ||
			doc.Text[loc.StartOffset:loc.EndOffset] != loc.QuotedText {
			fmt.Fprintf(os.Stderr, "✗ finding %s fails round-trip at [%d,%d), dropping\n",
				f.ID, loc.StartOffset, loc.EndOffset)
			continue
		}
		result.Comments = append(result.Comments, types.Comment{
			Description: f.Description,
			Importance:  f.Importance,
			Plugin:      pluginByFinding[f.ID],
			Kind:        f.Kind,
			Highlight:   loc,
		})
	}

	result.Stats.TotalComments = len(result.Comments)
	result.Stats.Duration = time.Since(started)
	result.FinishedAt = time.Now()

	fmt.Printf("✓ run %s complete: %d comments from %d findings, %d/%d plugins succeeded\n",
		sess.RunID, len(result.Comments), result.Stats.TotalFindings,
		result.Stats.PluginsRun-result.Stats.PluginsFailed, result.Stats.PluginsRun)
	return result
}
