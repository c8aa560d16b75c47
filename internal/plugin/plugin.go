// Package plugin implements the staged detector pipeline. Each detector
// advances through a strict state machine over one document's chunks:
//
//	INIT → EXTRACTED → INVESTIGATED → LOCATED → ANALYZED
//
// Stages never run out of order and never roll back. Failures are
// recovered at the smallest possible scope: one chunk's extraction
// failure skips that chunk, one finding's investigation failure
// downgrades that finding to unverified, and a finding that cannot be
// located is kept for diagnostics but excluded from output.
package plugin

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/steveyegge/docaudit/internal/dedup"
	"github.com/steveyegge/docaudit/internal/locator"
	"github.com/steveyegge/docaudit/internal/session"
	"github.com/steveyegge/docaudit/internal/types"
)

// State is the pipeline position of one plugin instance.
type State int

const (
	StateInit State = iota
	StateExtracted
	StateInvestigated
	StateLocated
	StateAnalyzed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateExtracted:
		return "EXTRACTED"
	case StateInvestigated:
		return "INVESTIGATED"
	case StateLocated:
		return "LOCATED"
	case StateAnalyzed:
		return "ANALYZED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Detector is one issue class: math errors, spelling, unsupported claims,
// forecasts. The pipeline depends only on this interface, never on the
// concrete detectors.
type Detector interface {
	// Name identifies the detector in output and logs, e.g. "math"
	Name() string

	// Kind is the finding kind this detector produces
	Kind() types.FindingKind

	// Extract scans one chunk and returns zero or more suspected issues.
	// Called once per chunk, possibly concurrently across chunks.
	Extract(ctx context.Context, chunk *types.Chunk, sess session.Context) ([]types.PotentialFinding, error)

	// Investigate verifies one finding. Detectors whose kind needs no
	// verification return a confirmed pass-through verdict.
	Investigate(ctx context.Context, f types.PotentialFinding, sess session.Context) (types.InvestigatedFinding, error)

	// Summarize produces the plugin-level pattern summary from the
	// findings that survived location.
	Summarize(findings []types.LocatedFinding) string
}

// Config tunes one pipeline instance.
type Config struct {
	// ExtractConcurrency bounds parallel chunk extraction (0 = default 4)
	ExtractConcurrency int

	// LocateConcurrency bounds parallel location lookups (0 = locator default)
	LocateConcurrency int

	// FindingTimeout caps one investigation call (0 = default 60s)
	FindingTimeout time.Duration

	// MaxIssues caps findings after dedup (0 = dedup default)
	MaxIssues int
}

const defaultExtractConcurrency = 4

const defaultFindingTimeout = 60 * time.Second

// Dropped records a finding excluded during location, kept for
// diagnostics only.
type Dropped struct {
	Finding types.InvestigatedFinding
	Reason  error
}

// Pipeline drives one detector over one document. Not safe for use by
// multiple goroutines; the manager runs each pipeline on its own
// goroutine and the pipeline manages its own internal fan-out.
type Pipeline struct {
	detector Detector
	chunks   []types.Chunk
	cfg      Config

	state        State
	potential    []types.PotentialFinding
	investigated []types.InvestigatedFinding
	located      []types.LocatedFinding
	dropped      []Dropped
	summary      string
	stats        types.PluginStats

	mu sync.Mutex // guards potential and stats during extraction fan-out
}

// NewPipeline creates a pipeline in INIT over a shared read-only chunk set.
func NewPipeline(d Detector, chunks []types.Chunk, cfg Config) *Pipeline {
	return &Pipeline{detector: d, chunks: chunks, cfg: cfg}
}

// State reports the current pipeline state.
func (p *Pipeline) State() State { return p.state }

// Stats reports what the pipeline has done so far.
func (p *Pipeline) Stats() types.PluginStats { return p.stats }

// Summary returns the pattern summary (empty before ANALYZED).
func (p *Pipeline) Summary() string { return p.summary }

// Located returns the findings that survived location and dedup.
func (p *Pipeline) Located() []types.LocatedFinding { return p.located }

// DroppedFindings returns the findings excluded during location.
func (p *Pipeline) DroppedFindings() []Dropped { return p.dropped }

func (p *Pipeline) requireState(want State, op string) error {
	if p.state != want {
		return fmt.Errorf("%s: %s called in state %s, requires %s",
			p.detector.Name(), op, p.state, want)
	}
	return nil
}

// ExtractPotentialFindings runs the detector's extraction over every
// chunk with bounded parallelism. One chunk's failure is logged and
// counted, never fatal for the stage.
func (p *Pipeline) ExtractPotentialFindings(ctx context.Context, sess session.Context) error {
	if err := p.requireState(StateInit, "extractPotentialFindings"); err != nil {
		return err
	}
	start := time.Now()

	concurrency := p.cfg.ExtractConcurrency
	if concurrency <= 0 {
		concurrency = defaultExtractConcurrency
	}
	sem := semaphore.NewWeighted(int64(concurrency))
	var wg sync.WaitGroup

	extractSess := sess.Child("extract")
	for i := range p.chunks {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Context canceled: remaining chunks count as processed and failed
			p.mu.Lock()
			p.stats.ChunksProcessed += len(p.chunks) - i
			p.stats.ChunksFailed += len(p.chunks) - i
			p.mu.Unlock()
			break
		}

		wg.Add(1)
		go func(chunk *types.Chunk) {
			defer wg.Done()
			defer sem.Release(1)

			findings, err := p.detector.Extract(ctx, chunk, extractSess)

			p.mu.Lock()
			defer p.mu.Unlock()
			p.stats.ChunksProcessed++
			if err != nil {
				p.stats.ChunksFailed++
				fmt.Fprintf(os.Stderr, "⚠ %s: extraction failed for chunk %s: %v\n",
					p.detector.Name(), chunk.ID, err)
				return
			}
			p.potential = append(p.potential, findings...)
		}(&p.chunks[i])
	}
	wg.Wait()

	p.stats.PotentialFound = len(p.potential)
	p.stats.Duration += time.Since(start)
	p.state = StateExtracted
	return nil
}

// InvestigateFindings verifies every potential finding sequentially. A
// failed or timed-out investigation downgrades that one finding to
// unverified; rejected findings are dropped before location.
func (p *Pipeline) InvestigateFindings(ctx context.Context, sess session.Context) error {
	if err := p.requireState(StateExtracted, "investigateFindings"); err != nil {
		return err
	}
	start := time.Now()

	timeout := p.cfg.FindingTimeout
	if timeout <= 0 {
		timeout = defaultFindingTimeout
	}

	investigateSess := sess.Child("investigate")
	for _, f := range p.potential {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		inv, err := p.detector.Investigate(callCtx, f, investigateSess)
		cancel()

		p.stats.Investigated++
		if err != nil {
			fmt.Fprintf(os.Stderr, "⚠ %s: investigation failed for finding %s, keeping as unverified: %v\n",
				p.detector.Name(), f.ID, err)
			inv = types.InvestigatedFinding{
				PotentialFinding: f,
				Verdict:          types.VerdictUnverified,
				Confidence:       0,
			}
		}

		switch inv.Verdict {
		case types.VerdictRejected:
			p.stats.Rejected++
		case types.VerdictUnverified:
			p.stats.Unverified++
			p.investigated = append(p.investigated, inv)
		default:
			p.investigated = append(p.investigated, inv)
		}
	}

	p.stats.Duration += time.Since(start)
	p.state = StateInvestigated
	return nil
}

// LocateFindings resolves every investigated finding's highlight hint
// into document-absolute coordinates, then dedupes and caps the
// survivors. Findings that cannot be located stay available via
// DroppedFindings but are excluded from output.
func (p *Pipeline) LocateFindings(ctx context.Context, documentText string) error {
	if err := p.requireState(StateInvestigated, "locateFindings"); err != nil {
		return err
	}
	start := time.Now()

	chunksByID := make(map[string]*types.Chunk, len(p.chunks))
	for i := range p.chunks {
		chunksByID[p.chunks[i].ID] = &p.chunks[i]
	}

	reqs := make([]locator.BatchRequest, len(p.investigated))
	for i, f := range p.investigated {
		reqs[i] = locator.BatchRequest{
			ID:         f.ID,
			SearchText: f.Hint.SearchText,
			Chunk:      chunksByID[f.Hint.ChunkID],
			Options:    locator.Options{LineHint: f.Hint.LineNumber},
		}
	}

	results := locator.LocateBatch(ctx, documentText, reqs, p.cfg.LocateConcurrency)
	for i, res := range results {
		if res.Err != nil {
			p.dropped = append(p.dropped, Dropped{Finding: p.investigated[i], Reason: res.Err})
			if res.Err == locator.ErrOffsetMismatch {
				p.stats.DroppedOffsetDrift++
			} else {
				p.stats.DroppedNotFound++
			}
			continue
		}
		p.located = append(p.located, types.LocatedFinding{
			InvestigatedFinding: p.investigated[i],
			Location:            res.Location,
		})
	}

	kept, dstats := dedup.DedupeAndPrioritize(p.located, p.cfg.MaxIssues)
	p.located = kept
	p.stats.DuplicatesRemoved = dstats.DuplicateCount
	p.stats.Located = len(p.located)
	p.stats.Duration += time.Since(start)
	p.state = StateLocated
	return nil
}

// AnalyzeFindingPatterns produces the plugin-level summary.
func (p *Pipeline) AnalyzeFindingPatterns() error {
	if err := p.requireState(StateLocated, "analyzeFindingPatterns"); err != nil {
		return err
	}
	p.summary = p.detector.Summarize(p.located)
	p.state = StateAnalyzed
	return nil
}

// Comments projects located findings into output Comments. Pure: callable
// any number of times once the pipeline has reached LOCATED. Every
// highlight is re-checked against the live document before emission;
// a violation indicates internal corruption and drops the comment loudly.
func (p *Pipeline) Comments(documentText string) ([]types.Comment, error) {
	if p.state < StateLocated {
		return nil, fmt.Errorf("%s: getComments called in state %s, requires at least %s",
			p.detector.Name(), p.state, StateLocated)
	}

	comments := make([]types.Comment, 0, len(p.located))
	for _, f := range p.located {
		loc := f.Location
		if loc.StartOffset < 0 || loc.EndOffset > len(documentText) ||
			documentText[loc.StartOffset:loc.EndOffset] != loc.QuotedText {
			fmt.Fprintf(os.Stderr, "✗ %s: located finding %s fails round-trip at [%d,%d), dropping\n",
				p.detector.Name(), f.ID, loc.StartOffset, loc.EndOffset)
			continue
		}
		comments = append(comments, types.Comment{
			Description: f.Description,
			Importance:  f.Importance,
			Plugin:      p.detector.Name(),
			Kind:        f.Kind,
			Highlight:   loc,
		})
	}
	return comments, nil
}

// Run drives the pipeline through all four stages in order.
func (p *Pipeline) Run(ctx context.Context, documentText string, sess session.Context) error {
	if err := p.ExtractPotentialFindings(ctx, sess); err != nil {
		return err
	}
	if err := p.InvestigateFindings(ctx, sess); err != nil {
		return err
	}
	if err := p.LocateFindings(ctx, documentText); err != nil {
		return err
	}
	return p.AnalyzeFindingPatterns()
}
