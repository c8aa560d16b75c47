package locator

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/steveyegge/docaudit/internal/types"
)

// DefaultBatchConcurrency bounds parallel lookups in LocateBatch.
const DefaultBatchConcurrency = 8

// BatchRequest is one lookup in a batch. When Chunk is nil the search
// runs against the whole document.
type BatchRequest struct {
	// ID ties the result back to the caller's finding
	ID string

	SearchText string
	Chunk      *types.Chunk
	Options    Options
}

// BatchResult is the outcome of one batch lookup. Err is nil,
// ErrNotFound, or ErrOffsetMismatch.
type BatchResult struct {
	ID       string
	Location types.TextLocation
	Err      error
}

// LocateBatch resolves many spans concurrently. Each lookup is
// independent and the locator is stateless, so the only coordination is
// the concurrency bound. Results are returned in request order.
func LocateBatch(ctx context.Context, documentText string, reqs []BatchRequest, concurrency int) []BatchResult {
	if concurrency <= 0 {
		concurrency = DefaultBatchConcurrency
	}

	results := make([]BatchResult, len(reqs))
	sem := semaphore.NewWeighted(int64(concurrency))
	var wg sync.WaitGroup

	for i, req := range reqs {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Context canceled: report the remaining lookups as failed
			for j := i; j < len(reqs); j++ {
				results[j] = BatchResult{ID: reqs[j].ID, Err: err}
			}
			break
		}

		wg.Add(1)
		go func(i int, req BatchRequest) {
			defer wg.Done()
			defer sem.Release(1)

			result := BatchResult{ID: req.ID}
			if req.Chunk != nil {
				result.Location, result.Err = LocateInChunk(req.SearchText, req.Chunk, documentText, req.Options)
			} else {
				loc, ok := Locate(req.SearchText, documentText, req.Options)
				if ok {
					result.Location = loc
				} else {
					result.Err = ErrNotFound
				}
			}
			results[i] = result
		}(i, req)
	}

	wg.Wait()
	return results
}
