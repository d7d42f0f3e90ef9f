package ingest

import (
	"context"
	"errors"
	"sync"

	log "github.com/go-pkgz/lgr"

	"github.com/umputun/examdigest/pkg/domain"
	"github.com/umputun/examdigest/pkg/repository"
	"github.com/umputun/examdigest/pkg/scraper"
)

// ArticleStore is the subset of article persistence the coordinator needs
type ArticleStore interface {
	URLExists(ctx context.Context, url string) (bool, error)
	Create(ctx context.Context, article *domain.Article) error
}

// SourceStatus reports one adapter's outcome within a run
type SourceStatus struct {
	Source string `json:"source"`
	Status string `json:"status"` // success or error
	Found  int    `json:"found"`
	Saved  int    `json:"saved"`
	Error  string `json:"error,omitempty"`
}

// Result summarizes a full ingestion run
type Result struct {
	SavedCount int            `json:"saved_count"`
	Sources    []SourceStatus `json:"sources"`
}

// Coordinator runs all site adapters concurrently and persists new items.
// Per-source failures are recorded, never propagated: one broken upstream
// must not cost the run its other sources.
type Coordinator struct {
	adapters []scraper.Adapter
	articles ArticleStore
}

// NewCoordinator creates an ingestion coordinator over the given adapters
func NewCoordinator(adapters []scraper.Adapter, articles ArticleStore) *Coordinator {
	return &Coordinator{adapters: adapters, articles: articles}
}

// Run fetches every source concurrently, waits for all of them to settle and
// stores the new items. Items whose URL is already known are skipped, which
// makes repeated runs idempotent.
func (c *Coordinator) Run(ctx context.Context) Result {
	log.Printf("[INFO] ingestion started, %d sources", len(c.adapters))

	statuses := make([]SourceStatus, len(c.adapters))

	var wg sync.WaitGroup
	for i, adapter := range c.adapters {
		wg.Add(1)
		go func(i int, adapter scraper.Adapter) {
			defer wg.Done()
			statuses[i] = c.runSource(ctx, adapter)
		}(i, adapter)
	}
	wg.Wait()

	result := Result{Sources: statuses}
	for _, s := range statuses {
		result.SavedCount += s.Saved
	}

	log.Printf("[INFO] ingestion completed, saved %d new items", result.SavedCount)
	return result
}

// runSource fetches and stores one source, converting any failure into a
// status entry
func (c *Coordinator) runSource(ctx context.Context, adapter scraper.Adapter) SourceStatus {
	status := SourceStatus{Source: adapter.Name(), Status: "success"}

	candidates, err := adapter.Fetch(ctx)
	if err != nil {
		log.Printf("[WARN] fetch failed for %s: %v", adapter.Name(), err)
		status.Status = "error"
		status.Error = err.Error()
		return status
	}
	status.Found = len(candidates)

	for _, cand := range candidates {
		saved, err := c.save(ctx, cand)
		if err != nil {
			log.Printf("[WARN] save failed for %s (%s): %v", cand.URL, adapter.Name(), err)
			continue
		}
		if saved {
			status.Saved++
		}
	}

	log.Printf("[DEBUG] source %s: found %d, saved %d", adapter.Name(), status.Found, status.Saved)
	return status
}

// save stores a candidate unless its URL is already known. The pre-check is
// an optimization; the unique constraint remains the authority under
// concurrent runs.
func (c *Coordinator) save(ctx context.Context, cand scraper.Candidate) (bool, error) {
	exists, err := c.articles.URLExists(ctx, cand.URL)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	article := &domain.Article{
		Title:           cand.Title,
		URL:             cand.URL,
		Source:          cand.Source,
		Category:        cand.Category,
		OriginalSummary: cand.OriginalSummary,
		Published:       cand.Published,
	}
	if err := c.articles.Create(ctx, article); err != nil {
		if errors.Is(err, repository.ErrDuplicateURL) {
			return false, nil // raced with a concurrent run
		}
		return false, err
	}
	return true, nil
}
