package digest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/examdigest/pkg/config"
	"github.com/umputun/examdigest/pkg/domain"
)

// fakeStore serves canned pools keyed by how far back the query reaches
type fakeStore struct {
	primary  []*domain.Article
	fallback []*domain.Article
	latest   []*domain.Article
	now      time.Time
	cutoff   time.Duration // boundary between primary and fallback responses
}

func (s *fakeStore) GetProcessedSince(_ context.Context, since time.Time, _ int) ([]*domain.Article, error) {
	if s.now.Sub(since) <= s.cutoff {
		return s.primary, nil
	}
	return s.fallback, nil
}

func (s *fakeStore) GetLatestProcessed(_ context.Context, _ int) ([]*domain.Article, error) {
	return s.latest, nil
}

func digestConfig() config.DigestConfig {
	return config.DigestConfig{
		PrimaryWindow:  24 * time.Hour,
		FallbackWindow: 72 * time.Hour,
		MinItems:       2,
		MaxItems:       15,
	}
}

func article(id int64, category string, tags ...string) *domain.Article {
	return &domain.Article{
		ID:       id,
		Title:    "article",
		Category: category,
		Tags:     tags,
		State:    domain.StateClassified,
		Summary:  "summary",
	}
}

func newTestAssembler(store *fakeStore, cfg config.DigestConfig) *Assembler {
	a := NewAssembler(store, cfg)
	a.now = func() time.Time { return store.now }
	return a
}

func TestAssembler_PoolPrimaryWindowSufficient(t *testing.T) {
	store := &fakeStore{
		now:     time.Now().UTC(),
		cutoff:  24 * time.Hour,
		primary: []*domain.Article{article(1, "banking", "ibps_po"), article(2, "economy", "rbi_grade_b")},
	}
	assembler := newTestAssembler(store, digestConfig())

	pool, err := assembler.Pool(context.Background())
	require.NoError(t, err)
	assert.Len(t, pool, 2, "no widening when primary window satisfies the minimum")
}

func TestAssembler_PoolWidensToFallback(t *testing.T) {
	store := &fakeStore{
		now:      time.Now().UTC(),
		cutoff:   24 * time.Hour,
		primary:  []*domain.Article{article(1, "banking", "ibps_po")},
		fallback: []*domain.Article{article(1, "banking", "ibps_po"), article(2, "economy", "rbi_grade_b"), article(3, "finance", "sebi_grade_a")},
	}
	assembler := newTestAssembler(store, digestConfig())

	pool, err := assembler.Pool(context.Background())
	require.NoError(t, err)
	assert.Len(t, pool, 3)
}

func TestAssembler_PoolFallsBackToLatest(t *testing.T) {
	store := &fakeStore{
		now:    time.Now().UTC(),
		cutoff: 24 * time.Hour,
		latest: []*domain.Article{article(9, "other", "current_affairs")},
	}
	assembler := newTestAssembler(store, digestConfig())

	pool, err := assembler.Pool(context.Background())
	require.NoError(t, err)
	assert.Len(t, pool, 1, "a single old article still beats an empty digest")
}

func TestAssembler_PoolExcludesAIErrors(t *testing.T) {
	broken := article(2, "economy", "rbi_grade_b")
	broken.Summary = "something went wrong " + domain.AIErrorMarker
	store := &fakeStore{
		now:     time.Now().UTC(),
		cutoff:  24 * time.Hour,
		primary: []*domain.Article{article(1, "banking", "ibps_po"), broken, article(3, "finance", "sebi_grade_a")},
	}
	assembler := newTestAssembler(store, digestConfig())

	pool, err := assembler.Pool(context.Background())
	require.NoError(t, err)
	require.Len(t, pool, 2)
	for _, a := range pool {
		assert.False(t, a.HasAIError())
	}
}

func TestAssembler_BuildFiltersByExams(t *testing.T) {
	pool := []*domain.Article{
		article(1, "rbi_circulars", "rbi_grade_b", "ibps_po"),
		article(2, "finance", "sebi_grade_a"),
		article(3, "other", "ssc_cgl"),
	}
	assembler := newTestAssembler(&fakeStore{}, digestConfig())

	sub := &domain.Subscriber{Email: "a@example.com", Exams: []string{"ibps_po", "ssc_cgl"}}
	d := assembler.Build(pool, sub)

	assert.Equal(t, 2, d.ItemCount)
	require.Len(t, d.Sections, 2)
	assert.Equal(t, "RBI Updates", d.Sections[0].Label)
	assert.Equal(t, "Other", d.Sections[1].Label)
}

func TestAssembler_BuildGroupsByCategoryFirstSeen(t *testing.T) {
	pool := []*domain.Article{
		article(1, "banking", "ibps_po"),
		article(2, "economy", "ibps_po"),
		article(3, "banking", "ibps_po"),
	}
	assembler := newTestAssembler(&fakeStore{}, digestConfig())

	d := assembler.Build(pool, &domain.Subscriber{Exams: []string{"ibps_po"}})

	require.Len(t, d.Sections, 2)
	assert.Equal(t, "Banking", d.Sections[0].Label)
	assert.Len(t, d.Sections[0].Items, 2)
	assert.Equal(t, "Economy", d.Sections[1].Label)
	assert.Len(t, d.Sections[1].Items, 1)
}

func TestAssembler_BuildCapsItems(t *testing.T) {
	cfg := digestConfig()
	cfg.MaxItems = 3
	var pool []*domain.Article
	for i := int64(1); i <= 10; i++ {
		pool = append(pool, article(i, "banking", "ibps_po"))
	}
	assembler := newTestAssembler(&fakeStore{}, cfg)

	d := assembler.Build(pool, &domain.Subscriber{Exams: []string{"ibps_po"}})
	assert.Equal(t, 3, d.ItemCount)
}

func TestAssembler_BuildNoMatchesYieldsEmptyDigest(t *testing.T) {
	pool := []*domain.Article{article(1, "finance", "sebi_grade_a")}
	assembler := newTestAssembler(&fakeStore{}, digestConfig())

	d := assembler.Build(pool, &domain.Subscriber{Exams: []string{"lic_aao"}})
	assert.Zero(t, d.ItemCount)
	assert.Empty(t, d.Sections)
}

func TestAssembler_BuildUncategorizedFallsToOther(t *testing.T) {
	pool := []*domain.Article{article(1, "", "ibps_po")}
	assembler := newTestAssembler(&fakeStore{}, digestConfig())

	d := assembler.Build(pool, &domain.Subscriber{Exams: []string{"ibps_po"}})
	require.Len(t, d.Sections, 1)
	assert.Equal(t, "Other", d.Sections[0].Label)
}
