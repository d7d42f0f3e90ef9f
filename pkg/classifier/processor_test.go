package classifier

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/examdigest/pkg/domain"
)

// fakeStore is an in-memory ArticleStore for processor tests
type fakeStore struct {
	articles map[int64]*domain.Article
}

func newFakeStore(articles ...*domain.Article) *fakeStore {
	s := &fakeStore{articles: map[int64]*domain.Article{}}
	for _, a := range articles {
		s.articles[a.ID] = a
	}
	return s
}

func (s *fakeStore) GetByStates(_ context.Context, states []domain.ClassificationState, limit int) ([]*domain.Article, error) {
	wanted := map[domain.ClassificationState]bool{}
	for _, st := range states {
		wanted[st] = true
	}
	var out []*domain.Article
	for _, a := range s.articles {
		if wanted[a.State] && len(out) < limit {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *fakeStore) UpdateClassification(_ context.Context, id int64, c *domain.Classification) error {
	a := s.articles[id]
	if c.Title != "" {
		a.Title = c.Title
	}
	a.Summary = c.Summary
	a.KeyPoints = c.KeyPoints
	a.Tags = c.Tags
	a.State = c.State
	if c.State == domain.StateFailedRetryable {
		a.ProcessedAt = nil
	} else {
		now := time.Now().UTC()
		a.ProcessedAt = &now
	}
	return nil
}

func (s *fakeStore) ResetClassification(_ context.Context, id int64, summary string, keyPoints, tags []string) error {
	a := s.articles[id]
	a.Summary = summary
	a.KeyPoints = keyPoints
	a.Tags = tags
	a.State = domain.StateUnclassified
	a.ProcessedAt = nil
	return nil
}

// fakeEnhancer returns canned responses or errors
type fakeEnhancer struct {
	enhancement *Enhancement
	err         error
	calls       int
}

func (f *fakeEnhancer) Classify(_ context.Context, _ *domain.Article) (*Enhancement, string, error) {
	f.calls++
	if f.err != nil {
		return nil, "", f.err
	}
	return f.enhancement, "raw-output", nil
}

func pendingArticle(id int64) *domain.Article {
	return &domain.Article{
		ID:        id,
		Title:     "Repo rate held",
		Source:    "RBI Notifications",
		State:     domain.StateUnclassified,
		Published: time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
	}
}

func TestProcessor_RunRulesOnly(t *testing.T) {
	store := newFakeStore(pendingArticle(1))
	proc := NewProcessor(store, nil, 10)

	result, err := proc.Run(context.Background(), Selection{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.ProcessedCount)
	assert.False(t, result.AIEnabled)

	a := store.articles[1]
	assert.Equal(t, domain.StateClassified, a.State)
	assert.Equal(t, []string{"rbi_grade_b", "ibps_po"}, a.Tags)
	assert.NotEmpty(t, a.Summary)
	assert.False(t, a.HasAIError())
	assert.NotNil(t, a.ProcessedAt)
}

func TestProcessor_RunWithAI(t *testing.T) {
	store := newFakeStore(pendingArticle(1))
	ai := &fakeEnhancer{enhancement: &Enhancement{
		TranslatedTitle: "Repo rate unchanged at 6.5%",
		Summary:         "The MPC kept the repo rate unchanged.",
		KeyPoints:       []string{"Rate at 6.5%", "Stance withdrawn"},
		ExamTags:        []string{"upsc_cse", "not_a_real_exam"},
	}}
	proc := NewProcessor(store, ai, 10)

	result, err := proc.Run(context.Background(), Selection{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.ProcessedCount)
	assert.True(t, result.AIEnabled)
	assert.Equal(t, "raw-output", result.LastRawAI)

	a := store.articles[1]
	assert.Equal(t, domain.StateClassified, a.State)
	assert.Equal(t, "Repo rate unchanged at 6.5%", a.Title)
	assert.Equal(t, "The MPC kept the repo rate unchanged.", a.Summary)
	assert.Equal(t, []string{"Rate at 6.5%", "Stance withdrawn"}, a.KeyPoints)
	assert.Equal(t, []string{"rbi_grade_b", "ibps_po", "upsc_cse"}, a.Tags,
		"union of rule and AI tags, unknown tag dropped")
}

func TestProcessor_RunAIEmptyFieldsKeepBaseline(t *testing.T) {
	store := newFakeStore(pendingArticle(1))
	ai := &fakeEnhancer{enhancement: &Enhancement{}}
	proc := NewProcessor(store, ai, 10)

	_, err := proc.Run(context.Background(), Selection{})
	require.NoError(t, err)

	a := store.articles[1]
	assert.Equal(t, domain.StateClassified, a.State)
	assert.Equal(t, "Repo rate held", a.Title, "empty translated title keeps original")
	assert.Contains(t, a.Summary, "Repo rate held")
	assert.Len(t, a.KeyPoints, 3)
}

func TestProcessor_RunRateLimitLeavesCleanRetryable(t *testing.T) {
	store := newFakeStore(pendingArticle(1))
	ai := &fakeEnhancer{err: errors.New("429: rate limit reached")}
	proc := NewProcessor(store, ai, 10)

	result, err := proc.Run(context.Background(), Selection{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.ProcessedCount)

	a := store.articles[1]
	assert.Equal(t, domain.StateFailedRetryable, a.State)
	assert.False(t, a.HasAIError(), "rate limit leaves no error marker")
	assert.Nil(t, a.ProcessedAt, "still pending for the next default run")
	assert.Equal(t, []string{"rbi_grade_b", "ibps_po"}, a.Tags)
}

func TestProcessor_RunRetryableSelectedByDefaultRun(t *testing.T) {
	article := pendingArticle(1)
	article.State = domain.StateFailedRetryable
	store := newFakeStore(article)
	ai := &fakeEnhancer{enhancement: &Enhancement{Summary: "recovered"}}
	proc := NewProcessor(store, ai, 10)

	result, err := proc.Run(context.Background(), Selection{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.ProcessedCount)
	assert.Equal(t, domain.StateClassified, store.articles[1].State)
	assert.Equal(t, "recovered", store.articles[1].Summary)
}

func TestProcessor_RunTerminalFailureMarksSummary(t *testing.T) {
	store := newFakeStore(pendingArticle(1))
	ai := &fakeEnhancer{err: errors.New("model exploded")}
	proc := NewProcessor(store, ai, 10)

	_, err := proc.Run(context.Background(), Selection{})
	require.NoError(t, err)

	a := store.articles[1]
	assert.Equal(t, domain.StateFailedTerminal, a.State)
	assert.True(t, a.HasAIError())
	assert.Contains(t, a.Summary, "model exploded", "error detail stored for inspection")
	assert.NotEmpty(t, a.Tags, "baseline tags survive the failure")
	assert.NotNil(t, a.ProcessedAt, "terminal failure counts as processed")
}

func TestProcessor_RunTerminalFailureTruncatesDetail(t *testing.T) {
	store := newFakeStore(pendingArticle(1))
	ai := &fakeEnhancer{err: errors.New(strings.Repeat("x", 500))}
	proc := NewProcessor(store, ai, 10)

	_, err := proc.Run(context.Background(), Selection{})
	require.NoError(t, err)

	a := store.articles[1]
	assert.True(t, a.HasAIError())
	assert.Contains(t, a.Summary, strings.Repeat("x", 200))
	assert.NotContains(t, a.Summary, strings.Repeat("x", 201), "detail capped at 200 chars")
}

func TestProcessor_RunDefaultSkipsTerminal(t *testing.T) {
	article := pendingArticle(1)
	article.State = domain.StateFailedTerminal
	store := newFakeStore(article)
	ai := &fakeEnhancer{enhancement: &Enhancement{Summary: "fixed"}}
	proc := NewProcessor(store, ai, 10)

	result, err := proc.Run(context.Background(), Selection{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.ProcessedCount)
	assert.Zero(t, ai.calls)
}

func TestProcessor_RunReprocessErrors(t *testing.T) {
	failed := pendingArticle(1)
	failed.State = domain.StateFailedTerminal
	failed.Summary = "old summary " + domain.AIErrorMarker
	pending := pendingArticle(2)
	store := newFakeStore(failed, pending)
	ai := &fakeEnhancer{enhancement: &Enhancement{Summary: "fixed"}}
	proc := NewProcessor(store, ai, 10)

	result, err := proc.Run(context.Background(), Selection{ReprocessErrors: true})
	require.NoError(t, err)

	assert.Equal(t, 1, result.ProcessedCount, "only the failed article targeted")
	assert.Equal(t, domain.StateClassified, store.articles[1].State)
	assert.False(t, store.articles[1].HasAIError())
	assert.Equal(t, domain.StateUnclassified, store.articles[2].State, "pending article untouched")
}

func TestProcessor_RunForceRevisitsClassified(t *testing.T) {
	done := pendingArticle(1)
	done.State = domain.StateClassified
	store := newFakeStore(done)
	ai := &fakeEnhancer{enhancement: &Enhancement{Summary: "second pass"}}
	proc := NewProcessor(store, ai, 10)

	result, err := proc.Run(context.Background(), Selection{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 1, result.ProcessedCount)
	assert.Equal(t, "second pass", store.articles[1].Summary)
}

func TestProcessor_RunClean(t *testing.T) {
	failed := pendingArticle(1)
	failed.State = domain.StateFailedTerminal
	failed.Summary = "broken " + domain.AIErrorMarker
	store := newFakeStore(failed)
	proc := NewProcessor(store, &fakeEnhancer{}, 10)

	result, err := proc.Run(context.Background(), Selection{Clean: true})
	require.NoError(t, err)

	assert.Equal(t, 1, result.ProcessedCount)
	a := store.articles[1]
	assert.Equal(t, domain.StateUnclassified, a.State)
	assert.False(t, a.HasAIError(), "marker stripped by clean baseline")
	assert.Nil(t, a.ProcessedAt)
}

func TestProcessor_RunRespectsBatchSize(t *testing.T) {
	store := newFakeStore(pendingArticle(1), pendingArticle(2), pendingArticle(3))
	proc := NewProcessor(store, nil, 2)

	result, err := proc.Run(context.Background(), Selection{})
	require.NoError(t, err)
	assert.Equal(t, 2, result.ProcessedCount)
}
