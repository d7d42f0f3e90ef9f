package content

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/examdigest/pkg/domain"
)

func TestHTTPExtractor_Extract(t *testing.T) {
	page := `<html><head><title>Circular</title></head><body>
		<nav>Home | About | Contact</nav>
		<article>
			<h1>Reserve Bank issues revised KYC directions</h1>
			<p>The Reserve Bank of India today issued revised Know Your Customer directions
			applicable to all regulated entities. The directions consolidate earlier circulars
			and take effect immediately. Regulated entities are expected to update their
			internal policies within ninety days of this notification being published.</p>
			<p>The revision follows recommendations of the internal working group and aligns
			the framework with recent amendments to the Prevention of Money Laundering Act.</p>
		</article>
	</body></html>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "ExamDigest")
		w.Write([]byte(page)) //nolint:errcheck
	}))
	defer srv.Close()

	extractor := NewHTTPExtractor(5*time.Second, "")
	text, err := extractor.Extract(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Contains(t, text, "revised Know Your Customer directions")
	assert.NotContains(t, text, "Home | About | Contact", "navigation stripped")
}

func TestHTTPExtractor_ExtractErrors(t *testing.T) {
	extractor := NewHTTPExtractor(5*time.Second, "agent")

	_, err := extractor.Extract(context.Background(), "not-a-url")
	assert.ErrorContains(t, err, "invalid URL")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err = extractor.Extract(context.Background(), srv.URL)
	assert.ErrorContains(t, err, "unexpected status code 404")
}

// enricher fakes

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) Extract(_ context.Context, _ string) (string, error) {
	return f.text, f.err
}

type fakeStore struct {
	articles []*domain.Article
	bodies   map[int64]string
}

func (s *fakeStore) GetByStates(_ context.Context, _ []domain.ClassificationState, limit int) ([]*domain.Article, error) {
	if len(s.articles) > limit {
		return s.articles[:limit], nil
	}
	return s.articles, nil
}

func (s *fakeStore) UpdateBody(_ context.Context, id int64, body string) error {
	if s.bodies == nil {
		s.bodies = map[int64]string{}
	}
	s.bodies[id] = body
	return nil
}

func TestEnricher_EnrichPending(t *testing.T) {
	longText := strings.Repeat("relevant exam content ", 20)
	store := &fakeStore{articles: []*domain.Article{
		{ID: 1, URL: "https://x.example/1", State: domain.StateUnclassified},
		{ID: 2, URL: "https://x.example/2", State: domain.StateUnclassified, Body: "already extracted"},
	}}
	enricher := NewEnricher(&fakeExtractor{text: longText}, store, 100)

	n, err := enricher.EnrichPending(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, 1, n, "article with a body skipped")
	assert.Equal(t, longText, store.bodies[1])
	assert.NotContains(t, store.bodies, int64(2))
}

func TestEnricher_EnrichPendingShortTextDiscarded(t *testing.T) {
	store := &fakeStore{articles: []*domain.Article{{ID: 1, URL: "https://x.example/1"}}}
	enricher := NewEnricher(&fakeExtractor{text: "too short"}, store, 100)

	n, err := enricher.EnrichPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, store.bodies)
}

func TestEnricher_EnrichPendingExtractionFailureIgnored(t *testing.T) {
	store := &fakeStore{articles: []*domain.Article{{ID: 1, URL: "https://x.example/1"}}}
	enricher := NewEnricher(&fakeExtractor{err: errors.New("blocked")}, store, 100)

	n, err := enricher.EnrichPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Zero(t, n, "extraction failure is not a pipeline failure")
}
