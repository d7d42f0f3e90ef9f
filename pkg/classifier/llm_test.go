package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/examdigest/pkg/config"
	"github.com/umputun/examdigest/pkg/domain"
)

// newTestClassifier points the OpenAI client at a stub completion endpoint
func newTestClassifier(t *testing.T, handler http.HandlerFunc) *OpenAIClassifier {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAIClassifier(config.LLMConfig{
		Endpoint: srv.URL + "/v1",
		APIKey:   "test-key",
		Model:    "gpt-4o-mini",
	})
}

func completionResponse(content string) string {
	quoted, _ := json.Marshal(content) //nolint:errcheck // strings always marshal
	return `{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":` +
		string(quoted) + `},"finish_reason":"stop"}]}`
}

func TestOpenAIClassifier_Classify(t *testing.T) {
	c := newTestClassifier(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionResponse( //nolint:errcheck
			`{"summary":"RBI held the repo rate.","key_points":["Rate at 6.5%"],"exam_tags":["rbi_grade_b"]}`)))
	})

	article := &domain.Article{Title: "Repo rate decision", Source: "RBI", Published: time.Now()}
	enhancement, raw, err := c.Classify(context.Background(), article)
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
	assert.Equal(t, "RBI held the repo rate.", enhancement.Summary)
	assert.Equal(t, []string{"Rate at 6.5%"}, enhancement.KeyPoints)
	assert.Equal(t, []string{"rbi_grade_b"}, enhancement.ExamTags)
	assert.Empty(t, enhancement.TranslatedTitle)
}

func TestOpenAIClassifier_ClassifyStripsCodeFences(t *testing.T) {
	c := newTestClassifier(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionResponse( //nolint:errcheck
			"```json\n{\"summary\":\"fenced\",\"key_points\":[],\"exam_tags\":[]}\n```")))
	})

	enhancement, _, err := c.Classify(context.Background(), &domain.Article{Title: "t", Source: "s"})
	require.NoError(t, err)
	assert.Equal(t, "fenced", enhancement.Summary)
}

func TestOpenAIClassifier_ClassifyBadJSON(t *testing.T) {
	c := newTestClassifier(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionResponse("I cannot answer in JSON, sorry."))) //nolint:errcheck
	})

	_, raw, err := c.Classify(context.Background(), &domain.Article{Title: "t", Source: "s"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse model response")
	assert.Equal(t, "I cannot answer in JSON, sorry.", raw, "raw output preserved for diagnostics")
}

func TestOpenAIClassifier_ClassifyRateLimited(t *testing.T) {
	c := newTestClassifier(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"requests"}}`)) //nolint:errcheck
	})

	_, _, err := c.Classify(context.Background(), &domain.Article{Title: "t", Source: "s"})
	require.Error(t, err)
	assert.True(t, IsRateLimited(err))
}

func TestOpenAIClassifier_ClassifyTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionResponse(`{}`))) //nolint:errcheck
	}))
	t.Cleanup(srv.Close)

	c := NewOpenAIClassifier(config.LLMConfig{
		Endpoint: srv.URL + "/v1",
		APIKey:   "test-key",
		Model:    "gpt-4o-mini",
		Timeout:  50 * time.Millisecond,
	})

	_, _, err := c.Classify(context.Background(), &domain.Article{Title: "t", Source: "s"})
	require.Error(t, err, "configured timeout cuts off a stalled provider")
}

func TestIsRateLimited(t *testing.T) {
	assert.False(t, IsRateLimited(nil))
	assert.False(t, IsRateLimited(errors.New("connection refused")))
	assert.True(t, IsRateLimited(errors.New("got 429 from upstream")))
	assert.True(t, IsRateLimited(errors.New("You exceeded your current quota")))
	assert.True(t, IsRateLimited(errors.New("Rate limit reached for requests")))
	assert.True(t, IsRateLimited(&openai.APIError{HTTPStatusCode: 429, Message: "slow down"}))
	assert.False(t, IsRateLimited(&openai.APIError{HTTPStatusCode: 500, Message: "boom"}))
}

func TestBuildPrompt(t *testing.T) {
	article := &domain.Article{
		Title:           "Repo rate decision",
		Source:          "RBI",
		OriginalSummary: "MPC statement",
		Published:       time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
	}

	prompt := buildPrompt(article)
	assert.Contains(t, prompt, "Title: Repo rate decision")
	assert.Contains(t, prompt, "Original summary: MPC statement")
	assert.Contains(t, prompt, "rbi_grade_b")
	assert.Contains(t, prompt, "current_affairs")
}

func TestCleanJSONResponse(t *testing.T) {
	assert.Equal(t, `{"a":1}`, cleanJSONResponse("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, cleanJSONResponse("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, cleanJSONResponse(`  {"a":1}  `))
}
