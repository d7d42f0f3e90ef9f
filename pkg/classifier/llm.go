package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/umputun/examdigest/pkg/config"
	"github.com/umputun/examdigest/pkg/domain"
)

// Enhancement is the AI's addition to the baseline classification. Any field
// may be empty; empty fields leave the baseline value in place.
type Enhancement struct {
	TranslatedTitle string   `json:"translated_title,omitempty"`
	Summary         string   `json:"summary"`
	KeyPoints       []string `json:"key_points"`
	ExamTags        []string `json:"exam_tags"`
}

// OpenAIClassifier enhances articles through an OpenAI-compatible chat API
type OpenAIClassifier struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

// NewOpenAIClassifier creates an AI classifier from the LLM configuration.
// A custom endpoint allows OpenAI-compatible providers.
func NewOpenAIClassifier(cfg config.LLMConfig) *OpenAIClassifier {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = cfg.Endpoint
	}
	if cfg.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &OpenAIClassifier{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
		maxTokens:   cfg.MaxTokens,
	}
}

// Classify asks the model for an exam-focused summary, key points and tags.
// Returns the parsed enhancement and the raw model output for diagnostics.
func (c *OpenAIClassifier) Classify(ctx context.Context, article *domain.Article) (*Enhancement, string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(article)},
		},
	})
	if err != nil {
		return nil, "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, "", errors.New("empty response from model")
	}

	raw := resp.Choices[0].Message.Content

	var enhancement Enhancement
	if err := json.Unmarshal([]byte(cleanJSONResponse(raw)), &enhancement); err != nil {
		return nil, raw, fmt.Errorf("parse model response: %w", err)
	}
	return &enhancement, raw, nil
}

const systemPrompt = `You are an assistant preparing a daily digest for Indian competitive exam aspirants ` +
	`(RBI Grade B, SEBI Grade A, NABARD, UPSC, SSC, IBPS, LIC AAO). ` +
	`Respond with a single JSON object and nothing else.`

// buildPrompt renders the per-article instruction. The valid tag list is
// spelled out so the model cannot invent exams.
func buildPrompt(article *domain.Article) string {
	var b strings.Builder
	b.WriteString("Summarize this update for exam preparation.\n\n")
	fmt.Fprintf(&b, "Title: %s\nSource: %s\nPublished: %s\n",
		article.Title, article.Source, article.Published.Format("02 Jan 2006"))
	if article.OriginalSummary != "" {
		fmt.Fprintf(&b, "Original summary: %s\n", article.OriginalSummary)
	}
	if article.Body != "" {
		body := article.Body
		if len(body) > 4000 {
			body = body[:4000]
		}
		fmt.Fprintf(&b, "Content: %s\n", body)
	}

	b.WriteString("\nRespond with JSON: {")
	b.WriteString(`"translated_title": "English title, only if the original is not in English", `)
	b.WriteString(`"summary": "2-3 sentences on what happened and why it matters for exams", `)
	b.WriteString(`"key_points": ["3-5 facts worth memorizing"], `)
	b.WriteString(`"exam_tags": ["relevant exams"]}`)
	fmt.Fprintf(&b, "\nAllowed exam_tags values: %s", strings.Join(domain.AllTags(), ", "))
	return b.String()
}

// cleanJSONResponse strips markdown code fences models like to wrap JSON in
func cleanJSONResponse(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
		s = strings.TrimSpace(s)
	}
	return s
}

// IsRateLimited reports whether an AI failure is a rate or quota limit,
// i.e. retryable later without any change on our side
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == 429 {
		return true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == 429 {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "quota")
}
