package domain

import (
	"strings"
	"time"
)

// ClassificationState tracks where an article is in the classification
// pipeline. Transitions are monotonic: unclassified -> classified, or
// unclassified -> failed_retryable -> classified, or unclassified ->
// failed_terminal -> (clean pass) -> unclassified.
type ClassificationState string

const (
	StateUnclassified    ClassificationState = "unclassified"
	StateClassified      ClassificationState = "classified"
	StateFailedRetryable ClassificationState = "failed_retryable"
	StateFailedTerminal  ClassificationState = "failed_terminal"
)

// AIErrorMarker is appended to an article summary when the AI enhancement
// fails permanently. Articles carrying it are excluded from digests and
// targeted by the reprocess-errors and clean modes.
const AIErrorMarker = "[AI error]"

// Article represents a discovered piece of exam-related content.
// The canonical URL is the dedupe key and must be absolute.
type Article struct {
	ID              int64
	Title           string
	URL             string
	Source          string
	Category        string
	Body            string // extracted full text, optional
	OriginalSummary string // source-provided summary, optional
	Published       time.Time
	FetchedAt       time.Time

	// classification outputs, empty until classified
	State       ClassificationState
	Summary     string
	KeyPoints   []string
	Tags        []string
	ProcessedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasAIError reports whether the stored summary carries the AI error marker.
func (a *Article) HasAIError() bool {
	return strings.Contains(a.Summary, AIErrorMarker)
}

// Classification holds the result of classifying a single article.
type Classification struct {
	Title     string // non-empty when the AI translated the title
	Summary   string
	KeyPoints []string
	Tags      []string
	State     ClassificationState
}
