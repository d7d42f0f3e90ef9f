package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"

	"github.com/umputun/examdigest/pkg/domain"
)

// ErrDuplicateURL is returned when inserting an article whose canonical URL
// is already in the store. Callers treat it as "already exists", not a failure.
var ErrDuplicateURL = errors.New("article url already exists")

// ArticleRepository handles article-related database operations
type ArticleRepository struct {
	db *sqlx.DB
}

// articleSQL represents an article row for SQL operations
type articleSQL struct {
	ID              int64       `db:"id"`
	Title           string      `db:"title"`
	URL             string      `db:"url"`
	Source          string      `db:"source"`
	Category        string      `db:"category"`
	Body            string      `db:"body"`
	OriginalSummary string      `db:"original_summary"`
	Published       time.Time   `db:"published"`
	FetchedAt       time.Time   `db:"fetched_at"`
	State           string      `db:"state"`
	Summary         string      `db:"summary"`
	KeyPoints       stringsJSON `db:"key_points"`
	ExamTags        stringsJSON `db:"exam_tags"`
	ProcessedAt     *time.Time  `db:"processed_at"`
	CreatedAt       time.Time   `db:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at"`
}

// NewArticleRepository creates a new article repository
func NewArticleRepository(database *sqlx.DB) *ArticleRepository {
	return &ArticleRepository{db: database}
}

// Create inserts a new article in the unclassified state. A uniqueness
// violation on the URL is reported as ErrDuplicateURL.
func (r *ArticleRepository) Create(ctx context.Context, article *domain.Article) error {
	if article.FetchedAt.IsZero() {
		article.FetchedAt = time.Now().UTC()
	}
	if article.State == "" {
		article.State = domain.StateUnclassified
	}

	sqlArticle := &articleSQL{
		Title:           article.Title,
		URL:             article.URL,
		Source:          article.Source,
		Category:        article.Category,
		Body:            article.Body,
		OriginalSummary: article.OriginalSummary,
		Published:       article.Published,
		FetchedAt:       article.FetchedAt,
		State:           string(article.State),
	}

	query := `
		INSERT INTO articles (
			title, url, source, category, body, original_summary,
			published, fetched_at, state
		) VALUES (
			:title, :url, :source, :category, :body, :original_summary,
			:published, :fetched_at, :state
		)
	`
	result, err := r.db.NamedExecContext(ctx, query, sqlArticle)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateURL
		}
		return fmt.Errorf("create article: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get insert id: %w", err)
	}

	article.ID = id
	return nil
}

// Get retrieves an article by ID
func (r *ArticleRepository) Get(ctx context.Context, id int64) (*domain.Article, error) {
	var sqlArticle articleSQL
	err := r.db.GetContext(ctx, &sqlArticle, "SELECT * FROM articles WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("get article: %w", err)
	}
	return toDomainArticle(&sqlArticle), nil
}

// URLExists checks if an article with the given canonical URL already exists
func (r *ArticleRepository) URLExists(ctx context.Context, url string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM articles WHERE url = ?)", url)
	if err != nil {
		return false, fmt.Errorf("check url exists: %w", err)
	}
	return exists, nil
}

// GetByStates retrieves articles in any of the given classification states,
// most recently fetched first
func (r *ArticleRepository) GetByStates(ctx context.Context, states []domain.ClassificationState, limit int) ([]*domain.Article, error) {
	values := make([]string, len(states))
	for i, s := range states {
		values[i] = string(s)
	}

	query, args, err := sqlx.In(
		"SELECT * FROM articles WHERE state IN (?) ORDER BY fetched_at DESC LIMIT ?",
		values, limit)
	if err != nil {
		return nil, fmt.Errorf("build states query: %w", err)
	}

	var sqlArticles []articleSQL
	if err := r.db.SelectContext(ctx, &sqlArticles, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("get articles by states: %w", err)
	}
	return toDomainArticles(sqlArticles), nil
}

// GetAll retrieves the most recently fetched articles regardless of state
func (r *ArticleRepository) GetAll(ctx context.Context, limit int) ([]*domain.Article, error) {
	var sqlArticles []articleSQL
	err := r.db.SelectContext(ctx, &sqlArticles,
		"SELECT * FROM articles ORDER BY fetched_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("get articles: %w", err)
	}
	return toDomainArticles(sqlArticles), nil
}

// GetProcessedSince retrieves processed articles fetched after the cutoff,
// newest published first. Processed means the classifier finished with the
// article, clean or with a terminal error.
func (r *ArticleRepository) GetProcessedSince(ctx context.Context, since time.Time, limit int) ([]*domain.Article, error) {
	var sqlArticles []articleSQL
	err := r.db.SelectContext(ctx, &sqlArticles, `
		SELECT * FROM articles
		WHERE state IN ('classified', 'failed_terminal') AND fetched_at >= ?
		ORDER BY published DESC
		LIMIT ?`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("get processed articles since: %w", err)
	}
	return toDomainArticles(sqlArticles), nil
}

// GetLatestProcessed retrieves the most recently fetched processed articles
// regardless of age, the last resort of the widening-window policy
func (r *ArticleRepository) GetLatestProcessed(ctx context.Context, limit int) ([]*domain.Article, error) {
	var sqlArticles []articleSQL
	err := r.db.SelectContext(ctx, &sqlArticles, `
		SELECT * FROM articles
		WHERE state IN ('classified', 'failed_terminal')
		ORDER BY fetched_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("get latest processed articles: %w", err)
	}
	return toDomainArticles(sqlArticles), nil
}

// UpdateClassification stores classification results and moves the article
// to the result's state. Retries on SQLite lock contention.
func (r *ArticleRepository) UpdateClassification(ctx context.Context, id int64, c *domain.Classification) error {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	return retrier.Do(ctx, func() error {
		var query string
		var args []interface{}

		if c.Title != "" {
			query = `
				UPDATE articles
				SET title = ?, summary = ?, key_points = ?, exam_tags = ?, state = ?,
				    processed_at = datetime('now'), updated_at = datetime('now')
				WHERE id = ?
			`
			args = []interface{}{c.Title, c.Summary, stringsJSON(c.KeyPoints), stringsJSON(c.Tags), string(c.State), id}
		} else {
			query = `
				UPDATE articles
				SET summary = ?, key_points = ?, exam_tags = ?, state = ?,
				    processed_at = datetime('now'), updated_at = datetime('now')
				WHERE id = ?
			`
			args = []interface{}{c.Summary, stringsJSON(c.KeyPoints), stringsJSON(c.Tags), string(c.State), id}
		}

		// a retryable failure keeps the article selectable by default runs,
		// so it carries no processed timestamp
		if c.State == domain.StateFailedRetryable {
			query = `
				UPDATE articles
				SET summary = ?, key_points = ?, exam_tags = ?, state = ?,
				    processed_at = NULL, updated_at = datetime('now')
				WHERE id = ?
			`
			args = []interface{}{c.Summary, stringsJSON(c.KeyPoints), stringsJSON(c.Tags), string(c.State), id}
		}

		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			if isLockError(err) {
				return err // repeater will retry this
			}
			return &criticalError{err: fmt.Errorf("update classification: %w", err)}
		}
		return nil
	})
}

// ResetClassification reverts an article to a clean unclassified baseline,
// used by the clean maintenance pass on articles with AI error markers
func (r *ArticleRepository) ResetClassification(ctx context.Context, id int64, summary string, keyPoints, tags []string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE articles
		SET summary = ?, key_points = ?, exam_tags = ?, state = ?,
		    processed_at = NULL, updated_at = datetime('now')
		WHERE id = ?`,
		summary, stringsJSON(keyPoints), stringsJSON(tags), string(domain.StateUnclassified), id)
	if err != nil {
		return fmt.Errorf("reset classification: %w", err)
	}
	return nil
}

// UpdateBody stores extracted full text for an article
func (r *ArticleRepository) UpdateBody(ctx context.Context, id int64, body string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE articles SET body = ?, updated_at = datetime('now') WHERE id = ?", body, id)
	if err != nil {
		return fmt.Errorf("update article body: %w", err)
	}
	return nil
}

// toDomainArticle converts articleSQL to domain.Article
func toDomainArticle(sqlArticle *articleSQL) *domain.Article {
	return &domain.Article{
		ID:              sqlArticle.ID,
		Title:           sqlArticle.Title,
		URL:             sqlArticle.URL,
		Source:          sqlArticle.Source,
		Category:        sqlArticle.Category,
		Body:            sqlArticle.Body,
		OriginalSummary: sqlArticle.OriginalSummary,
		Published:       sqlArticle.Published,
		FetchedAt:       sqlArticle.FetchedAt,
		State:           domain.ClassificationState(sqlArticle.State),
		Summary:         sqlArticle.Summary,
		KeyPoints:       sqlArticle.KeyPoints,
		Tags:            sqlArticle.ExamTags,
		ProcessedAt:     sqlArticle.ProcessedAt,
		CreatedAt:       sqlArticle.CreatedAt,
		UpdatedAt:       sqlArticle.UpdatedAt,
	}
}

func toDomainArticles(sqlArticles []articleSQL) []*domain.Article {
	articles := make([]*domain.Article, len(sqlArticles))
	for i := range sqlArticles {
		articles[i] = toDomainArticle(&sqlArticles[i])
	}
	return articles
}
