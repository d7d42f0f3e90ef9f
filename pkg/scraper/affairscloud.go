package scraper

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// AffairsCloud pulls the AffairsCloud current affairs RSS feed. Unlike the
// government sites this source is a proper feed, so it also yields a summary
// for each item.
type AffairsCloud struct {
	client *Client
	parser *gofeed.Parser
	URL    string
}

// NewAffairsCloud creates the AffairsCloud adapter
func NewAffairsCloud(client *Client) *AffairsCloud {
	return &AffairsCloud{
		client: client,
		parser: gofeed.NewParser(),
		URL:    "https://www.affairscloud.com/current-affairs/feed/",
	}
}

// Name identifies the adapter in per-source diagnostics
func (a *AffairsCloud) Name() string { return "AffairsCloud" }

// Fetch parses the RSS feed and converts entries to candidates
func (a *AffairsCloud) Fetch(ctx context.Context) ([]Candidate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.URL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", a.client.userAgent)
	addBrowserHeaders(req)

	resp, err := a.client.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", a.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d for %s", resp.StatusCode, a.URL)
	}

	feed, err := a.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	var items []Candidate
	for _, entry := range feed.Items {
		title := strings.TrimSpace(entry.Title)
		link := strings.TrimSpace(entry.Link)
		if title == "" || link == "" {
			continue
		}

		published := time.Now().UTC()
		if entry.PublishedParsed != nil {
			published = entry.PublishedParsed.UTC()
		}

		items = append(items, Candidate{
			Title:           title,
			URL:             link,
			Source:          a.Name(),
			Category:        "current_affairs",
			Published:       published,
			OriginalSummary: feedSummary(entry),
		})
	}

	return capCandidates(items, 10), nil
}

// feedSummary picks the richer of content and description and bounds it
func feedSummary(entry *gofeed.Item) string {
	text := entry.Content
	if strings.TrimSpace(text) == "" {
		text = entry.Description
	}
	text = strings.TrimSpace(text)
	if len(text) > 500 {
		text = text[:500]
	}
	return text
}
