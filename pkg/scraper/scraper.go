package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Candidate is a raw content item discovered by a source adapter. URLs are
// absolute by the time the adapter returns them.
type Candidate struct {
	Title           string
	URL             string
	Source          string
	Category        string
	Published       time.Time
	OriginalSummary string
}

// Adapter fetches one upstream site and extracts candidate items. Adapters
// are fragile by design: a silent upstream markup change yields an empty
// result, never a crash, and a failed adapter never aborts the ingestion run.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context) ([]Candidate, error)
}

// Client is the shared HTTP plumbing for all site adapters
type Client struct {
	http      *http.Client
	userAgent string
}

// NewClient creates a scraper client with a bounded per-request timeout
func NewClient(timeout time.Duration, userAgent string) *Client {
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	if userAgent == "" {
		userAgent = "ExamDigest/1.0"
	}
	return &Client{
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: userAgent,
	}
}

// All returns every registered site adapter
func All(client *Client) []Adapter {
	return []Adapter{
		NewRBINotifications(client),
		NewRBIPressReleases(client),
		NewSEBI(client),
		NewNABARD(client),
		NewPIB(client),
		NewSSC(client),
		NewIBPS(client),
		NewAffairsCloud(client),
	}
}

// document fetches a page and parses it with goquery
func (c *Client) document(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	addBrowserHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d for %s", resp.StatusCode, pageURL)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

// resolveURL makes href absolute against the site's base URL. An empty or
// unparsable href resolves to the fallback.
func resolveURL(base, href, fallback string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return fallback
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return fallback
	}
	ref, err := url.Parse(href)
	if err != nil {
		return fallback
	}
	return baseURL.ResolveReference(ref).String()
}

// dateLayouts cover the formats the upstream sites use for list dates
var dateLayouts = []string{
	"Jan 02, 2006",
	"02 Jan 2006",
	"2 Jan 2006",
	"02-01-2006",
	"02/01/2006",
	"2006-01-02",
	"January 2, 2006",
}

// parseDate parses an upstream date string best-effort; anything
// unparsable falls back to now, it must never fail the adapter
func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Now().UTC()
}

// capCandidates bounds adapter output to the most recent n items
func capCandidates(items []Candidate, n int) []Candidate {
	if len(items) > n {
		return items[:n]
	}
	return items
}
