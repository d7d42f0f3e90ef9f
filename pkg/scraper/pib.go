package scraper

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// PIB scrapes the Press Information Bureau's "all releases" page
type PIB struct {
	client *Client
	URL    string
}

// NewPIB creates the PIB adapter
func NewPIB(client *Client) *PIB {
	return &PIB{client: client, URL: "https://pib.gov.in/allRel.aspx"}
}

// Name identifies the adapter in per-source diagnostics
func (a *PIB) Name() string { return "PIB" }

// Fetch extracts the latest press release links. The same release can appear
// more than once on the page, so links are deduplicated by URL here rather
// than leaving it to the ingestion layer.
func (a *PIB) Fetch(ctx context.Context) ([]Candidate, error) {
	doc, err := a.client.document(ctx, a.URL)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var items []Candidate
	doc.Find(`a[href*="/PressReleasePage.aspx?PRID="]`).Each(func(_ int, anchor *goquery.Selection) {
		title := strings.TrimSpace(anchor.AttrOr("title", ""))
		if title == "" {
			title = strings.TrimSpace(anchor.Text())
		}
		if title == "" {
			return
		}

		href, _ := anchor.Attr("href")
		link := resolveURL("https://pib.gov.in/", href, "")
		if link == "" || seen[link] {
			return
		}
		seen[link] = true

		items = append(items, Candidate{
			Title:     title,
			URL:       link,
			Source:    a.Name(),
			Category:  "government_schemes",
			Published: time.Now().UTC(),
		})
	})

	return capCandidates(items, 10), nil
}
