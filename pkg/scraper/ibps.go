package scraper

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// IBPS scrapes the IBPS recruitment page for notification links
type IBPS struct {
	client *Client
	URL    string
}

// NewIBPS creates the IBPS adapter
func NewIBPS(client *Client) *IBPS {
	return &IBPS{client: client, URL: "https://www.ibps.in/management-trainees-xv/"}
}

// Name identifies the adapter in per-source diagnostics
func (a *IBPS) Name() string { return "IBPS" }

// Fetch extracts notification and process document links from the
// recruitment page. Plain navigation links are filtered out by keyword.
func (a *IBPS) Fetch(ctx context.Context) ([]Candidate, error) {
	doc, err := a.client.document(ctx, a.URL)
	if err != nil {
		return nil, err
	}

	var items []Candidate
	doc.Find("a.link").Each(func(_ int, anchor *goquery.Selection) {
		title := strings.TrimSpace(anchor.Text())
		lower := strings.ToLower(title)
		if !strings.Contains(lower, "notification") && !strings.Contains(lower, "process") {
			return
		}

		href, _ := anchor.Attr("href")
		items = append(items, Candidate{
			Title:     title,
			URL:       resolveURL("https://www.ibps.in/", href, a.URL),
			Source:    a.Name(),
			Category:  "banking",
			Published: time.Now().UTC(),
		})
	})

	return capCandidates(items, 5), nil
}
