package scraper

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// NABARD scrapes the NABARD circulars listing
type NABARD struct {
	client *Client
	URL    string
}

// NewNABARD creates the NABARD adapter
func NewNABARD(client *Client) *NABARD {
	return &NABARD{client: client, URL: "https://www.nabard.org/circulars.aspx?cid=504&id=24"}
}

// Name identifies the adapter in per-source diagnostics
func (a *NABARD) Name() string { return "NABARD" }

// Fetch extracts the latest circular links. The listing markup carries no
// reliable per-item dates, so items get the fetch time.
func (a *NABARD) Fetch(ctx context.Context) ([]Candidate, error) {
	doc, err := a.client.document(ctx, a.URL)
	if err != nil {
		return nil, err
	}

	var items []Candidate
	doc.Find(`.common_body_text a[href*="CircularPage.aspx"]`).Each(func(_ int, anchor *goquery.Selection) {
		title := strings.TrimSpace(anchor.Text())
		if title == "" {
			return
		}
		href, _ := anchor.Attr("href")
		items = append(items, Candidate{
			Title:     title,
			URL:       resolveURL("https://www.nabard.org/", href, a.URL),
			Source:    a.Name(),
			Category:  "economy",
			Published: time.Now().UTC(),
		})
	})

	return capCandidates(items, 5), nil
}
