package scraper

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// SEBI scrapes the SEBI "all listings" page for circulars and orders
type SEBI struct {
	client *Client
	URL    string
}

// NewSEBI creates the SEBI adapter
func NewSEBI(client *Client) *SEBI {
	return &SEBI{client: client, URL: "https://www.sebi.gov.in/sebiweb/home/HomeAction.do?doListingAll=yes"}
}

// Name identifies the adapter in per-source diagnostics
func (a *SEBI) Name() string { return "SEBI" }

// Fetch extracts the latest entries from the SEBI listing table. The first
// cell carries the date, the third carries the linked title.
func (a *SEBI) Fetch(ctx context.Context) ([]Candidate, error) {
	doc, err := a.client.document(ctx, a.URL)
	if err != nil {
		return nil, err
	}

	var items []Candidate
	doc.Find("table tr").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return // header row
		}
		cells := row.Find("td")
		if cells.Length() < 3 {
			return
		}

		anchor := cells.Eq(2).Find("a").First()
		title := strings.TrimSpace(anchor.Text())
		if title == "" {
			return
		}

		href, _ := anchor.Attr("href")
		items = append(items, Candidate{
			Title:     title,
			URL:       resolveURL("https://www.sebi.gov.in/", href, a.URL),
			Source:    a.Name(),
			Category:  "finance",
			Published: parseDate(cells.Eq(0).Text()),
		})
	})

	return capCandidates(items, 5), nil
}
