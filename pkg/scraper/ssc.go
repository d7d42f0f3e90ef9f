package scraper

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// SSC scrapes the Staff Selection Commission notice board
type SSC struct {
	client *Client
	URL    string
}

// NewSSC creates the SSC adapter
func NewSSC(client *Client) *SSC {
	return &SSC{client: client, URL: "https://ssc.gov.in/candidate-portal/notice-board"}
}

// Name identifies the adapter in per-source diagnostics
func (a *SSC) Name() string { return "SSC" }

// Fetch extracts the latest notices. Notices without their own link fall back
// to the notice board page itself; such rows still carry distinct titles, and
// the ingestion layer's URL dedupe keeps only the first of them.
func (a *SSC) Fetch(ctx context.Context) ([]Candidate, error) {
	doc, err := a.client.document(ctx, a.URL)
	if err != nil {
		return nil, err
	}

	var items []Candidate
	doc.Find(".notice-board-table tr").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return // header row
		}
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}

		title := strings.TrimSpace(cells.Eq(1).Text())
		if title == "" {
			return
		}

		href, _ := cells.Eq(1).Find("a").First().Attr("href")
		items = append(items, Candidate{
			Title:     title,
			URL:       resolveURL("https://ssc.gov.in/", href, a.URL),
			Source:    a.Name(),
			Category:  "other",
			Published: parseDate(cells.Eq(0).Text()),
		})
	})

	return capCandidates(items, 5), nil
}
