package scraper

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const rbiBaseURL = "https://rbi.org.in/Scripts/"

// RBINotifications scrapes the RBI notifications listing
type RBINotifications struct {
	client *Client
	URL    string // overridable for tests
}

// NewRBINotifications creates the RBI notifications adapter
func NewRBINotifications(client *Client) *RBINotifications {
	return &RBINotifications{client: client, URL: rbiBaseURL + "NotificationUser.aspx"}
}

// Name identifies the adapter in per-source diagnostics
func (a *RBINotifications) Name() string { return "RBI Notifications" }

// Fetch extracts the latest notifications from the RBI listing table
func (a *RBINotifications) Fetch(ctx context.Context) ([]Candidate, error) {
	doc, err := a.client.document(ctx, a.URL)
	if err != nil {
		return nil, err
	}
	return scrapeRBITable(doc, a.Name(), true), nil
}

// RBIPressReleases scrapes the RBI press release listing
type RBIPressReleases struct {
	client *Client
	URL    string
}

// NewRBIPressReleases creates the RBI press releases adapter
func NewRBIPressReleases(client *Client) *RBIPressReleases {
	return &RBIPressReleases{client: client, URL: rbiBaseURL + "BS_PressReleaseDisplay.aspx"}
}

// Name identifies the adapter in per-source diagnostics
func (a *RBIPressReleases) Name() string { return "RBI Press Releases" }

// Fetch extracts the latest press releases from the RBI listing table
func (a *RBIPressReleases) Fetch(ctx context.Context) ([]Candidate, error) {
	doc, err := a.client.document(ctx, a.URL)
	if err != nil {
		return nil, err
	}
	return scrapeRBITable(doc, a.Name(), false), nil
}

// scrapeRBITable walks the shared RBI listing markup. The listing date
// precedes the anchor text in the first cell; press release pages carry no
// usable date at all.
func scrapeRBITable(doc *goquery.Document, source string, withDates bool) []Candidate {
	var items []Candidate

	doc.Find(".tablebg tr").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return // header row
		}
		cell := row.Find("td").First()
		anchor := cell.Find("a").First()
		if anchor.Length() == 0 {
			return
		}

		title := strings.TrimSpace(anchor.Text())
		if title == "" {
			return
		}

		href, _ := anchor.Attr("href")
		item := Candidate{
			Title:     title,
			URL:       resolveURL(rbiBaseURL, href, rbiBaseURL),
			Source:    source,
			Category:  "rbi_circulars",
			Published: time.Now().UTC(),
		}

		if withDates {
			// rough extraction: everything in the cell before the anchor text
			dateText := strings.TrimSpace(strings.Split(cell.Text(), title)[0])
			item.Published = parseDate(dateText)
		}

		items = append(items, item)
	})

	return capCandidates(items, 5)
}
