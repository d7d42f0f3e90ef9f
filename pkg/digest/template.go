package digest

import (
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/umputun/examdigest/pkg/domain"
)

// Renderer turns assembled digests into email subjects and HTML bodies.
// Summaries may carry markup from upstream feeds, so everything user-visible
// goes through a sanitizer first.
type Renderer struct {
	baseURL   string
	sanitizer *bluemonday.Policy
	digest    *template.Template
	welcome   *template.Template
}

// NewRenderer creates an email renderer; baseURL is used for unsubscribe links
func NewRenderer(baseURL string) *Renderer {
	funcs := template.FuncMap{
		"examLabel": func(tag string) string {
			if label, ok := domain.ExamLabels[tag]; ok {
				return label
			}
			return tag
		},
	}
	return &Renderer{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		sanitizer: bluemonday.UGCPolicy(),
		digest:    template.Must(template.New("digest").Funcs(funcs).Parse(digestTemplate)),
		welcome:   template.Must(template.New("welcome").Funcs(funcs).Parse(welcomeTemplate)),
	}
}

// digestView is the template payload for one digest email
type digestView struct {
	Date           string
	ItemCount      int
	Sections       []sectionView
	Exams          []string
	UnsubscribeURL string
}

type sectionView struct {
	Label string
	Items []itemView
}

type itemView struct {
	Title     string
	URL       string
	Summary   template.HTML
	KeyPoints []string
	Tags      []string
}

// Render produces the subject and HTML body for a digest. An empty digest
// renders an "all quiet" body; callers on the scheduled path skip sending it.
func (r *Renderer) Render(d *Digest) (subject, body string, err error) {
	date := d.GeneratedAt.Format("2 Jan 2006")
	subject = fmt.Sprintf("Exam Digest — %s (%d updates)", date, d.ItemCount)
	if d.ItemCount == 0 {
		subject = fmt.Sprintf("Exam Digest — %s (all quiet)", date)
	}

	view := digestView{
		Date:           date,
		ItemCount:      d.ItemCount,
		Exams:          d.Subscriber.Exams,
		UnsubscribeURL: r.unsubscribeURL(d.Subscriber.Email),
	}
	for _, section := range d.Sections {
		sv := sectionView{Label: section.Label}
		for _, article := range section.Items {
			sv.Items = append(sv.Items, itemView{
				Title: article.Title,
				URL:   article.URL,
				// sanitized upstream markup is safe to inline
				Summary:   template.HTML(r.sanitizer.Sanitize(article.Summary)), //nolint:gosec
				KeyPoints: article.KeyPoints,
				Tags:      article.Tags,
			})
		}
		view.Sections = append(view.Sections, sv)
	}

	var sb strings.Builder
	if err := r.digest.Execute(&sb, view); err != nil {
		return "", "", fmt.Errorf("render digest: %w", err)
	}
	return subject, sb.String(), nil
}

// RenderWelcome produces the signup confirmation email
func (r *Renderer) RenderWelcome(sub *domain.Subscriber) (subject, body string, err error) {
	view := struct {
		Exams          []string
		UnsubscribeURL string
	}{Exams: sub.Exams, UnsubscribeURL: r.unsubscribeURL(sub.Email)}

	var sb strings.Builder
	if err := r.welcome.Execute(&sb, view); err != nil {
		return "", "", fmt.Errorf("render welcome: %w", err)
	}
	return "Welcome to Exam Digest", sb.String(), nil
}

func (r *Renderer) unsubscribeURL(email string) string {
	if r.baseURL == "" {
		return ""
	}
	return r.baseURL + "/api/v1/unsubscribe?email=" + url.QueryEscape(email)
}

const digestTemplate = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; max-width: 640px; margin: 0 auto; color: #222;">
  <h1 style="font-size: 20px;">Exam Digest for {{.Date}}</h1>
  <p style="color: #666;">Your exams: {{range $i, $e := .Exams}}{{if $i}}, {{end}}{{examLabel $e}}{{end}}</p>
{{if eq .ItemCount 0}}
  <p>Nothing new matched your exams today. We checked all sources; you're all set.</p>
{{else}}
{{range .Sections}}
  <h2 style="font-size: 16px; border-bottom: 1px solid #ddd; padding-bottom: 4px;">{{.Label}}</h2>
{{range .Items}}
  <div style="margin-bottom: 16px;">
    <a href="{{.URL}}" style="font-weight: bold; color: #1a5276;">{{.Title}}</a>
    <p style="margin: 4px 0;">{{.Summary}}</p>
{{if .KeyPoints}}
    <ul style="margin: 4px 0; padding-left: 20px; color: #444;">
{{range .KeyPoints}}      <li>{{.}}</li>
{{end}}    </ul>
{{end}}
    <p style="font-size: 12px; color: #888;">{{range $i, $t := .Tags}}{{if $i}} &middot; {{end}}{{examLabel $t}}{{end}}</p>
  </div>
{{end}}
{{end}}
{{end}}
  <hr style="border: none; border-top: 1px solid #ddd;">
  <p style="font-size: 12px; color: #888;">
    You receive this because you subscribed to Exam Digest.
{{if .UnsubscribeURL}}    <a href="{{.UnsubscribeURL}}" style="color: #888;">Unsubscribe</a>{{end}}
  </p>
</body>
</html>`

const welcomeTemplate = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; max-width: 640px; margin: 0 auto; color: #222;">
  <h1 style="font-size: 20px;">Welcome to Exam Digest</h1>
  <p>You are subscribed for: {{range $i, $e := .Exams}}{{if $i}}, {{end}}{{examLabel $e}}{{end}}.</p>
  <p>Every morning you'll get a short digest of official notifications and current affairs
  relevant to your exams, pulled from RBI, SEBI, NABARD, PIB and other sources.</p>
  <hr style="border: none; border-top: 1px solid #ddd;">
  <p style="font-size: 12px; color: #888;">
    Didn't sign up?
{{if .UnsubscribeURL}}    <a href="{{.UnsubscribeURL}}" style="color: #888;">Unsubscribe</a>{{end}}
  </p>
</body>
</html>`
