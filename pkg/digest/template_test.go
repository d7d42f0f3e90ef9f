package digest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/examdigest/pkg/domain"
)

func TestRenderer_Render(t *testing.T) {
	renderer := NewRenderer("https://digest.example.com/")

	d := &Digest{
		Subscriber:  &domain.Subscriber{Email: "a@example.com", Exams: []string{"rbi_grade_b"}},
		ItemCount:   1,
		GeneratedAt: time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC),
		Sections: []Section{{
			Category: "rbi_circulars",
			Label:    "RBI Updates",
			Items: []*domain.Article{{
				Title:     "Repo rate held at 6.5%",
				URL:       "https://rbi.example/1",
				Summary:   "The MPC kept rates unchanged.",
				KeyPoints: []string{"Rate at 6.5%"},
				Tags:      []string{"rbi_grade_b"},
			}},
		}},
	}

	subject, body, err := renderer.Render(d)
	require.NoError(t, err)

	assert.Equal(t, "Exam Digest — 15 Jan 2025 (1 updates)", subject)
	assert.Contains(t, body, "RBI Updates")
	assert.Contains(t, body, `href="https://rbi.example/1"`)
	assert.Contains(t, body, "The MPC kept rates unchanged.")
	assert.Contains(t, body, "Rate at 6.5%")
	assert.Contains(t, body, "RBI Grade B")
	assert.Contains(t, body, "https://digest.example.com/api/v1/unsubscribe?email=a%40example.com")
}

func TestRenderer_RenderSanitizesSummaries(t *testing.T) {
	renderer := NewRenderer("")

	d := &Digest{
		Subscriber:  &domain.Subscriber{Email: "a@example.com", Exams: []string{"current_affairs"}},
		ItemCount:   1,
		GeneratedAt: time.Now(),
		Sections: []Section{{
			Label: "Current Affairs",
			Items: []*domain.Article{{
				Title:   "Roundup",
				URL:     "https://x.example/1",
				Summary: `Daily news <script>alert("x")</script> with <b>markup</b>.`,
			}},
		}},
	}

	_, body, err := renderer.Render(d)
	require.NoError(t, err)

	assert.NotContains(t, body, "<script>")
	assert.Contains(t, body, "<b>markup</b>", "benign markup survives sanitizing")
}

func TestRenderer_RenderEmptyDigest(t *testing.T) {
	renderer := NewRenderer("https://digest.example.com")

	d := &Digest{
		Subscriber:  &domain.Subscriber{Email: "a@example.com", Exams: []string{"lic_aao"}},
		GeneratedAt: time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC),
	}

	subject, body, err := renderer.Render(d)
	require.NoError(t, err)

	assert.Equal(t, "Exam Digest — 15 Jan 2025 (all quiet)", subject)
	assert.Contains(t, body, "you're all set")
	assert.Contains(t, body, "LIC AAO")
}

func TestRenderer_RenderWelcome(t *testing.T) {
	renderer := NewRenderer("https://digest.example.com")

	subject, body, err := renderer.RenderWelcome(&domain.Subscriber{
		Email: "new@example.com",
		Exams: []string{"rbi_grade_b", "upsc_cse"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Welcome to Exam Digest", subject)
	assert.Contains(t, body, "RBI Grade B, UPSC CSE")
	assert.Contains(t, body, "unsubscribe?email=new%40example.com")
}
