package classifier

import (
	"fmt"
	"strings"

	"github.com/umputun/examdigest/pkg/domain"
)

// sourceRule maps a substring of the source name to exam tags
type sourceRule struct {
	match string
	tags  []string
}

// sourceRules is the deterministic source-to-exams mapping. Matching is
// case-insensitive substring on the source name; every matching rule
// contributes its tags.
var sourceRules = []sourceRule{
	{match: "RBI", tags: []string{domain.TagRBIGradeB, domain.TagIBPSPO}},
	{match: "SEBI", tags: []string{domain.TagSEBIGradeA, domain.TagRBIGradeB}},
	{match: "NABARD", tags: []string{domain.TagNABARDGradeA, domain.TagRBIGradeB}},
	{match: "PIB", tags: []string{domain.TagRBIGradeB, domain.TagNABARDGradeA, domain.TagUPSCCSE}},
	{match: "HINDU", tags: []string{domain.TagCurrentAffairs, domain.TagRBIGradeB, domain.TagIBPSPO, domain.TagSSCCGL}},
	{match: "MINT", tags: []string{domain.TagCurrentAffairs, domain.TagRBIGradeB, domain.TagIBPSPO, domain.TagSSCCGL}},
	{match: "BUSINESS", tags: []string{domain.TagCurrentAffairs, domain.TagRBIGradeB, domain.TagIBPSPO, domain.TagSSCCGL}},
	{match: "SSC", tags: []string{domain.TagSSCCGL}},
	{match: "IBPS", tags: []string{domain.TagIBPSPO, domain.TagIBPSClerk}},
	{match: "LIC", tags: []string{domain.TagLICAAO}},
	{match: "AFFAIRSCLOUD", tags: []string{domain.TagCurrentAffairs}},
}

// titleRule maps a substring of the title to a single extra tag
type titleRule struct {
	match string
	tag   string
}

var titleRules = []titleRule{
	{match: "bank", tag: domain.TagIBPSPO},
	{match: "agri", tag: domain.TagNABARDGradeA},
}

// RuleTags derives exam tags from the article's source and title alone.
// The result is never empty: articles nothing matches still reach the
// general current affairs audience.
func RuleTags(article *domain.Article) []string {
	var tags []string

	source := strings.ToUpper(article.Source)
	for _, rule := range sourceRules {
		if strings.Contains(source, rule.match) {
			tags = append(tags, rule.tags...)
		}
	}

	title := strings.ToLower(article.Title)
	for _, rule := range titleRules {
		if strings.Contains(title, rule.match) {
			tags = append(tags, rule.tag)
		}
	}

	if len(tags) == 0 {
		return []string{domain.DefaultTag}
	}
	return domain.UniqueTags(tags)
}

// Baseline builds the deterministic classification every article gets before
// any AI enhancement. It is complete on its own: when the AI is disabled or
// fails, the baseline is what subscribers see.
func Baseline(article *domain.Article) *domain.Classification {
	summary := article.OriginalSummary
	if strings.TrimSpace(summary) == "" {
		summary = fmt.Sprintf("%s - official update from %s. Check the original notification for complete details.",
			article.Title, article.Source)
	}

	return &domain.Classification{
		Summary: summary,
		KeyPoints: []string{
			"Published: " + article.Published.Format("02 Jan 2006"),
			"Source: " + article.Source,
			"Read the original notification for full details",
		},
		Tags:  RuleTags(article),
		State: domain.StateClassified,
	}
}
