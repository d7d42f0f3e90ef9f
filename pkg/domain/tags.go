package domain

// Exam tags form a fixed closed set, one per target exam plus the
// current-affairs catch-all. Tags on an article are a set; order is
// irrelevant and duplicates are not stored.
const (
	TagRBIGradeB      = "rbi_grade_b"
	TagSEBIGradeA     = "sebi_grade_a"
	TagNABARDGradeA   = "nabard_grade_a"
	TagNABARDGradeB   = "nabard_grade_b"
	TagUPSCCSE        = "upsc_cse"
	TagUPSCIES        = "upsc_ies"
	TagSSCCGL         = "ssc_cgl"
	TagIBPSPO         = "ibps_po"
	TagIBPSClerk      = "ibps_clerk"
	TagLICAAO         = "lic_aao"
	TagCurrentAffairs = "current_affairs"
)

// allTags lists the closed set in a stable presentation order.
var allTags = []string{
	TagRBIGradeB, TagSEBIGradeA, TagNABARDGradeA, TagNABARDGradeB,
	TagUPSCCSE, TagUPSCIES, TagSSCCGL, TagIBPSPO, TagIBPSClerk,
	TagLICAAO, TagCurrentAffairs,
}

// AllTags returns the closed exam tag set in stable order.
func AllTags() []string {
	out := make([]string, len(allTags))
	copy(out, allTags)
	return out
}

// DefaultTag is applied when no classification rule matches; an article must
// never end classification with zero tags.
const DefaultTag = TagCurrentAffairs

// ExamLabels maps tag codes to human-readable exam names for rendering.
var ExamLabels = map[string]string{
	TagRBIGradeB:      "RBI Grade B",
	TagSEBIGradeA:     "SEBI Grade A",
	TagNABARDGradeA:   "NABARD Grade A",
	TagNABARDGradeB:   "NABARD Grade B",
	TagUPSCCSE:        "UPSC CSE",
	TagUPSCIES:        "UPSC IES",
	TagSSCCGL:         "SSC CGL",
	TagIBPSPO:         "IBPS PO",
	TagIBPSClerk:      "IBPS Clerk",
	TagLICAAO:         "LIC AAO",
	TagCurrentAffairs: "Current Affairs",
}

// CategoryLabels maps coarse source categories to digest section headers.
var CategoryLabels = map[string]string{
	"rbi_circulars":      "RBI Updates",
	"government_schemes": "Government Schemes",
	"economy":            "Economy",
	"banking":            "Banking",
	"finance":            "Finance",
	"current_affairs":    "Current Affairs",
	"international":      "International",
	"science_tech":       "Science & Tech",
	"environment":        "Environment",
	"other":              "Other",
}

// ValidTag reports whether the tag belongs to the closed exam tag set.
func ValidTag(tag string) bool {
	_, ok := ExamLabels[tag]
	return ok
}

// UniqueTags returns the set union of the given tag lists, preserving the
// first-seen order and dropping values outside the closed tag set.
func UniqueTags(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, tag := range list {
			if !ValidTag(tag) {
				continue
			}
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			out = append(out, tag)
		}
	}
	return out
}
