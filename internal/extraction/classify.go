package extraction

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/capitalize-ai/legal-drafting/internal/model"
)

// docTypeRule maps keywords to a document type. Rules are checked in order
// and the rule with the most keyword hits wins.
type docTypeRule struct {
	docType  string
	keywords []string
}

var docTypeRules = []docTypeRule{
	{"lease", []string{"lease", "landlord", "tenant", "lessee", "lessor", "premises", "rent"}},
	{"nda", []string{"non-disclosure", "nondisclosure", "confidential information", "receiving party", "disclosing party"}},
	{"employment_agreement", []string{"employment", "employee", "employer", "salary", "job title"}},
	{"service_agreement", []string{"services agreement", "service provider", "statement of work", "contractor"}},
	{"sale_agreement", []string{"purchase price", "buyer", "seller", "bill of sale"}},
	{"power_of_attorney", []string{"power of attorney", "attorney-in-fact", "principal"}},
	{"legal_notice", []string{"legal notice", "notice is hereby given", "hereby notify", "demand"}},
	{"will", []string{"last will", "testament", "executor", "bequeath"}},
	{"loan_agreement", []string{"loan", "borrower", "lender", "principal amount", "interest rate"}},
}

var jurisdictions = []string{
	"Alabama", "Alaska", "Arizona", "Arkansas", "California", "Colorado", "Connecticut", "Delaware",
	"Florida", "Georgia", "Hawaii", "Idaho", "Illinois", "Indiana", "Iowa", "Kansas", "Kentucky",
	"Louisiana", "Maine", "Maryland", "Massachusetts", "Michigan", "Minnesota", "Mississippi",
	"Missouri", "Montana", "Nebraska", "Nevada", "New Hampshire", "New Jersey", "New Mexico",
	"New York", "North Carolina", "North Dakota", "Ohio", "Oklahoma", "Oregon", "Pennsylvania",
	"Rhode Island", "South Carolina", "South Dakota", "Tennessee", "Texas", "Utah", "Vermont",
	"Virginia", "Washington", "West Virginia", "Wisconsin", "Wyoming",
	"England and Wales", "Scotland", "Ontario", "British Columbia", "India", "Singapore",
}

var jurisdictionPatterns = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(jurisdictions))
	for i, j := range jurisdictions {
		out[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(j) + `\b`)
	}
	return out
}()

var governingLawPattern = regexp.MustCompile(`(?i)laws of (?:the )?(?:state of |commonwealth of |province of )?([A-Z][A-Za-z]+(?: (?:and )?[A-Z][A-Za-z]+){0,2})`)

// classifyDocType returns the best matching document type, or "".
func classifyDocType(text string) string {
	lower := strings.ToLower(text)
	best, bestHits := "", 0
	for _, rule := range docTypeRules {
		hits := 0
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = rule.docType, hits
		}
	}
	return best
}

// classifyJurisdiction prefers an explicit governing-law clause and falls
// back to the first known jurisdiction named in the text.
func classifyJurisdiction(text string) string {
	if m := governingLawPattern.FindStringSubmatch(text); m != nil {
		for _, j := range jurisdictions {
			if strings.HasPrefix(m[1], j) {
				return j
			}
		}
	}
	for i, re := range jurisdictionPatterns {
		if re.MatchString(text) {
			return jurisdictions[i]
		}
	}
	return ""
}

// similarityTags builds match tags from classification results.
func similarityTags(docType, jurisdiction string) []string {
	var tags []string
	if docType != "" {
		tags = append(tags, strings.ReplaceAll(docType, "_", " "))
		for _, rule := range docTypeRules {
			if rule.docType == docType {
				tags = append(tags, rule.keywords[0])
				break
			}
		}
	}
	if jurisdiction != "" {
		tags = append(tags, strings.ToLower(jurisdiction))
	}
	return dedupeTags(tags)
}

func dedupeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// headingTitle returns the document's first heading: a markdown heading or
// an all-caps line near the top.
func headingTitle(text string) string {
	checked := 0
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			if title := strings.TrimSpace(strings.TrimLeft(line, "#")); title != "" {
				return title
			}
		}
		if len(line) <= 100 && strings.ToUpper(line) == line && strings.ToLower(line) != line {
			return model.LabelFromKey(strings.ToLower(line))
		}
		checked++
		if checked >= 5 {
			break
		}
	}
	return ""
}

// filenameTitle turns "residential_lease-v2.docx" into "Residential Lease V2".
func filenameTitle(filename string) string {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." {
		return ""
	}
	return model.LabelFromKey(base)
}
