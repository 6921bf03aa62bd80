package crawler

import (
	"regexp"
	"strings"
)

// delimiter matches whitespace (including Unicode separators) or Unicode punctuation
const delimiter = `[\s\v\p{Z}\x{FEFF}\p{P}]`

// RegionMatcher tests whether a title names one of a fixed list of regions
// as a whole token. Matching is case-insensitive.
type RegionMatcher struct {
	regions []string
	re      *regexp.Regexp
}

// NewRegionMatcher compiles a matcher for regions. Blank names are ignored;
// a matcher without regions matches nothing.
func NewRegionMatcher(regions []string) *RegionMatcher {
	m := &RegionMatcher{}

	quoted := make([]string, 0, len(regions))
	for _, r := range regions {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		m.regions = append(m.regions, r)
		quoted = append(quoted, regexp.QuoteMeta(r))
	}
	if len(quoted) == 0 {
		return m
	}

	// RE2 has no lookahead; consuming the trailing delimiter is equivalent for a boolean match
	m.re = regexp.MustCompile(`(?i)(?:^|` + delimiter + `)(?:` + strings.Join(quoted, "|") + `)(?:` + delimiter + `|$)`)
	return m
}

// Match reports whether title contains any configured region as a whole token
func (m *RegionMatcher) Match(title string) bool {
	if m == nil || m.re == nil {
		return false
	}
	return m.re.MatchString(title)
}

// Regions returns the configured region names
func (m *RegionMatcher) Regions() []string {
	return append([]string(nil), m.regions...)
}
