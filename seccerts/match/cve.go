package match

import (
	"sort"
	"strings"

	"github.com/facebookincubator/nvdtools/wfn"
	goversion "github.com/hashicorp/go-version"

	"github.com/seccerts/seccerts/internal/cvss"
	"github.com/seccerts/seccerts/internal/log"
	"github.com/seccerts/seccerts/seccerts/certificate"
	"github.com/seccerts/seccerts/seccerts/nvd"
)

// CVEMatcher expands retained CPE matches into the set of CVEs whose
// vulnerable configurations cover them.
type CVEMatcher struct {
	datasetVersion string
	cves           []nvd.CVEItem
	entries        map[string]nvd.CPEMatchEntry // criteria URI -> expansion entry
}

func NewCVEMatcher(cveFeed *nvd.CVEFeed, matchFeed *nvd.CPEMatchFeed) *CVEMatcher {
	m := &CVEMatcher{
		datasetVersion: cveFeed.DatasetVersion,
		cves:           cveFeed.Items,
		entries:        make(map[string]nvd.CPEMatchEntry),
	}
	if matchFeed != nil {
		for _, entry := range matchFeed.Entries {
			m.entries[entry.Criteria] = entry
		}
	}
	return m
}

// RelatedCVEs returns the deduplicated CVEs covering any of the given CPE
// matches, sorted by CVE ID.
func (m *CVEMatcher) RelatedCVEs(cpes []certificate.CPEMatch) []certificate.CVEMatch {
	if len(cpes) == 0 {
		return nil
	}

	type parsedCPE struct {
		uri   string
		attrs *wfn.Attributes
	}
	parsed := make([]parsedCPE, 0, len(cpes))
	for _, c := range cpes {
		attrs, err := wfn.UnbindFmtString(c.URI)
		if err != nil {
			log.Debugf("skipping malformed matched cpe %q: %v", c.URI, err)
			continue
		}
		parsed = append(parsed, parsedCPE{uri: c.URI, attrs: attrs})
	}

	found := make(map[string]certificate.CVEMatch)
	for _, cve := range m.cves {
		for _, criteria := range cve.Criteria {
			entry, ok := m.entries[criteria]
			if !ok {
				// criteria without expansion data still constrain by their own attributes
				entry = nvd.CPEMatchEntry{Criteria: criteria}
			}
			for _, p := range parsed {
				if !m.covers(entry, p.uri, p.attrs) {
					continue
				}
				if _, seen := found[cve.ID]; !seen {
					match := certificate.CVEMatch{
						ID:             cve.ID,
						ViaCPE:         p.uri,
						BaseScore:      baseScore(cve),
						DatasetVersion: m.datasetVersion,
					}
					if match.BaseScore > 0 {
						match.Severity = string(cvss.SeverityFromBaseScore(match.BaseScore))
					}
					found[cve.ID] = match
				}
				break
			}
		}
	}

	if len(found) == 0 {
		return nil
	}
	out := make([]certificate.CVEMatch, 0, len(found))
	for _, match := range found {
		out = append(out, match)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// baseScore prefers the score computed from the CVSS vector over the one
// shipped in the feed.
func baseScore(cve nvd.CVEItem) float64 {
	if cve.Vector != "" {
		if metrics, err := cvss.ParseMetricsFromVector(cve.Vector); err == nil {
			return metrics.BaseScore
		}
		log.Debugf("unable to parse cvss vector for %s, falling back to the feed score", cve.ID)
	}
	return cve.BaseScore
}

// covers reports whether one match entry's vulnerable configuration includes
// the given concrete CPE.
func (m *CVEMatcher) covers(entry nvd.CPEMatchEntry, uri string, attrs *wfn.Attributes) bool {
	for _, known := range entry.Matches {
		if known == uri {
			return true
		}
	}

	criteria, err := wfn.UnbindFmtString(entry.Criteria)
	if err != nil {
		return false
	}
	if !attrEqual(criteria.Part, attrs.Part) ||
		!attrEqual(criteria.Vendor, attrs.Vendor) ||
		!attrEqual(criteria.Product, attrs.Product) {
		return false
	}

	if criteria.Version != wfn.Any && criteria.Version != wfn.NA {
		return strings.EqualFold(criteria.Version, attrs.Version)
	}
	return versionInRange(attrs.Version, entry)
}

func attrEqual(criteria, value string) bool {
	if criteria == wfn.Any || value == wfn.Any {
		return true
	}
	return strings.EqualFold(criteria, value)
}

// versionInRange checks the NVD range bounds. A version that does not parse
// only matches an unbounded entry; an unparsable bound is ignored.
func versionInRange(raw string, entry nvd.CPEMatchEntry) bool {
	bounded := entry.VersionStartIncluding != "" || entry.VersionStartExcluding != "" ||
		entry.VersionEndIncluding != "" || entry.VersionEndExcluding != ""
	if !bounded {
		return true
	}
	if raw == wfn.Any || raw == wfn.NA {
		return false
	}

	// the attribute still carries WFN escapes (`2\.1`), which go-version rejects
	v, err := goversion.NewVersion(wfn.StripSlashes(raw))
	if err != nil {
		return false
	}

	if b, err := goversion.NewVersion(entry.VersionStartIncluding); entry.VersionStartIncluding != "" && err == nil && v.LessThan(b) {
		return false
	}
	if b, err := goversion.NewVersion(entry.VersionStartExcluding); entry.VersionStartExcluding != "" && err == nil && v.LessThanOrEqual(b) {
		return false
	}
	if b, err := goversion.NewVersion(entry.VersionEndIncluding); entry.VersionEndIncluding != "" && err == nil && v.GreaterThan(b) {
		return false
	}
	if b, err := goversion.NewVersion(entry.VersionEndExcluding); entry.VersionEndExcluding != "" && err == nil && v.GreaterThanOrEqual(b) {
		return false
	}
	return true
}
