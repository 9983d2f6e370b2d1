/*
Package extract runs the compiled rule set over a certificate's artifact text
and assembles the resulting feature record.
*/
package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/seccerts/seccerts/internal/log"
	"github.com/seccerts/seccerts/seccerts/certificate"
	"github.com/seccerts/seccerts/seccerts/rules"
)

// Options tune the scan without changing rule semantics.
type Options struct {
	// IgnoreFirstPage drops occurrences sighted on page 0, which on most
	// schemes is a cover page full of boilerplate identifiers.
	IgnoreFirstPage bool

	// MinimalTokenLength discards matched literals shorter than this many
	// runes. Zero disables the filter.
	MinimalTokenLength int
}

type Extractor struct {
	rules *rules.RuleSet
	opts  Options
}

func New(rs *rules.RuleSet, opts Options) *Extractor {
	return &Extractor{rules: rs, opts: opts}
}

var sarComponentRE = regexp.MustCompile(`^([A-Z]{3}_[A-Z]{3,4})(?:\.(\d))?$`)

// Extract scans the given per-role texts and returns the certificate's
// feature record. Roles with no text are skipped; a certificate with no
// extractable text at all yields a record with empty hits.
func (e *Extractor) Extract(cert *certificate.Certificate, texts map[certificate.Role]string) *certificate.FeatureRecord {
	record := &certificate.FeatureRecord{
		RuleSetVersion: e.rules.Version(),
		Hits:           make(map[string]map[string]map[string][]certificate.Occurrence),
	}

	for _, role := range certificate.AllRoles {
		text, ok := texts[role]
		if !ok || text == "" {
			continue
		}
		e.scanRole(cert, role, text, record)
	}

	if len(record.Hits) == 0 {
		record.Hits = nil
	}

	record.ClaimedEAL = promoteClaimedEAL(record.Hits)
	record.ImpliedSARs = impliedSARs(record.ClaimedEAL, record.Hits)

	log.Tracef("extracted features for %s: %d categories, claimed_eal=%q", cert.Digest, len(record.Hits), record.ClaimedEAL)
	return record
}

func (e *Extractor) scanRole(cert *certificate.Certificate, role certificate.Role, text string, record *certificate.FeatureRecord) {
	pageStarts := pageOffsets(text)
	result := e.rules.ScanScheme(text, cert.Scheme)

	for category, catHits := range result {
		for ruleName, ruleHits := range catHits {
			for literal, positions := range ruleHits {
				if e.opts.MinimalTokenLength > 0 && len([]rune(literal)) < e.opts.MinimalTokenLength {
					continue
				}
				if category == "rules_cert_id" && isSelfReference(literal, cert.SchemeID) {
					continue
				}
				for _, pos := range positions {
					page := pageOf(pageStarts, pos)
					if e.opts.IgnoreFirstPage && page == 0 {
						continue
					}
					addHit(record, category, ruleName, literal, certificate.Occurrence{Role: role, Page: page})
				}
			}
		}
	}
}

func addHit(record *certificate.FeatureRecord, category, rule, literal string, occ certificate.Occurrence) {
	catHits, ok := record.Hits[category]
	if !ok {
		catHits = make(map[string]map[string][]certificate.Occurrence)
		record.Hits[category] = catHits
	}
	ruleHits, ok := catHits[rule]
	if !ok {
		ruleHits = make(map[string][]certificate.Occurrence)
		catHits[rule] = ruleHits
	}
	ruleHits[literal] = append(ruleHits[literal], occ)
}

// isSelfReference compares a matched cert-ID literal against the
// certificate's own scheme ID, ignoring whitespace differences.
func isSelfReference(literal, schemeID string) bool {
	return squeeze(literal) == squeeze(schemeID)
}

func squeeze(s string) string {
	return strings.Join(strings.Fields(s), "")
}

// pageOffsets returns the starting byte offset of each form-feed-delimited
// page, or nil when the text carries no page breaks at all.
func pageOffsets(text string) []int {
	if !strings.Contains(text, "\f") {
		return nil
	}
	starts := []int{0}
	for i, r := range text {
		if r == '\f' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// pageOf maps a byte offset to its page index, or -1 when the text has no
// page structure.
func pageOf(starts []int, pos int) int {
	if starts == nil {
		return -1
	}
	return sort.SearchInts(starts, pos+1) - 1
}

// promoteClaimedEAL selects the highest valid EAL literal among security
// level hits, preserving the augmentation suffix. Ties between "EALn" and
// "EALn+" resolve to the augmented form.
func promoteClaimedEAL(hits map[string]map[string]map[string][]certificate.Occurrence) string {
	levelHits, ok := hits["rules_security_level"]
	if !ok {
		return ""
	}

	best := ""
	bestLevel := 0
	bestPlus := false
	for _, ruleHits := range levelHits {
		for literal := range ruleHits {
			m := rules.EALRE.FindStringSubmatch(strings.TrimSpace(literal))
			if m == nil {
				continue
			}
			level, _ := strconv.Atoi(m[1])
			plus := m[2] == "+"
			if level > bestLevel || (level == bestLevel && plus && !bestPlus) {
				bestLevel = level
				bestPlus = plus
				best = "EAL" + m[1] + m[2]
			}
		}
	}
	return best
}

// impliedSARs unions the SARs implied by the claimed EAL with explicitly
// matched assurance components, keeping the highest level per family. Output
// is sorted by family for stable serialization.
func impliedSARs(claimedEAL string, hits map[string]map[string]map[string][]certificate.Occurrence) []certificate.SAR {
	byFamily := make(map[string]int)

	if claimedEAL != "" {
		base := strings.TrimSuffix(claimedEAL, "+")
		for _, sar := range rules.SARsImpliedFromEAL[base] {
			if sar.Level > byFamily[sar.Family] {
				byFamily[sar.Family] = sar.Level
			}
		}
	}

	if sarHits, ok := hits["rules_security_assurance_components"]; ok {
		for _, ruleHits := range sarHits {
			for literal := range ruleHits {
				m := sarComponentRE.FindStringSubmatch(strings.TrimSpace(literal))
				if m == nil {
					continue
				}
				level := 0
				if m[2] != "" {
					level, _ = strconv.Atoi(m[2])
				}
				if level > byFamily[m[1]] {
					byFamily[m[1]] = level
				} else if _, seen := byFamily[m[1]]; !seen {
					byFamily[m[1]] = level
				}
			}
		}
	}

	if len(byFamily) == 0 {
		return nil
	}

	families := make([]string, 0, len(byFamily))
	for family := range byFamily {
		families = append(families, family)
	}
	sort.Strings(families)

	out := make([]certificate.SAR, 0, len(families))
	for _, family := range families {
		out = append(out, certificate.SAR{Family: family, Level: byFamily[family]})
	}
	return out
}
