/*
Package match links certificates to CPE dictionary entries by fuzzy name
similarity and expands the retained CPEs into related CVEs.
*/
package match

import (
	"sort"
	"strings"

	"github.com/facebookincubator/nvdtools/wfn"
	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

	"github.com/seccerts/seccerts/internal/log"
	"github.com/seccerts/seccerts/seccerts/certificate"
	"github.com/seccerts/seccerts/seccerts/nvd"
	"github.com/seccerts/seccerts/seccerts/rules"
)

// minItemNameLength filters out dictionary products whose name is too short
// to score meaningfully ("ip", "os", ...).
const minItemNameLength = 3

type candidate struct {
	uri      string
	vendor   string
	version  string
	itemName string // product with underscores flattened to spaces
	title    string
}

// Classifier scores certificates against the CPE dictionary. Built once per
// dataset refresh; safe for concurrent use afterwards.
type Classifier struct {
	threshold      int
	maxMatches     int
	datasetVersion string

	vendors            map[string]bool
	vendorToVersions   map[string]map[string]bool
	vendorVersionToCPE map[string][]candidate
	versionless        map[string][]candidate // vendor -> candidates with ANY/NA version
}

func NewClassifier(feed *nvd.CPEFeed, threshold, maxMatches int) *Classifier {
	c := &Classifier{
		threshold:          threshold,
		maxMatches:         maxMatches,
		datasetVersion:     feed.DatasetVersion,
		vendors:            make(map[string]bool),
		vendorToVersions:   make(map[string]map[string]bool),
		vendorVersionToCPE: make(map[string][]candidate),
		versionless:        make(map[string][]candidate),
	}

	for _, item := range feed.Items {
		attrs, err := item.Attributes()
		if err != nil {
			log.Debugf("skipping malformed cpe uri %q: %v", item.URI, err)
			continue
		}

		// unbinding leaves WFN escapes in place ("2.1" arrives as `2\.1`),
		// strip them so lookups key on the literal values
		cand := candidate{
			uri:      item.URI,
			vendor:   strings.ToLower(wfn.StripSlashes(attrs.Vendor)),
			version:  strings.ToLower(wfn.StripSlashes(attrs.Version)),
			itemName: strings.ReplaceAll(strings.ToLower(wfn.StripSlashes(attrs.Product)), "_", " "),
			title:    item.Title,
		}
		if len(cand.itemName) <= minItemNameLength {
			continue
		}

		c.vendors[cand.vendor] = true
		versions, ok := c.vendorToVersions[cand.vendor]
		if !ok {
			versions = make(map[string]bool)
			c.vendorToVersions[cand.vendor] = versions
		}

		if cand.version == "" || cand.version == "*" || cand.version == "-" {
			c.versionless[cand.vendor] = append(c.versionless[cand.vendor], cand)
			continue
		}
		versions[cand.version] = true
		key := cand.vendor + "\x00" + cand.version
		c.vendorVersionToCPE[key] = append(c.vendorVersionToCPE[key], cand)
	}

	return c
}

type scored struct {
	candidate
	score     int
	matchedOn string
}

// Match returns the retained CPE matches for one certificate. The artifact
// text, when available, contributes the platform constraint.
func (c *Classifier) Match(cert *certificate.Certificate, text string) []certificate.CPEMatch {
	canonical := CanonicalName(cert.Name, cert.Vendor)
	if canonical == "" {
		return nil
	}

	vendors := c.candidateVendors(cert.Vendor)
	versions := VersionTokens(cert.Name)
	platforms := mentionedPlatforms(cert.Name + " " + text)
	spToken := servicePackToken(strings.ToLower(cert.Name))

	results := c.scoreCandidates(canonical, c.versionedCandidates(vendors, versions), c.threshold)
	if len(results) == 0 {
		// relax version: score against version-less dictionary entries, but
		// only a perfect score may stand in for a version match
		results = c.scoreCandidates(canonical, c.versionlessCandidates(vendors), 100)
	}
	if len(results) == 0 {
		results = c.relaxTitle(canonical, vendors)
	}

	results = filterPlatforms(results, platforms)
	results = narrowServicePack(results, spToken)

	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].uri < results[j].uri
	})
	if len(results) > c.maxMatches {
		results = results[:c.maxMatches]
	}

	out := make([]certificate.CPEMatch, 0, len(results))
	for _, r := range results {
		out = append(out, certificate.CPEMatch{
			URI:            r.uri,
			Score:          r.score,
			MatchedOn:      r.matchedOn,
			DatasetVersion: c.datasetVersion,
		})
	}
	return out
}

// candidateVendors resolves the certificate's manufacturer to known
// dictionary vendors by token and by the squeezed full name.
func (c *Classifier) candidateVendors(vendor string) []string {
	normalized := nonAlnumRE.ReplaceAllString(strings.ToLower(vendor), " ")
	seen := make(map[string]bool)
	var out []string

	add := func(v string) {
		if v != "" && c.vendors[v] && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}

	tokens := strings.Fields(normalized)
	add(strings.Join(tokens, "_"))
	add(strings.Join(tokens, ""))
	for _, tok := range tokens {
		add(tok)
	}
	sort.Strings(out)
	return out
}

func (c *Classifier) versionedCandidates(vendors, versions []string) []candidate {
	var out []candidate
	for _, vendor := range vendors {
		known := c.vendorToVersions[vendor]
		for _, version := range versions {
			if !known[version] {
				continue
			}
			out = append(out, c.vendorVersionToCPE[vendor+"\x00"+version]...)
		}
	}
	return out
}

func (c *Classifier) versionlessCandidates(vendors []string) []candidate {
	var out []candidate
	for _, vendor := range vendors {
		out = append(out, c.versionless[vendor]...)
	}
	return out
}

func (c *Classifier) scoreCandidates(canonical string, candidates []candidate, threshold int) []scored {
	var out []scored
	for _, cand := range candidates {
		score, matchedOn := scoreOne(canonical, cand)
		if score >= threshold {
			out = append(out, scored{candidate: cand, score: score, matchedOn: matchedOn})
		}
	}
	return out
}

func scoreOne(canonical string, cand candidate) (int, string) {
	best := fuzzy.TokenSortRatio(canonical, cand.itemName)
	matchedOn := "item_name"
	if cand.title != "" {
		canonicalTitle := CanonicalName(cand.title, cand.vendor)
		if s := fuzzy.TokenSortRatio(canonical, canonicalTitle); s > best {
			best = s
			matchedOn = "title"
		}
	}
	return best, matchedOn
}

// relaxTitle is the last-resort pass: an exact item-name containment in the
// canonical certificate name counts as a perfect match.
func (c *Classifier) relaxTitle(canonical string, vendors []string) []scored {
	var out []scored
	padded := " " + canonical + " "
	consider := func(cands []candidate) {
		for _, cand := range cands {
			if strings.Contains(padded, " "+cand.itemName+" ") {
				out = append(out, scored{candidate: cand, score: 100, matchedOn: "item_name"})
			}
		}
	}
	for _, vendor := range vendors {
		for version := range c.vendorToVersions[vendor] {
			consider(c.vendorVersionToCPE[vendor+"\x00"+version])
		}
		consider(c.versionless[vendor])
	}
	return out
}

// filterPlatforms drops candidates bound to a platform the certificate never
// mentions. Platform-neutral candidates always pass.
func filterPlatforms(results []scored, mentioned map[string]bool) []scored {
	if len(mentioned) == 0 {
		return results
	}
	out := results[:0]
	for _, r := range results {
		platform := candidatePlatform(r.candidate)
		if platform == "" || mentioned[platform] {
			out = append(out, r)
		}
	}
	return out
}

func candidatePlatform(cand candidate) string {
	haystack := cand.uri + " " + cand.title
	// fixed probe order so ties resolve the same way every run
	for _, platform := range []string{"linux", "mac_os", "windows", "android", "ios"} {
		if rules.PlatformRegexes[platform].MatchString(haystack) {
			return platform
		}
	}
	return ""
}

// narrowServicePack keeps only candidates consistent with the certificate's
// service-pack/release token when one is present on both sides.
func narrowServicePack(results []scored, spToken string) []scored {
	if spToken == "" {
		return results
	}
	out := results[:0]
	for _, r := range results {
		candToken := servicePackToken(strings.ToLower(r.title + " " + r.version))
		if candToken == "" || candToken == spToken {
			out = append(out, r)
		}
	}
	return out
}
