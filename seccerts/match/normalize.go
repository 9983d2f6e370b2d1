package match

import (
	"regexp"
	"strings"

	"github.com/seccerts/seccerts/seccerts/rules"
)

var (
	trademarkRE = regexp.MustCompile(`[™®©]`)
	nonAlnumRE  = regexp.MustCompile(`[^a-z0-9 ]`)
	// longest alternative first: leftmost-first matching would otherwise
	// strip only the "v" out of "version"
	versionLeadRE = regexp.MustCompile(`(?i)^(?:version|ver\.?|v)\s?`)
)

// CanonicalName maps a certificate name to the canonical form used for CPE
// scoring: lowercased, trademark symbols stripped, version tokens removed,
// non-alphanumerics flattened to spaces, and the manufacturer tokens dropped.
func CanonicalName(name, vendor string) string {
	s := strings.ToLower(name)
	s = trademarkRE.ReplaceAllString(s, "")
	s = rules.VersionRE.ReplaceAllString(s, " ")
	s = nonAlnumRE.ReplaceAllString(s, " ")

	vendorTokens := make(map[string]bool)
	for _, tok := range strings.Fields(nonAlnumRE.ReplaceAllString(strings.ToLower(vendor), " ")) {
		vendorTokens[tok] = true
	}

	var kept []string
	for _, tok := range strings.Fields(s) {
		if vendorTokens[tok] {
			continue
		}
		kept = append(kept, tok)
	}
	return strings.Join(kept, " ")
}

// VersionTokens extracts the normalized version tokens found in a
// certificate name, e.g. "v2.1" and "version 3.0.4" both yield bare digit
// groups.
func VersionTokens(name string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, raw := range rules.VersionRE.FindAllString(name, -1) {
		tok := strings.TrimSpace(versionLeadRE.ReplaceAllString(strings.TrimSpace(raw), ""))
		tok = strings.TrimPrefix(strings.ToLower(tok), "v")
		if tok == "" || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}

// mentionedPlatforms reports which known platforms the given text names.
func mentionedPlatforms(text string) map[string]bool {
	out := make(map[string]bool)
	for platform, re := range rules.PlatformRegexes {
		if re.MatchString(text) {
			out[platform] = true
		}
	}
	return out
}

// servicePackToken extracts a normalized service-pack or release token from
// the name, e.g. "SP2" or "Release 4", squeezed to "sp2" / "r4".
func servicePackToken(name string) string {
	if m := rules.ServicePackRE.FindString(name); m != "" {
		return normalizeSPToken(m)
	}
	if m := rules.ReleaseRE.FindString(name); m != "" {
		return normalizeSPToken(m)
	}
	return ""
}

func normalizeSPToken(token string) string {
	token = strings.ToLower(token)
	token = strings.ReplaceAll(token, "service pack", "sp")
	token = strings.ReplaceAll(token, "release", "r")
	return strings.ReplaceAll(token, " ", "")
}
