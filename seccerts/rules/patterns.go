package rules

import "regexp"

// Standalone patterns used outside of full-document scans (name
// canonicalization, CPE narrowing). Compiled once, immutable.
var (
	ServicePackRE = regexp.MustCompile(`(?i)(?:sp|service pack)\s{0,1}\d{1,2}`)
	ReleaseRE     = regexp.MustCompile(`(?i)(?:r|release)\s{0,1}\d{1,2}`)

	// VersionRE picks version tokens out of certificate names.
	VersionRE = regexp.MustCompile(`(?i)(?:v|ver\.?|version)?\s?\d+(?:\.\d+)+|\bv\d+\b`)

	PlatformRegexes = map[string]*regexp.Regexp{
		"linux":   regexp.MustCompile(`(?i)linux`),
		"mac_os":  regexp.MustCompile(`(?i)mac\s?os\s?x?`),
		"windows": regexp.MustCompile(`(?i)windows`),
		"android": regexp.MustCompile(`(?i)android`),
		"ios":     regexp.MustCompile(`(?i)(ios|iphone os)`),
	}

	// EALRE validates a promoted security-level hit.
	EALRE = regexp.MustCompile(`^EAL ?([1-7])(\+?)$`)
)
