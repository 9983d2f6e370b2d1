package refgraph

import (
	"strings"

	"github.com/seccerts/seccerts/seccerts/certificate"
)

// Policy selects which artifact roles' cert-ID hits are admitted as edges
// when building the reference graph for CC certificates.
type Policy int

const (
	PolicyUnknown Policy = iota
	PolicyCertOnly
	PolicySTOnly
	PolicyBoth
)

var PolicyOptions = []Policy{
	PolicyCertOnly,
	PolicySTOnly,
	PolicyBoth,
}

var policyStrings = map[Policy]string{
	PolicyCertOnly: "cert-only",
	PolicySTOnly:   "st-only",
	PolicyBoth:     "both",
}

func (p Policy) String() string {
	if s, ok := policyStrings[p]; ok {
		return s
	}
	return "unknown"
}

func ParsePolicy(value string) Policy {
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.ReplaceAll(value, "_", "-")
	for p, s := range policyStrings {
		if s == value {
			return p
		}
	}
	return PolicyUnknown
}

// Admits reports whether cert-ID hits sighted in the given role contribute
// edges under this policy.
func (p Policy) Admits(role certificate.Role) bool {
	switch p {
	case PolicyCertOnly:
		return role == certificate.RoleReport
	case PolicySTOnly:
		return role == certificate.RoleTarget
	case PolicyBoth:
		return role == certificate.RoleReport || role == certificate.RoleTarget
	}
	return false
}
