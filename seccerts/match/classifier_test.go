package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seccerts/seccerts/seccerts/certificate"
	"github.com/seccerts/seccerts/seccerts/nvd"
)

func dictionary() *nvd.CPEFeed {
	return &nvd.CPEFeed{
		DatasetVersion: "2026-08-01",
		Items: []nvd.CPEItem{
			{URI: "cpe:2.3:a:acme:securetoken:2.1:*:*:*:*:*:*:*", Title: "Acme SecureToken 2.1"},
			{URI: "cpe:2.3:a:acme:securetoken:3.0:*:*:*:*:*:*:*", Title: "Acme SecureToken 3.0"},
			{URI: "cpe:2.3:a:acme:securetoken:*:*:*:*:*:*:*:*", Title: "Acme SecureToken"},
			{URI: "cpe:2.3:a:acme:securetoken:2.1:*:*:*:*:windows:*:*", Title: "Acme SecureToken for Windows 2.1"},
			{URI: "cpe:2.3:a:othervendor:unrelatedthing:1.0:*:*:*:*:*:*:*", Title: "Unrelated Thing 1.0"},
		},
	}
}

func TestCanonicalName(t *testing.T) {
	cases := []struct {
		name   string
		vendor string
		want   string
	}{
		{"Acme SecureToken v2.1", "Acme", "securetoken"},
		{"SecureToken™ Version 3.0.4", "Acme Corp.", "securetoken"},
		{"Acme SecureToken (Java Card)", "Acme", "securetoken java card"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanonicalName(tc.name, tc.vendor), tc.name)
	}
}

func TestVersionTokens(t *testing.T) {
	assert.Equal(t, []string{"2.1"}, VersionTokens("SecureToken v2.1"))
	assert.Equal(t, []string{"3.0.4"}, VersionTokens("SecureToken Version 3.0.4"))
	assert.Equal(t, []string{"2.1", "1.3"}, VersionTokens("SecureToken 2.1 with applet 1.3"))
	assert.Empty(t, VersionTokens("SecureToken"))
}

func TestMatchByVendorAndVersion(t *testing.T) {
	clf := NewClassifier(dictionary(), 92, 99)

	cert := &certificate.Certificate{
		Digest: "aaaa", Scheme: certificate.SchemeCC,
		Name: "SecureToken 2.1", Vendor: "Acme",
	}
	matches := clf.Match(cert, "")

	require.NotEmpty(t, matches)
	assert.Equal(t, "cpe:2.3:a:acme:securetoken:2.1:*:*:*:*:*:*:*", matches[0].URI)
	assert.GreaterOrEqual(t, matches[0].Score, 92)
	assert.Equal(t, "2026-08-01", matches[0].DatasetVersion)
}

func TestMatchScoreIsCapped(t *testing.T) {
	clf := NewClassifier(dictionary(), 92, 1)

	cert := &certificate.Certificate{
		Digest: "aaaa", Scheme: certificate.SchemeCC,
		Name: "SecureToken 2.1", Vendor: "Acme",
	}
	matches := clf.Match(cert, "")
	assert.Len(t, matches, 1)
}

func TestMatchUnknownVendorYieldsNothing(t *testing.T) {
	clf := NewClassifier(dictionary(), 92, 99)

	cert := &certificate.Certificate{
		Digest: "aaaa", Scheme: certificate.SchemeCC,
		Name: "SecureToken 2.1", Vendor: "Nonexistent GmbH",
	}
	assert.Empty(t, clf.Match(cert, ""))
}

func TestMatchRelaxVersionAgainstVersionlessEntries(t *testing.T) {
	clf := NewClassifier(dictionary(), 92, 99)

	// version 9.9 is unknown to the dictionary, so only the version-less
	// entry can match, and only with a perfect score
	cert := &certificate.Certificate{
		Digest: "aaaa", Scheme: certificate.SchemeCC,
		Name: "SecureToken 9.9", Vendor: "Acme",
	}
	matches := clf.Match(cert, "")

	require.NotEmpty(t, matches)
	assert.Equal(t, "cpe:2.3:a:acme:securetoken:*:*:*:*:*:*:*:*", matches[0].URI)
	assert.Equal(t, 100, matches[0].Score)
}

func TestMatchRelaxTitleContainment(t *testing.T) {
	clf := NewClassifier(dictionary(), 92, 99)

	cert := &certificate.Certificate{
		Digest: "aaaa", Scheme: certificate.SchemeCC,
		Name: "Acme SecureToken Cryptographic Module 2.1", Vendor: "Acme",
	}
	matches := clf.Match(cert, "")

	require.NotEmpty(t, matches)
	assert.Equal(t, 100, matches[0].Score)
	assert.Equal(t, "item_name", matches[0].MatchedOn)
}

func TestMatchPlatformFilter(t *testing.T) {
	clf := NewClassifier(dictionary(), 92, 99)
	cert := &certificate.Certificate{
		Digest: "aaaa", Scheme: certificate.SchemeCC,
		Name: "SecureToken 2.1", Vendor: "Acme",
	}

	// text mentions linux only: the windows-bound candidate must go
	matches := clf.Match(cert, "runs on Linux kernels 5.x and later")
	for _, m := range matches {
		assert.NotContains(t, m.URI, "windows")
	}

	// no platform mention: no platform constraint at all
	matches = clf.Match(cert, "")
	uris := make([]string, 0, len(matches))
	for _, m := range matches {
		uris = append(uris, m.URI)
	}
	assert.Contains(t, uris, "cpe:2.3:a:acme:securetoken:2.1:*:*:*:*:windows:*:*")
}

func TestMatchEmptyNameYieldsNothing(t *testing.T) {
	clf := NewClassifier(dictionary(), 92, 99)
	cert := &certificate.Certificate{Digest: "aaaa", Name: "", Vendor: "Acme"}
	assert.Empty(t, clf.Match(cert, ""))
}
