package rules

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seccerts/seccerts/seccerts/certificate"
)

func TestDefaultCompiles(t *testing.T) {
	rs := Default()
	require.NotNil(t, rs)
	assert.Len(t, rs.Version(), 16)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{16}$`), rs.Version())
}

func TestScanFindsCertIDs(t *testing.T) {
	rs := Default()

	text := "This TOE references BSI-DSZ-CC-0999-2017 and (ANSSI-CC-2019/12) in its report."
	result := rs.ScanScheme(text, certificate.SchemeCC)

	hits := result["rules_cert_id"]
	require.NotNil(t, hits)

	assert.Contains(t, hits["cc_cert_id_de"], "BSI-DSZ-CC-0999-2017")
	assert.Contains(t, hits["cc_cert_id_fr"], "ANSSI-CC-2019/12")
}

func TestScanRespectsTokenBoundaries(t *testing.T) {
	rs := Default()

	cases := []struct {
		name    string
		text    string
		matched bool
	}{
		{name: "standalone token", text: "uses DES in CBC mode", matched: true},
		{name: "token inside word", text: "uses DESIGNATED modes", matched: false},
		{name: "token at start", text: "DES is weak", matched: true},
		{name: "token at end", text: "legacy use of DES", matched: true},
		{name: "token in parens", text: "cipher (DES) enabled", matched: true},
		{name: "token after page break", text: "first page\fDES on the next page", matched: true},
		{name: "token before page break", text: "page ends with DES\fsecond page", matched: true},
		{name: "token after newline", text: "first line\nDES on the next", matched: true},
		{name: "token after tab", text: "column\tDES", matched: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := rs.ScanScheme(tc.text, certificate.SchemeCC)
			hits := result["symmetric_crypto"]["des"]
			if tc.matched {
				assert.Contains(t, hits, "DES")
			} else {
				assert.NotContains(t, hits, "DES")
			}
		})
	}
}

func TestScanIsDeterministic(t *testing.T) {
	rs := Default()
	text := "BSI-DSZ-CC-1091-2018 uses AES-256 in GCM mode with SHA-256 and EAL4+ assurance, see CVE-2021-12345."

	first := rs.ScanScheme(text, certificate.SchemeCC)
	second := rs.ScanScheme(text, certificate.SchemeCC)

	assert.Equal(t, first, second)
}

func TestScanRecordsPositions(t *testing.T) {
	rs := Default()
	text := "AES here, then AES again"

	result := rs.ScanScheme(text, certificate.SchemeCC)
	positions := result["symmetric_crypto"]["aes"]["AES"]

	require.Len(t, positions, 2)
	assert.Equal(t, 0, positions[0])
	assert.Equal(t, 15, positions[1])
}

func TestFIPSCategoriesDiffer(t *testing.T) {
	rs := Default()

	cc := rs.Categories(certificate.SchemeCC)
	fips := rs.Categories(certificate.SchemeFIPS)

	assert.Contains(t, cc, "rules_security_assurance_components")
	assert.NotContains(t, fips, "rules_security_assurance_components")
	assert.Contains(t, fips, "rules_fips_cert_id")
}

func TestCompileRejectsUndefinedCategory(t *testing.T) {
	src := []byte(`
cc_rules:
  - nonexistent
categories:
  something:
    rules:
      a: ["b"]
`)
	_, err := Compile(src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nonexistent")
}

func TestVersionTracksContent(t *testing.T) {
	a, err := Compile([]byte("categories:\n  x:\n    rules:\n      r: [\"foo\"]\n"))
	require.NoError(t, err)
	b, err := Compile([]byte("categories:\n  x:\n    rules:\n      r: [\"bar\"]\n"))
	require.NoError(t, err)

	assert.NotEqual(t, a.Version(), b.Version())
}

func TestSARsImpliedFromEAL(t *testing.T) {
	// spot-check the exact contents for every level
	expectedSizes := map[string]int{
		"EAL1": 13,
		"EAL2": 18,
		"EAL3": 21,
		"EAL4": 24,
		"EAL5": 25,
		"EAL6": 26,
		"EAL7": 26,
	}
	for level, size := range expectedSizes {
		assert.Len(t, SARsImpliedFromEAL[level], size, level)
	}

	assert.Contains(t, SARsImpliedFromEAL["EAL4"], certificate.SAR{Family: "ADV_ARC", Level: 1})
	assert.Contains(t, SARsImpliedFromEAL["EAL4"], certificate.SAR{Family: "ADV_FSP", Level: 4})
	assert.Contains(t, SARsImpliedFromEAL["EAL4"], certificate.SAR{Family: "AVA_VAN", Level: 3})
	assert.Contains(t, SARsImpliedFromEAL["EAL1"], certificate.SAR{Family: "AVA_VAN", Level: 1})
	assert.Contains(t, SARsImpliedFromEAL["EAL7"], certificate.SAR{Family: "ATE_IND", Level: 3})
	assert.NotContains(t, SARsImpliedFromEAL["EAL1"], certificate.SAR{Family: "ADV_ARC", Level: 1})
}
