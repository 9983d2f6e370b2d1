package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seccerts/seccerts/seccerts/certificate"
	"github.com/seccerts/seccerts/seccerts/rules"
)

func ccCert() *certificate.Certificate {
	return &certificate.Certificate{
		Digest:   "a1b2c3d4e5f60718",
		Scheme:   certificate.SchemeCC,
		SchemeID: "BSI-DSZ-CC-1091-2018",
		Name:     "Some Product",
	}
}

func TestExtractRecordsRoleAndPage(t *testing.T) {
	e := New(rules.Default(), Options{})
	cert := ccCert()

	texts := map[certificate.Role]string{
		certificate.RoleReport: "cover page\fThe TOE uses AES encryption.\fAES again later.",
	}
	record := e.Extract(cert, texts)

	require.NotNil(t, record)
	assert.Equal(t, rules.Default().Version(), record.RuleSetVersion)

	occs := record.Hits["symmetric_crypto"]["aes"]["AES"]
	require.Len(t, occs, 2)
	assert.Equal(t, certificate.Occurrence{Role: certificate.RoleReport, Page: 1}, occs[0])
	assert.Equal(t, certificate.Occurrence{Role: certificate.RoleReport, Page: 2}, occs[1])
}

func TestExtractWithoutPageBreaks(t *testing.T) {
	e := New(rules.Default(), Options{})

	record := e.Extract(ccCert(), map[certificate.Role]string{
		certificate.RoleTarget: "The TOE uses AES encryption.",
	})

	occs := record.Hits["symmetric_crypto"]["aes"]["AES"]
	require.Len(t, occs, 1)
	assert.Equal(t, -1, occs[0].Page, "page index is absent without form feeds")
	assert.Equal(t, certificate.RoleTarget, occs[0].Role)
}

func TestIgnoreFirstPage(t *testing.T) {
	e := New(rules.Default(), Options{IgnoreFirstPage: true})

	record := e.Extract(ccCert(), map[certificate.Role]string{
		certificate.RoleReport: "AES on the cover\fAES in the body",
	})

	occs := record.Hits["symmetric_crypto"]["aes"]["AES"]
	require.Len(t, occs, 1)
	assert.Equal(t, 1, occs[0].Page)
}

func TestSelfReferenceSuppressed(t *testing.T) {
	e := New(rules.Default(), Options{})
	cert := ccCert()

	record := e.Extract(cert, map[certificate.Role]string{
		certificate.RoleReport: "This report covers BSI-DSZ-CC-1091-2018 and references BSI-DSZ-CC-0999-2017.",
	})

	hits := record.Hits["rules_cert_id"]["cc_cert_id_de"]
	assert.NotContains(t, hits, "BSI-DSZ-CC-1091-2018")
	assert.Contains(t, hits, "BSI-DSZ-CC-0999-2017")
}

func TestMinimalTokenLength(t *testing.T) {
	e := New(rules.Default(), Options{MinimalTokenLength: 4})

	record := e.Extract(ccCert(), map[certificate.Role]string{
		certificate.RoleReport: "uses DES and AES-256 ciphers",
	})

	if catHits, ok := record.Hits["symmetric_crypto"]; ok {
		assert.NotContains(t, catHits["des"], "DES")
	}
	assert.Contains(t, record.Hits["symmetric_crypto"]["aes"], "AES-256")
}

func TestClaimedEALPromotion(t *testing.T) {
	e := New(rules.Default(), Options{})

	record := e.Extract(ccCert(), map[certificate.Role]string{
		certificate.RoleReport: "assurance levels EAL2 and EAL4 and finally EAL4+ augmented",
	})

	assert.Equal(t, "EAL4+", record.ClaimedEAL)
}

func TestImpliedSARsFromClaimedEAL(t *testing.T) {
	e := New(rules.Default(), Options{})

	record := e.Extract(ccCert(), map[certificate.Role]string{
		certificate.RoleReport: "evaluated at EAL1",
	})

	require.Equal(t, "EAL1", record.ClaimedEAL)
	assert.Len(t, record.ImpliedSARs, len(rules.SARsImpliedFromEAL["EAL1"]))
	assert.Contains(t, record.ImpliedSARs, certificate.SAR{Family: "AVA_VAN", Level: 1})
}

func TestExplicitSARRaisesImpliedLevel(t *testing.T) {
	e := New(rules.Default(), Options{})

	// EAL1 implies AVA_VAN.1 but the report explicitly claims AVA_VAN.5
	record := e.Extract(ccCert(), map[certificate.Role]string{
		certificate.RoleReport: "evaluated at EAL1 with AVA_VAN.5 augmentation",
	})

	assert.Contains(t, record.ImpliedSARs, certificate.SAR{Family: "AVA_VAN", Level: 5})
	assert.NotContains(t, record.ImpliedSARs, certificate.SAR{Family: "AVA_VAN", Level: 1})
}

func TestEmptyTextsYieldEmptyRecord(t *testing.T) {
	e := New(rules.Default(), Options{})

	record := e.Extract(ccCert(), nil)

	require.NotNil(t, record)
	assert.Nil(t, record.Hits)
	assert.Empty(t, record.ClaimedEAL)
	assert.Empty(t, record.ImpliedSARs)
}

func TestSARsAreSortedByFamily(t *testing.T) {
	e := New(rules.Default(), Options{})

	record := e.Extract(ccCert(), map[certificate.Role]string{
		certificate.RoleReport: "evaluated at EAL4",
	})

	for i := 1; i < len(record.ImpliedSARs); i++ {
		assert.Less(t, record.ImpliedSARs[i-1].Family, record.ImpliedSARs[i].Family)
	}
}
