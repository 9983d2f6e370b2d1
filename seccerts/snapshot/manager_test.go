package snapshot

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seccerts/seccerts/seccerts/artifact"
	"github.com/seccerts/seccerts/seccerts/certificate"
	"github.com/seccerts/seccerts/seccerts/nvd"
	"github.com/seccerts/seccerts/seccerts/refgraph"
	"github.com/seccerts/seccerts/seccerts/source"
	"github.com/seccerts/seccerts/seccerts/store"
)

type fakeSource struct {
	name    string
	scheme  certificate.Scheme
	records []source.Record
	err     error
}

func (s *fakeSource) Name() string               { return s.name }
func (s *fakeSource) Scheme() certificate.Scheme { return s.scheme }
func (s *fakeSource) List() ([]source.Record, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.records, nil
}

func ccRecord(schemeID, name string) source.Record {
	return source.Record{
		SchemeID: schemeID,
		Name:     name,
		Vendor:   "Acme",
		Status:   certificate.StatusActive,
	}
}

func newManager(t *testing.T, src *fakeSource) (*Manager, *store.Store) {
	t.Helper()
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	m := NewManager(Config{
		Store:        db,
		Sources:      []source.Source{src},
		Policy:       refgraph.PolicyBoth,
		ArchivalRuns: 2,
	})
	return m, db
}

func TestFirstRunPublishesSnapshot(t *testing.T) {
	src := &fakeSource{name: "cc", scheme: certificate.SchemeCC, records: []source.Record{
		ccRecord("BSI-DSZ-CC-0001-2018", "Product One"),
		ccRecord("BSI-DSZ-CC-0002-2017", "Product Two"),
	}}
	m, db := newManager(t, src)

	run, err := m.Run(Options{})
	require.NoError(t, err)

	assert.Equal(t, store.RunStatusClean, run.Status)
	assert.Equal(t, 2, run.Created)
	assert.Zero(t, run.Updated)
	require.NotNil(t, run.FinishedAt)

	current, ok, err := db.CurrentSnapshotID()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, run.ID, current)

	certs, err := db.Certificates(current, "")
	require.NoError(t, err)
	assert.Len(t, certs, 2)
	for _, cert := range certs {
		assert.Len(t, cert.Digest, 16)
		assert.Equal(t, certificate.StatusActive, cert.Status)
	}
}

func TestUnchangedRunProducesNoDiffs(t *testing.T) {
	src := &fakeSource{name: "cc", scheme: certificate.SchemeCC, records: []source.Record{
		ccRecord("BSI-DSZ-CC-0001-2018", "Product One"),
	}}
	m, db := newManager(t, src)

	first, err := m.Run(Options{})
	require.NoError(t, err)
	second, err := m.Run(Options{})
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Zero(t, second.Created)
	assert.Zero(t, second.Updated)

	diffs, err := db.DiffsForRun(second.ID)
	require.NoError(t, err)
	assert.Empty(t, diffs, "volatile fields alone must not produce diffs")

	// a run without changes leaves the pointer on the previous snapshot and
	// drops its staged rows
	current, _, err := db.CurrentSnapshotID()
	require.NoError(t, err)
	assert.Equal(t, first.ID, current)

	staged, err := db.Certificates(second.ID, "")
	require.NoError(t, err)
	assert.Empty(t, staged, "the unchanged staged snapshot is discarded")
}

func TestChangedCertificateYieldsUpdatedDiff(t *testing.T) {
	src := &fakeSource{name: "cc", scheme: certificate.SchemeCC, records: []source.Record{
		ccRecord("BSI-DSZ-CC-0001-2018", "Product One"),
	}}
	m, db := newManager(t, src)

	_, err := m.Run(Options{})
	require.NoError(t, err)

	src.records[0].Vendor = "Acme International"
	run, err := m.Run(Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, run.Updated)
	diffs, err := db.DiffsForRun(run.ID)
	require.NoError(t, err)
	require.Len(t, diffs, 1)
	assert.Equal(t, store.DiffUpdated, diffs[0].Type)
	assert.NotEmpty(t, diffs[0].Changelog)
}

func TestAbsenceArchivalAfterThreshold(t *testing.T) {
	src := &fakeSource{name: "cc", scheme: certificate.SchemeCC, records: []source.Record{
		ccRecord("BSI-DSZ-CC-0001-2018", "Product One"),
	}}
	m, db := newManager(t, src) // ArchivalRuns = 2

	_, err := m.Run(Options{})
	require.NoError(t, err)

	// certificate disappears from the source listing
	src.records = nil

	run, err := m.Run(Options{})
	require.NoError(t, err)
	assert.Zero(t, run.Archived, "one absence is below the archival threshold")

	run, err = m.Run(Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, run.Archived)

	certs, err := db.Certificates(run.ID, "")
	require.NoError(t, err)
	require.Len(t, certs, 1)
	assert.Equal(t, certificate.StatusArchived, certs[0].Status)
	require.NotNil(t, certs[0].ArchivedAt)
	archivedAt := *certs[0].ArchivedAt

	// archival is monotonic: re-listing does not resurrect the certificate
	src.records = []source.Record{ccRecord("BSI-DSZ-CC-0001-2018", "Product One")}
	run, err = m.Run(Options{})
	require.NoError(t, err)

	certs, err = db.Certificates(run.ID, "")
	require.NoError(t, err)
	require.Len(t, certs, 1)
	assert.Equal(t, certificate.StatusArchived, certs[0].Status)
	assert.Equal(t, archivedAt, *certs[0].ArchivedAt)
}

func TestDegradedSourceSkipsAbsencePenalty(t *testing.T) {
	src := &fakeSource{name: "cc", scheme: certificate.SchemeCC, records: []source.Record{
		ccRecord("BSI-DSZ-CC-0001-2018", "Product One"),
	}}
	m, db := newManager(t, src)

	_, err := m.Run(Options{})
	require.NoError(t, err)

	src.err = fmt.Errorf("upstream portal down")
	run, err := m.Run(Options{})
	require.NoError(t, err)

	assert.Equal(t, store.RunStatusDegraded, run.Status)
	require.NotEmpty(t, run.Errors)

	// the carried-over certificate is unchanged, so the degraded run does not
	// publish a new snapshot
	current, ok, err := db.CurrentSnapshotID()
	require.NoError(t, err)
	require.True(t, ok)

	certs, err := db.Certificates(current, "")
	require.NoError(t, err)
	require.Len(t, certs, 1)
	assert.Equal(t, certificate.StatusActive, certs[0].Status)
	assert.Zero(t, certs[0].AbsentRuns, "a degraded source must not count absences")
}

func TestStopRequestPreventsPublish(t *testing.T) {
	src := &fakeSource{name: "cc", scheme: certificate.SchemeCC, records: []source.Record{
		ccRecord("BSI-DSZ-CC-0001-2018", "Product One"),
	}}
	m, db := newManager(t, src)

	m.RequestStop()
	run, err := m.Run(Options{})
	require.ErrorIs(t, err, ErrInterrupted)
	assert.Equal(t, store.RunStatusFailed, run.Status)

	_, ok, err := db.CurrentSnapshotID()
	require.NoError(t, err)
	assert.False(t, ok, "an interrupted run never flips the pointer")

	runs, err := db.Runs(0)
	require.NoError(t, err)
	require.Len(t, runs, 1, "the failed run is still logged")
	assert.Equal(t, store.RunStatusFailed, runs[0].Status)
}

func TestRenameRecordsDigestAlias(t *testing.T) {
	src := &fakeSource{name: "cc", scheme: certificate.SchemeCC, records: []source.Record{
		ccRecord("BSI-DSZ-CC-0001-2018", "Product One"),
	}}
	m, db := newManager(t, src)

	first, err := m.Run(Options{})
	require.NoError(t, err)
	oldCerts, err := db.Certificates(first.ID, "")
	require.NoError(t, err)
	oldDigest := oldCerts[0].Digest

	src.records[0].Name = "Product One Enterprise Edition"
	run, err := m.Run(Options{})
	require.NoError(t, err)

	newCerts, err := db.Certificates(run.ID, "")
	require.NoError(t, err)

	var newDigest string
	for _, cert := range newCerts {
		if cert.Name == "Product One Enterprise Edition" {
			newDigest = cert.Digest
		}
	}
	require.NotEmpty(t, newDigest)
	require.NotEqual(t, oldDigest, newDigest)

	resolved, err := db.ResolveDigest(oldDigest)
	require.NoError(t, err)
	assert.Equal(t, newDigest, resolved)
}

func TestMatchStageWithStoredDatasets(t *testing.T) {
	src := &fakeSource{name: "cc", scheme: certificate.SchemeCC, records: []source.Record{
		ccRecord("BSI-DSZ-CC-0001-2018", "SecureToken 2.1"),
	}}
	m, db := newManager(t, src)

	require.NoError(t, db.SaveDataset("cpe", "2026-08-01", nvd.CPEFeed{
		DatasetVersion: "2026-08-01",
		Items: []nvd.CPEItem{
			{URI: "cpe:2.3:a:acme:securetoken:2.1:*:*:*:*:*:*:*", Title: "Acme SecureToken 2.1"},
		},
	}))
	require.NoError(t, db.SaveDataset("cve", "2026-08-01", nvd.CVEFeed{
		DatasetVersion: "2026-08-01",
		Items: []nvd.CVEItem{
			{ID: "CVE-2021-1111", Criteria: []string{"cpe:2.3:a:acme:securetoken:*:*:*:*:*:*:*:*"}},
		},
	}))
	require.NoError(t, db.SaveDataset("cpe_match", "2026-08-01", nvd.CPEMatchFeed{
		DatasetVersion: "2026-08-01",
	}))

	run, err := m.Run(Options{SkipDownload: true, WithCPE: true, WithCVE: true})
	require.NoError(t, err)

	certs, err := db.Certificates(run.ID, "")
	require.NoError(t, err)
	require.Len(t, certs, 1)

	require.NotEmpty(t, certs[0].CPEMatches)
	assert.Equal(t, "cpe:2.3:a:acme:securetoken:2.1:*:*:*:*:*:*:*", certs[0].CPEMatches[0].URI)
	require.NotEmpty(t, certs[0].RelatedCVEs)
	assert.Equal(t, "CVE-2021-1111", certs[0].RelatedCVEs[0].ID)
}

func TestForEachCertVisitsEachOnce(t *testing.T) {
	m := NewManager(Config{Workers: 4})

	certs := make([]*certificate.Certificate, 100)
	for i := range certs {
		certs[i] = &certificate.Certificate{Digest: fmt.Sprintf("%016d", i)}
	}

	var mu sync.Mutex
	visits := make(map[string]int)
	m.forEachCert(certs, func(cert *certificate.Certificate) {
		mu.Lock()
		visits[cert.Digest]++
		mu.Unlock()
	})

	require.Len(t, visits, 100)
	for digest, n := range visits {
		assert.Equal(t, 1, n, digest)
	}
}

type stubConverter struct {
	fs afero.Fs
}

func (c *stubConverter) Convert(pdfPath, txtPath, segmentsPath string) error {
	return afero.WriteFile(c.fs, txtPath, []byte("report body"), 0644)
}

func TestArtifactRefetchSendsValidators(t *testing.T) {
	var mu sync.Mutex
	downloads, notModified := 0, 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if r.Header.Get("If-None-Match") == `"v1"` {
			notModified++
			w.WriteHeader(http.StatusNotModified)
			return
		}
		downloads++
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte("%PDF-1.4 payload"))
	}))
	defer srv.Close()

	record := ccRecord("BSI-DSZ-CC-0001-2018", "Product One")
	record.DocumentURIs = map[certificate.Role]string{
		certificate.RoleReport: srv.URL + "/report.pdf",
	}
	src := &fakeSource{name: "cc", scheme: certificate.SchemeCC, records: []source.Record{record}}

	db, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	fs := afero.NewMemMapFs()
	arts := artifact.NewStore(fs, "/data/artifacts", srv.Client(), &stubConverter{fs: fs}, nil)

	m := NewManager(Config{
		Store:        db,
		Artifacts:    arts,
		Sources:      []source.Source{src},
		Policy:       refgraph.PolicyBoth,
		ArchivalRuns: 2,
	})

	first, err := m.Run(Options{})
	require.NoError(t, err)
	mu.Lock()
	assert.Equal(t, 1, downloads)
	assert.Zero(t, notModified)
	mu.Unlock()

	// the persisted fetch metadata carries the validator
	certs, err := db.Certificates(first.ID, "")
	require.NoError(t, err)
	require.Len(t, certs, 1)
	records, err := db.ArtifactRecords()
	require.NoError(t, err)
	prior := records[certs[0].Digest][certificate.RoleReport]
	require.NotNil(t, prior)
	assert.Equal(t, `"v1"`, prior.ETag)

	// the second run revalidates instead of re-downloading
	_, err = m.Run(Options{})
	require.NoError(t, err)
	mu.Lock()
	assert.Equal(t, 1, downloads)
	assert.Equal(t, 1, notModified)
	mu.Unlock()
}

func TestSchemeSubsetCarriesOthersOver(t *testing.T) {
	cc := &fakeSource{name: "cc", scheme: certificate.SchemeCC, records: []source.Record{
		ccRecord("BSI-DSZ-CC-0001-2018", "Product One"),
	}}
	fips := &fakeSource{name: "fips", scheme: certificate.SchemeFIPS, records: []source.Record{
		{SchemeID: "4321", Name: "Crypto Module", Status: certificate.StatusActive},
	}}

	db, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	m := NewManager(Config{
		Store:        db,
		Sources:      []source.Source{cc, fips},
		Policy:       refgraph.PolicyBoth,
		ArchivalRuns: 2,
	})

	_, err = m.Run(Options{})
	require.NoError(t, err)

	// refresh only cc; the fips listing is empty now but must not be touched
	fips.records = nil
	_, err = m.Run(Options{Schemes: []certificate.Scheme{certificate.SchemeCC}})
	require.NoError(t, err)

	current, _, err := db.CurrentSnapshotID()
	require.NoError(t, err)

	certs, err := db.Certificates(current, certificate.SchemeFIPS)
	require.NoError(t, err)
	require.Len(t, certs, 1)
	assert.Equal(t, certificate.StatusActive, certs[0].Status)
	assert.Zero(t, certs[0].AbsentRuns)
}
