package artifact

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seccerts/seccerts/seccerts/certificate"
)

type stubConverter struct {
	fs     afero.Fs
	output string
	err    error
	calls  int
}

func (c *stubConverter) Convert(pdfPath, txtPath, segmentsPath string) error {
	c.calls++
	if c.err != nil {
		return c.err
	}
	return afero.WriteFile(c.fs, txtPath, []byte(c.output), 0644)
}

func testCert() *certificate.Certificate {
	return &certificate.Certificate{
		Digest:   "a1b2c3d4e5f60718",
		Scheme:   certificate.SchemeCC,
		SchemeID: "BSI-DSZ-CC-1091-2018",
		Name:     "Some Product",
		DocumentURIs: map[certificate.Role]string{
			certificate.RoleReport: "https://example.invalid/report.pdf",
		},
	}
}

func TestPutAndExists(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewStore(fs, "/data/artifacts", nil, &stubConverter{fs: fs}, nil)
	cert := testCert()

	art, err := store.Put(cert, certificate.RoleReport, []byte("%PDF-1.4 payload"))
	require.NoError(t, err)

	assert.Equal(t, cert.Digest, art.CertDigest)
	assert.Equal(t, certificate.RoleReport, art.Role)
	assert.Len(t, art.ContentHash, 64)
	assert.Equal(t, certificate.TextStatusMissing, art.TextStatus)
	assert.True(t, store.Exists(cert, certificate.RoleReport))
	assert.False(t, store.Exists(cert, certificate.RoleTarget))
}

func TestPutIsIdempotentForSameContent(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewStore(fs, "/data/artifacts", nil, &stubConverter{fs: fs}, nil)
	cert := testCert()

	first, err := store.Put(cert, certificate.RoleReport, []byte("payload"))
	require.NoError(t, err)
	second, err := store.Put(cert, certificate.RoleReport, []byte("payload"))
	require.NoError(t, err)

	assert.Equal(t, first.ContentHash, second.ContentHash)
}

func TestPutNewContentInvalidatesText(t *testing.T) {
	fs := afero.NewMemMapFs()
	conv := &stubConverter{fs: fs, output: "extracted text body"}
	store := NewStore(fs, "/data/artifacts", nil, conv, nil)
	cert := testCert()

	art, err := store.Put(cert, certificate.RoleReport, []byte("v1"))
	require.NoError(t, err)
	require.NoError(t, store.Convert(cert, certificate.RoleReport, art))

	_, ok, err := store.Text(cert, certificate.RoleReport)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = store.Put(cert, certificate.RoleReport, []byte("v2"))
	require.NoError(t, err)

	_, ok, err = store.Text(cert, certificate.RoleReport)
	require.NoError(t, err)
	assert.False(t, ok, "stale text must be dropped when content changes")
}

func TestConvertHappyPath(t *testing.T) {
	fs := afero.NewMemMapFs()
	conv := &stubConverter{fs: fs, output: "the security target text"}
	store := NewStore(fs, "/data/artifacts", nil, conv, nil)
	cert := testCert()

	art, err := store.Put(cert, certificate.RoleTarget, []byte("pdf"))
	require.NoError(t, err)
	require.NoError(t, store.Convert(cert, certificate.RoleTarget, art))

	assert.Equal(t, certificate.TextStatusOK, art.TextStatus)

	text, ok, err := store.Text(cert, certificate.RoleTarget)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "the security target text", text)
}

func TestConvertFallsBackToOCR(t *testing.T) {
	fs := afero.NewMemMapFs()
	primary := &stubConverter{fs: fs, err: fmt.Errorf("encrypted stream")}
	ocr := &stubConverter{fs: fs, output: "ocr recovered text"}
	store := NewStore(fs, "/data/artifacts", nil, primary, ocr)
	cert := testCert()

	art, err := store.Put(cert, certificate.RoleReport, []byte("pdf"))
	require.NoError(t, err)
	require.NoError(t, store.Convert(cert, certificate.RoleReport, art))

	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, ocr.calls)
	assert.Equal(t, certificate.TextStatusOK, art.TextStatus)

	text, ok, err := store.Text(cert, certificate.RoleReport)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ocr recovered text", text)
}

func TestConvertGarbledTriggersOCR(t *testing.T) {
	fs := afero.NewMemMapFs()
	primary := &stubConverter{fs: fs, output: "��������������������"}
	ocr := &stubConverter{fs: fs, output: "clean text"}
	store := NewStore(fs, "/data/artifacts", nil, primary, ocr)
	cert := testCert()

	art, err := store.Put(cert, certificate.RoleReport, []byte("pdf"))
	require.NoError(t, err)
	require.NoError(t, store.Convert(cert, certificate.RoleReport, art))

	assert.Equal(t, 1, ocr.calls)
	assert.Equal(t, certificate.TextStatusOK, art.TextStatus)
}

func TestConvertBothFailMarksUnreadable(t *testing.T) {
	fs := afero.NewMemMapFs()
	primary := &stubConverter{fs: fs, err: fmt.Errorf("broken xref")}
	ocr := &stubConverter{fs: fs, err: fmt.Errorf("no text layer")}
	store := NewStore(fs, "/data/artifacts", nil, primary, ocr)
	cert := testCert()

	art, err := store.Put(cert, certificate.RoleReport, []byte("pdf"))
	require.NoError(t, err)
	require.NoError(t, store.Convert(cert, certificate.RoleReport, art))

	assert.Equal(t, certificate.TextStatusUnreadable, art.TextStatus)

	_, ok, err := store.Text(cert, certificate.RoleReport)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFetchDownloadsAndRecordsValidators(t *testing.T) {
	payload := []byte("%PDF-1.4 remote")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"abc123"`)
		w.Header().Set("Last-Modified", "Wed, 21 Oct 2015 07:28:00 GMT")
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	fs := afero.NewMemMapFs()
	store := NewStore(fs, "/data/artifacts", server.Client(), &stubConverter{fs: fs}, nil)
	cert := testCert()

	art, err := store.Fetch(cert, certificate.RoleReport, server.URL, nil)
	require.NoError(t, err)

	assert.Equal(t, `"abc123"`, art.ETag)
	assert.Equal(t, "Wed, 21 Oct 2015 07:28:00 GMT", art.LastModified)
	assert.True(t, store.Exists(cert, certificate.RoleReport))
}

func TestFetchHonorsNotModified(t *testing.T) {
	var sawValidator bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"abc123"` {
			sawValidator = true
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"abc123"`)
		_, _ = w.Write([]byte("payload"))
	}))
	defer server.Close()

	fs := afero.NewMemMapFs()
	store := NewStore(fs, "/data/artifacts", server.Client(), &stubConverter{fs: fs}, nil)
	cert := testCert()

	first, err := store.Fetch(cert, certificate.RoleReport, server.URL, nil)
	require.NoError(t, err)

	second, err := store.Fetch(cert, certificate.RoleReport, server.URL, first)
	require.NoError(t, err)

	assert.True(t, sawValidator)
	assert.Same(t, first, second)
}

func TestFetchSkipsWriteWhenHashUnchanged(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// no validators offered, client must fall back to hash comparison
		_, _ = w.Write([]byte("same payload"))
	}))
	defer server.Close()

	fs := afero.NewMemMapFs()
	store := NewStore(fs, "/data/artifacts", server.Client(), &stubConverter{fs: fs}, nil)
	cert := testCert()

	first, err := store.Fetch(cert, certificate.RoleReport, server.URL, nil)
	require.NoError(t, err)

	second, err := store.Fetch(cert, certificate.RoleReport, server.URL, first)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestFetchErrorIsTyped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	fs := afero.NewMemMapFs()
	store := NewStore(fs, "/data/artifacts", server.Client(), &stubConverter{fs: fs}, nil)

	_, err := store.Fetch(testCert(), certificate.RoleReport, server.URL, nil)
	require.Error(t, err)

	var fetchErr *ErrArtifactFetch
	assert.ErrorAs(t, err, &fetchErr)
}

func TestArchiveIsDeterministic(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewStore(fs, "/data/artifacts", nil, &stubConverter{fs: fs}, nil)
	cert := testCert()

	_, err := store.Put(cert, certificate.RoleReport, []byte("report"))
	require.NoError(t, err)
	_, err = store.Put(cert, certificate.RoleTarget, []byte("target"))
	require.NoError(t, err)

	first, err := store.ArchiveBytes()
	require.NoError(t, err)
	second, err := store.ArchiveBytes()
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestArchiveRestoreRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewStore(fs, "/data/artifacts", nil, &stubConverter{fs: fs}, nil)
	cert := testCert()

	_, err := store.Put(cert, certificate.RoleReport, []byte("report payload"))
	require.NoError(t, err)

	archive, err := store.ArchiveBytes()
	require.NoError(t, err)

	restoredFs := afero.NewMemMapFs()
	restored := NewStore(restoredFs, "/data/artifacts", nil, &stubConverter{fs: restoredFs}, nil)
	require.NoError(t, restored.Restore(bytes.NewReader(archive)))

	assert.True(t, restored.Exists(cert, certificate.RoleReport))
}
