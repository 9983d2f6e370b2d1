/*
Package artifact implements the content-addressed local store of certificate
documents and their extracted text.

Layout under the instance root:

	{scheme}/{digest}/{role}.pdf
	{scheme}/{digest}/{role}.txt
	{scheme}/{digest}/{role}.segments.json
*/
package artifact

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"path"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"

	"github.com/seccerts/seccerts/internal/file"
	"github.com/seccerts/seccerts/internal/log"
	"github.com/seccerts/seccerts/seccerts/certificate"
)

// ErrArtifactFetch wraps download failures; the owning certificate's text
// status becomes "missing" and the run proceeds.
type ErrArtifactFetch struct {
	URI string
	Err error
}

func (e *ErrArtifactFetch) Error() string {
	return fmt.Sprintf("unable to fetch artifact from %q: %v", e.URI, e.Err)
}

func (e *ErrArtifactFetch) Unwrap() error {
	return e.Err
}

type Store struct {
	fs        afero.Fs
	root      string
	client    *http.Client
	converter Converter
	ocr       Converter

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates a store rooted at the given directory. The primary
// converter is required for text extraction; the OCR converter is optional
// and used as fallback when primary conversion fails or yields garbage.
func NewStore(fs afero.Fs, root string, client *http.Client, converter, ocr Converter) *Store {
	if client == nil {
		client = http.DefaultClient
	}
	return &Store{
		fs:        fs,
		root:      root,
		client:    client,
		converter: converter,
		ocr:       ocr,
		locks:     make(map[string]*sync.Mutex),
	}
}

// lockFor returns the advisory lock serializing writers of one (digest, role) key.
func (s *Store) lockFor(digest string, role certificate.Role) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := digest + "/" + string(role)
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

func (s *Store) dir(scheme certificate.Scheme, digest string) string {
	return path.Join(s.root, string(scheme), digest)
}

func (s *Store) PDFPath(scheme certificate.Scheme, digest string, role certificate.Role) string {
	return path.Join(s.dir(scheme, digest), string(role)+".pdf")
}

func (s *Store) TextPath(scheme certificate.Scheme, digest string, role certificate.Role) string {
	return path.Join(s.dir(scheme, digest), string(role)+".txt")
}

func (s *Store) SegmentsPath(scheme certificate.Scheme, digest string, role certificate.Role) string {
	return path.Join(s.dir(scheme, digest), string(role)+".segments.json")
}

// Put stores the raw PDF payload for one (certificate, role) key and returns
// the resulting artifact record. Content is deduplicated by hash: an existing
// identical payload is left untouched.
func (s *Store) Put(cert *certificate.Certificate, role certificate.Role, payload []byte) (*certificate.Artifact, error) {
	l := s.lockFor(cert.Digest, role)
	l.Lock()
	defer l.Unlock()

	contentHash := file.HashBytes(payload)
	target := s.PDFPath(cert.Scheme, cert.Digest, role)

	if file.Exists(s.fs, target) {
		existing, err := afero.ReadFile(s.fs, target)
		if err == nil && file.HashBytes(existing) == contentHash {
			return &certificate.Artifact{
				CertDigest:  cert.Digest,
				Role:        role,
				URI:         cert.DocumentURIs[role],
				ContentHash: contentHash,
				TextStatus:  s.textStatus(cert, role),
			}, nil
		}
	}

	if err := s.fs.MkdirAll(s.dir(cert.Scheme, cert.Digest), 0755); err != nil {
		return nil, fmt.Errorf("unable to create artifact dir: %w", err)
	}
	if err := afero.WriteFile(s.fs, target, payload, 0644); err != nil {
		return nil, fmt.Errorf("unable to write artifact: %w", err)
	}

	// content changed, any previously extracted text is stale
	_ = s.fs.Remove(s.TextPath(cert.Scheme, cert.Digest, role))
	_ = s.fs.Remove(s.SegmentsPath(cert.Scheme, cert.Digest, role))

	return &certificate.Artifact{
		CertDigest:  cert.Digest,
		Role:        role,
		URI:         cert.DocumentURIs[role],
		ContentHash: contentHash,
		TextStatus:  certificate.TextStatusMissing,
	}, nil
}

// Fetch downloads the document at the given URI unless the stored copy is
// already current. Currency is judged by ETag / Last-Modified validators from
// the prior fetch when available, otherwise by content hash.
func (s *Store) Fetch(cert *certificate.Certificate, role certificate.Role, uri string, prior *certificate.Artifact) (*certificate.Artifact, error) {
	req, err := http.NewRequest(http.MethodGet, uri, nil)
	if err != nil {
		return nil, &ErrArtifactFetch{URI: uri, Err: err}
	}
	if prior != nil && file.Exists(s.fs, s.PDFPath(cert.Scheme, cert.Digest, role)) {
		if prior.ETag != "" {
			req.Header.Set("If-None-Match", prior.ETag)
		}
		if prior.LastModified != "" {
			req.Header.Set("If-Modified-Since", prior.LastModified)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &ErrArtifactFetch{URI: uri, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		log.Tracef("artifact unchanged (304): %s/%s %s", cert.Digest, role, uri)
		return prior, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ErrArtifactFetch{URI: uri, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ErrArtifactFetch{URI: uri, Err: err}
	}

	if prior != nil && prior.ContentHash == file.HashBytes(payload) {
		log.Tracef("artifact unchanged (hash): %s/%s %s", cert.Digest, role, uri)
		return prior, nil
	}

	result, err := s.Put(cert, role, payload)
	if err != nil {
		return nil, err
	}
	result.URI = uri
	result.ETag = resp.Header.Get("ETag")
	result.LastModified = resp.Header.Get("Last-Modified")
	return result, nil
}

// Convert extracts plain text for one (certificate, role) key. The primary
// converter runs first; when it errors or produces garbled output the OCR
// fallback is attempted. When both fail the artifact is marked unreadable and
// the certificate simply has no extractable body for this role.
func (s *Store) Convert(cert *certificate.Certificate, role certificate.Role, art *certificate.Artifact) error {
	l := s.lockFor(cert.Digest, role)
	l.Lock()
	defer l.Unlock()

	pdfPath := s.PDFPath(cert.Scheme, cert.Digest, role)
	txtPath := s.TextPath(cert.Scheme, cert.Digest, role)
	segPath := s.SegmentsPath(cert.Scheme, cert.Digest, role)

	if !file.Exists(s.fs, pdfPath) {
		art.TextStatus = certificate.TextStatusMissing
		return fmt.Errorf("no stored document for %s/%s", cert.Digest, role)
	}
	if file.Exists(s.fs, txtPath) {
		art.TextStatus = certificate.TextStatusOK
		return nil
	}

	var errs error
	if err := s.converter.Convert(pdfPath, txtPath, segPath); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("primary conversion: %w", err))
	} else if text, err := afero.ReadFile(s.fs, txtPath); err == nil && !textLooksGarbled(string(text)) {
		art.TextStatus = certificate.TextStatusOK
		return nil
	} else {
		errs = multierror.Append(errs, fmt.Errorf("primary conversion produced garbled text"))
	}

	if s.ocr != nil {
		if err := s.ocr.Convert(pdfPath, txtPath, ""); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("ocr conversion: %w", err))
		} else if text, err := afero.ReadFile(s.fs, txtPath); err == nil && !textLooksGarbled(string(text)) {
			art.TextStatus = certificate.TextStatusOK
			return nil
		} else {
			errs = multierror.Append(errs, fmt.Errorf("ocr conversion produced garbled text"))
		}
	}

	_ = s.fs.Remove(txtPath)
	art.TextStatus = certificate.TextStatusUnreadable
	log.Warnf("artifact unreadable: %s/%s: %v", cert.Digest, role, errs)
	return nil
}

// Text returns the extracted text for one (certificate, role) key, or ok=false
// when no text has been extracted.
func (s *Store) Text(cert *certificate.Certificate, role certificate.Role) (string, bool, error) {
	txtPath := s.TextPath(cert.Scheme, cert.Digest, role)
	if !file.Exists(s.fs, txtPath) {
		return "", false, nil
	}
	payload, err := afero.ReadFile(s.fs, txtPath)
	if err != nil {
		return "", false, fmt.Errorf("unable to read extracted text: %w", err)
	}
	return string(payload), true, nil
}

// Exists reports whether a stored document exists for the key.
func (s *Store) Exists(cert *certificate.Certificate, role certificate.Role) bool {
	return file.Exists(s.fs, s.PDFPath(cert.Scheme, cert.Digest, role))
}

// Archive writes a deterministic gzipped tarball of the whole store tree.
func (s *Store) Archive(w io.Writer) error {
	return file.TarGzTree(s.fs, s.root, w)
}

// Restore unpacks an archive produced by Archive into the store root.
func (s *Store) Restore(r io.Reader) error {
	return file.UnTarGz(s.fs, s.root, r)
}

// ArchiveBytes is a convenience wrapper over Archive.
func (s *Store) ArchiveBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := s.Archive(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Store) textStatus(cert *certificate.Certificate, role certificate.Role) certificate.TextStatus {
	if file.Exists(s.fs, s.TextPath(cert.Scheme, cert.Digest, role)) {
		return certificate.TextStatusOK
	}
	return certificate.TextStatusMissing
}
