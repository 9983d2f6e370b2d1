/*
Package search maintains the full-text index over the published snapshot and
answers faceted, paginated queries.
*/
package search

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/seccerts/seccerts/internal/log"
	"github.com/seccerts/seccerts/seccerts/certificate"
)

// DefaultPageSize is the number of hits per result page.
const DefaultPageSize = 20

var sortOptions = map[string][]string{
	"relevance": {"-_score"},
	"date":      {"-certification_date"},
	"name":      {"name"},
}

// ErrBadQuery is returned for client mistakes: out-of-range pages, unknown
// sort modes or filter values.
type ErrBadQuery struct {
	Field   string
	Value   string
	Options []string
}

func (e *ErrBadQuery) Error() string {
	if len(e.Options) > 0 {
		return fmt.Sprintf("bad %s value %q (options=%v)", e.Field, e.Value, e.Options)
	}
	return fmt.Sprintf("bad %s value %q", e.Field, e.Value)
}

// document is the indexed shape of one certificate.
type document struct {
	Digest            string `json:"digest"`
	Scheme            string `json:"scheme"`
	SchemeID          string `json:"scheme_id"`
	Name              string `json:"name"`
	Vendor            string `json:"vendor"`
	Category          string `json:"category"`
	Status            string `json:"status"`
	EAL               string `json:"eal"`
	CertificationDate string `json:"certification_date"` // RFC 3339, empty when unknown
	ReportText        string `json:"report_text"`
	TargetText        string `json:"target_text"`
	PolicyText        string `json:"policy_text"`
}

// TextProvider supplies the extracted text of one artifact role for indexing.
type TextProvider func(cert *certificate.Certificate, role certificate.Role) (string, bool)

type Index struct {
	idx      bleve.Index
	pageSize int
}

func buildMapping() mapping.IndexMapping {
	keywordField := bleve.NewTextFieldMapping()
	keywordField.Analyzer = keyword.Name

	textField := bleve.NewTextFieldMapping()

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("digest", keywordField)
	doc.AddFieldMappingsAt("scheme", keywordField)
	doc.AddFieldMappingsAt("scheme_id", keywordField)
	doc.AddFieldMappingsAt("status", keywordField)
	doc.AddFieldMappingsAt("category", keywordField)
	doc.AddFieldMappingsAt("eal", keywordField)
	doc.AddFieldMappingsAt("certification_date", keywordField)
	doc.AddFieldMappingsAt("name", textField)
	doc.AddFieldMappingsAt("vendor", textField)
	doc.AddFieldMappingsAt("report_text", textField)
	doc.AddFieldMappingsAt("target_text", textField)
	doc.AddFieldMappingsAt("policy_text", textField)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}

// Open opens or creates the index at the given path.
func Open(path string, pageSize int) (*Index, error) {
	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(path, buildMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("unable to open search index at %q: %w", path, err)
	}
	return newIndex(idx, pageSize), nil
}

// OpenMemory creates an ephemeral in-memory index.
func OpenMemory(pageSize int) (*Index, error) {
	idx, err := bleve.NewMemOnly(buildMapping())
	if err != nil {
		return nil, fmt.Errorf("unable to create in-memory search index: %w", err)
	}
	return newIndex(idx, pageSize), nil
}

func newIndex(idx bleve.Index, pageSize int) *Index {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return &Index{idx: idx, pageSize: pageSize}
}

func (i *Index) Close() error {
	return i.idx.Close()
}

func toDocument(cert *certificate.Certificate, texts TextProvider) document {
	doc := document{
		Digest:   cert.Digest,
		Scheme:   string(cert.Scheme),
		SchemeID: cert.SchemeID,
		Name:     cert.Name,
		Vendor:   cert.Vendor,
		Category: cert.Category,
		Status:   string(cert.Status),
	}
	if cert.Features != nil {
		doc.EAL = cert.Features.ClaimedEAL
	}
	if cert.CertificationDate != nil {
		doc.CertificationDate = cert.CertificationDate.UTC().Format("2006-01-02")
	}
	if texts != nil {
		if text, ok := texts(cert, certificate.RoleReport); ok {
			doc.ReportText = text
		}
		if text, ok := texts(cert, certificate.RoleTarget); ok {
			doc.TargetText = text
		}
		if text, ok := texts(cert, certificate.RolePolicy); ok {
			doc.PolicyText = text
		}
	}
	return doc
}

// IndexCertificates adds or updates the given certificates in one batch.
func (i *Index) IndexCertificates(certs []*certificate.Certificate, texts TextProvider) error {
	batch := i.idx.NewBatch()
	for _, cert := range certs {
		if err := batch.Index(cert.Digest, toDocument(cert, texts)); err != nil {
			return fmt.Errorf("unable to index certificate %s: %w", cert.Digest, err)
		}
	}
	if err := i.idx.Batch(batch); err != nil {
		return fmt.Errorf("unable to apply index batch: %w", err)
	}
	log.Debugf("indexed %d certificates", len(certs))
	return nil
}

// Delete removes one certificate from the index.
func (i *Index) Delete(digest string) error {
	return i.idx.Delete(digest)
}

// Count returns the number of indexed certificates.
func (i *Index) Count() (uint64, error) {
	return i.idx.DocCount()
}

// Rebuild replaces the whole index content with the given snapshot.
func (i *Index) Rebuild(certs []*certificate.Certificate, texts TextProvider) error {
	// drop everything currently indexed, then add the snapshot in one batch
	all := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	all.Size = 10000
	all.Fields = []string{}
	for {
		result, err := i.idx.Search(all)
		if err != nil {
			return fmt.Errorf("unable to enumerate index for rebuild: %w", err)
		}
		if len(result.Hits) == 0 {
			break
		}
		batch := i.idx.NewBatch()
		for _, hit := range result.Hits {
			batch.Delete(hit.ID)
		}
		if err := i.idx.Batch(batch); err != nil {
			return err
		}
	}
	return i.IndexCertificates(certs, texts)
}
