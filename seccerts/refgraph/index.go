package refgraph

import (
	"strings"

	"github.com/seccerts/seccerts/internal/log"
	"github.com/seccerts/seccerts/seccerts/certificate"
)

// CanonicalID maps a scheme ID or a raw cert-ID literal to its canonical
// form: trimmed, internal whitespace collapsed, and spaces around separator
// punctuation removed, so "BSI-DSZ-CC- 1091 -2018" and "BSI-DSZ-CC-1091-2018"
// resolve identically.
func CanonicalID(id string) string {
	id = strings.Join(strings.Fields(id), " ")
	for _, sep := range []string{"-", "/", "_"} {
		id = strings.ReplaceAll(id, " "+sep, sep)
		id = strings.ReplaceAll(id, sep+" ", sep)
	}
	return strings.TrimRight(id, ".")
}

// Index resolves canonical scheme IDs to certificate digests. When two
// certificates carry the same scheme ID the lexicographically smallest
// digest wins, so resolution is stable across runs regardless of input order.
type Index struct {
	byID map[string]string
}

func NewIndex() *Index {
	return &Index{byID: make(map[string]string)}
}

// IndexCertificates builds an index over the given snapshot.
func IndexCertificates(certs []*certificate.Certificate) *Index {
	idx := NewIndex()
	for _, cert := range certs {
		idx.Add(cert.SchemeID, cert.Digest)
	}
	return idx
}

func (i *Index) Add(schemeID, digest string) {
	key := CanonicalID(schemeID)
	if key == "" {
		return
	}
	existing, ok := i.byID[key]
	if !ok {
		i.byID[key] = digest
		return
	}
	if digest < existing {
		log.Debugf("duplicate scheme id %q: preferring digest %s over %s", key, digest, existing)
		i.byID[key] = digest
	}
}

// Lookup resolves a raw cert-ID literal to a digest.
func (i *Index) Lookup(literal string) (string, bool) {
	digest, ok := i.byID[CanonicalID(literal)]
	return digest, ok
}

func (i *Index) Len() int {
	return len(i.byID)
}
