package snapshot

import (
	"encoding/json"
	"fmt"

	r3diff "github.com/r3labs/diff/v3"

	"github.com/seccerts/seccerts/seccerts/certificate"
	"github.com/seccerts/seccerts/seccerts/store"
)

// diffView strips the volatile fields that must never produce a diff on
// their own.
func diffView(cert *certificate.Certificate) certificate.Certificate {
	c := *cert
	c.LastScannedAt = nil
	return c
}

// computeDiffs produces one diff document per created, changed or archived
// certificate between two snapshots.
func computeDiffs(runID string, previous, current []*certificate.Certificate) ([]store.Diff, error) {
	prevByDigest := make(map[string]*certificate.Certificate, len(previous))
	for _, cert := range previous {
		prevByDigest[cert.Digest] = cert
	}

	var out []store.Diff
	for _, cert := range current {
		prev, existed := prevByDigest[cert.Digest]
		if !existed {
			out = append(out, store.Diff{
				RunID:  runID,
				Digest: cert.Digest,
				Scheme: string(cert.Scheme),
				Type:   store.DiffCreated,
			})
			continue
		}

		changelog, err := r3diff.Diff(diffView(prev), diffView(cert))
		if err != nil {
			return nil, fmt.Errorf("unable to diff certificate %s: %w", cert.Digest, err)
		}
		if len(changelog) == 0 {
			continue
		}

		payload, err := json.Marshal(changelog)
		if err != nil {
			return nil, fmt.Errorf("unable to marshal changelog for %s: %w", cert.Digest, err)
		}

		diffType := store.DiffUpdated
		if prev.Status != certificate.StatusArchived && cert.Status == certificate.StatusArchived {
			diffType = store.DiffArchived
		}
		out = append(out, store.Diff{
			RunID:     runID,
			Digest:    cert.Digest,
			Scheme:    string(cert.Scheme),
			Type:      diffType,
			Changelog: payload,
		})
	}
	return out, nil
}
