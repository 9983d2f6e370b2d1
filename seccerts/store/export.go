package store

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/seccerts/seccerts/seccerts/certificate"
)

// Export writes a collection as canonical JSON: entries in stable (digest or
// chronological) order, object keys sorted by the encoder. Supported
// collections: certificates, diffs, runs.
func (s *Store) Export(w io.Writer, collection, snapshotOrRunID string, scheme certificate.Scheme) error {
	switch collection {
	case "certificates":
		certs, err := s.Certificates(snapshotOrRunID, scheme)
		if err != nil {
			return err
		}
		return writeCanonical(w, certs)
	case "diffs":
		diffs, err := s.DiffsForRun(snapshotOrRunID)
		if err != nil {
			return err
		}
		return writeCanonical(w, diffs)
	case "runs":
		runs, err := s.Runs(0)
		if err != nil {
			return err
		}
		return writeCanonical(w, runs)
	}
	return fmt.Errorf("unknown collection %q (options=[certificates diffs runs])", collection)
}

func writeCanonical(w io.Writer, payload interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(payload)
}
