/*
Package source abstracts the upstream certification datasets. Every source
lists normalized records; the snapshot manager turns records into
certificates.
*/
package source

import (
	"time"

	"github.com/seccerts/seccerts/seccerts/certificate"
)

// Record is one normalized row of a source dataset.
type Record struct {
	SchemeID          string                      `json:"scheme_id"`
	Name              string                      `json:"name"`
	Vendor            string                      `json:"vendor,omitempty"`
	Category          string                      `json:"category,omitempty"`
	Status            certificate.Status          `json:"status,omitempty"`
	CertificationDate *time.Time                  `json:"certification_date,omitempty"`
	ExpirationDate    *time.Time                  `json:"expiration_date,omitempty"`
	DocumentURIs      map[certificate.Role]string `json:"document_uris,omitempty"`
}

// Source lists the records of one certification dataset. Implementations
// must be safe to call repeatedly; transient upstream failure is reported as
// an error and marks the source degraded for the run.
type Source interface {
	Name() string
	Scheme() certificate.Scheme
	List() ([]Record, error)
}
