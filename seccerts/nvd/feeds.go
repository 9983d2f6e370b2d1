/*
Package nvd models the NVD-derived datasets the matcher consumes: the CPE
dictionary, the CVE feed, and the CPE-match expansion data.
*/
package nvd

import (
	"time"

	"github.com/facebookincubator/nvdtools/wfn"
)

// CPEFeed is the CPE dictionary snapshot.
type CPEFeed struct {
	DatasetVersion string    `json:"datasetVersion"`
	Items          []CPEItem `json:"items"`
}

// CPEItem is one dictionary entry.
type CPEItem struct {
	URI   string `json:"uri"` // formatted-string binding, e.g. "cpe:2.3:a:openssl:openssl:1.1.1:*:*:*:*:*:*:*"
	Title string `json:"title,omitempty"`
}

// Attributes parses the item's URI into its WFN attributes.
func (i CPEItem) Attributes() (*wfn.Attributes, error) {
	return wfn.UnbindFmtString(i.URI)
}

// CVEFeed is the CVE snapshot.
type CVEFeed struct {
	DatasetVersion string    `json:"datasetVersion"`
	Items          []CVEItem `json:"items"`
}

// CVEItem is one vulnerability with the match criteria that select its
// vulnerable configurations.
type CVEItem struct {
	ID        string     `json:"id"`
	Published *time.Time `json:"published,omitempty"`
	BaseScore float64    `json:"baseScore,omitempty"`
	Vector    string     `json:"vector,omitempty"` // CVSS vector, preferred over baseScore when present
	Criteria  []string   `json:"vulnerableCriteria"`
}

// CPEMatchFeed expands match criteria into concrete CPEs with optional
// version range bounds.
type CPEMatchFeed struct {
	DatasetVersion string          `json:"datasetVersion"`
	Entries        []CPEMatchEntry `json:"entries"`
}

type CPEMatchEntry struct {
	Criteria              string   `json:"criteria"`
	VersionStartIncluding string   `json:"versionStartIncluding,omitempty"`
	VersionStartExcluding string   `json:"versionStartExcluding,omitempty"`
	VersionEndIncluding   string   `json:"versionEndIncluding,omitempty"`
	VersionEndExcluding   string   `json:"versionEndExcluding,omitempty"`
	Matches               []string `json:"matches,omitempty"` // concrete CPE URIs known to satisfy the criteria
}

// Dataset bundles the three feeds loaded for one matcher pass.
type Dataset struct {
	CPE      *CPEFeed
	CVE      *CVEFeed
	CPEMatch *CPEMatchFeed
}
