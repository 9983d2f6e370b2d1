package certificate

import (
	"time"
)

// Scheme identifies the certification program that issued a certificate.
type Scheme string

const (
	SchemeCC   Scheme = "cc"
	SchemePP   Scheme = "pp"
	SchemeFIPS Scheme = "fips"
)

var AllSchemes = []Scheme{SchemeCC, SchemePP, SchemeFIPS}

func ParseScheme(value string) Scheme {
	switch Scheme(value) {
	case SchemeCC, SchemePP, SchemeFIPS:
		return Scheme(value)
	}
	return ""
}

// Status tracks whether a certificate is still listed by its scheme.
// Certificates are never deleted, only archived.
type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

func ParseStatus(value string) Status {
	switch Status(value) {
	case StatusActive, StatusArchived:
		return Status(value)
	}
	return ""
}

// Role distinguishes the documents attached to a certificate.
type Role string

const (
	RoleReport Role = "report" // the certification report
	RoleTarget Role = "target" // the security target
	RolePolicy Role = "policy" // the security policy (FIPS)
)

var AllRoles = []Role{RoleReport, RoleTarget, RolePolicy}

// TextStatus records the outcome of converting an artifact to plain text.
type TextStatus string

const (
	TextStatusOK         TextStatus = "ok"
	TextStatusMissing    TextStatus = "missing"
	TextStatusUnreadable TextStatus = "unreadable"
)

// Certificate is one security-product certification as assembled from a
// source dataset and enriched by the pipeline. It is keyed by Digest
// everywhere it is stored.
type Certificate struct {
	Digest   string `json:"digest"`
	Scheme   Scheme `json:"scheme"`
	SchemeID string `json:"scheme_id"` // opaque identifier issued by the scheme, e.g. "BSI-DSZ-CC-1091-2018"
	Name     string `json:"name"`
	Vendor   string `json:"vendor,omitempty"`
	Category string `json:"category,omitempty"`
	Status   Status `json:"status"`

	CertificationDate *time.Time `json:"certification_date,omitempty"`
	ExpirationDate    *time.Time `json:"expiration_date,omitempty"`

	// DocumentURIs maps each artifact role to its origin URI.
	DocumentURIs map[Role]string `json:"document_uris,omitempty"`

	// derived by the pipeline

	Features    *FeatureRecord  `json:"features,omitempty"`
	References  []ReferenceEdge `json:"references,omitempty"`
	Unresolved  []string        `json:"unresolved_references,omitempty"`
	CPEMatches  []CPEMatch      `json:"cpe_matches,omitempty"`
	RelatedCVEs []CVEMatch      `json:"related_cves,omitempty"`

	IncomingDirectReferencesCount int `json:"incoming_direct_references_count"`
	OutgoingDirectReferencesCount int `json:"outgoing_direct_references_count"`

	IncomingIndirectReferences []string `json:"incoming_indirect_references,omitempty"`
	OutgoingIndirectReferences []string `json:"outgoing_indirect_references,omitempty"`

	// bookkeeping owned by the snapshot manager

	AbsentRuns    int        `json:"absent_runs,omitempty"` // consecutive runs the source did not list this certificate
	ArchivedAt    *time.Time `json:"archived_at,omitempty"`
	LastScannedAt *time.Time `json:"last_scanned_at,omitempty"` // volatile, excluded from diffs
	Errors        []string   `json:"errors,omitempty"`
}

// Artifact is one downloaded document belonging to a certificate.
type Artifact struct {
	CertDigest   string     `json:"cert_digest"`
	Role         Role       `json:"role"`
	URI          string     `json:"uri"`
	ContentHash  string     `json:"content_hash"` // hex sha256 of the pdf payload
	ETag         string     `json:"etag,omitempty"`
	LastModified string     `json:"last_modified,omitempty"`
	TextStatus   TextStatus `json:"text_status"`
}

// Occurrence is one sighting of a matched literal within an artifact.
// Page is -1 when the source text carries no form-feed page breaks.
type Occurrence struct {
	Role Role `json:"role"`
	Page int  `json:"page"`
}

// FeatureRecord is the extractor output for one certificate:
// rule category -> rule name -> matched literal -> occurrences (scan order).
type FeatureRecord struct {
	RuleSetVersion string                                        `json:"rule_set_version"`
	Hits           map[string]map[string]map[string][]Occurrence `json:"hits,omitempty"`
	ClaimedEAL     string                                        `json:"claimed_eal,omitempty"`
	ImpliedSARs    []SAR                                         `json:"implied_sars,omitempty"`
}

// SAR is a security assurance requirement component, e.g. (ADV_FSP, 4).
type SAR struct {
	Family string `json:"family"`
	Level  int    `json:"level"`
}

// ReferenceLabel classifies why one certificate references another.
type ReferenceLabel string

const (
	LabelComponent       ReferenceLabel = "component"
	LabelEvaluationReuse ReferenceLabel = "evaluation_reuse"
	LabelPredecessor     ReferenceLabel = "predecessor"
	LabelUnrelated       ReferenceLabel = "unrelated"
	LabelUnknown         ReferenceLabel = "unknown"
)

// ReferenceEdge is a directed reference between two certificates in the same
// snapshot. Self loops are never emitted.
type ReferenceEdge struct {
	Source     string         `json:"source"`
	Target     string         `json:"target"`
	SourceRole Role           `json:"source_role"`
	Evidence   []string       `json:"evidence,omitempty"` // text segments around each sighting
	Label      ReferenceLabel `json:"label"`
}

// CPEMatch is a retained CPE candidate with its provenance.
type CPEMatch struct {
	URI            string `json:"uri"`
	Score          int    `json:"score"` // token-sort similarity in [0, 100]
	MatchedOn      string `json:"matched_on"`
	DatasetVersion string `json:"dataset_version,omitempty"`
}

// CVEMatch is one related CVE with the CPE that pulled it in.
type CVEMatch struct {
	ID             string  `json:"id"`
	ViaCPE         string  `json:"via_cpe"`
	BaseScore      float64 `json:"base_score,omitempty"`
	Severity       string  `json:"severity,omitempty"`
	DatasetVersion string  `json:"dataset_version,omitempty"`
}
