/*
Package store persists snapshots, diffs, run logs and dataset blobs in a
local SQLite database. Certificates are stored as JSON documents keyed by
digest and scoped to the snapshot that produced them; "publishing" a snapshot
is a single pointer-row flip inside a transaction.
*/
package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/seccerts/seccerts/seccerts/certificate"
)

// RunStatus summarizes one pipeline run.
type RunStatus string

const (
	RunStatusClean    RunStatus = "clean"
	RunStatusDegraded RunStatus = "degraded"
	RunStatusFailed   RunStatus = "failed"
)

// DiffType classifies one per-certificate diff document.
type DiffType string

const (
	DiffCreated  DiffType = "created"
	DiffUpdated  DiffType = "updated"
	DiffArchived DiffType = "archived"
)

// Diff is one certificate's change between consecutive snapshots.
type Diff struct {
	RunID     string          `json:"run_id"`
	Digest    string          `json:"digest"`
	Scheme    string          `json:"scheme"`
	Type      DiffType        `json:"type"`
	Changelog json.RawMessage `json:"changelog,omitempty"`
}

// RunRecord is one row of the run log.
type RunRecord struct {
	ID         string     `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     RunStatus  `json:"status"`
	Schemes    []string   `json:"schemes,omitempty"`
	Created    int        `json:"created"`
	Updated    int        `json:"updated"`
	Archived   int        `json:"archived"`
	Errors     []string   `json:"errors,omitempty"`
}

type certificateRow struct {
	SnapshotID string `gorm:"primaryKey;index"`
	Digest     string `gorm:"primaryKey"`
	Scheme     string `gorm:"index"`
	Document   []byte
}

type diffRow struct {
	ID       uint   `gorm:"primaryKey"`
	RunID    string `gorm:"index"`
	Digest   string `gorm:"index"`
	Scheme   string
	Type     string
	Document []byte
}

type runRow struct {
	ID       string `gorm:"primaryKey"`
	Document []byte
}

type datasetRow struct {
	Name     string `gorm:"primaryKey"` // cpe, cve, cpe_match
	Version  string
	Document []byte
}

type pointerRow struct {
	Name       string `gorm:"primaryKey"` // always "current"
	SnapshotID string
	FlippedAt  time.Time
}

type digestAliasRow struct {
	Alias  string `gorm:"primaryKey"`
	Digest string `gorm:"index"`
}

type unresolvedRefRow struct {
	SourceDigest string `gorm:"primaryKey"`
	Literal      string `gorm:"primaryKey"`
	FirstRunID   string
}

type artifactRow struct {
	CertDigest string `gorm:"primaryKey"`
	Role       string `gorm:"primaryKey"`
	Document   []byte
}

const currentPointer = "current"

type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the database at the given path and applies
// migrations. Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to open store at %q: %w", path, err)
	}

	if err := db.AutoMigrate(
		&certificateRow{},
		&diffRow{},
		&runRow{},
		&datasetRow{},
		&pointerRow{},
		&digestAliasRow{},
		&unresolvedRefRow{},
		&artifactRow{},
	); err != nil {
		return nil, fmt.Errorf("unable to migrate store schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveCertificates writes the given certificates into the named snapshot,
// replacing any prior rows of that snapshot for the same digests.
func (s *Store) SaveCertificates(snapshotID string, certs []*certificate.Certificate) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, cert := range certs {
			payload, err := json.Marshal(cert)
			if err != nil {
				return fmt.Errorf("unable to marshal certificate %s: %w", cert.Digest, err)
			}
			row := certificateRow{
				SnapshotID: snapshotID,
				Digest:     cert.Digest,
				Scheme:     string(cert.Scheme),
				Document:   payload,
			}
			if err := tx.Save(&row).Error; err != nil {
				return fmt.Errorf("unable to save certificate %s: %w", cert.Digest, err)
			}
		}
		return nil
	})
}

// Certificates loads a snapshot, optionally filtered to one scheme, sorted by
// digest.
func (s *Store) Certificates(snapshotID string, scheme certificate.Scheme) ([]*certificate.Certificate, error) {
	query := s.db.Where("snapshot_id = ?", snapshotID)
	if scheme != "" {
		query = query.Where("scheme = ?", string(scheme))
	}

	var rows []certificateRow
	if err := query.Order("digest").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("unable to load snapshot %s: %w", snapshotID, err)
	}

	out := make([]*certificate.Certificate, 0, len(rows))
	for _, row := range rows {
		var cert certificate.Certificate
		if err := json.Unmarshal(row.Document, &cert); err != nil {
			return nil, fmt.Errorf("unable to unmarshal certificate %s: %w", row.Digest, err)
		}
		out = append(out, &cert)
	}
	return out, nil
}

// Certificate loads one certificate from the current snapshot.
func (s *Store) Certificate(digest string) (*certificate.Certificate, error) {
	current, ok, err := s.CurrentSnapshotID()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no published snapshot")
	}

	var row certificateRow
	err = s.db.Where("snapshot_id = ? AND digest = ?", current, digest).First(&row).Error
	if err != nil {
		return nil, fmt.Errorf("unable to load certificate %s: %w", digest, err)
	}

	var cert certificate.Certificate
	if err := json.Unmarshal(row.Document, &cert); err != nil {
		return nil, err
	}
	return &cert, nil
}

// SnapshotCertificate loads one certificate from the named snapshot;
// ok=false when the snapshot carries no row for the digest.
func (s *Store) SnapshotCertificate(snapshotID, digest string) (*certificate.Certificate, bool, error) {
	var row certificateRow
	err := s.db.Where("snapshot_id = ? AND digest = ?", snapshotID, digest).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("unable to load certificate %s: %w", digest, err)
	}

	var cert certificate.Certificate
	if err := json.Unmarshal(row.Document, &cert); err != nil {
		return nil, false, err
	}
	return &cert, true, nil
}

// CurrentSnapshotID returns the published snapshot id, or ok=false when no
// snapshot has been published yet.
func (s *Store) CurrentSnapshotID() (string, bool, error) {
	var row pointerRow
	err := s.db.Where("name = ?", currentPointer).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("unable to read snapshot pointer: %w", err)
	}
	return row.SnapshotID, true, nil
}

// SetCurrentSnapshot flips the published-snapshot pointer. The flip is the
// only mutation in its transaction, so readers observe either the old or the
// new snapshot, never a mixture.
func (s *Store) SetCurrentSnapshot(snapshotID string) error {
	row := pointerRow{Name: currentPointer, SnapshotID: snapshotID, FlippedAt: time.Now().UTC()}
	return s.db.Transaction(func(tx *gorm.DB) error {
		return tx.Save(&row).Error
	})
}

// DropSnapshot removes a staged snapshot's certificate rows, e.g. after a
// failed commit was inspected.
func (s *Store) DropSnapshot(snapshotID string) error {
	return s.db.Where("snapshot_id = ?", snapshotID).Delete(&certificateRow{}).Error
}

func (s *Store) SaveDiffs(diffs []Diff) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, d := range diffs {
			payload, err := json.Marshal(d)
			if err != nil {
				return err
			}
			row := diffRow{
				RunID:    d.RunID,
				Digest:   d.Digest,
				Scheme:   d.Scheme,
				Type:     string(d.Type),
				Document: payload,
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("unable to save diff for %s: %w", d.Digest, err)
			}
		}
		return nil
	})
}

// DiffsForRun returns the diffs of one run, sorted by digest.
func (s *Store) DiffsForRun(runID string) ([]Diff, error) {
	var rows []diffRow
	if err := s.db.Where("run_id = ?", runID).Order("digest").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("unable to load diffs for run %s: %w", runID, err)
	}
	out := make([]Diff, 0, len(rows))
	for _, row := range rows {
		var d Diff
		if err := json.Unmarshal(row.Document, &d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *Store) SaveRun(run *RunRecord) error {
	payload, err := json.Marshal(run)
	if err != nil {
		return err
	}
	return s.db.Save(&runRow{ID: run.ID, Document: payload}).Error
}

// Runs returns the most recent run records, newest first.
func (s *Store) Runs(limit int) ([]*RunRecord, error) {
	var rows []runRow
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("unable to load run log: %w", err)
	}

	out := make([]*RunRecord, 0, len(rows))
	for _, row := range rows {
		var run RunRecord
		if err := json.Unmarshal(row.Document, &run); err != nil {
			return nil, err
		}
		out = append(out, &run)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SaveDataset stores one feed snapshot (cpe, cve, cpe_match) as a blob.
func (s *Store) SaveDataset(name, version string, payload interface{}) error {
	document, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("unable to marshal dataset %s: %w", name, err)
	}
	return s.db.Save(&datasetRow{Name: name, Version: version, Document: document}).Error
}

// Dataset loads a feed snapshot into dst; ok=false when never fetched.
func (s *Store) Dataset(name string, dst interface{}) (string, bool, error) {
	var row datasetRow
	err := s.db.Where("name = ?", name).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("unable to load dataset %s: %w", name, err)
	}
	if err := json.Unmarshal(row.Document, dst); err != nil {
		return "", false, err
	}
	return row.Version, true, nil
}

// AddDigestAlias records that an old digest now resolves to a new one, so
// stale references stay navigable after identity changes.
func (s *Store) AddDigestAlias(alias, digest string) error {
	return s.db.Save(&digestAliasRow{Alias: alias, Digest: digest}).Error
}

// ResolveDigest follows at most one alias hop.
func (s *Store) ResolveDigest(digest string) (string, error) {
	var row digestAliasRow
	err := s.db.Where("alias = ?", digest).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return digest, nil
	}
	if err != nil {
		return "", err
	}
	return row.Digest, nil
}

// SaveUnresolvedRefs replaces the unresolved reference rows of one source
// certificate.
func (s *Store) SaveUnresolvedRefs(sourceDigest, runID string, literals []string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("source_digest = ?", sourceDigest).Delete(&unresolvedRefRow{}).Error; err != nil {
			return err
		}
		for _, literal := range literals {
			row := unresolvedRefRow{SourceDigest: sourceDigest, Literal: literal, FirstRunID: runID}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveArtifactRecords upserts fetch metadata (validators, content hash, text
// status) for downloaded documents, keyed by certificate digest and role.
func (s *Store) SaveArtifactRecords(arts []*certificate.Artifact) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, art := range arts {
			payload, err := json.Marshal(art)
			if err != nil {
				return fmt.Errorf("unable to marshal artifact %s/%s: %w", art.CertDigest, art.Role, err)
			}
			row := artifactRow{CertDigest: art.CertDigest, Role: string(art.Role), Document: payload}
			if err := tx.Save(&row).Error; err != nil {
				return fmt.Errorf("unable to save artifact %s/%s: %w", art.CertDigest, art.Role, err)
			}
		}
		return nil
	})
}

// ArtifactRecords loads all stored artifact metadata, keyed by certificate
// digest and role.
func (s *Store) ArtifactRecords() (map[string]map[certificate.Role]*certificate.Artifact, error) {
	var rows []artifactRow
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("unable to load artifact records: %w", err)
	}
	out := make(map[string]map[certificate.Role]*certificate.Artifact, len(rows))
	for _, row := range rows {
		var art certificate.Artifact
		if err := json.Unmarshal(row.Document, &art); err != nil {
			return nil, fmt.Errorf("unable to unmarshal artifact %s/%s: %w", row.CertDigest, row.Role, err)
		}
		byRole, ok := out[art.CertDigest]
		if !ok {
			byRole = make(map[certificate.Role]*certificate.Artifact)
			out[art.CertDigest] = byRole
		}
		byRole[art.Role] = &art
	}
	return out, nil
}

func (s *Store) UnresolvedRefs(sourceDigest string) ([]string, error) {
	var rows []unresolvedRefRow
	if err := s.db.Where("source_digest = ?", sourceDigest).Order("literal").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Literal)
	}
	return out, nil
}
