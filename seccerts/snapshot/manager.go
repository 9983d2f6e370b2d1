/*
Package snapshot orchestrates one pipeline run: source refresh, certificate
normalization, artifact handling, extraction, reference graph, CPE/CVE
matching, diffing, and the atomic publish of the resulting snapshot.
*/
package snapshot

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/wagoodman/go-partybus"

	"github.com/seccerts/seccerts/internal/bus"
	"github.com/seccerts/seccerts/internal/log"
	"github.com/seccerts/seccerts/seccerts/artifact"
	"github.com/seccerts/seccerts/seccerts/certificate"
	"github.com/seccerts/seccerts/seccerts/digest"
	"github.com/seccerts/seccerts/seccerts/event"
	"github.com/seccerts/seccerts/seccerts/extract"
	"github.com/seccerts/seccerts/seccerts/match"
	"github.com/seccerts/seccerts/seccerts/nvd"
	"github.com/seccerts/seccerts/seccerts/refgraph"
	"github.com/seccerts/seccerts/seccerts/rules"
	"github.com/seccerts/seccerts/seccerts/source"
	"github.com/seccerts/seccerts/seccerts/store"
)

// ErrInterrupted is returned when a stop request arrived before the publish
// stage; the staged snapshot is kept but the current pointer is not flipped.
var ErrInterrupted = errors.New("pipeline run interrupted before publish")

// Options select the work of one run.
type Options struct {
	Schemes      []certificate.Scheme // empty means all configured sources
	SkipDownload bool                 // reuse stored artifacts, do not hit the network for documents
	WithCPE      bool
	WithCVE      bool
}

// Config wires the manager's collaborators.
type Config struct {
	Store      *store.Store
	Artifacts  *artifact.Store
	Sources    []source.Source
	Fetcher    *nvd.Fetcher
	RuleSet    *rules.RuleSet
	Extract    extract.Options
	Policy     refgraph.Policy
	Classifier refgraph.Classifier

	CPEThreshold  int
	CPEMaxMatches int
	ArchivalRuns  int // consecutive absences before archival
	Workers       int // per-certificate stage parallelism, <1 means all logical cores

	CPEDictionaryURLs []string
	CVEFeedURLs       []string
	CPEMatchFeedURLs  []string
}

type Manager struct {
	cfg     Config
	stopped atomic.Bool
}

func NewManager(cfg Config) *Manager {
	if cfg.ArchivalRuns < 1 {
		cfg.ArchivalRuns = 3
	}
	if cfg.CPEThreshold == 0 {
		cfg.CPEThreshold = 92
	}
	if cfg.CPEMaxMatches == 0 {
		cfg.CPEMaxMatches = 99
	}
	if cfg.RuleSet == nil {
		cfg.RuleSet = rules.Default()
	}
	return &Manager{cfg: cfg}
}

// RequestStop asks the manager to halt after the stage currently running.
// A run stopped this way never flips the snapshot pointer.
func (m *Manager) RequestStop() {
	m.stopped.Store(true)
}

// Run executes one full pipeline run and returns its run record. The record
// is persisted even when the run fails partway.
func (m *Manager) Run(opts Options) (*store.RunRecord, error) {
	runID := uuid.New().String()
	run := &store.RunRecord{
		ID:        runID,
		StartedAt: time.Now().UTC(),
		Status:    store.RunStatusClean,
	}
	for _, scheme := range m.selectedSchemes(opts) {
		run.Schemes = append(run.Schemes, string(scheme))
	}

	bus.Publish(partybus.Event{Type: event.PipelineRunStarted, Source: runID})
	log.Infof("pipeline run %s started (schemes=%v)", runID, run.Schemes)

	err := m.runStages(runID, run, opts)

	now := time.Now().UTC()
	run.FinishedAt = &now
	if err != nil {
		run.Status = store.RunStatusFailed
		run.Errors = append(run.Errors, err.Error())
	}
	if saveErr := m.cfg.Store.SaveRun(run); saveErr != nil {
		log.Errorf("unable to persist run record %s: %v", runID, saveErr)
	}
	bus.Publish(partybus.Event{Type: event.PipelineRunFinished, Source: runID, Value: run})
	return run, err
}

func (m *Manager) runStages(runID string, run *store.RunRecord, opts Options) error {
	state := &runState{now: time.Now().UTC()}

	previousID, ok, err := m.cfg.Store.CurrentSnapshotID()
	if err != nil {
		return err
	}
	if ok {
		state.hasPrevious = true
		state.previous, err = m.cfg.Store.Certificates(previousID, "")
		if err != nil {
			return err
		}
	}

	stages := []struct {
		name string
		fn   func(runID string, run *store.RunRecord, opts Options, state *runState) error
	}{
		{"refresh-sources", m.stageRefreshSources},
		{"normalize", m.stageNormalize},
		{"artifacts", m.stageArtifacts},
		{"extract", m.stageExtract},
		{"reference-graph", m.stageReferenceGraph},
		{"cpe-cve-match", m.stageMatch},
		{"diff-and-stage", m.stageDiffAndStage},
		{"publish", m.stagePublish},
	}

	for _, stage := range stages {
		if m.stopped.Load() {
			log.Warnf("run %s: stop requested, halting before stage %s", runID, stage.name)
			return ErrInterrupted
		}
		bus.Publish(partybus.Event{Type: event.PipelineStageStarted, Source: runID, Value: stage.name})
		if err := stage.fn(runID, run, opts, state); err != nil {
			return fmt.Errorf("stage %s: %w", stage.name, err)
		}
		bus.Publish(partybus.Event{Type: event.PipelineStageFinished, Source: runID, Value: stage.name})
	}
	return nil
}

// runState carries the intermediate products between stages.
type runState struct {
	now         time.Time
	hasPrevious bool
	previous    []*certificate.Certificate

	records  map[certificate.Scheme][]source.Record
	degraded map[certificate.Scheme]bool

	current []*certificate.Certificate
	diffs   []store.Diff
}

func (m *Manager) selectedSchemes(opts Options) []certificate.Scheme {
	if len(opts.Schemes) == 0 {
		seen := make(map[certificate.Scheme]bool)
		var out []certificate.Scheme
		for _, src := range m.cfg.Sources {
			if !seen[src.Scheme()] {
				seen[src.Scheme()] = true
				out = append(out, src.Scheme())
			}
		}
		return out
	}
	return opts.Schemes
}

func schemeSelected(schemes []certificate.Scheme, scheme certificate.Scheme) bool {
	for _, s := range schemes {
		if s == scheme {
			return true
		}
	}
	return false
}

// forEachCert fans per-certificate stage work out over the configured worker
// count. Every certificate is handed to exactly one worker, so cert-local
// mutation inside fn needs no locking.
func (m *Manager) forEachCert(certs []*certificate.Certificate, fn func(cert *certificate.Certificate)) {
	workers := m.cfg.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	if workers > len(certs) {
		workers = len(certs)
	}
	if workers <= 1 {
		for _, cert := range certs {
			fn(cert)
		}
		return
	}

	jobs := make(chan *certificate.Certificate)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for cert := range jobs {
				fn(cert)
			}
		}()
	}
	for _, cert := range certs {
		jobs <- cert
	}
	close(jobs)
	wg.Wait()
}

// stageRefreshSources lists every selected source. A failing source marks the
// run degraded and contributes no records; its certificates are carried over
// without absence penalties.
func (m *Manager) stageRefreshSources(runID string, run *store.RunRecord, opts Options, state *runState) error {
	selected := m.selectedSchemes(opts)
	state.records = make(map[certificate.Scheme][]source.Record)
	state.degraded = make(map[certificate.Scheme]bool)

	for _, src := range m.cfg.Sources {
		if !schemeSelected(selected, src.Scheme()) {
			continue
		}
		bus.Publish(partybus.Event{Type: event.SourceRefreshStarted, Source: src.Name()})

		records, err := src.List()
		if err != nil {
			log.Errorf("source %s degraded: %v", src.Name(), err)
			state.degraded[src.Scheme()] = true
			run.Status = store.RunStatusDegraded
			run.Errors = append(run.Errors, fmt.Sprintf("source %s: %v", src.Name(), err))
			bus.Publish(partybus.Event{Type: event.SourceDegraded, Source: src.Name(), Error: err})
			continue
		}
		state.records[src.Scheme()] = append(state.records[src.Scheme()], records...)
	}
	return nil
}

// stageNormalize turns source records into the candidate certificate set:
// digests assigned, prior pipeline products carried over, absences counted
// and archival applied.
func (m *Manager) stageNormalize(runID string, run *store.RunRecord, opts Options, state *runState) error {
	selected := m.selectedSchemes(opts)

	prevByDigest := make(map[string]*certificate.Certificate, len(state.previous))
	prevBySchemeID := make(map[string]*certificate.Certificate, len(state.previous))
	assigner := digest.NewAssigner()
	for _, prev := range state.previous {
		prevByDigest[prev.Digest] = prev
		prevBySchemeID[string(prev.Scheme)+"\x00"+prev.SchemeID] = prev
		assigner.Seed(prev.Digest, string(prev.Scheme), prev.SchemeID, prev.Name)
	}

	listed := make(map[string]bool)

	for scheme, records := range state.records {
		for _, record := range records {
			d := assigner.Assign(string(scheme), record.SchemeID, record.Name)
			cert := &certificate.Certificate{
				Digest:            d,
				Scheme:            scheme,
				SchemeID:          record.SchemeID,
				Name:              record.Name,
				Vendor:            record.Vendor,
				Category:          record.Category,
				Status:            record.Status,
				CertificationDate: record.CertificationDate,
				ExpirationDate:    record.ExpirationDate,
				DocumentURIs:      record.DocumentURIs,
			}
			now := state.now
			cert.LastScannedAt = &now

			prev := prevByDigest[d]
			if prev == nil {
				if bySchemeID := prevBySchemeID[string(scheme)+"\x00"+record.SchemeID]; bySchemeID != nil {
					// identity fields changed, keep the old digest navigable
					prev = bySchemeID
					if err := m.cfg.Store.AddDigestAlias(prev.Digest, d); err != nil {
						return err
					}
					log.Infof("certificate %s renamed: digest %s now aliased to %s", record.SchemeID, prev.Digest, d)
				}
			}
			if prev != nil {
				cert.Features = prev.Features
				cert.References = prev.References
				cert.Unresolved = prev.Unresolved
				cert.CPEMatches = prev.CPEMatches
				cert.RelatedCVEs = prev.RelatedCVEs
				// archival is monotonic: a re-listed archived certificate stays archived
				if prev.Status == certificate.StatusArchived {
					cert.Status = certificate.StatusArchived
					cert.ArchivedAt = prev.ArchivedAt
				}
			}

			listed[d] = true
			state.current = append(state.current, cert)
		}
	}

	// carry over everything not listed this run
	for _, prev := range state.previous {
		if listed[prev.Digest] {
			continue
		}
		cert := *prev

		refreshed := schemeSelected(selected, prev.Scheme) && !state.degraded[prev.Scheme]
		if refreshed && cert.Status != certificate.StatusArchived {
			cert.AbsentRuns++
			if cert.AbsentRuns >= m.cfg.ArchivalRuns {
				cert.Status = certificate.StatusArchived
				archivedAt := state.now
				cert.ArchivedAt = &archivedAt
				log.Infof("archiving %s (%s) after %d consecutive absences", cert.Digest, cert.SchemeID, cert.AbsentRuns)
			}
		}
		state.current = append(state.current, &cert)
	}

	log.Infof("run %s normalized %d certificates (%d listed, %d carried over)",
		runID, len(state.current), len(listed), len(state.current)-len(listed))
	return nil
}

// stageArtifacts fetches and converts each listed certificate's documents.
// Fetch metadata from earlier runs is replayed as conditional-request
// validators, and the refreshed metadata is persisted for the next run.
// Per-certificate failures are captured on the certificate and never abort
// the run.
func (m *Manager) stageArtifacts(runID string, run *store.RunRecord, opts Options, state *runState) error {
	if m.cfg.Artifacts == nil {
		return nil
	}

	priors, err := m.cfg.Store.ArtifactRecords()
	if err != nil {
		return err
	}

	var mu sync.Mutex
	var fetched []*certificate.Artifact

	m.forEachCert(state.current, func(cert *certificate.Certificate) {
		for role, uri := range cert.DocumentURIs {
			var art *certificate.Artifact
			var err error
			if opts.SkipDownload {
				if !m.cfg.Artifacts.Exists(cert, role) {
					continue
				}
				art = &certificate.Artifact{CertDigest: cert.Digest, Role: role, URI: uri}
			} else {
				art, err = m.cfg.Artifacts.Fetch(cert, role, uri, priors[cert.Digest][role])
				if err != nil {
					cert.Errors = append(cert.Errors, err.Error())
					continue
				}
			}
			if err := m.cfg.Artifacts.Convert(cert, role, art); err != nil {
				cert.Errors = append(cert.Errors, err.Error())
			}
			if !opts.SkipDownload {
				mu.Lock()
				fetched = append(fetched, art)
				mu.Unlock()
			}
		}
	})

	return m.cfg.Store.SaveArtifactRecords(fetched)
}

func (m *Manager) textFor(cert *certificate.Certificate, role certificate.Role) (string, bool) {
	if m.cfg.Artifacts == nil {
		return "", false
	}
	text, ok, err := m.cfg.Artifacts.Text(cert, role)
	if err != nil {
		log.Warnf("unable to read text for %s/%s: %v", cert.Digest, role, err)
		return "", false
	}
	return text, ok
}

func (m *Manager) stageExtract(runID string, run *store.RunRecord, opts Options, state *runState) error {
	extractor := extract.New(m.cfg.RuleSet, m.cfg.Extract)
	m.forEachCert(state.current, func(cert *certificate.Certificate) {
		texts := make(map[certificate.Role]string)
		for _, role := range certificate.AllRoles {
			if text, ok := m.textFor(cert, role); ok {
				texts[role] = text
			}
		}
		if len(texts) == 0 {
			return
		}
		cert.Features = extractor.Extract(cert, texts)
	})
	return nil
}

func (m *Manager) stageReferenceGraph(runID string, run *store.RunRecord, opts Options, state *runState) error {
	builder := refgraph.NewBuilder(m.cfg.Policy, m.cfg.Classifier, 0, m.textFor)
	builder.Build(state.current)

	for _, cert := range state.current {
		if err := m.cfg.Store.SaveUnresolvedRefs(cert.Digest, runID, cert.Unresolved); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) stageMatch(runID string, run *store.RunRecord, opts Options, state *runState) error {
	if !opts.WithCPE && !opts.WithCVE {
		return nil
	}

	cpeFeed := &nvd.CPEFeed{}
	if err := m.loadDataset(opts, "cpe", cpeFeed, func() (interface{}, string, error) {
		feed, err := m.cfg.Fetcher.FetchCPEDictionary(m.cfg.CPEDictionaryURLs...)
		if err != nil {
			return nil, "", err
		}
		*cpeFeed = *feed
		return feed, feed.DatasetVersion, nil
	}); err != nil {
		return err
	}

	classifier := match.NewClassifier(cpeFeed, m.cfg.CPEThreshold, m.cfg.CPEMaxMatches)
	m.forEachCert(state.current, func(cert *certificate.Certificate) {
		text, _ := m.textFor(cert, certificate.RoleReport)
		cert.CPEMatches = classifier.Match(cert, text)
	})

	if !opts.WithCVE {
		return nil
	}

	cveFeed := &nvd.CVEFeed{}
	if err := m.loadDataset(opts, "cve", cveFeed, func() (interface{}, string, error) {
		feed, err := m.cfg.Fetcher.FetchCVEFeed(m.cfg.CVEFeedURLs...)
		if err != nil {
			return nil, "", err
		}
		*cveFeed = *feed
		return feed, feed.DatasetVersion, nil
	}); err != nil {
		return err
	}

	matchFeed := &nvd.CPEMatchFeed{}
	if err := m.loadDataset(opts, "cpe_match", matchFeed, func() (interface{}, string, error) {
		feed, err := m.cfg.Fetcher.FetchCPEMatchFeed(m.cfg.CPEMatchFeedURLs...)
		if err != nil {
			return nil, "", err
		}
		*matchFeed = *feed
		return feed, feed.DatasetVersion, nil
	}); err != nil {
		return err
	}

	cveMatcher := match.NewCVEMatcher(cveFeed, matchFeed)
	m.forEachCert(state.current, func(cert *certificate.Certificate) {
		cert.RelatedCVEs = cveMatcher.RelatedCVEs(cert.CPEMatches)
	})
	return nil
}

// loadDataset reads the named dataset from the store when downloads are
// skipped, and fetches then persists it otherwise.
func (m *Manager) loadDataset(opts Options, name string, dst interface{}, fetch func() (interface{}, string, error)) error {
	if opts.SkipDownload {
		_, ok, err := m.cfg.Store.Dataset(name, dst)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("dataset %s not present in store and downloads are disabled", name)
		}
		return nil
	}

	payload, version, err := fetch()
	if err != nil {
		return err
	}
	return m.cfg.Store.SaveDataset(name, version, payload)
}

func (m *Manager) stageDiffAndStage(runID string, run *store.RunRecord, opts Options, state *runState) error {
	diffs, err := computeDiffs(runID, state.previous, state.current)
	if err != nil {
		return err
	}
	state.diffs = diffs

	for _, d := range diffs {
		switch d.Type {
		case store.DiffCreated:
			run.Created++
		case store.DiffUpdated:
			run.Updated++
		case store.DiffArchived:
			run.Archived++
		}
	}

	if err := m.cfg.Store.SaveCertificates(runID, state.current); err != nil {
		return err
	}
	return m.cfg.Store.SaveDiffs(diffs)
}

// stagePublish flips the current-snapshot pointer. On failure the staged
// snapshot rows are left in place for inspection. A run that changed nothing
// leaves the pointer on the previous snapshot, so running the pipeline twice
// against unchanged sources is a no-op for readers.
func (m *Manager) stagePublish(runID string, run *store.RunRecord, opts Options, state *runState) error {
	if state.hasPrevious && len(state.diffs) == 0 {
		if err := m.cfg.Store.DropSnapshot(runID); err != nil {
			return fmt.Errorf("unable to drop unchanged staged snapshot: %w", err)
		}
		log.Infof("run %s produced no changes, snapshot pointer left in place", runID)
		return nil
	}

	if err := m.cfg.Store.SetCurrentSnapshot(runID); err != nil {
		return fmt.Errorf("unable to publish snapshot (staging retained): %w", err)
	}

	summary := fmt.Sprintf("created=%d updated=%d archived=%d", run.Created, run.Updated, run.Archived)
	log.Infof("snapshot %s published: %s", runID, summary)
	bus.Publish(partybus.Event{Type: event.SnapshotPublished, Source: runID, Value: summary})
	if run.Created > 0 || run.Updated > 0 || run.Archived > 0 {
		bus.Publish(partybus.Event{Type: event.SearchReindexStarted, Source: runID})
	}
	return nil
}

// Describe summarizes the published snapshot for status reporting.
func (m *Manager) Describe() (string, error) {
	current, ok, err := m.cfg.Store.CurrentSnapshotID()
	if err != nil {
		return "", err
	}
	if !ok {
		return "no snapshot published", nil
	}
	certs, err := m.cfg.Store.Certificates(current, "")
	if err != nil {
		return "", err
	}

	counts := make(map[certificate.Scheme]int)
	for _, cert := range certs {
		counts[cert.Scheme]++
	}
	parts := make([]string, 0, len(counts))
	for _, scheme := range certificate.AllSchemes {
		if counts[scheme] > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", scheme, counts[scheme]))
		}
	}
	return fmt.Sprintf("snapshot %s: %d certificates (%s)", current, len(certs), strings.Join(parts, " ")), nil
}
