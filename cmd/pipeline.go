package cmd

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/seccerts/seccerts/internal/config"
	"github.com/seccerts/seccerts/internal/file"
	"github.com/seccerts/seccerts/seccerts/artifact"
	"github.com/seccerts/seccerts/seccerts/certificate"
	"github.com/seccerts/seccerts/seccerts/extract"
	"github.com/seccerts/seccerts/seccerts/nvd"
	"github.com/seccerts/seccerts/seccerts/refgraph"
	"github.com/seccerts/seccerts/seccerts/search"
	"github.com/seccerts/seccerts/seccerts/snapshot"
	"github.com/seccerts/seccerts/seccerts/source"
	"github.com/seccerts/seccerts/seccerts/store"
)

const storeFileName = "seccerts.db"

func openStore(cfg *config.Application) (*store.Store, error) {
	if err := os.MkdirAll(cfg.Store.Dir, 0755); err != nil {
		return nil, fmt.Errorf("unable to create store directory: %w", err)
	}
	return store.Open(filepath.Join(cfg.Store.Dir, storeFileName))
}

// pipeline bundles the collaborators a pipeline command needs.
type pipeline struct {
	manager   *snapshot.Manager
	db        *store.Store
	artifacts *artifact.Store
}

func (p *pipeline) Close() {
	_ = p.db.Close()
}

// buildPipeline wires a snapshot manager and its collaborators from the
// application config.
func buildPipeline(cfg *config.Application) (*pipeline, error) {
	db, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: cfg.Sources.FetchTimeout}
	getter := file.NewGetter(httpClient)
	retries := cfg.Sources.RetryAttempts

	sources := []source.Source{
		source.NewDatasetSource("cc", certificate.SchemeCC, getter, retries, cfg.Sources.CCDatasetURL),
		source.NewDatasetSource("pp", certificate.SchemePP, getter, retries, cfg.Sources.PPDatasetURL),
		source.NewDatasetSource("fips", certificate.SchemeFIPS, getter, retries, cfg.Sources.FIPSDatasetURL),
		source.NewDatasetSource("fips-iut", certificate.SchemeFIPS, getter, retries, cfg.Sources.FIPSIUTDatasetURL),
		source.NewDatasetSource("fips-mip", certificate.SchemeFIPS, getter, retries, cfg.Sources.FIPSMIPDatasetURL),
	}

	converter := artifact.NewCommandConverter("pdftotext", "-layout", "{pdf}", "{txt}")
	ocr := artifact.NewCommandConverter("ocrmypdf", "--force-ocr", "--sidecar", "{txt}", "{pdf}", os.DevNull)

	artifacts := artifact.NewStore(afero.NewOsFs(), cfg.Pipeline.ArtifactDir, httpClient, converter, ocr)

	var classifier refgraph.Classifier
	switch cfg.Classifier.Kind {
	case config.ClassifierHeuristic:
		classifier = refgraph.HeuristicClassifier{}
	case config.ClassifierRemote:
		classifier = refgraph.NewRemoteClassifier(cfg.Classifier.URL, cfg.Sources.FetchTimeout)
	}

	manager := snapshot.NewManager(snapshot.Config{
		Store:     db,
		Artifacts: artifacts,
		Sources:   sources,
		Fetcher:   nvd.NewFetcher(getter, retries),
		Extract: extract.Options{
			IgnoreFirstPage:    cfg.Pipeline.IgnoreFirstPage,
			MinimalTokenLength: cfg.Pipeline.MinimalTokenLength,
		},
		Policy:     cfg.Pipeline.CCGraphOpt,
		Classifier: classifier,

		CPEThreshold:  cfg.Matching.CPEMatchingThreshold,
		CPEMaxMatches: cfg.Matching.CPENMaxMatches,
		ArchivalRuns:  cfg.Pipeline.ArchivalRuns,
		Workers:       cfg.Pipeline.NThreads,

		CPEDictionaryURLs: feedURLs(cfg.Sources.CPEDictionaryURL, cfg.Sources.NVDAPIURL, "cpes/2.0"),
		CVEFeedURLs:       feedURLs(cfg.Sources.CVEFeedURL, cfg.Sources.NVDAPIURL, "cves/2.0"),
		CPEMatchFeedURLs:  feedURLs(cfg.Sources.CPEMatchFeedURL, cfg.Sources.NVDAPIURL, "cpematch/2.0"),
	})

	return &pipeline{manager: manager, db: db, artifacts: artifacts}, nil
}

// feedURLs builds the candidate list for one NVD dataset: the mirrored feed
// first, then the matching live NVD API endpoint as fallback.
func feedURLs(mirror, apiBase, apiPath string) []string {
	urls := []string{mirror}
	if apiBase != "" {
		urls = append(urls, strings.TrimRight(apiBase, "/")+"/"+apiPath)
	}
	return urls
}

func (p *pipeline) textProvider() search.TextProvider {
	return func(cert *certificate.Certificate, role certificate.Role) (string, bool) {
		text, ok, err := p.artifacts.Text(cert, role)
		if err != nil || !ok {
			return "", false
		}
		return text, true
	}
}

// syncSearchIndex folds one run's changes into the search index. An empty
// index is seeded with a full rebuild of the current snapshot; afterwards
// only the certificates the run's diffs name are reindexed, and digests no
// longer present in the snapshot are deleted.
func (p *pipeline) syncSearchIndex(cfg *config.Application, runID string) error {
	current, ok, err := p.db.CurrentSnapshotID()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	idx, err := search.Open(cfg.Search.IndexDir, cfg.Search.ItemsPerPage)
	if err != nil {
		return err
	}
	defer idx.Close()

	return syncIndex(p.db, idx, current, runID, p.textProvider())
}

func syncIndex(db *store.Store, idx *search.Index, snapshotID, runID string, texts search.TextProvider) error {
	count, err := idx.Count()
	if err != nil {
		return err
	}
	if count == 0 {
		certs, err := db.Certificates(snapshotID, "")
		if err != nil {
			return err
		}
		return idx.Rebuild(certs, texts)
	}

	diffs, err := db.DiffsForRun(runID)
	if err != nil {
		return err
	}
	for _, d := range diffs {
		cert, ok, err := db.SnapshotCertificate(snapshotID, d.Digest)
		if err != nil {
			return err
		}
		if !ok {
			if err := idx.Delete(d.Digest); err != nil {
				return err
			}
			continue
		}
		if err := idx.IndexCertificates([]*certificate.Certificate{cert}, texts); err != nil {
			return err
		}
	}
	return nil
}
