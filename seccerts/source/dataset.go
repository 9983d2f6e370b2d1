package source

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-multierror"

	"github.com/seccerts/seccerts/internal/file"
	"github.com/seccerts/seccerts/internal/log"
	"github.com/seccerts/seccerts/seccerts/certificate"
)

// feedFile is the wire shape of a published dataset snapshot.
type feedFile struct {
	DatasetVersion string   `json:"datasetVersion"`
	Records        []Record `json:"records"`
}

// DatasetSource lists records from a gzip-compressed JSON dataset snapshot
// behind one or more URLs, tried in order with exponential backoff per URL.
type DatasetSource struct {
	name    string
	scheme  certificate.Scheme
	urls    []string
	getter  file.Getter
	retries uint64
}

func NewDatasetSource(name string, scheme certificate.Scheme, getter file.Getter, retries int, urls ...string) *DatasetSource {
	if retries < 1 {
		retries = 1
	}
	return &DatasetSource{
		name:    name,
		scheme:  scheme,
		urls:    urls,
		getter:  getter,
		retries: uint64(retries),
	}
}

func (s *DatasetSource) Name() string {
	return s.name
}

func (s *DatasetSource) Scheme() certificate.Scheme {
	return s.scheme
}

func (s *DatasetSource) List() ([]Record, error) {
	var errs error
	for _, url := range s.urls {
		if url == "" {
			continue
		}
		records, err := s.listOne(url)
		if err == nil {
			log.Infof("source %s listed %d records", s.name, len(records))
			return records, nil
		}
		log.Warnf("source %s fetch from %q failed: %v", s.name, url, err)
		errs = multierror.Append(errs, fmt.Errorf("%s: %w", url, err))
	}
	if errs == nil {
		return nil, fmt.Errorf("source %s has no dataset URL configured", s.name)
	}
	return nil, errs
}

func (s *DatasetSource) listOne(url string) ([]Record, error) {
	tempDir, err := os.MkdirTemp("", "seccerts-source")
	if err != nil {
		return nil, fmt.Errorf("unable to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	target := path.Join(tempDir, "dataset.json.gz")

	operation := func() error {
		return s.getter.GetFile(target, url)
	}
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), s.retries)
	if err := backoff.RetryNotify(operation, policy, func(err error, wait time.Duration) {
		log.Debugf("retrying source %s fetch in %v: %v", s.name, wait, err)
	}); err != nil {
		return nil, err
	}

	fh, err := os.Open(target)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	reader, err := maybeGunzip(fh)
	if err != nil {
		return nil, err
	}

	var feed feedFile
	if err := json.NewDecoder(reader).Decode(&feed); err != nil {
		return nil, fmt.Errorf("unable to decode dataset: %w", err)
	}

	for i := range feed.Records {
		if feed.Records[i].Status == "" {
			feed.Records[i].Status = certificate.StatusActive
		}
	}
	return feed.Records, nil
}

func maybeGunzip(fh *os.File) (io.Reader, error) {
	magic := make([]byte, 2)
	n, err := fh.Read(magic)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if _, err := fh.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	if n == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(fh)
		if err != nil {
			return nil, err
		}
		return gz, nil
	}
	return fh, nil
}
