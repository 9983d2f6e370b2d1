package nvd

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
)

// Fetcher downloads gzip-compressed JSON dataset snapshots. Each fetch tries
// the configured URLs in order (mirror first, live API last) with exponential
// backoff per URL.
type Fetcher struct {
	getter  file.Getter
	retries uint64
}

func NewFetcher(getter file.Getter, retries int) *Fetcher {
	if retries < 1 {
		retries = 1
	}
	return &Fetcher{getter: getter, retries: uint64(retries)}
}

func (f *Fetcher) FetchCPEDictionary(urls ...string) (*CPEFeed, error) {
	feed := &CPEFeed{}
	if err := f.fetchJSON(feed, urls); err != nil {
		return nil, fmt.Errorf("unable to fetch cpe dictionary: %w", err)
	}
	log.Infof("fetched cpe dictionary: version=%s items=%d", feed.DatasetVersion, len(feed.Items))
	return feed, nil
}

func (f *Fetcher) FetchCVEFeed(urls ...string) (*CVEFeed, error) {
	feed := &CVEFeed{}
	if err := f.fetchJSON(feed, urls); err != nil {
		return nil, fmt.Errorf("unable to fetch cve feed: %w", err)
	}
	log.Infof("fetched cve feed: version=%s items=%d", feed.DatasetVersion, len(feed.Items))
	return feed, nil
}

func (f *Fetcher) FetchCPEMatchFeed(urls ...string) (*CPEMatchFeed, error) {
	feed := &CPEMatchFeed{}
	if err := f.fetchJSON(feed, urls); err != nil {
		return nil, fmt.Errorf("unable to fetch cpe-match feed: %w", err)
	}
	log.Infof("fetched cpe-match feed: version=%s entries=%d", feed.DatasetVersion, len(feed.Entries))
	return feed, nil
}

func (f *Fetcher) fetchJSON(dst interface{}, urls []string) error {
	var errs error
	for _, url := range urls {
		if url == "" {
			continue
		}
		err := f.fetchOne(dst, url)
		if err == nil {
			return nil
		}
		log.Warnf("dataset fetch from %q failed, trying next source: %v", url, err)
		errs = multierror.Append(errs, fmt.Errorf("%s: %w", url, err))
	}
	if errs == nil {
		return fmt.Errorf("no dataset URL configured")
	}
	return errs
}

func (f *Fetcher) fetchOne(dst interface{}, url string) error {
	tempDir, err := os.MkdirTemp("", "seccerts-dataset")
	if err != nil {
		return fmt.Errorf("unable to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	target := path.Join(tempDir, "feed.json.gz")

	operation := func() error {
		return f.getter.GetFile(target, url)
	}
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), f.retries)
	if err := backoff.RetryNotify(operation, policy, func(err error, wait time.Duration) {
		log.Debugf("retrying dataset fetch from %q in %v: %v", url, wait, err)
	}); err != nil {
		return err
	}

	fh, err := os.Open(target)
	if err != nil {
		return fmt.Errorf("unable to open downloaded feed: %w", err)
	}
	defer fh.Close()

	reader, err := maybeGunzip(fh)
	if err != nil {
		return err
	}

	if err := json.NewDecoder(reader).Decode(dst); err != nil {
		return fmt.Errorf("unable to decode feed: %w", err)
	}
	return nil
}

// maybeGunzip wraps the reader in a gzip decoder when the payload carries the
// gzip magic bytes, passing plain JSON through unchanged.
func maybeGunzip(fh *os.File) (io.Reader, error) {
	magic := make([]byte, 2)
	n, err := fh.Read(magic)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("unable to sniff feed encoding: %w", err)
	}
	if _, err := fh.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	if n == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(fh)
		if err != nil {
			return nil, fmt.Errorf("unable to open gzip stream: %w", err)
		}
		return gz, nil
	}
	return fh, nil
}
