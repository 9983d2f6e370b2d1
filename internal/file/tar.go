package file

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

const (
	_  = iota
	KB = 1 << (10 * iota)
	MB
	GB
	// limit the tar reader per file to prevent decompression bomb attacks
	decompressionByteReadLimit = 5 * GB
)

type errZipSlipDetected struct {
	Prefix   string
	JoinArgs []string
}

func (e *errZipSlipDetected) Error() string {
	return fmt.Sprintf("paths are not allowed to resolve outside of the root prefix (%q). Destination: %q", e.Prefix, e.JoinArgs)
}

// safeJoin ensures that any destinations do not resolve to a path above the prefix path.
func safeJoin(prefix string, dest ...string) (string, error) {
	joinResult := filepath.Join(append([]string{prefix}, dest...)...)
	cleanJoinResult := filepath.Clean(joinResult)
	if !strings.HasPrefix(cleanJoinResult, filepath.Clean(prefix)) {
		return "", &errZipSlipDetected{
			Prefix:   prefix,
			JoinArgs: dest,
		}
	}
	// why not return the clean path? the caller may not expect it from what should only be a join operation.
	return joinResult, nil
}

func UnTarGz(fs afero.Fs, dst string, r io.Reader) error {
	gzr, err := gzip.NewReader(r)
	if err != nil {
		return err
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)

	for {
		header, err := tr.Next()

		switch {
		case err == io.EOF:
			return nil

		case err != nil:
			return err

		case header == nil:
			continue
		}

		target, err := safeJoin(dst, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := fs.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("failed to make dir (%s): %w", target, err)
			}

		case tar.TypeReg:
			if err := fs.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return fmt.Errorf("failed to make parent dir (%s): %w", target, err)
			}

			f, err := fs.OpenFile(target, os.O_CREATE|os.O_RDWR|os.O_TRUNC, os.FileMode(header.Mode))
			if err != nil {
				return fmt.Errorf("failed to create file (%s): %w", target, err)
			}

			if _, err := io.Copy(f, io.LimitReader(tr, decompressionByteReadLimit)); err != nil {
				f.Close()
				return fmt.Errorf("failed to copy file (%s): %w", target, err)
			}
			f.Close()
		}
	}
}

// TarGzTree writes a gzipped tarball of the tree rooted at src. The archive is
// deterministic: entries are sorted by path, times are zeroed, and modes are
// fixed, so identical content always produces an identical archive.
func TarGzTree(fs afero.Fs, src string, w io.Writer) error {
	var paths []string
	err := afero.Walk(fs, src, func(path string, info os.FileInfo, errIn error) error {
		if errIn != nil {
			return errIn
		}
		if info.IsDir() {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk tree (%s): %w", src, err)
	}
	sort.Strings(paths)

	gzw := gzip.NewWriter(w)
	tw := tar.NewWriter(gzw)

	for _, path := range paths {
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		info, err := fs.Stat(path)
		if err != nil {
			return err
		}

		header := &tar.Header{
			Name:     filepath.ToSlash(rel),
			Typeflag: tar.TypeReg,
			Mode:     0644,
			Size:     info.Size(),
			Format:   tar.FormatPAX,
		}

		if err := tw.WriteHeader(header); err != nil {
			return fmt.Errorf("failed to write tar header (%s): %w", rel, err)
		}

		f, err := fs.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open file (%s): %w", path, err)
		}

		if _, err := io.Copy(tw, f); err != nil {
			f.Close()
			return fmt.Errorf("failed to write tar entry (%s): %w", rel, err)
		}
		f.Close()
	}

	if err := tw.Close(); err != nil {
		return err
	}
	return gzw.Close()
}
