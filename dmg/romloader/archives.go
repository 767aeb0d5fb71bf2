package romloader

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/nwaples/rardecode/v2"
)

// openedFile is the common shape of zip and 7z entries.
type openedFile interface {
	Open() (io.ReadCloser, error)
}

func visitOpened(name string, f openedFile, visit visitFunc) (bool, error) {
	rc, err := f.Open()
	if err != nil {
		return true, fmt.Errorf("opening %s: %w", name, err)
	}
	defer rc.Close()
	return visit(name, rc)
}

func walkZip(path string, visit visitFunc) error {
	r, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("opening zip: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.FileInfo().IsDir() || !isROMName(f.Name) {
			continue
		}
		if done, err := visitOpened(f.Name, f, visit); done || err != nil {
			return err
		}
	}
	return nil
}

func walk7z(path string, visit visitFunc) error {
	r, err := sevenzip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("opening 7z: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.FileInfo().IsDir() || !isROMName(f.Name) {
			continue
		}
		if done, err := visitOpened(f.Name, f, visit); done || err != nil {
			return err
		}
	}
	return nil
}

func walkRar(path string, visit visitFunc) error {
	r, err := rardecode.OpenReader(path)
	if err != nil {
		return fmt.Errorf("opening rar: %w", err)
	}
	defer r.Close()

	for {
		header, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading rar entry: %w", err)
		}
		if header.IsDir || !isROMName(header.Name) {
			continue
		}
		if done, err := visit(header.Name, r); done || err != nil {
			return err
		}
	}
}

// walkGzip handles both tar.gz bundles and a single gzipped ROM, whose
// contents are taken as-is.
func walkGzip(path string, visit visitFunc) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("opening gzip: %w", err)
	}
	defer gr.Close()

	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz") {
		return walkTar(gr, visit)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	_, err = visit(name, gr)
	return err
}

func walkTar(r io.Reader, visit visitFunc) error {
	tr := tar.NewReader(r)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar entry: %w", err)
		}
		if header.Typeflag != tar.TypeReg || !isROMName(header.Name) {
			continue
		}
		if done, err := visit(header.Name, tr); done || err != nil {
			return err
		}
	}
}
