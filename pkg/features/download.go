package features

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-resty/resty/v2"
)

var (
	apiClient = resty.New()
)

// Download fetches the dataset archive from url and extracts every protocol
// file into dir. Archives nested inside the download are opened in memory.
func Download(ctx context.Context, url string, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	archive := filepath.Join(dir, "dataset.zip")
	defer os.Remove(archive)

	log.Printf("downloading dataset from %s", url)
	resp, err := apiClient.R().SetContext(ctx).SetOutput(archive).Get(url)
	if err != nil {
		return fmt.Errorf("failed to download %s: %v", url, err)
	}
	if resp.IsError() {
		return fmt.Errorf("failed to download %s: %s", url, resp.Status())
	}

	r, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("failed to open %s: %v", archive, err)
	}
	defer r.Close()

	n, err := extractProtocol(&r.Reader, dir)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no protocol files found in %s", url)
	}
	log.Printf("extracted %d protocol files into %s", n, dir)
	return nil
}

func isProtocolFile(name string) bool {
	dir, base := path.Split(name)
	return strings.HasSuffix(strings.TrimSuffix(dir, "/"), "Protocol") &&
		strings.HasPrefix(base, "subject") && strings.HasSuffix(base, ".dat")
}

func extractProtocol(r *zip.Reader, dir string) (int, error) {
	n := 0
	for _, f := range r.File {
		switch {
		case strings.HasSuffix(f.Name, ".zip"):
			data, err := readZipFile(f)
			if err != nil {
				return n, err
			}
			nested, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
			if err != nil {
				return n, fmt.Errorf("failed to open nested archive %s: %v", f.Name, err)
			}
			m, err := extractProtocol(nested, dir)
			n += m
			if err != nil {
				return n, err
			}
		case isProtocolFile(f.Name):
			if err := writeZipFile(f, filepath.Join(dir, path.Base(f.Name))); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func writeZipFile(f *zip.File, dst string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
