package dataset

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/md5" //nolint:gosec // G501: MD5 is the published archive checksum, not a security control
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Published location and checksum of the CIFAR-10 binary archive.
const (
	DefaultURL = "https://www.cs.toronto.edu/~kriz/cifar-10-binary.tar.gz"
	DefaultMD5 = "c32a1d4ab5d03f1284b67883e8d87530"
)

const archiveName = "cifar-10-binary.tar.gz"

type options struct {
	download bool
	url      string
	md5      string
	client   *http.Client
	progress io.Writer
}

func defaultOptions() options {
	return options{
		download: true,
		url:      DefaultURL,
		md5:      DefaultMD5,
		client:   http.DefaultClient,
		progress: io.Discard,
	}
}

// Option configures NewCIFAR10.
type Option func(*options)

// WithDownload enables or disables fetching the archive when files are missing.
func WithDownload(download bool) Option {
	return func(o *options) { o.download = download }
}

// WithSource overrides the archive URL and its expected MD5 (hex).
func WithSource(url, md5sum string) Option {
	return func(o *options) { o.url, o.md5 = url, md5sum }
}

// WithHTTPClient sets the client used for downloading.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.client = client }
}

// WithProgress sets where download status lines are written.
func WithProgress(w io.Writer) Option {
	return func(o *options) { o.progress = w }
}

// ensureDownloaded makes sure every batch file exists under dir.
func ensureDownloaded(ctx context.Context, root, dir string, o options) error {
	if batchesPresent(dir) {
		if o.download {
			fmt.Fprintln(o.progress, "Files already downloaded and verified")
		}
		return nil
	}
	if !o.download {
		return fmt.Errorf("cifar10: %w in %s (enable download to fetch it)", ErrNotFound, dir)
	}

	if err := os.MkdirAll(root, 0o750); err != nil {
		return fmt.Errorf("cifar10: %w", err)
	}
	archive := filepath.Join(root, archiveName)

	if sum, err := fileMD5(archive); err != nil || sum != o.md5 {
		fmt.Fprintf(o.progress, "Downloading %s to %s\n", o.url, archive)
		if err := fetch(ctx, o.client, o.url, archive); err != nil {
			return err
		}
		sum, err := fileMD5(archive)
		if err != nil {
			return fmt.Errorf("cifar10: %w", err)
		}
		if sum != o.md5 {
			return fmt.Errorf("cifar10: checksum mismatch for %s: got %s, want %s", archive, sum, o.md5)
		}
	}

	fmt.Fprintf(o.progress, "Extracting %s to %s\n", archive, root)
	if err := extractTarGz(archive, root); err != nil {
		return err
	}
	if !batchesPresent(dir) {
		return fmt.Errorf("cifar10: archive did not contain %s", batchDir)
	}
	return nil
}

func batchesPresent(dir string) bool {
	for _, name := range append(append([]string(nil), trainFiles...), testFiles...) {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return false
		}
	}
	return true
}

func fetch(ctx context.Context, client *http.Client, url, dst string) (err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("cifar10: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("cifar10: download failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cifar10: download failed: %s", resp.Status)
	}

	tmp := dst + ".part"
	//nolint:gosec // G304: path is built from the dataset root
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("cifar10: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	if _, err = io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		return fmt.Errorf("cifar10: download failed: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("cifar10: %w", err)
	}
	return os.Rename(tmp, dst)
}

func fileMD5(path string) (string, error) {
	//nolint:gosec // G304: path is built from the dataset root
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New() //nolint:gosec // G401: see import
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// extractTarGz unpacks regular files and directories of archive into root.
func extractTarGz(archive, root string) error {
	//nolint:gosec // G304: path is built from the dataset root
	f, err := os.Open(archive)
	if err != nil {
		return fmt.Errorf("cifar10: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("cifar10: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("cifar10: corrupt archive: %w", err)
		}

		target := filepath.Join(root, hdr.Name) //nolint:gosec // G305: checked by withinRoot
		if !withinRoot(root, target) {
			return fmt.Errorf("cifar10: archive entry %q escapes %s", hdr.Name, root)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o750); err != nil {
				return fmt.Errorf("cifar10: %w", err)
			}
		case tar.TypeReg:
			if err := writeFile(target, tr); err != nil {
				return err
			}
		}
	}
}

// withinRoot reports whether target lies inside root. Both may be relative.
func withinRoot(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

func writeFile(path string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("cifar10: %w", err)
	}
	//nolint:gosec // G304: path validated by extractTarGz
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cifar10: %w", err)
	}
	//nolint:gosec // G110: archive size is bounded by the checksum-verified download
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return fmt.Errorf("cifar10: %w", err)
	}
	return f.Close()
}
