package dataset

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/md5" //nolint:gosec // test fixture checksum
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const recordsPerFile = 2

// fakeBatch builds recordsPerFile records whose red plane encodes the label.
func fakeBatch(first int) []byte {
	var buf bytes.Buffer
	for i := range recordsPerFile {
		label := byte((first + i) % NumClasses)
		buf.WriteByte(label)
		buf.Write(bytes.Repeat([]byte{label * 10}, planeBytes))
		buf.Write(bytes.Repeat([]byte{100}, planeBytes))
		buf.Write(bytes.Repeat([]byte{200}, planeBytes))
	}
	return buf.Bytes()
}

type tarEntry struct {
	name string
	body []byte
}

func fakeArchive(t *testing.T, entries []tarEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, e := range entries {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     e.name,
			Mode:     0o644,
			Size:     int64(len(e.body)),
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write(e.body)
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func cifarEntries() []tarEntry {
	var entries []tarEntry
	for f, name := range trainFiles {
		entries = append(entries, tarEntry{batchDir + "/" + name, fakeBatch(f * recordsPerFile)})
	}
	entries = append(entries,
		tarEntry{batchDir + "/" + testFiles[0], fakeBatch(3)},
		tarEntry{batchDir + "/batches.meta.txt", []byte(strings.Join(defaultClasses, "\n") + "\n\n")},
	)
	return entries
}

func checksum(data []byte) string {
	sum := md5.Sum(data) //nolint:gosec // test fixture checksum
	return hex.EncodeToString(sum[:])
}

// serve returns a server for archive and a counter of requests it received.
func serve(t *testing.T, archive []byte) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write(archive)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestCIFAR10_DownloadAndRead(t *testing.T) {
	archive := fakeArchive(t, cifarEntries())
	srv, hits := serve(t, archive)
	root := t.TempDir()
	ctx := context.Background()

	var progress bytes.Buffer
	train, err := NewCIFAR10(ctx, root, true, nil,
		WithSource(srv.URL, checksum(archive)),
		WithHTTPClient(srv.Client()),
		WithProgress(&progress))
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
	assert.Contains(t, progress.String(), "Downloading")
	assert.Contains(t, progress.String(), "Extracting")

	assert.True(t, train.Train())
	assert.Equal(t, len(trainFiles)*recordsPerFile, train.Len())
	assert.Equal(t, 10, train.NumClass())
	assert.Equal(t, defaultClasses, train.Classes())

	raw, label, err := train.Raw(7)
	require.NoError(t, err)
	assert.Equal(t, int32(7), label)
	assert.Equal(t, image.Rect(0, 0, 32, 32), raw.Bounds())
	assert.Equal(t, color.NRGBA{R: 70, G: 100, B: 200, A: 255}, raw.(*image.NRGBA).NRGBAAt(5, 9))

	img, label, err := train.Item(7)
	require.NoError(t, err)
	assert.Equal(t, int32(7), label)
	assert.Equal(t, []int{3, 32, 32}, []int{img.Channels, img.Height, img.Width})
	assert.InDelta(t, (70.0/255-0.485)/0.229, img.At(0, 3, 4), 1e-5)
	assert.InDelta(t, (100.0/255-0.456)/0.224, img.At(1, 31, 0), 1e-5)
	assert.InDelta(t, (200.0/255-0.406)/0.225, img.At(2, 0, 31), 1e-5)

	_, _, err = train.Item(train.Len())
	assert.Error(t, err)

	// A second open reuses the extracted files.
	progress.Reset()
	test, err := NewCIFAR10(ctx, root, false, nil,
		WithSource(srv.URL, checksum(archive)),
		WithProgress(&progress))
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, "Files already downloaded and verified\n", progress.String())
	assert.False(t, test.Train())
	assert.Equal(t, recordsPerFile, test.Len())

	_, label, err = test.Item(0)
	require.NoError(t, err)
	assert.Equal(t, int32(3), label)
}

func TestCIFAR10_NoDownload(t *testing.T) {
	_, err := NewCIFAR10(context.Background(), t.TempDir(), true, nil, WithDownload(false))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCIFAR10_ChecksumMismatch(t *testing.T) {
	archive := fakeArchive(t, cifarEntries())
	srv, _ := serve(t, archive)

	_, err := NewCIFAR10(context.Background(), t.TempDir(), true, nil,
		WithSource(srv.URL, strings.Repeat("0", 32)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum mismatch")
}

func TestCIFAR10_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewCIFAR10(context.Background(), t.TempDir(), true, nil, WithSource(srv.URL, DefaultMD5))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestCIFAR10_RejectsEscapingEntries(t *testing.T) {
	archive := fakeArchive(t, []tarEntry{{"../evil.bin", []byte("x")}})
	srv, _ := serve(t, archive)
	root := filepath.Join(t.TempDir(), "data")

	_, err := NewCIFAR10(context.Background(), root, true, nil, WithSource(srv.URL, checksum(archive)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes")
	assert.NoFileExists(t, filepath.Join(filepath.Dir(root), "evil.bin"))
}

func TestCIFAR10_CurrentDirectoryRoot(t *testing.T) {
	archive := fakeArchive(t, cifarEntries())
	srv, _ := serve(t, archive)

	for _, root := range []string{".", ""} {
		t.Run(fmt.Sprintf("root=%q", root), func(t *testing.T) {
			dir := t.TempDir()
			t.Chdir(dir)

			ds, err := NewCIFAR10(context.Background(), root, true, nil, WithSource(srv.URL, checksum(archive)))
			require.NoError(t, err)
			assert.Equal(t, len(trainFiles)*recordsPerFile, ds.Len())
			assert.FileExists(t, filepath.Join(dir, batchDir, "data_batch_1.bin"))
		})
	}
}

func TestWithinRoot(t *testing.T) {
	tests := []struct {
		root, target string
		want         bool
	}{
		{".", "cifar-10-batches-bin/data_batch_1.bin", true},
		{"", "cifar-10-batches-bin", true},
		{"data", "data/cifar-10-batches-bin/test_batch.bin", true},
		{"/tmp/data", "/tmp/data/x", true},
		{"data", "data/..evil", true},
		{".", "../evil.bin", false},
		{"data", "evil.bin", false},
		{"/tmp/data", "/tmp/database/x", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, withinRoot(tt.root, tt.target), "%q in %q", tt.target, tt.root)
	}
}

func TestCIFAR10_InvalidBatchFiles(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"truncated", fakeBatch(0)[:recordBytes+5], "not a multiple"},
		{"bad label", append([]byte{12}, make([]byte, recordBytes-1)...), "label 12"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			dir := filepath.Join(root, batchDir)
			require.NoError(t, os.MkdirAll(dir, 0o750))
			for _, name := range append(append([]string(nil), trainFiles...), testFiles...) {
				require.NoError(t, os.WriteFile(filepath.Join(dir, name), tt.data, 0o600))
			}

			_, err := NewCIFAR10(context.Background(), root, false, nil, WithDownload(false))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestScanClasses(t *testing.T) {
	_, err := scanClasses(strings.NewReader("cat\ndog\n"))
	assert.Error(t, err)

	classes, err := scanClasses(strings.NewReader(strings.Join(defaultClasses, "\r\n")))
	require.NoError(t, err)
	assert.Equal(t, defaultClasses, classes)
}

func TestChannelStats(t *testing.T) {
	archive := fakeArchive(t, cifarEntries())
	srv, _ := serve(t, archive)
	ds, err := NewCIFAR10(context.Background(), t.TempDir(), true, nil, WithSource(srv.URL, checksum(archive)))
	require.NoError(t, err)

	mean, std, err := ChannelStats(ds)
	require.NoError(t, err)

	// Train labels are 0..9 once each, so the red plane holds 0, 10, ..., 90.
	assert.InDelta(t, 45.0/255, mean[0], 1e-6)
	assert.InDelta(t, 10*math.Sqrt(8.25)/255, std[0], 1e-5)
	assert.InDelta(t, 100.0/255, mean[1], 1e-6)
	assert.InDelta(t, 0, std[1], 1e-5)
	assert.InDelta(t, 200.0/255, mean[2], 1e-6)
}
