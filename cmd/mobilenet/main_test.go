package main

import (
	"bytes"
	"context"
	"flag"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigFlags_Override(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"alpha": 0.5, "epochs": 3, "num_prints": 4}`), 0o600))

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	config := configFlags(fs)
	require.NoError(t, fs.Parse([]string{"-config", path, "-epochs", "7", "-lr", "0.1"}))

	cfg, err := config()
	require.NoError(t, err)
	assert.Equal(t, 0.5, cfg.Alpha)
	assert.Equal(t, 7, cfg.Epochs)
	assert.Equal(t, 0.1, cfg.LR)
	assert.Equal(t, 4, cfg.NumPrints)
}

func TestConfigFlags_Invalid(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	config := configFlags(fs)
	require.NoError(t, fs.Parse([]string{"-num-prints", "0"}))

	_, err := config()
	assert.ErrorContains(t, err, "num_prints")
}

func TestRunSummary(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runSummary([]string{"-alpha", "0.25", "-resolution", "32"}, &out))

	text := out.String()
	assert.Contains(t, text, "MobileNet(10, alpha=0.25, input_resolution=32)")
	assert.Contains(t, text, "    13       256           1\n")
	assert.Contains(t, text, "Total params: ")
}

func TestRunTrain_SyntheticWithPredict(t *testing.T) {
	dir := t.TempDir()
	checkpoint := filepath.Join(dir, "model.safetensors")

	var out bytes.Buffer
	err := runTrain(context.Background(), []string{
		"-synthetic", "20", "-epochs", "1", "-batch", "10",
		"-alpha", "0.25", "-checkpoint", checkpoint,
	}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Using 20 synthetic images")
	assert.FileExists(t, checkpoint)

	imagePath := filepath.Join(dir, "input.png")
	f, err := os.Create(imagePath)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewNRGBA(image.Rect(0, 0, 40, 32))))
	require.NoError(t, f.Close())

	out.Reset()
	require.NoError(t, runPredict([]string{"-checkpoint", checkpoint, "-top", "2", imagePath}, &out))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, imagePath, lines[0])
	assert.Regexp(t, `^  \S+ +\d+\.\d{2}%$`, lines[1])

	assert.Error(t, runPredict([]string{"-checkpoint", checkpoint, filepath.Join(dir, "missing.png")}, &out))
	assert.ErrorContains(t, runPredict([]string{"-checkpoint", checkpoint}, &out), "no image files")
}

func TestRunTrain_MissingDataset(t *testing.T) {
	var out bytes.Buffer
	err := runTrain(context.Background(), []string{"-data", t.TempDir(), "-download=false"}, &out)
	require.Error(t, err)
	assert.Contains(t, out.String(), "-synthetic")
}
