// Package train runs MobileNet training and evaluation epochs and reports
// progress as fixed-width batch lines followed by timing and metric summaries.
package train

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/born-ml/mobilenet/internal/tensor"
)

// Config holds the training hyperparameters and reporting cadence.
type Config struct {
	Device          string  `json:"device"`
	NumPrints       int     `json:"num_prints"`
	PrintStepTest   int     `json:"print_step_test"` // 0 disables per-batch evaluation lines
	Epochs          int     `json:"epochs"`
	BatchSize       int     `json:"batch_size"`
	Optimizer       string  `json:"optimizer"`
	LR              float64 `json:"lr"`
	Momentum        float64 `json:"momentum"`
	WeightDecay     float64 `json:"weight_decay"`
	Alpha           float64 `json:"alpha"`
	InputResolution int     `json:"input_resolution"`
	Dropout         float64 `json:"dropout"`
	DataRoot        string  `json:"data_root"`
	Download        bool    `json:"download"`
	Seed            uint64  `json:"seed"`
	PlotPath        string  `json:"plot_path,omitempty"`
	CheckpointPath  string  `json:"checkpoint_path,omitempty"`
}

// DefaultConfig returns the settings used for CIFAR-10 at 32×32.
func DefaultConfig() Config {
	return Config{
		Device:          "cpu",
		NumPrints:       10,
		PrintStepTest:   0,
		Epochs:          10,
		BatchSize:       64,
		Optimizer:       "sgd",
		LR:              0.01,
		Momentum:        0.9,
		WeightDecay:     5e-4,
		Alpha:           1.0,
		InputResolution: 32,
		Dropout:         0.001,
		DataRoot:        "./data",
		Download:        true,
		Seed:            42,
	}
}

// LoadConfig reads a JSON config file. Keys absent from the file keep
// their DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	//nolint:gosec // G304: config path is supplied by the caller
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if _, err := tensor.ParseDevice(c.Device); err != nil {
		errs = append(errs, err)
	}
	if c.NumPrints < 1 {
		errs = append(errs, fmt.Errorf("num_prints must be >= 1, got %d", c.NumPrints))
	}
	if c.PrintStepTest < 0 {
		errs = append(errs, fmt.Errorf("print_step_test must be >= 0, got %d", c.PrintStepTest))
	}
	if c.Epochs < 1 {
		errs = append(errs, fmt.Errorf("epochs must be >= 1, got %d", c.Epochs))
	}
	if c.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("batch_size must be >= 1, got %d", c.BatchSize))
	}
	if c.LR <= 0 {
		errs = append(errs, fmt.Errorf("lr must be positive, got %g", c.LR))
	}
	if c.Momentum < 0 || c.WeightDecay < 0 {
		errs = append(errs, fmt.Errorf("momentum and weight_decay must be non-negative"))
	}
	return errors.Join(errs...)
}

// PrintCadence returns the batch interval between progress lines so that
// about numPrints lines are printed per epoch. It is at least 1.
func PrintCadence(numBatches, numPrints int) int {
	if numPrints < 1 {
		return 1
	}
	return max(1, numBatches/numPrints)
}
