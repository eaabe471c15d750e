package train

import (
	"context"
	"fmt"
	"io"

	"github.com/born-ml/mobilenet/internal/autodiff"
	"github.com/born-ml/mobilenet/internal/backend/cpu"
	"github.com/born-ml/mobilenet/internal/dataset"
	"github.com/born-ml/mobilenet/internal/mobilenet"
	"github.com/born-ml/mobilenet/internal/nn"
	"github.com/born-ml/mobilenet/internal/optim"
	"github.com/born-ml/mobilenet/internal/tensor"
)

// Backend is the CPU backend with gradient recording used by Run.
type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

// NewBackend creates the backend for cfg.Device.
func NewBackend(cfg Config) (Backend, error) {
	device, err := tensor.ParseDevice(cfg.Device)
	if err != nil {
		return nil, err
	}
	if device != tensor.CPU {
		return nil, fmt.Errorf("device %s is not available", device)
	}
	return autodiff.New(cpu.New()), nil
}

// NewModel builds a MobileNet from the architecture fields of cfg.
func NewModel[B tensor.Backend](cfg Config, numClass int, backend B) (*mobilenet.MobileNet[B], error) {
	return mobilenet.New(numClass, backend,
		mobilenet.WithAlpha(cfg.Alpha),
		mobilenet.WithInputResolution(cfg.InputResolution),
		mobilenet.WithDropout(cfg.Dropout),
		mobilenet.WithSeed(cfg.Seed),
	)
}

// Run trains a fresh MobileNet on trainSet for cfg.Epochs epochs,
// evaluating on testSet after each one. It writes the loss/accuracy plot
// and the final checkpoint when their paths are set. ctx is checked
// between batches.
func Run(ctx context.Context, cfg Config, trainSet, testSet dataset.Dataset, numClass int, w io.Writer) (*History, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	backend, err := NewBackend(cfg)
	if err != nil {
		return nil, err
	}
	model, err := NewModel(cfg, numClass, backend)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(w, "%s: %d parameters\n", model, nn.NumParameters(model.Parameters()))

	trainLoader, err := dataset.NewLoader(trainSet, cfg.BatchSize, true, cfg.Seed)
	if err != nil {
		return nil, err
	}
	testLoader, err := dataset.NewLoader(testSet, cfg.BatchSize, false, 0)
	if err != nil {
		return nil, err
	}

	optimizer, err := optim.New(cfg.Optimizer, model.Parameters(),
		float32(cfg.LR), float32(cfg.Momentum), float32(cfg.WeightDecay))
	if err != nil {
		return nil, err
	}
	criterion := CrossEntropy(backend)

	history := &History{}
	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		fmt.Fprintf(w, "Epoch %d/%d\n", epoch, cfg.Epochs)

		trained, err := TrainEpoch(ctx, model, trainLoader, optimizer, criterion, backend, cfg, w)
		if err != nil {
			return history, fmt.Errorf("epoch %d: %w", epoch, err)
		}
		evaluated, err := Evaluate(ctx, model, testLoader, criterion, backend, cfg, w)
		if err != nil {
			return history, fmt.Errorf("epoch %d: %w", epoch, err)
		}
		history.Add(epoch, trained, evaluated)
	}

	if cfg.PlotPath != "" {
		if err := history.Plot(cfg.PlotPath); err != nil {
			return history, err
		}
		fmt.Fprintf(w, "Saved training curves to %s\n", cfg.PlotPath)
	}
	if cfg.CheckpointPath != "" {
		if err := model.Save(cfg.CheckpointPath); err != nil {
			return history, err
		}
		fmt.Fprintf(w, "Saved checkpoint to %s\n", cfg.CheckpointPath)
	}
	return history, nil
}
