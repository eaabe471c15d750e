package mobilenet

import (
	"fmt"
	"strconv"

	"github.com/born-ml/mobilenet/internal/nn"
	"github.com/born-ml/mobilenet/internal/serialization"
	"github.com/born-ml/mobilenet/internal/tensor"
)

// Save writes the state dict and architecture metadata to path
// (SafeTensors format).
func (m *MobileNet[B]) Save(path string) error {
	return nn.SaveStateDict[B](m, path, m.Metadata())
}

// Load rebuilds a network from a checkpoint written by Save.
func Load[B tensor.Backend](path string, backend B) (*MobileNet[B], error) {
	stateDict, metadata, err := serialization.ReadSafeTensorsFile(path, backend.Device())
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if arch := metadata["architecture"]; arch != "mobilenet" {
		return nil, fmt.Errorf("failed to load checkpoint: architecture %q is not mobilenet", arch)
	}

	numClass, err := strconv.Atoi(metadata["num_class"])
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: num_class: %w", err)
	}
	alpha, err := strconv.ParseFloat(metadata["alpha"], 64)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: alpha: %w", err)
	}
	resolution, err := strconv.Atoi(metadata["input_resolution"])
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: input_resolution: %w", err)
	}

	dropout := DefaultDropout
	if v, ok := metadata["dropout"]; ok {
		if dropout, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, fmt.Errorf("failed to load checkpoint: dropout: %w", err)
		}
	}

	model, err := New(numClass, backend,
		WithAlpha(alpha), WithInputResolution(resolution), WithDropout(dropout))
	if err != nil {
		return nil, err
	}
	if err := model.LoadStateDict(stateDict); err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	return model, nil
}
