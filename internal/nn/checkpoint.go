package nn

import (
	"fmt"

	"github.com/born-ml/mobilenet/internal/serialization"
	"github.com/born-ml/mobilenet/internal/tensor"
)

// SaveStateDict writes the module's state dict to path in SafeTensors format.
// metadata is stored in the "__metadata__" header entry.
//
// Example:
//
//	err := nn.SaveStateDict(model, "mobilenet.safetensors", map[string]string{"alpha": "1"})
func SaveStateDict[B tensor.Backend](m Module[B], path string, metadata map[string]string) error {
	if err := serialization.WriteSafeTensorsFile(path, m.StateDict(), metadata); err != nil {
		return fmt.Errorf("failed to save state dict: %w", err)
	}
	return nil
}

// LoadStateDictFile reads a SafeTensors file into m and returns its metadata.
func LoadStateDictFile[B tensor.Backend](m Module[B], path string, device tensor.Device) (map[string]string, error) {
	stateDict, metadata, err := serialization.ReadSafeTensorsFile(path, device)
	if err != nil {
		return nil, fmt.Errorf("failed to load state dict: %w", err)
	}
	if err := m.LoadStateDict(stateDict); err != nil {
		return nil, fmt.Errorf("failed to load state dict: %w", err)
	}
	return metadata, nil
}
