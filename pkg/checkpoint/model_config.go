package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/marmos91/tensorscope/pkg/remote"
)

// ModelConfigFile holds the architecture description of a model.
const ModelConfigFile = "config.json"

// ModelConfig is the part of config.json shown next to the tensor table.
type ModelConfig struct {
	ModelType     string   `json:"model_type" yaml:"model_type"`
	Architectures []string `json:"architectures,omitempty" yaml:"architectures,omitempty"`
	TorchDType    string   `json:"torch_dtype,omitempty" yaml:"torch_dtype,omitempty"`

	// Quantized reports whether the config carries a quantization_config.
	Quantized bool `json:"quantized" yaml:"quantized"`
}

// FetchModelConfig reads config.json from src. A repository without one
// yields nil and no error.
func FetchModelConfig(ctx context.Context, src remote.Source) (*ModelConfig, error) {
	data, err := src.Get(ctx, ModelConfigFile)
	if errors.Is(err, remote.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", ModelConfigFile, err)
	}

	var raw struct {
		ModelConfig
		QuantizationConfig json.RawMessage `json:"quantization_config"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", ModelConfigFile, err)
	}
	cfg := raw.ModelConfig
	cfg.Quantized = len(raw.QuantizationConfig) > 0 && string(raw.QuantizationConfig) != "null"
	return &cfg, nil
}
