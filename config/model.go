package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ModelConfig is the config.json shipped in a speech model directory.
// Only the file names matter to hark; the rest is passed along to the
// engine untouched.
type ModelConfig struct {
	MimiName      string  `json:"mimi_name"`
	TokenizerName string  `json:"tokenizer_name"`
	Card          int     `json:"card"`
	TextCard      int     `json:"text_card"`
	Dim           int     `json:"dim"`
	NQ            int     `json:"n_q"`
	Context       int     `json:"context"`
	MaxPeriod     float64 `json:"max_period"`
	NumHeads      int     `json:"num_heads"`
	NumLayers     int     `json:"num_layers"`
	Causal        bool    `json:"causal"`

	dir string
}

func LoadModelConfig(dir string) (ModelConfig, error) {
	var mc ModelConfig
	data, err := os.ReadFile(filepath.Join(dir, "config.json"))
	if err != nil {
		return mc, fmt.Errorf("read model config: %w", err)
	}
	if err := json.Unmarshal(data, &mc); err != nil {
		return mc, fmt.Errorf("parse %s: %w", filepath.Join(dir, "config.json"), err)
	}
	if mc.TokenizerName == "" {
		return mc, errors.New("model config has no tokenizer_name")
	}
	mc.dir = dir
	return mc, nil
}

// TokenizerPath is the tokenizer file inside the model directory.
func (mc ModelConfig) TokenizerPath() string {
	if filepath.IsAbs(mc.TokenizerName) {
		return mc.TokenizerName
	}
	return filepath.Join(mc.dir, mc.TokenizerName)
}

// ResolveTokenizer picks the tokenizer file: an explicit setting wins,
// otherwise the model directory's config.json names it.
func ResolveTokenizer(s Settings) (string, error) {
	if s.Tokenizer != "" {
		return s.Tokenizer, nil
	}
	if s.ModelDir == "" {
		return "", errors.New("no tokenizer configured; set tokenizer or model_dir")
	}
	mc, err := LoadModelConfig(s.ModelDir)
	if err != nil {
		return "", err
	}
	return mc.TokenizerPath(), nil
}
