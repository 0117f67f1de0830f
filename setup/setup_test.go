package setup

import (
	"path/filepath"
	"testing"

	"github.com/spf13/viper"

	"node.town/hark/config"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		answers Answers
		wantErr bool
	}{
		{"exec", Answers{EngineKind: "exec", Command: "stt-engine --hf", ModelDir: "m", Device: "auto"}, false},
		{"remote", Answers{EngineKind: "remote", URL: "ws://host/api", Tokenizer: "t.model", Device: "cpu"}, false},
		{"no command", Answers{EngineKind: "exec", ModelDir: "m", Device: "auto"}, true},
		{"http url", Answers{EngineKind: "remote", URL: "http://host", ModelDir: "m", Device: "auto"}, true},
		{"no tokenizer", Answers{EngineKind: "exec", Command: "e", Device: "auto"}, true},
		{"bad device", Answers{EngineKind: "exec", Command: "e", ModelDir: "m", Device: "tpu"}, true},
		{"bad kind", Answers{EngineKind: "carrier pigeon", ModelDir: "m", Device: "auto"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.answers.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyAndWrite(t *testing.T) {
	v := viper.New()
	config.SetDefaults(v)
	Answers{
		EngineKind: "exec",
		Command:    "stt-engine --hf-repo kyutai/stt-1b-en_fr-candle",
		ModelDir:   "/models/stt",
		Device:     "cuda",
	}.Apply(v)

	path := filepath.Join(t.TempDir(), "hark", "config.yaml")
	if err := Write(v, path); err != nil {
		t.Fatalf("Write: %v", err)
	}

	reread := viper.New()
	if err := config.Init(reread, path); err != nil {
		t.Fatalf("Init: %v", err)
	}
	s, err := config.Load(reread)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Engine.Command != "stt-engine" || len(s.Engine.Args) != 2 || s.Engine.Args[1] != "kyutai/stt-1b-en_fr-candle" {
		t.Errorf("engine = %+v", s.Engine)
	}
	if s.ModelDir != "/models/stt" || s.Device != "cuda" {
		t.Errorf("settings = %+v", s)
	}
}

func TestFromViperRoundTrip(t *testing.T) {
	v := viper.New()
	config.SetDefaults(v)
	Answers{EngineKind: "remote", URL: "wss://engine", APIKey: "secret", Tokenizer: "tok.model", Device: "auto"}.Apply(v)

	a := FromViper(v)
	if a.EngineKind != "remote" || a.URL != "wss://engine" || a.APIKey != "secret" || a.Tokenizer != "tok.model" {
		t.Errorf("FromViper = %+v", a)
	}
	if err := a.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}
