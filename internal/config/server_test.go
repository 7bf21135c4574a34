package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadServerConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	content := `
listen_addr: ":9090"
dataset_path: "testdata/plant.json"
tuning_path: "custom/tuning.json"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("LoadServerConfig failed: %v", err)
	}
	if cfg.ListenAddr != ":9090" {
		t.Errorf("ListenAddr = %q, want :9090", cfg.ListenAddr)
	}
	if cfg.DatasetPath != "testdata/plant.json" {
		t.Errorf("DatasetPath = %q", cfg.DatasetPath)
	}
	if cfg.TuningPath != "custom/tuning.json" {
		t.Errorf("TuningPath = %q", cfg.TuningPath)
	}
}

func TestLoadServerConfigDefaults(t *testing.T) {
	// Without a config file and without a data source validation fails.
	if _, err := LoadServerConfig(""); err == nil {
		t.Error("expected validation error without data source")
	}
}

func TestServerConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ServerConfig
		wantErr bool
	}{
		{"dataset only", ServerConfig{ListenAddr: ":8080", DatasetPath: "p.json"}, false},
		{"database only", ServerConfig{ListenAddr: ":8080", DatabasePath: "p.db"}, false},
		{"no source", ServerConfig{ListenAddr: ":8080"}, true},
		{"both sources", ServerConfig{ListenAddr: ":8080", DatasetPath: "p.json", DatabasePath: "p.db"}, true},
		{"no listen addr", ServerConfig{DatasetPath: "p.json"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
