package config

import "testing"

func TestIsStartupKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"db_host", true},
		{"DB_HOST", true},
		{"port", true},
		{"graph_name", true},
		{"some_other_setting", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsStartupKey(tt.key); got != tt.want {
			t.Errorf("IsStartupKey(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if cfg.DBHost != "localhost" {
		t.Errorf("DBHost = %q, want localhost", cfg.DBHost)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.GraphName != "bimatlas" {
		t.Errorf("GraphName = %q, want bimatlas", cfg.GraphName)
	}
}

func TestLoadMissingFileIsNotFatal(t *testing.T) {
	if _, err := Load("/nonexistent/bimatlas.toml"); err != nil {
		t.Fatalf("Load with a missing config file should fall back to defaults, got error: %v", err)
	}
}
