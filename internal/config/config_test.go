package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseRequiresScriptOrTelemetryFlag(t *testing.T) {
	if _, err := Parse(nil); err == nil {
		t.Fatal("expected an error when no script paths or -t are given")
	}
}

func TestParsePositionalScriptPaths(t *testing.T) {
	cfg, err := Parse([]string{"-n", "rover1", "a.txt", "b.txt"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.AgentName != "rover1" {
		t.Fatalf("expected agent name rover1, got %q", cfg.AgentName)
	}
	if len(cfg.ScriptPaths) != 2 || cfg.ScriptPaths[0] != "a.txt" || cfg.ScriptPaths[1] != "b.txt" {
		t.Fatalf("unexpected script paths %v", cfg.ScriptPaths)
	}
}

func TestParseDebugConfigOverridesAdmission(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "debug.yaml")
	if err := os.WriteFile(path, []byte("admission_rate: 5\nadmission_burst: 20\n"), 0644); err != nil {
		t.Fatalf("write debug file: %v", err)
	}

	cfg, err := Parse([]string{"-d", path, "script.txt"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.AdmissionRate != 5 {
		t.Fatalf("expected admission rate 5, got %v", cfg.AdmissionRate)
	}
	if cfg.AdmissionBurst != 20 {
		t.Fatalf("expected admission burst 20, got %v", cfg.AdmissionBurst)
	}
}
