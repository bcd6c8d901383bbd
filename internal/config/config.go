// Package config resolves the CLI flags and an optional debug config
// file for the hosting process, including the YAML debug file's
// fsnotify-driven hot reload.
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the resolved CLI flags.
type Config struct {
	ScriptPaths    []string // positional script file paths
	TelemetryFile  string   // -t, legacy telemetry-only script
	AgentName      string   // -n
	CentralAddr    string   // -central host:port
	DebugConfig    string   // -d
	AdmissionRate  float64
	AdmissionBurst int
}

// Parse resolves a Config from args (os.Args[1:] in production, an
// explicit slice in tests).
func Parse(args []string) (*Config, error) {
	fs := flag.NewFlagSet("simcore", flag.ContinueOnError)
	telemetryFile := fs.String("t", "", "legacy telemetry-only script file")
	agentName := fs.String("n", "simcore", "agent name passed to the CommRelay")
	central := fs.String("central", "", "central transport address, host:port")
	debugFile := fs.String("d", "", "debug config file (YAML)")
	admissionRate := fs.Float64("rate", 0, "admission control: allowed calls/sec per caller (0 disables)")
	admissionBurst := fs.Int("burst", 10, "admission control: burst size per caller")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := &Config{
		ScriptPaths:    fs.Args(),
		TelemetryFile:  *telemetryFile,
		AgentName:      *agentName,
		CentralAddr:    *central,
		DebugConfig:    *debugFile,
		AdmissionRate:  *admissionRate,
		AdmissionBurst: *admissionBurst,
	}

	if len(cfg.ScriptPaths) == 0 && cfg.TelemetryFile == "" {
		return nil, fmt.Errorf("config: at least one script file or -t is required")
	}

	if cfg.DebugConfig != "" {
		debug, err := loadDebugConfig(cfg.DebugConfig)
		if err != nil {
			return nil, err
		}
		debug.applyTo(cfg)
	}

	return cfg, nil
}

// debugConfig is the optional `-d` YAML overlay, mirroring the
// teacher's RuntimeBusinessConfig overlay file. applyTo copies only the
// admission settings into Config; telemetry_mirror_addr and
// journal_dsn are read from the file but not applied anywhere.
type debugConfig struct {
	AdmissionRate   *float64 `yaml:"admission_rate"`
	AdmissionBurst  *int     `yaml:"admission_burst"`
	TelemetryMirror string   `yaml:"telemetry_mirror_addr"`
	JournalDSN      string   `yaml:"journal_dsn"`
}

func loadDebugConfig(path string) (*debugConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read debug file %s: %w", path, err)
	}
	var cfg debugConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse debug file %s: %w", path, err)
	}
	return &cfg, nil
}

func (d *debugConfig) applyTo(cfg *Config) {
	if d.AdmissionRate != nil {
		cfg.AdmissionRate = *d.AdmissionRate
	}
	if d.AdmissionBurst != nil {
		cfg.AdmissionBurst = *d.AdmissionBurst
	}
}

// ReloadInterval is how long the hot-reload watcher waits after a
// write event before re-reading the debug file, to coalesce editors
// that perform several writes per save.
const ReloadInterval = 200 * time.Millisecond
