package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rjboer/GoRadar/internal/record"
	"github.com/rjboer/GoRadar/internal/sdr"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadSettingsDefaults(t *testing.T) {
	s, err := loadSettings(cliFlags{configPath: filepath.Join(t.TempDir(), "missing.yaml")})
	if err != nil {
		t.Fatalf("missing config file should fall back to defaults: %v", err)
	}
	if s.source != "" {
		t.Fatalf("expected no source, got %q", s.source)
	}
	if s.Chirp.NumPresums != 10 || s.Device.Lookahead != 4 || s.Device.Backend != "sim" {
		t.Fatalf("unexpected defaults: %#v", s)
	}
	if err := s.validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadSettingsLayering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "radar.yaml")
	writeFile(t, path, `
rf:
  rx_rate: 1.0e6
  tx_rate: 1.0e6
chirp:
  num_presums: 4
  pulse_rep_int: 0.002
files:
  max_chirps_per_file: 100
sim:
  chunks: [300, 900]
log:
  level: debug
`)
	t.Setenv("RADAR_CHIRP_NUM_PRESUMS", "8")
	t.Setenv("RADAR_TELEMETRY_WEB_ADDR", ":9999")

	flags, err := parseFlags([]string{"-config", path, "-web-addr", ":8081"})
	if err != nil {
		t.Fatal(err)
	}
	s, err := loadSettings(flags)
	if err != nil {
		t.Fatal(err)
	}
	if s.source != path {
		t.Fatalf("expected source %s, got %q", path, s.source)
	}
	if s.RF.RxRate != 1e6 || s.Chirp.PulseRepInt != 0.002 || s.Files.MaxChirpsPerFile != 100 {
		t.Fatalf("file values not applied: %#v", s)
	}
	if s.Chirp.NumPresums != 8 {
		t.Fatalf("environment should override the file, got %d presums", s.Chirp.NumPresums)
	}
	if s.Telemetry.WebAddr != ":8081" {
		t.Fatalf("flag should override the environment, got %q", s.Telemetry.WebAddr)
	}
	if len(s.Sim.Chunks) != 2 || s.Sim.Chunks[1] != 900 || s.Log.Level != "debug" {
		t.Fatalf("unexpected sim/log settings: %#v %#v", s.Sim, s.Log)
	}
}

func TestValidateAndWarnings(t *testing.T) {
	s, _ := loadSettings(cliFlags{})
	s.Chirp.NumPresums = 0
	s.RF.RxRate = 0
	err := s.validate()
	if err == nil || !strings.Contains(err.Error(), "num_presums") || !strings.Contains(err.Error(), "rx_rate") {
		t.Fatalf("expected presum and rate errors, got %v", err)
	}

	s, _ = loadSettings(cliFlags{})
	s.Device.RxChunk = s.Device.Lookahead*s.rxSamples() + 1
	if err := s.validate(); err == nil || !strings.Contains(err.Error(), "rx_chunk") {
		t.Fatalf("expected read size error, got %v", err)
	}

	s, _ = loadSettings(cliFlags{})
	s.RF.TxRate = 2 * s.RF.RxRate
	s.Chirp.TxLead = s.Chirp.PulseRepInt
	s.Chirp.RxDuration = 2 * s.Chirp.PulseRepInt
	if w := s.warnings(); len(w) != 3 {
		t.Fatalf("expected three warnings, got %v", w)
	}
}

func TestAcquisitionConfigDerived(t *testing.T) {
	s, _ := loadSettings(cliFlags{})
	s.RF.RxRate = 10e6
	s.Chirp.RxDuration = 50e-6
	s.Chirp.PulseRepInt = 1e-3
	s.Chirp.TxLead = 10e-6
	cfg := s.acquisitionConfig()
	if cfg.SamplesPerPulse != 500 {
		t.Fatalf("expected 500 samples per pulse, got %d", cfg.SamplesPerPulse)
	}
	if cfg.PulseInterval != time.Millisecond || cfg.TxLead != 10*time.Microsecond {
		t.Fatalf("unexpected timing %s %s", cfg.PulseInterval, cfg.TxLead)
	}
}

func TestSelectBackend(t *testing.T) {
	s, _ := loadSettings(cliFlags{})
	port, err := selectBackend(s)
	if err != nil || port == nil {
		t.Fatalf("expected sim backend: %v", err)
	}
	port.Close()
	s.Device.Backend = "uhd"
	if _, err := selectBackend(s); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestRunWithSimulatedRadio(t *testing.T) {
	dir := t.TempDir()
	chirp := make([]complex64, 16)
	for i := range chirp {
		chirp[i] = complex(1, float32(i))
	}
	writeFile(t, filepath.Join(dir, "chirp.bin"), string(sdr.AppendSamples(nil, chirp)))
	save := filepath.Join(dir, "rx.bin")
	cfgPath := filepath.Join(dir, "radar.yaml")
	writeFile(t, cfgPath, `
rf: {rx_rate: 1.0e6, tx_rate: 1.0e6}
chirp:
  rx_duration: 64.0e-6
  tx_duration: 16.0e-6
  pulse_rep_int: 1.0e-3
  num_pulses: 7
  num_presums: 4
files:
  chirp_loc: `+filepath.Join(dir, "chirp.bin")+`
  save_loc: `+save+`
  max_chirps_per_file: 4
  index: true
device: {rx_timeout: 0.5}
sim: {echo_delay: 5, fail_pulses: [2]}
log: {level: error}
`)
	if err := run([]string{"-config", cfgPath}); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	// 7 pulses round up to 8, plus one made-up pulse for the failure
	for _, idx := range []int64{0, 1, 2} {
		if _, err := os.Stat(record.PartName(save, idx)); err != nil {
			t.Fatalf("missing rotated file %d: %v", idx, err)
		}
	}
	rows, err := record.ReadIndex(record.IndexPath(save))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[1].Errors != 1 || rows[1].Received != 9 {
		t.Fatalf("unexpected index %+v", rows)
	}
}
