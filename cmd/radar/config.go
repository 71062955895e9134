package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"math"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rjboer/GoRadar/internal/app"
	"github.com/rjboer/GoRadar/internal/sdr"
)

type cliFlags struct {
	configPath string
	logLevel   string
	webAddr    string
	discover   bool
}

func parseFlags(args []string) (cliFlags, error) {
	var f cliFlags
	fs := flag.NewFlagSet("radar", flag.ContinueOnError)
	fs.StringVar(&f.configPath, "config", "radar.yaml", "YAML configuration file")
	fs.StringVar(&f.logLevel, "log-level", "", "Override log level (debug|info|warn|error)")
	fs.StringVar(&f.webAddr, "web-addr", "", "Override web telemetry listen address (e.g. :8080)")
	fs.BoolVar(&f.discover, "discover", false, "List radar acquisitions advertised on the local network and exit")
	if err := fs.Parse(args); err != nil {
		return cliFlags{}, err
	}
	return f, nil
}

type rfSettings struct {
	RxRate float64 `mapstructure:"rx_rate" json:"rx_rate"`
	TxRate float64 `mapstructure:"tx_rate" json:"tx_rate"`
}

type chirpSettings struct {
	TimeOffset  float64 `mapstructure:"time_offset" json:"time_offset"`
	TxDuration  float64 `mapstructure:"tx_duration" json:"tx_duration"`
	RxDuration  float64 `mapstructure:"rx_duration" json:"rx_duration"`
	PulseRepInt float64 `mapstructure:"pulse_rep_int" json:"pulse_rep_int"`
	TxLead      float64 `mapstructure:"tx_lead" json:"tx_lead"`
	NumPulses   int64   `mapstructure:"num_pulses" json:"num_pulses"`
	NumPresums  int     `mapstructure:"num_presums" json:"num_presums"`
	PhaseDither bool    `mapstructure:"phase_dither" json:"phase_dither"`
	PhaseSeed   uint64  `mapstructure:"phase_seed" json:"phase_seed"`
}

type fileSettings struct {
	ChirpLoc         string `mapstructure:"chirp_loc" json:"chirp_loc"`
	SaveLoc          string `mapstructure:"save_loc" json:"save_loc"`
	MaxChirpsPerFile int64  `mapstructure:"max_chirps_per_file" json:"max_chirps_per_file"`
	Index            bool   `mapstructure:"index" json:"index"`
}

type deviceSettings struct {
	Backend   string  `mapstructure:"backend" json:"backend"`
	Lookahead int     `mapstructure:"lookahead" json:"lookahead"`
	RxTimeout float64 `mapstructure:"rx_timeout" json:"rx_timeout"`
	RxChunk   int     `mapstructure:"rx_chunk" json:"rx_chunk"`
}

type simSettings struct {
	EchoDelay  int     `mapstructure:"echo_delay" json:"echo_delay"`
	EchoGain   float64 `mapstructure:"echo_gain" json:"echo_gain"`
	Noise      float64 `mapstructure:"noise" json:"noise"`
	Seed       int64   `mapstructure:"seed" json:"seed"`
	Chunks     []int   `mapstructure:"chunks" json:"chunks"`
	FailPulses []int   `mapstructure:"fail_pulses" json:"fail_pulses"`
}

type logSettings struct {
	Level  string `mapstructure:"level" json:"level"`
	Format string `mapstructure:"format" json:"format"`
}

type telemetrySettings struct {
	WebAddr   string `mapstructure:"web_addr" json:"web_addr"`
	History   int    `mapstructure:"history" json:"history"`
	Advertise bool   `mapstructure:"advertise" json:"advertise"`
	Taper     string `mapstructure:"taper" json:"taper"`
}

// settings mirrors the YAML run configuration.
type settings struct {
	RF        rfSettings        `mapstructure:"rf" json:"rf"`
	Chirp     chirpSettings     `mapstructure:"chirp" json:"chirp"`
	Files     fileSettings      `mapstructure:"files" json:"files"`
	Device    deviceSettings    `mapstructure:"device" json:"device"`
	Sim       simSettings       `mapstructure:"sim" json:"sim"`
	Log       logSettings       `mapstructure:"log" json:"log"`
	Telemetry telemetrySettings `mapstructure:"telemetry" json:"telemetry"`

	// source is the config file actually read, empty when running on defaults.
	source string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("rf.rx_rate", 20e6)
	v.SetDefault("rf.tx_rate", 20e6)
	v.SetDefault("chirp.time_offset", 1.0)
	v.SetDefault("chirp.tx_duration", 20e-6)
	v.SetDefault("chirp.rx_duration", 100e-6)
	v.SetDefault("chirp.pulse_rep_int", 1e-3)
	v.SetDefault("chirp.tx_lead", 0.0)
	v.SetDefault("chirp.num_pulses", 10000)
	v.SetDefault("chirp.num_presums", 10)
	v.SetDefault("chirp.phase_dither", true)
	v.SetDefault("chirp.phase_seed", 0)
	v.SetDefault("files.chirp_loc", "chirp.bin")
	v.SetDefault("files.save_loc", "rx_samps.bin")
	v.SetDefault("files.max_chirps_per_file", -1)
	v.SetDefault("files.index", false)
	v.SetDefault("device.backend", "sim")
	v.SetDefault("device.lookahead", 4)
	v.SetDefault("device.rx_timeout", 5.0)
	v.SetDefault("device.rx_chunk", 0)
	v.SetDefault("sim.echo_delay", 0)
	v.SetDefault("sim.echo_gain", 1.0)
	v.SetDefault("sim.noise", 0.0)
	v.SetDefault("sim.seed", 1)
	v.SetDefault("sim.chunks", []int{})
	v.SetDefault("sim.fail_pulses", []int{})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("telemetry.web_addr", "")
	v.SetDefault("telemetry.history", 500)
	v.SetDefault("telemetry.advertise", false)
	v.SetDefault("telemetry.taper", "hamming")
}

// loadSettings layers defaults, the YAML file, RADAR_ environment
// variables and command-line flags, later sources winning.
func loadSettings(f cliFlags) (settings, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("RADAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	source := ""
	if f.configPath != "" {
		v.SetConfigFile(f.configPath)
		err := v.ReadInConfig()
		var notFound viper.ConfigFileNotFoundError
		switch {
		case err == nil:
			source = f.configPath
		case errors.As(err, &notFound), errors.Is(err, fs.ErrNotExist):
		default:
			return settings{}, fmt.Errorf("read %s: %w", f.configPath, err)
		}
	}
	if f.logLevel != "" {
		v.Set("log.level", f.logLevel)
	}
	if f.webAddr != "" {
		v.Set("telemetry.web_addr", f.webAddr)
	}

	var s settings
	if err := v.Unmarshal(&s); err != nil {
		return settings{}, fmt.Errorf("decode configuration: %w", err)
	}
	s.source = source
	return s, nil
}

func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}

func (s settings) rxSamples() int { return int(math.Round(s.RF.RxRate * s.Chirp.RxDuration)) }
func (s settings) txSamples() int { return int(math.Round(s.RF.TxRate * s.Chirp.TxDuration)) }

// validate reports configuration errors that make a run impossible.
func (s settings) validate() error {
	var errs []error
	if s.RF.RxRate <= 0 || s.RF.TxRate <= 0 {
		errs = append(errs, errors.New("rf.rx_rate and rf.tx_rate must be positive"))
	}
	if s.Chirp.TxDuration <= 0 || s.Chirp.RxDuration <= 0 {
		errs = append(errs, errors.New("chirp.tx_duration and chirp.rx_duration must be positive"))
	}
	if s.Chirp.PulseRepInt <= 0 {
		errs = append(errs, errors.New("chirp.pulse_rep_int must be positive"))
	}
	if s.Chirp.NumPresums < 1 {
		errs = append(errs, errors.New("chirp.num_presums must be at least 1"))
	}
	if s.Device.Lookahead < 1 {
		errs = append(errs, errors.New("device.lookahead must be at least 1"))
	}
	if s.Files.SaveLoc == "" {
		errs = append(errs, errors.New("files.save_loc is required"))
	}
	if s.Files.ChirpLoc == "" {
		errs = append(errs, errors.New("files.chirp_loc is required"))
	}
	if len(errs) == 0 && (s.rxSamples() < 1 || s.txSamples() < 1) {
		errs = append(errs, fmt.Errorf("window of %d rx and %d tx samples is empty", s.rxSamples(), s.txSamples()))
	}
	if s.Device.Lookahead >= 1 && s.Device.RxChunk > s.Device.Lookahead*s.rxSamples() {
		errs = append(errs, fmt.Errorf("device.rx_chunk %d spans more than device.lookahead (%d) windows of %d samples",
			s.Device.RxChunk, s.Device.Lookahead, s.rxSamples()))
	}
	return errors.Join(errs...)
}

// warnings lists settings that are legal but probably not intended.
func (s settings) warnings() []string {
	var out []string
	if s.RF.TxRate != s.RF.RxRate {
		out = append(out, "tx_rate differs from rx_rate")
	}
	if s.Chirp.TxLead >= s.Chirp.PulseRepInt {
		out = append(out, "tx_lead is not shorter than pulse_rep_int")
	}
	if s.Chirp.RxDuration > s.Chirp.PulseRepInt {
		out = append(out, "rx_duration is longer than pulse_rep_int")
	}
	return out
}

func (s settings) acquisitionConfig() app.Config {
	return app.Config{
		PulseInterval:    seconds(s.Chirp.PulseRepInt),
		TxLead:           seconds(s.Chirp.TxLead),
		TimeOffset:       seconds(s.Chirp.TimeOffset),
		SamplesPerPulse:  s.rxSamples(),
		Presums:          s.Chirp.NumPresums,
		Pulses:           s.Chirp.NumPulses,
		Lookahead:        s.Device.Lookahead,
		PhaseDither:      s.Chirp.PhaseDither,
		PhaseSeed:        s.Chirp.PhaseSeed,
		SaveLoc:          s.Files.SaveLoc,
		MaxPulsesPerFile: s.Files.MaxChirpsPerFile,
		WriteIndex:       s.Files.Index,
		RxTimeout:        seconds(s.Device.RxTimeout),
		RxChunk:          s.Device.RxChunk,
		Taper:            s.Telemetry.Taper,
		Metadata:         s,
	}
}

func selectBackend(s settings) (sdr.Port, error) {
	switch s.Device.Backend {
	case "sim":
		return sdr.NewSim(sdr.SimConfig{
			PulseInterval: seconds(s.Chirp.PulseRepInt),
			EchoDelay:     s.Sim.EchoDelay,
			EchoGain:      s.Sim.EchoGain,
			Noise:         s.Sim.Noise,
			Seed:          s.Sim.Seed,
			Chunks:        s.Sim.Chunks,
			FailWindows:   s.Sim.FailPulses,
		}), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", s.Device.Backend)
	}
}
