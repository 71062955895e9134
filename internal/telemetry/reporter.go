package telemetry

import (
	"time"

	"github.com/rjboer/GoRadar/internal/logging"
)

// PeriodSample summarises one written integration period.
type PeriodSample struct {
	Timestamp time.Time `json:"timestamp"`
	Period    int64     `json:"period"`
	Received  int64     `json:"pulsesReceived"`
	Errors    int64     `json:"errorCount"`
	File      string    `json:"file"`
	PeakBin   int       `json:"peakBin"`
	PeakDB    float64   `json:"peakDb"`
	MeanDB    float64   `json:"meanDb"`
	SNRDB     float64   `json:"snrDb"`
}

// PulseError describes a discarded pulse.
type PulseError struct {
	Timestamp time.Time `json:"timestamp"`
	Pulse     int64     `json:"pulse"`
	Reason    string    `json:"reason"`
	Errors    int64     `json:"errorCount"`
}

// Reporter captures acquisition events.
type Reporter interface {
	ReportPeriod(sample PeriodSample)
	ReportPulseError(e PulseError)
}

// LogReporter writes acquisition events to a logger.
type LogReporter struct {
	logger logging.Logger
}

// NewLogReporter builds a reporter logging through logger.
func NewLogReporter(logger logging.Logger) LogReporter {
	if logger == nil {
		logger = logging.Default()
	}
	return LogReporter{logger: logger.With(logging.Subsystem("telemetry"))}
}

func (r LogReporter) ReportPeriod(s PeriodSample) {
	r.logger.Info("period summary",
		logging.Field{Key: "period", Value: s.Period},
		logging.Pulse(s.Received),
		logging.Field{Key: "peak_bin", Value: s.PeakBin},
		logging.Field{Key: "peak_db", Value: s.PeakDB},
		logging.Field{Key: "snr_db", Value: s.SNRDB},
	)
}

// ReportPulseError is a no-op: the receive loop already logs discards.
func (r LogReporter) ReportPulseError(PulseError) {}

// MultiReporter fans out events to multiple destinations.
type MultiReporter []Reporter

func (m MultiReporter) ReportPeriod(s PeriodSample) {
	for _, r := range m {
		if r != nil {
			r.ReportPeriod(s)
		}
	}
}

func (m MultiReporter) ReportPulseError(e PulseError) {
	for _, r := range m {
		if r != nil {
			r.ReportPulseError(e)
		}
	}
}
