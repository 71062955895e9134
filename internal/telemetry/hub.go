package telemetry

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/rjboer/GoRadar/internal/logging"
)

// Config is the runtime configuration exposed by the hub.
type Config struct {
	HistoryLimit int `json:"historyLimit"`
}

const (
	minHistoryLimit     = 1
	maxHistoryLimit     = 10_000
	defaultHistoryLimit = 500
)

func validateConfig(cfg Config, base Config) (Config, error) {
	if base.HistoryLimit == 0 {
		base.HistoryLimit = defaultHistoryLimit
	}
	if cfg.HistoryLimit == 0 {
		cfg.HistoryLimit = base.HistoryLimit
	}
	if cfg.HistoryLimit < minHistoryLimit || cfg.HistoryLimit > maxHistoryLimit {
		return Config{}, fmt.Errorf("history limit must be between %d and %d", minHistoryLimit, maxHistoryLimit)
	}
	return cfg, nil
}

// Event is one entry of the live feed. Exactly one of Period and PulseError is set.
type Event struct {
	Type       string        `json:"type"`
	Period     *PeriodSample `json:"period,omitempty"`
	PulseError *PulseError   `json:"pulseError,omitempty"`
}

const (
	EventPeriod     = "period"
	EventPulseError = "pulse_error"
)

// Counters are the live acquisition counters.
type Counters struct {
	RunID     string `json:"runId"`
	Scheduled int64  `json:"pulsesScheduled"`
	Received  int64  `json:"pulsesReceived"`
	Errors    int64  `json:"errorCount"`
	Good      int64  `json:"errorFree"`
	Periods   int64  `json:"periods"`
}

// Status is served on /api/status.
type Status struct {
	Counters
	Running      bool    `json:"running"`
	Uptime       float64 `json:"uptimeSeconds"`
	NumGoroutine int     `json:"numGoroutine"`
}

// Hub collects history and fans out events to subscribers.
type Hub struct {
	mu          sync.RWMutex
	history     []Event
	config      Config
	subscribers map[chan Event]struct{}
	counters    func() Counters
	started     time.Time
	logger      logging.Logger
}

// NewHub builds a hub keeping at most historyLimit events.
func NewHub(historyLimit int, logger logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Default()
	}
	cfg, err := validateConfig(Config{HistoryLimit: historyLimit}, Config{})
	if err != nil {
		cfg = Config{HistoryLimit: defaultHistoryLimit}
	}
	return &Hub{
		config:      cfg,
		subscribers: make(map[chan Event]struct{}),
		started:     time.Now(),
		logger:      logger.With(logging.Subsystem("telemetry")),
	}
}

// SetCounters installs the source of /api/status counters.
func (h *Hub) SetCounters(fn func() Counters) {
	h.mu.Lock()
	h.counters = fn
	h.mu.Unlock()
}

func (h *Hub) ReportPeriod(s PeriodSample) {
	h.publish(Event{Type: EventPeriod, Period: &s})
}

func (h *Hub) ReportPulseError(e PulseError) {
	h.publish(Event{Type: EventPulseError, PulseError: &e})
}

func (h *Hub) publish(ev Event) {
	h.mu.Lock()
	h.history = append(h.history, ev)
	if len(h.history) > h.config.HistoryLimit {
		h.history = h.history[len(h.history)-h.config.HistoryLimit:]
	}
	for ch := range h.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
	h.mu.Unlock()
}

// History returns a copy of stored events.
func (h *Hub) History() []Event {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Event, len(h.history))
	copy(out, h.history)
	return out
}

// ConfigSnapshot returns the latest validated configuration.
func (h *Hub) ConfigSnapshot() Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.config
}

// Subscribe registers a listener for live updates. Slow listeners miss events.
func (h *Hub) Subscribe() (chan Event, func()) {
	ch := make(chan Event, 16)
	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subscribers, ch)
			close(ch)
			h.mu.Unlock()
		})
	}
	return ch, cancel
}

// StatusSnapshot reports the counters and process state.
func (h *Hub) StatusSnapshot() Status {
	h.mu.RLock()
	fn := h.counters
	h.mu.RUnlock()
	st := Status{
		Running:      fn != nil,
		Uptime:       time.Since(h.started).Seconds(),
		NumGoroutine: runtime.NumGoroutine(),
	}
	if fn != nil {
		st.Counters = fn()
	}
	return st
}

func (h *Hub) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.History())
}

func (h *Hub) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.StatusSnapshot())
}

func (h *Hub) handleGetConfig(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.ConfigSnapshot())
}

func (h *Hub) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var incoming Config
	if err := json.NewDecoder(r.Body).Decode(&incoming); err != nil {
		http.Error(w, fmt.Sprintf("invalid config payload: %v", err), http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	cfg, err := validateConfig(incoming, h.config)
	if err == nil {
		h.config = cfg
		if len(h.history) > cfg.HistoryLimit {
			h.history = h.history[len(h.history)-cfg.HistoryLimit:]
		}
	}
	h.mu.Unlock()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(cfg)
}

func writeEvent(w http.ResponseWriter, ev Event) {
	payload, _ := json.Marshal(ev)
	w.Write([]byte("data: "))
	w.Write(payload)
	w.Write([]byte("\n\n"))
}

func (h *Hub) handleLive(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := h.Subscribe()
	defer cancel()

	// send existing history for immediate display
	for _, ev := range h.History() {
		writeEvent(w, ev)
	}
	flusher.Flush()

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			writeEvent(w, ev)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
