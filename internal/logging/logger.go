package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Level represents a logging severity.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

var levelNames = [...]string{Debug: "DEBUG", Info: "INFO", Warn: "WARN", Error: "ERROR"}

func (l Level) String() string {
	if l < Debug || l > Error {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel accepts level names in any case. An empty string selects Info.
func ParseLevel(s string) (Level, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	switch name {
	case "":
		return Info, nil
	case "WARNING":
		return Warn, nil
	}
	for l, n := range levelNames {
		if n == name {
			return Level(l), nil
		}
	}
	return Info, fmt.Errorf("unsupported log level %q", s)
}

// Format controls how log entries are rendered.
type Format int

const (
	Text Format = iota
	JSON
)

var formatNames = [...]string{Text: "text", JSON: "json"}

func (f Format) String() string {
	if f < Text || f > JSON {
		return "unknown"
	}
	return formatNames[f]
}

// ParseFormat accepts "text" or "json". An empty string selects Text.
func ParseFormat(s string) (Format, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return Text, nil
	}
	for f, n := range formatNames {
		if n == name {
			return Format(f), nil
		}
	}
	return Text, fmt.Errorf("unsupported log format %q", s)
}

// Field is one key/value pair attached to an entry. Fields with an empty
// key are skipped.
type Field struct {
	Key   string
	Value any
}

// Subsystem tags entries with the component that produced them.
func Subsystem(name string) Field { return Field{Key: "subsystem", Value: name} }

// Pulse tags entries with a pulse index.
func Pulse(index int64) Field { return Field{Key: "pulse", Value: index} }

// Err renders an error value; a nil error yields an empty field.
func Err(err error) Field {
	if err == nil {
		return Field{}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Logger defines leveled structured logging operations.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
}

var defaultLogger atomic.Pointer[Logger]

// Default returns the process-wide logger. It is safe for concurrent use by
// the transmit and receive loops.
func Default() Logger {
	if l := defaultLogger.Load(); l != nil {
		return *l
	}
	l := New(Info, Text, io.Discard)
	defaultLogger.CompareAndSwap(nil, &l)
	return *defaultLogger.Load()
}

// SetDefault replaces the process-wide logger.
func SetDefault(l Logger) {
	if l != nil {
		defaultLogger.Store(&l)
	}
}

// FromStrings builds a logger from configuration values.
func FromStrings(level, format string, out io.Writer) (Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	f, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}
	return New(lvl, f, out), nil
}

// sink is shared by a logger and everything derived from it with With, so
// entries from both loops never interleave mid-line.
type sink struct {
	mu  sync.Mutex
	out io.Writer
}

func (s *sink) write(p []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.out.Write(p)
}

type logger struct {
	level  Level
	format Format
	fields []Field
	sink   *sink
	now    func() time.Time
}

// New constructs a Logger with the given level, format, and output writer.
func New(level Level, format Format, out io.Writer) Logger {
	return &logger{level: level, format: format, sink: &sink{out: out}, now: time.Now}
}

func (l *logger) With(fields ...Field) Logger {
	scoped := *l
	scoped.fields = append(append(make([]Field, 0, len(l.fields)+len(fields)), l.fields...), fields...)
	return &scoped
}

func (l *logger) Debug(msg string, fields ...Field) { l.log(Debug, msg, fields) }
func (l *logger) Info(msg string, fields ...Field)  { l.log(Info, msg, fields) }
func (l *logger) Warn(msg string, fields ...Field)  { l.log(Warn, msg, fields) }
func (l *logger) Error(msg string, fields ...Field) { l.log(Error, msg, fields) }

func (l *logger) log(level Level, msg string, fields []Field) {
	if level < l.level {
		return
	}
	var buf bytes.Buffer
	ts := l.now()
	if l.format == JSON {
		l.encodeJSON(&buf, ts, level, msg, fields)
	} else {
		l.encodeText(&buf, ts, level, msg, fields)
	}
	buf.WriteByte('\n')
	l.sink.write(buf.Bytes())
}

// each visits scoped fields first, then the entry's own, skipping empty keys.
func (l *logger) each(extra []Field, fn func(Field)) {
	for _, set := range [2][]Field{l.fields, extra} {
		for _, f := range set {
			if f.Key != "" {
				fn(f)
			}
		}
	}
}

func (l *logger) encodeText(buf *bytes.Buffer, ts time.Time, level Level, msg string, fields []Field) {
	buf.WriteString(ts.Format("2006/01/02 15:04:05.000000"))
	fmt.Fprintf(buf, " [%s] %s", level, msg)
	l.each(fields, func(f Field) {
		v := fmt.Sprint(f.Value)
		if v == "" || strings.ContainsAny(v, " \t\"=") {
			v = strconv.Quote(v)
		}
		buf.WriteByte(' ')
		buf.WriteString(f.Key)
		buf.WriteByte('=')
		buf.WriteString(v)
	})
}

// encodeJSON keeps fields in the order they were given.
func (l *logger) encodeJSON(buf *bytes.Buffer, ts time.Time, level Level, msg string, fields []Field) {
	buf.WriteByte('{')
	writePair(buf, "time", ts.Format(time.RFC3339Nano))
	writePair(buf, "level", level.String())
	writePair(buf, "msg", msg)
	l.each(fields, func(f Field) { writePair(buf, f.Key, f.Value) })
	buf.WriteByte('}')
}

func writePair(buf *bytes.Buffer, key string, value any) {
	if buf.Len() > 1 {
		buf.WriteByte(',')
	}
	k, _ := json.Marshal(key)
	v, err := json.Marshal(value)
	if err != nil {
		// NaN and other unencodable values fall back to their text form.
		v, _ = json.Marshal(fmt.Sprint(value))
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(v)
}
