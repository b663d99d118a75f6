package optimizer

import (
	"context"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-dispatch-cache/cache"
)

const (
	DefaultSampleCapacity = 1000
	DefaultSlowThreshold  = time.Second
)

// Sample is one recorded optimizer call.
type Sample struct {
	Operation  string        `json:"operation" msgpack:"operation"`
	Duration   time.Duration `json:"duration" msgpack:"duration"`
	Rows       int           `json:"rows" msgpack:"rows"`
	RecordedAt time.Time     `json:"recorded_at" msgpack:"recorded_at"`
	Slow       bool          `json:"slow" msgpack:"slow"`
}

// Sink receives the samples dropped by Recorder.Clear.
type Sink interface {
	Archive(ctx context.Context, samples []Sample) error
}

// PerformanceMetrics is a read-only view over the recorded samples.
type PerformanceMetrics struct {
	Samples         []Sample      `json:"samples"`
	SlowSamples     []Sample      `json:"slow_samples"`
	AverageDuration time.Duration `json:"average_duration"`
	Suggestions     []Suggestion  `json:"suggestions"`
}

// RecorderConfig configures a Recorder. Zero values select defaults;
// negative values are rejected.
type RecorderConfig struct {
	Capacity      int
	SlowThreshold time.Duration
	Rules         []Rule
	Sink          Sink
	Clock         cache.Clock
}

// Recorder keeps the most recent samples in a fixed size ring. Once full,
// each new sample overwrites the oldest one.
type Recorder struct {
	slow  time.Duration
	rules []Rule
	sink  Sink
	clock cache.Clock

	mu    sync.Mutex
	buf   []Sample
	start int
	count int
}

func (c RecorderConfig) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Capacity, validation.Min(0)),
		validation.Field(&c.SlowThreshold, validation.Min(time.Duration(0))),
	)
	if err != nil {
		return goerrors.FromOzzoValidation(err, "invalid recorder configuration")
	}
	return nil
}

// NewRecorder returns an empty Recorder. It fails on an invalid config.
func NewRecorder(cfg RecorderConfig) (*Recorder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Capacity == 0 {
		cfg.Capacity = DefaultSampleCapacity
	}
	if cfg.SlowThreshold == 0 {
		cfg.SlowThreshold = DefaultSlowThreshold
	}
	if cfg.Rules == nil {
		th := DefaultThresholds()
		th.Slow = cfg.SlowThreshold
		cfg.Rules = DefaultRules(th)
	}
	if cfg.Clock == nil {
		cfg.Clock = cache.SystemClock{}
	}

	return &Recorder{
		slow:  cfg.SlowThreshold,
		rules: cfg.Rules,
		sink:  cfg.Sink,
		clock: cfg.Clock,
		buf:   make([]Sample, cfg.Capacity),
	}, nil
}

// SlowThreshold returns the duration above which a sample is flagged slow.
func (r *Recorder) SlowThreshold() time.Duration { return r.slow }

// Capacity returns the maximum number of retained samples.
func (r *Recorder) Capacity() int { return len(r.buf) }

// Record appends a sample and returns it.
func (r *Recorder) Record(op string, d time.Duration, rows int) Sample {
	s := Sample{
		Operation:  op,
		Duration:   d,
		Rows:       rows,
		RecordedAt: r.clock.Now(),
		Slow:       d > r.slow,
	}

	r.mu.Lock()
	idx := (r.start + r.count) % len(r.buf)
	r.buf[idx] = s
	if r.count < len(r.buf) {
		r.count++
	} else {
		r.start = (r.start + 1) % len(r.buf)
	}
	r.mu.Unlock()

	return s
}

func (r *Recorder) snapshot() []Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// snapshotLocked returns the retained samples oldest first.
func (r *Recorder) snapshotLocked() []Sample {
	out := make([]Sample, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

// Metrics summarizes the retained samples. It does not modify the recorder.
func (r *Recorder) Metrics() PerformanceMetrics {
	samples := r.snapshot()

	m := PerformanceMetrics{
		Samples:     samples,
		SlowSamples: []Sample{},
	}

	var total time.Duration
	for _, s := range samples {
		total += s.Duration
		if s.Slow {
			m.SlowSamples = append(m.SlowSamples, s)
		}
	}
	if len(samples) > 0 {
		m.AverageDuration = total / time.Duration(len(samples))
	}
	m.Suggestions = evaluate(r.rules, samples)
	return m
}

// Clear drops every retained sample and hands them to the sink, if any.
// The samples are gone from the recorder even when the sink fails.
func (r *Recorder) Clear(ctx context.Context) (int, error) {
	r.mu.Lock()
	samples := r.snapshotLocked()
	r.start, r.count = 0, 0
	for i := range r.buf {
		r.buf[i] = Sample{}
	}
	r.mu.Unlock()

	if r.sink == nil || len(samples) == 0 {
		return len(samples), nil
	}
	return len(samples), r.sink.Archive(ctx, samples)
}
