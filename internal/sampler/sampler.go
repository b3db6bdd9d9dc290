package sampler

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	DefaultInterval    = 10 * time.Millisecond
	DefaultStopTimeout = 1 * time.Second
)

// rssReader is the slice of sysmem.Reader the sampler needs.
type rssReader interface {
	AggregateRSS(includeChildren bool) (int64, error)
}

// PeakSampler polls resident memory on a fixed schedule, concurrently with a
// measured region, and tracks the highest reading it observes. The peak value
// has exactly one writer (the polling goroutine); the owner only drives the
// start/stop lifecycle and reads the peak after (or while timing out of)
// Stop.
type PeakSampler struct {
	reader          rssReader
	interval        time.Duration
	stopTimeout     time.Duration
	includeChildren bool
	log             *slog.Logger

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	timedOut bool

	// peak is reallocated on every Start so that a polling goroutine which
	// outlived a timed-out Stop keeps writing into its own abandoned cell
	// and can never pollute a later measured region.
	peak *atomic.Int64
}

type Config struct {
	Interval        time.Duration
	StopTimeout     time.Duration
	IncludeChildren bool
	Logger          *slog.Logger
}

func New(reader rssReader, cfg Config) *PeakSampler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &PeakSampler{
		reader:          reader,
		interval:        cfg.Interval,
		stopTimeout:     cfg.StopTimeout,
		includeChildren: cfg.IncludeChildren,
		log:             cfg.Logger,
		peak:            new(atomic.Int64),
	}
}

// Start seeds the peak with an immediate reading and launches the polling
// loop. Starting an already-running sampler is a no-op.
func (s *PeakSampler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	seed, err := s.reader.AggregateRSS(s.includeChildren)
	if err != nil {
		// A failed seed is recovered by the first successful poll.
		seed = 0
	}
	cell := new(atomic.Int64)
	cell.Store(seed)
	s.peak = cell
	s.timedOut = false

	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.running = true
	go s.loop(cell, s.stopCh, s.doneCh)
}

func (s *PeakSampler) loop(cell *atomic.Int64, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			current, err := s.reader.AggregateRSS(s.includeChildren)
			if err != nil {
				// Transient reader failure: skip this tick.
				continue
			}
			if current > cell.Load() {
				cell.Store(current)
			}
		case <-stopCh:
			return
		}
	}
}

// Stop signals the polling loop to exit and waits for it, bounded by the
// configured timeout. It returns the highest observed reading and whether the
// wait timed out; on timeout the best-effort peak is still returned so a slow
// shutdown never invalidates the measurement. Stopping an idle sampler is a
// no-op that returns the last recorded peak.
func (s *PeakSampler) Stop() (peak int64, timedOut bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return s.peak.Load(), s.timedOut
	}
	s.running = false

	close(s.stopCh)
	select {
	case <-s.doneCh:
	case <-time.After(s.stopTimeout):
		s.timedOut = true
		s.log.Warn("peak sampler did not stop in time, returning best-effort peak",
			"timeout", s.stopTimeout)
	}
	return s.peak.Load(), s.timedOut
}

// Peak returns the highest reading observed so far.
func (s *PeakSampler) Peak() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peak.Load()
}
