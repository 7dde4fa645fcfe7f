package pipeline

import (
	"fmt"
	"sync"
	"time"

	"tcaqs/internal/chrono"
)

// Progress accumulates processed document counts and derives a rate and an
// ETA from them. It never fails, a zero elapsed time yields a zero rate.
type Progress struct {
	mutex sync.Mutex
	clock chrono.TimeAPI
	start time.Time
	total int
	done  int
}

func NewProgress(clock chrono.TimeAPI, total int) *Progress {
	if clock == nil {
		clock = chrono.NewStandardTime()
	}
	return &Progress{
		clock: clock,
		start: clock.Now(),
		total: total,
	}
}

// ProgressSnapshot is a point-in-time view of a Progress.
type ProgressSnapshot struct {
	Done    int
	Total   int
	Elapsed time.Duration
	// Rate is in documents per second.
	Rate float64
	// ETA is zero when the rate is unknown or the work is finished.
	ETA time.Duration
}

func (s ProgressSnapshot) String() string {
	return fmt.Sprintf(
		"%d/%d docs, %.1f docs/s, elapsed %s, eta %s",
		s.Done, s.Total, s.Rate,
		s.Elapsed.Round(time.Second), s.ETA.Round(time.Second),
	)
}

// Add records n more processed documents.
func (p *Progress) Add(n int) ProgressSnapshot {
	p.mutex.Lock()
	p.done += n
	p.mutex.Unlock()
	return p.Snapshot()
}

func (p *Progress) Snapshot() ProgressSnapshot {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	elapsed := p.clock.Now().Sub(p.start)
	snap := ProgressSnapshot{
		Done:    p.done,
		Total:   p.total,
		Elapsed: elapsed,
	}
	if elapsed <= 0 || p.done == 0 {
		return snap
	}
	snap.Rate = float64(p.done) / elapsed.Seconds()
	remaining := p.total - p.done
	if remaining > 0 {
		snap.ETA = time.Duration(float64(remaining) / snap.Rate * float64(time.Second))
	}
	return snap
}
