package upload

import (
	"math/rand"
	"sync"
	"time"
)

const (
	// HoldPercent is where progress waits until the request completes
	HoldPercent = 90
	// DefaultTick is the interval between progress steps
	DefaultTick = 150 * time.Millisecond
)

// Progress is a cosmetic progress indicator. It advances by a random 5-15%
// every tick, holds at HoldPercent until Complete or Abort, and is not tied
// to bytes actually transferred.
type Progress struct {
	mu      sync.Mutex
	percent int
	report  func(percent int)
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

// StartProgress begins ticking. report is called from the ticking goroutine
// and from Complete/Abort; it must not block for long.
func StartProgress(tick time.Duration, report func(percent int)) *Progress {
	if tick <= 0 {
		tick = DefaultTick
	}
	p := &Progress{
		report: report,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	p.emit(0)

	go func() {
		defer close(p.done)
		ticker := time.NewTicker(tick)
		defer ticker.Stop()

		for {
			select {
			case <-p.stop:
				return
			case <-ticker.C:
				p.mu.Lock()
				if p.percent >= HoldPercent {
					p.mu.Unlock()
					continue
				}
				next := p.percent + 5 + rand.Intn(11)
				if next > HoldPercent {
					next = HoldPercent
				}
				p.mu.Unlock()
				p.emit(next)
			}
		}
	}()

	return p
}

// Complete stops the ticker and reports 100
func (p *Progress) Complete() {
	p.halt()
	p.emit(100)
}

// Abort stops the ticker and resets to 0
func (p *Progress) Abort() {
	p.halt()
	p.emit(0)
}

func (p *Progress) halt() {
	p.once.Do(func() { close(p.stop) })
	<-p.done
}

func (p *Progress) emit(percent int) {
	p.mu.Lock()
	p.percent = percent
	p.mu.Unlock()
	if p.report != nil {
		p.report(percent)
	}
}
