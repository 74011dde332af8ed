package progress

import (
	"context"
	"sync"
	"time"
)

type Stage struct {
	Label    string
	Duration time.Duration
}

var DefaultStages = []Stage{
	{"Uploading audio...", 1000 * time.Millisecond},
	{"Transcribing consultation...", 3000 * time.Millisecond},
	{"Analyzing medical context...", 2000 * time.Millisecond},
	{"Generating letter draft...", 2500 * time.Millisecond},
	{"Finalizing document...", 1000 * time.Millisecond},
}

const (
	CompleteLabel = "Complete! Redirecting..."
	TickInterval  = 50 * time.Millisecond
	StepsPerStage = 20
	// Simulated progress never reaches this; only Complete does.
	ceiling = 99
)

type Snapshot struct {
	Stage    int
	Label    string
	Progress float64
	Done     bool
}

type Option func(*Projection)

func WithStages(s []Stage) Option {
	return func(p *Projection) { p.stages = s }
}

func WithTick(d time.Duration) Option {
	return func(p *Projection) { p.tick = d }
}

// WithObserver is called after every change, in order. It may call Snapshot.
func WithObserver(fn func(Snapshot)) Option {
	return func(p *Projection) { p.observer = fn }
}

// Projection animates a stage-by-stage estimate while real work runs
// elsewhere. Progress never decreases and stays below 100 until Complete.
type Projection struct {
	stages   []Stage
	tick     time.Duration
	observer func(Snapshot)

	// notifyMu orders observer calls with the state changes behind them.
	notifyMu sync.Mutex
	mu       sync.Mutex
	snap     Snapshot
}

func New(opts ...Option) *Projection {
	p := &Projection{stages: DefaultStages, tick: TickInterval}
	for _, o := range opts {
		o(p)
	}
	if len(p.stages) > 0 {
		p.snap.Label = p.stages[0].Label
	}
	return p
}

func (p *Projection) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}

// Target is the cumulative percentage stage i moves toward.
func (p *Projection) Target(i int) float64 {
	return float64(i+1) / float64(len(p.stages)) * 100
}

// Run walks through the stages until they are exhausted, ctx is done or
// Complete is called. It blocks; callers run it in a goroutine.
func (p *Projection) Run(ctx context.Context) {
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()

	for i, st := range p.stages {
		start, ok := p.enter(i, st.Label)
		if !ok {
			return
		}
		target := p.Target(i)
		inc := (target - start) / StepsPerStage

		stageEnd := time.NewTimer(st.Duration)
	stage:
		for {
			select {
			case <-ctx.Done():
				stageEnd.Stop()
				return
			case <-stageEnd.C:
				break stage
			case <-ticker.C:
				if !p.advance(inc, target) {
					stageEnd.Stop()
					return
				}
			}
		}
	}
}

func (p *Projection) enter(i int, label string) (float64, bool) {
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()
	p.mu.Lock()
	if p.snap.Done {
		p.mu.Unlock()
		return 0, false
	}
	p.snap.Stage = i
	p.snap.Label = label
	snap := p.snap
	p.mu.Unlock()
	p.notify(snap)
	return snap.Progress, true
}

func (p *Projection) advance(inc, target float64) bool {
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()
	p.mu.Lock()
	if p.snap.Done {
		p.mu.Unlock()
		return false
	}
	next := min(p.snap.Progress+inc, target, ceiling)
	if next <= p.snap.Progress {
		p.mu.Unlock()
		return true
	}
	p.snap.Progress = next
	snap := p.snap
	p.mu.Unlock()
	p.notify(snap)
	return true
}

// Complete jumps to 100 with the terminal label. Later Run ticks are ignored.
func (p *Projection) Complete() {
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()
	p.mu.Lock()
	if p.snap.Done {
		p.mu.Unlock()
		return
	}
	p.snap = Snapshot{Stage: len(p.stages), Label: CompleteLabel, Progress: 100, Done: true}
	snap := p.snap
	p.mu.Unlock()
	p.notify(snap)
}

func (p *Projection) notify(s Snapshot) {
	if p.observer != nil {
		p.observer(s)
	}
}
