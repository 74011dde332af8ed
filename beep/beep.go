// Package beep plays short audio cues for recording and delivery events.
package beep

import (
	"math"
	"sync/atomic"
)

type Cue int

const (
	CueStart Cue = iota
	CueStop
	CueSent
	CueError
)

const sampleRate = 44100

type tone struct {
	freq   float64
	dur    float64
	volume float64
	decay  float64
	repeat int
	gap    float64
}

var tones = map[Cue]tone{
	// high and snappy
	CueStart: {freq: 1200, dur: 0.2, volume: 0.5, decay: 60, repeat: 1},
	CueStop:  {freq: 900, dur: 0.2, volume: 0.5, decay: 40, repeat: 1},
	CueSent:  {freq: 1500, dur: 0.08, volume: 0.4, decay: 50, repeat: 2, gap: 0.04},
	// low double beep
	CueError: {freq: 350, dur: 0.08, volume: 0.6, decay: 30, repeat: 2, gap: 0.05},
}

var disabled atomic.Bool

func Disable() { disabled.Store(true) }

// Samples returns the mono 44.1kHz PCM for c.
func Samples(c Cue) []int16 {
	t, ok := tones[c]
	if !ok {
		return nil
	}
	n := int(sampleRate * t.dur)
	gap := int(sampleRate * t.gap)
	out := make([]int16, 0, t.repeat*n+(t.repeat-1)*gap)
	for r := 0; r < t.repeat; r++ {
		if r > 0 {
			out = append(out, make([]int16, gap)...)
		}
		for i := 0; i < n; i++ {
			x := float64(i) / sampleRate
			env := math.Exp(-x * t.decay)
			out = append(out, int16(math.Sin(2*math.Pi*t.freq*x)*32767*t.volume*env))
		}
	}
	return out
}

// Play starts c in the background. Playback failures are silent.
func Play(c Cue) {
	if disabled.Load() {
		return
	}
	samples := Samples(c)
	if len(samples) == 0 {
		return
	}
	play(samples)
}
