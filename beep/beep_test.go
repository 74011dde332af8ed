package beep

import "testing"

func TestSamples(t *testing.T) {
	tests := []struct {
		cue  Cue
		want int
	}{
		{CueStart, 8820},
		{CueStop, 8820},
		{CueSent, 2*3528 + 1764},
		{CueError, 2*3528 + 2205},
	}
	for _, tt := range tests {
		if got := len(Samples(tt.cue)); got != tt.want {
			t.Errorf("cue %d: got %d samples, want %d", tt.cue, got, tt.want)
		}
	}
	if Samples(Cue(99)) != nil {
		t.Error("unknown cue should have no samples")
	}
}

func TestSamplesDecay(t *testing.T) {
	s := Samples(CueStart)
	peak := func(from, to int) int16 {
		var m int16
		for _, v := range s[from:to] {
			if v < 0 {
				v = -v
			}
			if v > m {
				m = v
			}
		}
		return m
	}
	if head, tail := peak(0, 441), peak(len(s)-441, len(s)); tail >= head {
		t.Errorf("tone should decay: head peak %d, tail peak %d", head, tail)
	}
}

func TestErrorCueHasGap(t *testing.T) {
	s := Samples(CueError)
	for i := 3528; i < 3528+2205; i++ {
		if s[i] != 0 {
			t.Fatalf("sample %d in gap is %d", i, s[i])
		}
	}
}
