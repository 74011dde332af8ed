package encoder

import (
	"encoding/binary"
	"math"
	"os"
	"testing"
)

// tone returns n samples of a 440 Hz sine as little-endian PCM16.
func tone(n int) []byte {
	pcm := make([]byte, n*2)
	for i := 0; i < n; i++ {
		v := int16(8000 * math.Sin(2*math.Pi*440*float64(i)/16000))
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(v))
	}
	return pcm
}

func TestFlacEncoderFixture(t *testing.T) {
	data, err := os.ReadFile("../testdata/dictation.wav")
	if err != nil {
		t.Skip("testdata/dictation.wav not found")
	}

	enc, err := EncodePCM(FLAC, data[44:])
	if err != nil {
		t.Fatalf("EncodePCM: %v", err)
	}
	flacData := enc.Bytes()
	if len(flacData) < 4 || string(flacData[:4]) != "fLaC" {
		t.Fatal("output does not start with FLAC magic")
	}
	t.Logf("raw %d bytes, flac %d bytes", len(data)-44, len(flacData))
}

func TestFlacEncoderTone(t *testing.T) {
	pcm := tone(BlockSize*3 + 100)

	enc, err := EncodePCM(FLAC, pcm)
	if err != nil {
		t.Fatalf("EncodePCM: %v", err)
	}
	if got, want := enc.TotalFrames(), uint64(len(pcm)/2); got != want {
		t.Errorf("TotalFrames = %d, want %d", got, want)
	}
	out := enc.Bytes()
	if string(out[:4]) != "fLaC" {
		t.Fatal("output does not start with FLAC magic")
	}
	if enc.EncodeTime() <= 0 {
		t.Error("expected encode time to be recorded")
	}
}

func TestFlacEncoderEmpty(t *testing.T) {
	enc, err := NewFlac()
	if err != nil {
		t.Fatalf("NewFlac: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close on empty encoder: %v", err)
	}
	if enc.TotalFrames() != 0 {
		t.Errorf("TotalFrames = %d, want 0", enc.TotalFrames())
	}
	if len(enc.Bytes()) == 0 {
		t.Error("expected non-empty FLAC output (at least header)")
	}
}

func TestFlacEncoderRejectsAfterClose(t *testing.T) {
	enc, err := NewFlac()
	if err != nil {
		t.Fatalf("NewFlac: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := enc.EncodeBlock([]int16{1, 2, 3}); err == nil {
		t.Error("expected error encoding after Close")
	}
}
