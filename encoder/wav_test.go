package encoder

import (
	"encoding/binary"
	"testing"
)

func TestWavHeader(t *testing.T) {
	pcm := tone(1000)
	enc, err := EncodePCM(WAV, pcm)
	if err != nil {
		t.Fatalf("EncodePCM: %v", err)
	}
	out := enc.Bytes()
	if len(out) != wavHeaderSize+len(pcm) {
		t.Fatalf("len = %d, want %d", len(out), wavHeaderSize+len(pcm))
	}
	if string(out[0:4]) != "RIFF" || string(out[8:12]) != "WAVE" || string(out[36:40]) != "data" {
		t.Fatalf("bad header %q", out[:44])
	}
	if got := binary.LittleEndian.Uint32(out[24:]); got != 16000 {
		t.Errorf("sample rate = %d", got)
	}
	if got := binary.LittleEndian.Uint32(out[40:]); got != uint32(len(pcm)) {
		t.Errorf("data size = %d, want %d", got, len(pcm))
	}
	if string(out[44:]) != string(pcm) {
		t.Error("payload differs from input PCM")
	}
}

func TestWavBytesBeforeClose(t *testing.T) {
	enc := NewWav()
	if err := enc.EncodeBlock([]int16{1, 2}); err != nil {
		t.Fatal(err)
	}
	if len(enc.Bytes()) != 0 {
		t.Error("expected no output before Close")
	}
}

func TestRichest(t *testing.T) {
	tests := []struct {
		name    string
		allowed []Format
		want    Format
		wantErr bool
	}{
		{"any", nil, FLAC, false},
		{"both", []Format{WAV, FLAC}, FLAC, false},
		{"wav only", []Format{WAV}, WAV, false},
		{"unknown", []Format{"webm"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Richest(tt.allowed)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Richest = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatMetadata(t *testing.T) {
	if FLAC.MIMEType() != "audio/flac" || WAV.MIMEType() != "audio/wav" {
		t.Error("unexpected MIME types")
	}
	if WAV.Extension() != "wav" {
		t.Errorf("Extension = %q", WAV.Extension())
	}
	if _, err := New("ogg"); err == nil {
		t.Error("expected error for unsupported format")
	}
}
