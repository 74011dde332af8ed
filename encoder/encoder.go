package encoder

import (
	"encoding/binary"
	"fmt"
	"time"

	"clinicletter/audio"
)

const BlockSize = 4096

// Format is an audio container the generation backend accepts.
type Format string

const (
	FLAC Format = "flac"
	WAV  Format = "wav"
)

// Preference order, richest first.
var Supported = []Format{FLAC, WAV}

func (f Format) MIMEType() string {
	switch f {
	case FLAC:
		return "audio/flac"
	case WAV:
		return "audio/wav"
	}
	return "application/octet-stream"
}

func (f Format) Extension() string {
	return string(f)
}

// Richest returns the most preferred format present in allowed. An empty
// allowed list means every supported format.
func Richest(allowed []Format) (Format, error) {
	if len(allowed) == 0 {
		return Supported[0], nil
	}
	for _, f := range Supported {
		for _, a := range allowed {
			if f == a {
				return f, nil
			}
		}
	}
	return "", fmt.Errorf("no supported audio format in %v", allowed)
}

type Encoder interface {
	EncodeBlock(block []int16) error
	Close() error
	Bytes() []byte
	TotalFrames() uint64
	AddEncodeTime(d time.Duration)
	EncodeTime() time.Duration
}

func New(f Format) (Encoder, error) {
	switch f {
	case FLAC:
		return NewFlac()
	case WAV:
		return NewWav(), nil
	}
	return nil, fmt.Errorf("unsupported audio format %q", f)
}

// EncodePCM runs little-endian PCM16 mono through a fresh encoder of the given
// format, block by block, and returns the closed encoder.
func EncodePCM(f Format, pcm []byte) (Encoder, error) {
	enc, err := New(f)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	samples := make([]int16, len(pcm)/audio.BytesPerFrame)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	for i := 0; i < len(samples); i += BlockSize {
		end := min(i+BlockSize, len(samples))
		if err := enc.EncodeBlock(samples[i:end]); err != nil {
			return nil, err
		}
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("closing %s encoder: %w", f, err)
	}
	enc.AddEncodeTime(time.Since(start))
	return enc, nil
}
