package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"clinicletter/audio"
	"clinicletter/encoder"
	"clinicletter/log"
)

type State int

const (
	Idle State = iota
	Recording
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var (
	ErrPermissionDenied = errors.New("microphone access denied")
	ErrAlreadyRecording = errors.New("already recording")
)

// PermissionDeniedMessage is what the UI shows when the microphone cannot be opened.
const PermissionDeniedMessage = "Unable to access microphone. Please check permissions."

// PermissionDeniedError wraps the platform error behind a failed acquisition.
// It matches ErrPermissionDenied with errors.Is.
type PermissionDeniedError struct {
	Device string
	Err    error
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("microphone access denied (%s): %v", e.Device, e.Err)
}

func (e *PermissionDeniedError) Unwrap() []error {
	return []error{ErrPermissionDenied, e.Err}
}

// Audio is one finished recording. It is never mutated after Stop returns it.
type Audio struct {
	Data       []byte
	Format     encoder.Format
	MIMEType   string
	Frames     uint64
	Chunks     int
	Device     string
	CapturedAt time.Time
}

func (a Audio) Empty() bool {
	return a.Chunks == 0
}

func (a Audio) Duration() time.Duration {
	return time.Duration(a.Frames) * time.Second / audio.SampleRate
}

// Filename is the upload name the generation webhook expects.
func (a Audio) Filename() string {
	return fmt.Sprintf("voice-note-%d.%s", a.CapturedAt.UnixMilli(), a.Format.Extension())
}

type Option func(*Session)

func WithDevice(d *audio.DeviceInfo) Option {
	return func(s *Session) { s.device = d }
}

// WithFormats restricts the encodings the session may choose from.
func WithFormats(f ...encoder.Format) Option {
	return func(s *Session) { s.formats = f }
}

func WithTickInterval(d time.Duration) Option {
	return func(s *Session) { s.tickInterval = d }
}

// WithTickHandler is called with the elapsed seconds on every tick while recording.
func WithTickHandler(fn func(elapsed int)) Option {
	return func(s *Session) { s.onTick = fn }
}

// WithStopHandler receives the audio of every successful Stop.
func WithStopHandler(fn func(Audio)) Option {
	return func(s *Session) { s.onStop = fn }
}

type Session struct {
	actx         audio.Context
	device       *audio.DeviceInfo
	formats      []encoder.Format
	tickInterval time.Duration
	onTick       func(int)
	onStop       func(Audio)

	mu       sync.Mutex
	state    State
	dev      audio.CaptureDevice
	format   encoder.Format
	elapsed  int
	tickStop chan struct{}
	tickDone chan struct{}

	chunkMu sync.Mutex
	chunks  [][]byte
	frames  uint64
}

func NewSession(actx audio.Context, opts ...Option) *Session {
	s := &Session{
		actx:         actx,
		tickInterval: time.Second,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Elapsed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsed
}

// Format is the encoding chosen by the last successful Start.
func (s *Session) Format() encoder.Format {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.format
}

// Start acquires the microphone and begins buffering. Any failure to open or
// start the device is reported as a *PermissionDeniedError and leaves the
// session where it was.
func (s *Session) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Recording {
		return ErrAlreadyRecording
	}

	format, err := encoder.Richest(s.formats)
	if err != nil {
		return err
	}

	name := "system default"
	if s.device != nil {
		name = s.device.Name
	}
	dev, err := s.actx.NewCapture(s.device, audio.DefaultConfig())
	if err != nil {
		log.Errorf("capture acquire %s: %v", name, err)
		return &PermissionDeniedError{Device: name, Err: err}
	}

	s.chunkMu.Lock()
	s.chunks = nil
	s.frames = 0
	s.chunkMu.Unlock()

	dev.SetCallback(s.append)
	if err := dev.Start(); err != nil {
		dev.ClearCallback()
		dev.Close()
		log.Errorf("capture start %s: %v", name, err)
		return &PermissionDeniedError{Device: name, Err: err}
	}

	s.dev = dev
	s.format = format
	s.state = Recording
	s.elapsed = 0
	s.tickStop = make(chan struct{})
	s.tickDone = make(chan struct{})
	go s.tick(ctx, s.tickStop, s.tickDone)

	log.Infof("capture started device=%s format=%s", dev.DeviceName(), format)
	return nil
}

func (s *Session) append(data []byte, frameCount uint32) {
	buf := make([]byte, len(data))
	copy(buf, data)
	s.chunkMu.Lock()
	s.chunks = append(s.chunks, buf)
	s.frames += uint64(frameCount)
	s.chunkMu.Unlock()
}

func (s *Session) tick(ctx context.Context, stop, done chan struct{}) {
	defer close(done)
	t := time.NewTicker(s.tickInterval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-t.C:
			s.mu.Lock()
			if s.state != Recording {
				s.mu.Unlock()
				return
			}
			s.elapsed++
			elapsed := s.elapsed
			s.mu.Unlock()
			if s.onTick != nil {
				s.onTick(elapsed)
			}
		}
	}
}

// release stops the ticker and the device. Caller holds s.mu.
func (s *Session) release() {
	close(s.tickStop)
	dev := s.dev
	s.dev = nil

	// The tick goroutine may be waiting on s.mu.
	s.mu.Unlock()
	<-s.tickDone
	dev.ClearCallback()
	dev.Stop()
	dev.Close()
	s.mu.Lock()
}

// Stop finalizes the recording. It returns false and does nothing unless the
// session is recording.
func (s *Session) Stop() (Audio, bool) {
	s.mu.Lock()
	if s.state != Recording || s.dev == nil {
		s.mu.Unlock()
		return Audio{}, false
	}
	device := s.dev.DeviceName()
	s.release()
	s.state = Stopped
	s.elapsed = 0
	format := s.format
	s.mu.Unlock()

	a := s.finalize(format, device)
	if s.onStop != nil {
		s.onStop(a)
	}
	return a, true
}

// Abort releases the microphone without producing audio.
func (s *Session) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Recording || s.dev == nil {
		return
	}
	s.release()
	s.state = Idle
	s.elapsed = 0
	s.chunkMu.Lock()
	s.chunks = nil
	s.frames = 0
	s.chunkMu.Unlock()
}

func (s *Session) finalize(format encoder.Format, device string) Audio {
	s.chunkMu.Lock()
	chunks := s.chunks
	frames := s.frames
	s.chunks = nil
	s.frames = 0
	s.chunkMu.Unlock()

	a := Audio{
		Format:     format,
		MIMEType:   format.MIMEType(),
		Frames:     frames,
		Chunks:     len(chunks),
		Device:     device,
		CapturedAt: time.Now(),
	}
	if a.Empty() {
		return a
	}

	var size int
	for _, c := range chunks {
		size += len(c)
	}
	pcm := make([]byte, 0, size)
	for _, c := range chunks {
		pcm = append(pcm, c...)
	}

	enc, err := encoder.EncodePCM(format, pcm)
	if err != nil && format != encoder.WAV {
		log.Warnf("%s encode failed, using wav: %v", format, err)
		format = encoder.WAV
		a.Format, a.MIMEType = format, format.MIMEType()
		enc, err = encoder.EncodePCM(format, pcm)
	}
	if err != nil {
		log.Errorf("encode failed: %v", err)
		return Audio{Format: format, MIMEType: format.MIMEType(), Device: device, CapturedAt: a.CapturedAt}
	}
	a.Data = enc.Bytes()

	log.CaptureMetrics(log.CaptureStats{
		Format:    string(format),
		Device:    device,
		Chunks:    a.Chunks,
		AudioS:    a.Duration().Seconds(),
		RawKB:     float64(len(pcm)) / 1024,
		EncodedKB: float64(len(a.Data)) / 1024,
		EncodeMs:  float64(enc.EncodeTime().Microseconds()) / 1000,
	})
	return a
}
