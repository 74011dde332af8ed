package audio

import (
	"os"
	"sync"
	"sync/atomic"
	"time"
)

const (
	WAVHeaderSize  = 44
	fakeFrameSize  = 1024
	fakeChunkBytes = fakeFrameSize * BytesPerFrame
)

// FakeContext replays a fixed PCM buffer as if it came from a microphone.
// Used by -test mode and by capture tests.
type FakeContext struct {
	pcm      []byte
	realtime bool

	// AcquireErr, when set, is returned by NewCapture.
	AcquireErr error
	// StartErr, when set, is returned by the capture's Start.
	StartErr error

	opened atomic.Int32
	closed atomic.Int32
}

func NewFakeContext(pcm []byte, realtime bool) *FakeContext {
	return &FakeContext{pcm: pcm, realtime: realtime}
}

// LoadWAV reads a 16 kHz mono 16-bit WAV file and returns its PCM payload.
func LoadWAV(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) > WAVHeaderSize {
		data = data[WAVHeaderSize:]
	}
	return data, nil
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: "fake", Name: "fake"}}, nil
}

func (f *FakeContext) Close() {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	if f.AcquireErr != nil {
		return nil, f.AcquireErr
	}
	f.opened.Add(1)
	return &FakeCapture{ctx: f, audioDone: make(chan struct{})}, nil
}

// Opened and Closed count capture devices handed out and released.
func (f *FakeContext) Opened() int { return int(f.opened.Load()) }
func (f *FakeContext) Closed() int { return int(f.closed.Load()) }

type FakeCapture struct {
	ctx       *FakeContext
	audioDone chan struct{}

	mu       sync.Mutex
	cb       DataCallback
	stopCh   chan struct{}
	feedDone chan struct{}
	closed   bool
}

// AudioDone is closed once the whole buffer has been delivered.
func (f *FakeCapture) AudioDone() <-chan struct{} { return f.audioDone }

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) DeviceName() string { return "fake" }

func (f *FakeCapture) callback() DataCallback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cb
}

func (f *FakeCapture) Start() error {
	if f.ctx.StartErr != nil {
		return f.ctx.StartErr
	}
	f.stopCh = make(chan struct{})
	f.feedDone = make(chan struct{})

	var interval time.Duration
	if f.ctx.realtime {
		interval = time.Duration(fakeFrameSize) * time.Second / SampleRate
	}
	pcm := f.ctx.pcm

	go func(stop, done chan struct{}) {
		defer close(done)
		pos := 0
		for pos < len(pcm) {
			select {
			case <-stop:
				return
			default:
			}
			cb := f.callback()
			if cb == nil {
				time.Sleep(time.Millisecond)
				continue
			}
			end := min(pos+fakeChunkBytes, len(pcm))
			chunk := make([]byte, end-pos)
			copy(chunk, pcm[pos:end])
			cb(chunk, uint32(len(chunk)/BytesPerFrame))
			pos = end
			if interval > 0 {
				select {
				case <-stop:
					return
				case <-time.After(interval):
				}
			}
		}
		close(f.audioDone)
	}(f.stopCh, f.feedDone)

	return nil
}

func (f *FakeCapture) Stop() {
	if f.stopCh == nil {
		return
	}
	select {
	case <-f.stopCh:
	default:
		close(f.stopCh)
	}
	<-f.feedDone
}

func (f *FakeCapture) Close() {
	f.Stop()
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		f.ctx.closed.Add(1)
	}
}
