//go:build !linux

package beep

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"clinicletter/log"
)

var (
	initOnce sync.Once
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device

	playMu  sync.Mutex
	current atomic.Pointer[[]byte]
	pos     atomic.Uint32
)

func initDevice() error {
	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = 1
	cfg.SampleRate = sampleRate

	var err error
	device, err = malgo.InitDevice(malgoCtx.Context, cfg, malgo.DeviceCallbacks{Data: onData})
	return err
}

func initSound() {
	var err error
	malgoCtx, err = malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		log.Warnf("malgo playback: %v", err)
		return
	}
	if err := initDevice(); err != nil {
		log.Warnf("malgo playback: %v", err)
		malgoCtx.Uninit()
		malgoCtx = nil
	}
}

func onData(out, _ []byte, frames uint32) {
	clear(out)
	buf := current.Load()
	if buf == nil {
		return
	}
	p := pos.Load()
	rest := uint32(len(*buf)) - p
	if rest == 0 {
		current.Store(nil)
		return
	}
	n := min(frames*2, rest)
	copy(out[:n], (*buf)[p:p+n])
	pos.Store(p + n)
}

func play(mono []int16) {
	initOnce.Do(initSound)
	if malgoCtx == nil {
		return
	}
	b := make([]byte, len(mono)*2)
	for i, s := range mono {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(s))
	}

	playMu.Lock()
	defer playMu.Unlock()
	if device == nil {
		return
	}
	device.Stop()
	pos.Store(0)
	current.Store(&b)
	if err := device.Start(); err != nil {
		// the device can go stale across sleep/wake
		device.Uninit()
		if err := initDevice(); err != nil {
			current.Store(nil)
			return
		}
		if err := device.Start(); err != nil {
			current.Store(nil)
		}
	}
}
