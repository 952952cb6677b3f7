// Package audio provides microphone capture and speaker playback for
// live voice sessions, with mute handled client-side by silent-frame
// substitution so the capture device never stops mid-session.
package audio

import (
	"strings"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/haus-ai/concierge/pkg/core"
)

const (
	// DefaultSampleRate is the PCM sample rate for both directions.
	DefaultSampleRate = 24000
	// DefaultChannels is mono capture and playback.
	DefaultChannels = 1
)

// CaptureBackend opens an OS capture device. The production backend is
// malgo; tests substitute a fake that pushes synthetic frames.
type CaptureBackend interface {
	// Open starts a capture stream delivering raw PCM frames to onData.
	Open(sampleRate, channels int, onData func([]byte)) (CaptureHandle, error)
}

// CaptureHandle is an open capture stream.
type CaptureHandle interface {
	Close() error
}

// Capture owns the microphone for the duration of a session. Exactly
// one consumer reads frames; frames arrive in capture order.
type Capture struct {
	backend    CaptureBackend
	sampleRate int
	channels   int

	mu       sync.Mutex
	handle   CaptureHandle
	muted    bool
	consumer func([]byte)
}

// CaptureConfig configures a Capture.
type CaptureConfig struct {
	// Backend defaults to the malgo system backend.
	Backend CaptureBackend
	// SampleRate defaults to DefaultSampleRate.
	SampleRate int
	// Channels defaults to DefaultChannels.
	Channels int
}

// NewCapture creates an unacquired capture adapter.
func NewCapture(cfg CaptureConfig) *Capture {
	if cfg.Backend == nil {
		cfg.Backend = &malgoBackend{}
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.Channels == 0 {
		cfg.Channels = DefaultChannels
	}
	return &Capture{
		backend:    cfg.Backend,
		sampleRate: cfg.SampleRate,
		channels:   cfg.Channels,
	}
}

// Acquire opens the microphone and begins delivering PCM frames to
// consume. Calling Acquire while already acquired is a no-op.
func (c *Capture) Acquire(consume func(pcm []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle != nil {
		return nil
	}
	c.consumer = consume

	handle, err := c.backend.Open(c.sampleRate, c.channels, c.deliver)
	if err != nil {
		if isPermissionDenied(err) {
			return core.NewPermissionError("microphone access denied")
		}
		return core.NewDeviceError("open capture device", err)
	}
	c.handle = handle
	return nil
}

// deliver runs on the device thread. While muted the device keeps
// running and equal-length silent frames are substituted, so the
// provider's turn detection still sees a live stream.
func (c *Capture) deliver(pcm []byte) {
	c.mu.Lock()
	muted := c.muted
	consume := c.consumer
	c.mu.Unlock()
	if consume == nil {
		return
	}
	if muted {
		consume(make([]byte, len(pcm)))
		return
	}
	frame := make([]byte, len(pcm))
	copy(frame, pcm)
	consume(frame)
}

// Mute substitutes silence for captured audio without stopping the device.
func (c *Capture) Mute() {
	c.mu.Lock()
	c.muted = true
	c.mu.Unlock()
}

// Unmute restores live capture.
func (c *Capture) Unmute() {
	c.mu.Lock()
	c.muted = false
	c.mu.Unlock()
}

// Muted reports the current mute state.
func (c *Capture) Muted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted
}

// Release stops capture and frees the device. Safe to call repeatedly
// or before Acquire.
func (c *Capture) Release() error {
	c.mu.Lock()
	handle := c.handle
	c.handle = nil
	c.consumer = nil
	c.muted = false
	c.mu.Unlock()
	if handle == nil {
		return nil
	}
	return handle.Close()
}

func isPermissionDenied(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "access denied") || strings.Contains(msg, "permission")
}

// malgoBackend opens the default system microphone via miniaudio.
type malgoBackend struct{}

type malgoHandle struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
}

func (b *malgoBackend) Open(sampleRate, channels int, onData func([]byte)) (CaptureHandle, error) {
	ctxConfig := malgo.ContextConfig{}
	ctxConfig.ThreadPriority = malgo.ThreadPriorityRealtime
	ctx, err := malgo.InitContext(nil, ctxConfig, nil)
	if err != nil {
		return nil, err
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(channels)
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.PeriodSizeInMilliseconds = 20

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, pInputSamples []byte, _ uint32) {
			onData(pInputSamples)
		},
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		ctx.Uninit()
		return nil, err
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		ctx.Uninit()
		return nil, err
	}
	return &malgoHandle{ctx: ctx, device: device}, nil
}

func (h *malgoHandle) Close() error {
	h.device.Stop()
	h.device.Uninit()
	return h.ctx.Uninit()
}
