package audio

import (
	"io"
	"sync"

	"github.com/ebitengine/oto/v3"

	"github.com/haus-ai/concierge/pkg/core"
)

// PlayerContext creates playback players. The production implementation
// wraps oto; tests substitute a fake.
type PlayerContext interface {
	NewPlayer(io.Reader) Player
}

// Player is a pull-based PCM player.
type Player interface {
	Play()
	Pause()
	Reset()
	Close() error
}

// Playback buffers assistant PCM and plays it through the speaker. On
// barge-in, Flush discards everything queued so stale assistant speech
// never plays after the user interrupts.
type Playback struct {
	ctx PlayerContext

	mu      sync.Mutex
	cond    *sync.Cond
	buf     []byte
	player  Player
	playing bool
	closed  bool
}

// NewPlayback creates a playback adapter. The player starts lazily on
// the first Write so silence costs nothing.
func NewPlayback(ctx PlayerContext) *Playback {
	p := &Playback{
		ctx: ctx,
		buf: make([]byte, 0, DefaultSampleRate*4),
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// NewSpeakerPlayback opens the system speaker via oto.
func NewSpeakerPlayback(sampleRate, channels int) (*Playback, error) {
	opts := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
		// ~100ms at 24kHz mono 16-bit keeps latency low.
		BufferSize: 4800,
	}
	otoCtx, ready, err := oto.NewContext(opts)
	if err != nil {
		return nil, core.NewDeviceError("open playback device", err)
	}
	<-ready
	return NewPlayback(&otoContext{ctx: otoCtx}), nil
}

// Write enqueues assistant PCM for playback.
func (p *Playback) Write(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.buf = append(p.buf, data...)
	if !p.playing {
		p.playing = true
		p.player = p.ctx.NewPlayer(readerFunc(p.pull))
		p.player.Play()
	}
	p.cond.Signal()
}

// Buffered returns the number of queued bytes not yet pulled by the player.
func (p *Playback) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buf)
}

// pull feeds the player. Blocks until data arrives or the adapter closes.
func (p *Playback) pull(out []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.buf) == 0 && !p.closed {
		p.cond.Wait()
	}
	if p.closed && len(p.buf) == 0 {
		// Silence lets the device drain instead of underrunning.
		for i := range out {
			out[i] = 0
		}
		return len(out), nil
	}
	n := copy(out, p.buf)
	p.buf = p.buf[n:]
	return n, nil
}

// Flush discards all queued audio and resets the player so the next
// Write starts clean. Called on interruption.
func (p *Playback) Flush() {
	p.mu.Lock()
	p.buf = p.buf[:0]
	player := p.player
	wasPlaying := p.playing
	p.player = nil
	p.playing = false
	p.mu.Unlock()

	if player != nil && wasPlaying {
		player.Pause()
		player.Reset()
		player.Close()
	}
}

// Close stops playback permanently. Idempotent.
func (p *Playback) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	player := p.player
	p.player = nil
	p.cond.Broadcast()
	p.mu.Unlock()

	if player != nil {
		return player.Close()
	}
	return nil
}

type readerFunc func([]byte) (int, error)

func (f readerFunc) Read(p []byte) (int, error) { return f(p) }

type otoContext struct {
	ctx *oto.Context
}

func (c *otoContext) NewPlayer(r io.Reader) Player {
	return c.ctx.NewPlayer(r)
}
