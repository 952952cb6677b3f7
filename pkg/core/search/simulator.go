package search

import (
	"context"
	"math"
	"time"
)

// sineRand is a deterministic pseudo-random source based on a sine
// hash. It exists so demo pacing looks organic yet renders identically
// on every run with the same seed.
type sineRand struct {
	seed  float64
	state int
}

func newSineRand(seed float64) *sineRand {
	return &sineRand{seed: seed}
}

// Next returns a value in [0, 1).
func (r *sineRand) Next() float64 {
	r.state++
	x := math.Sin(r.seed+float64(r.state)*12.9898) * 43758.5453
	return x - math.Floor(x)
}

// SimulatorConfig tunes demo replay.
type SimulatorConfig struct {
	// Accumulator receives every growing prefix. Required.
	Accumulator *Accumulator
	// OnText fires after each character with the full text so far.
	OnText func(text string)
	// CharInterval is the base delay per character. Zero disables
	// pacing entirely, which tests rely on.
	CharInterval time.Duration
	// Seed drives the timing jitter. Same seed, same pacing.
	Seed float64
}

// Simulator replays scripted phrases character by character through the
// same accumulation path live transcription uses. Replaying the same
// phrase from a clean reset always produces identical final parameters.
type Simulator struct {
	cfg SimulatorConfig
	rng *sineRand
}

// NewSimulator creates a demo simulator.
func NewSimulator(cfg SimulatorConfig) *Simulator {
	return &Simulator{cfg: cfg, rng: newSineRand(cfg.Seed)}
}

// Replay feeds one phrase through the accumulator character by
// character. It returns early if ctx is cancelled; the parameters
// accumulated so far are kept.
func (s *Simulator) Replay(ctx context.Context, phrase string) error {
	runes := []rune(phrase)
	for i := range runes {
		if err := s.pace(ctx); err != nil {
			return err
		}
		text := string(runes[:i+1])
		s.cfg.Accumulator.Ingest(text)
		if s.cfg.OnText != nil {
			s.cfg.OnText(text)
		}
	}
	return nil
}

// ReplayAll replays phrases in order, resetting nothing between them so
// later phrases refine earlier parameters.
func (s *Simulator) ReplayAll(ctx context.Context, phrases []string) error {
	for _, phrase := range phrases {
		if err := s.Replay(ctx, phrase); err != nil {
			return err
		}
	}
	return nil
}

func (s *Simulator) pace(ctx context.Context) error {
	if s.cfg.CharInterval == 0 {
		return ctx.Err()
	}
	// Jitter between 0.5x and 1.5x of the base interval.
	delay := time.Duration(float64(s.cfg.CharInterval) * (0.5 + s.rng.Next()))
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
