package playback

import (
	"time"
)

// DefaultClipDuration is used for clips whose duration is unknown.
const DefaultClipDuration = 5 * time.Second

// TimerPlayer simulates server-side playback by holding the slot for the
// clip's duration.
type TimerPlayer struct {
	fallback time.Duration
}

// NewTimerPlayer creates a timer player. A non-positive fallback selects DefaultClipDuration.
func NewTimerPlayer(fallback time.Duration) *TimerPlayer {
	if fallback <= 0 {
		fallback = DefaultClipDuration
	}
	return &TimerPlayer{fallback: fallback}
}

type timerClip struct {
	timer *time.Timer
}

func (c timerClip) Stop() { c.timer.Stop() }

// Play starts a clip that ends after its duration.
func (p *TimerPlayer) Play(_ string, src Source, done func(error)) (Clip, error) {
	d := src.Duration
	if d <= 0 {
		d = p.fallback
	}
	return timerClip{timer: time.AfterFunc(d, func() { done(nil) })}, nil
}
