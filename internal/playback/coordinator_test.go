package playback

import (
	"errors"
	"testing"
	"time"

	"github.com/capitalize-ai/agent-configurator/pkg/logger"
)

type fakeClip struct{ stopped bool }

func (c *fakeClip) Stop() { c.stopped = true }

type fakePlayer struct {
	clips map[string]*fakeClip
	done  map[string]func(error)
	fail  error
}

func newFakePlayer() *fakePlayer {
	return &fakePlayer{clips: map[string]*fakeClip{}, done: map[string]func(error){}}
}

func (p *fakePlayer) Play(id string, _ Source, done func(error)) (Clip, error) {
	if p.fail != nil {
		return nil, p.fail
	}
	c := &fakeClip{}
	p.clips[id] = c
	p.done[id] = done
	return c, nil
}

var src = Source{Ref: "/api/v1/media/x", Duration: time.Second}

func TestCoordinator_ToggleSameID(t *testing.T) {
	p := newFakePlayer()
	c := NewCoordinator(p, logger.NewNop())

	if err := c.Play("a", src); err != nil {
		t.Fatal(err)
	}
	if !c.IsPlaying("a") {
		t.Fatal("a should be playing")
	}

	if err := c.Play("a", src); err != nil {
		t.Fatal(err)
	}
	if c.IsPlaying("a") {
		t.Error("second play of a should toggle it off")
	}
	if _, ok := c.Current(); ok {
		t.Error("slot should be empty")
	}
	if !p.clips["a"].stopped {
		t.Error("clip a was not stopped")
	}
}

func TestCoordinator_SwitchStopsPrevious(t *testing.T) {
	p := newFakePlayer()
	c := NewCoordinator(p, logger.NewNop())

	c.Play("a", src)
	c.Play("b", src)

	if c.IsPlaying("a") || !c.IsPlaying("b") {
		t.Error("only b should be playing")
	}
	if !p.clips["a"].stopped {
		t.Error("clip a was not stopped")
	}
}

func TestCoordinator_EndClearsSlot(t *testing.T) {
	p := newFakePlayer()
	c := NewCoordinator(p, logger.NewNop())

	c.Play("a", src)
	p.done["a"](nil)

	if c.IsPlaying("a") {
		t.Error("natural end should clear the slot")
	}
}

func TestCoordinator_StaleEndIgnored(t *testing.T) {
	p := newFakePlayer()
	c := NewCoordinator(p, logger.NewNop())

	c.Play("a", src)
	c.Play("b", src)
	p.done["a"](nil)

	if !c.IsPlaying("b") {
		t.Error("end of a stopped clip must not clear b")
	}
}

func TestCoordinator_LoadErrorLeavesSlotEmpty(t *testing.T) {
	p := newFakePlayer()
	c := NewCoordinator(p, logger.NewNop())

	c.Play("a", src)
	p.fail = errors.New("decode failed")

	if err := c.Play("b", src); err == nil {
		t.Fatal("expected start error")
	}
	if _, ok := c.Current(); ok {
		t.Error("slot should be empty after a load error")
	}
	if !p.clips["a"].stopped {
		t.Error("previous clip should have been stopped")
	}

	if err := c.Play("c", Source{}); !errors.Is(err, ErrEmptySource) {
		t.Errorf("expected ErrEmptySource, got %v", err)
	}
}

func TestCoordinator_EndedAndFailed(t *testing.T) {
	c := NewCoordinator(newFakePlayer(), logger.NewNop())

	c.Play("a", src)
	c.Ended("other")
	if !c.IsPlaying("a") {
		t.Error("Ended for another id must not clear the slot")
	}
	c.Failed("a", errors.New("boom"))
	if c.IsPlaying("a") {
		t.Error("Failed should clear the slot")
	}
}

func TestTimerPlayer_EndsAfterDuration(t *testing.T) {
	c := NewCoordinator(NewTimerPlayer(0), logger.NewNop())

	if err := c.Play("a", Source{Ref: "x", Duration: 10 * time.Millisecond}); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for c.IsPlaying("a") {
		if time.Now().After(deadline) {
			t.Fatal("timer clip never ended")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
