// Package playback coordinates audio playback so that at most one clip plays at a time.
package playback

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/agent-configurator/pkg/logger"
)

// ErrEmptySource is returned when a clip has nothing to play.
var ErrEmptySource = errors.New("empty audio source")

// Source is a playable clip.
type Source struct {
	Ref      string
	Duration time.Duration
}

// Clip is a clip that has started playing.
type Clip interface {
	Stop()
}

// Player starts clips. done is called once when playback ends on its own or
// fails after starting; it must not be called before Play returns.
type Player interface {
	Play(id string, src Source, done func(error)) (Clip, error)
}

// Coordinator owns the single playback slot.
type Coordinator struct {
	mu      sync.Mutex
	player  Player
	current string
	clip    Clip
	gen     uint64
	logger  *logger.Logger
}

// NewCoordinator creates a coordinator driving player.
func NewCoordinator(player Player, log *logger.Logger) *Coordinator {
	return &Coordinator{player: player, logger: log}
}

// Play toggles id: if it is already playing it is stopped, otherwise any
// playing clip is stopped and id starts. A start failure leaves the slot empty.
func (c *Coordinator) Play(id string, src Source) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == id {
		c.stopLocked()
		return nil
	}
	c.stopLocked()

	if src.Ref == "" {
		return ErrEmptySource
	}

	c.gen++
	gen := c.gen
	clip, err := c.player.Play(id, src, func(err error) { c.finished(gen, err) })
	if err != nil {
		c.logger.Warn("audio playback failed to start", zap.String("message_id", id), zap.Error(err))
		return err
	}

	c.current = id
	c.clip = clip
	return nil
}

// Stop stops whatever is playing.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

// Ended clears the slot when id finished playing on its own.
func (c *Coordinator) Ended(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == id {
		c.clear()
	}
}

// Failed clears the slot when id could not be loaded.
func (c *Coordinator) Failed(id string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == id {
		c.logger.Warn("audio playback failed", zap.String("message_id", id), zap.Error(err))
		c.clear()
	}
}

// IsPlaying reports whether id holds the slot.
func (c *Coordinator) IsPlaying(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return id != "" && c.current == id
}

// Current returns the id holding the slot.
func (c *Coordinator) Current() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current, c.current != ""
}

func (c *Coordinator) finished(gen uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// a newer clip owns the slot
	if gen != c.gen || c.current == "" {
		return
	}
	if err != nil {
		c.logger.Warn("audio playback failed", zap.String("message_id", c.current), zap.Error(err))
	}
	c.clear()
}

func (c *Coordinator) stopLocked() {
	if c.clip != nil {
		c.clip.Stop()
	}
	c.clear()
}

func (c *Coordinator) clear() {
	c.current = ""
	c.clip = nil
	c.gen++
}
