package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/agent-configurator/internal/model"
	"github.com/capitalize-ai/agent-configurator/internal/store"
	"github.com/capitalize-ai/agent-configurator/pkg/logger"
)

var (
	// ErrValidation is returned when an edit or save would break a configuration invariant.
	ErrValidation = store.ErrValidation
	// ErrNotFound is returned when an edit names an id that does not exist.
	ErrNotFound = errors.New("not found")
)

// ConfigRepository loads and saves the agent configuration.
type ConfigRepository interface {
	Load(ctx context.Context) (model.AgentConfiguration, error)
	Save(ctx context.Context, cfg model.AgentConfiguration) error
}

// ConfigEditor holds the operator's working copy of the configuration next
// to the last saved copy. Edits only touch the working copy until Save.
type ConfigEditor struct {
	repo   ConfigRepository
	logger *logger.Logger

	mu      sync.Mutex
	working model.AgentConfiguration
	saved   model.AgentConfiguration
}

// NewConfigEditor creates an editor and loads the stored configuration.
func NewConfigEditor(ctx context.Context, repo ConfigRepository, log *logger.Logger) (*ConfigEditor, error) {
	e := &ConfigEditor{repo: repo, logger: log}
	if err := e.Reload(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// State returns a copy of the working configuration.
func (e *ConfigEditor) State() model.AgentConfiguration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.working.Clone()
}

// Saved returns a copy of the last saved configuration.
func (e *ConfigEditor) Saved() model.AgentConfiguration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.saved.Clone()
}

// HasChanges reports whether the working copy differs from the saved copy.
// Message timestamps are not compared.
func (e *ConfigEditor) HasChanges() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !reflect.DeepEqual(withoutTimestamps(e.working), withoutTimestamps(e.saved))
}

func withoutTimestamps(cfg model.AgentConfiguration) model.AgentConfiguration {
	cfg = cfg.Clone()
	for i := range cfg.InitialMessages {
		cfg.InitialMessages[i].CreatedAt = time.Time{}
	}
	if len(cfg.PersonalizationFields) == 0 {
		cfg.PersonalizationFields = nil
	}
	if len(cfg.Guidelines) == 0 {
		cfg.Guidelines = nil
	}
	if len(cfg.InitialMessages) == 0 {
		cfg.InitialMessages = nil
	}
	return cfg
}

func (e *ConfigEditor) edit(fn func(cfg *model.AgentConfiguration) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.working.Clone()
	if err := fn(&next); err != nil {
		return err
	}
	e.working = next
	return nil
}

// Replace swaps the whole working copy, normalizing it first.
func (e *ConfigEditor) Replace(cfg model.AgentConfiguration) error {
	if cfg.ConversationType != "" && !validConversationType(cfg.ConversationType) {
		return fmt.Errorf("%w: conversation type %q", ErrValidation, cfg.ConversationType)
	}
	normalized := store.Normalize(cfg)
	return e.edit(func(c *model.AgentConfiguration) error {
		*c = normalized
		return nil
	})
}

// SetObjective selects an objective. The id must be selectable under the
// current conversation type; an empty id clears the selection.
func (e *ConfigEditor) SetObjective(id string) error {
	return e.edit(func(c *model.AgentConfiguration) error {
		if id != "" {
			o, ok := model.LookupObjective(id)
			if !ok {
				return fmt.Errorf("%w: objective %q", ErrNotFound, id)
			}
			if o.ConversationType != c.ConversationType {
				return fmt.Errorf("%w: objective %q is not available for %s conversations", ErrValidation, id, c.ConversationType)
			}
		}
		c.ObjectiveID = id
		return nil
	})
}

// SetConversationType switches between proactive and reactive. An objective
// that is not selectable under the new type is cleared.
func (e *ConfigEditor) SetConversationType(t model.ConversationType) error {
	if !validConversationType(t) {
		return fmt.Errorf("%w: conversation type %q", ErrValidation, t)
	}
	return e.edit(func(c *model.AgentConfiguration) error {
		c.ConversationType = t
		if o, ok := model.LookupObjective(c.ObjectiveID); ok && o.ConversationType != t {
			c.ObjectiveID = ""
		}
		return nil
	})
}

func validConversationType(t model.ConversationType) bool {
	return t == model.ConversationProactive || t == model.ConversationReactive
}

// SetRequestEvaluation toggles the end-of-conversation evaluation request.
func (e *ConfigEditor) SetRequestEvaluation(v bool) {
	e.edit(func(c *model.AgentConfiguration) error {
		c.RequestEvaluation = v
		return nil
	})
}

// SetUseAI toggles AI-generated welcome messages.
func (e *ConfigEditor) SetUseAI(v bool) {
	e.edit(func(c *model.AgentConfiguration) error {
		c.UseAI = v
		return nil
	})
}

// AddField appends a personalization field.
func (e *ConfigEditor) AddField(selectedField, value string) (model.PersonalizationField, error) {
	f := model.PersonalizationField{ID: model.NewID(), SelectedField: selectedField, Value: value}
	err := e.edit(func(c *model.AgentConfiguration) error {
		if strings.EqualFold(strings.TrimSpace(selectedField), model.MandatoryFieldName) {
			return fmt.Errorf("%w: %s is always present", ErrValidation, model.MandatoryFieldName)
		}
		c.PersonalizationFields = append(c.PersonalizationFields, f)
		return nil
	})
	return f, err
}

// UpdateField changes a personalization field. The mandatory field keeps its
// type; only its value changes.
func (e *ConfigEditor) UpdateField(id, selectedField, value string) error {
	return e.edit(func(c *model.AgentConfiguration) error {
		for i, f := range c.PersonalizationFields {
			if f.ID != id {
				continue
			}
			if !f.IsMandatory {
				if strings.EqualFold(strings.TrimSpace(selectedField), model.MandatoryFieldName) {
					return fmt.Errorf("%w: %s is always present", ErrValidation, model.MandatoryFieldName)
				}
				c.PersonalizationFields[i].SelectedField = selectedField
			}
			c.PersonalizationFields[i].Value = value
			return nil
		}
		return fmt.Errorf("%w: field %q", ErrNotFound, id)
	})
}

// RemoveField deletes a personalization field. The mandatory field cannot be removed.
func (e *ConfigEditor) RemoveField(id string) error {
	return e.edit(func(c *model.AgentConfiguration) error {
		for i, f := range c.PersonalizationFields {
			if f.ID != id {
				continue
			}
			if f.IsMandatory {
				return fmt.Errorf("%w: mandatory field cannot be removed", ErrValidation)
			}
			c.PersonalizationFields = append(c.PersonalizationFields[:i], c.PersonalizationFields[i+1:]...)
			return nil
		}
		return fmt.Errorf("%w: field %q", ErrNotFound, id)
	})
}

// AddGuideline appends a guideline.
func (e *ConfigEditor) AddGuideline(title, description string) (model.Guideline, error) {
	g := model.Guideline{ID: model.NewID(), Title: title, Description: description}
	err := e.edit(func(c *model.AgentConfiguration) error {
		if strings.TrimSpace(title) == "" {
			return fmt.Errorf("%w: guideline title is required", ErrValidation)
		}
		c.Guidelines = append(c.Guidelines, g)
		return nil
	})
	return g, err
}

// UpdateGuideline changes a guideline.
func (e *ConfigEditor) UpdateGuideline(id, title, description string) error {
	return e.edit(func(c *model.AgentConfiguration) error {
		for i := range c.Guidelines {
			if c.Guidelines[i].ID == id {
				c.Guidelines[i].Title = title
				c.Guidelines[i].Description = description
				return nil
			}
		}
		return fmt.Errorf("%w: guideline %q", ErrNotFound, id)
	})
}

// RemoveGuideline deletes a guideline.
func (e *ConfigEditor) RemoveGuideline(id string) error {
	return e.edit(func(c *model.AgentConfiguration) error {
		for i := range c.Guidelines {
			if c.Guidelines[i].ID == id {
				c.Guidelines = append(c.Guidelines[:i], c.Guidelines[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("%w: guideline %q", ErrNotFound, id)
	})
}

// AddMessage appends a scripted greeting message.
func (e *ConfigEditor) AddMessage(content string) (model.Message, error) {
	msg := model.NewText(model.SenderBot, content, model.StatusRead)
	err := e.edit(func(c *model.AgentConfiguration) error {
		if strings.TrimSpace(content) == "" {
			return fmt.Errorf("%w: message content is required", ErrValidation)
		}
		c.InitialMessages = append(c.InitialMessages, msg)
		return nil
	})
	return msg, err
}

// UpdateMessage changes the text of a scripted message.
func (e *ConfigEditor) UpdateMessage(id, content string) error {
	return e.edit(func(c *model.AgentConfiguration) error {
		for i, m := range c.InitialMessages {
			if m.ID == id {
				c.InitialMessages[i] = m.WithText(content)
				return nil
			}
		}
		return fmt.Errorf("%w: message %q", ErrNotFound, id)
	})
}

// RemoveMessage deletes a scripted message.
func (e *ConfigEditor) RemoveMessage(id string) error {
	return e.edit(func(c *model.AgentConfiguration) error {
		for i, m := range c.InitialMessages {
			if m.ID == id {
				c.InitialMessages = append(c.InitialMessages[:i], c.InitialMessages[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("%w: message %q", ErrNotFound, id)
	})
}

// MoveMessage moves the scripted message at index from to index to. The
// slice order is the display order.
func (e *ConfigEditor) MoveMessage(from, to int) error {
	return e.edit(func(c *model.AgentConfiguration) error {
		n := len(c.InitialMessages)
		if from < 0 || from >= n || to < 0 || to >= n {
			return fmt.Errorf("%w: move %d to %d out of range", ErrValidation, from, to)
		}
		m := c.InitialMessages[from]
		rest := append(c.InitialMessages[:from:from], c.InitialMessages[from+1:]...)
		c.InitialMessages = append(rest[:to:to], append([]model.Message{m}, rest[to:]...)...)
		return nil
	})
}

// ReplaceMessages swaps the scripted message list.
func (e *ConfigEditor) ReplaceMessages(msgs []model.Message) error {
	return e.edit(func(c *model.AgentConfiguration) error {
		for _, m := range msgs {
			if m.Kind() != model.KindText {
				return fmt.Errorf("%w: initial messages must be text", ErrValidation)
			}
		}
		c.InitialMessages = append([]model.Message(nil), msgs...)
		return nil
	})
}

// Save writes the working copy. It returns false with an ErrValidation error
// when the configuration is not storable.
func (e *ConfigEditor) Save(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.repo.Save(ctx, e.working); err != nil {
		e.logger.Warn("configuration not saved", zap.Error(err))
		return false, err
	}
	e.saved = e.working.Clone()
	return true, nil
}

// Revert discards unsaved edits.
func (e *ConfigEditor) Revert() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.working = e.saved.Clone()
}

// Reload replaces both copies with what the store holds.
func (e *ConfigEditor) Reload(ctx context.Context) error {
	cfg, err := e.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("reload configuration: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.working = cfg.Clone()
	e.saved = cfg.Clone()
	return nil
}
