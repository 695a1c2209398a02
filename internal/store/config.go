package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/agent-configurator/internal/model"
	"github.com/capitalize-ai/agent-configurator/pkg/logger"
	"github.com/capitalize-ai/agent-configurator/pkg/metrics"
)

// Storage keys. The unified record is authoritative; the individual keys are
// written alongside it for older readers.
const (
	KeyCompleteConfig        = "jarbas_complete_config"
	KeySelectedObjective     = "jarbas_selected_objective"
	KeyConversationType      = "jarbas_conversation_type"
	KeyRequestEvaluation     = "jarbas_request_evaluation"
	KeyPersonalizationFields = "jarbas_personalization_fields"
	KeyGuidelines            = "jarbas_guidelines"
	KeyMessageList           = "jarbas_msg_list"
	KeyUseAI                 = "jarbas_msg_ai"
)

// ErrValidation is returned by Save when the configuration is not storable.
var ErrValidation = errors.New("invalid configuration")

type record struct {
	model.AgentConfiguration
	SavedAt string `json:"savedAt,omitempty"`
}

// ConfigStore loads and saves the agent configuration.
type ConfigStore struct {
	kv     KV
	logger *logger.Logger
	now    func() time.Time

	mu   sync.RWMutex
	subs []func(model.AgentConfiguration)
}

// NewConfigStore creates a configuration store over kv.
func NewConfigStore(kv KV, log *logger.Logger) *ConfigStore {
	return &ConfigStore{kv: kv, logger: log, now: time.Now}
}

// OnSave registers fn to be called with every successfully saved configuration.
func (s *ConfigStore) OnSave(fn func(model.AgentConfiguration)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// Load reads the configuration. The unified record wins over the individual
// keys; when neither is usable the defaults are returned. The result is
// always normalized.
func (s *ConfigStore) Load(ctx context.Context) (model.AgentConfiguration, error) {
	raw, found, err := s.kv.Get(ctx, KeyCompleteConfig)
	if err != nil {
		metrics.RecordConfigOperation("load", "error")
		return model.AgentConfiguration{}, fmt.Errorf("load configuration: %w", err)
	}

	if found {
		var rec record
		err := json.Unmarshal([]byte(raw), &rec)
		if err == nil {
			metrics.RecordConfigOperation("load", "unified")
			return Normalize(rec.AgentConfiguration), nil
		}
		s.logger.Warn("unified configuration record unreadable, falling back to individual keys", zap.Error(err))
	}

	cfg, err := s.loadLegacy(ctx)
	if err != nil {
		s.logger.Warn("stored configuration unreadable, using defaults", zap.Error(err))
		metrics.RecordConfigOperation("load", "default")
		return model.DefaultConfiguration(), nil
	}
	metrics.RecordConfigOperation("load", "legacy")
	return Normalize(cfg), nil
}

func (s *ConfigStore) loadLegacy(ctx context.Context) (model.AgentConfiguration, error) {
	var cfg model.AgentConfiguration

	get := func(key string) (string, bool, error) {
		v, ok, err := s.kv.Get(ctx, key)
		if err != nil {
			return "", false, fmt.Errorf("get %s: %w", key, err)
		}
		return v, ok, nil
	}

	if v, ok, err := get(KeySelectedObjective); err != nil {
		return cfg, err
	} else if ok {
		cfg.ObjectiveID = v
	}

	if v, ok, err := get(KeyConversationType); err != nil {
		return cfg, err
	} else if ok {
		cfg.ConversationType = model.ConversationType(v)
	}

	if v, ok, err := get(KeyRequestEvaluation); err != nil {
		return cfg, err
	} else if ok {
		if err := json.Unmarshal([]byte(v), &cfg.RequestEvaluation); err != nil {
			return cfg, fmt.Errorf("decode %s: %w", KeyRequestEvaluation, err)
		}
	}

	if v, ok, err := get(KeyUseAI); err != nil {
		return cfg, err
	} else if ok {
		if err := json.Unmarshal([]byte(v), &cfg.UseAI); err != nil {
			return cfg, fmt.Errorf("decode %s: %w", KeyUseAI, err)
		}
	}

	if v, ok, err := get(KeyPersonalizationFields); err != nil {
		return cfg, err
	} else if ok {
		fields, err := decodeLegacyFields(v)
		if err != nil {
			return cfg, err
		}
		cfg.PersonalizationFields = fields
	}

	if v, ok, err := get(KeyGuidelines); err != nil {
		return cfg, err
	} else if ok {
		if err := json.Unmarshal([]byte(v), &cfg.Guidelines); err != nil {
			return cfg, fmt.Errorf("decode %s: %w", KeyGuidelines, err)
		}
	}

	if v, ok, err := get(KeyMessageList); err != nil {
		return cfg, err
	} else if ok {
		if err := json.Unmarshal([]byte(v), &cfg.InitialMessages); err != nil {
			return cfg, fmt.Errorf("decode %s: %w", KeyMessageList, err)
		}
	}

	return cfg, nil
}

// decodeLegacyFields accepts loosely typed field records, coercing every
// attribute to its expected type.
func decodeLegacyFields(v string) ([]model.PersonalizationField, error) {
	var raw []map[string]any
	if err := json.Unmarshal([]byte(v), &raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", KeyPersonalizationFields, err)
	}

	fields := make([]model.PersonalizationField, 0, len(raw))
	for _, r := range raw {
		fields = append(fields, model.PersonalizationField{
			ID:            stringify(r["id"]),
			SelectedField: stringify(r["selectedField"]),
			Value:         stringify(r["value"]),
			IsMandatory:   truthy(r["isMandatory"]),
		})
	}
	return fields, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	default:
		return v != nil
	}
}

// Normalize applies the load-time invariants: a conversation type is set, the
// mandatory Nome field is present once and first, and an empty initial message
// list is replaced by the default greeting.
func Normalize(cfg model.AgentConfiguration) model.AgentConfiguration {
	cfg = cfg.Clone()
	if cfg.ConversationType == "" {
		cfg.ConversationType = model.ConversationProactive
	}
	cfg.PersonalizationFields = model.EnsureMandatoryField(cfg.PersonalizationFields)
	if cfg.Guidelines == nil {
		cfg.Guidelines = []model.Guideline{}
	}
	if len(cfg.InitialMessages) == 0 {
		cfg.InitialMessages = model.DefaultGreeting()
	}
	return cfg
}

// Save validates and writes the configuration, then notifies subscribers.
// When UseAI is set the initial message list is stored empty.
func (s *ConfigStore) Save(ctx context.Context, cfg model.AgentConfiguration) error {
	if invalid := model.InvalidFields(cfg.PersonalizationFields); len(invalid) > 0 {
		metrics.RecordConfigOperation("save", "invalid")
		return fmt.Errorf("%w: %d personalization field(s) have a type but no value", ErrValidation, len(invalid))
	}

	cfg = cfg.Clone()
	if cfg.UseAI || cfg.InitialMessages == nil {
		cfg.InitialMessages = []model.Message{}
	}
	if cfg.Guidelines == nil {
		cfg.Guidelines = []model.Guideline{}
	}

	rec := record{
		AgentConfiguration: cfg,
		SavedAt:            s.now().UTC().Format(time.RFC3339Nano),
	}

	writes := []struct {
		key   string
		value any
	}{
		{KeyCompleteConfig, rec},
		{KeySelectedObjective, cfg.ObjectiveID},
		{KeyConversationType, string(cfg.ConversationType)},
		{KeyRequestEvaluation, cfg.RequestEvaluation},
		{KeyPersonalizationFields, cfg.PersonalizationFields},
		{KeyGuidelines, cfg.Guidelines},
		{KeyMessageList, cfg.InitialMessages},
		{KeyUseAI, cfg.UseAI},
	}

	for _, w := range writes {
		value, ok := w.value.(string)
		if !ok {
			data, err := json.Marshal(w.value)
			if err != nil {
				metrics.RecordConfigOperation("save", "error")
				return fmt.Errorf("encode %s: %w", w.key, err)
			}
			value = string(data)
		}
		if err := s.kv.Set(ctx, w.key, value); err != nil {
			metrics.RecordConfigOperation("save", "error")
			return fmt.Errorf("save configuration: %w", err)
		}
	}

	metrics.RecordConfigOperation("save", "success")
	s.logger.Info("configuration saved",
		zap.String("objective", cfg.ObjectiveID),
		zap.String("conversation_type", string(cfg.ConversationType)),
		zap.Int("fields", len(cfg.PersonalizationFields)),
		zap.Int("guidelines", len(cfg.Guidelines)),
		zap.Bool("use_ai", cfg.UseAI),
	)

	s.mu.RLock()
	subs := append([]func(model.AgentConfiguration){}, s.subs...)
	s.mu.RUnlock()
	saved := Normalize(cfg)
	for _, fn := range subs {
		fn(saved.Clone())
	}
	return nil
}
