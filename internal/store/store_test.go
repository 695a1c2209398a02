package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/capitalize-ai/agent-configurator/internal/model"
	"github.com/capitalize-ai/agent-configurator/pkg/logger"
)

func testKVConformance(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	if _, found, err := kv.Get(ctx, "missing"); err != nil || found {
		t.Fatalf("Get missing: found=%v err=%v", found, err)
	}

	if err := kv.Set(ctx, "k", "v1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := kv.Set(ctx, "k", "v2"); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	v, found, err := kv.Get(ctx, "k")
	if err != nil || !found || v != "v2" {
		t.Fatalf("Get = %q, %v, %v", v, found, err)
	}

	if err := kv.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, found, _ := kv.Get(ctx, "k"); found {
		t.Error("key still present after Delete")
	}
}

func TestMemory_Conformance(t *testing.T) {
	testKVConformance(t, NewMemory())
}

func TestSQLite_Conformance(t *testing.T) {
	kv, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	defer kv.Close()

	testKVConformance(t, kv)
}

func TestOpen_UnknownBackend(t *testing.T) {
	if _, err := Open(context.Background(), Options{Backend: "etcd"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func sampleConfig() model.AgentConfiguration {
	cfg := model.DefaultConfiguration()
	cfg.ObjectiveID = "vendas"
	cfg.ConversationType = model.ConversationReactive
	cfg.RequestEvaluation = true
	cfg.PersonalizationFields = []model.PersonalizationField{
		{ID: model.MandatoryFieldID, SelectedField: "Nome", Value: "Ana", IsMandatory: true},
		{ID: "f1", SelectedField: "Cidade", Value: "Recife"},
	}
	cfg.Guidelines = []model.Guideline{{ID: "g1", Title: "Frete", Description: "Grátis acima de R$100"}}
	cfg.InitialMessages = []model.Message{model.NewText(model.SenderBot, "Bem-vindo!", model.StatusRead)}
	return cfg
}

func TestConfigStore_RoundTrip(t *testing.T) {
	for name, kv := range map[string]func() (KV, error){
		"memory": func() (KV, error) { return NewMemory(), nil },
		"sqlite": func() (KV, error) { return NewSQLite(":memory:") },
	} {
		t.Run(name, func(t *testing.T) {
			backend, err := kv()
			if err != nil {
				t.Fatal(err)
			}
			defer backend.Close()

			s := NewConfigStore(backend, logger.NewNop())
			ctx := context.Background()
			saved := sampleConfig()

			if err := s.Save(ctx, saved); err != nil {
				t.Fatalf("Save: %v", err)
			}
			got, err := s.Load(ctx)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}

			if got.ObjectiveID != "vendas" || got.ConversationType != model.ConversationReactive || !got.RequestEvaluation {
				t.Errorf("scalar fields not restored: %+v", got)
			}
			if len(got.PersonalizationFields) != 2 || got.PersonalizationFields[1] != saved.PersonalizationFields[1] {
				t.Errorf("fields = %+v", got.PersonalizationFields)
			}
			if len(got.Guidelines) != 1 || got.Guidelines[0] != saved.Guidelines[0] {
				t.Errorf("guidelines = %+v", got.Guidelines)
			}
			if len(got.InitialMessages) != 1 {
				t.Fatalf("messages = %+v", got.InitialMessages)
			}
			msg := got.InitialMessages[0]
			if msg.ID != saved.InitialMessages[0].ID || msg.Content() != "Bem-vindo!" {
				t.Errorf("message = %+v", msg)
			}
			if !msg.CreatedAt.Equal(saved.InitialMessages[0].CreatedAt) {
				t.Errorf("timestamp %v, want %v", msg.CreatedAt, saved.InitialMessages[0].CreatedAt)
			}
		})
	}
}

func TestConfigStore_LoadDefaults(t *testing.T) {
	s := NewConfigStore(NewMemory(), logger.NewNop())

	got, err := s.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got.ConversationType != model.ConversationProactive {
		t.Errorf("conversation type = %q", got.ConversationType)
	}
	if len(got.PersonalizationFields) != 1 || got.PersonalizationFields[0].ID != model.MandatoryFieldID {
		t.Errorf("fields = %+v", got.PersonalizationFields)
	}
	if len(got.InitialMessages) != 2 {
		t.Errorf("expected default greeting, got %d messages", len(got.InitialMessages))
	}
}

func TestConfigStore_LoadLegacyKeys(t *testing.T) {
	kv := NewMemory()
	ctx := context.Background()
	kv.Set(ctx, KeySelectedObjective, "suporte")
	kv.Set(ctx, KeyRequestEvaluation, "true")
	kv.Set(ctx, KeyPersonalizationFields, `[{"id": 7, "selectedField": "Cidade", "value": "Natal"}, {"id": "x", "selectedField": "Nome", "value": "dup"}]`)
	kv.Set(ctx, KeyMessageList, `[{"id": "1", "content": "Oi", "timestamp": "2024-05-01T10:00:00.000Z"}]`)

	got, err := NewConfigStore(kv, logger.NewNop()).Load(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if got.ObjectiveID != "suporte" || !got.RequestEvaluation {
		t.Errorf("scalars = %+v", got)
	}
	if got.ConversationType != model.ConversationProactive {
		t.Errorf("missing type should default to proactive, got %q", got.ConversationType)
	}
	fields := got.PersonalizationFields
	if len(fields) != 2 || fields[0].ID != model.MandatoryFieldID || fields[1].ID != "7" {
		t.Errorf("fields = %+v", fields)
	}
	if len(got.InitialMessages) != 1 {
		t.Fatalf("messages = %+v", got.InitialMessages)
	}
	m := got.InitialMessages[0]
	if m.Sender != model.SenderBot || m.Status != model.StatusRead || m.Kind() != model.KindText {
		t.Errorf("message defaults not applied: %+v", m)
	}
	if m.CreatedAt.Year() != 2024 {
		t.Errorf("timestamp not parsed: %v", m.CreatedAt)
	}
}

func TestConfigStore_CorruptUnifiedFallsBack(t *testing.T) {
	kv := NewMemory()
	ctx := context.Background()
	kv.Set(ctx, KeyCompleteConfig, "{not json")
	kv.Set(ctx, KeySelectedObjective, "leads")

	got, err := NewConfigStore(kv, logger.NewNop()).Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.ObjectiveID != "leads" {
		t.Errorf("expected legacy objective, got %q", got.ObjectiveID)
	}
}

func TestConfigStore_SaveValidation(t *testing.T) {
	kv := NewMemory()
	s := NewConfigStore(kv, logger.NewNop())

	cfg := sampleConfig()
	cfg.PersonalizationFields = append(cfg.PersonalizationFields, model.PersonalizationField{ID: "f2", SelectedField: "Email", Value: "undefined"})

	err := s.Save(context.Background(), cfg)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if _, found, _ := kv.Get(context.Background(), KeyCompleteConfig); found {
		t.Error("invalid configuration must not be written")
	}
}

func TestConfigStore_SaveWithAIStoresNoMessages(t *testing.T) {
	kv := NewMemory()
	s := NewConfigStore(kv, logger.NewNop())
	ctx := context.Background()

	var notified []model.AgentConfiguration
	s.OnSave(func(c model.AgentConfiguration) { notified = append(notified, c) })

	cfg := sampleConfig()
	cfg.UseAI = true
	if err := s.Save(ctx, cfg); err != nil {
		t.Fatal(err)
	}

	raw, _, _ := kv.Get(ctx, KeyMessageList)
	if raw != "[]" {
		t.Errorf("legacy message list = %s", raw)
	}

	var rec map[string]any
	unified, _, _ := kv.Get(ctx, KeyCompleteConfig)
	if err := json.Unmarshal([]byte(unified), &rec); err != nil {
		t.Fatal(err)
	}
	if _, ok := rec["savedAt"]; !ok {
		t.Error("unified record missing savedAt")
	}
	if ai, _, _ := kv.Get(ctx, KeyUseAI); ai != "true" {
		t.Errorf("legacy useAI = %s", ai)
	}

	if len(notified) != 1 || !notified[0].UseAI {
		t.Errorf("subscribers not notified: %+v", notified)
	}
}
