package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/capitalize-ai/agent-configurator/internal/model"
	"github.com/capitalize-ai/agent-configurator/internal/store"
	"github.com/capitalize-ai/agent-configurator/pkg/logger"
)

func newTestEditor(t *testing.T) (*ConfigEditor, *store.ConfigStore) {
	t.Helper()
	repo := store.NewConfigStore(store.NewMemory(), logger.NewNop())
	e, err := NewConfigEditor(context.Background(), repo, logger.NewNop())
	if err != nil {
		t.Fatalf("NewConfigEditor: %v", err)
	}
	return e, repo
}

func TestEditor_LoadsDefaults(t *testing.T) {
	e, _ := newTestEditor(t)

	cfg := e.State()
	if cfg.ConversationType != model.ConversationProactive {
		t.Errorf("type = %q", cfg.ConversationType)
	}
	if len(cfg.PersonalizationFields) != 1 || !cfg.PersonalizationFields[0].IsMandatory {
		t.Errorf("fields = %+v", cfg.PersonalizationFields)
	}
	if e.HasChanges() {
		t.Error("fresh editor should have no changes")
	}
}

func TestEditor_MandatoryFieldProtected(t *testing.T) {
	e, _ := newTestEditor(t)

	if err := e.RemoveField(model.MandatoryFieldID); !errors.Is(err, ErrValidation) {
		t.Errorf("remove mandatory: %v", err)
	}
	if _, err := e.AddField("nome", "x"); !errors.Is(err, ErrValidation) {
		t.Errorf("adding a second Nome: %v", err)
	}

	if err := e.UpdateField(model.MandatoryFieldID, "Cidade", "Ana"); err != nil {
		t.Fatal(err)
	}
	f := e.State().PersonalizationFields[0]
	if f.SelectedField != model.MandatoryFieldName || f.Value != "Ana" {
		t.Errorf("mandatory field = %+v", f)
	}

	if err := e.RemoveField("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("remove missing: %v", err)
	}
}

func TestEditor_FieldLifecycle(t *testing.T) {
	e, _ := newTestEditor(t)

	f, err := e.AddField("Cidade", "Recife")
	if err != nil {
		t.Fatal(err)
	}
	if !e.HasChanges() {
		t.Error("added field should be a change")
	}
	if err := e.UpdateField(f.ID, "Empresa", "ACME"); err != nil {
		t.Fatal(err)
	}
	if got := e.State().PersonalizationFields[1]; got.SelectedField != "Empresa" || got.Value != "ACME" {
		t.Errorf("field = %+v", got)
	}
	if err := e.RemoveField(f.ID); err != nil {
		t.Fatal(err)
	}
	if e.HasChanges() {
		t.Error("add then remove should leave no changes")
	}
}

func TestEditor_ConversationTypeClearsObjective(t *testing.T) {
	e, _ := newTestEditor(t)

	if err := e.SetObjective("vendas"); err != nil {
		t.Fatal(err)
	}
	if err := e.SetConversationType(model.ConversationReactive); err != nil {
		t.Fatal(err)
	}
	if id := e.State().ObjectiveID; id != "" {
		t.Errorf("objective should be cleared, got %q", id)
	}

	if err := e.SetObjective("vendas"); !errors.Is(err, ErrValidation) {
		t.Errorf("proactive objective under reactive: %v", err)
	}
	if err := e.SetObjective("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown objective: %v", err)
	}
	if err := e.SetObjective("suporte"); err != nil {
		t.Fatal(err)
	}
	if err := e.SetConversationType("broadcast"); !errors.Is(err, ErrValidation) {
		t.Errorf("bad type: %v", err)
	}
}

func TestEditor_Guidelines(t *testing.T) {
	e, _ := newTestEditor(t)

	if _, err := e.AddGuideline(" ", "x"); !errors.Is(err, ErrValidation) {
		t.Errorf("blank title: %v", err)
	}
	g, err := e.AddGuideline("Frete", "Grátis acima de R$100")
	if err != nil {
		t.Fatal(err)
	}
	if err := e.UpdateGuideline(g.ID, "Frete", "Sempre grátis"); err != nil {
		t.Fatal(err)
	}
	if got := e.State().Guidelines; len(got) != 1 || got[0].Description != "Sempre grátis" {
		t.Errorf("guidelines = %+v", got)
	}
	if err := e.RemoveGuideline(g.ID); err != nil {
		t.Fatal(err)
	}
	if err := e.RemoveGuideline(g.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second remove: %v", err)
	}
}

func TestEditor_MoveMessage(t *testing.T) {
	e, _ := newTestEditor(t)
	if err := e.ReplaceMessages(nil); err != nil {
		t.Fatal(err)
	}
	for _, text := range []string{"a", "b", "c"} {
		if _, err := e.AddMessage(text); err != nil {
			t.Fatal(err)
		}
	}

	if err := e.MoveMessage(0, 2); err != nil {
		t.Fatal(err)
	}
	if got := contents(e.State().InitialMessages); got != "bca" {
		t.Errorf("order after 0->2 = %s", got)
	}
	if err := e.MoveMessage(2, 0); err != nil {
		t.Fatal(err)
	}
	if got := contents(e.State().InitialMessages); got != "abc" {
		t.Errorf("order after 2->0 = %s", got)
	}
	if err := e.MoveMessage(1, 3); !errors.Is(err, ErrValidation) {
		t.Errorf("out of range: %v", err)
	}
}

func contents(msgs []model.Message) string {
	var s string
	for _, m := range msgs {
		s += m.Content()
	}
	return s
}

func TestEditor_HasChangesIgnoresTimestamps(t *testing.T) {
	e, _ := newTestEditor(t)

	cfg := e.State()
	for i := range cfg.InitialMessages {
		cfg.InitialMessages[i].CreatedAt = time.Now().Add(time.Hour)
	}
	if err := e.Replace(cfg); err != nil {
		t.Fatal(err)
	}
	if e.HasChanges() {
		t.Error("timestamp-only edits should not count as changes")
	}

	if err := e.UpdateMessage(cfg.InitialMessages[0].ID, "outro texto"); err != nil {
		t.Fatal(err)
	}
	if !e.HasChanges() {
		t.Error("text edit should count as a change")
	}
}

func TestEditor_SaveRevertReload(t *testing.T) {
	e, repo := newTestEditor(t)
	ctx := context.Background()

	f, _ := e.AddField("Email", "")
	ok, err := e.Save(ctx)
	if ok || !errors.Is(err, ErrValidation) {
		t.Fatalf("save with empty field value: ok=%v err=%v", ok, err)
	}
	if !e.HasChanges() {
		t.Error("failed save must keep the edits pending")
	}

	if err := e.UpdateField(f.ID, "Email", "ana@example.com"); err != nil {
		t.Fatal(err)
	}
	e.SetRequestEvaluation(true)
	ok, err = e.Save(ctx)
	if !ok || err != nil {
		t.Fatalf("save: ok=%v err=%v", ok, err)
	}
	if e.HasChanges() {
		t.Error("saved editor should have no changes")
	}

	e.SetUseAI(true)
	e.Revert()
	if e.State().UseAI {
		t.Error("revert should discard the unsaved toggle")
	}

	stored, err := repo.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !stored.RequestEvaluation || len(stored.PersonalizationFields) != 2 {
		t.Errorf("stored = %+v", stored)
	}

	other, err := NewConfigEditor(ctx, repo, logger.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := other.AddGuideline("Horário", "9h às 18h"); err != nil {
		t.Fatal(err)
	}
	if _, err := other.Save(ctx); err != nil {
		t.Fatal(err)
	}

	if err := e.Reload(ctx); err != nil {
		t.Fatal(err)
	}
	if len(e.State().Guidelines) != 1 {
		t.Error("reload should pick up the stored guideline")
	}
}
