package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestMessageJSON_AudioRoundTrip(t *testing.T) {
	d := 3.5
	msg := NewAudio(SenderUser, "/api/v1/media/abc", &d, nil, StatusSent).WithTranscript("oi")

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got Message
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got.ID != msg.ID || got.Sender != SenderUser || got.Kind() != KindAudio {
		t.Fatalf("identity not preserved: %+v", got)
	}
	tr, ok := got.Transcript()
	if !ok || tr != "oi" {
		t.Errorf("expected transcript oi, got %q (%v)", tr, ok)
	}
	if b := got.Body.(AudioBody); b.Duration == nil || *b.Duration != 3.5 {
		t.Errorf("expected duration 3.5, got %v", b.Duration)
	}
	if !got.CreatedAt.Equal(msg.CreatedAt) {
		t.Errorf("timestamp changed: %v != %v", got.CreatedAt, msg.CreatedAt)
	}
}

func TestMessageJSON_LegacyDefaults(t *testing.T) {
	var got Message
	if err := json.Unmarshal([]byte(`{"id":"7","type":"text","content":"olá","timestamp":"2024-05-01T10:00:00.000Z"}`), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got.Kind() != KindText || got.Content() != "olá" {
		t.Errorf("unexpected body: %+v", got.Body)
	}
	if got.Sender != SenderBot {
		t.Errorf("expected default sender bot, got %s", got.Sender)
	}
	if got.Status != StatusRead {
		t.Errorf("expected default status read, got %s", got.Status)
	}
	want := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	if !got.CreatedAt.Equal(want) {
		t.Errorf("expected %v, got %v", want, got.CreatedAt)
	}
}

func TestMessageJSON_InvalidTimestampFallsBackToNow(t *testing.T) {
	before := time.Now()
	var got Message
	if err := json.Unmarshal([]byte(`{"id":"1","content":"x","createdAt":"not-a-date"}`), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.CreatedAt.Before(before) {
		t.Errorf("expected load-time timestamp, got %v", got.CreatedAt)
	}
}

func TestEnsureMandatoryField(t *testing.T) {
	tests := []struct {
		name   string
		in     []PersonalizationField
		nomeAt int
		value  string
		total  int
	}{
		{"empty", nil, 0, "", 1},
		{"missing", []PersonalizationField{{ID: "c", SelectedField: "Cidade", Value: "Recife"}}, 0, "", 2},
		{"not first", []PersonalizationField{
			{ID: "c", SelectedField: "Cidade", Value: "Recife"},
			{ID: MandatoryFieldID, SelectedField: "Nome", Value: "Ana", IsMandatory: true},
		}, 0, "Ana", 2},
		{"non-mandatory duplicate", []PersonalizationField{
			{ID: "x", SelectedField: "Nome", Value: "Bia"},
			{ID: MandatoryFieldID, SelectedField: "Nome", Value: "Ana", IsMandatory: true},
		}, 0, "Ana", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EnsureMandatoryField(tt.in)
			if len(got) != tt.total {
				t.Fatalf("expected %d fields, got %d: %+v", tt.total, len(got), got)
			}
			count := 0
			for _, f := range got {
				if f.SelectedField == MandatoryFieldName {
					count++
				}
			}
			if count != 1 {
				t.Errorf("expected exactly one Nome field, got %d", count)
			}
			if !got[0].IsMandatory || got[0].SelectedField != MandatoryFieldName {
				t.Errorf("expected mandatory Nome first, got %+v", got[0])
			}
			if got[0].Value != tt.value {
				t.Errorf("expected value %q, got %q", tt.value, got[0].Value)
			}
		})
	}
}

func TestInvalidFields(t *testing.T) {
	fields := []PersonalizationField{
		MandatoryField(),
		{ID: "a", SelectedField: "Cidade", Value: ""},
		{ID: "b", SelectedField: "Idade", Value: "undefined"},
		{ID: "c", SelectedField: "Estado", Value: "PE"},
		{ID: "d", SelectedField: "", Value: ""},
	}

	got := InvalidFields(fields)
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Errorf("unexpected invalid fields: %+v", got)
	}
}

func TestObjectivesFor(t *testing.T) {
	if n := len(ObjectivesFor(ConversationReactive)); n != 3 {
		t.Errorf("expected 3 reactive objectives, got %d", n)
	}
	if n := len(ObjectivesFor(ConversationProactive)); n != 6 {
		t.Errorf("expected 6 proactive objectives, got %d", n)
	}
	if n := len(ObjectivesFor("")); n != 9 {
		t.Errorf("expected full catalog, got %d", n)
	}
}
