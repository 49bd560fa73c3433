package provenance

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// TestHTTPRecorder_RecordMutation проверяет форму отправляемой PROV-записи.
func TestHTTPRecorder_RecordMutation(t *testing.T) {
	var got Record
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/provenance" {
			t.Errorf("path = %q, ожидался /api/v1/provenance", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("ошибка декодирования тела: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	rec := NewHTTPRecorder(srv.URL, 5*time.Second, "mediastore", slog.Default())
	ev := Event{PID: "p1", Action: ActionCreate, Timestamp: time.Now()}

	if err := rec.RecordMutation(context.Background(), ev); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	if got.RunID == "" {
		t.Error("run_id не должен быть пустым")
	}
	if len(got.Nodes) != 3 {
		t.Fatalf("узлов %d, ожидалось 3", len(got.Nodes))
	}
	if got.Nodes[0].Label != "p1" || got.Nodes[0].NodeType != NodeEntity {
		t.Errorf("первый узел = %+v, ожидался Entity p1", got.Nodes[0])
	}
	if len(got.Relations) != 2 {
		t.Fatalf("связей %d, ожидалось 2", len(got.Relations))
	}
	if got.Relations[0].Verb != VerbWasGeneratedBy {
		t.Errorf("verb = %q, ожидался wasGeneratedBy для create", got.Relations[0].Verb)
	}
}

// TestHTTPRecorder_EntityVerbs — выбор PROV-глагола по виду мутации.
func TestHTTPRecorder_EntityVerbs(t *testing.T) {
	r := &HTTPRecorder{}
	cases := []struct {
		action Action
		want   Verb
	}{
		{ActionCreate, VerbWasGeneratedBy},
		{ActionUpload, VerbWasGeneratedBy},
		{ActionUpdate, VerbWasRevisionOf},
		{ActionDelete, VerbWasInvalidatedBy},
	}
	for _, c := range cases {
		if got := r.entityVerb(c.action); got != c.want {
			t.Errorf("entityVerb(%s) = %q, ожидался %q", c.action, got, c.want)
		}
	}
}

// TestHTTPRecorder_ServerError — not-2xx ответ коллаборатора является ошибкой доставки.
func TestHTTPRecorder_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	rec := NewHTTPRecorder(srv.URL, time.Second, "mediastore", slog.Default())
	ev := Event{PID: "p1", Action: ActionUpdate, Timestamp: time.Now()}

	if err := rec.RecordMutation(context.Background(), ev); err == nil {
		t.Error("ожидалась ошибка доставки")
	}
}

// TestNopRecorder — заглушка не возвращает ошибок.
func TestNopRecorder(t *testing.T) {
	var r NopRecorder
	if err := r.RecordMutation(context.Background(), Event{PID: "p1"}); err != nil {
		t.Errorf("неожиданная ошибка: %v", err)
	}
}
