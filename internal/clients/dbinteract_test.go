package clients

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestUnavailableClassification(t *testing.T) {
	// Nothing listens on this address.
	client := NewDBInteract("http://127.0.0.1:1", time.Second, zap.NewNop())
	if _, err := client.ListChildren(context.Background(), "token"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestTokenPassthrough(t *testing.T) {
	var gotAuth, gotPath, gotMethod string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotMethod = r.Method
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"child_id":"child-1"}`))
	}))
	defer backend.Close()

	client := NewDBInteract(backend.URL, time.Second, zap.NewNop())
	resp, err := client.CreateChild(context.Background(), "caller-token", ChildPayload{Name: "A", Birthday: "2023-01-10"})
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	if gotAuth != "Bearer caller-token" {
		t.Fatalf("expected token passthrough, got %q", gotAuth)
	}
	if gotMethod != http.MethodPost || gotPath != "/internal/children" {
		t.Fatalf("unexpected forward: %s %s", gotMethod, gotPath)
	}
	if resp.Status != http.StatusCreated || !resp.OK() {
		t.Fatalf("unexpected status %d", resp.Status)
	}
}

func TestMessageExtraction(t *testing.T) {
	jsonResp := &Response{Status: 403, Body: []byte(`{"message":"Forbidden: not your child"}`)}
	if msg := jsonResp.Message(); msg != "Forbidden: not your child" {
		t.Fatalf("expected message field, got %q", msg)
	}
	textResp := &Response{Status: 500, Body: []byte("boom\n")}
	if msg := textResp.Message(); msg != "boom" {
		t.Fatalf("expected raw text fallback, got %q", msg)
	}
}

func TestUpdateForwardsRawFields(t *testing.T) {
	var gotBody map[string]interface{}
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"message":"updated"}`))
	}))
	defer backend.Close()

	client := NewDBInteract(backend.URL, time.Second, zap.NewNop())
	fields := json.RawMessage(`{"notes":"new note","group":"Apples"}`)
	resp, err := client.UpdateChild(context.Background(), "token", "child-1", fields)
	if err != nil {
		t.Fatalf("update error: %v", err)
	}
	if resp.Status != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Status)
	}
	if gotBody["notes"] != "new note" || gotBody["group"] != "Apples" {
		t.Fatalf("fields not forwarded verbatim: %v", gotBody)
	}
}
