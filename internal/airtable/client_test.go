package airtable

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"formbuilder-go/internal/models"
)

func newTestClient(baseURL string) *Client {
	return NewClient(Config{
		BaseURL:         baseURL,
		APIKey:          "key123",
		BaseID:          "appBase",
		TableName:       "Form Responses",
		MaxTries:        3,
		InitialInterval: time.Millisecond,
	})
}

func TestCreateRecord(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody createRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"rec123","fields":{}}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL + "/")
	id, err := client.CreateRecord(context.Background(), "demo-form-1", models.AnswerMap{"name": "Ada"})
	if err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}
	if id != "rec123" {
		t.Fatalf("expected rec123, got %q", id)
	}
	if gotPath != "/appBase/"+url.PathEscape("Form Responses") {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotAuth != "Bearer key123" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotBody.Fields["FormID"] != "demo-form-1" || gotBody.Fields["Responses"] != `{"name":"Ada"}` {
		t.Fatalf("unexpected fields %+v", gotBody.Fields)
	}
}

func TestCreateRecordRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"id":"recRetry"}`))
	}))
	defer srv.Close()

	id, err := newTestClient(srv.URL).CreateRecord(context.Background(), "f", nil)
	if err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}
	if id != "recRetry" || atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected success on third call, got id=%q calls=%d", id, calls)
	}
}

func TestCreateRecordGivesUpAfterMaxTries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).CreateRecord(context.Background(), "f", nil); err == nil {
		t.Fatal("expected error")
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestCreateRecordClientErrorIsPermanent(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error":{"type":"UNKNOWN_FIELD_NAME","message":"Unknown field name: \"FormID\""}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).CreateRecord(context.Background(), "f", nil)
	if err == nil || !strings.Contains(err.Error(), "UNKNOWN_FIELD_NAME") {
		t.Fatalf("expected API error, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("client errors should not be retried, got %d calls", got)
	}
}

func TestCreateRecordNotConfigured(t *testing.T) {
	client := NewClient(Config{APIKey: "key"})
	if client.Configured() {
		t.Fatal("client without base and table should not be configured")
	}
	if _, err := client.CreateRecord(context.Background(), "f", nil); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	var nilClient *Client
	if nilClient.Configured() {
		t.Fatal("nil client should not be configured")
	}
}

func TestCreateRecordCapsRetryAfter(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "3600")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"id":"recLimited"}`))
	}))
	defer srv.Close()

	client := NewClient(Config{
		BaseURL:         srv.URL,
		APIKey:          "key",
		BaseID:          "app",
		TableName:       "t",
		InitialInterval: time.Millisecond,
		MaxRetryAfter:   10 * time.Millisecond,
	})
	start := time.Now()
	id, err := client.CreateRecord(context.Background(), "f", nil)
	if err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}
	if id != "recLimited" {
		t.Fatalf("unexpected id %q", id)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("retry-after should be capped, waited %s", elapsed)
	}
}

func TestCreateRecordGivesUpWithinMaxElapsed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3600")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(Config{
		BaseURL:       srv.URL,
		APIKey:        "key",
		BaseID:        "app",
		TableName:     "t",
		MaxTries:      10,
		MaxRetryAfter: time.Hour,
		MaxElapsed:    50 * time.Millisecond,
	})
	start := time.Now()
	if _, err := client.CreateRecord(context.Background(), "f", nil); err == nil {
		t.Fatal("expected error")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("call should stop at the elapsed bound, took %s", elapsed)
	}
}
