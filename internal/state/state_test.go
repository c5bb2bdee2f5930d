package state

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestTakePendingConsumes(t *testing.T) {
	s := New(time.Minute)
	s.PutPending("abc", PendingAuth{Verifier: "v1", UserID: "demo-user-1"})

	auth, ok := s.TakePending("abc")
	if !ok || auth.Verifier != "v1" || auth.UserID != "demo-user-1" {
		t.Fatalf("unexpected pending auth %+v ok=%v", auth, ok)
	}
	if _, ok := s.TakePending("abc"); ok {
		t.Fatal("state should only be usable once")
	}
	if _, ok := s.TakePending("unknown"); ok {
		t.Fatal("unknown state should be missing")
	}
}

func TestPendingExpires(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := New(time.Minute)
	s.now = func() time.Time { return now }

	s.PutPending("old", PendingAuth{Verifier: "v"})
	now = now.Add(2 * time.Minute)

	if got := s.PendingCount(); got != 0 {
		t.Fatalf("expected expired flow to be ignored, got %d", got)
	}
	if _, ok := s.TakePending("old"); ok {
		t.Fatal("expired state should be rejected")
	}

	s.PutPending("a", PendingAuth{Verifier: "v"})
	s.PutPending("b", PendingAuth{Verifier: "v"})
	if got := s.PendingCount(); got != 2 {
		t.Fatalf("expected 2 pending, got %d", got)
	}
}

func TestConcurrentAccess(t *testing.T) {
	s := New(0)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("state-%d", i)
			s.PutPending(key, PendingAuth{Verifier: key})
			if auth, ok := s.TakePending(key); !ok || auth.Verifier != key {
				t.Errorf("lost pending auth for %s", key)
			}
		}(i)
	}
	wg.Wait()
	if got := s.PendingCount(); got != 0 {
		t.Fatalf("expected no pending flows, got %d", got)
	}
}
