package domain

import (
	"testing"
	"time"
)

func TestSweeperIsOnline(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s, err := NewSweeper("sweeper-1", now)
	if err != nil {
		t.Fatal(err)
	}
	if !s.IsOnline(now.Add(time.Minute), 2*time.Minute) {
		t.Fatal("expected online within timeout")
	}
	if s.IsOnline(now.Add(3*time.Minute), 2*time.Minute) {
		t.Fatal("expected stale sweeper to be offline")
	}
	s.SetOffline()
	if s.IsOnline(now, time.Hour) {
		t.Fatal("expected offline after SetOffline")
	}
	if _, err := NewSweeper("", now); err == nil {
		t.Fatal("expected error for empty name")
	}
}
