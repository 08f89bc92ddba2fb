package store

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
)

// runStoreContract exercises the behaviour every MessageStore must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) MessageStore) {
	ctx := context.Background()

	t.Run("unknown room is empty", func(t *testing.T) {
		s := newStore(t)
		msgs, err := s.Recent(ctx, "nowhere", 50)
		if err != nil {
			t.Fatalf("Recent() error = %v", err)
		}
		if msgs == nil || len(msgs) != 0 {
			t.Fatalf("Recent() = %#v, want empty non-nil slice", msgs)
		}
	})

	t.Run("round trip", func(t *testing.T) {
		s := newStore(t)
		before := time.Now().UTC().Add(-time.Second)

		appended, err := s.Append(ctx, "general", "alice", "  hi there ")
		if err != nil {
			t.Fatalf("Append() error = %v", err)
		}
		if appended.ID == 0 {
			t.Error("Append() did not assign an id")
		}
		if appended.CreatedAt.Before(before) {
			t.Errorf("CreatedAt %v is before the call started", appended.CreatedAt)
		}
		if appended.CreatedAt.Location() != time.UTC {
			t.Errorf("CreatedAt location = %v, want UTC", appended.CreatedAt.Location())
		}

		msgs, err := s.Recent(ctx, "general", 50)
		if err != nil {
			t.Fatalf("Recent() error = %v", err)
		}
		if len(msgs) != 1 {
			t.Fatalf("Recent() returned %d messages, want 1", len(msgs))
		}
		got := msgs[0]
		if got.Author != "alice" || got.Content != "  hi there " || got.Room != "general" || got.ID != appended.ID {
			t.Errorf("Recent()[0] = %+v, want %+v", got, appended)
		}
	})

	t.Run("last fifty oldest first", func(t *testing.T) {
		s := newStore(t)
		for i := 1; i <= 60; i++ {
			if _, err := s.Append(ctx, "general", "bob", fmt.Sprintf("msg-%02d", i)); err != nil {
				t.Fatalf("Append(%d) error = %v", i, err)
			}
		}
		if _, err := s.Append(ctx, "random", "bob", "elsewhere"); err != nil {
			t.Fatalf("Append() error = %v", err)
		}

		msgs, err := s.Recent(ctx, "general", 0)
		if err != nil {
			t.Fatalf("Recent() error = %v", err)
		}
		if len(msgs) != 50 {
			t.Fatalf("Recent() returned %d messages, want 50", len(msgs))
		}
		for i, m := range msgs {
			want := fmt.Sprintf("msg-%02d", i+11)
			if m.Content != want {
				t.Fatalf("msgs[%d] = %q, want %q", i, m.Content, want)
			}
			if i > 0 && m.ID <= msgs[i-1].ID {
				t.Fatalf("ids not increasing at %d: %d after %d", i, m.ID, msgs[i-1].ID)
			}
			if strings.Contains(m.Content, "elsewhere") {
				t.Fatal("history leaked across rooms")
			}
		}
	})

	t.Run("explicit limit", func(t *testing.T) {
		s := newStore(t)
		for i := 1; i <= 5; i++ {
			if _, err := s.Append(ctx, "general", "bob", fmt.Sprintf("m%d", i)); err != nil {
				t.Fatalf("Append() error = %v", err)
			}
		}
		msgs, err := s.Recent(ctx, "general", 2)
		if err != nil {
			t.Fatalf("Recent() error = %v", err)
		}
		if len(msgs) != 2 || msgs[0].Content != "m4" || msgs[1].Content != "m5" {
			t.Fatalf("Recent(2) = %+v, want m4, m5", msgs)
		}
	})
}
