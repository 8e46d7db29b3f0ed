package subscribers

import (
	"context"
	"path/filepath"
	"testing"

	"blogbot/internal/chat"
	"blogbot/pkg/logx"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{Path: filepath.Join(t.TempDir(), "subs.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAddIsIdempotent(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	id := chat.Chat(42)

	if err := s.Add(ctx, id); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add(ctx, id); err != nil {
		t.Fatalf("second Add: %v", err)
	}
	if !s.Contains(ctx, id) {
		t.Fatal("Contains should be true after Add")
	}
	ids, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 1 || ids[0] != id {
		t.Fatalf("List = %v, want exactly [%v]", ids, id)
	}
}

func TestRemoveAbsentIsNoOp(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Remove(ctx, chat.Chat(7)); err != nil {
		t.Fatalf("Remove on empty store: %v", err)
	}
	ids, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("store should stay empty, got %v", ids)
	}
}

func TestAddRemoveContains(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	id := chat.Channel("somechannel")

	if s.Contains(ctx, id) {
		t.Fatal("Contains on empty store should be false")
	}
	if err := s.Add(ctx, id); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !s.Contains(ctx, id) {
		t.Fatal("Contains should be true after Add")
	}
	if err := s.Remove(ctx, id); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if s.Contains(ctx, id) {
		t.Fatal("Contains should be false after Remove")
	}
}

func TestListMixedVariants(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	want := map[chat.ID]bool{
		chat.Chat(1):            true,
		chat.Chat(-1001234):     true,
		chat.Channel("news"):    true,
		chat.Channel("updates"): true,
	}
	for id := range want {
		if err := s.Add(ctx, id); err != nil {
			t.Fatalf("Add(%v): %v", id, err)
		}
	}
	ids, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != len(want) {
		t.Fatalf("List returned %d entries, want %d", len(ids), len(want))
	}
	for _, id := range ids {
		if !want[id] {
			t.Fatalf("unexpected entry %v", id)
		}
	}
}

func TestContainsLenientOnStorageError(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	id := chat.Chat(42)

	if err := s.Add(ctx, id); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !s.Contains(ctx, id) {
		t.Fatal("Contains should be true before the failure")
	}

	// Closing the database makes every query fail; the membership check
	// must degrade to "not subscribed" instead of panicking or erroring.
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if s.Contains(ctx, id) {
		t.Fatal("Contains must read as absent when storage fails")
	}
}

func TestSurvivesReopen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "subs.db")
	ctx := context.Background()
	id := chat.Chat(99)

	s, err := Open(Config{Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Add(ctx, id); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(Config{Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	if !s2.Contains(ctx, id) {
		t.Fatal("subscriber should survive reopen")
	}
}
