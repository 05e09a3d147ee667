package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sketchdash/sketchdash/internal/domain"
)

func newTestStore() domain.RoomRepository {
	return NewRoomRepository(100, time.Hour)
}

func TestCreateIfAbsent(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	room := domain.NewCanvasRoom("ABCD2345")
	if err := store.CreateIfAbsent(ctx, room); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	err := store.CreateIfAbsent(ctx, domain.NewCanvasRoom("ABCD2345"))
	if !errors.Is(err, domain.ErrRoomAlreadyExists) {
		t.Fatalf("duplicate create = %v, want ErrRoomAlreadyExists", err)
	}
}

func TestFindByID(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	if _, err := store.FindByID(ctx, "ABCD2345"); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("lookup of missing room = %v, want ErrRoomNotFound", err)
	}

	_ = store.CreateIfAbsent(ctx, domain.NewCanvasRoom("ABCD2345"))
	room, err := store.FindByID(ctx, "ABCD2345")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if room.ID != "ABCD2345" || !room.IsActive {
		t.Errorf("unexpected record: %+v", room)
	}
}

// The durable member set must track joins and leaves exactly, and the
// record survives until the set empties.
func TestMemberSetTracksJoinsAndLeaves(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()
	_ = store.CreateIfAbsent(ctx, domain.NewCanvasRoom("ABCD2345"))

	room, err := store.AddMember(ctx, "ABCD2345", "conn-a")
	if err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}
	room, err = store.AddMember(ctx, "ABCD2345", "conn-b")
	if err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}
	if len(room.Users) != 2 {
		t.Fatalf("member set = %v, want 2 entries", room.Users)
	}

	// Idempotent add.
	room, _ = store.AddMember(ctx, "ABCD2345", "conn-a")
	if len(room.Users) != 2 {
		t.Errorf("duplicate add grew the set: %v", room.Users)
	}

	room, err = store.RemoveMember(ctx, "ABCD2345", "conn-a")
	if err != nil {
		t.Fatalf("RemoveMember failed: %v", err)
	}
	if len(room.Users) != 1 || room.Users[0] != "conn-b" {
		t.Errorf("member set = %v, want [conn-b]", room.Users)
	}

	// Idempotent remove.
	room, _ = store.RemoveMember(ctx, "ABCD2345", "conn-a")
	if len(room.Users) != 1 {
		t.Errorf("duplicate remove changed the set: %v", room.Users)
	}
}

func TestDeleteByID(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()
	_ = store.CreateIfAbsent(ctx, domain.NewCanvasRoom("ABCD2345"))

	if err := store.DeleteByID(ctx, "ABCD2345"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := store.FindByID(ctx, "ABCD2345"); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("deleted room still found: %v", err)
	}

	// Deleting a missing room is not an error.
	if err := store.DeleteByID(ctx, "ABCD2345"); err != nil {
		t.Errorf("duplicate delete = %v, want nil", err)
	}
}

func TestMutationsOnMissingRoom(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	if _, err := store.AddMember(ctx, "MISSING2", "conn-a"); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Errorf("AddMember on missing room = %v, want ErrRoomNotFound", err)
	}
	if _, err := store.RemoveMember(ctx, "MISSING2", "conn-a"); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Errorf("RemoveMember on missing room = %v, want ErrRoomNotFound", err)
	}
}

func TestSnapshotsAreIsolated(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()
	_ = store.CreateIfAbsent(ctx, domain.NewCanvasRoom("ABCD2345"))
	_, _ = store.AddMember(ctx, "ABCD2345", "conn-a")

	room, _ := store.FindByID(ctx, "ABCD2345")
	room.Users[0] = "tampered"

	fresh, _ := store.FindByID(ctx, "ABCD2345")
	if fresh.Users[0] != "conn-a" {
		t.Error("mutating a returned record leaked into the store")
	}
}
