package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/arotu/chat-server/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewWithSetup(":memory:", func(db *sql.DB) error {
		return ApplySchema(db)
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return s
}

func createUser(t *testing.T, s *SQLiteStore, username string) *store.User {
	t.Helper()

	user, err := s.CreateUser(context.Background(), username, "hash", "")
	if err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	return user
}

func savePrivate(t *testing.T, s *SQLiteStore, sender, receiver, text string, at time.Time) *store.Message {
	t.Helper()

	msg := &store.Message{
		ID:         newID(),
		Kind:       store.MessageKindPrivate,
		SenderID:   sender,
		ReceiverID: &receiver,
		Text:       text,
		CreatedAt:  at,
		UpdatedAt:  at,
	}
	if err := s.SaveMessage(context.Background(), msg); err != nil {
		t.Fatalf("failed to save message %q: %v", text, err)
	}
	return msg
}

func TestUserLookup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := createUser(t, s, "alice")
	bob := createUser(t, s, "bob")

	got, err := s.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername failed: %v", err)
	}
	if got.ID != alice.ID {
		t.Errorf("GetUserByUsername returned id %q, want %q", got.ID, alice.ID)
	}

	if _, err := s.GetUserByID(ctx, "missing-id"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetUserByID on missing user = %v, want ErrNotFound", err)
	}

	users, err := s.GetUsersByIDs(ctx, []string{alice.ID, bob.ID, "missing-id"})
	if err != nil {
		t.Fatalf("GetUsersByIDs failed: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("GetUsersByIDs returned %d users, want 2", len(users))
	}
	if _, ok := users["missing-id"]; ok {
		t.Error("GetUsersByIDs returned an entry for a missing id")
	}
}

func TestSetLastSeen(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := createUser(t, s, "alice")

	at := time.Now().UTC().Truncate(time.Second)
	if err := s.SetLastSeen(ctx, alice.ID, &at); err != nil {
		t.Fatalf("SetLastSeen failed: %v", err)
	}

	got, err := s.GetUserByID(ctx, alice.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if got.LastSeen == nil || !got.LastSeen.Equal(at) {
		t.Errorf("LastSeen = %v, want %v", got.LastSeen, at)
	}

	// nil marks the user as currently online
	if err := s.SetLastSeen(ctx, alice.ID, nil); err != nil {
		t.Fatalf("SetLastSeen(nil) failed: %v", err)
	}
	got, err = s.GetUserByID(ctx, alice.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if got.LastSeen != nil {
		t.Errorf("LastSeen = %v after clearing, want nil", got.LastSeen)
	}

	if err := s.SetLastSeen(ctx, "missing-id", &at); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("SetLastSeen on missing user = %v, want ErrNotFound", err)
	}
}

func TestCreateRoomAddsCreator(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := createUser(t, s, "alice")

	room, err := s.CreateRoom(ctx, &store.Room{Name: "general", CreatorID: alice.ID})
	if err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}
	if room.Kind != store.RoomKindMain {
		t.Errorf("room kind = %q, want %q", room.Kind, store.RoomKindMain)
	}

	member, err := s.IsMember(ctx, alice.ID, room.ID)
	if err != nil {
		t.Fatalf("IsMember failed: %v", err)
	}
	if !member {
		t.Error("expected creator to be a member of the new room")
	}

	admin, err := s.IsAdmin(ctx, alice.ID, room.ID)
	if err != nil {
		t.Fatalf("IsAdmin failed: %v", err)
	}
	if !admin {
		t.Error("expected creator to be an admin of the new room")
	}
}

func TestRoomMembership(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := createUser(t, s, "alice")
	bob := createUser(t, s, "bob")

	room, err := s.CreateRoom(ctx, &store.Room{Name: "general", CreatorID: alice.ID})
	if err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}

	// AddMember is idempotent
	if err := s.AddMember(ctx, bob.ID, room.ID); err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}
	if err := s.AddMember(ctx, bob.ID, room.ID); err != nil {
		t.Fatalf("repeated AddMember failed: %v", err)
	}

	members, err := s.ListMembers(ctx, room.ID)
	if err != nil {
		t.Fatalf("ListMembers failed: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("got %d members, want 2", len(members))
	}

	// promoting an existing member must not clear membership
	if err := s.AddAdmin(ctx, bob.ID, room.ID); err != nil {
		t.Fatalf("AddAdmin failed: %v", err)
	}
	admin, err := s.IsAdmin(ctx, bob.ID, room.ID)
	if err != nil {
		t.Fatalf("IsAdmin failed: %v", err)
	}
	if !admin {
		t.Error("expected bob to be admin after AddAdmin")
	}

	if err := s.RemoveAdmin(ctx, bob.ID, room.ID); err != nil {
		t.Fatalf("RemoveAdmin failed: %v", err)
	}
	admin, err = s.IsAdmin(ctx, bob.ID, room.ID)
	if err != nil {
		t.Fatalf("IsAdmin failed: %v", err)
	}
	if admin {
		t.Error("expected bob not to be admin after RemoveAdmin")
	}
	member, err := s.IsMember(ctx, bob.ID, room.ID)
	if err != nil {
		t.Fatalf("IsMember failed: %v", err)
	}
	if !member {
		t.Error("expected bob to stay a member after losing admin")
	}

	if err := s.RemoveMember(ctx, bob.ID, room.ID); err != nil {
		t.Fatalf("RemoveMember failed: %v", err)
	}
	member, err = s.IsMember(ctx, bob.ID, room.ID)
	if err != nil {
		t.Fatalf("IsMember failed: %v", err)
	}
	if member {
		t.Error("expected bob not to be a member after RemoveMember")
	}
}

func TestListRoomsVisibility(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := createUser(t, s, "alice")
	bob := createUser(t, s, "bob")

	public, err := s.CreateRoom(ctx, &store.Room{Name: "public-room", CreatorID: alice.ID})
	if err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}
	private, err := s.CreateRoom(ctx, &store.Room{Name: "private-room", IsPrivate: true, CreatorID: alice.ID})
	if err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}

	aliceRooms, err := s.ListRooms(ctx, alice.ID)
	if err != nil {
		t.Fatalf("ListRooms failed: %v", err)
	}
	if len(aliceRooms) != 2 {
		t.Errorf("alice sees %d rooms, want 2", len(aliceRooms))
	}

	bobRooms, err := s.ListRooms(ctx, bob.ID)
	if err != nil {
		t.Fatalf("ListRooms failed: %v", err)
	}
	if len(bobRooms) != 1 {
		t.Fatalf("bob sees %d rooms, want 1", len(bobRooms))
	}
	if bobRooms[0].ID != public.ID {
		t.Errorf("bob sees room %q, want the public room %q", bobRooms[0].ID, public.ID)
	}
	_ = private
}

func TestListPrivateMessagesBothDirections(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := createUser(t, s, "alice")
	bob := createUser(t, s, "bob")
	charlie := createUser(t, s, "charlie")

	base := time.Now().UTC().Add(-time.Hour)
	savePrivate(t, s, alice.ID, bob.ID, "hi bob", base)
	savePrivate(t, s, bob.ID, alice.ID, "hi alice", base.Add(time.Minute))
	savePrivate(t, s, alice.ID, charlie.ID, "hi charlie", base.Add(2*time.Minute))

	forward, err := s.ListPrivateMessages(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("ListPrivateMessages failed: %v", err)
	}
	if len(forward) != 2 {
		t.Fatalf("got %d messages, want 2", len(forward))
	}
	if forward[0].Text != "hi bob" || forward[1].Text != "hi alice" {
		t.Errorf("messages out of order: %q, %q", forward[0].Text, forward[1].Text)
	}

	// swapping the arguments yields the same conversation
	reverse, err := s.ListPrivateMessages(ctx, bob.ID, alice.ID)
	if err != nil {
		t.Fatalf("ListPrivateMessages failed: %v", err)
	}
	if len(reverse) != len(forward) {
		t.Fatalf("reverse query returned %d messages, want %d", len(reverse), len(forward))
	}
	for i := range forward {
		if forward[i].ID != reverse[i].ID {
			t.Errorf("message %d: forward id %q != reverse id %q", i, forward[i].ID, reverse[i].ID)
		}
	}
}

func TestListConversationMessagesDescending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := createUser(t, s, "alice")
	bob := createUser(t, s, "bob")
	charlie := createUser(t, s, "charlie")

	base := time.Now().UTC().Add(-time.Hour)
	savePrivate(t, s, alice.ID, bob.ID, "first", base)
	savePrivate(t, s, charlie.ID, alice.ID, "second", base.Add(time.Minute))
	savePrivate(t, s, bob.ID, charlie.ID, "not alice's", base.Add(2*time.Minute))

	msgs, err := s.ListConversationMessages(ctx, alice.ID)
	if err != nil {
		t.Fatalf("ListConversationMessages failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Text != "second" || msgs[1].Text != "first" {
		t.Errorf("expected descending order, got %q then %q", msgs[0].Text, msgs[1].Text)
	}
}

func TestMarkSeen(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := createUser(t, s, "alice")
	bob := createUser(t, s, "bob")

	base := time.Now().UTC().Add(-time.Hour)
	savePrivate(t, s, bob.ID, alice.ID, "one", base)
	savePrivate(t, s, bob.ID, alice.ID, "two", base.Add(time.Minute))
	savePrivate(t, s, alice.ID, bob.ID, "reply", base.Add(2*time.Minute))

	// alice marks bob's messages as seen
	updated, err := s.MarkSeen(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("MarkSeen failed: %v", err)
	}
	if updated != 2 {
		t.Errorf("MarkSeen updated %d rows, want 2", updated)
	}

	// second call finds nothing left unseen
	updated, err = s.MarkSeen(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("MarkSeen failed: %v", err)
	}
	if updated != 0 {
		t.Errorf("repeated MarkSeen updated %d rows, want 0", updated)
	}

	msgs, err := s.ListPrivateMessages(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("ListPrivateMessages failed: %v", err)
	}
	for _, msg := range msgs {
		wantSeen := msg.SenderID == bob.ID
		if msg.Seen != wantSeen {
			t.Errorf("message %q seen = %v, want %v", msg.Text, msg.Seen, wantSeen)
		}
	}
}

func TestRoomMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := createUser(t, s, "alice")
	room, err := s.CreateRoom(ctx, &store.Room{Name: "general", CreatorID: alice.ID})
	if err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}

	base := time.Now().UTC().Add(-time.Hour)
	for i, text := range []string{"one", "two", "three"} {
		at := base.Add(time.Duration(i) * time.Minute)
		msg := &store.Message{
			ID:        newID(),
			Kind:      store.MessageKindRoom,
			SenderID:  alice.ID,
			RoomID:    &room.ID,
			Text:      text,
			CreatedAt: at,
			UpdatedAt: at,
		}
		if err := s.SaveMessage(ctx, msg); err != nil {
			t.Fatalf("SaveMessage failed: %v", err)
		}
	}

	msgs, err := s.ListRoomMessages(ctx, room.ID)
	if err != nil {
		t.Fatalf("ListRoomMessages failed: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	for i, want := range []string{"one", "two", "three"} {
		if msgs[i].Text != want {
			t.Errorf("message %d = %q, want %q", i, msgs[i].Text, want)
		}
	}

	count, err := s.CountMessages(ctx)
	if err != nil {
		t.Fatalf("CountMessages failed: %v", err)
	}
	if count != 3 {
		t.Errorf("CountMessages = %d, want 3", count)
	}
}
