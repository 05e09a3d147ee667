package session_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sketchdash/sketchdash/internal/domain"
	"github.com/sketchdash/sketchdash/internal/infrastructure/events"
	"github.com/sketchdash/sketchdash/internal/infrastructure/logging"
	"github.com/sketchdash/sketchdash/internal/infrastructure/prompts"
	"github.com/sketchdash/sketchdash/internal/infrastructure/repository"
	"github.com/sketchdash/sketchdash/internal/infrastructure/ws"
	"github.com/sketchdash/sketchdash/internal/session"
)

type nopLogger struct{}

func (nopLogger) Init()                                                                         {}
func (nopLogger) Debug(logging.Category, logging.SubCategory, string, map[logging.ExtraKey]any) {}
func (nopLogger) Debugf(string, ...any)                                                         {}
func (nopLogger) Info(logging.Category, logging.SubCategory, string, map[logging.ExtraKey]any)  {}
func (nopLogger) Infof(string, ...any)                                                          {}
func (nopLogger) Warn(logging.Category, logging.SubCategory, string, map[logging.ExtraKey]any)  {}
func (nopLogger) Warnf(string, ...any)                                                          {}
func (nopLogger) Error(logging.Category, logging.SubCategory, string, map[logging.ExtraKey]any) {}
func (nopLogger) Errorf(string, ...any)                                                         {}
func (nopLogger) Fatal(logging.Category, logging.SubCategory, string, map[logging.ExtraKey]any) {}
func (nopLogger) Fatalf(string, ...any)                                                         {}

func newTestCore(t *testing.T) (*session.Core, domain.RoomRepository) {
	t.Helper()
	return newTestCoreWith(t, prompts.NewStaticSource(1))
}

func newTestCoreWith(t *testing.T, source domain.PromptSource) (*session.Core, domain.RoomRepository) {
	t.Helper()

	store := repository.NewRoomRepository(100, time.Hour)
	core := session.NewCore(
		session.Options{},
		store,
		source,
		events.NoopPublisher{},
		nil,
		nopLogger{},
	)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go core.Run(ctx)

	return core, store
}

func connect(core *session.Core, id string) *ws.Client {
	client := ws.NewClient(nil, id)
	core.Register() <- client
	return client
}

func mkReq(t *testing.T, eventType, roomID string, payload any) *ws.Request {
	t.Helper()
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		raw = b
	}
	return &ws.Request{Type: eventType, RoomID: roomID, Data: raw}
}

// recv waits for the next message of the wanted type, skipping others.
func recv(t *testing.T, client *ws.Client, wantType string) *ws.WSMessage {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg, ok := <-client.Message:
			if !ok {
				t.Fatalf("connection closed while waiting for %s", wantType)
			}
			if msg.Type == wantType {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", wantType)
		}
	}
}

// expectNone asserts no message of the given type arrives within a short
// window.
func expectNone(t *testing.T, client *ws.Client, badType string) {
	t.Helper()
	timeout := time.After(150 * time.Millisecond)
	for {
		select {
		case msg, ok := <-client.Message:
			if !ok {
				return
			}
			if msg.Type == badType {
				t.Fatalf("received unexpected %s: %+v", badType, msg.Data)
			}
		case <-timeout:
			return
		}
	}
}

func createCanvasRoom(t *testing.T, store domain.RoomRepository, id string) {
	t.Helper()
	if err := store.CreateIfAbsent(context.Background(), domain.NewCanvasRoom(id)); err != nil {
		t.Fatalf("create canvas room: %v", err)
	}
}

func joinCanvas(t *testing.T, core *session.Core, client *ws.Client, roomID, username string) {
	t.Helper()
	core.Dispatch(client, mkReq(t, ws.RoomJoin, roomID, ws.JoinPayload{Username: username}))
	recv(t, client, ws.MemberList)
}

func TestCanvasJoinLeaveLifecycle(t *testing.T) {
	core, store := newTestCore(t)
	createCanvasRoom(t, store, "CANVAS23")

	ann := connect(core, "conn-ann")
	core.Dispatch(ann, mkReq(t, ws.RoomJoin, "CANVAS23", ws.JoinPayload{Username: "Ann"}))

	list := recv(t, ann, ws.MemberList).Data.(ws.MemberListPayload)
	if len(list.Members) != 0 {
		t.Errorf("first joiner got member list %v, want empty", list.Members)
	}

	bob := connect(core, "conn-bob")
	core.Dispatch(bob, mkReq(t, ws.RoomJoin, "CANVAS23", ws.JoinPayload{Username: "Bob"}))

	list = recv(t, bob, ws.MemberList).Data.(ws.MemberListPayload)
	if len(list.Members) != 1 || list.Members[0].ConnectionID != "conn-ann" {
		t.Errorf("second joiner got member list %v, want [conn-ann]", list.Members)
	}

	joined := recv(t, ann, ws.MemberJoined).Data.(ws.MemberPayload)
	if joined.ConnectionID != "conn-bob" || joined.Username != "Bob" {
		t.Errorf("member.joined carried %+v", joined)
	}
	update := recv(t, ann, ws.RoomUpdate).Data.(ws.RoomUpdatePayload)
	if update.MemberCount != 2 {
		t.Errorf("memberCount = %d, want 2", update.MemberCount)
	}

	record, err := store.FindByID(context.Background(), "CANVAS23")
	if err != nil {
		t.Fatalf("record lookup: %v", err)
	}
	if len(record.Users) != 2 {
		t.Fatalf("durable member set = %v, want both connections", record.Users)
	}

	// Explicit leave removes from the durable set and notifies the rest.
	core.Dispatch(bob, mkReq(t, ws.RoomLeave, "CANVAS23", nil))
	left := recv(t, ann, ws.MemberLeft).Data.(ws.MemberPayload)
	if left.ConnectionID != "conn-bob" {
		t.Errorf("member.left carried %+v", left)
	}

	record, _ = store.FindByID(context.Background(), "CANVAS23")
	if len(record.Users) != 1 || record.Users[0] != "conn-ann" {
		t.Errorf("durable member set = %v, want [conn-ann]", record.Users)
	}

	// Last disconnect deletes the record.
	core.Drop(ann)
	if _, err := store.FindByID(context.Background(), "CANVAS23"); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Errorf("record still present after last leave: %v", err)
	}
}

func TestCanvasJoinRejectsUnknownRoom(t *testing.T) {
	core, _ := newTestCore(t)
	ann := connect(core, "conn-ann")

	core.Dispatch(ann, mkReq(t, ws.RoomJoin, "NXSUCHRM", ws.JoinPayload{Username: "Ann"}))

	errMsg := recv(t, ann, ws.ErrorEvent).Data.(ws.ErrorPayload)
	if errMsg.Code != ws.CodeNotFound {
		t.Errorf("error code = %q, want %q", errMsg.Code, ws.CodeNotFound)
	}
}

func TestCanvasJoinRejectsInvalidUsername(t *testing.T) {
	core, store := newTestCore(t)
	createCanvasRoom(t, store, "CANVAS23")
	ann := connect(core, "conn-ann")

	core.Dispatch(ann, mkReq(t, ws.RoomJoin, "CANVAS23", ws.JoinPayload{Username: "x"}))

	errMsg := recv(t, ann, ws.ErrorEvent).Data.(ws.ErrorPayload)
	if errMsg.Code != ws.CodeValidation {
		t.Errorf("error code = %q, want %q", errMsg.Code, ws.CodeValidation)
	}

	record, _ := store.FindByID(context.Background(), "CANVAS23")
	if len(record.Users) != 0 {
		t.Errorf("rejected join mutated the durable set: %v", record.Users)
	}
}

func TestDrawRelay(t *testing.T) {
	core, store := newTestCore(t)
	createCanvasRoom(t, store, "CANVAS23")

	ann := connect(core, "conn-ann")
	bob := connect(core, "conn-bob")
	joinCanvas(t, core, ann, "CANVAS23", "Ann")
	joinCanvas(t, core, bob, "CANVAS23", "Bob")

	stroke := json.RawMessage(`{"points":[[0,0],[4,5]],"color":"#222"}`)
	core.Dispatch(ann, &ws.Request{Type: ws.DrawStroke, RoomID: "CANVAS23", Data: stroke})

	msg := recv(t, bob, ws.DrawStroke)
	relayed := msg.Data.(ws.RelayedPayload)
	if relayed.From != "conn-ann" {
		t.Errorf("relayed payload tagged %q, want conn-ann", relayed.From)
	}
	if string(relayed.Payload) != string(stroke) {
		t.Errorf("payload altered in flight: %s", relayed.Payload)
	}

	// The sender never sees its own event.
	expectNone(t, ann, ws.DrawStroke)

	// Drawing without a room binding is rejected.
	loner := connect(core, "conn-loner")
	core.Dispatch(loner, &ws.Request{Type: ws.DrawClear, RoomID: "CANVAS23", Data: nil})
	errMsg := recv(t, loner, ws.ErrorEvent).Data.(ws.ErrorPayload)
	if errMsg.Code != ws.CodePermission {
		t.Errorf("error code = %q, want %q", errMsg.Code, ws.CodePermission)
	}
	expectNone(t, bob, ws.DrawClear)
}

func TestVoiceEnableIsIdempotent(t *testing.T) {
	core, store := newTestCore(t)
	createCanvasRoom(t, store, "CANVAS23")

	ann := connect(core, "conn-ann")
	bob := connect(core, "conn-bob")
	joinCanvas(t, core, ann, "CANVAS23", "Ann")
	joinCanvas(t, core, bob, "CANVAS23", "Bob")

	core.Dispatch(ann, mkReq(t, ws.VoiceJoin, "CANVAS23", nil))
	peers := recv(t, ann, ws.VoicePeers).Data.(ws.PeerListPayload)
	if len(peers.Peers) != 0 {
		t.Errorf("first voice peer got peers %v, want none", peers.Peers)
	}
	recv(t, bob, ws.VoicePeerJoined)

	core.Dispatch(bob, mkReq(t, ws.VoiceJoin, "CANVAS23", nil))
	peers = recv(t, bob, ws.VoicePeers).Data.(ws.PeerListPayload)
	if len(peers.Peers) != 1 || peers.Peers[0].ConnectionID != "conn-ann" {
		t.Errorf("peers = %v, want [conn-ann]", peers.Peers)
	}
	recv(t, ann, ws.VoicePeerJoined)

	// Re-enabling returns the peer list again but broadcasts nothing new.
	core.Dispatch(ann, mkReq(t, ws.VoiceJoin, "CANVAS23", nil))
	peers = recv(t, ann, ws.VoicePeers).Data.(ws.PeerListPayload)
	if len(peers.Peers) != 1 || peers.Peers[0].ConnectionID != "conn-bob" {
		t.Errorf("peers after re-enable = %v, want [conn-bob]", peers.Peers)
	}
	expectNone(t, bob, ws.VoicePeerJoined)
}

func TestVoiceRequiresMembership(t *testing.T) {
	core, store := newTestCore(t)
	createCanvasRoom(t, store, "CANVAS23")
	loner := connect(core, "conn-loner")

	core.Dispatch(loner, mkReq(t, ws.VoiceJoin, "CANVAS23", nil))
	errMsg := recv(t, loner, ws.ErrorEvent).Data.(ws.ErrorPayload)
	if errMsg.Code != ws.CodePermission {
		t.Errorf("error code = %q, want %q", errMsg.Code, ws.CodePermission)
	}
}

func TestSignalRelayStaysInsideRoom(t *testing.T) {
	core, store := newTestCore(t)
	createCanvasRoom(t, store, "CANVAS23")
	createCanvasRoom(t, store, "CANVAS45")

	ann := connect(core, "conn-ann")
	bob := connect(core, "conn-bob")
	eve := connect(core, "conn-eve")
	joinCanvas(t, core, ann, "CANVAS23", "Ann")
	joinCanvas(t, core, bob, "CANVAS23", "Bob")
	joinCanvas(t, core, eve, "CANVAS45", "Eve")

	offer := json.RawMessage(`{"sdp":"v=0..."}`)

	core.Dispatch(ann, mkReq(t, ws.VoiceOffer, "CANVAS23", ws.SignalPayload{Target: "conn-bob", Payload: offer}))
	msg := recv(t, bob, ws.VoiceOffer)
	relayed := msg.Data.(ws.RelayedPayload)
	if relayed.From != "conn-ann" || string(relayed.Payload) != string(offer) {
		t.Errorf("relayed signal = %+v", relayed)
	}

	// Cross-room: both ids are valid connections, but they resolve to
	// different rooms. Dropped without a reply.
	core.Dispatch(ann, mkReq(t, ws.VoiceOffer, "CANVAS23", ws.SignalPayload{Target: "conn-eve", Payload: offer}))
	expectNone(t, eve, ws.VoiceOffer)
	expectNone(t, ann, ws.ErrorEvent)
}

func TestTypingRoomLifecycle(t *testing.T) {
	core, _ := newTestCore(t)
	ctx := context.Background()

	info, err := core.CreateTypingRoom(ctx, nil)
	if err != nil {
		t.Fatalf("create typing room: %v", err)
	}
	if !domain.IsValidRoomCode(info.ID) {
		t.Errorf("room id %q is not a valid code", info.ID)
	}
	if info.RoundCount != domain.DefaultRoundCount || info.Round != 1 {
		t.Errorf("round position = %d/%d, want 1/%d", info.Round, info.RoundCount, domain.DefaultRoundCount)
	}
	if info.Prompt == "" {
		t.Error("created room has no prompt")
	}

	got, err := core.GetTypingRoom(ctx, info.ID)
	if err != nil || got.ID != info.ID {
		t.Fatalf("GetTypingRoom = %+v, %v", got, err)
	}

	ann := connect(core, "conn-ann")
	core.Dispatch(ann, mkReq(t, ws.TypingJoin, info.ID, ws.JoinPayload{Username: "Ann"}))
	recv(t, ann, ws.TypingPrompt)

	// Last participant leaving deletes the room.
	core.Dispatch(ann, mkReq(t, ws.TypingLeave, info.ID, nil))
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := core.GetTypingRoom(ctx, info.ID); errors.Is(err, domain.ErrRoomNotFound) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("typing room survived its last leave")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestTypingRaceEndToEnd(t *testing.T) {
	core, _ := newTestCore(t)
	prompt := "the quick brown fox." // 20 characters

	info, err := core.CreateTypingRoom(context.Background(), []string{prompt})
	if err != nil {
		t.Fatalf("create typing room: %v", err)
	}
	if info.Prompt != prompt {
		t.Fatalf("first prompt = %q, want %q", info.Prompt, prompt)
	}

	ann := connect(core, "conn-ann")
	bob := connect(core, "conn-bob")

	core.Dispatch(ann, mkReq(t, ws.TypingJoin, info.ID, ws.JoinPayload{Username: "Ann"}))
	sent := recv(t, ann, ws.TypingPrompt).Data.(ws.PromptPayload)
	if sent.Prompt != prompt {
		t.Errorf("prompt sent on join = %q, want %q", sent.Prompt, prompt)
	}

	core.Dispatch(bob, mkReq(t, ws.TypingJoin, info.ID, ws.JoinPayload{Username: "Bob"}))
	recv(t, bob, ws.TypingPrompt)

	// Ann types the full prompt correctly.
	core.Dispatch(ann, mkReq(t, ws.TypingUpdate, info.ID, ws.TypingUpdatePayload{Typed: prompt}))

	completed := recv(t, bob, ws.TypingCompleted).Data.(ws.CompletionPayload)
	if completed.ConnectionID != "conn-ann" || completed.Score != 20 {
		t.Errorf("completion = %+v, want conn-ann with score 20", completed)
	}

	board := recv(t, bob, ws.TypingLeaderboard).Data.(ws.LeaderboardPayload)
	if len(board.Entries) != 2 {
		t.Fatalf("leaderboard has %d entries, want 2", len(board.Entries))
	}
	if board.Entries[0].Username != "Ann" || board.Entries[0].Score != 20 || !board.Entries[0].IsCompleted {
		t.Errorf("leaderboard head = %+v, want completed Ann with score 20", board.Entries[0])
	}
	// Bob never typed: still listed, score zero, no terminal state.
	if board.Entries[1].Username != "Bob" || board.Entries[1].Score != 0 {
		t.Errorf("leaderboard tail = %+v, want waiting Bob with score 0", board.Entries[1])
	}
	if board.Entries[1].IsCompleted || board.Entries[1].IsTimeUp {
		t.Error("idle participant forced into a terminal state")
	}

	// Bob's disconnect removes him from the board.
	core.Drop(bob)
	board = recv(t, ann, ws.TypingLeaderboard).Data.(ws.LeaderboardPayload)
	for {
		if len(board.Entries) == 1 {
			break
		}
		board = recv(t, ann, ws.TypingLeaderboard).Data.(ws.LeaderboardPayload)
	}
	if board.Entries[0].Username != "Ann" {
		t.Errorf("final leaderboard = %+v, want only Ann", board.Entries)
	}
}

func TestTypingRejoinKeepsScore(t *testing.T) {
	core, _ := newTestCore(t)
	prompt := "hold fast"

	info, err := core.CreateTypingRoom(context.Background(), []string{prompt})
	if err != nil {
		t.Fatalf("create typing room: %v", err)
	}

	ann := connect(core, "conn-ann")
	bob := connect(core, "conn-bob")
	core.Dispatch(ann, mkReq(t, ws.TypingJoin, info.ID, ws.JoinPayload{Username: "Ann"}))
	recv(t, ann, ws.TypingPrompt)
	core.Dispatch(bob, mkReq(t, ws.TypingJoin, info.ID, ws.JoinPayload{Username: "Bob"}))
	recv(t, bob, ws.TypingPrompt)

	core.Dispatch(ann, mkReq(t, ws.TypingUpdate, info.ID, ws.TypingUpdatePayload{Typed: "hold"}))
	recv(t, bob, ws.TypingLeaderboard)

	// Ann reconnects with the same connection id (cookie identity).
	core.Dispatch(ann, mkReq(t, ws.TypingJoin, info.ID, ws.JoinPayload{Username: "Ann"}))
	recv(t, ann, ws.TypingPrompt)

	board := recv(t, bob, ws.TypingLeaderboard).Data.(ws.LeaderboardPayload)
	for _, entry := range board.Entries {
		if entry.Username == "Ann" && entry.Score != 4 {
			t.Errorf("score after rejoin = %d, want 4", entry.Score)
		}
	}
}

// gatedSource stalls the Run goroutine inside a room-create task, so reads
// racing against queued registry binds can be arranged deterministically.
type gatedSource struct {
	entered chan struct{}
	release chan struct{}
}

func (g *gatedSource) PickRandomPrompt() string { return domain.FallbackPrompt }

func (g *gatedSource) PickRoundSet(count int) []string {
	close(g.entered)
	<-g.release
	rounds := make([]string, count)
	for i := range rounds {
		rounds[i] = domain.FallbackPrompt
	}
	return rounds
}

func TestCanvasJoinRaceUndoesLosingRoom(t *testing.T) {
	gate := &gatedSource{entered: make(chan struct{}), release: make(chan struct{})}
	core, store := newTestCoreWith(t, gate)
	ctx := context.Background()

	createCanvasRoom(t, store, "RMAAAAAA")
	createCanvasRoom(t, store, "RMBBBBBB")
	cl := connect(core, "conn-x")

	// Hold the Run goroutine inside a create task so neither join's bind
	// lands before both read-side rebind checks have run.
	created := make(chan struct{})
	go func() {
		defer close(created)
		if _, err := core.CreateTypingRoom(ctx, nil); err != nil {
			t.Errorf("create typing room: %v", err)
		}
	}()
	<-gate.entered

	// Dispatch runs each join's store I/O and rebind check inline; the
	// member.list replies only arrive once the gate opens.
	core.Dispatch(cl, mkReq(t, ws.RoomJoin, "RMAAAAAA", ws.JoinPayload{Username: "Xavier"}))
	core.Dispatch(cl, mkReq(t, ws.RoomJoin, "RMBBBBBB", ws.JoinPayload{Username: "Xavier"}))
	close(gate.release)
	<-created
	recv(t, cl, ws.MemberList)
	recv(t, cl, ws.MemberList)

	// The second bind wins; the losing room's durable membership is
	// undone and its empty record deleted.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := store.FindByID(ctx, "RMAAAAAA"); errors.Is(err, domain.ErrRoomNotFound) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("losing room still holds the connection's membership")
		}
		time.Sleep(10 * time.Millisecond)
	}

	room, err := store.FindByID(ctx, "RMBBBBBB")
	if err != nil {
		t.Fatalf("winning room lookup: %v", err)
	}
	if len(room.Users) != 1 || room.Users[0] != "conn-x" {
		t.Errorf("winning room users = %v, want [conn-x]", room.Users)
	}
}

func TestStaleSocketDropKeepsTypingSession(t *testing.T) {
	core, _ := newTestCore(t)
	ctx := context.Background()

	info, err := core.CreateTypingRoom(ctx, []string{"hold fast"})
	if err != nil {
		t.Fatalf("create typing room: %v", err)
	}

	old := connect(core, "conn-ann")
	core.Dispatch(old, mkReq(t, ws.TypingJoin, info.ID, ws.JoinPayload{Username: "Ann"}))
	recv(t, old, ws.TypingPrompt)

	// A reconnect re-attaches the id before the old socket's read loop
	// winds down.
	fresh := connect(core, "conn-ann")
	core.Drop(old)

	if _, err := core.GetTypingRoom(ctx, info.ID); err != nil {
		t.Fatalf("typing room torn down by a stale socket's drop: %v", err)
	}

	// The participant still races; updates from the fresh socket apply.
	core.Dispatch(fresh, mkReq(t, ws.TypingUpdate, info.ID, ws.TypingUpdatePayload{Typed: "hold"}))
	board := recv(t, fresh, ws.TypingLeaderboard).Data.(ws.LeaderboardPayload)
	if len(board.Entries) != 1 || board.Entries[0].Username != "Ann" || board.Entries[0].Score != 4 {
		t.Errorf("leaderboard = %+v, want Ann with score 4", board.Entries)
	}

	// The stale socket's channel is closed without touching the session.
	closeDeadline := time.After(2 * time.Second)
	for open := true; open; {
		select {
		case _, ok := <-old.Message:
			open = ok
		case <-closeDeadline:
			t.Fatal("stale socket's send channel never closed")
		}
	}
}

func TestStaleSocketDropKeepsCanvasMembership(t *testing.T) {
	core, store := newTestCore(t)
	ctx := context.Background()

	createCanvasRoom(t, store, "RMCCCCCC")
	old := connect(core, "conn-bob")
	joinCanvas(t, core, old, "RMCCCCCC", "Bobby")

	fresh := connect(core, "conn-bob")
	core.Drop(old)

	room, err := store.FindByID(ctx, "RMCCCCCC")
	if err != nil {
		t.Fatalf("room lookup after stale drop: %v", err)
	}
	if len(room.Users) != 1 || room.Users[0] != "conn-bob" {
		t.Errorf("room users = %v, want [conn-bob]", room.Users)
	}

	// The registry binding survives, so the re-attached socket still draws.
	core.Dispatch(fresh, mkReq(t, ws.DrawStroke, "RMCCCCCC", map[string]int{"x": 1}))
	expectNone(t, fresh, ws.ErrorEvent)
}
