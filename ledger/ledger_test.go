package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"go-rooms/backend/apperr"
	"go-rooms/backend/fanout"
	"go-rooms/backend/models"
	"go-rooms/backend/preview"
	"go-rooms/backend/registry"
	"go-rooms/backend/store/memstore"
)

type publishRecord struct {
	target primitive.ObjectID
	event  fanout.Event
}

type recorder struct {
	mu   sync.Mutex
	room []publishRecord
}

func (r *recorder) PublishRoom(_ context.Context, roomID primitive.ObjectID, e fanout.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.room = append(r.room, publishRecord{target: roomID, event: e})
}

func (r *recorder) PublishUser(_ context.Context, _ primitive.ObjectID, _ fanout.Event) {}

func (r *recorder) roomEvents(name string) []publishRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []publishRecord
	for _, p := range r.room {
		if p.event.Name == name {
			out = append(out, p)
		}
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.room = nil
}

// fixture wires the ledger against the real registry so the last-message
// pointer path is the production one.
type fixture struct {
	svc       *Service
	store     *memstore.Store
	rec       *recorder
	projector *preview.Projector
	alice     primitive.ObjectID
	bob       primitive.ObjectID
	roomID    primitive.ObjectID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := memstore.New()
	rec := &recorder{}
	projector := preview.New(st)

	rooms, err := registry.New(st, rec, projector, nil)
	require.NoError(t, err)
	svc, err := New(st, rec, projector, rooms)
	require.NoError(t, err)

	alice, err := st.InsertUser(ctx, &models.User{Name: "alice", Email: "alice@example.com"})
	require.NoError(t, err)
	bob, err := st.InsertUser(ctx, &models.User{Name: "bob", Email: "bob@example.com"})
	require.NoError(t, err)

	result, err := rooms.CreateRoom(ctx, alice, []primitive.ObjectID{bob}, false, "")
	require.NoError(t, err)
	rec.reset()

	return &fixture{svc: svc, store: st, rec: rec, projector: projector, alice: alice, bob: bob, roomID: result.Room.ID}
}

func TestAppend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msg, err := f.svc.Append(ctx, f.roomID, f.alice, "hello", nil)
	require.NoError(t, err)
	require.False(t, msg.ID.IsZero())
	assert.Equal(t, models.MessageText, msg.Type)

	room, err := f.store.GetRoomByID(ctx, f.roomID)
	require.NoError(t, err)
	require.NotNil(t, room.LastMessage)
	assert.Equal(t, msg.ID, *room.LastMessage)

	posted := f.rec.roomEvents(fanout.EventChatMessage)
	require.Len(t, posted, 1)
	payload, ok := posted[0].event.Payload.(fanout.ChatMessagePayload)
	require.True(t, ok)
	assert.Equal(t, fanout.ActionNewMessage, payload.Action)
	require.NotNil(t, payload.Message)
	assert.Equal(t, "hello", payload.Message.Text)

	tails := f.rec.roomEvents(fanout.EventRoomUpdated)
	require.Len(t, tails, 1)
	tail, ok := tails[0].event.Payload.(fanout.RoomUpdatedPayload)
	require.True(t, ok)
	require.NotNil(t, tail.LastMessage)
	assert.Equal(t, msg.ID, tail.LastMessage.ID)
}

func TestUnreadCountExcludesOwnAndSystemMessages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	unreadFor := func(viewer primitive.ObjectID) int64 {
		room, err := f.store.GetRoomByID(ctx, f.roomID)
		require.NoError(t, err)
		view, err := f.projector.Room(ctx, room, viewer)
		require.NoError(t, err)
		return view.UnreadCount
	}

	// The creation system message counts for no one.
	assert.Zero(t, unreadFor(f.alice))
	assert.Zero(t, unreadFor(f.bob))

	_, err := f.svc.Append(ctx, f.roomID, f.alice, "hi", nil)
	require.NoError(t, err)

	assert.Zero(t, unreadFor(f.alice), "sender's own message must not count as unread")
	assert.Equal(t, int64(1), unreadFor(f.bob))

	_, err = f.svc.MarkRead(ctx, f.roomID, f.bob)
	require.NoError(t, err)
	assert.Zero(t, unreadFor(f.bob))
}

func TestAppendValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Append(ctx, f.roomID, f.alice, "", nil)
	require.Error(t, err)
	assert.Equal(t, apperr.InvalidArgument, apperr.KindOf(err))

	_, err = f.svc.Append(ctx, primitive.NilObjectID, f.alice, "hello", nil)
	require.Error(t, err)
	assert.Equal(t, apperr.InvalidArgument, apperr.KindOf(err))

	_, err = f.svc.Append(ctx, primitive.NewObjectID(), f.alice, "hello", nil)
	require.Error(t, err)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestGetMessagesAscendingPages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, text := range []string{"one", "two", "three"} {
		_, err := f.svc.Append(ctx, f.roomID, f.alice, text, nil)
		require.NoError(t, err)
	}

	// Page past the creation system message.
	all, err := f.svc.GetMessages(ctx, f.roomID, 1, 50)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, models.MessageSystem, all[0].Type)
	assert.Equal(t, "one", all[1].Text)
	assert.Equal(t, "three", all[3].Text)

	second, err := f.svc.GetMessages(ctx, f.roomID, 2, 2)
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, "two", second[0].Text)

	_, err = f.svc.GetMessages(ctx, primitive.NilObjectID, 1, 10)
	require.Error(t, err)
	assert.Equal(t, apperr.InvalidArgument, apperr.KindOf(err))
}

func TestMarkReadIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Append(ctx, f.roomID, f.alice, "hello", nil)
	require.NoError(t, err)
	_, err = f.svc.Append(ctx, f.roomID, f.alice, "again", nil)
	require.NoError(t, err)

	count, err := f.svc.MarkRead(ctx, f.roomID, f.bob)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count) // system message included

	count, err = f.svc.MarkRead(ctx, f.roomID, f.bob)
	require.NoError(t, err)
	assert.Zero(t, count)

	unread, err := f.store.CountUnread(ctx, f.roomID, f.bob)
	require.NoError(t, err)
	assert.Zero(t, unread)

	reads := f.rec.roomEvents(fanout.EventMessagesRead)
	assert.Len(t, reads, 2)
}

func TestDeleteBySenderIsHard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msg, err := f.svc.Append(ctx, f.roomID, f.alice, "first", nil)
	require.NoError(t, err)
	last, err := f.svc.Append(ctx, f.roomID, f.alice, "second", nil)
	require.NoError(t, err)
	f.rec.reset()

	outcome, err := f.svc.Delete(ctx, last.ID, f.alice)
	require.NoError(t, err)
	assert.Equal(t, HardDeleted, outcome.Kind)
	assert.Nil(t, outcome.Message)

	gone, err := f.store.GetMessageByID(ctx, last.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	// The pointer falls back to the surviving predecessor.
	room, err := f.store.GetRoomByID(ctx, f.roomID)
	require.NoError(t, err)
	require.NotNil(t, room.LastMessage)
	assert.Equal(t, msg.ID, *room.LastMessage)

	posted := f.rec.roomEvents(fanout.EventChatMessage)
	require.Len(t, posted, 1)
	payload := posted[0].event.Payload.(fanout.ChatMessagePayload)
	assert.Equal(t, fanout.ActionDeleteMessage, payload.Action)
	require.NotNil(t, payload.MessageID)
	assert.Equal(t, last.ID, *payload.MessageID)
	assert.Nil(t, payload.Message)
}

func TestDeleteByOtherIsSoftAndIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msg, err := f.svc.Append(ctx, f.roomID, f.alice, "hello", nil)
	require.NoError(t, err)
	f.rec.reset()

	outcome, err := f.svc.Delete(ctx, msg.ID, f.bob)
	require.NoError(t, err)
	assert.Equal(t, SoftDeletedFor, outcome.Kind)
	assert.Equal(t, f.bob, outcome.User)
	require.NotNil(t, outcome.Message)

	// Repeating does not stack markers.
	_, err = f.svc.Delete(ctx, msg.ID, f.bob)
	require.NoError(t, err)

	stored, err := f.store.GetMessageByID(ctx, msg.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Len(t, stored.DelBy, 1)
	assert.Equal(t, f.bob, stored.DelBy[0].UserID)
	assert.True(t, stored.DeletedFor(f.bob))
	assert.False(t, stored.DeletedFor(f.alice))

	// The broadcast carries the unredacted message; it is still the room's
	// last message for everyone else.
	posted := f.rec.roomEvents(fanout.EventChatMessage)
	require.Len(t, posted, 2)
	payload := posted[0].event.Payload.(fanout.ChatMessagePayload)
	require.NotNil(t, payload.Message)
	assert.Equal(t, "hello", payload.Message.Text)

	room, err := f.store.GetRoomByID(ctx, f.roomID)
	require.NoError(t, err)
	require.NotNil(t, room.LastMessage)
	assert.Equal(t, msg.ID, *room.LastMessage)
}

func TestDeleteUnknownMessage(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Delete(context.Background(), primitive.NewObjectID(), f.alice)
	require.Error(t, err)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestEdit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msg, err := f.svc.Append(ctx, f.roomID, f.alice, "hello", []string{"a.png"})
	require.NoError(t, err)
	f.rec.reset()

	text := "hello, edited"
	edited, err := f.svc.Edit(ctx, msg.ID, f.alice, &text, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello, edited", edited.Text)
	assert.True(t, edited.IsEdited)
	// Partial update: attachments untouched when not provided.
	assert.Equal(t, []string{"a.png"}, edited.Attachments)

	events := f.rec.roomEvents(fanout.EventMessageEdited)
	require.Len(t, events, 1)

	// Still the latest message, so the tail is republished too.
	tails := f.rec.roomEvents(fanout.EventRoomUpdated)
	require.Len(t, tails, 1)
	tail := tails[0].event.Payload.(fanout.RoomUpdatedPayload)
	require.NotNil(t, tail.LastMessage)
	assert.Equal(t, "hello, edited", tail.LastMessage.Text)
}

func TestEditDistinguishesOmittedFromEmptyAttachments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msg, err := f.svc.Append(ctx, f.roomID, f.alice, "hello", []string{"a.png"})
	require.NoError(t, err)

	// Nil leaves the set alone.
	text := "still attached"
	edited, err := f.svc.Edit(ctx, msg.ID, f.alice, &text, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.png"}, edited.Attachments)

	// An explicit empty slice clears it.
	edited, err = f.svc.Edit(ctx, msg.ID, f.alice, nil, []string{})
	require.NoError(t, err)
	assert.Empty(t, edited.Attachments)
	assert.Equal(t, "still attached", edited.Text)
}

func TestEditByOtherForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msg, err := f.svc.Append(ctx, f.roomID, f.alice, "hello", nil)
	require.NoError(t, err)

	text := "hijacked"
	_, err = f.svc.Edit(ctx, msg.ID, f.bob, &text, nil)
	require.Error(t, err)
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))
}

func TestEditOlderMessageDoesNotRepublishTail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	older, err := f.svc.Append(ctx, f.roomID, f.alice, "older", nil)
	require.NoError(t, err)
	latest, err := f.svc.Append(ctx, f.roomID, f.alice, "latest", nil)
	require.NoError(t, err)
	f.rec.reset()

	text := "older, edited"
	_, err = f.svc.Edit(ctx, older.ID, f.alice, &text, nil)
	require.NoError(t, err)

	assert.Empty(t, f.rec.roomEvents(fanout.EventRoomUpdated))
	room, err := f.store.GetRoomByID(ctx, f.roomID)
	require.NoError(t, err)
	require.NotNil(t, room.LastMessage)
	assert.Equal(t, latest.ID, *room.LastMessage)
}
