// Package registry owns the ChatRoom and ChatRoomMember lifecycle: creation
// and dedup, join/leave, role and presence bookkeeping, and the cascading
// deletion of emptied rooms. It is the only writer of room and membership
// records; the one write it accepts from outside is SetLastMessage, the
// narrow hook the ledger uses to maintain the denormalized preview pointer.
package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"go-rooms/backend/apperr"
	"go-rooms/backend/fanout"
	"go-rooms/backend/models"
	"go-rooms/backend/notify"
	"go-rooms/backend/preview"
	"go-rooms/backend/store"
)

const (
	groupNameMin = 3
	groupNameMax = 50
)

type Service struct {
	store     store.Store
	channel   fanout.Channel
	projector *preview.Projector
	notifier  notify.Notifier
}

// New wires the registry. The fan-out channel is mandatory: constructing
// services before the channel exists is a bootstrap bug we want surfaced at
// startup, not from inside a handler.
func New(s store.Store, ch fanout.Channel, p *preview.Projector, n notify.Notifier) (*Service, error) {
	if ch == nil {
		return nil, apperr.New(apperr.Internal, "fanout channel not wired")
	}
	if n == nil {
		n = notify.LogNotifier{}
	}
	return &Service{store: s, channel: ch, projector: p, notifier: n}, nil
}

// CreateResult reports whether CreateRoom found an existing room (the
// idempotent-dedup path) or created a fresh one.
type CreateResult struct {
	Room     *models.RoomPreview
	Existing bool
}

// RemovalOutcome is the result of leave/delete flows. Room is nil when the
// room was deleted.
type RemovalOutcome struct {
	RoomDeleted bool
	Room        *models.ChatRoom
}

// CreateRoom creates a direct or group room, or returns the existing one
// when an identical room already exists. Direct rooms are unique per
// unordered member pair; group rooms per (name, member set).
func (s *Service) CreateRoom(ctx context.Context, creatorID primitive.ObjectID, memberIDs []primitive.ObjectID, isGroup bool, name string) (*CreateResult, error) {
	if len(memberIDs) == 0 {
		return nil, apperr.New(apperr.InvalidArgument, "At least one member is required")
	}

	members := uniqueIDs(memberIDs)
	if !isGroup && len(members) == 1 && members[0] == creatorID {
		return nil, apperr.New(apperr.InvalidArgument, "You cannot start a direct chat with yourself")
	}
	if !containsID(members, creatorID) {
		members = append(members, creatorID)
	}
	sortIDs(members)

	users, err := s.store.GetUsersByIDs(ctx, members)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to look up members", err)
	}
	if len(users) != len(members) {
		return nil, apperr.New(apperr.InvalidArgument, "Some members do not exist")
	}
	usersByID := make(map[primitive.ObjectID]models.User, len(users))
	for _, u := range users {
		usersByID[u.ID] = u
	}
	creator := usersByID[creatorID]

	var room *models.ChatRoom
	if isGroup {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, apperr.New(apperr.InvalidArgument, "Group chat must have a name")
		}
		if n := utf8.RuneCountInString(name); n < groupNameMin || n > groupNameMax {
			return nil, apperr.New(apperr.InvalidArgument, "Group name must be 3-50 characters long")
		}
		if len(members) < 3 {
			return nil, apperr.New(apperr.InvalidArgument, "Group chat must have at least 3 members (including you)")
		}

		existing, err := s.store.FindGroupRoom(ctx, name, members)
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, "failed to check for existing group", err)
		}
		if existing != nil {
			return s.existingRoomResult(ctx, existing, creatorID)
		}
		room = &models.ChatRoom{Name: name, IsGroup: true, Members: members}
	} else {
		if len(members) != 2 {
			return nil, apperr.New(apperr.InvalidArgument, "Direct chat must have exactly 1 other member")
		}
		other := members[0]
		if other == creatorID {
			other = members[1]
		}

		existing, err := s.store.FindDirectRoom(ctx, creatorID, other)
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, "failed to check for existing chat", err)
		}
		if existing != nil {
			return s.existingRoomResult(ctx, existing, creatorID)
		}
		room = &models.ChatRoom{Name: usersByID[other].Name, IsGroup: false, Members: members}
	}

	if _, err := s.store.InsertRoom(ctx, room); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to create room", err)
	}

	// Creator joins immediately as admin; everyone else stays unaccepted
	// (nil joinedAt) until their own joinRoom.
	now := time.Now()
	rows := make([]models.ChatRoomMember, 0, len(members))
	for _, id := range members {
		row := models.ChatRoomMember{
			ChatRoom: room.ID,
			User:     id,
			Role:     models.RoleMember,
			Status:   models.StatusOffline,
		}
		if id == creatorID {
			row.Role = models.RoleAdmin
			row.Status = models.StatusOnline
			joined := now
			row.JoinedAt = &joined
		}
		rows = append(rows, row)
	}
	if err := s.store.InsertMembers(ctx, rows); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to create memberships", err)
	}

	text := fmt.Sprintf("%s created group %q", creator.Name, room.Name)
	if !room.IsGroup {
		text = fmt.Sprintf("%s started a chat with %s", creator.Name, room.Name)
	}
	system := &models.Message{
		ChatRoom: room.ID,
		Sender:   creatorID,
		Text:     text,
		Type:     models.MessageSystem,
		ReadBy:   []primitive.ObjectID{creatorID},
	}
	if _, err := s.store.InsertMessage(ctx, system); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to record creation message", err)
	}
	if err := s.SetLastMessage(ctx, room.ID, system); err != nil {
		return nil, err
	}
	room.LastMessage = &system.ID
	room.UpdatedAt = system.CreatedAt

	// roomCreated goes to each member's private address: non-creators have
	// no room subscription yet, and each member needs their own view of the
	// preview anyway.
	for _, id := range members {
		view, err := s.projector.Room(ctx, room, id)
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, "failed to build room preview", err)
		}
		s.channel.PublishUser(ctx, id, fanout.Event{Name: fanout.EventRoomCreated, Payload: view})
		if id != creatorID {
			s.notifier.Notify(ctx, id, "room-invite", view)
		}
	}

	creatorView, err := s.projector.Room(ctx, room, creatorID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to build room preview", err)
	}
	return &CreateResult{Room: creatorView}, nil
}

func (s *Service) existingRoomResult(ctx context.Context, room *models.ChatRoom, viewerID primitive.ObjectID) (*CreateResult, error) {
	view, err := s.projector.Room(ctx, room, viewerID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to build room preview", err)
	}
	return &CreateResult{Room: view, Existing: true}, nil
}

// JoinRoom records the user's acceptance of a room: it creates or revives
// the membership row, backfills joinedAt on first entry, and keeps the
// room's member set consistent with the rows.
func (s *Service) JoinRoom(ctx context.Context, userID, roomID primitive.ObjectID) (*models.RoomPreview, error) {
	room, err := s.getRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	member, err := s.store.GetMember(ctx, roomID, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to look up membership", err)
	}
	if member == nil {
		row := models.ChatRoomMember{
			ChatRoom: roomID,
			User:     userID,
			Role:     models.RoleMember,
			Status:   models.StatusOnline,
			JoinedAt: &now,
		}
		if err := s.store.InsertMembers(ctx, []models.ChatRoomMember{row}); err != nil {
			return nil, apperr.Wrap(apperr.Internal, "failed to create membership", err)
		}
	} else {
		member.Status = models.StatusOnline
		if member.JoinedAt == nil {
			member.JoinedAt = &now
		}
		if err := s.store.UpdateMember(ctx, member); err != nil {
			return nil, apperr.Wrap(apperr.Internal, "failed to update membership", err)
		}
	}

	if !room.HasMember(userID) {
		if err := s.store.AddRoomMember(ctx, roomID, userID); err != nil {
			return nil, apperr.Wrap(apperr.Internal, "failed to update member set", err)
		}
		room.Members = append(room.Members, userID)
	}

	view, err := s.projector.Room(ctx, room, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to build room preview", err)
	}
	uid := userID
	s.channel.PublishRoom(ctx, roomID, fanout.Event{
		Name: fanout.EventRoomUpdated,
		Payload: fanout.RoomUpdatedPayload{
			Action:      fanout.ActionMemberJoined,
			RoomID:      roomID,
			Room:        view,
			UserID:      &uid,
			LastMessage: view.LastMessage,
			UpdatedAt:   time.Now(),
		},
	})
	return view, nil
}

// LeaveRoom removes the user's membership. Emptying the member set cascades
// to the room, its remaining membership rows, and its messages.
func (s *Service) LeaveRoom(ctx context.Context, userID, roomID primitive.ObjectID) (*RemovalOutcome, error) {
	if userID.IsZero() {
		return nil, apperr.New(apperr.InvalidArgument, "Missing userId")
	}
	room, err := s.getRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return s.removeMember(ctx, room, userID)
}

// DeleteRoom has two authorization paths. A group admin performs the full
// destructive delete and every remaining member is notified on their private
// address. Anyone else falls through to a self-leave with the usual
// empty-room cascade.
func (s *Service) DeleteRoom(ctx context.Context, requesterID, roomID primitive.ObjectID) (*RemovalOutcome, error) {
	room, err := s.getRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	member, err := s.store.GetMember(ctx, roomID, requesterID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to look up membership", err)
	}

	if room.IsGroup && member != nil && member.Role == models.RoleAdmin {
		if err := s.cascadeDelete(ctx, roomID); err != nil {
			return nil, err
		}
		for _, id := range room.Members {
			s.channel.PublishUser(ctx, id, fanout.Event{
				Name:    fanout.EventRoomDeleted,
				Payload: fanout.RoomDeletedPayload{RoomID: roomID},
			})
		}
		return &RemovalOutcome{RoomDeleted: true}, nil
	}

	return s.removeMember(ctx, room, requesterID)
}

func (s *Service) removeMember(ctx context.Context, room *models.ChatRoom, userID primitive.ObjectID) (*RemovalOutcome, error) {
	roomID := room.ID
	if err := s.store.RemoveRoomMember(ctx, roomID, userID); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to update member set", err)
	}
	if err := s.store.DeleteMember(ctx, roomID, userID); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to delete membership", err)
	}

	// Re-read rather than trust the in-memory copy: a concurrent leave may
	// have emptied the set already, and the cascade must be a no-op the
	// second time around.
	current, err := s.store.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to re-read room", err)
	}
	if current == nil || len(current.Members) == 0 {
		if err := s.cascadeDelete(ctx, roomID); err != nil {
			return nil, err
		}
		s.channel.PublishRoom(ctx, roomID, fanout.Event{
			Name:    fanout.EventRoomDeleted,
			Payload: fanout.RoomDeletedPayload{RoomID: roomID},
		})
		return &RemovalOutcome{RoomDeleted: true}, nil
	}

	uid := userID
	s.channel.PublishRoom(ctx, roomID, fanout.Event{
		Name: fanout.EventRoomUpdated,
		Payload: fanout.RoomUpdatedPayload{
			Action:    fanout.ActionMemberLeft,
			RoomID:    roomID,
			UserID:    &uid,
			UpdatedAt: time.Now(),
		},
	})
	return &RemovalOutcome{Room: current}, nil
}

// cascadeDelete removes the room, its membership rows, and its messages.
// Every step is delete-if-exists so two racing cascades both succeed.
func (s *Service) cascadeDelete(ctx context.Context, roomID primitive.ObjectID) error {
	if err := s.store.DeleteRoom(ctx, roomID); err != nil {
		return apperr.Wrap(apperr.Internal, "failed to delete room", err)
	}
	if err := s.store.DeleteRoomMembers(ctx, roomID); err != nil {
		return apperr.Wrap(apperr.Internal, "failed to delete memberships", err)
	}
	if err := s.store.DeleteRoomMessages(ctx, roomID); err != nil {
		return apperr.Wrap(apperr.Internal, "failed to delete messages", err)
	}
	return nil
}

// UpdateMemberStatus flips a member's presence. Going offline stamps
// lastOnlineAt; coming back online leaves the old stamp in place — clients
// infer "currently online" from status, not from the timestamp.
func (s *Service) UpdateMemberStatus(ctx context.Context, userID, roomID primitive.ObjectID, status models.MemberStatus) (*models.MemberView, error) {
	if roomID.IsZero() {
		return nil, apperr.New(apperr.InvalidArgument, "roomId is required")
	}
	if !models.ValidStatus(status) {
		return nil, apperr.New(apperr.InvalidArgument, "Invalid status value. Must be 'online' or 'offline'")
	}

	member, err := s.store.GetMember(ctx, roomID, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to look up membership", err)
	}
	if member == nil {
		return nil, apperr.New(apperr.NotFound, "Member not found in this room")
	}

	member.Status = status
	if status == models.StatusOffline {
		now := time.Now()
		member.LastOnlineAt = &now
	}
	if err := s.store.UpdateMember(ctx, member); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to update membership", err)
	}

	s.channel.PublishRoom(ctx, roomID, fanout.Event{
		Name: fanout.EventMemberStatusUpdated,
		Payload: fanout.MemberStatusPayload{
			UserID:       userID,
			RoomID:       roomID,
			Status:       status,
			LastOnlineAt: member.LastOnlineAt,
		},
	})

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to look up user", err)
	}
	if user == nil {
		user = &models.User{ID: userID}
	}
	view := preview.MemberView(*member, *user)
	return &view, nil
}

// ListStatuses returns the member views for a room with lastOnlineAt
// suppressed for currently-online members.
func (s *Service) ListStatuses(ctx context.Context, roomID primitive.ObjectID) ([]models.MemberView, error) {
	if _, err := s.getRoom(ctx, roomID); err != nil {
		return nil, err
	}
	views, err := s.projector.Statuses(ctx, roomID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to build member views", err)
	}
	return views, nil
}

// ListUserRooms pages through the viewer's rooms, most recently updated
// first, each projected from the viewer's perspective.
func (s *Service) ListUserRooms(ctx context.Context, userID primitive.ObjectID, page, limit int) ([]models.RoomPreview, error) {
	if limit <= 0 {
		limit = 10
	}
	if page <= 0 {
		page = 1
	}

	ids, err := s.store.ListUserRoomIDs(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to list memberships", err)
	}
	rooms, err := s.store.GetRoomsByIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to load rooms", err)
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].UpdatedAt.After(rooms[j].UpdatedAt) })

	skip := (page - 1) * limit
	if skip >= len(rooms) {
		return []models.RoomPreview{}, nil
	}
	end := skip + limit
	if end > len(rooms) {
		end = len(rooms)
	}

	out := make([]models.RoomPreview, 0, end-skip)
	for _, room := range rooms[skip:end] {
		view, err := s.projector.Room(ctx, &room, userID)
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, "failed to build room preview", err)
		}
		out = append(out, *view)
	}
	return out, nil
}

// SetLastMessage updates the room's denormalized last-message pointer and
// updatedAt. It is the single entry point through which the ledger touches
// room records; a nil message clears the pointer.
func (s *Service) SetLastMessage(ctx context.Context, roomID primitive.ObjectID, msg *models.Message) error {
	var id *primitive.ObjectID
	at := time.Now()
	if msg != nil {
		id = &msg.ID
	}
	if err := s.store.SetLastMessage(ctx, roomID, id, at); err != nil {
		return apperr.Wrap(apperr.Internal, "failed to update last message", err)
	}
	return nil
}

func (s *Service) getRoom(ctx context.Context, roomID primitive.ObjectID) (*models.ChatRoom, error) {
	room, err := s.store.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to look up room", err)
	}
	if room == nil {
		return nil, apperr.New(apperr.NotFound, "Room not found")
	}
	return room, nil
}

func uniqueIDs(ids []primitive.ObjectID) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]bool, len(ids))
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func containsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func sortIDs(ids []primitive.ObjectID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Hex() < ids[j].Hex() })
}
