// Package preview derives the per-viewer room summary (display identity,
// member views, last message, unread count) from Registry and Ledger state.
// It holds no state of its own and is recomputed on every read and push;
// the one shared value type keeps REST and push payloads from drifting.
package preview

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"go-rooms/backend/models"
	"go-rooms/backend/store"
)

type Projector struct {
	store store.Store
}

func New(s store.Store) *Projector {
	return &Projector{store: s}
}

// Room builds the preview of room as seen by viewerID. Direct rooms resolve
// display name/avatar to the counterpart member; group rooms to the room's
// own name/avatar. UnreadCount is relative to the viewer, so the result must
// never be cached or shared across users.
func (p *Projector) Room(ctx context.Context, room *models.ChatRoom, viewerID primitive.ObjectID) (*models.RoomPreview, error) {
	views, err := p.Members(ctx, room.ID)
	if err != nil {
		return nil, err
	}

	var tail *models.LastMessagePreview
	if room.LastMessage != nil {
		msg, err := p.store.GetMessageByID(ctx, *room.LastMessage)
		if err != nil {
			return nil, err
		}
		if msg != nil {
			tail, err = p.Tail(ctx, msg)
			if err != nil {
				return nil, err
			}
		}
	}

	unread, err := p.store.CountUnread(ctx, room.ID, viewerID)
	if err != nil {
		return nil, err
	}

	out := &models.RoomPreview{
		ID:            room.ID,
		Name:          room.Name,
		IsGroup:       room.IsGroup,
		Avatar:        room.Avatar,
		DisplayName:   room.Name,
		DisplayAvatar: room.Avatar,
		Members:       views,
		LastMessage:   tail,
		UnreadCount:   unread,
		CreatedAt:     room.CreatedAt,
		UpdatedAt:     room.UpdatedAt,
	}
	if !room.IsGroup {
		for _, v := range views {
			if v.ID != viewerID {
				out.DisplayName = v.Name
				out.DisplayAvatar = v.Avatar
				break
			}
		}
	}
	return out, nil
}

// Members returns the full member views of a room, joined against the user
// records.
func (p *Projector) Members(ctx context.Context, roomID primitive.ObjectID) ([]models.MemberView, error) {
	members, err := p.store.ListRoomMembers(ctx, roomID)
	if err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.User)
	}
	users, err := p.store.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[primitive.ObjectID]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	views := make([]models.MemberView, 0, len(members))
	for _, m := range members {
		views = append(views, MemberView(m, byID[m.User]))
	}
	return views, nil
}

// Statuses is the member listing for the statuses endpoint: lastOnlineAt is
// suppressed while a member is online so clients never show a stale "last
// seen" next to a present user.
func (p *Projector) Statuses(ctx context.Context, roomID primitive.ObjectID) ([]models.MemberView, error) {
	views, err := p.Members(ctx, roomID)
	if err != nil {
		return nil, err
	}
	for i := range views {
		if views[i].Status == models.StatusOnline {
			views[i].LastOnlineAt = nil
		}
	}
	return views, nil
}

// Tail builds the denormalized last-message shape. System messages carry a
// nil sender.
func (p *Projector) Tail(ctx context.Context, msg *models.Message) (*models.LastMessagePreview, error) {
	tail := &models.LastMessagePreview{
		ID:        msg.ID,
		Text:      msg.Text,
		Type:      msg.Type,
		CreatedAt: msg.CreatedAt,
	}
	if msg.Type == models.MessageSystem {
		return tail, nil
	}
	sender, err := p.store.GetUserByID(ctx, msg.Sender)
	if err != nil {
		return nil, err
	}
	if sender != nil {
		ref := sender.Ref()
		tail.Sender = &ref
	}
	return tail, nil
}

// MemberView joins one membership row with its user record.
func MemberView(m models.ChatRoomMember, u models.User) models.MemberView {
	name := u.Name
	if name == "" {
		name = "Unknown"
	}
	return models.MemberView{
		ID:           m.User,
		Name:         name,
		Avatar:       u.Avatar,
		Role:         m.Role,
		Status:       m.Status,
		JoinedAt:     m.JoinedAt,
		LastOnlineAt: m.LastOnlineAt,
		IsAccepted:   m.JoinedAt != nil,
		Admin:        m.Role == models.RoleAdmin,
	}
}
