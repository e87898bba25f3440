// Package store defines the logical persistence contract for the four
// durable collections: users, chatrooms, chatroommembers, messages. The
// store guarantees per-entity read-modify-write only; cross-entity
// consistency is the services' job. Lookups for absent records return
// (nil, nil) rather than an error so callers decide the failure kind.
package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"go-rooms/backend/models"
)

type UserStore interface {
	InsertUser(ctx context.Context, user *models.User) (primitive.ObjectID, error)
	GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

type RoomStore interface {
	InsertRoom(ctx context.Context, room *models.ChatRoom) (primitive.ObjectID, error)
	GetRoomByID(ctx context.Context, id primitive.ObjectID) (*models.ChatRoom, error)
	GetRoomsByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.ChatRoom, error)

	// FindDirectRoom matches a non-group room whose member set is exactly
	// {a, b}, in either order.
	FindDirectRoom(ctx context.Context, a, b primitive.ObjectID) (*models.ChatRoom, error)
	// FindGroupRoom matches a group room with the given name and exactly the
	// given member set.
	FindGroupRoom(ctx context.Context, name string, members []primitive.ObjectID) (*models.ChatRoom, error)

	AddRoomMember(ctx context.Context, roomID, userID primitive.ObjectID) error
	RemoveRoomMember(ctx context.Context, roomID, userID primitive.ObjectID) error

	// SetLastMessage updates the denormalized pointer and the room's
	// updatedAt. A nil messageID clears the pointer.
	SetLastMessage(ctx context.Context, roomID primitive.ObjectID, messageID *primitive.ObjectID, at time.Time) error

	// DeleteRoom removes the room if it exists; deleting an already-deleted
	// room is a no-op so racing cascades stay safe.
	DeleteRoom(ctx context.Context, roomID primitive.ObjectID) error
}

type MemberStore interface {
	InsertMembers(ctx context.Context, members []models.ChatRoomMember) error
	GetMember(ctx context.Context, roomID, userID primitive.ObjectID) (*models.ChatRoomMember, error)
	UpdateMember(ctx context.Context, member *models.ChatRoomMember) error
	ListRoomMembers(ctx context.Context, roomID primitive.ObjectID) ([]models.ChatRoomMember, error)
	ListUserRoomIDs(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error)
	DeleteMember(ctx context.Context, roomID, userID primitive.ObjectID) error
	DeleteRoomMembers(ctx context.Context, roomID primitive.ObjectID) error
}

type MessageStore interface {
	InsertMessage(ctx context.Context, msg *models.Message) (primitive.ObjectID, error)
	GetMessageByID(ctx context.Context, id primitive.ObjectID) (*models.Message, error)
	// ListRoomMessages returns an ascending-by-createdAt page with
	// skip = (page-1)*limit offset semantics.
	ListRoomMessages(ctx context.Context, roomID primitive.ObjectID, page, limit int) ([]models.Message, error)
	// LatestRoomMessage returns the most recent surviving message, nil when
	// the room has none.
	LatestRoomMessage(ctx context.Context, roomID primitive.ObjectID) (*models.Message, error)
	// MarkAllRead set-unions userID into readBy for every message in the
	// room not already containing it and reports how many changed.
	MarkAllRead(ctx context.Context, roomID, userID primitive.ObjectID) (int64, error)
	UpdateMessage(ctx context.Context, msg *models.Message) error
	DeleteMessage(ctx context.Context, id primitive.ObjectID) error
	// CountUnread counts the room's messages not yet read by userID.
	// Lifecycle system messages never count as unread.
	CountUnread(ctx context.Context, roomID, userID primitive.ObjectID) (int64, error)
	DeleteRoomMessages(ctx context.Context, roomID primitive.ObjectID) error
}

// Store is the full persistence surface consumed by the services.
type Store interface {
	UserStore
	RoomStore
	MemberStore
	MessageStore
}
