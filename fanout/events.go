package fanout

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"go-rooms/backend/models"
)

// Push event names. Clients must treat unknown actions tolerantly; new
// actions may appear under existing event names.
const (
	EventRoomCreated         = "roomCreated"
	EventRoomUpdated         = "roomUpdated"
	EventRoomDeleted         = "roomDeleted"
	EventChatMessage         = "chatMessage"
	EventMessageEdited       = "messageEdited"
	EventMessagesRead        = "messagesRead"
	EventMemberStatusUpdated = "memberStatusUpdated"
)

const (
	ActionNewMessage    = "newMessage"
	ActionDeleteMessage = "deleteMessage"
	ActionMemberJoined  = "memberJoined"
	ActionMemberLeft    = "memberLeft"
)

// Event is the wire envelope pushed to connected clients.
type Event struct {
	Name    string      `json:"event"`
	Payload interface{} `json:"payload"`
}

// RoomUpdatedPayload covers both roomUpdated shapes: membership changes
// (Action/Room/UserID set) and preview-tail changes (LastMessage set).
type RoomUpdatedPayload struct {
	Action      string                     `json:"action,omitempty"`
	RoomID      primitive.ObjectID         `json:"roomId"`
	Room        *models.RoomPreview        `json:"room,omitempty"`
	UserID      *primitive.ObjectID        `json:"userId,omitempty"`
	LastMessage *models.LastMessagePreview `json:"lastMessage"`
	UpdatedAt   time.Time                  `json:"updatedAt"`
}

type RoomDeletedPayload struct {
	RoomID primitive.ObjectID `json:"roomId"`
}

// ChatMessagePayload carries new and deleted messages. Message is nil after
// a hard delete; soft deletes carry the unredacted message, delBy included.
type ChatMessagePayload struct {
	Action    string              `json:"action"`
	RoomID    primitive.ObjectID  `json:"roomId"`
	MessageID *primitive.ObjectID `json:"messageId,omitempty"`
	Message   *models.Message     `json:"message"`
}

type MessageEditedPayload struct {
	RoomID  primitive.ObjectID `json:"roomId"`
	Message *models.Message    `json:"message"`
}

type MessagesReadPayload struct {
	UserID primitive.ObjectID `json:"userId"`
	RoomID primitive.ObjectID `json:"roomId"`
}

type MemberStatusPayload struct {
	UserID       primitive.ObjectID  `json:"userId"`
	RoomID       primitive.ObjectID  `json:"roomId"`
	Status       models.MemberStatus `json:"status"`
	LastOnlineAt *time.Time          `json:"lastOnlineAt"`
}
