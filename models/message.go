package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MessageType classifies a ledger entry. System messages are written only by
// the Room Registry to record lifecycle events.
type MessageType string

const (
	MessageText   MessageType = "text"
	MessageImage  MessageType = "image"
	MessageFile   MessageType = "file"
	MessageSystem MessageType = "system"
)

// DeleteMarker is a per-user soft-delete entry. The message stays visible to
// everyone else; the marker is advisory for the deleter's own client.
type DeleteMarker struct {
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	DeletedAt time.Time          `bson:"deletedAt" json:"deletedAt"`
}

// Message is one ledger entry in a room.
type Message struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty" json:"id,omitempty"`
	ChatRoom    primitive.ObjectID   `bson:"chatRoom" json:"chatRoom"`
	Sender      primitive.ObjectID   `bson:"sender" json:"sender"`
	Text        string               `bson:"text" json:"text"`
	Type        MessageType          `bson:"type" json:"type"`
	Attachments []string             `bson:"attachments" json:"attachments"`
	ReadBy      []primitive.ObjectID `bson:"readBy" json:"readBy"`
	IsEdited    bool                 `bson:"isEdited" json:"isEdited"`
	DelBy       []DeleteMarker       `bson:"delBy" json:"delBy"`
	CreatedAt   time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// IsReadBy reports whether userID is already in the readBy set.
func (m *Message) IsReadBy(userID primitive.ObjectID) bool {
	for _, id := range m.ReadBy {
		if id == userID {
			return true
		}
	}
	return false
}

// DeletedFor reports whether userID has soft-deleted this message.
func (m *Message) DeletedFor(userID primitive.ObjectID) bool {
	for _, d := range m.DelBy {
		if d.UserID == userID {
			return true
		}
	}
	return false
}
