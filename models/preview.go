package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemberView is the per-member shape exposed in previews and status
// listings. IsAccepted derives from joinedAt being set.
type MemberView struct {
	ID           primitive.ObjectID `json:"_id"`
	Name         string             `json:"name"`
	Avatar       string             `json:"avatar"`
	Role         MemberRole         `json:"role"`
	Status       MemberStatus       `json:"status"`
	JoinedAt     *time.Time         `json:"joinedAt"`
	LastOnlineAt *time.Time         `json:"lastOnlineAt"`
	IsAccepted   bool               `json:"isAccepted"`
	Admin        bool               `json:"admin"`
}

// LastMessagePreview is the denormalized tail of a room shown in lists and
// roomUpdated payloads. Sender is nil for system messages.
type LastMessagePreview struct {
	ID        primitive.ObjectID `json:"_id"`
	Text      string             `json:"text"`
	Type      MessageType        `json:"type"`
	Sender    *UserRef           `json:"sender"`
	CreatedAt time.Time          `json:"createdAt"`
}

// RoomPreview is the derived, per-viewer summary of a room. It is never
// stored; every read path and every push payload rebuilds it from the
// Registry and Ledger state so REST and push can never drift apart.
type RoomPreview struct {
	ID            primitive.ObjectID  `json:"_id"`
	Name          string              `json:"name"`
	IsGroup       bool                `json:"isGroup"`
	Avatar        string              `json:"avatar"`
	DisplayName   string              `json:"displayName"`
	DisplayAvatar string              `json:"displayAvatar"`
	Members       []MemberView        `json:"members"`
	LastMessage   *LastMessagePreview `json:"lastMessage"`
	UnreadCount   int64               `json:"unreadCount"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}
