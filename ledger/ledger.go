// Package ledger owns the Message lifecycle: append, edit, per-user soft
// delete vs sender hard delete, read-receipt aggregation, and re-deriving
// the room's current last message. Room records are never written directly;
// the ledger reaches them only through the PreviewUpdater hook the registry
// exposes.
package ledger

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"go-rooms/backend/apperr"
	"go-rooms/backend/fanout"
	"go-rooms/backend/models"
	"go-rooms/backend/preview"
	"go-rooms/backend/store"
)

// PreviewUpdater is the registry's narrow write surface for the
// denormalized last-message pointer.
type PreviewUpdater interface {
	SetLastMessage(ctx context.Context, roomID primitive.ObjectID, msg *models.Message) error
}

type Service struct {
	store     store.Store
	channel   fanout.Channel
	projector *preview.Projector
	rooms     PreviewUpdater
}

func New(s store.Store, ch fanout.Channel, p *preview.Projector, rooms PreviewUpdater) (*Service, error) {
	if ch == nil {
		return nil, apperr.New(apperr.Internal, "fanout channel not wired")
	}
	return &Service{store: s, channel: ch, projector: p, rooms: rooms}, nil
}

// DeleteKind tags the two deletion outcomes so callers can render without
// re-deriving the sender check.
type DeleteKind int

const (
	HardDeleted DeleteKind = iota
	SoftDeletedFor
)

// DeleteOutcome reports what Delete did. Message is nil after a hard delete;
// User is set for the soft path.
type DeleteOutcome struct {
	Kind    DeleteKind
	User    primitive.ObjectID
	Message *models.Message
}

// Append persists a message, makes it the room's last message, and fans out
// both the message itself and the updated preview tail.
func (s *Service) Append(ctx context.Context, roomID, senderID primitive.ObjectID, text string, attachments []string) (*models.Message, error) {
	if roomID.IsZero() || text == "" {
		return nil, apperr.New(apperr.InvalidArgument, "roomId and text are required")
	}
	room, err := s.store.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to look up room", err)
	}
	if room == nil {
		return nil, apperr.New(apperr.NotFound, "Room not found")
	}

	msg := &models.Message{
		ChatRoom:    roomID,
		Sender:      senderID,
		Text:        text,
		Type:        models.MessageText,
		Attachments: attachments,
		// The sender has read their own message; their unread count must
		// stay at zero.
		ReadBy: []primitive.ObjectID{senderID},
	}
	if _, err := s.store.InsertMessage(ctx, msg); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to save message", err)
	}
	if err := s.rooms.SetLastMessage(ctx, roomID, msg); err != nil {
		return nil, err
	}

	s.channel.PublishRoom(ctx, roomID, fanout.Event{
		Name: fanout.EventChatMessage,
		Payload: fanout.ChatMessagePayload{
			Action:  fanout.ActionNewMessage,
			RoomID:  roomID,
			Message: msg,
		},
	})
	s.publishTail(ctx, roomID, msg)
	return msg, nil
}

// GetMessages returns one ascending page of the room's messages. Pagination
// is offset-based; fine at this room size, not serializable under
// concurrent inserts.
func (s *Service) GetMessages(ctx context.Context, roomID primitive.ObjectID, page, limit int) ([]models.Message, error) {
	if roomID.IsZero() {
		return nil, apperr.New(apperr.InvalidArgument, "roomId is required")
	}
	messages, err := s.store.ListRoomMessages(ctx, roomID, page, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to load messages", err)
	}
	return messages, nil
}

// MarkRead set-unions the user into readBy for every message in the room.
// Calling it again is a no-op for already-read messages.
func (s *Service) MarkRead(ctx context.Context, roomID, userID primitive.ObjectID) (int64, error) {
	if roomID.IsZero() {
		return 0, apperr.New(apperr.InvalidArgument, "roomId is required")
	}
	count, err := s.store.MarkAllRead(ctx, roomID, userID)
	if err != nil {
		return 0, apperr.Wrap(apperr.Internal, "failed to mark messages read", err)
	}
	s.channel.PublishRoom(ctx, roomID, fanout.Event{
		Name:    fanout.EventMessagesRead,
		Payload: fanout.MessagesReadPayload{UserID: userID, RoomID: roomID},
	})
	return count, nil
}

// Delete removes the message outright when the requester is its sender, and
// otherwise records an idempotent per-user soft-delete marker. Either way
// the room's last message is re-derived from the store afterwards so
// concurrent deletes converge on the authoritative survivor.
func (s *Service) Delete(ctx context.Context, messageID, requesterID primitive.ObjectID) (*DeleteOutcome, error) {
	msg, err := s.store.GetMessageByID(ctx, messageID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to look up message", err)
	}
	if msg == nil {
		return nil, apperr.New(apperr.NotFound, "Message not found")
	}
	roomID := msg.ChatRoom

	var outcome *DeleteOutcome
	if msg.Sender == requesterID {
		if err := s.store.DeleteMessage(ctx, messageID); err != nil {
			return nil, apperr.Wrap(apperr.Internal, "failed to delete message", err)
		}
		outcome = &DeleteOutcome{Kind: HardDeleted}
		s.channel.PublishRoom(ctx, roomID, fanout.Event{
			Name: fanout.EventChatMessage,
			Payload: fanout.ChatMessagePayload{
				Action:    fanout.ActionDeleteMessage,
				RoomID:    roomID,
				MessageID: &messageID,
				Message:   nil,
			},
		})
	} else {
		if !msg.DeletedFor(requesterID) {
			msg.DelBy = append(msg.DelBy, models.DeleteMarker{UserID: requesterID, DeletedAt: time.Now()})
			if err := s.store.UpdateMessage(ctx, msg); err != nil {
				return nil, apperr.Wrap(apperr.Internal, "failed to mark message deleted", err)
			}
		}
		// The marker only hides the message from the deleter's own view;
		// the broadcast carries the unredacted body for everyone else.
		outcome = &DeleteOutcome{Kind: SoftDeletedFor, User: requesterID, Message: msg}
		s.channel.PublishRoom(ctx, roomID, fanout.Event{
			Name: fanout.EventChatMessage,
			Payload: fanout.ChatMessagePayload{
				Action:    fanout.ActionDeleteMessage,
				RoomID:    roomID,
				MessageID: &messageID,
				Message:   msg,
			},
		})
	}

	latest, err := s.store.LatestRoomMessage(ctx, roomID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to re-derive last message", err)
	}
	if err := s.rooms.SetLastMessage(ctx, roomID, latest); err != nil {
		return nil, err
	}
	s.publishTail(ctx, roomID, latest)
	return outcome, nil
}

// Edit applies a partial update (only provided fields change) and marks the
// message edited. A nil attachments slice means untouched; an empty non-nil
// slice clears the set. Only the original sender may edit. The room's preview
// tail is republished only when the edited message is still the most recent.
func (s *Service) Edit(ctx context.Context, messageID, requesterID primitive.ObjectID, text *string, attachments []string) (*models.Message, error) {
	msg, err := s.store.GetMessageByID(ctx, messageID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to look up message", err)
	}
	if msg == nil {
		return nil, apperr.New(apperr.NotFound, "Message not found")
	}
	if msg.Sender != requesterID {
		return nil, apperr.New(apperr.Forbidden, "You can edit only your own messages")
	}

	if text != nil {
		msg.Text = *text
	}
	if attachments != nil {
		msg.Attachments = attachments
	}
	msg.IsEdited = true
	if err := s.store.UpdateMessage(ctx, msg); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to update message", err)
	}

	s.channel.PublishRoom(ctx, msg.ChatRoom, fanout.Event{
		Name:    fanout.EventMessageEdited,
		Payload: fanout.MessageEditedPayload{RoomID: msg.ChatRoom, Message: msg},
	})

	latest, err := s.store.LatestRoomMessage(ctx, msg.ChatRoom)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to re-derive last message", err)
	}
	if latest != nil && latest.ID == msg.ID {
		if err := s.rooms.SetLastMessage(ctx, msg.ChatRoom, msg); err != nil {
			return nil, err
		}
		s.publishTail(ctx, msg.ChatRoom, msg)
	}
	return msg, nil
}

// publishTail broadcasts the room's new preview tail. A nil msg means the
// room has no messages left.
func (s *Service) publishTail(ctx context.Context, roomID primitive.ObjectID, msg *models.Message) {
	var tail *models.LastMessagePreview
	if msg != nil {
		t, err := s.projector.Tail(ctx, msg)
		if err != nil {
			// Fan-out is best-effort: the pointer is already durable, the
			// next read rebuilds the preview.
			return
		}
		tail = t
	}
	s.channel.PublishRoom(ctx, roomID, fanout.Event{
		Name: fanout.EventRoomUpdated,
		Payload: fanout.RoomUpdatedPayload{
			RoomID:      roomID,
			LastMessage: tail,
			UpdatedAt:   time.Now(),
		},
	})
}
