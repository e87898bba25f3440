package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"go-rooms/backend/models"
)

func (s *Store) InsertMessage(ctx context.Context, msg *models.Message) (primitive.ObjectID, error) {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	now := time.Now()
	msg.CreatedAt = now
	msg.UpdatedAt = now
	if msg.Attachments == nil {
		msg.Attachments = []string{}
	}
	if msg.ReadBy == nil {
		msg.ReadBy = []primitive.ObjectID{}
	}
	if msg.DelBy == nil {
		msg.DelBy = []models.DeleteMarker{}
	}
	res, err := s.messages().InsertOne(ctx, msg)
	if err != nil {
		return primitive.NilObjectID, err
	}
	msg.ID = res.InsertedID.(primitive.ObjectID)
	return msg.ID, nil
}

func (s *Store) GetMessageByID(ctx context.Context, id primitive.ObjectID) (*models.Message, error) {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	var msg models.Message
	err := s.messages().FindOne(ctx, bson.M{"_id": id}).Decode(&msg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *Store) ListRoomMessages(ctx context.Context, roomID primitive.ObjectID, page, limit int) ([]models.Message, error) {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 20
	}
	if page <= 0 {
		page = 1
	}
	findOpts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cursor, err := s.messages().Find(ctx, bson.M{"chatRoom": roomID}, findOpts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var messages []models.Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *Store) LatestRoomMessage(ctx context.Context, roomID primitive.ObjectID) (*models.Message, error) {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	findOpts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	var msg models.Message
	err := s.messages().FindOne(ctx, bson.M{"chatRoom": roomID}, findOpts).Decode(&msg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// MarkAllRead relies on $addToSet so re-running it never duplicates entries
// or changes already-read messages.
func (s *Store) MarkAllRead(ctx context.Context, roomID, userID primitive.ObjectID) (int64, error) {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	res, err := s.messages().UpdateMany(ctx,
		bson.M{"chatRoom": roomID, "readBy": bson.M{"$ne": userID}},
		bson.M{"$addToSet": bson.M{"readBy": userID}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (s *Store) UpdateMessage(ctx context.Context, msg *models.Message) error {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	msg.UpdatedAt = time.Now()
	_, err := s.messages().ReplaceOne(ctx, bson.M{"_id": msg.ID}, msg)
	return err
}

func (s *Store) DeleteMessage(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	_, err := s.messages().DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (s *Store) CountUnread(ctx context.Context, roomID, userID primitive.ObjectID) (int64, error) {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	return s.messages().CountDocuments(ctx, bson.M{
		"chatRoom": roomID,
		"type":     bson.M{"$ne": models.MessageSystem},
		"readBy":   bson.M{"$ne": userID},
	})
}

func (s *Store) DeleteRoomMessages(ctx context.Context, roomID primitive.ObjectID) error {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	_, err := s.messages().DeleteMany(ctx, bson.M{"chatRoom": roomID})
	return err
}
