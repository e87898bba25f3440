package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"go-rooms/backend/models"
)

func (s *Store) InsertRoom(ctx context.Context, room *models.ChatRoom) (primitive.ObjectID, error) {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	now := time.Now()
	room.CreatedAt = now
	room.UpdatedAt = now
	res, err := s.rooms().InsertOne(ctx, room)
	if err != nil {
		return primitive.NilObjectID, err
	}
	room.ID = res.InsertedID.(primitive.ObjectID)
	return room.ID, nil
}

func (s *Store) GetRoomByID(ctx context.Context, id primitive.ObjectID) (*models.ChatRoom, error) {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	var room models.ChatRoom
	err := s.rooms().FindOne(ctx, bson.M{"_id": id}).Decode(&room)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (s *Store) GetRoomsByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.ChatRoom, error) {
	if len(ids) == 0 {
		return []models.ChatRoom{}, nil
	}
	ctx, cancel := opCtx(ctx)
	defer cancel()

	cursor, err := s.rooms().Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rooms []models.ChatRoom
	if err := cursor.All(ctx, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

func (s *Store) FindDirectRoom(ctx context.Context, a, b primitive.ObjectID) (*models.ChatRoom, error) {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	filter := bson.M{
		"isGroup": false,
		"members": bson.M{"$all": []primitive.ObjectID{a, b}, "$size": 2},
	}
	var room models.ChatRoom
	err := s.rooms().FindOne(ctx, filter).Decode(&room)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (s *Store) FindGroupRoom(ctx context.Context, name string, members []primitive.ObjectID) (*models.ChatRoom, error) {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	filter := bson.M{
		"isGroup": true,
		"name":    name,
		"members": bson.M{"$all": members, "$size": len(members)},
	}
	var room models.ChatRoom
	err := s.rooms().FindOne(ctx, filter).Decode(&room)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (s *Store) AddRoomMember(ctx context.Context, roomID, userID primitive.ObjectID) error {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	_, err := s.rooms().UpdateOne(ctx, bson.M{"_id": roomID}, bson.M{
		"$addToSet": bson.M{"members": userID},
		"$set":      bson.M{"updatedAt": time.Now()},
	})
	return err
}

func (s *Store) RemoveRoomMember(ctx context.Context, roomID, userID primitive.ObjectID) error {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	_, err := s.rooms().UpdateOne(ctx, bson.M{"_id": roomID}, bson.M{
		"$pull": bson.M{"members": userID},
		"$set":  bson.M{"updatedAt": time.Now()},
	})
	return err
}

func (s *Store) SetLastMessage(ctx context.Context, roomID primitive.ObjectID, messageID *primitive.ObjectID, at time.Time) error {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	update := bson.M{"$set": bson.M{"updatedAt": at}}
	if messageID == nil {
		update["$unset"] = bson.M{"lastMessage": ""}
	} else {
		update["$set"].(bson.M)["lastMessage"] = *messageID
	}
	_, err := s.rooms().UpdateOne(ctx, bson.M{"_id": roomID}, update)
	return err
}

// DeleteRoom is delete-if-exists: a cascade racing another cascade must not
// fail on the second pass.
func (s *Store) DeleteRoom(ctx context.Context, roomID primitive.ObjectID) error {
	ctx, cancel := opCtx(ctx)
	defer cancel()

	_, err := s.rooms().DeleteOne(ctx, bson.M{"_id": roomID})
	return err
}
