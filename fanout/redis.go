package fanout

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	roomChannelPrefix = "chat.room."
	userChannelPrefix = "chat.user."
)

// RedisChannel publishes events over Redis pub/sub so every node's hub sees
// them. Publish errors are logged and swallowed: the state change already
// happened and the store is the source of truth.
type RedisChannel struct {
	client *redis.Client
}

func NewRedisChannel(client *redis.Client) *RedisChannel {
	return &RedisChannel{client: client}
}

func (c *RedisChannel) PublishRoom(ctx context.Context, roomID primitive.ObjectID, event Event) {
	c.publish(ctx, roomChannelPrefix+roomID.Hex(), event)
}

func (c *RedisChannel) PublishUser(ctx context.Context, userID primitive.ObjectID, event Event) {
	c.publish(ctx, userChannelPrefix+userID.Hex(), event)
}

func (c *RedisChannel) publish(ctx context.Context, channel string, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("fanout: marshal %s event: %v", event.Name, err)
		return
	}
	if err := c.client.Publish(ctx, channel, data).Err(); err != nil {
		log.Printf("fanout: publish to %s: %v", channel, err)
	}
}

// Subscriber bridges Redis pub/sub back into the local hub.
type Subscriber struct {
	client *redis.Client
	sink   Sink
}

func NewSubscriber(client *redis.Client, sink Sink) *Subscriber {
	return &Subscriber{client: client, sink: sink}
}

// Run blocks, routing incoming events to the sink until ctx is cancelled.
func (s *Subscriber) Run(ctx context.Context) {
	pubsub := s.client.PSubscribe(ctx, roomChannelPrefix+"*", userChannelPrefix+"*")
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			switch {
			case strings.HasPrefix(msg.Channel, roomChannelPrefix):
				s.sink.DeliverRoom(strings.TrimPrefix(msg.Channel, roomChannelPrefix), []byte(msg.Payload))
			case strings.HasPrefix(msg.Channel, userChannelPrefix):
				s.sink.DeliverUser(strings.TrimPrefix(msg.Channel, userChannelPrefix), []byte(msg.Payload))
			}
		}
	}
}
