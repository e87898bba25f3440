// Package notify is the outbound notification collaborator. The core calls
// it fire-and-forget; delivery (mail, push) is someone else's problem.
package notify

import (
	"context"
	"log"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Notifier interface {
	Notify(ctx context.Context, userID primitive.ObjectID, kind string, payload interface{})
}

// LogNotifier records notifications to the log. Stands in until a real
// delivery backend is wired.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, userID primitive.ObjectID, kind string, _ interface{}) {
	log.Printf("notify: %s -> user %s", kind, userID.Hex())
}
