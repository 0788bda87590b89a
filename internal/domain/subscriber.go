package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriberStatus enumerates the states a subscriber can be in. Only
// SubscriberActive is ever written; there is no unsubscribe flow.
type SubscriberStatus string

const (
	SubscriberActive SubscriberStatus = "active"
)

// SubscriberSource tags the acquisition funnel for every list signup.
const SubscriberSource = "viral_hooks_checklist"

// ListCap is the maximum number of records any admin listing returns.
const ListCap = 1000

// Subscriber represents one email address opted into the marketing list.
// Email is the natural dedup key.
type Subscriber struct {
	ID           string           `json:"id" bson:"id" dynamodbav:"id"`
	Email        string           `json:"email" bson:"email" dynamodbav:"email"`
	Source       string           `json:"source" bson:"source" dynamodbav:"source"`
	SubscribedAt time.Time        `json:"subscribed_at" bson:"subscribed_at" dynamodbav:"subscribed_at"`
	Status       SubscriberStatus `json:"status" bson:"status" dynamodbav:"status"`
}

// NewSubscriber builds an active subscriber for email, stamped now.
func NewSubscriber(email string, now time.Time) *Subscriber {
	return &Subscriber{
		ID:           uuid.New().String(),
		Email:        email,
		Source:       SubscriberSource,
		SubscribedAt: now.UTC(),
		Status:       SubscriberActive,
	}
}
