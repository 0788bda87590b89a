package domain

import (
	"time"

	"github.com/google/uuid"
)

// StatusCheck is a legacy connectivity probe record. It has no relationship
// to subscribers or purchases.
type StatusCheck struct {
	ID         string    `json:"id" bson:"id" dynamodbav:"id"`
	ClientName string    `json:"client_name" bson:"client_name" dynamodbav:"client_name"`
	Timestamp  time.Time `json:"timestamp" bson:"timestamp" dynamodbav:"timestamp"`
}

// NewStatusCheck stamps a status check for clientName.
func NewStatusCheck(clientName string, now time.Time) *StatusCheck {
	return &StatusCheck{
		ID:         uuid.New().String(),
		ClientName: clientName,
		Timestamp:  now.UTC(),
	}
}
