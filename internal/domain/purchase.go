package domain

import (
	"encoding/binary"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PurchaseStatus enumerates purchase states. Only PurchaseCompleted is ever
// written; there is no refund or cancellation flow.
type PurchaseStatus string

const (
	PurchaseCompleted PurchaseStatus = "completed"
)

// DefaultOwnerEmail receives every owner notification and is the fallback
// customer email on purchases that omit one.
const DefaultOwnerEmail = "sammy.sparkleee@gmail.com"

// TransactionPrefix starts every generated transaction id.
const TransactionPrefix = "TXN_"

// Purchase is a receipt record of one e-book sale. It is not a payment
// authorization: price is whatever the client sent.
type Purchase struct {
	ID            string         `json:"id" bson:"id" dynamodbav:"id"`
	CustomerEmail string         `json:"customer_email" bson:"customer_email" dynamodbav:"customer_email"`
	ProductName   string         `json:"product_name" bson:"product_name" dynamodbav:"product_name"`
	Price         float64        `json:"price" bson:"price" dynamodbav:"price"`
	TransactionID string         `json:"transaction_id" bson:"transaction_id" dynamodbav:"transaction_id"`
	PurchasedAt   time.Time      `json:"purchased_at" bson:"purchased_at" dynamodbav:"purchased_at"`
	Status        PurchaseStatus `json:"status" bson:"status" dynamodbav:"status"`
}

// txnSpace is 36^8, the number of distinct 8-character base36 suffixes.
const txnSpace = 2821109907456

// NewTransactionID returns "TXN_" followed by eight upper-case base36
// characters drawn from the first 64 bits of a random UUID.
func NewTransactionID() string {
	u := uuid.New()
	n := binary.BigEndian.Uint64(u[:8]) % txnSpace
	suffix := strings.ToUpper(strconv.FormatUint(n, 36))
	return TransactionPrefix + strings.Repeat("0", 8-len(suffix)) + suffix
}
