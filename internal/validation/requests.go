package validation

import (
	"encoding/json"
	"io"
	"strings"
)

// SubscribeRequest is the body of POST /subscribe.
type SubscribeRequest struct {
	Email string `json:"email" validate:"required,email,dotted_domain"`
}

// DecodeSubscribe parses and validates a subscription request. The returned
// email is normalized with NormalizeEmail.
func DecodeSubscribe(r io.Reader) (*SubscribeRequest, error) {
	var req SubscribeRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	req.Email = NormalizeEmail(req.Email)
	if err := check(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

// PurchaseRequest is the body of POST /purchase. Price accepts a JSON number
// or a numeric string.
type PurchaseRequest struct {
	Product       string       `json:"product" validate:"required"`
	Price         *json.Number `json:"price" validate:"required"`
	CustomerEmail *string      `json:"customer_email"`
}

// PurchaseInput is a validated purchase request.
type PurchaseInput struct {
	Product       string
	Price         float64
	CustomerEmail string
}

// DecodePurchase parses and validates a purchase request. A missing
// customer_email becomes defaultEmail. customer_email is not checked for
// address syntax.
func DecodePurchase(r io.Reader, defaultEmail string) (*PurchaseInput, error) {
	var req PurchaseRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	if err := check(&req); err != nil {
		return nil, err
	}
	price, err := req.Price.Float64()
	if err != nil {
		return nil, fieldError("price", "value is not a valid number")
	}

	in := &PurchaseInput{
		Product:       req.Product,
		Price:         price,
		CustomerEmail: defaultEmail,
	}
	if req.CustomerEmail != nil {
		in.CustomerEmail = *req.CustomerEmail
	}
	return in, nil
}

// StatusCheckRequest is the body of POST /status.
type StatusCheckRequest struct {
	ClientName string `json:"client_name" validate:"required"`
}

// DecodeStatusCheck parses and validates a status check request.
func DecodeStatusCheck(r io.Reader) (*StatusCheckRequest, error) {
	var req StatusCheckRequest
	if err := decode(r, &req); err != nil {
		return nil, err
	}
	req.ClientName = strings.TrimSpace(req.ClientName)
	if err := check(&req); err != nil {
		return nil, err
	}
	return &req, nil
}
