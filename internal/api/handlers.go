package api

import (
	"net/http"

	"github.com/sparklebrand/brand-api/internal/domain"
	"github.com/sparklebrand/brand-api/internal/pkg/httputil"
	"github.com/sparklebrand/brand-api/internal/service/purchase"
	"github.com/sparklebrand/brand-api/internal/service/status"
	"github.com/sparklebrand/brand-api/internal/service/subscription"
	"github.com/sparklebrand/brand-api/internal/validation"
)

const (
	msgSubscribed        = "Successfully subscribed! Check your email for the free checklist."
	msgAlreadySubscribed = "You're already subscribed! Check your email for the checklist."
	msgPurchased         = "Purchase successful! Check your email for download instructions."

	errSubscribe       = "Failed to process subscription"
	errPurchase        = "Failed to process purchase"
	errListSubscribers = "Failed to fetch subscribers"
	errListPurchases   = "Failed to fetch purchases"
	errStatusCheck     = "Failed to process status check"
)

// Handlers holds the services behind the /api routes.
type Handlers struct {
	subscriptions *subscription.Service
	purchases     *purchase.Service
	statusChecks  *status.Service
	defaultEmail  string
}

// NewHandlers creates the handler set. defaultEmail fills in a purchase
// without customer_email.
func NewHandlers(subs *subscription.Service, purchases *purchase.Service, checks *status.Service, defaultEmail string) *Handlers {
	if defaultEmail == "" {
		defaultEmail = domain.DefaultOwnerEmail
	}
	return &Handlers{
		subscriptions: subs,
		purchases:     purchases,
		statusChecks:  checks,
		defaultEmail:  defaultEmail,
	}
}

type subscribeResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	SubscriberID string `json:"subscriber_id"`
}

type purchaseResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	TransactionID string `json:"transaction_id"`
}

type subscribersResponse struct {
	Success     bool                `json:"success"`
	Count       int                 `json:"count"`
	Subscribers []domain.Subscriber `json:"subscribers"`
}

type purchasesResponse struct {
	Success   bool              `json:"success"`
	Count     int               `json:"count"`
	Purchases []domain.Purchase `json:"purchases"`
}

// Root handles GET /api/.
func (h *Handlers) Root(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{"message": "Hello World"})
}

// Subscribe handles POST /api/subscribe.
func (h *Handlers) Subscribe(w http.ResponseWriter, r *http.Request) {
	req, err := validation.DecodeSubscribe(r.Body)
	if err != nil {
		writeError(w, r, err, errSubscribe)
		return
	}

	res, err := h.subscriptions.Subscribe(r.Context(), req.Email)
	if err != nil {
		writeError(w, r, err, errSubscribe)
		return
	}

	msg := msgSubscribed
	if !res.Created {
		msg = msgAlreadySubscribed
	}
	httputil.OK(w, subscribeResponse{Success: true, Message: msg, SubscriberID: res.Subscriber.ID})
}

// Purchase handles POST /api/purchase.
func (h *Handlers) Purchase(w http.ResponseWriter, r *http.Request) {
	in, err := validation.DecodePurchase(r.Body, h.defaultEmail)
	if err != nil {
		writeError(w, r, err, errPurchase)
		return
	}

	p, err := h.purchases.Record(r.Context(), in.CustomerEmail, in.Product, in.Price)
	if err != nil {
		writeError(w, r, err, errPurchase)
		return
	}
	httputil.OK(w, purchaseResponse{Success: true, Message: msgPurchased, TransactionID: p.TransactionID})
}

// ListSubscribers handles GET /api/subscribers.
func (h *Handlers) ListSubscribers(w http.ResponseWriter, r *http.Request) {
	subs, err := h.subscriptions.List(r.Context())
	if err != nil {
		writeError(w, r, err, errListSubscribers)
		return
	}
	httputil.OK(w, subscribersResponse{Success: true, Count: len(subs), Subscribers: subs})
}

// ListPurchases handles GET /api/purchases.
func (h *Handlers) ListPurchases(w http.ResponseWriter, r *http.Request) {
	purchases, err := h.purchases.List(r.Context())
	if err != nil {
		writeError(w, r, err, errListPurchases)
		return
	}
	httputil.OK(w, purchasesResponse{Success: true, Count: len(purchases), Purchases: purchases})
}

// CreateStatusCheck handles POST /api/status.
func (h *Handlers) CreateStatusCheck(w http.ResponseWriter, r *http.Request) {
	req, err := validation.DecodeStatusCheck(r.Body)
	if err != nil {
		writeError(w, r, err, errStatusCheck)
		return
	}
	sc, err := h.statusChecks.Create(r.Context(), req.ClientName)
	if err != nil {
		writeError(w, r, err, errStatusCheck)
		return
	}
	httputil.OK(w, sc)
}

// ListStatusChecks handles GET /api/status.
func (h *Handlers) ListStatusChecks(w http.ResponseWriter, r *http.Request) {
	checks, err := h.statusChecks.List(r.Context())
	if err != nil {
		writeError(w, r, err, errStatusCheck)
		return
	}
	httputil.OK(w, checks)
}
