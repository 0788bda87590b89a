package purchase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sparklebrand/brand-api/internal/domain"
	"github.com/sparklebrand/brand-api/internal/pkg/logger"
)

// Notifier is the owner notification sink.
type Notifier interface {
	Notify(ctx context.Context, subject, body, recipient string) bool
}

// Recorder receives purchase outcomes for metrics. Optional.
type Recorder interface {
	PurchaseRecorded(price float64)
}

// Service implements purchase business logic.
type Service struct {
	repo       Repository
	notifier   Notifier
	recorder   Recorder
	ownerEmail string
	now        func() time.Time
	newTxnID   func() string
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithTransactionIDs overrides the transaction id generator.
func WithTransactionIDs(gen func() string) Option { return func(s *Service) { s.newTxnID = gen } }

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option { return func(s *Service) { s.recorder = r } }

// NewService creates a purchase service. Purchase notifications go to
// ownerEmail, or domain.DefaultOwnerEmail when empty.
func NewService(repo Repository, notifier Notifier, ownerEmail string, opts ...Option) *Service {
	if ownerEmail == "" {
		ownerEmail = domain.DefaultOwnerEmail
	}
	s := &Service{
		repo:       repo,
		notifier:   notifier,
		ownerEmail: ownerEmail,
		now:        time.Now,
		newTxnID:   domain.NewTransactionID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PurchaseSubject is the subject line of purchase notifications.
const PurchaseSubject = "💰 New eBook Purchase - TikTok 150K Playbook"

// Record persists a completed purchase and notifies the owner.
func (s *Service) Record(ctx context.Context, customerEmail, productName string, price float64) (*domain.Purchase, error) {
	p := &domain.Purchase{
		ID:            uuid.New().String(),
		CustomerEmail: customerEmail,
		ProductName:   productName,
		Price:         price,
		TransactionID: s.newTxnID(),
		PurchasedAt:   s.now().UTC(),
		Status:        domain.PurchaseCompleted,
	}

	if err := s.repo.Insert(ctx, p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPurchaseFailed, err)
	}
	if s.recorder != nil {
		s.recorder.PurchaseRecorded(p.Price)
	}

	if s.notifier != nil {
		s.notifier.Notify(ctx, PurchaseSubject, notificationBody(p), s.ownerEmail)
	}
	logger.Info("new purchase", "product", p.ProductName, "customer_email", p.CustomerEmail, "transaction_id", p.TransactionID)

	return p, nil
}

func notificationBody(p *domain.Purchase) string {
	return fmt.Sprintf(`New purchase details:

Product: %s
Price: $%.2f AUD
Customer Email: %s
Transaction ID: %s
Purchase Time: %s

Please send the eBook to the customer's email address.`,
		p.ProductName, p.Price, p.CustomerEmail, p.TransactionID, p.PurchasedAt.Format(time.RFC3339))
}

// List returns up to domain.ListCap purchases.
func (s *Service) List(ctx context.Context) ([]domain.Purchase, error) {
	ps, err := s.repo.List(ctx, domain.ListCap)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrListFailed, err)
	}
	if len(ps) > domain.ListCap {
		ps = ps[:domain.ListCap]
	}
	if ps == nil {
		ps = []domain.Purchase{}
	}
	return ps, nil
}
