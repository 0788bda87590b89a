package subscription

import (
	"context"

	"github.com/sparklebrand/brand-api/internal/domain"
)

// Repository defines the data access contract for subscribers.
type Repository interface {
	// FindByEmail returns the subscriber for email, or ErrNotFound.
	FindByEmail(ctx context.Context, email string) (*domain.Subscriber, error)

	// InsertIfAbsent stores s unless a subscriber with the same email already
	// exists. It returns the stored record and whether s was the one written.
	// Implementations must make this atomic at the store level.
	InsertIfAbsent(ctx context.Context, s *domain.Subscriber) (*domain.Subscriber, bool, error)

	// List returns at most limit subscribers in store order.
	List(ctx context.Context, limit int) ([]domain.Subscriber, error)
}
