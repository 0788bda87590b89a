package purchase

import (
	"context"

	"github.com/sparklebrand/brand-api/internal/domain"
)

// Repository defines the data access contract for purchases.
type Repository interface {
	// Insert stores p unconditionally.
	Insert(ctx context.Context, p *domain.Purchase) error

	// List returns at most limit purchases in store order.
	List(ctx context.Context, limit int) ([]domain.Purchase, error)
}
