// Package status keeps the legacy status-check records: a client name and a
// timestamp, written and listed, unrelated to the marketing data.
package status

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sparklebrand/brand-api/internal/domain"
)

// ErrStatusFailed wraps any store failure in this package.
var ErrStatusFailed = errors.New("status check failed")

// Repository defines the data access contract for status checks.
type Repository interface {
	Insert(ctx context.Context, sc *domain.StatusCheck) error
	List(ctx context.Context, limit int) ([]domain.StatusCheck, error)
}

// Service creates and lists status checks.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a status-check service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Create stores a status check for clientName.
func (s *Service) Create(ctx context.Context, clientName string) (*domain.StatusCheck, error) {
	sc := domain.NewStatusCheck(clientName, s.now())
	if err := s.repo.Insert(ctx, sc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStatusFailed, err)
	}
	return sc, nil
}

// List returns up to domain.ListCap status checks.
func (s *Service) List(ctx context.Context) ([]domain.StatusCheck, error) {
	out, err := s.repo.List(ctx, domain.ListCap)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStatusFailed, err)
	}
	if len(out) > domain.ListCap {
		out = out[:domain.ListCap]
	}
	if out == nil {
		out = []domain.StatusCheck{}
	}
	return out, nil
}
