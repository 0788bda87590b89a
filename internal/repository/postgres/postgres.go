// Package postgres stores documents as JSONB rows in PostgreSQL.
//
// Each collection is a table with the marshaled record in a doc column plus
// the few columns that need indexes. subscribers.email carries a UNIQUE
// constraint so concurrent signups for one address cannot both insert.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sparklebrand/brand-api/internal/domain"
	"github.com/sparklebrand/brand-api/internal/service/subscription"
)

// Schema creates the tables. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS subscribers (
	id         TEXT PRIMARY KEY,
	email      TEXT NOT NULL UNIQUE,
	doc        JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS purchases (
	id             TEXT PRIMARY KEY,
	transaction_id TEXT NOT NULL,
	doc            JSONB NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS purchases_transaction_id_idx ON purchases (transaction_id);
CREATE TABLE IF NOT EXISTS status_checks (
	id         TEXT PRIMARY KEY,
	doc        JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// Migrate applies Schema inside a transaction.
func Migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	if _, err := tx.ExecContext(ctx, Schema); err != nil {
		tx.Rollback()
		return fmt.Errorf("apply schema: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}

// SubscriberRepo implements subscription.Repository against PostgreSQL.
type SubscriberRepo struct{ db *sql.DB }

// NewSubscriberRepo creates a Postgres-backed subscriber repository.
func NewSubscriberRepo(db *sql.DB) *SubscriberRepo { return &SubscriberRepo{db: db} }

func (r *SubscriberRepo) FindByEmail(ctx context.Context, email string) (*domain.Subscriber, error) {
	var raw []byte
	err := r.db.QueryRowContext(ctx, `SELECT doc FROM subscribers WHERE email = $1`, email).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, subscription.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find subscriber: %w", err)
	}
	var s domain.Subscriber
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode subscriber: %w", err)
	}
	return &s, nil
}

func (r *SubscriberRepo) InsertIfAbsent(ctx context.Context, s *domain.Subscriber) (*domain.Subscriber, bool, error) {
	doc, err := json.Marshal(s)
	if err != nil {
		return nil, false, fmt.Errorf("encode subscriber: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO subscribers (id, email, doc)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO NOTHING
	`, s.ID, s.Email, doc)
	if err != nil {
		return nil, false, fmt.Errorf("insert subscriber: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return s, true, nil
	}
	existing, err := r.FindByEmail(ctx, s.Email)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *SubscriberRepo) List(ctx context.Context, limit int) ([]domain.Subscriber, error) {
	return listDocs[domain.Subscriber](ctx, r.db, `SELECT doc FROM subscribers ORDER BY created_at LIMIT $1`, limit)
}

// PurchaseRepo implements purchase.Repository against PostgreSQL.
type PurchaseRepo struct{ db *sql.DB }

// NewPurchaseRepo creates a Postgres-backed purchase repository.
func NewPurchaseRepo(db *sql.DB) *PurchaseRepo { return &PurchaseRepo{db: db} }

func (r *PurchaseRepo) Insert(ctx context.Context, p *domain.Purchase) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode purchase: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO purchases (id, transaction_id, doc) VALUES ($1, $2, $3)`,
		p.ID, p.TransactionID, doc,
	)
	if err != nil {
		return fmt.Errorf("insert purchase: %w", err)
	}
	return nil
}

func (r *PurchaseRepo) List(ctx context.Context, limit int) ([]domain.Purchase, error) {
	return listDocs[domain.Purchase](ctx, r.db, `SELECT doc FROM purchases ORDER BY created_at LIMIT $1`, limit)
}

// StatusRepo implements status.Repository against PostgreSQL.
type StatusRepo struct{ db *sql.DB }

// NewStatusRepo creates a Postgres-backed status-check repository.
func NewStatusRepo(db *sql.DB) *StatusRepo { return &StatusRepo{db: db} }

func (r *StatusRepo) Insert(ctx context.Context, sc *domain.StatusCheck) error {
	doc, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("encode status check: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `INSERT INTO status_checks (id, doc) VALUES ($1, $2)`, sc.ID, doc); err != nil {
		return fmt.Errorf("insert status check: %w", err)
	}
	return nil
}

func (r *StatusRepo) List(ctx context.Context, limit int) ([]domain.StatusCheck, error) {
	return listDocs[domain.StatusCheck](ctx, r.db, `SELECT doc FROM status_checks ORDER BY created_at LIMIT $1`, limit)
}

func listDocs[T any](ctx context.Context, db *sql.DB, query string, limit int) ([]T, error) {
	rows, err := db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := make([]T, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
