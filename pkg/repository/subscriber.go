package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/umputun/examdigest/pkg/domain"
)

// ErrNotFound is returned for lookups of unknown subscribers
var ErrNotFound = errors.New("not found")

// SubscriberRepository handles subscriber-related database operations
type SubscriberRepository struct {
	db *sqlx.DB
}

type subscriberSQL struct {
	ID        int64       `db:"id"`
	Email     string      `db:"email"`
	Exams     stringsJSON `db:"exams"`
	Active    bool        `db:"active"`
	Verified  bool        `db:"verified"`
	CreatedAt time.Time   `db:"created_at"`
}

// NewSubscriberRepository creates a new subscriber repository
func NewSubscriberRepository(database *sqlx.DB) *SubscriberRepository {
	return &SubscriberRepository{db: database}
}

// Upsert creates a subscriber or merges exam selections into an existing
// record with the same email. A repeat signup also reactivates a previously
// unsubscribed address. Returns the stored subscriber and whether the row
// was newly created.
func (r *SubscriberRepository) Upsert(ctx context.Context, email string, exams []string) (*domain.Subscriber, bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, false, fmt.Errorf("email is required")
	}
	if len(exams) == 0 {
		return nil, false, fmt.Errorf("at least one exam is required")
	}

	existing, err := r.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, ErrNotFound):
		sub := &domain.Subscriber{Email: email, Exams: domain.UniqueTags(exams), Active: true}
		res, err := r.db.ExecContext(ctx,
			"INSERT INTO subscribers (email, exams, active) VALUES (?, ?, 1)",
			email, stringsJSON(sub.Exams))
		if err != nil {
			if isUniqueViolation(err) {
				// lost a race with a concurrent signup, merge instead
				return r.Upsert(ctx, email, exams)
			}
			return nil, false, fmt.Errorf("create subscriber: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, false, fmt.Errorf("get insert id: %w", err)
		}
		sub.ID = id
		return sub, true, nil

	case err != nil:
		return nil, false, err

	default:
		merged := domain.UniqueTags(existing.Exams, exams)
		_, err := r.db.ExecContext(ctx,
			"UPDATE subscribers SET exams = ?, active = 1 WHERE id = ?",
			stringsJSON(merged), existing.ID)
		if err != nil {
			return nil, false, fmt.Errorf("merge subscriber exams: %w", err)
		}
		existing.Exams = merged
		existing.Active = true
		return existing, false, nil
	}
}

// GetByEmail retrieves a subscriber by email
func (r *SubscriberRepository) GetByEmail(ctx context.Context, email string) (*domain.Subscriber, error) {
	var s subscriberSQL
	err := r.db.GetContext(ctx, &s,
		"SELECT * FROM subscribers WHERE email = ?", strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get subscriber: %w", err)
	}
	return toDomainSubscriber(&s), nil
}

// GetActive retrieves active subscribers; verifiedOnly additionally requires
// the verified flag (relaxed for explicit one-off test triggers)
func (r *SubscriberRepository) GetActive(ctx context.Context, verifiedOnly bool) ([]*domain.Subscriber, error) {
	query := "SELECT * FROM subscribers WHERE active = 1"
	if verifiedOnly {
		query += " AND verified = 1"
	}
	query += " ORDER BY id"

	var rows []subscriberSQL
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("get active subscribers: %w", err)
	}

	subs := make([]*domain.Subscriber, len(rows))
	for i := range rows {
		subs[i] = toDomainSubscriber(&rows[i])
	}
	return subs, nil
}

// Deactivate clears the active flag, keeping the record (soft delete)
func (r *SubscriberRepository) Deactivate(ctx context.Context, email string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE subscribers SET active = 0 WHERE email = ?",
		strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return fmt.Errorf("deactivate subscriber: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetVerified updates the verified flag for a subscriber
func (r *SubscriberRepository) SetVerified(ctx context.Context, email string, verified bool) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE subscribers SET verified = ? WHERE email = ?",
		verified, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return fmt.Errorf("set verified: %w", err)
	}
	return nil
}

func toDomainSubscriber(s *subscriberSQL) *domain.Subscriber {
	return &domain.Subscriber{
		ID:        s.ID,
		Email:     s.Email,
		Exams:     s.Exams,
		Active:    s.Active,
		Verified:  s.Verified,
		CreatedAt: s.CreatedAt,
	}
}
