package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/umputun/examdigest/pkg/domain"
)

// DeliveryLogRepository handles the append-only delivery log
type DeliveryLogRepository struct {
	db *sqlx.DB
}

type deliveryLogSQL struct {
	ID           int64     `db:"id"`
	SubscriberID int64     `db:"subscriber_id"`
	Email        string    `db:"email"`
	Subject      string    `db:"subject"`
	ItemCount    int       `db:"item_count"`
	Status       string    `db:"status"`
	CreatedAt    time.Time `db:"created_at"`
}

// NewDeliveryLogRepository creates a new delivery log repository
func NewDeliveryLogRepository(database *sqlx.DB) *DeliveryLogRepository {
	return &DeliveryLogRepository{db: database}
}

// Add appends a delivery log entry; entries are never updated or deleted
func (r *DeliveryLogRepository) Add(ctx context.Context, entry *domain.DeliveryLog) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO delivery_log (subscriber_id, email, subject, item_count, status)
		VALUES (?, ?, ?, ?, ?)`,
		entry.SubscriberID, entry.Email, entry.Subject, entry.ItemCount, entry.Status)
	if err != nil {
		return fmt.Errorf("add delivery log: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("get insert id: %w", err)
	}
	entry.ID = id
	return nil
}

// ListByEmail returns delivery log entries for an email, newest first
func (r *DeliveryLogRepository) ListByEmail(ctx context.Context, email string, limit int) ([]*domain.DeliveryLog, error) {
	var rows []deliveryLogSQL
	err := r.db.SelectContext(ctx, &rows,
		"SELECT * FROM delivery_log WHERE email = ? ORDER BY id DESC LIMIT ?", email, limit)
	if err != nil {
		return nil, fmt.Errorf("list delivery log: %w", err)
	}

	entries := make([]*domain.DeliveryLog, len(rows))
	for i, row := range rows {
		entries[i] = &domain.DeliveryLog{
			ID:           row.ID,
			SubscriberID: row.SubscriberID,
			Email:        row.Email,
			Subject:      row.Subject,
			ItemCount:    row.ItemCount,
			Status:       row.Status,
			CreatedAt:    row.CreatedAt,
		}
	}
	return entries, nil
}

// ExamRequestRepository records exam coverage requests
type ExamRequestRepository struct {
	db *sqlx.DB
}

// NewExamRequestRepository creates a new exam request repository
func NewExamRequestRepository(database *sqlx.DB) *ExamRequestRepository {
	return &ExamRequestRepository{db: database}
}

// Add records an exam coverage request; intake is acknowledgement only
func (r *ExamRequestRepository) Add(ctx context.Context, req *domain.ExamRequest) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO exam_requests (exam, sources, email) VALUES (?, ?, ?)",
		req.Exam, req.Sources, req.Email)
	if err != nil {
		return fmt.Errorf("add exam request: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("get insert id: %w", err)
	}
	req.ID = id
	return nil
}
