package alerts

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a subscription does not exist.
var ErrNotFound = errors.New("subscription not found")

// SubscriptionRepository persists webhook subscriptions and delivery records.
type SubscriptionRepository struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepository(pool *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{pool: pool}
}

func (r *SubscriptionRepository) Create(ctx context.Context, sub *Subscription) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO webhook_subscriptions (id, user_id, url, events, secret, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sub.ID, sub.UserID, sub.URL, sub.Events, sub.Secret, sub.Active, sub.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

func (r *SubscriptionRepository) GetByID(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, url, events, secret, active, created_at
		FROM webhook_subscriptions WHERE id = $1`, id)

	var sub Subscription
	err := row.Scan(&sub.ID, &sub.UserID, &sub.URL, &sub.Events, &sub.Secret, &sub.Active, &sub.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return &sub, nil
}

func (r *SubscriptionRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*Subscription, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, url, events, secret, active, created_at
		FROM webhook_subscriptions WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

// ListByEvent returns active subscriptions for a user that include the event type.
func (r *SubscriptionRepository) ListByEvent(ctx context.Context, userID uuid.UUID, eventType string) ([]*Subscription, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, url, events, secret, active, created_at
		FROM webhook_subscriptions
		WHERE user_id = $1 AND active AND $2 = ANY(events)`, userID, eventType)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions by event: %w", err)
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

func (r *SubscriptionRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM webhook_subscriptions WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SubscriptionRepository) RecordDelivery(ctx context.Context, d *Delivery) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO webhook_deliveries (id, subscription_id, event_type, status_code, attempt, success, error_message, delivered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		d.ID, d.SubscriptionID, d.EventType, d.StatusCode, d.Attempt, d.Success, d.ErrorMessage, d.DeliveredAt)
	if err != nil {
		return fmt.Errorf("record delivery: %w", err)
	}
	return nil
}

func (r *SubscriptionRepository) ListDeliveries(ctx context.Context, subscriptionID uuid.UUID, limit int) ([]*Delivery, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, subscription_id, event_type, status_code, attempt, success, error_message, delivered_at
		FROM webhook_deliveries WHERE subscription_id = $1
		ORDER BY delivered_at DESC LIMIT $2`, subscriptionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	var out []*Delivery
	for rows.Next() {
		var d Delivery
		if err := rows.Scan(&d.ID, &d.SubscriptionID, &d.EventType, &d.StatusCode, &d.Attempt, &d.Success, &d.ErrorMessage, &d.DeliveredAt); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

func scanSubscriptions(rows pgx.Rows) ([]*Subscription, error) {
	var out []*Subscription
	for rows.Next() {
		var sub Subscription
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.URL, &sub.Events, &sub.Secret, &sub.Active, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		out = append(out, &sub)
	}
	return out, rows.Err()
}
