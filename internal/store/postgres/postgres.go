// Package postgres is the PostgreSQL store adapter, for deployments where
// multiple readers share one subscription database.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/opencourt/courtwatch/internal/model"
	"github.com/opencourt/courtwatch/internal/store"
)

// Open opens a PostgreSQL connection using the pgx stdlib driver and
// verifies connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// EnsureSchema creates the tables when they do not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS subscriptions (
    id                           TEXT PRIMARY KEY,
    owner_id                     TEXT NOT NULL,
    email                        TEXT NOT NULL,
    source_preferences           JSONB NOT NULL,
    preferred_times              JSONB NOT NULL,
    min_slot_duration_minutes    INTEGER NOT NULL,
    expiry_date                  TIMESTAMPTZ,
    max_notifications_per_day    INTEGER NOT NULL,
    notification_frequency_hours INTEGER NOT NULL,
    status                       TEXT NOT NULL,
    creation_time                TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_subscriptions_owner  ON subscriptions(owner_id);
CREATE INDEX IF NOT EXISTS idx_subscriptions_status ON subscriptions(status);

CREATE TABLE IF NOT EXISTS notification_records (
    id              TEXT PRIMARY KEY,
    subscription_id TEXT NOT NULL,
    sent_at         TIMESTAMPTZ NOT NULL,
    windows         JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_records_sub_time ON notification_records(subscription_id, sent_at);
`)
	return err
}

// NewWithDB constructs a Postgres store backed by database/sql.
func NewWithDB(db *sql.DB) store.Store { return &pgStore{db: db} }

type pgStore struct{ db *sql.DB }

func (s *pgStore) Subscriptions() store.Subscriptions { return &subscriptions{db: s.db} }
func (s *pgStore) Notifications() store.Notifications { return &notifications{db: s.db} }
func (s *pgStore) Ping(ctx context.Context) error     { return s.db.PingContext(ctx) }
func (s *pgStore) Close() error                       { return s.db.Close() }

type subscriptions struct{ db *sql.DB }

func (r *subscriptions) Create(ctx context.Context, sub *model.Subscription) (*model.Subscription, error) {
	prefs, err := json.Marshal(sub.SourcePreferences)
	if err != nil {
		return nil, err
	}
	times, err := json.Marshal(sub.PreferredTimes)
	if err != nil {
		return nil, err
	}
	_, err = r.db.ExecContext(ctx, `
        INSERT INTO subscriptions
            (id, owner_id, email, source_preferences, preferred_times,
             min_slot_duration_minutes, expiry_date, max_notifications_per_day,
             notification_frequency_hours, status, creation_time)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		sub.ID, sub.OwnerID, sub.Email, prefs, times,
		sub.MinSlotDurationMinutes, sub.ExpiryDate, sub.MaxNotificationsPerDay,
		sub.NotificationFrequencyHours, string(sub.Status), sub.CreationTime)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("subscription %s: %w", sub.ID, model.ErrConflict)
		}
		return nil, err
	}
	out := *sub
	return &out, nil
}

// isUniqueViolation reports whether err is a unique constraint failure
// (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

const subscriptionCols = `id, owner_id, email, source_preferences, preferred_times,
    min_slot_duration_minutes, expiry_date, max_notifications_per_day,
    notification_frequency_hours, status, creation_time`

func scanSubscription(row interface{ Scan(...any) error }) (*model.Subscription, error) {
	var (
		sub          model.Subscription
		prefs, times []byte
		status       string
	)
	err := row.Scan(&sub.ID, &sub.OwnerID, &sub.Email, &prefs, &times,
		&sub.MinSlotDurationMinutes, &sub.ExpiryDate, &sub.MaxNotificationsPerDay,
		&sub.NotificationFrequencyHours, &status, &sub.CreationTime)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(prefs, &sub.SourcePreferences); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(times, &sub.PreferredTimes); err != nil {
		return nil, err
	}
	sub.Status = model.SubscriptionStatus(status)
	return &sub, nil
}

func (r *subscriptions) Get(ctx context.Context, id string) (*model.Subscription, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+subscriptionCols+` FROM subscriptions WHERE id=$1`, id)
	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	return sub, err
}

func (r *subscriptions) list(ctx context.Context, where string, args ...any) ([]*model.Subscription, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+subscriptionCols+` FROM subscriptions `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (r *subscriptions) ListByOwner(ctx context.Context, ownerID string) ([]*model.Subscription, error) {
	return r.list(ctx, `WHERE owner_id=$1`, ownerID)
}

func (r *subscriptions) ListActive(ctx context.Context) ([]*model.Subscription, error) {
	return r.list(ctx, `WHERE status=$1`, string(model.SubscriptionActive))
}

func (r *subscriptions) UpdateStatus(ctx context.Context, id string, status model.SubscriptionStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE subscriptions SET status=$1 WHERE id=$2`, string(status), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

type notifications struct{ db *sql.DB }

func (r *notifications) Append(ctx context.Context, rec *model.NotificationRecord) error {
	windows, err := json.Marshal(rec.Windows)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
        INSERT INTO notification_records (id, subscription_id, sent_at, windows)
        VALUES ($1,$2,$3,$4)`,
		rec.ID, rec.SubscriptionID, rec.SentAt, windows)
	return err
}

func (r *notifications) Query(ctx context.Context, subscriptionID string, since time.Time) ([]*model.NotificationRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT id, subscription_id, sent_at, windows
        FROM notification_records
        WHERE subscription_id=$1 AND sent_at>=$2
        ORDER BY sent_at`,
		subscriptionID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.NotificationRecord
	for rows.Next() {
		var (
			rec     model.NotificationRecord
			windows []byte
		)
		if err := rows.Scan(&rec.ID, &rec.SubscriptionID, &rec.SentAt, &windows); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(windows, &rec.Windows); err != nil {
			return nil, err
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func (r *notifications) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notification_records WHERE sent_at<$1`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
