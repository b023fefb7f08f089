// Package sqlite is the embedded store used for local deployments.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqlite3 "modernc.org/sqlite"

	"github.com/opencourt/courtwatch/internal/model"
	"github.com/opencourt/courtwatch/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS subscriptions (
    id                           TEXT PRIMARY KEY,
    owner_id                     TEXT NOT NULL,
    email                        TEXT NOT NULL,
    source_preferences           TEXT NOT NULL,
    preferred_times              TEXT NOT NULL,
    min_slot_duration_minutes    INTEGER NOT NULL,
    expiry_date                  TEXT,
    max_notifications_per_day    INTEGER NOT NULL,
    notification_frequency_hours INTEGER NOT NULL,
    status                       TEXT NOT NULL,
    creation_time                TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_subscriptions_owner  ON subscriptions(owner_id);
CREATE INDEX IF NOT EXISTS idx_subscriptions_status ON subscriptions(status);

CREATE TABLE IF NOT EXISTS notification_records (
    id              TEXT PRIMARY KEY,
    subscription_id TEXT NOT NULL,
    sent_at         TEXT NOT NULL,
    windows         TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_records_sub_time ON notification_records(subscription_id, sent_at);
`

// Open opens (or creates) the database at path, enables WAL journal mode and
// ensures the schema exists.
func Open(path string) (*sql.DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewWithDB constructs a SQLite store backed by database/sql.
func NewWithDB(db *sql.DB) store.Store { return &sqliteStore{db: db} }

type sqliteStore struct{ db *sql.DB }

func (s *sqliteStore) Subscriptions() store.Subscriptions { return &subscriptions{db: s.db} }
func (s *sqliteStore) Notifications() store.Notifications { return &notifications{db: s.db} }
func (s *sqliteStore) Ping(ctx context.Context) error     { return s.db.PingContext(ctx) }
func (s *sqliteStore) Close() error                       { return s.db.Close() }

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
	var expiry *string
	if sub.ExpiryDate != nil {
		v := sub.ExpiryDate.UTC().Format(time.RFC3339)
		expiry = &v
	}
	_, err = r.db.ExecContext(ctx, `
        INSERT INTO subscriptions
            (id, owner_id, email, source_preferences, preferred_times,
             min_slot_duration_minutes, expiry_date, max_notifications_per_day,
             notification_frequency_hours, status, creation_time)
        VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		sub.ID, sub.OwnerID, sub.Email, string(prefs), string(times),
		sub.MinSlotDurationMinutes, expiry, sub.MaxNotificationsPerDay,
		sub.NotificationFrequencyHours, string(sub.Status),
		sub.CreationTime.UTC().Format(time.RFC3339))
	if err != nil {
		if isConstraintViolation(err) {
			return nil, fmt.Errorf("subscription %s: %w", sub.ID, model.ErrConflict)
		}
		return nil, err
	}
	out := *sub
	return &out, nil
}

// isConstraintViolation reports whether err is a unique or primary key
// constraint failure (extended result codes 2067 and 1555).
func isConstraintViolation(err error) bool {
	var se *sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == 1555 || se.Code() == 2067
}

const subscriptionCols = `id, owner_id, email, source_preferences, preferred_times,
    min_slot_duration_minutes, expiry_date, max_notifications_per_day,
    notification_frequency_hours, status, creation_time`

func scanSubscription(row interface{ Scan(...any) error }) (*model.Subscription, error) {
	var (
		sub          model.Subscription
		prefs, times string
		expiry       *string
		created      string
		status       string
	)
	err := row.Scan(&sub.ID, &sub.OwnerID, &sub.Email, &prefs, &times,
		&sub.MinSlotDurationMinutes, &expiry, &sub.MaxNotificationsPerDay,
		&sub.NotificationFrequencyHours, &status, &created)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(prefs), &sub.SourcePreferences); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(times), &sub.PreferredTimes); err != nil {
		return nil, err
	}
	if expiry != nil {
		t, err := time.Parse(time.RFC3339, *expiry)
		if err != nil {
			return nil, err
		}
		sub.ExpiryDate = &t
	}
	t, err := time.Parse(time.RFC3339, created)
	if err != nil {
		return nil, err
	}
	sub.CreationTime = t
	sub.Status = model.SubscriptionStatus(status)
	return &sub, nil
}

func (r *subscriptions) Get(ctx context.Context, id string) (*model.Subscription, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+subscriptionCols+` FROM subscriptions WHERE id=?`, id)
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
	return r.list(ctx, `WHERE owner_id=?`, ownerID)
}

func (r *subscriptions) ListActive(ctx context.Context) ([]*model.Subscription, error) {
	return r.list(ctx, `WHERE status=?`, string(model.SubscriptionActive))
}

func (r *subscriptions) UpdateStatus(ctx context.Context, id string, status model.SubscriptionStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE subscriptions SET status=? WHERE id=?`, string(status), id)
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

// sortableNano keeps trailing zeros so stored timestamps compare correctly
// as strings in WHERE clauses.
const sortableNano = "2006-01-02T15:04:05.000000000Z07:00"

type notifications struct{ db *sql.DB }

func (r *notifications) Append(ctx context.Context, rec *model.NotificationRecord) error {
	windows, err := json.Marshal(rec.Windows)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
        INSERT INTO notification_records (id, subscription_id, sent_at, windows)
        VALUES (?,?,?,?)`,
		rec.ID, rec.SubscriptionID, rec.SentAt.UTC().Format(sortableNano), string(windows))
	return err
}

func (r *notifications) Query(ctx context.Context, subscriptionID string, since time.Time) ([]*model.NotificationRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT id, subscription_id, sent_at, windows
        FROM notification_records
        WHERE subscription_id=? AND sent_at>=?
        ORDER BY sent_at`,
		subscriptionID, since.UTC().Format(sortableNano))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.NotificationRecord
	for rows.Next() {
		var (
			rec     model.NotificationRecord
			sentAt  string
			windows string
		)
		if err := rows.Scan(&rec.ID, &rec.SubscriptionID, &sentAt, &windows); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339Nano, sentAt)
		if err != nil {
			return nil, err
		}
		rec.SentAt = t
		if err := json.Unmarshal([]byte(windows), &rec.Windows); err != nil {
			return nil, err
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

func (r *notifications) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notification_records WHERE sent_at<?`,
		before.UTC().Format(sortableNano))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
