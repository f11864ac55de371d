package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/labordesk/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// One connection: ":memory:" databases are per connection and SQLite
	// allows a single writer anyway.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// notificationRow mirrors the notifications table.
type notificationRow struct {
	ID             int64        `db:"id"`
	Message        string       `db:"message"`
	Type           string       `db:"type"`
	Read           int          `db:"read"`
	Archived       int          `db:"archived"`
	AllowedRoles   string       `db:"allowed_roles"`
	Icon           string       `db:"icon"`
	Color          string       `db:"color"`
	Emoji          string       `db:"emoji"`
	ActionRequired string       `db:"action_required"`
	ActionStatus   string       `db:"action_status"`
	Attachment     string       `db:"attachment"`
	CreatedAt      time.Time    `db:"created_at"`
	ExpiresAt      sql.NullTime `db:"expires_at"`
	ScheduledAt    sql.NullTime `db:"scheduled_at"`
}

func (r notificationRow) toModel() model.Notification {
	n := model.Notification{
		ID:             r.ID,
		Message:        r.Message,
		Type:           model.NotificationType(r.Type),
		CreatedAt:      r.CreatedAt.UTC(),
		Read:           r.Read != 0,
		Archived:       r.Archived != 0,
		AllowedRoles:   r.AllowedRoles,
		Icon:           r.Icon,
		Color:          r.Color,
		Emoji:          r.Emoji,
		ActionRequired: r.ActionRequired,
		ActionStatus:   model.ActionStatus(r.ActionStatus),
		Attachment:     r.Attachment,
	}
	if r.ExpiresAt.Valid {
		t := r.ExpiresAt.Time.UTC()
		n.ExpiresAt = &t
	}
	if r.ScheduledAt.Valid {
		t := r.ScheduledAt.Time.UTC()
		n.ScheduledAt = &t
	}
	return n
}

// CreateNotification inserts n and returns it with its assigned id. A zero
// CreatedAt is set to the current time.
func (s *SQLiteStore) CreateNotification(
	ctx context.Context,
	n model.Notification,
) (*model.Notification, error) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	if n.Type == "" {
		n.Type = model.TypeGeneral
	}
	if n.ActionRequired != "" && n.ActionStatus == "" {
		n.ActionStatus = model.ActionPending
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (
			message, type, read, archived, allowed_roles,
			icon, color, emoji,
			action_required, action_status, attachment,
			created_at, expires_at, scheduled_at
		) VALUES (
			?, ?, ?, ?, ?,
			?, ?, ?,
			?, ?, ?,
			?, ?, ?
		)`,
		n.Message, string(n.Type), boolToInt(n.Read), boolToInt(n.Archived), n.AllowedRoles,
		n.Icon, n.Color, n.Emoji,
		n.ActionRequired, string(n.ActionStatus), n.Attachment,
		dbTime(n.CreatedAt), nullTime(n.ExpiresAt), nullTime(n.ScheduledAt),
	)
	if err != nil {
		return nil, fmt.Errorf("creating notification: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading notification id: %w", err)
	}

	return s.GetNotification(ctx, id)
}

// GetNotification retrieves a single notification by its ID.
func (s *SQLiteStore) GetNotification(
	ctx context.Context,
	id int64,
) (*model.Notification, error) {
	var row notificationRow
	err := s.db.GetContext(ctx, &row, "SELECT * FROM notifications WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting notification %d: %w", id, err)
	}

	n := row.toModel()
	return &n, nil
}

// ListNotifications retrieves notifications matching filter, newest first.
func (s *SQLiteStore) ListNotifications(
	ctx context.Context,
	filter NotificationFilter,
) ([]model.Notification, error) {
	now := filter.Now
	if now.IsZero() {
		now = time.Now()
	}

	conditions := []string{
		"archived = ?",
		"(scheduled_at IS NULL OR scheduled_at <= ?)",
	}
	args := []interface{}{boolToInt(filter.Archived), dbTime(now)}

	if filter.Start != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, dbTime(*filter.Start))
	}
	if filter.End != nil {
		conditions = append(conditions, "created_at < ?")
		args = append(args, dbTime(*filter.End))
	}
	if filter.Role != "" {
		conditions = append(conditions,
			"(allowed_roles = '' OR (',' || REPLACE(allowed_roles, ' ', '') || ',') LIKE ?)")
		args = append(args, "%,"+filter.Role+",%")
	}

	query := "SELECT * FROM notifications WHERE " +
		strings.Join(conditions, " AND ") +
		" ORDER BY created_at DESC, id DESC"

	var rows []notificationRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}

	notifications := make([]model.Notification, len(rows))
	for i, r := range rows {
		notifications[i] = r.toModel()
	}
	return notifications, nil
}

// GroupNotifications summarises active notifications created since since,
// grouped by type. Groups are ordered by their most recent notification.
func (s *SQLiteStore) GroupNotifications(
	ctx context.Context,
	since time.Time,
) ([]model.GroupedNotification, error) {
	var rows []notificationRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM notifications
		WHERE archived = 0 AND created_at >= ?
		ORDER BY created_at DESC, id DESC`,
		dbTime(since),
	)
	if err != nil {
		return nil, fmt.Errorf("querying notifications for grouping: %w", err)
	}

	byType := make(map[string]*model.GroupedNotification)
	var groups []*model.GroupedNotification
	for _, r := range rows {
		g, ok := byType[r.Type]
		if !ok {
			g = &model.GroupedNotification{
				Type:        model.NotificationType(r.Type),
				LastCreated: r.CreatedAt.UTC(),
			}
			byType[r.Type] = g
			groups = append(groups, g)
		}
		g.Count++
		g.Messages = append(g.Messages, r.Message)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].LastCreated.After(groups[j].LastCreated)
	})

	result := make([]model.GroupedNotification, len(groups))
	for i, g := range groups {
		result[i] = *g
	}
	return result, nil
}

// ArchiveNotification moves a notification out of the active view.
func (s *SQLiteStore) ArchiveNotification(ctx context.Context, id int64) error {
	return s.execOne(ctx, "archiving notification",
		"UPDATE notifications SET archived = 1 WHERE id = ?", id)
}

// DeleteNotification removes a notification by ID.
func (s *SQLiteStore) DeleteNotification(ctx context.Context, id int64) error {
	return s.execOne(ctx, "deleting notification",
		"DELETE FROM notifications WHERE id = ?", id)
}

// SetActionStatus records the viewer's decision on a notification.
func (s *SQLiteStore) SetActionStatus(
	ctx context.Context,
	id int64,
	status model.ActionStatus,
) error {
	return s.execOne(ctx, "setting action status",
		"UPDATE notifications SET action_status = ? WHERE id = ?", string(status), id)
}

// MarkNotificationRead marks a single notification as read.
func (s *SQLiteStore) MarkNotificationRead(ctx context.Context, id int64) error {
	return s.execOne(ctx, "marking notification read",
		"UPDATE notifications SET read = 1 WHERE id = ?", id)
}

// execOne runs a statement that must affect exactly one notification,
// returning ErrNotFound when it affects none. id is the last argument.
func (s *SQLiteStore) execOne(ctx context.Context, what, query string, args ...interface{}) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s %v: %w", what, args[len(args)-1], err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %v: %w", what, args[len(args)-1], err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// dbTime normalises t for storage and comparison. Stored times are UTC at
// second precision so that their text form sorts chronologically.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return dbTime(*t)
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
