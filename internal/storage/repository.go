// Package storage persists the expense ledger and its pending candidates in
// SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gastos/internal/core"

	_ "modernc.org/sqlite"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// SQLite allows a single writer; a one-connection pool avoids
	// SQLITE_BUSY under concurrent resolves.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// --- categories ---

func (r *Repository) CategoryByName(ctx context.Context, name string) (core.Category, error) {
	var c core.Category
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name FROM categories WHERE name = ?`, name).Scan(&c.ID, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, fmt.Errorf("category %q: %w", name, core.ErrNotFound)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category by name: %w", err)
	}
	return c, nil
}

func (r *Repository) CategoryByID(ctx context.Context, id int64) (core.Category, error) {
	var c core.Category
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name FROM categories WHERE id = ?`, id).Scan(&c.ID, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, fmt.Errorf("category %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category by id: %w", err)
	}
	return c, nil
}

func (r *Repository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var cats []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// --- expenses ---

func (r *Repository) CreateExpense(ctx context.Context, e core.Expense) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (value_cents, description, date, category_id, source_message_id)
		 VALUES (?, ?, ?, ?, ?)`,
		e.Value.Cents, e.Description, e.Date, e.CategoryID, e.SourceMessageID)
	if err != nil {
		return 0, fmt.Errorf("create expense: %w", err)
	}
	return res.LastInsertId()
}

// GetExpenseWithCategory loads an expense and its category name, as the
// sheets mirror needs both.
func (r *Repository) GetExpenseWithCategory(ctx context.Context, id int64) (core.Expense, string, error) {
	var (
		e        core.Expense
		category string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT e.id, e.value_cents, e.description, e.date, e.category_id, e.source_message_id, c.name
		 FROM expenses e JOIN categories c ON c.id = e.category_id
		 WHERE e.id = ?`, id).
		Scan(&e.ID, &e.Value.Cents, &e.Description, &e.Date, &e.CategoryID, &e.SourceMessageID, &category)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, "", fmt.Errorf("expense %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Expense{}, "", fmt.Errorf("get expense: %w", err)
	}
	return e, category, nil
}

// UnsyncedExpenses returns ids of expenses not yet mirrored, oldest first.
func (r *Repository) UnsyncedExpenses(ctx context.Context, limit int) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM expenses WHERE synced = 0 ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unsynced expenses: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan expense id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *Repository) MarkSynced(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET synced = 1, sync_error = 0 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark expense synced: %w", err)
	}
	return nil
}

func (r *Repository) MarkSyncError(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET sync_error = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark expense sync error: %w", err)
	}
	return nil
}

// --- pending expenses ---

// CreatePendingExpense inserts the record unless one already exists for the
// same source message. The bool reports whether a row was actually created;
// false means the message was already taken (idempotent intake).
func (r *Repository) CreatePendingExpense(ctx context.Context, p core.PendingExpense) (int64, bool, error) {
	if err := p.Validate(); err != nil {
		return 0, false, err
	}
	var suggested sql.NullInt64
	if p.SuggestedCategoryID > 0 {
		suggested = sql.NullInt64{Int64: p.SuggestedCategoryID, Valid: true}
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO pending_expenses
		 (value_cents, description, suggested_category_id, source_message_id, source_group_id,
		  participant_phone, attachment_url, status, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Value.Cents, p.Description, suggested, p.SourceMessageID, p.SourceGroupID,
		p.ParticipantPhone, p.AttachmentURL, string(p.Status), p.ExpiresAt)
	if err != nil {
		return 0, false, fmt.Errorf("create pending expense: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("create pending expense: %w", err)
	}
	if affected == 0 {
		return 0, false, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, false, fmt.Errorf("create pending expense: %w", err)
	}
	return id, true, nil
}

func (r *Repository) GetPendingExpense(ctx context.Context, id int64) (core.PendingExpense, error) {
	return r.scanPending(r.db.QueryRowContext(ctx, selectPending+` WHERE id = ?`, id), id)
}

const selectPending = `SELECT id, value_cents, description, suggested_category_id, source_message_id,
 source_group_id, participant_phone, attachment_url, status, expires_at, created_at
 FROM pending_expenses`

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *Repository) scanPending(row rowScanner, id int64) (core.PendingExpense, error) {
	var (
		p         core.PendingExpense
		suggested sql.NullInt64
		status    string
	)
	err := row.Scan(&p.ID, &p.Value.Cents, &p.Description, &suggested, &p.SourceMessageID,
		&p.SourceGroupID, &p.ParticipantPhone, &p.AttachmentURL, &status, &p.ExpiresAt, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.PendingExpense{}, fmt.Errorf("pending expense %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.PendingExpense{}, fmt.Errorf("get pending expense: %w", err)
	}
	if suggested.Valid {
		p.SuggestedCategoryID = suggested.Int64
	}
	p.Status = core.PendingStatus(status)
	return p, nil
}

// MarkPendingAwaitingCategory transitions the record to
// awaiting_category_reply. Missing records report core.ErrNotFound.
func (r *Repository) MarkPendingAwaitingCategory(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE pending_expenses SET status = ? WHERE id = ?`,
		string(core.StatusAwaitingCategoryReply), id)
	if err != nil {
		return fmt.Errorf("mark pending awaiting category: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark pending awaiting category: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("pending expense %d: %w", id, core.ErrNotFound)
	}
	return nil
}

// ResolvePending converts the pending record into an Expense with the given
// category, deleting the record in the same transaction. Only the first
// caller for a given id succeeds; later callers get core.ErrNotFound.
func (r *Repository) ResolvePending(ctx context.Context, pendingID, categoryID int64) (core.Expense, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Expense{}, fmt.Errorf("begin resolve: %w", err)
	}
	defer tx.Rollback()

	pending, err := r.scanPending(tx.QueryRowContext(ctx, selectPending+` WHERE id = ?`, pendingID), pendingID)
	if err != nil {
		return core.Expense{}, err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM pending_expenses WHERE id = ?`, pendingID)
	if err != nil {
		return core.Expense{}, fmt.Errorf("delete pending expense: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return core.Expense{}, fmt.Errorf("delete pending expense: %w", err)
	}
	if affected == 0 {
		return core.Expense{}, fmt.Errorf("pending expense %d: %w", pendingID, core.ErrNotFound)
	}

	expense := core.Expense{
		Value:           pending.Value,
		Description:     pending.Description,
		Date:            pending.CreatedAt,
		CategoryID:      categoryID,
		SourceMessageID: pending.SourceMessageID,
	}
	ins, err := tx.ExecContext(ctx,
		`INSERT INTO expenses (value_cents, description, date, category_id, source_message_id)
		 VALUES (?, ?, ?, ?, ?)`,
		expense.Value.Cents, expense.Description, expense.Date, expense.CategoryID, expense.SourceMessageID)
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}
	expense.ID, err = ins.LastInsertId()
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return core.Expense{}, fmt.Errorf("commit resolve: %w", err)
	}
	return expense, nil
}

// ExpiredPendingExpenses returns records whose expiry passed, oldest first.
func (r *Repository) ExpiredPendingExpenses(ctx context.Context, now time.Time, limit int) ([]core.PendingExpense, error) {
	rows, err := r.db.QueryContext(ctx,
		selectPending+` WHERE expires_at < ? ORDER BY expires_at LIMIT ?`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired pending expenses: %w", err)
	}
	defer rows.Close()

	var out []core.PendingExpense
	for rows.Next() {
		p, err := r.scanPending(rows, 0)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) DeletePendingExpense(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM pending_expenses WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete pending expense: %w", err)
	}
	return nil
}

// --- monitored groups ---

// ActiveMonitoredGroupByGroupID returns the active monitoring row for a chat
// group, if any profile monitors it.
func (r *Repository) ActiveMonitoredGroupByGroupID(ctx context.Context, groupID string) (core.MonitoredGroup, error) {
	var m core.MonitoredGroup
	var active int64
	err := r.db.QueryRowContext(ctx,
		`SELECT id, group_id, name, profile_id, is_active FROM monitored_groups
		 WHERE group_id = ? AND is_active = 1`, groupID).
		Scan(&m.ID, &m.GroupID, &m.Name, &m.ProfileID, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return core.MonitoredGroup{}, fmt.Errorf("monitored group %s: %w", groupID, core.ErrNotFound)
	}
	if err != nil {
		return core.MonitoredGroup{}, fmt.Errorf("get monitored group: %w", err)
	}
	m.IsActive = active == 1
	return m, nil
}

// ActivateMonitoredGroup atomically demotes every other row of the profile
// and promotes (or creates) the row for groupID. The booleans report whether
// the row was created and whether it was already active.
func (r *Repository) ActivateMonitoredGroup(ctx context.Context, groupID, name string, profileID int64) (core.MonitoredGroup, bool, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.MonitoredGroup{}, false, false, fmt.Errorf("begin activate: %w", err)
	}
	defer tx.Rollback()

	var (
		existingID int64
		active     int64
	)
	err = tx.QueryRowContext(ctx,
		`SELECT id, is_active FROM monitored_groups WHERE group_id = ? AND profile_id = ?`,
		groupID, profileID).Scan(&existingID, &active)
	exists := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return core.MonitoredGroup{}, false, false, fmt.Errorf("get monitored group: %w", err)
	}
	alreadyActive := exists && active == 1

	// Demote first so the single-active partial index never trips.
	if _, err := tx.ExecContext(ctx,
		`UPDATE monitored_groups SET is_active = 0, updated_at = CURRENT_TIMESTAMP
		 WHERE profile_id = ? AND group_id <> ?`, profileID, groupID); err != nil {
		return core.MonitoredGroup{}, false, false, fmt.Errorf("deactivate monitored groups: %w", err)
	}

	created := false
	if exists {
		if _, err := tx.ExecContext(ctx,
			`UPDATE monitored_groups SET is_active = 1, name = ?, updated_at = CURRENT_TIMESTAMP
			 WHERE id = ?`, name, existingID); err != nil {
			return core.MonitoredGroup{}, false, false, fmt.Errorf("reactivate monitored group: %w", err)
		}
	} else {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO monitored_groups (group_id, name, profile_id, is_active) VALUES (?, ?, ?, 1)`,
			groupID, name, profileID)
		if err != nil {
			return core.MonitoredGroup{}, false, false, fmt.Errorf("create monitored group: %w", err)
		}
		existingID, err = res.LastInsertId()
		if err != nil {
			return core.MonitoredGroup{}, false, false, fmt.Errorf("create monitored group: %w", err)
		}
		created = true
	}

	if err := tx.Commit(); err != nil {
		return core.MonitoredGroup{}, false, false, fmt.Errorf("commit activate: %w", err)
	}

	return core.MonitoredGroup{
		ID:        existingID,
		GroupID:   groupID,
		Name:      name,
		ProfileID: profileID,
		IsActive:  true,
	}, created, alreadyActive, nil
}

// --- profiles and subscriptions ---

func (r *Repository) CreateProfile(ctx context.Context, name string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO profiles (name) VALUES (?)`, name)
	if err != nil {
		return 0, fmt.Errorf("create profile: %w", err)
	}
	return res.LastInsertId()
}

func (r *Repository) CreateSubscription(ctx context.Context, profileID int64, active bool) (int64, error) {
	act := 0
	if active {
		act = 1
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO subscriptions (profile_id, active) VALUES (?, ?)`, profileID, act)
	if err != nil {
		return 0, fmt.Errorf("create subscription: %w", err)
	}
	return res.LastInsertId()
}

// SubscriptionActive reports whether the profile has any active subscription.
func (r *Repository) SubscriptionActive(ctx context.Context, profileID int64) (bool, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM subscriptions WHERE profile_id = ? AND active = 1`, profileID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check subscription: %w", err)
	}
	return n > 0, nil
}
