/*
history.go - ledger.HistoryStore over the two history tables

PURPOSE:
  One implementation parameterized by a table spec serves both ledgers. The
  tables share a shape (subject, resource, open timestamp, nullable close
  timestamp) and differ only in names.
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/manfad/cowcard/ledger"
)

type historyTableSpec struct {
	table       string
	subjectCol  string
	resourceCol string
	openedCol   string
	closedCol   string
}

var feedlotHistorySpec = historyTableSpec{
	table:       "cow_feedlot_histories",
	subjectCol:  "cow_id",
	resourceCol: "feedlot_id",
	openedCol:   "moved_in_at",
	closedCol:   "moved_out_at",
}

var transponderHistorySpec = historyTableSpec{
	table:       "cow_transponder_histories",
	subjectCol:  "cow_id",
	resourceCol: "transponder_id",
	openedCol:   "assigned_at",
	closedCol:   "unassigned_at",
}

type historyStore struct {
	tx   *sql.Tx
	spec historyTableSpec
}

func (h *historyStore) selectOpen(where string) string {
	return fmt.Sprintf(
		`SELECT id, %s, %s, %s, %s FROM %s WHERE %s IS NULL AND %s`,
		h.spec.subjectCol, h.spec.resourceCol, h.spec.openedCol, h.spec.closedCol,
		h.spec.table, h.spec.closedCol, where)
}

func (h *historyStore) scanInterval(row *sql.Row) (*ledger.Interval, error) {
	var iv ledger.Interval
	var opened string
	var closed sql.NullString
	err := row.Scan(&iv.ID, &iv.SubjectID, &iv.ResourceID, &opened, &closed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s interval: %w", h.spec.table, err)
	}
	iv.OpenedAt = parseTime(opened)
	iv.ClosedAt = scanNullTime(closed)
	return &iv, nil
}

func (h *historyStore) OpenBySubject(ctx context.Context, subjectID int64) (*ledger.Interval, error) {
	return h.scanInterval(h.tx.QueryRowContext(ctx,
		h.selectOpen(h.spec.subjectCol+" = ?"), subjectID))
}

func (h *historyStore) OpenByResource(ctx context.Context, resourceID int64) (*ledger.Interval, error) {
	return h.scanInterval(h.tx.QueryRowContext(ctx,
		h.selectOpen(h.spec.resourceCol+" = ?"), resourceID))
}

func (h *historyStore) OpenBySubjects(ctx context.Context, subjectIDs []int64) (map[int64]*ledger.Interval, error) {
	open := make(map[int64]*ledger.Interval, len(subjectIDs))
	if len(subjectIDs) == 0 {
		return open, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(subjectIDs)), ",")
	args := make([]any, len(subjectIDs))
	for i, id := range subjectIDs {
		args[i] = id
	}

	rows, err := h.tx.QueryContext(ctx,
		h.selectOpen(h.spec.subjectCol+" IN ("+placeholders+")"), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list open %s intervals: %w", h.spec.table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var iv ledger.Interval
		var opened string
		var closed sql.NullString
		if err := rows.Scan(&iv.ID, &iv.SubjectID, &iv.ResourceID, &opened, &closed); err != nil {
			return nil, fmt.Errorf("failed to scan %s interval: %w", h.spec.table, err)
		}
		iv.OpenedAt = parseTime(opened)
		iv.ClosedAt = scanNullTime(closed)
		open[iv.SubjectID] = &iv
	}
	return open, rows.Err()
}

func (h *historyStore) Close(ctx context.Context, intervalID int64, at time.Time) error {
	res, err := h.tx.ExecContext(ctx, fmt.Sprintf(
		`UPDATE %s SET %s = ? WHERE id = ? AND %s IS NULL`,
		h.spec.table, h.spec.closedCol, h.spec.closedCol),
		formatTime(at), intervalID)
	if err != nil {
		return fmt.Errorf("failed to close %s interval: %w", h.spec.table, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected != 1 {
		return fmt.Errorf("%s interval %d is not open", h.spec.table, intervalID)
	}
	return nil
}

func (h *historyStore) Open(ctx context.Context, subjectID, resourceID int64, at time.Time) (int64, error) {
	res, err := h.tx.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (%s, %s, %s) VALUES (?, ?, ?)`,
		h.spec.table, h.spec.subjectCol, h.spec.resourceCol, h.spec.openedCol),
		subjectID, resourceID, formatTime(at))
	if err != nil {
		if isUniqueConstraintError(err) {
			return 0, fmt.Errorf("open %s interval already exists: %w", h.spec.table, err)
		}
		return 0, fmt.Errorf("failed to open %s interval: %w", h.spec.table, err)
	}
	return res.LastInsertId()
}
