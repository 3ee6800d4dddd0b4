/*
tx.go - The transactional data surface

PURPOSE:
  Implements herd.Tx over a *sql.Tx. Row scanning helpers take a querier so
  reads.go can reuse them outside a transaction.
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/manfad/cowcard/herd"
	"github.com/manfad/cowcard/ledger"
)

// Tx implements herd.Tx.
type Tx struct {
	tx *sql.Tx
}

// =============================================================================
// COWS
// =============================================================================

const cowColumns = `id, tag, gender, role, status, color_id, dob, weight,
	dam_id, semen_id, current_feedlot_id, current_transponder_id,
	active, remark, created_at`

func scanCow(row *sql.Row) (*herd.Cow, error) {
	var c herd.Cow
	var gender, role, status int
	var colorID, damID, semenID, feedlotID, transponderID sql.NullInt64
	var dob sql.NullString
	var weight sql.NullString
	var createdAt string

	err := row.Scan(&c.ID, &c.Tag, &gender, &role, &status, &colorID, &dob, &weight,
		&damID, &semenID, &feedlotID, &transponderID,
		&c.Active, &c.Remark, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan cow: %w", err)
	}

	c.Gender = herd.CowGender(gender)
	c.Role = herd.CowRole(role)
	c.Status = herd.CowStatus(status)
	c.ColorID = scanNullInt(colorID)
	c.DOB = scanNullDate(dob)
	c.DamID = scanNullInt(damID)
	c.SemenID = scanNullInt(semenID)
	c.CurrentFeedlotID = scanNullInt(feedlotID)
	c.CurrentTransponderID = scanNullInt(transponderID)
	c.CreatedAt = parseTime(createdAt)
	if weight.Valid && weight.String != "" {
		w, err := parseDecimal(weight.String)
		if err != nil {
			return nil, err
		}
		c.Weight = w
	}
	return &c, nil
}

func getCow(ctx context.Context, q querier, id int64) (*herd.Cow, error) {
	return scanCow(q.QueryRowContext(ctx,
		`SELECT `+cowColumns+` FROM cows WHERE id = ?`, id))
}

func getCowByTag(ctx context.Context, q querier, tag string) (*herd.Cow, error) {
	return scanCow(q.QueryRowContext(ctx,
		`SELECT `+cowColumns+` FROM cows WHERE tag = ?`, tag))
}

func insertCow(ctx context.Context, q querier, c *herd.Cow) (int64, error) {
	var weight any
	if c.Weight != nil {
		weight = c.Weight.String()
	}
	res, err := q.ExecContext(ctx, `
		INSERT INTO cows (tag, gender, role, status, color_id, dob, weight,
			dam_id, semen_id, current_feedlot_id, current_transponder_id,
			active, remark, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Tag, int(c.Gender), int(c.Role), int(c.Status),
		nullInt(c.ColorID), nullDateString(c.DOB), weight,
		nullInt(c.DamID), nullInt(c.SemenID),
		nullInt(c.CurrentFeedlotID), nullInt(c.CurrentTransponderID),
		c.Active, c.Remark, formatTime(c.CreatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return 0, fmt.Errorf("cow tag %q already exists: %w", c.Tag, err)
		}
		return 0, fmt.Errorf("failed to insert cow: %w", err)
	}
	return res.LastInsertId()
}

func (t *Tx) GetCow(ctx context.Context, id int64) (*herd.Cow, error) {
	return getCow(ctx, t.tx, id)
}

func (t *Tx) GetCowByTag(ctx context.Context, tag string) (*herd.Cow, error) {
	return getCowByTag(ctx, t.tx, tag)
}

func (t *Tx) InsertCow(ctx context.Context, c *herd.Cow) (int64, error) {
	return insertCow(ctx, t.tx, c)
}

func (t *Tx) SetCowFeedlot(ctx context.Context, cowID int64, feedlotID *int64) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE cows SET current_feedlot_id = ? WHERE id = ?`,
		nullInt(feedlotID), cowID)
	if err != nil {
		return fmt.Errorf("failed to update cow feedlot pointer: %w", err)
	}
	return nil
}

func (t *Tx) SetCowTransponder(ctx context.Context, cowID int64, transponderID *int64) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE cows SET current_transponder_id = ? WHERE id = ?`,
		nullInt(transponderID), cowID)
	if err != nil {
		return fmt.Errorf("failed to update cow transponder pointer: %w", err)
	}
	return nil
}

// =============================================================================
// SEMEN INVENTORY
// =============================================================================

const semenColumns = `id, name, sire, date, straw, bull, remark`

func scanSemen(row *sql.Row) (*herd.Semen, error) {
	var s herd.Semen
	var date sql.NullString
	var straw sql.NullInt64

	err := row.Scan(&s.ID, &s.Name, &s.Sire, &date, &straw, &s.Bull, &s.Remark)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan semen: %w", err)
	}
	s.Date = scanNullDate(date)
	if straw.Valid {
		n := int(straw.Int64)
		s.Straw = &n
	}
	return &s, nil
}

func getSemen(ctx context.Context, q querier, id int64) (*herd.Semen, error) {
	return scanSemen(q.QueryRowContext(ctx,
		`SELECT `+semenColumns+` FROM semens WHERE id = ?`, id))
}

func (t *Tx) GetSemen(ctx context.Context, id int64) (*herd.Semen, error) {
	return getSemen(ctx, t.tx, id)
}

func (t *Tx) DeductStraw(ctx context.Context, semenID int64) error {
	// Guarded update: the WHERE clause is the inventory floor.
	res, err := t.tx.ExecContext(ctx,
		`UPDATE semens SET straw = straw - 1 WHERE id = ? AND straw > 0`, semenID)
	if err != nil {
		return fmt.Errorf("failed to deduct straw: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}

	s, err := getSemen(ctx, t.tx, semenID)
	if err != nil {
		return err
	}
	if s == nil {
		return &herd.NotFoundError{Kind: "semen", ID: semenID}
	}
	return &herd.InsufficientInventoryError{SemenID: semenID}
}

// =============================================================================
// AI RECORDS
// =============================================================================

const aiRecordColumns = `id, code, dam_id, semen_id, feedlot, ai_by, prepared_by,
	status, ai_date, ai_time, remark, created_at`

func scanAiRecord(row *sql.Row) (*herd.AiRecord, error) {
	var r herd.AiRecord
	var aiBy, preparedBy sql.NullInt64
	var status int
	var aiDate, createdAt string

	err := row.Scan(&r.ID, &r.Code, &r.DamID, &r.SemenID, &r.Feedlot, &aiBy, &preparedBy,
		&status, &aiDate, &r.AiTime, &r.Remark, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan ai record: %w", err)
	}
	r.AiByID = scanNullInt(aiBy)
	r.PreparedByID = scanNullInt(preparedBy)
	r.Status = herd.AiStatus(status)
	r.AiDate = parseDate(aiDate)
	r.CreatedAt = parseTime(createdAt)
	return &r, nil
}

func getAiRecord(ctx context.Context, q querier, id int64) (*herd.AiRecord, error) {
	return scanAiRecord(q.QueryRowContext(ctx,
		`SELECT `+aiRecordColumns+` FROM ai_records WHERE id = ?`, id))
}

func (t *Tx) GetAiRecord(ctx context.Context, id int64) (*herd.AiRecord, error) {
	return getAiRecord(ctx, t.tx, id)
}

func (t *Tx) InsertAiRecord(ctx context.Context, r *herd.AiRecord) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO ai_records (code, dam_id, semen_id, feedlot, ai_by, prepared_by,
			status, ai_date, ai_time, remark, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Code, r.DamID, r.SemenID, r.Feedlot,
		nullInt(r.AiByID), nullInt(r.PreparedByID),
		int(r.Status), formatDate(r.AiDate), r.AiTime, r.Remark, formatTime(r.CreatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return 0, fmt.Errorf("ai record code %q already exists: %w", r.Code, err)
		}
		return 0, fmt.Errorf("failed to insert ai record: %w", err)
	}
	return res.LastInsertId()
}

func (t *Tx) SetAiRecordStatus(ctx context.Context, id int64, status herd.AiStatus) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE ai_records SET status = ? WHERE id = ?`, int(status), id)
	if err != nil {
		return fmt.Errorf("failed to update ai record status: %w", err)
	}
	return nil
}

func (t *Tx) CountNonBullAiRecords(ctx context.Context, damID int64) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM ai_records r
		JOIN semens s ON s.id = r.semen_id
		WHERE r.dam_id = ? AND s.bull = 0`, damID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count ai records: %w", err)
	}
	return n, nil
}

func (t *Tx) CountAiRecordsWithCodePrefix(ctx context.Context, prefix string) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ai_records WHERE code LIKE ? || '-%'`, prefix).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count ai record codes: %w", err)
	}
	return n, nil
}

func listAiRecordViews(ctx context.Context, q querier) ([]herd.AiRecordView, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT r.id, r.code, r.dam_id, r.semen_id, r.feedlot, r.ai_by, r.prepared_by,
			r.status, r.ai_date, r.ai_time, r.remark, r.created_at,
			c.tag, s.name, s.bull
		FROM ai_records r
		JOIN cows c ON c.id = r.dam_id
		JOIN semens s ON s.id = r.semen_id
		ORDER BY r.dam_id, r.ai_date, r.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list ai records: %w", err)
	}
	defer rows.Close()

	var views []herd.AiRecordView
	for rows.Next() {
		var v herd.AiRecordView
		var aiBy, preparedBy sql.NullInt64
		var status int
		var aiDate, createdAt string
		if err := rows.Scan(&v.ID, &v.Code, &v.DamID, &v.SemenID, &v.Feedlot, &aiBy, &preparedBy,
			&status, &aiDate, &v.AiTime, &v.Remark, &createdAt,
			&v.DamTag, &v.SemenName, &v.SemenBull); err != nil {
			return nil, fmt.Errorf("failed to scan ai record view: %w", err)
		}
		v.AiByID = scanNullInt(aiBy)
		v.PreparedByID = scanNullInt(preparedBy)
		v.Status = herd.AiStatus(status)
		v.AiDate = parseDate(aiDate)
		v.CreatedAt = parseTime(createdAt)
		views = append(views, v)
	}
	return views, rows.Err()
}

func (t *Tx) ListAiRecordViews(ctx context.Context) ([]herd.AiRecordView, error) {
	return listAiRecordViews(ctx, t.tx)
}

// =============================================================================
// PREGNANCY DIAGNOSES
// =============================================================================

const pdColumns = `id, ai_record_id, ai_date, diagnosis_by, status, pregnant_date`

func scanPd(row *sql.Row) (*herd.PregnancyDiagnosis, error) {
	var pd herd.PregnancyDiagnosis
	var diagnosisBy sql.NullInt64
	var status int
	var aiDate string
	var pregnantDate sql.NullString

	err := row.Scan(&pd.ID, &pd.AiRecordID, &aiDate, &diagnosisBy, &status, &pregnantDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan pregnancy diagnosis: %w", err)
	}
	pd.AiDate = parseDate(aiDate)
	pd.DiagnosisByID = scanNullInt(diagnosisBy)
	pd.Status = herd.PdStatus(status)
	pd.PregnantDate = scanNullDate(pregnantDate)
	return &pd, nil
}

func (t *Tx) GetPregnancyDiagnosis(ctx context.Context, id int64) (*herd.PregnancyDiagnosis, error) {
	return scanPd(t.tx.QueryRowContext(ctx,
		`SELECT `+pdColumns+` FROM pregnancy_diagnoses WHERE id = ?`, id))
}

func (t *Tx) GetPdByAiRecord(ctx context.Context, aiRecordID int64) (*herd.PregnancyDiagnosis, error) {
	return scanPd(t.tx.QueryRowContext(ctx,
		`SELECT `+pdColumns+` FROM pregnancy_diagnoses WHERE ai_record_id = ?`, aiRecordID))
}

func (t *Tx) InsertPregnancyDiagnosis(ctx context.Context, pd *herd.PregnancyDiagnosis) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO pregnancy_diagnoses (ai_record_id, ai_date, diagnosis_by, status, pregnant_date)
		VALUES (?, ?, ?, ?, ?)`,
		pd.AiRecordID, formatDate(pd.AiDate), nullInt(pd.DiagnosisByID),
		int(pd.Status), nullDateString(pd.PregnantDate))
	if err != nil {
		return 0, fmt.Errorf("failed to insert pregnancy diagnosis: %w", err)
	}
	return res.LastInsertId()
}

func (t *Tx) SetPdStatus(ctx context.Context, id int64, status herd.PdStatus, diagnosisByID *int64, pregnantDate *time.Time) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE pregnancy_diagnoses
		SET status = ?, diagnosis_by = ?, pregnant_date = ?
		WHERE id = ?`,
		int(status), nullInt(diagnosisByID), nullDateString(pregnantDate), id)
	if err != nil {
		return fmt.Errorf("failed to update pregnancy diagnosis: %w", err)
	}
	return nil
}

func (t *Tx) ListPdByStatus(ctx context.Context, status herd.PdStatus) ([]herd.PregnancyDiagnosis, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+pdColumns+` FROM pregnancy_diagnoses WHERE status = ? ORDER BY id`,
		int(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list pregnancy diagnoses: %w", err)
	}
	defer rows.Close()

	var pds []herd.PregnancyDiagnosis
	for rows.Next() {
		var pd herd.PregnancyDiagnosis
		var diagnosisBy sql.NullInt64
		var st int
		var aiDate string
		var pregnantDate sql.NullString
		if err := rows.Scan(&pd.ID, &pd.AiRecordID, &aiDate, &diagnosisBy, &st, &pregnantDate); err != nil {
			return nil, fmt.Errorf("failed to scan pregnancy diagnosis: %w", err)
		}
		pd.AiDate = parseDate(aiDate)
		pd.DiagnosisByID = scanNullInt(diagnosisBy)
		pd.Status = herd.PdStatus(st)
		pd.PregnantDate = scanNullDate(pregnantDate)
		pds = append(pds, pd)
	}
	return pds, rows.Err()
}

// =============================================================================
// CALF RECORDS
// =============================================================================

func (t *Tx) GetCalfRecordByAiRecord(ctx context.Context, aiRecordID int64) (*herd.CalfRecord, error) {
	var cr herd.CalfRecord
	var createdAt string
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, cow_id, ai_record_id, pregnancy_diagnosis_id, still_birth, created_at
		FROM calf_records WHERE ai_record_id = ?`, aiRecordID).
		Scan(&cr.ID, &cr.CowID, &cr.AiRecordID, &cr.PregnancyDiagnosisID, &cr.StillBirth, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan calf record: %w", err)
	}
	cr.CreatedAt = parseTime(createdAt)
	return &cr, nil
}

func (t *Tx) InsertCalfRecord(ctx context.Context, cr *herd.CalfRecord) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO calf_records (cow_id, ai_record_id, pregnancy_diagnosis_id, still_birth, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		cr.CowID, cr.AiRecordID, cr.PregnancyDiagnosisID, cr.StillBirth, formatTime(cr.CreatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return 0, fmt.Errorf("calf already registered for ai record %d: %w", cr.AiRecordID, err)
		}
		return 0, fmt.Errorf("failed to insert calf record: %w", err)
	}
	return res.LastInsertId()
}

// =============================================================================
// PLACEMENT
// =============================================================================

func scanFeedlot(row *sql.Row) (*herd.Feedlot, error) {
	var f herd.Feedlot
	err := row.Scan(&f.ID, &f.Name, &f.Active, &f.Remark)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan feedlot: %w", err)
	}
	return &f, nil
}

func getFeedlot(ctx context.Context, q querier, id int64) (*herd.Feedlot, error) {
	return scanFeedlot(q.QueryRowContext(ctx,
		`SELECT id, name, active, remark FROM feedlots WHERE id = ?`, id))
}

func (t *Tx) GetFeedlot(ctx context.Context, id int64) (*herd.Feedlot, error) {
	return getFeedlot(ctx, t.tx, id)
}

func scanTransponder(row *sql.Row) (*herd.Transponder, error) {
	var tr herd.Transponder
	var cowID sql.NullInt64
	var assignedDate sql.NullString
	err := row.Scan(&tr.ID, &tr.Code, &cowID, &assignedDate, &tr.Remark)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan transponder: %w", err)
	}
	tr.CurrentCowID = scanNullInt(cowID)
	tr.AssignedDate = scanNullDate(assignedDate)
	return &tr, nil
}

func getTransponder(ctx context.Context, q querier, id int64) (*herd.Transponder, error) {
	return scanTransponder(q.QueryRowContext(ctx,
		`SELECT id, code, current_cow_id, assigned_date, remark FROM transponders WHERE id = ?`, id))
}

func (t *Tx) GetTransponder(ctx context.Context, id int64) (*herd.Transponder, error) {
	return getTransponder(ctx, t.tx, id)
}

func (t *Tx) SetTransponderCow(ctx context.Context, transponderID int64, cowID *int64, assignedDate *time.Time) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE transponders SET current_cow_id = ?, assigned_date = ? WHERE id = ?`,
		nullInt(cowID), nullDateString(assignedDate), transponderID)
	if err != nil {
		return fmt.Errorf("failed to update transponder pointer: %w", err)
	}
	return nil
}

func (t *Tx) FeedlotHistories() ledger.HistoryStore {
	return &historyStore{tx: t.tx, spec: feedlotHistorySpec}
}

func (t *Tx) TransponderHistories() ledger.HistoryStore {
	return &historyStore{tx: t.tx, spec: transponderHistorySpec}
}

// =============================================================================
// SETTINGS & SCHEDULER AUDIT
// =============================================================================

func (t *Tx) GetSettingValue(ctx context.Context, name string) (string, bool, error) {
	var value sql.NullString
	err := t.tx.QueryRowContext(ctx,
		`SELECT value FROM system_settings WHERE name = ?`, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read setting %q: %w", name, err)
	}
	if !value.Valid {
		return "", false, nil
	}
	return value.String, true, nil
}

func (t *Tx) InsertAgingRun(ctx context.Context, run *herd.AgingRun) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO aging_runs (id, started_at, completed_at, status,
			moved_to_pending, moved_to_late_gestation, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, formatTime(run.StartedAt), nullTimeString(run.CompletedAt), run.Status,
		run.MovedToPending, run.MovedToLateGestation, run.Error)
	if err != nil {
		return fmt.Errorf("failed to insert aging run: %w", err)
	}
	return nil
}

func (t *Tx) UpdateAgingRun(ctx context.Context, run *herd.AgingRun) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE aging_runs
		SET completed_at = ?, status = ?, moved_to_pending = ?,
			moved_to_late_gestation = ?, error = ?
		WHERE id = ?`,
		nullTimeString(run.CompletedAt), run.Status, run.MovedToPending,
		run.MovedToLateGestation, run.Error, run.ID)
	if err != nil {
		return fmt.Errorf("failed to update aging run: %w", err)
	}
	return nil
}
