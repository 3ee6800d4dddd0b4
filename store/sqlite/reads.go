/*
reads.go - Read models and plain CRUD used by the HTTP layer

PURPOSE:
  The breeding/placement/aging services own every multi-step write. What is
  left - lookup maintenance and list/detail reads - does not need the domain
  layer, so the handlers call these Store methods directly. Mutations still
  go through RunInTx for the write mutex.
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/manfad/cowcard/herd"
)

// =============================================================================
// READ MODELS
// =============================================================================

// PdView is a pregnancy diagnosis joined with its owning AI record and dam.
type PdView struct {
	herd.PregnancyDiagnosis
	AiCode string
	DamID  int64
	DamTag string
}

// CowDetail is the full per-animal view: the row, resolved lookups, both
// placement histories and the breeding records the animal appears in.
type CowDetail struct {
	Cow              herd.Cow
	ColorName        string
	FeedlotName      string
	TransponderCode  string
	FeedlotStays     []herd.FeedlotHistory
	TransponderWears []herd.TransponderHistory
	AiRecords        []herd.AiRecordView // as dam
	Calves           []herd.Cow          // animals whose dam this is
}

// =============================================================================
// COWS
// =============================================================================

// SaveCow inserts the animal and returns it with its id set.
func (s *Store) SaveCow(ctx context.Context, c *herd.Cow) (*herd.Cow, error) {
	err := s.RunInTx(ctx, func(tx herd.Tx) error {
		id, err := tx.InsertCow(ctx, c)
		if err != nil {
			return err
		}
		c.ID = id
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) listCowsWhere(ctx context.Context, where string, args ...any) ([]herd.Cow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+cowColumns+` FROM cows WHERE `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list cows: %w", err)
	}
	defer rows.Close()

	var cows []herd.Cow
	for rows.Next() {
		c, err := scanCowRows(rows)
		if err != nil {
			return nil, err
		}
		cows = append(cows, *c)
	}
	return cows, rows.Err()
}

// ListCows returns every active animal.
func (s *Store) ListCows(ctx context.Context) ([]herd.Cow, error) {
	return s.listCowsWhere(ctx, `active = 1`)
}

// ListDams returns active female animals in the dam role, the pick list for
// AI record creation.
func (s *Store) ListDams(ctx context.Context) ([]herd.Cow, error) {
	return s.listCowsWhere(ctx, `active = 1 AND role = ? AND gender = ?`,
		int(herd.RoleDam), int(herd.GenderFemale))
}

// GetCowDetail assembles the full view for one animal.
func (s *Store) GetCowDetail(ctx context.Context, id int64) (*CowDetail, error) {
	cow, err := getCow(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if cow == nil {
		return nil, &herd.NotFoundError{Kind: "cow", ID: id}
	}

	detail := &CowDetail{Cow: *cow}

	if cow.ColorID != nil {
		if err := s.db.QueryRowContext(ctx,
			`SELECT name FROM colors WHERE id = ?`, *cow.ColorID).
			Scan(&detail.ColorName); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to resolve color: %w", err)
		}
	}
	if cow.CurrentFeedlotID != nil {
		if f, err := getFeedlot(ctx, s.db, *cow.CurrentFeedlotID); err != nil {
			return nil, err
		} else if f != nil {
			detail.FeedlotName = f.Name
		}
	}
	if cow.CurrentTransponderID != nil {
		if tr, err := getTransponder(ctx, s.db, *cow.CurrentTransponderID); err != nil {
			return nil, err
		} else if tr != nil {
			detail.TransponderCode = tr.Code
		}
	}

	if detail.FeedlotStays, err = s.ListFeedlotHistoryByCow(ctx, id); err != nil {
		return nil, err
	}
	if detail.TransponderWears, err = s.ListTransponderHistoryByCow(ctx, id); err != nil {
		return nil, err
	}

	views, err := listAiRecordViews(ctx, s.db)
	if err != nil {
		return nil, err
	}
	for _, v := range views {
		if v.DamID == id {
			detail.AiRecords = append(detail.AiRecords, v)
		}
	}

	if detail.Calves, err = s.listCowsWhere(ctx, `dam_id = ?`, id); err != nil {
		return nil, err
	}
	return detail, nil
}

// scanCowRows is scanCow for a multi-row result set.
func scanCowRows(rows *sql.Rows) (*herd.Cow, error) {
	var c herd.Cow
	var gender, role, status int
	var colorID, damID, semenID, feedlotID, transponderID sql.NullInt64
	var dob, weight sql.NullString
	var createdAt string

	if err := rows.Scan(&c.ID, &c.Tag, &gender, &role, &status, &colorID, &dob, &weight,
		&damID, &semenID, &feedlotID, &transponderID,
		&c.Active, &c.Remark, &createdAt); err != nil {
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

// =============================================================================
// SEMEN
// =============================================================================

func (s *Store) GetSemen(ctx context.Context, id int64) (*herd.Semen, error) {
	return getSemen(ctx, s.db, id)
}

func (s *Store) ListSemens(ctx context.Context) ([]herd.Semen, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+semenColumns+` FROM semens ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list semens: %w", err)
	}
	defer rows.Close()

	var semens []herd.Semen
	for rows.Next() {
		var sm herd.Semen
		var date sql.NullString
		var straw sql.NullInt64
		if err := rows.Scan(&sm.ID, &sm.Name, &sm.Sire, &date, &straw, &sm.Bull, &sm.Remark); err != nil {
			return nil, fmt.Errorf("failed to scan semen: %w", err)
		}
		sm.Date = scanNullDate(date)
		if straw.Valid {
			n := int(straw.Int64)
			sm.Straw = &n
		}
		semens = append(semens, sm)
	}
	return semens, rows.Err()
}

func (s *Store) SaveSemen(ctx context.Context, sm *herd.Semen) (*herd.Semen, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var straw any
	if sm.Straw != nil {
		straw = *sm.Straw
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO semens (name, sire, date, straw, bull, remark)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sm.Name, sm.Sire, nullDateString(sm.Date), straw, sm.Bull, sm.Remark)
	if err != nil {
		return nil, fmt.Errorf("failed to insert semen: %w", err)
	}
	sm.ID, err = res.LastInsertId()
	return sm, err
}

func (s *Store) UpdateSemen(ctx context.Context, sm *herd.Semen) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var straw any
	if sm.Straw != nil {
		straw = *sm.Straw
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE semens SET name = ?, sire = ?, date = ?, straw = ?, bull = ?, remark = ?
		WHERE id = ?`,
		sm.Name, sm.Sire, nullDateString(sm.Date), straw, sm.Bull, sm.Remark, sm.ID)
	if err != nil {
		return fmt.Errorf("failed to update semen: %w", err)
	}
	return mustAffectOne(res, &herd.NotFoundError{Kind: "semen", ID: sm.ID})
}

// ToggleBull flips the batch's bull flag and returns the new value.
func (s *Store) ToggleBull(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE semens SET bull = NOT bull WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to toggle bull flag: %w", err)
	}
	if err := mustAffectOne(res, &herd.NotFoundError{Kind: "semen", ID: id}); err != nil {
		return false, err
	}
	var bull bool
	err = s.db.QueryRowContext(ctx, `SELECT bull FROM semens WHERE id = ?`, id).Scan(&bull)
	return bull, err
}

// =============================================================================
// FEEDLOTS, TRANSPONDERS, INSEMINATORS, COLORS
// =============================================================================

func (s *Store) GetFeedlot(ctx context.Context, id int64) (*herd.Feedlot, error) {
	return getFeedlot(ctx, s.db, id)
}

func (s *Store) ListFeedlots(ctx context.Context) ([]herd.Feedlot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, active, remark FROM feedlots WHERE active = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedlots: %w", err)
	}
	defer rows.Close()

	var feedlots []herd.Feedlot
	for rows.Next() {
		var f herd.Feedlot
		if err := rows.Scan(&f.ID, &f.Name, &f.Active, &f.Remark); err != nil {
			return nil, fmt.Errorf("failed to scan feedlot: %w", err)
		}
		feedlots = append(feedlots, f)
	}
	return feedlots, rows.Err()
}

func (s *Store) SaveFeedlot(ctx context.Context, f *herd.Feedlot) (*herd.Feedlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO feedlots (name, active, remark) VALUES (?, ?, ?)`,
		f.Name, f.Active, f.Remark)
	if err != nil {
		return nil, fmt.Errorf("failed to insert feedlot: %w", err)
	}
	f.ID, err = res.LastInsertId()
	return f, err
}

func (s *Store) ListTransponders(ctx context.Context) ([]herd.Transponder, error) {
	return s.listTranspondersWhere(ctx, `1 = 1`)
}

// ListAvailableTransponders returns tags not currently worn by any animal.
func (s *Store) ListAvailableTransponders(ctx context.Context) ([]herd.Transponder, error) {
	return s.listTranspondersWhere(ctx, `current_cow_id IS NULL`)
}

func (s *Store) listTranspondersWhere(ctx context.Context, where string) ([]herd.Transponder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, code, current_cow_id, assigned_date, remark
		 FROM transponders WHERE `+where+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list transponders: %w", err)
	}
	defer rows.Close()

	var transponders []herd.Transponder
	for rows.Next() {
		var tr herd.Transponder
		var cowID sql.NullInt64
		var assignedDate sql.NullString
		if err := rows.Scan(&tr.ID, &tr.Code, &cowID, &assignedDate, &tr.Remark); err != nil {
			return nil, fmt.Errorf("failed to scan transponder: %w", err)
		}
		tr.CurrentCowID = scanNullInt(cowID)
		tr.AssignedDate = scanNullDate(assignedDate)
		transponders = append(transponders, tr)
	}
	return transponders, rows.Err()
}

func (s *Store) SaveTransponder(ctx context.Context, tr *herd.Transponder) (*herd.Transponder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO transponders (code, remark) VALUES (?, ?)`,
		tr.Code, tr.Remark)
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, fmt.Errorf("transponder code %q already exists: %w", tr.Code, err)
		}
		return nil, fmt.Errorf("failed to insert transponder: %w", err)
	}
	tr.ID, err = res.LastInsertId()
	return tr, err
}

func (s *Store) ListInseminators(ctx context.Context) ([]herd.Inseminator, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, active, remark FROM inseminators WHERE active = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list inseminators: %w", err)
	}
	defer rows.Close()

	var inseminators []herd.Inseminator
	for rows.Next() {
		var in herd.Inseminator
		if err := rows.Scan(&in.ID, &in.Name, &in.Active, &in.Remark); err != nil {
			return nil, fmt.Errorf("failed to scan inseminator: %w", err)
		}
		inseminators = append(inseminators, in)
	}
	return inseminators, rows.Err()
}

func (s *Store) SaveInseminator(ctx context.Context, in *herd.Inseminator) (*herd.Inseminator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO inseminators (name, active, remark) VALUES (?, ?, ?)`,
		in.Name, in.Active, in.Remark)
	if err != nil {
		return nil, fmt.Errorf("failed to insert inseminator: %w", err)
	}
	in.ID, err = res.LastInsertId()
	return in, err
}

func (s *Store) ListColors(ctx context.Context) ([]herd.Color, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, active FROM colors WHERE active = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list colors: %w", err)
	}
	defer rows.Close()

	var colors []herd.Color
	for rows.Next() {
		var c herd.Color
		if err := rows.Scan(&c.ID, &c.Name, &c.Active); err != nil {
			return nil, fmt.Errorf("failed to scan color: %w", err)
		}
		colors = append(colors, c)
	}
	return colors, rows.Err()
}

func (s *Store) SaveColor(ctx context.Context, c *herd.Color) (*herd.Color, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO colors (name, active) VALUES (?, ?)`, c.Name, c.Active)
	if err != nil {
		return nil, fmt.Errorf("failed to insert color: %w", err)
	}
	c.ID, err = res.LastInsertId()
	return c, err
}

// =============================================================================
// HISTORIES
// =============================================================================

func (s *Store) ListFeedlotHistoryByCow(ctx context.Context, cowID int64) ([]herd.FeedlotHistory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, cow_id, feedlot_id, moved_in_at, moved_out_at
		FROM cow_feedlot_histories WHERE cow_id = ? ORDER BY moved_in_at, id`, cowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedlot history: %w", err)
	}
	defer rows.Close()

	var stays []herd.FeedlotHistory
	for rows.Next() {
		var h herd.FeedlotHistory
		var movedIn string
		var movedOut sql.NullString
		if err := rows.Scan(&h.ID, &h.CowID, &h.FeedlotID, &movedIn, &movedOut); err != nil {
			return nil, fmt.Errorf("failed to scan feedlot history: %w", err)
		}
		h.MovedInAt = parseTime(movedIn)
		h.MovedOutAt = scanNullTime(movedOut)
		stays = append(stays, h)
	}
	return stays, rows.Err()
}

func (s *Store) ListTransponderHistoryByCow(ctx context.Context, cowID int64) ([]herd.TransponderHistory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, cow_id, transponder_id, assigned_at, unassigned_at
		FROM cow_transponder_histories WHERE cow_id = ? ORDER BY assigned_at, id`, cowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transponder history: %w", err)
	}
	defer rows.Close()

	var wears []herd.TransponderHistory
	for rows.Next() {
		var h herd.TransponderHistory
		var assigned string
		var unassigned sql.NullString
		if err := rows.Scan(&h.ID, &h.CowID, &h.TransponderID, &assigned, &unassigned); err != nil {
			return nil, fmt.Errorf("failed to scan transponder history: %w", err)
		}
		h.AssignedAt = parseTime(assigned)
		h.UnassignedAt = scanNullTime(unassigned)
		wears = append(wears, h)
	}
	return wears, rows.Err()
}

// =============================================================================
// PREGNANCY DIAGNOSES (list view)
// =============================================================================

func (s *Store) ListPdViews(ctx context.Context) ([]PdView, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pd.id, pd.ai_record_id, pd.ai_date, pd.diagnosis_by, pd.status, pd.pregnant_date,
			r.code, r.dam_id, c.tag
		FROM pregnancy_diagnoses pd
		JOIN ai_records r ON r.id = pd.ai_record_id
		JOIN cows c ON c.id = r.dam_id
		ORDER BY pd.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list pregnancy diagnoses: %w", err)
	}
	defer rows.Close()

	var views []PdView
	for rows.Next() {
		var v PdView
		var diagnosisBy sql.NullInt64
		var status int
		var aiDate string
		var pregnantDate sql.NullString
		if err := rows.Scan(&v.ID, &v.AiRecordID, &aiDate, &diagnosisBy, &status, &pregnantDate,
			&v.AiCode, &v.DamID, &v.DamTag); err != nil {
			return nil, fmt.Errorf("failed to scan pregnancy diagnosis view: %w", err)
		}
		v.AiDate = parseDate(aiDate)
		v.DiagnosisByID = scanNullInt(diagnosisBy)
		v.Status = herd.PdStatus(status)
		v.PregnantDate = scanNullDate(pregnantDate)
		views = append(views, v)
	}
	return views, rows.Err()
}

// =============================================================================
// SYSTEM SETTINGS & AGING RUNS
// =============================================================================

func (s *Store) ListSettings(ctx context.Context) ([]herd.SystemSetting, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, COALESCE(value, ''), remark FROM system_settings ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	defer rows.Close()

	var settings []herd.SystemSetting
	for rows.Next() {
		var st herd.SystemSetting
		if err := rows.Scan(&st.ID, &st.Name, &st.Value, &st.Remark); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		settings = append(settings, st)
	}
	return settings, rows.Err()
}

// SaveSetting inserts or updates the named setting.
func (s *Store) SaveSetting(ctx context.Context, st *herd.SystemSetting) (*herd.SystemSetting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO system_settings (name, value, remark) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, remark = excluded.remark`,
		st.Name, st.Value, st.Remark)
	if err != nil {
		return nil, fmt.Errorf("failed to save setting: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil && id != 0 {
		st.ID = id
	}
	return st, nil
}

// UpdateSetting rewrites an existing setting row by id.
func (s *Store) UpdateSetting(ctx context.Context, st *herd.SystemSetting) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE system_settings SET name = ?, value = ?, remark = ? WHERE id = ?`,
		st.Name, st.Value, st.Remark, st.ID)
	if err != nil {
		return fmt.Errorf("failed to update setting: %w", err)
	}
	return mustAffectOne(res, &herd.NotFoundError{Kind: "setting", ID: st.ID})
}

func (s *Store) ListAgingRuns(ctx context.Context) ([]herd.AgingRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, completed_at, status,
			moved_to_pending, moved_to_late_gestation, error
		FROM aging_runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list aging runs: %w", err)
	}
	defer rows.Close()

	var runs []herd.AgingRun
	for rows.Next() {
		var r herd.AgingRun
		var started string
		var completed sql.NullString
		if err := rows.Scan(&r.ID, &started, &completed, &r.Status,
			&r.MovedToPending, &r.MovedToLateGestation, &r.Error); err != nil {
			return nil, fmt.Errorf("failed to scan aging run: %w", err)
		}
		r.StartedAt = parseTime(started)
		r.CompletedAt = scanNullTime(completed)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// =============================================================================
// SMALL HELPERS
// =============================================================================

func mustAffectOne(res sql.Result, missing error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected != 1 {
		return missing
	}
	return nil
}
