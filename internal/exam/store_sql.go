package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SQLStore implements CatalogStore, ResultStore and UserStore over the schema
// created by db.Open. Queries use $N placeholders, which both drivers accept.
type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

// ---- catalog ----

// PutCatalog replaces every catalog table in one transaction. Results are not
// touched.
func (s *SQLStore) PutCatalog(ctx context.Context, c Catalog) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, t := range []string{"module_subject_configs", "module_groups", "modules", "questions", "subjects", "study_groups"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+t); err != nil {
			return fmt.Errorf("clear %s: %w", t, err)
		}
	}
	for _, g := range c.Groups {
		if _, err := tx.ExecContext(ctx, `INSERT INTO study_groups (id,name,is_archived) VALUES ($1,$2,$3)`,
			g.ID, g.Name, g.IsArchived); err != nil {
			return fmt.Errorf("insert group %s: %w", g.ID, err)
		}
	}
	for _, sub := range c.Subjects {
		if _, err := tx.ExecContext(ctx, `INSERT INTO subjects (id,name,is_demo) VALUES ($1,$2,$3)`,
			sub.ID, sub.Name, sub.IsDemo); err != nil {
			return fmt.Errorf("insert subject %s: %w", sub.ID, err)
		}
	}
	for _, q := range c.Questions {
		opts, err := json.Marshal(q.Options)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO questions (id,subject_id,text,options_json,correct_index)
			VALUES ($1,$2,$3,$4,$5)`, q.ID, q.SubjectID, q.Text, string(opts), q.CorrectIndex); err != nil {
			return fmt.Errorf("insert question %s: %w", q.ID, err)
		}
	}
	for _, m := range c.Modules {
		st := m.Settings
		if _, err := tx.ExecContext(ctx, `INSERT INTO modules
			(id,name,kind,points_per_answer,duration_minutes,passing_score,randomize,is_active)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			m.ID, m.Name, string(m.Kind), st.PointsPerAnswer, st.DurationMinutes, st.PassingScore, st.Randomize, st.IsActive); err != nil {
			return fmt.Errorf("insert module %s: %w", m.ID, err)
		}
		for _, g := range m.GroupIDs {
			if _, err := tx.ExecContext(ctx, `INSERT INTO module_groups (module_id,group_id) VALUES ($1,$2)`, m.ID, g); err != nil {
				return fmt.Errorf("assign module %s to %s: %w", m.ID, g, err)
			}
		}
		for i, cfg := range m.SubjectConfigs {
			if _, err := tx.ExecContext(ctx, `INSERT INTO module_subject_configs (module_id,subject_id,question_count,position)
				VALUES ($1,$2,$3,$4)`, m.ID, cfg.SubjectID, cfg.QuestionCount, i); err != nil {
				return fmt.Errorf("config module %s subject %s: %w", m.ID, cfg.SubjectID, err)
			}
		}
	}
	return tx.Commit()
}

func (s *SQLStore) Catalog(ctx context.Context) (Catalog, error) {
	var c Catalog
	var err error
	if c.Groups, err = s.listGroups(ctx); err != nil {
		return Catalog{}, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id,name,is_demo FROM subjects ORDER BY id`)
	if err != nil {
		return Catalog{}, err
	}
	for rows.Next() {
		var sub Subject
		if err := rows.Scan(&sub.ID, &sub.Name, &sub.IsDemo); err != nil {
			rows.Close()
			return Catalog{}, err
		}
		c.Subjects = append(c.Subjects, sub)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Catalog{}, err
	}
	if c.Modules, err = s.listModules(ctx, ""); err != nil {
		return Catalog{}, err
	}
	if c.Questions, err = s.queryQuestions(ctx, `SELECT id,subject_id,text,options_json,correct_index FROM questions ORDER BY id`); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

func (s *SQLStore) GetModule(ctx context.Context, id string) (Module, error) {
	mods, err := s.listModules(ctx, id)
	if err != nil {
		return Module{}, err
	}
	if len(mods) == 0 {
		return Module{}, ErrModuleNotFound
	}
	return mods[0], nil
}

func (s *SQLStore) GetGroup(ctx context.Context, id string) (Group, error) {
	var g Group
	err := s.db.QueryRowContext(ctx, `SELECT id,name,is_archived FROM study_groups WHERE id=$1`, id).
		Scan(&g.ID, &g.Name, &g.IsArchived)
	if errors.Is(err, sql.ErrNoRows) {
		return Group{}, ErrGroupNotFound
	}
	if err != nil {
		return Group{}, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT module_id FROM module_groups WHERE group_id=$1 ORDER BY module_id`, id)
	if err != nil {
		return Group{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var mid string
		if err := rows.Scan(&mid); err != nil {
			return Group{}, err
		}
		g.ModuleIDs = append(g.ModuleIDs, mid)
	}
	return g, rows.Err()
}

func (s *SQLStore) SubjectPool(ctx context.Context, subjectIDs []string) ([]Question, error) {
	if len(subjectIDs) == 0 {
		return nil, nil
	}
	in, args := inList(1, subjectIDs)
	return s.queryQuestions(ctx, `SELECT id,subject_id,text,options_json,correct_index FROM questions
		WHERE subject_id IN (`+in+`) ORDER BY id`, args...)
}

func (s *SQLStore) Questions(ctx context.Context, ids []string) ([]Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	in, args := inList(1, ids)
	return s.queryQuestions(ctx, `SELECT id,subject_id,text,options_json,correct_index FROM questions
		WHERE id IN (`+in+`) ORDER BY id`, args...)
}

func (s *SQLStore) queryQuestions(ctx context.Context, q string, args ...any) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Question
	for rows.Next() {
		var qq Question
		var opts string
		if err := rows.Scan(&qq.ID, &qq.SubjectID, &qq.Text, &opts, &qq.CorrectIndex); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(opts), &qq.Options); err != nil {
			return nil, fmt.Errorf("%w: question %s options: %v", ErrMalformedQuestion, qq.ID, err)
		}
		out = append(out, qq)
	}
	return out, rows.Err()
}

func (s *SQLStore) listGroups(ctx context.Context) ([]Group, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,name,is_archived FROM study_groups ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.Name, &g.IsArchived); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	links, err := s.db.QueryContext(ctx, `SELECT module_id,group_id FROM module_groups ORDER BY module_id`)
	if err != nil {
		return nil, err
	}
	defer links.Close()
	idx := make(map[string]int, len(out))
	for i, g := range out {
		idx[g.ID] = i
	}
	for links.Next() {
		var mid, gid string
		if err := links.Scan(&mid, &gid); err != nil {
			return nil, err
		}
		if i, ok := idx[gid]; ok {
			out[i].ModuleIDs = append(out[i].ModuleIDs, mid)
		}
	}
	return out, links.Err()
}

// listModules loads all modules, or only the one with the given id.
func (s *SQLStore) listModules(ctx context.Context, id string) ([]Module, error) {
	q := `SELECT id,name,kind,points_per_answer,duration_minutes,passing_score,randomize,is_active FROM modules`
	var args []any
	if id != "" {
		q += ` WHERE id=$1`
		args = append(args, id)
	}
	rows, err := s.db.QueryContext(ctx, q+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	var out []Module
	for rows.Next() {
		var m Module
		var kind string
		st := &m.Settings
		if err := rows.Scan(&m.ID, &m.Name, &kind, &st.PointsPerAnswer, &st.DurationMinutes, &st.PassingScore, &st.Randomize, &st.IsActive); err != nil {
			rows.Close()
			return nil, err
		}
		m.Kind = Kind(kind)
		out = append(out, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		m := &out[i]
		grows, err := s.db.QueryContext(ctx, `SELECT group_id FROM module_groups WHERE module_id=$1 ORDER BY group_id`, m.ID)
		if err != nil {
			return nil, err
		}
		for grows.Next() {
			var g string
			if err := grows.Scan(&g); err != nil {
				grows.Close()
				return nil, err
			}
			m.GroupIDs = append(m.GroupIDs, g)
		}
		grows.Close()

		crows, err := s.db.QueryContext(ctx, `SELECT subject_id,question_count FROM module_subject_configs
			WHERE module_id=$1 ORDER BY position`, m.ID)
		if err != nil {
			return nil, err
		}
		for crows.Next() {
			var cfg SubjectConfig
			if err := crows.Scan(&cfg.SubjectID, &cfg.QuestionCount); err != nil {
				crows.Close()
				return nil, err
			}
			m.SubjectConfigs = append(m.SubjectConfigs, cfg)
		}
		crows.Close()
	}
	return out, nil
}

// ---- results ----

func (s *SQLStore) InsertResult(ctx context.Context, r TestResult) (TestResult, bool, error) {
	return s.InsertResultTx(ctx, r, nil)
}

// InsertResultTx inserts r and, when a row was actually written, runs after in
// the same transaction.
func (s *SQLStore) InsertResultTx(ctx context.Context, r TestResult, after func(ctx context.Context, tx *sql.Tx, stored TestResult) error) (TestResult, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return TestResult{}, false, err
	}
	defer tx.Rollback()

	var taken sql.NullInt64
	if r.TimeTaken != nil {
		taken = sql.NullInt64{Int64: int64(*r.TimeTaken), Valid: true}
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO test_results
		(id,participant_id,module_id,group_id,correct_answers,total_questions,score,is_passed,completed_at,time_taken)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (participant_id,module_id,completed_at) DO NOTHING`,
		r.ID, r.ParticipantID, r.ModuleID, r.GroupID, r.CorrectAnswers, r.TotalQuestions, r.Score, r.IsPassed,
		r.Date.UnixMilli(), taken)
	if err != nil {
		return TestResult{}, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return TestResult{}, false, err
	}
	if n == 0 {
		stored, err := scanResult(tx.QueryRowContext(ctx, resultCols+` WHERE r.participant_id=$1 AND r.module_id=$2 AND r.completed_at=$3`,
			r.ParticipantID, r.ModuleID, r.Date.UnixMilli()))
		if err != nil {
			return TestResult{}, false, err
		}
		return stored, false, tx.Commit()
	}
	r.Date = ResultDate(r.Date)
	if after != nil {
		if err := after(ctx, tx, r); err != nil {
			return TestResult{}, false, err
		}
	}
	if err := tx.Commit(); err != nil {
		return TestResult{}, false, err
	}
	return r, true, nil
}

func (s *SQLStore) FindResult(ctx context.Context, id string) (TestResult, error) {
	r, err := scanResult(s.db.QueryRowContext(ctx, resultCols+` WHERE r.id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return TestResult{}, ErrResultNotFound
	}
	return r, err
}

func (s *SQLStore) ListResults(ctx context.Context, f ResultFilter) ([]TestResult, error) {
	where, args, ok := resultWhere(f)
	if !ok {
		return []TestResult{}, nil
	}
	q := resultCols
	if f.Kind != "" {
		q = resultColsByKind
	}
	rows, err := s.db.QueryContext(ctx, q+where+` ORDER BY r.completed_at DESC, r.id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []TestResult{}
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) DeleteFailing(ctx context.Context, f ResultFilter) (int, error) {
	f.FailedOnly = true
	where, args, ok := resultWhere(f)
	if !ok {
		return 0, nil
	}
	q := `DELETE FROM test_results WHERE id IN (SELECT r.id FROM test_results r`
	if f.Kind != "" {
		q += ` JOIN modules m ON m.id = r.module_id`
	}
	res, err := s.db.ExecContext(ctx, q+where+`)`, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

const resultSelect = `SELECT r.id,r.participant_id,r.module_id,r.group_id,r.correct_answers,r.total_questions,
	r.score,r.is_passed,r.completed_at,r.time_taken FROM test_results r`

const (
	resultCols       = resultSelect
	resultColsByKind = resultSelect + ` JOIN modules m ON m.id = r.module_id`
)

// resultWhere builds the WHERE clause for f. ok is false when f can match
// nothing (a non-nil empty ModuleIDs).
func resultWhere(f ResultFilter) (where string, args []any, ok bool) {
	var conds []string
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.ParticipantID != "" {
		add("r.participant_id=$%d", f.ParticipantID)
	}
	if f.ModuleID != "" {
		add("r.module_id=$%d", f.ModuleID)
	}
	if f.GroupID != "" {
		add("r.group_id=$%d", f.GroupID)
	}
	if f.FailedOnly {
		add("r.is_passed=$%d", false)
	}
	if f.Kind != "" {
		add("m.kind=$%d", string(f.Kind))
	}
	if f.ModuleIDs != nil {
		if len(f.ModuleIDs) == 0 {
			return "", nil, false
		}
		in, inArgs := inList(len(args)+1, f.ModuleIDs)
		args = append(args, inArgs...)
		conds = append(conds, "r.module_id IN ("+in+")")
	}
	if len(conds) == 0 {
		return "", nil, true
	}
	return " WHERE " + strings.Join(conds, " AND "), args, true
}

type rowScanner interface{ Scan(dest ...any) error }

func scanResult(row rowScanner) (TestResult, error) {
	var r TestResult
	var ms int64
	var taken sql.NullInt64
	if err := row.Scan(&r.ID, &r.ParticipantID, &r.ModuleID, &r.GroupID, &r.CorrectAnswers, &r.TotalQuestions,
		&r.Score, &r.IsPassed, &ms, &taken); err != nil {
		return TestResult{}, err
	}
	r.Date = time.UnixMilli(ms).UTC()
	if taken.Valid {
		v := int(taken.Int64)
		r.TimeTaken = &v
	}
	return r, nil
}

// ---- users ----

const userCols = `SELECT id,username,full_name,workplace,role,group_id,password_hash FROM users`

func (s *SQLStore) GetParticipant(ctx context.Context, id string) (Participant, error) {
	p, _, err := scanUser(s.db.QueryRowContext(ctx, userCols+` WHERE id=$1`, id))
	return p, err
}

func (s *SQLStore) FindByUsername(ctx context.Context, username string) (Participant, string, error) {
	return scanUser(s.db.QueryRowContext(ctx, userCols+` WHERE username=$1`, username))
}

func (s *SQLStore) UpsertParticipants(ctx context.Context, rows []ParticipantRow) (inserted, updated int, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback()
	for _, r := range rows {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id=$1`, r.ID).Scan(&one)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			inserted++
		case err != nil:
			return 0, 0, err
		default:
			updated++
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO users (id,username,full_name,workplace,role,group_id,password_hash)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			ON CONFLICT (id) DO UPDATE SET
			  username=EXCLUDED.username,
			  full_name=EXCLUDED.full_name,
			  workplace=EXCLUDED.workplace,
			  role=EXCLUDED.role,
			  group_id=EXCLUDED.group_id,
			  password_hash=CASE WHEN EXCLUDED.password_hash='' THEN users.password_hash ELSE EXCLUDED.password_hash END`,
			r.ID, r.Username, r.FullName, r.Workplace, string(r.Role), r.GroupID, r.PasswordHash); err != nil {
			return 0, 0, fmt.Errorf("upsert user %s: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, 0, err
	}
	return inserted, updated, nil
}

func (s *SQLStore) ListParticipants(ctx context.Context, role Role) ([]Participant, error) {
	q := userCols
	var args []any
	if role != "" {
		q += ` WHERE role=$1`
		args = append(args, string(role))
	}
	rows, err := s.db.QueryContext(ctx, q+` ORDER BY username`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Participant{}
	for rows.Next() {
		p, _, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLStore) SetPasswordHash(ctx context.Context, id, hash string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash=$1 WHERE id=$2`, hash, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrParticipantNotFound
	}
	return nil
}

func scanUser(row rowScanner) (Participant, string, error) {
	var p Participant
	var role, hash string
	err := row.Scan(&p.ID, &p.Username, &p.FullName, &p.Workplace, &role, &p.GroupID, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return Participant{}, "", ErrParticipantNotFound
	}
	if err != nil {
		return Participant{}, "", err
	}
	p.Role = Role(role)
	return p, hash, nil
}

// inList renders "$start,$start+1,..." for ids.
func inList(start int, ids []string) (string, []any) {
	ph := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		ph[i] = fmt.Sprintf("$%d", start+i)
		args[i] = id
	}
	return strings.Join(ph, ","), args
}
