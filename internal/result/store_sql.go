package result

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/Vaibhav2824/IntegriGuard/internal/common"
)

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(conn *sql.DB) *SQLStore { return &SQLStore{db: conn} }

const resultCols = `id,exam_id,student_id,name,email,score,time_spent,submitted_at,risk_score,status,
was_terminated,tab_switches,behavior_flags_json,termination_reason,snapshot_key`

func (s *SQLStore) Put(ctx context.Context, r ExamResult) (ExamResult, bool, error) {
	if r.BehaviorFlags == nil {
		r.BehaviorFlags = []string{}
	}
	flags, err := json.Marshal(r.BehaviorFlags)
	if err != nil {
		return ExamResult{}, false, err
	}
	terminated := 0
	if r.WasTerminated {
		terminated = 1
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO exam_results (`+resultCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (exam_id, student_id) DO NOTHING`,
		r.ID, r.ExamID, r.StudentID, r.Name, r.Email, r.Score, r.TimeSpent, r.SubmittedAt, r.RiskScore,
		string(r.Status), terminated, r.TabSwitches, string(flags), r.TerminationReason, r.SnapshotKey)
	if err != nil {
		return ExamResult{}, false, err
	}
	n, _ := res.RowsAffected()

	stored, err := scanResult(s.db.QueryRowContext(ctx,
		`SELECT `+resultCols+` FROM exam_results WHERE exam_id=$1 AND student_id=$2`, r.ExamID, r.StudentID))
	if err != nil {
		return ExamResult{}, false, err
	}
	return stored, n > 0, nil
}

func (s *SQLStore) ByExam(ctx context.Context, examID string) ([]ExamResult, error) {
	return s.many(ctx, `SELECT `+resultCols+` FROM exam_results WHERE exam_id=$1 ORDER BY submitted_at DESC, id`, examID)
}

func (s *SQLStore) ByStudent(ctx context.Context, studentID string) ([]ExamResult, error) {
	return s.many(ctx, `SELECT `+resultCols+` FROM exam_results WHERE student_id=$1 ORDER BY submitted_at DESC, id`, studentID)
}

func (s *SQLStore) Recent(ctx context.Context, studentID string, limit int) ([]ExamResult, error) {
	if limit <= 0 {
		limit = 5
	}
	return s.many(ctx, `SELECT `+resultCols+` FROM exam_results WHERE student_id=$1
		ORDER BY submitted_at DESC, id LIMIT $2`, studentID, limit)
}

func (s *SQLStore) Stats(ctx context.Context, studentID string) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(AVG(score),0), COALESCE(MAX(score),0), COALESCE(MIN(score),0)
		FROM exam_results WHERE student_id=$1`, studentID).Scan(&st.Total, &st.Average, &st.Highest, &st.Lowest)
	return st, err
}

func (s *SQLStore) many(ctx context.Context, q string, args ...any) ([]ExamResult, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ExamResult{}
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResult(sc scanner) (ExamResult, error) {
	var (
		r          ExamResult
		status     string
		terminated int
		flags      string
	)
	if err := sc.Scan(&r.ID, &r.ExamID, &r.StudentID, &r.Name, &r.Email, &r.Score, &r.TimeSpent, &r.SubmittedAt,
		&r.RiskScore, &status, &terminated, &r.TabSwitches, &flags, &r.TerminationReason, &r.SnapshotKey); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ExamResult{}, common.ErrNotFound
		}
		return ExamResult{}, err
	}
	r.Status = Status(status)
	r.WasTerminated = terminated != 0
	if err := json.Unmarshal([]byte(flags), &r.BehaviorFlags); err != nil || r.BehaviorFlags == nil {
		r.BehaviorFlags = []string{}
	}
	return r, nil
}

type SQLStudentExamStore struct {
	db *sql.DB
}

func NewSQLStudentExamStore(conn *sql.DB) *SQLStudentExamStore { return &SQLStudentExamStore{db: conn} }

func (s *SQLStudentExamStore) Upsert(ctx context.Context, se StudentExam) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO student_exams (id,student_id,exam_id,score,status,started_at,completed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (student_id, exam_id) DO UPDATE SET
		  score=excluded.score,
		  status=excluded.status,
		  started_at=COALESCE(student_exams.started_at, excluded.started_at),
		  completed_at=COALESCE(excluded.completed_at, student_exams.completed_at)`,
		se.ID, se.StudentID, se.ExamID, se.Score, string(se.Status), nullInt(se.StartedAt), nullInt(se.CompletedAt))
	return err
}

func (s *SQLStudentExamStore) Get(ctx context.Context, studentID, examID string) (StudentExam, error) {
	var (
		se                 StudentExam
		status             string
		started, completed sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `SELECT id,student_id,exam_id,score,status,started_at,completed_at
		FROM student_exams WHERE student_id=$1 AND exam_id=$2`, studentID, examID).
		Scan(&se.ID, &se.StudentID, &se.ExamID, &se.Score, &status, &started, &completed)
	if errors.Is(err, sql.ErrNoRows) {
		return StudentExam{}, common.ErrNotFound
	}
	if err != nil {
		return StudentExam{}, err
	}
	se.Status = AttemptStatus(status)
	if started.Valid {
		se.StartedAt = &started.Int64
	}
	if completed.Valid {
		se.CompletedAt = &completed.Int64
	}
	return se, nil
}

func nullInt(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}
