package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Vaibhav2824/IntegriGuard/internal/common"
	"github.com/Vaibhav2824/IntegriGuard/internal/db"
)

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(conn *sql.DB) *SQLStore {
	return &SQLStore{db: conn}
}

const examCols = `id,slug,title,description,subject,duration_min,total_questions,exam_date,status,
participants,average_score,passing_score,created_by,created_at,updated_at`

func (s *SQLStore) Create(ctx context.Context, e Exam) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO exams (`+examCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		e.ID, e.Slug, e.Title, e.Description, e.Subject, e.DurationMin, e.TotalQuestions, e.Date,
		string(e.Status), e.Participants, e.AverageScore, e.PassingScore, e.CreatedBy, e.CreatedAt, e.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("exam %s: %w", e.Slug, common.ErrConflict)
	}
	return err
}

func (s *SQLStore) Get(ctx context.Context, id string) (Exam, error) {
	return s.one(ctx, `SELECT `+examCols+` FROM exams WHERE id=$1`, id)
}

func (s *SQLStore) GetBySlug(ctx context.Context, slug string) (Exam, error) {
	return s.one(ctx, `SELECT `+examCols+` FROM exams WHERE slug=$1`, slug)
}

func (s *SQLStore) Update(ctx context.Context, e Exam) error {
	res, err := s.db.ExecContext(ctx, `UPDATE exams SET slug=$1,title=$2,description=$3,subject=$4,
		duration_min=$5,total_questions=$6,exam_date=$7,status=$8,participants=$9,average_score=$10,
		passing_score=$11,updated_at=$12 WHERE id=$13`,
		e.Slug, e.Title, e.Description, e.Subject, e.DurationMin, e.TotalQuestions, e.Date, string(e.Status),
		e.Participants, e.AverageScore, e.PassingScore, e.UpdatedAt, e.ID)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("exam %s: %w", e.Slug, common.ErrConflict)
	}
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	return db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE exam_id=$1`, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM exams WHERE id=$1`, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return common.ErrNotFound
		}
		return nil
	})
}

func (s *SQLStore) List(ctx context.Context, opts ListOpts) ([]Exam, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if q := strings.TrimSpace(opts.Q); q != "" {
		p := arg("%" + strings.ToLower(q) + "%")
		where = append(where, "(LOWER(title) LIKE "+p+" OR LOWER(subject) LIKE "+p+")")
	}
	if opts.CreatedBy != "" {
		where = append(where, "created_by = "+arg(opts.CreatedBy))
	}
	if opts.Status != "" {
		where = append(where, "status = "+arg(string(opts.Status)))
	}
	if opts.From != "" {
		where = append(where, "exam_date >= "+arg(opts.From))
	}
	if opts.To != "" {
		where = append(where, "exam_date <= "+arg(opts.To))
	}

	q := `SELECT ` + examCols + ` FROM exams`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	switch opts.Order {
	case OrderDateAsc:
		q += " ORDER BY exam_date ASC, created_at ASC"
	case OrderDateDesc:
		q += " ORDER BY exam_date DESC, created_at DESC"
	case OrderTitleAsc:
		q += " ORDER BY title ASC"
	default:
		q += " ORDER BY created_at DESC, id ASC"
	}
	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q += " LIMIT " + arg(limit) + " OFFSET " + arg(max(opts.Offset, 0))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Exam{}
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLStore) AddQuestion(ctx context.Context, q Question) (Question, error) {
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM exams WHERE id=$1`, q.ExamID).Scan(&n); err != nil {
			return err
		}
		if n == 0 {
			return common.ErrNotFound
		}
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions WHERE exam_id=$1`, q.ExamID).Scan(&n); err != nil {
			return err
		}
		q.Position = n
		opts, err := json.Marshal(q.Options)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO questions (id,exam_id,position,type,text,options_json,answer,points)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			q.ID, q.ExamID, q.Position, string(q.Type), q.Text, string(opts), q.Answer, q.Points); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE exams SET total_questions=$1 WHERE id=$2`, n+1, q.ExamID)
		return err
	})
	if err != nil {
		return Question{}, err
	}
	return q, nil
}

func (s *SQLStore) Questions(ctx context.Context, examID string) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,exam_id,position,type,text,options_json,answer,points
		FROM questions WHERE exam_id=$1 ORDER BY position ASC`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Question{}
	for rows.Next() {
		var q Question
		var typ, opts string
		if err := rows.Scan(&q.ID, &q.ExamID, &q.Position, &typ, &q.Text, &opts, &q.Answer, &q.Points); err != nil {
			return nil, err
		}
		q.Type = QuestionType(typ)
		if err := json.Unmarshal([]byte(opts), &q.Options); err != nil {
			q.Options = nil
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *SQLStore) one(ctx context.Context, q, arg string) (Exam, error) {
	e, err := scanExam(s.db.QueryRowContext(ctx, q, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return Exam{}, common.ErrNotFound
	}
	return e, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExam(sc scanner) (Exam, error) {
	var e Exam
	var status string
	err := sc.Scan(&e.ID, &e.Slug, &e.Title, &e.Description, &e.Subject, &e.DurationMin, &e.TotalQuestions,
		&e.Date, &status, &e.Participants, &e.AverageScore, &e.PassingScore, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	e.Status = Status(status)
	return e, err
}
