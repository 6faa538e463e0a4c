package result

import "context"

type Status string

const (
	StatusCompleted  Status = "completed"
	StatusTerminated Status = "terminated"
)

// ExamResult is the single stored outcome of one student's attempt at one exam.
type ExamResult struct {
	ID                string   `json:"id"`
	ExamID            string   `json:"exam_id"`
	StudentID         string   `json:"student_id"`
	Name              string   `json:"name"`
	Email             string   `json:"email"`
	Score             float64  `json:"score"`
	TimeSpent         int      `json:"time_spent"` // minutes
	SubmittedAt       int64    `json:"submitted_at"`
	RiskScore         int      `json:"risk_score"`
	Status            Status   `json:"status"`
	WasTerminated     bool     `json:"was_terminated"`
	TabSwitches       int      `json:"tab_switches"`
	BehaviorFlags     []string `json:"behavior_flags"`
	TerminationReason string   `json:"termination_reason,omitempty"`
	SnapshotKey       string   `json:"snapshot_key,omitempty"`
}

type AttemptStatus string

const (
	AttemptNotStarted AttemptStatus = "not_started"
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
)

type StudentExam struct {
	ID          string        `json:"id"`
	StudentID   string        `json:"student_id"`
	ExamID      string        `json:"exam_id"`
	Score       float64       `json:"score"`
	Status      AttemptStatus `json:"status"`
	StartedAt   *int64        `json:"started_at,omitempty"`
	CompletedAt *int64        `json:"completed_at,omitempty"`
}

type Stats struct {
	Total   int     `json:"total"`
	Average float64 `json:"average"`
	Highest float64 `json:"highest"`
	Lowest  float64 `json:"lowest"`
}

// Store persists exam results. Put inserts at most one row per
// (exam, student); a second Put returns the row already stored and
// created=false.
type Store interface {
	Put(ctx context.Context, r ExamResult) (stored ExamResult, created bool, err error)
	ByExam(ctx context.Context, examID string) ([]ExamResult, error)
	ByStudent(ctx context.Context, studentID string) ([]ExamResult, error)
	Recent(ctx context.Context, studentID string, limit int) ([]ExamResult, error)
	Stats(ctx context.Context, studentID string) (Stats, error)
}

// StudentExamStore tracks attempt progress. Upsert keeps the first
// StartedAt ever recorded.
type StudentExamStore interface {
	Upsert(ctx context.Context, se StudentExam) error
	Get(ctx context.Context, studentID, examID string) (StudentExam, error)
}

func statsOf(rs []ExamResult) Stats {
	var st Stats
	if len(rs) == 0 {
		return st
	}
	var sum float64
	st.Lowest = rs[0].Score
	for _, r := range rs {
		sum += r.Score
		st.Highest = max(st.Highest, r.Score)
		st.Lowest = min(st.Lowest, r.Score)
	}
	st.Total = len(rs)
	st.Average = sum / float64(len(rs))
	return st
}
