package exam

import "time"

type Status string

const (
	StatusUpcoming  Status = "upcoming"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusUpcoming, StatusActive, StatusCompleted:
		return true
	}
	return false
}

type QuestionType string

const (
	TypeMultipleChoice QuestionType = "multiple-choice"
	TypeText           QuestionType = "text"
	TypeFileUpload     QuestionType = "file-upload"
)

func (t QuestionType) Valid() bool {
	switch t {
	case TypeMultipleChoice, TypeText, TypeFileUpload:
		return true
	}
	return false
}

type Question struct {
	ID       string       `json:"id"`
	ExamID   string       `json:"exam_id"`
	Type     QuestionType `json:"type"`
	Text     string       `json:"text"`
	Options  []string     `json:"options,omitempty"`
	Answer   string       `json:"answer,omitempty"`
	Points   float64      `json:"points"`
	Position int          `json:"position"`
}

// StudentView hides the answer key.
func (q Question) StudentView() Question {
	q.Answer = ""
	return q
}

type Exam struct {
	ID             string  `json:"id"`
	Slug           string  `json:"slug"`
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	Subject        string  `json:"subject"`
	DurationMin    int     `json:"duration"`
	TotalQuestions int     `json:"total_questions"`
	Date           string  `json:"date"` // YYYY-MM-DD
	Status         Status  `json:"status"`
	Participants   int     `json:"participants"`
	AverageScore   float64 `json:"average_score"`
	PassingScore   float64 `json:"passing_score"`
	CreatedBy      string  `json:"created_by"`
	CreatedAt      int64   `json:"created_at"`
	UpdatedAt      int64   `json:"updated_at"`
}

func (e Exam) Duration() time.Duration { return time.Duration(e.DurationMin) * time.Minute }

// View is one of UpcomingExam, ActiveExam or CompletedExam.
type View interface {
	ExamStatus() Status
}

// Summary holds the fields every status shares.
type Summary struct {
	ID             string `json:"id"`
	Slug           string `json:"slug"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	Subject        string `json:"subject"`
	DurationMin    int    `json:"duration"`
	TotalQuestions int    `json:"total_questions"`
	Date           string `json:"date"`
	Status         Status `json:"status"`
}

type UpcomingExam struct {
	Summary
	PassingScore float64 `json:"passing_score"`
}

type ActiveExam struct {
	Summary
	Participants int     `json:"participants"`
	PassingScore float64 `json:"passing_score"`
}

type CompletedExam struct {
	Summary
	Participants int     `json:"participants"`
	AverageScore float64 `json:"average_score"`
	PassingScore float64 `json:"passing_score"`
}

func (UpcomingExam) ExamStatus() Status  { return StatusUpcoming }
func (ActiveExam) ExamStatus() Status    { return StatusActive }
func (CompletedExam) ExamStatus() Status { return StatusCompleted }

// Variant returns the status-specific view; unknown statuses read as upcoming.
func (e Exam) Variant() View {
	s := Summary{
		ID: e.ID, Slug: e.Slug, Title: e.Title, Description: e.Description, Subject: e.Subject,
		DurationMin: e.DurationMin, TotalQuestions: e.TotalQuestions, Date: e.Date, Status: e.Status,
	}
	switch e.Status {
	case StatusActive:
		return ActiveExam{Summary: s, Participants: e.Participants, PassingScore: e.PassingScore}
	case StatusCompleted:
		return CompletedExam{Summary: s, Participants: e.Participants, AverageScore: e.AverageScore, PassingScore: e.PassingScore}
	default:
		s.Status = StatusUpcoming
		return UpcomingExam{Summary: s, PassingScore: e.PassingScore}
	}
}
