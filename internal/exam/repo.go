package exam

import "context"

type Order string

const (
	OrderCreatedDesc Order = "created_desc"
	OrderDateAsc     Order = "date_asc"
	OrderDateDesc    Order = "date_desc"
	OrderTitleAsc    Order = "title_asc"
)

type ListOpts struct {
	Q         string // case-insensitive match on title or subject
	CreatedBy string
	Status    Status
	From      string // inclusive YYYY-MM-DD
	To        string // inclusive YYYY-MM-DD
	Order     Order
	Limit     int
	Offset    int
}

// Store is the persistence contract for exams and their questions.
// Lookups return common.ErrNotFound.
type Store interface {
	Create(ctx context.Context, e Exam) error
	Get(ctx context.Context, id string) (Exam, error)
	GetBySlug(ctx context.Context, slug string) (Exam, error)
	Update(ctx context.Context, e Exam) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, opts ListOpts) ([]Exam, error)

	// AddQuestion appends q and keeps the exam's total_questions in step.
	AddQuestion(ctx context.Context, q Question) (Question, error)
	Questions(ctx context.Context, examID string) ([]Question, error)
}
