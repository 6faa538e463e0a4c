package exam

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"github.com/Vaibhav2824/IntegriGuard/internal/common"
)

type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

type CreateInput struct {
	Title        string  `json:"title" validate:"required,max=200"`
	Description  string  `json:"description" validate:"max=2000"`
	Subject      string  `json:"subject" validate:"required,max=100"`
	DurationMin  int     `json:"duration" validate:"required,min=1,max=600"`
	Date         string  `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Status       Status  `json:"status" validate:"omitempty,oneof=upcoming active completed"`
	PassingScore float64 `json:"passing_score" validate:"min=0,max=100"`
}

type UpdateInput struct {
	Title        *string  `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Description  *string  `json:"description,omitempty" validate:"omitempty,max=2000"`
	Subject      *string  `json:"subject,omitempty" validate:"omitempty,min=1,max=100"`
	DurationMin  *int     `json:"duration,omitempty" validate:"omitempty,min=1,max=600"`
	Date         *string  `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Status       *Status  `json:"status,omitempty" validate:"omitempty,oneof=upcoming active completed"`
	PassingScore *float64 `json:"passing_score,omitempty" validate:"omitempty,min=0,max=100"`
}

type QuestionInput struct {
	Type    QuestionType `json:"type" validate:"required,oneof=multiple-choice text file-upload"`
	Text    string       `json:"text" validate:"required,max=4000"`
	Options []string     `json:"options" validate:"omitempty,max=10,dive,required"`
	Answer  string       `json:"answer" validate:"max=2000"`
	Points  float64      `json:"points" validate:"min=0,max=100"`
}

// Actor is who is calling: teachers may only touch exams they created.
type Actor struct {
	ID    string
	Admin bool
}

func (a Actor) owns(e Exam) bool { return a.Admin || e.CreatedBy == a.ID }

func (s *Service) Create(ctx context.Context, by Actor, in CreateInput) (Exam, error) {
	status := in.Status
	if status == "" {
		status = StatusUpcoming
	}
	sl, err := s.uniqueSlug(ctx, in.Title, "")
	if err != nil {
		return Exam{}, err
	}
	now := s.now().Unix()
	e := Exam{
		ID:           uuid.NewString(),
		Slug:         sl,
		Title:        strings.TrimSpace(in.Title),
		Description:  strings.TrimSpace(in.Description),
		Subject:      strings.TrimSpace(in.Subject),
		DurationMin:  in.DurationMin,
		Date:         in.Date,
		Status:       status,
		PassingScore: in.PassingScore,
		CreatedBy:    by.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, e); err != nil {
		return Exam{}, err
	}
	return e, nil
}

// Get accepts either an id or a slug.
func (s *Service) Get(ctx context.Context, ref string) (Exam, error) {
	e, err := s.store.Get(ctx, ref)
	if errors.Is(err, common.ErrNotFound) {
		return s.store.GetBySlug(ctx, ref)
	}
	return e, err
}

func (s *Service) List(ctx context.Context, opts ListOpts) ([]Exam, error) {
	return s.store.List(ctx, opts)
}

func (s *Service) Update(ctx context.Context, by Actor, id string, in UpdateInput) (Exam, error) {
	e, err := s.store.Get(ctx, id)
	if err != nil {
		return Exam{}, err
	}
	if !by.owns(e) {
		return Exam{}, common.ErrForbidden
	}
	if in.Title != nil && strings.TrimSpace(*in.Title) != e.Title {
		e.Title = strings.TrimSpace(*in.Title)
		if e.Slug, err = s.uniqueSlug(ctx, e.Title, e.ID); err != nil {
			return Exam{}, err
		}
	}
	if in.Description != nil {
		e.Description = strings.TrimSpace(*in.Description)
	}
	if in.Subject != nil {
		e.Subject = strings.TrimSpace(*in.Subject)
	}
	if in.DurationMin != nil {
		e.DurationMin = *in.DurationMin
	}
	if in.Date != nil {
		e.Date = *in.Date
	}
	if in.Status != nil {
		e.Status = *in.Status
	}
	if in.PassingScore != nil {
		e.PassingScore = *in.PassingScore
	}
	e.UpdatedAt = s.now().Unix()
	if err := s.store.Update(ctx, e); err != nil {
		return Exam{}, err
	}
	return e, nil
}

func (s *Service) Delete(ctx context.Context, by Actor, id string) error {
	e, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !by.owns(e) {
		return common.ErrForbidden
	}
	return s.store.Delete(ctx, id)
}

func (s *Service) AddQuestion(ctx context.Context, by Actor, examID string, in QuestionInput) (Question, error) {
	e, err := s.store.Get(ctx, examID)
	if err != nil {
		return Question{}, err
	}
	if !by.owns(e) {
		return Question{}, common.ErrForbidden
	}
	if in.Type == TypeMultipleChoice {
		if len(in.Options) < 2 {
			return Question{}, fmt.Errorf("multiple-choice needs at least two options: %w", common.ErrValidation)
		}
		if in.Answer != "" && !contains(in.Options, in.Answer) {
			return Question{}, fmt.Errorf("answer is not one of the options: %w", common.ErrValidation)
		}
	}
	points := in.Points
	if points == 0 {
		points = 1
	}
	q := Question{
		ID:      uuid.NewString(),
		ExamID:  e.ID,
		Type:    in.Type,
		Text:    strings.TrimSpace(in.Text),
		Options: in.Options,
		Answer:  strings.TrimSpace(in.Answer),
		Points:  points,
	}
	if q.Type != TypeMultipleChoice {
		q.Options = nil
	}
	return s.store.AddQuestion(ctx, q)
}

// Questions returns the exam's questions; the answer key is stripped unless
// withAnswers is set.
func (s *Service) Questions(ctx context.Context, examID string, withAnswers bool) ([]Question, error) {
	qs, err := s.store.Questions(ctx, examID)
	if err != nil {
		return nil, err
	}
	if !withAnswers {
		for i := range qs {
			qs[i] = qs[i].StudentView()
		}
	}
	return qs, nil
}

// RecordResult folds one more score into the exam's running average.
func (s *Service) RecordResult(ctx context.Context, examID string, score float64) error {
	e, err := s.store.Get(ctx, examID)
	if err != nil {
		return err
	}
	total := e.AverageScore*float64(e.Participants) + score
	e.Participants++
	e.AverageScore = total / float64(e.Participants)
	e.UpdatedAt = s.now().Unix()
	return s.store.Update(ctx, e)
}

// uniqueSlug derives a slug from title, suffixing -2, -3... on collision.
// self is ignored when checking collisions.
func (s *Service) uniqueSlug(ctx context.Context, title, self string) (string, error) {
	base := slug.Make(title)
	if base == "" {
		base = "exam"
	}
	cand := base
	for i := 2; i < 100; i++ {
		e, err := s.store.GetBySlug(ctx, cand)
		if errors.Is(err, common.ErrNotFound) || (err == nil && e.ID == self) {
			return cand, nil
		}
		if err != nil {
			return "", err
		}
		cand = fmt.Sprintf("%s-%d", base, i)
	}
	return base + "-" + uuid.NewString()[:8], nil
}

func contains(xs []string, v string) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
