// Package grading scores submitted answers against an exam's answer key.
package grading

import (
	"context"
	"math"
	"strings"
)

// Question types understood by the default grader.
const (
	TypeMultipleChoice = "multiple-choice"
	TypeText           = "text"
	TypeFileUpload     = "file-upload"
)

// Q is the part of a question grading needs.
type Q struct {
	ID        string
	Type      string
	Points    float64
	AnswerKey []string
}

// Mark is the outcome for one question.
type Mark struct {
	QuestionID  string   `json:"question_id"`
	Awarded     float64  `json:"awarded"`
	Max         float64  `json:"max"`
	NeedsManual bool     `json:"needs_manual"`
	Feedback    []string `json:"feedback,omitempty"`
}

// Strategy grades one question type.
type Strategy interface {
	Grade(ctx context.Context, q Q, response string) Mark
}

type Grader interface {
	Grade(ctx context.Context, q Q, response string) Mark
}

type defaultGrader struct {
	strategies map[string]Strategy
}

func (g *defaultGrader) Grade(ctx context.Context, q Q, response string) Mark {
	s, ok := g.strategies[q.Type]
	if !ok {
		return Mark{QuestionID: q.ID, Max: q.Points, NeedsManual: true, Feedback: []string{"no strategy for " + q.Type}}
	}
	m := s.Grade(ctx, q, response)
	m.QuestionID = q.ID
	return m
}

type Option func(*config)

type config struct {
	maxEdit     int
	fuzzyCredit float64
}

// WithMaxEditDistance sets how far a text answer may be from the key and
// still earn fuzzy credit. Zero disables fuzzy matching.
func WithMaxEditDistance(n int) Option { return func(c *config) { c.maxEdit = n } }

func WithFuzzyCredit(f float64) Option { return func(c *config) { c.fuzzyCredit = f } }

func NewDefaultGrader(opts ...Option) Grader {
	cfg := &config{maxEdit: 1, fuzzyCredit: 0.5}
	for _, o := range opts {
		o(cfg)
	}
	return &defaultGrader{
		strategies: map[string]Strategy{
			TypeMultipleChoice: choiceStrategy{},
			TypeText:           textStrategy{maxEdit: cfg.maxEdit, credit: cfg.fuzzyCredit},
			TypeFileUpload:     manualStrategy{note: "uploaded file needs review"},
		},
	}
}

type choiceStrategy struct{}

func (choiceStrategy) Grade(_ context.Context, q Q, response string) Mark {
	m := Mark{Max: q.Points}
	resp := strings.TrimSpace(response)
	for _, k := range q.AnswerKey {
		if resp != "" && resp == strings.TrimSpace(k) {
			m.Awarded = q.Points
			break
		}
	}
	return m
}

type textStrategy struct {
	maxEdit int
	credit  float64
}

func (s textStrategy) Grade(_ context.Context, q Q, response string) Mark {
	m := Mark{Max: q.Points}
	if len(q.AnswerKey) == 0 {
		m.NeedsManual = true
		m.Feedback = []string{"manual grading required"}
		return m
	}
	got := normalize(response)
	if got == "" {
		return m
	}
	near := false
	for _, k := range q.AnswerKey {
		want := normalize(k)
		if want == got {
			m.Awarded = q.Points
			return m
		}
		if s.maxEdit > 0 && levenshtein(want, got) <= s.maxEdit {
			near = true
		}
	}
	if near {
		m.Awarded = q.Points * s.credit
		m.Feedback = append(m.Feedback, "close match")
	}
	return m
}

type manualStrategy struct{ note string }

func (s manualStrategy) Grade(_ context.Context, q Q, response string) Mark {
	m := Mark{Max: q.Points, NeedsManual: true}
	if strings.TrimSpace(response) == "" {
		m.Feedback = []string{"no submission"}
		return m
	}
	m.Feedback = []string{s.note}
	return m
}

// Report aggregates marks for a whole submission.
type Report struct {
	Marks   []Mark  `json:"marks"`
	Awarded float64 `json:"awarded"`
	// Max counts only automatically graded points.
	Max     float64 `json:"max"`
	Pending int     `json:"pending"`
}

// Percent is the auto-graded score as a percentage, rounded to one
// decimal. Questions awaiting manual review do not count against it.
func (r Report) Percent() float64 {
	if r.Max <= 0 {
		return 0
	}
	return math.Round(r.Awarded/r.Max*1000) / 10
}

// Score grades every question; answers are keyed by question id.
func Score(ctx context.Context, g Grader, qs []Q, answers map[string]string) Report {
	var r Report
	for _, q := range qs {
		m := g.Grade(ctx, q, answers[q.ID])
		r.Marks = append(r.Marks, m)
		if m.NeedsManual {
			r.Pending++
			continue
		}
		r.Awarded += m.Awarded
		r.Max += m.Max
	}
	return r
}
