package exam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Vaibhav2824/IntegriGuard/internal/common"
	"github.com/Vaibhav2824/IntegriGuard/internal/kv"
)

// ExamsKey holds a JSON map of exams keyed by id.
const ExamsKey = "exams"

type examDoc struct {
	Exam
	Questions []Question `json:"questions"`
}

// KVStore keeps every exam, with its questions, in one JSON document.
// When nothing has been stored yet it serves SampleExam.
type KVStore struct {
	kv kv.Store
}

func NewKVStore(s kv.Store) *KVStore { return &KVStore{kv: s} }

func decodeExams(b []byte) (map[string]examDoc, error) {
	m := map[string]examDoc{}
	if len(b) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode %s: %w", ExamsKey, err)
	}
	return m, nil
}

func sampleDocs() map[string]examDoc {
	e, qs := SampleExam()
	return map[string]examDoc{e.ID: {Exam: e, Questions: qs}}
}

func (s *KVStore) load(ctx context.Context) (map[string]examDoc, error) {
	b, err := s.kv.Get(ctx, ExamsKey)
	if errors.Is(err, common.ErrNotFound) {
		return sampleDocs(), nil
	}
	if err != nil {
		return nil, err
	}
	return decodeExams(b)
}

func (s *KVStore) update(ctx context.Context, fn func(m map[string]examDoc) error) error {
	return s.kv.Update(ctx, ExamsKey, func(cur []byte) ([]byte, error) {
		if cur == nil {
			// first write keeps the sample that reads were serving
			cur, _ = json.Marshal(sampleDocs())
		}
		m, err := decodeExams(cur)
		if err != nil {
			return nil, err
		}
		if err := fn(m); err != nil {
			return nil, err
		}
		return json.Marshal(m)
	})
}

func (s *KVStore) Create(ctx context.Context, e Exam) error {
	return s.update(ctx, func(m map[string]examDoc) error {
		for _, d := range m {
			if d.ID == e.ID || d.Slug == e.Slug {
				return fmt.Errorf("exam %s: %w", e.Slug, common.ErrConflict)
			}
		}
		m[e.ID] = examDoc{Exam: e, Questions: []Question{}}
		return nil
	})
}

func (s *KVStore) Get(ctx context.Context, id string) (Exam, error) {
	m, err := s.load(ctx)
	if err != nil {
		return Exam{}, err
	}
	d, ok := m[id]
	if !ok {
		return Exam{}, common.ErrNotFound
	}
	return d.Exam, nil
}

func (s *KVStore) GetBySlug(ctx context.Context, slug string) (Exam, error) {
	m, err := s.load(ctx)
	if err != nil {
		return Exam{}, err
	}
	for _, d := range m {
		if d.Slug == slug {
			return d.Exam, nil
		}
	}
	return Exam{}, common.ErrNotFound
}

func (s *KVStore) Update(ctx context.Context, e Exam) error {
	return s.update(ctx, func(m map[string]examDoc) error {
		d, ok := m[e.ID]
		if !ok {
			return common.ErrNotFound
		}
		for id, other := range m {
			if id != e.ID && other.Slug == e.Slug {
				return fmt.Errorf("exam %s: %w", e.Slug, common.ErrConflict)
			}
		}
		d.Exam = e
		m[e.ID] = d
		return nil
	})
}

func (s *KVStore) Delete(ctx context.Context, id string) error {
	return s.update(ctx, func(m map[string]examDoc) error {
		if _, ok := m[id]; !ok {
			return common.ErrNotFound
		}
		delete(m, id)
		return nil
	})
}

func (s *KVStore) List(ctx context.Context, opts ListOpts) ([]Exam, error) {
	m, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(opts.Q))
	out := []Exam{}
	for _, d := range m {
		e := d.Exam
		if q != "" && !strings.Contains(strings.ToLower(e.Title), q) && !strings.Contains(strings.ToLower(e.Subject), q) {
			continue
		}
		if opts.CreatedBy != "" && e.CreatedBy != opts.CreatedBy {
			continue
		}
		if opts.Status != "" && e.Status != opts.Status {
			continue
		}
		if opts.From != "" && e.Date < opts.From {
			continue
		}
		if opts.To != "" && e.Date > opts.To {
			continue
		}
		out = append(out, e)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch opts.Order {
		case OrderDateAsc:
			if a.Date != b.Date {
				return a.Date < b.Date
			}
			return a.CreatedAt < b.CreatedAt
		case OrderDateDesc:
			if a.Date != b.Date {
				return a.Date > b.Date
			}
			return a.CreatedAt > b.CreatedAt
		case OrderTitleAsc:
			return a.Title < b.Title
		default:
			if a.CreatedAt != b.CreatedAt {
				return a.CreatedAt > b.CreatedAt
			}
			return a.ID < b.ID
		}
	})

	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	off := max(opts.Offset, 0)
	if off >= len(out) {
		return []Exam{}, nil
	}
	return out[off:min(off+limit, len(out))], nil
}

func (s *KVStore) AddQuestion(ctx context.Context, q Question) (Question, error) {
	err := s.update(ctx, func(m map[string]examDoc) error {
		d, ok := m[q.ExamID]
		if !ok {
			return common.ErrNotFound
		}
		q.Position = len(d.Questions)
		d.Questions = append(d.Questions, q)
		d.TotalQuestions = len(d.Questions)
		m[q.ExamID] = d
		return nil
	})
	if err != nil {
		return Question{}, err
	}
	return q, nil
}

func (s *KVStore) Questions(ctx context.Context, examID string) ([]Question, error) {
	m, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	d, ok := m[examID]
	if !ok {
		return nil, common.ErrNotFound
	}
	return append([]Question{}, d.Questions...), nil
}
