package result

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/Vaibhav2824/IntegriGuard/internal/common"
	"github.com/Vaibhav2824/IntegriGuard/internal/kv"
)

const (
	// UserDataKey maps examId -> studentId -> ExamResult.
	UserDataKey = "userData"
	// StudentExamsKey maps studentId -> examId -> StudentExam.
	StudentExamsKey = "studentExams"
)

type userData map[string]map[string]ExamResult

type KVStore struct {
	kv kv.Store
}

func NewKVStore(s kv.Store) *KVStore { return &KVStore{kv: s} }

func (s *KVStore) load(ctx context.Context) (userData, error) {
	b, err := s.kv.Get(ctx, UserDataKey)
	if errors.Is(err, common.ErrNotFound) {
		return userData{}, nil
	}
	if err != nil {
		return nil, err
	}
	m := userData{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode %s: %w", UserDataKey, err)
	}
	return m, nil
}

func (s *KVStore) Put(ctx context.Context, r ExamResult) (ExamResult, bool, error) {
	if r.BehaviorFlags == nil {
		r.BehaviorFlags = []string{}
	}
	var (
		stored  ExamResult
		created bool
	)
	err := s.kv.Update(ctx, UserDataKey, func(cur []byte) ([]byte, error) {
		m := userData{}
		if len(cur) > 0 {
			if err := json.Unmarshal(cur, &m); err != nil {
				return nil, fmt.Errorf("decode %s: %w", UserDataKey, err)
			}
		}
		byStudent := m[r.ExamID]
		if byStudent == nil {
			byStudent = map[string]ExamResult{}
			m[r.ExamID] = byStudent
		}
		if prev, ok := byStudent[r.StudentID]; ok {
			stored, created = prev, false
		} else {
			byStudent[r.StudentID] = r
			stored, created = r, true
		}
		return json.Marshal(m)
	})
	if err != nil {
		return ExamResult{}, false, err
	}
	return stored, created, nil
}

func (s *KVStore) ByExam(ctx context.Context, examID string) ([]ExamResult, error) {
	m, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := []ExamResult{}
	for _, r := range m[examID] {
		out = append(out, r)
	}
	sortRecent(out)
	return out, nil
}

func (s *KVStore) ByStudent(ctx context.Context, studentID string) ([]ExamResult, error) {
	m, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := []ExamResult{}
	for _, byStudent := range m {
		if r, ok := byStudent[studentID]; ok {
			out = append(out, r)
		}
	}
	sortRecent(out)
	return out, nil
}

func (s *KVStore) Recent(ctx context.Context, studentID string, limit int) ([]ExamResult, error) {
	if limit <= 0 {
		limit = 5
	}
	out, err := s.ByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return out[:min(limit, len(out))], nil
}

func (s *KVStore) Stats(ctx context.Context, studentID string) (Stats, error) {
	rs, err := s.ByStudent(ctx, studentID)
	if err != nil {
		return Stats{}, err
	}
	return statsOf(rs), nil
}

func sortRecent(rs []ExamResult) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].SubmittedAt != rs[j].SubmittedAt {
			return rs[i].SubmittedAt > rs[j].SubmittedAt
		}
		return rs[i].ID < rs[j].ID
	})
}

type KVStudentExamStore struct {
	kv kv.Store
}

func NewKVStudentExamStore(s kv.Store) *KVStudentExamStore { return &KVStudentExamStore{kv: s} }

type studentExams map[string]map[string]StudentExam

func (s *KVStudentExamStore) Upsert(ctx context.Context, se StudentExam) error {
	return s.kv.Update(ctx, StudentExamsKey, func(cur []byte) ([]byte, error) {
		m := studentExams{}
		if len(cur) > 0 {
			if err := json.Unmarshal(cur, &m); err != nil {
				return nil, fmt.Errorf("decode %s: %w", StudentExamsKey, err)
			}
		}
		byExam := m[se.StudentID]
		if byExam == nil {
			byExam = map[string]StudentExam{}
			m[se.StudentID] = byExam
		}
		if prev, ok := byExam[se.ExamID]; ok {
			se.ID = prev.ID
			if prev.StartedAt != nil {
				se.StartedAt = prev.StartedAt
			}
			if se.CompletedAt == nil {
				se.CompletedAt = prev.CompletedAt
			}
		}
		byExam[se.ExamID] = se
		return json.Marshal(m)
	})
}

func (s *KVStudentExamStore) Get(ctx context.Context, studentID, examID string) (StudentExam, error) {
	b, err := s.kv.Get(ctx, StudentExamsKey)
	if err != nil {
		return StudentExam{}, err
	}
	m := studentExams{}
	if err := json.Unmarshal(b, &m); err != nil {
		return StudentExam{}, fmt.Errorf("decode %s: %w", StudentExamsKey, err)
	}
	se, ok := m[studentID][examID]
	if !ok {
		return StudentExam{}, common.ErrNotFound
	}
	return se, nil
}
