package exam

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vaibhav2824/IntegriGuard/internal/common"
	"github.com/Vaibhav2824/IntegriGuard/internal/db/dbtest"
	"github.com/Vaibhav2824/IntegriGuard/internal/kv"
)

func stores(t *testing.T) map[string]Store {
	return map[string]Store{
		"sql": NewSQLStore(dbtest.Open(t)),
		"kv":  NewKVStore(kv.NewMemoryStore()),
	}
}

func newTestService(st Store) *Service {
	s := NewService(st)
	var tick int64
	s.now = func() time.Time {
		tick++
		return time.Unix(1_700_000_000+tick, 0)
	}
	return s
}

var teacher = Actor{ID: "t-1"}

func TestCreateAssignsUniqueSlugs(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			svc := newTestService(st)
			ctx := context.Background()

			a, err := svc.Create(ctx, teacher, CreateInput{Title: "Linear Algebra Quiz", Subject: "Math", DurationMin: 30})
			require.NoError(t, err)
			b, err := svc.Create(ctx, teacher, CreateInput{Title: "Linear Algebra quiz!", Subject: "Math", DurationMin: 30})
			require.NoError(t, err)

			assert.Equal(t, "linear-algebra-quiz", a.Slug)
			assert.Equal(t, "linear-algebra-quiz-2", b.Slug)
			assert.Equal(t, StatusUpcoming, a.Status)

			got, err := svc.Get(ctx, b.Slug)
			require.NoError(t, err)
			assert.Equal(t, b.ID, got.ID)
		})
	}
}

func TestUpdateAndDeleteRequireOwnership(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			svc := newTestService(st)
			ctx := context.Background()

			e, err := svc.Create(ctx, teacher, CreateInput{Title: "Physics", Subject: "Science", DurationMin: 45})
			require.NoError(t, err)

			title := "Physics II"
			_, err = svc.Update(ctx, Actor{ID: "someone-else"}, e.ID, UpdateInput{Title: &title})
			assert.ErrorIs(t, err, common.ErrForbidden)

			up, err := svc.Update(ctx, teacher, e.ID, UpdateInput{Title: &title})
			require.NoError(t, err)
			assert.Equal(t, "physics-ii", up.Slug)

			up, err = svc.Update(ctx, Actor{ID: "root", Admin: true}, e.ID, UpdateInput{Title: &title})
			require.NoError(t, err)
			assert.Equal(t, "physics-ii", up.Slug, "renaming to the same title keeps the slug")

			assert.ErrorIs(t, svc.Delete(ctx, Actor{ID: "someone-else"}, e.ID), common.ErrForbidden)
			require.NoError(t, svc.Delete(ctx, teacher, e.ID))
			_, err = svc.Get(ctx, e.ID)
			assert.ErrorIs(t, err, common.ErrNotFound)
		})
	}
}

func TestQuestionsKeepOrderAndHideAnswers(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			svc := newTestService(st)
			ctx := context.Background()

			e, err := svc.Create(ctx, teacher, CreateInput{Title: "Chemistry", Subject: "Science", DurationMin: 20})
			require.NoError(t, err)

			_, err = svc.AddQuestion(ctx, teacher, e.ID, QuestionInput{Type: TypeMultipleChoice, Text: "H2O is?", Options: []string{"water", "salt"}, Answer: "water"})
			require.NoError(t, err)
			_, err = svc.AddQuestion(ctx, teacher, e.ID, QuestionInput{Type: TypeText, Text: "Explain covalent bonds", Points: 3})
			require.NoError(t, err)

			_, err = svc.AddQuestion(ctx, teacher, e.ID, QuestionInput{Type: TypeMultipleChoice, Text: "bad", Options: []string{"a", "b"}, Answer: "c"})
			assert.ErrorIs(t, err, common.ErrValidation)
			_, err = svc.AddQuestion(ctx, teacher, "missing", QuestionInput{Type: TypeText, Text: "x"})
			assert.ErrorIs(t, err, common.ErrNotFound)

			qs, err := svc.Questions(ctx, e.ID, false)
			require.NoError(t, err)
			require.Len(t, qs, 2)
			assert.Equal(t, 0, qs[0].Position)
			assert.Equal(t, 1, qs[1].Position)
			assert.Empty(t, qs[0].Answer)
			assert.Equal(t, float64(1), qs[0].Points)
			assert.Equal(t, float64(3), qs[1].Points)

			keyed, err := svc.Questions(ctx, e.ID, true)
			require.NoError(t, err)
			assert.Equal(t, "water", keyed[0].Answer)

			got, err := svc.Get(ctx, e.ID)
			require.NoError(t, err)
			assert.Equal(t, 2, got.TotalQuestions)
		})
	}
}

func TestListFiltersAndOrders(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			svc := newTestService(st)
			ctx := context.Background()

			mk := func(title, subject, date string, by Actor) {
				_, err := svc.Create(ctx, by, CreateInput{Title: title, Subject: subject, Date: date, DurationMin: 10})
				require.NoError(t, err)
			}
			mk("Mechanics", "Physics", "2025-03-01", teacher)
			mk("Biology", "Science", "2025-01-15", teacher)
			mk("Optics", "Physics", "2025-02-10", Actor{ID: "t-2"})

			got, err := svc.List(ctx, ListOpts{Q: "PHYS", Order: OrderDateAsc})
			require.NoError(t, err)
			var titles []string
			for _, e := range got {
				titles = append(titles, e.Title)
			}
			assert.Equal(t, []string{"Optics", "Mechanics"}, titles)

			got, err = svc.List(ctx, ListOpts{CreatedBy: teacher.ID, From: "2025-02-01", Order: OrderTitleAsc})
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, "Mechanics", got[0].Title)

			got, err = svc.List(ctx, ListOpts{CreatedBy: teacher.ID, Order: OrderTitleAsc, Limit: 1, Offset: 1})
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, "Mechanics", got[0].Title)
		})
	}
}

func TestRecordResultKeepsRunningAverage(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			svc := newTestService(st)
			ctx := context.Background()

			e, err := svc.Create(ctx, teacher, CreateInput{Title: "History", Subject: "Humanities", DurationMin: 15})
			require.NoError(t, err)
			require.NoError(t, svc.RecordResult(ctx, e.ID, 80))
			require.NoError(t, svc.RecordResult(ctx, e.ID, 60))

			got, err := svc.Get(ctx, e.ID)
			require.NoError(t, err)
			assert.Equal(t, 2, got.Participants)
			assert.InDelta(t, 70, got.AverageScore, 0.001)
		})
	}
}

func TestKVStoreFallsBackToSampleExam(t *testing.T) {
	st := NewKVStore(kv.NewMemoryStore())
	ctx := context.Background()

	e, err := st.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "Midterm Examination", e.Title)
	assert.Equal(t, 90, e.DurationMin)

	qs, err := st.Questions(ctx, "1")
	require.NoError(t, err)
	require.Len(t, qs, 5)
	assert.Equal(t, "3.14", qs[0].Answer)

	svc := newTestService(st)
	_, err = svc.Create(ctx, teacher, CreateInput{Title: "Another", Subject: "Math", DurationMin: 10})
	require.NoError(t, err)
	all, err := st.List(ctx, ListOpts{})
	require.NoError(t, err)
	assert.Len(t, all, 2, "sample survives the first write")
}

func TestVariantByStatus(t *testing.T) {
	e := Exam{Title: "x", Status: StatusCompleted, AverageScore: 71}
	v, ok := e.Variant().(CompletedExam)
	require.True(t, ok)
	assert.Equal(t, 71.0, v.AverageScore)

	e.Status = "bogus"
	assert.Equal(t, StatusUpcoming, e.Variant().ExamStatus())
}
