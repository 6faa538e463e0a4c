package syncx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vaibhav2824/IntegriGuard/internal/db/dbtest"
)

func TestAppendAndSince(t *testing.T) {
	repo := NewEventRepo(dbtest.Open(t), "")
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, "exam.submitted", "exam:e1", map[string]any{"student": "s1", "score": 80}))
	require.NoError(t, repo.Append(ctx, "exam.terminated", "exam:e2", map[string]any{"student": "s2"}))
	require.NoError(t, repo.Append(ctx, "exam.submitted", "exam:e1", map[string]any{"student": "s3"}))

	all, err := repo.Since(ctx, "", 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "local", all[0].SiteID)
	assert.Less(t, all[0].Seq, all[1].Seq)
	assert.JSONEq(t, `{"student":"s1","score":80}`, string(all[0].Data))

	e1, err := repo.Since(ctx, "exam:e1", all[0].Seq, 10)
	require.NoError(t, err)
	require.Len(t, e1, 1)
	assert.JSONEq(t, `{"student":"s3"}`, string(e1[0].Data))
}
