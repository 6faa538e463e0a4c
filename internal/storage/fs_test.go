package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vaibhav2824/IntegriGuard/internal/common"
)

func TestFSStoreRoundTrip(t *testing.T) {
	s, err := NewFSStore(t.TempDir(), "")
	require.NoError(t, err)
	ctx := context.Background()

	key, err := s.Put(ctx, SnapshotKey("e1", "s1"), strings.NewReader(`{"tabSwitches":2}`))
	require.NoError(t, err)
	assert.Equal(t, "snapshots/e1/s1.json", key)
	assert.Equal(t, "/assets/snapshots/e1/s1.json", s.URL(key))

	rc, err := s.Get(ctx, key)
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"tabSwitches":2}`, string(b))

	_, err = s.Get(ctx, "snapshots/missing.json")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestCleanKeyRejectsEscapes(t *testing.T) {
	for _, k := range []string{"", ".", "..", "../etc/passwd", "/abs", "a/../../b"} {
		_, err := CleanKey(k)
		assert.ErrorIs(t, err, common.ErrBadRequest, k)
	}
	k, err := CleanKey("a/./b//c")
	require.NoError(t, err)
	assert.Equal(t, "a/b/c", k)
}

func TestUploadKeyStripsDirectories(t *testing.T) {
	assert.Equal(t, "uploads/e1/s1/q3/essay.pdf", UploadKey("e1", "s1", "q3", "../../essay.pdf"))
	assert.Equal(t, "uploads/e1/s1/q3/report.doc", UploadKey("e1", "s1", "q3", `C:\docs\report.doc`))
	assert.Equal(t, "uploads/e1/s1/q3/upload", UploadKey("e1", "s1", "q3", ""))
}

func TestPutHonoursCancel(t *testing.T) {
	s, err := NewFSStore(t.TempDir(), "/files/")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Put(ctx, "x.txt", strings.NewReader("data"))
	assert.ErrorIs(t, err, context.Canceled)
	_, err = s.Get(context.Background(), "x.txt")
	assert.ErrorIs(t, err, common.ErrNotFound)
}
