// Package storage holds binary artefacts: uploaded answer files and the
// behaviour snapshots written at submission.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/Vaibhav2824/IntegriGuard/internal/common"
)

type BlobStore interface {
	// Put stores r under key and returns the canonical key.
	Put(ctx context.Context, key string, r io.Reader) (string, error)
	// Get returns common.ErrNotFound for missing keys.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// URL is where the API serves the blob from.
	URL(key string) string
}

// CleanKey rejects keys that are empty, absolute or escape the store root.
func CleanKey(key string) (string, error) {
	k := path.Clean(strings.ReplaceAll(key, "\\", "/"))
	if key == "" || k == "." || strings.HasPrefix(k, "/") || k == ".." || strings.HasPrefix(k, "../") {
		return "", fmt.Errorf("blob key %q: %w", key, common.ErrBadRequest)
	}
	return k, nil
}

// SnapshotKey is where a session's behaviour record is stored.
func SnapshotKey(examID, studentID string) string {
	return path.Join("snapshots", examID, studentID+".json")
}

// UploadKey is where a file answer is stored.
func UploadKey(examID, studentID, questionID, filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "upload"
	}
	return path.Join("uploads", examID, studentID, questionID, name)
}
