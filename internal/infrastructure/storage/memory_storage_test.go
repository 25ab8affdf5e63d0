package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryObjectStorage(t *testing.T) {
	s := NewMemoryObjectStorage("sync-logs/")
	ctx := context.Background()

	data := []byte("a,b\n")
	require.NoError(t, s.Upload(ctx, "sync-logs/x.csv", data, "text/csv"))
	data[0] = 'z'

	stored, contentType, ok := s.Object("sync-logs/x.csv")
	require.True(t, ok)
	assert.Equal(t, "a,b\n", string(stored), "upload keeps its own copy")
	assert.Equal(t, "text/csv", contentType)

	link, _, err := s.DownloadURL(ctx, "sync-logs/x.csv")
	require.NoError(t, err)
	assert.Equal(t, "memory://archives/sync-logs/x.csv", link)

	assert.Equal(t, []string{"sync-logs/x.csv"}, s.Keys())
	assert.Equal(t, "sync-logs/", s.Prefix())
	assert.ErrorIs(t, s.Upload(ctx, "", data, "text/csv"), ErrEmptyKey)
}
