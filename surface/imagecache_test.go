package surface

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingDownloader struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (downloader *countingDownloader) Download(_ context.Context, id, dir string) (string, error) {
	downloader.mu.Lock()
	defer downloader.mu.Unlock()
	downloader.calls++
	if downloader.fail {
		return "", errors.New("server down")
	}
	path := filepath.Join(dir, id+".png")
	return path, os.WriteFile(path, []byte("png"), 0o644)
}

func TestImageCacheFetchOnce(t *testing.T) {
	dir := t.TempDir()
	downloader := &countingDownloader{}
	cache, err := OpenImageCache(dir, downloader, nil)
	require.NoError(t, err)

	path, err := cache.Fetch(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "abc.png"), path)
	_, err = cache.Fetch(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, 1, downloader.calls)
	require.NoError(t, cache.Close())

	cache, err = OpenImageCache(dir, downloader, nil)
	require.NoError(t, err)
	defer cache.Close()
	cached, ok := cache.Lookup("abc")
	assert.True(t, ok)
	assert.Equal(t, path, cached)

	require.NoError(t, os.Remove(path))
	_, ok = cache.Lookup("abc")
	assert.False(t, ok, "index entry of a deleted file must not be served")
}

func TestImageCacheFetchError(t *testing.T) {
	cache, err := OpenImageCache(t.TempDir(), &countingDownloader{fail: true}, nil)
	require.NoError(t, err)
	defer cache.Close()
	_, err = cache.Fetch(context.Background(), "abc")
	assert.Error(t, err)
	_, ok := cache.Lookup("abc")
	assert.False(t, ok)
}
