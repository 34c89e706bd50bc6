package surface

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

const (
	imageIndexFile = "index.db"
	fetchQueueSize = 64
)

var imageBucket = []byte("images")

// ImageCache downloads symbol images once and remembers where they were written.
// The index survives restarts in a bbolt file inside the cache directory.
type ImageCache struct {
	dir        string
	db         *bolt.DB
	downloader Downloader
	requests   chan string
	logger     *slog.Logger
}

// OpenImageCache opens (or creates) the cache in dir
func OpenImageCache(dir string, downloader Downloader, logger *slog.Logger) (*ImageCache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create image cache dir")
	}
	db, err := bolt.Open(filepath.Join(dir, imageIndexFile), 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "open image index")
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(imageBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create image bucket")
	}
	return &ImageCache{
		dir:        dir,
		db:         db,
		downloader: downloader,
		requests:   make(chan string, fetchQueueSize),
		logger:     logger,
	}, nil
}

// Lookup returns the local file of image id if it was fetched and still exists
func (cache *ImageCache) Lookup(id string) (string, bool) {
	var path string
	cache.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(imageBucket).Get([]byte(id)); v != nil {
			path = string(v)
		}
		return nil
	})
	if path == "" {
		return "", false
	}
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

// Fetch returns the local file of image id, downloading it when missing
func (cache *ImageCache) Fetch(ctx context.Context, id string) (string, error) {
	if path, ok := cache.Lookup(id); ok {
		return path, nil
	}
	path, err := cache.downloader.Download(ctx, id, cache.dir)
	if err != nil {
		return "", errors.Wrapf(err, "fetch image %s", id)
	}
	err = cache.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(imageBucket).Put([]byte(id), []byte(path))
	})
	if err != nil {
		return "", errors.Wrap(err, "index image")
	}
	return path, nil
}

// Request queues id for the background fetcher. It never blocks.
func (cache *ImageCache) Request(id string) {
	if id == "" {
		return
	}
	select {
	case cache.requests <- id:
	default:
		cache.logger.Warn("image fetch queue full, skipping", "uuid", id)
	}
}

// Run fetches requested images until ctx is cancelled
func (cache *ImageCache) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-cache.requests:
			path, err := cache.Fetch(ctx, id)
			if err != nil {
				cache.logger.Warn("can't fetch symbol image", "uuid", id, "error", err)
				continue
			}
			cache.logger.Debug("symbol image available", "uuid", id, "path", path)
		}
	}
}

// Close closes the index
func (cache *ImageCache) Close() error {
	return cache.db.Close()
}
