// Package attachments turns uploaded files into the opaque path strings
// stored on an opportunity. Contents are never inspected.
package attachments

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"path"
	"strings"
	"time"

	"github.com/dalemusser/opportunityhub/internal/app/system/apperr"
	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaxFiles is the number of attachments accepted per request.
const MaxFiles = 5

// FormField is the multipart field carrying attachment files.
const FormField = "attachments"

// Uploader writes request files to a storage.Store.
type Uploader struct {
	store  storage.Store
	prefix string
	base   string
	log    *zap.Logger
	now    func() time.Time
}

// NewUploader stores files under prefix/YYYY/MM/ in store. Returned paths
// are the store's public URL for each key, or the bare key when the store
// has no public URL.
func NewUploader(store storage.Store, prefix string, logger *zap.Logger) *Uploader {
	return &Uploader{
		store:  store,
		prefix: strings.Trim(prefix, "/"),
		base:   urlBase(store),
		log:    logger,
		now:    time.Now,
	}
}

// urlBase is what store.URL puts in front of a key.
func urlBase(store storage.Store) string {
	const k = "k"
	return strings.TrimSuffix(store.URL(k), k)
}

// SaveAll stores files in order and returns their paths in the same order.
// If any file fails, files already written by this call are removed.
func (u *Uploader) SaveAll(ctx context.Context, files []*multipart.FileHeader) ([]string, error) {
	if len(files) == 0 {
		return []string{}, nil
	}
	if len(files) > MaxFiles {
		return nil, apperr.Invalid(FormField, fmt.Sprintf("at most %d files may be attached", MaxFiles))
	}

	keys := make([]string, 0, len(files))
	paths := make([]string, 0, len(files))
	for _, fh := range files {
		key, err := u.save(ctx, fh)
		if err != nil {
			u.remove(keys)
			return nil, err
		}
		keys = append(keys, key)
		paths = append(paths, u.Path(key))
	}
	return paths, nil
}

// Discard removes files previously returned by SaveAll. Failures are
// logged; a missing file is not a failure.
func (u *Uploader) Discard(paths []string) {
	keys := make([]string, 0, len(paths))
	for _, p := range paths {
		keys = append(keys, strings.TrimPrefix(p, u.base))
	}
	u.remove(keys)
}

// Path is the attachment path recorded for key.
func (u *Uploader) Path(key string) string {
	if u.base == "" {
		return key
	}
	return u.base + key
}

// Key builds the storage key: prefix/YYYY/MM/<uuid8>-<sanitized name>.
func (u *Uploader) Key(filename string) string {
	now := u.now().UTC()
	name := fmt.Sprintf("%s-%s", uuid.New().String()[:8], SanitizeFilename(filename))
	return path.Join(u.prefix, fmt.Sprintf("%04d", now.Year()), fmt.Sprintf("%02d", now.Month()), name)
}

func (u *Uploader) save(ctx context.Context, fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload %q: %w", fh.Filename, err)
	}
	defer f.Close()

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := u.Key(fh.Filename)
	if err := u.store.Put(ctx, key, f, &storage.PutOptions{ContentType: contentType}); err != nil {
		return "", fmt.Errorf("store upload %q: %w", fh.Filename, err)
	}
	u.log.Debug("attachment stored", zap.String("key", key), zap.Int64("size", fh.Size))
	return key, nil
}

func (u *Uploader) remove(keys []string) {
	if len(keys) == 0 {
		return
	}
	// The request context may already be done; cleanup gets its own budget.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, k := range keys {
		err := u.store.Delete(ctx, k)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			u.log.Warn("attachment cleanup failed", zap.String("key", k), zap.Error(err))
			continue
		}
		u.log.Debug("attachment removed", zap.String("key", k))
	}
}
