package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

var ErrNoObjects = errors.New("no objects under prefix")

// ObjectInfo represents metadata for a remote file/object.
type ObjectInfo struct {
	Key  string
	Size int64
}

// ObjectStorage captures the minimal S3-compatible operations the engine
// needs: fetching input tables and publishing exports.
type ObjectStorage interface {
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
	DownloadObject(ctx context.Context, key string, destPath string) error
	UploadObject(ctx context.Context, key string, data []byte, contentType string) error
}

// FetchInputs downloads every .csv object under prefix into destDir, keeping
// only the base name so the dataset loader finds the files it expects.
func FetchInputs(ctx context.Context, store ObjectStorage, prefix, destDir string) ([]string, error) {
	objects, err := store.ListObjects(ctx, prefix)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, obj := range objects {
		if !strings.EqualFold(path.Ext(obj.Key), ".csv") {
			continue
		}
		dest := filepath.Join(destDir, path.Base(obj.Key))
		if err := store.DownloadObject(ctx, obj.Key, dest); err != nil {
			return nil, fmt.Errorf("download %s: %w", obj.Key, err)
		}
		log.Debug().Str("key", obj.Key).Int64("size", obj.Size).Msg("storage: input downloaded")
		paths = append(paths, dest)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoObjects, prefix)
	}
	return paths, nil
}

// JoinKey builds an object key from prefix parts, ignoring empty ones.
func JoinKey(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.Trim(p, "/"); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "/")
}
