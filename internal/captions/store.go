package captions

import (
	"fmt"
	"os"
	"path/filepath"

	"fknsrs.biz/p/ytstats/internal/stringutil"
)

var ErrAlreadyExists = fmt.Errorf("captions: file already exists")

// Store keeps one caption file per (video id, format) under a single
// directory. Files are named <sanitized title>_<video id>.<format>; the video
// id suffix is the idempotency key, so a video whose title has changed since
// the first download is still recognised.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("captions.NewStore: could not create directory %q: %w", dir, err)
	}

	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// Exists reports whether a caption file for this video id and format is
// already on disk. Callers must check this before any provider call; a hit
// means the whole caption path is skipped for that video.
func (s *Store) Exists(videoID, format string) (bool, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*_"+videoID+"."+format))
	if err != nil {
		return false, fmt.Errorf("captions.Store.Exists: %w", err)
	}

	return len(matches) > 0, nil
}

// Save writes caption content to disk and returns the path. An existing file
// of the same derived name is never overwritten; ErrAlreadyExists comes back
// instead.
func (s *Store) Save(content, videoID, title, format string) (string, error) {
	name := stringutil.SanitizeFilename(title) + "_" + videoID + "." + format
	path := filepath.Join(s.dir, name)

	if _, err := os.Stat(path); err == nil {
		return "", ErrAlreadyExists
	}

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("captions.Store.Save: could not write %q: %w", path, err)
	}

	return path, nil
}
