package jobs

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"time"
)

// ChunkSweeper removes temporary audio files left behind by processes that
// died before their own cleanup ran.
type ChunkSweeper struct {
	dir      string
	patterns []string
	maxAge   time.Duration
	now      func() time.Time
}

// NewChunkSweeper creates a sweeper deleting files in dir that match one of
// patterns and were last modified more than maxAge ago.
func NewChunkSweeper(dir string, maxAge time.Duration, patterns ...string) *ChunkSweeper {
	if dir == "" {
		dir = os.TempDir()
	}
	return &ChunkSweeper{
		dir:      dir,
		patterns: patterns,
		maxAge:   maxAge,
		now:      time.Now,
	}
}

// ProcessJobs performs one sweep. Removal failures are logged and skipped.
func (s *ChunkSweeper) ProcessJobs(ctx context.Context) error {
	cutoff := s.now().Add(-s.maxAge)
	removed := 0

	for _, pattern := range s.patterns {
		matches, err := filepath.Glob(filepath.Join(s.dir, pattern))
		if err != nil {
			return err
		}
		for _, path := range matches {
			if err := ctx.Err(); err != nil {
				return err
			}
			info, err := os.Stat(path)
			if err != nil || info.IsDir() || info.ModTime().After(cutoff) {
				continue
			}
			if err := os.Remove(path); err != nil {
				if !errors.Is(err, fs.ErrNotExist) {
					log.Printf("sweeper: failed to remove %s: %v", path, err)
				}
				continue
			}
			removed++
		}
	}

	if removed > 0 {
		log.Printf("sweeper: removed %d stale temporary files from %s", removed, s.dir)
	}
	return nil
}
