package service

import (
	"errors"
	"io/fs"
	"log"
	"os"

	"github.com/cloo-solutions/meetmind/internal/domain"
)

// chunkSet tracks temporary chunk files owned by one call so they can be
// released on every exit path.
type chunkSet struct {
	paths []string
}

func (c *chunkSet) add(path string) {
	c.paths = append(c.paths, path)
}

func (c *chunkSet) addChunks(chunks []domain.AudioChunk) {
	for _, ch := range chunks {
		c.add(ch.Path)
	}
}

// release removes every tracked file. Failures are logged, never returned.
func (c *chunkSet) release() {
	for _, p := range c.paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Printf("transcription: failed to remove chunk %s: %v", p, err)
		}
	}
	c.paths = nil
}
