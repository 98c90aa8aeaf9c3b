package service

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTextSplitter_ShortText(t *testing.T) {
	s := NewTextSplitter(DefaultChunkConfig())

	assert.Equal(t, []string{"We agreed to ship on Friday."}, s.Split("  We agreed to ship on Friday.\n"))
}

func TestTextSplitter_BlankText(t *testing.T) {
	s := NewTextSplitter(DefaultChunkConfig())

	assert.Nil(t, s.Split(""))
	assert.Nil(t, s.Split(" \n\n\t "))
}

func TestTextSplitter_WordOverlap(t *testing.T) {
	s := NewTextSplitter(ChunkConfig{Size: 20, Overlap: 5})

	got := s.Split("aaaa bbbb cccc dddd eeee ffff")

	assert.Equal(t, []string{"aaaa bbbb cccc dddd", "dddd eeee ffff"}, got)
}

func TestTextSplitter_PrefersParagraphs(t *testing.T) {
	s := NewTextSplitter(ChunkConfig{Size: 30, Overlap: 0})

	got := s.Split("First paragraph here.\n\nSecond paragraph here.")

	assert.Equal(t, []string{"First paragraph here.", "Second paragraph here."}, got)
}

func TestTextSplitter_FallsBackToRunes(t *testing.T) {
	s := NewTextSplitter(ChunkConfig{Size: 10, Overlap: 0})

	got := s.Split("abcdefghijklmnopqrstuvwxy")

	assert.Equal(t, []string{"abcdefghij", "klmnopqrst", "uvwxy"}, got)
}

func TestTextSplitter_CountsRunes(t *testing.T) {
	s := NewTextSplitter(ChunkConfig{Size: 20, Overlap: 0})

	got := s.Split("ééééé ééééé ééééé ééééé")

	assert.Equal(t, []string{"ééééé ééééé ééééé", "ééééé"}, got)
}

func TestTextSplitter_RespectsSize(t *testing.T) {
	cfg := ChunkConfig{Size: 120, Overlap: 30}
	s := NewTextSplitter(cfg)

	var b strings.Builder
	for i := 0; i < 200; i++ {
		b.WriteString("the team discussed the roadmap")
		if i%7 == 6 {
			b.WriteString(".\n")
		} else {
			b.WriteString(" ")
		}
	}

	got := s.Split(b.String())

	assert.Greater(t, len(got), 1)
	for _, frag := range got {
		assert.LessOrEqual(t, utf8.RuneCountInString(frag), cfg.Size)
		assert.NotEmpty(t, strings.TrimSpace(frag))
	}
}

func TestNewTextSplitter_NormalizesConfig(t *testing.T) {
	s := NewTextSplitter(ChunkConfig{Size: 0, Overlap: -1})
	assert.Equal(t, 1000, s.size)
	assert.Equal(t, 0, s.overlap)

	s = NewTextSplitter(ChunkConfig{Size: 100, Overlap: 100})
	assert.Equal(t, 20, s.overlap)
}
