package splitter_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahagan/strata/internal/models"
	"github.com/ahagan/strata/pkg/splitter"
)

func TestSplitterSplit(t *testing.T) {
	s, err := splitter.NewWithConfig(splitter.SplitterConfig{
		ChunkSize:      50,
		ChunkOverlap:   10,
		MinChunkLength: 20,
	})
	require.NoError(t, err)

	documents := []models.Document{
		{Content: "This is a test document. It contains several sentences to demonstrate text processing."},
	}

	processed, err := s.Split(documents)

	assert.NoError(t, err)
	assert.Len(t, processed, 1)
	assert.NotEmpty(t, processed[0].Chunks)
	assert.Contains(t, processed[0].Chunks[0], "test document")
}

func TestSplitterChunkSize(t *testing.T) {
	s, err := splitter.NewWithConfig(splitter.SplitterConfig{
		ChunkSize:      80,
		ChunkOverlap:   10,
		MinChunkLength: 10,
	})
	require.NoError(t, err)

	// Long content made of short sentences
	var sb strings.Builder
	for i := 0; i < 40; i++ {
		sb.WriteString("The quick brown fox jumps over the lazy dog. ")
	}

	processed, err := s.Split([]models.Document{{Content: sb.String()}})
	require.NoError(t, err)
	require.Len(t, processed, 1)
	assert.Greater(t, len(processed[0].Chunks), 1)

	for _, chunk := range processed[0].Chunks {
		// A chunk may exceed the budget by at most one sentence plus overlap
		assert.LessOrEqual(t, len(chunk), 80+60)
	}
}

func TestSplitterWhitespaceCleaning(t *testing.T) {
	s, err := splitter.NewWithConfig(splitter.SplitterConfig{
		ChunkSize:      200,
		ChunkOverlap:   10,
		MinChunkLength: 5,
	})
	require.NoError(t, err)

	processed, err := s.Split([]models.Document{
		{Content: "A   sentence   with  multiple    spaces. And\nnewlines\ttoo."},
	})
	require.NoError(t, err)
	require.Len(t, processed, 1)
	require.NotEmpty(t, processed[0].Chunks)
	assert.NotContains(t, processed[0].Chunks[0], "  ")
}

func TestSplitterTokenUnit(t *testing.T) {
	s, err := splitter.NewWithConfig(splitter.SplitterConfig{
		ChunkSize:      20, // tokens
		ChunkOverlap:   5,
		MinChunkLength: 10,
		SizeUnit:       splitter.UnitTokens,
	})
	if err != nil {
		// Encoding files are fetched on first use; skip when offline
		t.Skipf("token encoding unavailable: %v", err)
	}

	var sb strings.Builder
	for i := 0; i < 30; i++ {
		sb.WriteString("Short sentence here. ")
	}

	processed, err := s.Split([]models.Document{{Content: sb.String()}})
	require.NoError(t, err)
	require.Len(t, processed, 1)
	assert.Greater(t, len(processed[0].Chunks), 1)
}

func TestSplitterRejectsUnknownUnit(t *testing.T) {
	_, err := splitter.NewWithConfig(splitter.SplitterConfig{SizeUnit: "words"})
	assert.Error(t, err)
}
