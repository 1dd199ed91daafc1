package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLoaderRequiresRoot(t *testing.T) {
	_, err := NewFileLoader(FileConfig{})
	assert.Error(t, err)
}

func TestFileLoaderDirectory(t *testing.T) {
	tmpDir := t.TempDir()

	files := map[string]string{
		"intro.md":      "# Intro\nThis is the introduction.",
		"guide.txt":     "A plain text guide.",
		"ignored.bin":   "binary payload",
		"sub/notes.md":  "Nested notes.",
		"sub/image.png": "not text",
	}
	for name, content := range files {
		path := filepath.Join(tmpDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}

	l, err := NewFileLoader(FileConfig{Root: tmpDir})
	require.NoError(t, err)

	docs, err := l.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 3)

	sources := make(map[string]bool)
	for _, doc := range docs {
		sources[filepath.Base(doc.Source)] = true
		assert.NotEmpty(t, doc.ID)
		assert.NotEmpty(t, doc.Content)
		assert.Equal(t, filepath.Base(doc.Source), doc.Title)
	}
	assert.True(t, sources["intro.md"])
	assert.True(t, sources["guide.txt"])
	assert.True(t, sources["notes.md"])
	assert.False(t, sources["ignored.bin"])
}

func TestFileLoaderSingleFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "doc.md")
	require.NoError(t, os.WriteFile(path, []byte("single document"), 0644))

	l, err := NewFileLoader(FileConfig{Root: path})
	require.NoError(t, err)

	docs, err := l.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "single document", docs[0].Content)
}

func TestFileLoaderSkipsLargeFiles(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "big.txt"), make([]byte, 2048), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "small.txt"), []byte("ok"), 0644))

	l, err := NewFileLoader(FileConfig{Root: tmpDir, MaxBytes: 1024})
	require.NoError(t, err)

	docs, err := l.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "small.txt", docs[0].Title)
}
