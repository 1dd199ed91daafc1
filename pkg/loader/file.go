package loader

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ahagan/strata/internal/models"
)

// defaultFileExtensions are the file types loaded when none are configured.
var defaultFileExtensions = []string{".txt", ".md", ".rst", ".html", ".htm"}

type FileConfig struct {
	Root       string
	Extensions []string
	MaxBytes   int64
	OnProgress func(path string)
}

// FileLoader reads documents from a local file or directory tree.
type FileLoader struct {
	config FileConfig
	exts   map[string]bool
}

func NewFileLoader(config FileConfig) (*FileLoader, error) {
	if config.Root == "" {
		return nil, fmt.Errorf("file loader requires a root path")
	}
	if config.MaxBytes == 0 {
		config.MaxBytes = 1 << 20 // 1MB per file
	}

	exts := config.Extensions
	if len(exts) == 0 {
		exts = defaultFileExtensions
	}

	extMap := make(map[string]bool, len(exts))
	for _, ext := range exts {
		extMap[strings.ToLower(ext)] = true
	}

	return &FileLoader{
		config: config,
		exts:   extMap,
	}, nil
}

func (l *FileLoader) Load(ctx context.Context) ([]models.Document, error) {
	info, err := os.Stat(l.config.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", l.config.Root, err)
	}

	if !info.IsDir() {
		doc, err := l.loadFile(l.config.Root, info.Size())
		if err != nil {
			return nil, err
		}
		return []models.Document{doc}, nil
	}

	var documents []models.Document
	err = filepath.WalkDir(l.config.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}

		if !l.exts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return err
		}
		if fi.Size() > l.config.MaxBytes {
			return nil
		}

		doc, err := l.loadFile(path, fi.Size())
		if err != nil {
			return err
		}
		documents = append(documents, doc)

		if l.config.OnProgress != nil {
			l.config.OnProgress(path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", l.config.Root, err)
	}

	return documents, nil
}

func (l *FileLoader) loadFile(path string, size int64) (models.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Document{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return models.Document{
		ID:      uuid.NewString(),
		Source:  path,
		Title:   filepath.Base(path),
		Content: string(data),
		Metadata: map[string]interface{}{
			"size": size,
			"ext":  filepath.Ext(path),
			"time": time.Now(),
		},
	}, nil
}
