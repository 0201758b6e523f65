package vocab

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Loader reads vocabulary entries from one file format.
type Loader interface {
	Load(r io.Reader, filename string) ([]Entry, error)
}

// SupportedExtensions lists the vocabulary file formats that can be loaded.
var SupportedExtensions = map[string]bool{
	".yaml":     true,
	".yml":      true,
	".json":     true,
	".csv":      true,
	".md":       true,
	".markdown": true,
	".docx":     true,
	".html":     true,
	".htm":      true,
	".txt":      true,
}

// ForFile returns the loader for a filename.
func ForFile(filename string) (Loader, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".yaml", ".yml":
		return &YAMLLoader{}, nil
	case ".json":
		return &JSONLoader{}, nil
	case ".csv":
		return &CSVLoader{}, nil
	case ".md", ".markdown":
		return &MarkdownLoader{}, nil
	case ".docx":
		return &DOCXLoader{}, nil
	case ".html", ".htm":
		return &HTMLLoader{}, nil
	case ".txt":
		return &TextLoader{}, nil
	default:
		return nil, fmt.Errorf("unsupported vocabulary format: %s", ext)
	}
}

// IsSupportedExtension checks if a vocabulary file extension is supported.
func IsSupportedExtension(filename string) bool {
	return SupportedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// LoadFile reads and builds a vocabulary from path.
func LoadFile(path string, languages ...string) (*Vocabulary, error) {
	l, err := ForFile(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vocabulary: %w", err)
	}
	defer f.Close()

	entries, err := l.Load(f, filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("load vocabulary %s: %w", path, err)
	}
	return New(entries, languages...)
}

//go:embed default.yaml
var defaultYAML string

var (
	defaultOnce    sync.Once
	defaultEntries []Entry
	defaultErr     error
)

// DefaultEntries returns the built-in orchestral vocabulary.
func DefaultEntries() ([]Entry, error) {
	defaultOnce.Do(func() {
		defaultEntries, defaultErr = (&YAMLLoader{}).Load(strings.NewReader(defaultYAML), "default.yaml")
	})
	if defaultErr != nil {
		return nil, defaultErr
	}
	out := make([]Entry, len(defaultEntries))
	for i, e := range defaultEntries {
		out[i] = cloneEntry(e)
	}
	return out, nil
}

// Default builds the built-in vocabulary restricted to languages.
func Default(languages ...string) (*Vocabulary, error) {
	entries, err := DefaultEntries()
	if err != nil {
		return nil, err
	}
	return New(entries, languages...)
}
