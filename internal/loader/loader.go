// ABOUTME: Finds and reads plaintext course material from files and directory trees
// ABOUTME: Filters by extension and skips dependency, build and hidden directories
package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/harper/quizbot/internal/models"
)

// DefaultExtensions are the text file types ingested from directories
var DefaultExtensions = []string{
	".txt", ".md", ".py", ".js", ".ts", ".html", ".css", ".json", ".yml", ".yaml",
}

// DefaultSkipDirs are directory names never descended into
var DefaultSkipDirs = []string{
	"node_modules", "__pycache__", ".git", "build", "dist", "venv", "env", ".venv", "data",
}

// MaxFileSize bounds a single document read from disk
const MaxFileSize = 10 << 20

// ErrNotText is returned for files that are not valid UTF-8 text
var ErrNotText = errors.New("file is not UTF-8 text")

// Loader selects and reads material files
type Loader struct {
	extensions map[string]bool
	skipDirs   map[string]bool
}

// New creates a loader. Empty lists fall back to the defaults.
func New(extensions, skipDirs []string) *Loader {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	if len(skipDirs) == 0 {
		skipDirs = DefaultSkipDirs
	}
	l := &Loader{
		extensions: make(map[string]bool, len(extensions)),
		skipDirs:   make(map[string]bool, len(skipDirs)),
	}
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		l.extensions[ext] = true
	}
	for _, d := range skipDirs {
		l.skipDirs[d] = true
	}
	return l
}

// Accepts reports whether path has an ingestible extension and is not hidden
func (l *Loader) Accepts(path string) bool {
	if isHidden(path) {
		return false
	}
	return l.extensions[strings.ToLower(filepath.Ext(path))]
}

// SkipDir reports whether a directory should not be walked
func (l *Loader) SkipDir(name string) bool {
	return l.skipDirs[name] || (isHidden(name) && name != "." && name != "..")
}

// Collect expands files and directories into a sorted, de-duplicated file list.
// Explicitly named files are included regardless of extension.
func (l *Loader) Collect(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(filepath.Clean(root))
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && l.SkipDir(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Type().IsRegular() && l.Accepts(path) {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
	}

	sort.Strings(files)
	return files, nil
}

// Load reads a file into a Document named by its base name
func (l *Loader) Load(path string) (models.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return models.Document{}, err
	}
	if info.Size() > MaxFileSize {
		return models.Document{}, fmt.Errorf("%s is larger than %d bytes", path, MaxFileSize)
	}

	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return models.Document{}, err
	}
	if !utf8.Valid(data) {
		return models.Document{}, fmt.Errorf("%s: %w", path, ErrNotText)
	}
	return models.NewDocument(filepath.Base(path), string(data)), nil
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
