// Package media picks the playable file of a transfer and classifies files
// by extension.
package media

import (
	"path"
	"strings"

	"torrentplay/internal/domain"
)

var DefaultPlayableExtensions = []string{"mp4", "mkv", "avi"}

// Selector chooses the first file, in transfer order, whose extension is on
// the allow-list.
type Selector struct {
	allowed map[string]struct{}
}

// NewSelector builds a selector for the given extensions. Leading dots and
// case are ignored. An empty list falls back to DefaultPlayableExtensions.
func NewSelector(extensions []string) Selector {
	allowed := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = normalizeExt(ext)
		if ext != "" {
			allowed[ext] = struct{}{}
		}
	}
	if len(allowed) == 0 {
		for _, ext := range DefaultPlayableExtensions {
			allowed[ext] = struct{}{}
		}
	}
	return Selector{allowed: allowed}
}

func (s Selector) SelectPlayable(files []domain.FileRef) (domain.FileRef, error) {
	for _, f := range files {
		if s.IsPlayable(fileName(f)) {
			return f, nil
		}
	}
	return domain.FileRef{}, domain.ErrNoPlayableFile
}

func (s Selector) IsPlayable(name string) bool {
	allowed := s.allowed
	if allowed == nil {
		allowed = NewSelector(nil).allowed
	}
	_, ok := allowed[normalizeExt(path.Ext(name))]
	return ok
}

// SelectPlayable applies the default allow-list.
func SelectPlayable(files []domain.FileRef) (domain.FileRef, error) {
	return NewSelector(nil).SelectPlayable(files)
}

func fileName(f domain.FileRef) string {
	if f.Name != "" {
		return f.Name
	}
	return path.Base(f.Path)
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}
