// Package catalog is a read-only view over the completed downloads directory.
package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"torrentplay/internal/domain"
)

// partSuffix marks data the torrent client is still writing.
const partSuffix = ".part"

// Catalog lists and opens files stored flat in Dir. It keeps no state.
type Catalog struct {
	Dir string
}

func New(dir string) Catalog {
	return Catalog{Dir: dir}
}

// List returns the regular, non-hidden files of the directory sorted by name.
// In-progress part files are skipped. An empty directory yields an empty slice.
func (c Catalog) List() ([]domain.CompletedEntry, error) {
	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, err)
	}

	out := make([]domain.CompletedEntry, 0, len(entries))
	for _, entry := range entries {
		if hidden(entry.Name()) || inProgress(entry.Name()) || !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, err)
		}
		out = append(out, entryFromInfo(info))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Path resolves name inside the directory. Empty, hidden and part-file names
// are rejected, as are names escaping the directory.
func (c Catalog) Path(name string) (string, error) {
	if !validName(name) {
		return "", fmt.Errorf("%w: file name", domain.ErrInvalidInput)
	}
	base, err := filepath.Abs(c.Dir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, err)
	}
	full := filepath.Join(base, name)
	rel, err := filepath.Rel(base, full)
	if err != nil || rel != filepath.Base(full) {
		return "", fmt.Errorf("%w: file name", domain.ErrInvalidInput)
	}
	return full, nil
}

// Stat looks up a single completed file.
func (c Catalog) Stat(name string) (domain.CompletedEntry, error) {
	full, err := c.Path(name)
	if err != nil {
		return domain.CompletedEntry{}, err
	}
	info, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.CompletedEntry{}, domain.ErrFileNotFound
		}
		return domain.CompletedEntry{}, fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, err)
	}
	if !info.Mode().IsRegular() {
		return domain.CompletedEntry{}, domain.ErrFileNotFound
	}
	return entryFromInfo(info), nil
}

// Open opens a completed file read-only. The caller closes it.
func (c Catalog) Open(name string) (*os.File, domain.CompletedEntry, error) {
	entry, err := c.Stat(name)
	if err != nil {
		return nil, domain.CompletedEntry{}, err
	}
	full, _ := c.Path(name)
	f, err := os.Open(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.CompletedEntry{}, domain.ErrFileNotFound
		}
		return nil, domain.CompletedEntry{}, fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, err)
	}
	return f, entry, nil
}

func entryFromInfo(info fs.FileInfo) domain.CompletedEntry {
	return domain.CompletedEntry{
		Name:      info.Name(),
		SizeBytes: info.Size(),
		SizeLabel: humanize.IBytes(uint64(info.Size())),
		ModTime:   info.ModTime().UTC(),
	}
}

func validName(name string) bool {
	if name == "" || hidden(name) || inProgress(name) {
		return false
	}
	if strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return false
	}
	return name != ".." && name != "."
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func inProgress(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), partSuffix)
}
