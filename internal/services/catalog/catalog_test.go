package catalog

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"torrentplay/internal/domain"
)

func TestListEmptyDirectory(t *testing.T) {
	entries, err := New(t.TempDir()).List()
	require.NoError(t, err)
	require.NotNil(t, entries)
	require.Empty(t, entries)
}

func TestListMissingDirectory(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing")).List()
	require.Error(t, err)
	require.True(t, errors.Is(err, domain.ErrCatalogUnavailable), "got %v", err)
}

func TestListSkipsDirectoriesAndHiddenFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.mkv", 2048)
	writeFile(t, dir, "a.mp4", 10)
	writeFile(t, dir, ".torrent.db", 5)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	entries, err := New(dir).List()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "a.mp4", entries[0].Name)
	require.Equal(t, int64(10), entries[0].SizeBytes)
	require.Equal(t, "b.mkv", entries[1].Name)
	require.Equal(t, int64(2048), entries[1].SizeBytes)
	require.Equal(t, "2.0 KiB", entries[1].SizeLabel)
}

func TestOpenReadsFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "movie.mp4", 300)

	f, entry, err := New(dir).Open("movie.mp4")
	require.NoError(t, err)
	defer f.Close()
	require.Equal(t, int64(300), entry.SizeBytes)

	data, err := io.ReadAll(f)
	require.NoError(t, err)
	require.Len(t, data, 300)
}

func TestOpenMissingFile(t *testing.T) {
	_, _, err := New(t.TempDir()).Open("nope.mp4")
	require.True(t, errors.Is(err, domain.ErrFileNotFound), "got %v", err)
}

func TestPathRejectsEscapes(t *testing.T) {
	c := New(t.TempDir())
	for _, name := range []string{"", ".", "..", "../etc/passwd", "a/b.mp4", `a\b.mp4`, ".hidden", "movie.mkv.part"} {
		_, err := c.Path(name)
		require.True(t, errors.Is(err, domain.ErrInvalidInput), "name %q: got %v", name, err)
	}
}

func TestPartFilesAreNotCompletedDownloads(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "movie.mkv.part", 4096)
	writeFile(t, dir, "done.mp4", 1536)

	c := New(dir)
	entries, err := c.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "done.mp4", entries[0].Name)
	require.Equal(t, "1.5 KiB", entries[0].SizeLabel)

	_, _, err = c.Open("movie.mkv.part")
	require.True(t, errors.Is(err, domain.ErrInvalidInput), "got %v", err)
	_, err = c.Stat("MOVIE.MKV.PART")
	require.True(t, errors.Is(err, domain.ErrInvalidInput), "got %v", err)
}

func writeFile(t *testing.T, dir, name string, size int) {
	t.Helper()
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}
