package anacrolix

import (
	"slices"
	"strconv"
	"strings"

	"github.com/anacrolix/torrent/metainfo"
	"github.com/anacrolix/torrent/storage"
)

// flatFilePath stores every file of every torrent directly in the data dir,
// so finished files show up in the download catalog.
func flatFilePath(opts storage.FilePathMakerOpts) string {
	var parts []string
	if opts.File != nil {
		parts = opts.File.BestPath()
	}
	if opts.Info == nil {
		return flatName("", parts)
	}
	paths := infoPaths(opts.Info)
	names := flatNames(opts.Info.Name, paths)
	for i, p := range paths {
		if slices.Equal(p, parts) {
			return names[i]
		}
	}
	return flatName(opts.Info.Name, parts)
}

func infoPaths(info *metainfo.Info) [][]string {
	files := info.UpvertedFiles()
	paths := make([][]string, len(files))
	for i := range files {
		paths[i] = files[i].BestPath()
	}
	return paths
}

// flatNames names each file of a torrent inside the flat data dir. Base names
// are kept unless two files share one; those get their directories folded in.
func flatNames(infoName string, paths [][]string) []string {
	names := make([]string, len(paths))
	counts := make(map[string]int, len(paths))
	for i, p := range paths {
		names[i] = flatName(infoName, p)
		counts[names[i]]++
	}

	taken := make(map[string]struct{}, len(paths))
	for _, name := range names {
		if counts[name] == 1 {
			taken[name] = struct{}{}
		}
	}
	for i, p := range paths {
		if counts[names[i]] == 1 {
			continue
		}
		joined := joinedName(infoName, p)
		name := joined
		for n := 2; ; n++ {
			if _, ok := taken[name]; !ok {
				break
			}
			name = strconv.Itoa(n) + "_" + joined
		}
		taken[name] = struct{}{}
		names[i] = name
	}
	return names
}

func flatName(infoName string, parts []string) string {
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] != "" {
			return parts[i]
		}
	}
	return infoName
}

func joinedName(infoName string, parts []string) string {
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			kept = append(kept, part)
		}
	}
	if len(kept) == 0 {
		return infoName
	}
	return strings.Join(kept, "_")
}
