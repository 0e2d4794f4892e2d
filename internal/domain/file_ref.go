package domain

// FileRef describes one file inside a transfer. Name is the base name, Path
// the slash separated path inside the transfer.
type FileRef struct {
	Index  int    `json:"index"`
	Name   string `json:"name"`
	Path   string `json:"path"`
	Length int64  `json:"length"`
}

// Matches reports whether name refers to this file by exact base name or path.
func (f FileRef) Matches(name string) bool {
	return name != "" && (f.Name == name || f.Path == name)
}
