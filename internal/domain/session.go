package domain

import "time"

// ContentID is the lower-case hex info hash of a transfer.
type ContentID string

type Session struct {
	ID           ContentID `json:"id"`
	Locator      string    `json:"-"`
	Name         string    `json:"name,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	SelectedFile *FileRef  `json:"selectedFile,omitempty"`
}

// FileName returns the selected file name or an empty string.
func (s Session) FileName() string {
	if s.SelectedFile == nil {
		return ""
	}
	return s.SelectedFile.Name
}
