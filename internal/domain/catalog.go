package domain

import "time"

type CompletedEntry struct {
	Name      string    `json:"name"`
	SizeBytes int64     `json:"sizeBytes"`
	SizeLabel string    `json:"size"`
	ModTime   time.Time `json:"modTime"`
}
