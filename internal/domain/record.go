package domain

import (
	"errors"
	"time"
)

// TransferRecord is the persisted history of a started transfer.
type TransferRecord struct {
	ID             ContentID `json:"id"`
	Locator        string    `json:"-"`
	Name           string    `json:"name"`
	FileName       string    `json:"fileName"`
	Length         int64     `json:"length"`
	BytesCompleted int64     `json:"bytesCompleted"`
	Completed      bool      `json:"completed"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// ProgressUpdate holds fields for an atomic progress update via $max.
type ProgressUpdate struct {
	BytesCompleted int64
	Length         int64
	Completed      bool
}

func (r TransferRecord) Validate() error {
	if r.ID == "" {
		return errors.New("transfer id is required")
	}
	if r.Locator == "" {
		return errors.New("locator is required")
	}
	if r.Length < 0 || r.BytesCompleted < 0 {
		return errors.New("byte counters must not be negative")
	}
	if r.Length > 0 && r.BytesCompleted > r.Length {
		return errors.New("bytesCompleted must not exceed length")
	}
	return nil
}
