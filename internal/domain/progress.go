package domain

// Progress is the raw byte counter reported by a transfer. Length is zero
// until metadata is known.
type Progress struct {
	BytesCompleted int64 `json:"bytesCompleted"`
	Length         int64 `json:"length"`
}

type ProgressSnapshot struct {
	Fraction float64 `json:"fraction"`
	Complete bool    `json:"complete"`
}

func (p Progress) Complete() bool {
	return p.Length > 0 && p.BytesCompleted >= p.Length
}

// Snapshot derives the polling view of p. Fraction is clamped to [0,1].
func (p Progress) Snapshot() ProgressSnapshot {
	if p.Length <= 0 {
		return ProgressSnapshot{}
	}
	fraction := float64(p.BytesCompleted) / float64(p.Length)
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	return ProgressSnapshot{Fraction: fraction, Complete: p.Complete()}
}
