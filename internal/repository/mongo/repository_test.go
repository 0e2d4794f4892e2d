package mongo

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"torrentplay/internal/domain"
)

// ---------------------------------------------------------------------------
// toDoc / fromDoc roundtrip
// ---------------------------------------------------------------------------

func TestToDocFromDocRoundtrip(t *testing.T) {
	now := time.Date(2026, 2, 19, 10, 0, 0, 0, time.UTC)
	record := domain.TransferRecord{
		ID:             "d2354e",
		Locator:        "magnet:?xt=urn:btih:d2354e",
		Name:           "Big Buck Bunny",
		FileName:       "bbb.mp4",
		Length:         5120,
		BytesCompleted: 4608,
		CreatedAt:      now,
		UpdatedAt:      now.Add(time.Minute),
	}

	got := fromDoc(toDoc(record))
	if got != record {
		t.Fatalf("roundtrip mismatch:\n got %+v\nwant %+v", got, record)
	}
}

func TestFromDocTimesAreUTC(t *testing.T) {
	got := fromDoc(transferDoc{CreatedAt: 1700000000, UpdatedAt: 1700000060})
	if got.CreatedAt.Location() != time.UTC || got.UpdatedAt.Location() != time.UTC {
		t.Fatalf("expected UTC times, got %v / %v", got.CreatedAt.Location(), got.UpdatedAt.Location())
	}
	if got.UpdatedAt.Sub(got.CreatedAt) != time.Minute {
		t.Fatalf("unexpected delta: %v", got.UpdatedAt.Sub(got.CreatedAt))
	}
}

func TestTransferDocBSONKeys(t *testing.T) {
	raw, err := bson.Marshal(toDoc(domain.TransferRecord{ID: "abc", Locator: "abc", Completed: true}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"_id", "locator", "name", "fileName", "length", "bytesCompleted", "completed", "createdAt", "updatedAt"} {
		if _, ok := m[key]; !ok {
			t.Errorf("missing bson key %q", key)
		}
	}
	if m["_id"] != "abc" {
		t.Errorf("_id = %v", m["_id"])
	}
}

func TestFromDocsEmpty(t *testing.T) {
	if got := fromDocs(nil); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}
