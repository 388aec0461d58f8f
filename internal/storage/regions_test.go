package storage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"telegram_parser/internal/geo"
)

type recordingRegionWriter struct {
	upserted []geo.Region
	failID   int64
}

func (w *recordingRegionWriter) UpsertRegion(_ context.Context, r geo.Region) error {
	if w.failID != 0 && r.ID == w.failID {
		return errors.New("connection reset")
	}
	w.upserted = append(w.upserted, r)
	return nil
}

func TestSyncRegionsUpsertsAll(t *testing.T) {
	regions := []geo.Region{
		{ID: 1, Name: "Московская область", NameLatin: "Moskovskaya oblast"},
		{ID: 2, Name: "Тюменская область"},
	}

	w := &recordingRegionWriter{}
	if err := SyncRegions(context.Background(), w, regions); err != nil {
		t.Fatal(err)
	}

	if len(w.upserted) != 2 {
		t.Fatalf("upserted %d regions", len(w.upserted))
	}
	if w.upserted[0] != regions[0] || w.upserted[1] != regions[1] {
		t.Errorf("upserted = %+v", w.upserted)
	}
}

func TestSyncRegionsStopsOnError(t *testing.T) {
	regions := []geo.Region{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}, {ID: 3, Name: "C"}}

	w := &recordingRegionWriter{failID: 2}
	err := SyncRegions(context.Background(), w, regions)
	if err == nil {
		t.Fatal("want error from failing upsert")
	}
	if !strings.Contains(err.Error(), "region 2") {
		t.Errorf("err = %v, want the failing region id", err)
	}
	if len(w.upserted) != 1 {
		t.Errorf("upserted %d regions before the failure, want 1", len(w.upserted))
	}
}
