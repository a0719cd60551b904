package datastore

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/pivotlabs/chatlens/pkg/clock"
	"github.com/pivotlabs/chatlens/pkg/dataset"
)

func deterministicRand() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func TestNew_InitialSnapshots(t *testing.T) {
	s := New(WithRand(deterministicRand()))

	if s.Generation() != 1 {
		t.Errorf("Generation() = %d, want 1", s.Generation())
	}

	sales := s.Sales()
	if len(sales.Rows) != 30 {
		t.Errorf("sales has %d rows, want 30", len(sales.Rows))
	}
	wantCols := []string{ColDate, ColProductA, ColProductB, ColProductC}
	for i, c := range wantCols {
		if sales.Columns[i] != c {
			t.Errorf("sales column[%d] = %q, want %q", i, sales.Columns[i], c)
		}
	}

	geo := s.Geo()
	if len(geo.Rows) != 100 {
		t.Errorf("geo has %d rows, want 100", len(geo.Rows))
	}
	if geo.Columns[0] != ColLat || geo.Columns[1] != ColLon {
		t.Errorf("geo columns = %v", geo.Columns)
	}
}

func TestStore_SalesValuesPlausible(t *testing.T) {
	s := New(WithRand(deterministicRand()))
	sales := s.Sales()

	for _, row := range sales.Rows {
		for i := 1; i < len(row); i++ {
			v, ok := dataset.Float(row[i])
			if !ok {
				t.Fatalf("sales value %v is not numeric", row[i])
			}
			// Means are 60/70/50 with sigma 5; anything outside this band
			// indicates broken generation, not an unlucky draw.
			if v < 0 || v > 150 {
				t.Errorf("sales value %v outside plausible range", v)
			}
		}
	}
}

func TestStore_GeoValuesClustered(t *testing.T) {
	s := New(WithRand(deterministicRand()))
	geo := s.Geo()

	for _, row := range geo.Rows {
		lat, _ := dataset.Float(row[0])
		lon, _ := dataset.Float(row[1])
		if lat < geoCenterLat-1 || lat > geoCenterLat+1 {
			t.Errorf("lat %v too far from center", lat)
		}
		if lon < geoCenterLon-1 || lon > geoCenterLon+1 {
			t.Errorf("lon %v too far from center", lon)
		}
	}
}

func TestStore_CheckForUpdate_NeverWithZeroProbability(t *testing.T) {
	s := New(WithRand(deterministicRand()), WithUpdateProbability(0))

	for range 100 {
		if s.CheckForUpdate() {
			t.Fatal("CheckForUpdate() = true with probability 0")
		}
	}
	if s.Generation() != 1 {
		t.Errorf("Generation() = %d after no updates, want 1", s.Generation())
	}
}

func TestStore_CheckForUpdate_AlwaysWithFullProbability(t *testing.T) {
	s := New(WithRand(deterministicRand()), WithUpdateProbability(1))

	for i := range 5 {
		if !s.CheckForUpdate() {
			t.Fatal("CheckForUpdate() = false with probability 1")
		}
		if want := uint64(i + 2); s.Generation() != want {
			t.Errorf("Generation() = %d, want %d", s.Generation(), want)
		}
	}
}

func TestStore_RegenerationChangesData(t *testing.T) {
	s := New(WithRand(deterministicRand()), WithUpdateProbability(1))

	before := s.Sales().Fingerprint()
	s.CheckForUpdate()
	after := s.Sales().Fingerprint()

	if before == after {
		t.Error("regeneration should produce different sales data")
	}
}

func TestStore_SnapshotSources(t *testing.T) {
	s := New(WithRand(deterministicRand()))

	if got := s.Snapshot(SourceSales); len(got.Rows) != 30 {
		t.Errorf("Snapshot(sales) has %d rows, want 30", len(got.Rows))
	}
	if got := s.Snapshot(SourceGeo); len(got.Rows) != 100 {
		t.Errorf("Snapshot(geo) has %d rows, want 100", len(got.Rows))
	}
	if got := s.Snapshot("unknown_table"); !got.Empty() {
		t.Errorf("Snapshot(unknown) = %v, want empty", got)
	}
}

func TestStore_SnapshotIsCopy(t *testing.T) {
	s := New(WithRand(deterministicRand()))

	a := s.Sales()
	a.Rows[0][1] = -1.0

	b := s.Sales()
	if b.Rows[0][1] == -1.0 {
		t.Error("mutating a returned snapshot changed store state")
	}
}

func TestStore_LastDate(t *testing.T) {
	fake := clock.NewFake(time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC))
	s := New(WithRand(deterministicRand()), WithClock(fake))

	want := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	if got := s.LastDate(); !got.Equal(want) {
		t.Errorf("LastDate() = %v, want %v", got, want)
	}
}

func TestStore_SalesDatesSpan30Days(t *testing.T) {
	fake := clock.NewFake(time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC))
	s := New(WithRand(deterministicRand()), WithClock(fake))

	sales := s.Sales()
	if sales.Rows[0][0] != "2025-05-17" {
		t.Errorf("first date = %v, want 2025-05-17", sales.Rows[0][0])
	}
	if sales.Rows[29][0] != "2025-06-15" {
		t.Errorf("last date = %v, want 2025-06-15", sales.Rows[29][0])
	}
}
