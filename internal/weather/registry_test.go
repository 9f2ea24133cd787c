package weather

import "testing"

func TestRegistryDeduplicatesAndKeepsOrder(t *testing.T) {
	r := NewRegistry()
	jan := mustRange(t, "2023-01-01", "2023-01-10")
	feb := mustRange(t, "2023-02-01", "2023-02-05")

	steps := []struct {
		key    DatasetKey
		rng    DateRange
		wantOK bool
	}{
		{humidity, jan, true},
		{tempMax, jan, true},
		{humidity, jan, false},
		{humidity, feb, true},
		{tempMax, jan, false},
	}
	for i, s := range steps {
		if got := r.Register(s.key, s.rng); got != s.wantOK {
			t.Fatalf("step %d: Register = %v, want %v", i, got, s.wantOK)
		}
	}

	snap := r.Snapshot()
	want := []string{
		"relativehumidity_2m|hourly|2023-01-01|2023-01-10",
		"temperature_2m_max|daily|2023-01-01|2023-01-10",
		"relativehumidity_2m|hourly|2023-02-01|2023-02-05",
	}
	if len(snap) != len(want) {
		t.Fatalf("ledger has %d records, want %d", len(snap), len(want))
	}
	for i, fp := range want {
		if got := snap[i].Fingerprint(); got != fp {
			t.Errorf("record %d = %s, want %s", i, got, fp)
		}
	}
}

func TestRegistryDuplicateStillMovesActiveRange(t *testing.T) {
	r := NewRegistry()
	jan := mustRange(t, "2023-01-01", "2023-01-10")
	feb := mustRange(t, "2023-02-01", "2023-02-05")

	r.Register(humidity, jan)
	r.Register(tempMax, feb)
	if r.ActiveRange() != feb {
		t.Fatalf("active range = %s, want %s", r.ActiveRange(), feb)
	}

	r.Register(humidity, jan)
	if r.ActiveRange() != jan {
		t.Fatalf("duplicate did not move active range: %s", r.ActiveRange())
	}
	if r.Len() != 2 {
		t.Fatalf("duplicate grew the ledger to %d", r.Len())
	}
}

func TestRegistrySnapshotIsACopy(t *testing.T) {
	r := NewRegistry()
	r.Register(humidity, mustRange(t, "2023-01-01", "2023-01-10"))

	snap := r.Snapshot()
	snap[0].Key = tempMin
	if r.Snapshot()[0].Key != humidity {
		t.Fatal("mutating a snapshot changed the ledger")
	}
}
