package weather

import "testing"

func TestBuildParams(t *testing.T) {
	jan := mustRange(t, "2023-01-01", "2023-01-10")
	feb := mustRange(t, "2023-02-01", "2023-02-05")
	radiation := DatasetKey{ID: DirectRadiation, Granularity: Hourly}

	tests := []struct {
		name       string
		records    []RequestRecord
		active     DateRange
		wantHourly string
		wantDaily  string
	}{
		{
			name:       "empty ledger",
			active:     jan,
			wantHourly: "",
			wantDaily:  "",
		},
		{
			name: "split by granularity in ledger order",
			records: []RequestRecord{
				{Key: tempMax, Range: jan},
				{Key: radiation, Range: jan},
				{Key: tempMin, Range: jan},
				{Key: humidity, Range: jan},
			},
			active:     jan,
			wantHourly: "direct_radiation,relativehumidity_2m",
			wantDaily:  "temperature_2m_max,temperature_2m_min",
		},
		{
			name: "same dataset under several ranges appears once",
			records: []RequestRecord{
				{Key: humidity, Range: jan},
				{Key: humidity, Range: feb},
				{Key: tempMax, Range: feb},
			},
			active:     feb,
			wantHourly: "relativehumidity_2m",
			wantDaily:  "temperature_2m_max",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := BuildParams(tt.records, tt.active, testLocation)
			if got := p.Get("hourly"); got != tt.wantHourly {
				t.Errorf("hourly = %q, want %q", got, tt.wantHourly)
			}
			if got := p.Get("daily"); got != tt.wantDaily {
				t.Errorf("daily = %q, want %q", got, tt.wantDaily)
			}
			if p.Get("start_date") != tt.active.StartDate() || p.Get("end_date") != tt.active.EndDate() {
				t.Errorf("range = %s..%s, want %s", p.Get("start_date"), p.Get("end_date"), tt.active)
			}
		})
	}
}

func TestBuildParamsUsesActiveRangeNotUnion(t *testing.T) {
	records := []RequestRecord{
		{Key: humidity, Range: mustRange(t, "2023-01-01", "2023-01-31")},
		{Key: tempMax, Range: mustRange(t, "2023-03-01", "2023-03-31")},
	}
	active := mustRange(t, "2023-02-10", "2023-02-12")

	p := BuildParams(records, active, testLocation)
	if p.Get("start_date") != "2023-02-10" || p.Get("end_date") != "2023-02-12" {
		t.Fatalf("expected the active range only, got %s", p.Encode())
	}
}

func TestParamsEncodeKeepsOrder(t *testing.T) {
	p := BuildParams([]RequestRecord{
		{Key: humidity, Range: mustRange(t, "2023-01-01", "2023-01-10")},
		{Key: DatasetKey{ID: DirectRadiation, Granularity: Hourly}, Range: mustRange(t, "2023-01-01", "2023-01-10")},
	}, mustRange(t, "2023-01-01", "2023-01-10"), testLocation)

	want := "hourly=relativehumidity_2m%2Cdirect_radiation&daily=&latitude=1.29&longitude=103.85" +
		"&timezone=Asia%2FSingapore&start_date=2023-01-01&end_date=2023-01-10"
	if got := p.Encode(); got != want {
		t.Fatalf("Encode() =\n%s\nwant\n%s", got, want)
	}
	if got := p.Get("timezone"); got != "Asia/Singapore" {
		t.Fatalf("timezone = %q", got)
	}
}
