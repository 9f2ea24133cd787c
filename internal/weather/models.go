package weather

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// DateLayout is the calendar date format used by the forecast API.
const DateLayout = "2006-01-02"

// DatasetID names a weather variable known to the forecast API.
type DatasetID string

const (
	RelativeHumidity2m DatasetID = "relativehumidity_2m"
	DirectRadiation    DatasetID = "direct_radiation"
	Temperature2mMax   DatasetID = "temperature_2m_max"
	Temperature2mMin   DatasetID = "temperature_2m_min"
)

// KnownDatasets lists every DatasetID the service accepts.
var KnownDatasets = []DatasetID{
	RelativeHumidity2m,
	DirectRadiation,
	Temperature2mMax,
	Temperature2mMin,
}

// Valid reports whether id is one of KnownDatasets.
func (id DatasetID) Valid() bool {
	for _, k := range KnownDatasets {
		if k == id {
			return true
		}
	}
	return false
}

// Granularity is the time resolution of a dataset.
type Granularity string

const (
	Hourly Granularity = "hourly"
	Daily  Granularity = "daily"
)

// Granularities in the order they appear in the combined request.
var Granularities = []Granularity{Hourly, Daily}

func (g Granularity) Valid() bool {
	return g == Hourly || g == Daily
}

// DatasetKey identifies one requested variable at one granularity.
type DatasetKey struct {
	ID          DatasetID   `json:"id"`
	Granularity Granularity `json:"granularity"`
}

func (k DatasetKey) String() string {
	return string(k.Granularity) + ":" + string(k.ID)
}

// ParseDatasetKey parses "granularity:id", the format used in WARMUP_DATASETS.
func ParseDatasetKey(s string) (DatasetKey, error) {
	gran, id, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return DatasetKey{}, fmt.Errorf("dataset %q: expected granularity:id", s)
	}
	key := DatasetKey{ID: DatasetID(id), Granularity: Granularity(gran)}
	if !key.Granularity.Valid() {
		return DatasetKey{}, fmt.Errorf("dataset %q: unknown granularity %q", s, gran)
	}
	if !key.ID.Valid() {
		return DatasetKey{}, fmt.Errorf("dataset %q: unknown id %q", s, id)
	}
	return key, nil
}

// DateRange is an inclusive range of calendar dates.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewDateRange parses two YYYY-MM-DD dates.
func NewDateRange(start, end string) (DateRange, error) {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return DateRange{}, fmt.Errorf("invalid start date: %w", err)
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return DateRange{}, fmt.Errorf("invalid end date: %w", err)
	}
	return DateRange{Start: s, End: e}, nil
}

func (r DateRange) StartDate() string { return r.Start.Format(DateLayout) }
func (r DateRange) EndDate() string   { return r.End.Format(DateLayout) }

// IsZero reports whether no range has been set.
func (r DateRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

func (r DateRange) String() string {
	return r.StartDate() + ".." + r.EndDate()
}

// MarshalJSON renders both ends as YYYY-MM-DD, or null when unset.
func (r DateRange) MarshalJSON() ([]byte, error) {
	if r.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(map[string]string{
		"start": r.StartDate(),
		"end":   r.EndDate(),
	})
}

// RequestRecord is a dataset/range pair as it was submitted.
type RequestRecord struct {
	Key   DatasetKey `json:"key"`
	Range DateRange  `json:"range"`
}

// Fingerprint returns the ledger dedup key "id|granularity|start|end".
func (r RequestRecord) Fingerprint() string {
	return strings.Join([]string{
		string(r.Key.ID),
		string(r.Key.Granularity),
		r.Range.StartDate(),
		r.Range.EndDate(),
	}, "|")
}

// Location is the fixed place every combined request is made for.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone"`
}

// Series is one dataset projected out of a CombinedResponse. Both slices are
// nil when the response does not carry the dataset.
type Series struct {
	Values []*float64 `json:"values"`
	Labels []string   `json:"labels"`
}

// Empty reports the "no data yet" state.
func (s Series) Empty() bool {
	return s.Values == nil && s.Labels == nil
}

// block holds one granularity section of a response.
type block struct {
	time   []string
	values map[string][]*float64
}

// CombinedResponse is one decoded upstream result. It is never mutated after
// construction.
type CombinedResponse struct {
	Epoch     uint64
	FetchedAt time.Time
	Params    Params
	Range     DateRange
	blocks    map[Granularity]block
}

// Project extracts response[granularity][id] and response[granularity]["time"].
func (r *CombinedResponse) Project(key DatasetKey) Series {
	if r == nil {
		return Series{}
	}
	b, ok := r.blocks[key.Granularity]
	if !ok {
		return Series{}
	}
	values, ok := b.values[string(key.ID)]
	if !ok {
		return Series{}
	}
	return Series{Values: values, Labels: b.time}
}

// Datasets lists the keys present in the response, hourly first then daily,
// each sorted by id.
func (r *CombinedResponse) Datasets() []DatasetKey {
	if r == nil {
		return nil
	}
	var keys []DatasetKey
	for _, g := range Granularities {
		b, ok := r.blocks[g]
		if !ok {
			continue
		}
		ids := make([]string, 0, len(b.values))
		for id := range b.values {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			keys = append(keys, DatasetKey{ID: DatasetID(id), Granularity: g})
		}
	}
	return keys
}
