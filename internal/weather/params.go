package weather

import (
	"net/url"
	"strconv"
	"strings"
)

// Param is one query parameter of the combined request.
type Param struct {
	Key   string
	Value string
}

// Params is an ordered list of query parameters.
type Params []Param

// Get returns the first value for key, or "".
func (p Params) Get(key string) string {
	for _, kv := range p {
		if kv.Key == key {
			return kv.Value
		}
	}
	return ""
}

// Encode renders the params as a query string, keeping their order.
func (p Params) Encode() string {
	var sb strings.Builder
	for i, kv := range p {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(kv.Key))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(kv.Value))
	}
	return sb.String()
}

// BuildParams folds a ledger snapshot into the single combined request.
//
// The date range is always the active range, not a union of the ranges in
// records: every dataset in one response shares the same time axis. Serving
// widgets with different windows from one cache is not supported.
func BuildParams(records []RequestRecord, active DateRange, loc Location) Params {
	ids := make(map[Granularity][]string, len(Granularities))
	seen := make(map[DatasetKey]struct{}, len(records))
	for _, rec := range records {
		if _, ok := seen[rec.Key]; ok {
			continue
		}
		seen[rec.Key] = struct{}{}
		ids[rec.Key.Granularity] = append(ids[rec.Key.Granularity], string(rec.Key.ID))
	}

	return Params{
		{Key: string(Hourly), Value: strings.Join(ids[Hourly], ",")},
		{Key: string(Daily), Value: strings.Join(ids[Daily], ",")},
		{Key: "latitude", Value: strconv.FormatFloat(loc.Latitude, 'f', -1, 64)},
		{Key: "longitude", Value: strconv.FormatFloat(loc.Longitude, 'f', -1, 64)},
		{Key: "timezone", Value: loc.Timezone},
		{Key: "start_date", Value: active.StartDate()},
		{Key: "end_date", Value: active.EndDate()},
	}
}
