package weather

// Registry is the append-only, deduplicated ledger of every dataset/range pair
// ever requested, plus the single active date range shared by all datasets.
//
// Registry is not safe for concurrent use; the Aggregator serializes access.
type Registry struct {
	records []RequestRecord
	seen    map[string]struct{}
	active  DateRange
}

func NewRegistry() *Registry {
	return &Registry{seen: make(map[string]struct{})}
}

// Register records key/rng and makes rng the active range. It reports whether
// the fingerprint was new; a repeated fingerprint leaves the ledger unchanged.
func (r *Registry) Register(key DatasetKey, rng DateRange) bool {
	r.active = rng

	rec := RequestRecord{Key: key, Range: rng}
	fp := rec.Fingerprint()
	if _, ok := r.seen[fp]; ok {
		return false
	}
	r.seen[fp] = struct{}{}
	r.records = append(r.records, rec)
	return true
}

// Snapshot returns a copy of the ledger in insertion order.
func (r *Registry) Snapshot() []RequestRecord {
	out := make([]RequestRecord, len(r.records))
	copy(out, r.records)
	return out
}

func (r *Registry) ActiveRange() DateRange {
	return r.active
}

func (r *Registry) Len() int {
	return len(r.records)
}
