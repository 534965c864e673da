package domain

// Accumulator is the growing, deduplicated record list of a job run.
// It is not safe for concurrent use; the engine guards it with the run mutex.
type Accumulator struct {
	key     []string
	records []Record
	index   map[string]int
}

// NewAccumulator creates an accumulator deduplicating on the key fields.
func NewAccumulator(key []string) *Accumulator {
	return &Accumulator{key: key, index: make(map[string]int)}
}

// Merge adds records, replacing any stored record with the same key.
// It returns how many records were new.
func (a *Accumulator) Merge(records ...Record) int {
	added := 0
	for _, r := range records {
		k := r.Key(a.key)
		if k == "" {
			a.records = append(a.records, r.Clone())
			added++
			continue
		}
		if i, ok := a.index[k]; ok {
			a.records[i] = r.Clone()
			continue
		}
		a.index[k] = len(a.records)
		a.records = append(a.records, r.Clone())
		added++
	}
	return added
}

// Len returns the number of accumulated records.
func (a *Accumulator) Len() int { return len(a.records) }

// Records returns a copy of the accumulated records in insertion order.
func (a *Accumulator) Records() []Record {
	out := make([]Record, len(a.records))
	for i, r := range a.records {
		out[i] = r.Clone()
	}
	return out
}
