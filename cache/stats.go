package cache

import "time"

// Stats is a point-in-time snapshot of a Store.
type Stats struct {
	Name    string       `json:"name"`
	Size    int          `json:"size"`
	MaxSize int          `json:"max_size"`
	Hits    uint64       `json:"hits"`
	Misses  uint64       `json:"misses"`
	HitRate float64      `json:"hit_rate"`
	Entries []EntryStats `json:"entries"`
}

// EntryStats describes one resident entry.
type EntryStats struct {
	Key string        `json:"key"`
	Age time.Duration `json:"age"`
	TTL time.Duration `json:"ttl"`
}

// Utilization returns Size/MaxSize in the [0,1] range.
func (s Stats) Utilization() float64 {
	if s.MaxSize <= 0 {
		return 0
	}
	return float64(s.Size) / float64(s.MaxSize)
}

// AverageAge returns the mean age of the listed entries.
func (s Stats) AverageAge() time.Duration {
	if len(s.Entries) == 0 {
		return 0
	}
	var total time.Duration
	for _, e := range s.Entries {
		total += e.Age
	}
	return total / time.Duration(len(s.Entries))
}

// Lookups returns the number of reads counted by the store.
func (s Stats) Lookups() uint64 {
	return s.Hits + s.Misses
}

func hitRate(hits, misses uint64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
