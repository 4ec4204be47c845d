package models

// CacheStats reports cache performance metrics for the active backend.
type CacheStats struct {
	Backend   string  `json:"backend"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	Size      int64   `json:"size"`
	Capacity  int64   `json:"capacity"`
	HitRate   float64 `json:"hit_rate"`
}
