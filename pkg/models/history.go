package models

import "time"

// NameRecord is a stored accepted name.
type NameRecord struct {
	ID            int64          `json:"id"`
	Name          string         `json:"name"`
	Culture       string         `json:"culture"`
	Gender        Gender         `json:"gender,omitempty"`
	Pronunciation string         `json:"pronunciation,omitempty"`
	Syllables     []string       `json:"syllables"`
	Score         float64        `json:"score"`
	Parameters    map[string]any `json:"parameters,omitempty"`
	UsageCount    int            `json:"usage_count"`
	CreatedAt     time.Time      `json:"created_at"`
}

// RequestRecord logs one generation request.
type RequestRecord struct {
	RequestID      string    `json:"request_id"`
	Culture        string    `json:"culture"`
	Gender         Gender    `json:"gender,omitempty"`
	Count          int       `json:"count"`
	Returned       int       `json:"returned"`
	MinScore       float64   `json:"min_score"`
	ResponseTimeMs float64   `json:"response_time_ms"`
	Cached         bool      `json:"cached"`
	Success        bool      `json:"success"`
	CreatedAt      time.Time `json:"created_at"`
}

// HistoryFilter narrows a name history query.
type HistoryFilter struct {
	Culture  string
	Gender   Gender
	MinScore float64
	Since    time.Time
	Limit    int
}

// CultureSummary aggregates stored names per culture.
type CultureSummary struct {
	Culture    string  `json:"culture"`
	Names      int     `json:"names"`
	AvgScore   float64 `json:"avg_score"`
	TotalUsage int     `json:"total_usage"`
	Requests   int     `json:"requests"`
}
