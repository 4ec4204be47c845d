package models

import "errors"

var (
	// ErrUnknownCulture is returned when a culture code matches no loaded template.
	ErrUnknownCulture = errors.New("unknown culture")
	// ErrInvalidRequest is returned when a generation request fails validation.
	ErrInvalidRequest = errors.New("invalid request")
)

// GenerationRequest asks for a batch of names in one culture.
type GenerationRequest struct {
	Culture              string   `json:"culture" validate:"required,max=50"`
	Gender               Gender   `json:"gender,omitempty" validate:"omitempty,oneof=masculine feminine neutral"`
	Length               Length   `json:"length,omitempty" validate:"omitempty,oneof=short medium long"`
	Count                int      `json:"count" validate:"gte=0"`
	MinScore             *float64 `json:"min_score,omitempty" validate:"omitempty,gte=0,lte=1"`
	IncludePronunciation *bool    `json:"include_pronunciation,omitempty"`
}

// Candidate is a single engine output before request-level filtering.
type Candidate struct {
	Name      string
	Syllables []string
	Score     float64
	Fallback  bool
}

// GeneratedName is an accepted name returned to callers.
type GeneratedName struct {
	Name          string   `json:"name"`
	Pronunciation string   `json:"pronunciation,omitempty"`
	Syllables     []string `json:"syllables"`
	Score         float64  `json:"score"`
	Culture       string   `json:"culture"`
	Gender        Gender   `json:"gender,omitempty"`
}

// GenerationResponse is the result of a generation request.
type GenerationResponse struct {
	RequestID  string            `json:"request_id"`
	Names      []GeneratedName   `json:"names"`
	ElapsedMs  float64           `json:"generation_time_ms"`
	Cached     bool              `json:"cached"`
	Parameters GenerationRequest `json:"parameters"`
}

// Penalty is one scoring rule that fired for a name.
type Penalty struct {
	Rule   string  `json:"rule"`
	Detail string  `json:"detail,omitempty"`
	Amount float64 `json:"amount"`
}

// NameValidation is the pronounceability report for an arbitrary name.
type NameValidation struct {
	Name          string    `json:"name"`
	Culture       string    `json:"culture,omitempty"`
	Score         float64   `json:"score"`
	Pronounceable bool      `json:"pronounceable"`
	Pronunciation string    `json:"pronunciation"`
	Syllables     []string  `json:"syllables"`
	Issues        []Penalty `json:"issues,omitempty"`
}
