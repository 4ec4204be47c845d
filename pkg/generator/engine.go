package generator

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/magus-names/magus/pkg/models"
)

// Defaults for Options fields left unset.
const (
	DefaultMaxAttempts     = 100
	DefaultAcceptanceFloor = 0.6
)

// Templates resolves culture codes (or aliases) to templates.
type Templates interface {
	Lookup(code string) (*models.CultureTemplate, bool)
}

// Scorer rates a candidate name.
type Scorer interface {
	Score(name, culture string) float64
}

// Observer receives per-call engine outcomes.
type Observer interface {
	EngineResult(culture string, attempts int, fallback bool)
}

// Options configures an Engine. A nil AcceptanceFloor selects
// DefaultAcceptanceFloor; zero is a valid floor that accepts any candidate.
type Options struct {
	MaxAttempts     int
	AcceptanceFloor *float64
	Source          Source
	Logger          *zap.Logger
	Observer        Observer
}

// Engine assembles scored candidate names from culture templates.
type Engine struct {
	templates Templates
	scorer    Scorer
	assembler *Assembler
	src       Source
	opts      Options
	floor     float64
	logger    *zap.Logger
}

// New creates an Engine.
func New(templates Templates, scorer Scorer, opts Options) *Engine {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	floor := DefaultAcceptanceFloor
	if opts.AcceptanceFloor != nil {
		floor = *opts.AcceptanceFloor
	}
	if opts.Source == nil {
		opts.Source = DefaultSource()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		templates: templates,
		scorer:    scorer,
		assembler: NewAssembler(opts.Source),
		src:       opts.Source,
		opts:      opts,
		floor:     floor,
		logger:    logger,
	}
}

// Generate draws candidates until one scores at or above the acceptance floor.
// When the attempt budget runs out it returns the culture's fallback name with
// a score of 0 and Fallback set; exhaustion is never an error. Errors are
// limited to unknown cultures, invalid genders and template problems.
func (e *Engine) Generate(culture string, gender models.Gender, length models.Length) (models.Candidate, error) {
	tmpl, ok := e.templates.Lookup(culture)
	if !ok {
		return models.Candidate{}, fmt.Errorf("%w: %q", models.ErrUnknownCulture, culture)
	}
	if !gender.Valid() {
		return models.Candidate{}, fmt.Errorf("%w: gender %q", models.ErrInvalidRequest, gender)
	}
	if length != models.LengthAny && length.Syllables() == 0 {
		return models.Candidate{}, fmt.Errorf("%w: length %q", models.ErrInvalidRequest, length)
	}

	for attempt := 1; attempt <= e.opts.MaxAttempts; attempt++ {
		syllables, err := e.syllables(tmpl, gender, length)
		if err != nil {
			return models.Candidate{}, err
		}
		applyTransforms(tmpl, syllables)

		raw := strings.Join(syllables, "")
		score := e.scorer.Score(raw, tmpl.Code)
		if score >= e.floor {
			e.observe(tmpl.Code, attempt, false)
			return models.Candidate{
				Name:      Capitalize(raw),
				Syllables: syllables,
				Score:     score,
			}, nil
		}
	}

	e.logger.Debug("attempt budget exhausted",
		zap.String("culture", tmpl.Code),
		zap.String("gender", string(gender)),
		zap.Int("attempts", e.opts.MaxAttempts),
	)
	e.observe(tmpl.Code, e.opts.MaxAttempts, true)
	return Fallback(tmpl.Code), nil
}

func (e *Engine) observe(culture string, attempts int, fallback bool) {
	if e.opts.Observer != nil {
		e.opts.Observer.EngineResult(culture, attempts, fallback)
	}
}

// syllables draws and assembles one pattern per syllable slot.
func (e *Engine) syllables(t *models.CultureTemplate, g models.Gender, l models.Length) ([]string, error) {
	n := l.Syllables()
	if n == 0 {
		n = 2 + e.src.IntN(3)
	}

	out := make([]string, n)
	for i := range n {
		pos := positionAt(i, n)
		patterns := t.PatternsFor(g, pos)
		if len(patterns) == 0 {
			return nil, &ConfigError{Culture: t.Code, Position: pos, Reason: "no patterns for gender " + genderLabel(g)}
		}
		p := e.pick(patterns)
		syl, err := e.assembler.Assemble(p, t)
		if err != nil {
			var ce *ConfigError
			if errors.As(err, &ce) {
				ce.Position = pos
			}
			return nil, err
		}
		out[i] = syl
	}
	return out, nil
}

// positionAt maps slot i of n to a position: first is initial, last is final,
// everything between is medial.
func positionAt(i, n int) models.Position {
	switch {
	case i == 0:
		return models.PositionInitial
	case i == n-1:
		return models.PositionFinal
	default:
		return models.PositionMedial
	}
}

// pick draws a pattern with probability proportional to its weight.
func (e *Engine) pick(patterns []models.Pattern) models.Pattern {
	var total float64
	for _, p := range patterns {
		if p.Weight > 0 {
			total += p.Weight
		}
	}
	if total <= 0 {
		return patterns[e.src.IntN(len(patterns))]
	}

	r := e.src.Float64() * total
	for _, p := range patterns {
		if p.Weight <= 0 {
			continue
		}
		r -= p.Weight
		if r < 0 {
			return p
		}
	}
	// float rounding can leave r at ~0 after the last weight
	for i := len(patterns) - 1; i >= 0; i-- {
		if patterns[i].Weight > 0 {
			return patterns[i]
		}
	}
	return patterns[len(patterns)-1]
}

// Fallback returns the deterministic placeholder for an exhausted culture.
func Fallback(culture string) models.Candidate {
	code := strings.ToLower(culture)
	return models.Candidate{
		Name:      "Unnamed-" + code,
		Syllables: []string{"un", "named", "-" + code},
		Score:     0,
		Fallback:  true,
	}
}

// Capitalize upper-cases the first letter and lower-cases the rest.
func Capitalize(s string) string {
	runes := []rune(strings.ToLower(s))
	if len(runes) == 0 {
		return s
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func genderLabel(g models.Gender) string {
	if g == models.GenderNone {
		return "none"
	}
	return string(g)
}
