package phonetics

import (
	"fmt"
	"slices"
	"strings"

	"github.com/magus-names/magus/pkg/models"
)

// Penalty amounts subtracted from a perfect score of 1.0.
const (
	PenaltyForbiddenInitial = 0.1
	PenaltyForbiddenFinal   = 0.1
	PenaltyCluster          = 0.2
	PenaltyVowelRatio       = 0.15
	PenaltyConsonantRun     = 0.1
	PenaltyDiscouraged      = 0.1

	MinVowelRatio = 0.3
	MaxVowelRatio = 0.6
)

// Vowels used for ratio and run computation.
const Vowels = "aeiouy"

// Rules is the set of phonotactic heuristics applied to one culture.
type Rules struct {
	ForbiddenInitial  []string
	ForbiddenFinal    []string
	DifficultClusters []string
	MaxConsonantRun   int
	Discouraged       string
}

// DefaultRules returns the rules applied when a culture defines none.
func DefaultRules() Rules {
	return Rules{
		ForbiddenInitial:  []string{"ng", "nk", "mb", "wr"},
		ForbiddenFinal:    []string{"h", "w", "y"},
		DifficultClusters: []string{"thr", "spr", "str", "scr"},
		MaxConsonantRun:   3,
	}
}

// builtinDiscouraged holds letters penalized per culture code when the
// culture template does not set its own.
var builtinDiscouraged = map[string]string{
	"elvish": "kgx",
}

// RulesFor merges a template's constraints over the defaults. Forbidden
// initials and clusters replace the defaults when set; forbidden finals are
// added to the h/w/y set, which always applies. The consonant run threshold
// is fixed. A nil template yields the defaults plus any built-in adjustment
// for code.
func RulesFor(code string, tmpl *models.CultureTemplate) Rules {
	r := DefaultRules()
	r.Discouraged = builtinDiscouraged[strings.ToLower(code)]
	if tmpl == nil {
		return r
	}

	c := tmpl.Constraints
	if len(c.ForbiddenInitial) > 0 {
		r.ForbiddenInitial = lowerAll(c.ForbiddenInitial)
	}
	r.ForbiddenFinal = mergeUnique(r.ForbiddenFinal, lowerAll(c.ForbiddenFinal))
	if len(c.ForbiddenClusters) > 0 {
		r.DifficultClusters = lowerAll(c.ForbiddenClusters)
	}
	if c.DiscouragedLetters != "" {
		r.Discouraged = strings.ToLower(c.DiscouragedLetters)
	}
	return r
}

func mergeUnique(base, extra []string) []string {
	out := append([]string(nil), base...)
	for _, s := range extra {
		if s != "" && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

// TemplateSource resolves culture codes to templates.
type TemplateSource interface {
	Lookup(code string) (*models.CultureTemplate, bool)
}

// Scorer assigns pronounceability scores in [0,1]. It holds no mutable state;
// identical inputs always produce identical output.
type Scorer struct {
	templates TemplateSource
}

// NewScorer creates a Scorer. A nil source applies default rules to every culture.
func NewScorer(src TemplateSource) *Scorer {
	return &Scorer{templates: src}
}

// Rules returns the effective rules for a culture code.
func (s *Scorer) Rules(culture string) Rules {
	if culture == "" {
		return DefaultRules()
	}
	var tmpl *models.CultureTemplate
	if s != nil && s.templates != nil {
		if t, ok := s.templates.Lookup(culture); ok {
			tmpl = t
		}
	}
	return RulesFor(culture, tmpl)
}

// Score returns the pronounceability of name in the context of culture.
func (s *Scorer) Score(name, culture string) float64 {
	score, _ := s.Analyze(name, culture)
	return score
}

// Analyze returns the clamped score and every penalty that fired.
func (s *Scorer) Analyze(name, culture string) (float64, []models.Penalty) {
	return Evaluate(name, s.Rules(culture))
}

// Evaluate scores name against an explicit rule set.
func Evaluate(name string, r Rules) (float64, []models.Penalty) {
	lower := strings.ToLower(name)
	runes := []rune(lower)
	if len(runes) == 0 {
		return 0, []models.Penalty{{Rule: "empty", Amount: 1}}
	}

	var penalties []models.Penalty
	add := func(rule, detail string, amount float64) {
		penalties = append(penalties, models.Penalty{Rule: rule, Detail: detail, Amount: amount})
	}

	// Initial and final penalties apply once, however many patterns match.
	for _, p := range r.ForbiddenInitial {
		if p != "" && strings.HasPrefix(lower, p) {
			add("forbidden_initial", p, PenaltyForbiddenInitial)
			break
		}
	}
	for _, p := range r.ForbiddenFinal {
		if p != "" && strings.HasSuffix(lower, p) {
			add("forbidden_final", p, PenaltyForbiddenFinal)
			break
		}
	}
	// Global substring search, not limited to syllable joins.
	for _, c := range r.DifficultClusters {
		if c == "" {
			continue
		}
		if n := strings.Count(lower, c); n > 0 {
			add("difficult_cluster", fmt.Sprintf("%s x%d", c, n), PenaltyCluster*float64(n))
		}
	}

	ratio := VowelRatio(lower)
	if ratio < MinVowelRatio || ratio > MaxVowelRatio {
		add("vowel_ratio", fmt.Sprintf("%.2f", ratio), PenaltyVowelRatio)
	}

	if run := MaxConsonantRun(lower); run > r.MaxConsonantRun {
		add("consonant_run", fmt.Sprintf("%d consecutive", run), PenaltyConsonantRun*float64(run-r.MaxConsonantRun))
	}

	if r.Discouraged != "" && strings.ContainsAny(lower, r.Discouraged) {
		add("discouraged_letters", r.Discouraged, PenaltyDiscouraged)
	}

	score := 1.0
	for _, p := range penalties {
		score -= p.Amount
	}
	return clamp(score), penalties
}

// VowelRatio returns the share of vowels among the runes of s.
func VowelRatio(s string) float64 {
	total, vowels := 0, 0
	for _, r := range s {
		total++
		if isVowel(r) {
			vowels++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(vowels) / float64(total)
}

// MaxConsonantRun returns the longest run of non-vowel runes in s.
func MaxConsonantRun(s string) int {
	longest, current := 0, 0
	for _, r := range s {
		if isVowel(r) {
			current = 0
			continue
		}
		current++
		if current > longest {
			longest = current
		}
	}
	return longest
}

func isVowel(r rune) bool {
	return strings.ContainsRune(Vowels, r)
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
