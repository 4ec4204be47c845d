package models

import "strings"

// Position identifies where a syllable sits within a name.
type Position string

const (
	PositionInitial Position = "initial"
	PositionMedial  Position = "medial"
	PositionFinal   Position = "final"
)

// Positions lists every syllable position in name order.
var Positions = []Position{PositionInitial, PositionMedial, PositionFinal}

// Gender selects gender-specific syllable patterns. The zero value means none.
type Gender string

const (
	GenderNone      Gender = ""
	GenderMasculine Gender = "masculine"
	GenderFeminine  Gender = "feminine"
	GenderNeutral   Gender = "neutral"
)

// Valid reports whether g is empty or one of the known genders.
func (g Gender) Valid() bool {
	switch g {
	case GenderNone, GenderMasculine, GenderFeminine, GenderNeutral:
		return true
	}
	return false
}

// Length is a coarse name-length class mapped to a syllable count.
type Length string

const (
	LengthAny    Length = ""
	LengthShort  Length = "short"
	LengthMedium Length = "medium"
	LengthLong   Length = "long"
)

// Syllables returns the syllable count for the class, or 0 when unset.
func (l Length) Syllables() int {
	switch l {
	case LengthShort:
		return 2
	case LengthMedium:
		return 3
	case LengthLong:
		return 4
	}
	return 0
}

// SymbolKind is the phoneme class a pattern symbol expands to.
type SymbolKind int

const (
	SymbolConsonant SymbolKind = iota
	SymbolVowel
	SymbolNasal
	SymbolLiquid
	SymbolLiteral
)

func (k SymbolKind) String() string {
	switch k {
	case SymbolConsonant:
		return "C"
	case SymbolVowel:
		return "V"
	case SymbolNasal:
		return "N"
	case SymbolLiquid:
		return "L"
	default:
		return "literal"
	}
}

// Symbol is one element of a syllable pattern. Literal is only set for SymbolLiteral.
type Symbol struct {
	Kind    SymbolKind
	Literal rune
}

// ParsePattern converts a pattern string such as "CVN" or "V'L" into symbols.
// Any character other than C, V, N and L is kept as a literal.
func ParsePattern(s string) []Symbol {
	symbols := make([]Symbol, 0, len(s))
	for _, r := range s {
		switch r {
		case 'C':
			symbols = append(symbols, Symbol{Kind: SymbolConsonant})
		case 'V':
			symbols = append(symbols, Symbol{Kind: SymbolVowel})
		case 'N':
			symbols = append(symbols, Symbol{Kind: SymbolNasal})
		case 'L':
			symbols = append(symbols, Symbol{Kind: SymbolLiquid})
		default:
			symbols = append(symbols, Symbol{Kind: SymbolLiteral, Literal: r})
		}
	}
	return symbols
}

// Pattern is a weighted syllable shape.
type Pattern struct {
	Source  string
	Symbols []Symbol
	Weight  float64
}

// NewPattern parses src and attaches weight.
func NewPattern(src string, weight float64) Pattern {
	return Pattern{Source: src, Symbols: ParsePattern(src), Weight: weight}
}

// Phonemes holds the character pools for each phoneme class.
type Phonemes struct {
	Consonants []rune
	Vowels     []rune
	Liquids    []rune
	Nasals     []rune
}

// Pool returns the pool for a non-literal symbol kind.
func (p Phonemes) Pool(kind SymbolKind) []rune {
	switch kind {
	case SymbolConsonant:
		return p.Consonants
	case SymbolVowel:
		return p.Vowels
	case SymbolNasal:
		return p.Nasals
	case SymbolLiquid:
		return p.Liquids
	}
	return nil
}

// Constraints are the phonotactic rules a culture applies to scoring and transforms.
type Constraints struct {
	ForbiddenInitial   []string
	ForbiddenFinal     []string
	ForbiddenClusters  []string
	VowelHarmony       bool
	DiscouragedLetters string
}

// CultureTemplate is the immutable definition of one naming style.
type CultureTemplate struct {
	Code        string
	Name        string
	Description string
	Aliases     []string

	Phonemes       Phonemes
	Patterns       map[Position][]Pattern
	GenderPatterns map[Gender]map[Position][]Pattern
	Constraints    Constraints
	Examples       map[Gender][]string
}

// PatternsFor returns the active pattern list for a position. A gender override
// for the position fully replaces the base list.
func (t *CultureTemplate) PatternsFor(g Gender, pos Position) []Pattern {
	if g != GenderNone {
		if byPos, ok := t.GenderPatterns[g]; ok {
			if patterns := byPos[pos]; len(patterns) > 0 {
				return patterns
			}
		}
	}
	return t.Patterns[pos]
}

// Genders lists genders with pattern overrides or examples, in canonical order.
func (t *CultureTemplate) Genders() []Gender {
	var out []Gender
	for _, g := range []Gender{GenderMasculine, GenderFeminine, GenderNeutral} {
		_, hasPatterns := t.GenderPatterns[g]
		_, hasExamples := t.Examples[g]
		if hasPatterns || hasExamples {
			out = append(out, g)
		}
	}
	return out
}

// Matches reports whether s names this culture by code, name or alias.
func (t *CultureTemplate) Matches(s string) bool {
	if strings.EqualFold(t.Code, s) || strings.EqualFold(t.Name, s) {
		return true
	}
	for _, a := range t.Aliases {
		if strings.EqualFold(a, s) {
			return true
		}
	}
	return false
}

// CultureInfo is the public summary of a culture.
type CultureInfo struct {
	Code         string   `json:"code"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Aliases      []string `json:"aliases,omitempty"`
	Genders      []Gender `json:"genders,omitempty"`
	ExampleNames []string `json:"example_names,omitempty"`
}
