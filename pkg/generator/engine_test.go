package generator

import (
	"errors"
	"strings"
	"testing"

	"github.com/magus-names/magus/pkg/models"
	"github.com/magus-names/magus/pkg/phonetics"
)

type templateSet map[string]*models.CultureTemplate

func (s templateSet) Lookup(code string) (*models.CultureTemplate, bool) {
	t, ok := s[strings.ToLower(code)]
	return t, ok
}

type fixedScorer struct {
	score float64
	calls int
}

func (f *fixedScorer) Score(string, string) float64 {
	f.calls++
	return f.score
}

type countingObserver struct {
	results  int
	fallback int
}

func (o *countingObserver) EngineResult(_ string, _ int, fallback bool) {
	o.results++
	if fallback {
		o.fallback++
	}
}

func elvishTemplate() *models.CultureTemplate {
	return &models.CultureTemplate{
		Code: "elvish",
		Phonemes: models.Phonemes{
			Consonants: []rune("lmnrsv"),
			Vowels:     []rune("aeiou"),
			Liquids:    []rune("lr"),
			Nasals:     []rune("mn"),
		},
		Patterns: map[models.Position][]models.Pattern{
			models.PositionInitial: {models.NewPattern("CV", 3), models.NewPattern("V", 2), models.NewPattern("LV", 2.5)},
			models.PositionMedial:  {models.NewPattern("CV", 3), models.NewPattern("V", 1)},
			models.PositionFinal:   {models.NewPattern("VN", 2), models.NewPattern("VC", 1.5)},
		},
		GenderPatterns: map[models.Gender]map[models.Position][]models.Pattern{
			models.GenderFeminine: {
				models.PositionFinal: {models.NewPattern("V", 3), models.NewPattern("VN", 1)},
			},
		},
	}
}

func newTestEngine(t *testing.T, tmpl *models.CultureTemplate, scorer Scorer, seed uint64) *Engine {
	t.Helper()
	return New(templateSet{tmpl.Code: tmpl}, scorer, Options{Source: NewSeededSource(seed)})
}

func TestGenerateProperties(t *testing.T) {
	e := newTestEngine(t, elvishTemplate(), phonetics.NewScorer(nil), 1)

	genders := []models.Gender{models.GenderNone, models.GenderMasculine, models.GenderFeminine, models.GenderNeutral}
	lengths := []models.Length{models.LengthAny, models.LengthShort, models.LengthMedium, models.LengthLong}

	for _, g := range genders {
		for _, l := range lengths {
			for range 50 {
				c, err := e.Generate("elvish", g, l)
				if err != nil {
					t.Fatalf("generate(%s, %s): %v", g, l, err)
				}
				if len(c.Syllables) == 0 {
					t.Fatalf("expected syllables for %q", c.Name)
				}
				if !strings.EqualFold(strings.Join(c.Syllables, ""), c.Name) {
					t.Errorf("syllables %v do not spell %q", c.Syllables, c.Name)
				}
				if c.Score < 0 || c.Score > 1 {
					t.Errorf("score out of range: %v", c.Score)
				}
				if c.Fallback {
					continue
				}
				if c.Score < DefaultAcceptanceFloor {
					t.Errorf("accepted %q below floor: %v", c.Name, c.Score)
				}
				if n := l.Syllables(); n > 0 && len(c.Syllables) != n {
					t.Errorf("length %s: expected %d syllables, got %d", l, n, len(c.Syllables))
				}
				if l == models.LengthAny && (len(c.Syllables) < 2 || len(c.Syllables) > 4) {
					t.Errorf("expected 2-4 syllables, got %d", len(c.Syllables))
				}
				if c.Name != Capitalize(c.Name) {
					t.Errorf("expected capitalized name, got %q", c.Name)
				}
			}
		}
	}
}

func TestGenerateGenderOverrideWeights(t *testing.T) {
	e := newTestEngine(t, elvishTemplate(), phonetics.NewScorer(nil), 7)

	const trials = 2000
	vowelEndings := 0
	for range trials {
		c, err := e.Generate("elvish", models.GenderFeminine, models.LengthShort)
		if err != nil {
			t.Fatal(err)
		}
		last := c.Syllables[len(c.Syllables)-1]
		if strings.ContainsAny(last[len(last)-1:], "aeiou") {
			vowelEndings++
		}
	}
	// feminine final is V:3, VN:1
	ratio := float64(vowelEndings) / trials
	if ratio < 0.65 || ratio > 0.85 {
		t.Errorf("expected about 75%% vowel endings, got %.3f", ratio)
	}

	// the base final list never ends in a vowel
	for range 200 {
		c, _ := e.Generate("elvish", models.GenderMasculine, models.LengthShort)
		if strings.ContainsAny(c.Name[len(c.Name)-1:], "aeiou") {
			t.Fatalf("masculine should use base finals, got %q", c.Name)
		}
	}
}

func TestGenerateSeededIsReproducible(t *testing.T) {
	a := newTestEngine(t, elvishTemplate(), phonetics.NewScorer(nil), 42)
	b := newTestEngine(t, elvishTemplate(), phonetics.NewScorer(nil), 42)
	for range 20 {
		ca, _ := a.Generate("elvish", models.GenderNone, models.LengthAny)
		cb, _ := b.Generate("elvish", models.GenderNone, models.LengthAny)
		if ca.Name != cb.Name {
			t.Fatalf("expected identical sequences, got %q and %q", ca.Name, cb.Name)
		}
	}
}

func TestGenerateExhaustionFallback(t *testing.T) {
	tmpl := &models.CultureTemplate{
		Code: "orcish",
		Phonemes: models.Phonemes{
			Consonants: []rune("xkqz"),
			Vowels:     []rune("a"),
			Liquids:    []rune("r"),
			Nasals:     []rune("n"),
		},
		Patterns: map[models.Position][]models.Pattern{
			models.PositionInitial: {models.NewPattern("CCCC", 1)},
			models.PositionMedial:  {models.NewPattern("CCCC", 1)},
			models.PositionFinal:   {models.NewPattern("CCCC", 1)},
		},
	}

	t.Run("real scorer", func(t *testing.T) {
		e := newTestEngine(t, tmpl, phonetics.NewScorer(nil), 3)
		c, err := e.Generate("orcish", models.GenderNone, models.LengthAny)
		if err != nil {
			t.Fatal(err)
		}
		if !c.Fallback || c.Score != 0.0 {
			t.Errorf("expected fallback with score 0, got %+v", c)
		}
		if c.Name != "Unnamed-orcish" {
			t.Errorf("expected Unnamed-orcish, got %q", c.Name)
		}
		if !strings.EqualFold(strings.Join(c.Syllables, ""), c.Name) {
			t.Errorf("fallback syllables %v do not spell %q", c.Syllables, c.Name)
		}
	})

	t.Run("attempt budget", func(t *testing.T) {
		scorer := &fixedScorer{score: 0.59}
		obs := &countingObserver{}
		e := New(templateSet{"orcish": tmpl}, scorer, Options{
			MaxAttempts: 25,
			Source:      NewSeededSource(3),
			Observer:    obs,
		})
		c, err := e.Generate("orcish", models.GenderNone, models.LengthAny)
		if err != nil {
			t.Fatal(err)
		}
		if !c.Fallback {
			t.Errorf("expected fallback, got %+v", c)
		}
		if scorer.calls != 25 {
			t.Errorf("expected 25 scoring calls, got %d", scorer.calls)
		}
		if obs.fallback != 1 {
			t.Errorf("expected one fallback observation, got %d", obs.fallback)
		}
	})
}

func floorOf(v float64) *float64 { return &v }

func TestGenerateAcceptanceFloorIndependent(t *testing.T) {
	scorer := &fixedScorer{score: 0.4}
	e := New(templateSet{"elvish": elvishTemplate()}, scorer, Options{
		AcceptanceFloor: floorOf(0.3),
		Source:          NewSeededSource(5),
	})
	c, err := e.Generate("elvish", models.GenderNone, models.LengthAny)
	if err != nil {
		t.Fatal(err)
	}
	if c.Fallback || scorer.calls != 1 {
		t.Errorf("expected first candidate accepted at floor 0.3, got %+v after %d calls", c, scorer.calls)
	}
}

func TestGenerateZeroAcceptanceFloor(t *testing.T) {
	tests := []struct {
		name      string
		floor     *float64
		wantCalls int
		fallback  bool
	}{
		{"zero accepts anything", floorOf(0), 1, false},
		{"nil uses default", nil, 10, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scorer := &fixedScorer{score: 0}
			e := New(templateSet{"elvish": elvishTemplate()}, scorer, Options{
				MaxAttempts:     10,
				AcceptanceFloor: tt.floor,
				Source:          NewSeededSource(5),
			})
			c, err := e.Generate("elvish", models.GenderNone, models.LengthAny)
			if err != nil {
				t.Fatal(err)
			}
			if scorer.calls != tt.wantCalls || c.Fallback != tt.fallback {
				t.Errorf("expected %d calls and fallback %v, got %d and %+v", tt.wantCalls, tt.fallback, scorer.calls, c)
			}
		})
	}
}

func TestGenerateErrors(t *testing.T) {
	e := newTestEngine(t, elvishTemplate(), phonetics.NewScorer(nil), 1)

	if _, err := e.Generate("klingon", models.GenderNone, models.LengthAny); !errors.Is(err, models.ErrUnknownCulture) {
		t.Errorf("expected ErrUnknownCulture, got %v", err)
	}
	if _, err := e.Generate("elvish", models.Gender("other"), models.LengthAny); !errors.Is(err, models.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest for gender, got %v", err)
	}
	if _, err := e.Generate("elvish", models.GenderNone, models.Length("epic")); !errors.Is(err, models.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest for length, got %v", err)
	}
}

func TestGenerateEmptyPool(t *testing.T) {
	tmpl := elvishTemplate()
	tmpl.Phonemes.Nasals = nil

	e := newTestEngine(t, tmpl, phonetics.NewScorer(nil), 1)
	var err error
	for range 20 {
		// the final list always contains VN, so a nasal is eventually needed
		if _, err = e.Generate("elvish", models.GenderMasculine, models.LengthShort); err != nil {
			break
		}
	}
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *ConfigError, got %T", err)
	}
	if ce.Position != models.PositionFinal || ce.Symbol != "N" {
		t.Errorf("expected final/N, got %s/%s", ce.Position, ce.Symbol)
	}
}

func TestGenerateMissingPatterns(t *testing.T) {
	tmpl := elvishTemplate()
	delete(tmpl.Patterns, models.PositionMedial)

	e := newTestEngine(t, tmpl, phonetics.NewScorer(nil), 1)
	_, err := e.Generate("elvish", models.GenderNone, models.LengthLong)
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestPickWeighted(t *testing.T) {
	e := New(templateSet{}, &fixedScorer{}, Options{Source: NewSeededSource(11)})
	patterns := []models.Pattern{
		models.NewPattern("A", 1),
		models.NewPattern("B", 3),
		models.NewPattern("Z", 0),
	}

	counts := map[string]int{}
	const draws = 8000
	for range draws {
		counts[e.pick(patterns).Source]++
	}
	if counts["Z"] != 0 {
		t.Errorf("zero-weight pattern drawn %d times", counts["Z"])
	}
	share := float64(counts["B"]) / draws
	if share < 0.72 || share > 0.78 {
		t.Errorf("expected B share near 0.75, got %.3f", share)
	}
}

func TestHarmonize(t *testing.T) {
	syl := []string{"ka", "le", "du"}
	harmonize(syl, []rune("aeiouy"))
	if got := strings.Join(syl, "-"); got != "ka-la-du" {
		t.Errorf("expected ka-la-du, got %s", got)
	}

	syl = []string{"se", "lo", "ru"}
	harmonize(syl, []rune("aeio"))
	// y is not in the pool so u stays
	if got := strings.Join(syl, "-"); got != "se-li-ru" {
		t.Errorf("expected se-li-ru, got %s", got)
	}
}

func TestVowelHarmonyTemplate(t *testing.T) {
	tmpl := elvishTemplate()
	tmpl.Phonemes.Vowels = []rune("aeiouy")
	tmpl.Constraints.VowelHarmony = true
	e := newTestEngine(t, tmpl, phonetics.NewScorer(nil), 9)

	for range 100 {
		c, err := e.Generate("elvish", models.GenderNone, models.LengthLong)
		if err != nil {
			t.Fatal(err)
		}
		if c.Fallback {
			continue
		}
		name := strings.ToLower(c.Name)
		if strings.ContainsAny(name, "aou") && strings.ContainsAny(name, "eiy") {
			t.Fatalf("mixed harmony classes in %q", c.Name)
		}
	}
}

func TestCapitalize(t *testing.T) {
	tests := map[string]string{
		"aRWEN":  "Arwen",
		"elrond": "Elrond",
		"":       "",
		"ëlo":    "Ëlo",
	}
	for in, want := range tests {
		if got := Capitalize(in); got != want {
			t.Errorf("Capitalize(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestAssembleLiterals(t *testing.T) {
	a := NewAssembler(NewSeededSource(1))
	tmpl := elvishTemplate()
	got, err := a.Assemble(models.NewPattern("V'L", 1), tmpl)
	if err != nil {
		t.Fatal(err)
	}
	runes := []rune(got)
	if len(runes) != 3 || runes[1] != '\'' {
		t.Fatalf("expected literal apostrophe in the middle, got %q", got)
	}
	if !strings.ContainsRune("aeiou", runes[0]) || !strings.ContainsRune("lr", runes[2]) {
		t.Errorf("unexpected phonemes in %q", got)
	}
}
