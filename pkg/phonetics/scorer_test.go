package phonetics

import (
	"math"
	"strings"
	"testing"

	"github.com/magus-names/magus/pkg/culture"
	"github.com/magus-names/magus/pkg/models"
)

type staticSource map[string]*models.CultureTemplate

func (s staticSource) Lookup(code string) (*models.CultureTemplate, bool) {
	t, ok := s[code]
	return t, ok
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestScore(t *testing.T) {
	s := NewScorer(nil)

	tests := []struct {
		name    string
		input   string
		culture string
		want    float64
	}{
		{"clean", "Lyra", "", 1.0},
		{"clean ratio edge", "Elena", "", 1.0},
		{"forbidden final", "Elah", "", 0.9},
		{"forbidden initial", "Ngala", "", 0.9},
		{"cluster and ratio", "Strand", "", 0.65},
		{"cluster per occurrence", "Strastr", "", 0.45},
		{"no vowels long run", "Xkrth", "", 0.65},
		{"doubled consonants", "Zzzng", "", 0.65},
		{"elvish harsh letter", "Galadriel", "elvish", 0.9},
		{"harsh letter outside elvish", "Galadriel", "dwarven", 1.0},
		{"empty", "", "", 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Score(tt.input, tt.culture)
			if !approx(got, tt.want) {
				t.Errorf("Score(%q, %q): expected %v, got %v", tt.input, tt.culture, tt.want, got)
			}
		})
	}
}

func TestScoreForbiddenFinalIsolated(t *testing.T) {
	s := NewScorer(nil)
	for _, pair := range [][2]string{{"Elah", "Elahn"}, {"Elaw", "Elawn"}, {"Tary", "Taryn"}} {
		with, without := s.Score(pair[0], ""), s.Score(pair[1], "")
		if with >= without {
			t.Errorf("expected %q (%v) to score below %q (%v)", pair[0], with, pair[1], without)
		}
		if !approx(without-with, PenaltyForbiddenFinal) {
			t.Errorf("expected difference %v between %q and %q, got %v", PenaltyForbiddenFinal, pair[0], pair[1], without-with)
		}
	}
}

func TestScoreDeterministic(t *testing.T) {
	s := NewScorer(nil)
	names := []string{"Thranduil", "Gimli", "Aldric", "Zzzng", "Seraphina"}
	for _, n := range names {
		first := s.Score(n, "elvish")
		for range 50 {
			if got := s.Score(n, "elvish"); got != first {
				t.Fatalf("score of %q changed: %v then %v", n, first, got)
			}
		}
	}
}

func TestScoreClamped(t *testing.T) {
	s := NewScorer(nil)
	got := s.Score("Strstrstrstrscrspr", "")
	if got != 0 {
		t.Errorf("expected clamp to 0, got %v", got)
	}
	for _, n := range []string{"a", "Ae", "Lyra", "Xx"} {
		if v := s.Score(n, ""); v < 0 || v > 1 {
			t.Errorf("score of %q out of range: %v", n, v)
		}
	}
}

func TestTemplateOverrides(t *testing.T) {
	src := staticSource{
		"orcish": {
			Code: "orcish",
			Constraints: models.Constraints{
				ForbiddenFinal:     []string{"a", "H"},
				DiscouragedLetters: "l",
			},
		},
	}
	s := NewScorer(src)

	// culture finals extend the default h/w/y set
	score, issues := s.Analyze("Grakka", "orcish")
	if !approx(score, 0.9) {
		t.Errorf("expected 0.9, got %v (%+v)", score, issues)
	}
	if len(issues) != 1 || issues[0].Rule != "forbidden_final" || issues[0].Detail != "a" {
		t.Errorf("expected single forbidden_final issue for a, got %+v", issues)
	}
	if got := s.Score("Grakah", "orcish"); !approx(got, 0.9) {
		t.Errorf("expected default final h to still apply, got %v", got)
	}
	if got := s.Rules("orcish").ForbiddenFinal; len(got) != 4 {
		t.Errorf("expected h, w, y, a without duplicates, got %v", got)
	}

	// the run threshold does not move
	_, issues = s.Analyze("Urgrska", "orcish")
	found := false
	for _, p := range issues {
		if p.Rule == "consonant_run" && approx(p.Amount, 2*PenaltyConsonantRun) {
			found = true
		}
	}
	if !found {
		t.Errorf("expected run penalty of %v for a run of 5, got %+v", 2*PenaltyConsonantRun, issues)
	}

	if got := s.Score("Elah", "unknown"); !approx(got, 0.9) {
		t.Errorf("expected defaults for unknown culture, got %v", got)
	}
}

func TestBuiltinCultures(t *testing.T) {
	templates, err := culture.Builtin()
	if err != nil {
		t.Fatal(err)
	}
	s := NewScorer(culture.NewRegistry(templates))

	score, issues := s.Analyze("Elah", "elvish")
	if !approx(score, 0.9) || len(issues) != 1 || issues[0].Rule != "forbidden_final" {
		t.Errorf("expected 0.9 with a forbidden_final issue, got %v %+v", score, issues)
	}

	score, issues = s.Analyze("Alnde", "elvish")
	if !approx(score, 1.0) {
		t.Errorf("expected a run of 3 to be free, got %v %+v", score, issues)
	}

	pairs := [][2]string{{"Elah", "Elahn"}, {"Elaw", "Elawn"}, {"Tary", "Taryn"}}
	for code := range templates {
		for _, p := range pairs {
			bad, good := s.Score(p[0], code), s.Score(p[1], code)
			if !approx(good-bad, PenaltyForbiddenFinal) {
				t.Errorf("%s: expected %s to score %v below %s, got %v vs %v",
					code, p[0], PenaltyForbiddenFinal, p[1], bad, good)
			}
		}
		if _, issues := s.Analyze("Alndrath", code); !hasRule(issues, "consonant_run") {
			t.Errorf("%s: expected a run of 4 to be penalized, got %+v", code, issues)
		}
	}
}

func hasRule(issues []models.Penalty, rule string) bool {
	for _, p := range issues {
		if p.Rule == rule {
			return true
		}
	}
	return false
}

func TestAnalyzeReportsEveryPenalty(t *testing.T) {
	_, issues := NewScorer(nil).Analyze("Ngstrkh", "elvish")
	rules := make(map[string]bool)
	for _, p := range issues {
		rules[p.Rule] = true
	}
	for _, want := range []string{"forbidden_initial", "forbidden_final", "difficult_cluster", "vowel_ratio", "consonant_run", "discouraged_letters"} {
		if !rules[want] {
			t.Errorf("expected %s penalty, got %+v", want, issues)
		}
	}
}

func TestSyllabify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Elena", "e-le-na"},
		{"Galadriel", "ga-lad-riel"},
		{"Lyra", "ly-ra"},
		{"Xkrth", "xkrth"},
		{"Thorin", "tho-rin"},
	}
	for _, tt := range tests {
		parts := Syllabify(tt.in)
		if got := strings.Join(parts, "-"); got != tt.want {
			t.Errorf("Syllabify(%q): expected %s, got %s", tt.in, tt.want, got)
		}
		if strings.Join(parts, "") != strings.ToLower(tt.in) {
			t.Errorf("Syllabify(%q) lost characters: %v", tt.in, parts)
		}
	}
	if Syllabify("") != nil {
		t.Error("expected nil for empty name")
	}
}

func TestPronunciation(t *testing.T) {
	got := Pronunciation([]string{"Ar", "WEN", ""})
	if got != "ar-wen" {
		t.Errorf("expected ar-wen, got %s", got)
	}
}
