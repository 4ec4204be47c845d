package culture

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/magus-names/magus/pkg/models"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

// ErrInvalid marks a culture definition that failed validation.
var ErrInvalid = errors.New("invalid culture definition")

var codePattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// ValidCode reports whether code is a usable culture code: lowercase ASCII
// letters, digits and hyphens. Cache keys join a code to its parameters with
// underscores, so a code can never be a prefix of another code's keys.
func ValidCode(code string) bool {
	return codePattern.MatchString(code)
}

// Pools used when a definition omits nasals or liquids.
const (
	DefaultNasals  = "mn"
	DefaultLiquids = "lr"
)

type definition struct {
	Code             string                             `yaml:"code"`
	Name             string                             `yaml:"name"`
	Description      string                             `yaml:"description"`
	Aliases          []string                           `yaml:"aliases"`
	Phonemes         phonemeDef                         `yaml:"phonemes"`
	SyllablePatterns map[string][]patternDef            `yaml:"syllable_patterns"`
	GenderPatterns   map[string]map[string][]patternDef `yaml:"gender_patterns"`
	Constraints      constraintDef                      `yaml:"constraints"`
	Examples         map[string][]string                `yaml:"examples"`
}

type phonemeDef struct {
	Consonants string `yaml:"consonants"`
	Vowels     string `yaml:"vowels"`
	Liquids    string `yaml:"liquids"`
	Nasals     string `yaml:"nasals"`
}

type patternDef struct {
	Pattern string   `yaml:"pattern"`
	Weight  *float64 `yaml:"weight"`
}

type constraintDef struct {
	ForbiddenInitial   []string `yaml:"forbidden_initial"`
	ForbiddenFinal     []string `yaml:"forbidden_final"`
	ForbiddenClusters  []string `yaml:"forbidden_clusters"`
	VowelHarmony       bool     `yaml:"vowel_harmony"`
	DiscouragedLetters string   `yaml:"discouraged_letters"`
}

// Parse decodes and validates one culture definition. JSON input is accepted
// since it is valid YAML.
func Parse(data []byte) (*models.CultureTemplate, error) {
	var def definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse culture: %w", err)
	}
	return def.template()
}

func (d definition) template() (*models.CultureTemplate, error) {
	if d.Code == "" {
		return nil, fmt.Errorf("%w: missing code", ErrInvalid)
	}
	if d.Name == "" {
		return nil, fmt.Errorf("%w: %s: missing name", ErrInvalid, d.Code)
	}
	code := strings.ToLower(d.Code)
	if !ValidCode(code) {
		return nil, fmt.Errorf("%w: code %q may only contain letters, digits and hyphens", ErrInvalid, d.Code)
	}
	if d.Phonemes.Consonants == "" || d.Phonemes.Vowels == "" {
		return nil, fmt.Errorf("%w: %s: consonants and vowels are required", ErrInvalid, d.Code)
	}

	t := &models.CultureTemplate{
		Code:        code,
		Name:        d.Name,
		Description: d.Description,
		Aliases:     d.Aliases,
		Phonemes: models.Phonemes{
			Consonants: []rune(d.Phonemes.Consonants),
			Vowels:     []rune(d.Phonemes.Vowels),
			Liquids:    []rune(orDefault(d.Phonemes.Liquids, DefaultLiquids)),
			Nasals:     []rune(orDefault(d.Phonemes.Nasals, DefaultNasals)),
		},
		Patterns:       make(map[models.Position][]models.Pattern),
		GenderPatterns: make(map[models.Gender]map[models.Position][]models.Pattern),
		Constraints: models.Constraints{
			ForbiddenInitial:   d.Constraints.ForbiddenInitial,
			ForbiddenFinal:     d.Constraints.ForbiddenFinal,
			ForbiddenClusters:  d.Constraints.ForbiddenClusters,
			VowelHarmony:       d.Constraints.VowelHarmony,
			DiscouragedLetters: d.Constraints.DiscouragedLetters,
		},
		Examples: make(map[models.Gender][]string),
	}

	for _, pos := range models.Positions {
		defs, ok := d.SyllablePatterns[string(pos)]
		if !ok || len(defs) == 0 {
			return nil, fmt.Errorf("%w: %s: no %s patterns", ErrInvalid, t.Code, pos)
		}
		patterns, err := buildPatterns(t, pos, defs)
		if err != nil {
			return nil, err
		}
		t.Patterns[pos] = patterns
	}
	for key := range d.SyllablePatterns {
		if !isPosition(key) {
			return nil, fmt.Errorf("%w: %s: unknown position %q", ErrInvalid, t.Code, key)
		}
	}

	for g, byPos := range d.GenderPatterns {
		gender := models.Gender(strings.ToLower(g))
		if gender == models.GenderNone || !gender.Valid() {
			return nil, fmt.Errorf("%w: %s: unknown gender %q", ErrInvalid, t.Code, g)
		}
		overrides := make(map[models.Position][]models.Pattern)
		for p, defs := range byPos {
			if !isPosition(p) {
				return nil, fmt.Errorf("%w: %s: unknown position %q for %s", ErrInvalid, t.Code, p, gender)
			}
			patterns, err := buildPatterns(t, models.Position(p), defs)
			if err != nil {
				return nil, err
			}
			overrides[models.Position(p)] = patterns
		}
		t.GenderPatterns[gender] = overrides
	}

	for g, names := range d.Examples {
		t.Examples[models.Gender(strings.ToLower(g))] = names
	}
	return t, nil
}

// buildPatterns parses pattern definitions and checks that every class symbol
// has a non-empty pool. A missing weight defaults to 1.0.
func buildPatterns(t *models.CultureTemplate, pos models.Position, defs []patternDef) ([]models.Pattern, error) {
	out := make([]models.Pattern, 0, len(defs))
	for _, def := range defs {
		if def.Pattern == "" {
			return nil, fmt.Errorf("%w: %s: empty %s pattern", ErrInvalid, t.Code, pos)
		}
		weight := 1.0
		if def.Weight != nil {
			weight = *def.Weight
		}
		if weight <= 0 {
			return nil, fmt.Errorf("%w: %s: pattern %q weight must be positive", ErrInvalid, t.Code, def.Pattern)
		}
		p := models.NewPattern(def.Pattern, weight)
		for _, sym := range p.Symbols {
			if sym.Kind != models.SymbolLiteral && len(t.Phonemes.Pool(sym.Kind)) == 0 {
				return nil, fmt.Errorf("%w: %s: pattern %q uses %s but the pool is empty", ErrInvalid, t.Code, def.Pattern, sym.Kind)
			}
		}
		out = append(out, p)
	}
	return out, nil
}

func isPosition(s string) bool {
	for _, p := range models.Positions {
		if string(p) == s {
			return true
		}
	}
	return false
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// Builtin returns the embedded elvish, dwarven and human definitions.
func Builtin() (map[string]*models.CultureTemplate, error) {
	return loadFS(builtinFS, "builtin", nil)
}

// LoadDir loads every .yaml, .yml and .json file in dir. Invalid files are
// logged and skipped; two files claiming the same code is an error.
func LoadDir(dir string, logger *zap.Logger) (map[string]*models.CultureTemplate, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("culture dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("culture dir: %s is not a directory", dir)
	}
	return loadFS(os.DirFS(dir), ".", logger)
}

func loadFS(fsys fs.FS, root string, logger *zap.Logger) (map[string]*models.CultureTemplate, error) {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return nil, fmt.Errorf("read culture dir: %w", err)
	}

	out := make(map[string]*models.CultureTemplate)
	claims := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() || !IsDefinitionFile(e.Name()) {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(root, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		t, err := Parse(data)
		if err != nil {
			if logger == nil {
				return nil, fmt.Errorf("%s: %w", e.Name(), err)
			}
			logger.Error("skipping invalid culture file", zap.String("file", e.Name()), zap.Error(err))
			continue
		}
		if _, dup := out[t.Code]; dup {
			return nil, fmt.Errorf("duplicate culture code %q in %s", t.Code, e.Name())
		}
		if err := claimNames(claims, t); err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		out[t.Code] = t
		if logger != nil {
			logger.Info("loaded culture", zap.String("code", t.Code), zap.String("file", e.Name()))
		}
	}
	return out, nil
}

// claimNames records the lookup keys of t (code, name and aliases) and fails
// when another culture already resolves by one of them.
func claimNames(claims map[string]string, t *models.CultureTemplate) error {
	keys := append([]string{t.Code, t.Name}, t.Aliases...)
	for _, k := range keys {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if owner, ok := claims[k]; ok && owner != t.Code {
			return fmt.Errorf("%w: %s: %q already names culture %s", ErrInvalid, t.Code, k, owner)
		}
	}
	for _, k := range keys {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			claims[k] = t.Code
		}
	}
	return nil
}

// IsDefinitionFile reports whether a file name has a culture definition extension.
func IsDefinitionFile(name string) bool {
	if strings.HasPrefix(filepath.Base(name), ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}
