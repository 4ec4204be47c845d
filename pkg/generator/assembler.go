package generator

import (
	"strings"

	"github.com/magus-names/magus/pkg/models"
)

// Assembler expands syllable patterns into concrete syllables.
type Assembler struct {
	src Source
}

// NewAssembler creates an Assembler. A nil source uses DefaultSource.
func NewAssembler(src Source) *Assembler {
	if src == nil {
		src = DefaultSource()
	}
	return &Assembler{src: src}
}

// Assemble samples one phoneme per class symbol, independently and uniformly,
// and copies literals through. An empty pool yields a *ConfigError.
func (a *Assembler) Assemble(p models.Pattern, t *models.CultureTemplate) (string, error) {
	var b strings.Builder
	b.Grow(len(p.Symbols))
	for _, sym := range p.Symbols {
		if sym.Kind == models.SymbolLiteral {
			b.WriteRune(sym.Literal)
			continue
		}
		pool := t.Phonemes.Pool(sym.Kind)
		if len(pool) == 0 {
			return "", &ConfigError{
				Culture: t.Code,
				Pattern: p.Source,
				Symbol:  sym.Kind.String(),
				Reason:  "empty phoneme pool",
			}
		}
		b.WriteRune(pool[a.src.IntN(len(pool))])
	}
	return b.String(), nil
}
