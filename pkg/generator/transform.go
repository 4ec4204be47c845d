package generator

import (
	"strings"

	"github.com/magus-names/magus/pkg/models"
)

var (
	frontVowels = "eiy"
	backVowels  = "aou"
	// counterpart of each vowel in the opposite harmony class
	harmonyPair = map[rune]rune{'a': 'e', 'e': 'a', 'o': 'i', 'i': 'o', 'u': 'y', 'y': 'u'}
)

// applyTransforms runs the culture's literal transforms over the syllables in
// place. Cultures without transforms are left untouched.
func applyTransforms(t *models.CultureTemplate, syllables []string) {
	if t.Constraints.VowelHarmony {
		harmonize(syllables, t.Phonemes.Vowels)
	}
}

// harmonize moves every vowel into the class (front or back) of the first
// vowel in the name. A vowel is only swapped when its counterpart is in the
// culture's vowel pool. Syllable lengths never change.
func harmonize(syllables []string, pool []rune) {
	var class string
	for _, s := range syllables {
		for _, r := range s {
			if strings.ContainsRune(frontVowels, r) {
				class = frontVowels
			} else if strings.ContainsRune(backVowels, r) {
				class = backVowels
			}
			if class != "" {
				break
			}
		}
		if class != "" {
			break
		}
	}
	if class == "" {
		return
	}

	inPool := func(r rune) bool {
		for _, p := range pool {
			if p == r {
				return true
			}
		}
		return false
	}

	for i, s := range syllables {
		runes := []rune(s)
		changed := false
		for j, r := range runes {
			pair, ok := harmonyPair[r]
			if !ok || strings.ContainsRune(class, r) {
				continue
			}
			if inPool(pair) {
				runes[j] = pair
				changed = true
			}
		}
		if changed {
			syllables[i] = string(runes)
		}
	}
}
