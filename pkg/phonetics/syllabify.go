package phonetics

import "strings"

// Syllabify splits a name into rough syllables on consonant-vowel boundaries:
// a single consonant between vowels starts the next syllable (V-CV), and the
// first consonant of a longer run closes the previous one (VC-CV). The
// concatenation of the result equals the lower-cased name.
func Syllabify(name string) []string {
	runes := []rune(strings.ToLower(name))
	if len(runes) == 0 {
		return nil
	}

	var out []string
	start := 0
	for i := 0; i < len(runes); i++ {
		if !isVowel(runes[i]) {
			continue
		}
		// find the next vowel after the consonant run following i
		j := i + 1
		for j < len(runes) && !isVowel(runes[j]) {
			j++
		}
		if j >= len(runes) || j == i+1 {
			continue
		}
		cut := i + 1
		if j-i-1 > 1 {
			cut = i + 2
		}
		out = append(out, string(runes[start:cut]))
		start = cut
		i = cut - 1
	}
	out = append(out, string(runes[start:]))
	return out
}

// Pronunciation joins syllables lower-cased with "-".
func Pronunciation(syllables []string) string {
	parts := make([]string, 0, len(syllables))
	for _, s := range syllables {
		if s == "" {
			continue
		}
		parts = append(parts, strings.ToLower(s))
	}
	return strings.Join(parts, "-")
}
