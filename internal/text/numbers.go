package text

import (
	"strconv"
	"strings"

	"github.com/divan/num2words"
)

// maxSpelled bounds the numbers spelled out; num2words stops at billions.
const maxSpelled = 999_999_999_999

// spellLongNumbers replaces whitespace separated digit runs longer than
// three characters with words, e.g. 1999 becomes "one thousand nine hundred
// and ninety-nine". Shorter numbers are left for the voice.
func spellLongNumbers(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if len(w) <= 3 || !isDigits(w) {
			continue
		}
		n, err := strconv.Atoi(w)
		if err != nil || n > maxSpelled {
			continue
		}
		words[i] = num2words.ConvertAnd(n)
	}
	return strings.Join(words, " ")
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
