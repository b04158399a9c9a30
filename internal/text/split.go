package text

import (
	"strings"
	"unicode"
)

// abbreviations never end a sentence when followed by a lowercase word.
var abbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true,
	"sr": true, "jr": true, "st": true, "vs": true, "etc": true,
	"e.g": true, "i.e": true, "inc": true, "ltd": true, "co": true,
	"corp": true, "no": true, "vol": true, "approx": true, "dept": true,
	"jan": true, "feb": true, "mar": true, "apr": true, "jun": true,
	"jul": true, "aug": true, "sep": true, "sept": true, "oct": true,
	"nov": true, "dec": true, "u.s": true, "u.k": true,
}

// titles never end a sentence, even before a capital letter.
var titles = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true,
	"sr": true, "jr": true, "st": true,
}

// SplitSentences splits cleaned text at sentence boundaries. Chunks made
// only of punctuation and whitespace are dropped.
func SplitSentences(s string) []string {
	runes := []rune(s)

	var (
		sentences []string
		current   strings.Builder
	)
	flush := func() {
		sentence := strings.TrimSpace(current.String())
		current.Reset()
		if isSpeakable(sentence) {
			sentences = append(sentences, sentence)
		}
	}

	for i, r := range runes {
		current.WriteRune(r)
		if isBoundary(runes, i) {
			flush()
		}
	}
	flush()

	return sentences
}

func isBoundary(runes []rune, pos int) bool {
	next := pos + 1
	atEnd := next >= len(runes) || unicode.IsSpace(runes[next])

	// A closing quote or bracket right after a terminator ends the sentence.
	if isCloser(runes[pos]) {
		p := pos - 1
		for p >= 0 && isCloser(runes[p]) {
			p--
		}
		return p >= 0 && isTerminator(runes[p]) && atEnd
	}

	if !isTerminator(runes[pos]) {
		return false
	}
	if next < len(runes) && (isTerminator(runes[next]) || isCloser(runes[next])) {
		return false
	}

	if runes[pos] == '.' {
		// Ellipsis continues the sentence.
		if pos > 0 && runes[pos-1] == '.' {
			return false
		}
		// 3.14
		if pos > 0 && next < len(runes) && unicode.IsDigit(runes[pos-1]) && unicode.IsDigit(runes[next]) {
			return false
		}
		// example.com
		if next < len(runes) && !unicode.IsSpace(runes[next]) {
			return false
		}

		word := strings.ToLower(wordBefore(runes, pos))
		if titles[word] {
			return false
		}
		if abbreviations[word] {
			return nextIsUpper(runes, next)
		}
		// Single letter initials such as "J. R. R. Tolkien".
		if len([]rune(word)) == 1 && unicode.IsLetter([]rune(word)[0]) && nextIsUpper(runes, next) {
			return false
		}
	}

	return atEnd
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isCloser(r rune) bool {
	return strings.ContainsRune("\"')]”’", r)
}

// wordBefore returns the word ending right before pos, without leading
// punctuation.
func wordBefore(runes []rune, pos int) string {
	start := pos
	for start > 0 && !unicode.IsSpace(runes[start-1]) {
		start--
	}
	return strings.TrimLeft(string(runes[start:pos]), "\"'([“‘")
}

func nextIsUpper(runes []rune, pos int) bool {
	for pos < len(runes) && unicode.IsSpace(runes[pos]) {
		pos++
	}
	return pos < len(runes) && unicode.IsUpper(runes[pos])
}

// isSpeakable reports whether s contains a letter or a digit.
func isSpeakable(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}) >= 0
}
