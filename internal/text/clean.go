package text

import (
	"regexp"
	"strings"
	"unicode"

	emojicodes "github.com/kyokomi/emoji/v2"
	"github.com/yuin/goldmark-emoji/definition"
)

var (
	newlineBeforeCapital = regexp.MustCompile(`\n+\s*(\p{Lu})`)
	doubledStop          = regexp.MustCompile(`([.!?:;,])\. `)
	shortcode            = regexp.MustCompile(`:([a-z][a-z0-9_+\-]*):`)
	spaceBeforeStop      = regexp.MustCompile(`\s+([.!?,;:])`)

	emojis = definition.Github()

	// pictographs maps an emoji sequence, without variation selectors, to
	// its spoken name.
	pictographs, longestPictograph = pictographNames()
)

// pictographNames builds the reverse emoji table. A sequence with several
// codes is named by the shortest one.
func pictographNames() (map[string]string, int) {
	names := make(map[string]string)
	longest := 0
	for seq, codes := range emojicodes.RevCodeMap() {
		seq = stripSelectors(strings.TrimSpace(seq))
		if !hasSymbol(seq) {
			continue
		}
		for _, code := range codes {
			name := strings.ReplaceAll(strings.Trim(code, ":"), "_", " ")
			if cur, ok := names[seq]; !ok || len(name) < len(cur) || (len(name) == len(cur) && name < cur) {
				names[seq] = name
			}
		}
		longest = max(longest, len([]rune(seq)))
	}
	return names, longest
}

// hasSymbol keeps plain ASCII out of the table.
func hasSymbol(seq string) bool {
	for _, r := range seq {
		if r > unicode.MaxASCII {
			return true
		}
	}
	return false
}

func stripSelectors(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\ufe0e' || r == '\ufe0f' {
			return -1
		}
		return r
	}, s)
}

// Clean prepares raw text for segmentation. A line break followed by a
// capital letter starts a new sentence, whitespace is collapsed, rules are
// applied, long numbers are spelled out and emoji are replaced with their
// names.
func Clean(s string, rules []Rule) string {
	s = newlineBeforeCapital.ReplaceAllString(s, ". $1")
	s = doubledStop.ReplaceAllString(s, "$1 ")
	s = strings.Join(strings.Fields(s), " ")
	s = applyRules(s, rules)
	s = spellLongNumbers(s)
	s = nameEmoji(s)
	return s
}

// nameEmoji replaces :shortcode: and emoji characters with their names,
// dropping the colons of unknown codes and symbols without a name.
func nameEmoji(s string) string {
	s = shortcode.ReplaceAllStringFunc(s, func(m string) string {
		code := m[1 : len(m)-1]
		if e, ok := emojis.Get(code); ok {
			return e.Name
		}
		return strings.ReplaceAll(code, "_", " ")
	})

	runes := []rune(stripSelectors(s))
	var b strings.Builder
	for i := 0; i < len(runes); {
		if n, name := matchPictograph(runes[i:]); n > 0 {
			b.WriteString(" " + name + " ")
			i += n
			continue
		}
		r := runes[i]
		if unicode.Is(unicode.So, r) || r == '\u200d' {
			r = ' '
		}
		b.WriteRune(r)
		i++
	}

	s = strings.Join(strings.Fields(b.String()), " ")
	return spaceBeforeStop.ReplaceAllString(s, "$1")
}

// matchPictograph returns the length and name of the longest emoji
// sequence at the start of runes.
func matchPictograph(runes []rune) (int, string) {
	for n := min(longestPictograph, len(runes)); n > 0; n-- {
		if name, ok := pictographs[string(runes[:n])]; ok {
			return n, name
		}
	}
	return 0, ""
}
