// Package text turns documents into the ordered segments a reading session
// consumes.
package text

import (
	"strings"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/readaloud/internal/ttypes"
)

// DefaultMaxLength caps a segment so a single synthesis request stays small.
const DefaultMaxLength = 1000

// Segmenter splits documents into segments.
type Segmenter struct {
	markdown  bool
	rules     []Rule
	maxLength int
}

// Option configures a Segmenter.
type Option func(*Segmenter)

// WithMarkdown strips markdown syntax before splitting.
func WithMarkdown(enabled bool) Option {
	return func(s *Segmenter) {
		s.markdown = enabled
	}
}

// WithRules adds replacement rules applied during cleaning.
func WithRules(rules ...Rule) Option {
	return func(s *Segmenter) {
		s.rules = append(s.rules, rules...)
	}
}

// WithMaxLength sets the longest segment in runes. Longer sentences are
// split at word boundaries.
func WithMaxLength(n int) Option {
	return func(s *Segmenter) {
		if n > 0 {
			s.maxLength = n
		}
	}
}

// NewSegmenter creates a segmenter for plain text.
func NewSegmenter(opts ...Option) *Segmenter {
	s := &Segmenter{maxLength: DefaultMaxLength}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Segment returns the speakable segments of doc, indexed from 0.
func (s *Segmenter) Segment(doc string) []ttypes.Segment {
	if s.markdown {
		doc = StripMarkdown(doc)
	}
	cleaned := Clean(doc, s.rules)

	var segments []ttypes.Segment
	for _, sentence := range SplitSentences(cleaned) {
		for _, chunk := range s.limit(sentence) {
			segments = append(segments, ttypes.Segment{Index: len(segments), Text: chunk})
		}
	}

	log.Debug("Text: segmented", "markdown", s.markdown, "chars", len(doc), "segments", len(segments))
	return segments
}

// limit breaks a sentence longer than maxLength into word-aligned chunks.
func (s *Segmenter) limit(sentence string) []string {
	if len([]rune(sentence)) <= s.maxLength {
		return []string{sentence}
	}

	var (
		chunks []string
		buf    strings.Builder
		size   int
	)
	for _, word := range strings.Fields(sentence) {
		n := len([]rune(word))
		if size > 0 && size+1+n > s.maxLength {
			chunks = append(chunks, buf.String())
			buf.Reset()
			size = 0
		}
		if size > 0 {
			buf.WriteByte(' ')
			size++
		}
		buf.WriteString(word)
		size += n
	}
	if size > 0 {
		chunks = append(chunks, buf.String())
	}
	return chunks
}
