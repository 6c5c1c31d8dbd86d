package moderation

import (
	"log/slog"
	"unicode"

	"github.com/abadojack/whatlanggo"
	goahocorasick "github.com/anknown/ahocorasick"
	"github.com/microcosm-cc/bluemonday"
)

// Moderator masks forbidden words in user text, seeing through case,
// punctuation and leet speak, and optionally strips HTML beforehand.
type Moderator struct {
	log          *slog.Logger
	matcher      *goahocorasick.Machine
	censoredChar rune
	sanitizer    *bluemonday.Policy
}

type TextMapping struct {
	Normalized []rune
	OrigIdx    []int
}

type Option func(*Moderator)

// WithHTMLSanitizer strips every tag before censoring. The output is
// HTML-escaped text.
func WithHTMLSanitizer() Option {
	return func(m *Moderator) { m.sanitizer = bluemonday.StrictPolicy() }
}

// NewModerator builds the Aho-Corasick automaton from the normalized censored words.
// Words that normalize to nothing are ignored.
func NewModerator(censoredWords []string, censoredChar rune, log *slog.Logger, opts ...Option) (*Moderator, error) {
	m := &Moderator{log: log, censoredChar: censoredChar}
	for _, opt := range opts {
		opt(m)
	}

	patterns := make([][]rune, 0, len(censoredWords))
	for _, word := range censoredWords {
		if normalized := normalizeRunes([]rune(word)); len(normalized) > 0 {
			patterns = append(patterns, normalized)
		}
	}
	if len(patterns) == 0 {
		return m, nil
	}

	matcher := new(goahocorasick.Machine)
	if err := matcher.Build(patterns); err != nil {
		return nil, err
	}
	m.matcher = matcher
	log.Debug("Moderator ready", "words", len(patterns))
	return m, nil
}

// Censor returns original with every forbidden word masked, and the words found.
// Spacing and punctuation of the original are kept.
func (m *Moderator) Censor(original string) (string, []string) {
	if m.sanitizer != nil {
		original = m.sanitizer.Sanitize(original)
	}
	if m.matcher == nil {
		return original, nil
	}
	mapping := m.normalize(original)
	if len(mapping.Normalized) == 0 {
		return original, nil
	}

	spans := m.matcher.MultiPatternSearch(mapping.Normalized, false)
	if len(spans) == 0 {
		return original, nil
	}

	origRunes := []rune(original)
	var found []string
	for _, span := range spans {
		normStart := span.Pos
		normEnd := normStart + len(span.Word)
		if normStart < 0 || normEnd > len(mapping.OrigIdx) {
			continue
		}
		origStart := mapping.OrigIdx[normStart]
		origEnd := mapping.OrigIdx[normEnd-1] + 1
		for i := origStart; i < origEnd; i++ {
			origRunes[i] = m.censoredChar
		}
		found = append(found, string(span.Word))
	}

	if len(found) > 0 {
		m.log.Debug("Censored words found",
			"count", len(found),
			"lang", whatlanggo.Detect(original).Lang.Iso6391())
	}
	return string(origRunes), found
}

// normalize makes input searchable and remembers where each kept rune came from.
func (m *Moderator) normalize(input string) TextMapping {
	origRunes := []rune(input)
	norm := make([]rune, 0, len(origRunes))
	origIdx := make([]int, 0, len(origRunes))

	for i, r := range origRunes {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		norm = append(norm, unicode.ToLower(clean))
		origIdx = append(origIdx, i)
	}
	return TextMapping{Normalized: norm, OrigIdx: origIdx}
}

func normalizeRunes(input []rune) []rune {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		out = append(out, unicode.ToLower(clean))
	}
	return out
}

// simplifyRune maps leet speak back to letters.
func simplifyRune(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}

func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
