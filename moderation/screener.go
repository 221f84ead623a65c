// Package moderation screens outgoing message bodies before they reach the
// store: banned words are masked in place and the body language is detected
// for display purposes. Screening never rejects a message.
package moderation

import (
	"unicode"

	"github.com/abadojack/whatlanggo"
	goahocorasick "github.com/anknown/ahocorasick"
)

// Verdict is the outcome of screening one message body.
type Verdict struct {
	Body   string // body with banned words masked, otherwise unchanged
	Lang   string // ISO 639-1 code, empty when detection is unreliable
	Masked bool
}

// Screener masks banned words using an Aho-Corasick automaton built over a
// normalized alphabet, so spacing, punctuation, and common leet substitutions
// do not defeat the match.
type Screener struct {
	matcher *goahocorasick.Machine
	mask    rune
}

// NewScreener builds a screener from a banned-word list. An empty list yields
// a screener that only detects language and never masks.
func NewScreener(bannedWords []string, mask rune) (*Screener, error) {
	s := &Screener{mask: mask}
	if len(bannedWords) == 0 {
		return s, nil
	}

	patterns := make([][]rune, 0, len(bannedWords))
	for _, word := range bannedWords {
		normalized, _ := normalize(word)
		if len(normalized) > 0 {
			patterns = append(patterns, normalized)
		}
	}
	if len(patterns) == 0 {
		return s, nil
	}

	machine := new(goahocorasick.Machine)
	if err := machine.Build(patterns); err != nil {
		return nil, err
	}
	s.matcher = machine
	return s, nil
}

// Screen masks every banned word found in body and detects its language.
func (s *Screener) Screen(body string) Verdict {
	verdict := Verdict{Body: body, Lang: detectLang(body)}
	if s.matcher == nil {
		return verdict
	}

	normalized, origIdx := normalize(body)
	if len(normalized) == 0 {
		return verdict
	}
	hits := s.matcher.MultiPatternSearch(normalized, false)
	if len(hits) == 0 {
		return verdict
	}

	runes := []rune(body)
	for _, hit := range hits {
		start := hit.Pos
		end := start + len(hit.Word)
		if start < 0 || end > len(origIdx) {
			continue
		}
		// Mask the original span covered by the normalized match, including
		// any noise characters sitting between its first and last rune.
		for i := origIdx[start]; i <= origIdx[end-1]; i++ {
			runes[i] = s.mask
		}
		verdict.Masked = true
	}
	verdict.Body = string(runes)
	return verdict
}

// normalize lowercases the input, undoes leet substitutions, and drops
// punctuation, spacing, and symbols. It returns the normalized runes plus,
// for each of them, the index of the original rune they came from.
func normalize(input string) ([]rune, []int) {
	runes := []rune(input)
	out := make([]rune, 0, len(runes))
	origIdx := make([]int, 0, len(runes))
	for i, r := range runes {
		r = deleet(r)
		if unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r) {
			continue
		}
		out = append(out, unicode.ToLower(r))
		origIdx = append(origIdx, i)
	}
	return out, origIdx
}

// deleet maps common leet speak characters back to their letter.
func deleet(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3':
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

func detectLang(body string) string {
	info := whatlanggo.Detect(body)
	if !info.IsReliable() {
		return ""
	}
	return info.Lang.Iso6391()
}
