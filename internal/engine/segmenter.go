package engine

import (
	"regexp"
	"strings"
)

// chunk boundaries: any sentence punctuation, or this many words without one.
const defaultWordLimit = 6

var genderTagPattern = regexp.MustCompile(`(?i)\[GENDER:\s*(male|female)\s*\]`)

// segmenter re-chunks an incremental text stream into speakable units. A unit
// ends at sentence punctuation, or after wordLimit words when the provider
// emits a long unpunctuated span, which bounds per-chunk latency. Inline
// [GENDER: ...] markers are stripped from emitted text and reported through
// onGender; a marker split across deltas is held back until it closes.
type segmenter struct {
	wordLimit int
	emit      func(string)
	onGender  func(string)
	buf       string
}

func newSegmenter(wordLimit int, emit func(string), onGender func(string)) *segmenter {
	if wordLimit <= 0 {
		wordLimit = defaultWordLimit
	}
	return &segmenter{wordLimit: wordLimit, emit: emit, onGender: onGender}
}

func (s *segmenter) Write(text string) {
	if text == "" {
		return
	}
	s.buf += text
	s.stripTags()
	s.drain(false)
}

// Flush emits whatever is left once the stream ends.
func (s *segmenter) Flush() {
	s.stripTags()
	s.drain(true)
	if s.buf != "" {
		s.send(s.buf)
		s.buf = ""
	}
}

func (s *segmenter) stripTags() {
	matches := genderTagPattern.FindAllStringSubmatch(s.buf, -1)
	if len(matches) == 0 {
		return
	}
	for _, m := range matches {
		if s.onGender != nil {
			s.onGender(strings.ToLower(m[1]))
		}
	}
	s.buf = genderTagPattern.ReplaceAllString(s.buf, "")
}

func (s *segmenter) drain(final bool) {
	for {
		emittable := s.buf
		held := ""

		// an unclosed bracket may be a marker still streaming in
		if !final {
			if i := strings.LastIndex(emittable, "["); i >= 0 && !strings.Contains(emittable[i:], "]") {
				held = emittable[i:]
				emittable = emittable[:i]
			}
		}

		if idx := strings.IndexAny(emittable, ",.?!;\n"); idx >= 0 {
			s.send(emittable[:idx+1])
			s.buf = emittable[idx+1:] + held
			continue
		}

		if len(strings.Fields(emittable)) > s.wordLimit {
			s.send(emittable)
			s.buf = held
			continue
		}

		s.buf = emittable + held
		return
	}
}

func (s *segmenter) send(text string) {
	clean := strings.TrimSpace(text)
	if clean != "" {
		s.emit(clean)
	}
}

// stripGenderTags removes all markers from a full reply and returns the last
// gender they carried, for the history commit path.
func stripGenderTags(text string) (string, string) {
	gender := ""
	for _, m := range genderTagPattern.FindAllStringSubmatch(text, -1) {
		gender = strings.ToLower(m[1])
	}
	return strings.TrimSpace(genderTagPattern.ReplaceAllString(text, "")), gender
}
