package llm

import "strings"

var (
	openThinkTags  = []string{"<think>", "<thinking>"}
	closeThinkTags = []string{"</think>", "</thinking>"}
)

// thinkFilter removes <think>...</think> (or <thinking>) blocks from a
// streamed reply. Tags may be split across chunks, so a trailing fragment
// that could start a tag is held back until the next chunk.
type thinkFilter struct {
	inside bool
	// trimming is set when a block closes and cleared by the first visible
	// character after it.
	trimming bool
	pending  string
}

// Write returns the visible part of chunk.
func (f *thinkFilter) Write(chunk string) string {
	text := f.pending + chunk
	f.pending = ""

	var out strings.Builder
	for text != "" {
		tags := openThinkTags
		if f.inside {
			tags = closeThinkTags
		}

		if idx, n := indexTag(text, tags); idx >= 0 {
			if !f.inside {
				f.emit(&out, text[:idx])
			}
			text = text[idx+n:]
			f.inside = !f.inside
			f.trimming = !f.inside
			continue
		}

		keep := partialTagSuffix(text, tags)
		if !f.inside {
			f.emit(&out, text[:len(text)-keep])
		}
		f.pending = text[len(text)-keep:]
		break
	}
	return out.String()
}

// Flush returns text held back by the last Write. An unterminated block is
// dropped.
func (f *thinkFilter) Flush() string {
	pending := f.pending
	f.pending = ""
	if f.inside {
		return ""
	}
	var out strings.Builder
	f.emit(&out, pending)
	return out.String()
}

// emit writes visible text, dropping the whitespace models leave between
// a closed thinking block and the answer.
func (f *thinkFilter) emit(out *strings.Builder, s string) {
	if f.trimming {
		s = strings.TrimLeft(s, " \t\r\n")
		if s == "" {
			return
		}
		f.trimming = false
	}
	out.WriteString(s)
}

// StripThinking removes thinking blocks from a complete reply.
func StripThinking(content string) string {
	var f thinkFilter
	out := f.Write(content) + f.Flush()
	return strings.TrimSpace(out)
}

func indexTag(text string, tags []string) (int, int) {
	best, bestLen := -1, 0
	for _, tag := range tags {
		for i := 0; i+len(tag) <= len(text); i++ {
			if best >= 0 && i >= best {
				break
			}
			if strings.EqualFold(text[i:i+len(tag)], tag) {
				best, bestLen = i, len(tag)
				break
			}
		}
	}
	return best, bestLen
}

// partialTagSuffix is the length of the longest suffix of text that is a
// proper prefix of one of tags.
func partialTagSuffix(text string, tags []string) int {
	longest := 0
	for _, tag := range tags {
		for k := len(tag) - 1; k > longest; k-- {
			if k <= len(text) && strings.EqualFold(text[len(text)-k:], tag[:k]) {
				longest = k
				break
			}
		}
	}
	return longest
}
