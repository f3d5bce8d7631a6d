// Package segment splits raw message content into an ordered sequence of typed fragments:
// plain prose, fenced code, block math, and inline math. Concatenating the fragment texts in
// order reconstructs the original string minus the delimiter syntax.
package segment

import "strings"

// Fragment is one typed, contiguous piece of a rendered message. At most one of the three
// boolean tags is set; none set means plain prose. Language is only meaningful for code
// fragments and is empty when the opening fence carried no language tag.
type Fragment struct {
	Text         string
	IsCode       bool
	IsMath       bool
	IsInlineMath bool
	Language     string
}

const (
	fence       = "```"
	blockOpen   = `\[`
	blockClose  = `\]`
	inlineOpen  = `\(`
	inlineClose = `\)`
)

// Split segments content into fragments with a single forward scan. The earliest opening
// delimiter wins; a construct only matches when its closing delimiter exists further ahead,
// and the first closing delimiter ends it. Unterminated openers remain plain text. Nested or
// overlapping constructs are not detected inside already claimed regions. Empty input yields
// an empty slice. The function is pure: output depends on nothing but content.
func Split(content string) []Fragment {
	var frags []Fragment
	var plain strings.Builder

	flush := func() {
		if plain.Len() > 0 {
			frags = append(frags, Fragment{Text: plain.String()})
			plain.Reset()
		}
	}

	i := 0
	for i < len(content) {
		rest := content[i:]

		open, kind := nextOpener(rest)
		if open < 0 {
			plain.WriteString(rest)
			break
		}

		plain.WriteString(rest[:open])
		i += open

		switch kind {
		case fence:
			lang, body := splitFenceHead(content[i+len(fence):])
			end := strings.Index(body, fence)
			if end < 0 {
				// No closing fence ahead: the opener stays literal plain text and
				// scanning resumes right after it.
				plain.WriteString(fence)
				i += len(fence)
				continue
			}
			flush()
			frags = append(frags, Fragment{Text: body[:end], IsCode: true, Language: lang})
			i = len(content) - len(body) + end + len(fence)
		case blockOpen:
			body := content[i+len(blockOpen):]
			end := strings.Index(body, blockClose)
			if end < 0 {
				plain.WriteString(blockOpen)
				i += len(blockOpen)
				continue
			}
			flush()
			frags = append(frags, Fragment{Text: body[:end], IsMath: true})
			i += len(blockOpen) + end + len(blockClose)
		case inlineOpen:
			body := content[i+len(inlineOpen):]
			end := strings.Index(body, inlineClose)
			if end < 0 {
				plain.WriteString(inlineOpen)
				i += len(inlineOpen)
				continue
			}
			flush()
			frags = append(frags, Fragment{Text: body[:end], IsInlineMath: true})
			i += len(inlineOpen) + end + len(inlineClose)
		}
	}

	flush()
	return frags
}

// nextOpener returns the offset and token of the earliest opening delimiter in s, or -1 when
// none remains.
func nextOpener(s string) (int, string) {
	best, token := -1, ""
	for _, t := range []string{fence, blockOpen, inlineOpen} {
		if idx := strings.Index(s, t); idx >= 0 && (best < 0 || idx < best) {
			best, token = idx, t
		}
	}
	return best, token
}

// splitFenceHead strips an optional language tag from the start of a fence body. The tag is
// a run of word characters terminated immediately by a newline; anything else leaves the body
// untouched with an empty language.
func splitFenceHead(body string) (lang, rest string) {
	n := 0
	for n < len(body) && isWordByte(body[n]) {
		n++
	}
	if n > 0 && n < len(body) && body[n] == '\n' {
		return body[:n], body[n+1:]
	}
	return "", body
}

func isWordByte(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}
