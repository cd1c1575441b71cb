// Package scanner provides the lexical view of Swift sources that the
// rest of the tool works on. Nothing here builds a real syntax tree;
// the contract is a comment-blanked copy of the source with identical
// length and line structure, plus small helpers for parameter lists
// and brace matching.
package scanner

const (
	stCode = iota
	stLineComment
	stBlockComment
	stString
	stMultilineString
)

// BlankComments returns a copy of src in which every character inside a
// comment (including the delimiters) is replaced with a space. Newlines
// are kept, so byte offsets, line numbers and brace depths computed on
// the result map 1:1 onto the original text. Comment markers inside
// string literals are left alone, and block comments nest the way Swift
// nests them. Unterminated comments or strings simply run to EOF.
func BlankComments(src string) string {
	out := []byte(src)
	state := stCode
	depth := 0
	i, n := 0, len(src)
	for i < n {
		c := src[i]
		switch state {
		case stCode:
			switch {
			case c == '/' && i+1 < n && src[i+1] == '/':
				out[i], out[i+1] = ' ', ' '
				state = stLineComment
				i += 2
			case c == '/' && i+1 < n && src[i+1] == '*':
				out[i], out[i+1] = ' ', ' '
				state = stBlockComment
				depth = 1
				i += 2
			case c == '"':
				if i+2 < n && src[i+1] == '"' && src[i+2] == '"' {
					state = stMultilineString
					i += 3
				} else {
					state = stString
					i++
				}
			default:
				i++
			}
		case stLineComment:
			if c == '\n' {
				state = stCode
			} else {
				out[i] = ' '
			}
			i++
		case stBlockComment:
			switch {
			case c == '/' && i+1 < n && src[i+1] == '*':
				out[i], out[i+1] = ' ', ' '
				depth++
				i += 2
			case c == '*' && i+1 < n && src[i+1] == '/':
				out[i], out[i+1] = ' ', ' '
				depth--
				i += 2
				if depth == 0 {
					state = stCode
				}
			default:
				if c != '\n' {
					out[i] = ' '
				}
				i++
			}
		case stString:
			switch {
			case c == '\\' && i+1 < n:
				i += 2
			case c == '"' || c == '\n':
				// an unterminated single-line literal ends at the newline
				state = stCode
				i++
			default:
				i++
			}
		case stMultilineString:
			if c == '"' && i+2 < n && src[i+1] == '"' && src[i+2] == '"' {
				state = stCode
				i += 3
			} else {
				i++
			}
		}
	}
	return string(out)
}

// FindBlockEnd returns the index of the '}' closing the block whose '{'
// sits at openIdx, or -1 when the block never closes. Call it on a
// comment-blanked view so braces in comments do not confuse the count.
func FindBlockEnd(s string, openIdx int) int {
	depth := 0
	for i := openIdx; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
