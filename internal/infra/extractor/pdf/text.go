package pdf

import (
	"strconv"
	"strings"
)

// ExtractText decodes the literal and hex strings passed to the PDF
// text-showing operators (Tj, TJ, ', ") in a content stream, in the order
// they appear, and joins them with a space. It does not consult the font's
// encoding or CMap, so content using a custom glyph encoding will decode to
// the wrong characters; plain WinAnsi/PDFDoc text (the overwhelming common
// case for text-layer PDFs) comes through correctly.
func ExtractText(content []byte) string {
	var out strings.Builder
	i := 0
	n := len(content)

	for i < n {
		switch content[i] {
		case '(':
			lit, next := readLiteralString(content, i)
			i = next
			out.WriteString(lit)
			out.WriteByte(' ')
		case '<':
			if i+1 < n && content[i+1] == '<' {
				// Dictionary, e.g. inline image or ExtGState reference; skip
				// to its matching '>>' rather than trying to extract text.
				i = skipDict(content, i)
				continue
			}
			hex, next := readHexString(content, i)
			i = next
			out.WriteString(hex)
			out.WriteByte(' ')
		default:
			i++
		}
	}

	return strings.TrimSpace(out.String())
}

// readLiteralString decodes a PDF "(...)" string starting at i (which must
// point at the opening paren), handling nested parens and backslash escapes.
// It returns the decoded text and the index just past the closing paren.
func readLiteralString(content []byte, i int) (string, int) {
	n := len(content)
	depth := 0
	var sb strings.Builder

	j := i
	for j < n {
		c := content[j]
		switch {
		case c == '\\' && j+1 < n:
			decoded, width := decodeEscape(content[j+1:])
			sb.WriteString(decoded)
			j += 1 + width
		case c == '(':
			depth++
			if depth > 1 {
				sb.WriteByte(c)
			}
			j++
		case c == ')':
			depth--
			j++
			if depth == 0 {
				return sb.String(), j
			}
			sb.WriteByte(c)
		default:
			sb.WriteByte(c)
			j++
		}
	}
	return sb.String(), j
}

// decodeEscape decodes a single backslash escape sequence (the bytes after
// the backslash) and returns its replacement text plus how many bytes of
// input it consumed (not counting the backslash itself).
func decodeEscape(rest []byte) (string, int) {
	if len(rest) == 0 {
		return "", 0
	}
	switch rest[0] {
	case 'n':
		return "\n", 1
	case 'r':
		return "\r", 1
	case 't':
		return "\t", 1
	case 'b', 'f':
		return "", 1
	case '(', ')', '\\':
		return string(rest[0]), 1
	case '\n':
		return "", 1 // line continuation
	default:
		if rest[0] >= '0' && rest[0] <= '7' {
			end := 1
			for end < 3 && end < len(rest) && rest[end] >= '0' && rest[end] <= '7' {
				end++
			}
			if v, err := strconv.ParseInt(string(rest[:end]), 8, 32); err == nil {
				return string(rune(v)), end
			}
		}
		return string(rest[0]), 1
	}
}

// readHexString decodes a PDF "<...>" hex string starting at i.
func readHexString(content []byte, i int) (string, int) {
	n := len(content)
	j := i + 1
	start := j
	for j < n && content[j] != '>' {
		j++
	}
	hexDigits := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
			return r
		default:
			return -1
		}
	}, string(content[start:j]))
	if len(hexDigits)%2 == 1 {
		hexDigits += "0"
	}

	var sb strings.Builder
	for k := 0; k+1 < len(hexDigits)+1 && k+2 <= len(hexDigits); k += 2 {
		v, err := strconv.ParseInt(hexDigits[k:k+2], 16, 16)
		if err == nil {
			sb.WriteByte(byte(v))
		}
	}

	next := j
	if next < n {
		next++ // past '>'
	}
	return sb.String(), next
}

// skipDict skips a "<< ... >>" block starting at i, returning the index just
// past the matching closing ">>".
func skipDict(content []byte, i int) int {
	depth := 0
	j := i
	n := len(content)
	for j < n-1 {
		if content[j] == '<' && content[j+1] == '<' {
			depth++
			j += 2
			continue
		}
		if content[j] == '>' && content[j+1] == '>' {
			depth--
			j += 2
			if depth == 0 {
				return j
			}
			continue
		}
		j++
	}
	return n
}
