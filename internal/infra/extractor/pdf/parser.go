// Package pdf implements just enough of the PDF object model to walk a
// document's page tree and decode its content streams. It is not a general
// PDF library: it has no writer, no encryption support, and no font/CMap
// handling, which means text using custom or embedded encodings may come
// out as the wrong characters. It covers the common case of PDFs with
// FlateDecode content streams and a conventional Catalog -> Pages -> Page
// tree, which is what government-document-release PDFs overwhelmingly use.
package pdf

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
	"regexp"
	"strconv"
)

var objectPattern = regexp.MustCompile(`(?s)(\d+)\s+(\d+)\s+obj(.*?)endobj`)

// object is one indirect object parsed out of the file: its raw dictionary
// text (if any) and, if it carries a stream, the stream's raw decoded bytes.
type object struct {
	num    int
	dict   string
	stream []byte
}

// Document is a parsed PDF, ready for page-by-page content extraction.
type Document struct {
	objects map[int]*object
	pageIDs []int // object numbers of page objects, in document order
}

// Open reads and parses the PDF at data. It returns an error only if no
// object could be parsed at all; malformed individual objects are skipped.
func Open(data []byte) (*Document, error) {
	doc := &Document{objects: make(map[int]*object)}

	for _, m := range objectPattern.FindAllSubmatch(data, -1) {
		num, err := strconv.Atoi(string(m[1]))
		if err != nil {
			continue
		}
		body := m[3]
		obj := &object{num: num}

		if dictEnd := findDictEnd(body); dictEnd >= 0 {
			obj.dict = string(body[:dictEnd])
		} else {
			obj.dict = string(body)
		}

		if raw, ok := extractStream(body); ok {
			obj.stream = decodeStream(obj.dict, raw)
		}

		doc.objects[num] = obj
	}

	if len(doc.objects) == 0 {
		return nil, fmt.Errorf("no PDF objects found")
	}

	doc.pageIDs = doc.findPageOrder()
	return doc, nil
}

// PageCount returns the number of pages discovered.
func (d *Document) PageCount() int {
	return len(d.pageIDs)
}

// PageContent returns the concatenated, decoded content-stream bytes for
// page index i (0-based).
func (d *Document) PageContent(i int) []byte {
	if i < 0 || i >= len(d.pageIDs) {
		return nil
	}
	page := d.objects[d.pageIDs[i]]
	if page == nil {
		return nil
	}

	var buf bytes.Buffer
	for _, ref := range referencedObjectNumbers(dictValue(page.dict, "/Contents")) {
		if obj, ok := d.objects[ref]; ok {
			buf.Write(obj.stream)
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes()
}

// findPageOrder locates the Catalog's Pages tree and walks it depth-first to
// produce a document-order list of page object numbers. If no Catalog is
// found (truncated or non-conformant file), it falls back to every object
// whose dictionary declares /Type /Page, in ascending object-number order.
func (d *Document) findPageOrder() []int {
	for _, obj := range d.objects {
		if dictHasType(obj.dict, "/Catalog") {
			if pagesRef := firstReferencedObjectNumber(dictValue(obj.dict, "/Pages")); pagesRef != 0 {
				var out []int
				seen := map[int]bool{}
				d.walkPagesTree(pagesRef, &out, seen, 0)
				if len(out) > 0 {
					return out
				}
			}
		}
	}

	var fallback []int
	for num, obj := range d.objects {
		if dictHasType(obj.dict, "/Page") && !dictHasType(obj.dict, "/Pages") {
			fallback = append(fallback, num)
		}
	}
	sortInts(fallback)
	return fallback
}

func (d *Document) walkPagesTree(objNum int, out *[]int, seen map[int]bool, depth int) {
	if depth > 64 || seen[objNum] {
		return
	}
	seen[objNum] = true

	obj, ok := d.objects[objNum]
	if !ok {
		return
	}

	if dictHasType(obj.dict, "/Page") && !dictHasType(obj.dict, "/Pages") {
		*out = append(*out, objNum)
		return
	}

	for _, kid := range referencedObjectNumbers(dictValue(obj.dict, "/Kids")) {
		d.walkPagesTree(kid, out, seen, depth+1)
	}
}

func sortInts(xs []int) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1] > xs[j]; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}

// findDictEnd returns the index just past the top-level "<< ... >>"
// dictionary at the start of an object body, accounting for nesting.
func findDictEnd(body []byte) int {
	start := bytes.Index(body, []byte("<<"))
	if start < 0 {
		return -1
	}
	depth := 0
	i := start
	for i < len(body)-1 {
		switch {
		case body[i] == '<' && body[i+1] == '<':
			depth++
			i += 2
		case body[i] == '>' && body[i+1] == '>':
			depth--
			i += 2
			if depth == 0 {
				return i
			}
		default:
			i++
		}
	}
	return -1
}

// extractStream pulls the raw bytes between "stream" and "endstream".
func extractStream(body []byte) ([]byte, bool) {
	start := bytes.Index(body, []byte("stream"))
	if start < 0 {
		return nil, false
	}
	start += len("stream")
	// Skip the EOL immediately following the "stream" keyword, per spec.
	if start < len(body) && body[start] == '\r' {
		start++
	}
	if start < len(body) && body[start] == '\n' {
		start++
	}

	end := bytes.Index(body[start:], []byte("endstream"))
	if end < 0 {
		return nil, false
	}
	return body[start : start+end], true
}

// decodeStream applies FlateDecode if the dictionary declares it; otherwise
// the raw bytes are returned unchanged (best-effort for unsupported filters).
func decodeStream(dict string, raw []byte) []byte {
	if !bytes.Contains([]byte(dict), []byte("FlateDecode")) {
		return raw
	}
	zr, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return raw
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil && len(out) == 0 {
		return raw
	}
	return out
}

var dictKeyRefPattern = regexp.MustCompile(`(\d+)\s+\d+\s+R`)

// dictValue returns the raw text following key in a dictionary string, up to
// the next key or closing bracket/brace — enough to then scan for object
// references or array contents.
func dictValue(dict, key string) string {
	idx := indexOf(dict, key)
	if idx < 0 {
		return ""
	}
	rest := dict[idx+len(key):]
	// Trim to a reasonable bound: either the next "/Key" or 4000 bytes.
	if next := regexp.MustCompile(`/[A-Za-z]+`).FindStringIndex(rest); next != nil && next[0] > 0 {
		if next[0] < len(rest) {
			rest = rest[:next[0]]
		}
	}
	if len(rest) > 4000 {
		rest = rest[:4000]
	}
	return rest
}

func indexOf(s, substr string) int {
	return bytes.Index([]byte(s), []byte(substr))
}

// referencedObjectNumbers extracts every "N G R" indirect reference found in s.
func referencedObjectNumbers(s string) []int {
	matches := dictKeyRefPattern.FindAllStringSubmatch(s, -1)
	out := make([]int, 0, len(matches))
	for _, m := range matches {
		if n, err := strconv.Atoi(m[1]); err == nil {
			out = append(out, n)
		}
	}
	return out
}

func firstReferencedObjectNumber(s string) int {
	refs := referencedObjectNumbers(s)
	if len(refs) == 0 {
		return 0
	}
	return refs[0]
}

// dictHasType reports whether dict declares /Type <typeName> (e.g. "/Page"),
// tolerating the inconsistent whitespace PDF writers leave between the key
// and its value.
func dictHasType(dict, typeName string) bool {
	return bytes.Contains([]byte(dict), []byte("/Type "+typeName)) ||
		bytes.Contains([]byte(dict), []byte("/Type"+typeName))
}
