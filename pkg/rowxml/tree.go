package rowxml

import (
	"encoding/xml"
	"errors"
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// node is a minimal element tree. text holds the concatenated character
// data of the element and all of its descendants. closed is set when the
// element's own end tag was seen.
type node struct {
	name     string
	children []*node
	text     strings.Builder
	closed   bool
}

// builder assembles a tree from start, end and text events.
type builder struct {
	root  *node
	stack []*node
}

func newBuilder() *builder {
	root := &node{}
	return &builder{root: root, stack: []*node{root}}
}

func (b *builder) start(name string) {
	n := &node{name: name}
	parent := b.stack[len(b.stack)-1]
	parent.children = append(parent.children, n)
	b.stack = append(b.stack, n)
}

func (b *builder) end() {
	if len(b.stack) > 1 {
		b.stack[len(b.stack)-1].closed = true
		b.stack = b.stack[:len(b.stack)-1]
	}
}

// endMatching closes the nearest open element named name and every element
// opened after it. Only the matched element counts as closed. Unknown end
// tags are ignored.
func (b *builder) endMatching(name string) {
	for i := len(b.stack) - 1; i > 0; i-- {
		if strings.EqualFold(b.stack[i].name, name) {
			b.stack[i].closed = true
			b.stack = b.stack[:i]
			return
		}
	}
}

func (b *builder) chars(data []byte) {
	for _, n := range b.stack[1:] {
		n.text.Write(data)
	}
}

// parseStrict parses well-formed XML into a tree. Element names are local
// names; namespaces are resolved and dropped.
func parseStrict(text string) (*node, error) {
	d := xml.NewDecoder(strings.NewReader(text))
	d.Strict = true
	d.CharsetReader = charset.NewReaderLabel

	b := newBuilder()
	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			return b.root, nil
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			b.start(t.Name.Local)
		case xml.EndElement:
			b.end()
		case xml.CharData:
			b.chars(t)
		}
	}
}

// rawTextMask is prefixed to element names the HTML tokenizer would read
// as raw text, such as PLAINTEXT which swallows the rest of the input.
const rawTextMask = "x-rowxml-"

var rawTextTag = regexp.MustCompile(`(?i)<(/?)([\w.-]+:)?(iframe|noembed|noframes|noscript|plaintext|script|style|textarea|title|xmp)([\s/>]|$)`)

func maskRawText(text string) string {
	return rawTextTag.ReplaceAllString(text, "<${1}${2}"+rawTextMask+"${3}${4}")
}

// parseForgiving builds a tree with an HTML tokenizer, closing elements
// implicitly where end tags are missing or misplaced. It never fails.
func parseForgiving(text string) *node {
	z := html.NewTokenizer(strings.NewReader(maskRawText(text)))
	z.AllowCDATA(true)

	b := newBuilder()
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.root
		case html.StartTagToken:
			b.start(rawTagName(z.Raw()))
		case html.SelfClosingTagToken:
			b.start(rawTagName(z.Raw()))
			b.end()
		case html.EndTagToken:
			b.endMatching(rawTagName(z.Raw()))
		case html.TextToken:
			b.chars(z.Text())
		}
	}
}

// rawTagName recovers the tag name with its original case from the raw
// bytes of a tag token, dropping any namespace prefix.
func rawTagName(raw []byte) string {
	s := strings.TrimPrefix(string(raw), "<")
	s = strings.TrimPrefix(s, "/")
	end := strings.IndexAny(s, " \t\r\n/>")
	if end >= 0 {
		s = s[:end]
	}
	return strings.TrimPrefix(localName(s), rawTextMask)
}

func localName(name string) string {
	if i := strings.LastIndexByte(name, ':'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// unclosed counts the descendants named name whose end tag never appeared.
func (n *node) unclosed(name string) int {
	count := 0
	for _, c := range n.find(name) {
		if !c.closed {
			count++
		}
	}
	return count
}

// find returns all descendants of n whose name matches, in document order.
func (n *node) find(name string) []*node {
	var out []*node
	var walk func(*node)
	walk = func(cur *node) {
		for _, c := range cur.children {
			if strings.EqualFold(c.name, name) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(n)
	return out
}
