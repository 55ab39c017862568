package client

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/html/charset"
)

// maxMessageLen bounds error messages taken verbatim from a response body.
const maxMessageLen = 512

var faultTextPattern = regexp.MustCompile(`(?s)<(?:[\w.-]+:)?(Text|faultstring)\b[^>]*>(.*?)</(?:[\w.-]+:)?(?:Text|faultstring)>`)

// decodeBody returns the response text, transparently inflating gzip
// content. A body that carries the gzip magic but fails to inflate is
// returned as raw text.
func decodeBody(raw []byte) string {
	if len(raw) >= 2 && raw[0] == 0x1f && raw[1] == 0x8b {
		zr, err := gzip.NewReader(bytes.NewReader(raw))
		if err == nil {
			inflated, err := io.ReadAll(zr)
			_ = zr.Close()
			if err == nil {
				return string(inflated)
			}
		}
	}
	return strings.ToValidUTF8(string(raw), "\uFFFD")
}

// newDecoder returns a tolerant XML decoder that honours charset
// declarations.
func newDecoder(text string) *xml.Decoder {
	d := xml.NewDecoder(strings.NewReader(text))
	d.Strict = false
	d.AutoClose = xml.HTMLAutoClose
	d.Entity = xml.HTMLEntity
	d.CharsetReader = charset.NewReaderLabel
	return d
}

// extractPayload finds the first element whose name ends in PayloadSuffix
// and base64-decodes its text.
func extractPayload(body string) (string, error) {
	d := newDecoder(body)
	for {
		tok, err := d.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", fmt.Errorf("no %s element in response", PayloadSuffix)
			}
			return "", fmt.Errorf("read response: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || !strings.HasSuffix(start.Name.Local, PayloadSuffix) {
			continue
		}
		text, err := elementText(d)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", PayloadSuffix, err)
		}
		decoded, err := base64.StdEncoding.DecodeString(stripSpace(text))
		if err != nil {
			return "", fmt.Errorf("decode %s: %w", PayloadSuffix, err)
		}
		return string(decoded), nil
	}
}

// elementText collects the character data of the element whose start tag
// was just consumed, up to its end tag.
func elementText(d *xml.Decoder) (string, error) {
	var b strings.Builder
	depth := 1
	for depth > 0 {
		tok, err := d.Token()
		if err != nil {
			return b.String(), err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			b.Write(t)
		}
	}
	return b.String(), nil
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n':
			return -1
		}
		return r
	}, s)
}

// isHTML reports whether the body looks like an HTML error page.
func isHTML(body string) bool {
	head := strings.ToLower(strings.TrimSpace(body))
	return strings.HasPrefix(head, "<html") || strings.HasPrefix(head, "<!doctype html")
}

// faultMessage turns an error response into a human-readable message.
func faultMessage(status int, body string) string {
	if isHTML(body) {
		if msg := htmlMessage(body); msg != "" {
			return msg
		}
	}
	if msg := soapFaultMessage(body); msg != "" {
		return msg
	}
	if m := faultTextPattern.FindStringSubmatch(body); m != nil {
		if msg := strings.TrimSpace(html.UnescapeString(m[2])); msg != "" {
			return msg
		}
	}
	msg := strings.TrimSpace(body)
	if msg == "" {
		return http.StatusText(status)
	}
	if len(msg) > maxMessageLen {
		msg = msg[:maxMessageLen] + "..."
	}
	return msg
}

// htmlMessage returns the title and first heading of an HTML page.
func htmlMessage(body string) string {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return ""
	}

	var title, heading string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Title:
				if title == "" {
					title = strings.TrimSpace(nodeText(n))
				}
			case atom.H1:
				if heading == "" {
					heading = strings.TrimSpace(nodeText(n))
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	switch {
	case title != "" && heading != "" && title != heading:
		return title + ": " + heading
	case title != "":
		return title
	default:
		return heading
	}
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// soapFaultMessage extracts the SOAP 1.2 reason text, falling back to the
// SOAP 1.1 faultstring and faultcode.
func soapFaultMessage(body string) string {
	d := newDecoder(body)
	var reason, faultString, faultCode string
	for {
		tok, err := d.Token()
		if err != nil {
			break
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		var target *string
		switch {
		case start.Name.Space == SOAPNamespace && start.Name.Local == "Text":
			target = &reason
		case start.Name.Local == "faultstring":
			target = &faultString
		case start.Name.Local == "faultcode":
			target = &faultCode
		default:
			continue
		}
		text, err := elementText(d)
		if *target == "" {
			*target = strings.TrimSpace(text)
		}
		if err != nil || reason != "" {
			break
		}
	}

	switch {
	case reason != "":
		return reason
	case faultString != "" && faultCode != "":
		return fmt.Sprintf("SOAP fault %s: %s", faultCode, faultString)
	default:
		return faultString
	}
}
