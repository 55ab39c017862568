package rowxml

import (
	"strings"

	"golang.org/x/net/html"
)

// extract collects the rows of a parsed tree. When the tree has no row
// elements, the first result wrapper holding an escaped payload is
// unescaped and parsed once more, up to MaxDepth levels.
func (p *Parser) extract(root *node, depth int) ([]Record, error) {
	rows := root.find(p.opts.RowMarker)
	if len(rows) > 0 {
		records := make([]Record, 0, len(rows))
		for _, row := range rows {
			records = append(records, recordOf(row))
		}
		return records, nil
	}

	if depth >= p.opts.MaxDepth {
		return nil, nil
	}
	for _, wrapper := range root.find(p.opts.ResultMarker) {
		inner, ok := nestedPayload(wrapper.text.String())
		if !ok {
			continue
		}
		p.logger.Debug().Int("depth", depth+1).Msg("Unwrapping nested result payload")
		res, err := p.parse(inner, depth+1)
		if err != nil {
			return nil, err
		}
		return res.Records, nil
	}
	return nil, nil
}

func recordOf(row *node) Record {
	rec := make(Record, 0, len(row.children))
	for _, c := range row.children {
		rec = append(rec, Field{Name: c.name, Value: strings.TrimSpace(c.text.String())})
	}
	return rec
}

// nestedPayload returns the markup carried as text by a result wrapper.
// The parser has already decoded one level of entities; a second level is
// decoded when the text is still escaped.
func nestedPayload(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if strings.Contains(text, "&lt;") {
		text = strings.TrimSpace(html.UnescapeString(text))
	}
	return text, strings.HasPrefix(text, "<")
}
