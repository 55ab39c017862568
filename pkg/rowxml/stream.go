package rowxml

import (
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

// stream walks text token by token with a non-strict decoder. A record is
// opened on a row element and closed on its end tag; the text of a result
// wrapper outside any row is parsed recursively. Reaching the end of input
// inside a row drops that row.
func (p *Parser) stream(text string, depth int) ([]Record, error) {
	d := xml.NewDecoder(strings.NewReader(text))
	d.Strict = false
	d.Entity = xml.HTMLEntity
	d.CharsetReader = charset.NewReaderLabel

	var (
		records []Record
		current Record
		level   int

		rowLevel    = -1
		fieldName   string
		fieldText   strings.Builder
		inField     bool
		resultLevel = -1
		resultText  strings.Builder
	)

	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var syntaxErr *xml.SyntaxError
			if errors.As(err, &syntaxErr) && syntaxErr.Msg == "unexpected EOF" {
				if rowLevel >= 0 {
					p.logger.Warn().Int("rows", len(records)).Msg("Payload truncated inside a row, dropping it")
				}
				break
			}
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			level++
			switch {
			case rowLevel < 0 && strings.EqualFold(t.Name.Local, p.opts.RowMarker):
				rowLevel = level
				current = Record{}
			case rowLevel >= 0 && level == rowLevel+1:
				fieldName = t.Name.Local
				fieldText.Reset()
				inField = true
			case rowLevel < 0 && resultLevel < 0 && strings.EqualFold(t.Name.Local, p.opts.ResultMarker):
				resultLevel = level
				resultText.Reset()
			}

		case xml.CharData:
			if inField {
				fieldText.Write(t)
			} else if rowLevel < 0 && resultLevel >= 0 {
				resultText.Write(t)
			}

		case xml.EndElement:
			switch {
			case inField && level == rowLevel+1:
				current = append(current, Field{Name: fieldName, Value: strings.TrimSpace(fieldText.String())})
				inField = false
			case rowLevel >= 0 && level == rowLevel:
				records = append(records, current)
				current = nil
				rowLevel = -1
			case resultLevel >= 0 && level == resultLevel:
				resultLevel = -1
				nested, err := p.streamNested(resultText.String(), depth)
				if err != nil {
					return nil, err
				}
				records = append(records, nested...)
			}
			level--
		}
	}
	return records, nil
}

func (p *Parser) streamNested(text string, depth int) ([]Record, error) {
	if depth >= p.opts.MaxDepth {
		return nil, nil
	}
	inner, ok := nestedPayload(text)
	if !ok {
		return nil, nil
	}
	passes := heuristicPasses(sanitizeLight(inner))
	return p.stream(passes[len(passes)-1], depth+1)
}
