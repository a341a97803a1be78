package formats

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"github.com/codescope-dev/codescope/internal/model"
)

// XMLParser walks the element tree and records each element as a config
// section, with the dotted element path as parent. The HTML variant uses
// a lenient decoder so real-world markup does not fail outright.
type XMLParser struct {
	format model.Format
}

func NewXMLParser() *XMLParser  { return &XMLParser{format: model.FormatXML} }
func NewHTMLParser() *XMLParser { return &XMLParser{format: model.FormatHTML} }

func (p *XMLParser) Format() model.Format { return p.format }

func (p *XMLParser) Parse(path string, content []byte) (*model.FileRecord, error) {
	record := &model.FileRecord{Format: p.format}

	dec := xml.NewDecoder(bytes.NewReader(content))
	if p.format == model.FormatHTML {
		dec.Strict = false
		dec.AutoClose = xml.HTMLAutoClose
		dec.Entity = xml.HTMLEntity
	}

	var stack []string
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			line := lineOfOffset(content, dec.InputOffset())
			record.Symbols = append(record.Symbols, model.Symbol{
				Name:   t.Name.Local,
				Kind:   model.KindConfigSection,
				Range:  lineRange(line, len(t.Name.Local)),
				Parent: joinParent(stack),
			})
			stack = append(stack, t.Name.Local)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	return record, nil
}

// lineOfOffset converts a decoder byte offset to a 1-based line number.
func lineOfOffset(content []byte, offset int64) int {
	if offset > int64(len(content)) {
		offset = int64(len(content))
	}
	return 1 + strings.Count(string(content[:offset]), "\n")
}
