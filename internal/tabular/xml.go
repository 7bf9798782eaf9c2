package tabular

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/couchcryptid/civic-data-etl/internal/domain"
)

// ParseXML reads a flat XML table: each child of the root element is a row,
// each child of a row is a field named by its local element name. Row
// attributes become fields as well. Repeated field elements within a row are
// joined with "; ".
func ParseXML(data []byte) (domain.RecordSet, error) {
	dec := xml.NewDecoder(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))

	var (
		rs       domain.RecordSet
		row      *domain.Record
		field    string
		text     strings.Builder
		depth    int
		sawRoot  bool
		multiple map[string][]string
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch depth {
			case 1:
				if sawRoot {
					return nil, errors.New("multiple root elements")
				}
				sawRoot = true
			case 2:
				row = domain.NewRecord(16)
				multiple = make(map[string][]string)
				for _, a := range t.Attr {
					row.Set(a.Name.Local, nonEmpty(a.Value))
				}
			case 3:
				field = t.Name.Local
				text.Reset()
			}
		case xml.CharData:
			if depth >= 3 {
				text.Write(t)
			} else if len(bytes.TrimSpace(t)) > 0 && depth < 2 {
				return nil, errors.New("text outside of row elements")
			}
		case xml.EndElement:
			switch depth {
			case 2:
				for name, vals := range multiple {
					row.Set(name, strings.Join(vals, "; "))
				}
				rs = append(rs, row)
				row = nil
			case 3:
				v := strings.TrimSpace(text.String())
				if prev, ok := row.Get(field); ok && prev != nil && v != "" {
					if _, tracked := multiple[field]; !tracked {
						multiple[field] = []string{domain.FormatValue(prev)}
					}
					multiple[field] = append(multiple[field], v)
				} else if !ok || prev == nil {
					row.Set(field, nonEmpty(v))
				}
			}
			depth--
		}
	}

	if !sawRoot {
		return nil, errors.New("no root element")
	}
	if len(rs) == 0 {
		return nil, errors.New("no rows under root element")
	}
	return rs, nil
}

func nonEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
