package site

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/cwygoda/golfscrape/internal/domain"
)

// Field extracts one record field from an item element.
type Field struct {
	Name     string
	Selector string
	// Attr reads an attribute instead of the element text.
	Attr string
}

// ParseFields turns name -> "selector" or "selector@attr" into fields,
// sorted by name. An empty selector addresses the item element itself.
func ParseFields(defs map[string]string) ([]Field, error) {
	fields := make([]Field, 0, len(defs))
	for name, s := range defs {
		f := Field{Name: name, Selector: strings.TrimSpace(s)}
		if i := strings.LastIndex(f.Selector, "@"); i >= 0 {
			f.Attr = strings.TrimSpace(f.Selector[i+1:])
			f.Selector = strings.TrimSpace(f.Selector[:i])
			if f.Attr == "" {
				return nil, fmt.Errorf("field %s: empty attribute in %q", name, s)
			}
		}
		if f.Selector == "" && f.Attr == "" {
			return nil, fmt.Errorf("field %s: empty selector", name)
		}
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
	return fields, nil
}

// Extract builds one record per element matching itemSelector, or a single
// record from the whole document when itemSelector is empty. Elements with
// no field values are skipped.
func Extract(doc *goquery.Document, base *url.URL, itemSelector string, fields []Field) []domain.Record {
	items := doc.Selection
	if itemSelector != "" {
		items = doc.Find(itemSelector)
	}

	var records []domain.Record
	items.Each(func(_ int, item *goquery.Selection) {
		r := make(domain.Record, len(fields))
		found := false
		for _, f := range fields {
			v := f.value(item, base)
			if v != "" {
				r[f.Name] = v
				found = true
			}
		}
		if found {
			records = append(records, r)
		}
	})
	return records
}

func (f Field) value(item *goquery.Selection, base *url.URL) string {
	sel := item
	if f.Selector != "" {
		sel = item.Find(f.Selector).First()
	}
	if sel.Length() == 0 {
		return ""
	}
	if f.Attr == "" {
		return collapse(sel.Text())
	}

	v, ok := sel.Attr(f.Attr)
	if !ok {
		return ""
	}
	v = strings.TrimSpace(v)
	if base != nil && (f.Attr == "href" || f.Attr == "src") {
		if ref, err := url.Parse(v); err == nil {
			v = base.ResolveReference(ref).String()
		}
	}
	return v
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
