package site

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/cwygoda/golfscrape/internal/domain"
)

// Fetcher implements domain.PageFetcher for HTML pages.
type Fetcher struct {
	Client       *Client
	URL          string
	ItemSelector string
	NextSelector string
	Fields       []Field
}

// Fetch loads the page for u and extracts its records. For item units the
// input item's fields are carried into the result, overlaid with what the
// detail page yields. A listing page the site reports as not found or gone
// yields no data.
func (f *Fetcher) Fetch(ctx context.Context, u domain.Unit) ([]domain.Record, bool, error) {
	target, ok := ExpandURL(f.URL, u)
	if !ok {
		// Nothing to visit; keep the item as it is.
		if u.Item != nil {
			return []domain.Record{u.Item.Clone()}, true, nil
		}
		return nil, false, nil
	}

	doc, base, err := f.Client.Get(ctx, target)
	var se *StatusError
	if errors.As(err, &se) && u.Item == nil && se.Missing() {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	records := Extract(doc, base, f.ItemSelector, f.Fields)
	if u.Item != nil {
		records = overlay(u.Item, records)
	}

	more := len(records) > 0
	if f.NextSelector != "" {
		more = doc.Find(f.NextSelector).Length() > 0
	}
	return records, more, nil
}

var placeholder = regexp.MustCompile(`\{(\w+)\}`)

// ExpandURL substitutes {page}, {region} and {<field>} of the unit's input
// item into tmpl. A field placeholder that starts the template is taken as
// a full URL and inserted as is; every other value is query-escaped. It
// reports false when a placeholder has no value.
func ExpandURL(tmpl string, u domain.Unit) (string, bool) {
	var b strings.Builder
	last := 0
	for _, m := range placeholder.FindAllStringSubmatchIndex(tmpl, -1) {
		b.WriteString(tmpl[last:m[0]])
		last = m[1]

		switch name := tmpl[m[2]:m[3]]; name {
		case "page":
			b.WriteString(strconv.Itoa(u.Page))
		case "region":
			b.WriteString(url.QueryEscape(u.Region))
		default:
			v, ok := u.Item[name]
			if !ok {
				return "", false
			}
			if m[0] == 0 {
				b.WriteString(v)
			} else {
				b.WriteString(url.QueryEscape(v))
			}
		}
	}
	b.WriteString(tmpl[last:])
	return b.String(), true
}

func overlay(item domain.Record, extracted []domain.Record) []domain.Record {
	if len(extracted) == 0 {
		return []domain.Record{item.Clone()}
	}
	out := make([]domain.Record, len(extracted))
	for i, r := range extracted {
		m := item.Clone()
		for k, v := range r {
			m[k] = v
		}
		out[i] = m
	}
	return out
}
