package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/cwygoda/golfscrape/internal/domain"
)

// Strategy describes how a job's units are enumerated.
type Strategy interface {
	// Open checks the strategy's inputs and returns an enumerator that
	// starts at start. Missing inputs are reported as domain.Fatal errors.
	Open(ctx context.Context, start domain.Position) (Enumerator, error)
}

// Enumerator yields units in strictly increasing position order.
// Next is called from a single goroutine; Exhausted may be called from any.
type Enumerator interface {
	Next() (domain.Unit, bool)
	// Exhausted reports that u yielded no more data, ending u's group.
	Exhausted(u domain.Unit)
}

// Pages enumerates listing pages First..Last. A zero Last leaves the
// sequence open-ended; it then ends at the first page without data.
type Pages struct {
	First int
	Last  int
}

func (s Pages) Open(_ context.Context, start domain.Position) (Enumerator, error) {
	first := s.First
	if first <= 0 {
		first = 1
	}
	if s.Last > 0 && s.Last < first {
		return nil, domain.Fatal(fmt.Errorf("invalid page range %d..%d", first, s.Last))
	}
	next := first
	if start.Minor > next {
		next = start.Minor
	}
	return &pageEnum{next: next, last: s.Last}, nil
}

type pageEnum struct {
	mu   sync.Mutex
	next int
	last int
}

func (e *pageEnum) Next() (domain.Unit, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.last > 0 && e.next > e.last {
		return domain.Unit{}, false
	}
	u := domain.Unit{Pos: domain.Position{Minor: e.next}, Page: e.next}
	e.next++
	return u, true
}

func (e *pageEnum) Exhausted(u domain.Unit) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.last == 0 || u.Page < e.last {
		e.last = u.Page
	}
}

// Items enumerates the records produced by a prior stage, one unit each.
type Items struct {
	// Load returns the input records. An empty result is a missing input.
	Load func(ctx context.Context) ([]domain.Record, error)
}

func (s Items) Open(ctx context.Context, start domain.Position) (Enumerator, error) {
	if s.Load == nil {
		return nil, domain.Fatal(domain.ErrMissingInput)
	}
	items, err := s.Load(ctx)
	if err != nil {
		return nil, domain.Fatal(fmt.Errorf("load input: %w", err))
	}
	if len(items) == 0 {
		return nil, domain.Fatal(domain.ErrMissingInput)
	}
	next := start.Minor
	if next < 0 {
		next = 0
	}
	return &itemEnum{items: items, next: next}, nil
}

type itemEnum struct {
	items []domain.Record
	next  int
}

func (e *itemEnum) Next() (domain.Unit, bool) {
	if e.next >= len(e.items) {
		return domain.Unit{}, false
	}
	u := domain.Unit{Pos: domain.Position{Minor: e.next}, Item: e.items[e.next]}
	e.next++
	return u, true
}

// Exhausted is a no-op: every item is independent.
func (e *itemEnum) Exhausted(domain.Unit) {}

// Regions enumerates region × page pairs. Each region's pages run from
// FirstPage until a page without data, or MaxPages when set.
type Regions struct {
	Names     []string
	FirstPage int
	MaxPages  int
}

func (s Regions) Open(_ context.Context, start domain.Position) (Enumerator, error) {
	if len(s.Names) == 0 {
		return nil, domain.Fatal(fmt.Errorf("%w: no regions configured", domain.ErrMissingInput))
	}
	first := s.FirstPage
	if first <= 0 {
		first = 1
	}
	cur := start
	if cur.Major < 0 {
		cur.Major = 0
	}
	if cur.Minor < first {
		cur.Minor = first
	}
	return &regionEnum{
		names: s.Names,
		first: first,
		max:   s.MaxPages,
		cur:   cur,
		ended: make(map[int]int),
	}, nil
}

type regionEnum struct {
	mu    sync.Mutex
	names []string
	first int
	max   int
	cur   domain.Position
	ended map[int]int // region index -> last page with data
}

func (e *regionEnum) Next() (domain.Unit, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for e.cur.Major < len(e.names) {
		last, ended := e.ended[e.cur.Major]
		if (ended && e.cur.Minor > last) || (e.max > 0 && e.cur.Minor >= e.first+e.max) {
			e.cur = domain.Position{Major: e.cur.Major + 1, Minor: e.first}
			continue
		}
		u := domain.Unit{Pos: e.cur, Page: e.cur.Minor, Region: e.names[e.cur.Major]}
		e.cur = e.cur.Succ()
		return u, true
	}
	return domain.Unit{}, false
}

func (e *regionEnum) Exhausted(u domain.Unit) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if last, ok := e.ended[u.Pos.Major]; !ok || u.Page < last {
		e.ended[u.Pos.Major] = u.Page
	}
}
