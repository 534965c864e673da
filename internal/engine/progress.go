package engine

import (
	"sort"

	"github.com/cwygoda/golfscrape/internal/domain"
)

// tracker derives the resumable Progress of a run from the units it has
// dispatched and finished. Callers serialise access.
type tracker struct {
	frontier domain.Position              // next undispatched position
	inflight map[domain.Position]struct{} // dispatched, not finished
	finished map[domain.Position]struct{} // finished at or after the watermark
}

func newTracker(from domain.Progress) *tracker {
	t := &tracker{
		frontier: from.Next,
		inflight: make(map[domain.Position]struct{}),
		finished: make(map[domain.Position]struct{}),
	}
	for _, p := range from.Finished {
		t.finished[p] = struct{}{}
	}
	return t
}

// dispatch records that u is being processed.
func (t *tracker) dispatch(u domain.Unit) {
	t.inflight[u.Pos] = struct{}{}
	t.frontier = u.Pos.Succ()
}

// skip records that u was finished by an earlier run.
func (t *tracker) skip(u domain.Unit) {
	t.frontier = u.Pos.Succ()
}

// hold pins the frontier at u, which will not be dispatched in this run.
func (t *tracker) hold(u domain.Unit) {
	t.frontier = u.Pos
}

// finish marks u done, whether processed or given up on.
func (t *tracker) finish(u domain.Unit) {
	delete(t.inflight, u.Pos)
	t.finished[u.Pos] = struct{}{}
}

// pending reports how many dispatched units have not finished.
func (t *tracker) pending() int {
	return len(t.inflight)
}

// snapshot returns the earliest position with unfinished work and the
// finished positions after it.
func (t *tracker) snapshot() domain.Progress {
	next := t.frontier
	for p := range t.inflight {
		if p.Less(next) {
			next = p
		}
	}

	var done []domain.Position
	for p := range t.finished {
		if p.Less(next) {
			delete(t.finished, p)
			continue
		}
		done = append(done, p)
	}
	sort.Slice(done, func(i, j int) bool { return done[i].Less(done[j]) })

	return domain.Progress{Next: next, Finished: done}
}
