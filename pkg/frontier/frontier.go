package frontier

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Frontier is the breadth-first work list of one discovery pass. It hands URLs
// to workers in FIFO order, never hands out the same URL twice and stops once
// capacity pages have been fetched successfully.
//
// Every URL is in at most one of pending, in-flight, visited or failed.
type Frontier struct {
	mu   sync.Mutex
	cond *sync.Cond

	pending    []string
	queued     map[string]struct{}
	inFlight   map[string]struct{}
	visited    []string
	visitedSet map[string]struct{}
	failed     map[string]error

	capacity int
	done     bool
	log      *logrus.Entry
}

// Stats is a point-in-time snapshot of the frontier.
type Stats struct {
	Visited  int
	Failed   int
	Pending  int
	InFlight int
}

// New creates a frontier seeded with seed. capacity <= 0 means unbounded.
func New(seed string, capacity int, log *logrus.Entry) *Frontier {
	f := &Frontier{
		pending:    []string{seed},
		queued:     map[string]struct{}{seed: {}},
		inFlight:   make(map[string]struct{}),
		visitedSet: make(map[string]struct{}),
		failed:     make(map[string]error),
		capacity:   capacity,
		log:        log,
	}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Next reserves the next URL to fetch. It blocks while the queue is empty but
// other fetches are still in flight, since they may add links. It returns false
// when the crawl is exhausted, the capacity is reached, Close was called or ctx is done.
func (f *Frontier) Next(ctx context.Context) (string, bool) {
	stop := context.AfterFunc(ctx, func() {
		f.mu.Lock()
		f.cond.Broadcast()
		f.mu.Unlock()
	})
	defer stop()

	f.mu.Lock()
	defer f.mu.Unlock()

	for {
		if f.done || ctx.Err() != nil {
			return "", false
		}

		if f.capacity > 0 && len(f.visited)+len(f.inFlight) >= f.capacity {
			if len(f.inFlight) == 0 {
				f.log.WithField("visited", len(f.visited)).Info("Visit cap reached")
				f.finishLocked()
				return "", false
			}
			// A failing in-flight fetch frees its slot.
			f.cond.Wait()
			continue
		}

		for len(f.pending) > 0 {
			next := f.pending[0]
			f.pending[0] = ""
			f.pending = f.pending[1:]
			delete(f.queued, next)
			if f.seenLocked(next) {
				continue
			}
			f.inFlight[next] = struct{}{}
			return next, true
		}

		if len(f.inFlight) == 0 {
			f.finishLocked()
			return "", false
		}
		f.cond.Wait()
	}
}

// Complete marks a reserved URL as fetched and queues its unseen links.
func (f *Frontier) Complete(pageURL string, links []string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.inFlight, pageURL)
	if _, ok := f.visitedSet[pageURL]; !ok {
		f.visitedSet[pageURL] = struct{}{}
		f.visited = append(f.visited, pageURL)
	}

	added := 0
	for _, link := range links {
		if f.seenLocked(link) {
			continue
		}
		if _, ok := f.queued[link]; ok {
			continue
		}
		f.queued[link] = struct{}{}
		f.pending = append(f.pending, link)
		added++
	}
	f.log.WithFields(logrus.Fields{"url": pageURL, "links": len(links), "queued": added}).Debug("Page visited")
	f.cond.Broadcast()
}

// Fail records that a reserved URL could not be fetched. It is never retried.
func (f *Frontier) Fail(pageURL string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.inFlight, pageURL)
	f.failed[pageURL] = err
	f.cond.Broadcast()
}

// Close stops the frontier; pending and future Next calls return false.
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finishLocked()
}

// Visited returns the successfully fetched URLs in the order they completed.
func (f *Frontier) Visited() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.visited...)
}

// Failures returns a copy of the failed URLs and their errors.
func (f *Frontier) Failures() map[string]error {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]error, len(f.failed))
	for u, err := range f.failed {
		out[u] = err
	}
	return out
}

// Stats returns current counters.
func (f *Frontier) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Stats{
		Visited:  len(f.visited),
		Failed:   len(f.failed),
		Pending:  len(f.pending),
		InFlight: len(f.inFlight),
	}
}

func (f *Frontier) seenLocked(u string) bool {
	if _, ok := f.visitedSet[u]; ok {
		return true
	}
	if _, ok := f.inFlight[u]; ok {
		return true
	}
	_, ok := f.failed[u]
	return ok
}

func (f *Frontier) finishLocked() {
	f.done = true
	f.cond.Broadcast()
}
