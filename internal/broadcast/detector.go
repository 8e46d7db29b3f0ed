// Package broadcast runs the recurring fetch→detect→fan-out cycle that
// pushes new blog posts to every subscriber.
package broadcast

import (
	"sync"

	"blogbot/internal/feed"
)

// Detector decides whether a freshly fetched item is genuinely new.
//
// It holds at most one item, the last one observed, behind a mutex: the
// loop and any on-demand caller serialize here. The candidate always
// replaces the held item before novelty is reported, so a failed fan-out
// never re-triggers for the same post.
type Detector struct {
	mu   sync.Mutex
	held *feed.Item
}

func NewDetector() *Detector { return &Detector{} }

// Observe records candidate and reports whether it differs from the
// previously held item. The first observation after startup is never
// novel; there is nothing to compare against.
func (d *Detector) Observe(candidate feed.Item) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	prev := d.held
	c := candidate
	d.held = &c

	return prev != nil && *prev != candidate
}
