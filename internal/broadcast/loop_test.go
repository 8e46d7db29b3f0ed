package broadcast

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"blogbot/internal/chat"
	"blogbot/internal/feed"
	"blogbot/pkg/logx"
)

type fakeGateway struct {
	mu   sync.Mutex
	item feed.Item
	err  error
}

func (g *fakeGateway) Latest(context.Context) (feed.Item, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.item, g.err
}

func (g *fakeGateway) set(item feed.Item) {
	g.mu.Lock()
	g.item = item
	g.mu.Unlock()
}

type fakeStore struct {
	mu  sync.Mutex
	ids []chat.ID
	err error
}

func (s *fakeStore) List(context.Context) ([]chat.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]chat.ID(nil), s.ids...), s.err
}

type fakeSender struct {
	mu      sync.Mutex
	sent    []chat.ID
	failFor map[chat.ID]error
}

func (f *fakeSender) Send(_ context.Context, id chat.ID, _ string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failFor[id]; ok {
		return err
	}
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeSender) deliveries() []chat.ID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]chat.ID(nil), f.sent...)
}

func newTestLoop(gw *fakeGateway, st *fakeStore, snd *fakeSender) *Loop {
	return NewLoop(Config{}, gw, NewDetector(), st, snd, logx.Nop())
}

func TestCycleFirstFetchDoesNotBroadcast(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{item: feed.Item{Title: "A"}}
	snd := &fakeSender{}
	l := newTestLoop(gw, &fakeStore{ids: []chat.ID{chat.Chat(1)}}, snd)

	l.RunCycle(context.Background())
	if n := len(snd.deliveries()); n != 0 {
		t.Fatalf("first cycle must not deliver, sent %d", n)
	}
}

func TestCycleBroadcastsOnChangeOnly(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{item: feed.Item{Title: "A"}}
	snd := &fakeSender{}
	l := newTestLoop(gw, &fakeStore{ids: []chat.ID{chat.Chat(1), chat.Chat(2)}}, snd)
	ctx := context.Background()

	l.RunCycle(ctx) // latch A
	gw.set(feed.Item{Title: "B"})
	l.RunCycle(ctx) // novel
	l.RunCycle(ctx) // repeat of B, no delivery

	got := snd.deliveries()
	if len(got) != 2 {
		t.Fatalf("expected exactly one delivery per subscriber, got %v", got)
	}
}

func TestCycleFetchErrorLeavesLatchUntouched(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{item: feed.Item{Title: "A"}}
	snd := &fakeSender{}
	l := newTestLoop(gw, &fakeStore{ids: []chat.ID{chat.Chat(1)}}, snd)
	ctx := context.Background()

	l.RunCycle(ctx) // latch A

	gw.mu.Lock()
	gw.err = errors.New("feed down")
	gw.mu.Unlock()
	l.RunCycle(ctx) // skipped, no state change

	gw.mu.Lock()
	gw.err = nil
	gw.item = feed.Item{Title: "B"}
	gw.mu.Unlock()
	l.RunCycle(ctx) // B still detected as novel

	if n := len(snd.deliveries()); n != 1 {
		t.Fatalf("expected one delivery after recovery, got %d", n)
	}
}

func TestFanOutIsolatesFailures(t *testing.T) {
	t.Parallel()
	c1, c2, c3 := chat.Chat(1), chat.Chat(2), chat.Chat(3)
	gw := &fakeGateway{item: feed.Item{Title: "A"}}
	snd := &fakeSender{failFor: map[chat.ID]error{c2: errors.New("blocked by user")}}
	l := newTestLoop(gw, &fakeStore{ids: []chat.ID{c1, c2, c3}}, snd)
	ctx := context.Background()

	l.RunCycle(ctx)
	gw.set(feed.Item{Title: "B"})
	l.RunCycle(ctx)

	got := snd.deliveries()
	if len(got) != 2 || got[0] != c1 || got[1] != c3 {
		t.Fatalf("expected delivery to c1 and c3 despite c2 failing, got %v", got)
	}

	// The latch advanced despite the failure: no retry on the next cycle.
	l.RunCycle(ctx)
	if n := len(snd.deliveries()); n != 2 {
		t.Fatalf("failed recipient must not be retried, got %d deliveries", n)
	}
}

type blockingGateway struct {
	entered chan struct{}
	release chan struct{}
}

func (g *blockingGateway) Latest(context.Context) (feed.Item, error) {
	g.entered <- struct{}{}
	<-g.release
	return feed.Item{Title: "A"}, nil
}

func TestStopWaitsForPrimeCycle(t *testing.T) {
	t.Parallel()
	gw := &blockingGateway{entered: make(chan struct{}), release: make(chan struct{})}
	l := NewLoop(Config{Interval: time.Hour}, gw, NewDetector(), &fakeStore{}, &fakeSender{}, logx.Nop())

	l.Start(context.Background())
	select {
	case <-gw.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("prime cycle did not start")
	}

	stopped := make(chan struct{})
	go func() {
		l.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while the prime cycle was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(gw.release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the prime cycle finished")
	}
}

func TestCycleListErrorSkipsFanOutButAdvancesLatch(t *testing.T) {
	t.Parallel()
	gw := &fakeGateway{item: feed.Item{Title: "A"}}
	st := &fakeStore{ids: []chat.ID{chat.Chat(1)}}
	snd := &fakeSender{}
	l := newTestLoop(gw, st, snd)
	ctx := context.Background()

	l.RunCycle(ctx)
	gw.set(feed.Item{Title: "B"})

	st.mu.Lock()
	st.err = errors.New("disk error")
	st.mu.Unlock()
	l.RunCycle(ctx)
	if n := len(snd.deliveries()); n != 0 {
		t.Fatalf("fan-out should be skipped on list error, got %d", n)
	}

	// The latch already advanced to B, so recovery does not re-broadcast.
	st.mu.Lock()
	st.err = nil
	st.mu.Unlock()
	l.RunCycle(ctx)
	if n := len(snd.deliveries()); n != 0 {
		t.Fatalf("post must not be re-broadcast after latch advanced, got %d", n)
	}
}
