package listview_test

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"wenlock/internal/listview"
	"wenlock/internal/models"
)

// fakeClock fires timers only when Advance is called.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) listview.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward and runs every timer that became due, in order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*fakeTimer
	pending := c.timers[:0]
	for _, t := range c.timers {
		switch {
		case t.stopped:
		case t.at <= c.now:
			t.fired = true
			due = append(due, t)
		default:
			pending = append(pending, t)
		}
	}
	c.timers = pending
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at < due[j].at })
	for _, t := range due {
		t.f()
	}
}

type reply struct {
	result *models.ListResult
	err    error
}

// fetchCall is one ListUsers invocation waiting for the test to answer it.
type fetchCall struct {
	ctx   context.Context
	query models.ListQuery
	reply chan reply
}

func (c *fetchCall) respond(result *models.ListResult, err error) {
	c.reply <- reply{result: result, err: err}
}

// fakeFetcher hands every call to the test. When honorCancel is false a
// canceled call still waits for its reply, which models a late response.
type fakeFetcher struct {
	calls       chan *fetchCall
	honorCancel bool
}

func newFakeFetcher(honorCancel bool) *fakeFetcher {
	return &fakeFetcher{calls: make(chan *fetchCall, 32), honorCancel: honorCancel}
}

func (f *fakeFetcher) ListUsers(ctx context.Context, q models.ListQuery) (*models.ListResult, error) {
	call := &fetchCall{ctx: ctx, query: q, reply: make(chan reply, 1)}
	f.calls <- call

	if !f.honorCancel {
		r := <-call.reply
		return r.result, r.err
	}
	select {
	case r := <-call.reply:
		return r.result, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeFetcher) next(t *testing.T) *fetchCall {
	t.Helper()
	select {
	case call := <-f.calls:
		return call
	case <-time.After(2 * time.Second):
		t.Fatal("expected a fetch, none was issued")
		return nil
	}
}

func (f *fakeFetcher) expectNone(t *testing.T) {
	t.Helper()
	select {
	case call := <-f.calls:
		t.Fatalf("unexpected fetch %+v", call.query)
	case <-time.After(30 * time.Millisecond):
	}
}

func page(names ...string) *models.ListResult {
	data := make([]models.PublicUser, 0, len(names))
	for _, n := range names {
		data = append(data, models.PublicUser{ID: n, Name: n})
	}
	return &models.ListResult{
		Data:       data,
		Page:       1,
		Limit:      15,
		Total:      int64(len(data)),
		TotalPages: models.TotalPages(int64(len(data)), 15),
	}
}

func pages(total int64, limit int) *models.ListResult {
	return &models.ListResult{
		Data:       []models.PublicUser{},
		Page:       1,
		Limit:      limit,
		Total:      total,
		TotalPages: models.TotalPages(total, limit),
	}
}
