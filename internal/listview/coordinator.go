// Package listview keeps one paginated, searchable view of the user list in
// sync with the API. Input events (search edits, paging, refreshes) and
// fetch completions are applied one at a time, and only the response to the
// most recently issued request is ever shown.
package listview

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"wenlock/internal/apperrors"
	"wenlock/internal/models"
)

// Defaults for a new Coordinator.
const (
	DefaultQuietPeriod = 300 * time.Millisecond
	DefaultPageSize    = 15
)

// Fetcher loads one page of users. It must honor ctx cancellation.
type Fetcher interface {
	ListUsers(ctx context.Context, q models.ListQuery) (*models.ListResult, error)
}

// State is a snapshot of the view.
type State struct {
	Active         bool
	SearchText     string // raw, as typed
	CommittedQuery string // trimmed text the current result was asked for
	Page           int
	PageSize       int
	LatestResult   *models.ListResult
	IsLoading      bool
	ErrorMessage   string
	RequestToken   uint64
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithQuietPeriod sets how long the search text must stay unchanged before
// it is committed.
func WithQuietPeriod(d time.Duration) Option {
	return func(c *Coordinator) { c.quiet = d }
}

// WithPageSize sets the initial page size.
func WithPageSize(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.state.PageSize = n
		}
	}
}

// WithClock replaces the wall clock used for debouncing.
func WithClock(clock Clock) Option {
	return func(c *Coordinator) { c.clock = clock }
}

// WithOnChange registers a callback that receives a snapshot after every
// state change. It runs with the coordinator locked and must not call back
// into it.
func WithOnChange(fn func(State)) Option {
	return func(c *Coordinator) { c.onChange = fn }
}

// WithLogger sets the coordinator logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// Coordinator owns the list view state. All methods are safe for concurrent
// use.
type Coordinator struct {
	fetcher  Fetcher
	clock    Clock
	quiet    time.Duration
	onChange func(State)
	logger   *zap.Logger

	mu          sync.Mutex
	state       State
	timer       Timer
	debounceSeq uint64
	cancel      context.CancelFunc
	closed      bool

	baseCtx  context.Context
	stopBase context.CancelFunc
	wg       sync.WaitGroup
}

// New creates an inactive Coordinator on page 1.
func New(fetcher Fetcher, opts ...Option) *Coordinator {
	c := &Coordinator{
		fetcher: fetcher,
		clock:   realClock{},
		quiet:   DefaultQuietPeriod,
		logger:  zap.NewNop(),
		state: State{
			Page:     1,
			PageSize: DefaultPageSize,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.baseCtx, c.stopBase = context.WithCancel(context.Background())
	return c
}

// State returns a snapshot of the current view.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Activate marks the view as visible. The first call fetches with the
// current committed inputs; later calls do nothing.
func (c *Coordinator) Activate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.activateLocked()
	c.notifyLocked()
}

// SetSearch records the raw search text and restarts the quiet period.
// Non-empty text also activates the view.
func (c *Coordinator) SetSearch(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	c.state.SearchText = text
	if strings.TrimSpace(text) != "" {
		c.activateLocked()
	}

	if c.timer != nil {
		c.timer.Stop()
	}
	c.debounceSeq++
	seq := c.debounceSeq
	c.timer = c.clock.AfterFunc(c.quiet, func() { c.commit(seq) })
	c.notifyLocked()
}

// commit runs when the quiet period of edit seq has elapsed.
func (c *Coordinator) commit(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// A newer edit restarted the timer after this one had already fired.
	if c.closed || seq != c.debounceSeq {
		return
	}
	c.timer = nil

	query := strings.TrimSpace(c.state.SearchText)
	if query == c.state.CommittedQuery {
		return
	}
	c.state.CommittedQuery = query
	c.state.Page = 1
	c.logger.Debug("search committed", zap.String("query", query))
	if c.state.Active {
		c.fetchLocked()
	}
	c.notifyLocked()
}

// SetPageSize changes the number of users per page and goes back to page 1.
func (c *Coordinator) SetPageSize(n int) error {
	if n < 1 {
		return apperrors.NewValidation("pageSize", "page size must be at least 1")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || n == c.state.PageSize {
		return nil
	}
	c.state.PageSize = n
	c.state.Page = 1
	if c.state.Active {
		c.fetchLocked()
	}
	c.notifyLocked()
	return nil
}

// GoTo moves to page p, clamped to the pages known from the latest result.
func (c *Coordinator) GoTo(p int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	last := 1
	if r := c.state.LatestResult; r != nil && r.TotalPages > 1 {
		last = r.TotalPages
	}
	if p > last {
		p = last
	}
	if p < 1 {
		p = 1
	}
	if p == c.state.Page {
		return
	}

	c.state.Page = p
	if c.state.Active {
		c.fetchLocked()
	}
	c.notifyLocked()
}

// SetPage is an alias of GoTo.
func (c *Coordinator) SetPage(p int) { c.GoTo(p) }

// Refresh fetches again with the current inputs. Inactive views stay
// untouched.
func (c *Coordinator) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.state.Active {
		return
	}
	c.fetchLocked()
	c.notifyLocked()
}

// Close stops the debounce timer, cancels the in-flight request and waits
// for outstanding fetches to return.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.stopBase()
	c.mu.Unlock()

	c.wg.Wait()
}

func (c *Coordinator) activateLocked() {
	if c.state.Active {
		return
	}
	c.state.Active = true
	c.fetchLocked()
}

// fetchLocked supersedes any in-flight request and issues a new one for the
// committed inputs.
func (c *Coordinator) fetchLocked() {
	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(c.baseCtx)
	c.cancel = cancel

	c.state.RequestToken++
	token := c.state.RequestToken
	c.state.IsLoading = true

	q := models.ListQuery{
		Search: c.state.CommittedQuery,
		Page:   c.state.Page,
		Limit:  c.state.PageSize,
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()
		result, err := c.fetcher.ListUsers(ctx, q)
		c.complete(token, result, err)
	}()
}

func (c *Coordinator) complete(token uint64, result *models.ListResult, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if token != c.state.RequestToken {
		c.logger.Debug("dropping stale response",
			zap.Uint64("token", token),
			zap.Uint64("current", c.state.RequestToken),
		)
		return
	}
	c.cancel = nil
	c.state.IsLoading = false

	switch {
	case c.closed, apperrors.IsCanceled(err):
		// superseded or torn down; not an error
	case err != nil:
		c.state.ErrorMessage = errorMessage(err)
		c.logger.Warn("list request failed", zap.Uint64("token", token), zap.Error(err))
	case result == nil:
		c.state.ErrorMessage = errorMessage(errors.New("empty response"))
	default:
		c.state.LatestResult = result
		c.state.ErrorMessage = ""
	}
	c.notifyLocked()
}

func (c *Coordinator) notifyLocked() {
	if c.onChange != nil {
		c.onChange(c.state)
	}
}

func errorMessage(err error) string {
	var (
		verr *apperrors.ValidationError
		te   *apperrors.TransportError
	)
	switch {
	case errors.As(err, &verr):
		return verr.Error()
	case errors.As(err, &te):
		return "Could not load users. Please try again."
	default:
		return "Could not load users: " + err.Error()
	}
}
