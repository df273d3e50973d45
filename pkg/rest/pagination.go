package rest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Continuation parameters and default response fields.
const (
	ParamCursor  = "cursor"
	ParamMaxID   = "max_id"
	ParamSinceID = "since_id"

	DefaultCursorField = "next_cursor"
	DefaultIDField     = "id"
)

// PageIterator is a lazy, single-use, forward-only producer of pages.
// NextPage returns ErrNoMorePages once the iteration has ended. Iterators
// are owned by one goroutine and are not safe for concurrent use.
type PageIterator interface {
	NextPage(ctx context.Context) (*Response, error)
	Done() bool
}

type iteratorConfig struct {
	callOptions CallOptions
	force       bool
	fillGaps    bool
	itemsKey    string
	idField     string
	cursorField string
}

// IteratorOption configures an iterator.
type IteratorOption func(*iteratorConfig)

// WithForce keeps a since-id iterator alive after an empty page. An empty
// first page is then yielded instead of ending the iterator. Cursor and
// max-id iterators ignore it.
func WithForce(force bool) IteratorOption {
	return func(c *iteratorConfig) {
		c.force = force
	}
}

// WithFillGaps makes a since-id iterator fetch the older items missing
// between the previous since-id and the oldest item of a new page.
func WithFillGaps(fill bool) IteratorOption {
	return func(c *iteratorConfig) {
		c.fillGaps = fill
	}
}

// WithItemsKey sets the path of the item array in the response, for
// endpoints that wrap results in an object (e.g. "statuses").
func WithItemsKey(key string) IteratorOption {
	return func(c *iteratorConfig) {
		c.itemsKey = key
	}
}

// WithIDField sets the item field holding the numeric id.
func WithIDField(field string) IteratorOption {
	return func(c *iteratorConfig) {
		if field != "" {
			c.idField = field
		}
	}
}

// WithCursorField sets the response field holding the next cursor.
func WithCursorField(field string) IteratorOption {
	return func(c *iteratorConfig) {
		if field != "" {
			c.cursorField = field
		}
	}
}

// WithCallOptions sets the options passed on every page request.
func WithCallOptions(opts CallOptions) IteratorOption {
	return func(c *iteratorConfig) {
		c.callOptions = opts
	}
}

func newIteratorConfig(opts []IteratorOption) iteratorConfig {
	cfg := iteratorConfig{
		idField:     DefaultIDField,
		cursorField: DefaultCursorField,
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg
}

// strategy supplies the parts of the page loop that differ per iterator.
type strategy interface {
	// params returns the continuation arguments for the next request.
	params() Args
	// continues reports whether resp carries continuation data.
	continues(resp *Response) bool
	// empty reports whether resp carries no items.
	empty(resp *Response) bool
	// update commits the continuation state taken from resp.
	update(resp *Response)
	// persistent reports whether an exhausted page keeps the iterator open.
	persistent() bool
}

// Iterator is the page loop shared by every strategy.
type Iterator struct {
	invoker  Invoker
	args     Args
	cfg      iteratorConfig
	strategy strategy
	done     bool
	produced int
	idle     bool
}

func newIterator(invoker Invoker, args Args, cfg iteratorConfig, s strategy) *Iterator {
	return &Iterator{
		invoker:  invoker,
		args:     args.Merge(nil),
		cfg:      cfg,
		strategy: s,
	}
}

// NextPage fetches the next page. State is only updated once a response has
// been obtained, so a failed or cancelled call can be retried by calling
// NextPage again.
func (it *Iterator) NextPage(ctx context.Context) (*Response, error) {
	if it.done {
		return nil, ErrNoMorePages
	}

	args := it.args.Merge(it.strategy.params())

	// Page requests always go to the server; a cached page would stall
	// polling and repeat cursors.
	opts := it.cfg.callOptions
	opts.NoCache = true

	resp, err := it.invoker.Dispatch(ctx, args, opts)
	if err != nil {
		return nil, err
	}

	if filler, ok := it.strategy.(gapFiller); ok && it.cfg.fillGaps {
		resp, err = filler.fill(ctx, it, resp)
		if err != nil {
			return nil, err
		}
	}

	if it.strategy.continues(resp) {
		it.strategy.update(resp)
		it.produced++
		it.idle = false

		return resp, nil
	}

	if it.strategy.persistent() && it.cfg.force {
		it.idle = true
		it.produced++

		return resp, nil
	}

	it.done = true

	if it.produced == 0 && it.strategy.empty(resp) {
		return nil, ErrNoMorePages
	}

	it.produced++

	return resp, nil
}

// Done reports whether the iterator has ended.
func (it *Iterator) Done() bool {
	return it.done
}

// Idle reports whether the last page of a forced iterator held no new data.
func (it *Iterator) Idle() bool {
	return it.idle
}

// All collects pages until the iterator ends. A forced since-id iterator
// stops at its first page without new data.
func (it *Iterator) All(ctx context.Context) ([]*Response, error) {
	var pages []*Response

	err := it.ForEach(ctx, func(page *Response) error {
		pages = append(pages, page)

		return nil
	})
	if err != nil {
		return pages, err
	}

	return pages, nil
}

// ForEach calls fn for every page until the iterator ends or fn fails.
func (it *Iterator) ForEach(ctx context.Context, fn func(*Response) error) error {
	for {
		page, err := it.NextPage(ctx)
		if errors.Is(err, ErrNoMorePages) {
			return nil
		}

		if err != nil {
			return err
		}

		err = fn(page)
		if err != nil {
			return err
		}

		if it.idle {
			return nil
		}
	}
}

// NewCursorIterator iterates with the "cursor" parameter until the response
// cursor is 0 or missing.
func NewCursorIterator(invoker Invoker, args Args, opts ...IteratorOption) *Iterator {
	cfg := newIteratorConfig(opts)

	return newIterator(invoker, args, cfg, &cursorStrategy{cfg: cfg})
}

// NewMaxIDIterator iterates backwards with "max_id" set below the smallest
// id seen, until a page holds no items.
func NewMaxIDIterator(invoker Invoker, args Args, opts ...IteratorOption) *Iterator {
	cfg := newIteratorConfig(opts)

	return newIterator(invoker, args, cfg, &maxIDStrategy{cfg: cfg})
}

// NewSinceIDIterator iterates forwards with "since_id" set to the largest id
// seen. Without force it ends on the first page holding no items; with
// force such a page is returned and the iterator stays open.
func NewSinceIDIterator(invoker Invoker, args Args, opts ...IteratorOption) *Iterator {
	cfg := newIteratorConfig(opts)

	return newIterator(invoker, args, cfg, &sinceIDStrategy{cfg: cfg})
}

type cursorStrategy struct {
	cfg    iteratorConfig
	cursor *int64
}

func (s *cursorStrategy) params() Args {
	if s.cursor == nil {
		return nil
	}

	return Args{ParamCursor: *s.cursor}
}

func (s *cursorStrategy) continues(resp *Response) bool {
	cursor, ok := resp.NextCursor(s.cfg.cursorField)

	return ok && cursor != 0
}

func (s *cursorStrategy) empty(resp *Response) bool {
	if s.cfg.itemsKey != "" {
		return len(resp.Items(s.cfg.itemsKey)) == 0
	}

	return resp.IsEmpty()
}

func (s *cursorStrategy) update(resp *Response) {
	cursor, _ := resp.NextCursor(s.cfg.cursorField)
	s.cursor = &cursor
}

func (s *cursorStrategy) persistent() bool {
	return false
}

type maxIDStrategy struct {
	cfg   iteratorConfig
	maxID *int64
}

func (s *maxIDStrategy) params() Args {
	if s.maxID == nil {
		return nil
	}

	return Args{ParamMaxID: *s.maxID}
}

func (s *maxIDStrategy) continues(resp *Response) bool {
	return len(itemIDs(resp, s.cfg)) > 0
}

func (s *maxIDStrategy) empty(resp *Response) bool {
	return !s.continues(resp)
}

func (s *maxIDStrategy) update(resp *Response) {
	lowest, _ := minMax(itemIDs(resp, s.cfg))
	next := lowest - 1
	s.maxID = &next
}

func (s *maxIDStrategy) persistent() bool {
	return false
}

type sinceIDStrategy struct {
	cfg     iteratorConfig
	sinceID *int64
}

func (s *sinceIDStrategy) params() Args {
	if s.sinceID == nil {
		return nil
	}

	return Args{ParamSinceID: *s.sinceID}
}

func (s *sinceIDStrategy) continues(resp *Response) bool {
	return len(itemIDs(resp, s.cfg)) > 0
}

func (s *sinceIDStrategy) empty(resp *Response) bool {
	return !s.continues(resp)
}

func (s *sinceIDStrategy) update(resp *Response) {
	_, highest := minMax(itemIDs(resp, s.cfg))
	if s.sinceID == nil || highest > *s.sinceID {
		s.sinceID = &highest
	}
}

func (s *sinceIDStrategy) persistent() bool {
	return true
}

// boundary returns the since-id in effect for the next request: the one
// learned from earlier pages, or the caller's own argument.
func (s *sinceIDStrategy) boundary(args Args) (int64, bool) {
	if s.sinceID != nil {
		return *s.sinceID, true
	}

	return argInt64(args[ParamSinceID])
}

type gapFiller interface {
	fill(ctx context.Context, it *Iterator, resp *Response) (*Response, error)
}

func (s *sinceIDStrategy) fill(ctx context.Context, it *Iterator, resp *Response) (*Response, error) {
	since, ok := s.boundary(it.args)
	if !ok {
		return resp, nil
	}

	ids := itemIDs(resp, s.cfg)
	if len(ids) == 0 {
		return resp, nil
	}

	oldest, _ := minMax(ids)
	if oldest <= since+1 {
		return resp, nil
	}

	args := it.args.Merge(Args{ParamSinceID: since, ParamMaxID: oldest - 1})
	older := NewMaxIDIterator(it.invoker, args,
		WithItemsKey(s.cfg.itemsKey),
		WithIDField(s.cfg.idField),
		WithCallOptions(s.cfg.callOptions),
	)

	var extra []gjson.Result

	err := older.ForEach(ctx, func(page *Response) error {
		for _, item := range page.Items(s.cfg.itemsKey) {
			if item.Get(s.cfg.idField).Int() > since {
				extra = append(extra, item)
			}
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("filling gap below id %d: %w", oldest, err)
	}

	return appendItems(resp, s.cfg, extra)
}

// appendItems returns a copy of resp with extra appended to its item array,
// skipping ids already present.
func appendItems(resp *Response, cfg iteratorConfig, extra []gjson.Result) (*Response, error) {
	items := resp.Items(cfg.itemsKey)
	seen := make(map[int64]struct{}, len(items)+len(extra))
	raw := make([]string, 0, len(items)+len(extra))

	for _, item := range append(items, extra...) {
		id := item.Get(cfg.idField).Int()
		if _, dup := seen[id]; dup {
			continue
		}

		seen[id] = struct{}{}
		raw = append(raw, item.Raw)
	}

	merged := []byte("[" + strings.Join(raw, ",") + "]")

	body := merged
	if cfg.itemsKey != "" {
		var err error

		body, err = sjson.SetRawBytes(resp.Body, cfg.itemsKey, merged)
		if err != nil {
			return nil, fmt.Errorf("merging items into %q: %w", cfg.itemsKey, err)
		}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		URL:        resp.URL,
		Body:       body,
	}, nil
}

func itemIDs(resp *Response, cfg iteratorConfig) []int64 {
	items := resp.Items(cfg.itemsKey)
	ids := make([]int64, 0, len(items))

	for _, item := range items {
		id := item.Get(cfg.idField)
		if id.Exists() {
			ids = append(ids, id.Int())
		}
	}

	return ids
}

func minMax(ids []int64) (int64, int64) {
	lowest, highest := ids[0], ids[0]
	for _, id := range ids[1:] {
		lowest = min(lowest, id)
		highest = max(highest, id)
	}

	return lowest, highest
}

func argInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case int32:
		return int64(v), true
	case uint64:
		return int64(v), true //nolint:gosec // ids fit in int64
	case string:
		parsed, err := strconv.ParseInt(v, 10, 64)

		return parsed, err == nil
	default:
		return 0, false
	}
}
